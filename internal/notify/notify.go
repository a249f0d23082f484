// Package notify is the chat-platform collaborator consumed by the Notify
// agent. Failures here are always non-blocking for the pipeline.
package notify

import (
	"context"
	"time"
)

// Message is one chat message returned by a search.
type Message struct {
	ThreadID  string    `json:"thread_id"`
	User      string    `json:"user"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier is the chat-platform handle.
type Notifier interface {
	// Search returns the messages posted to a channel within the window.
	Search(ctx context.Context, channel string, window time.Duration) ([]Message, error)
	// Reply posts a threaded reply.
	Reply(ctx context.Context, channel, threadID, text string) error
}
