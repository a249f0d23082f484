package agents

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/notify"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

// Notify searches the chat platform for messages related to this change and
// replies to matches. Non-blocking: its failures never downgrade the run.
type Notify struct {
	Notifier notify.Notifier
}

func (a *Notify) Name() string { return "notify" }

// MatchedMessage is one chat message the agent recognized and answered.
type MatchedMessage struct {
	ThreadID string `json:"thread_id"`
	Text     string `json:"text"`
	Reason   string `json:"reason"`
	Replied  bool   `json:"replied"`
}

// NotifyData is the notify agent's structured output.
type NotifyData struct {
	Searched bool             `json:"searched"`
	Matched  []MatchedMessage `json:"matched,omitempty"`
	Replied  int              `json:"replied"`
}

func (a *Notify) Execute(ctx context.Context, rc *pipeline.RunContext, log *zap.Logger) (any, error) {
	cfg := rc.Config.Notify
	if !cfg.Enabled || a.Notifier == nil || cfg.Channel == "" {
		log.Info("notify disabled; skipped")
		return &NotifyData{}, nil
	}

	window := time.Duration(cfg.WindowDays) * 24 * time.Hour
	messages, err := a.Notifier.Search(ctx, cfg.Channel, window)
	if err != nil {
		return nil, fmt.Errorf("search channel %s: %w", cfg.Channel, err)
	}
	log.Info("channel searched", zap.Int("messages", len(messages)))

	data := &NotifyData{Searched: true}
	for _, msg := range messages {
		reason, ok := a.match(rc, msg.Text)
		if !ok {
			continue
		}
		matched := MatchedMessage{ThreadID: msg.ThreadID, Text: msg.Text, Reason: reason}
		if err := a.Notifier.Reply(ctx, cfg.Channel, msg.ThreadID, a.replyText(rc, cfg.ReplyTemplate)); err != nil {
			log.Warn("reply failed", zap.String("thread", msg.ThreadID), zap.Error(err))
		} else {
			matched.Replied = true
			data.Replied++
		}
		data.Matched = append(data.Matched, matched)
	}
	log.Info("notify finished", zap.Int("matched", len(data.Matched)), zap.Int("replied", data.Replied))
	return data, nil
}

// match decides whether a message refers to this change: by commit message,
// by changed filename, or by configured keyword.
func (a *Notify) match(rc *pipeline.RunContext, text string) (string, bool) {
	lower := strings.ToLower(text)

	for _, commit := range rc.UserCommits {
		subject := strings.ToLower(strings.TrimSpace(commit.Message))
		if subject != "" && strings.Contains(lower, subject) {
			return "commit message", true
		}
	}
	for _, file := range rc.ChangedFiles {
		name := strings.ToLower(filepath.Base(file))
		if name != "" && strings.Contains(lower, name) {
			return "filename: " + name, true
		}
	}
	for _, keyword := range rc.Config.Notify.Keywords {
		if keyword != "" && strings.Contains(lower, strings.ToLower(keyword)) {
			return "keyword: " + keyword, true
		}
	}
	return "", false
}

// replyText renders the resolved-style reply.
func (a *Notify) replyText(rc *pipeline.RunContext, template string) string {
	message := ""
	if len(rc.UserCommits) > 0 {
		message = rc.UserCommits[0].Message
	}
	if template != "" {
		return strings.ReplaceAll(template, "{commit}", message)
	}
	return fmt.Sprintf("This should be resolved by the latest change: %q (run %s).", message, rc.RunID)
}
