package agents

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/commitly/internal/config"
	"github.com/lucasnoah/commitly/internal/notify"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

type fakeNotifier struct {
	messages  []notify.Message
	searchErr error
	replyErr  error
	replies   []string
}

func (f *fakeNotifier) Search(context.Context, string, time.Duration) ([]notify.Message, error) {
	return f.messages, f.searchErr
}

func (f *fakeNotifier) Reply(_ context.Context, _ string, threadID, _ string) error {
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replies = append(f.replies, threadID)
	return nil
}

func notifyContext() *pipeline.RunContext {
	return &pipeline.RunContext{
		RunID:        "r1",
		UserCommits:  []pipeline.CommitInfo{{Message: "fix the login timeout"}},
		ChangedFiles: []string{"/hub/app/auth.py"},
		Config: &config.Config{Notify: config.NotifyConfig{
			Enabled:    true,
			Channel:    "C123",
			WindowDays: 7,
			Keywords:   []string{"deploy"},
		}},
	}
}

func TestNotify_MatchesAndReplies(t *testing.T) {
	notifier := &fakeNotifier{messages: []notify.Message{
		{ThreadID: "1", Text: "anyone seen auth.py misbehave?"},
		{ThreadID: "2", Text: "when is the next deploy?"},
		{ThreadID: "3", Text: "lunch plans?"},
		{ThreadID: "4", Text: "still hitting Fix the login timeout"},
	}}
	a := &Notify{Notifier: notifier}

	out, err := a.Execute(context.Background(), notifyContext(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data := out.(*NotifyData)
	if len(data.Matched) != 3 {
		t.Fatalf("matched = %+v", data.Matched)
	}
	if data.Replied != 3 || len(notifier.replies) != 3 {
		t.Errorf("replied = %d", data.Replied)
	}
}

func TestNotify_SearchFailureIsAnError(t *testing.T) {
	a := &Notify{Notifier: &fakeNotifier{searchErr: fmt.Errorf("connection refused")}}
	if _, err := a.Execute(context.Background(), notifyContext(), zap.NewNop()); err == nil {
		t.Fatal("expected error; the orchestrator records it as non-blocking")
	}
}

func TestNotify_DisabledSkips(t *testing.T) {
	rc := notifyContext()
	rc.Config.Notify.Enabled = false
	a := &Notify{Notifier: &fakeNotifier{}}

	out, err := a.Execute(context.Background(), rc, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if out.(*NotifyData).Searched {
		t.Error("disabled notify must not search")
	}
}

func TestNotify_ReplyFailureDoesNotFailAgent(t *testing.T) {
	notifier := &fakeNotifier{
		messages: []notify.Message{{ThreadID: "1", Text: "deploy question"}},
		replyErr: fmt.Errorf("rate limited"),
	}
	a := &Notify{Notifier: notifier}

	out, err := a.Execute(context.Background(), notifyContext(), zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data := out.(*NotifyData)
	if len(data.Matched) != 1 || data.Matched[0].Replied {
		t.Errorf("matched = %+v", data.Matched)
	}
	if data.Replied != 0 {
		t.Errorf("replied = %d", data.Replied)
	}
}
