package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSlackNotifier_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations.history" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer xoxb-test" {
			t.Errorf("auth header = %q", got)
		}
		if r.URL.Query().Get("channel") != "C123" {
			t.Errorf("channel = %q", r.URL.Query().Get("channel"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"messages": []map[string]string{
				{"ts": "1754300000.000100", "user": "U1", "text": "anyone seen auth.py fail?"},
			},
		})
	}))
	defer server.Close()

	n := NewSlackNotifier("xoxb-test")
	n.SetBaseURL(server.URL)

	messages, err := n.Search(context.Background(), "C123", 7*24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != 1 || messages[0].ThreadID != "1754300000.000100" {
		t.Fatalf("messages = %+v", messages)
	}
	if messages[0].Timestamp.Unix() != 1754300000 {
		t.Errorf("timestamp = %v", messages[0].Timestamp)
	}
}

func TestSlackNotifier_SearchAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "channel_not_found"})
	}))
	defer server.Close()

	n := NewSlackNotifier("xoxb-test")
	n.SetBaseURL(server.URL)

	if _, err := n.Search(context.Background(), "C404", time.Hour); err == nil {
		t.Fatal("expected error for ok=false")
	}
}

func TestSlackNotifier_Reply(t *testing.T) {
	var payload map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	n := NewSlackNotifier("xoxb-test")
	n.SetBaseURL(server.URL)

	if err := n.Reply(context.Background(), "C123", "1754300000.000100", "resolved"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload["thread_ts"] != "1754300000.000100" || payload["text"] != "resolved" {
		t.Errorf("payload = %v", payload)
	}
}
