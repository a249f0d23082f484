package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lucasnoah/commitly/internal/config"
	"github.com/lucasnoah/commitly/internal/pipeline"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOpenAIClient(config.LLMConfig{
		Enabled: true,
		APIKey:  "key-123",
		Model:   "gpt-4o-mini",
		BaseURL: server.URL,
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestNewOpenAIClient_DisabledOrKeyless(t *testing.T) {
	_, err := NewOpenAIClient(config.LLMConfig{Enabled: false})
	pipeErr, ok := err.(*pipeline.Error)
	if !ok || pipeErr.Kind != pipeline.KindLLMUnavailable {
		t.Fatalf("expected LLMUnavailable, got %v", err)
	}

	_, err = NewOpenAIClient(config.LLMConfig{Enabled: true})
	if err == nil {
		t.Fatal("expected error without an api key")
	}
}

func TestComplete(t *testing.T) {
	var req map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-123" {
			t.Errorf("auth = %q", got)
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "SELECT 1"}},
			},
		})
	})

	got, err := client.Complete(context.Background(), "rewrite this", "you are a dba")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "SELECT 1" {
		t.Errorf("got %q", got)
	}

	messages := req["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("messages = %v", messages)
	}
	first := messages[0].(map[string]any)
	if first["role"] != "system" {
		t.Errorf("system message not first: %v", first)
	}
}

func TestComplete_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limited"},
		})
	})

	_, err := client.Complete(context.Background(), "p", "")
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestSuggestQueries_ParsesList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{
					"content": "SELECT id FROM users\nSELECT id FROM users WHERE 1=1\nnot a query",
				}},
			},
		})
	})

	queries, err := client.SuggestQueries(context.Background(),
		"CREATE TABLE users (id integer);", "SELECT * FROM users", "postgresql", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("queries = %v", queries)
	}
}

func TestSuggestRefactoring_StripsFences(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "```python\ndef f():\n    return 1\n```"}},
			},
		})
	})

	got, err := client.SuggestRefactoring(context.Background(), "def f(): pass", "app/util.py", "")
	if err != nil {
		t.Fatal(err)
	}
	if got != "def f():\n    return 1" {
		t.Errorf("got %q", got)
	}
}
