package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lucasnoah/commitly/internal/config"
	"github.com/lucasnoah/commitly/internal/pipeline"
	"github.com/lucasnoah/commitly/internal/prompt"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAIClient implements Client against an OpenAI-compatible chat
// completions endpoint.
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewOpenAIClient builds a client from config. Returns LLMUnavailable when
// the handle is disabled or missing its key so callers can degrade.
func NewOpenAIClient(cfg config.LLMConfig) (*OpenAIClient, error) {
	if !cfg.Enabled {
		return nil, pipeline.Errorf(pipeline.KindLLMUnavailable, "llm disabled in config")
	}
	if cfg.APIKey == "" {
		return nil, pipeline.Errorf(pipeline.KindLLMUnavailable, "llm.api_key not set")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAIClient) Complete(ctx context.Context, promptText, system string) (string, error) {
	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: promptText})

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Temperature: 0.2})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pipeline.Wrap(pipeline.KindLLMUnavailable, "chat completion request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", pipeline.Errorf(pipeline.KindLLMUnavailable, "chat completion: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) SuggestRefactoring(ctx context.Context, code, filePath, rules string) (string, error) {
	if rules == "" {
		rules = prompt.DefaultRefactorRules
	}
	userPrompt, err := prompt.Render(prompt.Refactor, prompt.Vars{
		"code":      code,
		"file_path": filePath,
		"rules":     rules,
	})
	if err != nil {
		return "", err
	}
	answer, err := c.Complete(ctx, userPrompt, prompt.RefactorSystem)
	if err != nil {
		return "", err
	}
	return StripFences(answer), nil
}

func (c *OpenAIClient) SuggestQueries(ctx context.Context, schema, query, dialect string, n int) ([]string, error) {
	return suggestQueries(ctx, c, schema, query, dialect, n)
}
