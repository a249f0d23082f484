package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const slackAPI = "https://slack.com/api"

// SlackNotifier implements Notifier against the Slack Web API.
type SlackNotifier struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewSlackNotifier creates a notifier with the given bot token.
func NewSlackNotifier(token string) *SlackNotifier {
	return &SlackNotifier{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    slackAPI,
		token:      token,
	}
}

// SetBaseURL overrides the API endpoint (for testing).
func (s *SlackNotifier) SetBaseURL(u string) {
	s.baseURL = u
}

type historyResponse struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error"`
	Messages []struct {
		TS   string `json:"ts"`
		User string `json:"user"`
		Text string `json:"text"`
	} `json:"messages"`
}

func (s *SlackNotifier) Search(ctx context.Context, channel string, window time.Duration) ([]Message, error) {
	oldest := time.Now().Add(-window)
	params := url.Values{
		"channel": {channel},
		"oldest":  {fmt.Sprintf("%d.000000", oldest.Unix())},
		"limit":   {"200"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/conversations.history?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("slack history: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	var parsed historyResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse slack history: %w", err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("slack history: %s", parsed.Error)
	}

	messages := make([]Message, 0, len(parsed.Messages))
	for _, m := range parsed.Messages {
		messages = append(messages, Message{
			ThreadID:  m.TS,
			User:      m.User,
			Text:      m.Text,
			Timestamp: parseSlackTS(m.TS),
		})
	}
	return messages, nil
}

func (s *SlackNotifier) Reply(ctx context.Context, channel, threadID, text string) error {
	payload, err := json.Marshal(map[string]string{
		"channel":   channel,
		"thread_ts": threadID,
		"text":      text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/chat.postMessage", strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack reply: %w", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("parse slack reply: %w", err)
	}
	if !parsed.OK {
		return fmt.Errorf("slack reply: %s", parsed.Error)
	}
	return nil
}

// parseSlackTS converts a Slack "seconds.micros" timestamp.
func parseSlackTS(ts string) time.Time {
	secs := ts
	if idx := strings.IndexByte(ts, '.'); idx >= 0 {
		secs = ts[:idx]
	}
	n, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(n, 0)
}
