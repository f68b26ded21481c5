package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abhinavprkash/ThreadBrief/internal/domain"
	"github.com/abhinavprkash/ThreadBrief/internal/infra/metrics"
)

const defaultBaseURL = "https://slack.com/api"

// Client выполняет запросы к Slack Web API.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// NewClient создаёт клиента Slack.
func NewClient(token, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout + 5*time.Second}
	return &Client{http: httpClient, baseURL: baseURL, token: token}
}

var _ domain.Messenger = (*Client)(nil)

type postMessageRequest struct {
	Channel string         `json:"channel"`
	Text    string         `json:"text"`
	Blocks  []domain.Block `json:"blocks,omitempty"`
}

type postMessageResponse struct {
	OK      bool   `json:"ok"`
	Channel string `json:"channel"`
	TS      string `json:"ts"`
	Error   string `json:"error,omitempty"`
}

type openConversationRequest struct {
	Users string `json:"users"`
}

type openConversationResponse struct {
	OK      bool `json:"ok"`
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
	Error string `json:"error,omitempty"`
}

// PostMessage публикует сообщение в канал и возвращает ссылку на него.
func (c *Client) PostMessage(ctx context.Context, channel, text string, blocks []domain.Block) (domain.PostResult, error) {
	if channel == "" {
		return domain.PostResult{}, domain.ErrNoChannelConfigured
	}
	var resp postMessageResponse
	if err := c.call(ctx, "chat.postMessage", channel, postMessageRequest{Channel: channel, Text: text, Blocks: blocks}, &resp); err != nil {
		return domain.PostResult{}, err
	}
	if !resp.OK {
		return domain.PostResult{}, fmt.Errorf("slack: chat.postMessage: %s", resp.Error)
	}
	return domain.PostResult{OK: true, Ref: domain.MessageRef{Channel: resp.Channel, TS: resp.TS}}, nil
}

// SendDirectMessage открывает личный канал с пользователем и пишет в него.
// Текст длиннее лимита Slack уходит несколькими сообщениями, ссылка
// возвращается на первое из них. Публикации в каналы так не дробятся:
// пункт дайджеста должен соответствовать ровно одному сообщению.
func (c *Client) SendDirectMessage(ctx context.Context, userID, text string) (domain.PostResult, error) {
	var open openConversationResponse
	if err := c.call(ctx, "conversations.open", userID, openConversationRequest{Users: userID}, &open); err != nil {
		return domain.PostResult{}, err
	}
	if !open.OK || open.Channel.ID == "" {
		return domain.PostResult{}, fmt.Errorf("slack: conversations.open: %s", open.Error)
	}

	parts := SplitMessage(text)
	if len(parts) == 0 {
		return c.PostMessage(ctx, open.Channel.ID, text, nil)
	}

	var first domain.PostResult
	for i, part := range parts {
		result, err := c.PostMessage(ctx, open.Channel.ID, part, nil)
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = result
		}
	}
	return first, nil
}

func (c *Client) call(ctx context.Context, method, target string, payload, out any) error {
	if c.token == "" {
		return fmt.Errorf("slack: token is empty")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("slack: marshal request: %w", err)
	}
	endpoint := c.baseURL + "/" + method
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveNetworkRequest("slack", method, target, start, err)
		return fmt.Errorf("slack: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveNetworkRequest("slack", method, target, start, err)
		return fmt.Errorf("slack: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		err = fmt.Errorf("slack: unexpected status %d", resp.StatusCode)
		metrics.ObserveNetworkRequest("slack", method, target, start, err)
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		metrics.ObserveNetworkRequest("slack", method, target, start, err)
		return fmt.Errorf("slack: decode response: %w", err)
	}
	metrics.ObserveNetworkRequest("slack", method, target, start, nil)
	return nil
}
