package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultBaseURL = "https://api.telegram.org"

// Client talks to the Telegram Bot API.
type Client struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a Bot API client. An empty baseURL selects the public
// API; a nil httpClient selects http.DefaultClient.
func NewClient(token, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		Token:      token,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: httpClient,
	}
}

// RequestError is returned when the Bot API answers with a non-2xx status or
// ok=false.
type RequestError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *RequestError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram %s (status %d): %s", e.Method, e.StatusCode, e.Description)
	}
	return fmt.Sprintf("telegram %s (status %d)", e.Method, e.StatusCode)
}

// IsParseError reports whether err is Telegram rejecting message entities,
// which happens when Markdown in the text is unbalanced.
func IsParseError(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	desc := strings.ToLower(reqErr.Description)
	return strings.Contains(desc, "can't parse entities") || strings.Contains(desc, "can't parse entity")
}

// SendMessage sends text to chatID with the given parse mode.
func (c *Client) SendMessage(ctx context.Context, chatID, text, parseMode string) error {
	req := SendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: parseMode,
	}
	var ignored json.RawMessage
	return c.post(ctx, "sendMessage", req, &ignored)
}

// SendChatAction shows a status such as "typing" in chatID.
func (c *Client) SendChatAction(ctx context.Context, chatID, action string) error {
	req := ChatActionRequest{ChatID: chatID, Action: action}
	var ok bool
	return c.post(ctx, "sendChatAction", req, &ok)
}

// DeleteWebhook removes any webhook subscription so getUpdates can be used.
// With dropPending Telegram also discards updates it still holds.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	q := url.Values{}
	if dropPending {
		q.Set("drop_pending_updates", "true")
	}
	var ok bool
	return c.get(ctx, "deleteWebhook", q, &ok)
}

// Close releases idle connections held by the underlying HTTP client.
func (c *Client) Close() {
	c.HTTPClient.CloseIdleConnections()
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.BaseURL, c.Token, method)
}

func (c *Client) post(ctx context.Context, method string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, method, result)
}

func (c *Client) get(ctx context.Context, method string, q url.Values, result any) error {
	u := c.methodURL(method)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}

	return c.do(req, method, result)
}

func (c *Client) do(req *http.Request, method string, result any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// url.Error embeds the request URL, which carries the bot token.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var env response
	jsonErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (jsonErr == nil && !env.OK) {
		desc := env.Description
		if jsonErr != nil {
			desc = strings.TrimSpace(string(raw))
		}
		return &RequestError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   env.ErrorCode,
			Description: desc,
		}
	}
	if jsonErr != nil {
		return fmt.Errorf("unmarshal %s response: %w", method, jsonErr)
	}

	if result != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
	}
	return nil
}
