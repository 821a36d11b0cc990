package serving

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// maxResponseBytes bounds how much of an invocation response is read.
	maxResponseBytes = 1 << 20
	// maxDetailLen bounds the error detail carried into a Failure reason,
	// which is shown to the chat.
	maxDetailLen = 200
)

// Databricks queries a model-serving endpoint through its chat invocation
// API.
type Databricks struct {
	Host       string
	Endpoint   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewDatabricks creates a client for endpoint on the workspace at host.
// httpClient must already attach workspace credentials.
func NewDatabricks(host, endpoint string, httpClient *http.Client, timeout time.Duration) *Databricks {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Databricks{
		Host:       normalizeHost(host),
		Endpoint:   endpoint,
		HTTPClient: httpClient,
		Timeout:    timeout,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type invocationRequest struct {
	Messages []chatMessage `json:"messages"`
}

type invocationResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// contentPart is one element of a structured message content array, as
// returned by reasoning models.
type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Generate sends prompt as a single user message and returns the first
// choice's content.
func (d *Databricks) Generate(ctx context.Context, prompt string) (string, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(invocationRequest{
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", failf(err, "marshal request: %v", err)
	}

	u := fmt.Sprintf("%s/serving-endpoints/%s/invocations", d.Host, url.PathEscape(d.Endpoint))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", failf(err, "create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := RequestID(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return "", failf(err, "query endpoint %s: %v", d.Endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", failf(err, "read response: %v", err)
	}

	var out invocationResponse
	jsonErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := string(raw)
		if jsonErr == nil && out.Message != "" {
			detail = out.Message
			if out.ErrorCode != "" {
				detail = out.ErrorCode + ": " + out.Message
			}
		}
		return "", failf(nil, "endpoint %s returned status %d: %s", d.Endpoint, resp.StatusCode, shorten(detail, maxDetailLen))
	}
	if jsonErr != nil {
		return "", failf(jsonErr, "malformed response from %s: %v", d.Endpoint, jsonErr)
	}

	if len(out.Choices) == 0 {
		return "", failf(ErrEmptyResponse, "endpoint %s returned no choices", d.Endpoint)
	}

	text := decodeContent(out.Choices[0].Message.Content)
	if strings.TrimSpace(text) == "" {
		return "", failf(ErrEmptyResponse, "endpoint %s returned empty content", d.Endpoint)
	}
	return text, nil
}

// shorten collapses whitespace and cuts s to at most n bytes on a rune
// boundary.
func shorten(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// decodeContent accepts either a plain string or an array of typed parts and
// returns the concatenated text.
func decodeContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var texts []string
	for _, p := range parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}
