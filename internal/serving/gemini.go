package serving

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Gemini generates text with a Gemini model through the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGemini creates a Gemini generator for model.
func NewGemini(ctx context.Context, apiKey, model string, httpClient *http.Client, timeout time.Duration) (*Gemini, error) {
	return newGemini(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}, model, timeout)
}

func newGemini(ctx context.Context, cc *genai.ClientConfig, model string, timeout time.Duration) (*Gemini, error) {
	if cc.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// Generate sends prompt as a single user turn and returns the first
// candidate's text parts.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", failf(err, "query model %s: %v", g.model, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", failf(ErrEmptyResponse, "model %s returned no candidates", g.model)
	}

	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return "", failf(ErrEmptyResponse, "model %s returned empty content", g.model)
	}

	var texts []string
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought || part.Text == "" {
			continue
		}
		texts = append(texts, part.Text)
	}
	text := strings.Join(texts, "")
	if strings.TrimSpace(text) == "" {
		return "", failf(ErrEmptyResponse, "model %s returned empty content", g.model)
	}
	return text, nil
}
