// Package serving is the client side of the remote text-generation service.
//
// Every provider answers Generate with either the first candidate's text or a
// *Failure carrying a human-readable reason. Calls are single attempts; the
// caller decides what a failure means for the conversation.
package serving

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Enriquefft/telegram-serving-bridge/internal/config"
)

// Generator turns user text into assistant text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Failure is the error every provider returns. Reason is safe to show to the
// chat user.
type Failure struct {
	Reason string
	Err    error
}

func (f *Failure) Error() string { return f.Reason }

func (f *Failure) Unwrap() error { return f.Err }

func failf(err error, format string, args ...any) *Failure {
	return &Failure{Reason: fmt.Sprintf(format, args...), Err: err}
}

// ErrEmptyResponse is wrapped by failures where the service answered without
// any usable content.
var ErrEmptyResponse = errors.New("empty response")

// New builds the Generator selected by cfg.Provider. httpClient is the shared
// client whose transport every outbound call reuses.
func New(ctx context.Context, cfg config.ServingConfig, httpClient *http.Client) (Generator, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second

	var g Generator
	switch cfg.Provider {
	case config.ProviderGemini:
		gem, err := NewGemini(ctx, cfg.APIKey, cfg.Endpoint, httpClient, timeout)
		if err != nil {
			return nil, err
		}
		g = gem
	case config.ProviderDatabricks, "":
		authed := authenticatedClient(cfg, httpClient)
		g = NewDatabricks(cfg.Host, cfg.Endpoint, authed, timeout)
	default:
		return nil, fmt.Errorf("unsupported serving provider %q", cfg.Provider)
	}

	return &guarded{next: g}, nil
}

// guarded converts a provider panic into a Failure so nothing escapes
// Generate.
type guarded struct {
	next Generator
}

func (g *guarded) Generate(ctx context.Context, prompt string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("serving: provider panicked")
			text, err = "", failf(nil, "internal error: %v", r)
		}
	}()
	return g.next.Generate(ctx, prompt)
}

type requestIDKey struct{}

// WithRequestID attaches a correlation ID that providers forward to the
// service.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the correlation ID stored by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
