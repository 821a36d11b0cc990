package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Enriquefft/telegram-serving-bridge/internal/config"
	"github.com/Enriquefft/telegram-serving-bridge/internal/delivery"
	"github.com/Enriquefft/telegram-serving-bridge/internal/delivery/poller"
	"github.com/Enriquefft/telegram-serving-bridge/internal/health"
	"github.com/Enriquefft/telegram-serving-bridge/internal/security"
	"github.com/Enriquefft/telegram-serving-bridge/internal/serving"
	"github.com/Enriquefft/telegram-serving-bridge/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := setupLogging(cfg.Log); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Errorf("bridge stopped: %v", err)
		stop()
		os.Exit(1)
	}
	log.Info("shut down cleanly")
}

// run wires the bridge and blocks until ctx is cancelled or a component
// fails. A cancelled ctx is a clean exit and returns nil.
func run(ctx context.Context, cfg *config.Config) error {
	// One connection pool for Telegram and the serving endpoint.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	defer transport.CloseIdleConnections()
	httpClient := &http.Client{Transport: transport}

	gen, err := serving.New(ctx, cfg.Serving, httpClient)
	if err != nil {
		return fmt.Errorf("create generator: %w", err)
	}

	tg := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.APIURL, httpClient)

	p := poller.New(delivery.NewTelegram(tg), gen, cfg.Serving.Endpoint, cfg.Polling)
	p.DropPending = cfg.Telegram.DropPending
	if cfg.Security.Mode != "open" || cfg.Security.RateLimit > 0 {
		p.Guard = security.New(cfg.Security)
	}

	log.WithFields(log.Fields{
		"token":    maskToken(cfg.Telegram.BotToken),
		"provider": cfg.Serving.Provider,
		"endpoint": cfg.Serving.Endpoint,
		"security": cfg.Security.Mode,
	}).Info("starting serving bridge")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := p.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("poller: %w", err)
		}
		return nil
	})

	if cfg.Health.Addr != "" {
		hs := &health.Server{
			Addr:           cfg.Health.Addr,
			AllowedOrigins: cfg.Health.AllowedOrigins,
			Source:         p,
		}
		g.Go(func() error {
			return hs.Run(gctx)
		})
	}

	return g.Wait()
}

// setupLogging configures the standard logrus logger.
func setupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return nil
}

// maskToken keeps only the bot ID portion of a token for logs.
func maskToken(token string) string {
	const keep = 10
	if len(token) <= keep {
		return strings.Repeat("*", len(token))
	}
	return token[:keep] + "..."
}
