package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Enriquefft/telegram-serving-bridge/internal/config"
	"github.com/Enriquefft/telegram-serving-bridge/internal/delivery"
	"github.com/Enriquefft/telegram-serving-bridge/internal/delivery/poller"
	"github.com/Enriquefft/telegram-serving-bridge/internal/serving"
	"github.com/Enriquefft/telegram-serving-bridge/internal/telegram"
)

const defaultStatusAddr = "http://localhost:18790"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "serving-bridge-cli",
		Short:        "Operate the Telegram serving bridge",
		SilenceUsage: true,
	}

	cmd.AddCommand(newSendCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newStatusCmd())
	return cmd
}

func newSendCmd() *cobra.Command {
	var to, text string
	cmd := &cobra.Command{
		Use:     "send",
		Short:   "Send a message to a Telegram chat",
		Example: `  serving-bridge-cli send --to 123456789 --text "hello"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" || text == "" {
				return errors.New("--to and --text are required")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Telegram.BotToken == "" {
				return errors.New("TELEGRAM_BOT_TOKEN must be set")
			}

			transport := http.DefaultTransport.(*http.Transport).Clone()
			client := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.APIURL, &http.Client{Transport: transport})
			defer client.Close()

			tr := delivery.NewTelegram(client)
			if err := tr.Deliver(cmd.Context(), to, text); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "chat ID")
	cmd.Flags().StringVar(&text, "text", "", "message text (Markdown)")
	return cmd
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask PROMPT",
		Short: "Run one generation against the configured endpoint",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// ask does not talk to Telegram.
			if cfg.Telegram.BotToken == "" {
				cfg.Telegram.BotToken = "unused"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			transport := http.DefaultTransport.(*http.Transport).Clone()
			defer transport.CloseIdleConnections()

			gen, err := serving.New(cmd.Context(), cfg.Serving, &http.Client{Transport: transport})
			if err != nil {
				return err
			}
			text, err := gen.Generate(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query the bridge's status endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = statusAddr()
			}
			st, err := fetchStatus(cmd.Context(), strings.TrimRight(addr, "/"))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "running:        %v\n", st.Running)
			fmt.Fprintf(out, "endpoint:       %s\n", st.Endpoint)
			fmt.Fprintf(out, "mode:           %s\n", st.Mode)
			fmt.Fprintf(out, "last update ID: %d\n", st.Cursor)
			fmt.Fprintf(out, "processed:      %d\n", st.Processed)
			fmt.Fprintf(out, "failed:         %d\n", st.Failed)
			if !st.StartedAt.IsZero() {
				fmt.Fprintf(out, "started:        %s\n", st.StartedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "status server URL (default from health.addr)")
	return cmd
}

// statusAddr derives the status URL from the configured health address.
func statusAddr() string {
	cfg, err := config.Load()
	if err != nil || cfg.Health.Addr == "" {
		return defaultStatusAddr
	}
	a := cfg.Health.Addr
	if strings.HasPrefix(a, ":") {
		a = "localhost" + a
	}
	return "http://" + a
}

func fetchStatus(ctx context.Context, addr string) (*poller.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("create status request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status server unhealthy (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var st poller.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &st, nil
}
