package delivery

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Enriquefft/telegram-serving-bridge/internal/relay"
	"github.com/Enriquefft/telegram-serving-bridge/internal/telegram"
)

// allowedUpdates restricts getUpdates to plain messages.
var allowedUpdates = []string{"message"}

// Telegram implements Transport over the Bot API.
type Telegram struct {
	Client *telegram.Client
}

// NewTelegram wraps client as a Transport.
func NewTelegram(client *telegram.Client) *Telegram {
	return &Telegram{Client: client}
}

// Fetch long-polls getUpdates for up to wait and returns the batch in the
// order Telegram delivered it.
func (t *Telegram) Fetch(ctx context.Context, afterID int64, wait time.Duration) ([]Event, error) {
	updates, err := t.Client.GetUpdates(ctx, telegram.GetUpdatesParams{
		Offset:         afterID + 1,
		Timeout:        int(wait / time.Second),
		AllowedUpdates: allowedUpdates,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch updates after %d: %w", afterID, err)
	}
	return ExtractEvents(updates), nil
}

// Deliver sends text to chatID as Telegram Markdown, split into chunks that
// fit one message. A chunk Telegram cannot parse is re-sent as plain text.
func (t *Telegram) Deliver(ctx context.Context, chatID, text string) error {
	chunks := relay.Split(relay.ToTelegram(text), relay.MaxMessageLen)
	for i, chunk := range chunks {
		if chunk == "" {
			continue
		}
		err := t.Client.SendMessage(ctx, chatID, chunk, telegram.ParseModeMarkdown)
		if telegram.IsParseError(err) {
			log.WithField("chat_id", chatID).Debug("markdown rejected, resending as plain text")
			err = t.Client.SendMessage(ctx, chatID, chunk, telegram.ParseModeNone)
		}
		if err != nil {
			return fmt.Errorf("deliver chunk %d/%d to %s: %w", i+1, len(chunks), chatID, err)
		}
	}
	return nil
}

// Indicate shows the typing indicator in chatID.
func (t *Telegram) Indicate(ctx context.Context, chatID string) error {
	if err := t.Client.SendChatAction(ctx, chatID, telegram.ActionTyping); err != nil {
		return fmt.Errorf("indicate typing in %s: %w", chatID, err)
	}
	return nil
}

// ClearWebhook removes any webhook so getUpdates is allowed.
func (t *Telegram) ClearWebhook(ctx context.Context, dropPending bool) error {
	if err := t.Client.DeleteWebhook(ctx, dropPending); err != nil {
		return fmt.Errorf("clear webhook: %w", err)
	}
	return nil
}
