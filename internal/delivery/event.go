package delivery

import (
	"context"
	"time"
)

// Event is one inbound chat message ready for dispatch.
type Event struct {
	ID      int64  // Telegram update ID, the cursor unit
	ChatID  string // originating chat
	Name    string // sender display name
	Text    string // message text
	HasText bool   // false for updates without text; these are skipped
}

// Transport is the chat side of the bridge. Fetch long-polls for events with
// an ID strictly greater than afterID.
type Transport interface {
	Fetch(ctx context.Context, afterID int64, wait time.Duration) ([]Event, error)
	Deliver(ctx context.Context, chatID, text string) error
	Indicate(ctx context.Context, chatID string) error
	ClearWebhook(ctx context.Context, dropPending bool) error
}
