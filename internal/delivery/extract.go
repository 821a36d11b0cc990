package delivery

import (
	"strconv"

	"github.com/Enriquefft/telegram-serving-bridge/internal/telegram"
)

// defaultName is used when the sender has no first name.
const defaultName = "User"

// ExtractEvent converts a Telegram update into an Event. Updates without a
// message, or messages without text (photos, stickers, voice notes), yield an
// Event with HasText false that still carries the update ID.
func ExtractEvent(u telegram.Update) Event {
	evt := Event{ID: u.UpdateID, Name: defaultName}

	msg := u.Message
	if msg == nil {
		return evt
	}

	evt.ChatID = strconv.FormatInt(msg.Chat.ID, 10)
	if msg.From != nil && msg.From.FirstName != "" {
		evt.Name = msg.From.FirstName
	}
	if msg.Text != nil {
		evt.Text = *msg.Text
		evt.HasText = true
	}
	return evt
}

// ExtractEvents converts a getUpdates batch, preserving order.
func ExtractEvents(updates []telegram.Update) []Event {
	events := make([]Event, 0, len(updates))
	for _, u := range updates {
		events = append(events, ExtractEvent(u))
	}
	return events
}
