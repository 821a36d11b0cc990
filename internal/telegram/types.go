package telegram

import "encoding/json"

// Bot API types (subset used by the bridge).

// Update is one entry of a getUpdates result.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an inbound chat message. Text is nil for non-text payloads
// (photos, stickers, voice notes).
type Message struct {
	MessageID int64   `json:"message_id"`
	Date      int64   `json:"date,omitempty"`
	Chat      Chat    `json:"chat"`
	From      *User   `json:"from,omitempty"`
	Text      *string `json:"text,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// User is the sender of a message.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// GetUpdatesParams are query parameters for getUpdates.
type GetUpdatesParams struct {
	Offset         int64    // first update ID to return; 0 omits the parameter
	Timeout        int      // long-poll wait in seconds
	AllowedUpdates []string // e.g. ["message"]
}

// SendMessageRequest is the payload for sendMessage. ChatID is sent as a
// string, which the Bot API accepts for numeric IDs and @channel names.
type SendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// ChatActionRequest is the payload for sendChatAction.
type ChatActionRequest struct {
	ChatID string `json:"chat_id"`
	Action string `json:"action"`
}

// response is the envelope every Bot API method returns.
type response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Parse modes accepted by sendMessage.
const (
	ParseModeNone     = ""
	ParseModeMarkdown = "Markdown"
)

// ActionTyping is the chat action shown while a reply is generated.
const ActionTyping = "typing"
