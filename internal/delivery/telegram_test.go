package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Enriquefft/telegram-serving-bridge/internal/telegram"
)

// fakeBotAPI records Bot API calls made by the transport.
type fakeBotAPI struct {
	mu         sync.Mutex
	queries    []string
	sent       []telegram.SendMessageRequest
	actions    []telegram.ChatActionRequest
	rejectMD   bool
	updates    string
	webhookRaw string
}

func (f *fakeBotAPI) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	switch method {
	case "getUpdates":
		f.queries = append(f.queries, r.URL.RawQuery)
		w.Write([]byte(`{"ok":true,"result":` + f.updates + `}`))
	case "sendMessage":
		var req telegram.SendMessageRequest
		json.NewDecoder(r.Body).Decode(&req)
		if f.rejectMD && req.ParseMode == telegram.ParseModeMarkdown {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities: Can't find end of the entity"}`))
			return
		}
		f.sent = append(f.sent, req)
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	case "sendChatAction":
		var req telegram.ChatActionRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.actions = append(f.actions, req)
		w.Write([]byte(`{"ok":true,"result":true}`))
	case "deleteWebhook":
		f.webhookRaw = r.URL.RawQuery
		w.Write([]byte(`{"ok":true,"result":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
	}
}

func newFakeTransport(t *testing.T, f *fakeBotAPI) *Telegram {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.handler))
	t.Cleanup(srv.Close)
	return NewTelegram(telegram.NewClient("123:abc", srv.URL, srv.Client()))
}

func TestTelegramFetch(t *testing.T) {
	f := &fakeBotAPI{updates: `[
		{"update_id":101,"message":{"message_id":1,"chat":{"id":42},"from":{"id":42,"first_name":"Ada"},"text":"hello"}},
		{"update_id":102,"message":{"message_id":2,"chat":{"id":42},"sticker":{"file_id":"x"}}}
	]`}
	tr := newFakeTransport(t, f)

	events, err := tr.Fetch(context.Background(), 100, 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0] != (Event{ID: 101, ChatID: "42", Name: "Ada", Text: "hello", HasText: true}) {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].HasText {
		t.Errorf("sticker should not have text")
	}

	if len(f.queries) != 1 {
		t.Fatalf("queries = %v", f.queries)
	}
	if !strings.Contains(f.queries[0], "offset=101") {
		t.Errorf("query %q missing offset=101", f.queries[0])
	}
	if !strings.Contains(f.queries[0], "allowed_updates=%5B%22message%22%5D") {
		t.Errorf("query %q missing allowed_updates", f.queries[0])
	}
}

func TestTelegramFetchWait(t *testing.T) {
	f := &fakeBotAPI{updates: `[]`}
	tr := newFakeTransport(t, f)

	events, err := tr.Fetch(context.Background(), 0, 30*time.Second)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %+v, want none", events)
	}
	if !strings.Contains(f.queries[0], "timeout=30") || !strings.Contains(f.queries[0], "offset=1") {
		t.Errorf("query = %q", f.queries[0])
	}
}

func TestTelegramFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"ok":false,"error_code":409,"description":"Conflict: terminated by other getUpdates request"}`))
	}))
	defer srv.Close()
	tr := NewTelegram(telegram.NewClient("t", srv.URL, srv.Client()))

	if _, err := tr.Fetch(context.Background(), 0, 0); err == nil {
		t.Fatal("expected error for 409")
	}
}

func TestTelegramDeliverMarkdown(t *testing.T) {
	f := &fakeBotAPI{}
	tr := newFakeTransport(t, f)

	if err := tr.Deliver(context.Background(), "42", "**bold** answer"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(f.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.sent))
	}
	got := f.sent[0]
	if got.ChatID != "42" || got.Text != "*bold* answer" || got.ParseMode != telegram.ParseModeMarkdown {
		t.Errorf("sent = %+v", got)
	}
}

func TestTelegramDeliverKeepsEmphasisText(t *testing.T) {
	f := &fakeBotAPI{}
	tr := newFakeTransport(t, f)

	if err := tr.Deliver(context.Background(), "C1", "The answer is *definitely* 42, since 2 * 3 * 7 = 42."); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(f.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.sent))
	}
	want := "The answer is _definitely_ 42, since 2 * 3 * 7 = 42."
	if f.sent[0].Text != want {
		t.Errorf("text = %q, want %q", f.sent[0].Text, want)
	}
}

func TestTelegramDeliverPlainFallback(t *testing.T) {
	f := &fakeBotAPI{rejectMD: true}
	tr := newFakeTransport(t, f)

	if err := tr.Deliver(context.Background(), "42", "snake_case *unbalanced"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(f.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.sent))
	}
	if f.sent[0].ParseMode != telegram.ParseModeNone {
		t.Errorf("fallback parse mode = %q, want plain", f.sent[0].ParseMode)
	}
}

func TestTelegramDeliverLongTextIsChunked(t *testing.T) {
	f := &fakeBotAPI{}
	tr := newFakeTransport(t, f)

	para := strings.Repeat("word ", 500)
	text := para + "\n\n" + para + "\n\n" + para
	if err := tr.Deliver(context.Background(), "42", text); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(f.sent) < 2 {
		t.Fatalf("sent %d messages, want several", len(f.sent))
	}
	for i, m := range f.sent {
		if len(m.Text) > 4096 {
			t.Errorf("chunk %d is %d bytes", i, len(m.Text))
		}
	}
}

func TestTelegramDeliverError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer srv.Close()
	tr := NewTelegram(telegram.NewClient("t", srv.URL, srv.Client()))

	err := tr.Deliver(context.Background(), "42", "hi")
	if err == nil || !strings.Contains(err.Error(), "blocked") {
		t.Fatalf("err = %v, want blocked error", err)
	}
}

func TestTelegramIndicate(t *testing.T) {
	f := &fakeBotAPI{}
	tr := newFakeTransport(t, f)

	if err := tr.Indicate(context.Background(), "42"); err != nil {
		t.Fatalf("Indicate: %v", err)
	}
	if len(f.actions) != 1 || f.actions[0].Action != "typing" || f.actions[0].ChatID != "42" {
		t.Errorf("actions = %+v", f.actions)
	}
}

func TestTelegramClearWebhook(t *testing.T) {
	f := &fakeBotAPI{}
	tr := newFakeTransport(t, f)

	if err := tr.ClearWebhook(context.Background(), true); err != nil {
		t.Fatalf("ClearWebhook: %v", err)
	}
	if f.webhookRaw != "drop_pending_updates=true" {
		t.Errorf("query = %q", f.webhookRaw)
	}
}
