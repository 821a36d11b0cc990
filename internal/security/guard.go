package security

import (
	"strings"
	"sync"
	"time"

	"github.com/Enriquefft/telegram-serving-bridge/internal/config"
)

// Verdict represents the outcome of a guard check.
type Verdict int

const (
	Allow Verdict = iota
	Deny
	RateLimited
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// bucket tracks rate limit state for a single chat.
type bucket struct {
	tokens    int
	windowEnd time.Time
}

// Guard enforces the chat allowlist and per-chat rate limiting in front of
// the generation service.
type Guard struct {
	mode        string
	allowed     map[string]struct{}
	denyMessage string
	rateLimit   int
	rateWindow  time.Duration
	now         func() time.Time
	mu          sync.Mutex
	buckets     map[string]*bucket
}

// New creates a Guard from the security config.
func New(cfg config.SecurityConfig) *Guard {
	allowed := make(map[string]struct{}, len(cfg.AllowedChats))
	for _, id := range cfg.AllowedChats {
		allowed[normalize(id)] = struct{}{}
	}

	return &Guard{
		mode:        cfg.Mode,
		allowed:     allowed,
		denyMessage: cfg.DenyMessage,
		rateLimit:   cfg.RateLimit,
		rateWindow:  time.Duration(cfg.RateWindow) * time.Second,
		now:         time.Now,
		buckets:     make(map[string]*bucket),
	}
}

// Check returns Allow, Deny, or RateLimited for the given chat ID. A zero
// rate limit disables rate limiting.
func (g *Guard) Check(chatID string) Verdict {
	n := normalize(chatID)

	if g.mode == "allowlist" {
		if _, ok := g.allowed[n]; !ok {
			return Deny
		}
	}

	if g.rateLimit <= 0 {
		return Allow
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	b, ok := g.buckets[n]
	if !ok || now.After(b.windowEnd) {
		g.buckets[n] = &bucket{
			tokens:    g.rateLimit - 1,
			windowEnd: now.Add(g.rateWindow),
		}
		return Allow
	}

	if b.tokens <= 0 {
		return RateLimited
	}
	b.tokens--
	return Allow
}

// DenyMessage returns the configured denial message.
func (g *Guard) DenyMessage() string {
	return g.denyMessage
}

// normalize trims whitespace; Telegram chat IDs are otherwise compared
// verbatim (group IDs keep their leading minus sign).
func normalize(chatID string) string {
	return strings.TrimSpace(chatID)
}
