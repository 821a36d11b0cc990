// Package poller runs the long-polling dispatch loop: fetch inbound events
// after the cursor, route each one to a command handler or the generation
// service, and answer in the originating chat.
package poller

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Enriquefft/telegram-serving-bridge/internal/config"
	"github.com/Enriquefft/telegram-serving-bridge/internal/delivery"
	"github.com/Enriquefft/telegram-serving-bridge/internal/security"
	"github.com/Enriquefft/telegram-serving-bridge/internal/serving"
)

// Generator turns user text into a reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Poller owns the update cursor and processes batches strictly in order on
// the goroutine that calls Run.
type Poller struct {
	Transport delivery.Transport
	Generator Generator
	Guard     *security.Guard // nil allows every chat

	Endpoint    string // reported by /status
	Interval    time.Duration
	Wait        time.Duration
	Cooldown    time.Duration
	DropPending bool

	cursor    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	running   atomic.Bool
	startedAt atomic.Int64 // unix nanoseconds

	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

// New creates a Poller with timings from cfg.
func New(transport delivery.Transport, gen Generator, endpoint string, cfg config.PollingConfig) *Poller {
	return &Poller{
		Transport: transport,
		Generator: gen,
		Endpoint:  endpoint,
		Interval:  time.Duration(cfg.Interval) * time.Second,
		Wait:      time.Duration(cfg.Wait) * time.Second,
		Cooldown:  time.Duration(cfg.Cooldown) * time.Second,
		sleep:     sleepCtx,
		newID:     uuid.NewString,
	}
}

// Run clears any webhook and polls until ctx is cancelled, returning
// ctx.Err(). Fetch errors are logged and retried after the cooldown.
// Cancellation is observed between iterations; a batch already fetched is
// processed to completion and confirmed before Run returns.
func (p *Poller) Run(ctx context.Context) error {
	if p.sleep == nil {
		p.sleep = sleepCtx
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}

	p.startedAt.Store(time.Now().UnixNano())
	p.running.Store(true)
	defer p.running.Store(false)
	defer p.confirm(ctx)

	if err := p.Transport.ClearWebhook(ctx, p.DropPending); err != nil {
		log.Warnf("could not clear webhook: %v", err)
	}

	log.WithFields(log.Fields{
		"endpoint": p.Endpoint,
		"interval": p.Interval,
		"wait":     p.Wait,
	}).Info("polling started")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		delay := p.Interval
		if err := p.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Errorf("poll error: %v", err)
			delay = p.Cooldown
		}

		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// poll runs one fetch and dispatches the batch. Only fetch errors are
// returned.
func (p *Poller) poll(ctx context.Context) error {
	events, err := p.Transport.Fetch(ctx, p.cursor.Load(), p.Wait)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	p.advance(events)

	batchCtx := context.WithoutCancel(ctx)
	for _, evt := range events {
		p.process(batchCtx, evt)
	}

	log.Debugf("processed batch of %d update(s), cursor %d", len(events), p.cursor.Load())
	return nil
}

// confirmTimeout bounds the acknowledgement fetch issued on shutdown.
const confirmTimeout = 5 * time.Second

// confirm acknowledges updates up to the cursor with a non-blocking fetch.
// Telegram forgets an update only once a later offset is requested. Updates
// this fetch returns stay unconfirmed.
func (p *Poller) confirm(ctx context.Context) {
	cursor := p.cursor.Load()
	if cursor == 0 {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), confirmTimeout)
	defer cancel()
	if _, err := p.Transport.Fetch(cctx, cursor, 0); err != nil {
		log.Warnf("could not confirm updates up to %d: %v", cursor, err)
		return
	}
	log.Debugf("confirmed updates up to %d", cursor)
}

// advance moves the cursor to the batch maximum. The cursor never moves
// backwards.
func (p *Poller) advance(events []delivery.Event) {
	maxID := p.cursor.Load()
	for _, evt := range events {
		if evt.ID > maxID {
			maxID = evt.ID
		}
	}
	p.cursor.Store(maxID)
}

// process handles one event. A panic is contained here and answered with a
// generic apology.
func (p *Poller) process(ctx context.Context, evt delivery.Event) {
	if !evt.HasText {
		log.WithField("update_id", evt.ID).Debug("skipping update without text")
		return
	}

	logger := log.WithFields(log.Fields{
		"update_id": evt.ID,
		"chat_id":   evt.ChatID,
	})

	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			logger.WithField("panic", r).Error("event handling panicked")
			p.reply(ctx, logger, evt.ChatID, replyInternalError)
		}
	}()

	cmd := delivery.Classify(evt.Text)
	logger = logger.WithField("command", cmd)

	switch cmd {
	case delivery.CommandStart:
		p.reply(ctx, logger, evt.ChatID, replyWelcome)
	case delivery.CommandHelp:
		p.reply(ctx, logger, evt.ChatID, replyHelp)
	case delivery.CommandStatus:
		p.reply(ctx, logger, evt.ChatID, fmt.Sprintf(replyStatus, p.Endpoint, ModePolling, p.cursor.Load()))
	default:
		if !p.generate(ctx, logger, evt) {
			p.failed.Add(1)
			return
		}
	}
	p.processed.Add(1)
}

// generate answers free text through the Generator. It reports false when
// the reply is an apology for a failed generation.
func (p *Poller) generate(ctx context.Context, logger *log.Entry, evt delivery.Event) bool {
	if p.Guard != nil {
		switch v := p.Guard.Check(evt.ChatID); v {
		case security.Deny:
			logger.WithField("verdict", v).Warn("chat not allowed")
			p.reply(ctx, logger, evt.ChatID, p.Guard.DenyMessage())
			return true
		case security.RateLimited:
			logger.WithField("verdict", v).Warn("chat rate limited")
			p.reply(ctx, logger, evt.ChatID, replyRateLimited)
			return true
		}
	}

	if err := p.Transport.Indicate(ctx, evt.ChatID); err != nil {
		logger.Debugf("typing indicator: %v", err)
	}

	id := p.newID()
	logger = logger.WithField("request_id", id)
	logger.Infof("generating reply for %s (%d chars)", evt.Name, len(evt.Text))

	text, err := p.Generator.Generate(serving.WithRequestID(ctx, id), evt.Text)
	if err != nil {
		logger.Errorf("generation failed: %v", err)
		p.reply(ctx, logger, evt.ChatID, fmt.Sprintf(replyGenerationFailed, err.Error()))
		return false
	}

	p.reply(ctx, logger, evt.ChatID, text)
	return true
}

// reply delivers text best-effort. Delivery errors and panics are logged
// only.
func (p *Poller) reply(ctx context.Context, logger *log.Entry, chatID, text string) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("reply delivery panicked")
		}
	}()

	if err := p.Transport.Deliver(ctx, chatID, text); err != nil {
		logger.Errorf("send reply: %v", err)
	}
}

// Cursor returns the ID of the last fetched update.
func (p *Poller) Cursor() int64 {
	return p.cursor.Load()
}

// Status is a point-in-time snapshot of the dispatcher.
type Status struct {
	Running   bool      `json:"running"`
	Endpoint  string    `json:"endpoint"`
	Mode      string    `json:"mode"`
	Cursor    int64     `json:"last_update_id"`
	Processed int64     `json:"processed"`
	Failed    int64     `json:"failed"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Status is safe to call from any goroutine.
func (p *Poller) Status() Status {
	s := Status{
		Running:   p.running.Load(),
		Endpoint:  p.Endpoint,
		Mode:      ModePolling,
		Cursor:    p.cursor.Load(),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
	if ns := p.startedAt.Load(); ns != 0 {
		s.StartedAt = time.Unix(0, ns).UTC()
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
