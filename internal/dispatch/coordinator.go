// Package dispatch drives alert delivery: it consumes matches, holds the
// ledger's dedup gate, invokes channel adapters under a timeout, and keeps
// retrying transient failures until the ledger says stop.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ancjainil/Crisis-management/internal/channel"
	"github.com/ancjainil/Crisis-management/internal/domain"
	"github.com/ancjainil/Crisis-management/internal/ledger"
	"github.com/ancjainil/Crisis-management/internal/matcher"
	"github.com/ancjainil/Crisis-management/internal/observability"
)

// RecipientSource resolves recipient ids, needed when re-attempting from the
// ledger where only the id survives.
type RecipientSource interface {
	Recipient(id string) (domain.Recipient, bool)
}

// TemplateSource resolves template ids stored in ledger entries.
type TemplateSource interface {
	Template(id string) (domain.AlertTemplate, bool)
}

// HazardSource resolves hazard ids for message rendering. A hazard may have
// been resolved, or even purged, by the time a retry fires; delivery
// proceeds regardless.
type HazardSource interface {
	Hazard(id string) (domain.HazardEvent, bool)
}

// Config bounds the coordinator's concurrency and retry cadence.
type Config struct {
	// Workers is the number of concurrent delivery workers; it is the
	// engine-side bound on in-flight provider calls.
	Workers int
	// QueueSize is the match queue capacity. Enqueue blocks when full,
	// backpressuring the ingest loop rather than dropping obligations.
	QueueSize int
	// SendTimeout bounds a single adapter call. A timeout is a transient failure.
	SendTimeout time.Duration
	// RetryInterval is how often the retry scheduler wakes.
	RetryInterval time.Duration
	// RetryBatch caps how many due entries one scheduler pass re-attempts.
	RetryBatch int
}

// Coordinator consumes matches and completes them through the ledger and
// channel adapters.
type Coordinator struct {
	ledger     *ledger.Ledger
	adapters   map[domain.ChannelKind]channel.Adapter
	recipients RecipientSource
	templates  TemplateSource
	hazards    HazardSource
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
	cfg        Config

	matches chan matcher.Match
}

// New creates a Coordinator. Adapters are keyed by their channel kind; a
// recipient preferring a channel with no adapter configured fails that
// channel permanently and falls through its preference list.
func New(
	led *ledger.Ledger,
	adapters []channel.Adapter,
	recipients RecipientSource,
	templates TemplateSource,
	hazards HazardSource,
	logger *slog.Logger,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	cfg Config,
) *Coordinator {
	byKind := make(map[domain.ChannelKind]channel.Adapter, len(adapters))
	for _, a := range adapters {
		byKind[a.Kind()] = a
	}
	return &Coordinator{
		ledger:     led,
		adapters:   byKind,
		recipients: recipients,
		templates:  templates,
		hazards:    hazards,
		logger:     logger,
		metrics:    metrics,
		clock:      clock,
		cfg:        cfg,
		matches:    make(chan matcher.Match, cfg.QueueSize),
	}
}

// Enqueue hands matches to the delivery workers. It blocks when the queue is
// full and returns early only on context cancellation.
func (c *Coordinator) Enqueue(ctx context.Context, matches []matcher.Match) error {
	for _, m := range matches {
		select {
		case c.matches <- m:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Run starts the worker pool and the retry scheduler and blocks until the
// context is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.workerLoop(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.retryLoop(ctx)
	}()

	wg.Wait()
	return nil
}

func (c *Coordinator) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.matches:
			c.handleMatch(ctx, m)
		}
	}
}

// handleMatch attempts delivery on the recipient's primary channel. The
// reserve call is the dedup gate: losing it means another path already owns
// this obligation, which is the system working, not an error.
func (c *Coordinator) handleMatch(ctx context.Context, m matcher.Match) {
	c.deliver(ctx, m.Hazard, m.Recipient, m.Template, 0)
}

// deliver reserves and attempts the recipient's channel at position chIdx in
// their preference list, falling through to the next channel only when this
// one's ledger entry lands terminal without a Sent.
func (c *Coordinator) deliver(ctx context.Context, h domain.HazardEvent, rec domain.Recipient, tmpl domain.AlertTemplate, chIdx int) {
	if chIdx >= len(rec.Channels) {
		return
	}
	kind := rec.Channels[chIdx]
	key := ledger.Key{HazardEventID: h.ID, RecipientID: rec.ID, Channel: kind}

	if err := c.ledger.Reserve(ctx, key, tmpl.ID); err != nil {
		if errors.Is(err, ledger.ErrAlreadyReserved) {
			c.metrics.DedupSkips.Inc()
			return
		}
		c.logger.Error("ledger reserve failed", "key", key.String(), "error", err)
		return
	}

	entry, err := c.attempt(ctx, key, h, rec, tmpl)
	if err != nil {
		c.logger.Error("record attempt failed", "key", key.String(), "error", err)
		return
	}

	if entry.State.Terminal() && entry.State != ledger.StateSent {
		c.deliver(ctx, h, rec, tmpl, chIdx+1)
	}
}

// attempt performs one adapter call for an already-reserved key and records
// its outcome.
func (c *Coordinator) attempt(ctx context.Context, key ledger.Key, h domain.HazardEvent, rec domain.Recipient, tmpl domain.AlertTemplate) (ledger.Entry, error) {
	adapter, ok := c.adapters[key.Channel]
	contact := rec.ContactRef(key.Channel)
	if !ok || contact == "" {
		c.metrics.DispatchAttempts.WithLabelValues(string(key.Channel), "permanent").Inc()
		return c.ledger.RecordAttempt(ctx, key, ledger.OutcomePermanent)
	}

	message := tmpl.Render(h)
	ref := uuid.NewString()

	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
	start := time.Now()
	sendErr := adapter.Send(sendCtx, contact, message, ref)
	cancel()
	c.metrics.DispatchDuration.WithLabelValues(string(key.Channel)).Observe(time.Since(start).Seconds())

	outcome := classify(sendErr)
	c.metrics.DispatchAttempts.WithLabelValues(string(key.Channel), outcomeLabel(outcome)).Inc()

	if sendErr != nil {
		c.logger.Warn("delivery attempt failed",
			"key", key.String(),
			"channel", key.Channel,
			"outcome", outcomeLabel(outcome),
			"error", sendErr,
		)
	}

	entry, err := c.ledger.RecordAttempt(ctx, key, outcome)
	if err != nil {
		return ledger.Entry{}, err
	}
	if entry.State == ledger.StateExpired {
		c.metrics.LedgerExpired.Inc()
	}
	return entry, nil
}

// retryLoop periodically expires overdue entries and re-attempts due
// retries. Retries run on the scheduler goroutine itself; RetryBatch bounds
// the work per pass.
func (c *Coordinator) retryLoop(ctx context.Context) {
	ticker := c.clock.NewTicker(c.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.runRetryPass(ctx)
		}
	}
}

func (c *Coordinator) runRetryPass(ctx context.Context) {
	now := c.clock.Now()

	expired, err := c.ledger.ExpireOverdue(ctx, now)
	if err != nil {
		c.logger.Error("expire overdue failed", "error", err)
	} else if expired > 0 {
		c.metrics.LedgerExpired.Add(float64(expired))
		c.logger.Info("expired overdue dispatches", "count", expired)
	}

	due, err := c.ledger.DueRetries(ctx, now, c.cfg.RetryBatch)
	if err != nil {
		c.logger.Error("query due retries failed", "error", err)
		return
	}

	for _, entry := range due {
		if ctx.Err() != nil {
			return
		}
		c.retryEntry(ctx, entry)
	}

	if counts, err := c.ledger.CountByState(ctx); err == nil {
		c.metrics.RetryQueueDepth.Set(float64(counts[ledger.StateRetrying]))
	}
}

// retryEntry re-attempts one due ledger entry. The recipient or template may
// have been removed since reservation; that is a permanent failure for this
// key. A hazard that resolved mid-retry cancels nothing, since subsided
// hazards are still worth telling people about; a missing hazard renders
// from the id alone.
func (c *Coordinator) retryEntry(ctx context.Context, entry ledger.Entry) {
	rec, ok := c.recipients.Recipient(entry.Key.RecipientID)
	if !ok {
		if _, err := c.ledger.RecordAttempt(ctx, entry.Key, ledger.OutcomePermanent); err != nil {
			c.logger.Error("record attempt failed", "key", entry.Key.String(), "error", err)
		}
		return
	}
	tmpl, ok := c.templates.Template(entry.TemplateID)
	if !ok {
		if _, err := c.ledger.RecordAttempt(ctx, entry.Key, ledger.OutcomePermanent); err != nil {
			c.logger.Error("record attempt failed", "key", entry.Key.String(), "error", err)
		}
		return
	}

	h, ok := c.hazards.Hazard(entry.Key.HazardEventID)
	if !ok {
		h = domain.HazardEvent{ID: entry.Key.HazardEventID}
	}

	updated, err := c.attempt(ctx, entry.Key, h, rec, tmpl)
	if err != nil {
		c.logger.Error("retry attempt failed", "key", entry.Key.String(), "error", err)
		return
	}

	if updated.State.Terminal() && updated.State != ledger.StateSent {
		idx := channelIndex(rec, entry.Key.Channel)
		if idx >= 0 {
			c.deliver(ctx, h, rec, tmpl, idx+1)
		}
	}
}

func channelIndex(rec domain.Recipient, kind domain.ChannelKind) int {
	for i, ch := range rec.Channels {
		if ch == kind {
			return i
		}
	}
	return -1
}

// classify maps a Send error onto a ledger outcome.
func classify(err error) ledger.Outcome {
	switch {
	case err == nil:
		return ledger.OutcomeSent
	case channel.IsPermanent(err):
		return ledger.OutcomePermanent
	default:
		return ledger.OutcomeTransient
	}
}

func outcomeLabel(o ledger.Outcome) string {
	switch o {
	case ledger.OutcomeSent:
		return "sent"
	case ledger.OutcomePermanent:
		return "permanent"
	default:
		return "transient"
	}
}
