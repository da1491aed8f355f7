// Package engine runs the ingest loop: raw reports in, normalized upserts
// into the spatial index, matches out to the dispatch coordinator. It also
// owns the periodic silence-window sweep that resolves quiet hazards.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ancjainil/Crisis-management/internal/domain"
	"github.com/ancjainil/Crisis-management/internal/index"
	"github.com/ancjainil/Crisis-management/internal/matcher"
	"github.com/ancjainil/Crisis-management/internal/observability"
)

// BatchExtractor reads up to batchSize raw reports from the ingest source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawReport, error)
}

// MatchSink receives notification obligations for delivery.
type MatchSink interface {
	Enqueue(ctx context.Context, matches []matcher.Match) error
}

// Config holds the engine loop's tunables.
type Config struct {
	BatchSize     int
	SilenceWindow time.Duration
	SweepInterval time.Duration
	Retention     time.Duration
}

// Engine wires extraction, normalization, indexing, and matching together.
type Engine struct {
	extractor BatchExtractor
	index     *index.Index
	matcher   *matcher.Matcher
	sink      MatchSink
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	cfg       Config
	ready     atomic.Bool
}

// New creates an Engine with the given stages and observability.
func New(
	extractor BatchExtractor,
	ix *index.Index,
	m *matcher.Matcher,
	sink MatchSink,
	logger *slog.Logger,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	cfg Config,
) *Engine {
	return &Engine{
		extractor: extractor,
		index:     ix,
		matcher:   m,
		sink:      sink,
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
		cfg:       cfg,
	}
}

// CheckReadiness returns nil once the engine has processed at least one
// report, or an error describing why the service is not yet ready.
func (e *Engine) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("engine has not processed any reports yet")
	}
	return nil
}

// Run executes the ingest loop and the stale sweep until the context is
// cancelled. No failure on the data path stops the loop; bad reports are
// dropped one at a time.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine started",
		"batch_size", e.cfg.BatchSize,
		"silence_window", e.cfg.SilenceWindow,
		"sweep_interval", e.cfg.SweepInterval,
	)
	e.metrics.EngineRunning.Set(1)
	defer e.metrics.EngineRunning.Set(0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.sweepLoop(ctx)
	}()

	// Exponential backoff on extractor failures: start at 200ms, double each
	// retry, cap at 5s. Keeps retry storms short without tight-looping
	// through a broker outage.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping", "reason", ctx.Err())
			wg.Wait()
			return nil
		default:
		}

		if !e.processBatch(ctx, &backoff, maxBackoff) {
			wg.Wait()
			return nil
		}
	}
}

// processBatch runs one extract-normalize-upsert-match cycle. Returns false
// if the engine should stop.
func (e *Engine) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	rawBatch, err := e.extractor.ExtractBatch(ctx, e.cfg.BatchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		e.logger.Error("extract batch failed", "error", err)
		return e.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	e.metrics.ReportsConsumed.Add(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	for _, raw := range rawBatch {
		if ctx.Err() != nil {
			return false
		}
		e.processReport(ctx, raw)
	}

	e.metrics.HazardsActive.Set(float64(e.index.ActiveHazardCount()))
	e.ready.Store(true)
	return true
}

// processReport normalizes and applies one raw report. Every failure is
// scoped to this report: log, count, commit the offset, move on.
func (e *Engine) processReport(ctx context.Context, raw domain.RawReport) {
	defer e.commitOffset(ctx, raw)

	report, err := domain.Normalize(raw.Value)
	if err != nil {
		e.metrics.NormalizeErrors.Inc()
		e.logger.Warn("normalize failed, dropping report",
			"error", err,
			"topic", raw.Topic,
			"partition", raw.Partition,
			"offset", raw.Offset,
		)
		return
	}

	outcome, err := e.index.Upsert(report)
	if err != nil {
		e.metrics.NormalizeErrors.Inc()
		e.logger.Warn("upsert failed, dropping report", "error", err, "id", report.ID)
		return
	}
	if !outcome.Applied {
		e.metrics.StaleSeqDrops.Inc()
		e.logger.Debug("stale sequence ignored", "id", report.ID, "seq", report.Seq)
		return
	}
	e.metrics.UpsertsApplied.Inc()

	// Resource positions never trigger alerts.
	if report.Kind != domain.ReportHazard {
		return
	}

	matches := e.matcher.Match(outcome.Hazard)
	if len(matches) == 0 {
		return
	}
	e.metrics.MatchesEmitted.Add(float64(len(matches)))

	if err := e.sink.Enqueue(ctx, matches); err != nil {
		e.logger.Warn("enqueue matches failed", "error", err, "hazard", report.ID)
	}
}

// sweepLoop resolves hazards that have gone silent and purges resolved ones
// past the retention horizon.
func (e *Engine) sweepLoop(ctx context.Context) {
	ticker := e.clock.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			start := time.Now()
			now := e.clock.Now()

			resolved := e.index.MarkStale(now, e.cfg.SilenceWindow)
			if len(resolved) > 0 {
				e.metrics.HazardsResolved.Add(float64(len(resolved)))
				e.logger.Info("resolved stale hazards", "count", len(resolved), "ids", resolved)
			}
			if purged := e.index.PurgeResolved(now, e.cfg.Retention); purged > 0 {
				e.logger.Info("purged resolved hazards past retention", "count", purged)
			}

			e.metrics.HazardsActive.Set(float64(e.index.ActiveHazardCount()))
			e.metrics.SweepDuration.Observe(time.Since(start).Seconds())
		}
	}
}

// backoffOrStop sleeps with the current backoff and advances it. Returns
// false if the engine should stop.
func (e *Engine) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	next := *backoff * 2
	if next > maxBackoff {
		next = maxBackoff
	}
	*backoff = next
	return true
}

// commitOffset commits the report offset if a commit function is available.
func (e *Engine) commitOffset(ctx context.Context, raw domain.RawReport) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		e.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
