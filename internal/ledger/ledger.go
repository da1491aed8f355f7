// Package ledger is the durable record of dispatch attempts. One row per
// (hazard event, recipient, channel) key enforces the at-most-one-Sent
// dedup guarantee and carries the retry state machine.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ancjainil/Crisis-management/internal/domain"
)

var (
	// ErrAlreadyReserved signals the dedup gate held: another caller owns a
	// non-expired entry for the key. Benign; the caller skips dispatch.
	ErrAlreadyReserved = errors.New("dispatch key already reserved")

	// ErrNotFound indicates no ledger entry exists for the key.
	ErrNotFound = errors.New("dispatch entry not found")

	// ErrTerminalState indicates an attempt to mutate a Sent, Failed, or
	// Expired entry. Terminal states are immutable.
	ErrTerminalState = errors.New("dispatch entry is terminal")
)

// State is the delivery state of a ledger entry.
type State string

const (
	StatePending  State = "pending"
	StateSent     State = "sent"
	StateFailed   State = "failed"
	StateRetrying State = "retrying"
	StateExpired  State = "expired"
)

// Terminal reports whether the state is immutable.
func (s State) Terminal() bool {
	return s == StateSent || s == StateFailed || s == StateExpired
}

// Key is the dedup unit: one logical notification obligation.
type Key struct {
	HazardEventID string
	RecipientID   string
	Channel       domain.ChannelKind
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.HazardEventID, k.RecipientID, k.Channel)
}

// Outcome classifies one delivery attempt as reported by the coordinator.
type Outcome int

const (
	// OutcomeSent means the channel adapter accepted the message.
	OutcomeSent Outcome = iota
	// OutcomeTransient means the attempt failed retriably (timeout, rate limit).
	OutcomeTransient
	// OutcomePermanent means the attempt can never succeed (invalid contact).
	OutcomePermanent
)

// Entry is one ledger row.
type Entry struct {
	Key           Key
	TemplateID    string
	State         State
	AttemptCount  int
	LastAttemptAt time.Time
	NextRetryAt   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Backoff configures retry spacing: exponential growth from Base capped at
// Max, with +/- JitterFrac random jitter to spread retries against a
// rate-limited provider.
type Backoff struct {
	Base       time.Duration
	Max        time.Duration
	JitterFrac float64
}

// Limits bound how long an entry may keep retrying before expiring.
type Limits struct {
	MaxAttempts int
	MaxAge      time.Duration
}

// Ledger is a SQLite-backed dispatch ledger. Safe for concurrent use;
// reservation atomicity comes from the table's composite primary key.
type Ledger struct {
	db      *sql.DB
	clock   clockwork.Clock
	backoff Backoff
	limits  Limits
}

const schema = `
CREATE TABLE IF NOT EXISTS dispatches (
	hazard_event_id TEXT NOT NULL,
	recipient_id    TEXT NOT NULL,
	channel         TEXT NOT NULL,
	template_id     TEXT NOT NULL,
	state           TEXT NOT NULL,
	attempt_count   INTEGER NOT NULL DEFAULT 0,
	last_attempt_at TIMESTAMP,
	next_retry_at   TIMESTAMP,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL,
	PRIMARY KEY (hazard_event_id, recipient_id, channel)
);
CREATE INDEX IF NOT EXISTS idx_dispatches_due ON dispatches (state, next_retry_at);
`

// Open opens (creating if needed) the ledger database at path and applies
// the schema. Use ":memory:" for throwaway instances in tests.
func Open(path string, clock clockwork.Clock, backoff Backoff, limits Limits) (*Ledger, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	// A single writer connection sidesteps SQLITE_BUSY between goroutines;
	// SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger schema: %w", err)
	}

	return &Ledger{db: db, clock: clock, backoff: backoff, limits: limits}, nil
}

// Close releases the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Reserve creates the Pending entry for key, claiming the exclusive right to
// attempt delivery. It fails with ErrAlreadyReserved when an entry exists in
// any state other than Expired. An Expired entry blocks nothing: it is reset
// to Pending under the new template, which is how escalation tiers re-enter
// delivery after retries ran out.
func (l *Ledger) Reserve(ctx context.Context, key Key, templateID string) error {
	now := l.clock.Now().UTC()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", key, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO dispatches
		 (hazard_event_id, recipient_id, channel, template_id, state, attempt_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		key.HazardEventID, key.RecipientID, string(key.Channel), templateID, string(StatePending), now, now,
	)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return tx.Commit()
	}

	// Row exists. Only an expired one may be re-reserved.
	res, err = tx.ExecContext(ctx,
		`UPDATE dispatches
		 SET template_id = ?, state = ?, attempt_count = 0,
		     last_attempt_at = NULL, next_retry_at = NULL, created_at = ?, updated_at = ?
		 WHERE hazard_event_id = ? AND recipient_id = ? AND channel = ? AND state = ?`,
		templateID, string(StatePending), now, now,
		key.HazardEventID, key.RecipientID, string(key.Channel), string(StateExpired),
	)
	if err != nil {
		return fmt.Errorf("reserve %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return tx.Commit()
	}
	return fmt.Errorf("%w: %s", ErrAlreadyReserved, key)
}

// RecordAttempt applies one delivery attempt's outcome to the entry's state
// machine and returns the updated entry:
//
//	Pending/Retrying + Sent      -> Sent (terminal)
//	Pending/Retrying + Permanent -> Failed (terminal)
//	Pending/Retrying + Transient -> Retrying with backoff, or Expired once
//	                                attempt or age limits are exceeded
func (l *Ledger) RecordAttempt(ctx context.Context, key Key, outcome Outcome) (Entry, error) {
	now := l.clock.Now().UTC()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("record attempt %s: %w", key, err)
	}
	defer tx.Rollback() //nolint:errcheck

	entry, err := scanEntry(tx.QueryRowContext(ctx, selectEntry+whereKey, keyArgs(key)...))
	if err != nil {
		return Entry{}, err
	}
	if entry.State.Terminal() {
		return Entry{}, fmt.Errorf("%w: %s is %s", ErrTerminalState, key, entry.State)
	}

	entry.AttemptCount++
	entry.LastAttemptAt = now
	entry.UpdatedAt = now
	entry.NextRetryAt = time.Time{}

	switch outcome {
	case OutcomeSent:
		entry.State = StateSent
	case OutcomePermanent:
		entry.State = StateFailed
	case OutcomeTransient:
		if entry.AttemptCount >= l.limits.MaxAttempts || now.Sub(entry.CreatedAt) >= l.limits.MaxAge {
			entry.State = StateExpired
		} else {
			entry.State = StateRetrying
			entry.NextRetryAt = now.Add(l.retryDelay(entry.AttemptCount))
		}
	default:
		return Entry{}, fmt.Errorf("record attempt %s: unknown outcome %d", key, outcome)
	}

	var nextRetry any
	if !entry.NextRetryAt.IsZero() {
		nextRetry = entry.NextRetryAt
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE dispatches
		 SET state = ?, attempt_count = ?, last_attempt_at = ?, next_retry_at = ?, updated_at = ?`+whereKey,
		append([]any{string(entry.State), entry.AttemptCount, now, nextRetry, now}, keyArgs(key)...)...,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("record attempt %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("record attempt %s: %w", key, err)
	}
	return entry, nil
}

// DueRetries returns up to limit Retrying entries whose next_retry_at has
// passed, soonest first.
func (l *Ledger) DueRetries(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		selectEntry+` WHERE state = ? AND next_retry_at <= ? ORDER BY next_retry_at, hazard_event_id LIMIT ?`,
		string(StateRetrying), now.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query due retries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ExpireOverdue transitions entries past the ledger's age cap to Expired and
// returns how many it moved. Retrying entries expire per the retry policy;
// Pending entries expire too, so a reservation orphaned by a crash cannot
// block its key forever.
func (l *Ledger) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	res, err := l.db.ExecContext(ctx,
		`UPDATE dispatches SET state = ?, next_retry_at = NULL, updated_at = ?
		 WHERE state IN (?, ?) AND created_at <= ?`,
		string(StateExpired), now.UTC(),
		string(StateRetrying), string(StatePending), now.UTC().Add(-l.limits.MaxAge),
	)
	if err != nil {
		return 0, fmt.Errorf("expire overdue: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Get returns the entry for key, or ErrNotFound.
func (l *Ledger) Get(ctx context.Context, key Key) (Entry, error) {
	return scanEntry(l.db.QueryRowContext(ctx, selectEntry+whereKey, keyArgs(key)...))
}

// CountByState returns entry counts per state, for the operational summary
// endpoint and gauges.
func (l *Ledger) CountByState(ctx context.Context) (map[State]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM dispatches GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[State]int)
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("count by state: %w", err)
		}
		counts[State(s)] = n
	}
	return counts, rows.Err()
}

// retryDelay computes the backoff before the next attempt: Base doubled per
// completed attempt, capped at Max, with symmetric jitter.
func (l *Ledger) retryDelay(attempts int) time.Duration {
	d := l.backoff.Base
	for i := 1; i < attempts && d < l.backoff.Max; i++ {
		d *= 2
	}
	if d > l.backoff.Max {
		d = l.backoff.Max
	}
	if l.backoff.JitterFrac > 0 {
		jitter := (rand.Float64()*2 - 1) * l.backoff.JitterFrac
		d = time.Duration(float64(d) * (1 + jitter))
		if d < time.Millisecond {
			d = time.Millisecond
		}
	}
	return d
}

const (
	selectEntry = `SELECT hazard_event_id, recipient_id, channel, template_id, state,
	attempt_count, last_attempt_at, next_retry_at, created_at, updated_at FROM dispatches`
	whereKey = ` WHERE hazard_event_id = ? AND recipient_id = ? AND channel = ?`
)

func keyArgs(key Key) []any {
	return []any{key.HazardEventID, key.RecipientID, string(key.Channel)}
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e           Entry
		channel     string
		state       string
		lastAttempt sql.NullTime
		nextRetry   sql.NullTime
	)
	err := row.Scan(
		&e.Key.HazardEventID, &e.Key.RecipientID, &channel, &e.TemplateID, &state,
		&e.AttemptCount, &lastAttempt, &nextRetry, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("scan dispatch entry: %w", err)
	}
	e.Key.Channel = domain.ChannelKind(channel)
	e.State = State(state)
	if lastAttempt.Valid {
		e.LastAttemptAt = lastAttempt.Time
	}
	if nextRetry.Valid {
		e.NextRetryAt = nextRetry.Time
	}
	return e, nil
}
