// Package index maintains the live spatial state of hazards and resource
// assets. It is the single owner of that storage: all reads return copies
// and all mutation goes through Upsert / MarkStale / PurgeResolved.
package index

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ancjainil/Crisis-management/internal/domain"
)

// Index is the in-memory spatial index. Safe for concurrent use; reads copy
// state under a read lock so long computations (heatmaps) never hold up
// writers.
type Index struct {
	mu        sync.RWMutex
	hazards   map[string]*domain.HazardEvent
	resources map[string]*domain.ResourceAsset
	clock     clockwork.Clock
}

// New creates an empty index using the given time source.
func New(clock clockwork.Clock) *Index {
	return &Index{
		hazards:   make(map[string]*domain.HazardEvent),
		resources: make(map[string]*domain.ResourceAsset),
		clock:     clock,
	}
}

// UpsertOutcome describes the effect of an upsert.
type UpsertOutcome struct {
	// Applied is false when the report carried a sequence number older than
	// the stored one and was ignored.
	Applied bool
	// Created is true when this was the first report for the id.
	Created bool
	// Hazard is the post-upsert state when the report was a hazard report.
	Hazard domain.HazardEvent
	// Resource is the post-upsert state when the report was a resource report.
	Resource domain.ResourceAsset
}

// Upsert inserts or updates the entity identified by the report's id.
// Per-id ordering uses the report sequence number: a report whose seq is
// not newer than the stored one is ignored (Applied=false), which makes
// out-of-order delivery from upstream feeds harmless. Identity never
// changes; only position, intensity, and timestamps do.
//
// A hazard that was Resolved by the silence sweep returns to Active when a
// newer-sequence report arrives for it.
func (ix *Index) Upsert(report domain.CanonicalReport) (UpsertOutcome, error) {
	if !domain.ValidGeo(report.Geo()) {
		return UpsertOutcome{}, fmt.Errorf("%w: lat=%v lon=%v", domain.ErrInvalidGeometry, report.Lat, report.Lon)
	}

	switch report.Kind {
	case domain.ReportHazard:
		return ix.upsertHazard(report)
	case domain.ReportResource:
		return ix.upsertResource(report)
	default:
		return UpsertOutcome{}, fmt.Errorf("%w: kind %q", domain.ErrMalformedReport, report.Kind)
	}
}

func (ix *Index) upsertHazard(report domain.CanonicalReport) (UpsertOutcome, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	now := ix.clock.Now().UTC()

	existing, ok := ix.hazards[report.ID]
	if !ok {
		h := &domain.HazardEvent{
			ID:            report.ID,
			Geo:           report.Geo(),
			Intensity:     report.Intensity,
			Seq:           report.Seq,
			Location:      report.Location,
			Status:        domain.HazardActive,
			FirstSeenAt:   now,
			LastUpdatedAt: now,
		}
		ix.hazards[report.ID] = h
		return UpsertOutcome{Applied: true, Created: true, Hazard: *h}, nil
	}

	if report.Seq <= existing.Seq {
		return UpsertOutcome{Hazard: *existing}, nil
	}

	existing.Geo = report.Geo()
	existing.Intensity = report.Intensity
	existing.Seq = report.Seq
	if report.Location != "" {
		existing.Location = report.Location
	}
	existing.Status = domain.HazardActive
	existing.ResolvedAt = time.Time{}
	existing.LastUpdatedAt = now
	return UpsertOutcome{Applied: true, Hazard: *existing}, nil
}

func (ix *Index) upsertResource(report domain.CanonicalReport) (UpsertOutcome, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	now := ix.clock.Now().UTC()

	existing, ok := ix.resources[report.ID]
	if !ok {
		r := &domain.ResourceAsset{
			ID:            report.ID,
			Geo:           report.Geo(),
			Type:          report.ResourceType,
			Label:         report.Label,
			Seq:           report.Seq,
			LastUpdatedAt: now,
		}
		ix.resources[report.ID] = r
		return UpsertOutcome{Applied: true, Created: true, Resource: *r}, nil
	}

	if report.Seq <= existing.Seq {
		return UpsertOutcome{Resource: *existing}, nil
	}

	existing.Geo = report.Geo()
	if report.ResourceType != "" {
		existing.Type = report.ResourceType
	}
	if report.Label != "" {
		existing.Label = report.Label
	}
	existing.Seq = report.Seq
	existing.LastUpdatedAt = now
	return UpsertOutcome{Applied: true, Resource: *existing}, nil
}

// RangeResult holds the active entities found within a query radius,
// each slice ordered by id for reproducible results on a fixed snapshot.
type RangeResult struct {
	Hazards   []domain.HazardEvent
	Resources []domain.ResourceAsset
}

// QueryRange returns all active entities within radiusM meters of center,
// by great-circle distance.
func (ix *Index) QueryRange(center domain.Geo, radiusM float64) RangeResult {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out RangeResult
	for _, h := range ix.hazards {
		if h.Status != domain.HazardActive {
			continue
		}
		if domain.DistanceM(center, h.Geo) <= radiusM {
			out.Hazards = append(out.Hazards, *h)
		}
	}
	for _, r := range ix.resources {
		if domain.DistanceM(center, r.Geo) <= radiusM {
			out.Resources = append(out.Resources, *r)
		}
	}

	sort.Slice(out.Hazards, func(i, j int) bool { return out.Hazards[i].ID < out.Hazards[j].ID })
	sort.Slice(out.Resources, func(i, j int) bool { return out.Resources[i].ID < out.Resources[j].ID })
	return out
}

// MarkStale transitions hazards whose last update is older than the silence
// window from Active to Resolved and returns their ids. This is the only
// path that resolves a hazard.
func (ix *Index) MarkStale(now time.Time, silenceWindow time.Duration) []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	cutoff := now.Add(-silenceWindow)
	var resolved []string
	for id, h := range ix.hazards {
		if h.Status == domain.HazardActive && h.LastUpdatedAt.Before(cutoff) {
			h.Status = domain.HazardResolved
			h.ResolvedAt = now.UTC()
			resolved = append(resolved, id)
		}
	}
	sort.Strings(resolved)
	return resolved
}

// PurgeResolved deletes resolved hazards older than the retention horizon
// and returns how many were removed. Resolved hazards are kept around until
// then to support audit queries.
func (ix *Index) PurgeResolved(now time.Time, retention time.Duration) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	cutoff := now.Add(-retention)
	removed := 0
	for id, h := range ix.hazards {
		if h.Status == domain.HazardResolved && h.ResolvedAt.Before(cutoff) {
			delete(ix.hazards, id)
			removed++
		}
	}
	return removed
}

// ActiveHazards returns a copy of all active hazards, ordered by id.
func (ix *Index) ActiveHazards() []domain.HazardEvent {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]domain.HazardEvent, 0, len(ix.hazards))
	for _, h := range ix.hazards {
		if h.Status == domain.HazardActive {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveResources returns a copy of all resource assets, ordered by id.
func (ix *Index) ActiveResources() []domain.ResourceAsset {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]domain.ResourceAsset, 0, len(ix.resources))
	for _, r := range ix.resources {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Hazard returns the current state of a single hazard.
func (ix *Index) Hazard(id string) (domain.HazardEvent, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	h, ok := ix.hazards[id]
	if !ok {
		return domain.HazardEvent{}, false
	}
	return *h, true
}

// ActiveHazardCount reports the number of active hazards, for gauges.
func (ix *Index) ActiveHazardCount() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := 0
	for _, h := range ix.hazards {
		if h.Status == domain.HazardActive {
			n++
		}
	}
	return n
}
