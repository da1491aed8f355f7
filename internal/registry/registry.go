// Package registry stores recipients and alert templates and answers the
// purely geometric question of who is affected by a hazard. It knows nothing
// about channels or providers.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ancjainil/Crisis-management/internal/domain"
)

var (
	// ErrInvalidRecipient indicates a recipient failed validation on register.
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrInvalidTemplate indicates a template failed validation.
	ErrInvalidTemplate = errors.New("invalid template")

	// ErrTemplateExists indicates an attempt to overwrite a stored template.
	// Templates are immutable; new content requires a new id.
	ErrTemplateExists = errors.New("template already exists")
)

// snapshot is an immutable view of registry state. Writers build a fresh one
// under the write mutex and publish it atomically; readers never lock.
type snapshot struct {
	recipients map[string]domain.Recipient
	templates  map[string]domain.AlertTemplate
}

// Registry is a copy-on-write store. The recipient population is read on
// every hazard update and mutated rarely, so reads are lock-free snapshot
// loads while writes copy the full map.
type Registry struct {
	writeMu sync.Mutex
	state   atomic.Pointer[snapshot]
	impact  domain.ImpactMapping
}

// New creates an empty registry using the given intensity-to-radius mapping.
func New(impact domain.ImpactMapping) *Registry {
	r := &Registry{impact: impact}
	r.state.Store(&snapshot{
		recipients: map[string]domain.Recipient{},
		templates:  map[string]domain.AlertTemplate{},
	})
	return r
}

// Register adds or replaces a recipient.
func (r *Registry) Register(rec domain.Recipient) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRecipient)
	}
	if rec.Geofence.RadiusM <= 0 {
		return fmt.Errorf("%w: geofence radius must be positive", ErrInvalidRecipient)
	}
	if !domain.ValidGeo(rec.Geofence.Center) {
		return fmt.Errorf("%w: geofence center out of bounds", ErrInvalidRecipient)
	}
	if len(rec.Channels) == 0 {
		return fmt.Errorf("%w: at least one channel is required", ErrInvalidRecipient)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	next := r.state.Load().withRecipient(rec)
	r.state.Store(next)
	return nil
}

// Unregister removes a recipient. Removing an unknown id is a no-op.
func (r *Registry) Unregister(id string) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	cur := r.state.Load()
	if _, ok := cur.recipients[id]; !ok {
		return
	}
	next := cur.withoutRecipient(id)
	r.state.Store(next)
}

// Recipient returns a registered recipient by id.
func (r *Registry) Recipient(id string) (domain.Recipient, bool) {
	rec, ok := r.state.Load().recipients[id]
	return rec, ok
}

// Recipients returns all registered recipients ordered by id.
func (r *Registry) Recipients() []domain.Recipient {
	cur := r.state.Load()
	out := make([]domain.Recipient, 0, len(cur.recipients))
	for _, rec := range cur.recipients {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PutTemplate stores a new alert template. Existing ids are rejected.
func (r *Registry) PutTemplate(t domain.AlertTemplate) error {
	if t.ID == "" || t.Body == "" {
		return fmt.Errorf("%w: id and body are required", ErrInvalidTemplate)
	}
	if t.SeverityThreshold < 0 || t.SeverityThreshold > 100 {
		return fmt.Errorf("%w: severity threshold %v outside [0,100]", ErrInvalidTemplate, t.SeverityThreshold)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	cur := r.state.Load()
	if _, ok := cur.templates[t.ID]; ok {
		return fmt.Errorf("%w: %s", ErrTemplateExists, t.ID)
	}
	r.state.Store(cur.withTemplate(t))
	return nil
}

// Template returns a stored template by id.
func (r *Registry) Template(id string) (domain.AlertTemplate, bool) {
	t, ok := r.state.Load().templates[id]
	return t, ok
}

// FindAffected returns all recipients whose geofence intersects the hazard's
// implied impact radius, ordered by id. Two circles intersect when the
// distance between centers is at most the sum of radii.
func (r *Registry) FindAffected(h domain.HazardEvent) []domain.Recipient {
	cur := r.state.Load()
	impactRadius := r.impact.RadiusM(h.Intensity)

	var out []domain.Recipient
	for _, rec := range cur.recipients {
		d := domain.DistanceM(h.Geo, rec.Geofence.Center)
		if d <= impactRadius+rec.Geofence.RadiusM {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// withRecipient / withoutRecipient / withTemplate build the next snapshot.
// Callers must hold writeMu.

func (s *snapshot) withRecipient(rec domain.Recipient) *snapshot {
	next := s.copy()
	next.recipients[rec.ID] = rec
	return next
}

func (s *snapshot) withoutRecipient(id string) *snapshot {
	next := s.copy()
	delete(next.recipients, id)
	return next
}

func (s *snapshot) withTemplate(t domain.AlertTemplate) *snapshot {
	next := s.copy()
	next.templates[t.ID] = t
	return next
}

func (s *snapshot) copy() *snapshot {
	next := &snapshot{
		recipients: make(map[string]domain.Recipient, len(s.recipients)),
		templates:  make(map[string]domain.AlertTemplate, len(s.templates)),
	}
	for k, v := range s.recipients {
		next.recipients[k] = v
	}
	for k, v := range s.templates {
		next.templates[k] = v
	}
	return next
}
