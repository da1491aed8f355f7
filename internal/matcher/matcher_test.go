package matcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ancjainil/Crisis-management/internal/domain"
	"github.com/ancjainil/Crisis-management/internal/matcher"
	"github.com/ancjainil/Crisis-management/internal/registry"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New(domain.ImpactMapping{BaseRadiusM: 1000, MetersPerPoint: 200})

	require.NoError(t, reg.PutTemplate(domain.AlertTemplate{
		ID: "advisory", Body: "Hazard {hazard_id} nearby", SeverityThreshold: 20,
	}))
	require.NoError(t, reg.PutTemplate(domain.AlertTemplate{
		ID: "evacuate", Body: "Evacuate immediately", SeverityThreshold: 50,
	}))

	require.NoError(t, reg.Register(domain.Recipient{
		ID:          "alice",
		Geofence:    domain.Geofence{Center: domain.Geo{Lat: 34.06, Lon: -118.24}, RadiusM: 2000},
		Channels:    []domain.ChannelKind{domain.ChannelSMS},
		ContactRefs: map[domain.ChannelKind]string{domain.ChannelSMS: "+15550001111"},
		TemplateIDs: []string{"advisory", "evacuate"},
	}))
	return reg
}

func activeHazard(intensity float64) domain.HazardEvent {
	return domain.HazardEvent{
		ID:        "fire-1",
		Geo:       domain.Geo{Lat: 34.0522, Lon: -118.2437},
		Intensity: intensity,
		Status:    domain.HazardActive,
	}
}

func TestMatcher_PicksHighestEligibleTier(t *testing.T) {
	reg := newRegistry(t)
	m := matcher.New(reg, reg)

	// Below every threshold: no obligation.
	assert.Empty(t, m.Match(activeHazard(10)))

	// Meets the advisory tier only.
	matches := m.Match(activeHazard(30))
	require.Len(t, matches, 1)
	assert.Equal(t, "advisory", matches[0].Template.ID)
	assert.Equal(t, "alice", matches[0].Recipient.ID)

	// Escalated past the evacuate threshold: the higher tier wins.
	matches = m.Match(activeHazard(60))
	require.Len(t, matches, 1)
	assert.Equal(t, "evacuate", matches[0].Template.ID)
}

func TestMatcher_ResolvedHazardProducesNothing(t *testing.T) {
	reg := newRegistry(t)
	m := matcher.New(reg, reg)

	h := activeHazard(80)
	h.Status = domain.HazardResolved
	assert.Empty(t, m.Match(h))
}

func TestMatcher_OutOfRangeRecipientSkipped(t *testing.T) {
	reg := newRegistry(t)
	m := matcher.New(reg, reg)

	h := activeHazard(60)
	h.Geo = domain.Geo{Lat: 37.7749, Lon: -122.4194} // ~560 km away
	assert.Empty(t, m.Match(h))
}

func TestMatcher_UnknownTemplateIDIgnored(t *testing.T) {
	reg := registry.New(domain.ImpactMapping{BaseRadiusM: 100000})
	require.NoError(t, reg.Register(domain.Recipient{
		ID:          "bob",
		Geofence:    domain.Geofence{Center: domain.Geo{Lat: 34.05, Lon: -118.24}, RadiusM: 1000},
		Channels:    []domain.ChannelKind{domain.ChannelPush},
		TemplateIDs: []string{"deleted-template"},
	}))
	m := matcher.New(reg, reg)

	assert.Empty(t, m.Match(activeHazard(90)))
}
