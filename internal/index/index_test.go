package index_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ancjainil/Crisis-management/internal/domain"
	"github.com/ancjainil/Crisis-management/internal/index"
)

func hazardReport(id string, lat, lon, intensity float64, seq int64) domain.CanonicalReport {
	return domain.CanonicalReport{
		Kind:      domain.ReportHazard,
		ID:        id,
		Lat:       lat,
		Lon:       lon,
		Intensity: intensity,
		Seq:       seq,
	}
}

func TestIndex_Upsert_CreateAndUpdate(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.August, 14, 12, 0, 0, 0, time.UTC))
	ix := index.New(clock)

	out, err := ix.Upsert(hazardReport("fire-1", 34.05, -118.24, 40, 1))
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.True(t, out.Created)
	assert.Equal(t, domain.HazardActive, out.Hazard.Status)
	assert.Equal(t, clock.Now().UTC(), out.Hazard.FirstSeenAt)

	clock.Advance(5 * time.Minute)
	out, err = ix.Upsert(hazardReport("fire-1", 34.06, -118.25, 60, 2))
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.False(t, out.Created)
	assert.InEpsilon(t, 60.0, out.Hazard.Intensity, 1e-9)
	assert.Equal(t, clock.Now().UTC(), out.Hazard.LastUpdatedAt)
	assert.True(t, out.Hazard.FirstSeenAt.Before(out.Hazard.LastUpdatedAt))
}

func TestIndex_Upsert_OutOfOrderSequence(t *testing.T) {
	ix := index.New(clockwork.NewFakeClock())

	// Delivered out of order: 3, 1, 2. The index must end at seq 3's state.
	out, err := ix.Upsert(hazardReport("fire-1", 34.0, -118.0, 90, 3))
	require.NoError(t, err)
	assert.True(t, out.Applied)

	out, err = ix.Upsert(hazardReport("fire-1", 35.0, -119.0, 10, 1))
	require.NoError(t, err)
	assert.False(t, out.Applied)

	out, err = ix.Upsert(hazardReport("fire-1", 36.0, -120.0, 20, 2))
	require.NoError(t, err)
	assert.False(t, out.Applied)

	h, ok := ix.Hazard("fire-1")
	require.True(t, ok)
	assert.Equal(t, int64(3), h.Seq)
	assert.InEpsilon(t, 90.0, h.Intensity, 1e-9)
	assert.InEpsilon(t, 34.0, h.Geo.Lat, 1e-9)
}

func TestIndex_Upsert_InvalidGeometry(t *testing.T) {
	ix := index.New(clockwork.NewFakeClock())

	_, err := ix.Upsert(hazardReport("fire-1", 95.0, 0, 10, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidGeometry)

	_, err = ix.Upsert(hazardReport("fire-1", 0, -181.0, 10, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidGeometry)
}

func TestIndex_Upsert_Resource(t *testing.T) {
	ix := index.New(clockwork.NewFakeClock())

	out, err := ix.Upsert(domain.CanonicalReport{
		Kind: domain.ReportResource, ID: "truck-a", Lat: 34.05, Lon: -118.25,
		ResourceType: "fire-truck", Label: "Truck A", Seq: 1,
	})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, "fire-truck", out.Resource.Type)

	out, err = ix.Upsert(domain.CanonicalReport{
		Kind: domain.ReportResource, ID: "truck-a", Lat: 34.10, Lon: -118.30, Seq: 2,
	})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	// Type and label stick when an update omits them.
	assert.Equal(t, "fire-truck", out.Resource.Type)
	assert.Equal(t, "Truck A", out.Resource.Label)
	assert.InEpsilon(t, 34.10, out.Resource.Geo.Lat, 1e-9)
}

func TestIndex_MarkStale(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.August, 14, 12, 0, 0, 0, time.UTC))
	ix := index.New(clock)

	_, err := ix.Upsert(hazardReport("fire-old", 34.0, -118.0, 50, 1))
	require.NoError(t, err)

	clock.Advance(45 * time.Minute)
	_, err = ix.Upsert(hazardReport("fire-new", 35.0, -119.0, 50, 1))
	require.NoError(t, err)

	resolved := ix.MarkStale(clock.Now(), 30*time.Minute)
	assert.Equal(t, []string{"fire-old"}, resolved)

	old, ok := ix.Hazard("fire-old")
	require.True(t, ok)
	assert.Equal(t, domain.HazardResolved, old.Status)
	assert.Equal(t, clock.Now().UTC(), old.ResolvedAt)

	// A second sweep resolves nothing new.
	assert.Empty(t, ix.MarkStale(clock.Now(), 30*time.Minute))

	assert.Equal(t, 1, ix.ActiveHazardCount())
}

func TestIndex_ResolvedHazardReactivatesOnNewerReport(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.August, 14, 12, 0, 0, 0, time.UTC))
	ix := index.New(clock)

	_, err := ix.Upsert(hazardReport("fire-1", 34.0, -118.0, 50, 1))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	ix.MarkStale(clock.Now(), 30*time.Minute)

	out, err := ix.Upsert(hazardReport("fire-1", 34.0, -118.0, 70, 2))
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, domain.HazardActive, out.Hazard.Status)
	assert.True(t, out.Hazard.ResolvedAt.IsZero())
}

func TestIndex_PurgeResolved(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.August, 14, 12, 0, 0, 0, time.UTC))
	ix := index.New(clock)

	_, err := ix.Upsert(hazardReport("fire-1", 34.0, -118.0, 50, 1))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	ix.MarkStale(clock.Now(), 30*time.Minute)

	// Inside retention: kept for audit.
	assert.Zero(t, ix.PurgeResolved(clock.Now(), 24*time.Hour))
	_, ok := ix.Hazard("fire-1")
	assert.True(t, ok)

	clock.Advance(25 * time.Hour)
	assert.Equal(t, 1, ix.PurgeResolved(clock.Now(), 24*time.Hour))
	_, ok = ix.Hazard("fire-1")
	assert.False(t, ok)
}

func TestIndex_QueryRange(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ix := index.New(clock)

	// Two hazards ~5.5 km apart, one resource nearby, one hazard far away.
	reports := []domain.CanonicalReport{
		hazardReport("fire-b", 34.05, -118.24, 60, 1),
		hazardReport("fire-a", 34.10, -118.24, 40, 1),
		hazardReport("fire-remote", 37.77, -122.42, 90, 1),
		{Kind: domain.ReportResource, ID: "truck-a", Lat: 34.06, Lon: -118.24, Seq: 1},
	}
	for _, r := range reports {
		_, err := ix.Upsert(r)
		require.NoError(t, err)
	}

	got := ix.QueryRange(domain.Geo{Lat: 34.05, Lon: -118.24}, 10000)
	require.Len(t, got.Hazards, 2)
	// Deterministic order by id.
	assert.Equal(t, "fire-a", got.Hazards[0].ID)
	assert.Equal(t, "fire-b", got.Hazards[1].ID)
	require.Len(t, got.Resources, 1)
	assert.Equal(t, "truck-a", got.Resources[0].ID)

	// Resolved hazards fall out of range queries.
	clock.Advance(time.Hour)
	ix.MarkStale(clock.Now(), 30*time.Minute)
	got = ix.QueryRange(domain.Geo{Lat: 34.05, Lon: -118.24}, 10000)
	assert.Empty(t, got.Hazards)
}

func TestIndex_ConcurrentUpserts(t *testing.T) {
	ix := index.New(clockwork.NewRealClock())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("fire-%d", i%10)
				_, err := ix.Upsert(hazardReport(id, 34.0, -118.0, float64(i), int64(g*100+i)))
				assert.NoError(t, err)
				ix.ActiveHazards()
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 10, ix.ActiveHazardCount())
}
