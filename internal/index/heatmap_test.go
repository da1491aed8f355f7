package index_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ancjainil/Crisis-management/internal/domain"
	"github.com/ancjainil/Crisis-management/internal/index"
)

var caBounds = index.Bounds{MinLat: 32.0, MinLon: -125.0, MaxLat: 42.0, MaxLon: -114.0}

func TestComputeGrid_MaxNotAverage(t *testing.T) {
	ix := index.New(clockwork.NewFakeClock())

	// Two hazards a few hundred meters apart, landing in the same 10 km cell.
	_, err := ix.Upsert(hazardReport("fire-weak", 34.0510, -118.2430, 10, 1))
	require.NoError(t, err)
	_, err = ix.Upsert(hazardReport("fire-strong", 34.0530, -118.2440, 90, 1))
	require.NoError(t, err)

	grid, err := ix.ComputeGrid(caBounds, 10000)
	require.NoError(t, err)
	require.Len(t, grid, 1)

	for _, intensity := range grid {
		assert.InEpsilon(t, 90.0, intensity, 1e-9)
	}
}

func TestComputeGrid_SeparateCells(t *testing.T) {
	ix := index.New(clockwork.NewFakeClock())

	_, err := ix.Upsert(hazardReport("fire-la", 34.0522, -118.2437, 75, 1))
	require.NoError(t, err)
	_, err = ix.Upsert(hazardReport("fire-sf", 37.7749, -122.4194, 90, 1))
	require.NoError(t, err)

	grid, err := ix.ComputeGrid(caBounds, 10000)
	require.NoError(t, err)
	assert.Len(t, grid, 2)
}

func TestComputeGrid_ExcludesOutOfBoundsAndResolved(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ix := index.New(clock)

	_, err := ix.Upsert(hazardReport("fire-in", 34.05, -118.24, 50, 1))
	require.NoError(t, err)
	_, err = ix.Upsert(hazardReport("fire-out", 45.0, -100.0, 99, 1))
	require.NoError(t, err)

	grid, err := ix.ComputeGrid(caBounds, 10000)
	require.NoError(t, err)
	assert.Len(t, grid, 1)

	clock.Advance(time.Hour)
	ix.MarkStale(clock.Now(), 30*time.Minute)

	grid, err = ix.ComputeGrid(caBounds, 10000)
	require.NoError(t, err)
	assert.Empty(t, grid)
}

func TestComputeGrid_InvalidInput(t *testing.T) {
	ix := index.New(clockwork.NewFakeClock())

	_, err := ix.ComputeGrid(index.Bounds{MinLat: 40, MinLon: -120, MaxLat: 30, MaxLon: -110}, 1000)
	assert.ErrorIs(t, err, domain.ErrInvalidGeometry)

	_, err = ix.ComputeGrid(caBounds, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidGeometry)
}

func TestComputeGrid_CellKeyJSON(t *testing.T) {
	key := index.CellKey{Row: 12, Col: 7}
	b, err := key.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "12:7", string(b))
}

func TestComputeGrid_DoesNotBlockWriters(t *testing.T) {
	ix := index.New(clockwork.NewRealClock())

	_, err := ix.Upsert(hazardReport("fire-seed", 34.05, -118.24, 50, 1))
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		seq := int64(2)
		for {
			select {
			case <-stop:
				return
			default:
				_, err := ix.Upsert(hazardReport("fire-seed", 34.05, -118.24, 60, seq))
				assert.NoError(t, err)
				seq++
			}
		}
	}()

	for i := 0; i < 50; i++ {
		_, err := ix.ComputeGrid(caBounds, 10000)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}
