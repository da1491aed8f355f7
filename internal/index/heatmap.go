package index

import (
	"fmt"
	"math"

	"github.com/ancjainil/Crisis-management/internal/domain"
)

// metersPerDegreeLat is the approximate ground distance of one degree of
// latitude. Longitude degrees shrink with cos(latitude) and are computed per
// grid from the bounds midpoint.
const metersPerDegreeLat = 111320.0

// Bounds is a latitude/longitude bounding box for a heatmap computation.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

func (b Bounds) valid() bool {
	return domain.ValidGeo(domain.Geo{Lat: b.MinLat, Lon: b.MinLon}) &&
		domain.ValidGeo(domain.Geo{Lat: b.MaxLat, Lon: b.MaxLon}) &&
		b.MinLat < b.MaxLat && b.MinLon < b.MaxLon
}

// CellKey identifies a grid cell by row (latitude step) and column
// (longitude step) from the bounds' southwest corner.
type CellKey struct {
	Row int
	Col int
}

// MarshalText renders the key as "row:col", which also makes CellKey usable
// as a JSON map key.
func (k CellKey) MarshalText() ([]byte, error) {
	return fmt.Appendf(nil, "%d:%d", k.Row, k.Col), nil
}

// ComputeGrid derives a heatmap grid from the current active hazards. The
// aggregate per cell is the maximum intensity of the hazards falling in it,
// not the average: a single severe hazard must read as a hot spot no matter
// how sparse its surroundings are.
//
// The computation runs against a point-in-time copy of the index, so
// concurrent upserts are never blocked and never observed mid-grid.
func (ix *Index) ComputeGrid(b Bounds, cellSizeM float64) (map[CellKey]float64, error) {
	if !b.valid() {
		return nil, fmt.Errorf("%w: bounds %+v", domain.ErrInvalidGeometry, b)
	}
	if cellSizeM <= 0 {
		return nil, fmt.Errorf("%w: cell size %v", domain.ErrInvalidGeometry, cellSizeM)
	}

	hazards := ix.ActiveHazards()

	latStep := cellSizeM / metersPerDegreeLat
	midLat := (b.MinLat + b.MaxLat) / 2
	lonScale := math.Cos(midLat * math.Pi / 180)
	if lonScale < 0.01 {
		lonScale = 0.01 // polar bounds; keep the grid finite
	}
	lonStep := cellSizeM / (metersPerDegreeLat * lonScale)

	grid := make(map[CellKey]float64)
	for _, h := range hazards {
		if h.Geo.Lat < b.MinLat || h.Geo.Lat > b.MaxLat ||
			h.Geo.Lon < b.MinLon || h.Geo.Lon > b.MaxLon {
			continue
		}
		key := CellKey{
			Row: int(math.Floor((h.Geo.Lat - b.MinLat) / latStep)),
			Col: int(math.Floor((h.Geo.Lon - b.MinLon) / lonStep)),
		}
		if h.Intensity > grid[key] {
			grid[key] = h.Intensity
		}
	}
	return grid, nil
}
