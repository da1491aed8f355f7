package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// sensorReport is the ground-sensor (canonical) feed shape. Pointer fields
// distinguish missing from zero for validation.
type sensorReport struct {
	Kind       string     `json:"kind"`
	ID         string     `json:"id"`
	Lat        *float64   `json:"lat"`
	Lon        *float64   `json:"lon"`
	Intensity  *float64   `json:"intensity"`
	Seq        *int64     `json:"seq"`
	Location   string     `json:"location"`
	Type       string     `json:"type"`
	Label      string     `json:"label"`
	ObservedAt *time.Time `json:"observed_at"`
}

// satelliteReport is the satellite feed shape: microdegree coordinates and
// a 0-1 confidence scale.
type satelliteReport struct {
	Source      string   `json:"source"`
	DetectionID string   `json:"detection_id"`
	LatE6       *int64   `json:"lat_e6"`
	LonE6       *int64   `json:"lon_e6"`
	Confidence  *float64 `json:"confidence"`
	Seq         *int64   `json:"seq"`
}

// Normalize validates and canonicalizes a raw report payload. It is a pure
// function of its input (plus the normalization clock for missing observation
// timestamps) and is idempotent: feeding a marshaled CanonicalReport back in
// returns it unchanged.
//
// Errors: [ErrMalformedReport] for missing/non-numeric required fields,
// [ErrOutOfBoundsCoordinate] for invalid geometry, [ErrUnknownSourceFormat]
// for unrecognized shapes.
func Normalize(raw []byte) (CanonicalReport, error) {
	var probe struct {
		Kind   string `json:"kind"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return CanonicalReport{}, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}

	switch {
	case probe.Kind == string(ReportHazard) || probe.Kind == string(ReportResource):
		return normalizeSensor(raw, ReportKind(probe.Kind))
	case probe.Source == "satellite":
		return normalizeSatellite(raw)
	default:
		return CanonicalReport{}, fmt.Errorf("%w: kind %q, source %q", ErrUnknownSourceFormat, probe.Kind, probe.Source)
	}
}

func normalizeSensor(raw []byte, kind ReportKind) (CanonicalReport, error) {
	var rec sensorReport
	if err := json.Unmarshal(raw, &rec); err != nil {
		return CanonicalReport{}, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}

	if rec.ID == "" || rec.Lat == nil || rec.Lon == nil || rec.Seq == nil {
		return CanonicalReport{}, fmt.Errorf("%w: id, lat, lon, and seq are required", ErrMalformedReport)
	}
	if kind == ReportHazard && rec.Intensity == nil {
		return CanonicalReport{}, fmt.Errorf("%w: hazard report missing intensity", ErrMalformedReport)
	}

	geo := Geo{Lat: *rec.Lat, Lon: *rec.Lon}
	if !ValidGeo(geo) {
		return CanonicalReport{}, fmt.Errorf("%w: lat=%v lon=%v", ErrOutOfBoundsCoordinate, geo.Lat, geo.Lon)
	}

	report := CanonicalReport{
		Kind:         kind,
		ID:           rec.ID,
		Lat:          geo.Lat,
		Lon:          geo.Lon,
		Seq:          *rec.Seq,
		Location:     rec.Location,
		ResourceType: rec.Type,
		Label:        rec.Label,
		ObservedAt:   observedOrNow(rec.ObservedAt),
	}
	if rec.Intensity != nil {
		report.Intensity = clampIntensity(*rec.Intensity)
	}
	return report, nil
}

func normalizeSatellite(raw []byte) (CanonicalReport, error) {
	var rec satelliteReport
	if err := json.Unmarshal(raw, &rec); err != nil {
		return CanonicalReport{}, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}

	if rec.DetectionID == "" || rec.LatE6 == nil || rec.LonE6 == nil || rec.Confidence == nil || rec.Seq == nil {
		return CanonicalReport{}, fmt.Errorf("%w: detection_id, lat_e6, lon_e6, confidence, and seq are required", ErrMalformedReport)
	}

	geo := Geo{
		Lat: float64(*rec.LatE6) / 1e6,
		Lon: float64(*rec.LonE6) / 1e6,
	}
	if !ValidGeo(geo) {
		return CanonicalReport{}, fmt.Errorf("%w: lat=%v lon=%v", ErrOutOfBoundsCoordinate, geo.Lat, geo.Lon)
	}

	return CanonicalReport{
		Kind:       ReportHazard,
		ID:         rec.DetectionID,
		Lat:        geo.Lat,
		Lon:        geo.Lon,
		Intensity:  clampIntensity(*rec.Confidence * 100),
		Seq:        *rec.Seq,
		ObservedAt: observedOrNow(nil),
	}, nil
}

// clampIntensity bounds a value to the canonical 0-100 scale. Saturated
// sensors routinely report past the top of scale.
func clampIntensity(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func observedOrNow(t *time.Time) time.Time {
	if t != nil && !t.IsZero() {
		return t.UTC()
	}
	return clock.Now().UTC()
}
