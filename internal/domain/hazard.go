package domain

import (
	"context"
	"time"
)

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// HazardStatus is the lifecycle state of a hazard event.
type HazardStatus string

const (
	HazardActive   HazardStatus = "active"
	HazardResolved HazardStatus = "resolved"
)

// HazardEvent is a detected hazard occurrence at a location. The ID is the
// dedup key and never changes; subsequent reports for the same ID mutate
// position, intensity, and timestamps only.
type HazardEvent struct {
	ID            string       `json:"id"`
	Geo           Geo          `json:"geo"`
	Intensity     float64      `json:"intensity"` // canonical 0-100 scale
	Seq           int64        `json:"seq"`       // per-source monotonic sequence
	Location      string       `json:"location,omitempty"`
	Status        HazardStatus `json:"status"`
	FirstSeenAt   time.Time    `json:"first_seen_at"`
	LastUpdatedAt time.Time    `json:"last_updated_at"`
	ResolvedAt    time.Time    `json:"resolved_at,omitzero"`
}

// ResourceAsset is a positioned response asset (vehicle, supply cache, ...).
// Assets never trigger alerts; position always reflects the latest report.
type ResourceAsset struct {
	ID            string    `json:"id"`
	Geo           Geo       `json:"geo"`
	Type          string    `json:"type"` // open set: "fire-truck", "medical-supply", ...
	Label         string    `json:"label,omitempty"`
	Seq           int64     `json:"seq"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// ReportKind distinguishes hazard detections from resource position updates.
type ReportKind string

const (
	ReportHazard   ReportKind = "hazard"
	ReportResource ReportKind = "resource"
)

// CanonicalReport is the normalized form of an incoming raw report: WGS-84
// degrees, 0-100 intensity, regardless of source convention. The JSON shape
// is identical to the ground-sensor feed convention, so a canonical report
// fed back through Normalize passes through unchanged.
type CanonicalReport struct {
	Kind         ReportKind `json:"kind"`
	ID           string     `json:"id"`
	Lat          float64    `json:"lat"`
	Lon          float64    `json:"lon"`
	Intensity    float64    `json:"intensity"`
	Seq          int64      `json:"seq"`
	Location     string     `json:"location,omitempty"`
	ResourceType string     `json:"type,omitempty"`
	Label        string     `json:"label,omitempty"`
	ObservedAt   time.Time  `json:"observed_at"`
}

// Geo returns the report's coordinate pair.
func (r CanonicalReport) Geo() Geo {
	return Geo{Lat: r.Lat, Lon: r.Lon}
}

// RawReport represents an unprocessed message from the ingest topic.
type RawReport struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ChannelKind identifies a notification delivery channel.
type ChannelKind string

const (
	ChannelSMS  ChannelKind = "sms"
	ChannelPush ChannelKind = "push"
)

// Geofence is a circular region of interest around a center point.
type Geofence struct {
	Center  Geo     `json:"center"`
	RadiusM float64 `json:"radius_m"`
}

// Recipient is a notification target with a geofence and an ordered channel
// preference list. ContactRefs holds the opaque per-channel handles resolved
// by the channel adapters.
type Recipient struct {
	ID          string                 `json:"id"`
	Geofence    Geofence               `json:"geofence"`
	Channels    []ChannelKind          `json:"channels"`
	ContactRefs map[ChannelKind]string `json:"contact_refs"`
	TemplateIDs []string               `json:"template_ids"`
}

// ContactRef returns the recipient's handle for the given channel, or ""
// when the recipient has none.
func (r Recipient) ContactRef(ch ChannelKind) string {
	return r.ContactRefs[ch]
}

// ImpactMapping converts hazard intensity to an impact radius in meters.
// Monotonic in intensity by construction.
type ImpactMapping struct {
	BaseRadiusM    float64
	MetersPerPoint float64
}

// RadiusM returns the impact radius for the given intensity.
func (m ImpactMapping) RadiusM(intensity float64) float64 {
	if intensity < 0 {
		intensity = 0
	}
	return m.BaseRadiusM + intensity*m.MetersPerPoint
}
