package domain

import (
	"fmt"
	"strings"
)

// AlertTemplate is a notification body with placeholders and the minimum
// hazard intensity that triggers it. Templates are immutable once stored;
// revised wording or thresholds ship as a new template with a new ID, so a
// ledger entry's template reference always describes reproducible content.
type AlertTemplate struct {
	ID                string  `json:"id"`
	Body              string  `json:"body"`
	SeverityThreshold float64 `json:"severity_threshold"`
}

// Render substitutes hazard placeholders into the template body. Supported
// placeholders: {hazard_id}, {location}, {intensity}, {lat}, {lon}.
// Unknown placeholders are left in place rather than erroring, so template
// authoring mistakes degrade to ugly text instead of lost alerts.
func (t AlertTemplate) Render(h HazardEvent) string {
	replacer := strings.NewReplacer(
		"{hazard_id}", h.ID,
		"{location}", h.Location,
		"{intensity}", fmt.Sprintf("%.0f", h.Intensity),
		"{lat}", fmt.Sprintf("%.4f", h.Geo.Lat),
		"{lon}", fmt.Sprintf("%.4f", h.Geo.Lon),
	)
	return replacer.Replace(t.Body)
}
