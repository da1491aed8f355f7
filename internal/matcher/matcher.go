// Package matcher derives (hazard, recipient, template) notification
// obligations from hazard updates. It is a pure derivation step: no dedup,
// no sending. That is the dispatch coordinator's job.
package matcher

import (
	"sort"

	"github.com/ancjainil/Crisis-management/internal/domain"
)

// TemplateSource resolves template ids to stored templates.
type TemplateSource interface {
	Template(id string) (domain.AlertTemplate, bool)
}

// RecipientFinder answers geometric exposure queries.
type RecipientFinder interface {
	FindAffected(h domain.HazardEvent) []domain.Recipient
}

// Match is one notification obligation: this recipient should be told about
// this hazard with this template.
type Match struct {
	Hazard    domain.HazardEvent
	Recipient domain.Recipient
	Template  domain.AlertTemplate
}

// Matcher computes matches against the recipient registry.
type Matcher struct {
	recipients RecipientFinder
	templates  TemplateSource
}

// New creates a Matcher over the given registry views.
func New(recipients RecipientFinder, templates TemplateSource) *Matcher {
	return &Matcher{recipients: recipients, templates: templates}
}

// Match returns the obligations produced by a hazard create or update.
// Resolved hazards produce nothing: they are no longer eligible for new
// dispatch (in-flight deliveries are unaffected; the ledger owns those).
//
// Per recipient, the eligible template is the highest-threshold subscribed
// template whose threshold the hazard's intensity meets. Re-running Match as
// a hazard escalates therefore yields a new, higher-tier template once the
// intensity crosses its threshold; the ledger's per-(event,recipient,channel)
// key keeps lower-tier sends from repeating.
func (m *Matcher) Match(h domain.HazardEvent) []Match {
	if h.Status != domain.HazardActive {
		return nil
	}

	affected := m.recipients.FindAffected(h)
	matches := make([]Match, 0, len(affected))
	for _, rec := range affected {
		tmpl, ok := m.eligibleTemplate(rec, h.Intensity)
		if !ok {
			continue
		}
		matches = append(matches, Match{Hazard: h, Recipient: rec, Template: tmpl})
	}
	return matches
}

// eligibleTemplate picks the recipient's highest-threshold template with
// threshold <= intensity. Ties on threshold break by template id so the
// result is deterministic.
func (m *Matcher) eligibleTemplate(rec domain.Recipient, intensity float64) (domain.AlertTemplate, bool) {
	var candidates []domain.AlertTemplate
	for _, id := range rec.TemplateIDs {
		tmpl, ok := m.templates.Template(id)
		if !ok {
			continue
		}
		if tmpl.SeverityThreshold <= intensity {
			candidates = append(candidates, tmpl)
		}
	}
	if len(candidates) == 0 {
		return domain.AlertTemplate{}, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].SeverityThreshold != candidates[j].SeverityThreshold {
			return candidates[i].SeverityThreshold > candidates[j].SeverityThreshold
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], true
}
