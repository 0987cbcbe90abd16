package models

import (
	"reflect"
	"strings"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/apperr"
)

// Patch is a partial update. A nil field was not supplied. ID and CreatedAt
// are accepted only when they repeat the current values.
type Patch struct {
	ID         *string          `json:"id,omitempty"`
	Title      *string          `json:"title,omitempty"`
	Asset      *string          `json:"asset,omitempty"`
	Type       *OpportunityType `json:"type,omitempty"`
	Confidence *float64         `json:"confidence,omitempty"`
	Rationale  *string          `json:"rationale,omitempty"`
	Sources    []string         `json:"sources,omitempty"`
	Metrics    map[string]any   `json:"metrics,omitempty"`
	CreatedAt  *string          `json:"created_at,omitempty"`
	ExpiresAt  *string          `json:"expires_at,omitempty"`
	Status     *Status          `json:"status,omitempty"`
	Tags       []string         `json:"tags,omitempty"`
}

// Apply returns current with p applied and whether anything changed.
//
// A terminal opportunity rejects every patch that would change it, before
// field validation runs. A patch that repeats current values is a no-op and
// is accepted in any status.
func Apply(op string, current Opportunity, p Patch) (Opportunity, bool, error) {
	if p.ID != nil && strings.TrimSpace(*p.ID) != current.ID {
		return current, false, apperr.Validation(op, "id cannot be changed")
	}
	if p.CreatedAt != nil && strings.TrimSpace(*p.CreatedAt) != current.CreatedAt {
		return current, false, apperr.Validation(op, "created_at cannot be changed")
	}

	next := current.Clone()
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
	}
	if p.Asset != nil {
		next.Asset = strings.TrimSpace(*p.Asset)
	}
	if p.Type != nil {
		next.Type = OpportunityType(strings.ToLower(strings.TrimSpace(string(*p.Type))))
	}
	if p.Confidence != nil {
		next.Confidence = *p.Confidence
	}
	if p.Rationale != nil {
		next.Rationale = *p.Rationale
	}
	if p.Sources != nil {
		next.Sources = CleanSet(p.Sources)
	}
	if p.Metrics != nil {
		next.Metrics = cloneMetrics(p.Metrics)
	}
	if p.ExpiresAt != nil {
		next.ExpiresAt = trimmedPtr(p.ExpiresAt)
	}
	if p.Status != nil {
		next.Status = Status(strings.ToLower(strings.TrimSpace(string(*p.Status))))
	}
	if p.Tags != nil {
		next.Tags = CleanSet(p.Tags)
	}

	changed := !Equal(current, next)
	if !changed {
		return current, false, nil
	}
	if current.Status.Terminal() {
		return current, false, apperr.InvalidTransition(op, "opportunity %s is %s and can no longer change", current.ID, current.Status)
	}
	if err := next.Validate(op); err != nil {
		return current, false, err
	}
	if !current.Status.CanTransitionTo(next.Status) {
		return current, false, apperr.InvalidTransition(op, "status cannot move from %s to %s", current.Status, next.Status)
	}
	return next, true, nil
}

// Equal compares two opportunities field by field. Nil and empty
// collections are treated alike.
func Equal(a, b Opportunity) bool {
	if a.ID != b.ID || a.Title != b.Title || a.Asset != b.Asset || a.Type != b.Type {
		return false
	}
	if a.Confidence != b.Confidence || a.Rationale != b.Rationale || a.CreatedAt != b.CreatedAt || a.Status != b.Status {
		return false
	}
	if (a.ExpiresAt == nil) != (b.ExpiresAt == nil) {
		return false
	}
	if a.ExpiresAt != nil && *a.ExpiresAt != *b.ExpiresAt {
		return false
	}
	if !equalStrings(a.Sources, b.Sources) || !equalStrings(a.Tags, b.Tags) {
		return false
	}
	if len(a.Metrics) != len(b.Metrics) {
		return false
	}
	for k, av := range a.Metrics {
		bv, ok := b.Metrics[k]
		if !ok || !reflect.DeepEqual(av, bv) {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
