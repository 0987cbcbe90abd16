package models

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/apperr"
)

type OpportunityType string

const (
	TypeBuy   OpportunityType = "buy"
	TypeSell  OpportunityType = "sell"
	TypeHold  OpportunityType = "hold"
	TypeWatch OpportunityType = "watch"
)

func (t OpportunityType) Valid() bool {
	switch t {
	case TypeBuy, TypeSell, TypeHold, TypeWatch:
		return true
	}
	return false
}

const (
	MinConfidence = 0.0
	MaxConfidence = 100.0
)

// Opportunity is a trading or monitoring idea tracked on the board.
type Opportunity struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Asset      string          `json:"asset"`
	Type       OpportunityType `json:"type"`
	Confidence float64         `json:"confidence"`
	Rationale  string          `json:"rationale"`
	Sources    []string        `json:"sources"`
	Metrics    map[string]any  `json:"metrics"`
	CreatedAt  string          `json:"created_at"`
	ExpiresAt  *string         `json:"expires_at"`
	Status     Status          `json:"status"`
	Tags       []string        `json:"tags"`
}

// Clone returns a copy that shares no slices or maps with o.
func (o Opportunity) Clone() Opportunity {
	out := o
	out.Sources = cloneStrings(o.Sources)
	out.Tags = cloneStrings(o.Tags)
	if o.Metrics != nil {
		out.Metrics = make(map[string]any, len(o.Metrics))
		for k, v := range o.Metrics {
			out.Metrics[k] = v
		}
	}
	if o.ExpiresAt != nil {
		v := *o.ExpiresAt
		out.ExpiresAt = &v
	}
	return out
}

// HasAnyTag reports whether o carries at least one of tags.
func (o Opportunity) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range o.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Validate checks the field-level invariants of a stored opportunity.
func (o Opportunity) Validate(op string) error {
	if strings.TrimSpace(o.ID) == "" {
		return apperr.Validation(op, "id is required")
	}
	if strings.TrimSpace(o.Title) == "" {
		return apperr.Validation(op, "title is required")
	}
	if strings.TrimSpace(o.Asset) == "" {
		return apperr.Validation(op, "asset is required")
	}
	if !o.Type.Valid() {
		return apperr.Validation(op, "type %q is not one of buy, sell, hold, watch", o.Type)
	}
	if err := validateConfidence(op, o.Confidence); err != nil {
		return err
	}
	if !o.Status.Valid() {
		return apperr.Validation(op, "status %q is not one of active, executed, discarded", o.Status)
	}
	if o.ExpiresAt != nil {
		if _, err := ParseTimestamp(*o.ExpiresAt); err != nil {
			return apperr.Validation(op, "expires_at %q is not an ISO-8601 timestamp", *o.ExpiresAt)
		}
	}
	return nil
}

func validateConfidence(op string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return apperr.Validation(op, "confidence must be a finite number")
	}
	if v < MinConfidence || v > MaxConfidence {
		return apperr.Validation(op, "confidence %v is outside [0, 100]", v)
	}
	return nil
}

// Candidate is the caller-supplied input for creating an opportunity.
type Candidate struct {
	ID         string          `json:"id,omitempty"`
	Title      string          `json:"title"`
	Asset      string          `json:"asset"`
	Type       OpportunityType `json:"type"`
	Confidence *float64        `json:"confidence"`
	Rationale  string          `json:"rationale"`
	Sources    []string        `json:"sources"`
	Metrics    map[string]any  `json:"metrics"`
	ExpiresAt  *string         `json:"expires_at"`
	Tags       []string        `json:"tags"`
}

// NewOpportunity builds a fresh active opportunity from c. An empty c.ID is
// replaced by a generated one. Title and asset are trimmed and type is
// lowercased, so only already-normal input reads back unchanged.
func NewOpportunity(op string, c Candidate, now time.Time) (Opportunity, error) {
	if c.Confidence == nil {
		return Opportunity{}, apperr.Validation(op, "confidence is required")
	}
	id := strings.TrimSpace(c.ID)
	if id == "" {
		id = NewID()
	}
	o := Opportunity{
		ID:         id,
		Title:      strings.TrimSpace(c.Title),
		Asset:      strings.TrimSpace(c.Asset),
		Type:       OpportunityType(strings.ToLower(strings.TrimSpace(string(c.Type)))),
		Confidence: *c.Confidence,
		Rationale:  c.Rationale,
		Sources:    CleanSet(c.Sources),
		Metrics:    cloneMetrics(c.Metrics),
		CreatedAt:  FormatTimestamp(now),
		ExpiresAt:  trimmedPtr(c.ExpiresAt),
		Status:     StatusActive,
		Tags:       CleanSet(c.Tags),
	}
	if err := o.Validate(op); err != nil {
		return Opportunity{}, err
	}
	return o, nil
}

// NewID returns a fresh opportunity id.
func NewID() string {
	return "opp_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CleanSet trims, drops empties and de-duplicates while keeping first-seen order.
// The result is never nil.
func CleanSet(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, item := range items {
		val := strings.TrimSpace(item)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneMetrics(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
