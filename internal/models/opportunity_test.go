package models

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/apperr"
)

func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func baseCandidate() Candidate {
	return Candidate{
		Title:      "BTC dip buy",
		Asset:      "bitcoin",
		Type:       TypeBuy,
		Confidence: floatPtr(70),
		Sources:    []string{"coingecko", " coingecko ", ""},
		Tags:       []string{"btc"},
	}
}

func TestNewOpportunityDefaults(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 1500, time.FixedZone("X", 3600))
	o, err := NewOpportunity("test", baseCandidate(), now)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !strings.HasPrefix(o.ID, "opp_") {
		t.Fatalf("id=%s want opp_ prefix", o.ID)
	}
	if o.Status != StatusActive {
		t.Fatalf("status=%s want=active", o.Status)
	}
	if o.CreatedAt != "2024-05-01T09:00:00.000001Z" {
		t.Fatalf("created_at=%s", o.CreatedAt)
	}
	if len(o.Sources) != 1 || o.Sources[0] != "coingecko" {
		t.Fatalf("sources=%v want=[coingecko]", o.Sources)
	}
	if o.Metrics == nil {
		t.Fatalf("metrics=nil want empty map")
	}
}

func TestNewOpportunityNormalizesInput(t *testing.T) {
	c := baseCandidate()
	c.Title = "  BTC breakout "
	c.Asset = " bitcoin"
	c.Type = " BUY "
	c.Tags = []string{" btc", "btc", "momentum "}
	o, err := NewOpportunity("test", c, time.Now())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if o.Title != "BTC breakout" || o.Asset != "bitcoin" || o.Type != TypeBuy {
		t.Fatalf("title=%q asset=%q type=%q", o.Title, o.Asset, o.Type)
	}
	if len(o.Tags) != 2 || o.Tags[0] != "btc" || o.Tags[1] != "momentum" {
		t.Fatalf("tags=%v want=[btc momentum]", o.Tags)
	}

	// Already-normal input is stored unchanged.
	again, err := NewOpportunity("test", Candidate{
		ID: o.ID, Title: o.Title, Asset: o.Asset, Type: o.Type,
		Confidence: &o.Confidence, Sources: o.Sources, Tags: o.Tags,
	}, time.Now())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if again.Title != o.Title || again.Asset != o.Asset || again.Type != o.Type {
		t.Fatalf("again=%+v", again)
	}
}

func TestNewOpportunityConfidenceRange(t *testing.T) {
	cases := []struct {
		name  string
		value *float64
		ok    bool
	}{
		{"zero", floatPtr(0), true},
		{"hundred", floatPtr(100), true},
		{"negative", floatPtr(-0.01), false},
		{"above", floatPtr(100.5), false},
		{"nan", floatPtr(math.NaN()), false},
		{"inf", floatPtr(math.Inf(1)), false},
		{"missing", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := baseCandidate()
			c.Confidence = tc.value
			_, err := NewOpportunity("test", c, time.Now())
			if tc.ok && err != nil {
				t.Fatalf("err=%v want=nil", err)
			}
			if !tc.ok && !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("err=%v want validation", err)
			}
		})
	}
}

func TestNewOpportunityRejectsBadFields(t *testing.T) {
	mutations := map[string]func(*Candidate){
		"blank title":  func(c *Candidate) { c.Title = "   " },
		"blank asset":  func(c *Candidate) { c.Asset = "" },
		"unknown type": func(c *Candidate) { c.Type = "short" },
		"bad expiry":   func(c *Candidate) { c.ExpiresAt = strPtr("next week") },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			c := baseCandidate()
			mutate(&c)
			if _, err := NewOpportunity("test", c, time.Now()); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("err=%v want validation", err)
			}
		})
	}
}

func TestApplyTransitions(t *testing.T) {
	o, err := NewOpportunity("test", baseCandidate(), time.Now())
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	executed := StatusExecuted
	next, changed, err := Apply("test", o, Patch{Status: &executed})
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v want changed", changed, err)
	}
	if next.Status != StatusExecuted {
		t.Fatalf("status=%s want=executed", next.Status)
	}

	_, _, err = Apply("test", next, Patch{Confidence: floatPtr(50)})
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("err=%v want invalid transition", err)
	}

	active := StatusActive
	_, _, err = Apply("test", next, Patch{Status: &active})
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("err=%v want invalid transition", err)
	}

	same, changed, err := Apply("test", next, Patch{Status: &executed, Confidence: floatPtr(next.Confidence)})
	if err != nil || changed {
		t.Fatalf("no-op patch changed=%v err=%v", changed, err)
	}
	if !Equal(same, next) {
		t.Fatalf("no-op patch altered the opportunity")
	}
}

func TestApplyTerminalCheckedBeforeValidation(t *testing.T) {
	o, _ := NewOpportunity("test", baseCandidate(), time.Now())
	o.Status = StatusDiscarded
	_, _, err := Apply("test", o, Patch{Confidence: floatPtr(500)})
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("err=%v want invalid transition", err)
	}
}

func TestApplyValidation(t *testing.T) {
	o, _ := NewOpportunity("test", baseCandidate(), time.Now())

	if _, _, err := Apply("test", o, Patch{Confidence: floatPtr(101)}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err=%v want validation", err)
	}
	bogus := Status("archived")
	if _, _, err := Apply("test", o, Patch{Status: &bogus}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err=%v want validation", err)
	}
	if _, _, err := Apply("test", o, Patch{ID: strPtr("opp_other")}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err=%v want validation", err)
	}
	if _, _, err := Apply("test", o, Patch{CreatedAt: strPtr("2000-01-01T00:00:00.000000Z")}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err=%v want validation", err)
	}
	if _, changed, err := Apply("test", o, Patch{ID: strPtr(o.ID), CreatedAt: strPtr(o.CreatedAt)}); err != nil || changed {
		t.Fatalf("repeating immutable fields changed=%v err=%v", changed, err)
	}
}

func TestTimestampOrderMatchesTimeOrder(t *testing.T) {
	a := FormatTimestamp(time.Date(2024, 1, 1, 9, 59, 59, 999999000, time.UTC))
	b := FormatTimestamp(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	if !(a < b) {
		t.Fatalf("%s should sort before %s", a, b)
	}
	if len(a) != len(b) {
		t.Fatalf("timestamps differ in width: %s %s", a, b)
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	for _, in := range []string{
		"2024-05-01T10:00:00Z",
		"2024-05-01T10:00:00.123456+02:00",
		"2024-05-01T10:00:00.123456",
		"2024-05-01T10:00:00",
		"2024-05-01",
	} {
		if _, err := ParseTimestamp(in); err != nil {
			t.Fatalf("ParseTimestamp(%q) err=%v", in, err)
		}
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("ParseTimestamp(yesterday) err=nil")
	}
}
