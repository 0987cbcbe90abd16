package models

import (
	"gorm.io/datatypes"
)

// OpportunityRecord is the relational row behind an Opportunity.
// Seq records insertion order for created_at ties.
type OpportunityRecord struct {
	ID         string                      `gorm:"primaryKey;type:varchar(100)"`
	Seq        int64                       `gorm:"autoIncrement;not null;uniqueIndex"`
	Title      string                      `gorm:"type:text;not null"`
	Asset      string                      `gorm:"type:varchar(100);not null;index"`
	Type       string                      `gorm:"type:varchar(20);not null"`
	Confidence float64                     `gorm:"not null"`
	Rationale  string                      `gorm:"type:text"`
	Sources    datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Metrics    datatypes.JSONMap           `gorm:"type:jsonb"`
	CreatedAt  string                      `gorm:"type:varchar(40);not null;index;autoCreateTime:false"`
	ExpiresAt  *string                     `gorm:"type:varchar(40)"`
	Status     string                      `gorm:"type:varchar(20);not null;index;default:'active'"`
	Tags       datatypes.JSONSlice[string] `gorm:"type:jsonb"`
}

func (OpportunityRecord) TableName() string {
	return "opportunities"
}

func NewOpportunityRecord(o Opportunity) OpportunityRecord {
	return OpportunityRecord{
		ID:         o.ID,
		Title:      o.Title,
		Asset:      o.Asset,
		Type:       string(o.Type),
		Confidence: o.Confidence,
		Rationale:  o.Rationale,
		Sources:    datatypes.JSONSlice[string](cloneStrings(o.Sources)),
		Metrics:    datatypes.JSONMap(cloneMetrics(o.Metrics)),
		CreatedAt:  o.CreatedAt,
		ExpiresAt:  o.ExpiresAt,
		Status:     string(o.Status),
		Tags:       datatypes.JSONSlice[string](cloneStrings(o.Tags)),
	}
}

func (r OpportunityRecord) Opportunity() Opportunity {
	sources := []string(r.Sources)
	if sources == nil {
		sources = []string{}
	}
	tags := []string(r.Tags)
	if tags == nil {
		tags = []string{}
	}
	return Opportunity{
		ID:         r.ID,
		Title:      r.Title,
		Asset:      r.Asset,
		Type:       OpportunityType(r.Type),
		Confidence: r.Confidence,
		Rationale:  r.Rationale,
		Sources:    sources,
		Metrics:    cloneMetrics(r.Metrics),
		CreatedAt:  r.CreatedAt,
		ExpiresAt:  r.ExpiresAt,
		Status:     Status(r.Status),
		Tags:       tags,
	}
}
