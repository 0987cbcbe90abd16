package repository

import (
	"context"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/models"
)

//go:generate mockgen -source=repository.go -destination=mocks/mock_store.go -package=mocks

// Store is the capability every opportunity backend provides.
//
// Mutations on one id are serialized. Different ids proceed in parallel.
// List returns a snapshot sorted by created_at with ties in insertion order.
type Store interface {
	Add(ctx context.Context, c models.Candidate) (models.Opportunity, error)
	Get(ctx context.Context, id string) (models.Opportunity, error)
	// Update reports whether the patch changed the stored opportunity.
	Update(ctx context.Context, id string, p models.Patch) (models.Opportunity, bool, error)
	// Delete reports whether the id was present. Missing ids are not an error.
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]models.Opportunity, error)
}

// Lister is the read side of Store.
type Lister interface {
	List(ctx context.Context, filter ListFilter) ([]models.Opportunity, error)
}

type ListFilter struct {
	Status *models.Status
	// Tags matches opportunities carrying any of the listed tags.
	Tags          []string
	MinConfidence *float64
}

func (f ListFilter) Matches(o models.Opportunity) bool {
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	if len(f.Tags) > 0 && !o.HasAnyTag(f.Tags) {
		return false
	}
	if f.MinConfidence != nil && o.Confidence < *f.MinConfidence {
		return false
	}
	return true
}

// Apply keeps the matching opportunities of items, preserving order.
func (f ListFilter) Apply(items []models.Opportunity) []models.Opportunity {
	out := make([]models.Opportunity, 0, len(items))
	for _, item := range items {
		if f.Matches(item) {
			out = append(out, item)
		}
	}
	return out
}
