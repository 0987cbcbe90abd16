package repository

import (
	"sort"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/models"
)

// Sequenced pairs an opportunity with its insertion sequence.
type Sequenced struct {
	Opportunity models.Opportunity
	Seq         int64
}

// SortCanonical orders by created_at text, then insertion sequence, and
// strips the sequence.
func SortCanonical(items []Sequenced) []models.Opportunity {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Opportunity.CreatedAt != items[j].Opportunity.CreatedAt {
			return items[i].Opportunity.CreatedAt < items[j].Opportunity.CreatedAt
		}
		return items[i].Seq < items[j].Seq
	})
	out := make([]models.Opportunity, len(items))
	for i := range items {
		out[i] = items[i].Opportunity
	}
	return out
}
