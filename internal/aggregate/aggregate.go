// Package aggregate turns raw remote search items into board records.
package aggregate

import (
	"encoding/json"
	"sort"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/models"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/remote"
)

// OpportunitiesNamespace is where board entries live in the remote store.
var OpportunitiesNamespace = []string{"opportunities"}

type Result struct {
	Opportunities []models.Opportunity
	// Malformed lists the keys of in-namespace items whose value could not be
	// read as an opportunity.
	Malformed []string
}

// Opportunities keeps items stored exactly under namespace, projects them
// into opportunities keyed by the item key, and sorts them by created_at.
func Opportunities(items []remote.Item, namespace []string) Result {
	res := Result{Opportunities: make([]models.Opportunity, 0, len(items))}
	for _, item := range items {
		if !NamespaceEqual(item.Namespace, namespace) {
			continue
		}
		o, err := Project(item)
		if err != nil {
			res.Malformed = append(res.Malformed, item.Key)
			continue
		}
		res.Opportunities = append(res.Opportunities, o)
	}
	sort.SliceStable(res.Opportunities, func(i, j int) bool {
		return res.Opportunities[i].CreatedAt < res.Opportunities[j].CreatedAt
	})
	return res
}

// Project reads item.Value as an opportunity. The item key always wins over
// any id inside the value.
func Project(item remote.Item) (models.Opportunity, error) {
	var o models.Opportunity
	if item.Value != nil {
		b, err := json.Marshal(item.Value)
		if err != nil {
			return models.Opportunity{}, err
		}
		if err := json.Unmarshal(b, &o); err != nil {
			return models.Opportunity{}, err
		}
	}
	o.ID = item.Key
	return o, nil
}

// Value renders o as a remote item value.
func Value(o models.Opportunity) (map[string]any, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	var v map[string]any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func NamespaceEqual(a, b []string) bool {
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
