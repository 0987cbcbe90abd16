// Package board assembles the opportunity board read model.
package board

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/aggregate"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/models"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/remote"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/repository"
)

// Source produces the full, canonically ordered board.
type Source = repository.Lister

// Searcher is the slice of the remote client a RemoteSource needs.
type Searcher interface {
	Search(ctx context.Context, prefix []string, limit, offset int) ([]remote.Item, error)
}

// StoreSource reads the board straight from an opportunity store.
type StoreSource struct {
	Store repository.Store
}

func (s StoreSource) List(ctx context.Context, filter repository.ListFilter) ([]models.Opportunity, error) {
	return s.Store.List(ctx, filter)
}

// RemoteSource pages through the remote search and aggregates the result.
type RemoteSource struct {
	Client    Searcher
	Namespace []string
	PageLimit int
	// MaxPages bounds one listing. Zero means a single page.
	MaxPages int
	Logger   *zap.Logger
}

func (s *RemoteSource) List(ctx context.Context, filter repository.ListFilter) ([]models.Opportunity, error) {
	ns := s.Namespace
	if len(ns) == 0 {
		ns = aggregate.OpportunitiesNamespace
	}
	limit := remote.ClampLimit(s.PageLimit)
	maxPages := s.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	var all []remote.Item
	seen := map[string]struct{}{}
	offset := 0
	for page := 0; page < maxPages; page++ {
		items, err := s.Client.Search(ctx, ns, limit, offset)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			// A write landing between pages can shift offsets and repeat an item.
			id := strings.Join(item.Namespace, "\x00") + "\x00" + item.Key
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			all = append(all, item)
		}
		if len(items) < limit {
			break
		}
		offset += len(items)
		if page == maxPages-1 && s.Logger != nil {
			s.Logger.Warn("remote board truncated at page cap",
				zap.Int("max_pages", maxPages),
				zap.Int("items", len(all)),
			)
		}
	}

	res := aggregate.Opportunities(all, ns)
	if len(res.Malformed) > 0 && s.Logger != nil {
		s.Logger.Warn("skipped malformed remote opportunities", zap.Strings("keys", res.Malformed))
	}
	return filter.Apply(res.Opportunities), nil
}
