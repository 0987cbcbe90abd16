package board

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/cache"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/models"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/repository"
)

const snapshotKey = "board:opportunities"

// Service serves the board, optionally from a cached unfiltered snapshot.
// With a nil Cache every call goes to the Source.
//
// A snapshot loaded before an Invalidate is returned to its caller but never
// stored.
type Service struct {
	Source Source
	Cache  cache.Store
	TTL    time.Duration
	Logger *zap.Logger

	mu  sync.Mutex
	gen uint64
}

func (s *Service) List(ctx context.Context, filter repository.ListFilter) ([]models.Opportunity, error) {
	if s.Cache == nil {
		return s.Source.List(ctx, filter)
	}
	if snapshot, ok := s.cached(ctx); ok {
		return filter.Apply(snapshot), nil
	}
	snapshot, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Apply(snapshot), nil
}

// Refresh rebuilds the cached snapshot.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	if s.Cache == nil {
		return 0, nil
	}
	snapshot, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(snapshot), nil
}

// Invalidate drops the cached snapshot so the next read goes to the Source.
func (s *Service) Invalidate(ctx context.Context) {
	if s == nil || s.Cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if err := s.Cache.Delete(ctx, snapshotKey); err != nil && s.Logger != nil {
		s.Logger.Warn("board cache invalidate failed", zap.Error(err))
	}
}

func (s *Service) cached(ctx context.Context) ([]models.Opportunity, bool) {
	raw, ok, err := s.Cache.Get(ctx, snapshotKey)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("board cache read failed", zap.Error(err))
		}
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var snapshot []models.Opportunity
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		if s.Logger != nil {
			s.Logger.Warn("board cache entry unreadable", zap.Error(err))
		}
		return nil, false
	}
	return snapshot, true
}

func (s *Service) load(ctx context.Context) ([]models.Opportunity, error) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	snapshot, err := s.Source.List(ctx, repository.ListFilter{})
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(snapshot)
	if err == nil {
		err = s.store(ctx, gen, raw)
	}
	if err != nil && s.Logger != nil {
		s.Logger.Warn("board cache write failed", zap.Error(err))
	}
	return snapshot, nil
}

// store writes raw unless an Invalidate ran since generation gen was read.
func (s *Service) store(ctx context.Context, gen uint64, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		if s.Logger != nil {
			s.Logger.Debug("board snapshot superseded by a write, not cached")
		}
		return nil
	}
	return s.Cache.Set(ctx, snapshotKey, raw, s.TTL)
}
