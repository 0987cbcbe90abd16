package memoryrepository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/apperr"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/models"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/repository"
)

type record struct {
	opp models.Opportunity
	seq int64
}

// Store keeps opportunities in process memory. Stored values are never
// mutated in place; writers swap in a new record under the write lock.
type Store struct {
	mu    sync.RWMutex
	items map[string]record
	seq   int64

	locks repository.KeyedMutex
	now   func() time.Time
}

var _ repository.Store = (*Store)(nil)

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		items: map[string]record{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Add(ctx context.Context, c models.Candidate) (models.Opportunity, error) {
	const op = "memory.add"
	if err := ctx.Err(); err != nil {
		return models.Opportunity{}, err
	}
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		c.ID = models.NewID()
	}
	unlock := s.locks.Lock(c.ID)
	defer unlock()

	if _, ok := s.lookup(c.ID); ok {
		return models.Opportunity{}, apperr.Validation(op, "opportunity %q already exists", c.ID)
	}
	o, err := models.NewOpportunity(op, c, s.now())
	if err != nil {
		return models.Opportunity{}, err
	}

	s.mu.Lock()
	s.seq++
	s.items[o.ID] = record{opp: o, seq: s.seq}
	s.mu.Unlock()
	return o.Clone(), nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Opportunity, error) {
	if err := ctx.Err(); err != nil {
		return models.Opportunity{}, err
	}
	rec, ok := s.lookup(id)
	if !ok {
		return models.Opportunity{}, apperr.NotFound("memory.get", id)
	}
	return rec.opp.Clone(), nil
}

func (s *Store) Update(ctx context.Context, id string, p models.Patch) (models.Opportunity, bool, error) {
	const op = "memory.update"
	if err := ctx.Err(); err != nil {
		return models.Opportunity{}, false, err
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	rec, ok := s.lookup(id)
	if !ok {
		return models.Opportunity{}, false, apperr.NotFound(op, id)
	}
	next, changed, err := models.Apply(op, rec.opp, p)
	if err != nil {
		return models.Opportunity{}, false, err
	}
	if !changed {
		return rec.opp.Clone(), false, nil
	}

	s.mu.Lock()
	s.items[id] = record{opp: next, seq: rec.seq}
	s.mu.Unlock()
	return next.Clone(), true, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false, nil
	}
	delete(s.items, id)
	return true, nil
}

func (s *Store) List(ctx context.Context, filter repository.ListFilter) ([]models.Opportunity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	items := make([]repository.Sequenced, 0, len(s.items))
	for _, rec := range s.items {
		if !filter.Matches(rec.opp) {
			continue
		}
		items = append(items, repository.Sequenced{Opportunity: rec.opp.Clone(), Seq: rec.seq})
	}
	s.mu.RUnlock()
	return repository.SortCanonical(items), nil
}

func (s *Store) lookup(id string) (record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[id]
	return rec, ok
}
