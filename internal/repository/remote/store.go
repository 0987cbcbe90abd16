package remoterepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/aggregate"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/apperr"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/models"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/remote"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/repository"
)

// ItemClient is the part of the remote client the store writes through.
type ItemClient interface {
	PutItem(ctx context.Context, namespace []string, key string, value map[string]any) error
	GetItem(ctx context.Context, namespace []string, key string) (remote.Item, error)
	DeleteItem(ctx context.Context, namespace []string, key string) error
}

// Store keeps opportunities as items of the remote key-value store, one item
// per id. Per-id locking covers this process only; the remote store offers
// no compare-and-swap.
type Store struct {
	client    ItemClient
	lister    repository.Lister
	namespace []string
	locks     repository.KeyedMutex
	now       func() time.Time
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

// New builds a store. Listing is delegated to lister, usually a board
// RemoteSource over the same namespace.
func New(client ItemClient, lister repository.Lister, namespace []string, opts ...Option) *Store {
	if len(namespace) == 0 {
		namespace = aggregate.OpportunitiesNamespace
	}
	s := &Store{
		client:    client,
		lister:    lister,
		namespace: namespace,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Add(ctx context.Context, c models.Candidate) (models.Opportunity, error) {
	const op = "remote_store.add"
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		c.ID = models.NewID()
	}
	unlock := s.locks.Lock(c.ID)
	defer unlock()

	_, err := s.fetch(ctx, c.ID)
	if err == nil {
		return models.Opportunity{}, apperr.Validation(op, "opportunity %q already exists", c.ID)
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return models.Opportunity{}, err
	}
	o, err := models.NewOpportunity(op, c, s.now())
	if err != nil {
		return models.Opportunity{}, err
	}
	if err := s.put(ctx, o); err != nil {
		return models.Opportunity{}, err
	}
	return o, nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Opportunity, error) {
	return s.fetch(ctx, id)
}

func (s *Store) Update(ctx context.Context, id string, p models.Patch) (models.Opportunity, bool, error) {
	const op = "remote_store.update"
	unlock := s.locks.Lock(id)
	defer unlock()

	current, err := s.fetch(ctx, id)
	if err != nil {
		return models.Opportunity{}, false, err
	}
	next, changed, err := models.Apply(op, current, p)
	if err != nil {
		return models.Opportunity{}, false, err
	}
	if !changed {
		return current, false, nil
	}
	if err := s.put(ctx, next); err != nil {
		return models.Opportunity{}, false, err
	}
	return next, true, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	_, err := s.fetch(ctx, id)
	existed := err == nil
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return false, err
	}
	if err := s.client.DeleteItem(ctx, s.namespace, id); err != nil {
		return false, err
	}
	return existed, nil
}

func (s *Store) List(ctx context.Context, filter repository.ListFilter) ([]models.Opportunity, error) {
	return s.lister.List(ctx, filter)
}

func (s *Store) fetch(ctx context.Context, id string) (models.Opportunity, error) {
	const op = "remote_store.get"
	item, err := s.client.GetItem(ctx, s.namespace, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Opportunity{}, apperr.NotFound(op, id)
		}
		return models.Opportunity{}, err
	}
	o, err := aggregate.Project(item)
	if err != nil {
		return models.Opportunity{}, &apperr.Error{Kind: apperr.KindProtocol, Op: op, Message: "stored value is not an opportunity", Err: err}
	}
	return o, nil
}

func (s *Store) put(ctx context.Context, o models.Opportunity) error {
	value, err := aggregate.Value(o)
	if err != nil {
		return err
	}
	return s.client.PutItem(ctx, s.namespace, o.ID, value)
}
