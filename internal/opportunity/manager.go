package opportunity

import (
	"context"

	"go.uber.org/zap"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/feed"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/models"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/repository"
)

// Publisher receives committed changes.
type Publisher interface {
	Publish(typ feed.EventType, id string, o *models.Opportunity)
}

// Invalidator drops any cached view of the board.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Board serves filtered reads, possibly from a cache.
type Board interface {
	List(ctx context.Context, filter repository.ListFilter) ([]models.Opportunity, error)
}

// Manager applies writes to the store and fans the outcome out to the feed
// and the board cache. Reads of a single id go straight to the store.
type Manager struct {
	Store  repository.Store
	Board  Board
	Feed   Publisher
	Cache  Invalidator
	Logger *zap.Logger
}

func (m *Manager) List(ctx context.Context, filter repository.ListFilter) ([]models.Opportunity, error) {
	if m.Board != nil {
		return m.Board.List(ctx, filter)
	}
	return m.Store.List(ctx, filter)
}

func (m *Manager) Get(ctx context.Context, id string) (models.Opportunity, error) {
	return m.Store.Get(ctx, id)
}

func (m *Manager) Create(ctx context.Context, c models.Candidate) (models.Opportunity, error) {
	o, err := m.Store.Add(ctx, c)
	if err != nil {
		return models.Opportunity{}, err
	}
	m.committed(ctx, feed.EventCreated, o.ID, &o)
	m.logger().Info("opportunity created",
		zap.String("id", o.ID),
		zap.String("asset", o.Asset),
		zap.String("type", string(o.Type)),
		zap.Float64("confidence", o.Confidence),
	)
	return o, nil
}

// Update publishes only when the store reports a change. Only active
// opportunities can change, so a terminal result means the status just moved.
func (m *Manager) Update(ctx context.Context, id string, p models.Patch) (models.Opportunity, error) {
	o, changed, err := m.Store.Update(ctx, id, p)
	if err != nil {
		return models.Opportunity{}, err
	}
	if !changed {
		return o, nil
	}
	m.committed(ctx, feed.EventUpdated, o.ID, &o)
	if o.Status.Terminal() {
		m.logger().Info("opportunity status changed",
			zap.String("id", o.ID),
			zap.String("from", string(models.StatusActive)),
			zap.String("to", string(o.Status)),
		)
	}
	return o, nil
}

// Delete is idempotent; only an actual removal is published.
func (m *Manager) Delete(ctx context.Context, id string) error {
	removed, err := m.Store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if removed {
		m.committed(ctx, feed.EventDeleted, id, nil)
		m.logger().Info("opportunity deleted", zap.String("id", id))
	}
	return nil
}

func (m *Manager) committed(ctx context.Context, typ feed.EventType, id string, o *models.Opportunity) {
	if m.Cache != nil {
		m.Cache.Invalidate(ctx)
	}
	if m.Feed != nil {
		m.Feed.Publish(typ, id, o)
	}
}

func (m *Manager) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}
