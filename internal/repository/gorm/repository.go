package gormrepository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/apperr"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/models"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/repository"
)

// Store persists opportunities in PostgreSQL. Writers serialize per id in
// process and lock the row inside a transaction, so several instances can
// share one database.
type Store struct {
	db    *gorm.DB
	locks repository.KeyedMutex
	now   func() time.Time
}

var _ repository.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *Store) Add(ctx context.Context, c models.Candidate) (models.Opportunity, error) {
	const op = "gorm.add"
	c.ID = strings.TrimSpace(c.ID)
	if c.ID == "" {
		c.ID = models.NewID()
	}
	unlock := s.locks.Lock(c.ID)
	defer unlock()

	o, err := models.NewOpportunity(op, c, s.now())
	if err != nil {
		return models.Opportunity{}, err
	}
	rec := models.NewOpportunityRecord(o)
	err = s.InTx(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.OpportunityRecord{}).Where("id = ?", o.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperr.Validation(op, "opportunity %q already exists", o.ID)
		}
		return tx.Create(&rec).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.Opportunity{}, apperr.Validation(op, "opportunity %q already exists", o.ID)
	}
	if err != nil {
		return models.Opportunity{}, wrap(op, err)
	}
	return o, nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Opportunity, error) {
	const op = "gorm.get"
	var rec models.OpportunityRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Opportunity{}, apperr.NotFound(op, id)
	}
	if err != nil {
		return models.Opportunity{}, wrap(op, err)
	}
	return rec.Opportunity(), nil
}

func (s *Store) Update(ctx context.Context, id string, p models.Patch) (models.Opportunity, bool, error) {
	const op = "gorm.update"
	unlock := s.locks.Lock(id)
	defer unlock()

	var (
		out     models.Opportunity
		changed bool
	)
	err := s.InTx(ctx, func(tx *gorm.DB) error {
		var rec models.OpportunityRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(op, id)
		}
		if err != nil {
			return err
		}
		current := rec.Opportunity()
		next, ok, err := models.Apply(op, current, p)
		if err != nil {
			return err
		}
		out, changed = next, ok
		if !changed {
			return nil
		}
		row := models.NewOpportunityRecord(next)
		return tx.Model(&models.OpportunityRecord{}).Where("id = ?", id).Updates(map[string]any{
			"title":      row.Title,
			"asset":      row.Asset,
			"type":       row.Type,
			"confidence": row.Confidence,
			"rationale":  row.Rationale,
			"sources":    row.Sources,
			"metrics":    row.Metrics,
			"expires_at": row.ExpiresAt,
			"status":     row.Status,
			"tags":       row.Tags,
		}).Error
	})
	if err != nil {
		return models.Opportunity{}, false, wrap(op, err)
	}
	return out, changed, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	const op = "gorm.delete"
	unlock := s.locks.Lock(id)
	defer unlock()

	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.OpportunityRecord{})
	if res.Error != nil {
		return false, wrap(op, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// List reads in one statement, so the result is a consistent snapshot.
// COLLATE "C" makes the database compare created_at byte-wise.
func (s *Store) List(ctx context.Context, filter repository.ListFilter) ([]models.Opportunity, error) {
	const op = "gorm.list"
	query := s.db.WithContext(ctx).Model(&models.OpportunityRecord{})
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.MinConfidence != nil {
		query = query.Where("confidence >= ?", *filter.MinConfidence)
	}
	var recs []models.OpportunityRecord
	if err := query.Order(`created_at COLLATE "C" ASC`).Order("seq ASC").Find(&recs).Error; err != nil {
		return nil, wrap(op, err)
	}
	out := make([]models.Opportunity, 0, len(recs))
	for _, rec := range recs {
		o := rec.Opportunity()
		if len(filter.Tags) > 0 && !o.HasAnyTag(filter.Tags) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// wrap leaves typed errors alone and annotates database failures.
func wrap(op string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
