package repository

import (
	"context"
	"errors"
	"time"

	"github.com/eventpool/backend/internal/apperr"
	"github.com/eventpool/backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DuplicateRepository handles filed duplicate candidate pairs.
type DuplicateRepository struct {
	db *gorm.DB
}

// NewDuplicateRepository creates a new DuplicateRepository.
func NewDuplicateRepository(db *gorm.DB) *DuplicateRepository {
	return &DuplicateRepository{db: db}
}

// PairKey builds the order-independent key for an event pair.
func PairKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}

// File records a candidate pair for human review. Filing the same pair again
// refreshes the score but keeps any recorded resolution, so re-detection
// after a restart is harmless.
func (r *DuplicateRepository) File(ctx context.Context, cand *domain.DuplicateCandidate) error {
	cand.PairKey = PairKey(cand.EventAID, cand.EventBID)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pair_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"confidence", "score", "updated_at"}),
	}).Create(cand).Error
	if err != nil {
		return apperr.Persistence(err, "failed to file duplicate candidate")
	}
	return nil
}

// GetByID retrieves a duplicate candidate by its ID.
func (r *DuplicateRepository) GetByID(ctx context.Context, id string) (*domain.DuplicateCandidate, error) {
	var cand domain.DuplicateCandidate
	if err := r.db.WithContext(ctx).First(&cand, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("duplicate candidate %s not found", id)
		}
		return nil, apperr.Persistence(err, "failed to load duplicate candidate")
	}
	return &cand, nil
}

// ListOpen retrieves unresolved candidates, highest score first.
func (r *DuplicateRepository) ListOpen(ctx context.Context, limit, offset int) ([]domain.DuplicateCandidate, error) {
	var cands []domain.DuplicateCandidate
	if err := r.db.WithContext(ctx).
		Where("resolution = ''").
		Order("score DESC").
		Limit(limit).
		Offset(offset).
		Find(&cands).Error; err != nil {
		return nil, apperr.Persistence(err, "failed to list duplicate candidates")
	}
	return cands, nil
}

// Resolve records the human decision for a candidate pair.
func (r *DuplicateRepository) Resolve(ctx context.Context, id string, resolution domain.DuplicateResolution) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&domain.DuplicateCandidate{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"resolution":  resolution,
			"resolved_at": now,
		})
	if res.Error != nil {
		return apperr.Persistence(res.Error, "failed to resolve duplicate candidate")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("duplicate candidate %s not found", id)
	}
	return nil
}
