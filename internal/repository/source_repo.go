package repository

import (
	"context"
	"errors"
	"time"

	"github.com/eventpool/backend/internal/apperr"
	"github.com/eventpool/backend/internal/domain"
	"gorm.io/gorm"
)

// SourceRepository handles registered data sources and their health counters.
type SourceRepository struct {
	db *gorm.DB
}

// NewSourceRepository creates a new SourceRepository.
func NewSourceRepository(db *gorm.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// Create inserts a new source record.
func (r *SourceRepository) Create(ctx context.Context, src *domain.Source) error {
	if err := r.db.WithContext(ctx).Create(src).Error; err != nil {
		return apperr.Persistence(err, "failed to create source")
	}
	return nil
}

// GetByID retrieves a source by its ID.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	var src domain.Source
	if err := r.db.WithContext(ctx).First(&src, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("source %s not found", id)
		}
		return nil, apperr.Persistence(err, "failed to load source")
	}
	return &src, nil
}

// List retrieves all registered sources.
func (r *SourceRepository) List(ctx context.Context) ([]domain.Source, error) {
	var sources []domain.Source
	if err := r.db.WithContext(ctx).Order("priority DESC").Find(&sources).Error; err != nil {
		return nil, apperr.Persistence(err, "failed to list sources")
	}
	return sources, nil
}

// RecordSuccess resets the failure streak and marks the source healthy.
func (r *SourceRepository) RecordSuccess(ctx context.Context, id string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&domain.Source{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"consecutive_failures": 0,
			"health_status":        domain.SourceHealthHealthy,
			"last_success_at":      now,
		}).Error
	if err != nil {
		return apperr.Persistence(err, "failed to record source success")
	}
	return nil
}

// RecordFailure increments the failure streak and sets the escalated health status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: source ID.
//   - health: health status derived from the new streak by the caller.
//
// Returns:
//   - error: non-nil if the update fails.
func (r *SourceRepository) RecordFailure(ctx context.Context, id string, health domain.SourceHealth) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&domain.Source{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"consecutive_failures": gorm.Expr("consecutive_failures + 1"),
			"health_status":        health,
			"last_failure_at":      now,
		}).Error
	if err != nil {
		return apperr.Persistence(err, "failed to record source failure")
	}
	return nil
}
