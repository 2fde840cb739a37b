package repository

import (
	"context"
	"errors"

	"github.com/eventpool/backend/internal/apperr"
	"github.com/eventpool/backend/internal/domain"
	"gorm.io/gorm"
)

// RunRepository handles ingest run records.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new ingest run record.
func (r *RunRepository) Create(ctx context.Context, run *domain.IngestRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return apperr.Persistence(err, "failed to create ingest run")
	}
	return nil
}

// Update saves the run's counters and status.
func (r *RunRepository) Update(ctx context.Context, run *domain.IngestRun) error {
	if err := r.db.WithContext(ctx).Save(run).Error; err != nil {
		return apperr.Persistence(err, "failed to update ingest run")
	}
	return nil
}

// GetByID retrieves an ingest run by its ID.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.IngestRun, error) {
	var run domain.IngestRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("run %s not found", id)
		}
		return nil, apperr.Persistence(err, "failed to load ingest run")
	}
	return &run, nil
}

// List retrieves recent runs, newest first, optionally filtered by source.
func (r *RunRepository) List(ctx context.Context, sourceID string, limit, offset int) ([]domain.IngestRun, error) {
	var runs []domain.IngestRun
	query := r.db.WithContext(ctx)
	if sourceID != "" {
		query = query.Where("source_id = ?", sourceID)
	}
	if err := query.
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error; err != nil {
		return nil, apperr.Persistence(err, "failed to list ingest runs")
	}
	return runs, nil
}
