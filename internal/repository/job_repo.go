package repository

import (
	"context"
	"errors"
	"time"

	"github.com/eventpool/backend/internal/apperr"
	"github.com/eventpool/backend/internal/domain"
	"gorm.io/gorm"
)

// JobRepository handles persistent AI job records.
//
// Admission control lives here, not in the service: the ai_jobs table carries
// a partial unique index allowing at most one row with status='running', so
// two near-simultaneous start requests race on the constraint rather than on
// an application-level read-then-write.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateRunning inserts a new running job. When another job already holds the
// running slot the insert violates the partial unique index and a conflict
// error referencing the active job is returned.
func (r *JobRepository) CreateRunning(ctx context.Context, job *domain.AIJob) error {
	job.Status = domain.AIJobStatusRunning
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			activeID := ""
			if active, aerr := r.GetRunning(ctx); aerr == nil && active != nil {
				activeID = active.ID
			}
			return apperr.Conflict("a job is already running: %s", activeID)
		}
		return apperr.Persistence(err, "failed to create job")
	}
	return nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.AIJob, error) {
	var job domain.AIJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("job %s not found", id)
		}
		return nil, apperr.Persistence(err, "failed to load job")
	}
	return &job, nil
}

// GetRunning retrieves the currently running job, or nil if none.
func (r *JobRepository) GetRunning(ctx context.Context) (*domain.AIJob, error) {
	var job domain.AIJob
	err := r.db.WithContext(ctx).First(&job, "status = ?", domain.AIJobStatusRunning).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Persistence(err, "failed to load running job")
	}
	return &job, nil
}

// List retrieves recent jobs, newest first.
func (r *JobRepository) List(ctx context.Context, limit, offset int) ([]domain.AIJob, error) {
	var jobs []domain.AIJob
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error; err != nil {
		return nil, apperr.Persistence(err, "failed to list jobs")
	}
	return jobs, nil
}

// RecordProgress advances counters and refreshes the heartbeat for a running
// job. ProcessedItems only ever grows; the WHERE guard keeps a late write
// from a superseded process from touching a job that already left running.
func (r *JobRepository) RecordProgress(ctx context.Context, job *domain.AIJob) error {
	err := r.db.WithContext(ctx).Model(&domain.AIJob{}).
		Where("id = ? AND status = ? AND processed_items <= ?",
			job.ID, domain.AIJobStatusRunning, job.ProcessedItems).
		Updates(map[string]interface{}{
			"processed_items": job.ProcessedItems,
			"current_item_id": job.CurrentItemID,
			"heartbeat":       job.Heartbeat,
			"count_published": job.CountPublished,
			"count_review":    job.CountReview,
			"count_rejected":  job.CountRejected,
			"count_archived":  job.CountArchived,
			"count_failed":    job.CountFailed,
			"cost":            job.Cost,
		}).Error
	if err != nil {
		return apperr.Persistence(err, "failed to record job progress")
	}
	return nil
}

// MarkStale transitions a running job to stale. The status guard makes the
// reclassification happen in exactly one reconciliation step: concurrent
// readers race on the UPDATE and only one sees an affected row.
func (r *JobRepository) MarkStale(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.AIJob{}).
		Where("id = ? AND status = ?", id, domain.AIJobStatusRunning).
		Update("status", domain.AIJobStatusStale)
	if res.Error != nil {
		return false, apperr.Persistence(res.Error, "failed to mark job stale")
	}
	return res.RowsAffected > 0, nil
}

// Finish transitions a job into a terminal status. Applying the same terminal
// transition twice is a no-op beyond the timestamp refresh: the status guard
// only matches jobs still in one of the given from-states.
func (r *JobRepository) Finish(ctx context.Context, id string, to domain.AIJobStatus, from []domain.AIJobStatus, errorLog string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&domain.AIJob{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":       to,
			"error_log":    errorLog,
			"completed_at": now,
		}).Error
	if err != nil {
		return apperr.Persistence(err, "failed to finish job")
	}
	return nil
}

// PruneOlderThan deletes terminal jobs whose completion predates the cutoff.
// Jobs are retained for a bounded window only.
func (r *JobRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?", []domain.AIJobStatus{
			domain.AIJobStatusCompleted,
			domain.AIJobStatusFailed,
			domain.AIJobStatusCancelled,
		}, cutoff).
		Delete(&domain.AIJob{})
	if res.Error != nil {
		return 0, apperr.Persistence(res.Error, "failed to prune jobs")
	}
	return res.RowsAffected, nil
}
