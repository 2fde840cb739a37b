package repository

import (
	"context"
	"errors"

	"github.com/eventpool/backend/internal/apperr"
	"github.com/eventpool/backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventSourceRepository handles per-source delivery records.
type EventSourceRepository struct {
	db *gorm.DB
}

// NewEventSourceRepository creates a new EventSourceRepository.
func NewEventSourceRepository(db *gorm.DB) *EventSourceRepository {
	return &EventSourceRepository{db: db}
}

// Upsert creates or refreshes the delivery record keyed by
// (source_id, fingerprint). Two concurrent ingestions resolving to the same
// identity race on the unique index; the loser falls into the update path
// here instead of creating a duplicate row.
func (r *EventSourceRepository) Upsert(ctx context.Context, es *domain.EventSource) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source_id"}, {Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"external_id", "source_url", "fetched_at", "raw_data", "normalized_data", "updated_at",
		}),
	}).Create(es).Error
	if err != nil {
		return apperr.Persistence(err, "failed to upsert event source")
	}
	return nil
}

// Create inserts a new delivery record. A duplicate-key violation on
// (source_id, fingerprint) is reported as a conflict so the caller can fall
// back to the update path.
func (r *EventSourceRepository) Create(ctx context.Context, es *domain.EventSource) error {
	if err := r.db.WithContext(ctx).Create(es).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("delivery for source %s fingerprint %s already exists", es.SourceID, es.Fingerprint)
		}
		return apperr.Persistence(err, "failed to create event source")
	}
	return nil
}

// GetByIdentity retrieves the delivery record for (source_id, fingerprint).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sourceID: source identifier.
//   - fp: event fingerprint.
//
// Returns:
//   - *domain.EventSource: record if found.
//   - error: not-found or persistence error.
func (r *EventSourceRepository) GetByIdentity(ctx context.Context, sourceID, fp string) (*domain.EventSource, error) {
	var es domain.EventSource
	if err := r.db.WithContext(ctx).
		First(&es, "source_id = ? AND fingerprint = ?", sourceID, fp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no delivery for source %s fingerprint %s", sourceID, fp)
		}
		return nil, apperr.Persistence(err, "failed to load event source")
	}
	return &es, nil
}

// ListByEvent retrieves all delivery records owned by a canonical event.
func (r *EventSourceRepository) ListByEvent(ctx context.Context, eventID string) ([]domain.EventSource, error) {
	var sources []domain.EventSource
	if err := r.db.WithContext(ctx).
		Where("canonical_event_id = ?", eventID).
		Order("created_at ASC").
		Find(&sources).Error; err != nil {
		return nil, apperr.Persistence(err, "failed to list event sources")
	}
	return sources, nil
}

// Reassign moves every delivery record from one canonical event to another.
// Used by merge: the secondary's sources become the primary's.
func (r *EventSourceRepository) Reassign(ctx context.Context, fromEventID, toEventID string) error {
	err := r.db.WithContext(ctx).Model(&domain.EventSource{}).
		Where("canonical_event_id = ?", fromEventID).
		Update("canonical_event_id", toEventID).Error
	if err != nil {
		return apperr.Persistence(err, "failed to reassign event sources")
	}
	return nil
}
