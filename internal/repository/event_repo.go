package repository

import (
	"context"
	"errors"
	"time"

	"github.com/eventpool/backend/internal/apperr"
	"github.com/eventpool/backend/internal/domain"
	"gorm.io/gorm"
)

// EventRepository handles canonical event data operations.
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new EventRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *EventRepository: repository instance bound to db.
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new canonical event record.
func (r *EventRepository) Create(ctx context.Context, event *domain.CanonicalEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return apperr.Persistence(err, "failed to create event")
	}
	return nil
}

// Update saves all fields of an existing canonical event.
func (r *EventRepository) Update(ctx context.Context, event *domain.CanonicalEvent) error {
	if err := r.db.WithContext(ctx).Save(event).Error; err != nil {
		return apperr.Persistence(err, "failed to update event")
	}
	return nil
}

// GetByID retrieves a canonical event by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: canonical event ID.
//
// Returns:
//   - *domain.CanonicalEvent: event record if found.
//   - error: not-found or persistence error.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*domain.CanonicalEvent, error) {
	var event domain.CanonicalEvent
	if err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("event %s not found", id)
		}
		return nil, apperr.Persistence(err, "failed to load event")
	}
	return &event, nil
}

// GetByFingerprint retrieves the canonical event owning the given fingerprint
// through any of its event sources.
func (r *EventRepository) GetByFingerprint(ctx context.Context, fp string) (*domain.CanonicalEvent, error) {
	var event domain.CanonicalEvent
	err := r.db.WithContext(ctx).
		Joins("JOIN event_sources ON event_sources.canonical_event_id = canonical_events.id").
		Where("event_sources.fingerprint = ?", fp).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("no event for fingerprint %s", fp)
		}
		return nil, apperr.Persistence(err, "failed to load event by fingerprint")
	}
	return &event, nil
}

// ListByStatus retrieves events by status with pagination.
func (r *EventRepository) ListByStatus(ctx context.Context, status domain.EventStatus, limit, offset int) ([]domain.CanonicalEvent, error) {
	var events []domain.CanonicalEvent
	query := r.db.WithContext(ctx)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.
		Limit(limit).
		Offset(offset).
		Order("start_time ASC").
		Find(&events).Error; err != nil {
		return nil, apperr.Persistence(err, "failed to list events")
	}
	return events, nil
}

// ListPendingAI retrieves up to limit events awaiting AI enrichment,
// oldest first so stalled events are not starved by new arrivals.
func (r *EventRepository) ListPendingAI(ctx context.Context, limit int) ([]domain.CanonicalEvent, error) {
	var events []domain.CanonicalEvent
	if err := r.db.WithContext(ctx).
		Where("status = ?", domain.EventStatusPendingAI).
		Order("updated_at ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, apperr.Persistence(err, "failed to list pending events")
	}
	return events, nil
}

// CountByStatus counts events by status.
func (r *EventRepository) CountByStatus(ctx context.Context, status domain.EventStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.CanonicalEvent{}).
		Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, apperr.Persistence(err, "failed to count events")
	}
	return count, nil
}

// Delete removes an event row. The pipeline never hard-deletes canonical
// events that own deliveries; this exists only to roll back a creation that
// lost the (source_id, fingerprint) race before any source was attached.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Delete(&domain.CanonicalEvent{}, "id = ?", id).Error; err != nil {
		return apperr.Persistence(err, "failed to delete event")
	}
	return nil
}

// ListNearby retrieves non-archived events whose start time falls within the
// window around the given time. Used by the duplicate detector; the bounding
// box cut on coordinates keeps the candidate set small.
func (r *EventRepository) ListNearby(ctx context.Context, start time.Time, window time.Duration, excludeID string) ([]domain.CanonicalEvent, error) {
	var events []domain.CanonicalEvent
	if err := r.db.WithContext(ctx).
		Where("start_time BETWEEN ? AND ?", start.Add(-window), start.Add(window)).
		Where("status NOT IN ?", []domain.EventStatus{domain.EventStatusArchived, domain.EventStatusRejected}).
		Where("id <> ?", excludeID).
		Find(&events).Error; err != nil {
		return nil, apperr.Persistence(err, "failed to list nearby events")
	}
	return events, nil
}
