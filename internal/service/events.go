package service

import (
	"context"
	"time"

	"github.com/eventpool/backend/internal/apperr"
	"github.com/eventpool/backend/internal/domain"
	"github.com/eventpool/backend/internal/logger"
	"github.com/eventpool/backend/internal/repository"
)

// EventService exposes read and curation operations over canonical events.
type EventService struct {
	eventRepo       *repository.EventRepository
	eventSourceRepo *repository.EventSourceRepository
}

// NewEventService creates a new event service.
func NewEventService(eventRepo *repository.EventRepository, eventSourceRepo *repository.EventSourceRepository) *EventService {
	return &EventService{
		eventRepo:       eventRepo,
		eventSourceRepo: eventSourceRepo,
	}
}

// EventDetail is one event together with every source delivery backing it.
type EventDetail struct {
	*domain.CanonicalEvent
	Sources []domain.EventSource `json:"sources"`
}

// Get returns one event by ID.
func (s *EventService) Get(ctx context.Context, id string) (*domain.CanonicalEvent, error) {
	return s.eventRepo.GetByID(ctx, id)
}

// Detail returns one event with its per-source delivery rows.
func (s *EventService) Detail(ctx context.Context, id string) (*EventDetail, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	sources, err := s.eventSourceRepo.ListByEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return &EventDetail{CanonicalEvent: event, Sources: sources}, nil
}

// List returns events filtered by status, newest first.
func (s *EventService) List(ctx context.Context, status domain.EventStatus, limit, offset int) ([]domain.CanonicalEvent, error) {
	return s.eventRepo.ListByStatus(ctx, status, limit, offset)
}

// Approve promotes a reviewed event to published. The same hard constraint
// the automated path enforces applies here: an event without a start time
// cannot be published, and a start time already in the past archives instead.
func (s *EventService) Approve(ctx context.Context, id, reviewer string) (*domain.CanonicalEvent, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.Status != domain.EventStatusPendingReview {
		return nil, apperr.Conflict("event %s is %s, not pending review", id, event.Status)
	}
	if event.StartTime == nil {
		return nil, apperr.Validation("event %s has no start time and cannot be published", id)
	}

	prev := event.Status
	target := domain.EventStatusPublished
	if event.StartTime.Before(time.Now()) {
		target = domain.EventStatusArchived
	}
	event.Status = target
	s.recordReview(event, string(prev), reviewer)

	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, err
	}
	logger.With(logger.Fields{
		logger.FieldEventID: id,
		logger.FieldStatus:  string(target),
	}).Info(ctx, "Event approved by %s", reviewer)
	return event, nil
}

// Reject marks a reviewed event as rejected.
func (s *EventService) Reject(ctx context.Context, id, reviewer string) (*domain.CanonicalEvent, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.Status == domain.EventStatusRejected || event.Status == domain.EventStatusArchived {
		return nil, apperr.Conflict("event %s is already %s", id, event.Status)
	}
	prev := event.Status
	event.Status = domain.EventStatusRejected
	s.recordReview(event, string(prev), reviewer)

	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, err
	}
	logger.CtxInfo(ctx, "Event %s rejected by %s", id, reviewer)
	return event, nil
}

// LockField pins a field against future merges regardless of source priority.
func (s *EventService) LockField(ctx context.Context, id, field string) (*domain.CanonicalEvent, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.FieldLocked(field) {
		return event, nil
	}
	event.LockedFields = append(event.LockedFields, field)
	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// Stats returns per-status event counts.
func (s *EventService) Stats(ctx context.Context) (map[string]int64, error) {
	statuses := []domain.EventStatus{
		domain.EventStatusIncomplete,
		domain.EventStatusPendingAI,
		domain.EventStatusPendingReview,
		domain.EventStatusPublished,
		domain.EventStatusRejected,
		domain.EventStatusArchived,
	}
	stats := make(map[string]int64, len(statuses))
	for _, st := range statuses {
		n, err := s.eventRepo.CountByStatus(ctx, st)
		if err != nil {
			return nil, err
		}
		stats[string(st)] = n
	}
	return stats, nil
}

func (s *EventService) recordReview(event *domain.CanonicalEvent, previousStatus, reviewer string) {
	if event.FieldProvenance == nil {
		event.FieldProvenance = domain.ProvenanceMap{}
	}
	event.FieldProvenance["status"] = domain.FieldProvenance{
		Source:        "review:" + reviewer,
		At:            time.Now(),
		PreviousValue: previousStatus,
	}
}
