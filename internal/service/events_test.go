package service

import (
	"context"
	"testing"
	"time"

	"github.com/eventpool/backend/internal/apperr"
	"github.com/eventpool/backend/internal/domain"
	"github.com/eventpool/backend/internal/repository"
)

func newEventFixture(t *testing.T) (*EventService, *repository.EventRepository) {
	t.Helper()
	db := newTestDB(t)
	repo := repository.NewEventRepository(db)
	return NewEventService(repo, repository.NewEventSourceRepository(db)), repo
}

func TestApproveEvent(t *testing.T) {
	svc, repo := newEventFixture(t)
	ctx := context.Background()
	future := timePtr(time.Now().Add(72 * time.Hour))

	if err := repo.Create(ctx, &domain.CanonicalEvent{
		ID: "e1", Title: "Jazz Night", StartTime: future, VenueName: "Blue Note",
		Status: domain.EventStatusPendingReview,
	}); err != nil {
		t.Fatalf("seed event: %v", err)
	}

	event, err := svc.Approve(ctx, "e1", "ana")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if event.Status != domain.EventStatusPublished {
		t.Errorf("status = %q, want published", event.Status)
	}
	if prov := event.FieldProvenance["status"]; prov.Source != "review:ana" {
		t.Errorf("review provenance = %+v", prov)
	}

	// Approving again is a conflict: the event already left review.
	if _, err := svc.Approve(ctx, "e1", "ana"); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("second approve error = %v, want conflict", err)
	}
}

func TestApproveHardConstraints(t *testing.T) {
	svc, repo := newEventFixture(t)
	ctx := context.Background()

	// No start time: cannot be published at all.
	if err := repo.Create(ctx, &domain.CanonicalEvent{
		ID: "no-start", Title: "Mystery Event", Status: domain.EventStatusPendingReview,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.Approve(ctx, "no-start", "ana"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("approve without start = %v, want validation error", err)
	}

	// Start already past: approval lands in archived, never published.
	past := timePtr(time.Now().Add(-time.Hour))
	if err := repo.Create(ctx, &domain.CanonicalEvent{
		ID: "past", Title: "Old Event", StartTime: past, Status: domain.EventStatusPendingReview,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	event, err := svc.Approve(ctx, "past", "ana")
	if err != nil {
		t.Fatalf("Approve past event: %v", err)
	}
	if event.Status != domain.EventStatusArchived {
		t.Errorf("status = %q, want archived for past start", event.Status)
	}
}

func TestRejectEvent(t *testing.T) {
	svc, repo := newEventFixture(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &domain.CanonicalEvent{
		ID: "e1", Title: "Spam Event", Status: domain.EventStatusPendingReview,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	event, err := svc.Reject(ctx, "e1", "ben")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if event.Status != domain.EventStatusRejected {
		t.Errorf("status = %q, want rejected", event.Status)
	}

	if _, err := svc.Reject(ctx, "e1", "ben"); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("second reject error = %v, want conflict", err)
	}
}

func TestLockField(t *testing.T) {
	svc, repo := newEventFixture(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &domain.CanonicalEvent{
		ID: "e1", Title: "Jazz Night", Status: domain.EventStatusPublished,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	event, err := svc.LockField(ctx, "e1", "title")
	if err != nil {
		t.Fatalf("LockField: %v", err)
	}
	if !event.FieldLocked("title") {
		t.Error("title not locked")
	}

	// Locking twice does not duplicate the entry.
	event, _ = svc.LockField(ctx, "e1", "title")
	count := 0
	for _, f := range event.LockedFields {
		if f == "title" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("title locked %d times, want 1", count)
	}
}
