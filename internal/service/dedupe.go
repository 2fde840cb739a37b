package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/eventpool/backend/internal/apperr"
	"github.com/eventpool/backend/internal/domain"
	"github.com/eventpool/backend/internal/fingerprint"
	"github.com/eventpool/backend/internal/logger"
	"github.com/eventpool/backend/internal/repository"
	"github.com/google/uuid"
)

// DedupeConfig holds thresholds for the duplicate detector.
type DedupeConfig struct {
	// LikelyThreshold and MaybeThreshold bucket the match score.
	LikelyThreshold float64
	MaybeThreshold  float64
	// TimeWindow bounds which other events are compared at all.
	TimeWindow time.Duration
}

// DedupeService detects probable duplicates across sources and performs
// merges. Exact fingerprint matches never reach this service: fingerprint
// equality is definitionally the same event and is auto-merged at ingest.
// Everything here below certainty is filed for human review, never
// auto-merged.
type DedupeService struct {
	eventRepo       *repository.EventRepository
	eventSourceRepo *repository.EventSourceRepository
	duplicateRepo   *repository.DuplicateRepository
	cfg             DedupeConfig
}

// NewDedupeService creates a new DedupeService.
func NewDedupeService(
	eventRepo *repository.EventRepository,
	eventSourceRepo *repository.EventSourceRepository,
	duplicateRepo *repository.DuplicateRepository,
	cfg DedupeConfig,
) *DedupeService {
	return &DedupeService{
		eventRepo:       eventRepo,
		eventSourceRepo: eventSourceRepo,
		duplicateRepo:   duplicateRepo,
		cfg:             cfg,
	}
}

// Score computes the match score between two events from date proximity,
// location proximity, and title similarity. Range [0, 1].
func Score(a, b *domain.CanonicalEvent) float64 {
	return 0.35*dateProximity(a.StartTime, b.StartTime) +
		0.25*locationProximity(a.Lat, a.Lng, b.Lat, b.Lng) +
		0.40*titleSimilarity(a.Title, b.Title)
}

// FindCandidates scores the event against other non-archived events within
// the time window and files a DuplicateCandidate for every pair above the
// maybe threshold. Returns the number of pairs filed.
func (s *DedupeService) FindCandidates(ctx context.Context, event *domain.CanonicalEvent) (int, error) {
	if event.StartTime == nil {
		return 0, nil
	}

	others, err := s.eventRepo.ListNearby(ctx, *event.StartTime, s.cfg.TimeWindow, event.ID)
	if err != nil {
		return 0, err
	}

	filed := 0
	for i := range others {
		other := &others[i]
		score := Score(event, other)
		if score < s.cfg.MaybeThreshold {
			continue
		}

		confidence := domain.DuplicateConfidenceMaybe
		if score >= s.cfg.LikelyThreshold {
			confidence = domain.DuplicateConfidenceLikely
		}

		cand := &domain.DuplicateCandidate{
			ID:         uuid.New().String(),
			EventAID:   event.ID,
			EventBID:   other.ID,
			Confidence: confidence,
			Score:      score,
		}
		if err := s.duplicateRepo.File(ctx, cand); err != nil {
			return filed, err
		}
		filed++

		logger.With(logger.Fields{
			logger.FieldEventID: event.ID,
			"other_event_id":    other.ID,
			"score":             score,
			"confidence":        confidence,
		}).Info(ctx, "Filed duplicate candidate")
	}
	return filed, nil
}

// Merge reassigns all of secondary's sources to primary, appends secondary's
// id and its prior merged_from entries to primary's lineage, and archives
// secondary. It never deletes. Re-merging an already-merged pair is a no-op.
func (s *DedupeService) Merge(ctx context.Context, primaryID, secondaryID string) error {
	primary, err := s.eventRepo.GetByID(ctx, primaryID)
	if err != nil {
		return err
	}
	secondary, err := s.eventRepo.GetByID(ctx, secondaryID)
	if err != nil {
		return err
	}

	if secondary.Status == domain.EventStatusArchived && primary.MergedFrom.Contains(secondary.ID) {
		return nil
	}

	if err := s.eventSourceRepo.Reassign(ctx, secondary.ID, primary.ID); err != nil {
		return err
	}

	// Preserve full lineage through chained merges: the loser's own history
	// folds into the winner's.
	if !primary.MergedFrom.Contains(secondary.ID) {
		primary.MergedFrom = append(primary.MergedFrom, secondary.ID)
	}
	for _, id := range secondary.MergedFrom {
		if !primary.MergedFrom.Contains(id) {
			primary.MergedFrom = append(primary.MergedFrom, id)
		}
	}
	if err := s.eventRepo.Update(ctx, primary); err != nil {
		return err
	}

	secondary.Status = domain.EventStatusArchived
	if err := s.eventRepo.Update(ctx, secondary); err != nil {
		return err
	}

	logger.With(logger.Fields{
		logger.FieldEventID: primary.ID,
		"archived_event_id": secondary.ID,
	}).Info(ctx, "Merged duplicate events")
	return nil
}

// Resolve records the human decision on a filed pair. A merged resolution
// folds the secondary event into the chosen primary before the decision is
// stored; different and ignored only close the pair.
func (s *DedupeService) Resolve(ctx context.Context, id string, resolution domain.DuplicateResolution, primaryID string) (*domain.DuplicateCandidate, error) {
	cand, err := s.duplicateRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cand.Resolved() {
		return nil, apperr.Conflict("duplicate pair %s already resolved as %s", id, cand.Resolution)
	}

	if resolution == domain.DuplicateResolutionMerged {
		primary, secondary := cand.EventAID, cand.EventBID
		switch primaryID {
		case "", cand.EventAID:
		case cand.EventBID:
			primary, secondary = cand.EventBID, cand.EventAID
		default:
			return nil, apperr.Validation("primary_id %s is not part of pair %s", primaryID, id)
		}
		if err := s.Merge(ctx, primary, secondary); err != nil {
			return nil, err
		}
	}

	if err := s.duplicateRepo.Resolve(ctx, id, resolution); err != nil {
		return nil, err
	}
	return s.duplicateRepo.GetByID(ctx, id)
}

// dateProximity scores how close two start times are: 1.0 for the same
// minute, falling off linearly to 0 at 24 hours apart.
func dateProximity(a, b *time.Time) float64 {
	if a == nil || b == nil {
		return 0
	}
	diff := a.Sub(*b).Abs()
	if diff >= 24*time.Hour {
		return 0
	}
	return 1 - float64(diff)/float64(24*time.Hour)
}

// locationProximity scores distance: 1.0 at the same point, 0 beyond 2 km.
// Events without coordinates contribute a neutral half score so a missing
// geocode neither forces nor forbids a match.
func locationProximity(latA, lngA, latB, lngB float64) float64 {
	if (latA == 0 && lngA == 0) || (latB == 0 && lngB == 0) {
		return 0.5
	}
	d := haversineMeters(latA, lngA, latB, lngB)
	if d >= 2000 {
		return 0
	}
	return 1 - d/2000
}

// titleSimilarity compares normalized titles by token overlap (Jaccard).
func titleSimilarity(a, b string) float64 {
	tokensA := strings.Fields(fingerprint.NormalizeTitle(a))
	tokensB := strings.Fields(fingerprint.NormalizeTitle(b))
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		setA[t] = true
	}
	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// haversineMeters returns the great-circle distance between two points.
func haversineMeters(latA, lngA, latB, lngB float64) float64 {
	const earthRadius = 6371000.0
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(latB - latA)
	dLng := toRad(lngB - lngA)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(latA))*math.Cos(toRad(latB))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(h))
}
