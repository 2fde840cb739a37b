package service

import (
	"context"
	"fmt"
	"time"

	"github.com/eventpool/backend/internal/apperr"
	"github.com/eventpool/backend/internal/domain"
	"github.com/eventpool/backend/internal/fingerprint"
	"github.com/eventpool/backend/internal/logger"
	"github.com/eventpool/backend/internal/repository"
	"github.com/google/uuid"
)

// IngestConfig holds the source health escalation thresholds.
type IngestConfig struct {
	DegradedAfter int
	FailingAfter  int
	DeadAfter     int
}

// IngestService applies delivered candidate batches to the canonical store.
// Each candidate is processed independently: one bad item never aborts the
// batch, it is recorded as ignored with a reason and the loop continues.
type IngestService struct {
	eventRepo       *repository.EventRepository
	eventSourceRepo *repository.EventSourceRepository
	sourceRepo      *repository.SourceRepository
	runRepo         *repository.RunRepository
	merger          *MergeResolver
	dedupe          *DedupeService
	cfg             IngestConfig
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	eventRepo *repository.EventRepository,
	eventSourceRepo *repository.EventSourceRepository,
	sourceRepo *repository.SourceRepository,
	runRepo *repository.RunRepository,
	merger *MergeResolver,
	dedupe *DedupeService,
	cfg IngestConfig,
) *IngestService {
	return &IngestService{
		eventRepo:       eventRepo,
		eventSourceRepo: eventSourceRepo,
		sourceRepo:      sourceRepo,
		runRepo:         runRepo,
		merger:          merger,
		dedupe:          dedupe,
		cfg:             cfg,
	}
}

// BatchResult is the outcome of one ingest call.
type BatchResult struct {
	Run     *domain.IngestRun         `json:"run"`
	Results []domain.IngestItemResult `json:"results"`
}

// ProcessBatch ingests a batch of candidates for one source. The run record
// is created (or resumed when runID names an existing run), per-item results
// are collected, aggregates and terminal status are written, and the source's
// health counters are updated.
func (s *IngestService) ProcessBatch(ctx context.Context, sourceID, runID string, candidates []domain.RawCandidate) (*BatchResult, error) {
	src, err := s.sourceRepo.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	run, err := s.openRun(ctx, src.ID, runID)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetRunID(ctx, run.ID)

	logger.With(logger.Fields{
		logger.FieldSource: src.ID,
		logger.FieldCount:  len(candidates),
	}).Info(ctx, "Starting ingest batch")

	results := make([]domain.IngestItemResult, 0, len(candidates))
	for i := range candidates {
		result := s.processCandidate(ctx, src, &candidates[i])
		result.Index = i
		results = append(results, result)

		run.ItemsFound++
		switch result.Status {
		case domain.IngestResultCreated:
			run.ItemsCreated++
		case domain.IngestResultUpdated, domain.IngestResultDuplicate:
			run.ItemsUpdated++
		case domain.IngestResultUnchanged:
			run.ItemsUnchanged++
		case domain.IngestResultIgnored:
			run.ItemsIgnored++
		}
	}

	s.finishRun(ctx, run)

	if err := s.updateSourceHealth(ctx, src, run.Status); err != nil {
		logger.CtxWarn(ctx, "Failed to update source health: %v", err)
	}

	logger.With(logger.Fields{
		logger.FieldStatus: string(run.Status),
		"created":          run.ItemsCreated,
		"updated":          run.ItemsUpdated,
		"unchanged":        run.ItemsUnchanged,
		"ignored":          run.ItemsIgnored,
	}).Info(ctx, "Ingest batch completed")

	return &BatchResult{Run: run, Results: results}, nil
}

// processCandidate applies one delivered item. Panics and errors are
// captured into an ignored result so the surrounding loop always proceeds.
func (s *IngestService) processCandidate(ctx context.Context, src *domain.Source, cand *domain.RawCandidate) (result domain.IngestItemResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.CtxError(ctx, "Panic while processing candidate: %v", r)
			result = domain.IngestItemResult{
				Status: domain.IngestResultIgnored,
				Reason: fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	var start time.Time
	if cand.StartTime != nil {
		start = *cand.StartTime
	}
	fp, err := fingerprint.Compute(cand.Title, start, cand.Lat, cand.Lng)
	if err != nil {
		return domain.IngestItemResult{
			Status: domain.IngestResultIgnored,
			Reason: err.Error(),
		}
	}
	idemKey := fingerprint.IdempotencyKey(src.ID, fp, start)

	// Redelivery from the same source: refresh the snapshot and re-resolve
	// fields against the owning event.
	existing, err := s.eventSourceRepo.GetByIdentity(ctx, src.ID, fp)
	if err == nil {
		return s.applyRedelivery(ctx, src, cand, existing, fp, idemKey)
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return ignoredResult(fp, err)
	}

	// Same fingerprint seen via another source: fingerprint equality is
	// definitionally the same event, attach and merge without human review.
	owner, err := s.eventRepo.GetByFingerprint(ctx, fp)
	if err == nil {
		return s.attachSource(ctx, src, cand, owner, fp, idemKey)
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return ignoredResult(fp, err)
	}

	return s.createEvent(ctx, src, cand, fp, idemKey)
}

func ignoredResult(fp string, err error) domain.IngestItemResult {
	return domain.IngestItemResult{
		Status:      domain.IngestResultIgnored,
		Fingerprint: fp,
		Reason:      err.Error(),
	}
}

func (s *IngestService) applyRedelivery(ctx context.Context, src *domain.Source, cand *domain.RawCandidate, es *domain.EventSource, fp, idemKey string) domain.IngestItemResult {
	es.IdempotencyKey = idemKey
	es.ExternalID = cand.ExternalID
	es.SourceURL = cand.SourceURL
	es.FetchedAt = time.Now()
	es.RawData = cand.RawPayload
	es.NormalizedData = normalizedSnapshot(cand)
	if err := s.eventSourceRepo.Upsert(ctx, es); err != nil {
		return ignoredResult(fp, err)
	}

	event, err := s.eventRepo.GetByID(ctx, es.CanonicalEventID)
	if err != nil {
		return ignoredResult(fp, err)
	}

	changed := s.merger.Apply(event, cand, src, time.Now())
	if len(changed) == 0 {
		return domain.IngestItemResult{
			Status:      domain.IngestResultUnchanged,
			EventID:     event.ID,
			Fingerprint: fp,
		}
	}

	event.CompletenessScore = CompletenessScore(event)
	if event.Status == domain.EventStatusIncomplete && !missingRequiredFields(event) {
		event.Status = domain.EventStatusPendingAI
	}
	if err := s.eventRepo.Update(ctx, event); err != nil {
		return ignoredResult(fp, err)
	}

	return domain.IngestItemResult{
		Status:      domain.IngestResultUpdated,
		EventID:     event.ID,
		Fingerprint: fp,
	}
}

func (s *IngestService) attachSource(ctx context.Context, src *domain.Source, cand *domain.RawCandidate, owner *domain.CanonicalEvent, fp, idemKey string) domain.IngestItemResult {
	es := s.newEventSource(src, cand, owner.ID, fp, idemKey, false)
	if err := s.eventSourceRepo.Upsert(ctx, es); err != nil {
		return ignoredResult(fp, err)
	}

	changed := s.merger.Apply(owner, cand, src, time.Now())
	owner.CompletenessScore = CompletenessScore(owner)
	if owner.Status == domain.EventStatusIncomplete && !missingRequiredFields(owner) {
		owner.Status = domain.EventStatusPendingAI
	}
	if err := s.eventRepo.Update(ctx, owner); err != nil {
		return ignoredResult(fp, err)
	}

	status := domain.IngestResultDuplicate
	if len(changed) > 0 {
		status = domain.IngestResultUpdated
	}
	return domain.IngestItemResult{
		Status:      status,
		EventID:     owner.ID,
		Fingerprint: fp,
	}
}

func (s *IngestService) createEvent(ctx context.Context, src *domain.Source, cand *domain.RawCandidate, fp, idemKey string) domain.IngestItemResult {
	event := &domain.CanonicalEvent{
		ID:              uuid.New().String(),
		Status:          domain.EventStatusIncomplete,
		FieldProvenance: domain.ProvenanceMap{},
		LockedFields:    domain.StringArray{},
		MergedFrom:      domain.StringArray{},
	}
	s.merger.Apply(event, cand, src, time.Now())
	event.CompletenessScore = CompletenessScore(event)
	if !missingRequiredFields(event) {
		event.Status = domain.EventStatusPendingAI
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return ignoredResult(fp, err)
	}

	es := s.newEventSource(src, cand, event.ID, fp, idemKey, true)
	if err := s.eventSourceRepo.Create(ctx, es); err != nil {
		// The event row has no delivery attached to it, so roll it back
		// regardless of why the insert failed.
		_ = s.eventRepo.Delete(ctx, event.ID)
		// Lost the (source_id, fingerprint) race: another writer created the
		// delivery first. Take the update path against the winner's row.
		if apperr.Is(err, apperr.KindConflict) {
			if winner, gerr := s.eventSourceRepo.GetByIdentity(ctx, src.ID, fp); gerr == nil {
				return s.applyRedelivery(ctx, src, cand, winner, fp, idemKey)
			}
		}
		return ignoredResult(fp, err)
	}

	// Non-exact duplicate detection is best effort: a detector failure must
	// not turn a successful creation into an ignored item.
	if s.dedupe != nil {
		if _, derr := s.dedupe.FindCandidates(ctx, event); derr != nil {
			logger.CtxWarn(ctx, "Duplicate detection failed for event %s: %v", event.ID, derr)
		}
	}

	return domain.IngestItemResult{
		Status:      domain.IngestResultCreated,
		EventID:     event.ID,
		Fingerprint: fp,
	}
}

func (s *IngestService) newEventSource(src *domain.Source, cand *domain.RawCandidate, eventID, fp, idemKey string, primary bool) *domain.EventSource {
	return &domain.EventSource{
		ID:               uuid.New().String(),
		CanonicalEventID: eventID,
		SourceID:         src.ID,
		Fingerprint:      fp,
		IdempotencyKey:   idemKey,
		ExternalID:       cand.ExternalID,
		SourceURL:        cand.SourceURL,
		IsPrimary:        primary,
		FetchedAt:        time.Now(),
		RawData:          cand.RawPayload,
		NormalizedData:   normalizedSnapshot(cand),
	}
}

func (s *IngestService) openRun(ctx context.Context, sourceID, runID string) (*domain.IngestRun, error) {
	if runID != "" {
		run, err := s.runRepo.GetByID(ctx, runID)
		if err != nil {
			return nil, err
		}
		if run.SourceID != sourceID {
			return nil, apperr.Validation("run %s belongs to source %s", runID, run.SourceID)
		}
		return run, nil
	}

	run := &domain.IngestRun{
		ID:        uuid.New().String(),
		SourceID:  sourceID,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now(),
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *IngestService) finishRun(ctx context.Context, run *domain.IngestRun) {
	switch {
	case run.ItemsFound > 0 && run.ItemsIgnored == run.ItemsFound:
		run.Status = domain.RunStatusFailed
		run.NeedsAttention = true
	case run.ItemsIgnored > 0:
		run.Status = domain.RunStatusPartial
		run.NeedsAttention = true
	default:
		run.Status = domain.RunStatusSuccess
	}
	now := time.Now()
	run.CompletedAt = &now

	if err := s.runRepo.Update(ctx, run); err != nil {
		logger.CtxError(ctx, "Failed to persist run aggregates: %v", err)
	}
}

// updateSourceHealth resets the failure streak on success and escalates the
// health status through degraded, failing, and dead on repeated failures.
func (s *IngestService) updateSourceHealth(ctx context.Context, src *domain.Source, runStatus domain.RunStatus) error {
	if runStatus != domain.RunStatusFailed {
		return s.sourceRepo.RecordSuccess(ctx, src.ID)
	}

	streak := src.ConsecutiveFailures + 1
	health := domain.SourceHealthHealthy
	switch {
	case streak >= s.cfg.DeadAfter:
		health = domain.SourceHealthDead
	case streak >= s.cfg.FailingAfter:
		health = domain.SourceHealthFailing
	case streak >= s.cfg.DegradedAfter:
		health = domain.SourceHealthDegraded
	}
	return s.sourceRepo.RecordFailure(ctx, src.ID, health)
}

// normalizedSnapshot captures the candidate's parsed fields for audit.
func normalizedSnapshot(cand *domain.RawCandidate) domain.JSONMap {
	snap := domain.JSONMap{
		"title": cand.Title,
	}
	if cand.StartTime != nil {
		snap["start_time"] = cand.StartTime.UTC().Format(time.RFC3339)
	}
	if cand.EndTime != nil {
		snap["end_time"] = cand.EndTime.UTC().Format(time.RFC3339)
	}
	if cand.VenueName != "" {
		snap["venue_name"] = cand.VenueName
	}
	if cand.Address != "" {
		snap["address"] = cand.Address
	}
	if cand.Lat != 0 || cand.Lng != 0 {
		snap["lat"] = cand.Lat
		snap["lng"] = cand.Lng
	}
	if cand.Price != "" {
		snap["price"] = cand.Price
	}
	if cand.Category != "" {
		snap["category"] = cand.Category
	}
	return snap
}

// requiredFields must be present before an event can leave incomplete.
var requiredFields = []string{"title", "start_time", "venue_name"}

// optionalFields contribute to the completeness score but do not gate status.
var optionalFields = []string{"description", "end_time", "address", "lat", "price", "category", "image_url", "booking_url"}

func missingRequiredFields(event *domain.CanonicalEvent) bool {
	for _, f := range requiredFields {
		if isEmptyValue(eventFieldValue(event, f)) {
			return true
		}
	}
	return false
}

// CompletenessScore scores how filled-in an event is: required fields carry
// twice the weight of optional ones. Range [0, 1].
func CompletenessScore(event *domain.CanonicalEvent) float64 {
	total := 2*len(requiredFields) + len(optionalFields)
	got := 0
	for _, f := range requiredFields {
		if !isEmptyValue(eventFieldValue(event, f)) {
			got += 2
		}
	}
	for _, f := range optionalFields {
		if !isEmptyValue(eventFieldValue(event, f)) {
			got++
		}
	}
	return float64(got) / float64(total)
}
