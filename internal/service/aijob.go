package service

import (
	"context"
	"fmt"
	"time"

	"github.com/eventpool/backend/internal/apperr"
	"github.com/eventpool/backend/internal/domain"
	"github.com/eventpool/backend/internal/logger"
	"github.com/eventpool/backend/internal/repository"
	"github.com/google/uuid"
)

// Classifier is the classification collaborator contract.
type Classifier interface {
	Classify(ctx context.Context, event *domain.CanonicalEvent) (*Classification, error)
}

// Scorer is the scoring collaborator contract.
type Scorer interface {
	Score(ctx context.Context, event *domain.CanonicalEvent) (*Scores, error)
}

// AIJobConfig holds orchestrator thresholds.
type AIJobConfig struct {
	BatchSize int

	// CostPerItem approximates collaborator usage with a fixed constant.
	// Real usage-based accounting would require a usage echo from the
	// collaborators; until that exists the summary cost is an estimate.
	CostPerItem float64

	// StaleNoProgress applies while processed == 0 and catches a job stuck
	// before its first item; StaleWithProgress applies once progress exists
	// and tolerates normal per-item latency variance.
	StaleNoProgress   time.Duration
	StaleWithProgress time.Duration

	MinFitScore           float64
	AutoPublishFit        float64
	AutoPublishConfidence float64

	// ExtractConfidence gates filling missing event fields from the
	// classifier's extracted values.
	ExtractConfidence float64

	JobRetention time.Duration
}

// AIJobService drives a recoverable background enrichment batch over events
// awaiting AI processing.
//
// The persistent job record carries everything needed for correctness across
// crashes: counters, status, heartbeat, summary, cost. Per-item side effects
// are individually idempotent, so a crashed job needs no replay; a fresh job
// re-selects whatever is still pending, and the store-level single-running
// guard prevents double processing.
type AIJobService struct {
	jobRepo    *repository.JobRepository
	eventRepo  *repository.EventRepository
	detailRepo *repository.JobDetailRepository
	classifier Classifier
	scorer     Scorer
	cfg        AIJobConfig

	// now is a hook for tests; defaults to time.Now.
	now func() time.Time
}

// NewAIJobService creates a new orchestrator.
func NewAIJobService(
	jobRepo *repository.JobRepository,
	eventRepo *repository.EventRepository,
	detailRepo *repository.JobDetailRepository,
	classifier Classifier,
	scorer Scorer,
	cfg AIJobConfig,
) *AIJobService {
	return &AIJobService{
		jobRepo:    jobRepo,
		eventRepo:  eventRepo,
		detailRepo: detailRepo,
		classifier: classifier,
		scorer:     scorer,
		cfg:        cfg,
		now:        time.Now,
	}
}

// JobStatusView is the poll response for one job.
type JobStatusView struct {
	Job          *domain.AIJob            `json:"job"`
	HeartbeatAge float64                  `json:"heartbeat_age_seconds"`
	Items        []domain.AIJobItemDetail `json:"items,omitempty"`
}

// Start admits and launches a new enrichment job over the currently pending
// events. It returns immediately with the job record and the initial per-item
// snapshot; processing continues in a detached background goroutine that
// outlives the triggering request. A start request while a non-stale job is
// active is rejected with a conflict naming the active job.
func (s *AIJobService) Start(ctx context.Context) (*domain.AIJob, []domain.AIJobItemDetail, error) {
	// Lazy staleness pass so a dead job does not block admission forever.
	if active, err := s.jobRepo.GetRunning(ctx); err == nil && active != nil {
		s.reconcileStaleness(ctx, active)
	}

	events, err := s.eventRepo.ListPendingAI(ctx, s.cfg.BatchSize)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	job := &domain.AIJob{
		ID:         uuid.New().String(),
		TotalItems: len(events),
		Heartbeat:  now,
		StartedAt:  now,
	}
	if err := s.jobRepo.CreateRunning(ctx, job); err != nil {
		return nil, nil, err
	}

	// Old terminal jobs are retained for a bounded window only.
	if s.cfg.JobRetention > 0 {
		if _, perr := s.jobRepo.PruneOlderThan(ctx, now.Add(-s.cfg.JobRetention)); perr != nil {
			logger.CtxWarn(ctx, "Failed to prune old jobs: %v", perr)
		}
	}

	items := make([]domain.AIJobItemDetail, 0, len(events))
	for i := range events {
		detail := domain.AIJobItemDetail{
			EventID:   events[i].ID,
			Title:     events[i].Title,
			State:     domain.AIJobItemWaiting,
			UpdatedAt: now,
		}
		items = append(items, detail)
		s.detailRepo.Put(ctx, job.ID, &detail)
	}

	if len(events) == 0 {
		if err := s.jobRepo.Finish(ctx, job.ID, domain.AIJobStatusCompleted,
			[]domain.AIJobStatus{domain.AIJobStatusRunning}, ""); err != nil {
			return nil, nil, err
		}
		job.Status = domain.AIJobStatusCompleted
		return job, items, nil
	}

	// Detached from the request context: progress, cancellation, and errors
	// all flow through the persistent job record, never through this call.
	bgCtx := logger.SetJobID(context.Background(), job.ID)
	go s.runLoop(bgCtx, job, events)

	return job, items, nil
}

// Status returns the job with heartbeat age and whatever per-item detail the
// ephemeral cache still holds. Staleness is reconciled before returning.
func (s *AIJobService) Status(ctx context.Context, jobID string) (*JobStatusView, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	s.reconcileStaleness(ctx, job)

	return &JobStatusView{
		Job:          job,
		HeartbeatAge: s.now().Sub(job.Heartbeat).Seconds(),
		Items:        s.detailRepo.ListForJob(ctx, jobID),
	}, nil
}

// List returns recent jobs with staleness reconciled.
func (s *AIJobService) List(ctx context.Context, limit, offset int) ([]domain.AIJob, error) {
	jobs, err := s.jobRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		s.reconcileStaleness(ctx, &jobs[i])
	}
	return jobs, nil
}

// Cancel transitions a running or stale job to cancelled. Cancellation is
// cooperative at job granularity: the loop notices between items, so at most
// one further item may complete after this returns.
func (s *AIJobService) Cancel(ctx context.Context, jobID string) error {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return apperr.Conflict("job %s already %s", jobID, job.Status)
	}
	return s.jobRepo.Finish(ctx, jobID, domain.AIJobStatusCancelled,
		[]domain.AIJobStatus{domain.AIJobStatusRunning, domain.AIJobStatusStale}, "")
}

// reconcileStaleness applies the dual threshold to a running job and, when
// exceeded, persists the stale transition before the record reaches any
// caller. The repository guard ensures exactly one reconciliation wins.
func (s *AIJobService) reconcileStaleness(ctx context.Context, job *domain.AIJob) {
	if job.Status != domain.AIJobStatusRunning {
		return
	}
	threshold := s.cfg.StaleWithProgress
	if job.ProcessedItems == 0 {
		threshold = s.cfg.StaleNoProgress
	}
	if s.now().Sub(job.Heartbeat) <= threshold {
		return
	}

	marked, err := s.jobRepo.MarkStale(ctx, job.ID)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to mark job %s stale: %v", job.ID, err)
		return
	}
	if marked {
		logger.With(logger.Fields{
			logger.FieldJobID: job.ID,
			"processed":       job.ProcessedItems,
			"total":           job.TotalItems,
		}).Warn(ctx, "Job reclassified as stale")
	}
	job.Status = domain.AIJobStatusStale
}

// runLoop processes the batch. Per-item collaborator failures mark that item
// and continue; only whole-operation failures (store loss, programming error)
// fail the job.
func (s *AIJobService) runLoop(ctx context.Context, job *domain.AIJob, events []domain.CanonicalEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.CtxError(ctx, "Panic in job loop at item %d/%d: %v", job.ProcessedItems, job.TotalItems, r)
			_ = s.jobRepo.Finish(ctx, job.ID, domain.AIJobStatusFailed,
				[]domain.AIJobStatus{domain.AIJobStatusRunning, domain.AIJobStatusStale},
				fmt.Sprintf("panic at item %d: %v", job.ProcessedItems, r))
		}
	}()

	logger.With(logger.Fields{logger.FieldCount: job.TotalItems}).Info(ctx, "AI job started")

	for i := range events {
		// Cooperative cancellation check between items only.
		current, err := s.jobRepo.GetByID(ctx, job.ID)
		if err != nil {
			logger.CtxError(ctx, "Failed to reload job at item %d: %v", i, err)
			return
		}
		if current.Status != domain.AIJobStatusRunning {
			logger.CtxInfo(ctx, "Job left running state (%s), stopping after %d items", current.Status, job.ProcessedItems)
			return
		}

		event := &events[i]
		s.processItem(ctx, job, event)

		job.ProcessedItems++
		job.CurrentItemID = event.ID
		job.Cost += s.cfg.CostPerItem
		job.Heartbeat = s.now()
		if err := s.jobRepo.RecordProgress(ctx, job); err != nil {
			_ = s.jobRepo.Finish(ctx, job.ID, domain.AIJobStatusFailed,
				[]domain.AIJobStatus{domain.AIJobStatusRunning, domain.AIJobStatusStale},
				fmt.Sprintf("progress write failed at item %d: %v", i, err))
			return
		}
	}

	if err := s.jobRepo.Finish(ctx, job.ID, domain.AIJobStatusCompleted,
		[]domain.AIJobStatus{domain.AIJobStatusRunning}, ""); err != nil {
		logger.CtxError(ctx, "Failed to complete job: %v", err)
		return
	}

	logger.With(logger.Fields{
		"published": job.CountPublished,
		"review":    job.CountReview,
		"rejected":  job.CountRejected,
		"archived":  job.CountArchived,
		"failed":    job.CountFailed,
		"cost":      job.Cost,
	}).Info(ctx, "AI job completed")
}

// processItem runs the per-item sub-flow: classify, score, derive the target
// status from thresholded rules, validate hard constraints, persist with an
// audit trail. A collaborator timeout or error marks the item failed and the
// loop proceeds.
func (s *AIJobService) processItem(ctx context.Context, job *domain.AIJob, event *domain.CanonicalEvent) {
	detail := &domain.AIJobItemDetail{
		EventID:   event.ID,
		Title:     event.Title,
		State:     domain.AIJobItemProcessing,
		UpdatedAt: s.now(),
	}
	s.detailRepo.Put(ctx, job.ID, detail)

	itemCtx := logger.WithField(ctx, logger.FieldEventID, event.ID)

	classification, err := s.classifier.Classify(itemCtx, event)
	if err != nil {
		s.failItem(ctx, job, detail, fmt.Sprintf("classification failed: %v", err))
		return
	}
	scores, err := s.scorer.Score(itemCtx, event)
	if err != nil {
		s.failItem(ctx, job, detail, fmt.Sprintf("scoring failed: %v", err))
		return
	}

	// Fill missing fields from the classifier's extractions first so an
	// extracted start time can satisfy the publish constraint below.
	extracted := s.applyExtraction(event, classification)

	target, notes := s.deriveStatus(event, classification, scores)

	changed := s.applyEnrichment(event, classification, scores, target)
	for field, value := range extracted {
		changed[field] = value
	}
	detail.ProposedChanges = changed
	detail.Notes = notes

	if err := s.eventRepo.Update(itemCtx, event); err != nil {
		s.failItem(ctx, job, detail, fmt.Sprintf("persist failed: %v", err))
		return
	}

	switch target {
	case domain.EventStatusPublished:
		job.CountPublished++
	case domain.EventStatusPendingReview:
		job.CountReview++
	case domain.EventStatusRejected:
		job.CountRejected++
	case domain.EventStatusArchived:
		job.CountArchived++
	}

	detail.State = domain.AIJobItemDone
	detail.UpdatedAt = s.now()
	s.detailRepo.Put(ctx, job.ID, detail)
}

func (s *AIJobService) failItem(ctx context.Context, job *domain.AIJob, detail *domain.AIJobItemDetail, reason string) {
	logger.CtxWarn(ctx, "Item %s failed: %s", detail.EventID, reason)
	job.CountFailed++
	detail.State = domain.AIJobItemError
	detail.Error = reason
	detail.UpdatedAt = s.now()
	s.detailRepo.Put(ctx, job.ID, detail)
}

// deriveStatus applies the thresholded routing rules, then the hard
// constraints: publishing requires a start time, and a start time already in
// the past demotes a would-be publish to archived.
func (s *AIJobService) deriveStatus(event *domain.CanonicalEvent, c *Classification, sc *Scores) (domain.EventStatus, []string) {
	var notes []string

	target := domain.EventStatusPendingReview
	switch {
	case sc.Fit < s.cfg.MinFitScore:
		target = domain.EventStatusRejected
		notes = append(notes, fmt.Sprintf("fit %.2f below minimum %.2f", sc.Fit, s.cfg.MinFitScore))
	case c.Confidence >= s.cfg.AutoPublishConfidence && sc.Fit >= s.cfg.AutoPublishFit:
		target = domain.EventStatusPublished
		notes = append(notes, fmt.Sprintf("auto-publish: confidence %.2f, fit %.2f", c.Confidence, sc.Fit))
	default:
		notes = append(notes, "routed to human review")
	}

	if target == domain.EventStatusPublished {
		if event.StartTime == nil {
			target = domain.EventStatusPendingReview
			notes = append(notes, "publish blocked: no start time")
		} else if event.StartTime.Before(s.now()) {
			target = domain.EventStatusArchived
			notes = append(notes, "start time in the past, archived")
		}
	}

	return target, notes
}

// applyExtraction fills event fields the sources never supplied from the
// classifier's extracted values, gated on the per-field extraction confidence.
// Locked fields and fields that already have a value are never touched.
func (s *AIJobService) applyExtraction(event *domain.CanonicalEvent, c *Classification) map[string]interface{} {
	changed := map[string]interface{}{}
	if event.FieldProvenance == nil {
		event.FieldProvenance = domain.ProvenanceMap{}
	}
	now := s.now()

	if c.ExtractedStart != nil && event.StartTime == nil &&
		c.StartConfidence >= s.cfg.ExtractConfidence && !event.FieldLocked("start_time") {
		event.StartTime = c.ExtractedStart
		changed["start_time"] = c.ExtractedStart.Format(time.RFC3339)
		event.FieldProvenance["start_time"] = domain.FieldProvenance{
			Source: "ai:classifier",
			At:     now,
		}
	}
	if c.ExtractedVenue != "" && event.VenueName == "" &&
		c.VenueConfidence >= s.cfg.ExtractConfidence && !event.FieldLocked("venue_name") {
		event.VenueName = c.ExtractedVenue
		changed["venue_name"] = c.ExtractedVenue
		event.FieldProvenance["venue_name"] = domain.FieldProvenance{
			Source: "ai:classifier",
			At:     now,
		}
	}

	return changed
}

// applyEnrichment writes the collaborator results onto the event and records
// an audit entry per changed field naming the model that set it. Returns the
// changed fields and their new values.
func (s *AIJobService) applyEnrichment(event *domain.CanonicalEvent, c *Classification, sc *Scores, target domain.EventStatus) map[string]interface{} {
	if event.FieldProvenance == nil {
		event.FieldProvenance = domain.ProvenanceMap{}
	}
	now := s.now()
	changed := map[string]interface{}{}

	audit := func(field string, prev interface{}) {
		event.FieldProvenance[field] = domain.FieldProvenance{
			Source:        "ai:classifier",
			At:            now,
			PreviousValue: prev,
		}
	}

	if len(c.Tags) > 0 {
		event.AITags = domain.StringArray(c.Tags)
		changed["ai_tags"] = c.Tags
	}
	if c.Summary != "" && c.Summary != event.AISummary {
		event.AISummary = c.Summary
		changed["ai_summary"] = c.Summary
	}
	if c.Category != "" && event.Category == "" && !event.FieldLocked("category") {
		prev := event.Category
		event.Category = c.Category
		changed["category"] = c.Category
		audit("category", prev)
	}

	if event.QualityScore != sc.Quality {
		event.QualityScore = sc.Quality
		changed["quality_score"] = sc.Quality
	}
	if event.FitScore != sc.Fit {
		event.FitScore = sc.Fit
		changed["fit_score"] = sc.Fit
	}
	if event.RelevanceScore != sc.Relevance {
		event.RelevanceScore = sc.Relevance
		changed["relevance_score"] = sc.Relevance
	}

	if event.Status != target {
		changed["status"] = string(target)
		event.Status = target
	}

	return changed
}
