package service

import (
	"context"
	"testing"
	"time"

	"github.com/eventpool/backend/internal/apperr"
	"github.com/eventpool/backend/internal/domain"
	"github.com/eventpool/backend/internal/repository"
	"gorm.io/gorm"
)

// fakeClassifier returns canned results keyed by event ID.
type fakeClassifier struct {
	results map[string]*Classification
	err     error
}

func (f *fakeClassifier) Classify(ctx context.Context, event *domain.CanonicalEvent) (*Classification, error) {
	if f.err != nil {
		return nil, f.err
	}
	if c, ok := f.results[event.ID]; ok {
		return c, nil
	}
	return &Classification{Confidence: 0.5}, nil
}

type fakeScorer struct {
	results map[string]*Scores
	err     error
}

func (f *fakeScorer) Score(ctx context.Context, event *domain.CanonicalEvent) (*Scores, error) {
	if f.err != nil {
		return nil, f.err
	}
	if s, ok := f.results[event.ID]; ok {
		return s, nil
	}
	return &Scores{Quality: 0.5, Fit: 0.5, Relevance: 0.5}, nil
}

type jobFixture struct {
	db         *gorm.DB
	svc        *AIJobService
	jobRepo    *repository.JobRepository
	eventRepo  *repository.EventRepository
	classifier *fakeClassifier
	scorer     *fakeScorer
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	db := newTestDB(t)

	f := &jobFixture{
		db:         db,
		jobRepo:    repository.NewJobRepository(db),
		eventRepo:  repository.NewEventRepository(db),
		classifier: &fakeClassifier{results: map[string]*Classification{}},
		scorer:     &fakeScorer{results: map[string]*Scores{}},
	}
	f.svc = NewAIJobService(
		f.jobRepo,
		f.eventRepo,
		repository.NewJobDetailRepository(nil, 0),
		f.classifier,
		f.scorer,
		AIJobConfig{
			BatchSize:             50,
			CostPerItem:           0.002,
			StaleNoProgress:       2 * time.Minute,
			StaleWithProgress:     5 * time.Minute,
			MinFitScore:           0.3,
			AutoPublishFit:        0.75,
			AutoPublishConfidence: 0.8,
			ExtractConfidence:     0.7,
			JobRetention:          14 * 24 * time.Hour,
		},
	)
	return f
}

func (f *jobFixture) addPendingEvent(t *testing.T, id string, start *time.Time) {
	t.Helper()
	event := &domain.CanonicalEvent{
		ID:        id,
		Title:     "Event " + id,
		StartTime: start,
		VenueName: "Venue",
		Status:    domain.EventStatusPendingAI,
	}
	if err := f.eventRepo.Create(context.Background(), event); err != nil {
		t.Fatalf("create event %s: %v", id, err)
	}
}

func TestRunLoopRoutesByThresholds(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	future := timePtr(time.Now().Add(72 * time.Hour))
	past := timePtr(time.Now().Add(-time.Hour))

	f.addPendingEvent(t, "publish-me", future)
	f.addPendingEvent(t, "reject-me", future)
	f.addPendingEvent(t, "review-me", future)
	f.addPendingEvent(t, "no-start", nil)
	f.addPendingEvent(t, "past-start", past)

	f.classifier.results = map[string]*Classification{
		"publish-me": {Tags: []string{"music"}, Category: "concert", Summary: "A show.", Confidence: 0.95},
		"reject-me":  {Confidence: 0.9},
		"review-me":  {Confidence: 0.4},
		"no-start":   {Confidence: 0.95},
		"past-start": {Confidence: 0.95},
	}
	f.scorer.results = map[string]*Scores{
		"publish-me": {Quality: 0.9, Fit: 0.9, Relevance: 0.9},
		"reject-me":  {Quality: 0.5, Fit: 0.1, Relevance: 0.5},
		"review-me":  {Quality: 0.8, Fit: 0.9, Relevance: 0.8},
		"no-start":   {Quality: 0.9, Fit: 0.9, Relevance: 0.9},
		"past-start": {Quality: 0.9, Fit: 0.9, Relevance: 0.9},
	}

	events, err := f.eventRepo.ListPendingAI(ctx, 50)
	if err != nil {
		t.Fatalf("ListPendingAI: %v", err)
	}
	job := &domain.AIJob{ID: "job1", TotalItems: len(events), Heartbeat: time.Now(), StartedAt: time.Now()}
	if err := f.jobRepo.CreateRunning(ctx, job); err != nil {
		t.Fatalf("CreateRunning: %v", err)
	}

	f.svc.runLoop(ctx, job, events)

	wantStatus := map[string]domain.EventStatus{
		"publish-me": domain.EventStatusPublished,
		"reject-me":  domain.EventStatusRejected,
		"review-me":  domain.EventStatusPendingReview,
		"no-start":   domain.EventStatusPendingReview,
		"past-start": domain.EventStatusArchived,
	}
	for id, want := range wantStatus {
		event, err := f.eventRepo.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("reload %s: %v", id, err)
		}
		if event.Status != want {
			t.Errorf("event %s status = %q, want %q", id, event.Status, want)
		}
	}

	published, _ := f.eventRepo.GetByID(ctx, "publish-me")
	if len(published.AITags) != 1 || published.AISummary != "A show." {
		t.Errorf("enrichment not persisted: tags=%v summary=%q", published.AITags, published.AISummary)
	}
	if published.FitScore != 0.9 {
		t.Errorf("fit score = %f, want 0.9", published.FitScore)
	}

	done, err := f.jobRepo.GetByID(ctx, "job1")
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if done.Status != domain.AIJobStatusCompleted {
		t.Fatalf("job status = %q, want completed", done.Status)
	}
	if done.ProcessedItems != 5 {
		t.Errorf("processed = %d, want 5", done.ProcessedItems)
	}
	if done.CountPublished != 1 || done.CountRejected != 1 || done.CountReview != 2 || done.CountArchived != 1 {
		t.Errorf("summary counts = pub %d rej %d rev %d arc %d",
			done.CountPublished, done.CountRejected, done.CountReview, done.CountArchived)
	}
	if cost := done.Cost; cost < 0.0099 || cost > 0.0101 {
		t.Errorf("cost = %f, want 5 * 0.002", cost)
	}
}

func TestRunLoopFillsMissingFieldsFromExtraction(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	extractedStart := time.Now().Add(48 * time.Hour).Truncate(time.Second)

	for _, event := range []*domain.CanonicalEvent{
		{ID: "fill-me", Title: "Sommerfest", Status: domain.EventStatusPendingAI},
		{ID: "low-conf", Title: "Flohmarkt", Status: domain.EventStatusPendingAI},
		{ID: "keep-venue", Title: "Lesung", StartTime: timePtr(extractedStart),
			VenueName: "Stadtbibliothek", Status: domain.EventStatusPendingAI},
	} {
		if err := f.eventRepo.Create(ctx, event); err != nil {
			t.Fatalf("create event %s: %v", event.ID, err)
		}
	}

	f.classifier.results = map[string]*Classification{
		"fill-me": {
			Confidence:      0.95,
			ExtractedStart:  timePtr(extractedStart),
			StartConfidence: 0.9,
			ExtractedVenue:  "Stadtpark Buehne",
			VenueConfidence: 0.85,
		},
		"low-conf": {
			Confidence:      0.95,
			ExtractedStart:  timePtr(extractedStart),
			StartConfidence: 0.4,
		},
		"keep-venue": {
			Confidence:      0.95,
			ExtractedVenue:  "Rathaussaal",
			VenueConfidence: 0.9,
		},
	}
	f.scorer.results = map[string]*Scores{
		"fill-me":    {Quality: 0.9, Fit: 0.9, Relevance: 0.9},
		"low-conf":   {Quality: 0.9, Fit: 0.9, Relevance: 0.9},
		"keep-venue": {Quality: 0.9, Fit: 0.9, Relevance: 0.9},
	}

	events, _ := f.eventRepo.ListPendingAI(ctx, 50)
	job := &domain.AIJob{ID: "job1", TotalItems: len(events), Heartbeat: time.Now(), StartedAt: time.Now()}
	if err := f.jobRepo.CreateRunning(ctx, job); err != nil {
		t.Fatalf("CreateRunning: %v", err)
	}

	f.svc.runLoop(ctx, job, events)

	filled, err := f.eventRepo.GetByID(ctx, "fill-me")
	if err != nil {
		t.Fatalf("reload fill-me: %v", err)
	}
	if filled.StartTime == nil || filled.StartTime.Unix() != extractedStart.Unix() {
		t.Fatalf("start time = %v, want extracted %v", filled.StartTime, extractedStart)
	}
	if filled.VenueName != "Stadtpark Buehne" {
		t.Errorf("venue = %q, want extracted venue", filled.VenueName)
	}
	if filled.Status != domain.EventStatusPublished {
		t.Errorf("status = %q, want published once the extracted start satisfies the constraint", filled.Status)
	}
	for _, field := range []string{"start_time", "venue_name"} {
		prov, ok := filled.FieldProvenance[field]
		if !ok || prov.Source != "ai:classifier" {
			t.Errorf("provenance for %s = %+v, want source ai:classifier", field, prov)
		}
	}

	lowConf, _ := f.eventRepo.GetByID(ctx, "low-conf")
	if lowConf.StartTime != nil {
		t.Errorf("low-confidence extraction applied, start = %v", lowConf.StartTime)
	}
	if lowConf.Status != domain.EventStatusPendingReview {
		t.Errorf("status = %q, want pending_review with publish still blocked", lowConf.Status)
	}

	keep, _ := f.eventRepo.GetByID(ctx, "keep-venue")
	if keep.VenueName != "Stadtbibliothek" {
		t.Errorf("existing venue overwritten: %q", keep.VenueName)
	}
}

func TestRunLoopItemFailureContinues(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	future := timePtr(time.Now().Add(72 * time.Hour))

	f.addPendingEvent(t, "e1", future)
	f.addPendingEvent(t, "e2", future)
	f.classifier.err = apperr.External(nil, "classifier unavailable")

	events, _ := f.eventRepo.ListPendingAI(ctx, 50)
	job := &domain.AIJob{ID: "job1", TotalItems: len(events), Heartbeat: time.Now(), StartedAt: time.Now()}
	if err := f.jobRepo.CreateRunning(ctx, job); err != nil {
		t.Fatalf("CreateRunning: %v", err)
	}

	f.svc.runLoop(ctx, job, events)

	done, _ := f.jobRepo.GetByID(ctx, "job1")
	if done.Status != domain.AIJobStatusCompleted {
		t.Fatalf("job status = %q, want completed despite item failures", done.Status)
	}
	if done.CountFailed != 2 || done.ProcessedItems != 2 {
		t.Errorf("failed = %d processed = %d, want both 2", done.CountFailed, done.ProcessedItems)
	}

	// The events themselves are untouched and stay queued.
	event, _ := f.eventRepo.GetByID(ctx, "e1")
	if event.Status != domain.EventStatusPendingAI {
		t.Errorf("failed item status = %q, want pending_ai", event.Status)
	}
}

func TestStartAdmissionSingleFlight(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	f.addPendingEvent(t, "e1", timePtr(time.Now().Add(72*time.Hour)))

	// A live job with a fresh heartbeat holds the slot.
	live := &domain.AIJob{ID: "live", TotalItems: 1, Heartbeat: time.Now(), StartedAt: time.Now()}
	if err := f.jobRepo.CreateRunning(ctx, live); err != nil {
		t.Fatalf("CreateRunning: %v", err)
	}

	_, _, err := f.svc.Start(ctx)
	if err == nil {
		t.Fatal("second start admitted while a job was running")
	}
	if !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("start error kind = %v, want conflict", apperr.KindOf(err))
	}
}

func TestStartReclaimsStaleJob(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	// A running job whose heartbeat stopped before any progress: past the
	// no-progress threshold it no longer blocks admission.
	dead := &domain.AIJob{ID: "dead", TotalItems: 3, Heartbeat: time.Now().Add(-10 * time.Minute), StartedAt: time.Now().Add(-10 * time.Minute)}
	if err := f.jobRepo.CreateRunning(ctx, dead); err != nil {
		t.Fatalf("CreateRunning: %v", err)
	}

	job, _, err := f.svc.Start(ctx)
	if err != nil {
		t.Fatalf("start after stale job: %v", err)
	}
	if job == nil || job.ID == "dead" {
		t.Fatal("no fresh job admitted")
	}

	reloaded, _ := f.jobRepo.GetByID(ctx, "dead")
	if reloaded.Status != domain.AIJobStatusStale {
		t.Errorf("dead job status = %q, want stale", reloaded.Status)
	}
}

func TestStalenessDualThreshold(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	testCases := []struct {
		name      string
		processed int
		age       time.Duration
		want      domain.AIJobStatus
	}{
		{"no progress within short threshold", 0, 90 * time.Second, domain.AIJobStatusRunning},
		{"no progress past short threshold", 0, 3 * time.Minute, domain.AIJobStatusStale},
		{"progress within long threshold", 4, 3 * time.Minute, domain.AIJobStatusRunning},
		{"progress past long threshold", 4, 6 * time.Minute, domain.AIJobStatusStale},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			job := &domain.AIJob{
				ID:             "job-" + tc.name,
				TotalItems:     10,
				ProcessedItems: tc.processed,
				Heartbeat:      time.Now().Add(-tc.age),
				StartedAt:      time.Now().Add(-tc.age),
			}
			if err := f.jobRepo.CreateRunning(ctx, job); err != nil {
				t.Fatalf("CreateRunning: %v", err)
			}

			view, err := f.svc.Status(ctx, job.ID)
			if err != nil {
				t.Fatalf("Status: %v", err)
			}
			if view.Job.Status != tc.want {
				t.Errorf("status = %q, want %q", view.Job.Status, tc.want)
			}
			if view.HeartbeatAge <= 0 {
				t.Errorf("heartbeat age = %f, want positive", view.HeartbeatAge)
			}

			// Free the running slot for the next case.
			if view.Job.Status == domain.AIJobStatusRunning {
				if err := f.svc.Cancel(ctx, job.ID); err != nil {
					t.Fatalf("cleanup cancel: %v", err)
				}
			}
		})
	}
}

func TestCancelJob(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	job := &domain.AIJob{ID: "job1", TotalItems: 1, Heartbeat: time.Now(), StartedAt: time.Now()}
	if err := f.jobRepo.CreateRunning(ctx, job); err != nil {
		t.Fatalf("CreateRunning: %v", err)
	}

	if err := f.svc.Cancel(ctx, "job1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	reloaded, _ := f.jobRepo.GetByID(ctx, "job1")
	if reloaded.Status != domain.AIJobStatusCancelled {
		t.Errorf("status = %q, want cancelled", reloaded.Status)
	}

	// Cancelling a terminal job reports a conflict.
	if err := f.svc.Cancel(ctx, "job1"); err == nil {
		t.Error("cancel of terminal job succeeded")
	}
}

func TestCancelledJobStopsLoop(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()
	future := timePtr(time.Now().Add(72 * time.Hour))
	f.addPendingEvent(t, "e1", future)
	f.addPendingEvent(t, "e2", future)

	events, _ := f.eventRepo.ListPendingAI(ctx, 50)
	job := &domain.AIJob{ID: "job1", TotalItems: len(events), Heartbeat: time.Now(), StartedAt: time.Now()}
	if err := f.jobRepo.CreateRunning(ctx, job); err != nil {
		t.Fatalf("CreateRunning: %v", err)
	}

	// Cancel before the loop runs: the between-items check sees the terminal
	// status immediately and no item is processed.
	if err := f.svc.Cancel(ctx, "job1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	f.svc.runLoop(ctx, job, events)

	reloaded, _ := f.jobRepo.GetByID(ctx, "job1")
	if reloaded.Status != domain.AIJobStatusCancelled {
		t.Errorf("status = %q, want cancelled", reloaded.Status)
	}
	if reloaded.ProcessedItems != 0 {
		t.Errorf("processed = %d after cancel, want 0", reloaded.ProcessedItems)
	}
	event, _ := f.eventRepo.GetByID(ctx, "e1")
	if event.Status != domain.EventStatusPendingAI {
		t.Errorf("event status = %q, want untouched pending_ai", event.Status)
	}
}

func TestStartWithEmptyQueueCompletesImmediately(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	job, items, err := f.svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}
	if job.Status != domain.AIJobStatusCompleted {
		t.Errorf("status = %q, want completed for empty queue", job.Status)
	}
}

func TestApplyEnrichmentRecordsOnlyChangedScores(t *testing.T) {
	f := newJobFixture(t)
	event := &domain.CanonicalEvent{
		ID:             "e1",
		Title:          "Repeat Run",
		StartTime:      timePtr(time.Now().Add(24 * time.Hour)),
		Status:         domain.EventStatusPendingReview,
		QualityScore:   0.8,
		FitScore:       0.9,
		RelevanceScore: 0.7,
	}

	// Re-applying identical scores must leave the audit map empty.
	sc := &Scores{Quality: 0.8, Fit: 0.9, Relevance: 0.7}
	changed := f.svc.applyEnrichment(event, &Classification{}, sc, domain.EventStatusPendingReview)
	if len(changed) != 0 {
		t.Errorf("audit map for identical re-apply = %v, want empty", changed)
	}

	sc.Fit = 0.95
	changed = f.svc.applyEnrichment(event, &Classification{}, sc, domain.EventStatusPendingReview)
	if v, ok := changed["fit_score"]; !ok || v != 0.95 {
		t.Errorf("fit_score change not recorded: %v", changed)
	}
	if _, ok := changed["quality_score"]; ok {
		t.Errorf("unchanged quality_score recorded alongside the fit change")
	}
	if event.FitScore != 0.95 {
		t.Errorf("fit score not applied: %f", event.FitScore)
	}
}
