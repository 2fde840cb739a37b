package service

import (
	"context"
	"testing"
	"time"

	"github.com/eventpool/backend/internal/domain"
	"github.com/eventpool/backend/internal/repository"
)

func TestDateProximity(t *testing.T) {
	base := time.Date(2026, 7, 10, 19, 0, 0, 0, time.UTC)

	testCases := []struct {
		name string
		a, b *time.Time
		want float64
	}{
		{"identical", &base, &base, 1.0},
		{"twelve hours apart", &base, timePtr(base.Add(12 * time.Hour)), 0.5},
		{"beyond a day", &base, timePtr(base.Add(30 * time.Hour)), 0},
		{"missing side", &base, nil, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := dateProximity(tc.a, tc.b)
			if diff := got - tc.want; diff > 0.001 || diff < -0.001 {
				t.Errorf("dateProximity() = %f, want %f", got, tc.want)
			}
		})
	}
}

func TestLocationProximity(t *testing.T) {
	// Same point, a point ~1.1 km away, and a point across town.
	if got := locationProximity(40.7306, -73.9866, 40.7306, -73.9866); got != 1.0 {
		t.Errorf("same point = %f, want 1.0", got)
	}
	if got := locationProximity(40.7306, -73.9866, 40.7406, -73.9866); got <= 0 || got >= 1 {
		t.Errorf("nearby point = %f, want within (0, 1)", got)
	}
	if got := locationProximity(40.7306, -73.9866, 40.8000, -73.9000); got != 0 {
		t.Errorf("far point = %f, want 0", got)
	}
	if got := locationProximity(0, 0, 40.7306, -73.9866); got != 0.5 {
		t.Errorf("missing coordinates = %f, want neutral 0.5", got)
	}
}

func TestTitleSimilarity(t *testing.T) {
	if got := titleSimilarity("Jazz Night", "JAZZ NIGHT!!!"); got != 1.0 {
		t.Errorf("normalized identical titles = %f, want 1.0", got)
	}
	if got := titleSimilarity("Jazz Night", "Techno Rave"); got != 0 {
		t.Errorf("disjoint titles = %f, want 0", got)
	}
	got := titleSimilarity("Jazz Night Live", "Jazz Night")
	if got <= 0.5 || got >= 1.0 {
		t.Errorf("overlapping titles = %f, want within (0.5, 1.0)", got)
	}
}

func TestScoreBuckets(t *testing.T) {
	start := time.Date(2026, 7, 10, 19, 0, 0, 0, time.UTC)
	a := &domain.CanonicalEvent{
		ID:        "a",
		Title:     "Summer Jazz Festival",
		StartTime: &start,
		Lat:       40.7306,
		Lng:       -73.9866,
	}

	// Same title, same time, same place scores at the top of the range.
	b := &domain.CanonicalEvent{
		ID:        "b",
		Title:     "Summer Jazz Festival!",
		StartTime: &start,
		Lat:       40.7306,
		Lng:       -73.9866,
	}
	if got := Score(a, b); got < 0.99 {
		t.Errorf("near-identical events score %f, want ~1.0", got)
	}

	// Unrelated title on a different day across town scores near zero.
	c := &domain.CanonicalEvent{
		ID:        "c",
		Title:     "Pottery Workshop",
		StartTime: timePtr(start.Add(72 * time.Hour)),
		Lat:       40.8000,
		Lng:       -73.9000,
	}
	if got := Score(a, c); got > 0.1 {
		t.Errorf("unrelated events score %f, want ~0", got)
	}
}

func newDedupeFixture(t *testing.T) (*DedupeService, *repository.EventRepository, *repository.EventSourceRepository, *repository.DuplicateRepository) {
	t.Helper()
	db := newTestDB(t)
	eventRepo := repository.NewEventRepository(db)
	esRepo := repository.NewEventSourceRepository(db)
	dupRepo := repository.NewDuplicateRepository(db)
	svc := NewDedupeService(eventRepo, esRepo, dupRepo, DedupeConfig{
		LikelyThreshold: 0.8,
		MaybeThreshold:  0.55,
		TimeWindow:      48 * time.Hour,
	})
	return svc, eventRepo, esRepo, dupRepo
}

func TestFindCandidatesFilesPairs(t *testing.T) {
	svc, eventRepo, _, dupRepo := newDedupeFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 7, 10, 19, 0, 0, 0, time.UTC)

	existing := &domain.CanonicalEvent{
		ID:        "existing",
		Title:     "Summer Jazz Festival",
		StartTime: &start,
		Lat:       40.7306,
		Lng:       -73.9866,
		Status:    domain.EventStatusPublished,
	}
	if err := eventRepo.Create(ctx, existing); err != nil {
		t.Fatalf("create existing: %v", err)
	}

	incoming := &domain.CanonicalEvent{
		ID:        "incoming",
		Title:     "Summer Jazz Fest",
		StartTime: timePtr(start.Add(time.Hour)),
		Lat:       40.7310,
		Lng:       -73.9870,
		Status:    domain.EventStatusPendingAI,
	}
	if err := eventRepo.Create(ctx, incoming); err != nil {
		t.Fatalf("create incoming: %v", err)
	}

	filed, err := svc.FindCandidates(ctx, incoming)
	if err != nil {
		t.Fatalf("FindCandidates: %v", err)
	}
	if filed != 1 {
		t.Fatalf("filed %d pairs, want 1", filed)
	}

	open, err := dupRepo.ListOpen(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("got %d open pairs, want 1", len(open))
	}
	if open[0].Confidence != domain.DuplicateConfidenceLikely && open[0].Confidence != domain.DuplicateConfidenceMaybe {
		t.Errorf("unexpected confidence %q", open[0].Confidence)
	}

	// Re-running files the same pair idempotently, not a second row.
	if _, err := svc.FindCandidates(ctx, incoming); err != nil {
		t.Fatalf("second FindCandidates: %v", err)
	}
	open, _ = dupRepo.ListOpen(ctx, 10, 0)
	if len(open) != 1 {
		t.Errorf("re-filing duplicated the pair: %d rows", len(open))
	}
}

func TestMergePreservesLineageAndSources(t *testing.T) {
	svc, eventRepo, esRepo, _ := newDedupeFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 7, 10, 19, 0, 0, 0, time.UTC)

	primary := &domain.CanonicalEvent{ID: "primary", Title: "Jazz Night", StartTime: &start, MergedFrom: domain.StringArray{"older"}}
	secondary := &domain.CanonicalEvent{ID: "secondary", Title: "Jazz Night Live", StartTime: &start, MergedFrom: domain.StringArray{"ancient"}}
	for _, e := range []*domain.CanonicalEvent{primary, secondary} {
		if err := eventRepo.Create(ctx, e); err != nil {
			t.Fatalf("create %s: %v", e.ID, err)
		}
	}
	if err := esRepo.Create(ctx, &domain.EventSource{
		ID: "es1", CanonicalEventID: "secondary", SourceID: "src-b", Fingerprint: "fp1",
	}); err != nil {
		t.Fatalf("create event source: %v", err)
	}

	if err := svc.Merge(ctx, "primary", "secondary"); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	got, err := eventRepo.GetByID(ctx, "primary")
	if err != nil {
		t.Fatalf("reload primary: %v", err)
	}
	for _, want := range []string{"older", "secondary", "ancient"} {
		if !got.MergedFrom.Contains(want) {
			t.Errorf("merged_from missing %q: %v", want, got.MergedFrom)
		}
	}

	sec, err := eventRepo.GetByID(ctx, "secondary")
	if err != nil {
		t.Fatalf("reload secondary: %v", err)
	}
	if sec.Status != domain.EventStatusArchived {
		t.Errorf("secondary status = %q, want archived", sec.Status)
	}

	sources, err := esRepo.ListByEvent(ctx, "primary")
	if err != nil {
		t.Fatalf("ListByEvent: %v", err)
	}
	if len(sources) != 1 || sources[0].ID != "es1" {
		t.Errorf("secondary's source not reassigned: %+v", sources)
	}

	// A second merge of the same pair is a no-op, not an error.
	if err := svc.Merge(ctx, "primary", "secondary"); err != nil {
		t.Fatalf("repeat Merge: %v", err)
	}
	got, _ = eventRepo.GetByID(ctx, "primary")
	count := 0
	for _, id := range got.MergedFrom {
		if id == "secondary" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("secondary appears %d times in lineage, want 1", count)
	}
}

func TestResolveDuplicate(t *testing.T) {
	svc, eventRepo, _, dupRepo := newDedupeFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 7, 10, 19, 0, 0, 0, time.UTC)

	for _, id := range []string{"a", "b"} {
		if err := eventRepo.Create(ctx, &domain.CanonicalEvent{ID: id, Title: "Jazz Night", StartTime: &start}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	pair := &domain.DuplicateCandidate{
		ID: "pair1", EventAID: "a", EventBID: "b",
		Confidence: domain.DuplicateConfidenceLikely, Score: 0.9,
	}
	if err := dupRepo.File(ctx, pair); err != nil {
		t.Fatalf("File: %v", err)
	}

	resolved, err := svc.Resolve(ctx, "pair1", domain.DuplicateResolutionMerged, "b")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Resolution != domain.DuplicateResolutionMerged {
		t.Errorf("resolution = %q, want merged", resolved.Resolution)
	}

	// b was chosen as primary, so a is the archived side.
	a, _ := eventRepo.GetByID(ctx, "a")
	if a.Status != domain.EventStatusArchived {
		t.Errorf("chosen secondary status = %q, want archived", a.Status)
	}

	// Resolving a closed pair is a conflict.
	if _, err := svc.Resolve(ctx, "pair1", domain.DuplicateResolutionIgnored, ""); err == nil {
		t.Error("resolving an already-resolved pair succeeded")
	}
}
