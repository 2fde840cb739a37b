package fingerprint

import (
	"testing"
	"time"

	"github.com/eventpool/backend/internal/apperr"
)

func mustCompute(t *testing.T, title string, start time.Time, lat, lng float64) string {
	t.Helper()
	fp, err := Compute(title, start, lat, lng)
	if err != nil {
		t.Fatalf("Compute(%q) returned error: %v", title, err)
	}
	return fp
}

func TestComputeDeterminism(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	fp1 := mustCompute(t, "Kindertheater im Park", start, 52.52001, 13.40501)
	fp2 := mustCompute(t, "Kindertheater im Park", start, 52.52001, 13.40501)

	if fp1 != fp2 {
		t.Errorf("identical input produced different fingerprints: %s vs %s", fp1, fp2)
	}
	if len(fp1) != 32 {
		t.Errorf("fingerprint length = %d, want 32", len(fp1))
	}
}

func TestComputeAbsorbsJitter(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		titleA   string
		titleB   string
		latA     float64
		latB     float64
		lngA     float64
		lngB     float64
		startB   time.Time
		wantSame bool
	}{
		{
			name:   "case and punctuation in title",
			titleA: "Kindertheater im Park", titleB: "kindertheater im park!",
			latA: 52.52001, latB: 52.52001, lngA: 13.40501, lngB: 13.40501,
			startB:   start,
			wantSame: true,
		},
		{
			name:   "geocoding jitter within the grid",
			titleA: "Kindertheater im Park", titleB: "Kindertheater im Park",
			latA: 52.52001, latB: 52.52002, lngA: 13.40501, lngB: 13.40499,
			startB:   start,
			wantSame: true,
		},
		{
			name:   "sub-minute start time difference",
			titleA: "Kindertheater im Park", titleB: "Kindertheater im Park",
			latA: 52.52001, latB: 52.52001, lngA: 13.40501, lngB: 13.40501,
			startB:   start.Add(30 * time.Second),
			wantSame: true,
		},
		{
			name:   "materially different title",
			titleA: "Kindertheater im Park", titleB: "Sommerfest am See",
			latA: 52.52001, latB: 52.52001, lngA: 13.40501, lngB: 13.40501,
			startB:   start,
			wantSame: false,
		},
		{
			name:   "different start hour",
			titleA: "Kindertheater im Park", titleB: "Kindertheater im Park",
			latA: 52.52001, latB: 52.52001, lngA: 13.40501, lngB: 13.40501,
			startB:   start.Add(2 * time.Hour),
			wantSame: false,
		},
		{
			name:   "different location beyond the grid",
			titleA: "Kindertheater im Park", titleB: "Kindertheater im Park",
			latA: 52.52001, latB: 52.53501, lngA: 13.40501, lngB: 13.40501,
			startB:   start,
			wantSame: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fpA := mustCompute(t, tc.titleA, start, tc.latA, tc.lngA)
			fpB := mustCompute(t, tc.titleB, tc.startB, tc.latB, tc.lngB)

			if tc.wantSame && fpA != fpB {
				t.Errorf("expected identical fingerprints, got %s vs %s", fpA, fpB)
			}
			if !tc.wantSame && fpA == fpB {
				t.Errorf("expected different fingerprints, both were %s", fpA)
			}
		})
	}
}

func TestComputeValidation(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	if _, err := Compute("", start, 52.52, 13.4); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("empty title: expected validation error, got %v", err)
	}
	if _, err := Compute("!!!", start, 52.52, 13.4); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("punctuation-only title: expected validation error, got %v", err)
	}
	if _, err := Compute("Kindertheater", time.Time{}, 52.52, 13.4); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("zero start: expected validation error, got %v", err)
	}
}

func TestIdempotencyKeyDistinguishesSourceAndOccurrence(t *testing.T) {
	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	fp := mustCompute(t, "Kindertheater im Park", start, 52.52, 13.4)

	k1 := IdempotencyKey("src-a", fp, start)
	k2 := IdempotencyKey("src-a", fp, start)
	if k1 != k2 {
		t.Errorf("redelivery produced different keys: %s vs %s", k1, k2)
	}

	if k1 == IdempotencyKey("src-b", fp, start) {
		t.Error("different sources should produce different keys")
	}
	if k1 == IdempotencyKey("src-a", fp, start.Add(24*time.Hour)) {
		t.Error("different occurrences should produce different keys")
	}
}

func TestNormalizeTitle(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"Kindertheater im Park", "kindertheater im park"},
		{"  KINDERTHEATER   im\tPark!! ", "kindertheater im park"},
		{"Sommerfest – am See", "sommerfest am see"},
		{"", ""},
	}

	for _, tc := range testCases {
		if got := NormalizeTitle(tc.in); got != tc.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
