package domain

import "time"

// DuplicateConfidence buckets how strongly two events look like the same one.
type DuplicateConfidence string

const (
	DuplicateConfidenceExact  DuplicateConfidence = "exact"
	DuplicateConfidenceLikely DuplicateConfidence = "likely"
	DuplicateConfidenceMaybe  DuplicateConfidence = "maybe"
)

// DuplicateResolution is the human decision on a filed candidate pair.
// Empty means the pair is still awaiting review.
type DuplicateResolution string

const (
	DuplicateResolutionMerged    DuplicateResolution = "merged"
	DuplicateResolutionDifferent DuplicateResolution = "different"
	DuplicateResolutionIgnored   DuplicateResolution = "ignored"
)

// DuplicateCandidate is a filed, human-reviewable probable duplicate pairing.
// PairKey is the sorted (event_a, event_b) pair so re-filing the same pair
// is idempotent regardless of argument order.
type DuplicateCandidate struct {
	ID         string              `gorm:"type:text;primaryKey" json:"id"`
	EventAID   string              `gorm:"type:text;not null;index:idx_duplicates_a" json:"event_a_id"`
	EventBID   string              `gorm:"type:text;not null;index:idx_duplicates_b" json:"event_b_id"`
	PairKey    string              `gorm:"type:text;not null;uniqueIndex:idx_duplicates_pair" json:"-"`
	Confidence DuplicateConfidence `gorm:"type:text;not null" json:"confidence"`
	Score      float64             `json:"score"`
	Resolution DuplicateResolution `gorm:"type:text;default:''" json:"resolution,omitempty"`
	ResolvedAt *time.Time          `json:"resolved_at,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// TableName returns the database table name for DuplicateCandidate.
func (DuplicateCandidate) TableName() string {
	return "duplicate_candidates"
}

// Resolved reports whether a human decision has been recorded.
func (d *DuplicateCandidate) Resolved() bool {
	return d.Resolution != ""
}
