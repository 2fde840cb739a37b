package domain

import "time"

// AIJobStatus represents the status of an AI enrichment job.
type AIJobStatus string

const (
	AIJobStatusRunning   AIJobStatus = "running"
	AIJobStatusCompleted AIJobStatus = "completed"
	AIJobStatusFailed    AIJobStatus = "failed"
	AIJobStatusStale     AIJobStatus = "stale"
	AIJobStatusCancelled AIJobStatus = "cancelled"
)

// Terminal reports whether the status admits a new job.
// Stale is terminal for admission only after an explicit cancel.
func (s AIJobStatus) Terminal() bool {
	switch s {
	case AIJobStatusCompleted, AIJobStatusFailed, AIJobStatusCancelled:
		return true
	}
	return false
}

// AIJob represents one batch pass of AI enrichment over pending events.
// The record is persistent and holds everything needed for correctness and
// crash recovery; per-item display detail lives in the ephemeral cache.
// The partial unique index on Status permits at most one row with
// status='running', which is the store-level admission guard.
type AIJob struct {
	ID             string      `gorm:"type:text;primaryKey" json:"id"`
	Status         AIJobStatus `gorm:"type:text;default:running;index:uq_ai_jobs_single_running,unique,where:status = 'running'" json:"status"`
	TotalItems     int         `gorm:"default:0" json:"total_items"`
	ProcessedItems int         `gorm:"default:0" json:"processed_items"`
	CurrentItemID  string      `gorm:"type:text" json:"current_item_id,omitempty"`
	Heartbeat      time.Time   `json:"heartbeat"`

	// Summary counts by per-item outcome
	CountPublished int `gorm:"default:0" json:"count_published"`
	CountReview    int `gorm:"default:0" json:"count_review"`
	CountRejected  int `gorm:"default:0" json:"count_rejected"`
	CountArchived  int `gorm:"default:0" json:"count_archived"`
	CountFailed    int `gorm:"default:0" json:"count_failed"`

	Cost        float64    `gorm:"default:0" json:"cost"`
	ErrorLog    string     `gorm:"type:text" json:"error_log,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for AIJob.
func (AIJob) TableName() string {
	return "ai_jobs"
}

// AIJobItemState is the transient state of one item within a running job.
type AIJobItemState string

const (
	AIJobItemWaiting    AIJobItemState = "waiting"
	AIJobItemProcessing AIJobItemState = "processing"
	AIJobItemDone       AIJobItemState = "done"
	AIJobItemError      AIJobItemState = "error"
)

// AIJobItemDetail is per-item progress detail for a running job.
// Ephemeral: kept only in the cache for progress display and safe to lose
// without breaking correctness.
type AIJobItemDetail struct {
	EventID         string                 `json:"event_id"`
	Title           string                 `json:"title"`
	State           AIJobItemState         `json:"state"`
	ProposedChanges map[string]interface{} `json:"proposed_changes,omitempty"`
	Notes           []string               `json:"notes,omitempty"`
	Error           string                 `json:"error,omitempty"`
	UpdatedAt       time.Time              `json:"updated_at"`
}
