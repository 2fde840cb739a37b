package domain

import "time"

// RunStatus represents the terminal status of an ingest run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
)

// IngestRun represents one fetch+process execution for a source.
type IngestRun struct {
	ID             string     `gorm:"type:text;primaryKey" json:"id"`
	SourceID       string     `gorm:"type:text;not null;index:idx_runs_source" json:"source_id"`
	Status         RunStatus  `gorm:"type:text;default:running" json:"status"`
	ItemsFound     int        `gorm:"default:0" json:"items_found"`
	ItemsCreated   int        `gorm:"default:0" json:"items_created"`
	ItemsUpdated   int        `gorm:"default:0" json:"items_updated"`
	ItemsUnchanged int        `gorm:"default:0" json:"items_unchanged"`
	ItemsIgnored   int        `gorm:"default:0" json:"items_ignored"`
	NeedsAttention bool       `gorm:"default:false" json:"needs_attention"`
	ErrorLog       string     `gorm:"type:text" json:"error_log,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for IngestRun.
func (IngestRun) TableName() string {
	return "ingest_runs"
}
