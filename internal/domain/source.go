package domain

import "time"

// SourceType represents the kind of data source.
type SourceType string

const (
	SourceTypeFeed    SourceType = "feed"
	SourceTypeScraper SourceType = "scraper"
	SourceTypePartner SourceType = "partner"
	SourceTypeManual  SourceType = "manual"
)

// SourceHealth represents the delivery health of a source.
type SourceHealth string

const (
	SourceHealthUnknown  SourceHealth = "unknown"
	SourceHealthHealthy  SourceHealth = "healthy"
	SourceHealthDegraded SourceHealth = "degraded"
	SourceHealthFailing  SourceHealth = "failing"
	SourceHealthDead     SourceHealth = "dead"
)

// Source represents a registered data source and its delivery health.
// Priority is the merge tie-break rank: higher-priority sources may
// overwrite fields set by lower-priority ones, never the other way around.
type Source struct {
	ID                  string       `gorm:"type:text;primaryKey" json:"id"`
	Name                string       `gorm:"type:text;not null" json:"name"`
	Type                SourceType   `gorm:"type:text;not null" json:"type"`
	Priority            int          `gorm:"default:0" json:"priority"`
	IsEnabled           bool         `gorm:"default:true" json:"is_enabled"`
	ConsecutiveFailures int          `gorm:"default:0" json:"consecutive_failures"`
	HealthStatus        SourceHealth `gorm:"type:text;default:unknown" json:"health_status"`
	LastSuccessAt       *time.Time   `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time   `json:"last_failure_at,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// TableName returns the database table name for Source.
func (Source) TableName() string {
	return "sources"
}
