package domain

import "time"

// EventSource is one source's delivery of data tied to a canonical event.
// Exactly one canonical owner at any time; ownership is reassigned only
// through an explicit merge. The (source_id, fingerprint) pair is unique so
// a redelivery updates in place instead of creating a second row.
type EventSource struct {
	ID               string    `gorm:"type:text;primaryKey" json:"id"`
	CanonicalEventID string    `gorm:"type:text;not null;index:idx_event_sources_event" json:"canonical_event_id"`
	SourceID         string    `gorm:"type:text;not null;index:idx_event_sources_identity,unique" json:"source_id"`
	Fingerprint      string    `gorm:"type:text;not null;index:idx_event_sources_identity,unique;index:idx_event_sources_fp" json:"fingerprint"`
	IdempotencyKey   string    `gorm:"type:text;index:idx_event_sources_idem" json:"idempotency_key"`
	ExternalID       string    `gorm:"type:text" json:"external_id,omitempty"`
	SourceURL        string    `gorm:"type:text" json:"source_url,omitempty"`
	IsPrimary        bool      `gorm:"default:false" json:"is_primary"`
	FetchedAt        time.Time `json:"fetched_at"`
	RawData          JSONMap   `gorm:"type:text" json:"raw_data"`
	NormalizedData   JSONMap   `gorm:"type:text" json:"normalized_data"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for EventSource.
func (EventSource) TableName() string {
	return "event_sources"
}
