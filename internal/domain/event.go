package domain

import "time"

// EventStatus represents the lifecycle status of a canonical event.
type EventStatus string

const (
	EventStatusIncomplete    EventStatus = "incomplete"
	EventStatusPendingAI     EventStatus = "pending_ai"
	EventStatusPendingReview EventStatus = "pending_review"
	EventStatusPublished     EventStatus = "published"
	EventStatusRejected      EventStatus = "rejected"
	EventStatusArchived      EventStatus = "archived"
	EventStatusCancelled     EventStatus = "cancelled"
)

// CanonicalEvent is the merged, authoritative record for one real-world event.
// Data delivered by individual sources hangs off it as EventSource rows;
// conflicting field values are resolved by source priority with provenance
// recorded per field.
type CanonicalEvent struct {
	ID          string     `gorm:"type:text;primaryKey" json:"id"`
	Title       string     `gorm:"type:text;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	StartTime   *time.Time `gorm:"index:idx_events_start" json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	VenueName   string     `gorm:"type:text" json:"venue_name,omitempty"`
	Address     string     `gorm:"type:text" json:"address,omitempty"`
	Lat         float64    `json:"lat,omitempty"`
	Lng         float64    `json:"lng,omitempty"`
	Price       string     `gorm:"type:text" json:"price,omitempty"`
	Category    string     `gorm:"type:text;index:idx_events_category" json:"category,omitempty"`
	ImageURL    string     `gorm:"type:text" json:"image_url,omitempty"`
	BookingURL  string     `gorm:"type:text" json:"booking_url,omitempty"`

	Status            EventStatus   `gorm:"type:text;index:idx_events_status;default:incomplete" json:"status"`
	FieldProvenance   ProvenanceMap `gorm:"type:text" json:"field_provenance"`
	LockedFields      StringArray   `gorm:"type:text" json:"locked_fields"`
	MergedFrom        StringArray   `gorm:"type:text" json:"merged_from"`
	CompletenessScore float64       `json:"completeness_score"`

	// AI enrichment results
	AITags         StringArray `gorm:"type:text" json:"ai_tags"`
	AISummary      string      `gorm:"type:text" json:"ai_summary,omitempty"`
	QualityScore   float64     `json:"quality_score"`
	FitScore       float64     `json:"fit_score"`
	RelevanceScore float64     `json:"relevance_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for CanonicalEvent.
func (CanonicalEvent) TableName() string {
	return "canonical_events"
}

// FieldLocked reports whether a field is pinned against auto-overwrite.
func (e *CanonicalEvent) FieldLocked(field string) bool {
	return e.LockedFields.Contains(field)
}
