package domain

import "time"

// RawCandidate is one delivered item from a source. Ephemeral: it exists
// only for the duration of one ingest call and is never persisted as-is.
// Title and start time are required but validated per item inside the ingest
// loop, so one malformed item is reported as ignored instead of failing the
// whole batch at the binding layer.
type RawCandidate struct {
	Title       string                 `json:"title"`
	StartTime   *time.Time             `json:"start_time"`
	EndTime     *time.Time             `json:"end_time,omitempty"`
	VenueName   string                 `json:"venue_name,omitempty"`
	Address     string                 `json:"address,omitempty"`
	Lat         float64                `json:"lat,omitempty"`
	Lng         float64                `json:"lng,omitempty"`
	Price       string                 `json:"price,omitempty"`
	Category    string                 `json:"category,omitempty"`
	Description string                 `json:"description,omitempty"`
	ImageURL    string                 `json:"image_url,omitempty"`
	BookingURL  string                 `json:"booking_url,omitempty"`
	ExternalID  string                 `json:"external_id,omitempty"`
	SourceURL   string                 `json:"source_url,omitempty"`
	RawPayload  map[string]interface{} `json:"raw_payload,omitempty"`
}

// IngestResultStatus is the per-item outcome of one ingest call.
type IngestResultStatus string

const (
	IngestResultCreated   IngestResultStatus = "created"
	IngestResultUpdated   IngestResultStatus = "updated"
	IngestResultUnchanged IngestResultStatus = "unchanged"
	IngestResultDuplicate IngestResultStatus = "duplicate"
	IngestResultIgnored   IngestResultStatus = "ignored"
)

// IngestItemResult is the per-candidate outcome reported back to the caller.
type IngestItemResult struct {
	Index       int                `json:"index"`
	Status      IngestResultStatus `json:"status"`
	EventID     string             `json:"event_id,omitempty"`
	Fingerprint string             `json:"fingerprint,omitempty"`
	Reason      string             `json:"reason,omitempty"`
}
