package service

import (
	"time"

	"github.com/eventpool/backend/internal/domain"
)

// MergeResolver decides, per field, whether an incoming value may overwrite
// the canonical one. The rules are strict priority with a fill-missing
// exception: higher-trust data is never regressed to lower-trust data, but
// an empty field is filled by anyone rather than staying empty forever.
// Locked fields are never auto-overwritten.
type MergeResolver struct {
	priorities map[string]int
}

// NewMergeResolver creates a resolver from the configured source-type
// priority table.
func NewMergeResolver(priorities map[string]int) *MergeResolver {
	if priorities == nil {
		priorities = map[string]int{}
	}
	return &MergeResolver{priorities: priorities}
}

// PriorityFor resolves the merge priority of a source: an explicit per-source
// priority wins, otherwise the type-level table applies.
func (m *MergeResolver) PriorityFor(src *domain.Source) int {
	if src.Priority != 0 {
		return src.Priority
	}
	return m.priorities[string(src.Type)]
}

// ShouldUpdateField applies the per-field overwrite decision:
//   - false when the field is locked;
//   - true when the existing value is empty (fill-missing wins regardless of
//     priority);
//   - true when the incoming priority strictly exceeds the existing one;
//   - false otherwise, so equal or lower priority never causes flapping.
func ShouldUpdateField(field string, existingValue interface{}, existingPriority, incomingPriority int, locked domain.StringArray) bool {
	if locked.Contains(field) {
		return false
	}
	if isEmptyValue(existingValue) {
		return true
	}
	return incomingPriority > existingPriority
}

// fieldValues flattens the mergeable fields of a candidate.
func fieldValues(cand *domain.RawCandidate) map[string]interface{} {
	return map[string]interface{}{
		"title":       cand.Title,
		"description": cand.Description,
		"start_time":  cand.StartTime,
		"end_time":    cand.EndTime,
		"venue_name":  cand.VenueName,
		"address":     cand.Address,
		"lat":         cand.Lat,
		"lng":         cand.Lng,
		"price":       cand.Price,
		"category":    cand.Category,
		"image_url":   cand.ImageURL,
		"booking_url": cand.BookingURL,
	}
}

func eventFieldValue(event *domain.CanonicalEvent, field string) interface{} {
	switch field {
	case "title":
		return event.Title
	case "description":
		return event.Description
	case "start_time":
		return event.StartTime
	case "end_time":
		return event.EndTime
	case "venue_name":
		return event.VenueName
	case "address":
		return event.Address
	case "lat":
		return event.Lat
	case "lng":
		return event.Lng
	case "price":
		return event.Price
	case "category":
		return event.Category
	case "image_url":
		return event.ImageURL
	case "booking_url":
		return event.BookingURL
	}
	return nil
}

func setEventField(event *domain.CanonicalEvent, field string, value interface{}) {
	switch field {
	case "title":
		event.Title, _ = value.(string)
	case "description":
		event.Description, _ = value.(string)
	case "start_time":
		event.StartTime, _ = value.(*time.Time)
	case "end_time":
		event.EndTime, _ = value.(*time.Time)
	case "venue_name":
		event.VenueName, _ = value.(string)
	case "address":
		event.Address, _ = value.(string)
	case "lat":
		event.Lat, _ = value.(float64)
	case "lng":
		event.Lng, _ = value.(float64)
	case "price":
		event.Price, _ = value.(string)
	case "category":
		event.Category, _ = value.(string)
	case "image_url":
		event.ImageURL, _ = value.(string)
	case "booking_url":
		event.BookingURL, _ = value.(string)
	}
}

// Apply merges the candidate's fields into the event under the priority
// rules. Every applied overwrite records provenance naming the source, the
// time, and the value it replaced. Returns the list of changed fields.
func (m *MergeResolver) Apply(event *domain.CanonicalEvent, cand *domain.RawCandidate, src *domain.Source, now time.Time) []string {
	incoming := m.PriorityFor(src)
	if event.FieldProvenance == nil {
		event.FieldProvenance = domain.ProvenanceMap{}
	}

	var changed []string
	for field, value := range fieldValues(cand) {
		if isEmptyValue(value) {
			continue
		}

		existing := eventFieldValue(event, field)
		// An absent provenance entry (or one predating priority snapshots)
		// counts as priority zero, so any registered source may claim the field.
		existingPriority := event.FieldProvenance[field].Priority

		if !ShouldUpdateField(field, existing, existingPriority, incoming, event.LockedFields) {
			continue
		}
		if equalValue(existing, value) {
			continue
		}

		setEventField(event, field, value)
		event.FieldProvenance[field] = domain.FieldProvenance{
			Source:        src.ID,
			Priority:      incoming,
			At:            now,
			PreviousValue: provenanceValue(existing),
		}
		changed = append(changed, field)
	}
	return changed
}

// provenanceValue converts a field value into its JSON-storable previous form.
func provenanceValue(v interface{}) interface{} {
	if t, ok := v.(*time.Time); ok {
		if t == nil {
			return nil
		}
		return t.Format(time.RFC3339)
	}
	if isEmptyValue(v) {
		return nil
	}
	return v
}

// isEmptyValue reports whether a field value counts as missing for the
// fill-missing rule. Zero coordinates count as missing; no supported source
// delivers events at the null island.
func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case float64:
		return val == 0
	case *time.Time:
		return val == nil || val.IsZero()
	}
	return false
}

func equalValue(a, b interface{}) bool {
	at, aok := a.(*time.Time)
	bt, bok := b.(*time.Time)
	if aok && bok {
		if at == nil || bt == nil {
			return at == bt
		}
		return at.Equal(*bt)
	}
	return a == b
}
