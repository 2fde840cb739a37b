package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// Contains reports whether the array holds the given value.
func (a StringArray) Contains(v string) bool {
	for _, s := range a {
		if s == v {
			return true
		}
	}
	return false
}

// JSONMap is a custom type for storing loosely structured JSON objects.
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for database deserialization.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan JSONMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// FieldProvenance records which source last set a field and what it replaced.
// Priority is a snapshot of the writing source's merge priority at write
// time, so later conflicts resolve without re-loading historic sources.
type FieldProvenance struct {
	Source        string      `json:"source"`
	Priority      int         `json:"priority,omitempty"`
	At            time.Time   `json:"at"`
	PreviousValue interface{} `json:"previous_value,omitempty"`
}

// ProvenanceMap maps field names to their provenance entries.
type ProvenanceMap map[string]FieldProvenance

// Value implements the driver.Valuer interface for database serialization.
func (p ProvenanceMap) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface for database deserialization.
func (p *ProvenanceMap) Scan(value interface{}) error {
	if value == nil {
		*p = ProvenanceMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan ProvenanceMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, p)
}
