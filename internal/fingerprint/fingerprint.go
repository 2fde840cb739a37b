// Package fingerprint derives stable identity keys for real-world events.
//
// Two deliveries describing the same event must fingerprint identically even
// with minor cross-source jitter: casing and punctuation differences in the
// title, sub-minute differences in the start time, geocoding noise in the
// coordinates. The fingerprint is pure and deterministic; it performs no I/O.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/eventpool/backend/internal/apperr"
)

// coordGrid is the rounding grid for coordinates, in decimal degrees.
// 0.001 degrees is roughly 100 m, coarse enough to absorb geocoding jitter.
const coordGrid = 0.001

// Compute derives the event identity fingerprint from normalized title,
// minute-bucketed start time, and grid-rounded coordinates.
// Returns a validation error when the title is empty or the start time is zero.
func Compute(title string, start time.Time, lat, lng float64) (string, error) {
	norm := NormalizeTitle(title)
	if norm == "" {
		return "", apperr.Validation("fingerprint requires a title")
	}
	if start.IsZero() {
		return "", apperr.Validation("fingerprint requires a start time")
	}

	bucket := start.UTC().Truncate(time.Minute)
	key := fmt.Sprintf("%s|%s|%.3f|%.3f",
		norm,
		bucket.Format(time.RFC3339),
		snapToGrid(lat),
		snapToGrid(lng),
	)

	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:32], nil
}

// IdempotencyKey identifies one exact delivery instance of an event by a
// source, as opposed to the cross-source fingerprint. Redelivery of the same
// item produces the same key; a new occurrence (different start) does not.
func IdempotencyKey(sourceID, fp string, start time.Time) string {
	key := fmt.Sprintf("%s|%s|%s", sourceID, fp, start.UTC().Truncate(time.Minute).Format(time.RFC3339))
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:32]
}

// NormalizeTitle lowercases, strips punctuation, and collapses whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	lastSpace := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// snapToGrid rounds a coordinate to the nearest grid cell center.
func snapToGrid(v float64) float64 {
	return math.Round(v/coordGrid) * coordGrid
}
