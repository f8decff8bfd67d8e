// Package corrections remembers the categories users assigned by hand,
// keyed by a normalized description pattern, so future imports classify
// recurring merchants the way the user already decided.
package corrections

import (
	"context"
	"strings"
	"time"
)

// patternLength caps the normalized pattern at this many characters.
const patternLength = 100

// PatternFor derives the lookup pattern from a description: the first
// 100 characters, lowercased. The description is taken as supplied, with
// no trimming.
func PatternFor(description string) string {
	runes := []rune(description)
	if len(runes) > patternLength {
		runes = runes[:patternLength]
	}
	return strings.ToLower(string(runes))
}

// Entry is one remembered correction. UsageCount tells how many times the
// same pattern has been corrected to the same labels.
type Entry struct {
	Pattern     string
	Category    string
	Subcategory string
	UsageCount  int64
	CreatedAt   time.Time
}

// Store persists corrections. Record is an upsert: a new pattern inserts
// with usage count 1, a repeated one overwrites the labels and increments
// the count atomically. It returns the entry as stored.
type Store interface {
	Record(ctx context.Context, description, category, subcategory string) (Entry, error)
	TopByUsage(ctx context.Context, limit int) ([]Entry, error)
}
