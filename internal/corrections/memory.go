package corrections

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a Store backed by a map, used by the CLI and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
	seq     map[string]int64
	nextSeq int64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
		seq:     make(map[string]int64),
	}
}

// Record upserts the correction for the description's pattern.
func (s *MemoryStore) Record(ctx context.Context, description, category, subcategory string) (Entry, error) {
	pattern := PatternFor(description)
	if pattern == "" {
		return Entry{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[pattern]; ok {
		e.Category = category
		e.Subcategory = subcategory
		e.UsageCount++
		return *e, nil
	}

	e := &Entry{
		Pattern:     pattern,
		Category:    category,
		Subcategory: subcategory,
		UsageCount:  1,
		CreatedAt:   time.Now().UTC(),
	}
	s.entries[pattern] = e
	s.seq[pattern] = s.nextSeq
	s.nextSeq++
	return *e, nil
}

// TopByUsage returns up to limit entries ordered by usage count, most used
// first. Ties go to the older pattern.
func (s *MemoryStore) TopByUsage(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return s.seq[out[i].Pattern] < s.seq[out[j].Pattern]
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
