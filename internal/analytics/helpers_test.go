package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// memClickStore is a minimal in-memory repository.ClickStore
type memClickStore struct {
	mu        sync.Mutex
	events    []*domain.ClickEvent
	missing   map[string]bool
	failWith  error
	daily     []domain.DailyCount
	countries map[string]int64
	referrers map[string]int64
	unique    int64
	lastScope domain.ClickScope
	pruneAt   time.Time
}

func newMemClickStore() *memClickStore {
	return &memClickStore{missing: make(map[string]bool)}
}

func (s *memClickStore) RecordClick(ctx context.Context, e *domain.ClickEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if s.missing[e.NamespaceID+"/"+e.Shortcode] {
		return domain.ErrNotFound
	}
	s.events = append(s.events, e)
	return nil
}

func (s *memClickStore) recorded() []*domain.ClickEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.ClickEvent(nil), s.events...)
}

func (s *memClickStore) DailyClicks(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) ([]domain.DailyCount, error) {
	s.lastScope = scope
	return s.daily, nil
}

func (s *memClickStore) CountryClicks(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) (map[string]int64, error) {
	return s.countries, nil
}

func (s *memClickStore) ReferrerClicks(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) (map[string]int64, error) {
	return s.referrers, nil
}

func (s *memClickStore) UniqueVisitors(ctx context.Context, scope domain.ClickScope, window domain.TimeWindow) (int64, error) {
	return s.unique, nil
}

func (s *memClickStore) PruneClicks(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneAt = before
	kept := s.events[:0]
	var removed int64
	for _, e := range s.events {
		if e.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return removed, nil
}

// countingStats records every applied delta
type countingStats struct {
	mu     sync.Mutex
	totals map[string]domain.StatsDelta
}

func newCountingStats() *countingStats {
	return &countingStats{totals: make(map[string]domain.StatsDelta)}
}

func (c *countingStats) Apply(ctx context.Context, namespaceID string, delta domain.StatsDelta) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.totals[namespaceID]
	c.totals[namespaceID] = t.Sub(delta.Negate())
	return nil
}

func (c *countingStats) clicks(namespaceID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totals[namespaceID].TotalClicks
}

// fixedGeo returns the same location for every address
type fixedGeo struct {
	loc Location
}

func (g fixedGeo) Lookup(ip string) Location { return g.loc }
func (g fixedGeo) Close() error              { return nil }
