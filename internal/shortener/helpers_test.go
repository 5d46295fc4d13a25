package shortener

import (
	"context"
	"errors"
	"sync"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// memCounterStore is an in-memory CounterStore
type memCounterStore struct {
	mu      sync.Mutex
	values  map[string]int64
	sets    int
	failSet bool
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{values: make(map[string]int64)}
}

func (s *memCounterStore) GetCounter(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *memCounterStore) SetCounter(ctx context.Context, key string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet {
		return errors.New("disk full")
	}
	s.sets++
	s.values[key] = value
	return nil
}

// memInserter is an Inserter keyed by namespace and shortcode
type memInserter struct {
	mu      sync.Mutex
	records map[string]*domain.ShortURL
	calls   int
	err     error
}

func newMemInserter() *memInserter {
	return &memInserter{records: make(map[string]*domain.ShortURL)}
}

func (m *memInserter) CreateIfAbsent(ctx context.Context, u *domain.ShortURL) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	k := u.NamespaceID + "/" + u.Shortcode
	if _, ok := m.records[k]; ok {
		return domain.ErrShortcodeTaken
	}
	m.records[k] = u.Clone()
	return nil
}

// sequenceGenerator replays a fixed list of candidates
type sequenceGenerator struct {
	mu    sync.Mutex
	codes []string
	next  int
}

func (g *sequenceGenerator) GenerateShortCode(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next >= len(g.codes) {
		return "", errors.New("no more candidates")
	}
	code := g.codes[g.next]
	g.next++
	return code, nil
}

func (g *sequenceGenerator) Type() string { return "sequence" }
func (g *sequenceGenerator) Close() error { return nil }
