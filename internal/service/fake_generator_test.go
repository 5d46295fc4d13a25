package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/joshdurbin/ns-shortener/internal/shortener"
)

// TestGenerator hands out code0001, code0002, ... in order.
// Repeat makes it hand out the same candidate forever, to force collisions.
type TestGenerator struct {
	mu      sync.Mutex
	counter int
	Repeat  bool
}

// NewTestGenerator returns a generator starting at code0001
func NewTestGenerator() *TestGenerator {
	return &TestGenerator{}
}

// GenerateShortCode returns the next candidate
func (g *TestGenerator) GenerateShortCode(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.Repeat || g.counter == 0 {
		g.counter++
	}
	return fmt.Sprintf("code%04d", g.counter), nil
}

// Type returns the generator type
func (g *TestGenerator) Type() string {
	return "test"
}

// Close performs cleanup
func (g *TestGenerator) Close() error {
	return nil
}

var _ shortener.Generator = (*TestGenerator)(nil)
