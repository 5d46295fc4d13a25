package shortener

import (
	"fmt"
)

// NewGenerator creates the generator selected by config.Strategy
func NewGenerator(config Config, counters CounterStore) (Generator, error) {
	switch config.Strategy {
	case "", TypeRandom:
		return NewRandomGenerator(config.Length), nil
	case TypeCounter:
		if counters == nil {
			return nil, fmt.Errorf("counter store required for counter-based generator")
		}
		return NewCounterGenerator(NewCounterCache(counters, config.CounterStep), config.Length), nil
	default:
		return nil, fmt.Errorf("unknown generator strategy: %s", config.Strategy)
	}
}
