// Package analytics ingests click events off the resolution hot path and
// builds click reports from the store's rollups.
package analytics

import (
	"context"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// Location is the geographic origin of a click
type Location struct {
	Country string
	City    string
}

// GeoResolver maps an IP address to a location
type GeoResolver interface {
	// Lookup never fails; unresolvable addresses map to LocationUnknown or LocationLocal
	Lookup(ip string) Location

	// Close releases the underlying database
	Close() error
}

// StatsApplier receives the namespace stats delta of every ingested click
type StatsApplier interface {
	Apply(ctx context.Context, namespaceID string, delta domain.StatsDelta) error
}
