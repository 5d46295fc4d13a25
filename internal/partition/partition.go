// Package partition derives the storage partition of a (namespace, shortcode) pair.
package partition

import (
	"github.com/cespare/xxhash/v2"
)

// DefaultPartitions is used when no partition count is configured
const DefaultPartitions = 64

// Key identifies a storage partition
type Key = uint32

// Partitioner maps a namespaced shortcode onto one of a fixed number of partitions.
// The hash covers both parts so sequential or low-entropy shortcodes still spread
// evenly across partitions.
type Partitioner struct {
	Partitions uint32
}

// New creates a Partitioner with n partitions, falling back to DefaultPartitions when n is 0
func New(n uint32) Partitioner {
	if n == 0 {
		n = DefaultPartitions
	}
	return Partitioner{Partitions: n}
}

// Of returns the partition of the given namespace and shortcode
func (p Partitioner) Of(namespaceID, shortcode string) Key {
	n := p.Partitions
	if n == 0 {
		n = DefaultPartitions
	}
	d := xxhash.New()
	_, _ = d.WriteString(namespaceID)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(shortcode)
	return Key(d.Sum64() % uint64(n))
}
