package partition

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitioner_Stable(t *testing.T) {
	p := New(64)
	first := p.Of("mktg", "abc123")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, p.Of("mktg", "abc123"))
	}
	assert.Equal(t, first, New(64).Of("mktg", "abc123"))
}

func TestPartitioner_Range(t *testing.T) {
	p := New(16)
	for i := 0; i < 1000; i++ {
		k := p.Of("ns", fmt.Sprintf("code%d", i))
		assert.Less(t, k, uint32(16))
	}
}

func TestPartitioner_SeparatorMatters(t *testing.T) {
	p := New(1 << 20)
	// "ab"+"c" and "a"+"bc" must not collapse onto the same input
	assert.NotEqual(t, p.Of("ab", "c"), p.Of("a", "bc"))
}

func TestPartitioner_DefaultPartitions(t *testing.T) {
	assert.Equal(t, uint32(DefaultPartitions), New(0).Partitions)

	var zero Partitioner
	assert.Equal(t, New(0).Of("ns", "code"), zero.Of("ns", "code"))
}

func TestPartitioner_EvenDistribution(t *testing.T) {
	const partitions = 8
	const samples = 8000
	p := New(partitions)

	counts := make([]int, partitions)
	for i := 0; i < samples; i++ {
		// sequential shortcodes must not pile into a single partition
		counts[p.Of("mktg", fmt.Sprintf("%07d", i))]++
	}

	expected := samples / partitions
	for i, c := range counts {
		assert.InDelta(t, expected, c, float64(expected)/3, "partition %d", i)
	}
}
