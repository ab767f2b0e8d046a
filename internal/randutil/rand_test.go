package randutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsDeterministic(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 16; i++ {
		assert.Equal(t, a.Uint64(), b.Uint64())
	}
}

func TestSeedsAreDistinct(t *testing.T) {
	seeds := Seeds(New(7), 8)
	seen := make(map[int64]bool)
	for _, s := range seeds {
		assert.False(t, seen[s], "duplicate seed %d", s)
		seen[s] = true
	}
}

func TestNewSecureProducesValues(t *testing.T) {
	rng := NewSecure()
	assert.NotEqual(t, rng.Uint64(), rng.Uint64())
}
