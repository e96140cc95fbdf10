package cookie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorNew(t *testing.T) {
	var a Allocator

	t.Run("never returns nil", func(t *testing.T) {
		for i := 0; i < 1000; i++ {
			c := a.New(nil)
			require.False(t, c.IsNil())
		}
	})

	t.Run("regenerates on collision", func(t *testing.T) {
		var rejected Cookie
		calls := 0
		c := a.New(func(candidate Cookie) bool {
			calls++
			if calls == 1 {
				rejected = candidate
				return true
			}
			return false
		})
		assert.Equal(t, 2, calls)
		assert.NotEqual(t, rejected, c)
	})

	t.Run("string round trips through uuid form", func(t *testing.T) {
		c := a.New(nil)
		assert.Len(t, c.String(), 36)
	})
}

func TestNilCookie(t *testing.T) {
	var c Cookie
	assert.True(t, c.IsNil())
	assert.Equal(t, Nil, c)
}
