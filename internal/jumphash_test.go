package internal

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJumpHash(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		require.Equal(t, 0, JumpHash(42, 0))
		require.Equal(t, 0, JumpHash(42, -1))
		require.Equal(t, 0, JumpHash(42, 1))
	})

	t.Run("bounds", func(t *testing.T) {
		for key := range uint64(1000) {
			for _, n := range []int{2, 3, 7, 64} {
				b := JumpHash(key, n)
				require.True(t, b >= 0 && b < n, "key=%d n=%d bucket=%d", key, n, b)
			}
		}
	})

	t.Run("minimal movement", func(t *testing.T) {
		// Growing from n to n+1 buckets only moves keys into the new bucket
		for key := range uint64(1000) {
			before := JumpHash(key, 9)
			after := JumpHash(key, 10)
			if before != after {
				require.Equal(t, 9, after, "key %d moved from %d to %d", key, before, after)
			}
		}
	})
}

func TestShard(t *testing.T) {
	t.Run("consistency", func(t *testing.T) {
		first := Shard("user:123", 10)
		for range 5 {
			require.Equal(t, first, Shard("user:123", 10))
		}
	})

	t.Run("single shard", func(t *testing.T) {
		require.Equal(t, 0, Shard("anything", 1))
		require.Equal(t, 0, Shard("anything", 0))
	})

	t.Run("distribution", func(t *testing.T) {
		distribution := make(map[int]int)
		for i := range 1000 {
			distribution[Shard(fmt.Sprintf("key-%d", i), 10)]++
		}

		require.Len(t, distribution, 10)
		for shard, count := range distribution {
			require.True(t, count <= 200, "shard %d has %d of 1000 keys", shard, count)
		}
	})
}

func BenchmarkShard(b *testing.B) {
	for b.Loop() {
		Shard("benchmark-key-123", 10)
	}
}
