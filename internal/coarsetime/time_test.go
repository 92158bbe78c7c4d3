package coarsetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNow(t *testing.T) {
	before := time.Now().Add(-Resolution)
	got := Now()
	after := time.Now()

	assert.False(t, got.Before(before.Add(-Resolution)), "coarse clock too far behind")
	assert.False(t, got.After(after), "coarse clock ahead of wall clock")
}

func TestNowAdvances(t *testing.T) {
	first := Now()

	require.Eventually(t, func() bool {
		return Now().After(first)
	}, 20*Resolution, Resolution/5)
}

func TestSince(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	assert.InDelta(t, float64(time.Hour), float64(Since(past)), float64(2*Resolution))
}

func BenchmarkTimeNow(b *testing.B) {
	var t time.Time

	b.Run("time", func(b *testing.B) {
		for b.Loop() {
			t = time.Now()
		}
	})

	b.Run("coarsetime", func(b *testing.B) {
		for b.Loop() {
			t = Now()
		}
	})

	_ = t
}
