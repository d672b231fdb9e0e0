package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker(t *testing.T) {
	t.Run("accumulates counters", func(t *testing.T) {
		tracker := newProgressTracker()
		tracker.addTotal(10)
		tracker.complete(4)
		tracker.fail(1)

		snap := tracker.snapshot()
		assert.Equal(t, 10, snap.Total)
		assert.Equal(t, 4, snap.Completed)
		assert.Equal(t, 1, snap.Failed)
		assert.False(t, snap.Done())
		assert.InDelta(t, 50.0, snap.Percent(), 0.01)
	})

	t.Run("done when all items accounted for", func(t *testing.T) {
		tracker := newProgressTracker()
		tracker.addTotal(3)
		tracker.complete(2)
		tracker.fail(1)

		assert.True(t, tracker.snapshot().Done())
	})

	t.Run("empty run", func(t *testing.T) {
		snap := newProgressTracker().snapshot()
		assert.Equal(t, 0.0, snap.Percent())
		assert.True(t, snap.Done())
	})
}
