package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrigger_TripsAtThreshold(t *testing.T) {
	tr := New(3)

	tr.Observe(false)
	tr.Observe(false)
	assert.False(t, tr.IsTripped())

	tr.Observe(false)
	assert.True(t, tr.IsTripped())

	tr.Observe(false)
	assert.True(t, tr.IsTripped())
	assert.Equal(t, 4, tr.Count())
}

func TestTrigger_SuccessResetsFully(t *testing.T) {
	tr := New(3)
	for i := 0; i < 5; i++ {
		tr.Observe(false)
	}
	assert.True(t, tr.IsTripped())

	tr.Observe(true)
	assert.False(t, tr.IsTripped())
	assert.Equal(t, 0, tr.Count())

	// Two failures after a reset must not trip again.
	tr.Observe(false)
	tr.Observe(false)
	assert.False(t, tr.IsTripped())
}

func TestTrigger_SuccessBeforeThreshold(t *testing.T) {
	tr := New(3)
	tr.Observe(false)
	tr.Observe(false)
	tr.Observe(true)
	tr.Observe(false)
	assert.Equal(t, 1, tr.Count())
	assert.False(t, tr.IsTripped())
}

func TestTrigger_Reset(t *testing.T) {
	tr := New(1)
	tr.Observe(false)
	assert.True(t, tr.IsTripped())

	tr.Reset()
	assert.False(t, tr.IsTripped())
}

func TestTrigger_MinimumThreshold(t *testing.T) {
	tr := New(0)
	assert.Equal(t, 1, tr.Threshold())
	assert.False(t, tr.IsTripped())
	tr.Observe(false)
	assert.True(t, tr.IsTripped())
}
