package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlertTracker(t *testing.T) {
	var a AlertTracker
	assert.True(t, a.Observe(2), "first observation with items")
	assert.False(t, a.Observe(2))
	assert.False(t, a.Observe(1))
	assert.True(t, a.Observe(3))
	assert.Equal(t, 3, a.Last())

	var empty AlertTracker
	assert.False(t, empty.Observe(0))
	assert.True(t, empty.Observe(1))
}
