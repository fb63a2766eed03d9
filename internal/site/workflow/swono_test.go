package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectSuffix(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"CMG-2024-015", "015"},
		{"P100", "P100"},
		{"A-B", "B"},
		{"TRAIL-", "TRAIL"},
		{" CMG-7 ", "7"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProjectSuffix(tt.in), tt.in)
	}
}

func TestFormatAndParseSWONo(t *testing.T) {
	assert.Equal(t, "015-SWO-001", FormatSWONo("015", 1))
	assert.Equal(t, "015-SWO-1000", FormatSWONo("015", 1000))

	seq, ok := ParseSWOSeq("015-SWO-042")
	assert.True(t, ok)
	assert.Equal(t, 42, seq)

	_, ok = ParseSWOSeq("garbage")
	assert.False(t, ok)
	_, ok = ParseSWOSeq("015-SWO-x1")
	assert.False(t, ok)
}

func TestNextSWOSeq(t *testing.T) {
	assert.Equal(t, 1, NextSWOSeq(nil))
	assert.Equal(t, 4, NextSWOSeq([]string{"015-SWO-001", "015-SWO-003", "manual"}))
}
