package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAccumulatesInOrder(t *testing.T) {
	c := NewContext()
	require.NoError(t, c.Add("first", "one"))
	require.NoError(t, c.Add("second", "two"))

	assert.Equal(t, []string{"first", "second"}, c.Names())
	assert.Equal(t, 2, c.Len())

	out, ok := c.Get("first")
	require.True(t, ok)
	assert.Equal(t, "one", out)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestContextRejectsDuplicateStage(t *testing.T) {
	c := NewContext()
	require.NoError(t, c.Add("stage", "one"))
	assert.Error(t, c.Add("stage", "two"))

	// The original output is untouched.
	out, _ := c.Get("stage")
	assert.Equal(t, "one", out)
	assert.Equal(t, 1, c.Len())
}

func TestContextSnapshotIsACopy(t *testing.T) {
	c := NewContext()
	require.NoError(t, c.Add("stage", "one"))

	snap := c.Snapshot()
	snap["stage"] = "mutated"
	snap["extra"] = "value"

	out, _ := c.Get("stage")
	assert.Equal(t, "one", out)
	_, ok := c.Get("extra")
	assert.False(t, ok)
}
