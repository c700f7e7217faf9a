package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCellEmpty(t *testing.T) {
	var c Cell[int]

	_, ok := c.Load()
	assert.False(t, ok)

	_, ok = c.Take()
	assert.False(t, ok)
}

func TestCellLastWriteWins(t *testing.T) {
	var c Cell[int]

	c.Store(1)
	c.Store(2)
	c.Store(3)

	v, ok := c.Load()
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	// Load does not consume.
	v, ok = c.Load()
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestCellTakeConsumes(t *testing.T) {
	var c Cell[string]

	c.Store("a")

	v, ok := c.Take()
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = c.Take()
	assert.False(t, ok, "second take must see an empty slot")
}

func TestCellClear(t *testing.T) {
	var c Cell[int]

	c.Store(7)
	c.Clear()

	_, ok := c.Load()
	assert.False(t, ok)
}
