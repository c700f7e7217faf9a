package steering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMappingIsIdentity(t *testing.T) {
	m := DefaultMapping()

	for _, p := range [][2]float32{{0, 0}, {1, 1}, {-1, -1}, {0.5, -0.25}} {
		x, y := m.Transform(p[0], p[1])
		assert.InDelta(t, p[0], x, 1e-6)
		assert.InDelta(t, p[1], y, 1e-6)
	}
}

func TestMappingClampsInput(t *testing.T) {
	m := DefaultMapping()

	x, y := m.Transform(2.5, -3)
	assert.Equal(t, float32(1), x)
	assert.Equal(t, float32(-1), y)
}

func TestMappingSubArea(t *testing.T) {
	// Only the central half of the surface maps to the full range.
	m := DefaultMapping()
	m.MinInX, m.MaxInX = -0.5, 0.5
	m.MinInY, m.MaxInY = -0.5, 0.5

	x, y := m.Transform(0.5, -0.5)
	assert.InDelta(t, 1, x, 1e-6)
	assert.InDelta(t, -1, y, 1e-6)

	x, y = m.Transform(0.25, 0)
	assert.InDelta(t, 0.5, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)
}

func TestMappingInvert(t *testing.T) {
	m := DefaultMapping()
	m.InvertX = true
	m.InvertY = true

	x, y := m.Transform(0.5, -0.25)
	assert.InDelta(t, -0.5, x, 1e-6)
	assert.InDelta(t, 0.25, y, 1e-6)
}

func TestMappingOrientation(t *testing.T) {
	tests := []struct {
		name   string
		orient Orientation
		wantX  float32
		wantY  float32
	}{
		{"none", Orient0, 0.5, 0.25},
		{"90", Orient90, -0.25, 0.5},
		{"180", Orient180, -0.5, -0.25},
		{"270", Orient270, 0.25, -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DefaultMapping()
			m.Orientation = tt.orient
			x, y := m.Transform(0.5, 0.25)
			assert.InDelta(t, tt.wantX, x, 1e-6)
			assert.InDelta(t, tt.wantY, y, 1e-6)
		})
	}
}
