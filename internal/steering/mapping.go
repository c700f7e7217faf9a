// Package steering converts pen samples into angular steering targets.
package steering

// Orientation rotates the mapped surface in 90 degree steps.
type Orientation int

const (
	Orient0 Orientation = iota
	Orient90
	Orient180
	Orient270
)

// Mapping rescales and re-centers the usable surface area before angle
// computation, so e.g. only the central 80% of the tablet maps to the
// full steering range. The identity mapping passes coordinates through
// unchanged.
type Mapping struct {
	MinInX, MinInY   float32
	MaxInX, MaxInY   float32
	MinOutX, MinOutY float32
	MaxOutX, MaxOutY float32

	Orientation Orientation
	InvertX     bool
	InvertY     bool
}

// DefaultMapping returns the identity mapping over [-1, 1] x [-1, 1].
func DefaultMapping() Mapping {
	return Mapping{
		MinInX: -1, MinInY: -1,
		MaxInX: 1, MaxInY: 1,
		MinOutX: -1, MinOutY: -1,
		MaxOutX: 1, MaxOutY: 1,
	}
}

// Transform applies the area mapping to a normalized position.
func (m Mapping) Transform(x, y float32) (float32, float32) {
	x = clamp01(invLerp(x, m.MinInX, m.MaxInX))
	y = clamp01(invLerp(y, m.MinInY, m.MaxInY))

	if m.InvertX {
		x = 1 - x
	}
	if m.InvertY {
		y = 1 - y
	}

	x = clampSym(1, lerp(x, m.MinOutX, m.MaxOutX))
	y = clampSym(1, lerp(y, m.MinOutY, m.MaxOutY))

	switch m.Orientation {
	case Orient90:
		return -y, x
	case Orient180:
		return -x, -y
	case Orient270:
		return y, -x
	default:
		return x, y
	}
}

func lerp(t, b1, b2 float32) float32 {
	return b1 + t*(b2-b1)
}

func invLerp(t, a1, a2 float32) float32 {
	return (t - a1) / (a2 - a1)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampSym(max, v float32) float32 {
	if v < -max {
		return -max
	}
	if v > max {
		return max
	}
	return v
}
