package steering

import (
	"math"

	"penwheel/internal/pen"
)

// Target is the state the wheel model is commanded toward for the
// current instant. Angle is in radians, already scaled to the wheel
// range and clamped to half-range either side of center.
type Target struct {
	// Angle is the commanded wheel angle in radians.
	Angle float64

	// Contact reports whether the pen is touching the surface. While
	// false the physics model drops the spring-to-target force and runs
	// free on friction and the centering spring.
	Contact bool

	// Horn is true while the pen is pressed inside the horn deadzone.
	Horn bool

	// Buttons carries the stylus button bitfield through to the sink.
	Buttons uint8
}

// Params configures the mapper.
type Params struct {
	// RangeDegrees is the lock-to-lock angular range of the wheel.
	RangeDegrees float64

	// HornRadius is the maximum normalized distance from center in which
	// pressing the pen down triggers the horn. The deadzone is circular;
	// surface-shape-aware (e.g. elliptical) deadzones are not modeled.
	HornRadius float64

	// PressureThreshold is the minimum pressure for the pen to count as
	// touching.
	PressureThreshold uint32

	// BaseRadius is the normalized distance under which angular deltas
	// are scaled down, so small wobbles near the surface center do not
	// spin the wheel.
	BaseRadius float64

	// Mapping is the surface area-mapping transform.
	Mapping Mapping
}

// Mapper accumulates continuous wheel rotation from discontinuous pen
// positions. atan2 output wraps at -pi/pi, so the mapper tracks the
// previous raw angle while the pen is down and applies only the
// shortest signed delta per sample. The accumulated target survives pen
// lifts: a pen-down edge re-anchors the unwrap state without moving the
// wheel. Mapper is not safe for concurrent use; the physics tick loop
// is its single caller.
type Mapper struct {
	params Params

	contact   bool
	prevAngle float64
	target    float64
}

// NewMapper creates a mapper with the given parameters.
func NewMapper(params Params) *Mapper {
	return &Mapper{params: params}
}

// SetParams replaces the mapper parameters and clamps the accumulated
// target into the possibly narrower new range.
func (m *Mapper) SetParams(params Params) {
	m.params = params
	m.target = clampSym64(m.halfRange(), m.target)
}

// Reset clears the unwrap state and re-centers the target.
func (m *Mapper) Reset() {
	m.contact = false
	m.prevAngle = 0
	m.target = 0
}

// Map consumes one pen sample and returns the current steering target.
// With no new sample available the caller simply reuses the previous
// target; Map is only invoked when a sample exists.
func (m *Mapper) Map(s pen.Sample) Target {
	s = s.Clamped()
	x, y := m.params.Mapping.Transform(s.X, s.Y)

	contact := s.Pressure >= m.params.PressureThreshold
	raw := math.Atan2(float64(y), float64(x))
	dist := math.Sqrt(float64(x)*float64(x) + float64(y)*float64(y))

	switch {
	case contact && !m.contact:
		// Pen-down edge: re-anchor without moving the wheel.
		m.prevAngle = raw
	case contact:
		delta := angleDelta(m.prevAngle, raw)
		m.target += adjustDelta(delta, dist, m.params.BaseRadius)
		m.target = clampSym64(m.halfRange(), m.target)
		m.prevAngle = raw
	}
	m.contact = contact

	return Target{
		Angle:   m.target,
		Contact: contact,
		Horn:    contact && dist < m.params.HornRadius,
		Buttons: s.Buttons,
	}
}

func (m *Mapper) halfRange() float64 {
	return m.params.RangeDegrees * math.Pi / 180 / 2
}

// angleDelta is the shortest signed angular difference from a to b.
func angleDelta(a, b float64) float64 {
	delta := b - a
	for delta < -math.Pi {
		delta += 2 * math.Pi
	}
	for delta > math.Pi {
		delta -= 2 * math.Pi
	}
	return delta
}

// adjustDelta scales an angular delta by distance from center, up to a
// maximum of one at base radius.
func adjustDelta(delta, dist, base float64) float64 {
	if base <= 0 {
		return delta
	}
	return delta * math.Min(dist, base) / base
}

func clampSym64(max, v float64) float64 {
	if v < -max {
		return -max
	}
	if v > max {
		return max
	}
	return v
}
