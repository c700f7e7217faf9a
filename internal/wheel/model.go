package wheel

import (
	"math"

	"penwheel/internal/steering"
)

// MaxStep is the integration ceiling for a single tick. Elapsed time is
// measured from the wall clock, so a scheduler stall could otherwise
// produce one catastrophic integration step.
const MaxStep = 0.05 // seconds

// State is a snapshot of the wheel at one instant. The model is its
// only mutator; everyone else receives read-only copies.
type State struct {
	// Angle is the wheel angle in radians, within half range of center.
	Angle float64 `json:"angle"`

	// Velocity is the angular velocity in rad/s.
	Velocity float64 `json:"velocity"`

	// Torque is the total torque applied during the last step, clamped
	// to the configured maximum. Sinks that render force feedback
	// proportional to load use this rather than the raw spring law.
	Torque float64 `json:"torque"`
}

// Model integrates the wheel dynamics at fixed discrete steps. While the
// pen is down a spring pulls the wheel toward the commanded angle; while
// it is lifted a centering spring returns the wheel to zero. Coulomb
// friction and an externally commanded force-feedback torque act in both
// regimes. Travel ends in an inelastic hard stop at half range.
//
// Model is not safe for concurrent use: the physics tick loop is its
// single owner.
type Model struct {
	params   Params
	state    State
	feedback float64
}

// NewModel creates a model at rest at center. Params must already be
// validated.
func NewModel(params Params) *Model {
	return &Model{params: params}
}

// Params returns the active parameter set.
func (m *Model) Params() Params {
	return m.params
}

// SetParams replaces the parameter set. The current angle is clamped
// into the possibly narrower new range.
func (m *Model) SetParams(params Params) {
	m.params = params
	m.clampToStops()
}

// State returns the current snapshot.
func (m *Model) State() State {
	return m.state
}

// SetFeedback commands an external force-feedback torque. The value is
// additive in the next steps and persists until overwritten: force
// feedback is a continuous control signal, so a missed update means the
// previous value holds one step longer, never that it drops to zero.
func (m *Model) SetFeedback(torque float64) {
	m.feedback = torque
}

// Feedback returns the currently commanded external torque.
func (m *Model) Feedback() float64 {
	return m.feedback
}

// Step advances the simulation by dt seconds toward the given target.
// dt above MaxStep is clamped.
func (m *Model) Step(target steering.Target, dt float64) {
	if dt <= 0 {
		return
	}
	if dt > MaxStep {
		dt = MaxStep
	}

	p := m.params
	s := &m.state

	friction := -p.Friction * sign(s.Velocity) * math.Min(math.Abs(s.Velocity), p.FrictionCap)

	var total float64
	if target.Contact {
		spring := p.TargetStiffness*(target.Angle-s.Angle) - p.TargetDamping*s.Velocity
		total = spring + friction + m.feedback
	} else {
		center := -p.CenterStiffness*s.Angle - p.CenterDamping*s.Velocity
		total = center + friction + m.feedback
	}

	// Semi-implicit Euler: the position update sees the new velocity.
	s.Velocity += total / p.Inertia * dt
	s.Angle += s.Velocity * dt

	m.clampToStops()

	s.Torque = clampSym(p.MaxTorque, total)
}

// clampToStops models the mechanical end of travel: the angle is pinned
// to the bound and any velocity still pushing outward is zeroed.
func (m *Model) clampToStops() {
	half := m.params.RangeDegrees * math.Pi / 180 / 2
	s := &m.state

	if s.Angle > half {
		s.Angle = half
		if s.Velocity > 0 {
			s.Velocity = 0
		}
	} else if s.Angle < -half {
		s.Angle = -half
		if s.Velocity < 0 {
			s.Velocity = 0
		}
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func clampSym(max, v float64) float64 {
	if v < -max {
		return -max
	}
	if v > max {
		return max
	}
	return v
}
