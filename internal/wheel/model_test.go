package wheel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penwheel/internal/steering"
)

const dt = 1.0 / 250

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr bool
	}{
		{"defaults", func(p *Params) {}, false},
		{"zero inertia", func(p *Params) { p.Inertia = 0 }, true},
		{"negative inertia", func(p *Params) { p.Inertia = -1 }, true},
		{"zero range", func(p *Params) { p.RangeDegrees = 0 }, true},
		{"negative friction", func(p *Params) { p.Friction = -1 }, true},
		{"negative friction cap", func(p *Params) { p.FrictionCap = -1 }, true},
		{"negative center damping", func(p *Params) { p.CenterDamping = -1 }, true},
		{"negative target stiffness", func(p *Params) { p.TargetStiffness = -1 }, true},
		{"zero max torque", func(p *Params) { p.MaxTorque = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParams)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCenterIsStableEquilibrium(t *testing.T) {
	m := NewModel(DefaultParams())

	for i := 0; i < 1000; i++ {
		m.Step(steering.Target{Contact: false}, dt)
	}

	s := m.State()
	assert.Zero(t, s.Angle)
	assert.Zero(t, s.Velocity)
}

func TestConvergesToHeldTarget(t *testing.T) {
	m := NewModel(DefaultParams())
	target := steering.Target{Angle: 0.3, Contact: true}

	for i := 0; i < 2000; i++ {
		m.Step(target, dt)
	}

	assert.InDelta(t, 0.3, m.State().Angle, 0.01)
	assert.InDelta(t, 0, m.State().Velocity, 0.01)
}

func TestCenteringReturnsFromDisplacement(t *testing.T) {
	m := NewModel(DefaultParams())

	// Steer away with the target spring, then lift.
	for i := 0; i < 1000; i++ {
		m.Step(steering.Target{Angle: 1.0, Contact: true}, dt)
	}
	require.Greater(t, m.State().Angle, 0.5)

	for i := 0; i < 4000; i++ {
		m.Step(steering.Target{Contact: false}, dt)
	}

	assert.InDelta(t, 0, m.State().Angle, 0.02)
	assert.InDelta(t, 0, m.State().Velocity, 0.02)
}

func TestHardStopNeverExceeded(t *testing.T) {
	p := DefaultParams()
	p.RangeDegrees = 180 // half range = pi/2
	m := NewModel(p)

	half := 180 * math.Pi / 180 / 2
	target := steering.Target{Angle: 5, Contact: true} // far past the stop

	for i := 0; i < 2000; i++ {
		m.Step(target, dt)
		require.LessOrEqual(t, math.Abs(m.State().Angle), half+1e-12,
			"stop breached at step %d", i)
	}

	// Pinned against the stop with no outward velocity.
	assert.InDelta(t, half, m.State().Angle, 1e-9)
	assert.LessOrEqual(t, m.State().Velocity, 0.0)
}

func TestFeedbackPersistsUntilOverwritten(t *testing.T) {
	m := NewModel(DefaultParams())

	m.SetFeedback(2.5)
	m.Step(steering.Target{Contact: false}, dt)
	v1 := m.State().Velocity
	assert.NotZero(t, v1, "external torque must move the wheel")

	// No new feedback command: the previous value holds, it never drops
	// to zero on its own.
	m.Step(steering.Target{Contact: false}, dt)
	assert.Equal(t, 2.5, m.Feedback())
	assert.Greater(t, m.State().Velocity, v1)
}

func TestStepClampsStallDt(t *testing.T) {
	p := DefaultParams()
	a := NewModel(p)
	b := NewModel(p)

	target := steering.Target{Angle: 0.5, Contact: true}
	a.Step(target, 10) // a 10 second scheduler stall
	b.Step(target, MaxStep)

	assert.Equal(t, b.State(), a.State())
}

func TestFrictionDoesNotInjectEnergyAtRest(t *testing.T) {
	p := DefaultParams()
	p.CenterStiffness = 0
	p.CenterDamping = 0
	m := NewModel(p)

	// With no springs and no velocity the capped friction law must keep
	// the wheel perfectly still instead of oscillating around zero.
	for i := 0; i < 500; i++ {
		m.Step(steering.Target{Contact: false}, dt)
		require.Zero(t, m.State().Velocity)
	}
}

func TestOutputTorqueClamped(t *testing.T) {
	p := DefaultParams()
	p.MaxTorque = 50
	m := NewModel(p)

	// A huge spring error produces a torque far above the clamp.
	m.Step(steering.Target{Angle: 100, Contact: true}, dt)
	assert.LessOrEqual(t, math.Abs(m.State().Torque), 50.0)
}

func TestSetParamsClampsIntoNewRange(t *testing.T) {
	m := NewModel(DefaultParams())
	for i := 0; i < 2000; i++ {
		m.Step(steering.Target{Angle: 3, Contact: true}, dt)
	}
	require.Greater(t, m.State().Angle, 1.0)

	p := DefaultParams()
	p.RangeDegrees = 90
	m.SetParams(p)

	half := 90 * math.Pi / 180 / 2
	assert.LessOrEqual(t, math.Abs(m.State().Angle), half+1e-12)
}

func TestZeroDtIsIgnored(t *testing.T) {
	m := NewModel(DefaultParams())
	m.Step(steering.Target{Angle: 1, Contact: true}, 0)
	assert.Zero(t, m.State().Velocity)
}
