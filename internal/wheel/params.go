// Package wheel simulates the rotational dynamics of a steering wheel.
package wheel

import (
	"errors"
	"fmt"
)

// Params holds the physical coefficients of the wheel model. A Params
// value is immutable once applied; reconfiguration swaps the whole value
// atomically between ticks, never field by field.
type Params struct {
	// RangeDegrees is the lock-to-lock angular range.
	RangeDegrees float64 `json:"rangeDegrees" mapstructure:"rangeDegrees"`

	// Inertia is the rotational inertia in kg*m^2. Must be positive.
	Inertia float64 `json:"inertia" mapstructure:"inertia"`

	// Friction is the Coulomb friction coefficient.
	Friction float64 `json:"friction" mapstructure:"friction"`

	// FrictionCap bounds the velocity term of the friction torque so
	// friction cannot inject energy at near-zero velocity.
	FrictionCap float64 `json:"frictionCap" mapstructure:"frictionCap"`

	// CenterStiffness and CenterDamping shape the self-centering spring
	// that acts while the pen is lifted.
	CenterStiffness float64 `json:"centerStiffness" mapstructure:"centerStiffness"`
	CenterDamping   float64 `json:"centerDamping" mapstructure:"centerDamping"`

	// TargetStiffness and TargetDamping shape the spring pulling the
	// wheel toward the commanded angle while the pen is down.
	TargetStiffness float64 `json:"targetStiffness" mapstructure:"targetStiffness"`
	TargetDamping   float64 `json:"targetDamping" mapstructure:"targetDamping"`

	// MaxTorque bounds the published output torque in Nm.
	MaxTorque float64 `json:"maxTorque" mapstructure:"maxTorque"`
}

// ErrInvalidParams wraps all parameter validation failures.
var ErrInvalidParams = errors.New("wheel: invalid params")

// DefaultParams returns the stock wheel tuning.
func DefaultParams() Params {
	return Params{
		RangeDegrees:    1800,
		Inertia:         1.0,
		Friction:        25,
		FrictionCap:     10,
		CenterStiffness: 40,
		CenterDamping:   8,
		TargetStiffness: 400,
		TargetDamping:   30,
		MaxTorque:       300,
	}
}

// Validate rejects parameter sets that would break the integrator.
// Invalid params fail fast at startup or reload, before the tick loop
// ever divides by them.
func (p Params) Validate() error {
	if p.Inertia <= 0 {
		return fmt.Errorf("%w: inertia must be positive, got %v", ErrInvalidParams, p.Inertia)
	}
	if p.RangeDegrees <= 0 {
		return fmt.Errorf("%w: range must be positive, got %v", ErrInvalidParams, p.RangeDegrees)
	}
	if p.Friction < 0 {
		return fmt.Errorf("%w: friction must not be negative, got %v", ErrInvalidParams, p.Friction)
	}
	if p.FrictionCap < 0 {
		return fmt.Errorf("%w: friction cap must not be negative, got %v", ErrInvalidParams, p.FrictionCap)
	}
	if p.CenterStiffness < 0 || p.CenterDamping < 0 {
		return fmt.Errorf("%w: centering spring coefficients must not be negative", ErrInvalidParams)
	}
	if p.TargetStiffness < 0 || p.TargetDamping < 0 {
		return fmt.Errorf("%w: target spring coefficients must not be negative", ErrInvalidParams)
	}
	if p.MaxTorque <= 0 {
		return fmt.Errorf("%w: max torque must be positive, got %v", ErrInvalidParams, p.MaxTorque)
	}
	return nil
}
