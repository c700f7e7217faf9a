// Package sink provides pluggable virtual-controller outputs.
//
// A Sink consumes wheel state frames at its own cadence on a goroutine
// owned by the pipeline; a slow sink skips intermediate frames rather
// than backlogging them. Sinks with a force-feedback capability report
// torque requests back upstream through PollFeedback.
package sink

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"penwheel/internal/config"
)

// ErrUnsupported is returned when a sink variant is not available on
// this platform or build.
var ErrUnsupported = errors.New("sink: not supported on this platform")

// Frame is the per-tick wheel snapshot delivered to sinks. It is a
// read-only copy; sinks never reach back into the physics state.
type Frame struct {
	// Angle is the wheel angle in radians.
	Angle float64 `json:"angle"`

	// Velocity is the angular velocity in rad/s.
	Velocity float64 `json:"velocity"`

	// Torque is the model's output torque in Nm.
	Torque float64 `json:"torque"`

	// Range is the lock-to-lock range in degrees, for axis scaling.
	Range float64 `json:"range"`

	// Horn is the horn button state.
	Horn bool `json:"horn"`

	// Buttons is the stylus button bitfield passed through from input.
	Buttons uint8 `json:"buttons"`
}

// Sink renders wheel state to a virtual controller device.
type Sink interface {
	// Send emits one frame. A returned error is terminal for this sink
	// instance; the pipeline stops driving it but keeps running.
	Send(Frame) error

	// PollFeedback reports a pending force-feedback torque request, if
	// any. Sinks without the capability always return false.
	PollFeedback() (float64, bool)

	// Close releases the device.
	Close() error
}

// New creates the configured sink variant.
func New(cfg *config.Config, log zerolog.Logger) (Sink, error) {
	switch cfg.Sink {
	case config.SinkDummy:
		return NewDummy(), nil
	case config.SinkUInput:
		s, err := NewUInput(cfg.Device, cfg.Wheel.MaxTorque, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SinkViGEm:
		return NewViGEm(log), nil
	default:
		return nil, fmt.Errorf("sink: unknown variant %q", cfg.Sink)
	}
}
