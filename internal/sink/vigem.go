package sink

import "github.com/rs/zerolog"

// ViGEm would present a virtual joystick through the ViGEm bus driver
// on Windows. Binding the vendor driver is out of scope; this variant
// accepts frames so the rest of the pipeline can be exercised against
// it, and reports no force-feedback capability.
type ViGEm struct {
	log zerolog.Logger
}

// NewViGEm creates the placeholder ViGEm sink.
func NewViGEm(log zerolog.Logger) *ViGEm {
	log.Info().Msg("vigem sink: driver binding not built in, frames are logged only")
	return &ViGEm{log: log}
}

// Send logs the frame at debug level.
func (v *ViGEm) Send(f Frame) error {
	v.log.Debug().Float64("angle", f.Angle).Bool("horn", f.Horn).Msg("vigem sink: frame")
	return nil
}

// PollFeedback never reports feedback: the capability is
// driver-dependent and the driver is not bound.
func (v *ViGEm) PollFeedback() (float64, bool) {
	return 0, false
}

// Close is a no-op.
func (v *ViGEm) Close() error {
	return nil
}
