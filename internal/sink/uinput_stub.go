//go:build !linux

package sink

import (
	"github.com/rs/zerolog"

	"penwheel/internal/config"
)

// NewUInput is only available on Linux.
func NewUInput(dev config.DeviceConfig, maxTorque float64, log zerolog.Logger) (Sink, error) {
	return nil, ErrUnsupported
}
