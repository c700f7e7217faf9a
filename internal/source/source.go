// Package source provides pluggable pen sample producers.
//
// A Source is a blocking producer: Next returns one sample at a time
// and ErrDisconnected when the underlying transport is gone. Sources
// never compute steering logic; each runs its read loop on a dedicated
// goroutine owned by the pipeline. Close interrupts a blocked Next so
// shutdown never waits on I/O.
package source

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"penwheel/internal/config"
	"penwheel/internal/pen"
)

// ErrDisconnected terminates a source instance. Restarting or falling
// back is the caller's decision, not the source's.
var ErrDisconnected = errors.New("source: disconnected")

// ErrUnsupported is returned when a source variant is not available on
// this platform or build.
var ErrUnsupported = errors.New("source: not supported on this platform")

// Source produces pen samples until disconnected.
type Source interface {
	// Next blocks until a sample arrives or the source disconnects.
	Next() (pen.Sample, error)

	// Close releases the source and interrupts a blocked Next.
	Close() error
}

// DeviceInfo identifies one enumerable input device.
type DeviceInfo struct {
	// Path is the device node, e.g. /dev/input/event3.
	Path string

	// Name is the kernel-advertised device name.
	Name string
}

// New creates the configured source variant.
func New(cfg *config.Config, log zerolog.Logger) (Source, error) {
	switch cfg.Source {
	case config.SourceDummy:
		return NewDummy(), nil
	case config.SourceNet:
		src, err := NewNet(cfg.NetAddr, log)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceEvdev:
		src, err := NewEvdev(cfg.PreferredTablet, log)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceWintab:
		return NewWintab()
	default:
		return nil, fmt.Errorf("source: unknown variant %q", cfg.Source)
	}
}
