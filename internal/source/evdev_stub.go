//go:build !linux

package source

import (
	"github.com/rs/zerolog"
)

// NewEvdev is only available on Linux.
func NewEvdev(preferred string, log zerolog.Logger) (Source, error) {
	return nil, ErrUnsupported
}

// EnumerateTablets is only available on Linux.
func EnumerateTablets() ([]DeviceInfo, error) {
	return nil, ErrUnsupported
}
