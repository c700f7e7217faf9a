package source

import (
	"sync"

	"penwheel/internal/pen"
)

// Dummy is a source that never produces samples. It is used for
// headless smoke runs and tests: the pipeline holds whatever target it
// last had (none, at startup) and the wheel runs free on the centering
// spring.
type Dummy struct {
	done chan struct{}
	once sync.Once
}

// NewDummy creates a dummy source.
func NewDummy() *Dummy {
	return &Dummy{done: make(chan struct{})}
}

// Next blocks until Close, then reports disconnection.
func (d *Dummy) Next() (pen.Sample, error) {
	<-d.done
	return pen.Sample{}, ErrDisconnected
}

// Close releases the source.
func (d *Dummy) Close() error {
	d.once.Do(func() { close(d.done) })
	return nil
}
