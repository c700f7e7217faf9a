package sink

import "sync/atomic"

// Dummy accepts and discards frames. Used for headless smoke runs and
// tests.
type Dummy struct {
	frames atomic.Uint64
}

// NewDummy creates a dummy sink.
func NewDummy() *Dummy {
	return &Dummy{}
}

// Send discards the frame.
func (d *Dummy) Send(Frame) error {
	d.frames.Add(1)
	return nil
}

// PollFeedback never reports feedback.
func (d *Dummy) PollFeedback() (float64, bool) {
	return 0, false
}

// Frames reports how many frames have been accepted.
func (d *Dummy) Frames() uint64 {
	return d.frames.Load()
}

// Close is a no-op.
func (d *Dummy) Close() error {
	return nil
}
