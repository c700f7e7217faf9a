package pipeline

import "sync/atomic"

// Cell is a single-slot, last-write-wins handoff between exactly the
// producing and consuming loops of the pipeline. Every payload crossing
// it (pen sample, wheel frame, feedback torque) is a continuously
// superseded control signal, so a newer value overwriting an unread one
// is correct behavior, not loss.
type Cell[T any] struct {
	p atomic.Pointer[T]
}

// Store replaces the slot's value, discarding any unread one.
func (c *Cell[T]) Store(v T) {
	c.p.Store(&v)
}

// Load returns the current value without consuming it.
func (c *Cell[T]) Load() (T, bool) {
	ptr := c.p.Load()
	if ptr == nil {
		var zero T
		return zero, false
	}
	return *ptr, true
}

// Take consumes the current value, leaving the slot empty. Used where
// the consumer must distinguish "new value since last tick" from "hold
// the previous one".
func (c *Cell[T]) Take() (T, bool) {
	ptr := c.p.Swap(nil)
	if ptr == nil {
		var zero T
		return zero, false
	}
	return *ptr, true
}

// Clear empties the slot.
func (c *Cell[T]) Clear() {
	c.p.Store(nil)
}
