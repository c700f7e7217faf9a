// Package pipeline bridges input sources, the wheel physics model and
// output sinks.
//
// Threading model: one goroutine per source, one fixed-rate physics tick
// goroutine, one goroutine per sink. They communicate only through
// single-slot last-write-wins cells, so a source or sink blocked on I/O
// can never stall the tick loop or each other. The tick loop is the
// sole mutator of the wheel state and blocks only on its timer.
package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"penwheel/internal/pen"
	"penwheel/internal/sink"
	"penwheel/internal/source"
	"penwheel/internal/steering"
	"penwheel/internal/wheel"
)

// Pipeline owns the loops and handoff cells of one steering session.
type Pipeline struct {
	src      source.Source
	sinks    []sink.Sink
	freq     int
	sinkFreq int
	log      zerolog.Logger

	// Owned exclusively by the tick loop after Start.
	mapper *steering.Mapper
	model  *wheel.Model
	target steering.Target

	samples  Cell[pen.Sample]
	override Cell[pen.Sample]
	frames   Cell[sink.Frame]
	feedback Cell[float64]

	pendingWheel  Cell[wheel.Params]
	pendingMapper Cell[steering.Params]

	mu      sync.Mutex
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New assembles a pipeline. Wheel params must already be validated.
// sinkFreq is the sink output rate in Hz; zero or less means sinks run
// at the physics tick rate.
func New(src source.Source, sinks []sink.Sink, mapper *steering.Mapper, model *wheel.Model, freq, sinkFreq int, log zerolog.Logger) *Pipeline {
	if sinkFreq <= 0 {
		sinkFreq = freq
	}
	return &Pipeline{
		src:      src,
		sinks:    sinks,
		freq:     freq,
		sinkFreq: sinkFreq,
		log:      log,
		mapper:   mapper,
		model:    model,
		done:     make(chan struct{}),
	}
}

// Start launches the source, tick and sink loops.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("pipeline: already started")
	}
	p.started = true

	p.wg.Add(1)
	go p.sourceLoop()

	p.wg.Add(1)
	go p.tickLoop()

	for i, s := range p.sinks {
		p.wg.Add(1)
		go p.sinkLoop(i, s)
	}

	p.log.Info().Int("frequency", p.freq).Int("sinks", len(p.sinks)).
		Msg("pipeline: started")
	return nil
}

// Stop signals every loop, interrupts blocked I/O by closing the source,
// waits for the loops to drain and then closes the sinks.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	select {
	case <-p.done:
		p.mu.Unlock()
		return
	default:
	}
	close(p.done)
	p.mu.Unlock()

	if err := p.src.Close(); err != nil {
		p.log.Warn().Err(err).Msg("pipeline: source close")
	}

	p.wg.Wait()

	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			p.log.Warn().Err(err).Msg("pipeline: sink close")
		}
	}

	p.log.Info().Msg("pipeline: stopped")
}

// Snapshot returns the latest published wheel frame. Observers (the API
// server, tests, a front-end) read this; they cannot mutate physics
// state through it.
func (p *Pipeline) Snapshot() (sink.Frame, bool) {
	return p.frames.Load()
}

// SetOverride injects a synthetic pen sample that shadows the source
// until cleared. Used for diagnostics and smoke tests.
func (p *Pipeline) SetOverride(s pen.Sample) {
	p.override.Store(s)
}

// ClearOverride removes the injected sample.
func (p *Pipeline) ClearOverride() {
	p.override.Clear()
}

// Reconfigure swaps the physics and mapper parameters atomically at the
// next tick. Invalid params are rejected whole; the running set is
// never partially updated.
func (p *Pipeline) Reconfigure(wp wheel.Params, sp steering.Params) error {
	if err := wp.Validate(); err != nil {
		return fmt.Errorf("pipeline: reconfigure rejected: %w", err)
	}
	p.pendingWheel.Store(wp)
	p.pendingMapper.Store(sp)
	return nil
}

// sourceLoop runs the blocking sample reads. A disconnected source ends
// the loop; the tick loop keeps holding the last known target.
func (p *Pipeline) sourceLoop() {
	defer p.wg.Done()

	for {
		sample, err := p.src.Next()
		if err != nil {
			if errors.Is(err, source.ErrDisconnected) {
				p.log.Info().Msg("pipeline: source disconnected")
			} else {
				p.log.Error().Err(err).Msg("pipeline: source failed")
			}
			return
		}
		p.samples.Store(sample)
	}
}

// tickLoop advances the physics at a fixed rate. It never blocks on
// I/O and never fails; errors elsewhere in the pipeline cannot corrupt
// the wheel state.
func (p *Pipeline) tickLoop() {
	defer p.wg.Done()

	interval := time.Second / time.Duration(p.freq)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-p.done:
			return

		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now

			if wp, ok := p.pendingWheel.Take(); ok {
				p.model.SetParams(wp)
			}
			if sp, ok := p.pendingMapper.Take(); ok {
				p.mapper.SetParams(sp)
			}

			// A new sample advances the mapper; otherwise the last
			// target is held and the model runs free on it.
			if s, ok := p.override.Load(); ok {
				// Keep draining the cell so clearing the override never
				// replays a sample that went stale behind it.
				p.samples.Take()
				p.target = p.mapper.Map(s)
			} else if s, ok := p.samples.Take(); ok {
				p.target = p.mapper.Map(s)
			}

			// A missed feedback value means the previous torque simply
			// persists one more tick.
			if torque, ok := p.feedback.Take(); ok {
				p.model.SetFeedback(torque)
			}

			p.model.Step(p.target, dt)

			state := p.model.State()
			p.frames.Store(sink.Frame{
				Angle:    state.Angle,
				Velocity: state.Velocity,
				Torque:   state.Torque,
				Range:    p.model.Params().RangeDegrees,
				Horn:     p.target.Horn,
				Buttons:  p.target.Buttons,
			})
		}
	}
}

// sinkLoop drives one sink at its own cadence, which the device may
// need slower than the physics tick. It always reads the newest frame,
// skipping any it was too slow for. A send failure is terminal for
// this sink only.
func (p *Pipeline) sinkLoop(idx int, s sink.Sink) {
	defer p.wg.Done()

	interval := time.Second / time.Duration(p.sinkFreq)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return

		case <-ticker.C:
			frame, ok := p.frames.Load()
			if !ok {
				continue
			}
			if err := s.Send(frame); err != nil {
				p.log.Error().Err(err).Int("sink", idx).
					Msg("pipeline: sink failed, stopping it")
				return
			}
			if torque, ok := s.PollFeedback(); ok {
				p.feedback.Store(torque)
			}
		}
	}
}
