package pipeline

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"penwheel/internal/pen"
	"penwheel/internal/sink"
	"penwheel/internal/source"
	"penwheel/internal/steering"
	"penwheel/internal/wheel"
)

const testFreq = 250

func testMapperParams() steering.Params {
	return steering.Params{
		RangeDegrees:      900,
		HornRadius:        0.3,
		PressureThreshold: 1,
		BaseRadius:        0.5,
		Mapping:           steering.DefaultMapping(),
	}
}

func newTestPipeline(t *testing.T, model *wheel.Model, sinks ...sink.Sink) *Pipeline {
	t.Helper()

	if len(sinks) == 0 {
		sinks = []sink.Sink{sink.NewDummy()}
	}

	p := New(source.NewDummy(), sinks, steering.NewMapper(testMapperParams()),
		model, testFreq, 0, zerolog.Nop())
	require.NoError(t, p.Start())
	t.Cleanup(p.Stop)
	return p
}

// feedbackSink reports a constant force-feedback torque.
type feedbackSink struct {
	torque float64
}

func (s *feedbackSink) Send(sink.Frame) error         { return nil }
func (s *feedbackSink) PollFeedback() (float64, bool) { return s.torque, true }
func (s *feedbackSink) Close() error                  { return nil }

// failingSink dies on its first frame.
type failingSink struct {
	sent atomic.Int32
}

func (s *failingSink) Send(sink.Frame) error {
	s.sent.Add(1)
	return errors.New("device removed")
}
func (s *failingSink) PollFeedback() (float64, bool) { return 0, false }
func (s *failingSink) Close() error                  { return nil }

func TestCenteringFromDisplacedStart(t *testing.T) {
	// Pre-displace the wheel before the pipeline takes ownership, then
	// run a dummy source (contact never true) against a dummy sink: the
	// centering spring must bring the wheel back to rest at zero.
	model := wheel.NewModel(wheel.DefaultParams())
	for i := 0; i < 1000; i++ {
		model.Step(steering.Target{Angle: 1.0, Contact: true}, 1.0/testFreq)
	}
	require.Greater(t, model.State().Angle, 0.5)

	out := sink.NewDummy()
	p := newTestPipeline(t, model, out)

	assert.Eventually(t, func() bool {
		f, ok := p.Snapshot()
		return ok && math.Abs(f.Angle) < 0.02 && math.Abs(f.Velocity) < 0.02
	}, 10*time.Second, 20*time.Millisecond, "wheel did not re-center")

	assert.Greater(t, out.Frames(), uint64(0), "sink never received frames")
}

func TestOverrideSteersWheel(t *testing.T) {
	model := wheel.NewModel(wheel.DefaultParams())
	p := newTestPipeline(t, model)

	// Trace a quarter turn with injected samples. The first sample only
	// anchors; the following ones steer.
	for i := 0; i <= 10; i++ {
		angle := float64(i) * (math.Pi / 2 / 10)
		p.SetOverride(pen.Sample{
			X:        float32(math.Cos(angle)),
			Y:        float32(math.Sin(angle)),
			Pressure: 100,
		})
		time.Sleep(30 * time.Millisecond)
	}

	assert.Eventually(t, func() bool {
		f, ok := p.Snapshot()
		return ok && f.Angle > 1.0
	}, 5*time.Second, 20*time.Millisecond, "wheel did not follow the target")

	// Lift: the wheel returns to center.
	p.SetOverride(pen.Sample{X: 1, Y: 0, Pressure: 0})

	assert.Eventually(t, func() bool {
		f, ok := p.Snapshot()
		return ok && math.Abs(f.Angle) < 0.02
	}, 10*time.Second, 20*time.Millisecond, "wheel did not re-center after lift")
}

func TestHornPublishedInFrames(t *testing.T) {
	model := wheel.NewModel(wheel.DefaultParams())
	p := newTestPipeline(t, model)

	p.SetOverride(pen.Sample{X: 0.05, Y: 0.05, Pressure: 100})

	assert.Eventually(t, func() bool {
		f, ok := p.Snapshot()
		return ok && f.Horn
	}, 2*time.Second, 10*time.Millisecond)

	p.ClearOverride()
}

func TestFeedbackReachesModel(t *testing.T) {
	model := wheel.NewModel(wheel.DefaultParams())
	fb := &feedbackSink{torque: 50}
	p := newTestPipeline(t, model, fb)

	// With no contact and no centering displacement, only the external
	// torque can move the wheel.
	assert.Eventually(t, func() bool {
		f, ok := p.Snapshot()
		return ok && f.Angle > 0.01
	}, 5*time.Second, 20*time.Millisecond, "feedback torque never reached the model")
}

func TestSinkFailureDoesNotStopPipeline(t *testing.T) {
	model := wheel.NewModel(wheel.DefaultParams())
	bad := &failingSink{}
	good := sink.NewDummy()
	p := newTestPipeline(t, model, bad, good)

	assert.Eventually(t, func() bool {
		return bad.sent.Load() >= 1 && good.Frames() > 10
	}, 5*time.Second, 20*time.Millisecond)

	// The failed sink stopped receiving; the healthy one keeps going.
	before := good.Frames()
	badBefore := bad.sent.Load()
	time.Sleep(200 * time.Millisecond)
	assert.Greater(t, good.Frames(), before)
	assert.Equal(t, badBefore, bad.sent.Load())

	_, ok := p.Snapshot()
	assert.True(t, ok, "physics stopped publishing after sink failure")
}

func TestReconfigureRejectsInvalidParams(t *testing.T) {
	model := wheel.NewModel(wheel.DefaultParams())
	p := newTestPipeline(t, model)

	bad := wheel.DefaultParams()
	bad.Inertia = 0
	err := p.Reconfigure(bad, testMapperParams())
	assert.ErrorIs(t, err, wheel.ErrInvalidParams)

	good := wheel.DefaultParams()
	good.RangeDegrees = 360
	assert.NoError(t, p.Reconfigure(good, testMapperParams()))

	assert.Eventually(t, func() bool {
		f, ok := p.Snapshot()
		return ok && f.Range == 360
	}, 2*time.Second, 10*time.Millisecond, "new params never applied")
}

func TestStartTwiceFails(t *testing.T) {
	model := wheel.NewModel(wheel.DefaultParams())
	p := newTestPipeline(t, model)
	assert.Error(t, p.Start())
}

func TestStopIsIdempotent(t *testing.T) {
	model := wheel.NewModel(wheel.DefaultParams())
	p := New(source.NewDummy(), []sink.Sink{sink.NewDummy()},
		steering.NewMapper(testMapperParams()), model, testFreq, 0, zerolog.Nop())
	require.NoError(t, p.Start())

	p.Stop()
	p.Stop()
}

func TestSinkRunsAtOwnCadence(t *testing.T) {
	model := wheel.NewModel(wheel.DefaultParams())
	out := sink.NewDummy()
	p := New(source.NewDummy(), []sink.Sink{out},
		steering.NewMapper(testMapperParams()), model, testFreq, 50, zerolog.Nop())
	require.NoError(t, p.Start())
	t.Cleanup(p.Stop)

	start := time.Now()
	time.Sleep(400 * time.Millisecond)
	elapsed := time.Since(start)

	// The sink ticks at its configured 50 Hz, not the 250 Hz physics
	// rate: the frame count is bounded by its own cadence.
	frames := out.Frames()
	assert.Greater(t, frames, uint64(5))
	assert.LessOrEqual(t, frames, uint64(elapsed.Seconds()*50)+2)
}

func TestClearOverrideDropsStaleSamples(t *testing.T) {
	model := wheel.NewModel(wheel.DefaultParams())
	p := newTestPipeline(t, model)

	p.SetOverride(pen.Sample{X: 1, Y: 0, Pressure: 100})
	require.Eventually(t, func() bool {
		_, ok := p.Snapshot()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// A sample arriving while the override is active must not be
	// replayed after the override clears; applying it here would spin
	// the wheel a quarter turn.
	p.samples.Store(pen.Sample{X: 0, Y: 1, Pressure: 100})
	time.Sleep(100 * time.Millisecond)

	p.ClearOverride()
	time.Sleep(300 * time.Millisecond)

	f, ok := p.Snapshot()
	require.True(t, ok)
	assert.InDelta(t, 0, f.Angle, 0.05, "stale sample was replayed after the override cleared")
}
