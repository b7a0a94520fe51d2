package display

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fkcurrie/klipper-status-led/internal/animation"
	"github.com/fkcurrie/klipper-status-led/internal/metrics"
	"github.com/fkcurrie/klipper-status-led/internal/types"
)

var (
	red   = types.Color{R: 255}
	green = types.Color{G: 255}
	blue  = types.Color{B: 255}
)

type fakePower struct {
	calls []bool
}

func (f *fakePower) Set(on bool) error {
	f.calls = append(f.calls, on)
	return nil
}

func solid(c types.Color, b types.Bounds) types.VisualState {
	return types.VisualState{Bounds: b, Primary: c, Animation: animation.Solid, Period: 1}
}

func newTestRenderer(t *testing.T, n int, cfg RendererConfig) (*Renderer, *MemoryStrip, *clockwork.FakeClock) {
	t.Helper()
	strip := NewMemoryStrip(n)
	clock := clockwork.NewFakeClockAt(time.Unix(100, 0))
	cfg.Clock = clock
	return NewRenderer(strip, cfg), strip, clock
}

func TestRendererPaintsSections(t *testing.T) {
	r, strip, _ := newTestRenderer(t, 6, RendererConfig{})

	r.UpdateState([]types.VisualState{
		solid(red, types.WholeStrip),
		solid(green, types.Bounds{Start: 2, End: 4}),
		solid(blue, types.Bounds{Start: 5, End: 50}),
	})
	r.render()

	assert.Equal(t, []types.Color{red, red, green, green, red, blue}, strip.Frame())
	assert.Equal(t, 1, strip.Shows())
}

func TestRendererSuppressesUnchangedFrames(t *testing.T) {
	r, strip, clock := newTestRenderer(t, 3, RendererConfig{})

	states := []types.VisualState{solid(red, types.WholeStrip)}
	r.UpdateState(states)
	r.render()
	require.Equal(t, 1, strip.Shows())

	for i := 0; i < 5; i++ {
		clock.Advance(10 * time.Millisecond)
		r.render()
	}
	assert.Equal(t, 1, strip.Shows(), "solid frames must not be recommitted")

	r.UpdateState(states)
	r.render()
	assert.Equal(t, 2, strip.Shows(), "UpdateState forces a commit")
}

func TestRendererBlink(t *testing.T) {
	r, strip, clock := newTestRenderer(t, 2, RendererConfig{})

	r.UpdateState([]types.VisualState{{
		Bounds:    types.WholeStrip,
		Primary:   red,
		Animation: animation.Blink,
		Period:    1,
	}})

	r.render()
	assert.Equal(t, []types.Color{types.Black, types.Black}, strip.Frame())
	require.Equal(t, 1, strip.Shows())

	clock.Advance(600 * time.Millisecond)
	r.render()
	assert.Equal(t, []types.Color{red, red}, strip.Frame())
	assert.Equal(t, 2, strip.Shows())

	clock.Advance(100 * time.Millisecond)
	r.render()
	assert.Equal(t, 2, strip.Shows())
}

func TestRendererMixesSecondary(t *testing.T) {
	r, strip, clock := newTestRenderer(t, 1, RendererConfig{})

	r.UpdateState([]types.VisualState{{
		Bounds:    types.WholeStrip,
		Primary:   red,
		Secondary: blue,
		Animation: animation.Alternate,
		Period:    2,
	}})

	r.render()
	assert.Equal(t, blue, strip.Frame()[0])

	clock.Advance(1500 * time.Millisecond)
	r.render()
	assert.Equal(t, red, strip.Frame()[0])
}

func TestRendererDisableBlank(t *testing.T) {
	power := &fakePower{}
	r, strip, clock := newTestRenderer(t, 2, RendererConfig{DisableMode: DisableBlank, Power: power})

	r.UpdateState([]types.VisualState{solid(green, types.WholeStrip)})
	r.render()
	require.Equal(t, 1, strip.Shows())

	r.SetEnabled(false)
	r.render()
	assert.Equal(t, []types.Color{types.Black, types.Black}, strip.Frame())
	assert.Equal(t, 2, strip.Shows())

	r.UpdateState([]types.VisualState{solid(red, types.WholeStrip)})
	for i := 0; i < 3; i++ {
		clock.Advance(10 * time.Millisecond)
		r.render()
	}
	assert.Equal(t, 2, strip.Shows(), "no commits while disabled")

	r.SetEnabled(true)
	r.render()
	assert.Equal(t, []types.Color{red, red}, strip.Frame())
	assert.Equal(t, 3, strip.Shows())
	assert.Equal(t, []bool{false, true}, power.calls)
}

func TestRendererDisableFreeze(t *testing.T) {
	r, strip, _ := newTestRenderer(t, 2, RendererConfig{DisableMode: DisableFreeze})

	r.UpdateState([]types.VisualState{solid(green, types.WholeStrip)})
	r.render()

	r.SetEnabled(false)
	r.UpdateState([]types.VisualState{solid(red, types.WholeStrip)})
	r.render()
	r.render()

	assert.Equal(t, []types.Color{green, green}, strip.Frame())
	assert.Equal(t, 1, strip.Shows())
}

func TestRendererNoStateNoCommit(t *testing.T) {
	r, strip, _ := newTestRenderer(t, 2, RendererConfig{})
	r.render()
	assert.Equal(t, 0, strip.Shows())
}

type failingStrip struct {
	*MemoryStrip
}

func (failingStrip) Show([]types.Color) error { return errors.New("bus error") }

func TestRendererSurvivesShowErrors(t *testing.T) {
	r := NewRenderer(failingStrip{NewMemoryStrip(1)}, RendererConfig{Clock: clockwork.NewFakeClock()})
	r.UpdateState([]types.VisualState{solid(red, types.WholeStrip)})
	r.render()
	r.UpdateState([]types.VisualState{solid(red, types.WholeStrip)})
	r.render()
	assert.Equal(t, "bus error", r.lastErr)
}

func TestRendererStartStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	strip := NewMemoryStrip(4)
	r := NewRenderer(strip, RendererConfig{Interval: time.Millisecond})
	r.UpdateState([]types.VisualState{solid(red, types.WholeStrip)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	require.Eventually(t, func() bool { return strip.Shows() > 0 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []types.Color{red, red, red, red}, strip.Frame())
}

func TestMixClamps(t *testing.T) {
	white := types.Color{R: 255, G: 255, B: 255}
	assert.Equal(t, white, mix(white, white, 1, 1))
	assert.Equal(t, types.Color{R: 127}, mix(red, types.Black, 0.5, 0))
}

func TestParseDisableMode(t *testing.T) {
	m, err := ParseDisableMode("freeze")
	require.NoError(t, err)
	assert.Equal(t, DisableFreeze, m)

	_, err = ParseDisableMode("dim")
	assert.Error(t, err)
}

// costlyRecorder counts renders and charges each one cost on the fake clock,
// standing in for the time a frame takes to compute and push.
type costlyRecorder struct {
	metrics.NoopRecorder
	clock   *clockwork.FakeClock
	cost    time.Duration
	renders atomic.Int32
}

func (c *costlyRecorder) tick() {
	c.renders.Add(1)
	c.clock.Advance(c.cost)
}

func (c *costlyRecorder) IncCommit()     { c.tick() }
func (c *costlyRecorder) IncSuppressed() { c.tick() }

func TestRendererTicksDoNotDrift(t *testing.T) {
	defer goleak.VerifyNone(t)

	start := time.Unix(100, 0)
	clock := clockwork.NewFakeClockAt(start)
	interval := 10 * time.Millisecond
	rec := &costlyRecorder{clock: clock, cost: 6 * time.Millisecond}

	r := NewRenderer(NewMemoryStrip(2), RendererConfig{Interval: interval, Clock: clock, Recorder: rec})
	r.UpdateState([]types.VisualState{solid(red, types.WholeStrip)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	for n := 1; n <= 5; n++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		require.EqualValues(t, n, rec.renders.Load())
		// Each render started on its own tick and took cost, so only the
		// remainder of the interval is left to sleep
		assert.Equal(t, start.Add(time.Duration(n-1)*interval+rec.cost), clock.Now())
		clock.Advance(interval - rec.cost)
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
