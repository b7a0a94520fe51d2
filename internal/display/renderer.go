// Package display renders resolved visual states onto an LED strip on a fixed
// clock and provides the strip sinks.
package display

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/fkcurrie/klipper-status-led/internal/metrics"
	"github.com/fkcurrie/klipper-status-led/internal/types"
)

// DefaultInterval is the render tick length
const DefaultInterval = 10 * time.Millisecond

// DisableMode selects what happens to the strip when output is disabled
type DisableMode string

const (
	// DisableBlank commits an all-off frame once, then stops committing
	DisableBlank DisableMode = "blank"
	// DisableFreeze stops committing and leaves the last frame on the strip
	DisableFreeze DisableMode = "freeze"
)

// ParseDisableMode validates a disable mode name
func ParseDisableMode(s string) (DisableMode, error) {
	switch m := DisableMode(s); m {
	case DisableBlank, DisableFreeze:
		return m, nil
	}
	return "", fmt.Errorf("unknown disable mode %q", s)
}

// PowerSwitch drives a line that powers the strip on and off
type PowerSwitch interface {
	Set(on bool) error
}

// RendererConfig holds the optional collaborators of a Renderer
type RendererConfig struct {
	Interval    time.Duration
	DisableMode DisableMode
	Power       PowerSwitch
	Clock       clockwork.Clock
	Logger      *slog.Logger
	Recorder    metrics.Recorder
}

// Renderer continuously renders the latest visual states into a strip.
//
// UpdateState and SetEnabled may be called from any goroutine. Everything
// else is owned by the goroutine running Run.
type Renderer struct {
	strip       types.Strip
	interval    time.Duration
	disableMode DisableMode
	power       PowerSwitch
	clock       clockwork.Clock
	logger      *slog.Logger
	rec         metrics.Recorder

	states  atomic.Pointer[[]types.VisualState]
	force   atomic.Bool
	enabled atomic.Bool

	pixels  []types.Color
	weights [][2]float64
	prev    [][2]float64
	outOn   bool
	lastErr string
}

// NewRenderer creates a renderer for strip. Output starts enabled.
func NewRenderer(strip types.Strip, cfg RendererConfig) *Renderer {
	r := &Renderer{
		strip:       strip,
		interval:    cfg.Interval,
		disableMode: cfg.DisableMode,
		power:       cfg.Power,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		rec:         cfg.Recorder,
		pixels:      make([]types.Color, strip.Len()),
		outOn:       true,
	}
	if r.interval <= 0 {
		r.interval = DefaultInterval
	}
	if r.disableMode == "" {
		r.disableMode = DisableBlank
	}
	if r.clock == nil {
		r.clock = clockwork.NewRealClock()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.rec == nil {
		r.rec = metrics.NoopRecorder{}
	}
	r.enabled.Store(true)
	return r
}

// UpdateState replaces the rendered states. The next tick commits
// unconditionally.
func (r *Renderer) UpdateState(states []types.VisualState) {
	cp := make([]types.VisualState, len(states))
	copy(cp, states)
	r.states.Store(&cp)
	r.force.Store(true)
}

// SetEnabled turns strip output on or off
func (r *Renderer) SetEnabled(on bool) {
	r.enabled.Store(on)
}

// Start runs the render loop until ctx is cancelled. Each tick is scheduled
// relative to the previous target so render time does not accumulate drift.
func (r *Renderer) Start(ctx context.Context) error {
	next := r.clock.Now()
	for {
		r.render()

		next = next.Add(r.interval)
		wait := next.Sub(r.clock.Now())
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.clock.After(wait):
		}
	}
}

// render computes one frame and commits it when something changed
func (r *Renderer) render() {
	force := r.force.Swap(false)

	if on := r.enabled.Load(); on != r.outOn {
		r.outOn = on
		r.setPower(on)
		if !on {
			r.logger.Info("LED output disabled", "mode", string(r.disableMode))
			if r.disableMode == DisableBlank {
				for i := range r.pixels {
					r.pixels[i] = types.Black
				}
				r.show()
			}
			return
		}
		r.logger.Info("LED output enabled")
		force = true
	}

	sp := r.states.Load()
	if sp == nil {
		return
	}
	states := *sp

	now := r.clock.Now()
	seconds := float64(now.UnixNano()) / float64(time.Second)

	r.weights = r.weights[:0]
	for _, vs := range states {
		p, s := vs.Animation.Weights(seconds / vs.Period)
		r.weights = append(r.weights, [2]float64{p, s})

		c := mix(vs.Primary, vs.Secondary, p, s)
		lo, hi := vs.Bounds.Clip(len(r.pixels))
		for i := lo; i < hi; i++ {
			r.pixels[i] = c
		}
	}

	if !r.outOn {
		return
	}
	if !force && sameWeights(r.weights, r.prev) {
		r.rec.IncSuppressed()
		return
	}
	r.prev, r.weights = r.weights, r.prev
	r.show()
}

func (r *Renderer) show() {
	if err := r.strip.Show(r.pixels); err != nil {
		if msg := err.Error(); msg != r.lastErr {
			r.lastErr = msg
			r.logger.Error("Failed to show strip", "error", err)
		}
		return
	}
	r.lastErr = ""
	r.rec.IncCommit()
}

func (r *Renderer) setPower(on bool) {
	if r.power == nil {
		return
	}
	if err := r.power.Set(on); err != nil {
		r.logger.Error("Failed to switch strip power", "on", on, "error", err)
	}
}

// mix blends two colors by weight per channel
func mix(primary, secondary types.Color, wp, ws float64) types.Color {
	ch := func(p, s uint8) uint8 {
		v := float64(p)*wp + float64(s)*ws
		return uint8(math.Max(0, math.Min(255, v)))
	}
	return types.Color{
		R: ch(primary.R, secondary.R),
		G: ch(primary.G, secondary.G),
		B: ch(primary.B, secondary.B),
	}
}

func sameWeights(a, b [][2]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
