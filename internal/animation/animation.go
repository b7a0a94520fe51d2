// Package animation defines the closed set of LED animations. Each kind maps
// a phase (elapsed periods) to a pair of primary/secondary color weights.
package animation

import (
	"fmt"
	"math"
)

// Kind is an animation kind
type Kind uint8

const (
	// Solid holds the primary color
	Solid Kind = iota
	// Blink is off for the first half of each period and on for the second
	Blink
	// Alternate switches between secondary and primary every half period
	Alternate
	// Ease pulses the primary color smoothly
	Ease
	// EaseAlternate crossfades between primary and secondary
	EaseAlternate
)

var names = [...]string{
	Solid:         "solid",
	Blink:         "blink",
	Alternate:     "alternate",
	Ease:          "ease",
	EaseAlternate: "ease-alternate",
}

// Kinds lists every animation kind
func Kinds() []Kind {
	return []Kind{Solid, Blink, Alternate, Ease, EaseAlternate}
}

// Parse returns the kind for its configuration name
func Parse(name string) (Kind, error) {
	for k, n := range names {
		if n == name {
			return Kind(k), nil
		}
	}
	return Solid, fmt.Errorf("unknown animation %q", name)
}

func (k Kind) String() string {
	if int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Weights returns the primary and secondary weights, each in [0, 1], at the
// given phase. phase is wall-clock seconds divided by the animation period.
func (k Kind) Weights(phase float64) (primary, secondary float64) {
	switch k {
	case Blink:
		return square(phase), 0
	case Alternate:
		p := square(phase)
		return p, 1 - p
	case Ease:
		s := math.Sin(frac(phase) * math.Pi)
		return s * s, 0
	case EaseAlternate:
		x := frac(phase) * math.Pi
		s, c := math.Sin(x), math.Cos(x)
		return s * s, c * c
	default:
		return 1, 0
	}
}

// square is 0 for the first half of each unit period and 1 for the second
func square(phase float64) float64 {
	if frac(phase) <= 0.5 {
		return 0
	}
	return 1
}

// frac is the fractional part of a non-negative x
func frac(x float64) float64 {
	return x - math.Floor(x)
}
