package types

import (
	"fmt"

	"github.com/fkcurrie/klipper-status-led/internal/animation"
)

// Bounds represents a pixel range [Start, End). When Open is set the range
// extends to the end of the strip and End is ignored.
type Bounds struct {
	Start int
	End   int
	Open  bool
}

// WholeStrip covers every pixel
var WholeStrip = Bounds{Open: true}

// Clip returns the range limited to a strip of n pixels
func (b Bounds) Clip(n int) (lo, hi int) {
	lo, hi = b.Start, b.End
	if b.Open || hi > n {
		hi = n
	}
	if lo < 0 {
		lo = 0
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

func (b Bounds) String() string {
	if b.Open {
		return fmt.Sprintf("(%d, end)", b.Start)
	}
	return fmt.Sprintf("(%d, %d)", b.Start, b.End)
}

// Section is a named pixel range with its own state resolution
type Section struct {
	Name   string
	Bounds Bounds
	// Fallback is used when no state matches; nil means the global fallback
	Fallback *Color
}

// StateDefinition maps status labels to a color and animation, optionally
// restricted to a set of sections
type StateDefinition struct {
	Labels []string
	// Scope lists the section names this rule applies to. nil means global.
	Scope     []string
	Primary   Color
	Secondary Color
	Animation animation.Kind
	// Period is the animation period in seconds, > 0
	Period float64
}

// Matches reports whether label is one of the definition's labels
func (d *StateDefinition) Matches(label string) bool {
	return contains(d.Labels, label)
}

// Scoped reports whether the definition carries a scope list
func (d *StateDefinition) Scoped() bool {
	return d.Scope != nil
}

// InScope reports whether section is in the scope list
func (d *StateDefinition) InScope(section string) bool {
	return contains(d.Scope, section)
}

// Model is the immutable, validated configuration the resolver works on.
// The default whole-strip section is implicit and not part of Sections.
type Model struct {
	Sections []Section
	States   []StateDefinition
	// Fallback is the global color used when nothing matches
	Fallback Color
}

// VisualState is the resolved color and animation for one pixel range
type VisualState struct {
	Section   string
	Bounds    Bounds
	Primary   Color
	Secondary Color
	Animation animation.Kind
	Period    float64
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
