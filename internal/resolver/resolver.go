// Package resolver maps a composite status label to the visual state of every
// strip section.
package resolver

import (
	"github.com/fkcurrie/klipper-status-led/internal/animation"
	"github.com/fkcurrie/klipper-status-led/internal/types"
)

// Resolve returns one visual state per section: the implicit whole-strip
// section first, then every named section in declared order. It does not
// modify m.
//
// For each section the states are scanned in declared order. The first
// matching scoped state that lists the section wins outright. Otherwise the
// last matching global state wins. Scoped states never apply to the unnamed
// section.
func Resolve(m *types.Model, label string) []types.VisualState {
	out := make([]types.VisualState, 0, len(m.Sections)+1)
	out = append(out, resolveSection(m, types.Section{Bounds: types.WholeStrip}, label))
	for _, s := range m.Sections {
		out = append(out, resolveSection(m, s, label))
	}
	return out
}

func resolveSection(m *types.Model, s types.Section, label string) types.VisualState {
	named := s.Name != ""

	var winner *types.StateDefinition
	for i := range m.States {
		d := &m.States[i]
		if !d.Matches(label) || (d.Scoped() && !named) {
			continue
		}
		if d.Scoped() {
			if !d.InScope(s.Name) {
				continue
			}
			winner = d
			break
		}
		winner = d
	}

	if winner != nil {
		return types.VisualState{
			Section:   s.Name,
			Bounds:    s.Bounds,
			Primary:   winner.Primary,
			Secondary: winner.Secondary,
			Animation: winner.Animation,
			Period:    winner.Period,
		}
	}

	fb := types.VisualState{
		Section:   s.Name,
		Bounds:    types.WholeStrip,
		Primary:   m.Fallback,
		Animation: animation.Solid,
		Period:    1,
	}
	if named && s.Fallback != nil {
		fb.Bounds = s.Bounds
		fb.Primary = *s.Fallback
	}
	return fb
}
