package types

import "fmt"

// Color represents an RGB triple, each channel 0-255
type Color struct {
	R uint8
	G uint8
	B uint8
}

// Black is the all-off color
var Black = Color{}

// String formats the color as "(r, g, b)"
func (c Color) String() string {
	return fmt.Sprintf("(%d, %d, %d)", c.R, c.G, c.B)
}

// Strip represents an addressable LED strip. It is the only hardware boundary
// the renderer talks to.
type Strip interface {
	// Len returns the number of pixels on the strip
	Len() int
	// Show commits the given pixels to the strip. len(pixels) == Len().
	Show(pixels []Color) error
	// Close releases the strip
	Close() error
}
