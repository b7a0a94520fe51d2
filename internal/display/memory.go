package display

import (
	"sync"

	"github.com/fkcurrie/klipper-status-led/internal/types"
)

// MemoryStrip is a strip that keeps the last committed frame in memory. It
// backs the "none" driver.
type MemoryStrip struct {
	mu     sync.Mutex
	frame  []types.Color
	shows  int
	closed bool
}

// NewMemoryStrip creates an in-memory strip of n pixels
func NewMemoryStrip(n int) *MemoryStrip {
	return &MemoryStrip{frame: make([]types.Color, n)}
}

// Len returns the number of pixels
func (m *MemoryStrip) Len() int {
	return len(m.frame)
}

// Show stores a copy of pixels
func (m *MemoryStrip) Show(pixels []types.Color) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.frame, pixels)
	m.shows++
	return nil
}

// Close marks the strip closed
func (m *MemoryStrip) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Frame returns a copy of the last committed frame
func (m *MemoryStrip) Frame() []types.Color {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Color, len(m.frame))
	copy(out, m.frame)
	return out
}

// Shows returns the number of commits so far
func (m *MemoryStrip) Shows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shows
}
