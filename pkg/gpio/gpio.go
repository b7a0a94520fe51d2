// Package gpio drives a single GPIO output line through the Linux GPIO
// character device.
package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// Line represents an output line such as the enable input of a strip power
// relay
type Line interface {
	SetValue(value int) error
	Close() error
}

// Pin represents a requested output line
type Pin struct {
	chip      string
	offset    int
	activeLow bool
	line      Line
	mu        sync.Mutex
}

// Config holds the line location
type Config struct {
	Chip      string
	Line      int
	ActiveLow bool
}

// NewPin requests the line as an output, initially on
func NewPin(cfg Config) (*Pin, error) {
	if cfg.Chip == "" {
		cfg.Chip = "gpiochip0"
	}
	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(1), gpiocdev.WithConsumer("status-led")}
	if cfg.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	line, err := gpiocdev.RequestLine(cfg.Chip, cfg.Line, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to request line %s:%d: %w", cfg.Chip, cfg.Line, err)
	}
	return newPin(cfg, line), nil
}

func newPin(cfg Config, line Line) *Pin {
	return &Pin{
		chip:      cfg.Chip,
		offset:    cfg.Line,
		activeLow: cfg.ActiveLow,
		line:      line,
	}
}

// Set drives the line to its active (on) or inactive level
func (p *Pin) Set(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := 0
	if on {
		v = 1
	}
	if err := p.line.SetValue(v); err != nil {
		return fmt.Errorf("failed to set line %s:%d: %w", p.chip, p.offset, err)
	}
	return nil
}

// Close releases the line
func (p *Pin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line.Close()
}

// String returns "chip:line"
func (p *Pin) String() string {
	return fmt.Sprintf("%s:%d", p.chip, p.offset)
}
