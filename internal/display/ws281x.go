//go:build ws281x

package display

import (
	"fmt"
	"sync"

	ws2811 "github.com/rpi-ws281x/rpi-ws281x-go"

	"github.com/fkcurrie/klipper-status-led/internal/types"
)

// WS281xConfig represents the configuration of a WS281x strip
type WS281xConfig struct {
	GPIOPin    int
	LedCount   int
	Brightness int
}

// WS281xStrip drives a WS2811/WS2812 strip through the rpi_ws281x library
type WS281xStrip struct {
	mu  sync.Mutex
	dev *ws2811.WS2811
	n   int
}

// NewWS281xStrip initializes the strip and blanks it
func NewWS281xStrip(cfg WS281xConfig) (types.Strip, error) {
	if cfg.LedCount <= 0 {
		return nil, fmt.Errorf("invalid led count: %d", cfg.LedCount)
	}
	if cfg.Brightness < 0 || cfg.Brightness > 255 {
		return nil, fmt.Errorf("brightness must be between 0 and 255")
	}

	opt := ws2811.DefaultOptions
	opt.Channels = append([]ws2811.ChannelOption(nil), ws2811.DefaultOptions.Channels...)
	opt.Channels[0].GpioPin = cfg.GPIOPin
	opt.Channels[0].LedCount = cfg.LedCount
	opt.Channels[0].Brightness = cfg.Brightness
	opt.Channels[0].StripeType = ws2811.WS2811StripGRB

	dev, err := ws2811.MakeWS2811(&opt)
	if err != nil {
		return nil, fmt.Errorf("failed to create WS2811: %w", err)
	}
	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize WS2811: %w", err)
	}

	s := &WS281xStrip{dev: dev, n: cfg.LedCount}
	if err := s.Show(make([]types.Color, cfg.LedCount)); err != nil {
		dev.Fini()
		return nil, err
	}
	return s, nil
}

// Len returns the number of LEDs
func (s *WS281xStrip) Len() int {
	return s.n
}

// Show writes pixels into the channel buffer and renders it
func (s *WS281xStrip) Show(pixels []types.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	leds := s.dev.Leds(0)
	for i := 0; i < len(leds) && i < len(pixels); i++ {
		c := pixels[i]
		leds[i] = uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
	}
	if err := s.dev.Render(); err != nil {
		return fmt.Errorf("failed to render WS2811: %w", err)
	}
	return s.dev.Wait()
}

// Close blanks the strip and releases the device
func (s *WS281xStrip) Close() error {
	err := s.Show(make([]types.Color, s.n))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dev.Fini()
	return err
}
