package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/fkcurrie/klipper-status-led/internal/config"
	"github.com/fkcurrie/klipper-status-led/internal/display"
	"github.com/fkcurrie/klipper-status-led/internal/types"
	"github.com/fkcurrie/klipper-status-led/pkg/gpio"
)

var CLI struct {
	Config  string        `short:"c" help:"Configuration file path" default:"~/printer_data/config/status_led.yaml"`
	Hold    time.Duration `help:"How long each pattern stays on" default:"2s"`
	Preview string        `help:"Render into this PNG instead of the configured driver"`
	Verbose bool          `short:"v" help:"Enable verbose logging"`
}

type pattern struct {
	name  string
	color func(i int) types.Color
}

var patterns = []pattern{
	{"red", func(int) types.Color { return types.Color{R: 255} }},
	{"green", func(int) types.Color { return types.Color{G: 255} }},
	{"blue", func(int) types.Color { return types.Color{B: 255} }},
	{"alternating", func(i int) types.Color {
		if i%2 == 0 {
			return types.Color{R: 255}
		}
		return types.Color{B: 255}
	}},
}

func main() {
	kong.Parse(&CLI,
		kong.Name("strip-test"),
		kong.Description("Cycle test patterns over the configured LED strip."),
	)

	level := slog.LevelInfo
	if CLI.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Strip test failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	path := config.ExpandHome(CLI.Config)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Warn("Failed to load configuration, using defaults", "path", path, "error", err)
		cfg = config.DefaultConfig()
	}
	sl := cfg.StatusLED

	strip, err := open(sl)
	if err != nil {
		return fmt.Errorf("failed to open strip: %w", err)
	}
	defer strip.Close()

	var pin *gpio.Pin
	if sl.Power != nil {
		pin, err = gpio.NewPin(gpio.Config{Chip: sl.Power.Chip, Line: sl.Power.Line, ActiveLow: sl.Power.ActiveLow})
		if err != nil {
			return fmt.Errorf("failed to request power line: %w", err)
		}
		defer pin.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pixels := make([]types.Color, strip.Len())
	defer func() {
		clear(pixels)
		if err := strip.Show(pixels); err != nil {
			logger.Error("Failed to clear strip", "error", err)
		}
		logger.Info("Strip cleared")
	}()

	for _, p := range patterns {
		for i := range pixels {
			pixels[i] = p.color(i)
		}
		logger.Info("Showing pattern", "pattern", p.name, "leds", len(pixels))
		if err := strip.Show(pixels); err != nil {
			return fmt.Errorf("failed to show %s: %w", p.name, err)
		}
		if err := hold(ctx); err != nil {
			return nil
		}
	}

	if pin == nil {
		return nil
	}
	for _, on := range []bool{false, true} {
		logger.Info("Toggling power", "line", pin.String(), "on", on)
		if err := pin.Set(on); err != nil {
			return fmt.Errorf("failed to set power line: %w", err)
		}
		if err := hold(ctx); err != nil {
			return nil
		}
	}
	return nil
}

func hold(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(CLI.Hold):
		return nil
	}
}

func open(sl config.StatusLED) (types.Strip, error) {
	if CLI.Preview != "" {
		return openPreview(CLI.Preview, sl.ChainCount)
	}
	switch sl.Driver {
	case config.DriverWS281x:
		if sl.Pin == nil {
			return nil, fmt.Errorf("status_led.pin is required for the %s driver", sl.Driver)
		}
		return display.NewWS281xStrip(display.WS281xConfig{GPIOPin: *sl.Pin, LedCount: sl.ChainCount, Brightness: sl.Brightness})
	case config.DriverPreview:
		return openPreview(config.ExpandHome(sl.PreviewPath), sl.ChainCount)
	}
	return display.NewMemoryStrip(sl.ChainCount), nil
}

func openPreview(path string, leds int) (types.Strip, error) {
	strip, err := display.NewPreviewStrip(display.PreviewConfig{Path: path, LedCount: leds})
	if err != nil {
		return nil, err
	}
	return strip, nil
}
