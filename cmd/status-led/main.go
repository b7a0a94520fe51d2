package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fkcurrie/klipper-status-led/internal/config"
	"github.com/fkcurrie/klipper-status-led/internal/discovery"
	"github.com/fkcurrie/klipper-status-led/internal/display"
	"github.com/fkcurrie/klipper-status-led/internal/klippy"
	"github.com/fkcurrie/klipper-status-led/internal/metrics"
	"github.com/fkcurrie/klipper-status-led/internal/types"
	"github.com/fkcurrie/klipper-status-led/pkg/gpio"
)

const defaultSocket = "~/printer_data/comms/klippy.sock"

var CLI struct {
	Config      string `short:"c" help:"Configuration file path" default:"~/printer_data/config/status_led.yaml"`
	Socket      string `short:"s" help:"Daemon socket path, used when the config file sets none (default: discovered, then ${default_socket})"`
	Verbose     bool   `short:"v" help:"Enable verbose logging"`
	LogFile     string `help:"Also append log lines to this file"`
	MetricsAddr string `help:"Serve /metrics and /health on this address (empty disables)"`
	Watch       bool   `help:"Reload the configuration when the file changes"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("status-led"),
		kong.Description("Drive an addressable LED strip from the printer daemon status."),
		kong.Vars{"default_socket": defaultSocket},
	)

	logger, closeLog, err := setupLogging(CLI.Verbose, config.ExpandHome(CLI.LogFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	code := run(logger)
	closeLog()
	os.Exit(code)
}

func setupLogging(verbose bool, path string) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stdout
	closer := func() {}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = io.MultiWriter(os.Stdout, f)
		closer = func() { f.Close() }
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closer, nil
}

func run(logger *slog.Logger) int {
	configPath := config.ExpandHome(CLI.Config)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "path", configPath, "error", err)
		return 1
	}
	sl := cfg.StatusLED

	socket := resolveSocket(cfg, logger)
	logger.Info("Starting status LED",
		"config", configPath,
		"socket", socket,
		"driver", sl.Driver,
		"leds", sl.ChainCount,
		"sections", len(cfg.Model().Sections),
		"states", len(cfg.Model().States))

	strip, err := openStrip(sl)
	if err != nil {
		logger.Error("Failed to open LED strip", "driver", sl.Driver, "error", err)
		return 1
	}
	defer strip.Close()

	var power display.PowerSwitch
	if sl.Power != nil {
		pin, err := gpio.NewPin(gpio.Config{Chip: sl.Power.Chip, Line: sl.Power.Line, ActiveLow: sl.Power.ActiveLow})
		if err != nil {
			logger.Error("Failed to request power line", "error", err)
			return 1
		}
		defer pin.Close()
		logger.Info("Power line requested", "line", pin.String())
		power = pin
	}

	var rec metrics.Recorder = metrics.NoopRecorder{}
	var reg *prometheus.Registry
	if CLI.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec = metrics.NewPrometheusRecorder(reg)
	}

	mode, err := display.ParseDisableMode(sl.DisableMode)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		return 1
	}
	renderer := display.NewRenderer(strip, display.RendererConfig{
		Interval:    sl.RenderInterval,
		DisableMode: mode,
		Power:       power,
		Logger:      logger,
		Recorder:    rec,
	})

	monitor := klippy.NewMonitor(cfg.Model(), renderer, klippy.MonitorConfig{
		SocketPath:        socket,
		PollInterval:      sl.PollInterval,
		ReconnectInterval: sl.ReconnectInterval,
		ReadTimeout:       sl.ReadTimeout,
		MaxInFlight:       sl.MaxInFlight,
		Logger:            logger,
		Recorder:          rec,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	background := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Component stopped", "component", name, "error", err)
			}
		}()
	}

	background("renderer", renderer.Start)
	if reg != nil {
		background("metrics", func(ctx context.Context) error {
			return metrics.Serve(ctx, CLI.MetricsAddr, reg, logger)
		})
	}
	if CLI.Watch {
		watcher, err := config.NewWatcher(configPath, logger, func(next *config.Config) {
			reload(logger, sl, next, monitor)
		})
		if err != nil {
			logger.Error("Failed to watch configuration", "error", err)
			cancel()
			wg.Wait()
			return 1
		}
		background("watcher", watcher.Run)
	}

	err = monitor.Run(ctx)
	cancel()
	wg.Wait()

	var cerr *klippy.ConnectError
	if errors.As(err, &cerr) {
		logger.Error("Giving up", "error", cerr)
		return cerr.ExitCode()
	}
	logger.Info("Shutting down")
	return 0
}

func resolveSocket(cfg *config.Config, logger *slog.Logger) string {
	if socket := cfg.Socket(config.ExpandHome(CLI.Socket)); socket != "" {
		return socket
	}

	home, err := os.UserHomeDir()
	if err == nil {
		scanner := discovery.NewScanner(home)
		if socket, err := scanner.Find(); err == nil {
			logger.Info("Discovered daemon socket", "path", socket)
			return socket
		}
		for _, r := range scanner.Scan() {
			logger.Debug("Socket candidate rejected", "path", r.Path, "error", r.Error)
		}
	}
	return config.ExpandHome(defaultSocket)
}

func openStrip(sl config.StatusLED) (types.Strip, error) {
	switch sl.Driver {
	case config.DriverWS281x:
		return display.NewWS281xStrip(display.WS281xConfig{
			GPIOPin:    *sl.Pin,
			LedCount:   sl.ChainCount,
			Brightness: sl.Brightness,
		})
	case config.DriverPreview:
		strip, err := display.NewPreviewStrip(display.PreviewConfig{
			Path:     config.ExpandHome(sl.PreviewPath),
			LedCount: sl.ChainCount,
		})
		if err != nil {
			return nil, err
		}
		return strip, nil
	case config.DriverNone:
		return display.NewMemoryStrip(sl.ChainCount), nil
	}
	return nil, fmt.Errorf("unknown driver %q", sl.Driver)
}

// reload hands a changed configuration to the monitor. Only the state model,
// including the fallback color, can change while running.
func reload(logger *slog.Logger, running config.StatusLED, next *config.Config, monitor *klippy.Monitor) {
	if changed := running.RestartChanges(next.StatusLED); len(changed) > 0 {
		logger.Warn("Changed status_led settings need a restart, ignoring them", "settings", changed)
	}
	monitor.SetModel(next.Model())
}
