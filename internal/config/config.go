package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fkcurrie/klipper-status-led/internal/animation"
	"github.com/fkcurrie/klipper-status-led/internal/display"
	"github.com/fkcurrie/klipper-status-led/internal/types"
)

// Drivers
const (
	DriverWS281x  = "ws281x"
	DriverPreview = "preview"
	DriverNone    = "none"
)

// Config represents the application configuration
type Config struct {
	StatusLED StatusLED       `yaml:"status_led"`
	Sections  []SectionConfig `yaml:"sections"`
	States    []StateConfig   `yaml:"states"`

	model *types.Model
}

// StatusLED represents the strip and daemon connection settings
type StatusLED struct {
	Driver            string        `yaml:"driver"`
	Pin               *int          `yaml:"pin"`
	ChainCount        int           `yaml:"chain_count"`
	Brightness        int           `yaml:"brightness"`
	FallbackRGB       *RGB          `yaml:"fallback_rgb"`
	SocketPath        string        `yaml:"socket_path"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	RenderInterval    time.Duration `yaml:"render_interval"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	MaxInFlight       int           `yaml:"max_in_flight"`
	DisableMode       string        `yaml:"disable_mode"`
	PreviewPath       string        `yaml:"preview_path"`
	Power             *PowerConfig  `yaml:"power"`
}

// PowerConfig represents an optional GPIO line that powers the strip
type PowerConfig struct {
	Chip      string `yaml:"chip"`
	Line      int    `yaml:"line"`
	ActiveLow bool   `yaml:"active_low"`
}

// SectionConfig represents a named pixel range
type SectionConfig struct {
	Name        string `yaml:"name"`
	Bounds      []int  `yaml:"bounds"`
	FallbackRGB *RGB   `yaml:"fallback_rgb"`
}

// StateConfig represents a state rule
type StateConfig struct {
	Labels            []string `yaml:"labels"`
	Sections          []string `yaml:"sections"`
	RGB               *RGB     `yaml:"rgb"`
	SecondaryRGB      *RGB     `yaml:"secondary_rgb"`
	Animation         string   `yaml:"animation"`
	AnimationInterval *float64 `yaml:"animation_interval"`
}

// RGB is a color given as three fractions in [0, 1], either as a list or as
// a "r, g, b" string
type RGB [3]float64

// UnmarshalYAML accepts [r, g, b] and "r, g, b"
func (c *RGB) UnmarshalYAML(node *yaml.Node) error {
	var parts []float64
	switch node.Kind {
	case yaml.ScalarNode:
		for _, f := range strings.Split(node.Value, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return fmt.Errorf("line %d: invalid color %q", node.Line, node.Value)
			}
			parts = append(parts, v)
		}
	case yaml.SequenceNode:
		if err := node.Decode(&parts); err != nil {
			return err
		}
	default:
		return fmt.Errorf("line %d: color must be a list or a string", node.Line)
	}
	if len(parts) != 3 {
		return fmt.Errorf("line %d: color needs 3 channels, got %d", node.Line, len(parts))
	}
	copy(c[:], parts)
	return nil
}

// Color scales the fractions to 0-255, truncating
func (c RGB) Color() types.Color {
	ch := func(v float64) uint8 { return uint8(v * 255) }
	return types.Color{R: ch(c[0]), G: ch(c[1]), B: ch(c[2])}
}

func (c RGB) valid() bool {
	for _, v := range c {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}

// ValidationError names the configuration field that is missing or invalid
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// LoadConfig loads and validates the configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML configuration
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		StatusLED: StatusLED{
			Driver:            DriverWS281x,
			ChainCount:        1,
			Brightness:        255,
			PollInterval:      250 * time.Millisecond,
			RenderInterval:    display.DefaultInterval,
			ReconnectInterval: 100 * time.Millisecond,
			ReadTimeout:       time.Second,
			MaxInFlight:       8,
			DisableMode:       string(display.DisableBlank),
		},
	}
}

// Validate checks the configuration and compiles the state model
func (c *Config) Validate() error {
	s := &c.StatusLED
	switch s.Driver {
	case DriverWS281x:
		if s.Pin == nil {
			return invalid("status_led.pin", "missing pin definition")
		}
	case DriverPreview:
		if s.PreviewPath == "" {
			return invalid("status_led.preview_path", "required for the preview driver")
		}
	case DriverNone:
	default:
		return invalid("status_led.driver", "unknown driver %q", s.Driver)
	}
	if s.ChainCount <= 0 {
		return invalid("status_led.chain_count", "must be positive")
	}
	if s.Brightness < 0 || s.Brightness > 255 {
		return invalid("status_led.brightness", "must be between 0 and 255")
	}
	if s.FallbackRGB != nil && !s.FallbackRGB.valid() {
		return invalid("status_led.fallback_rgb", "channels must be between 0 and 1")
	}
	for _, f := range []struct {
		name string
		d    time.Duration
	}{
		{"poll_interval", s.PollInterval},
		{"render_interval", s.RenderInterval},
		{"reconnect_interval", s.ReconnectInterval},
		{"read_timeout", s.ReadTimeout},
	} {
		if f.d <= 0 {
			return invalid("status_led."+f.name, "must be positive")
		}
	}
	if s.MaxInFlight <= 0 {
		return invalid("status_led.max_in_flight", "must be positive")
	}
	if _, err := display.ParseDisableMode(s.DisableMode); err != nil {
		return invalid("status_led.disable_mode", "%v", err)
	}

	model, err := c.compile()
	if err != nil {
		return err
	}
	c.model = model
	return nil
}

func (c *Config) compile() (*types.Model, error) {
	m := &types.Model{}
	if c.StatusLED.FallbackRGB != nil {
		m.Fallback = c.StatusLED.FallbackRGB.Color()
	}

	seen := map[string]bool{}
	for i, sc := range c.Sections {
		field := fmt.Sprintf("sections[%d]", i)
		if sc.Name == "" {
			return nil, invalid(field+".name", "missing section name")
		}
		if seen[sc.Name] {
			return nil, invalid(field+".name", "duplicate section %q", sc.Name)
		}
		seen[sc.Name] = true

		b, err := parseBounds(sc.Bounds)
		if err != nil {
			return nil, invalid(field+".bounds", "%v", err)
		}
		sec := types.Section{Name: sc.Name, Bounds: b}
		if sc.FallbackRGB != nil {
			if !sc.FallbackRGB.valid() {
				return nil, invalid(field+".fallback_rgb", "channels must be between 0 and 1")
			}
			fb := sc.FallbackRGB.Color()
			sec.Fallback = &fb
		}
		m.Sections = append(m.Sections, sec)
	}

	if len(c.States) == 0 {
		return nil, invalid("states", "no states defined")
	}
	for i, st := range c.States {
		field := fmt.Sprintf("states[%d]", i)
		if len(st.Labels) == 0 {
			return nil, invalid(field+".labels", "missing state name")
		}
		if st.Sections != nil && len(st.Sections) == 0 {
			return nil, invalid(field+".sections", "scope list is empty")
		}
		if st.RGB == nil {
			return nil, invalid(field+".rgb", "missing state color")
		}
		if !st.RGB.valid() {
			return nil, invalid(field+".rgb", "channels must be between 0 and 1")
		}

		d := types.StateDefinition{
			Labels:    append([]string(nil), st.Labels...),
			Primary:   st.RGB.Color(),
			Animation: animation.Solid,
			Period:    1,
		}
		if st.Sections != nil {
			d.Scope = append([]string(nil), st.Sections...)
		}
		if st.SecondaryRGB != nil {
			if !st.SecondaryRGB.valid() {
				return nil, invalid(field+".secondary_rgb", "channels must be between 0 and 1")
			}
			d.Secondary = st.SecondaryRGB.Color()
		}
		if st.Animation != "" {
			k, err := animation.Parse(st.Animation)
			if err != nil {
				return nil, invalid(field+".animation", "%v", err)
			}
			d.Animation = k
		}
		if st.AnimationInterval != nil {
			if *st.AnimationInterval <= 0 {
				return nil, invalid(field+".animation_interval", "must be positive")
			}
			d.Period = *st.AnimationInterval
		}
		m.States = append(m.States, d)
	}
	return m, nil
}

func parseBounds(v []int) (types.Bounds, error) {
	switch len(v) {
	case 1:
		if v[0] < 0 {
			return types.Bounds{}, fmt.Errorf("start must not be negative")
		}
		return types.Bounds{Start: v[0], Open: true}, nil
	case 2:
		if v[0] < 0 || v[1] < v[0] {
			return types.Bounds{}, fmt.Errorf("need 0 <= start <= end, got %v", v)
		}
		return types.Bounds{Start: v[0], End: v[1]}, nil
	}
	return types.Bounds{}, fmt.Errorf("need [start] or [start, end]")
}

// RestartChanges lists the status_led settings, by key, that differ in next
// and only take effect after a restart. fallback_rgb is part of the model and
// is not reported.
func (s StatusLED) RestartChanges(next StatusLED) []string {
	var changed []string
	cur, nxt := reflect.ValueOf(s), reflect.ValueOf(next)
	for i := 0; i < cur.NumField(); i++ {
		key, _, _ := strings.Cut(cur.Type().Field(i).Tag.Get("yaml"), ",")
		if key == "fallback_rgb" {
			continue
		}
		if !reflect.DeepEqual(cur.Field(i).Interface(), nxt.Field(i).Interface()) {
			changed = append(changed, key)
		}
	}
	return changed
}

// Model returns the compiled state model. It is only valid after Validate.
func (c *Config) Model() *types.Model {
	return c.model
}

// Socket returns the configured socket path with ~ expanded, or fallback
func (c *Config) Socket(fallback string) string {
	if c.StatusLED.SocketPath == "" {
		return fallback
	}
	return ExpandHome(c.StatusLED.SocketPath)
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
