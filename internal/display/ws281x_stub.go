//go:build !ws281x

package display

import (
	"errors"

	"github.com/fkcurrie/klipper-status-led/internal/types"
)

// WS281xConfig represents the configuration of a WS281x strip
type WS281xConfig struct {
	GPIOPin    int
	LedCount   int
	Brightness int
}

// ErrNoWS281x is returned when the binary was built without the ws281x tag
var ErrNoWS281x = errors.New("built without ws281x support, rebuild with -tags ws281x")

// NewWS281xStrip always fails in builds without the ws281x tag
func NewWS281xStrip(cfg WS281xConfig) (types.Strip, error) {
	return nil, ErrNoWS281x
}
