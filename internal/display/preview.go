package display

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/fkcurrie/klipper-status-led/internal/types"
)

// DefaultCellSize is the edge length in pixels of one LED in the preview
const DefaultCellSize = 16

// PreviewConfig represents the configuration of a preview strip
type PreviewConfig struct {
	Path     string
	LedCount int
	CellSize int
}

// PreviewStrip renders every committed frame as a row of LEDs into a PNG
// file. It stands in for the hardware when developing without a strip.
type PreviewStrip struct {
	mu   sync.Mutex
	cfg  PreviewConfig
	svg  bytes.Buffer
	img  *image.RGBA
	w, h int
}

// NewPreviewStrip creates a preview strip and writes an all-off frame
func NewPreviewStrip(cfg PreviewConfig) (*PreviewStrip, error) {
	if cfg.LedCount <= 0 {
		return nil, fmt.Errorf("invalid led count: %d", cfg.LedCount)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("preview path is required")
	}
	if cfg.CellSize <= 0 {
		cfg.CellSize = DefaultCellSize
	}

	p := &PreviewStrip{
		cfg: cfg,
		w:   cfg.LedCount * cfg.CellSize,
		h:   cfg.CellSize,
	}
	p.img = image.NewRGBA(image.Rect(0, 0, p.w, p.h))
	if err := p.Show(make([]types.Color, cfg.LedCount)); err != nil {
		return nil, err
	}
	return p, nil
}

// Len returns the number of LEDs
func (p *PreviewStrip) Len() int {
	return p.cfg.LedCount
}

// Show rasterizes pixels and replaces the preview file
func (p *PreviewStrip) Show(pixels []types.Color) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.svg.Reset()
	fmt.Fprintf(&p.svg, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		p.w, p.h, p.w, p.h)
	fmt.Fprintf(&p.svg, `<rect x="0" y="0" width="%d" height="%d" fill="#101010"/>`, p.w, p.h)
	cell := float64(p.cfg.CellSize)
	for i, c := range pixels {
		if i >= p.cfg.LedCount {
			break
		}
		fmt.Fprintf(&p.svg, `<circle cx="%g" cy="%g" r="%g" fill="#%02x%02x%02x"/>`,
			cell*float64(i)+cell/2, cell/2, cell*0.4, c.R, c.G, c.B)
	}
	p.svg.WriteString(`</svg>`)

	icon, err := oksvg.ReadIconStream(&p.svg)
	if err != nil {
		return fmt.Errorf("failed to parse preview svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(p.w), float64(p.h))

	for i := range p.img.Pix {
		p.img.Pix[i] = 0
	}
	scanner := rasterx.NewScannerGV(p.w, p.h, p.img, p.img.Bounds())
	icon.Draw(rasterx.NewDasher(p.w, p.h, scanner), 1)

	return p.write()
}

// write encodes the image next to the target and renames it into place
func (p *PreviewStrip) write() error {
	tmp, err := os.CreateTemp(filepath.Dir(p.cfg.Path), ".preview-*.png")
	if err != nil {
		return fmt.Errorf("failed to create preview file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, p.img); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.cfg.Path)
}

// Close is a no-op; the last frame stays on disk
func (p *PreviewStrip) Close() error {
	return nil
}
