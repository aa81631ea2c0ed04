// Package config loads the optional tuning file that adjusts
// thresholding and circuit layout without rebuilding.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/circuitreel/circuitreel/internal/circuit"
	"github.com/circuitreel/circuitreel/internal/frames"
)

// Tuning holds the adjustable encode parameters. All fields are
// pointers so a partial JSON file only overrides what it mentions; the
// rest keeps the defaults.
type Tuning struct {
	// Thresholding
	LumaCutoff        *int  `json:"luma_cutoff,omitempty"`        // 0-255
	AdaptiveThreshold *bool `json:"adaptive_threshold,omitempty"` // Otsu from first frame

	// Circuit layout
	TimingTicks   *int     `json:"timing_ticks,omitempty"`   // delay per timing delayer
	ChunkInterval *int     `json:"chunk_interval,omitempty"` // frames between net splits, 0 disables
	GridPitch     *float64 `json:"grid_pitch,omitempty"`     // world units per grid cell
	BoardColor    []int    `json:"board_color,omitempty"`    // RGB, three values
}

// Helper functions to create pointers
func ptrInt(v int) *int             { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrFloat64(v float64) *float64 { return &v }

// DefaultTuning returns the reference tuning, matching
// circuit.DefaultParams and the default luma cutoff.
func DefaultTuning() *Tuning {
	p := circuit.DefaultParams()
	return &Tuning{
		LumaCutoff:        ptrInt(frames.DefaultCutoff),
		AdaptiveThreshold: ptrBool(false),
		TimingTicks:       ptrInt(int(p.TimingTicks)),
		ChunkInterval:     ptrInt(p.ChunkInterval),
		GridPitch:         ptrFloat64(float64(p.GridPitch)),
		BoardColor:        []int{int(p.BoardColor[0]), int(p.BoardColor[1]), int(p.BoardColor[2])},
	}
}

// Load reads a tuning file and applies it over the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (*Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tuning file: %w", err)
	}
	var overlay Tuning
	if err := json.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	t.Merge(&overlay)

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return t, nil
}

// Merge overlays the non-nil fields of o onto t.
func (t *Tuning) Merge(o *Tuning) {
	if o.LumaCutoff != nil {
		t.LumaCutoff = o.LumaCutoff
	}
	if o.AdaptiveThreshold != nil {
		t.AdaptiveThreshold = o.AdaptiveThreshold
	}
	if o.TimingTicks != nil {
		t.TimingTicks = o.TimingTicks
	}
	if o.ChunkInterval != nil {
		t.ChunkInterval = o.ChunkInterval
	}
	if o.GridPitch != nil {
		t.GridPitch = o.GridPitch
	}
	if o.BoardColor != nil {
		t.BoardColor = o.BoardColor
	}
}

// Validate checks ranges. Call after Merge; DefaultTuning always
// validates.
func (t *Tuning) Validate() error {
	if t.LumaCutoff != nil && (*t.LumaCutoff < 0 || *t.LumaCutoff > 255) {
		return fmt.Errorf("luma_cutoff %d out of range 0-255", *t.LumaCutoff)
	}
	if t.TimingTicks != nil && *t.TimingTicks < 2 {
		return fmt.Errorf("timing_ticks %d must be at least 2", *t.TimingTicks)
	}
	if t.ChunkInterval != nil && *t.ChunkInterval < 0 {
		return fmt.Errorf("chunk_interval %d must not be negative", *t.ChunkInterval)
	}
	if t.GridPitch != nil && *t.GridPitch <= 0 {
		return fmt.Errorf("grid_pitch %g must be positive", *t.GridPitch)
	}
	if t.BoardColor != nil {
		if len(t.BoardColor) != 3 {
			return fmt.Errorf("board_color needs exactly 3 values, got %d", len(t.BoardColor))
		}
		for _, c := range t.BoardColor {
			if c < 0 || c > 255 {
				return fmt.Errorf("board_color value %d out of range 0-255", c)
			}
		}
	}
	return nil
}

// CircuitParams converts the tuning into injector parameters, falling
// back to defaults for unset fields.
func (t *Tuning) CircuitParams() circuit.Params {
	p := circuit.DefaultParams()
	if t.TimingTicks != nil {
		p.TimingTicks = uint32(*t.TimingTicks)
	}
	if t.ChunkInterval != nil {
		p.ChunkInterval = *t.ChunkInterval
	}
	if t.GridPitch != nil {
		p.GridPitch = float32(*t.GridPitch)
	}
	if len(t.BoardColor) == 3 {
		p.BoardColor = [3]byte{byte(t.BoardColor[0]), byte(t.BoardColor[1]), byte(t.BoardColor[2])}
	}
	return p
}

// FrameOptions converts the tuning into frame decoding options. Scale
// dimensions come from the caller (they are per-run flags, not tuning).
func (t *Tuning) FrameOptions(scaleWidth, scaleHeight int) frames.Options {
	opts := frames.Options{
		Cutoff:      frames.DefaultCutoff,
		ScaleWidth:  scaleWidth,
		ScaleHeight: scaleHeight,
	}
	if t.LumaCutoff != nil {
		opts.Cutoff = uint8(*t.LumaCutoff)
	}
	if t.AdaptiveThreshold != nil {
		opts.Adaptive = *t.AdaptiveThreshold
	}
	return opts
}
