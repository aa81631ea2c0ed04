// Package frames loads the numbered PNG frames produced by the
// extractor and reduces them to 1-bit bitmaps for injection.
package frames

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nfnt/resize"

	_ "image/jpeg"
	_ "image/png"
)

// DefaultCutoff is the 1-bit luma threshold: anything brighter than
// mid-grey lights the pixel.
const DefaultCutoff = 127

// Options controls decoding.
type Options struct {
	// Cutoff is the luma threshold (0-255). Ignored when Adaptive is set.
	Cutoff uint8

	// Adaptive derives the cutoff from the first frame's luma histogram
	// using Otsu's method instead of using the fixed cutoff.
	Adaptive bool

	// ScaleWidth/ScaleHeight downscale every frame in-process before
	// thresholding. Zero means keep the extracted resolution.
	ScaleWidth  int
	ScaleHeight int
}

// Source is an ordered set of decoded frames, all guaranteed to share
// the first frame's dimensions.
type Source struct {
	paths  []string
	width  int
	height int
	opts   Options
	cutoff uint8
}

// Open enumerates the frame files in dir (sorted by name, which matches
// the extractor's zero-padded numbering) and decodes the first frame to
// fix the dimensions and, when requested, the adaptive cutoff.
func Open(dir string, opts Options) (*Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frames directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no frames found in %s", dir)
	}

	s := &Source{paths: paths, opts: opts, cutoff: opts.Cutoff}

	first, err := s.decode(0)
	if err != nil {
		return nil, err
	}
	bounds := first.Bounds()
	s.width = bounds.Dx()
	s.height = bounds.Dy()

	if opts.Adaptive {
		s.cutoff = OtsuCutoff(first)
	}

	return s, nil
}

// Count returns the number of frames.
func (s *Source) Count() int { return len(s.paths) }

// Size returns the frame dimensions after any downscaling.
func (s *Source) Size() (w, h int) { return s.width, s.height }

// Cutoff returns the luma threshold in effect (fixed or adaptive).
func (s *Source) Cutoff() uint8 { return s.cutoff }

// Path returns the file backing frame i, for error messages.
func (s *Source) Path(i int) string { return s.paths[i] }

// Bitmap decodes frame i and thresholds it. Frames whose dimensions do
// not match the first frame are rejected.
func (s *Source) Bitmap(i int) (*Bitmap, error) {
	img, err := s.decode(i)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	if bounds.Dx() != s.width || bounds.Dy() != s.height {
		return nil, fmt.Errorf("%s: frame is %dx%d, expected %dx%d to match first frame",
			s.paths[i], bounds.Dx(), bounds.Dy(), s.width, s.height)
	}
	return Threshold(img, s.cutoff), nil
}

func (s *Source) decode(i int) (image.Image, error) {
	rc, err := os.Open(s.paths[i])
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer rc.Close()

	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.paths[i], err)
	}

	if s.opts.ScaleWidth > 0 && s.opts.ScaleHeight > 0 {
		img = resize.Resize(uint(s.opts.ScaleWidth), uint(s.opts.ScaleHeight), img, resize.NearestNeighbor)
	}
	return img, nil
}

// OtsuCutoff picks the luma threshold that maximises the between-class
// variance of the image's 256-bin luma histogram.
func OtsuCutoff(img image.Image) uint8 {
	var hist [256]float64
	bounds := img.Bounds()
	total := float64(bounds.Dx() * bounds.Dy())
	if total == 0 {
		return DefaultCutoff
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[Luma(img, x, y)]++
		}
	}

	var sum float64
	for v, n := range hist {
		sum += float64(v) * n
	}

	var best uint8 = DefaultCutoff
	var bestVariance, wBack, sumBack float64
	for t := 0; t < 256; t++ {
		wBack += hist[t]
		if wBack == 0 {
			continue
		}
		wFore := total - wBack
		if wFore == 0 {
			break
		}
		sumBack += float64(t) * hist[t]
		meanBack := sumBack / wBack
		meanFore := (sum - sumBack) / wFore
		variance := wBack * wFore * (meanBack - meanFore) * (meanBack - meanFore)
		if variance > bestVariance {
			bestVariance = variance
			best = uint8(t)
		}
	}
	return best
}
