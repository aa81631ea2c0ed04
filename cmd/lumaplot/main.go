// Command lumaplot renders threshold diagnostics for an extracted frame
// set: the first frame's luma histogram with the cutoff marked, and the
// per-frame changed-pixel rate at that cutoff. Both go to PNG files next
// to each other, handy for picking a cutoff before a long encode.
//
// Usage: lumaplot [flags] <frames dir>
package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/circuitreel/circuitreel/internal/frames"
)

var (
	cutoff   = flag.Int("cutoff", frames.DefaultCutoff, "Luma cutoff 0-255")
	adaptive = flag.Bool("adaptive", false, "Derive the cutoff from the first frame (Otsu)")
	outDir   = flag.String("out", ".", "Directory for the output PNGs")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <frames dir>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if *cutoff < 0 || *cutoff > 255 {
		log.Fatalf("-cutoff %d out of range 0-255", *cutoff)
	}

	src, err := frames.Open(flag.Arg(0), frames.Options{
		Cutoff:   uint8(*cutoff),
		Adaptive: *adaptive,
	})
	if err != nil {
		log.Fatalf("open frames: %v", err)
	}
	w, h := src.Size()
	log.Printf("loaded %d frames at %dx%d, luma cutoff %d", src.Count(), w, h, src.Cutoff())

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("create output directory: %v", err)
	}

	histPath := filepath.Join(*outDir, "luma_histogram.png")
	if err := plotHistogram(src, histPath); err != nil {
		log.Fatalf("luma histogram: %v", err)
	}
	log.Printf("wrote %s", histPath)

	ratePath := filepath.Join(*outDir, "change_rate.png")
	if err := plotChangeRate(src, ratePath); err != nil {
		log.Fatalf("change rate: %v", err)
	}
	log.Printf("wrote %s", ratePath)
}

// plotHistogram draws the first frame's 256-bin luma histogram with a
// vertical line at the effective cutoff.
func plotHistogram(src *frames.Source, path string) error {
	img, err := decodeFirst(src)
	if err != nil {
		return err
	}

	var hist [256]float64
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[frames.Luma(img, x, y)]++
		}
	}
	var peak float64
	pts := make(plotter.XYs, 256)
	for v, n := range hist {
		pts[v] = plotter.XY{X: float64(v), Y: n}
		if n > peak {
			peak = n
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("First frame luma histogram (cutoff %d)", src.Cutoff())
	p.X.Label.Text = "Luma"
	p.Y.Label.Text = "Pixels"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line)

	marker, err := plotter.NewLine(plotter.XYs{
		{X: float64(src.Cutoff()), Y: 0},
		{X: float64(src.Cutoff()), Y: peak},
	})
	if err != nil {
		return err
	}
	marker.Width = vg.Points(1)
	marker.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(marker)

	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}

// plotChangeRate draws the fraction of pixels whose 1-bit value changes
// at each frame, which is exactly what the injector pays components for.
func plotChangeRate(src *frames.Source, path string) error {
	w, h := src.Size()
	total := float64(w * h)

	pts := make(plotter.XYs, 0, src.Count())
	prev := frames.NewBitmap(w, h)
	for i := 0; i < src.Count(); i++ {
		cur, err := src.Bitmap(i)
		if err != nil {
			return err
		}
		pts = append(pts, plotter.XY{X: float64(i), Y: float64(prev.DiffCount(cur)) / total})
		prev = cur
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Changed pixel fraction per frame (cutoff %d)", src.Cutoff())
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Changed fraction"
	p.Y.Min = 0

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line)

	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}

func decodeFirst(src *frames.Source) (image.Image, error) {
	fh, err := os.Open(src.Path(0))
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	img, _, err := image.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", src.Path(0), err)
	}
	return img, nil
}
