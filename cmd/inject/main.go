// Command inject adds a video circuit to an existing save file in place,
// skipping the staging and extraction steps of the full pipeline. Useful
// when the frames are already on disk.
//
// Usage: inject [flags] <save file>
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/circuitreel/circuitreel/internal/blotter"
	"github.com/circuitreel/circuitreel/internal/circuit"
	"github.com/circuitreel/circuitreel/internal/config"
	"github.com/circuitreel/circuitreel/internal/frames"
)

var (
	framesDir  = flag.String("frames", "frames", "Directory with extracted frames")
	tuningPath = flag.String("config", "", "Optional tuning JSON file")
	cutoff     = flag.Int("cutoff", -1, "Luma cutoff 0-255, overrides the tuning file")
	adaptive   = flag.Bool("adaptive", false, "Derive the cutoff from the first frame (Otsu)")
	dryRun     = flag.Bool("dry-run", false, "Report what would be added without writing the save")

	scaleWidth  = flag.Int("scale-width", 0, "Downscale frames in-process to this width (0 keeps the frame size)")
	scaleHeight = flag.Int("scale-height", 0, "Downscale frames in-process to this height (0 keeps the frame size)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <save file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	savePath := flag.Arg(0)

	tuning, err := config.Load(*tuningPath)
	if err != nil {
		log.Fatalf("load tuning: %v", err)
	}
	if *cutoff >= 0 {
		if *cutoff > 255 {
			log.Fatalf("-cutoff %d out of range 0-255", *cutoff)
		}
		c := *cutoff
		tuning.Merge(&config.Tuning{LumaCutoff: &c})
	}
	if *adaptive {
		a := true
		tuning.Merge(&config.Tuning{AdaptiveThreshold: &a})
	}
	if (*scaleWidth > 0) != (*scaleHeight > 0) {
		log.Fatal("-scale-width and -scale-height must be set together")
	}

	src, err := frames.Open(*framesDir, tuning.FrameOptions(*scaleWidth, *scaleHeight))
	if err != nil {
		log.Fatalf("open frames: %v", err)
	}
	w, h := src.Size()
	log.Printf("loaded %d frames at %dx%d, luma cutoff %d", src.Count(), w, h, src.Cutoff())

	file, err := blotter.ReadFile(savePath)
	if err != nil {
		log.Fatalf("read save: %v", err)
	}

	stats, err := circuit.Inject(file, src, tuning.CircuitParams())
	if err != nil {
		log.Fatalf("inject: %v", err)
	}
	log.Printf("injected %d frames: %d components, %d wires, %d pixel edges",
		stats.FrameCount, stats.Components, stats.Wires, stats.Edges)

	if *dryRun {
		log.Printf("dry run, save not written")
		return
	}
	if err := file.WriteFile(savePath); err != nil {
		log.Fatalf("write save: %v", err)
	}
	log.Printf("wrote %s", savePath)
}
