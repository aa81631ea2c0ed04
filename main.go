// Command circuitreel converts a video into a playable screen inside a
// Logic World save: it stages an output save from a template, extracts
// frames with ffmpeg, injects the frame circuit into the save file, and
// records the run in a local catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/circuitreel/circuitreel/internal/blotter"
	"github.com/circuitreel/circuitreel/internal/catalog"
	"github.com/circuitreel/circuitreel/internal/circuit"
	"github.com/circuitreel/circuitreel/internal/config"
	"github.com/circuitreel/circuitreel/internal/ffmpeg"
	"github.com/circuitreel/circuitreel/internal/frames"
	"github.com/circuitreel/circuitreel/internal/report"
	"github.com/circuitreel/circuitreel/internal/savedir"
	"github.com/circuitreel/circuitreel/internal/version"
)

var (
	videoPath = flag.String("video", "", "Video file to convert (required)")
	savesDir  = flag.String("saves-dir", "", "Game saves root (default: $"+savedir.SavesDirEnv+" or the game's data directory)")
	template  = flag.String("template", "template", "Template save name under the saves root")
	outSave   = flag.String("out", "circuitreel", "Output save name under the saves root")
	title     = flag.String("title", "circuitreel video screen", "World title written to the save metadata")
	gameVer   = flag.String("game-version", "", "Game version recorded in the save metadata")

	width  = flag.Int("width", 64, "Screen width in pixels")
	height = flag.Int("height", 48, "Screen height in pixels")
	fps    = flag.Float64("fps", 5, "Frames per second to extract")

	framesDir   = flag.String("frames-dir", "frames", "Directory for extracted frames")
	skipExtract = flag.Bool("skip-extract", false, "Reuse existing frames instead of running ffmpeg")
	scaleWidth  = flag.Int("scale-width", 0, "Downscale frames in-process to this width (0 keeps the frame size)")
	scaleHeight = flag.Int("scale-height", 0, "Downscale frames in-process to this height (0 keeps the frame size)")

	tuningPath = flag.String("config", "", "Optional tuning JSON file")
	cutoff     = flag.Int("cutoff", -1, "Luma cutoff 0-255, overrides the tuning file")
	adaptive   = flag.Bool("adaptive", false, "Derive the cutoff from the first frame (Otsu)")

	catalogPath = flag.String("catalog", "circuitreel.db", "Run catalog database")
	noCatalog   = flag.Bool("no-catalog", false, "Skip recording the run in the catalog")
	reportPath  = flag.String("report", "", "Write an HTML encode report to this path")

	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("circuitreel", version.String())
		return
	}

	if *videoPath == "" {
		log.Fatal("-video is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("conversion failed: %v", err)
	}
}

func run(ctx context.Context) error {
	tuning, err := config.Load(*tuningPath)
	if err != nil {
		return err
	}
	if *cutoff >= 0 {
		if *cutoff > 255 {
			return fmt.Errorf("-cutoff %d out of range 0-255", *cutoff)
		}
		c := *cutoff
		tuning.Merge(&config.Tuning{LumaCutoff: &c})
	}
	if *adaptive {
		a := true
		tuning.Merge(&config.Tuning{AdaptiveThreshold: &a})
	}
	if (*scaleWidth > 0) != (*scaleHeight > 0) {
		return fmt.Errorf("-scale-width and -scale-height must be set together")
	}

	root := *savesDir
	if root == "" {
		root, err = savedir.DefaultRoot()
		if err != nil {
			return err
		}
	}
	templateDir := filepath.Join(root, *template)
	outputDir := filepath.Join(root, *outSave)

	// Probe is advisory: it feeds the log and the catalog, the pipeline
	// works without it.
	if probe, err := ffmpeg.Probe(ctx, *videoPath); err == nil {
		log.Printf("source video: %dx%d @ %.3f fps, %.1fs", probe.Width, probe.Height, probe.FPS, probe.Duration)
	} else {
		log.Printf("ffprobe unavailable, continuing: %v", err)
	}

	stager := savedir.NewStager()
	if err := stager.Stage(templateDir, outputDir, savedir.WorldInfo{
		Title:       *title,
		GameVersion: *gameVer,
		CreatedAt:   time.Now(),
	}); err != nil {
		return err
	}
	log.Printf("staged save %s from template %s", outputDir, templateDir)

	if *skipExtract {
		log.Printf("skipping extraction, using frames in %s", *framesDir)
	} else {
		if err := ffmpeg.ExtractFrames(ctx, ffmpeg.ExtractOptions{
			VideoPath: *videoPath,
			FramesDir: *framesDir,
			Width:     *width,
			Height:    *height,
			FPS:       *fps,
		}); err != nil {
			return err
		}
	}

	src, err := frames.Open(*framesDir, tuning.FrameOptions(*scaleWidth, *scaleHeight))
	if err != nil {
		return err
	}
	w, h := src.Size()
	log.Printf("loaded %d frames at %dx%d, luma cutoff %d", src.Count(), w, h, src.Cutoff())

	var db *catalog.DB
	var runID string
	if !*noCatalog && *catalogPath != "" {
		// The catalog is bookkeeping; its failures must not abort an
		// encode that is otherwise fine.
		db, err = catalog.Open(*catalogPath)
		if err != nil {
			log.Printf("catalog unavailable, continuing: %v", err)
			db = nil
		} else {
			defer db.Close()
			runID, err = db.RecordStart(catalog.Run{
				VideoPath:  *videoPath,
				SaveName:   *outSave,
				Width:      w,
				Height:     h,
				FPS:        *fps,
				FrameCount: src.Count(),
				LumaCutoff: int(src.Cutoff()),
			})
			if err != nil {
				log.Printf("catalog record failed, continuing: %v", err)
			}
		}
	}

	stats, err := injectIntoSave(savedir.SaveFilePath(outputDir), src, tuning.CircuitParams())
	if db != nil && runID != "" {
		status := catalog.StatusOK
		if err != nil {
			status = catalog.StatusFailed
		}
		var comps, wires, edges, frameCount int
		if stats != nil {
			comps, wires, edges, frameCount = stats.Components, stats.Wires, stats.Edges, stats.FrameCount
		}
		if cerr := db.RecordFinish(runID, status, comps, wires, edges, frameCount); cerr != nil {
			log.Printf("catalog finish failed: %v", cerr)
		}
	}
	if err != nil {
		return err
	}

	log.Printf("injected %d frames: %d components, %d wires, %d pixel edges",
		stats.FrameCount, stats.Components, stats.Wires, stats.Edges)

	if *reportPath != "" {
		if err := writeReport(*reportPath, stats, src.Cutoff()); err != nil {
			return err
		}
		log.Printf("wrote encode report to %s", *reportPath)
	}

	return nil
}

// injectIntoSave reads the staged save, appends the frame circuit and
// writes the save back atomically.
func injectIntoSave(savePath string, src *frames.Source, params circuit.Params) (*circuit.Stats, error) {
	file, err := blotter.ReadFile(savePath)
	if err != nil {
		return nil, err
	}
	stats, err := circuit.Inject(file, src, params)
	if err != nil {
		return nil, err
	}
	if err := file.WriteFile(savePath); err != nil {
		return stats, err
	}
	return stats, nil
}

func writeReport(path string, stats *circuit.Stats, cutoff uint8) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer fh.Close()
	return report.Write(fh, report.Meta{
		VideoPath: *videoPath,
		SaveName:  *outSave,
		FPS:       *fps,
		Cutoff:    cutoff,
	}, stats)
}
