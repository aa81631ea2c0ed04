// Package ffmpeg shells out to ffmpeg/ffprobe to decode a video into the
// numbered PNG frames the injector consumes. Video decoding itself stays
// external; this package only owns argument construction and process
// lifecycle.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// FramePattern is the printf-style output name ffmpeg writes and
// frames.Open later globs by extension. Zero padding keeps lexical and
// numeric order identical.
const FramePattern = "frame_%05d.png"

// ExtractOptions configures a frame extraction run.
type ExtractOptions struct {
	VideoPath string
	FramesDir string
	Width     int // output width in pixels
	Height    int // output height in pixels
	FPS       float64

	// FFmpegPath overrides the binary looked up on PATH. Used by tests.
	FFmpegPath string
}

// BuildArgs returns the ffmpeg argv (without the binary name) for the
// given options. Split out so tests can pin the exact command line.
func BuildArgs(opts ExtractOptions) []string {
	var filters []string
	if opts.FPS > 0 {
		filters = append(filters, fmt.Sprintf("fps=%g", opts.FPS))
	}
	if opts.Width > 0 && opts.Height > 0 {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", opts.Width, opts.Height))
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-i", opts.VideoPath}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}
	args = append(args, "-y", filepath.Join(opts.FramesDir, FramePattern))
	return args
}

// ExtractFrames creates the frames directory and runs ffmpeg. The
// context cancels the child process; ffmpeg's stderr is folded into the
// returned error since -loglevel error keeps it short.
func ExtractFrames(ctx context.Context, opts ExtractOptions) error {
	bin := opts.FFmpegPath
	if bin == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}

	if opts.VideoPath == "" {
		return fmt.Errorf("no video path given")
	}
	if _, err := os.Stat(opts.VideoPath); err != nil {
		return fmt.Errorf("video file: %w", err)
	}
	if err := os.MkdirAll(opts.FramesDir, 0755); err != nil {
		return fmt.Errorf("create frames directory: %w", err)
	}

	args := BuildArgs(opts)
	log.Printf("extracting frames: %s %s", path, strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// ProbeResult is the subset of ffprobe output the pipeline needs.
type ProbeResult struct {
	Width    int
	Height   int
	FPS      float64
	Duration float64 // seconds
}

// probeJSON mirrors ffprobe's -print_format json layout.
type probeJSON struct {
	Streams []struct {
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"` // e.g. "30000/1001"
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe asks ffprobe for the first video stream's dimensions, frame rate
// and duration.
func Probe(ctx context.Context, videoPath string) (*ProbeResult, error) {
	path, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate",
		"-show_entries", "format=duration",
		"-print_format", "json",
		videoPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var parsed probeJSON
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(parsed.Streams) == 0 {
		return nil, fmt.Errorf("%s: no video stream found", videoPath)
	}

	result := &ProbeResult{
		Width:  parsed.Streams[0].Width,
		Height: parsed.Streams[0].Height,
	}
	if fps, err := parseRational(parsed.Streams[0].RFrameRate); err == nil {
		result.FPS = fps
	}
	if parsed.Format.Duration != "" {
		if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			result.Duration = d
		}
	}
	return result, nil
}

// parseRational parses ffprobe's "num/den" frame rate notation.
func parseRational(s string) (float64, error) {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return strconv.ParseFloat(s, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rational %q: %w", s, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("invalid rational %q: zero denominator", s)
	}
	return n / d, nil
}
