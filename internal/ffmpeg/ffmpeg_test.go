package ffmpeg

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgs(t *testing.T) {
	args := BuildArgs(ExtractOptions{
		VideoPath: "in.mp4",
		FramesDir: "frames",
		Width:     64,
		Height:    48,
		FPS:       5,
	})
	want := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "in.mp4",
		"-vf", "fps=5,scale=64:48",
		"-y", filepath.Join("frames", FramePattern),
	}
	assert.Equal(t, want, args)
}

func TestBuildArgsNoFilters(t *testing.T) {
	args := BuildArgs(ExtractOptions{VideoPath: "in.mp4", FramesDir: "out"})
	joined := strings.Join(args, " ")
	assert.NotContains(t, joined, "-vf", "no filters requested, none should appear")
}

func TestBuildArgsFPSOnly(t *testing.T) {
	args := BuildArgs(ExtractOptions{VideoPath: "in.mp4", FramesDir: "out", FPS: 23.976})
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "fps=23.976")
	assert.NotContains(t, joined, "scale=")
}

func TestExtractFramesMissingBinary(t *testing.T) {
	err := ExtractFrames(context.Background(), ExtractOptions{
		VideoPath:  "in.mp4",
		FramesDir:  t.TempDir(),
		FFmpegPath: "definitely-not-ffmpeg-binary",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg not found")
}

func TestParseRational(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"30/1", 30, false},
		{"30000/1001", 29.97002997002997, false},
		{"25", 25, false},
		{"x/1", 0, true},
		{"30/0", 0, true},
	}
	for _, tt := range tests {
		got, err := parseRational(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}
