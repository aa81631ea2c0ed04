// Package report renders an HTML summary of an encode: how much of the
// picture changed per frame and what that cost in components and wires.
package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/circuitreel/circuitreel/internal/circuit"
)

// Meta describes the encode for the report header.
type Meta struct {
	VideoPath string
	SaveName  string
	FPS       float64
	Cutoff    uint8
}

// Summary carries the change-rate statistics shown in the report
// header.
type Summary struct {
	MeanChanged   float64
	StddevChanged float64
	MaxChanged    int
}

// Summarise computes change-rate statistics over the per-frame stats.
func Summarise(frameStats []circuit.FrameStats) Summary {
	changed := make([]float64, len(frameStats))
	var max int
	for i, fs := range frameStats {
		changed[i] = float64(fs.ChangedPixels)
		if fs.ChangedPixels > max {
			max = fs.ChangedPixels
		}
	}
	mean, std := stat.MeanStdDev(changed, nil)
	if len(changed) < 2 {
		std = 0
	}
	return Summary{MeanChanged: mean, StddevChanged: std, MaxChanged: max}
}

// Write renders the report HTML to w.
func Write(w io.Writer, meta Meta, stats *circuit.Stats) error {
	summary := Summarise(stats.Frames)

	xAxis := make([]string, len(stats.Frames))
	changed := make([]opts.LineData, len(stats.Frames))
	comps := make([]opts.BarData, len(stats.Frames))
	for i, fs := range stats.Frames {
		xAxis[i] = fmt.Sprintf("%d", fs.Index)
		changed[i] = opts.LineData{Value: fs.ChangedPixels}
		comps[i] = opts.BarData{Value: fs.Components}
	}

	subtitle := fmt.Sprintf(
		"%s -> %s | %dx%d @ %g fps | %d frames | cutoff %d | %d components, %d wires, %d edges | changed px mean %.1f sd %.1f max %d",
		meta.VideoPath, meta.SaveName,
		stats.Width, stats.Height, meta.FPS,
		stats.FrameCount, meta.Cutoff,
		stats.Components, stats.Wires, stats.Edges,
		summary.MeanChanged, summary.StddevChanged, summary.MaxChanged,
	)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "circuitreel encode report", Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Changed pixels per frame", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "pixels"}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("changed pixels", changed)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Components added per frame"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "components"}),
	)
	bar.SetXAxis(xAxis)
	bar.AddSeries("components", comps)

	page := components.NewPage()
	page.SetPageTitle("circuitreel encode report")
	page.AddCharts(line, bar)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
