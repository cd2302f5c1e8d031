package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// ReportPlotName is the rendered progress plot within a run directory.
const ReportPlotName = "report.png"

// panelSpec maps one CSV column onto one plot panel.
type panelSpec struct {
	column string
	title  string
}

var panels = []panelSpec{
	{"ac_gain_db", "AC gain (dB) vs iteration"},
	{"tran_gain_db", "Transient gain (dB) vs iteration"},
	{"unity_bandwidth_hz", "Unity bandwidth (Hz) vs iteration"},
	{"score", "Score vs iteration"},
}

// RenderReport regenerates the 2x2 metrics-vs-iteration plot from the run's
// metrics.csv and returns the plot path. With no data it still writes a
// placeholder image so the run layout is always complete.
func RenderReport(runDir string) (string, error) {
	rows := readMetricsCSV(filepath.Join(runDir, MetricsCSVName))
	out := filepath.Join(runDir, ReportPlotName)

	if len(rows) == 0 {
		return out, renderPlaceholder(out)
	}

	grid := make([][]*plot.Plot, 2)
	for r := 0; r < 2; r++ {
		grid[r] = make([]*plot.Plot, 2)
		for c := 0; c < 2; c++ {
			spec := panels[r*2+c]
			p := plot.New()
			p.Title.Text = spec.title
			p.X.Label.Text = "iteration"
			p.Y.Label.Text = spec.column

			var pts plotter.XYs
			for _, rw := range rows {
				if v, ok := rw.values[spec.column]; ok {
					pts = append(pts, plotter.XY{X: float64(rw.iteration), Y: v})
				}
			}
			if len(pts) > 0 {
				line, scatter, err := plotter.NewLinePoints(pts)
				if err != nil {
					return "", fmt.Errorf("failed to build %s panel: %w", spec.column, err)
				}
				p.Add(line, scatter)
			}
			grid[r][c] = p
		}
	}

	img := vgimg.New(10*vg.Inch, 8*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 2, Cols: 2,
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}
	canvases := plot.Align(grid, tiles, dc)
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			grid[r][c].Draw(canvases[r][c])
		}
	}

	return out, writePNG(img, out)
}

// renderPlaceholder writes a single panel noting the absence of data.
func renderPlaceholder(out string) error {
	p := plot.New()
	p.Title.Text = "No metrics available to plot"
	p.X.Label.Text = "iteration"

	img := vgimg.New(6*vg.Inch, 4*vg.Inch)
	dc := draw.New(img)
	p.Draw(dc)
	return writePNG(img, out)
}

func writePNG(img *vgimg.Canvas, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create plot file: %w", err)
	}
	defer func() { _ = f.Close() }()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return fmt.Errorf("failed to encode plot: %w", err)
	}
	return nil
}
