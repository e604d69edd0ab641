package infrastructure

import (
	"image/color"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PNGChartWriter renders the local-vs-remote total duration comparison
// as a bar chart.
type PNGChartWriter struct {
	logger *zap.Logger
}

func NewPNGChartWriter(logger *zap.Logger) *PNGChartWriter {
	return &PNGChartWriter{logger: logger}
}

func (w *PNGChartWriter) WriteChart(filename string, localSeconds, remoteSeconds float64) error {
	p := plot.New()
	p.Title.Text = "Performance comparison: parallel local vs. RPC server pool"
	p.Y.Label.Text = "Total execution time (seconds)"

	bars, err := plotter.NewBarChart(plotter.Values{localSeconds, remoteSeconds}, vg.Points(50))
	if err != nil {
		return err
	}
	bars.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	bars.LineStyle.Width = 0

	p.Add(bars)
	p.NominalX("Parallel local", "RPC pool")

	return p.Save(6*vg.Inch, 4*vg.Inch, filename)
}
