package stats

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotFitness draws mean, min and max fitness per generation and saves the
// figure to outPath. The image format follows the file extension.
func PlotFitness(rows []FitnessRow, title, outPath string) error {
	if len(rows) == 0 {
		return fmt.Errorf("no fitness rows to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Fitness"

	meanPts := make(plotter.XYs, len(rows))
	minPts := make(plotter.XYs, len(rows))
	maxPts := make(plotter.XYs, len(rows))
	for i, row := range rows {
		x := float64(row.Generation)
		meanPts[i] = plotter.XY{X: x, Y: row.Mean}
		minPts[i] = plotter.XY{X: x, Y: row.Min}
		maxPts[i] = plotter.XY{X: x, Y: row.Max}
	}

	if err := plotutil.AddLines(p, "max", maxPts, "mean", meanPts, "min", minPts); err != nil {
		return err
	}
	p.Legend.Top = true
	p.Legend.Left = true

	return p.Save(8*vg.Inch, 4*vg.Inch, outPath)
}
