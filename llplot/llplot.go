// Package llplot draws the log-likelihood trace of a training run.
package llplot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecao/tappm-cli/internal/errutil"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// New returns a line plot of llf against the iteration number.
func New(llf []float64, title string) (*plot.Plot, error) {

	if len(llf) == 0 {
		return nil, fmt.Errorf("no log-likelihood values to plot")
	}

	pts := make(plotter.XYs, len(llf))
	for i, v := range llf {
		pts[i].X = float64(i)
		pts[i].Y = v
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Log-likelihood"
	p.Add(plotter.NewGrid())

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, err
	}
	p.Add(line, points)

	return p, nil
}

// Write renders p to output in the given format ("png", "svg", "pdf", ...).
func Write(p *plot.Plot, width, height vg.Length, output io.Writer, format string) error {
	w, err := p.WriterTo(width, height, format)
	if err != nil {
		return err
	}
	_, err = w.WriteTo(output)
	return err
}

// Save plots llf to path, choosing the image format from the extension.
func Save(llf []float64, title, path string) (err error) {

	p, err := New(llf, title)
	if err != nil {
		return err
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		format = "png"
	}

	output, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		e := output.Close()
		err = errutil.Combine(err, e)
	}()

	return Write(p, 6*vg.Inch, 4*vg.Inch, output, format)
}
