// Package plot renders the charts logged alongside a training run.
package plot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aretw0/yolotrain/pkg/domain"
	"github.com/erkkah/margaid"
)

const (
	width  = 640
	height = 480
)

// Parameters draws a bar chart of total against trainable parameters.
func Parameters(w io.Writer, c domain.ParamCount) error {
	series := margaid.NewSeries(margaid.Titled("parameters"))
	series.Add(
		margaid.MakeValue(1, float64(c.Total)),
		margaid.MakeValue(2, float64(c.Trainable)),
	)

	top := float64(c.Total) * 1.1
	if top <= 0 {
		top = 1
	}
	diagram := margaid.New(width, height,
		margaid.WithRange(margaid.XAxis, 0, 3),
		margaid.WithRange(margaid.YAxis, 0, top),
		margaid.WithInset(80),
		margaid.WithPadding(3),
		margaid.WithColorScheme(210),
	)
	diagram.Bar([]*margaid.Series{series})
	diagram.Axis(series, margaid.YAxis, diagram.ValueTicker('g', 3, 10), true, "parameters")
	diagram.Frame()
	diagram.Title(fmt.Sprintf("Total: %d  Trainable: %d", c.Total, c.Trainable))

	return diagram.Render(w)
}

// WriteParameters renders the chart into path, creating parent directories.
func WriteParameters(path string, c domain.ParamCount) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to ensure plot directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plot: %w", err)
	}
	if err := Parameters(f, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
