// Package plotting renders waveform records as PNG line charts.
package plotting

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/scopedb/internal/analysis"
	"github.com/banshee-data/scopedb/internal/fold"
)

// ErrNoSeries is returned when there is nothing to draw.
var ErrNoSeries = errors.New("no series to plot")

// Series is one labelled line.
type Series struct {
	Label string
	X, Y  []float64
}

// SpectrumSeries extracts one power spectrum line per waveform record that
// carries both the frequencies and power_spectrum arrays.
func SpectrumSeries(records []fold.Record) []Series {
	var out []Series
	for _, rec := range records {
		freqs, ok := rec.Floats(analysis.ArrayFrequencies)
		if !ok {
			continue
		}
		psd, ok := rec.Floats(analysis.ArrayPowerSpectrum)
		if !ok || len(psd) != len(freqs) {
			continue
		}
		out = append(out, Series{Label: label(rec), X: freqs, Y: psd})
	}
	return out
}

// RawSeries extracts one sample line per waveform record holding a raw
// array. X is time in seconds derived from the sampling rate.
func RawSeries(records []fold.Record, process string) []Series {
	var out []Series
	for _, rec := range records {
		data, ok := rec.Floats(process)
		if !ok {
			continue
		}
		rate, ok := rec.Float(fold.KeyRate)
		if !ok || rate <= 0 {
			continue
		}
		x := make([]float64, len(data))
		for i := range x {
			x[i] = float64(i) / rate
		}
		out = append(out, Series{Label: label(rec), X: x, Y: data})
	}
	return out
}

func label(rec fold.Record) string {
	sid, _ := rec.Int64(fold.KeyScanID)
	channel, _ := rec.String(fold.KeyChannel)
	signal, _ := rec.String(fold.KeySignal)
	return fmt.Sprintf("scan %d %s/%s", sid, channel, signal)
}

// Render draws series onto a new plot.
func Render(title, xLabel, yLabel string, series []Series) (*plot.Plot, error) {
	if len(series) == 0 {
		return nil, ErrNoSeries
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	colors := generateColors(len(series))
	for i, s := range series {
		pts := make(plotter.XYs, len(s.X))
		for j := range s.X {
			pts[j] = plotter.XY{X: s.X[j], Y: s.Y[j]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("line for %s: %w", s.Label, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.Label, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// Save writes p to path. The image format follows the file extension.
func Save(p *plot.Plot, path string) error {
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// generateColors creates a palette of distinct colors for the lines
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		return uint8(l * 255), uint8(l * 255), uint8(l * 255)
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255), uint8(hueToRGB(p, q, h) * 255), uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
