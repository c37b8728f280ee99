// Package graph renders a day log as a PNG line chart of temperature and
// humidity over the day.
package graph

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sweeney/climate-bot/internal/timeseries"
)

// ErrNoData is returned when no reading carries a plottable value.
var ErrNoData = errors.New("graph: no data to plot")

var (
	temperatureColor = color.RGBA{B: 200, A: 255}
	humidityColor    = color.RGBA{R: 200, A: 255}
)

// PNG renders charts of a fixed size.
type PNG struct {
	Width  vg.Length
	Height vg.Length
}

// New returns a renderer producing 6x4 inch charts.
func New() *PNG {
	return &PNG{Width: 6 * vg.Inch, Height: 4 * vg.Inch}
}

// Render draws readings of day. Readings with unparsable timestamps are
// skipped; nil values leave a gap in that series only.
func (r *PNG) Render(day time.Time, readings []timeseries.Reading) ([]byte, error) {
	temps, hums := Series(day, readings)
	if len(temps) == 0 && len(hums) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Sensor data " + day.Format(timeseries.DayLayout)
	p.X.Label.Text = "Time"
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04", Time: plot.UnixTimeIn(day.Location())}
	p.Y.Label.Text = "°C / %"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for _, s := range []struct {
		label string
		xys   plotter.XYs
		color color.Color
	}{
		{"Temperature (°C)", temps, temperatureColor},
		{"Humidity (%)", hums, humidityColor},
	} {
		if len(s.xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(s.xys)
		if err != nil {
			return nil, fmt.Errorf("plot %s: %w", s.label, err)
		}
		line.Color = s.color
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(s.label, line)
	}

	w, err := p.WriterTo(r.Width, r.Height, "png")
	if err != nil {
		return nil, fmt.Errorf("create png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Series splits readings into temperature and humidity points keyed by
// Unix seconds.
func Series(day time.Time, readings []timeseries.Reading) (temps, hums plotter.XYs) {
	for _, rd := range readings {
		t, err := rd.Time(day)
		if err != nil {
			continue
		}
		x := float64(t.Unix())
		if rd.Temperature != nil {
			temps = append(temps, plotter.XY{X: x, Y: *rd.Temperature})
		}
		if rd.Humidity != nil {
			hums = append(hums, plotter.XY{X: x, Y: *rd.Humidity})
		}
	}
	return temps, hums
}
