// Package charts renders dashboard views to PNG with gonum/plot. Renderers
// draw exactly what they are given; empty inputs yield an empty titled plot.
package charts

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"slices"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"sales-dashboard/internal/forecast"
	"sales-dashboard/internal/models"
)

const (
	defaultWidth  = 12 * vg.Inch
	lineHeight    = 4 * vg.Inch
	heatmapHeight = 3 * vg.Inch
	barHeight     = 4 * vg.Inch
	panelHeight   = 2.5 * vg.Inch
	dateFormat    = "2006-01-02"
)

var (
	green = color.RGBA{R: 0x2e, G: 0x8b, B: 0x57, A: 0xff}
	red   = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	blue  = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	gray  = color.RGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff}
	black = color.RGBA{A: 0xff}
)

// RevenueOverTime plots the daily revenue series.
func RevenueOverTime(series []models.DailyTotal) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Revenue Over Time"
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Revenue"
	p.X.Tick.Marker = plot.TimeTicks{Format: dateFormat}
	p.Add(plotter.NewGrid())

	if len(series) > 0 {
		pts := make(plotter.XYs, len(series))
		for i, d := range series {
			pts[i].X = float64(d.Date.Unix())
			pts[i].Y = d.Revenue
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("revenue line: %w", err)
		}
		line.Color = green
		p.Add(line)
		p.Legend.Add("Revenue", line)
	}

	return render(p, defaultWidth, lineHeight)
}

// RiskHeatmap draws region rows against date columns.
func RiskHeatmap(m models.RiskMatrix) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Risk Alerts Over Time by Region"

	if !m.Empty() {
		grid := riskGrid{m: m}
		hm := plotter.NewHeatMap(grid, riskPalette{palette.Heat(12, 1)})
		hm.Min = 0
		hm.Max = math.Max(1, float64(maxCell(m)))
		p.Add(hm)

		ticks := make([]plot.Tick, len(m.Regions))
		for i, region := range m.Regions {
			ticks[i] = plot.Tick{Value: float64(i), Label: region}
		}
		p.Y.Tick.Marker = plot.ConstantTicks(ticks)
		p.X.Tick.Marker = dateIndexTicks(m.Dates)
	}

	return render(p, defaultWidth, heatmapHeight)
}

func maxCell(m models.RiskMatrix) int {
	top := 0
	for _, row := range m.Cells {
		for _, v := range row {
			top = max(top, v)
		}
	}
	return top
}

// riskPalette runs the heat ramp from white (no alerts) to red.
type riskPalette struct {
	palette.Palette
}

func (p riskPalette) Colors() []color.Color {
	colors := slices.Clone(p.Palette.Colors())
	slices.Reverse(colors)
	return colors
}

type riskGrid struct {
	m models.RiskMatrix
}

func (g riskGrid) Dims() (c, r int)   { return len(g.m.Dates), len(g.m.Regions) }
func (g riskGrid) Z(c, r int) float64 { return float64(g.m.Cells[r][c]) }
func (g riskGrid) X(c int) float64    { return float64(c) }
func (g riskGrid) Y(r int) float64    { return float64(r) }

// ForecastPlot overlays observed revenue, the fitted and projected values,
// and the uncertainty interval.
func ForecastPlot(result *forecast.Result) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "Revenue Forecast"
	p.X.Label.Text = "ds"
	p.Y.Label.Text = "y"
	p.X.Tick.Marker = plot.TimeTicks{Format: dateFormat}
	p.Add(plotter.NewGrid())

	if result != nil && len(result.Points) > 0 {
		var actual plotter.XYs
		yhat := make(plotter.XYs, len(result.Points))
		lower := make(plotter.XYs, len(result.Points))
		upper := make(plotter.XYs, len(result.Points))
		for i, pt := range result.Points {
			x := float64(pt.Date.Unix())
			yhat[i] = plotter.XY{X: x, Y: pt.YHat}
			lower[i] = plotter.XY{X: x, Y: pt.Lower}
			upper[i] = plotter.XY{X: x, Y: pt.Upper}
			if pt.Actual != nil {
				actual = append(actual, plotter.XY{X: x, Y: *pt.Actual})
			}
		}

		if len(actual) > 0 {
			scatter, err := plotter.NewScatter(actual)
			if err != nil {
				return nil, fmt.Errorf("actual points: %w", err)
			}
			scatter.GlyphStyle.Color = black
			scatter.GlyphStyle.Radius = vg.Points(1.5)
			scatter.GlyphStyle.Shape = draw.CircleGlyph{}
			p.Add(scatter)
			p.Legend.Add("Observed", scatter)
		}

		fit, err := plotter.NewLine(yhat)
		if err != nil {
			return nil, fmt.Errorf("forecast line: %w", err)
		}
		fit.Color = blue
		fit.Width = vg.Points(1.5)
		p.Add(fit)
		p.Legend.Add("Forecast", fit)

		for _, bound := range []plotter.XYs{lower, upper} {
			l, err := plotter.NewLine(bound)
			if err != nil {
				return nil, fmt.Errorf("interval line: %w", err)
			}
			l.Color = gray
			l.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
			p.Add(l)
		}
	}

	return render(p, defaultWidth, lineHeight)
}

// ForecastComponents stacks the trend and each fitted seasonality.
func ForecastComponents(result *forecast.Result) ([]byte, error) {
	type panel struct {
		title string
		value func(forecast.Point) float64
	}
	panels := []panel{{"trend", func(p forecast.Point) float64 { return p.Trend }}}
	if result != nil && result.Weekly {
		panels = append(panels, panel{"weekly", func(p forecast.Point) float64 { return p.Weekly }})
	}
	if result != nil && result.Yearly {
		panels = append(panels, panel{"yearly", func(p forecast.Point) float64 { return p.Yearly }})
	}

	plots := make([][]*plot.Plot, len(panels))
	for i, pn := range panels {
		p := plot.New()
		p.Title.Text = pn.title
		p.X.Tick.Marker = plot.TimeTicks{Format: dateFormat}
		p.Add(plotter.NewGrid())

		if result != nil && len(result.Points) > 0 {
			pts := make(plotter.XYs, len(result.Points))
			for j, pt := range result.Points {
				pts[j] = plotter.XY{X: float64(pt.Date.Unix()), Y: pn.value(pt)}
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return nil, fmt.Errorf("%s line: %w", pn.title, err)
			}
			line.Color = blue
			p.Add(line)
		}
		plots[i] = []*plot.Plot{p}
	}

	height := panelHeight * vg.Length(len(panels))
	img := vgimg.New(defaultWidth, height)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: len(panels), Cols: 1, PadY: vg.Millimeter * 2}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	var buf bytes.Buffer
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DeltaBars draws one bar per region, green above zero and red otherwise.
func DeltaBars(deltas []models.RegionDelta) ([]byte, error) {
	p := plot.New()
	p.Title.Text = "30-Day Revenue Change by Region"
	p.X.Label.Text = "Region"
	p.Y.Label.Text = "% Change in Revenue"
	p.Add(plotter.NewGrid())

	if len(deltas) > 0 {
		gains := make(plotter.Values, len(deltas))
		losses := make(plotter.Values, len(deltas))
		names := make([]string, len(deltas))
		for i, d := range deltas {
			names[i] = d.Region
			if d.ChangePct > 0 {
				gains[i] = d.ChangePct
			} else {
				losses[i] = d.ChangePct
			}
		}

		width := vg.Points(40)
		for _, set := range []struct {
			values plotter.Values
			color  color.Color
		}{{gains, green}, {losses, red}} {
			bars, err := plotter.NewBarChart(set.values, width)
			if err != nil {
				return nil, fmt.Errorf("delta bars: %w", err)
			}
			bars.Color = set.color
			bars.LineStyle.Width = vg.Length(0)
			p.Add(bars)
		}
		p.NominalX(names...)
	}

	return render(p, 8*vg.Inch, barHeight)
}

func render(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, fmt.Errorf("prepare png: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// dateIndexTicks labels column indices with their dates, thinning labels so
// at most eight are shown.
type dateIndexTicks []time.Time

func (d dateIndexTicks) Ticks(_, _ float64) []plot.Tick {
	if len(d) == 0 {
		return nil
	}
	step := max(1, int(math.Ceil(float64(len(d))/8)))
	ticks := make([]plot.Tick, 0, len(d)/step+1)
	for i := 0; i < len(d); i += step {
		ticks = append(ticks, plot.Tick{Value: float64(i), Label: d[i].Format(dateFormat)})
	}
	return ticks
}
