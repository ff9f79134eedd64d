// Package forecast fits an additive trend plus seasonality model to a daily
// revenue series and projects it forward.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	DefaultHorizon = 30

	weeklyPeriod  = 7.0
	yearlyPeriod  = 365.25
	weeklyOrder   = 3
	yearlyOrder   = 10
	minWeeklySpan = 14
	minYearlySpan = 730
	ridgePenalty  = 1e-6
	// IntervalWidth is the coverage of the uncertainty band around yhat.
	IntervalWidth = 0.8
)

// intervalZ is the standard normal quantile bounding IntervalWidth.
var intervalZ = distuv.UnitNormal.Quantile(0.5 + IntervalWidth/2)

var ErrInsufficientData = errors.New("forecast needs at least two observations")

type Observation struct {
	Date  time.Time `json:"ds"`
	Value float64   `json:"y"`
}

type Point struct {
	Date   time.Time `json:"ds"`
	Actual *float64  `json:"y,omitempty"`
	YHat   float64   `json:"yhat"`
	Lower  float64   `json:"yhat_lower"`
	Upper  float64   `json:"yhat_upper"`
	Trend  float64   `json:"trend"`
	Weekly float64   `json:"weekly"`
	Yearly float64   `json:"yearly"`
}

type Result struct {
	Points  []Point `json:"points"`
	History int     `json:"history"`
	Horizon int     `json:"horizon"`
	Weekly  bool    `json:"weekly"`
	Yearly  bool    `json:"yearly"`
}

// Future returns the projected points beyond the observed history.
func (r *Result) Future() []Point {
	return r.Points[r.History:]
}

type Forecaster interface {
	Forecast(ctx context.Context, series []Observation, horizon int) (*Result, error)
}

// Additive is a least-squares decomposition into linear trend, weekly and
// yearly Fourier seasonality. Seasonal terms are only fitted when the
// history spans at least two cycles.
type Additive struct{}

func NewAdditive() *Additive {
	return &Additive{}
}

// Forecast expects series sorted ascending by date.
func (m *Additive) Forecast(ctx context.Context, series []Observation, horizon int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(series) < 2 {
		return nil, ErrInsufficientData
	}
	if horizon < 0 {
		horizon = 0
	}

	start := series[0].Date
	span := daysBetween(start, series[len(series)-1].Date)
	if span <= 0 {
		return nil, ErrInsufficientData
	}

	layout := design{
		start:  start,
		span:   span,
		weekly: span >= minWeeklySpan,
		yearly: span >= minYearlySpan,
	}

	scale := 0.0
	for _, o := range series {
		scale = math.Max(scale, math.Abs(o.Value))
	}
	if scale == 0 {
		scale = 1
	}

	n, p := len(series), layout.width()
	a := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for i, o := range series {
		a.SetRow(i, layout.row(o.Date))
		y.SetVec(i, o.Value/scale)
	}

	beta, err := ridge(a, y)
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}

	fitted := make([]float64, n)
	residuals := make([]float64, n)
	for i, o := range series {
		fitted[i] = layout.evaluate(beta, o.Date).total() * scale
		residuals[i] = o.Value - fitted[i]
	}
	sigma := 0.0
	if n > p {
		sigma = stat.StdDev(residuals, nil)
	}
	band := intervalZ * sigma

	last := series[len(series)-1].Date
	result := &Result{
		Points:  make([]Point, 0, n+horizon),
		History: n,
		Horizon: horizon,
		Weekly:  layout.weekly,
		Yearly:  layout.yearly,
	}
	emit := func(date time.Time, actual *float64) {
		c := layout.evaluate(beta, date)
		yhat := c.total() * scale
		result.Points = append(result.Points, Point{
			Date:   date,
			Actual: actual,
			YHat:   yhat,
			Lower:  yhat - band,
			Upper:  yhat + band,
			Trend:  c.trend * scale,
			Weekly: c.weekly * scale,
			Yearly: c.yearly * scale,
		})
	}
	for _, o := range series {
		v := o.Value
		emit(o.Date, &v)
	}
	for d := 1; d <= horizon; d++ {
		emit(last.AddDate(0, 0, d), nil)
	}
	return result, nil
}

// ridge solves (AᵀA + λI)β = Aᵀy.
func ridge(a *mat.Dense, y *mat.VecDense) (*mat.VecDense, error) {
	_, p := a.Dims()

	var ata mat.Dense
	ata.Mul(a.T(), a)
	for i := 0; i < p; i++ {
		ata.Set(i, i, ata.At(i, i)+ridgePenalty)
	}

	var aty mat.VecDense
	aty.MulVec(a.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&ata, &aty); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
	}
	return &beta, nil
}

type design struct {
	start  time.Time
	span   float64
	weekly bool
	yearly bool
}

func (d design) width() int {
	w := 2
	if d.weekly {
		w += 2 * weeklyOrder
	}
	if d.yearly {
		w += 2 * yearlyOrder
	}
	return w
}

func (d design) row(date time.Time) []float64 {
	row := make([]float64, 0, d.width())
	row = append(row, 1, daysBetween(d.start, date)/d.span)
	epochDays := float64(date.Unix()) / 86400
	if d.weekly {
		row = appendFourier(row, epochDays, weeklyPeriod, weeklyOrder)
	}
	if d.yearly {
		row = appendFourier(row, epochDays, yearlyPeriod, yearlyOrder)
	}
	return row
}

type components struct {
	trend, weekly, yearly float64
}

func (c components) total() float64 {
	return c.trend + c.weekly + c.yearly
}

func (d design) evaluate(beta *mat.VecDense, date time.Time) components {
	row := d.row(date)
	var c components
	c.trend = beta.AtVec(0)*row[0] + beta.AtVec(1)*row[1]
	i := 2
	if d.weekly {
		for end := i + 2*weeklyOrder; i < end; i++ {
			c.weekly += beta.AtVec(i) * row[i]
		}
	}
	if d.yearly {
		for end := i + 2*yearlyOrder; i < end; i++ {
			c.yearly += beta.AtVec(i) * row[i]
		}
	}
	return c
}

func appendFourier(row []float64, t, period float64, order int) []float64 {
	for k := 1; k <= order; k++ {
		x := 2 * math.Pi * float64(k) * t / period
		row = append(row, math.Sin(x), math.Cos(x))
	}
	return row
}

func daysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}
