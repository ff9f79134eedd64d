package models

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const notAvailable = "N/A"

// FormatCurrency renders whole dollars with thousands separators, e.g. $1,234,568.
func FormatCurrency(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return notAvailable
	}
	d := decimal.NewFromFloat(v).Round(0)
	s := groupThousands(d.Abs().String())
	if d.IsNegative() {
		return "-$" + s
	}
	return "$" + s
}

func FormatUnits(v int64) string {
	if v < 0 {
		return "-" + groupThousands(strconv.FormatInt(-v, 10))
	}
	return groupThousands(strconv.FormatInt(v, 10))
}

// FormatAverage renders two decimals, or N/A when the average is undefined.
func FormatAverage(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return notAvailable
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

func FormatPercent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Display holds the formatted KPI card values.
type Display struct {
	TotalRevenue  string
	TotalUnits    string
	AvgDailyUnits string
	RiskAlerts    string
}

func (k KPISummary) Display() Display {
	return Display{
		TotalRevenue:  FormatCurrency(k.TotalRevenue),
		TotalUnits:    FormatUnits(k.TotalUnits),
		AvgDailyUnits: FormatAverage(k.AvgDailyUnits),
		RiskAlerts:    strconv.Itoa(k.RiskAlerts),
	}
}
