package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-day format used on the wire and in exports.
const DateLayout = "2006-01-02"

type SalesRecord struct {
	Date      time.Time `json:"date"`
	Product   string    `json:"product"`
	Region    string    `json:"region"`
	UnitsSold int       `json:"units_sold"`
	Revenue   float64   `json:"revenue"`
	RiskFlag  bool      `json:"risk_flag"`
}

// Dataset is the immutable record set a session works against.
type Dataset struct {
	ID       uuid.UUID     `json:"id"`
	Source   string        `json:"source"`
	Records  []SalesRecord `json:"-"`
	LoadedAt time.Time     `json:"loaded_at"`
}

func NewDataset(source string, records []SalesRecord) *Dataset {
	return &Dataset{
		ID:       uuid.New(),
		Source:   source,
		Records:  records,
		LoadedAt: time.Now().UTC(),
	}
}

// FilterCriteria bounds are inclusive.
type FilterCriteria struct {
	Products  []string  `json:"products"`
	Regions   []string  `json:"regions"`
	DateStart time.Time `json:"date_start"`
	DateEnd   time.Time `json:"date_end"`
}

type FilterOptions struct {
	Products []string  `json:"products"`
	Regions  []string  `json:"regions"`
	MinDate  time.Time `json:"min_date"`
	MaxDate  time.Time `json:"max_date"`
}

// Defaults selects everything, matching the initial state of the filter widgets.
func (o FilterOptions) Defaults() FilterCriteria {
	return FilterCriteria{
		Products:  append([]string(nil), o.Products...),
		Regions:   append([]string(nil), o.Regions...),
		DateStart: o.MinDate,
		DateEnd:   o.MaxDate,
	}
}

type KPISummary struct {
	TotalRevenue  float64
	TotalUnits    int64
	AvgDailyUnits float64
	RiskAlerts    int
}

// MarshalJSON emits null for an undefined daily average.
func (k KPISummary) MarshalJSON() ([]byte, error) {
	var avg *float64
	if !math.IsNaN(k.AvgDailyUnits) {
		v := k.AvgDailyUnits
		avg = &v
	}
	return json.Marshal(struct {
		TotalRevenue  float64  `json:"total_revenue"`
		TotalUnits    int64    `json:"total_units"`
		AvgDailyUnits *float64 `json:"avg_daily_units"`
		RiskAlerts    int      `json:"risk_alerts"`
	}{k.TotalRevenue, k.TotalUnits, avg, k.RiskAlerts})
}

type DailyTotal struct {
	Date    time.Time `json:"date"`
	Units   int64     `json:"units"`
	Revenue float64   `json:"revenue"`
}

// RiskMatrix cells are indexed [region][date].
type RiskMatrix struct {
	Regions []string    `json:"regions"`
	Dates   []time.Time `json:"dates"`
	Cells   [][]int     `json:"cells"`
}

func (m RiskMatrix) Total() int {
	total := 0
	for _, row := range m.Cells {
		for _, v := range row {
			total += v
		}
	}
	return total
}

func (m RiskMatrix) Empty() bool {
	return len(m.Regions) == 0 || len(m.Dates) == 0
}

type RegionDelta struct {
	Region      string  `json:"region"`
	LastRevenue float64 `json:"last_revenue"`
	PrevRevenue float64 `json:"prev_revenue"`
	ChangePct   float64 `json:"change"`
}

type InsightKind string

const (
	InsightDrop     InsightKind = "drop"
	InsightIncrease InsightKind = "increase"
)

type Insight struct {
	Region    string      `json:"region"`
	Kind      InsightKind `json:"kind"`
	ChangePct float64     `json:"change"`
	Message   string      `json:"message"`
}

type Narrative struct {
	Insights []Insight `json:"insights"`
	Stable   bool      `json:"stable"`
}

// Snapshot is everything the dashboard renders for one set of criteria.
type Snapshot struct {
	Criteria         FilterCriteria `json:"criteria"`
	RecordCount      int            `json:"record_count"`
	Summary          KPISummary     `json:"summary"`
	Series           []DailyTotal   `json:"series"`
	RiskMatrix       RiskMatrix     `json:"risk_matrix"`
	Deltas           []RegionDelta  `json:"deltas"`
	Narrative        Narrative      `json:"narrative"`
	AlertRegions     []string       `json:"alert_regions"`
	ForecastEligible bool           `json:"forecast_eligible"`
}

// Day truncates t to its calendar date at UTC midnight so that dates compare
// and hash consistently.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
