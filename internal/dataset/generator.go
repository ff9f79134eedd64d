// Package dataset produces and serialises the sales record sets the
// dashboard works against: the seeded synthetic generator, CSV and XLSX
// codecs, and upload parsing.
package dataset

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"sales-dashboard/internal/models"
)

const (
	DefaultSeed      = 42
	unitsLambda      = 20
	minUnitPrice     = 10
	maxUnitPrice     = 50
	riskProbability  = 0.05
	GeneratedSource  = "generated"
	defaultStartDate = "2023-01-01"
	defaultEndDate   = "2024-12-31"
)

var (
	DefaultProducts = []string{"Product A", "Product B", "Product C"}
	DefaultRegions  = []string{"North", "South", "East", "West"}
)

type GeneratorConfig struct {
	Seed      uint64
	StartDate time.Time
	EndDate   time.Time
	Products  []string
	Regions   []string
}

// DefaultGeneratorConfig covers 2023-01-01 through 2024-12-31 with seed 42.
func DefaultGeneratorConfig() GeneratorConfig {
	start, _ := time.Parse(models.DateLayout, defaultStartDate)
	end, _ := time.Parse(models.DateLayout, defaultEndDate)
	return GeneratorConfig{
		Seed:      DefaultSeed,
		StartDate: start,
		EndDate:   end,
		Products:  DefaultProducts,
		Regions:   DefaultRegions,
	}
}

// Generate emits one record per (date, product, region). Units are
// Poisson(20), revenue is units times a uniform unit price in [10, 50), and
// each row is flagged at risk with probability 0.05. The same config always
// yields the same records.
func Generate(cfg GeneratorConfig) []models.SalesRecord {
	src := rand.NewPCG(cfg.Seed, cfg.Seed)
	rng := rand.New(src)
	units := distuv.Poisson{Lambda: unitsLambda, Src: src}
	price := distuv.Uniform{Min: minUnitPrice, Max: maxUnitPrice, Src: src}

	start := models.Day(cfg.StartDate)
	end := models.Day(cfg.EndDate)
	days := int(end.Sub(start).Hours()/24) + 1
	if days < 0 {
		days = 0
	}

	records := make([]models.SalesRecord, 0, days*len(cfg.Products)*len(cfg.Regions))
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		for _, product := range cfg.Products {
			for _, region := range cfg.Regions {
				sold := int(units.Rand())
				records = append(records, models.SalesRecord{
					Date:      date,
					Product:   product,
					Region:    region,
					UnitsSold: sold,
					Revenue:   float64(sold) * price.Rand(),
					RiskFlag:  rng.Float64() < riskProbability,
				})
			}
		}
	}
	return records
}
