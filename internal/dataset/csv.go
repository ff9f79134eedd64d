package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

const (
	ColumnDate     = "Date"
	ColumnProduct  = "Product"
	ColumnRegion   = "Region"
	ColumnUnits    = "Units Sold"
	ColumnRevenue  = "Revenue"
	ColumnRiskFlag = "Risk Flag"
)

// Header is the exported column order.
var Header = []string{ColumnDate, ColumnProduct, ColumnRegion, ColumnUnits, ColumnRevenue, ColumnRiskFlag}

// EncodeCSV writes the records with Header as the first row.
func EncodeCSV(w io.Writer, records []models.SalesRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(recordToRow(r)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func recordToRow(r models.SalesRecord) []string {
	return []string{
		r.Date.Format(models.DateLayout),
		r.Product,
		r.Region,
		strconv.Itoa(r.UnitsSold),
		strconv.FormatFloat(r.Revenue, 'f', -1, 64),
		formatFlag(r.RiskFlag),
	}
}

func formatFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// DecodeCSV parses a CSV stream whose header names the Header columns in
// any order. Any malformed row fails the whole decode.
func DecodeCSV(ctx context.Context, r io.Reader) ([]models.SalesRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("empty file")
	}
	return decodeRows(ctx, rows[0], rows[1:], parseDate)
}

// columnIndex maps each Header column to its position in a file header.
type columnIndex map[string]int

func newColumnIndex(header []string) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		positions[normalizeColumn(h)] = i
	}

	idx := make(columnIndex, len(Header))
	var missing []string
	for _, col := range Header {
		pos, ok := positions[normalizeColumn(col)]
		if !ok {
			missing = append(missing, col)
			continue
		}
		idx[col] = pos
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}
	return idx, nil
}

func normalizeColumn(s string) string {
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

type dateParser func(string) (time.Time, error)

// decodeRows parses data rows in bounded parallel batches; output order
// matches input order.
func decodeRows(ctx context.Context, header []string, rows [][]string, parse dateParser) ([]models.SalesRecord, error) {
	idx, err := newColumnIndex(header)
	if err != nil {
		return nil, err
	}

	records := make([]models.SalesRecord, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				rec, err := parseRow(rows[i], idx, parse)
				if err != nil {
					// Header is line 1.
					return fmt.Errorf("line %d: %w", i+2, err)
				}
				records[i] = rec
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func parseRow(row []string, idx columnIndex, parse dateParser) (models.SalesRecord, error) {
	cell := func(col string) string {
		pos := idx[col]
		if pos >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[pos])
	}

	date, err := parse(cell(ColumnDate))
	if err != nil {
		return models.SalesRecord{}, fmt.Errorf("%s: %w", ColumnDate, err)
	}

	units, err := parseUnits(cell(ColumnUnits))
	if err != nil {
		return models.SalesRecord{}, fmt.Errorf("%s: %w", ColumnUnits, err)
	}

	revenue, err := strconv.ParseFloat(cell(ColumnRevenue), 64)
	if err != nil {
		return models.SalesRecord{}, fmt.Errorf("%s: %w", ColumnRevenue, err)
	}

	flag, err := parseFlag(cell(ColumnRiskFlag))
	if err != nil {
		return models.SalesRecord{}, fmt.Errorf("%s: %w", ColumnRiskFlag, err)
	}

	return models.SalesRecord{
		Date:      date,
		Product:   cell(ColumnProduct),
		Region:    cell(ColumnRegion),
		UnitsSold: units,
		Revenue:   revenue,
		RiskFlag:  flag,
	}, nil
}

// parseUnits accepts integral values written as floats, e.g. "20.0".
func parseUnits(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "1.0", "true", "yes":
		return true, nil
	case "0", "0.0", "false", "no", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid flag %q", s)
}

var dateLayouts = []string{
	models.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
