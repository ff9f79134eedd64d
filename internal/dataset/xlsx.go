package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"sales-dashboard/internal/models"
)

const salesSheet = "Sales"

// EncodeXLSX writes the records to a single-sheet workbook with Header as
// the first row.
func EncodeXLSX(w io.Writer, records []models.SalesRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", salesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(salesSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			r.Date.Format(models.DateLayout),
			r.Product,
			r.Region,
			r.UnitsSold,
			r.Revenue,
			formatFlag(r.RiskFlag),
		}
		if err := f.SetSheetRow(salesSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	for i, h := range Header {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(salesSheet, col, col, float64(max(len(h), 10)+4)); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// DecodeXLSX reads the first sheet of a workbook. Dates may be text or
// Excel serial numbers.
func DecodeXLSX(ctx context.Context, r io.Reader) ([]models.SalesRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, errors.New("empty sheet")
	}
	return decodeRows(ctx, rows[0], rows[1:], parseSheetDate)
}

func parseSheetDate(s string) (time.Time, error) {
	if t, err := parseDate(s); err == nil {
		return t, nil
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised date %q", s)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, err
	}
	return models.Day(t), nil
}
