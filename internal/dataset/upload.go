package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"sales-dashboard/internal/models"
)

var ErrUnsupportedFormat = errors.New("unsupported file format, expected .csv or .xlsx")

// ParseUpload decodes an uploaded file, choosing the codec by extension.
func ParseUpload(ctx context.Context, filename string, r io.Reader) ([]models.SalesRecord, error) {
	var (
		records []models.SalesRecord
		err     error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		records, err = DecodeCSV(ctx, r)
	case ".xlsx":
		records, err = DecodeXLSX(ctx, r)
	default:
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return records, nil
}

// Preview returns at most n leading records.
func Preview(records []models.SalesRecord, n int) []models.SalesRecord {
	if len(records) <= n {
		return records
	}
	return records[:n]
}
