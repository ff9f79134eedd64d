package dataset

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"sales-dashboard/internal/models"
)

const cacheVersion = "v1"

// Cache memoises generated record sets on disk so restarts skip regeneration.
type Cache struct {
	dir    string
	logger *slog.Logger
}

func NewCache(dir string, logger *slog.Logger) *Cache {
	return &Cache{dir: dir, logger: logger}
}

// Generate returns the cached records for cfg, generating and storing them
// on a miss. Cache failures are logged and never fatal.
func (c *Cache) Generate(cfg GeneratorConfig) []models.SalesRecord {
	path := c.filename(cfg)
	if records, err := c.load(path); err == nil {
		c.logger.Info("loaded generated dataset from cache", "path", path, "records", len(records))
		return records
	}

	records := Generate(cfg)
	if err := c.save(path, records); err != nil {
		c.logger.Warn("failed to save dataset cache", "path", path, "error", err)
	}
	return records
}

func (c *Cache) filename(cfg GeneratorConfig) string {
	key := fmt.Sprintf("seed%d_%s_%s_%s_%s",
		cfg.Seed,
		cfg.StartDate.Format(models.DateLayout),
		cfg.EndDate.Format(models.DateLayout),
		strings.Join(cfg.Products, "-"),
		strings.Join(cfg.Regions, "-"),
	)
	key = strings.NewReplacer(" ", "", "/", "_").Replace(key)
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.gob", key, cacheVersion))
}

func (c *Cache) save(path string, records []models.SalesRecord) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(records)
}

func (c *Cache) load(path string) ([]models.SalesRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []models.SalesRecord
	if err := gob.NewDecoder(file).Decode(&records); err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Date = models.Day(records[i].Date)
	}
	return records, nil
}
