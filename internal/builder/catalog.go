package builder

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/searchlabs/catalog-search/internal/textnorm"
	"github.com/searchlabs/catalog-search/internal/types"
)

// headerAliases maps normalized CSV header names to catalog fields, so
// both English and Spanish catalog exports load without configuration.
var headerAliases = map[string]string{
	"id":              "id",
	"reference":       "id",
	"referencia":      "id",
	"ref":             "id",
	"sku":             "id",
	"title":           "title",
	"titulo":          "title",
	"name":            "title",
	"nombre":          "title",
	"description":     "description",
	"descripcion":     "description",
	"features":        "features",
	"caracteristicas": "features",
	"category":        "category",
	"categoria":       "category",
	"price":           "price",
	"precio":          "price",
}

// naValues are cell contents treated as missing.
var naValues = map[string]bool{
	"":     true,
	"NULL": true,
	"NaN":  true,
	"N/A":  true,
}

// ParseCatalogCSV reads the denormalized product catalog from a CSV
// export. The header row is matched case- and accent-insensitively; an
// id column and a title column are required. Rows without an id are
// skipped and logged.
func ParseCatalogCSV(path string, logger *log.Logger) ([]types.CatalogItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog header: %w", err)
	}

	columns := make(map[string]int)
	for i, name := range header {
		normalized := textnorm.Normalize(name)
		if field, ok := headerAliases[normalized]; ok {
			if _, taken := columns[field]; !taken {
				columns[field] = i
			}
		}
	}
	if _, ok := columns["id"]; !ok {
		return nil, fmt.Errorf("catalog file has no id/reference column (headers: %v)", header)
	}
	if _, ok := columns["title"]; !ok {
		return nil, fmt.Errorf("catalog file has no title column (headers: %v)", header)
	}

	cell := func(record []string, field string) string {
		idx, ok := columns[field]
		if !ok || idx >= len(record) {
			return ""
		}
		value := record[idx]
		if naValues[value] {
			return ""
		}
		return value
	}

	var items []types.CatalogItem
	seen := make(map[string]int)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog row %d: %w", line, err)
		}

		id := cell(record, "id")
		if id == "" {
			logger.Warn("Skipping catalog row without id", "line", line)
			continue
		}
		// Ids must be unique; they key both indexes. First occurrence wins,
		// matching how duplicates are resolved at load time.
		if firstLine, dup := seen[id]; dup {
			logger.Warn("Skipping catalog row with duplicate id", "line", line, "id", id, "first_line", firstLine)
			continue
		}
		seen[id] = line

		item := types.CatalogItem{
			ID:          id,
			Reference:   id,
			Title:       cell(record, "title"),
			Description: cell(record, "description"),
			Features:    cell(record, "features"),
			Category:    cell(record, "category"),
		}
		if price := cell(record, "price"); price != "" {
			value, err := decimal.NewFromString(price)
			if err != nil {
				logger.Warn("Unparseable price, leaving empty", "line", line, "id", id, "price", price)
			} else {
				item.Price = value
				item.HasPrice = true
			}
		}
		items = append(items, item)
	}

	return items, nil
}
