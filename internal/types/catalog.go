package types

import "github.com/shopspring/decimal"

// CatalogItem is one denormalized product record from the catalog table.
// Items are created once by the offline index build and are read-only at
// query time.
type CatalogItem struct {
	// ID is the stable catalog identifier joining the lexical index,
	// the vector index, and the catalog table.
	ID          string
	Reference   string
	Title       string
	Description string
	Features    string
	Category    string
	Price       decimal.Decimal
	HasPrice    bool
}

// PriceString renders the price for display, or "N/A" when the catalog
// row carried no parseable price.
func (i CatalogItem) PriceString() string {
	if !i.HasPrice {
		return "N/A"
	}
	return i.Price.String()
}
