package catalog

import "github.com/shopspring/decimal"

// Rating carries the catalog's aggregate review score for a product.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

// Product is an immutable snapshot from the upstream catalog. The core never
// owns products; it only reads them and annotates copies.
type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	Image       string          `json:"image,omitempty"`
	Rating      Rating          `json:"rating"`
}

// Clone returns a copy of the product slice. Product fields are value types,
// so copying the slice is sufficient to detach the result from the source.
func Clone(products []Product) []Product {
	if products == nil {
		return nil
	}
	out := make([]Product, len(products))
	copy(out, products)
	return out
}
