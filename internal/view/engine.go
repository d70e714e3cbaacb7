// Package view derives the displayed product list from an immutable original
// list given a search term, a sort key and a category filter.
package view

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/nfauzi/storefront/internal/catalog"
)

// Sort keys accepted by Engine.Sort.
const (
	SortDefault       = "default"
	SortPriceLow      = "low"
	SortPriceHigh     = "high"
	SortTitleAsc      = "A-Z"
	SortTitleDesc     = "Z-A"
	SortRatingLow     = "lowRating"
	SortRatingHigh    = "highRating"
	SortCategoryAsc   = "categoryA-Z"
	SortCategoryDesc  = "categoryZ-A"
	AllCategoriesItem = "All categories"
)

// InvalidSortError reports an unrecognised sort key. The product list is left
// unchanged when it occurs.
type InvalidSortError struct {
	Term string
}

func (e *InvalidSortError) Error() string {
	return fmt.Sprintf("invalid sortingTerm: '%s'", e.Term)
}

// Engine sorts and searches product lists. The zero value is not usable;
// construct with NewEngine so title comparison is locale aware.
type Engine struct {
	collator *collate.Collator
}

// NewEngine builds an engine collating titles and categories for the given
// language tag.
func NewEngine(tag language.Tag) *Engine {
	return &Engine{collator: collate.New(tag)}
}

// Search returns a detached copy of the products whose title contains the
// term, case-insensitively. A blank or whitespace-only term matches all.
func (e *Engine) Search(original []catalog.Product, term string) []catalog.Product {
	trimmed := strings.ToLower(strings.TrimSpace(term))
	if trimmed == "" {
		return catalog.Clone(original)
	}
	matched := make([]catalog.Product, 0, len(original))
	for _, p := range original {
		if strings.Contains(strings.ToLower(p.Title), trimmed) {
			matched = append(matched, p)
		}
	}
	return catalog.Clone(matched)
}

// Sort orders products by the provided key. The "default" key discards the
// current view and restores a copy of the original, pre-search list. An
// unrecognised key returns an InvalidSortError and leaves products untouched.
func (e *Engine) Sort(products, original []catalog.Product, key string) ([]catalog.Product, error) {
	switch key {
	case SortPriceLow, SortPriceHigh:
		out := catalog.Clone(products)
		sort.SliceStable(out, func(i, j int) bool {
			if key == SortPriceLow {
				return out[i].Price.LessThan(out[j].Price)
			}
			return out[j].Price.LessThan(out[i].Price)
		})
		return out, nil
	case SortTitleAsc, SortTitleDesc:
		out := catalog.Clone(products)
		sort.SliceStable(out, func(i, j int) bool {
			if key == SortTitleAsc {
				return e.collator.CompareString(out[i].Title, out[j].Title) < 0
			}
			return e.collator.CompareString(out[j].Title, out[i].Title) < 0
		})
		return out, nil
	case SortRatingLow, SortRatingHigh:
		out := catalog.Clone(products)
		sort.SliceStable(out, func(i, j int) bool {
			if key == SortRatingLow {
				return out[i].Rating.Rate < out[j].Rating.Rate
			}
			return out[j].Rating.Rate < out[i].Rating.Rate
		})
		return out, nil
	case SortCategoryAsc, SortCategoryDesc:
		out := catalog.Clone(products)
		sort.SliceStable(out, func(i, j int) bool {
			if key == SortCategoryAsc {
				return e.collator.CompareString(out[i].Category, out[j].Category) < 0
			}
			return e.collator.CompareString(out[j].Category, out[i].Category) < 0
		})
		return out, nil
	case SortDefault:
		return catalog.Clone(original), nil
	default:
		return products, &InvalidSortError{Term: key}
	}
}

// ByCategory filters products by exact category match. The sentinel
// "All categories" (or blank) filter matches everything.
func ByCategory(products []catalog.Product, category string) []catalog.Product {
	if category == "" || category == AllCategoriesItem {
		return products
	}
	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}
