package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nfauzi/storefront/internal/catalog"
	"github.com/nfauzi/storefront/internal/common"
	"github.com/nfauzi/storefront/internal/discount"
	"github.com/nfauzi/storefront/internal/obs"
	"github.com/nfauzi/storefront/internal/view"
)

// ProductsHandler serves the catalog browse surface: the searched, sorted and
// category-filtered view over the discount-merged product list.
type ProductsHandler struct {
	Catalog   *catalog.Client
	Discounts *discount.Allocator
	Engine    *view.Engine
}

// List applies q, sort and category query parameters in that order. Upstream
// failures and unknown sort keys land in the session error slot before the
// response is written.
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil || h.Engine == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	started := time.Now()
	products, err := h.Catalog.ListProducts(r.Context(), "")
	observeCatalog("list_products", started, err)
	if err != nil {
		sess.RecordError(common.ErrTypeNetwork, err.Error())
		common.JSONError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "catalog unavailable", nil)
		return
	}
	products = withDiscounts(products, h.discounted())

	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category != "" && category != view.AllCategoriesItem {
		products = view.ByCategory(products, category)
	}

	results := h.Engine.Search(products, r.URL.Query().Get("q"))

	if key := strings.TrimSpace(r.URL.Query().Get("sort")); key != "" {
		sorted, err := h.Engine.Sort(results, products, key)
		if err != nil {
			var invalid *view.InvalidSortError
			if errors.As(err, &invalid) {
				sess.RecordError(common.ErrTypeSorting, invalid.Error())
				common.JSONError(w, http.StatusBadRequest, "INVALID_SORT", invalid.Error(), nil)
				return
			}
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to sort products", nil)
			return
		}
		results = sorted
	}

	common.JSONData(w, http.StatusOK, results)
}

// Detail returns one product, discounted when the allocator selected it.
func (h *ProductsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}

	started := time.Now()
	product, err := h.Catalog.GetProduct(r.Context(), id)
	observeCatalog("get_product", started, err)
	if err != nil {
		sess.RecordError(common.ErrTypeNetwork, err.Error())
		common.JSONError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "catalog unavailable", nil)
		return
	}
	for _, d := range h.discounted() {
		if d.ID == product.ID {
			common.JSONData(w, http.StatusOK, d)
			return
		}
	}
	common.JSONData(w, http.StatusOK, product)
}

// Categories lists the category names plus the synthetic all-categories entry.
func (h *ProductsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	started := time.Now()
	categories, err := h.Catalog.ListCategories(r.Context())
	observeCatalog("list_categories", started, err)
	if err != nil {
		sess.RecordError(common.ErrTypeNetwork, err.Error())
		common.JSONError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "catalog unavailable", nil)
		return
	}
	common.JSONData(w, http.StatusOK, append([]string{view.AllCategoriesItem}, categories...))
}

func (h *ProductsHandler) discounted() []discount.Discounted {
	if h.Discounts == nil {
		return nil
	}
	return h.Discounts.Discounted()
}

// withDiscounts substitutes id-matched products with their discounted
// snapshots, keeping the fetch order of the input list.
func withDiscounts(products []catalog.Product, discounted []discount.Discounted) []catalog.Product {
	if len(discounted) == 0 {
		return products
	}
	byID := make(map[int64]catalog.Product, len(discounted))
	for _, d := range discounted {
		byID[d.ID] = d.Product
	}
	for i, p := range products {
		if repl, ok := byID[p.ID]; ok {
			products[i] = repl
		}
	}
	return products
}

func observeCatalog(op string, started time.Time, err error) {
	if obs.CatalogFetchLatency == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.CatalogFetchLatency.WithLabelValues(op, result).Observe(float64(time.Since(started).Milliseconds()))
}
