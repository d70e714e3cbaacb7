package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nfauzi/storefront/internal/cart"
	"github.com/nfauzi/storefront/internal/catalog"
	"github.com/nfauzi/storefront/internal/common"
	"github.com/nfauzi/storefront/internal/discount"
	"github.com/nfauzi/storefront/internal/obs"
)

// CartHandler wires the session cart to HTTP. Items are added at their
// discount-merged price: the allocator's snapshot wins over the upstream one.
type CartHandler struct {
	Catalog   *catalog.Client
	Discounts *discount.Allocator
}

// Get returns the cart snapshot: items, totals, shipping and payment method.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	common.JSONData(w, http.StatusOK, sess.Cart.Snapshot())
}

// AddItem adds a product, defaulting quantity to one.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	var payload struct {
		ProductID int64 `json:"productId"`
		Quantity  int   `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if payload.ProductID <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return
	}
	if payload.Quantity <= 0 {
		payload.Quantity = 1
	}

	product, err := h.resolveProduct(r, payload.ProductID)
	if err != nil {
		sess.RecordError(common.ErrTypeNetwork, err.Error())
		countCartMutation("add", "error")
		common.JSONError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "catalog unavailable", nil)
		return
	}

	sess.AddToCart(r.Context(), product, payload.Quantity)
	countCartMutation("add", "ok")
	common.JSONData(w, http.StatusOK, sess.Cart.Snapshot())
}

// RemoveItem schedules the two-phase removal. The item stays visible, marked,
// until the removal delay elapses, so the response is 202.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	if err := sess.RemoveFromCart(r.Context(), id); err != nil {
		if errors.Is(err, cart.ErrRemovalPending) {
			countCartMutation("remove", "pending")
			common.JSONError(w, http.StatusConflict, "REMOVAL_PENDING", "removal already pending for item", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to remove item", nil)
		return
	}
	countCartMutation("remove", "ok")
	common.JSONData(w, http.StatusAccepted, sess.Cart.Snapshot())
}

// Clear empties the cart when the request confirms the decision the
// storefront would otherwise ask interactively.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	var payload struct {
		Confirm bool `json:"confirm"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)

	cleared := sess.ClearCart(r.Context(), common.PrompterFunc(func(context.Context, string) bool {
		return payload.Confirm
	}))
	result := "declined"
	if cleared {
		result = "ok"
	}
	countCartMutation("clear", result)
	common.JSONData(w, http.StatusOK, map[string]any{
		"cleared": cleared,
		"cart":    sess.Cart.Snapshot(),
	})
}

// SetShipping switches the shipping method and reprices the cart.
func (h *CartHandler) SetShipping(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	var payload struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := sess.Cart.SetShippingMethod(payload.Method); err != nil {
		common.JSONError(w, http.StatusBadRequest, "UNKNOWN_SHIPPING_METHOD", err.Error(), nil)
		return
	}
	common.JSONData(w, http.StatusOK, sess.Cart.Snapshot())
}

// SetPaymentMethod records the payment method used at order placement.
func (h *CartHandler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	var payload struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := sess.Cart.SetPaymentMethod(payload.Method); err != nil {
		common.JSONError(w, http.StatusBadRequest, "UNKNOWN_PAYMENT_METHOD", err.Error(), nil)
		return
	}
	common.JSONData(w, http.StatusOK, sess.Cart.Snapshot())
}

func (h *CartHandler) resolveProduct(r *http.Request, id int64) (catalog.Product, error) {
	if h.Discounts != nil {
		for _, d := range h.Discounts.Discounted() {
			if d.ID == id {
				return d.Product, nil
			}
		}
	}
	started := time.Now()
	product, err := h.Catalog.GetProduct(r.Context(), id)
	observeCatalog("get_product", started, err)
	return product, err
}

func countCartMutation(op, result string) {
	if obs.CartMutationTotal == nil {
		return
	}
	obs.CartMutationTotal.WithLabelValues(op, result).Inc()
}
