package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nfauzi/storefront/internal/catalog"
	"github.com/nfauzi/storefront/internal/common"
	"github.com/nfauzi/storefront/internal/discount"
	"github.com/nfauzi/storefront/internal/list"
	"github.com/nfauzi/storefront/internal/obs"
	"github.com/nfauzi/storefront/internal/session"
)

// ListsHandler serves one named list. Two instances are mounted, one per kind.
type ListsHandler struct {
	Kind      list.Kind
	Catalog   *catalog.Client
	Discounts *discount.Allocator
}

// Get resolves list members against the upstream catalog, reconciles them
// with the current discounts and returns the snapshot. A fetch failure leaves
// the previously resolved products in place.
func (h *ListsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	store := h.store(sess)

	started := time.Now()
	err := store.Resolve(r.Context(), h.Catalog)
	observeCatalog("resolve_list", started, err)
	if err != nil {
		sess.RecordError(common.ErrTypeNetwork, err.Error())
		common.JSONError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "catalog unavailable", nil)
		return
	}
	if h.Discounts != nil {
		store.ApplyDiscounts(h.Discounts.Discounted())
	}
	common.JSONData(w, http.StatusOK, store.Snapshot())
}

// Toggle flips membership for the given product.
func (h *ListsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	var payload struct {
		ProductID int64 `json:"productId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if payload.ProductID <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return
	}
	switch h.Kind {
	case list.KindCompare:
		sess.ToggleCompare(r.Context(), payload.ProductID)
	default:
		sess.ToggleWishlist(r.Context(), payload.ProductID)
	}
	countListMutation(h.Kind, "toggle")
	common.JSONData(w, http.StatusOK, h.store(sess).Snapshot())
}

// RemoveItem schedules the delayed removal of a member.
func (h *ListsHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	store := h.store(sess)
	if err := store.RemoveWithDelay(id); err != nil {
		if errors.Is(err, list.ErrRemovalPending) {
			common.JSONError(w, http.StatusConflict, "REMOVAL_PENDING", "removal already pending for item", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to remove item", nil)
		return
	}
	countListMutation(h.Kind, "remove")
	common.JSONData(w, http.StatusAccepted, store.Snapshot())
}

// Clear empties the list. No confirmation, unlike the cart.
func (h *ListsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	store := h.store(sess)
	store.ClearAll()
	countListMutation(h.Kind, "clear")
	common.JSONData(w, http.StatusOK, store.Snapshot())
}

func (h *ListsHandler) store(sess *session.Session) *list.Store {
	if h.Kind == list.KindCompare {
		return sess.Compare
	}
	return sess.Wishlist
}

func countListMutation(kind list.Kind, op string) {
	if obs.ListMutationTotal == nil {
		return
	}
	obs.ListMutationTotal.WithLabelValues(string(kind), op).Inc()
}
