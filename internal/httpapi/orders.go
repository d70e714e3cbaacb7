package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/nfauzi/storefront/internal/common"
	"github.com/nfauzi/storefront/internal/obs"
	"github.com/nfauzi/storefront/internal/order"
	"github.com/nfauzi/storefront/internal/session"
)

// OrdersHandler places and retrieves orders for the logged-in owner.
type OrdersHandler struct {
	Book     *order.Book
	Validate *validator.Validate
}

type placeOrderPayload struct {
	Payment struct {
		ID     string `json:"id" validate:"required"`
		Method string `json:"method"`
	} `json:"payment" validate:"required"`
	ShippingAddress struct {
		Name       string `json:"name" validate:"required"`
		Street     string `json:"street" validate:"required"`
		City       string `json:"city" validate:"required"`
		PostalCode string `json:"postalCode" validate:"required"`
		Country    string `json:"country" validate:"required"`
	} `json:"shippingAddress" validate:"required"`
}

// Place archives the cart under the payment id and resets it.
func (h *OrdersHandler) Place(w http.ResponseWriter, r *http.Request) {
	if h.Book == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order book not configured", nil)
		return
	}
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	var payload placeOrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			countOrderPlaced("invalid")
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid order payload", err.Error())
			return
		}
	}

	placed, err := sess.PlaceOrder(r.Context(), h.Book,
		order.Payment{ID: payload.Payment.ID, Method: payload.Payment.Method},
		order.ShippingAddress{
			Name:       payload.ShippingAddress.Name,
			Street:     payload.ShippingAddress.Street,
			City:       payload.ShippingAddress.City,
			PostalCode: payload.ShippingAddress.PostalCode,
			Country:    payload.ShippingAddress.Country,
		})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotAuthenticated):
			countOrderPlaced("unauthorized")
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required to place an order", nil)
		case errors.Is(err, order.ErrEmptyCart):
			countOrderPlaced("empty_cart")
			common.JSONError(w, http.StatusBadRequest, "EMPTY_CART", "cart is empty", nil)
		case errors.Is(err, order.ErrInvalidPayment):
			countOrderPlaced("invalid")
			common.JSONError(w, http.StatusBadRequest, "INVALID_PAYMENT", err.Error(), nil)
		case errors.Is(err, order.ErrExists):
			countOrderPlaced("duplicate")
			common.JSONError(w, http.StatusConflict, "ORDER_EXISTS", "an order with this payment id already exists", nil)
		default:
			countOrderPlaced("error")
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to place order", nil)
		}
		return
	}
	countOrderPlaced("ok")
	common.JSONData(w, http.StatusCreated, placed)
}

// Get returns one of the owner's orders by payment id.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Book == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order book not configured", nil)
		return
	}
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	owner := sess.OwnerID()
	if owner == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required", nil)
		return
	}
	found, err := h.Book.Find(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load order", nil)
		return
	}
	common.JSONData(w, http.StatusOK, found)
}

// List returns the owner's orders, newest first.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Book == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order book not configured", nil)
		return
	}
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	owner := sess.OwnerID()
	if owner == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required", nil)
		return
	}
	orders, err := h.Book.List(r.Context(), owner)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load orders", nil)
		return
	}
	common.JSONData(w, http.StatusOK, orders)
}

func countOrderPlaced(result string) {
	if obs.OrderPlacedTotal == nil {
		return
	}
	obs.OrderPlacedTotal.WithLabelValues(result).Inc()
}
