// Package order archives placed orders, keyed by owner and payment id.
package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nfauzi/storefront/internal/blob"
	"github.com/nfauzi/storefront/internal/cart"
)

var (
	// ErrEmptyCart rejects orders placed against a cart with no items.
	ErrEmptyCart = errors.New("cannot place order for empty cart")
	// ErrNotFound is returned when the owner has no order under the id.
	ErrNotFound = errors.New("order not found")
	// ErrExists rejects a second order under an already used payment id;
	// orders are immutable once created.
	ErrExists = errors.New("order already exists")
	// ErrInvalidPayment flags a payment with no id to file the order under.
	ErrInvalidPayment = errors.New("invalid payment")
)

// Payment identifies how an order was paid. Its id doubles as the order id.
type Payment struct {
	ID     string `json:"id"`
	Method string `json:"method"`
}

// ShippingAddress is the destination recorded on the order.
type ShippingAddress struct {
	Name       string `json:"name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Order is an immutable archive of a checked-out cart.
type Order struct {
	Payment         Payment         `json:"payment"`
	Cart            cart.Snapshot   `json:"cart"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PlacedAt        time.Time       `json:"placedAt"`
}

// Book stores orders per owner in the blob store.
type Book struct {
	Blobs blob.Store
	Now   func() time.Time
}

// NewBook returns a Book writing through the given blob store.
func NewBook(blobs blob.Store) *Book {
	return &Book{Blobs: blobs, Now: time.Now}
}

// Place archives the cart snapshot under (owner, payment id). The caller is
// responsible for resetting the live cart afterwards.
func (b *Book) Place(ctx context.Context, owner string, snap cart.Snapshot, payment Payment, addr ShippingAddress) (Order, error) {
	if len(snap.LineItems) == 0 {
		return Order{}, ErrEmptyCart
	}
	if payment.ID == "" {
		return Order{}, fmt.Errorf("%w: missing payment id", ErrInvalidPayment)
	}

	orders, err := b.load(ctx, owner)
	if err != nil {
		return Order{}, err
	}
	if _, taken := orders[payment.ID]; taken {
		return Order{}, fmt.Errorf("order %s: %w", payment.ID, ErrExists)
	}

	o := Order{
		Payment:         payment,
		Cart:            snap,
		ShippingAddress: addr,
		PlacedAt:        b.Now().UTC(),
	}
	orders[payment.ID] = o
	if err := blob.SaveJSON(ctx, b.Blobs, blob.Key(owner, "orders"), orders); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Find returns the owner's order under the id.
func (b *Book) Find(ctx context.Context, owner, id string) (Order, error) {
	orders, err := b.load(ctx, owner)
	if err != nil {
		return Order{}, err
	}
	o, ok := orders[id]
	if !ok {
		return Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return o, nil
}

// List returns the owner's orders, newest first.
func (b *Book) List(ctx context.Context, owner string) ([]Order, error) {
	orders, err := b.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.After(out[j].PlacedAt) })
	return out, nil
}

func (b *Book) load(ctx context.Context, owner string) (map[string]Order, error) {
	orders := make(map[string]Order)
	if _, err := blob.LoadJSON(ctx, b.Blobs, blob.Key(owner, "orders"), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
