package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nfauzi/storefront/internal/blob"
	"github.com/nfauzi/storefront/internal/cart"
	"github.com/nfauzi/storefront/internal/order"
)

func newBook(t *testing.T) *order.Book {
	t.Helper()
	b := order.NewBook(blob.NewMemoryStore())
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	b.Now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
	return b
}

func snapshotWithItems() cart.Snapshot {
	return cart.Snapshot{
		LineItems: map[int64]cart.LineItem{
			1: {ProductID: 1, UnitPrice: decimal.NewFromFloat(10), Quantity: 2},
		},
		TotalItems: 2,
		Total:      decimal.NewFromFloat(28),
	}
}

func TestPlaceAndFind(t *testing.T) {
	b := newBook(t)
	ctx := context.Background()

	placed, err := b.Place(ctx, "user-1", snapshotWithItems(),
		order.Payment{ID: "pay-1", Method: "paypal"},
		order.ShippingAddress{City: "Oslo"})
	require.NoError(t, err)
	require.False(t, placed.PlacedAt.IsZero())

	found, err := b.Find(ctx, "user-1", "pay-1")
	require.NoError(t, err)
	require.Equal(t, placed.Payment, found.Payment)
	require.Equal(t, "Oslo", found.ShippingAddress.City)
	require.Equal(t, 2, found.Cart.TotalItems)
	require.True(t, found.Cart.Total.Equal(decimal.NewFromFloat(28)))
	require.True(t, placed.PlacedAt.Equal(found.PlacedAt))
}

func TestPlaceEmptyCartRejected(t *testing.T) {
	b := newBook(t)
	_, err := b.Place(context.Background(), "user-1", cart.Snapshot{}, order.Payment{ID: "pay-1"}, order.ShippingAddress{})
	require.ErrorIs(t, err, order.ErrEmptyCart)
}

func TestPlaceDuplicatePaymentIDRejected(t *testing.T) {
	b := newBook(t)
	ctx := context.Background()
	_, err := b.Place(ctx, "user-1", snapshotWithItems(), order.Payment{ID: "pay-1"}, order.ShippingAddress{})
	require.NoError(t, err)
	_, err = b.Place(ctx, "user-1", snapshotWithItems(), order.Payment{ID: "pay-1"}, order.ShippingAddress{})
	require.ErrorIs(t, err, order.ErrExists)
}

func TestPlaceMissingPaymentID(t *testing.T) {
	b := newBook(t)
	_, err := b.Place(context.Background(), "user-1", snapshotWithItems(), order.Payment{}, order.ShippingAddress{})
	require.ErrorIs(t, err, order.ErrInvalidPayment)
}

func TestFindScopedToOwner(t *testing.T) {
	b := newBook(t)
	ctx := context.Background()
	_, err := b.Place(ctx, "user-1", snapshotWithItems(), order.Payment{ID: "pay-1"}, order.ShippingAddress{})
	require.NoError(t, err)

	_, err = b.Find(ctx, "user-2", "pay-1")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	b := newBook(t)
	ctx := context.Background()
	_, err := b.Place(ctx, "user-1", snapshotWithItems(), order.Payment{ID: "pay-1"}, order.ShippingAddress{})
	require.NoError(t, err)
	_, err = b.Place(ctx, "user-1", snapshotWithItems(), order.Payment{ID: "pay-2"}, order.ShippingAddress{})
	require.NoError(t, err)

	orders, err := b.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, "pay-2", orders[0].Payment.ID)
	require.Equal(t, "pay-1", orders[1].Payment.ID)
}
