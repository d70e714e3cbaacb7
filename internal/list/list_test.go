package list_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nfauzi/storefront/internal/catalog"
	"github.com/nfauzi/storefront/internal/discount"
	"github.com/nfauzi/storefront/internal/list"
	"github.com/nfauzi/storefront/internal/sched"
	"github.com/nfauzi/storefront/internal/toast"
)

func newStore(t *testing.T, kind list.Kind) (*list.Store, *toast.Toaster, *sched.ManualScheduler) {
	t.Helper()
	clock := sched.NewManualClock(time.Unix(1_700_000_000, 0))
	scheduler := sched.NewManualScheduler(clock)
	toaster := toast.New(clock, scheduler, 5*time.Second)
	return list.NewStore(kind, scheduler, toaster), toaster, scheduler
}

func TestToggleAddsAndRemoves(t *testing.T) {
	s, toaster, _ := newStore(t, list.KindWishlist)

	s.Toggle(1)
	require.True(t, s.IsMember(1))
	require.Equal(t, 1, s.Snapshot().TotalItems)
	require.Equal(t, toast.MsgAddedToWishlist, toaster.Snapshot().Message)

	s.Toggle(1)
	require.False(t, s.IsMember(1))
	require.Zero(t, s.Snapshot().TotalItems)
}

func TestCompareToggleNotifications(t *testing.T) {
	s, toaster, _ := newStore(t, list.KindCompare)

	s.Toggle(1)
	snap := toaster.Snapshot()
	require.Equal(t, toast.MsgAddedToCompare, snap.Message)
	require.False(t, snap.IsError)

	s.Toggle(1)
	snap = toaster.Snapshot()
	require.Equal(t, toast.MsgRemovedFromCompare, snap.Message)
	require.True(t, snap.IsError)
}

func TestTwoPhaseRemoval(t *testing.T) {
	s, _, scheduler := newStore(t, list.KindWishlist)
	s.Toggle(1)

	require.NoError(t, s.RemoveWithDelay(1))
	require.True(t, s.MarkedForRemoval(1))
	require.True(t, s.IsMember(1))
	require.ErrorIs(t, s.RemoveWithDelay(1), list.ErrRemovalPending)

	scheduler.Advance(2 * time.Second)
	require.False(t, s.IsMember(1))
	require.False(t, s.MarkedForRemoval(1))
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	s, _, scheduler := newStore(t, list.KindWishlist)
	require.NoError(t, s.RemoveWithDelay(99))
	require.Zero(t, scheduler.Pending())
}

func TestClearAllNeedsNoConfirmation(t *testing.T) {
	s, _, _ := newStore(t, list.KindCompare)
	s.Toggle(1)
	s.Toggle(2)

	s.ClearAll()
	snap := s.Snapshot()
	require.Empty(t, snap.Items)
	require.Empty(t, snap.Products)
	require.Zero(t, snap.TotalItems)
}

func TestReplaceRebuildsMembership(t *testing.T) {
	s, _, _ := newStore(t, list.KindWishlist)
	s.Toggle(1)

	s.Replace(map[int64]bool{2: true, 3: true, 4: false})
	snap := s.Snapshot()
	require.Equal(t, map[int64]bool{2: true, 3: true}, snap.Items)
	require.Equal(t, 2, snap.TotalItems)
}

func TestSnapshotProductsDetached(t *testing.T) {
	s, _, _ := newStore(t, list.KindWishlist)
	s.Toggle(1)
	s.ResolveFrom([]catalog.Product{{ID: 1, Title: "Ring", Price: decimal.NewFromInt(10)}})

	snap := s.Snapshot()
	require.Len(t, snap.Products, 1)
	snap.Products[0].Title = "mutated"
	require.Equal(t, "Ring", s.Snapshot().Products[0].Title)
}

func TestApplyDiscountsPrefersDiscountedAndLeads(t *testing.T) {
	s, _, _ := newStore(t, list.KindCompare)
	s.Toggle(1)
	s.Toggle(2)
	s.Toggle(3)

	s.Replace(map[int64]bool{1: true, 2: true, 3: true})
	// Simulate a settled resolve batch, including a duplicate id.
	plain := func(id int64, price float64) catalog.Product {
		return catalog.Product{ID: id, Title: "P", Price: decimal.NewFromFloat(price)}
	}
	s.ApplyDiscounts(nil)
	require.Empty(t, s.Snapshot().Products)

	s.ResolveFrom([]catalog.Product{plain(1, 10), plain(2, 20), plain(3, 30), plain(2, 20)})

	d := discount.Discounted{
		Product:         catalog.Product{ID: 3, Title: "P", Price: decimal.NewFromFloat(27)},
		OriginalPrice:   decimal.NewFromFloat(30),
		DiscountPercent: 10,
	}
	s.ApplyDiscounts([]discount.Discounted{d})

	products := s.Snapshot().Products
	require.Len(t, products, 3)
	require.Equal(t, int64(3), products[0].ID)
	require.True(t, products[0].Price.Equal(decimal.NewFromFloat(27)))
	require.Equal(t, int64(1), products[1].ID)
	require.Equal(t, int64(2), products[2].ID)
}
