package discount_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nfauzi/storefront/internal/catalog"
	"github.com/nfauzi/storefront/internal/discount"
	"github.com/nfauzi/storefront/internal/sched"
)

func makeCatalog(n int) []catalog.Product {
	products := make([]catalog.Product, 0, n)
	for i := 1; i <= n; i++ {
		products = append(products, catalog.Product{
			ID:    int64(i),
			Title: "Product",
			Price: decimal.NewFromInt(int64(i * 10)),
		})
	}
	return products
}

func newAllocator(t *testing.T, n int) (*discount.Allocator, *sched.ManualScheduler) {
	t.Helper()
	clock := sched.NewManualClock(time.Unix(0, 0))
	scheduler := sched.NewManualScheduler(clock)
	a := discount.New(discount.Config{
		Cap:       5,
		Percent:   10,
		Interval:  time.Hour,
		Scheduler: scheduler,
	})
	a.SetCatalog(makeCatalog(n))
	t.Cleanup(a.Stop)
	return a, scheduler
}

func TestRefreshNeverExceedsCap(t *testing.T) {
	a, _ := newAllocator(t, 20)
	a.Refresh()
	require.Len(t, a.Discounted(), 5)
}

func TestRefreshSmallCatalogTerminatesEarly(t *testing.T) {
	a, _ := newAllocator(t, 3)
	a.Refresh()
	require.Len(t, a.Discounted(), 3)
}

func TestDiscountPricing(t *testing.T) {
	a, _ := newAllocator(t, 1)
	a.Refresh()

	d := a.Discounted()[0]
	require.Equal(t, "10.00", d.OriginalPrice.StringFixed(2))
	require.Equal(t, "9.00", d.Price.StringFixed(2))
	require.Equal(t, 10, d.DiscountPercent)
	// savings comes from the discounted price, not the original
	require.Equal(t, "0.90", d.Savings.StringFixed(2))
}

func TestDoubleRefreshRestoresOriginals(t *testing.T) {
	a, _ := newAllocator(t, 8)
	a.Refresh()
	a.Refresh()

	discounted := a.Discounted()
	require.Len(t, discounted, 5)
	for _, d := range discounted {
		expected := d.OriginalPrice.Mul(decimal.RequireFromString("0.9")).Round(2)
		require.True(t, d.Price.Equal(expected),
			"price %s must be a single 10%% discount of %s", d.Price, d.OriginalPrice)
	}
}

func TestIntervalTriggersReselection(t *testing.T) {
	a, scheduler := newAllocator(t, 20)
	a.Refresh()
	require.Equal(t, 1, scheduler.Pending())

	scheduler.Advance(time.Hour)
	require.Len(t, a.Discounted(), 5)
	require.Equal(t, 1, scheduler.Pending(), "a fresh timer is armed after reselection")
}

func TestMergedPrefersDiscountedAndKeepsOrdering(t *testing.T) {
	a, _ := newAllocator(t, 10)
	a.Refresh()

	merged := a.Merged()
	require.Len(t, merged, 10)

	discountedIDs := map[int64]decimal.Decimal{}
	for _, d := range a.Discounted() {
		discountedIDs[d.ID] = d.Price
	}
	for i, p := range merged {
		require.EqualValues(t, i+1, p.ID, "catalog ordering must be preserved")
		if price, ok := discountedIDs[p.ID]; ok {
			require.True(t, p.Price.Equal(price), "discounted snapshot preferred")
		}
	}
}

func TestStopCancelsTimer(t *testing.T) {
	a, scheduler := newAllocator(t, 10)
	a.Refresh()
	a.Stop()
	require.Zero(t, scheduler.Pending())
}
