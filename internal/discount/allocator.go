// Package discount assigns temporary promotional pricing to a bounded random
// subset of the catalog and refreshes the selection on a fixed interval.
package discount

import (
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nfauzi/storefront/internal/catalog"
	"github.com/nfauzi/storefront/internal/sched"
)

// Discounted is a product snapshot annotated with promotional pricing. The
// embedded Product carries the discounted price.
type Discounted struct {
	catalog.Product
	OriginalPrice   decimal.Decimal `json:"originalPrice"`
	DiscountPercent int             `json:"discountPercent"`
	Savings         decimal.Decimal `json:"savings"`
}

// Config groups Allocator construction parameters.
type Config struct {
	// Cap bounds how many products carry a discount at once.
	Cap int
	// Percent is the discount applied to selected products.
	Percent int
	// Interval is how long a selection stays active before reselection.
	Interval time.Duration
	// Scheduler arms the reselection timer.
	Scheduler sched.Scheduler
	// Intn supplies random indices; defaults to math/rand.
	Intn func(n int) int
	// OnRefresh, when set, observes each completed reselection.
	OnRefresh func(count int)
}

// Allocator owns the discounted-product selection for a catalog snapshot.
type Allocator struct {
	mu         sync.Mutex
	cfg        Config
	catalog    []catalog.Product
	discounted []Discounted
	originals  map[int64]decimal.Decimal
	handle     sched.Handle
}

// New constructs an allocator. Zero-valued config fields fall back to the
// storefront defaults: 5 concurrent discounts of 10% refreshed hourly.
func New(cfg Config) *Allocator {
	if cfg.Cap <= 0 {
		cfg.Cap = 5
	}
	if cfg.Percent <= 0 {
		cfg.Percent = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = sched.TimerScheduler{}
	}
	if cfg.Intn == nil {
		cfg.Intn = rand.Intn
	}
	return &Allocator{
		cfg:       cfg,
		originals: make(map[int64]decimal.Decimal),
	}
}

// SetCatalog replaces the catalog snapshot the allocator selects from.
// Existing discounts are dropped; callers normally follow with Refresh.
func (a *Allocator) SetCatalog(products []catalog.Product) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.catalog = catalog.Clone(products)
	a.discounted = nil
	a.originals = make(map[int64]decimal.Decimal)
}

// Refresh reselects the discounted subset. Any pending reselection timer is
// cancelled first and every currently discounted product has its price
// restored to the recorded original, so discounts never compound. A new
// timer is armed to repeat the reselection after the configured interval.
func (a *Allocator) Refresh() {
	a.mu.Lock()

	if a.handle != nil {
		a.handle.Stop()
		a.handle = nil
		for i := range a.catalog {
			if original, ok := a.originals[a.catalog[i].ID]; ok {
				a.catalog[i].Price = original
			}
		}
		a.discounted = nil
		a.originals = make(map[int64]decimal.Decimal)
	}

	factor := decimal.NewFromInt(int64(100 - a.cfg.Percent)).Div(decimal.NewFromInt(100))
	for len(a.discounted) < a.cfg.Cap {
		candidates := make([]int, 0, len(a.catalog))
		for i, p := range a.catalog {
			if _, taken := a.originals[p.ID]; !taken {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) == 0 {
			break
		}
		idx := candidates[a.cfg.Intn(len(candidates))]
		product := a.catalog[idx]

		original := product.Price
		discountedPrice := original.Mul(factor).Round(2)
		// savings is derived from the already-discounted price; the formula is
		// kept as an explicit contract with the storefront UI.
		savings := discountedPrice.Sub(discountedPrice.Mul(factor)).Round(2)

		a.originals[product.ID] = original
		a.catalog[idx].Price = discountedPrice

		annotated := product
		annotated.Price = discountedPrice
		a.discounted = append(a.discounted, Discounted{
			Product:         annotated,
			OriginalPrice:   original,
			DiscountPercent: a.cfg.Percent,
			Savings:         savings,
		})
	}

	a.handle = a.cfg.Scheduler.AfterFunc(a.cfg.Interval, a.Refresh)
	count := len(a.discounted)
	onRefresh := a.cfg.OnRefresh
	a.mu.Unlock()

	if onRefresh != nil {
		onRefresh(count)
	}
}

// Discounted returns a copy of the current promotional selection.
func (a *Allocator) Discounted() []Discounted {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Discounted, len(a.discounted))
	copy(out, a.discounted)
	return out
}

// Merged builds the display list by walking catalog ids in ascending order,
// preferring the discounted snapshot when one exists and skipping ids absent
// from both sets.
func (a *Allocator) Merged() []catalog.Product {
	a.mu.Lock()
	defer a.mu.Unlock()

	byID := make(map[int64]catalog.Product, len(a.catalog))
	var maxID int64
	for _, p := range a.catalog {
		byID[p.ID] = p
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	discountedByID := make(map[int64]catalog.Product, len(a.discounted))
	for _, d := range a.discounted {
		discountedByID[d.ID] = d.Product
	}

	out := make([]catalog.Product, 0, len(a.catalog))
	for id := int64(1); id <= maxID; id++ {
		if p, ok := discountedByID[id]; ok {
			out = append(out, p)
			continue
		}
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Stop cancels any pending reselection timer.
func (a *Allocator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handle != nil {
		a.handle.Stop()
		a.handle = nil
	}
}
