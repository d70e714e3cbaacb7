// Package cart holds the session's line items and their derived totals.
// Mutations recompute totals explicitly; there is no reactive magic.
package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nfauzi/storefront/internal/catalog"
	"github.com/nfauzi/storefront/internal/common"
	"github.com/nfauzi/storefront/internal/pricing"
	"github.com/nfauzi/storefront/internal/sched"
	"github.com/nfauzi/storefront/internal/toast"
)

// Shipping methods and their flat rates.
const (
	ShippingStandard = "standard"
	ShippingExpress  = "express"

	// DefaultTaxRatePercent applies to every cart.
	DefaultTaxRatePercent = 15

	// DefaultRemovalDelay is how long a line item stays marked before it is
	// actually deleted.
	DefaultRemovalDelay = 2 * time.Second
)

var shippingRates = map[string]decimal.Decimal{
	ShippingStandard: decimal.NewFromFloat(5.00),
	ShippingExpress:  decimal.NewFromFloat(16.00),
}

// Accepted payment methods.
const (
	PaymentPayPal     = "paypal"
	PaymentCreditCard = "credit-card"
)

var (
	// ErrUnknownShippingMethod is returned for methods outside the rate table.
	ErrUnknownShippingMethod = errors.New("unknown shipping method")
	// ErrUnknownPaymentMethod is returned for unsupported payment methods.
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	// ErrRemovalPending is returned when a removal is requested for an item
	// whose deletion is already scheduled.
	ErrRemovalPending = errors.New("removal already pending for item")
)

// ClearPrompt is the question asked before emptying the cart.
const ClearPrompt = "Are you sure you want to remove all products from the cart?"

// LineItem binds a product to a quantity and its extended price.
type LineItem struct {
	ProductID        int64           `json:"productId"`
	Title            string          `json:"title"`
	Image            string          `json:"image"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	Quantity         int             `json:"quantity"`
	LineTotal        decimal.Decimal `json:"lineTotal"`
	MarkedForRemoval bool            `json:"markedForRemoval"`
}

// Snapshot is a detached view of the cart.
type Snapshot struct {
	LineItems      map[int64]LineItem `json:"lineItems"`
	TotalItems     int                `json:"totalItems"`
	SubTotal       decimal.Decimal    `json:"subTotal"`
	Tax            decimal.Decimal    `json:"tax"`
	ShippingMethod string             `json:"shippingMethod"`
	ShippingRate   decimal.Decimal    `json:"shippingRate"`
	PaymentMethod  string             `json:"paymentMethod"`
	Total          decimal.Decimal    `json:"total"`
}

// Store owns the cart state for one session.
type Store struct {
	Scheduler    sched.Scheduler
	Toaster      *toast.Toaster
	RemovalDelay time.Duration
	TaxRate      decimal.Decimal
	// OnChange, when set, receives a snapshot after every committed mutation.
	// Used by the session layer to serialize state on change.
	OnChange func(Snapshot)

	mu             sync.Mutex
	items          map[int64]*LineItem
	pending        map[int64]sched.Handle
	shippingMethod string
	paymentMethod  string
	summary        pricing.Summary
}

// NewStore returns an empty cart with standard shipping selected.
func NewStore(scheduler sched.Scheduler, toaster *toast.Toaster) *Store {
	s := &Store{
		Scheduler:      scheduler,
		Toaster:        toaster,
		RemovalDelay:   DefaultRemovalDelay,
		TaxRate:        decimal.NewFromInt(DefaultTaxRatePercent),
		items:          make(map[int64]*LineItem),
		pending:        make(map[int64]sched.Handle),
		shippingMethod: ShippingStandard,
		paymentMethod:  PaymentPayPal,
	}
	s.recompute()
	return s
}

// AddItem inserts the product or increments its quantity when already present.
func (s *Store) AddItem(p catalog.Product, qty int) {
	if qty <= 0 {
		qty = 1
	}
	s.mu.Lock()
	if it, ok := s.items[p.ID]; ok {
		it.Quantity += qty
		it.LineTotal = pricing.LineTotal(it.UnitPrice, it.Quantity)
	} else {
		s.items[p.ID] = &LineItem{
			ProductID: p.ID,
			Title:     p.Title,
			Image:     p.Image,
			UnitPrice: p.Price,
			Quantity:  qty,
			LineTotal: pricing.LineTotal(p.Price, qty),
		}
	}
	s.recompute()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.Toaster.Show(toast.MsgAddedToCart)
	s.changed(snap)
}

// RemoveItem marks the item for removal and schedules its deletion. Removing
// an unknown id is a no-op. A second request while the deletion is pending
// returns ErrRemovalPending so the caller can keep its control disabled.
func (s *Store) RemoveItem(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil
	}
	if _, dup := s.pending[id]; dup {
		return ErrRemovalPending
	}
	it.MarkedForRemoval = true
	s.pending[id] = s.Scheduler.AfterFunc(s.removalDelay(), func() { s.finishRemoval(id) })
	return nil
}

func (s *Store) finishRemoval(id int64) {
	s.mu.Lock()
	delete(s.pending, id)
	if _, ok := s.items[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.items, id)
	s.recompute()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.Toaster.Show(toast.MsgItemRemoved)
	s.changed(snap)
}

// ClearAll asks for confirmation and, when granted, empties the cart and
// cancels any pending removals. It reports whether the cart was cleared.
func (s *Store) ClearAll(ctx context.Context, prompter common.Prompter) bool {
	if !prompter.Confirm(ctx, ClearPrompt) {
		return false
	}
	s.mu.Lock()
	for id, h := range s.pending {
		h.Stop()
		delete(s.pending, id)
	}
	s.items = make(map[int64]*LineItem)
	s.recompute()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.Toaster.Show(toast.MsgAllItemsRemoved)
	s.changed(snap)
	return true
}

// SetShippingMethod switches the flat shipping rate and recomputes totals.
func (s *Store) SetShippingMethod(method string) error {
	if _, ok := shippingRates[method]; !ok {
		return ErrUnknownShippingMethod
	}
	s.mu.Lock()
	s.shippingMethod = method
	s.recompute()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.changed(snap)
	return nil
}

// SetPaymentMethod selects how the cart will be paid at checkout.
func (s *Store) SetPaymentMethod(method string) error {
	if method != PaymentPayPal && method != PaymentCreditCard {
		return ErrUnknownPaymentMethod
	}
	s.mu.Lock()
	s.paymentMethod = method
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.changed(snap)
	return nil
}

// Items returns the line items keyed by product id, detached from the store.
// Pending removal marks are carried over.
func (s *Store) Items() map[int64]LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsLocked()
}

// Replace swaps in a new set of line items, dropping any pending removals.
// Used by reconciliation and rehydration; emits no notification.
func (s *Store) Replace(items map[int64]LineItem) {
	s.mu.Lock()
	for id, h := range s.pending {
		h.Stop()
		delete(s.pending, id)
	}
	s.items = make(map[int64]*LineItem, len(items))
	for id, it := range items {
		it.MarkedForRemoval = false
		it.LineTotal = pricing.LineTotal(it.UnitPrice, it.Quantity)
		cp := it
		s.items[id] = &cp
	}
	s.recompute()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.changed(snap)
}

// Snapshot returns the full cart view including derived totals.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Stop cancels all pending removals without deleting their items.
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, h := range s.pending {
		h.Stop()
		delete(s.pending, id)
		if it, ok := s.items[id]; ok {
			it.MarkedForRemoval = false
		}
	}
}

func (s *Store) removalDelay() time.Duration {
	if s.RemovalDelay > 0 {
		return s.RemovalDelay
	}
	return DefaultRemovalDelay
}

func (s *Store) recompute() {
	items := make([]pricing.Item, 0, len(s.items))
	for _, it := range s.items {
		items = append(items, pricing.Item{Qty: it.Quantity, UnitPrice: it.UnitPrice})
	}
	s.summary = pricing.Compute(items, s.TaxRate, shippingRates[s.shippingMethod])
}

func (s *Store) itemsLocked() map[int64]LineItem {
	out := make(map[int64]LineItem, len(s.items))
	for id, it := range s.items {
		out[id] = *it
	}
	return out
}

func (s *Store) snapshotLocked() Snapshot {
	total := 0
	for _, it := range s.items {
		total += it.Quantity
	}
	return Snapshot{
		LineItems:      s.itemsLocked(),
		TotalItems:     total,
		SubTotal:       s.summary.Subtotal,
		Tax:            s.summary.Tax,
		ShippingMethod: s.shippingMethod,
		ShippingRate:   s.summary.Shipping,
		PaymentMethod:  s.paymentMethod,
		Total:          s.summary.Total,
	}
}

func (s *Store) changed(snap Snapshot) {
	if s.OnChange != nil {
		s.OnChange(snap)
	}
}
