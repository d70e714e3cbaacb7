// Package toast implements the user-visible notification slot: one message at
// a time, auto-hidden after a fixed delay, with a progress percentage the
// presentation layer renders as a countdown bar.
package toast

import (
	"sync"
	"time"

	"github.com/nfauzi/storefront/internal/sched"
)

// Messages surfaced by the storefront stores.
const (
	MsgAddedToCart        = "Product added to cart!"
	MsgItemRemoved        = "Item removed successfully!"
	MsgAllItemsRemoved    = "All items removed successfully!"
	MsgAddedToWishlist    = "Product added to wishlist!"
	MsgAddedToCompare     = "Product added to compare list!"
	// MsgRemovedFromCompare keeps the storefront's historical wording.
	MsgRemovedFromCompare = "Product removed to compare list!"
	MsgCartsMerged        = "Your carts have been merged!"
	MsgUsingGuestCart     = "You are now using your guest cart."
	MsgUsingSavedCart     = "You are now using your saved cart."
)

// Toast is a snapshot of the notification slot.
type Toast struct {
	Visible bool   `json:"visible"`
	Message string `json:"message"`
	IsError bool   `json:"isError"`
	Percent int    `json:"percent"`
}

// Toaster owns a single visible toast. Showing a new message while one is
// visible replaces it and restarts the countdown.
type Toaster struct {
	mu        sync.Mutex
	clock     sched.Clock
	scheduler sched.Scheduler
	delay     time.Duration

	visible   bool
	message   string
	isError   bool
	startedAt time.Time
	handle    sched.Handle
}

// New constructs a toaster hiding messages after delay.
func New(clock sched.Clock, scheduler sched.Scheduler, delay time.Duration) *Toaster {
	if delay <= 0 {
		delay = 5 * time.Second
	}
	return &Toaster{clock: clock, scheduler: scheduler, delay: delay}
}

// Show displays an informational toast.
func (t *Toaster) Show(message string) { t.show(message, false) }

// ShowError displays an error toast.
func (t *Toaster) ShowError(message string) { t.show(message, true) }

func (t *Toaster) show(message string, isError bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handle != nil {
		t.handle.Stop()
	}
	t.visible = true
	t.message = message
	t.isError = isError
	t.startedAt = t.clock.Now()
	t.handle = t.scheduler.AfterFunc(t.delay, t.hide)
}

func (t *Toaster) hide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.visible = false
	t.handle = nil
}

// Close dismisses the toast immediately and cancels its countdown.
func (t *Toaster) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handle != nil {
		t.handle.Stop()
		t.handle = nil
	}
	t.visible = false
}

// Snapshot reports the current slot including the countdown progress, a value
// from 0 to 100 derived from elapsed time against the configured delay.
func (t *Toaster) Snapshot() Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.visible {
		return Toast{}
	}
	elapsed := t.clock.Now().Sub(t.startedAt)
	percent := int(elapsed * 100 / t.delay)
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	return Toast{Visible: true, Message: t.message, IsError: t.isError, Percent: percent}
}
