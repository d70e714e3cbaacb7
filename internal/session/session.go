// Package session ties one visitor's cart, wishlist, compare list, toast slot
// and error slot together, persisting state on change and reconciling guest
// state with saved state at login.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nfauzi/storefront/internal/blob"
	"github.com/nfauzi/storefront/internal/cart"
	"github.com/nfauzi/storefront/internal/catalog"
	"github.com/nfauzi/storefront/internal/common"
	"github.com/nfauzi/storefront/internal/events"
	"github.com/nfauzi/storefront/internal/list"
	"github.com/nfauzi/storefront/internal/order"
	"github.com/nfauzi/storefront/internal/reconcile"
	"github.com/nfauzi/storefront/internal/toast"
)

// Store names used as blob keys.
const (
	storeCart     = "cart"
	storeWishlist = "wishlist"
	storeCompare  = "compare"
)

// ErrNotAuthenticated is returned for operations that need a logged-in owner.
var ErrNotAuthenticated = errors.New("session not authenticated")

// ErrorRecord is the observable error slot's content.
type ErrorRecord struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Session holds all storefront state for one visitor.
type Session struct {
	ID       string
	Cart     *cart.Store
	Wishlist *list.Store
	Compare  *list.Store
	Toaster  *toast.Toaster

	mgr *Manager

	mu       sync.Mutex
	ownerID  string
	lastSeen time.Time
	errSlot  *ErrorRecord
}

// OwnerID returns the authenticated user id, or empty for a guest.
func (s *Session) OwnerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownerID
}

// owner is the key state is persisted under: the user when logged in,
// otherwise the session itself.
func (s *Session) owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownerID != "" {
		return s.ownerID
	}
	return s.ID
}

// RecordError fills the observable error slot, replacing any prior entry.
func (s *Session) RecordError(errType, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errSlot = &ErrorRecord{Type: errType, Message: message, At: s.mgr.Clock.Now().UTC()}
}

// ClearError empties the slot.
func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errSlot = nil
}

// CurrentError returns the slot content and whether it is occupied.
func (s *Session) CurrentError() (ErrorRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errSlot == nil {
		return ErrorRecord{}, false
	}
	return *s.errSlot, true
}

// AddToCart adds the product and emits a cart event.
func (s *Session) AddToCart(ctx context.Context, p catalog.Product, qty int) {
	s.Cart.AddItem(p, qty)
	s.emit(ctx, events.TopicCartItemAdded, map[string]any{"productId": p.ID, "quantity": qty})
}

// RemoveFromCart starts the two-phase removal for the item.
func (s *Session) RemoveFromCart(ctx context.Context, productID int64) error {
	if err := s.Cart.RemoveItem(productID); err != nil {
		return err
	}
	s.emit(ctx, events.TopicCartItemRemoved, map[string]any{"productId": productID})
	return nil
}

// ClearCart empties the cart after the prompter confirms.
func (s *Session) ClearCart(ctx context.Context, prompter common.Prompter) bool {
	cleared := s.Cart.ClearAll(ctx, prompter)
	if cleared {
		s.emit(ctx, events.TopicCartCleared, nil)
	}
	return cleared
}

// ToggleWishlist flips wishlist membership for the product.
func (s *Session) ToggleWishlist(ctx context.Context, productID int64) {
	s.Wishlist.Toggle(productID)
	s.emit(ctx, events.TopicListUpdated, map[string]any{"list": storeWishlist, "productId": productID})
}

// ToggleCompare flips compare-list membership for the product.
func (s *Session) ToggleCompare(ctx context.Context, productID int64) {
	s.Compare.Toggle(productID)
	s.emit(ctx, events.TopicListUpdated, map[string]any{"list": storeCompare, "productId": productID})
}

// Login binds the session to a user and reconciles guest state with whatever
// was saved for that user. The cart reconciliation surfaces a toast when both
// sides held items; list reconciliations are silent.
func (s *Session) Login(ctx context.Context, userID string, prompter common.Prompter) error {
	if userID == "" {
		return ErrNotAuthenticated
	}

	guestCart := s.Cart.Items()
	savedCart := make(map[int64]cart.LineItem)
	if _, err := blob.LoadJSON(ctx, s.mgr.Blobs, blob.Key(userID, storeCart), &savedCart); err != nil {
		return err
	}
	guestWish := s.Wishlist.Items()
	savedWish := make(map[int64]bool)
	if _, err := blob.LoadJSON(ctx, s.mgr.Blobs, blob.Key(userID, storeWishlist), &savedWish); err != nil {
		return err
	}
	guestCompare := s.Compare.Items()
	savedCompare := make(map[int64]bool)
	if _, err := blob.LoadJSON(ctx, s.mgr.Blobs, blob.Key(userID, storeCompare), &savedCompare); err != nil {
		return err
	}

	s.mu.Lock()
	s.ownerID = userID
	s.mu.Unlock()

	mergedCart, outcome := reconcile.Maps(ctx, "cart", guestCart, savedCart, prompter)
	s.Cart.Replace(mergedCart)
	if len(guestCart) > 0 && len(savedCart) > 0 {
		switch outcome {
		case reconcile.OutcomeMerged:
			s.Toaster.Show(toast.MsgCartsMerged)
		case reconcile.OutcomeAdoptedGuest:
			s.Toaster.Show(toast.MsgUsingGuestCart)
		case reconcile.OutcomeAdoptedSaved:
			s.Toaster.Show(toast.MsgUsingSavedCart)
		}
	}

	mergedWish, _ := reconcile.Maps(ctx, "wishlist", guestWish, savedWish, prompter)
	s.Wishlist.Replace(mergedWish)
	mergedCompare, _ := reconcile.Maps(ctx, "compare list", guestCompare, savedCompare, prompter)
	s.Compare.Replace(mergedCompare)

	s.emit(ctx, events.TopicCartReconciled, map[string]any{"outcome": string(outcome)})
	return nil
}

// Logout detaches the session from its user. Saved state stays persisted
// under the user; the session continues with fresh guest stores.
func (s *Session) Logout() {
	s.mu.Lock()
	s.ownerID = ""
	s.mu.Unlock()

	s.Cart.Replace(nil)
	s.Wishlist.Replace(nil)
	s.Compare.Replace(nil)
	s.ClearError()
}

// PlaceOrder archives the cart as an order, resets the cart and removes the
// owner's persisted cart. Requires a logged-in owner.
func (s *Session) PlaceOrder(ctx context.Context, book *order.Book, payment order.Payment, addr order.ShippingAddress) (order.Order, error) {
	owner := s.OwnerID()
	if owner == "" {
		return order.Order{}, ErrNotAuthenticated
	}
	placed, err := book.Place(ctx, owner, s.Cart.Snapshot(), payment, addr)
	if err != nil {
		return order.Order{}, err
	}

	s.Cart.Replace(nil)
	if err := s.mgr.Blobs.Delete(ctx, blob.Key(owner, storeCart)); err != nil {
		s.mgr.Log.Warn().Err(err).Str("owner", owner).Msg("delete persisted cart")
	}
	s.Toaster.Close()
	s.emit(ctx, events.TopicOrderPlaced, map[string]any{"paymentId": payment.ID})
	return placed, nil
}

func (s *Session) emit(ctx context.Context, topic string, payload any) {
	if s.mgr.Bus == nil {
		return
	}
	if _, err := s.mgr.Bus.Emit(ctx, topic, s.owner(), payload); err != nil {
		s.mgr.Log.Warn().Err(err).Str("topic", topic).Msg("emit event")
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
