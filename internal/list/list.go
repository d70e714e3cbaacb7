// Package list implements the wishlist and compare list: a membership set of
// product ids paired with an eventually consistent array of resolved product
// snapshots.
package list

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nfauzi/storefront/internal/catalog"
	"github.com/nfauzi/storefront/internal/discount"
	"github.com/nfauzi/storefront/internal/sched"
	"github.com/nfauzi/storefront/internal/toast"
)

// Kind selects which notifications a store emits.
type Kind string

const (
	// KindWishlist notifies on add only.
	KindWishlist Kind = "wishlist"
	// KindCompare notifies on add and surfaces removal as an error toast.
	KindCompare Kind = "compare"
)

// DefaultRemovalDelay mirrors the cart's two-phase removal window.
const DefaultRemovalDelay = 2 * time.Second

// ErrRemovalPending is returned when a delayed removal is already scheduled
// for the same id.
var ErrRemovalPending = errors.New("removal already pending for item")

// Snapshot is a detached view of the list.
type Snapshot struct {
	Items      map[int64]bool    `json:"items"`
	Products   []catalog.Product `json:"products"`
	TotalItems int               `json:"totalItems"`
}

// Store owns one named list.
type Store struct {
	Kind         Kind
	Scheduler    sched.Scheduler
	Toaster      *toast.Toaster
	RemovalDelay time.Duration
	// OnChange receives a snapshot after every committed mutation.
	OnChange func(Snapshot)

	mu       sync.Mutex
	items    map[int64]bool
	products []catalog.Product
	pending  map[int64]sched.Handle
	marked   map[int64]bool
}

// NewStore returns an empty list of the given kind.
func NewStore(kind Kind, scheduler sched.Scheduler, toaster *toast.Toaster) *Store {
	return &Store{
		Kind:         kind,
		Scheduler:    scheduler,
		Toaster:      toaster,
		RemovalDelay: DefaultRemovalDelay,
		items:        make(map[int64]bool),
		pending:      make(map[int64]sched.Handle),
		marked:       make(map[int64]bool),
	}
}

// Toggle adds the id when absent and removes it when present.
func (s *Store) Toggle(id int64) {
	s.mu.Lock()
	var added bool
	if s.items[id] {
		delete(s.items, id)
		s.dropProductLocked(id)
	} else {
		s.items[id] = true
		added = true
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	switch {
	case added && s.Kind == KindWishlist:
		s.Toaster.Show(toast.MsgAddedToWishlist)
	case added && s.Kind == KindCompare:
		s.Toaster.Show(toast.MsgAddedToCompare)
	case !added && s.Kind == KindCompare:
		s.Toaster.ShowError(toast.MsgRemovedFromCompare)
	}
	s.changed(snap)
}

// RemoveWithDelay marks the id and deletes it after the removal window.
// Unknown ids are a no-op; a duplicate request while pending is rejected.
func (s *Store) RemoveWithDelay(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.items[id] {
		return nil
	}
	if _, dup := s.pending[id]; dup {
		return ErrRemovalPending
	}
	s.marked[id] = true
	s.pending[id] = s.Scheduler.AfterFunc(s.removalDelay(), func() { s.finishRemoval(id) })
	return nil
}

func (s *Store) finishRemoval(id int64) {
	s.mu.Lock()
	delete(s.pending, id)
	delete(s.marked, id)
	if !s.items[id] {
		s.mu.Unlock()
		return
	}
	delete(s.items, id)
	s.dropProductLocked(id)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.Toaster.Show(toast.MsgItemRemoved)
	s.changed(snap)
}

// ClearAll empties the list without confirmation.
func (s *Store) ClearAll() {
	s.mu.Lock()
	for id, h := range s.pending {
		h.Stop()
		delete(s.pending, id)
	}
	s.marked = make(map[int64]bool)
	s.items = make(map[int64]bool)
	s.products = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.Toaster.Show(toast.MsgAllItemsRemoved)
	s.changed(snap)
}

// IsMember reports whether the id is in the list.
func (s *Store) IsMember(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

// Items returns the membership map, detached.
func (s *Store) Items() map[int64]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]bool, len(s.items))
	for id, v := range s.items {
		out[id] = v
	}
	return out
}

// Replace swaps in a new membership set, dropping pending removals and the
// resolved-product array. Used by reconciliation and rehydration.
func (s *Store) Replace(items map[int64]bool) {
	s.mu.Lock()
	for id, h := range s.pending {
		h.Stop()
		delete(s.pending, id)
	}
	s.marked = make(map[int64]bool)
	s.items = make(map[int64]bool, len(items))
	for id, v := range items {
		if v {
			s.items[id] = true
		}
	}
	s.products = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.changed(snap)
}

// Resolve fetches product snapshots for every member id in one batch and
// installs them once all fetches have settled. Ids that left the list while
// the batch was in flight are discarded.
func (s *Store) Resolve(ctx context.Context, client *catalog.Client) error {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products, err := client.FetchMany(ctx, ids)
	if err != nil {
		return err
	}
	s.ResolveFrom(products)
	return nil
}

// ResolveFrom installs an already settled batch of product snapshots,
// discarding any whose id left the list while the batch was in flight.
func (s *Store) ResolveFrom(products []catalog.Product) {
	s.mu.Lock()
	kept := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if s.items[p.ID] {
			kept = append(kept, p)
		}
	}
	s.products = kept
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.changed(snap)
}

// ApplyDiscounts swaps any resolved snapshot whose id is currently discounted
// for the discounted version. Discount-matched items lead the list, then the
// remaining items in their resolved order. Duplicate ids keep their first
// occurrence.
func (s *Store) ApplyDiscounts(discounted []discount.Discounted) {
	byID := make(map[int64]discount.Discounted, len(discounted))
	for _, d := range discounted {
		byID[d.ID] = d
	}

	s.mu.Lock()
	seen := make(map[int64]bool, len(s.products))
	var matched, rest []catalog.Product
	for _, p := range s.products {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		if d, ok := byID[p.ID]; ok {
			matched = append(matched, d.Product)
		} else {
			rest = append(rest, p)
		}
	}
	s.products = append(matched, rest...)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.changed(snap)
}

// Snapshot returns the current list view.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// MarkedForRemoval reports whether a delayed removal is pending for the id.
func (s *Store) MarkedForRemoval(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marked[id]
}

// Stop cancels all pending removals.
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, h := range s.pending {
		h.Stop()
		delete(s.pending, id)
		delete(s.marked, id)
	}
}

func (s *Store) removalDelay() time.Duration {
	if s.RemovalDelay > 0 {
		return s.RemovalDelay
	}
	return DefaultRemovalDelay
}

func (s *Store) dropProductLocked(id int64) {
	kept := s.products[:0]
	for _, p := range s.products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.products = kept
}

func (s *Store) snapshotLocked() Snapshot {
	items := make(map[int64]bool, len(s.items))
	for id, v := range s.items {
		items[id] = v
	}
	return Snapshot{
		Items:      items,
		Products:   catalog.Clone(s.products),
		TotalItems: len(items),
	}
}

func (s *Store) changed(snap Snapshot) {
	if s.OnChange != nil {
		s.OnChange(snap)
	}
}
