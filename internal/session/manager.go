package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nfauzi/storefront/internal/blob"
	"github.com/nfauzi/storefront/internal/cart"
	"github.com/nfauzi/storefront/internal/events"
	"github.com/nfauzi/storefront/internal/list"
	"github.com/nfauzi/storefront/internal/sched"
	"github.com/nfauzi/storefront/internal/toast"
)

const persistTimeout = 3 * time.Second

// Manager creates and caches sessions, wiring each store's persistence hook
// into the blob store.
type Manager struct {
	Blobs     blob.Store
	Clock     sched.Clock
	Scheduler sched.Scheduler
	Bus       *events.Bus
	Log       zerolog.Logger

	// ToastDelay and RemovalDelay override the store defaults when positive.
	ToastDelay   time.Duration
	RemovalDelay time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager wires a manager over the given collaborators.
func NewManager(blobs blob.Store, clock sched.Clock, scheduler sched.Scheduler, bus *events.Bus, log zerolog.Logger) *Manager {
	return &Manager{
		Blobs:     blobs,
		Clock:     clock,
		Scheduler: scheduler,
		Bus:       bus,
		Log:       log,
		sessions:  make(map[string]*Session),
	}
}

// Get returns the session for id, creating and rehydrating it when unknown.
// An empty id allocates a fresh session.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		s.touch(m.Clock.Now())
		return s, nil
	}
	m.mu.Unlock()

	s, err := m.build(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		// Lost the race; keep the first one and drop ours.
		s.Cart.Stop()
		s.Wishlist.Stop()
		s.Compare.Stop()
		return existing, nil
	}
	m.sessions[id] = s
	return s, nil
}

func (m *Manager) build(ctx context.Context, id string) (*Session, error) {
	toaster := toast.New(m.Clock, m.Scheduler, m.ToastDelay)

	s := &Session{
		ID:       id,
		Toaster:  toaster,
		mgr:      m,
		lastSeen: m.Clock.Now(),
	}
	s.Cart = cart.NewStore(m.Scheduler, toaster)
	s.Wishlist = list.NewStore(list.KindWishlist, m.Scheduler, toaster)
	s.Compare = list.NewStore(list.KindCompare, m.Scheduler, toaster)
	if m.RemovalDelay > 0 {
		s.Cart.RemovalDelay = m.RemovalDelay
		s.Wishlist.RemovalDelay = m.RemovalDelay
		s.Compare.RemovalDelay = m.RemovalDelay
	}

	if err := m.rehydrate(ctx, s); err != nil {
		return nil, err
	}

	s.Cart.OnChange = func(snap cart.Snapshot) {
		m.persist(s.owner(), storeCart, snap.LineItems)
	}
	s.Wishlist.OnChange = func(snap list.Snapshot) {
		m.persist(s.owner(), storeWishlist, snap.Items)
	}
	s.Compare.OnChange = func(snap list.Snapshot) {
		m.persist(s.owner(), storeCompare, snap.Items)
	}
	return s, nil
}

func (m *Manager) rehydrate(ctx context.Context, s *Session) error {
	items := make(map[int64]cart.LineItem)
	found, err := blob.LoadJSON(ctx, m.Blobs, blob.Key(s.ID, storeCart), &items)
	if err != nil {
		return err
	}
	if found {
		s.Cart.Replace(items)
	}

	for store, target := range map[string]*list.Store{
		storeWishlist: s.Wishlist,
		storeCompare:  s.Compare,
	} {
		members := make(map[int64]bool)
		found, err := blob.LoadJSON(ctx, m.Blobs, blob.Key(s.ID, store), &members)
		if err != nil {
			return err
		}
		if found {
			target.Replace(members)
		}
	}
	return nil
}

// persist serializes one store's state. Called from mutation paths and timer
// callbacks, so it carries its own timeout instead of a request context.
func (m *Manager) persist(owner, store string, state any) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := blob.SaveJSON(ctx, m.Blobs, blob.Key(owner, store), state); err != nil {
		m.Log.Error().Err(err).Str("owner", owner).Str("store", store).Msg("persist store")
	}
}

// Prune drops sessions idle for longer than maxIdle and stops their pending
// removals. It returns how many sessions were dropped.
func (m *Manager) Prune(maxIdle time.Duration) int {
	cutoff := m.Clock.Now().Add(-maxIdle)
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := 0
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			s.Cart.Stop()
			s.Wishlist.Stop()
			s.Compare.Stop()
			s.Toaster.Close()
			delete(m.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Len reports how many sessions are live.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
