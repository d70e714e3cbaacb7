package auth

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/nfauzi/storefront/internal/common"
)

// User represents a safe subset of the user model returned to clients.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type storedUser struct {
	User
	passwordHash string
}

// UserStore keeps demo users in memory, passwords hashed with argon2id.
type UserStore struct {
	Now func() time.Time

	mu      sync.RWMutex
	byEmail map[string]storedUser
}

// NewUserStore returns an empty store.
func NewUserStore() *UserStore {
	return &UserStore{Now: time.Now, byEmail: make(map[string]storedUser)}
}

// Add registers a user, hashing the password.
func (s *UserStore) Add(name, email, password string) (User, error) {
	if strings.TrimSpace(name) == "" {
		return User{}, common.NewAppError("VALIDATION_ERROR", "name is required", http.StatusBadRequest, nil)
	}
	normalized := strings.TrimSpace(strings.ToLower(email))
	if normalized == "" {
		return User{}, common.NewAppError("VALIDATION_ERROR", "email is required", http.StatusBadRequest, nil)
	}
	if len(password) < 8 {
		return User{}, common.NewAppError("VALIDATION_ERROR", "password must be at least 8 characters", http.StatusBadRequest, nil)
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[normalized]; exists {
		return User{}, common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", http.StatusConflict, nil)
	}
	u := User{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Email:     normalized,
		CreatedAt: s.Now().UTC(),
	}
	s.byEmail[normalized] = storedUser{User: u, passwordHash: hash}
	return u, nil
}

// Verify checks the credentials and returns the matching user.
func (s *UserStore) Verify(email, password string) (User, bool) {
	normalized := strings.TrimSpace(strings.ToLower(email))
	s.mu.RLock()
	stored, ok := s.byEmail[normalized]
	s.mu.RUnlock()
	if !ok {
		return User{}, false
	}
	match, err := argon2id.ComparePasswordAndHash(password, stored.passwordHash)
	if err != nil || !match {
		return User{}, false
	}
	return stored.User, true
}
