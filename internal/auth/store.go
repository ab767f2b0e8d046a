package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password CreateUser accepts.
const MinPasswordLength = 6

// User is a registered account.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	hash      []byte
}

// Store is an in-memory account store with bcrypt password hashes.
type Store struct {
	mu         sync.RWMutex
	byID       map[string]*User
	byUsername map[string]*User
	cost       int
	now        func() time.Time
}

// NewStore creates an empty store. cost is the bcrypt cost; zero uses
// bcrypt.DefaultCost.
func NewStore(cost int) *Store {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Store{
		byID:       make(map[string]*User),
		byUsername: make(map[string]*User),
		cost:       cost,
		now:        time.Now,
	}
}

// CreateUser registers username with password.
func (s *Store) CreateUser(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("%w: username is required", ErrInvalidCredentials)
	}
	if len(password) < MinPasswordLength {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidCredentials, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(username)
	if _, exists := s.byUsername[key]; exists {
		return User{}, fmt.Errorf("%w: %s", ErrUserExists, username)
	}
	u := &User{ID: uuid.NewString(), Username: username, CreatedAt: s.now(), hash: hash}
	s.byID[u.ID] = u
	s.byUsername[key] = u
	return *u, nil
}

// FindUserByID returns the account with id.
func (s *Store) FindUserByID(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return *u, nil
}

// VerifyCredentials returns the account when password matches. Unknown
// users and wrong passwords are indistinguishable to the caller.
func (s *Store) VerifyCredentials(ctx context.Context, username, password string) (User, error) {
	s.mu.RLock()
	u, ok := s.byUsername[strings.ToLower(strings.TrimSpace(username))]
	s.mu.RUnlock()
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return *u, nil
}
