// File: internal/authstate/store.go

// Package authstate keeps the client's view of who is signed in and the ID token
// to present to the backend.
package authstate

import (
	"context"
	"sync"

	"authgate/internal/identity"

	"go.uber.org/zap"
)

// State is a snapshot of the authentication state.
// Loading is true only until the provider reports for the first time.
type State struct {
	User    *identity.User
	Token   string
	Loading bool
}

// SignedIn reports whether the snapshot carries a user.
func (s State) SignedIn() bool {
	return s.User != nil
}

// Store mirrors the provider's auth state. Safe for concurrent use.
type Store struct {
	provider identity.Provider
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	generation uint64
	closed     bool

	ready       chan struct{}
	readyOnce   sync.Once
	changes     chan State
	unsubscribe func()
}

// New creates a store and subscribes it to provider notifications.
func New(provider identity.Provider, logger *zap.Logger) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		provider: provider,
		logger:   logger.Named("AuthState"),
		ctx:      ctx,
		cancel:   cancel,
		state:    State{Loading: true},
		ready:    make(chan struct{}),
		changes:  make(chan State, 1),
	}
	s.unsubscribe = provider.OnAuthStateChanged(s.onAuthStateChanged)
	return s
}

// Current returns the latest snapshot.
func (s *Store) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready is closed once the first notification has been resolved.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Changes delivers published snapshots. Only the most recent undelivered
// snapshot is kept, so slow readers see the latest state rather than every step.
func (s *Store) Changes() <-chan State {
	return s.changes
}

// Wait blocks until the store is ready and returns the current snapshot.
func (s *Store) Wait(ctx context.Context) (State, error) {
	select {
	case <-s.ready:
		return s.Current(), nil
	case <-ctx.Done():
		return State{}, ctx.Err()
	}
}

// Close unsubscribes from the provider. Token fetches still in flight are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Store) onAuthStateChanged(u *identity.User) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.generation++
	gen := s.generation
	if u == nil {
		s.publishLocked(State{})
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	go s.resolveToken(gen, u)
}

func (s *Store) resolveToken(gen uint64, u *identity.User) {
	token, err := s.provider.IDToken(s.ctx, u)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.generation {
		return
	}
	if err != nil {
		s.logger.Warn("Failed to fetch ID token, treating user as signed out", zap.String("uid", u.UID), zap.Error(err))
		s.publishLocked(State{})
		return
	}
	s.publishLocked(State{User: u, Token: token})
}

// publishLocked must be called with s.mu held.
func (s *Store) publishLocked(next State) {
	s.state = next
	s.readyOnce.Do(func() { close(s.ready) })

	select {
	case <-s.changes:
	default:
	}
	s.changes <- next
}
