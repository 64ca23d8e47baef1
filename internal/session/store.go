// Package session keeps the signed-in state of one visitor in sync with the
// auth provider.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nfrund/storefront/internal/auth"
)

// ErrWaitTimeout is returned by Wait when the store did not become ready in time.
var ErrWaitTimeout = errors.New("session store not ready")

// Provider is the part of auth.Client the store depends on.
type Provider interface {
	GetSession(ctx context.Context) (*auth.Session, error)
	OnAuthStateChange(listener auth.Listener) (func(), error)
}

// Store holds the current user, the authenticated flag and the readiness
// signal. Fields change only through auth-state events.
type Store struct {
	provider Provider

	mu            sync.RWMutex
	user          *auth.User
	authenticated bool

	ready     chan struct{}
	readyOnce sync.Once

	startOnce   sync.Once
	unsubscribe func()
	closed      bool
}

// NewStore creates a store in the loading state.
func NewStore(provider Provider) *Store {
	return &Store{
		provider: provider,
		ready:    make(chan struct{}),
	}
}

// Start queries the current session, subscribes to auth-state changes and
// marks the store ready. A failed query is logged and treated as no session.
// Only the first call has an effect.
func (s *Store) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		defer s.markReady()

		sess, err := s.provider.GetSession(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load initial session", "error", err)
			sess = nil
		}
		s.apply(auth.EventInitialSession, sess)

		unsubscribe, err := s.provider.OnAuthStateChange(s.apply)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to subscribe to auth state changes", "error", err)
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			unsubscribe()
			return
		}
		s.unsubscribe = unsubscribe
		s.mu.Unlock()
	})
}

func (s *Store) apply(event auth.Event, sess *auth.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if sess == nil {
		s.user = nil
		s.authenticated = false
	} else {
		user := sess.User
		s.user = &user
		s.authenticated = true
	}
	slog.Debug("Auth state changed", "event", event, "authenticated", s.authenticated)
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Ready returns a channel closed once the initial session query resolved.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Loading reports whether the initial session query is still pending.
func (s *Store) Loading() bool {
	select {
	case <-s.ready:
		return false
	default:
		return true
	}
}

// Wait blocks until the store is ready. A timeout of zero waits without a
// bound, leaving ctx as the only way out.
func (s *Store) Wait(ctx context.Context, timeout time.Duration) error {
	select {
	case <-s.ready:
		return nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-s.ready:
		return nil
	case <-expired:
		return ErrWaitTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CurrentUser returns a copy of the signed-in user or nil.
func (s *Store) CurrentUser() *auth.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

// Authenticated reports whether a session is present.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Close ends the auth-state subscription and clears the user. A closed
// store ignores later events.
func (s *Store) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.closed = true
	s.user = nil
	s.authenticated = false
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
