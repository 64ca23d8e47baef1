// Package profile fetches and caches the role record of the signed-in user.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nfrund/storefront/internal/domain"
)

// Lookup keeps a single current-profile slot for one visitor. The slot is
// only written by a successful fetch.
type Lookup struct {
	repo domain.ProfileRepository

	mu      sync.RWMutex
	current *domain.Profile
}

// NewLookup creates a lookup with an empty slot.
func NewLookup(repo domain.ProfileRepository) *Lookup {
	return &Lookup{repo: repo}
}

// Fetch reads the profile for userID. It returns domain.ErrNotFound when no
// profile exists and an error wrapping domain.ErrUnavailable when the
// backend could not answer. The slot keeps its previous value on error.
func (l *Lookup) Fetch(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := l.repo.FindByID(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, domain.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("%w: fetch profile %s: %v", domain.ErrUnavailable, userID, err)
	case p == nil:
		return nil, domain.ErrNotFound
	}

	l.mu.Lock()
	l.current = p
	l.mu.Unlock()
	return p, nil
}

// GetProfile is Fetch for callers that only care about presence: errors are
// logged and reported as nil.
func (l *Lookup) GetProfile(ctx context.Context, userID string) *domain.Profile {
	p, err := l.Fetch(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.DebugContext(ctx, "No profile for user", "user_id", userID)
		} else {
			slog.ErrorContext(ctx, "Failed to fetch profile", "user_id", userID, "error", err)
		}
		return nil
	}
	return p
}

// Current returns the cached profile or nil.
func (l *Lookup) Current() *domain.Profile {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// IsAdmin reports whether the cached profile has the admin role.
func (l *Lookup) IsAdmin() bool {
	p := l.Current()
	return p != nil && p.Role.IsAdmin()
}

// CreateProfile inserts a user-role profile for a freshly registered account.
func (l *Lookup) CreateProfile(ctx context.Context, userID, name string) (bool, error) {
	p := &domain.Profile{
		ID:        userID,
		Role:      domain.RoleUser,
		CreatedAt: time.Now().UTC(),
	}
	if name != "" {
		p.Name = &name
	}

	if err := l.repo.Create(ctx, p); err != nil {
		slog.ErrorContext(ctx, "Failed to create profile", "user_id", userID, "error", err)
		return false, err
	}
	return true, nil
}

// Clear empties the slot. Used when the visitor signs out.
func (l *Lookup) Clear() {
	l.mu.Lock()
	l.current = nil
	l.mu.Unlock()
}
