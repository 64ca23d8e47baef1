package domain

import (
	"context"
	"time"
)

// Profile is the role record associated with an authenticated user. Its ID
// is the auth provider's user id.
type Profile struct {
	ID        string    `json:"id"`
	Name      *string   `json:"name,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the profile name or fallback when none was recorded.
func (p *Profile) DisplayName(fallback string) string {
	if p == nil || p.Name == nil || *p.Name == "" {
		return fallback
	}
	return *p.Name
}

// ProfileRepository is the contract for the `profiles` collection.
type ProfileRepository interface {
	// FindByID returns ErrNotFound when no profile exists for the id. Any
	// other error means the backend could not answer.
	FindByID(ctx context.Context, id string) (*Profile, error)

	// Create inserts a profile. Returns ErrUserAlreadyExists when the id is taken.
	Create(ctx context.Context, profile *Profile) error

	// UpdateRole changes the role of an existing profile.
	UpdateRole(ctx context.Context, id string, role Role) error
}
