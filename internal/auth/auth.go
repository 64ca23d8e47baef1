// Package auth is the authentication provider as seen by one visitor: a
// token-based Backend plus a Client that owns the visitor's access token and
// broadcasts auth-state changes.
package auth

import (
	"context"
	"errors"
	"time"
)

// ErrSessionExpired is returned by Backend.Verify for tokens that were valid
// once but are past their expiry or revoked.
var ErrSessionExpired = errors.New("session expired")

// User is an account record owned by the auth provider.
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"metadata,omitempty"`
	// Identities counts the sign-in identities linked to the account. A
	// sign-up answered with zero identities means the address already
	// belongs to another account and the provider hid that fact.
	Identities int       `json:"identities"`
	CreatedAt  time.Time `json:"created_at"`
}

// MetadataString returns the string metadata value stored under key.
func (u *User) MetadataString(key string) string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	s, _ := u.Metadata[key].(string)
	return s
}

// Session is an authenticated session issued by the provider.
type Session struct {
	AccessToken string    `json:"access_token"`
	User        User      `json:"user"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Event names an auth-state transition.
type Event string

const (
	EventInitialSession   Event = "INITIAL_SESSION"
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventUserUpdated      Event = "USER_UPDATED"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
)

// Listener receives auth-state changes. session is nil when the visitor is
// signed out.
type Listener func(event Event, session *Session)

// Backend is the stateless provider API. Tokens are owned by the caller.
type Backend interface {
	// SignUp registers an account. It does not sign the caller in.
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*User, error)

	// SignIn checks credentials and issues a session.
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// Verify resolves a token into its session. Invalid tokens yield
	// ErrSessionExpired.
	Verify(ctx context.Context, token string) (*Session, error)

	// Revoke invalidates a token.
	Revoke(ctx context.Context, token string) error

	// SendPasswordReset mails a recovery link pointing at redirectTo.
	SendPasswordReset(ctx context.Context, email, redirectTo string) error

	// Recover exchanges a mailed recovery token for a session.
	Recover(ctx context.Context, recoveryToken string) (*Session, error)

	// UpdatePassword changes the password of the token's owner.
	UpdatePassword(ctx context.Context, token, newPassword string) (*User, error)
}
