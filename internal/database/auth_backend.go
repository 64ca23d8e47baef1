package database

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nfrund/storefront/internal/auth"
	"github.com/nfrund/storefront/internal/domain"
	"github.com/nfrund/storefront/internal/email"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

const (
	minPasswordLength = 6
	resetTokenTTL     = 24 * time.Hour
)

var _ auth.Backend = (*AuthBackend)(nil)

type userRecord struct {
	ID        *models.RecordID       `json:"id,omitempty"`
	Email     string                 `json:"email"`
	Metadata  map[string]any         `json:"metadata,omitempty"`
	CreatedAt *models.CustomDateTime `json:"created_at,omitempty"`
}

func (r *userRecord) toUser() auth.User {
	u := auth.User{
		ID:         recordKey(r.ID),
		Email:      r.Email,
		Metadata:   r.Metadata,
		Identities: 1,
	}
	if r.CreatedAt != nil {
		u.CreatedAt = r.CreatedAt.Time
	}
	return u
}

// recordKey returns the key part of a record id.
func recordKey(id *models.RecordID) string {
	if id == nil {
		return ""
	}
	return fmt.Sprint(id.ID)
}

// AuthBackend implements auth.Backend on SurrealDB record access. Sign-up,
// sign-in and token checks run on a dedicated connection without root
// credentials; the connection is reset after every call. Account lookups
// and reset tokens go through the root data connection.
type AuthBackend struct {
	authConn DBConnection
	dataConn DBConnection
	sender   email.Sender
	validate *validator.Validate
	now      func() time.Time

	// authMu serialises use of authConn, whose auth state is per connection.
	authMu sync.Mutex

	revokedMu sync.Mutex
	revoked   map[string]time.Time
}

// NewAuthBackend creates a SurrealDB auth backend.
func NewAuthBackend(authConn, dataConn DBConnection, sender email.Sender) *AuthBackend {
	return &AuthBackend{
		authConn: authConn,
		dataConn: dataConn,
		sender:   sender,
		validate: validator.New(),
		now:      time.Now,
		revoked:  make(map[string]time.Time),
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// withAuthConn runs fn on the record access connection and invalidates its
// auth state afterwards.
func (b *AuthBackend) withAuthConn(ctx context.Context, fn func(*surrealdb.DB) error) error {
	b.authMu.Lock()
	defer b.authMu.Unlock()

	ctx, cancel := withTimeout(ctx, b.authConn.GetDBExecuteTimeout(), executeTimeoutKey)
	defer cancel()

	return b.authConn.WithConnection(ctx, func(db *surrealdb.DB) error {
		defer func() {
			if err := db.Invalidate(ctx); err != nil {
				slog.WarnContext(ctx, "Failed to reset auth connection", "error", err)
			}
		}()
		return fn(db)
	})
}

func (b *AuthBackend) accessParams(extra map[string]any) map[string]any {
	params := map[string]any{
		"ns": b.authConn.GetDBNs(),
		"db": b.authConn.GetDBDb(),
		"ac": AccessName,
	}
	for k, v := range extra {
		params[k] = v
	}
	return params
}

// SignUp implements auth.Backend.
func (b *AuthBackend) SignUp(ctx context.Context, emailAddr, password string, metadata map[string]any) (*auth.User, error) {
	emailAddr = normalizeEmail(emailAddr)
	if err := b.validate.Var(emailAddr, "required,email"); err != nil {
		return nil, auth.NewProviderError(auth.MsgInvalidEmail, err)
	}
	if len(password) < minPasswordLength {
		return nil, auth.NewProviderError(auth.MsgWeakPassword, nil)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	err := b.withAuthConn(ctx, func(db *surrealdb.DB) error {
		_, err := db.SignUp(ctx, b.accessParams(map[string]any{
			"email":    emailAddr,
			"password": password,
			"metadata": metadata,
		}))
		return err
	})
	if err != nil {
		if isDuplicateError(err) || strings.Contains(err.Error(), "signup query failed") {
			return nil, auth.NewProviderError(auth.MsgUserRegistered, domain.ErrUserAlreadyExists)
		}
		return nil, fmt.Errorf("sign up: %w", err)
	}

	rec, err := b.findUserByEmail(ctx, emailAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user after sign-up: %w", err)
	}
	if rec == nil {
		return nil, NewDBError(domain.ErrNotFound, "user missing after sign-up")
	}

	user := rec.toUser()
	slog.InfoContext(ctx, "Signed up user", "user_id", user.ID)
	return &user, nil
}

// SignIn implements auth.Backend.
func (b *AuthBackend) SignIn(ctx context.Context, emailAddr, password string) (*auth.Session, error) {
	return b.signIn(ctx, map[string]any{
		"email":    normalizeEmail(emailAddr),
		"password": password,
	}, auth.NewProviderError(auth.MsgInvalidCredentials, domain.ErrInvalidCredentials))
}

func (b *AuthBackend) signIn(ctx context.Context, vars map[string]any, rejected error) (*auth.Session, error) {
	var token string
	err := b.withAuthConn(ctx, func(db *surrealdb.DB) error {
		var err error
		token, err = db.SignIn(ctx, b.accessParams(vars))
		return err
	})
	if err != nil {
		if isConnectionError(err) {
			return nil, fmt.Errorf("sign in: %w", err)
		}
		slog.DebugContext(ctx, "Sign-in rejected", "error", err)
		return nil, rejected
	}
	return b.Verify(ctx, token)
}

// Verify implements auth.Backend.
func (b *AuthBackend) Verify(ctx context.Context, token string) (*auth.Session, error) {
	claims, err := unverifiedClaims(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrSessionExpired, err)
	}
	if b.isRevoked(revocationKey(claims, token)) {
		return nil, auth.ErrSessionExpired
	}

	var rec *userRecord
	err = b.withAuthConn(ctx, func(db *surrealdb.DB) error {
		if err := db.Authenticate(ctx, token); err != nil {
			return fmt.Errorf("%w: %v", auth.ErrSessionExpired, err)
		}
		var err error
		rec, err = QueryOne[userRecord](ctx, db, "SELECT id, email, metadata, created_at FROM $auth", nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, auth.ErrSessionExpired
	}

	session := &auth.Session{AccessToken: token, User: rec.toUser()}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// unverifiedClaims decodes the token claims. The signature is checked by
// the database in Verify.
func unverifiedClaims(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func revocationKey(claims *jwt.RegisteredClaims, token string) string {
	if claims.ID != "" {
		return claims.ID
	}
	return token
}

func (b *AuthBackend) isRevoked(key string) bool {
	b.revokedMu.Lock()
	defer b.revokedMu.Unlock()
	_, ok := b.revoked[key]
	return ok
}

// Revoke implements auth.Backend. Revocations are kept in process until the
// token would have expired.
func (b *AuthBackend) Revoke(_ context.Context, token string) error {
	claims, err := unverifiedClaims(token)
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	exp := b.now().Add(time.Hour)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}

	b.revokedMu.Lock()
	defer b.revokedMu.Unlock()
	b.revoked[revocationKey(claims, token)] = exp
	now := b.now()
	for k, e := range b.revoked {
		if now.After(e) {
			delete(b.revoked, k)
		}
	}
	return nil
}

// SendPasswordReset implements auth.Backend. Unknown addresses succeed
// silently.
func (b *AuthBackend) SendPasswordReset(ctx context.Context, emailAddr, redirectTo string) error {
	emailAddr = normalizeEmail(emailAddr)
	token, err := generateSecureToken(32)
	if err != nil {
		return err
	}

	query := `UPDATE users SET reset_token = $reset_token, reset_token_expires = $expires WHERE email = $email RETURN AFTER`
	params := map[string]any{
		"email":       emailAddr,
		"reset_token": token,
		"expires":     models.CustomDateTime{Time: b.now().UTC().Add(resetTokenTTL)},
	}

	var updated *userRecord
	err = b.withData(ctx, func(ctx context.Context, db *surrealdb.DB) error {
		var err error
		updated, err = QueryOne[userRecord](ctx, db, query, params)
		return err
	})
	if err != nil {
		return WrapError(err, "failed to store reset token")
	}
	if updated == nil {
		slog.DebugContext(ctx, "Password reset requested for unknown address")
		return nil
	}

	link, err := recoveryLink(redirectTo, token)
	if err != nil {
		return err
	}
	body := fmt.Sprintf(`<p>Use the link below to choose a new password.</p><p><a href="%s">Reset password</a></p>`, link)
	if err := b.sender.Send(ctx, emailAddr, "Reset your password", body); err != nil {
		return fmt.Errorf("send recovery email: %w", err)
	}
	return nil
}

// Recover implements auth.Backend. The reset token is cleared once used.
func (b *AuthBackend) Recover(ctx context.Context, recoveryToken string) (*auth.Session, error) {
	if recoveryToken == "" {
		return nil, auth.NewProviderError("Invalid or expired recovery link", auth.ErrSessionExpired)
	}
	session, err := b.signIn(ctx, map[string]any{"email": "", "password": "", "reset_token": recoveryToken},
		auth.NewProviderError("Invalid or expired recovery link", auth.ErrSessionExpired))
	if err != nil {
		return nil, err
	}

	err = b.withData(ctx, func(ctx context.Context, db *surrealdb.DB) error {
		return Execute(ctx, db,
			`UPDATE type::thing("users", $id) SET reset_token = NONE, reset_token_expires = NONE`,
			map[string]any{"id": session.User.ID})
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to clear reset token", "user_id", session.User.ID, "error", err)
	}
	return session, nil
}

// UpdatePassword implements auth.Backend.
func (b *AuthBackend) UpdatePassword(ctx context.Context, token, newPassword string) (*auth.User, error) {
	session, err := b.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(newPassword) < minPasswordLength {
		return nil, auth.NewProviderError(auth.MsgWeakPassword, nil)
	}

	var rec *userRecord
	err = b.withData(ctx, func(ctx context.Context, db *surrealdb.DB) error {
		var err error
		rec, err = QueryOne[userRecord](ctx, db,
			`UPDATE type::thing("users", $id) SET password = crypto::argon2::generate($new_password) RETURN AFTER`,
			map[string]any{"id": session.User.ID, "new_password": newPassword})
		return err
	})
	if err != nil {
		return nil, WrapError(err, "failed to update password")
	}
	if rec == nil {
		return nil, auth.NewProviderError(auth.MsgUserNotFound, domain.ErrNotFound)
	}
	user := rec.toUser()
	return &user, nil
}

// LookupEmail returns the id of the account registered under emailAddr.
func (b *AuthBackend) LookupEmail(ctx context.Context, emailAddr string) (string, error) {
	rec, err := b.findUserByEmail(ctx, normalizeEmail(emailAddr))
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", domain.ErrNotFound
	}
	return recordKey(rec.ID), nil
}

func (b *AuthBackend) findUserByEmail(ctx context.Context, emailAddr string) (*userRecord, error) {
	var rec *userRecord
	err := b.withData(ctx, func(ctx context.Context, db *surrealdb.DB) error {
		var err error
		rec, err = QueryOne[userRecord](ctx, db,
			"SELECT id, email, metadata, created_at FROM users WHERE email = $email",
			map[string]any{"email": emailAddr})
		return err
	})
	return rec, err
}

func (b *AuthBackend) withData(ctx context.Context, fn func(context.Context, *surrealdb.DB) error) error {
	ctx, cancel := withTimeout(ctx, b.dataConn.GetDBExecuteTimeout(), executeTimeoutKey)
	defer cancel()
	return b.dataConn.WithConnection(ctx, func(db *surrealdb.DB) error {
		return fn(ctx, db)
	})
}

func recoveryLink(redirectTo, token string) (string, error) {
	u, err := url.Parse(redirectTo)
	if err != nil {
		return "", fmt.Errorf("invalid recovery redirect %q: %w", redirectTo, err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// generateSecureToken creates a cryptographically secure random token.
func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
