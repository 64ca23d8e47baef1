// Package memstore is an in-process backend used for development and tests.
package memstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nfrund/storefront/internal/auth"
	"github.com/nfrund/storefront/internal/domain"
	"github.com/nfrund/storefront/internal/email"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL    = time.Hour
	defaultRecoveryTTL = 24 * time.Hour
	minPasswordLength  = 6
	issuer             = "storefront-memstore"
)

var _ auth.Backend = (*AuthBackend)(nil)

type account struct {
	user auth.User
	hash []byte
}

type recovery struct {
	userID  string
	expires time.Time
}

// AuthBackend implements auth.Backend in memory. Access tokens are HS256
// JWTs whose jti can be revoked.
type AuthBackend struct {
	secret   []byte
	sender   email.Sender
	validate *validator.Validate

	tokenTTL        time.Duration
	obfuscateTaken  bool
	signupsDisabled bool
	now             func() time.Time

	mu         sync.RWMutex
	byEmail    map[string]*account
	byID       map[string]*account
	revoked    map[string]time.Time
	recoveries map[string]recovery
}

// AuthOption configures an AuthBackend.
type AuthOption func(*AuthBackend)

// WithTokenTTL sets the lifetime of issued access tokens.
func WithTokenTTL(ttl time.Duration) AuthOption {
	return func(b *AuthBackend) { b.tokenTTL = ttl }
}

// WithObfuscatedSignups makes sign-up for a registered address succeed with
// an identity-less user instead of failing.
func WithObfuscatedSignups() AuthOption {
	return func(b *AuthBackend) { b.obfuscateTaken = true }
}

// WithSignupsDisabled rejects every sign-up.
func WithSignupsDisabled() AuthOption {
	return func(b *AuthBackend) { b.signupsDisabled = true }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) AuthOption {
	return func(b *AuthBackend) { b.now = now }
}

// NewAuthBackend creates an empty auth backend signing tokens with secret.
// Recovery links are mailed through sender.
func NewAuthBackend(secret []byte, sender email.Sender, opts ...AuthOption) *AuthBackend {
	b := &AuthBackend{
		secret:     secret,
		sender:     sender,
		validate:   validator.New(),
		tokenTTL:   defaultTokenTTL,
		now:        time.Now,
		byEmail:    make(map[string]*account),
		byID:       make(map[string]*account),
		revoked:    make(map[string]time.Time),
		recoveries: make(map[string]recovery),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SignUp implements auth.Backend.
func (b *AuthBackend) SignUp(ctx context.Context, emailAddr, password string, metadata map[string]any) (*auth.User, error) {
	if b.signupsDisabled {
		return nil, auth.NewProviderError(auth.MsgSignupsDisabled, nil)
	}
	emailAddr = normalizeEmail(emailAddr)
	if err := b.validate.Var(emailAddr, "required,email"); err != nil {
		return nil, auth.NewProviderError(auth.MsgInvalidEmail, err)
	}
	if len(password) < minPasswordLength {
		return nil, auth.NewProviderError(auth.MsgWeakPassword, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, taken := b.byEmail[emailAddr]; taken {
		if b.obfuscateTaken {
			return &auth.User{ID: uuid.NewString(), Email: emailAddr, CreatedAt: b.now().UTC()}, nil
		}
		return nil, auth.NewProviderError(auth.MsgUserRegistered, domain.ErrUserAlreadyExists)
	}

	acc := &account{
		user: auth.User{
			ID:         uuid.NewString(),
			Email:      emailAddr,
			Metadata:   copyMetadata(metadata),
			Identities: 1,
			CreatedAt:  b.now().UTC(),
		},
		hash: hash,
	}
	b.byEmail[emailAddr] = acc
	b.byID[acc.user.ID] = acc

	slog.InfoContext(ctx, "Signed up user", "user_id", acc.user.ID)
	user := acc.user
	return &user, nil
}

// SignIn implements auth.Backend.
func (b *AuthBackend) SignIn(ctx context.Context, emailAddr, password string) (*auth.Session, error) {
	b.mu.RLock()
	acc, ok := b.byEmail[normalizeEmail(emailAddr)]
	b.mu.RUnlock()

	if !ok || bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return nil, auth.NewProviderError(auth.MsgInvalidCredentials, domain.ErrInvalidCredentials)
	}
	return b.issue(acc.user)
}

func (b *AuthBackend) issue(user auth.User) (*auth.Session, error) {
	now := b.now()
	expires := now.Add(b.tokenTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   user.ID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &auth.Session{AccessToken: token, User: user, ExpiresAt: expires}, nil
}

func (b *AuthBackend) parse(token string, opts ...jwt.ParserOption) (*jwt.RegisteredClaims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(b.now),
	)
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return b.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Verify implements auth.Backend.
func (b *AuthBackend) Verify(_ context.Context, token string) (*auth.Session, error) {
	claims, err := b.parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrSessionExpired, err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, revoked := b.revoked[claims.ID]; revoked {
		return nil, auth.ErrSessionExpired
	}
	acc, ok := b.byID[claims.Subject]
	if !ok {
		return nil, auth.ErrSessionExpired
	}
	return &auth.Session{AccessToken: token, User: acc.user, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Revoke implements auth.Backend. Expired tokens are accepted.
func (b *AuthBackend) Revoke(_ context.Context, token string) error {
	claims, err := b.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[claims.ID] = claims.ExpiresAt.Time
	b.pruneLocked()
	return nil
}

// pruneLocked forgets revocations of tokens that expired on their own.
func (b *AuthBackend) pruneLocked() {
	now := b.now()
	for jti, exp := range b.revoked {
		if now.After(exp) {
			delete(b.revoked, jti)
		}
	}
	for tok, r := range b.recoveries {
		if now.After(r.expires) {
			delete(b.recoveries, tok)
		}
	}
}

// SendPasswordReset implements auth.Backend. Unknown addresses succeed
// silently so the endpoint does not reveal which accounts exist.
func (b *AuthBackend) SendPasswordReset(ctx context.Context, emailAddr, redirectTo string) error {
	emailAddr = normalizeEmail(emailAddr)

	b.mu.Lock()
	acc, ok := b.byEmail[emailAddr]
	if !ok {
		b.mu.Unlock()
		slog.DebugContext(ctx, "Password reset requested for unknown address")
		return nil
	}
	token, err := generateSecureToken(32)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.recoveries[token] = recovery{userID: acc.user.ID, expires: b.now().Add(defaultRecoveryTTL)}
	b.mu.Unlock()

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

// Recover implements auth.Backend. Recovery tokens are single use.
func (b *AuthBackend) Recover(_ context.Context, recoveryToken string) (*auth.Session, error) {
	b.mu.Lock()
	r, ok := b.recoveries[recoveryToken]
	delete(b.recoveries, recoveryToken)
	var acc *account
	if ok {
		acc = b.byID[r.userID]
	}
	b.mu.Unlock()

	if !ok || acc == nil || b.now().After(r.expires) {
		return nil, auth.NewProviderError("Invalid or expired recovery link", auth.ErrSessionExpired)
	}
	return b.issue(acc.user)
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

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.byID[session.User.ID]
	if !ok {
		return nil, auth.NewProviderError(auth.MsgUserNotFound, domain.ErrNotFound)
	}
	acc.hash = hash
	user := acc.user
	return &user, nil
}

// LookupEmail returns the id of the account registered under emailAddr.
func (b *AuthBackend) LookupEmail(_ context.Context, emailAddr string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	acc, ok := b.byEmail[normalizeEmail(emailAddr)]
	if !ok {
		return "", domain.ErrNotFound
	}
	return acc.user.ID, nil
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

func copyMetadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// errNoSecret is returned by NewAuthBackendFromSecret for empty secrets.
var errNoSecret = errors.New("memstore: token secret is empty")

// NewAuthBackendFromSecret is NewAuthBackend for string secrets, rejecting empty ones.
func NewAuthBackendFromSecret(secret string, sender email.Sender, opts ...AuthOption) (*AuthBackend, error) {
	if secret == "" {
		return nil, errNoSecret
	}
	return NewAuthBackend([]byte(secret), sender, opts...), nil
}
