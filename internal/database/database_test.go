package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestHasLimitClause(t *testing.T) {
	assert.True(t, hasLimitClause("SELECT * FROM products LIMIT 5"))
	assert.True(t, hasLimitClause("select * from products limit $limit"))
	assert.False(t, hasLimitClause("SELECT * FROM products"))
	assert.False(t, hasLimitClause("SELECT * FROM unlimited_products"))
}

func TestDBError_MasksSecretParams(t *testing.T) {
	err := NewDBError(errors.New("boom"), "sign in").
		WithQuery("SELECT * FROM users").
		WithParams(map[string]any{"email": "ana@example.com", "password": "hunter22", "reset_token": "abc"})

	msg := err.Error()
	assert.Contains(t, msg, "sign in")
	assert.Contains(t, msg, "SELECT * FROM users")
	assert.Contains(t, msg, "ana@example.com")
	assert.NotContains(t, msg, "hunter22")
	assert.NotContains(t, msg, "abc")
	assert.Contains(t, msg, "boom")
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil, "noop"))

	root := errors.New("connection refused")
	inner := NewDBError(root, "query").WithQuery("SELECT 1")
	wrapped := WrapError(inner, "list products")

	var dbErr *DBError
	require.ErrorAs(t, wrapped, &dbErr)
	assert.ErrorIs(t, wrapped, root)
	assert.Contains(t, wrapped.Error(), "list products: query")
	assert.Contains(t, wrapped.Error(), "SELECT 1")

	plain := WrapError(root, "find profile")
	assert.ErrorIs(t, plain, root)
	assert.Contains(t, plain.Error(), "find profile")
}

func TestIsDuplicateError(t *testing.T) {
	assert.True(t, isDuplicateError(errors.New("Database record `profiles:abc` already exists")))
	assert.True(t, isDuplicateError(errors.New("Database index `users_email` already contains 'ana@example.com'")))
	assert.False(t, isDuplicateError(errors.New("permission denied")))
	assert.False(t, isDuplicateError(nil))
}

func TestIsConnectionError(t *testing.T) {
	assert.True(t, isConnectionError(context.DeadlineExceeded))
	assert.True(t, isConnectionError(errors.New("dial tcp: Connection refused")))
	assert.True(t, isConnectionError(errors.New("write: broken pipe")))
	assert.False(t, isConnectionError(errors.New("There was a problem with authentication")))
	assert.False(t, isConnectionError(nil))
}

func TestRedactDBURL(t *testing.T) {
	assert.Equal(t, "ws://root:xxxxx@localhost:8000/rpc", redactDBURL("ws://root:secret@localhost:8000/rpc"))
	assert.Equal(t, "ws://localhost:8000/rpc", redactDBURL("ws://localhost:8000/rpc"))
	assert.Equal(t, "invalid-url", redactDBURL("://bad"))
}

func TestRetryer(t *testing.T) {
	newRetryer := func() *ExponentialBackoffRetryer {
		return &ExponentialBackoffRetryer{maxRetries: 2, baseDelay: time.Millisecond, maxDelay: 5 * time.Millisecond, multiplier: 2}
	}

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := newRetryer().Retry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("not yet")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		cause := errors.New("down")
		err := newRetryer().Retry(context.Background(), func() error {
			calls++
			return cause
		})
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := newRetryer().Retry(ctx, func() error { return errors.New("unreached") })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCalculateDelay_CapsAtMax(t *testing.T) {
	r := &ExponentialBackoffRetryer{baseDelay: 100 * time.Millisecond, maxDelay: time.Second, multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, r.calculateDelay(0))
	assert.Equal(t, 400*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, time.Second, r.calculateDelay(10))
}

func TestRecordKey(t *testing.T) {
	assert.Equal(t, "", recordKey(nil))
	id := models.NewRecordID("users", "abc123")
	assert.Equal(t, "abc123", recordKey(&id))
	num := models.NewRecordID("products", int64(42))
	assert.Equal(t, "42", recordKey(&num))
}

func TestRecoveryLink(t *testing.T) {
	link, err := recoveryLink("http://localhost:8080/reset-password?lang=es", "tok")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/reset-password?lang=es&token=tok", link)

	_, err = recoveryLink("://nope", "tok")
	assert.Error(t, err)
}

func TestRevoke_TracksTokenUntilExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	b := &AuthBackend{revoked: make(map[string]time.Time), now: func() time.Time { return now }}

	claims := jwt.RegisteredClaims{ID: "jti-1", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any"))
	require.NoError(t, err)

	require.NoError(t, b.Revoke(context.Background(), token))
	assert.True(t, b.isRevoked("jti-1"))

	now = now.Add(2 * time.Hour)
	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ID: "jti-2"}).SignedString([]byte("any"))
	require.NoError(t, err)
	require.NoError(t, b.Revoke(context.Background(), other))
	assert.False(t, b.isRevoked("jti-1"), "expired revocations are pruned")
	assert.True(t, b.isRevoked("jti-2"))

	assert.Error(t, b.Revoke(context.Background(), "not-a-jwt"))
}

func TestWithTimeout(t *testing.T) {
	remaining := func(ctx context.Context) time.Duration {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		return time.Until(deadline)
	}

	t.Run("uses the default without an override", func(t *testing.T) {
		ctx, cancel := withTimeout(context.Background(), time.Second, executeTimeoutKey)
		defer cancel()
		assert.LessOrEqual(t, remaining(ctx), time.Second)
	})

	t.Run("execute override", func(t *testing.T) {
		ctx, cancel := withTimeout(WithExecuteTimeout(context.Background(), time.Minute), time.Second, executeTimeoutKey)
		defer cancel()
		assert.Greater(t, remaining(ctx), 30*time.Second)
	})

	t.Run("query override leaves writes alone", func(t *testing.T) {
		base := WithQueryTimeout(context.Background(), time.Minute)

		ctx, cancel := withTimeout(base, time.Second, queryTimeoutKey)
		defer cancel()
		assert.Greater(t, remaining(ctx), 30*time.Second)

		ctx, cancel = withTimeout(base, time.Second, executeTimeoutKey)
		defer cancel()
		assert.LessOrEqual(t, remaining(ctx), time.Second)
	})
}
