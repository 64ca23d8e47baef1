package database

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/nfrund/storefront/internal/auth"
	"github.com/nfrund/storefront/internal/domain"
	"github.com/nfrund/storefront/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingSender struct {
	mu   sync.Mutex
	body string
}

func (s *capturingSender) Send(_ context.Context, _, _, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = html
	return nil
}

func (s *capturingSender) token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, after, found := strings.Cut(s.body, "token=")
	if !found {
		return ""
	}
	tok, _, _ := strings.Cut(after, `"`)
	return tok
}

// setupTestDB connects a root and a record access connection to the
// database named by SURREAL_URL and applies the schema.
func setupTestDB(t *testing.T) (root, access *Connection) {
	t.Helper()
	cfg := testutils.RequireIntegration(t, "SURREAL_URL")
	ctx := context.Background()

	root = NewConnection(cfg)
	require.NoError(t, root.Connect(ctx), "failed to connect to test database")
	access = NewConnection(cfg, WithoutRootAuth())
	require.NoError(t, access.Connect(ctx))
	require.NoError(t, DefineSchema(ctx, root))

	t.Cleanup(func() {
		_ = Execute(context.Background(), root.getConnection(), "DELETE users; DELETE profiles; DELETE products;", nil)
		_ = access.Close(context.Background())
		_ = root.Close(context.Background())
	})
	return root, access
}

func TestAuthBackend_Integration(t *testing.T) {
	root, access := setupTestDB(t)
	ctx := context.Background()
	sender := &capturingSender{}
	b := NewAuthBackend(access, root, sender)

	emailAddr := testutils.UniqueEmail("it")

	user, err := b.SignUp(ctx, emailAddr, "secret1", map[string]any{"fullName": "Ana"})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, 1, user.Identities)
	assert.Equal(t, "Ana", user.MetadataString("fullName"))

	_, err = b.SignUp(ctx, emailAddr, "secret1", nil)
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)

	_, err = b.SignIn(ctx, emailAddr, "wrong-password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	session, err := b.SignIn(ctx, emailAddr, "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.User.ID)

	verified, err := b.Verify(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, emailAddr, verified.User.Email)

	require.NoError(t, b.Revoke(ctx, session.AccessToken))
	_, err = b.Verify(ctx, session.AccessToken)
	assert.ErrorIs(t, err, auth.ErrSessionExpired)

	id, err := b.LookupEmail(ctx, emailAddr)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	t.Run("password recovery", func(t *testing.T) {
		require.NoError(t, b.SendPasswordReset(ctx, emailAddr, "http://localhost:8080/reset-password"))
		token := sender.token()
		require.NotEmpty(t, token)

		recovered, err := b.Recover(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, recovered.User.ID)

		_, err = b.Recover(ctx, token)
		assert.ErrorIs(t, err, auth.ErrSessionExpired, "reset tokens are single use")

		_, err = b.UpdatePassword(ctx, recovered.AccessToken, "secret2")
		require.NoError(t, err)
		_, err = b.SignIn(ctx, emailAddr, "secret2")
		assert.NoError(t, err)
	})

	t.Run("unknown address resets silently", func(t *testing.T) {
		assert.NoError(t, b.SendPasswordReset(ctx, "nobody@example.com", "http://localhost:8080/reset-password"))
	})
}

func TestProfileStore_Integration(t *testing.T) {
	root, _ := setupTestDB(t)
	ctx := context.Background()
	store := NewProfileStore(root)

	id := uuid.NewString()
	_, err := store.FindByID(ctx, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	name := "Ana"
	require.NoError(t, store.Create(ctx, &domain.Profile{ID: id, Name: &name, Role: domain.RoleUser}))
	assert.ErrorIs(t, store.Create(ctx, &domain.Profile{ID: id, Role: domain.RoleUser}), domain.ErrUserAlreadyExists)

	require.NoError(t, store.UpdateRole(ctx, id, domain.RoleAdmin))
	p, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, p.Role)
	assert.Equal(t, "Ana", p.DisplayName(""))

	assert.ErrorIs(t, store.UpdateRole(ctx, uuid.NewString(), domain.RoleAdmin), domain.ErrNotFound)
}

func TestProductStore_Integration(t *testing.T) {
	root, _ := setupTestDB(t)
	ctx := context.Background()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	store := NewProductStore(root, node)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, fixture := range []struct {
		name      string
		published bool
	}{{"A", false}, {"B", true}, {"C", true}} {
		_, err := store.Create(ctx, &domain.Product{
			Name: fixture.name, Type: "Deck", Quantity: 3, Description: "fixture product",
			Price: 10, Published: fixture.published, CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	list, err := store.ListPublished(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "C", list[0].Name)
	assert.Equal(t, "B", list[1].Name)

	found, err := store.FindPublishedByID(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "C", found.Name)

	sample, err := store.Sample(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, sample, 3)

	_, err = store.FindPublishedByID(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
