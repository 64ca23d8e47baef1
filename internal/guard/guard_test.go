package guard

import (
	"context"
	"testing"
	"time"

	"github.com/nfrund/storefront/internal/auth"
	"github.com/nfrund/storefront/internal/domain"
	"github.com/nfrund/storefront/internal/memstore"
	"github.com/nfrund/storefront/internal/profile"
	"github.com/nfrund/storefront/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticProvider answers the initial session query with a fixed session.
type staticProvider struct {
	session *auth.Session
	block   chan struct{}
}

func (p staticProvider) GetSession(ctx context.Context) (*auth.Session, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.session, nil
}

func (staticProvider) OnAuthStateChange(auth.Listener) (func(), error) {
	return func() {}, nil
}

func readyStore(t *testing.T, userID string) *session.Store {
	t.Helper()
	var sess *auth.Session
	if userID != "" {
		sess = &auth.Session{User: auth.User{ID: userID}}
	}
	s := session.NewStore(staticProvider{session: sess})
	s.Start(context.Background())
	return s
}

func lookupWith(t *testing.T, profiles ...domain.Profile) *profile.Lookup {
	t.Helper()
	repo := memstore.NewProfileStore()
	for _, p := range profiles {
		p := p
		require.NoError(t, repo.Create(context.Background(), &p))
	}
	return profile.NewLookup(repo)
}

func TestRequireAuth(t *testing.T) {
	ctx := context.Background()
	var opts Options

	d := opts.RequireAuth(ctx, readyStore(t, ""), lookupWith(t), "/product/42")
	assert.False(t, d.Allow)
	assert.Equal(t, "/login?returnUrl=%2Fproduct%2F42", d.Redirect)

	d = opts.RequireAuth(ctx, readyStore(t, "u1"), lookupWith(t), "/home")
	assert.True(t, d.Allow)
}

func TestGuestOnly(t *testing.T) {
	ctx := context.Background()
	var opts Options

	assert.True(t, opts.GuestOnly(ctx, readyStore(t, ""), lookupWith(t), "/login").Allow)

	d := opts.GuestOnly(ctx, readyStore(t, "u1"), lookupWith(t), "/login")
	assert.False(t, d.Allow)
	assert.Equal(t, HomePath, d.Redirect)
}

func TestRequireAdmin(t *testing.T) {
	ctx := context.Background()
	var opts Options

	t.Run("signed out goes to login", func(t *testing.T) {
		d := opts.RequireAdmin(ctx, readyStore(t, ""), lookupWith(t), "/seller")
		assert.Equal(t, RedirectTo(LoginPath), d)
	})

	t.Run("plain user goes home", func(t *testing.T) {
		d := opts.RequireAdmin(ctx, readyStore(t, "u1"),
			lookupWith(t, domain.Profile{ID: "u1", Role: domain.RoleUser}), "/seller")
		assert.Equal(t, RedirectTo(HomePath), d)
	})

	t.Run("missing profile goes home", func(t *testing.T) {
		d := opts.RequireAdmin(ctx, readyStore(t, "u1"), lookupWith(t), "/seller")
		assert.Equal(t, RedirectTo(HomePath), d)
	})

	t.Run("admin is allowed and the profile is cached", func(t *testing.T) {
		l := lookupWith(t, domain.Profile{ID: "a1", Role: domain.RoleAdmin})
		d := opts.RequireAdmin(ctx, readyStore(t, "a1"), l, "/seller")
		assert.True(t, d.Allow)
		require.NotNil(t, l.Current())
		assert.Equal(t, "a1", l.Current().ID)
	})

	t.Run("a cached profile of another user is not trusted", func(t *testing.T) {
		l := lookupWith(t, domain.Profile{ID: "a1", Role: domain.RoleAdmin})
		_, err := l.Fetch(ctx, "a1")
		require.NoError(t, err)

		d := opts.RequireAdmin(ctx, readyStore(t, "u2"), l, "/seller")
		assert.Equal(t, RedirectTo(HomePath), d)
	})
}

func TestGuards_WaitForReadiness(t *testing.T) {
	block := make(chan struct{})
	s := session.NewStore(staticProvider{session: &auth.Session{User: auth.User{ID: "u1"}}, block: block})
	go s.Start(context.Background())

	result := make(chan Decision, 1)
	go func() {
		result <- Options{}.RequireAuth(context.Background(), s, lookupWith(t), "/home")
	}()

	select {
	case <-result:
		t.Fatal("guard decided before the session store was ready")
	case <-time.After(30 * time.Millisecond):
	}

	close(block)
	select {
	case d := <-result:
		assert.True(t, d.Allow)
	case <-time.After(time.Second):
		t.Fatal("guard did not resume after readiness")
	}
}

func TestGuards_NeverReadyStore(t *testing.T) {
	neverReady := func() *session.Store {
		return session.NewStore(staticProvider{block: make(chan struct{})})
	}

	t.Run("unbounded wait blocks until the request ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		result := make(chan Decision, 1)
		go func() { result <- Options{}.RequireAuth(ctx, neverReady(), lookupWith(t), "/home") }()

		select {
		case <-result:
			t.Fatal("guard returned while the store was still loading")
		case <-time.After(50 * time.Millisecond):
		}

		cancel()
		select {
		case d := <-result:
			assert.False(t, d.Allow)
			assert.Contains(t, d.Redirect, LoginPath)
		case <-time.After(time.Second):
			t.Fatal("guard ignored context cancellation")
		}
	})

	t.Run("timeout resolves to a redirect", func(t *testing.T) {
		opts := Options{WaitTimeout: 10 * time.Millisecond}
		ctx := context.Background()

		assert.Equal(t, "/login?returnUrl=%2Fhome", opts.RequireAuth(ctx, neverReady(), lookupWith(t), "/home").Redirect)
		assert.Equal(t, LoginPath, opts.RequireAdmin(ctx, neverReady(), lookupWith(t), "/seller").Redirect)
		assert.True(t, opts.GuestOnly(ctx, neverReady(), lookupWith(t), "/login").Allow)
	})
}

func TestSignInDestination(t *testing.T) {
	assert.Equal(t, SellerPath, SignInDestination(&domain.Profile{Role: domain.RoleAdmin}))
	assert.Equal(t, HomePath, SignInDestination(&domain.Profile{Role: domain.RoleUser}))
	assert.Equal(t, HomePath, SignInDestination(nil))
	assert.Equal(t, HomePath, SignInDestination(&domain.Profile{}))
}
