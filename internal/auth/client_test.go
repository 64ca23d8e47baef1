package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nfrund/storefront/internal/domain"
	"github.com/nfrund/storefront/internal/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a minimal in-test provider with a single known account.
type fakeBackend struct {
	mu        sync.Mutex
	tokens    map[string]User
	revoked   []string
	resets    []string
	hideTaken bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{tokens: make(map[string]User)}
}

var knownUser = User{ID: "user-1", Email: "ana@example.com", Identities: 1}

func (f *fakeBackend) SignUp(_ context.Context, email, _ string, metadata map[string]any) (*User, error) {
	if email == knownUser.Email {
		if f.hideTaken {
			return &User{ID: "obfuscated", Email: email}, nil
		}
		return nil, NewProviderError(MsgUserRegistered, domain.ErrUserAlreadyExists)
	}
	return &User{ID: "new", Email: email, Metadata: metadata, Identities: 1}, nil
}

func (f *fakeBackend) SignIn(_ context.Context, email, password string) (*Session, error) {
	if email != knownUser.Email || password != "secret1" {
		return nil, NewProviderError(MsgInvalidCredentials, domain.ErrInvalidCredentials)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "tok-" + time.Now().Format(time.RFC3339Nano)
	f.tokens[token] = knownUser
	return &Session{AccessToken: token, User: knownUser, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeBackend) Verify(_ context.Context, token string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.tokens[token]
	if !ok {
		return nil, ErrSessionExpired
	}
	return &Session{AccessToken: token, User: user}, nil
}

func (f *fakeBackend) Revoke(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
	f.revoked = append(f.revoked, token)
	return nil
}

func (f *fakeBackend) SendPasswordReset(_ context.Context, email, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, email)
	return nil
}

func (f *fakeBackend) Recover(_ context.Context, recoveryToken string) (*Session, error) {
	if recoveryToken != "recover-me" {
		return nil, NewProviderError("Invalid or expired recovery link", ErrSessionExpired)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens["recovered"] = knownUser
	return &Session{AccessToken: "recovered", User: knownUser}, nil
}

func (f *fakeBackend) UpdatePassword(_ context.Context, token, _ string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.tokens[token]
	if !ok {
		return nil, ErrSessionExpired
	}
	return &user, nil
}

type recorded struct {
	event   Event
	session *Session
}

func newTestClient(t *testing.T, backend Backend) (*Client, *[]recorded) {
	t.Helper()
	bus := pubsub.NewWatermillBridge()
	t.Cleanup(func() { _ = bus.Close() })

	client := NewClient(backend, bus, "visitor-1")
	var (
		mu     sync.Mutex
		events []recorded
	)
	unsubscribe, err := client.OnAuthStateChange(func(event Event, session *Session) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, recorded{event, session})
	})
	require.NoError(t, err)
	t.Cleanup(unsubscribe)
	return client, &events
}

func TestClient_SignInPublishesBeforeReturning(t *testing.T) {
	ctx := context.Background()
	client, events := newTestClient(t, newFakeBackend())

	session, err := client.SignIn(ctx, knownUser.Email, "secret1")
	require.NoError(t, err)
	require.NotNil(t, session)

	require.Len(t, *events, 1)
	assert.Equal(t, EventSignedIn, (*events)[0].event)
	require.NotNil(t, (*events)[0].session)
	assert.Equal(t, knownUser.ID, (*events)[0].session.User.ID)

	current, err := client.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, session.AccessToken, current.AccessToken)
}

func TestClient_SignInFailureKeepsVisitorSignedOut(t *testing.T) {
	ctx := context.Background()
	client, events := newTestClient(t, newFakeBackend())

	_, err := client.SignIn(ctx, knownUser.Email, "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Empty(t, *events)

	session, err := client.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestClient_SignOut(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	client, events := newTestClient(t, backend)

	session, err := client.SignIn(ctx, knownUser.Email, "secret1")
	require.NoError(t, err)
	require.NoError(t, client.SignOut(ctx))

	require.Len(t, *events, 2)
	assert.Equal(t, EventSignedOut, (*events)[1].event)
	assert.Nil(t, (*events)[1].session)
	assert.Equal(t, []string{session.AccessToken}, backend.revoked)

	user, err := client.GetUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestClient_ExpiredTokenIsBroadcastAsSignOut(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	client, events := newTestClient(t, backend)

	session, err := client.SignIn(ctx, knownUser.Email, "secret1")
	require.NoError(t, err)
	require.NoError(t, backend.Revoke(ctx, session.AccessToken))

	current, err := client.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
	require.Len(t, *events, 2)
	assert.Equal(t, EventSignedOut, (*events)[1].event)
}

func TestClient_SignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("new account", func(t *testing.T) {
		client, events := newTestClient(t, newFakeBackend())
		user, err := client.SignUp(ctx, "new@example.com", "secret1", map[string]any{"fullName": "New"})
		require.NoError(t, err)
		assert.Equal(t, "New", user.MetadataString("fullName"))
		assert.Empty(t, *events, "sign-up does not sign the visitor in")
	})

	t.Run("obfuscated existing account", func(t *testing.T) {
		backend := newFakeBackend()
		backend.hideTaken = true
		client, _ := newTestClient(t, backend)

		user, err := client.SignUp(ctx, knownUser.Email, "secret1", nil)
		assert.ErrorIs(t, err, domain.ErrEmailTaken)
		require.NotNil(t, user, "the user is still returned")
		assert.Zero(t, user.Identities)
	})

	t.Run("provider rejection", func(t *testing.T) {
		client, _ := newTestClient(t, newFakeBackend())
		_, err := client.SignUp(ctx, knownUser.Email, "secret1", nil)
		var perr *ProviderError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, MsgUserRegistered, perr.Message)
	})
}

func TestClient_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	client, events := newTestClient(t, newFakeBackend())

	_, err := client.UpdatePassword(ctx, "another1")
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = client.SignIn(ctx, knownUser.Email, "secret1")
	require.NoError(t, err)
	user, err := client.UpdatePassword(ctx, "another1")
	require.NoError(t, err)
	assert.Equal(t, knownUser.ID, user.ID)
	require.Len(t, *events, 2)
	assert.Equal(t, EventUserUpdated, (*events)[1].event)
}

func TestClient_Recover(t *testing.T) {
	ctx := context.Background()
	client, events := newTestClient(t, newFakeBackend())

	_, err := client.Recover(ctx, "bogus")
	require.Error(t, err)
	assert.Empty(t, *events)

	session, err := client.Recover(ctx, "recover-me")
	require.NoError(t, err)
	assert.Equal(t, "recovered", session.AccessToken)
	require.Len(t, *events, 1)
	assert.Equal(t, EventPasswordRecovery, (*events)[0].event)

	user, err := client.GetUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, knownUser.ID, user.ID)
}

func TestClient_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	bus := pubsub.NewWatermillBridge()
	defer bus.Close()

	client := NewClient(newFakeBackend(), bus, "visitor-2")
	var mu sync.Mutex
	calls := 0
	unsubscribe, err := client.OnAuthStateChange(func(Event, *Session) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	require.NoError(t, err)

	_, err = client.SignIn(ctx, knownUser.Email, "secret1")
	require.NoError(t, err)
	unsubscribe()

	// The subscription is torn down asynchronously once its context ends.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, client.SignOut(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestClient_EventsStayWithTheirVisitor(t *testing.T) {
	ctx := context.Background()
	bus := pubsub.NewWatermillBridge()
	defer bus.Close()

	backend := newFakeBackend()
	listen := func(id string) (*Client, *[]Event) {
		client := NewClient(backend, bus, id)
		var (
			mu     sync.Mutex
			events []Event
		)
		unsubscribe, err := client.OnAuthStateChange(func(event Event, _ *Session) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, event)
		})
		require.NoError(t, err)
		t.Cleanup(unsubscribe)
		return client, &events
	}

	ana, anaEvents := listen("visitor-a")
	_, otherEvents := listen("visitor-b")

	_, err := ana.SignIn(ctx, knownUser.Email, "secret1")
	require.NoError(t, err)

	assert.Equal(t, []Event{EventSignedIn}, *anaEvents)
	assert.Empty(t, *otherEvents)
}
