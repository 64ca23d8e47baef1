package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nfrund/storefront/internal/domain"
	"github.com/nfrund/storefront/internal/pubsub"
)

const (
	// StateTopic is the bus topic carrying every visitor's auth-state
	// changes. Messages are addressed with the VisitorMetadataKey entry.
	StateTopic = "auth.state"
	// VisitorMetadataKey holds the id of the visitor a change belongs to.
	VisitorMetadataKey = "visitor_id"
)

type stateChange struct {
	Event   Event    `json:"event"`
	Session *Session `json:"session,omitempty"`
}

// Client is the provider as seen by one visitor. It holds the visitor's
// access token and publishes every auth-state change on StateTopic,
// addressed to the visitor. Listeners have run by the time the publishing call returns.
type Client struct {
	backend   Backend
	bus       pubsub.Bus
	visitorID string

	mu    sync.Mutex
	token string
}

// NewClient creates a signed-out client for visitorID.
func NewClient(backend Backend, bus pubsub.Bus, visitorID string) *Client {
	return &Client{
		backend:   backend,
		bus:       bus,
		visitorID: visitorID,
	}
}

// VisitorID returns the visitor the client belongs to.
func (c *Client) VisitorID() string {
	return c.visitorID
}

// SignUp registers an account. When the provider answers with a user that
// has no identities the address is already in use: the user is returned
// together with domain.ErrEmailTaken.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*User, error) {
	user, err := c.backend.SignUp(ctx, email, password, metadata)
	if err != nil {
		return nil, err
	}
	if user != nil && user.Identities == 0 {
		return user, domain.ErrEmailTaken
	}
	return user, nil
}

// SignIn checks the credentials and adopts the issued session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	session, err := c.backend.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	c.setToken(session.AccessToken)
	c.publish(ctx, EventSignedIn, session)
	return session, nil
}

// SignOut revokes the current token, if any, and broadcasts the sign-out.
// A revoke failure is logged; the visitor is signed out locally regardless.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.setToken("")
	if token != "" {
		if err := c.backend.Revoke(ctx, token); err != nil {
			slog.WarnContext(ctx, "Failed to revoke session token", "visitor_id", c.visitorID, "error", err)
		}
	}
	c.publish(ctx, EventSignedOut, nil)
	return nil
}

// GetSession returns the active session or nil when signed out. An expired
// token is dropped, broadcast as a sign-out and reported as no session.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	token := c.currentToken()
	if token == "" {
		return nil, nil
	}

	session, err := c.backend.Verify(ctx, token)
	if errors.Is(err, ErrSessionExpired) {
		if c.compareAndClear(token) {
			c.publish(ctx, EventSignedOut, nil)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("verify session: %w", err)
	}
	return session, nil
}

// GetUser returns the signed-in user or nil.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	session, err := c.GetSession(ctx)
	if err != nil || session == nil {
		return nil, err
	}
	return &session.User, nil
}

// ResetPassword asks the provider to mail a recovery link to email.
func (c *Client) ResetPassword(ctx context.Context, email, redirectTo string) error {
	return c.backend.SendPasswordReset(ctx, email, redirectTo)
}

// Recover signs the visitor in with a recovery token so the password can be
// changed.
func (c *Client) Recover(ctx context.Context, recoveryToken string) (*Session, error) {
	session, err := c.backend.Recover(ctx, recoveryToken)
	if err != nil {
		return nil, err
	}

	c.setToken(session.AccessToken)
	c.publish(ctx, EventPasswordRecovery, session)
	return session, nil
}

// UpdatePassword changes the signed-in user's password.
func (c *Client) UpdatePassword(ctx context.Context, newPassword string) (*User, error) {
	token := c.currentToken()
	if token == "" {
		return nil, ErrSessionExpired
	}

	user, err := c.backend.UpdatePassword(ctx, token, newPassword)
	if err != nil {
		return nil, err
	}

	session, err := c.backend.Verify(ctx, token)
	if err != nil {
		slog.WarnContext(ctx, "Password updated but session could not be refreshed", "visitor_id", c.visitorID, "error", err)
		session = &Session{AccessToken: token, User: *user}
	}
	c.publish(ctx, EventUserUpdated, session)
	return user, nil
}

// OnAuthStateChange registers listener for the visitor's auth-state changes
// until the returned function is called. Changes addressed to other
// visitors are skipped.
func (c *Client) OnAuthStateChange(listener Listener) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())

	err := c.bus.Subscribe(ctx, StateTopic, func(ctx context.Context, msg pubsub.Message) error {
		if msg.Metadata[VisitorMetadataKey] != c.visitorID {
			return nil
		}
		var change stateChange
		if err := json.Unmarshal(msg.Payload, &change); err != nil {
			return fmt.Errorf("decode auth state change: %w", err)
		}
		listener(change.Event, change.Session)
		return nil
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to auth state: %w", err)
	}
	return cancel, nil
}

func (c *Client) publish(ctx context.Context, event Event, session *Session) {
	payload, err := json.Marshal(stateChange{Event: event, Session: session})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode auth state change", "event", event, "error", err)
		return
	}

	msg := pubsub.Message{
		Topic:    StateTopic,
		Payload:  payload,
		Metadata: map[string]string{VisitorMetadataKey: c.visitorID},
	}
	if session != nil {
		msg.UserID = session.User.ID
	}
	if err := c.bus.Publish(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish auth state change", "event", event, "visitor_id", c.visitorID, "error", err)
	}
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// setToken replaces the token and returns the previous one.
func (c *Client) setToken(token string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.token
	c.token = token
	return prev
}

func (c *Client) compareAndClear(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != token {
		return false
	}
	c.token = ""
	return true
}
