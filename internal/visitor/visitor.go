// Package visitor owns the per-browser objects: the auth client, the
// session store and the profile lookup.
package visitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nfrund/storefront/internal/auth"
	"github.com/nfrund/storefront/internal/domain"
	"github.com/nfrund/storefront/internal/profile"
	"github.com/nfrund/storefront/internal/pubsub"
	"github.com/nfrund/storefront/internal/session"
)

// Context bundles the objects that exist once per visitor.
type Context struct {
	ID       string
	Auth     *auth.Client
	Session  *session.Store
	Profiles *profile.Lookup
}

// Close tears the visitor's session state down.
func (c *Context) Close() {
	c.Session.Close()
	c.Profiles.Clear()
}

// Registry maps visitor ids to their Context. Entries idle for longer than
// the configured TTL are evicted and closed.
type Registry struct {
	backend  auth.Backend
	bus      pubsub.Bus
	profiles domain.ProfileRepository

	mu    sync.Mutex
	cache *expirable.LRU[string, *Context]
}

// NewRegistry creates a registry holding at most size visitors.
func NewRegistry(backend auth.Backend, bus pubsub.Bus, profiles domain.ProfileRepository, size int, idleTTL time.Duration) *Registry {
	r := &Registry{
		backend:  backend,
		bus:      bus,
		profiles: profiles,
	}
	r.cache = expirable.NewLRU[string, *Context](size, func(id string, c *Context) {
		slog.Debug("Visitor evicted", "visitor_id", id)
		c.Close()
	}, idleTTL)
	return r
}

// NewID returns a fresh visitor id.
func NewID() string {
	return uuid.NewString()
}

// Get returns the visitor's context if it is still registered.
func (r *Registry) Get(id string) (*Context, bool) {
	return r.cache.Get(id)
}

// Resolve returns the context for id, creating it when needed. A new
// context starts its session store in the background; guards wait on its
// readiness signal.
func (r *Registry) Resolve(ctx context.Context, id string) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.cache.Get(id); ok {
		// Re-adding refreshes the idle deadline.
		r.cache.Add(id, c)
		return c
	}

	client := auth.NewClient(r.backend, r.bus, id)
	c := &Context{
		ID:       id,
		Auth:     client,
		Session:  session.NewStore(client),
		Profiles: profile.NewLookup(r.profiles),
	}
	r.cache.Add(id, c)

	go c.Session.Start(context.WithoutCancel(ctx))
	slog.DebugContext(ctx, "Visitor registered", "visitor_id", id)
	return c
}

// Drop removes and closes the visitor's context.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(id)
}

// Len returns the number of registered visitors.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close drops every visitor.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Purge()
}
