package visitor

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/nfrund/storefront/internal/memstore"
	"github.com/nfrund/storefront/internal/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardSender struct{}

func (discardSender) Send(context.Context, string, string, string) error { return nil }

func newTestRegistry(t *testing.T, size int, ttl time.Duration) (*Registry, *memstore.AuthBackend) {
	t.Helper()
	bus := pubsub.NewWatermillBridge()
	t.Cleanup(func() { _ = bus.Close() })
	backend := memstore.NewAuthBackend([]byte("visitor-test-secret"), discardSender{})
	r := NewRegistry(backend, bus, memstore.NewProfileStore(), size, ttl)
	t.Cleanup(r.Close)
	return r, backend
}

func TestRegistry_ResolveReusesContext(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t, 10, time.Hour)

	id := NewID()
	first := r.Resolve(ctx, id)
	second := r.Resolve(ctx, id)
	assert.Same(t, first, second)
	assert.Equal(t, 1, r.Len())

	require.NoError(t, first.Session.Wait(ctx, time.Second))
	assert.False(t, first.Session.Authenticated())
}

func TestRegistry_SignInReachesSessionStore(t *testing.T) {
	ctx := context.Background()
	r, backend := newTestRegistry(t, 10, time.Hour)
	_, err := backend.SignUp(ctx, "ana@example.com", "secret1", nil)
	require.NoError(t, err)

	vc := r.Resolve(ctx, NewID())
	require.NoError(t, vc.Session.Wait(ctx, time.Second))

	_, err = vc.Auth.SignIn(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, vc.Session.Authenticated(), "the store is updated before SignIn returns")

	require.NoError(t, vc.Auth.SignOut(ctx))
	assert.False(t, vc.Session.Authenticated())
}

func TestRegistry_DropClosesContext(t *testing.T) {
	ctx := context.Background()
	r, backend := newTestRegistry(t, 10, time.Hour)
	_, err := backend.SignUp(ctx, "ana@example.com", "secret1", nil)
	require.NoError(t, err)

	id := NewID()
	vc := r.Resolve(ctx, id)
	require.NoError(t, vc.Session.Wait(ctx, time.Second))
	_, err = vc.Auth.SignIn(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	r.Drop(id)
	_, ok := r.Get(id)
	assert.False(t, ok)
	assert.False(t, vc.Session.Authenticated())
	assert.Nil(t, vc.Profiles.Current())

	fresh := r.Resolve(ctx, id)
	assert.NotSame(t, vc, fresh)
}

func TestRegistry_EvictsBeyondCapacity(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t, 2, time.Hour)

	a := r.Resolve(ctx, "a")
	r.Resolve(ctx, "b")
	r.Resolve(ctx, "c")

	assert.Equal(t, 2, r.Len())
	_, ok := r.Get("a")
	assert.False(t, ok)
	require.NoError(t, a.Session.Wait(ctx, time.Second))
	assert.False(t, a.Session.Authenticated())
}

func TestRegistry_IdleExpiry(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRegistry(t, 10, 50*time.Millisecond)

	r.Resolve(ctx, "idle")
	assert.Eventually(t, func() bool {
		_, ok := r.Get("idle")
		return !ok
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRegistry_ChurnKeepsMemoryFlat(t *testing.T) {
	if testing.Short() {
		t.Skip("churns thousands of visitors")
	}
	ctx := context.Background()
	r, _ := newTestRegistry(t, 16, time.Hour)

	churn := func(n int) {
		for i := 0; i < n; i++ {
			id := NewID()
			vc := r.Resolve(ctx, id)
			require.NoError(t, vc.Session.Wait(ctx, time.Second))
			r.Drop(id)
		}
	}
	goroutines := func() int { return runtime.NumGoroutine() }
	heap := func() uint64 {
		var m runtime.MemStats
		runtime.GC()
		runtime.ReadMemStats(&m)
		return m.HeapAlloc
	}

	churn(2000)
	baseGoroutines := goroutines()
	base := heap()

	churn(20000)
	assert.Eventually(t, func() bool { return goroutines() <= baseGoroutines+8 }, 2*time.Second, 10*time.Millisecond,
		"closed visitors leave no subscription goroutines behind")
	after := heap()

	assert.Equal(t, 0, r.Len())
	var growth uint64
	if after > base {
		growth = after - base
	}
	assert.Less(t, growth, uint64(4<<20), "heap grew by %d bytes over 20000 dropped visitors", growth)
}
