// Package app wires the storefront services together with a samber/do
// injector. Services are built lazily on first use and closed in reverse
// order by Shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nfrund/storefront/internal/auth"
	"github.com/nfrund/storefront/internal/catalog"
	"github.com/nfrund/storefront/internal/config"
	"github.com/nfrund/storefront/internal/database"
	"github.com/nfrund/storefront/internal/database/postgres"
	"github.com/nfrund/storefront/internal/domain"
	"github.com/nfrund/storefront/internal/email"
	"github.com/nfrund/storefront/internal/memstore"
	"github.com/nfrund/storefront/internal/pubsub"
	"github.com/nfrund/storefront/internal/server"
	"github.com/nfrund/storefront/internal/visitor"
	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel/trace"
)

// Version is reported by tracing resources and the version command.
var Version = "0.1.0"

// Names of the two SurrealDB connections.
const (
	surrealRoot   = "surreal.root"
	surrealAccess = "surreal.access"
)

// schemaTimeout bounds the schema definition on start, which runs longer
// than a single write on a fresh database.
const schemaTimeout = 30 * time.Second

// AccountLookup resolves an e-mail address to an account id.
type AccountLookup interface {
	LookupEmail(ctx context.Context, email string) (string, error)
}

// App owns the injector and the cleanup of everything it built.
type App struct {
	injector do.Injector

	mu       sync.Mutex
	closers  []closer
	shutdown bool
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// memoryTables holds the in-process tables so both repositories share one node.
type memoryTables struct {
	profiles *memstore.ProfileStore
	products *memstore.ProductStore
}

// New registers the providers for cfg. Nothing is connected until a
// service is first requested.
func New(cfg config.Provider) *App {
	a := &App{injector: do.New()}
	i := a.injector

	do.ProvideValue(i, cfg)

	do.Provide(i, func(i do.Injector) (trace.Tracer, error) {
		tracer, shutdown, err := pubsub.SetupOTel(context.Background(), pubsub.TracingConfig{
			Enabled:     cfg.GetTracingEnabled(),
			ServiceName: cfg.GetTracingServiceName(),
			ZipkinURL:   cfg.GetTracingZipkinURL(),
			Version:     Version,
		})
		if err != nil {
			return nil, err
		}
		a.onShutdown("tracing", shutdown)
		return tracer, nil
	})

	do.Provide(i, func(i do.Injector) (pubsub.Bus, error) {
		bus := pubsub.NewWatermillBridgeWithTracer(do.MustInvoke[trace.Tracer](i))
		a.onShutdown("pubsub", func(context.Context) error { return bus.Close() })
		return bus, nil
	})

	do.Provide(i, func(i do.Injector) (email.Sender, error) {
		return email.NewSender(cfg)
	})

	do.Provide(i, func(i do.Injector) (*snowflake.Node, error) {
		return snowflake.NewNode(cfg.GetNodeID())
	})

	do.ProvideNamed(i, surrealRoot, func(i do.Injector) (*database.Connection, error) {
		conn := database.NewConnection(cfg)
		if err := conn.Connect(context.Background()); err != nil {
			return nil, err
		}
		a.onShutdown(surrealRoot, conn.Close)
		if err := database.DefineSchema(database.WithExecuteTimeout(context.Background(), schemaTimeout), conn); err != nil {
			return nil, err
		}
		conn.StartMonitoring()
		return conn, nil
	})

	do.ProvideNamed(i, surrealAccess, func(i do.Injector) (*database.Connection, error) {
		conn := database.NewConnection(cfg, database.WithoutRootAuth())
		if err := conn.Connect(context.Background()); err != nil {
			return nil, err
		}
		a.onShutdown(surrealAccess, conn.Close)
		conn.StartMonitoring()
		return conn, nil
	})

	do.Provide(i, func(i do.Injector) (*pgxpool.Pool, error) {
		ctx := context.Background()
		pool, err := postgres.Connect(ctx, cfg.GetPostgresURL())
		if err != nil {
			return nil, err
		}
		a.onShutdown("postgres", func(context.Context) error { pool.Close(); return nil })
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		return pool, nil
	})

	do.Provide(i, func(i do.Injector) (*memoryTables, error) {
		node, err := do.Invoke[*snowflake.Node](i)
		if err != nil {
			return nil, err
		}
		return &memoryTables{profiles: memstore.NewProfileStore(), products: memstore.NewProductStore(node)}, nil
	})

	do.Provide(i, provideAuthBackend)
	do.Provide(i, provideProfiles)
	do.Provide(i, provideProducts)

	do.Provide(i, func(i do.Injector) (*catalog.Service, error) {
		products, err := do.Invoke[domain.ProductRepository](i)
		if err != nil {
			return nil, err
		}
		return catalog.NewService(products, cfg.GetMaxImageBytes()), nil
	})

	do.Provide(i, func(i do.Injector) (*auth.Translator, error) {
		return auth.NewTranslator(cfg.GetAppLanguage()), nil
	})

	do.Provide(i, func(i do.Injector) (*visitor.Registry, error) {
		backend, err := do.Invoke[auth.Backend](i)
		if err != nil {
			return nil, err
		}
		profiles, err := do.Invoke[domain.ProfileRepository](i)
		if err != nil {
			return nil, err
		}
		registry := visitor.NewRegistry(backend, do.MustInvoke[pubsub.Bus](i), profiles,
			cfg.GetVisitorMax(), cfg.GetVisitorIdleTTL())
		a.onShutdown("visitors", func(context.Context) error { registry.Close(); return nil })
		return registry, nil
	})

	do.Provide(i, func(i do.Injector) (*server.Server, error) {
		registry, err := do.Invoke[*visitor.Registry](i)
		if err != nil {
			return nil, err
		}
		svc, err := do.Invoke[*catalog.Service](i)
		if err != nil {
			return nil, err
		}
		srv := server.New(server.Dependencies{
			Config:     cfg,
			Registry:   registry,
			Translator: do.MustInvoke[*auth.Translator](i),
			Catalog:    svc,
			Checks:     healthChecks(i, cfg),
		})
		srv.RegisterRoutes()
		return srv, nil
	})

	return a
}

func provideAuthBackend(i do.Injector) (auth.Backend, error) {
	cfg := do.MustInvoke[config.Provider](i)
	sender, err := do.Invoke[email.Sender](i)
	if err != nil {
		return nil, err
	}

	switch cfg.GetAuthBackend() {
	case config.BackendMemory:
		backend, err := memstore.NewAuthBackendFromSecret(cfg.GetSessionSecret(), sender)
		if err != nil {
			return nil, err
		}
		slog.Warn("Using the in-memory auth backend; accounts are lost on restart")
		return backend, nil
	case config.BackendSurreal:
		access, err := do.InvokeNamed[*database.Connection](i, surrealAccess)
		if err != nil {
			return nil, err
		}
		root, err := do.InvokeNamed[*database.Connection](i, surrealRoot)
		if err != nil {
			return nil, err
		}
		return database.NewAuthBackend(access, root, sender), nil
	default:
		return nil, fmt.Errorf("unknown auth backend %q", cfg.GetAuthBackend())
	}
}

func provideProfiles(i do.Injector) (domain.ProfileRepository, error) {
	cfg := do.MustInvoke[config.Provider](i)
	switch cfg.GetDataBackend() {
	case config.BackendMemory:
		tables, err := do.Invoke[*memoryTables](i)
		if err != nil {
			return nil, err
		}
		return tables.profiles, nil
	case config.BackendSurreal:
		root, err := do.InvokeNamed[*database.Connection](i, surrealRoot)
		if err != nil {
			return nil, err
		}
		return database.NewProfileStore(root), nil
	case config.BackendPostgres:
		pool, err := do.Invoke[*pgxpool.Pool](i)
		if err != nil {
			return nil, err
		}
		return postgres.NewProfileStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown data backend %q", cfg.GetDataBackend())
	}
}

func provideProducts(i do.Injector) (domain.ProductRepository, error) {
	cfg := do.MustInvoke[config.Provider](i)
	switch cfg.GetDataBackend() {
	case config.BackendMemory:
		tables, err := do.Invoke[*memoryTables](i)
		if err != nil {
			return nil, err
		}
		return tables.products, nil
	case config.BackendSurreal:
		root, err := do.InvokeNamed[*database.Connection](i, surrealRoot)
		if err != nil {
			return nil, err
		}
		node, err := do.Invoke[*snowflake.Node](i)
		if err != nil {
			return nil, err
		}
		return database.NewProductStore(root, node), nil
	case config.BackendPostgres:
		pool, err := do.Invoke[*pgxpool.Pool](i)
		if err != nil {
			return nil, err
		}
		return postgres.NewProductStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown data backend %q", cfg.GetDataBackend())
	}
}

// healthChecks returns a check per external backend in use.
func healthChecks(i do.Injector, cfg config.Provider) map[string]server.HealthCheck {
	checks := map[string]server.HealthCheck{}
	if cfg.GetAuthBackend() == config.BackendSurreal || cfg.GetDataBackend() == config.BackendSurreal {
		if root, err := do.InvokeNamed[*database.Connection](i, surrealRoot); err == nil {
			checks["surrealdb"] = func(context.Context) error {
				if !root.IsHealthy() {
					return errors.New("connection unhealthy")
				}
				return nil
			}
		}
	}
	if cfg.GetDataBackend() == config.BackendPostgres {
		if pool, err := do.Invoke[*pgxpool.Pool](i); err == nil {
			checks["postgres"] = pool.Ping
		}
	}
	return checks
}

func (a *App) onShutdown(name string, fn func(context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Server returns the HTTP server with its routes registered.
func (a *App) Server() (*server.Server, error) {
	return do.Invoke[*server.Server](a.injector)
}

// Profiles returns the configured profile repository.
func (a *App) Profiles() (domain.ProfileRepository, error) {
	return do.Invoke[domain.ProfileRepository](a.injector)
}

// Catalog returns the product service.
func (a *App) Catalog() (*catalog.Service, error) {
	return do.Invoke[*catalog.Service](a.injector)
}

// Accounts returns the auth backend's e-mail lookup.
func (a *App) Accounts() (AccountLookup, error) {
	backend, err := do.Invoke[auth.Backend](a.injector)
	if err != nil {
		return nil, err
	}
	lookup, ok := backend.(AccountLookup)
	if !ok {
		return nil, errors.New("auth backend cannot look up accounts by e-mail")
	}
	return lookup, nil
}

// Shutdown closes every service that was built, newest first. Later calls
// do nothing.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.shutdown {
		a.mu.Unlock()
		return nil
	}
	a.shutdown = true
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	var errs []error
	for idx := len(closers) - 1; idx >= 0; idx-- {
		c := closers[idx]
		if err := c.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "Failed to close service", "service", c.name, "error", err)
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.injector.ShutdownWithContext(ctx)
	return errors.Join(errs...)
}
