package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Backend names accepted by AUTH_BACKEND and DATA_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSurreal  = "surreal"
	BackendPostgres = "postgres"
)

// Provider exposes configuration values through getters so that consumers
// can depend on a narrow interface and tests can stub single values.
type Provider interface {
	GetAppAddr() string
	GetAppBaseURL() string
	GetAppLanguage() string
	GetSessionSecret() string
	GetAuthBackend() string
	GetDataBackend() string
	GetDBURL() string
	GetDBNs() string
	GetDBDb() string
	GetDBUser() string
	GetDBPass() string
	GetDBQueryTimeout() time.Duration
	GetDBExecuteTimeout() time.Duration
	GetPostgresURL() string
	GetGuardWaitTimeout() time.Duration
	GetVisitorIdleTTL() time.Duration
	GetVisitorMax() int
	GetMaxImageBytes() int64
	GetLoginRateLimit() float64
	GetEmailProvider() string
	GetEmailSender() string
	GetEmailAPIKey() string
	GetNodeID() int64
	GetTracingEnabled() bool
	GetTracingServiceName() string
	GetTracingZipkinURL() string
}

// Config holds all configuration for the application.
type Config struct {
	App      AppConfig      `envPrefix:"APP_"`
	Surreal  SurrealConfig  `envPrefix:"SURREAL_"`
	DB       DBConfig       `envPrefix:"DB_"`
	Postgres PostgresConfig `envPrefix:"POSTGRES_"`
	Visitor  VisitorConfig  `envPrefix:"VISITOR_"`
	Email    EmailConfig    `envPrefix:"EMAIL_"`
	Tracing  TracingConfig  `envPrefix:"PUBSUB_TRACING_"`

	SessionSecret    string        `env:"SESSION_SECRET" envDefault:"change-me-in-production-please!"`
	AuthBackend      string        `env:"AUTH_BACKEND" envDefault:"memory"`
	DataBackend      string        `env:"DATA_BACKEND" envDefault:"memory"`
	GuardWaitTimeout time.Duration `env:"GUARD_WAIT_TIMEOUT" envDefault:"0s"`
	MaxImageBytes    int64         `env:"MAX_IMAGE_BYTES" envDefault:"5242880"`
	LoginRateLimit   float64       `env:"LOGIN_RATE_LIMIT" envDefault:"10"`
	NodeID           int64         `env:"NODE_ID" envDefault:"1"`
}

type AppConfig struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	BaseURL  string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	Language string `env:"LANGUAGE" envDefault:"es"`
}

type SurrealConfig struct {
	URL  string `env:"URL"`
	NS   string `env:"NS" envDefault:"storefront"`
	DB   string `env:"DB" envDefault:"storefront"`
	User string `env:"USER" envDefault:"root"`
	Pass string `env:"PASS"`
}

type DBConfig struct {
	QueryTimeout   time.Duration `env:"QUERY_TIMEOUT" envDefault:"5s"`
	ExecuteTimeout time.Duration `env:"EXECUTE_TIMEOUT" envDefault:"10s"`
}

type PostgresConfig struct {
	URL string `env:"URL"`
}

type VisitorConfig struct {
	IdleTTL time.Duration `env:"IDLE_TTL" envDefault:"24h"`
	Max     int           `env:"MAX" envDefault:"10000"`
}

type EmailConfig struct {
	Provider string `env:"PROVIDER" envDefault:"log"`
	Sender   string `env:"SENDER" envDefault:"Storefront <no-reply@storefront.local>"`
	APIKey   string `env:"API_KEY"`
}

// TracingConfig controls the OpenTelemetry spans around pub/sub traffic.
type TracingConfig struct {
	Enabled     bool   `env:"ENABLED" envDefault:"false"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"storefront"`
	ZipkinURL   string `env:"ZIPKIN_URL" envDefault:"http://localhost:9411/api/v2/spans"`
}

// New loads configuration from the environment, reading a .env file first
// when one is present.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	return Load()
}

// Load parses the current process environment without touching .env files.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects backend selections that cannot work with the given values.
func (c *Config) Validate() error {
	var errs []error

	switch c.AuthBackend {
	case BackendMemory:
	case BackendSurreal:
		if c.Surreal.URL == "" {
			errs = append(errs, errors.New("AUTH_BACKEND=surreal requires SURREAL_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_BACKEND %q", c.AuthBackend))
	}

	switch c.DataBackend {
	case BackendMemory:
	case BackendSurreal:
		if c.Surreal.URL == "" {
			errs = append(errs, errors.New("DATA_BACKEND=surreal requires SURREAL_URL"))
		}
	case BackendPostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, errors.New("DATA_BACKEND=postgres requires POSTGRES_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DATA_BACKEND %q", c.DataBackend))
	}

	if len(c.SessionSecret) < 16 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 16 characters"))
	}
	if c.GuardWaitTimeout < 0 {
		errs = append(errs, errors.New("GUARD_WAIT_TIMEOUT cannot be negative"))
	}
	if c.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("MAX_IMAGE_BYTES must be positive"))
	}
	if c.DB.QueryTimeout <= 0 || c.DB.ExecuteTimeout <= 0 {
		errs = append(errs, errors.New("DB_QUERY_TIMEOUT and DB_EXECUTE_TIMEOUT must be positive durations"))
	}

	return errors.Join(errs...)
}

func (c *Config) GetAppAddr() string                 { return c.App.Addr }
func (c *Config) GetAppBaseURL() string              { return c.App.BaseURL }
func (c *Config) GetAppLanguage() string             { return c.App.Language }
func (c *Config) GetSessionSecret() string           { return c.SessionSecret }
func (c *Config) GetAuthBackend() string             { return c.AuthBackend }
func (c *Config) GetDataBackend() string             { return c.DataBackend }
func (c *Config) GetDBURL() string                   { return c.Surreal.URL }
func (c *Config) GetDBNs() string                    { return c.Surreal.NS }
func (c *Config) GetDBDb() string                    { return c.Surreal.DB }
func (c *Config) GetDBUser() string                  { return c.Surreal.User }
func (c *Config) GetDBPass() string                  { return c.Surreal.Pass }
func (c *Config) GetDBQueryTimeout() time.Duration   { return c.DB.QueryTimeout }
func (c *Config) GetDBExecuteTimeout() time.Duration { return c.DB.ExecuteTimeout }
func (c *Config) GetPostgresURL() string             { return c.Postgres.URL }
func (c *Config) GetGuardWaitTimeout() time.Duration { return c.GuardWaitTimeout }
func (c *Config) GetVisitorIdleTTL() time.Duration   { return c.Visitor.IdleTTL }
func (c *Config) GetVisitorMax() int                 { return c.Visitor.Max }
func (c *Config) GetMaxImageBytes() int64            { return c.MaxImageBytes }
func (c *Config) GetLoginRateLimit() float64         { return c.LoginRateLimit }
func (c *Config) GetEmailProvider() string           { return c.Email.Provider }
func (c *Config) GetEmailSender() string             { return c.Email.Sender }
func (c *Config) GetEmailAPIKey() string             { return c.Email.APIKey }
func (c *Config) GetNodeID() int64                   { return c.NodeID }
func (c *Config) GetTracingEnabled() bool            { return c.Tracing.Enabled }
func (c *Config) GetTracingServiceName() string      { return c.Tracing.ServiceName }
func (c *Config) GetTracingZipkinURL() string        { return c.Tracing.ZipkinURL }
