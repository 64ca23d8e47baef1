package database

import (
	"context"
	"time"
)

type contextKey string

const (
	queryTimeoutKey   contextKey = "db_query_timeout"
	executeTimeoutKey contextKey = "db_execute_timeout"
)

// WithQueryTimeout returns a context whose reads use d instead of the
// configured query timeout.
func WithQueryTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, queryTimeoutKey, d)
}

// WithExecuteTimeout returns a context whose writes and schema statements
// use d instead of the configured execute timeout.
func WithExecuteTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, executeTimeoutKey, d)
}

// withTimeout applies the override stored under key, or defaultTimeout when
// there is none.
func withTimeout(ctx context.Context, defaultTimeout time.Duration, key contextKey) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := defaultTimeout
	if v, ok := ctx.Value(key).(time.Duration); ok && v > 0 {
		timeout = v
	}
	return context.WithTimeout(ctx, timeout)
}
