package auth

import "context"

// LoginLimiter counts failed logins per key so brute-force attempts can be cut off.
type LoginLimiter interface {
	// Allowed reports whether another attempt for key may be evaluated.
	Allowed(ctx context.Context, key string) (bool, error)
	// RecordFailure counts one failed attempt for key.
	RecordFailure(ctx context.Context, key string) error
	// Reset clears the failure count for key after a successful login.
	Reset(ctx context.Context, key string) error
}

// NoopLoginLimiter never limits. Used when no Redis is configured.
type NoopLoginLimiter struct{}

func (NoopLoginLimiter) Allowed(context.Context, string) (bool, error) { return true, nil }
func (NoopLoginLimiter) RecordFailure(context.Context, string) error   { return nil }
func (NoopLoginLimiter) Reset(context.Context, string) error           { return nil }
