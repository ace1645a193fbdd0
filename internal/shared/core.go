// File: internal/shared/core.go
package shared

import (
	"context"
	"time"
)

// Claims are the verified identity facts extracted from a provider-issued ID token.
// They live only for the duration of one request.
type Claims struct {
	UID            string
	Email          string
	SignInProvider string // e.g. "password", "google.com"
	IssuedAt       time.Time
}

// TokenVerifier validates a bearer token with the identity provider.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Claims, error)
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
