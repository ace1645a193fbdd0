// File: internal/identity/provider.go

// Package identity adapts the external identity provider for the client side:
// password and federated sign-in, sign-out, ID tokens, and auth-state notifications.
package identity

import (
	"context"
	"fmt"
	"time"
)

// ProviderKind names a federated identity provider.
type ProviderKind string

// Google is the only federated provider supported.
const Google ProviderKind = "google.com"

// User is a live handle on a signed-in identity.
type User struct {
	UID         string
	Email       string
	DisplayName string
	ProviderID  string

	idToken      string
	refreshToken string
	expiresAt    time.Time
}

// Provider is the identity provider contract used by the client.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*User, error)
	SignUpWithPassword(ctx context.Context, email, password string) (*User, error)
	SignInWithFederated(ctx context.Context, kind ProviderKind, credential string) (*User, error)
	UpdateProfile(ctx context.Context, user *User, displayName string) error
	SignOut(ctx context.Context) error
	IDToken(ctx context.Context, user *User) (string, error)
	// OnAuthStateChanged registers fn and calls it with the current user (or nil)
	// right away and after every sign-in or sign-out. The returned func unsubscribes.
	OnAuthStateChanged(fn func(*User)) (unsubscribe func())
}

// Provider error codes, in the provider's "auth/..." namespace.
const (
	CodeInvalidCredential = "auth/invalid-credential"
	CodeUserNotFound      = "auth/user-not-found"
	CodeWrongPassword     = "auth/wrong-password"
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeWeakPassword      = "auth/weak-password"
	CodeUserDisabled      = "auth/user-disabled"
	CodeTooManyRequests   = "auth/too-many-requests"
	CodeTokenExpired      = "auth/user-token-expired"
	CodeNetworkFailed     = "auth/network-request-failed"
	CodeInternal          = "auth/internal-error"
)

// ProviderError is a failure reported by the identity provider.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider error %s: %s", e.Code, e.Message)
}
