// File: internal/identity/google.go
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"authgate/internal/config"
	"authgate/internal/platform/crypto"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrStateMismatch is returned when the redirect carries a state other than the one sent.
var ErrStateMismatch = errors.New("oauth state mismatch")

// ErrNoIDToken is returned when the token endpoint response carries no id_token.
var ErrNoIDToken = errors.New("google token response did not include an id_token")

// GoogleCodeFlow obtains a Google ID token through the OAuth 2.0 authorization-code flow.
// The resulting ID token is the credential passed to SignInWithFederated.
type GoogleCodeFlow struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGoogleCodeFlow builds the flow from the GOOGLE_OAUTH_* configuration.
func NewGoogleCodeFlow(cfg *config.Config, logger *zap.Logger) *GoogleCodeFlow {
	return newGoogleCodeFlow(&oauth2.Config{
		ClientID:     cfg.GoogleOAuthClientID,
		ClientSecret: cfg.GoogleOAuthClientSecret,
		RedirectURL:  cfg.GoogleOAuthRedirectURL,
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     google.Endpoint,
	}, &http.Client{Timeout: cfg.HTTPClientTimeout}, logger)
}

func newGoogleCodeFlow(oc *oauth2.Config, hc *http.Client, logger *zap.Logger) *GoogleCodeFlow {
	return &GoogleCodeFlow{oauth: oc, httpClient: hc, logger: logger.Named("GoogleCodeFlow")}
}

// NewState returns a fresh anti-forgery state value.
func (f *GoogleCodeFlow) NewState() (string, error) {
	return crypto.RandomToken(32)
}

// AuthCodeURL is the consent page the user must visit.
func (f *GoogleCodeFlow) AuthCodeURL(state string) string {
	return f.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades an authorization code for the Google ID token.
func (f *GoogleCodeFlow) Exchange(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", &ProviderError{Code: CodeInvalidCredential, Message: "empty authorization code"}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)

	token, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		f.logger.Warn("Failed to exchange Google auth code", zap.Error(err))
		return "", &ProviderError{Code: CodeInvalidCredential, Message: fmt.Sprintf("code exchange failed: %v", err)}
	}
	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return "", ErrNoIDToken
	}
	return idToken, nil
}

// CodeFromRedirect extracts the authorization code from the URL Google redirected
// the browser to, after checking its state against wantState.
func (f *GoogleCodeFlow) CodeFromRedirect(redirectURL, wantState string) (string, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", &ProviderError{Code: CodeInvalidCredential, Message: "google returned " + e}
	}
	if q.Get("state") != wantState {
		f.logger.Warn("Google redirect state mismatch")
		return "", ErrStateMismatch
	}
	code := q.Get("code")
	if code == "" {
		return "", &ProviderError{Code: CodeInvalidCredential, Message: "redirect URL has no code"}
	}
	return code, nil
}
