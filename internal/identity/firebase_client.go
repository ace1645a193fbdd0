// File: internal/identity/firebase_client.go
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"authgate/internal/config"

	"go.uber.org/zap"
)

const (
	defaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	defaultSecureTokenURL     = "https://securetoken.googleapis.com/v1"

	// Tokens this close to expiry are refreshed before being handed out.
	tokenRefreshWindow = 5 * time.Minute
)

// FirebaseClient implements Provider over the Firebase Auth REST API.
type FirebaseClient struct {
	apiKey          string
	identityURL     string
	secureTokenURL  string
	httpClient      *http.Client
	logger          *zap.Logger
	now             func() time.Time
	federatedReturn string

	mu         sync.Mutex
	current    *User
	listeners  map[int]func(*User)
	nextListen int
}

var _ Provider = (*FirebaseClient)(nil)

// Option customises a FirebaseClient.
type Option func(*FirebaseClient)

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *FirebaseClient) { c.httpClient = hc }
}

// WithEndpoints points the client at alternative Identity Toolkit and Secure Token base URLs.
func WithEndpoints(identityURL, secureTokenURL string) Option {
	return func(c *FirebaseClient) {
		c.identityURL = strings.TrimRight(identityURL, "/")
		c.secureTokenURL = strings.TrimRight(secureTokenURL, "/")
	}
}

// NewFirebaseClient creates a client for the project owning apiKey.
func NewFirebaseClient(apiKey string, logger *zap.Logger, opts ...Option) *FirebaseClient {
	c := &FirebaseClient{
		apiKey:          apiKey,
		identityURL:     defaultIdentityToolkitURL,
		secureTokenURL:  defaultSecureTokenURL,
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		logger:          logger,
		now:             time.Now,
		federatedReturn: "http://localhost",
		listeners:       make(map[int]func(*User)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFirebaseClientFromConfig builds a client from the loaded configuration,
// targeting the auth emulator when FIREBASE_AUTH_EMULATOR_HOST is set.
func NewFirebaseClientFromConfig(cfg *config.Config, logger *zap.Logger) *FirebaseClient {
	opts := []Option{WithHTTPClient(&http.Client{Timeout: cfg.HTTPClientTimeout})}
	if cfg.FirebaseAuthEmulatorHost != "" {
		base := "http://" + cfg.FirebaseAuthEmulatorHost
		opts = append(opts, WithEndpoints(base+"/identitytoolkit.googleapis.com/v1", base+"/securetoken.googleapis.com/v1"))
	}
	return NewFirebaseClient(cfg.FirebaseWebAPIKey, logger, opts...)
}

// authResponse covers the fields shared by signUp, signInWithPassword, signInWithIdp and update.
type authResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	ProviderID   string `json:"providerId"`
}

func (c *FirebaseClient) SignInWithPassword(ctx context.Context, email, password string) (*User, error) {
	var resp authResponse
	err := c.postJSON(ctx, c.identityURL+"/accounts:signInWithPassword", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return c.signedIn(resp, "password"), nil
}

func (c *FirebaseClient) SignUpWithPassword(ctx context.Context, email, password string) (*User, error) {
	var resp authResponse
	err := c.postJSON(ctx, c.identityURL+"/accounts:signUp", map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return c.signedIn(resp, "password"), nil
}

// SignInWithFederated exchanges a provider credential (for Google, an ID token) for a session.
func (c *FirebaseClient) SignInWithFederated(ctx context.Context, kind ProviderKind, credential string) (*User, error) {
	if kind != Google {
		return nil, &ProviderError{Code: "auth/operation-not-allowed", Message: fmt.Sprintf("provider %q is not supported", kind)}
	}
	if credential == "" {
		return nil, &ProviderError{Code: CodeInvalidCredential, Message: "missing federated credential"}
	}
	postBody := url.Values{}
	postBody.Set("id_token", credential)
	postBody.Set("providerId", string(kind))

	var resp authResponse
	err := c.postJSON(ctx, c.identityURL+"/accounts:signInWithIdp", map[string]interface{}{
		"postBody":            postBody.Encode(),
		"requestUri":          c.federatedReturn,
		"returnSecureToken":   true,
		"returnIdpCredential": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return c.signedIn(resp, string(kind)), nil
}

// UpdateProfile sets the display name on the provider account and on user.
func (c *FirebaseClient) UpdateProfile(ctx context.Context, user *User, displayName string) error {
	token, err := c.IDToken(ctx, user)
	if err != nil {
		return err
	}
	var resp authResponse
	err = c.postJSON(ctx, c.identityURL+"/accounts:update", map[string]interface{}{
		"idToken":           token,
		"displayName":       displayName,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return err
	}

	c.mu.Lock()
	user.DisplayName = resp.DisplayName
	if resp.IDToken != "" {
		c.setTokenLocked(user, resp.IDToken, resp.RefreshToken, resp.ExpiresIn)
	}
	c.mu.Unlock()
	return nil
}

func (c *FirebaseClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	c.logger.Debug("Signed out")
	c.notify(nil)
	return nil
}

// IDToken returns the user's ID token, refreshing it when it is about to expire.
func (c *FirebaseClient) IDToken(ctx context.Context, user *User) (string, error) {
	if user == nil {
		return "", &ProviderError{Code: CodeInvalidCredential, Message: "no user"}
	}

	c.mu.Lock()
	token, refresh, expiresAt := user.idToken, user.refreshToken, user.expiresAt
	c.mu.Unlock()

	if token != "" && c.now().Add(tokenRefreshWindow).Before(expiresAt) {
		return token, nil
	}
	if refresh == "" {
		return "", &ProviderError{Code: CodeTokenExpired, Message: "ID token expired and no refresh token is available"}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refresh)

	var resp struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
		UserID       string `json:"user_id"`
	}
	if err := c.do(ctx, c.secureTokenURL+"/token", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), &resp); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.setTokenLocked(user, resp.IDToken, resp.RefreshToken, resp.ExpiresIn)
	c.mu.Unlock()
	c.logger.Debug("ID token refreshed", zap.String("uid", user.UID))
	return resp.IDToken, nil
}

func (c *FirebaseClient) OnAuthStateChanged(fn func(*User)) func() {
	c.mu.Lock()
	id := c.nextListen
	c.nextListen++
	c.listeners[id] = fn
	current := c.current
	c.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// CurrentUser returns the signed-in user, or nil.
func (c *FirebaseClient) CurrentUser() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FirebaseClient) signedIn(resp authResponse, providerID string) *User {
	u := &User{
		UID:         resp.LocalID,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		ProviderID:  providerID,
	}
	c.mu.Lock()
	c.setTokenLocked(u, resp.IDToken, resp.RefreshToken, resp.ExpiresIn)
	c.current = u
	c.mu.Unlock()

	c.logger.Debug("Signed in", zap.String("uid", u.UID), zap.String("provider", providerID))
	c.notify(u)
	return u
}

func (c *FirebaseClient) setTokenLocked(u *User, idToken, refreshToken, expiresIn string) {
	u.idToken = idToken
	if refreshToken != "" {
		u.refreshToken = refreshToken
	}
	seconds, err := strconv.Atoi(expiresIn)
	if err != nil || seconds <= 0 {
		seconds = 3600
	}
	u.expiresAt = c.now().Add(time.Duration(seconds) * time.Second)
}

func (c *FirebaseClient) notify(u *User) {
	c.mu.Lock()
	fns := make([]func(*User), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}

func (c *FirebaseClient) postJSON(ctx context.Context, endpoint string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, endpoint, "application/json", bytes.NewReader(payload), out)
}

func (c *FirebaseClient) do(ctx context.Context, endpoint, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+url.QueryEscape(c.apiKey), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	res, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &ProviderError{Code: CodeNetworkFailed, Message: err.Error()}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return &ProviderError{Code: CodeNetworkFailed, Message: err.Error()}
	}

	if res.StatusCode >= http.StatusBadRequest {
		return decodeRESTError(res.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProviderError{Code: CodeInternal, Message: fmt.Sprintf("unreadable provider response: %v", err)}
	}
	return nil
}

type restErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeRESTError(status int, raw []byte) error {
	var body restErrorBody
	if err := json.Unmarshal(raw, &body); err != nil || body.Error.Message == "" {
		return &ProviderError{Code: CodeInternal, Message: fmt.Sprintf("provider returned HTTP %d", status)}
	}
	return &ProviderError{Code: CodeFromRESTMessage(body.Error.Message), Message: body.Error.Message}
}

// CodeFromRESTMessage maps a REST error message such as "EMAIL_EXISTS" or
// "WEAK_PASSWORD : Password should be at least 6 characters" to an auth/* code.
func CodeFromRESTMessage(message string) string {
	key, _, _ := strings.Cut(message, " ")
	switch strings.TrimSpace(key) {
	case "EMAIL_EXISTS":
		return CodeEmailInUse
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return CodeInvalidEmail
	case "WEAK_PASSWORD":
		return CodeWeakPassword
	case "EMAIL_NOT_FOUND", "USER_NOT_FOUND":
		return CodeUserNotFound
	case "INVALID_PASSWORD", "MISSING_PASSWORD":
		return CodeWrongPassword
	case "INVALID_LOGIN_CREDENTIALS", "INVALID_IDP_RESPONSE", "INVALID_ID_TOKEN":
		return CodeInvalidCredential
	case "USER_DISABLED":
		return CodeUserDisabled
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return CodeTooManyRequests
	case "TOKEN_EXPIRED", "INVALID_REFRESH_TOKEN":
		return CodeTokenExpired
	default:
		return "auth/" + strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "_", "-"))
	}
}

// IsProviderError reports whether err carries a provider error code.
func IsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
