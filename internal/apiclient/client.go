// File: internal/apiclient/client.go

// Package apiclient calls the profile backend with the caller's ID token.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"authgate/internal/common"
	"authgate/internal/user"

	"go.uber.org/zap"
)

// Client talks to the /api routes of the backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return NewWithHTTPClient(baseURL, &http.Client{Timeout: timeout}, logger)
}

// NewWithHTTPClient creates a client using hc for transport.
func NewWithHTTPClient(baseURL string, hc *http.Client, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		logger:     logger.Named("APIClient"),
	}
}

// CreateProfile calls POST /api/users.
func (c *Client) CreateProfile(ctx context.Context, token, userName string) (*user.ProfileResponse, error) {
	var out user.ProfileResponse
	if err := c.do(ctx, http.MethodPost, "/api/users", token, user.CreateProfileRequest{UserName: userName}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GoogleLogin calls POST /api/users/google.
func (c *Client) GoogleLogin(ctx context.Context, token, userName, email string) (*user.GoogleLoginResponse, error) {
	var out user.GoogleLoginResponse
	body := user.GoogleLoginRequest{UserName: userName, Email: email}
	if err := c.do(ctx, http.MethodPost, "/api/users/google", token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Protected calls GET /api/protected.
func (c *Client) Protected(ctx context.Context, token string) (*user.ProtectedResponse, error) {
	var out user.ProtectedResponse
	if err := c.do(ctx, http.MethodGet, "/api/protected", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set(common.AuthorizationHeader, common.AuthorizationTypeBearer+" "+token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Backend request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s %s response: %w", method, path, err)
	}

	if res.StatusCode != http.StatusOK {
		apiErr := decodeError(res.StatusCode, raw)
		c.logger.Debug("Backend returned error",
			zap.String("path", path),
			zap.Int("status", res.StatusCode),
			zap.String("code", apiErr.Code),
		)
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(status int, raw []byte) *common.APIError {
	apiErr := &common.APIError{}
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Code == "" {
		apiErr = common.NewAPIError(status, "HTTP_"+fmt.Sprint(status), http.StatusText(status))
	}
	apiErr.StatusCode = status
	return apiErr
}
