package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"authgate/internal/common"
	"authgate/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second, zap.NewNop())
}

func TestClient_CreateProfile(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/users", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body user.CreateProfileRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body.UserName)

		_ = json.NewEncoder(w).Encode(user.ProfileResponse{UID: "u1", Email: "a@b.co", UserName: "alice", CreatedAt: created})
	})

	profile, err := client.CreateProfile(context.Background(), "tok-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.UID)
	assert.Equal(t, "alice", profile.UserName)
	assert.True(t, created.Equal(profile.CreatedAt))
}

func TestClient_GoogleLogin(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/google", r.URL.Path)
		var body user.GoogleLoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Gina", body.UserName)
		assert.Equal(t, "g@example.com", body.Email)

		_ = json.NewEncoder(w).Encode(user.GoogleLoginResponse{
			Message: "Google login success",
			User:    user.ProfileResponse{UID: "g1", Email: body.Email, UserName: body.UserName},
		})
	})

	resp, err := client.GoogleLogin(context.Background(), "tok-g", "Gina", "g@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Google login success", resp.Message)
	assert.Equal(t, "g1", resp.User.UID)
}

func TestClient_Protected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Empty(t, r.Header.Get("Content-Type"))
		_ = json.NewEncoder(w).Encode(user.ProtectedResponse{Message: "Hello a@b.co", UID: "u1"})
	})

	resp, err := client.Protected(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "Hello a@b.co", resp.Message)
	assert.Equal(t, "u1", resp.UID)
}

func TestClient_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(common.ErrInvalidToken)
	})

	_, err := client.Protected(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidToken))
	apiErr, ok := common.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid token", apiErr.Message)
}

func TestClient_NonJSONError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := client.CreateProfile(context.Background(), "tok", "alice")
	apiErr, ok := common.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "HTTP_502", apiErr.Code)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := New(url, time.Second, zap.NewNop())
	_, err := client.Protected(context.Background(), "tok")
	require.Error(t, err)
	_, isAPI := common.IsAPIError(err)
	assert.False(t, isAPI)
}
