package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeIdentityServer mimics the Identity Toolkit and Secure Token REST endpoints.
type fakeIdentityServer struct {
	mu        sync.Mutex
	calls     []string
	bodies    map[string]map[string]interface{}
	forms     map[string]url.Values
	failWith  map[string]string
	expiresIn string
}

func newFakeIdentityServer() *fakeIdentityServer {
	return &fakeIdentityServer{
		bodies:    map[string]map[string]interface{}{},
		forms:     map[string]url.Values{},
		failWith:  map[string]string{},
		expiresIn: "3600",
	}
}

func (f *fakeIdentityServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	f.calls = append(f.calls, path)
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Query().Get("key") != "test-key" {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API_KEY_INVALID"}}`))
		return
	}
	if msg, ok := f.failWith[path]; ok {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": map[string]interface{}{"code": 400, "message": msg}})
		return
	}

	if path == "/st/token" {
		_ = r.ParseForm()
		f.forms[path] = r.PostForm
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id_token":      "refreshed-token",
			"refresh_token": "refresh-2",
			"expires_in":    "3600",
			"user_id":       "uid-1",
		})
		return
	}

	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.bodies[path] = body

	resp := map[string]interface{}{
		"localId":      "uid-1",
		"email":        body["email"],
		"idToken":      "id-token-1",
		"refreshToken": "refresh-1",
		"expiresIn":    f.expiresIn,
	}
	switch path {
	case "/v1/accounts:signInWithIdp":
		resp["email"] = "g@example.com"
		resp["displayName"] = "Gina"
		resp["providerId"] = "google.com"
	case "/v1/accounts:update":
		resp["displayName"] = body["displayName"]
		resp["idToken"] = "id-token-2"
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestClient(t *testing.T, fake *fakeIdentityServer) *FirebaseClient {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewFirebaseClient("test-key", zap.NewNop(),
		WithHTTPClient(srv.Client()),
		WithEndpoints(srv.URL+"/v1", srv.URL+"/st"))
}

func TestFirebaseClient_SignUpNotifiesListeners(t *testing.T) {
	client := newTestClient(t, newFakeIdentityServer())

	var seen []*User
	unsubscribe := client.OnAuthStateChanged(func(u *User) { seen = append(seen, u) })
	defer unsubscribe()

	u, err := client.SignUpWithPassword(context.Background(), "a@b.co", "Abcdef1!")
	require.NoError(t, err)

	assert.Equal(t, "uid-1", u.UID)
	assert.Equal(t, "a@b.co", u.Email)
	require.Len(t, seen, 2)
	assert.Nil(t, seen[0], "subscribing reports the current (signed-out) state")
	assert.Same(t, u, seen[1])
	assert.Same(t, u, client.CurrentUser())

	token, err := client.IDToken(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "id-token-1", token)
}

func TestFirebaseClient_SignInErrorMapping(t *testing.T) {
	fake := newFakeIdentityServer()
	fake.failWith["/v1/accounts:signInWithPassword"] = "INVALID_LOGIN_CREDENTIALS"
	client := newTestClient(t, fake)

	_, err := client.SignInWithPassword(context.Background(), "a@b.co", "nope")
	require.Error(t, err)
	pe, ok := IsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidCredential, pe.Code)
	assert.Nil(t, client.CurrentUser())
}

func TestFirebaseClient_SignOut(t *testing.T) {
	client := newTestClient(t, newFakeIdentityServer())
	_, err := client.SignInWithPassword(context.Background(), "a@b.co", "Abcdef1!")
	require.NoError(t, err)

	var last *User = &User{}
	unsubscribe := client.OnAuthStateChanged(func(u *User) { last = u })
	defer unsubscribe()
	require.NotNil(t, last)

	require.NoError(t, client.SignOut(context.Background()))
	assert.Nil(t, last)
	assert.Nil(t, client.CurrentUser())
}

func TestFirebaseClient_Unsubscribe(t *testing.T) {
	client := newTestClient(t, newFakeIdentityServer())

	calls := 0
	unsubscribe := client.OnAuthStateChanged(func(*User) { calls++ })
	unsubscribe()
	unsubscribe()

	_, err := client.SignInWithPassword(context.Background(), "a@b.co", "Abcdef1!")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestFirebaseClient_IDTokenRefreshesNearExpiry(t *testing.T) {
	fake := newFakeIdentityServer()
	fake.expiresIn = "60"
	client := newTestClient(t, fake)

	u, err := client.SignInWithPassword(context.Background(), "a@b.co", "Abcdef1!")
	require.NoError(t, err)

	token, err := client.IDToken(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", token)

	fake.mu.Lock()
	form := fake.forms["/st/token"]
	fake.mu.Unlock()
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "refresh-1", form.Get("refresh_token"))

	// The refreshed token is valid for an hour, so no second refresh.
	token, err = client.IDToken(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", token)
}

func TestFirebaseClient_SignInWithFederated(t *testing.T) {
	fake := newFakeIdentityServer()
	client := newTestClient(t, fake)

	u, err := client.SignInWithFederated(context.Background(), Google, "google-id-token")
	require.NoError(t, err)
	assert.Equal(t, "g@example.com", u.Email)
	assert.Equal(t, "Gina", u.DisplayName)
	assert.Equal(t, "google.com", u.ProviderID)

	fake.mu.Lock()
	body := fake.bodies["/v1/accounts:signInWithIdp"]
	fake.mu.Unlock()
	postBody, err := url.ParseQuery(body["postBody"].(string))
	require.NoError(t, err)
	assert.Equal(t, "google-id-token", postBody.Get("id_token"))
	assert.Equal(t, "google.com", postBody.Get("providerId"))
	assert.Equal(t, true, body["returnSecureToken"])
}

func TestFirebaseClient_SignInWithFederated_Rejects(t *testing.T) {
	client := newTestClient(t, newFakeIdentityServer())

	_, err := client.SignInWithFederated(context.Background(), ProviderKind("github.com"), "cred")
	assert.Error(t, err)

	_, err = client.SignInWithFederated(context.Background(), Google, "")
	pe, ok := IsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidCredential, pe.Code)
}

func TestFirebaseClient_UpdateProfile(t *testing.T) {
	fake := newFakeIdentityServer()
	client := newTestClient(t, fake)

	u, err := client.SignUpWithPassword(context.Background(), "a@b.co", "Abcdef1!")
	require.NoError(t, err)

	require.NoError(t, client.UpdateProfile(context.Background(), u, "alice"))
	assert.Equal(t, "alice", u.DisplayName)

	fake.mu.Lock()
	body := fake.bodies["/v1/accounts:update"]
	fake.mu.Unlock()
	assert.Equal(t, "id-token-1", body["idToken"])

	token, err := client.IDToken(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "id-token-2", token)
}

func TestFirebaseClient_UnreadableErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()
	client := NewFirebaseClient("test-key", zap.NewNop(), WithEndpoints(srv.URL, srv.URL))

	_, err := client.SignInWithPassword(context.Background(), "a@b.co", "x")
	pe, ok := IsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInternal, pe.Code)
}

func TestCodeFromRESTMessage(t *testing.T) {
	tests := map[string]string{
		"EMAIL_EXISTS":              CodeEmailInUse,
		"INVALID_EMAIL":             CodeInvalidEmail,
		"WEAK_PASSWORD : Password should be at least 6 characters": CodeWeakPassword,
		"EMAIL_NOT_FOUND":             CodeUserNotFound,
		"INVALID_PASSWORD":            CodeWrongPassword,
		"INVALID_LOGIN_CREDENTIALS":   CodeInvalidCredential,
		"INVALID_IDP_RESPONSE":        CodeInvalidCredential,
		"USER_DISABLED":               CodeUserDisabled,
		"TOO_MANY_ATTEMPTS_TRY_LATER": CodeTooManyRequests,
		"OPERATION_NOT_ALLOWED":       "auth/operation-not-allowed",
	}
	for msg, want := range tests {
		t.Run(msg, func(t *testing.T) {
			assert.Equal(t, want, CodeFromRESTMessage(msg))
		})
	}
}
