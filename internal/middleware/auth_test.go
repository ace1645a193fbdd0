package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"authgate/internal/shared"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) VerifyIDToken(ctx context.Context, idToken string) (*shared.Claims, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Claims), args.Error(1)
}

func newAuthRouter(verifier shared.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(verifier, zap.NewNop()), func(c *gin.Context) {
		claims := GetClaimsFromContext(c)
		c.JSON(http.StatusOK, gin.H{"uid": claims.UID, "email": claims.Email})
	})
	return r
}

func doGet(r http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	verifier := new(mockVerifier)
	rr := doGet(newAuthRouter(verifier), "")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "UNAUTHENTICATED", body["code"])
	assert.NotEmpty(t, body["message"])
	verifier.AssertNotCalled(t, "VerifyIDToken", mock.Anything, mock.Anything)
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	for _, header := range []string{"Token abc", "bearer abc", "Bearer", "Bearer a b"} {
		t.Run(header, func(t *testing.T) {
			verifier := new(mockVerifier)
			rr := doGet(newAuthRouter(verifier), header)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "UNAUTHENTICATED", decodeBody(t, rr)["code"])
			verifier.AssertNotCalled(t, "VerifyIDToken", mock.Anything, mock.Anything)
		})
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	verifier := new(mockVerifier)
	verifier.On("VerifyIDToken", mock.Anything, "malformed").
		Return(nil, errors.New("failed to verify Firebase ID token: incorrect number of segments"))

	rr := doGet(newAuthRouter(verifier), "Bearer malformed")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "INVALID_TOKEN", body["code"])
	assert.Equal(t, "Invalid token", body["message"])
	assert.Contains(t, body["details"], "incorrect number of segments")
	verifier.AssertExpectations(t)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	verifier := new(mockVerifier)
	verifier.On("VerifyIDToken", mock.Anything, "good").
		Return(&shared.Claims{UID: "uid-1", Email: "alice@x.com"}, nil)

	rr := doGet(newAuthRouter(verifier), "Bearer good")

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "uid-1", body["uid"])
	assert.Equal(t, "alice@x.com", body["email"])
}
