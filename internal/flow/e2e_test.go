package flow_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"authgate/internal/apiclient"
	"authgate/internal/app"
	"authgate/internal/authstate"
	"authgate/internal/config"
	"authgate/internal/flow"
	"authgate/internal/identity/identitytest"
	"authgate/internal/platform/database"
	"authgate/internal/shared"
	"authgate/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// tokenVerifier trusts the fake provider's "valid-<uid>" tokens.
type tokenVerifier struct{}

func (v tokenVerifier) VerifyIDToken(_ context.Context, token string) (*shared.Claims, error) {
	uid, ok := strings.CutPrefix(token, "valid-")
	if !ok || uid == "" {
		return nil, errors.New("token has invalid signature")
	}
	return &shared.Claims{UID: uid, Email: "alice@x.com", SignInProvider: "password"}, nil
}

type sink struct {
	mu    sync.Mutex
	msgs  []string
	paths []string
}

func (s *sink) Success(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *sink) Error(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, "error: "+msg)
}

func (s *sink) Navigate(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
}

func TestSignupThenLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	cfg := &config.Config{
		GinMode:    gin.TestMode,
		DBDriver:   config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "e2e.db"),
	}
	db, err := database.NewGORM(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseGORMDB(db, logger) })
	require.NoError(t, user.Migrate(db))
	repo := user.NewGORMRepository(db)

	provider := identitytest.NewFake()
	srv, err := app.NewServer(cfg, logger, user.NewHandler(user.NewService(repo, logger), logger), tokenVerifier{}, repo)
	require.NoError(t, err)
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	store := authstate.New(provider, logger)
	t.Cleanup(store.Close)

	backend := apiclient.New(httpSrv.URL, 5*time.Second, logger)
	out := &sink{}
	signup := flow.New(provider, backend, out, out, time.Millisecond, logger)
	t.Cleanup(signup.Close)

	ctx := context.Background()
	require.NoError(t, signup.SubmitSignup(ctx, flow.Form{UserName: "alice", Email: "alice@x.com", Password: "Abcdef1!"}))

	var count int64
	require.NoError(t, db.Model(&user.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
	stored, err := repo.FindByUID(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.UserName)

	assert.Eventually(t, func() bool { return store.Current().Token == "valid-uid-1" }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, provider.SignOut(ctx))
	assert.False(t, store.Current().SignedIn())

	login := flow.New(provider, backend, out, out, time.Millisecond, logger)
	t.Cleanup(login.Close)
	require.NoError(t, login.SubmitLogin(ctx, flow.Form{Email: "alice@x.com", Password: "Abcdef1!"}))

	require.NoError(t, db.Model(&user.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "login must not create another profile")

	protected, err := backend.Protected(ctx, "valid-uid-1")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", protected.UID)
	assert.Equal(t, "alice", protected.UserName)

	out.mu.Lock()
	defer out.mu.Unlock()
	assert.Equal(t, []string{flow.MsgSignupSuccess, flow.MsgLoginSuccess}, out.msgs)
}
