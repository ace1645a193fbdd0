package authstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"authgate/internal/identity"
	"authgate/internal/identity/identitytest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func waitReady(t *testing.T, s *Store) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	st, err := s.Wait(ctx)
	require.NoError(t, err)
	return st
}

func TestStore_InitialSignedOut(t *testing.T) {
	store := New(identitytest.NewFake(), zap.NewNop())
	defer store.Close()

	st := waitReady(t, store)
	assert.False(t, st.Loading)
	assert.False(t, st.SignedIn())
	assert.Empty(t, st.Token)
}

func TestStore_RestoredSessionStartsLoading(t *testing.T) {
	fake := identitytest.NewFake()
	release := make(chan struct{})
	fake.TokenFunc = func(ctx context.Context, u *identity.User) (string, error) {
		<-release
		return "valid-" + u.UID, nil
	}
	fake.SetCurrent(&identity.User{UID: "uid-r"})

	store := New(fake, zap.NewNop())
	defer store.Close()

	assert.True(t, store.Current().Loading)
	select {
	case <-store.Ready():
		t.Fatal("store must not be ready before the token resolves")
	default:
	}

	close(release)
	st := waitReady(t, store)
	assert.Equal(t, "valid-uid-r", st.Token)
	assert.Equal(t, "uid-r", st.User.UID)
}

func TestStore_SignInAndOut(t *testing.T) {
	fake := identitytest.NewFake()
	fake.AddAccount("a@b.co", "Abcdef1!", "")
	store := New(fake, zap.NewNop())
	defer store.Close()
	waitReady(t, store)

	u, err := fake.SignInWithPassword(context.Background(), "a@b.co", "Abcdef1!")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		st := store.Current()
		return st.SignedIn() && st.Token == "valid-"+u.UID
	}, waitFor, tick)

	require.NoError(t, fake.SignOut(context.Background()))
	st := store.Current()
	assert.False(t, st.SignedIn())
	assert.Empty(t, st.Token)
}

func TestStore_StaleTokenFetchIsDiscarded(t *testing.T) {
	fake := identitytest.NewFake()
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	fake.TokenFunc = func(ctx context.Context, u *identity.User) (string, error) {
		if u.UID == "slow" {
			close(slowStarted)
			<-releaseSlow
		}
		return "valid-" + u.UID, nil
	}
	store := New(fake, zap.NewNop())
	defer store.Close()
	waitReady(t, store)

	fake.SetCurrent(&identity.User{UID: "slow"})
	<-slowStarted
	fake.SetCurrent(&identity.User{UID: "fast"})

	assert.Eventually(t, func() bool { return store.Current().Token == "valid-fast" }, waitFor, tick)

	close(releaseSlow)
	time.Sleep(50 * time.Millisecond)
	st := store.Current()
	assert.Equal(t, "fast", st.User.UID)
	assert.Equal(t, "valid-fast", st.Token)
}

func TestStore_SignOutWhileFetchingWins(t *testing.T) {
	fake := identitytest.NewFake()
	started := make(chan struct{})
	release := make(chan struct{})
	fake.TokenFunc = func(ctx context.Context, u *identity.User) (string, error) {
		close(started)
		<-release
		return "valid-" + u.UID, nil
	}
	store := New(fake, zap.NewNop())
	defer store.Close()
	waitReady(t, store)

	fake.SetCurrent(&identity.User{UID: "u1"})
	<-started
	require.NoError(t, fake.SignOut(context.Background()))
	close(release)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, store.Current().SignedIn())
}

func TestStore_TokenFailurePublishesSignedOut(t *testing.T) {
	fake := identitytest.NewFake()
	fake.TokenFunc = func(context.Context, *identity.User) (string, error) {
		return "", errors.New("network down")
	}
	fake.SetCurrent(&identity.User{UID: "u1"})

	store := New(fake, zap.NewNop())
	defer store.Close()

	st := waitReady(t, store)
	assert.False(t, st.SignedIn())
	assert.False(t, st.Loading)
}

func TestStore_CloseIgnoresLaterNotifications(t *testing.T) {
	fake := identitytest.NewFake()
	started := make(chan struct{})
	release := make(chan struct{})
	fake.TokenFunc = func(ctx context.Context, u *identity.User) (string, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return "valid-" + u.UID, nil
	}
	store := New(fake, zap.NewNop())
	waitReady(t, store)

	fake.SetCurrent(&identity.User{UID: "u1"})
	<-started
	store.Close()
	store.Close()
	close(release)

	fake.SetCurrent(&identity.User{UID: "u2"})
	time.Sleep(50 * time.Millisecond)
	assert.False(t, store.Current().SignedIn())
}

func TestStore_ChangesDeliversLatest(t *testing.T) {
	fake := identitytest.NewFake()
	store := New(fake, zap.NewNop())
	defer store.Close()

	select {
	case st := <-store.Changes():
		assert.False(t, st.SignedIn())
	case <-time.After(waitFor):
		t.Fatal("no initial change delivered")
	}

	fake.SetCurrent(&identity.User{UID: "u1"})
	select {
	case st := <-store.Changes():
		assert.Equal(t, "valid-u1", st.Token)
	case <-time.After(waitFor):
		t.Fatal("sign-in change not delivered")
	}
}

func TestStore_WaitHonoursContext(t *testing.T) {
	fake := identitytest.NewFake()
	fake.TokenFunc = func(ctx context.Context, u *identity.User) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	fake.SetCurrent(&identity.User{UID: "u1"})
	store := New(fake, zap.NewNop())
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := store.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
