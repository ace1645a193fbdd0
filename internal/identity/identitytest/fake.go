// File: internal/identity/identitytest/fake.go

// Package identitytest provides an in-memory identity.Provider for tests.
package identitytest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"authgate/internal/identity"
)

type account struct {
	uid         string
	password    string
	displayName string
}

// Fake is an in-memory identity.Provider. ID tokens default to "valid-<uid>".
type Fake struct {
	// TokenFunc, when set, replaces the default token issuance.
	TokenFunc func(ctx context.Context, u *identity.User) (string, error)

	mu        sync.Mutex
	accounts  map[string]*account
	federated map[string]*identity.User
	current   *identity.User
	listeners map[int]func(*identity.User)
	nextID    int
	nextUID   int
	calls     []string
}

var _ identity.Provider = (*Fake)(nil)

// NewFake returns an empty provider with no accounts.
func NewFake() *Fake {
	return &Fake{
		accounts:  make(map[string]*account),
		federated: make(map[string]*identity.User),
		listeners: make(map[int]func(*identity.User)),
	}
}

// AddAccount registers an email/password account and returns its uid.
func (f *Fake) AddAccount(email, password, displayName string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addAccountLocked(email, password, displayName)
}

// AddFederated makes credential sign in as the given Google user.
func (f *Fake) AddFederated(credential string, u identity.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ProviderID = string(identity.Google)
	f.federated[credential] = &u
}

// Calls lists the provider methods invoked so far.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// SetCurrent replaces the signed-in user and notifies listeners, as a session
// restored from disk or an external sign-out would.
func (f *Fake) SetCurrent(u *identity.User) {
	f.mu.Lock()
	f.current = u
	f.mu.Unlock()
	f.notify(u)
}

func (f *Fake) addAccountLocked(email, password, displayName string) string {
	f.nextUID++
	uid := fmt.Sprintf("uid-%d", f.nextUID)
	f.accounts[strings.ToLower(email)] = &account{uid: uid, password: password, displayName: displayName}
	return uid
}

func (f *Fake) SignInWithPassword(ctx context.Context, email, password string) (*identity.User, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "SignInWithPassword")
	acct, ok := f.accounts[strings.ToLower(email)]
	if !ok || acct.password != password {
		f.mu.Unlock()
		return nil, &identity.ProviderError{Code: identity.CodeInvalidCredential, Message: "INVALID_LOGIN_CREDENTIALS"}
	}
	u := &identity.User{UID: acct.uid, Email: email, DisplayName: acct.displayName, ProviderID: "password"}
	f.current = u
	f.mu.Unlock()

	f.notify(u)
	return u, nil
}

func (f *Fake) SignUpWithPassword(ctx context.Context, email, password string) (*identity.User, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "SignUpWithPassword")
	if _, exists := f.accounts[strings.ToLower(email)]; exists {
		f.mu.Unlock()
		return nil, &identity.ProviderError{Code: identity.CodeEmailInUse, Message: "EMAIL_EXISTS"}
	}
	if len(password) < 6 {
		f.mu.Unlock()
		return nil, &identity.ProviderError{Code: identity.CodeWeakPassword, Message: "WEAK_PASSWORD"}
	}
	uid := f.addAccountLocked(email, password, "")
	u := &identity.User{UID: uid, Email: email, ProviderID: "password"}
	f.current = u
	f.mu.Unlock()

	f.notify(u)
	return u, nil
}

func (f *Fake) SignInWithFederated(ctx context.Context, kind identity.ProviderKind, credential string) (*identity.User, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "SignInWithFederated")
	tmpl, ok := f.federated[credential]
	if kind != identity.Google || !ok {
		f.mu.Unlock()
		return nil, &identity.ProviderError{Code: identity.CodeInvalidCredential, Message: "INVALID_IDP_RESPONSE"}
	}
	u := *tmpl
	f.current = &u
	f.mu.Unlock()

	f.notify(&u)
	return &u, nil
}

func (f *Fake) UpdateProfile(ctx context.Context, u *identity.User, displayName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "UpdateProfile")
	u.DisplayName = displayName
	if acct, ok := f.accounts[strings.ToLower(u.Email)]; ok {
		acct.displayName = displayName
	}
	return nil
}

func (f *Fake) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.calls = append(f.calls, "SignOut")
	f.current = nil
	f.mu.Unlock()

	f.notify(nil)
	return nil
}

func (f *Fake) IDToken(ctx context.Context, u *identity.User) (string, error) {
	if f.TokenFunc != nil {
		return f.TokenFunc(ctx, u)
	}
	if u == nil {
		return "", &identity.ProviderError{Code: identity.CodeInvalidCredential, Message: "no user"}
	}
	return "valid-" + u.UID, nil
}

func (f *Fake) OnAuthStateChanged(fn func(*identity.User)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	current := f.current
	f.mu.Unlock()

	fn(current)
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *Fake) notify(u *identity.User) {
	f.mu.Lock()
	fns := make([]func(*identity.User), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(u)
	}
}
