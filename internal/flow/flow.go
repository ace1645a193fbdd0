// File: internal/flow/flow.go

// Package flow drives a login or signup form submission: local validation,
// the identity provider call, the backend call with the fresh token, and the
// user-facing outcome.
package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	"authgate/internal/identity"
	"authgate/internal/user"
	"authgate/internal/validation"

	"go.uber.org/zap"
)

// HomePath is where a successful submission navigates to.
const HomePath = "/"

// Status is the position of a submission in the state machine.
type Status int

const (
	Idle Status = iota
	Validating
	Submitting
	Success
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// User-facing outcome messages.
const (
	MsgLoginSuccess  = "Login successful"
	MsgSignupSuccess = "Signup successful"
	MsgGoogleSuccess = "Logged in with Google!"

	MsgInvalidCredential = "Invalid email or password."
	MsgUserNotFound      = "User not found."
	MsgWrongPassword     = "Incorrect password."
	MsgLoginFailed       = "Login failed. Please try again."

	MsgEmailInUse   = "Email is already registered"
	MsgInvalidEmail = "Invalid email address."
	MsgWeakPassword = "Weak password."
	MsgSignupFailed = "Signup failed. Please try again."
	MsgGoogleFailed = "Google login failed"
)

// ErrBusy is returned when a submission is already in progress.
var ErrBusy = errors.New("a submission is already in progress")

// ErrClosed is returned by submissions on a closed flow.
var ErrClosed = errors.New("flow is closed")

// Form holds the entered field values.
type Form struct {
	UserName     string
	Email        string
	Password     string
	ShowPassword bool
}

// Notifier shows transient success and error messages.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Navigator moves the client to another view.
type Navigator interface {
	Navigate(path string)
}

// Backend is the subset of the profile API used by the flow.
type Backend interface {
	CreateProfile(ctx context.Context, token, userName string) (*user.ProfileResponse, error)
	GoogleLogin(ctx context.Context, token, userName, email string) (*user.GoogleLoginResponse, error)
	Protected(ctx context.Context, token string) (*user.ProtectedResponse, error)
}

// CredentialSource obtains a federated credential (a Google ID token) from the user.
type CredentialSource interface {
	GoogleCredential(ctx context.Context) (string, error)
}

// Flow runs form submissions one at a time. Safe for concurrent use.
type Flow struct {
	provider  identity.Provider
	backend   Backend
	notifier  Notifier
	navigator Navigator
	delay     time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	status Status
	form   Form
	closed bool
	timer  *time.Timer
	navGen uint64
}

// New creates a flow. delay is how long the success message stays up before navigating home.
func New(provider identity.Provider, backend Backend, notifier Notifier, navigator Navigator, delay time.Duration, logger *zap.Logger) *Flow {
	return &Flow{
		provider:  provider,
		backend:   backend,
		notifier:  notifier,
		navigator: navigator,
		delay:     delay,
		logger:    logger.Named("Flow"),
	}
}

// Status returns the current state.
func (f *Flow) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Form returns the current field values.
func (f *Flow) Form() Form {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

// TogglePasswordVisibility flips ShowPassword.
func (f *Flow) TogglePasswordVisibility() {
	f.mu.Lock()
	f.form.ShowPassword = !f.form.ShowPassword
	f.mu.Unlock()
}

// SubmitLogin validates email and password, signs in, and checks the fresh
// token against the protected route. No profile is created.
func (f *Flow) SubmitLogin(ctx context.Context, form Form) error {
	if err := f.begin(form); err != nil {
		return err
	}
	if err := firstError(validation.Email(form.Email), validation.Password(form.Password)); err != nil {
		return f.fail(err, err.Error())
	}

	f.setStatus(Submitting)
	u, err := f.provider.SignInWithPassword(ctx, form.Email, form.Password)
	if err != nil {
		return f.fail(err, loginMessage(err))
	}
	token, err := f.provider.IDToken(ctx, u)
	if err != nil {
		return f.fail(err, MsgLoginFailed)
	}
	if _, err := f.backend.Protected(ctx, token); err != nil {
		return f.fail(err, MsgLoginFailed)
	}

	f.logger.Info("Login succeeded", zap.String("uid", u.UID))
	f.succeed(MsgLoginSuccess)
	return nil
}

// SubmitSignup validates all fields, creates the provider account, sets its
// display name, and provisions the backend profile.
func (f *Flow) SubmitSignup(ctx context.Context, form Form) error {
	if err := f.begin(form); err != nil {
		return err
	}
	err := firstError(
		validation.UserName(form.UserName),
		validation.Email(form.Email),
		validation.Password(form.Password),
	)
	if err != nil {
		return f.fail(err, err.Error())
	}

	f.setStatus(Submitting)
	u, err := f.provider.SignUpWithPassword(ctx, form.Email, form.Password)
	if err != nil {
		return f.fail(err, signupMessage(err))
	}
	if err := f.provider.UpdateProfile(ctx, u, form.UserName); err != nil {
		return f.fail(err, signupMessage(err))
	}
	token, err := f.provider.IDToken(ctx, u)
	if err != nil {
		return f.fail(err, MsgSignupFailed)
	}
	if _, err := f.backend.CreateProfile(ctx, token, form.UserName); err != nil {
		return f.fail(err, MsgSignupFailed)
	}

	f.logger.Info("Signup succeeded", zap.String("uid", u.UID))
	f.succeed(MsgSignupSuccess)
	return nil
}

// SubmitGoogle signs in with a Google credential and finds or creates the
// backend profile from the provider's display name and email.
func (f *Flow) SubmitGoogle(ctx context.Context, src CredentialSource) error {
	f.mu.Lock()
	current := f.form
	f.mu.Unlock()
	if err := f.begin(current); err != nil {
		return err
	}

	f.setStatus(Submitting)
	credential, err := src.GoogleCredential(ctx)
	if err != nil {
		return f.fail(err, MsgGoogleFailed)
	}
	u, err := f.provider.SignInWithFederated(ctx, identity.Google, credential)
	if err != nil {
		return f.fail(err, MsgGoogleFailed)
	}
	token, err := f.provider.IDToken(ctx, u)
	if err != nil {
		return f.fail(err, MsgGoogleFailed)
	}
	if _, err := f.backend.GoogleLogin(ctx, token, u.DisplayName, u.Email); err != nil {
		return f.fail(err, MsgGoogleFailed)
	}

	f.logger.Info("Google login succeeded", zap.String("uid", u.UID))
	f.succeed(MsgGoogleSuccess)
	return nil
}

// Close stops a pending navigation. Later submissions fail with ErrClosed.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *Flow) begin(form Form) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if f.status == Validating || f.status == Submitting {
		return ErrBusy
	}
	f.form = form
	f.status = Validating
	return nil
}

func (f *Flow) setStatus(s Status) {
	f.mu.Lock()
	f.status = s
	f.mu.Unlock()
}

// fail reports msg and returns the machine to Idle. Field values are kept;
// the password is hidden again.
func (f *Flow) fail(err error, msg string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return err
	}
	f.status = Failed
	f.mu.Unlock()

	f.logger.Debug("Submission failed", zap.String("message", msg), zap.Error(err))
	f.notifier.Error(msg)

	f.mu.Lock()
	f.form.ShowPassword = false
	f.status = Idle
	f.mu.Unlock()
	return err
}

func (f *Flow) succeed(msg string) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.status = Success
	if f.timer != nil {
		f.timer.Stop()
	}
	f.navGen++
	gen := f.navGen
	f.timer = time.AfterFunc(f.delay, func() { f.navigateHome(gen) })
	f.mu.Unlock()

	f.notifier.Success(msg)
}

// navigateHome runs only for the latest success; a superseded timer is a no-op.
func (f *Flow) navigateHome(gen uint64) {
	f.mu.Lock()
	if f.closed || gen != f.navGen {
		f.mu.Unlock()
		return
	}
	f.timer = nil
	f.mu.Unlock()

	f.navigator.Navigate(HomePath)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func loginMessage(err error) string {
	pe, ok := identity.IsProviderError(err)
	if !ok {
		return MsgLoginFailed
	}
	switch pe.Code {
	case identity.CodeInvalidCredential:
		return MsgInvalidCredential
	case identity.CodeUserNotFound:
		return MsgUserNotFound
	case identity.CodeWrongPassword:
		return MsgWrongPassword
	default:
		return MsgLoginFailed
	}
}

func signupMessage(err error) string {
	pe, ok := identity.IsProviderError(err)
	if !ok {
		return MsgSignupFailed
	}
	switch pe.Code {
	case identity.CodeEmailInUse:
		return MsgEmailInUse
	case identity.CodeInvalidEmail:
		return MsgInvalidEmail
	case identity.CodeWeakPassword:
		return MsgWeakPassword
	default:
		return MsgSignupFailed
	}
}
