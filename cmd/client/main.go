// File: cmd/client/main.go

// Command client signs a user up or in against the identity provider and the
// profile backend from the terminal.
//
// Usage:
//
//	client signup -username alice -email alice@x.com [-password ...] [-logout]
//	client login -email alice@x.com [-password ...] [-logout]
//	client google [-logout]
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"authgate/internal/apiclient"
	"authgate/internal/authstate"
	"authgate/internal/config"
	"authgate/internal/flow"
	"authgate/internal/identity"
	"authgate/internal/platform/logger"

	"go.uber.org/zap"
)

const homeTimeout = 30 * time.Second

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, cfg, appLogger, os.Args[1], os.Args[2:], os.Stdin, os.Stdout)
	stop()
	_ = appLogger.Sync()
	os.Exit(code)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: client <signup|login|google> [flags]")
}

func run(ctx context.Context, cfg *config.Config, appLogger *zap.Logger, cmd string, args []string, in io.Reader, out io.Writer) int {
	stdin := bufio.NewReader(in)

	provider := identity.NewFirebaseClientFromConfig(cfg, appLogger)
	store := authstate.New(provider, appLogger)
	defer store.Close()

	backend := apiclient.New(cfg.APIBaseURL, cfg.HTTPClientTimeout, appLogger)
	home := &homeView{provider: provider, store: store, backend: backend, out: out, done: make(chan struct{})}
	f := flow.New(provider, backend, &consoleNotifier{out: out}, home, cfg.NavigationDelay, appLogger)
	defer f.Close()

	var submitErr error
	switch cmd {
	case "signup":
		fs := flag.NewFlagSet("signup", flag.ContinueOnError)
		fs.BoolVar(&home.logout, "logout", false, "Log out from the home view once it is shown")
		userName := fs.String("username", "", "Display and profile user name")
		email := fs.String("email", "", "Account email")
		password := fs.String("password", "", "Account password (prompted when empty)")
		if err := fs.Parse(args); err != nil {
			return 2
		}
		pw := promptIfEmpty(*password, "Password: ", stdin, out)
		submitErr = f.SubmitSignup(ctx, flow.Form{UserName: *userName, Email: *email, Password: pw})
	case "login":
		fs := flag.NewFlagSet("login", flag.ContinueOnError)
		fs.BoolVar(&home.logout, "logout", false, "Log out from the home view once it is shown")
		email := fs.String("email", "", "Account email")
		password := fs.String("password", "", "Account password (prompted when empty)")
		if err := fs.Parse(args); err != nil {
			return 2
		}
		pw := promptIfEmpty(*password, "Password: ", stdin, out)
		submitErr = f.SubmitLogin(ctx, flow.Form{Email: *email, Password: pw})
	case "google":
		fs := flag.NewFlagSet("google", flag.ContinueOnError)
		fs.BoolVar(&home.logout, "logout", false, "Log out from the home view once it is shown")
		if err := fs.Parse(args); err != nil {
			return 2
		}
		src := &terminalCredentials{flow: identity.NewGoogleCodeFlow(cfg, appLogger), in: stdin, out: out}
		submitErr = f.SubmitGoogle(ctx, src)
	default:
		usage()
		return 2
	}
	if submitErr != nil {
		appLogger.Debug("Submission failed", zap.String("command", cmd), zap.Error(submitErr))
		return 1
	}

	select {
	case <-home.done:
		if home.err != nil {
			return 1
		}
		return 0
	case <-ctx.Done():
		return 130
	case <-time.After(cfg.NavigationDelay + homeTimeout):
		fmt.Fprintln(out, "Timed out waiting for the home view.")
		return 1
	}
}

func promptIfEmpty(value, prompt string, in *bufio.Reader, out io.Writer) string {
	if value != "" {
		return value
	}
	fmt.Fprint(out, prompt)
	line, _ := in.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

type consoleNotifier struct {
	out io.Writer
}

func (n *consoleNotifier) Success(msg string) { fmt.Fprintf(n.out, "[ok] %s\n", msg) }

func (n *consoleNotifier) Error(msg string) { fmt.Fprintf(n.out, "[error] %s\n", msg) }

// homeView renders the signed-in landing page once navigation happens.
type homeView struct {
	provider identity.Provider
	store    *authstate.Store
	backend  *apiclient.Client
	out      io.Writer
	logout   bool
	done     chan struct{}
	err      error
}

func (h *homeView) Navigate(path string) {
	defer close(h.done)
	if path != flow.HomePath {
		h.err = fmt.Errorf("unknown view %q", path)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), homeTimeout)
	defer cancel()
	st, err := h.store.Wait(ctx)
	if err != nil {
		h.err = err
		fmt.Fprintln(h.out, "Auth status unknown.")
		return
	}
	if !st.SignedIn() {
		h.err = fmt.Errorf("not signed in")
		fmt.Fprintln(h.out, "You are not logged in.")
		return
	}

	resp, err := h.backend.Protected(ctx, st.Token)
	if err != nil {
		h.err = err
		fmt.Fprintf(h.out, "Protected request failed: %v\n", err)
		return
	}
	name := resp.UserName
	if name == "" {
		name = st.User.DisplayName
	}
	if name == "" {
		name = st.User.Email
	}
	fmt.Fprintf(h.out, "Welcome %s\n%s (uid %s)\n", name, resp.Message, resp.UID)

	if h.logout {
		h.signOut(ctx)
	}
}

// signOut is the home view's LOGOUT action.
func (h *homeView) signOut(ctx context.Context) {
	if err := h.provider.SignOut(ctx); err != nil {
		h.err = err
		fmt.Fprintf(h.out, "Logout failed: %v\n", err)
		return
	}
	if h.store.Current().SignedIn() {
		h.err = fmt.Errorf("still signed in after logout")
		fmt.Fprintln(h.out, "Logout failed.")
		return
	}
	fmt.Fprintln(h.out, "Logged out.")
}

// terminalCredentials walks the user through Google's consent page and reads
// back the redirect URL carrying the authorization code and state.
type terminalCredentials struct {
	flow *identity.GoogleCodeFlow
	in   *bufio.Reader
	out  io.Writer
}

func (t *terminalCredentials) GoogleCredential(ctx context.Context) (string, error) {
	state, err := t.flow.NewState()
	if err != nil {
		return "", err
	}
	fmt.Fprintf(t.out, "Open this URL in a browser and sign in with Google:\n\n  %s\n\nPaste the full URL the browser was redirected to: ", t.flow.AuthCodeURL(state))
	redirect, err := t.in.ReadString('\n')
	if err != nil && redirect == "" {
		return "", fmt.Errorf("failed to read redirect URL: %w", err)
	}
	code, err := t.flow.CodeFromRedirect(strings.TrimSpace(redirect), state)
	if err != nil {
		return "", err
	}
	return t.flow.Exchange(ctx, code)
}
