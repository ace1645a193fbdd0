// File: internal/firebase/service.go
package firebase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"authgate/internal/config"
	"authgate/internal/shared"
)

// idTokenVerifier is the subset of *auth.Client the service needs.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseService verifies Firebase ID tokens with the Admin SDK.
type FirebaseService struct {
	authClient idTokenVerifier
	logger     *zap.Logger
}

var _ shared.TokenVerifier = (*FirebaseService)(nil)

// NewFirebaseService initializes the Firebase Admin SDK and creates a new FirebaseService.
func NewFirebaseService(cfg *config.Config, logger *zap.Logger) (*FirebaseService, error) {
	var opts []option.ClientOption
	var conf *firebase.Config
	if cfg.FirebaseProjectID != "" {
		conf = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}

	switch {
	case cfg.FirebaseAuthEmulatorHost != "":
		// The Admin SDK switches to the emulator when this variable is present.
		if err := os.Setenv("FIREBASE_AUTH_EMULATOR_HOST", cfg.FirebaseAuthEmulatorHost); err != nil {
			return nil, fmt.Errorf("error configuring auth emulator: %w", err)
		}
		opts = append(opts, option.WithoutAuthentication())
		logger.Warn("Using Firebase Auth emulator", zap.String("host", cfg.FirebaseAuthEmulatorHost))
	case cfg.FirebaseServiceAccountKeyPath != "":
		cleanPath := filepath.Clean(cfg.FirebaseServiceAccountKeyPath)
		opts = append(opts, option.WithCredentialsFile(cleanPath))
	default:
		logger.Error("Firebase service account key path is not configured.")
		return nil, fmt.Errorf("firebase service account key path is required")
	}

	app, err := firebase.NewApp(context.Background(), conf, opts...)
	if err != nil {
		logger.Error("Failed to initialize Firebase Admin SDK app", zap.Error(err))
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	authClient, err := app.Auth(context.Background())
	if err != nil {
		logger.Error("Failed to get Firebase Auth client", zap.Error(err))
		return nil, fmt.Errorf("error getting Firebase Auth client: %w", err)
	}

	logger.Info("Firebase Admin SDK initialized successfully.")
	return newService(authClient, logger), nil
}

func newService(client idTokenVerifier, logger *zap.Logger) *FirebaseService {
	return &FirebaseService{authClient: client, logger: logger}
}

// VerifyIDToken verifies a Firebase ID token and returns the identity claims it carries.
func (s *FirebaseService) VerifyIDToken(ctx context.Context, idToken string) (*shared.Claims, error) {
	if idToken == "" {
		return nil, fmt.Errorf("ID token must not be empty")
	}

	token, err := s.authClient.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.logger.Warn("Firebase ID token verification failed", zap.Error(err))
		return nil, fmt.Errorf("failed to verify Firebase ID token: %w", err)
	}

	s.logger.Debug("Firebase ID token verified successfully", zap.String("uid", token.UID))
	return ClaimsFromToken(token), nil
}

// ClaimsFromToken extracts uid, email and sign-in provider from a decoded token.
func ClaimsFromToken(token *auth.Token) *shared.Claims {
	claims := &shared.Claims{
		UID:            token.UID,
		SignInProvider: token.Firebase.SignInProvider,
	}
	if email, ok := token.Claims["email"].(string); ok {
		claims.Email = email
	}
	if token.IssuedAt > 0 {
		claims.IssuedAt = time.Unix(token.IssuedAt, 0).UTC()
	}
	return claims
}
