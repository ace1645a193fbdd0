// File: internal/user/service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"authgate/internal/common"
	"authgate/internal/shared"

	"go.uber.org/zap"
)

// Service is the provisioning contract used by the HTTP layer.
type Service interface {
	CreateProfile(ctx context.Context, claims *shared.Claims, userName string) (ProvisionResult, error)
	FindOrCreateProfile(ctx context.Context, claims *shared.Claims, userName, email string) (ProvisionResult, error)
	GetProfile(ctx context.Context, uid string) (*User, error)
}

// ProvisioningService turns verified claims into stored profiles.
// It holds no locks: the repository's unique index on uid is the only serialization point.
type ProvisioningService struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

var _ Service = (*ProvisioningService)(nil)

// NewService creates a new provisioning service.
func NewService(repo Repository, logger *zap.Logger) *ProvisioningService {
	return &ProvisioningService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// CreateProfile inserts a profile for a freshly signed-up identity.
// An existing profile is a hard failure (common.ErrDuplicateProfile), never a lookup.
func (s *ProvisioningService) CreateProfile(ctx context.Context, claims *shared.Claims, userName string) (ProvisionResult, error) {
	if err := requireClaims(claims); err != nil {
		return ProvisionResult{}, err
	}

	profile := &User{
		UID:       claims.UID,
		Email:     normalizeEmail(claims.Email),
		UserName:  strings.TrimSpace(userName),
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.Create(ctx, profile); err != nil {
		if errors.Is(err, common.ErrDuplicateProfile) {
			s.logger.Warn("Profile already exists on signup", zap.String("uid", claims.UID))
			return ProvisionResult{Outcome: OutcomeAlreadyExists}, err
		}
		s.logger.Error("Failed to create profile", zap.Error(err), zap.String("uid", claims.UID))
		return ProvisionResult{}, fmt.Errorf("failed to create profile: %w", err)
	}

	s.logger.Info("Profile created", zap.String("uid", profile.UID))
	return ProvisionResult{Outcome: OutcomeCreated, Profile: profile}, nil
}

// FindOrCreateProfile returns the stored profile for the uid, creating it on first
// federated login. Stored fields are never overwritten by later logins.
// An empty email falls back to the verified claim email.
func (s *ProvisioningService) FindOrCreateProfile(ctx context.Context, claims *shared.Claims, userName, email string) (ProvisionResult, error) {
	if err := requireClaims(claims); err != nil {
		return ProvisionResult{}, err
	}

	existing, err := s.repo.FindByUID(ctx, claims.UID)
	if err == nil {
		s.logger.Debug("Profile found for federated login", zap.String("uid", claims.UID))
		return ProvisionResult{Outcome: OutcomeAlreadyExists, Profile: existing}, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		s.logger.Error("Error finding profile by uid", zap.Error(err), zap.String("uid", claims.UID))
		return ProvisionResult{}, fmt.Errorf("failed to look up profile: %w", err)
	}

	if strings.TrimSpace(email) == "" {
		email = claims.Email
	}
	profile := &User{
		UID:       claims.UID,
		Email:     normalizeEmail(email),
		UserName:  strings.TrimSpace(userName),
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.Create(ctx, profile); err != nil {
		if !errors.Is(err, common.ErrDuplicateProfile) {
			s.logger.Error("Failed to create profile on federated login", zap.Error(err), zap.String("uid", claims.UID))
			return ProvisionResult{}, fmt.Errorf("failed to create profile: %w", err)
		}
		// A concurrent request won the insert; its row is the profile.
		winner, findErr := s.repo.FindByUID(ctx, claims.UID)
		if findErr != nil {
			s.logger.Error("Profile vanished after duplicate insert", zap.Error(findErr), zap.String("uid", claims.UID))
			return ProvisionResult{}, fmt.Errorf("failed to re-read profile: %w", findErr)
		}
		return ProvisionResult{Outcome: OutcomeAlreadyExists, Profile: winner}, nil
	}

	s.logger.Info("Profile created on federated login", zap.String("uid", profile.UID))
	return ProvisionResult{Outcome: OutcomeCreated, Profile: profile}, nil
}

// GetProfile returns the stored profile or common.ErrNotFound.
func (s *ProvisioningService) GetProfile(ctx context.Context, uid string) (*User, error) {
	return s.repo.FindByUID(ctx, uid)
}

func requireClaims(claims *shared.Claims) error {
	if claims == nil || claims.UID == "" {
		return common.ErrUnauthenticated.WithDetails("Verified identity is required.")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
