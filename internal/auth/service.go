package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/payment-orchestrator/internal"
	"github.com/frahmantamala/payment-orchestrator/internal/core/datamodel/tenant"
)

// Service resolves tenants and checks their API keys.
type Service struct {
	repo       RepositoryAPI
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// ResolveTenant returns the active tenant called name. Inactive tenants are reported as missing.
func (s *Service) ResolveTenant(ctx context.Context, name string) (*tenant.Tenant, error) {
	if name == "" {
		return nil, internal.ErrTenantNotFound
	}

	t, err := s.repo.GetTenantByName(ctx, name)
	if err != nil {
		if appErr, ok := internal.IsAppError(err); ok && appErr.Type == internal.ErrorTypeNotFound {
			return nil, internal.ErrTenantNotFound
		}
		s.logger.Error("failed to load tenant", "error", err, "tenant", name)
		return nil, internal.NewInternalError("failed to load tenant", err)
	}
	if !t.Active {
		s.logger.Warn("request for inactive tenant", "tenant_id", t.ID, "tenant", name)
		return nil, internal.ErrTenantNotFound
	}
	return t, nil
}

func (s *Service) Authenticate(t *tenant.Tenant, apiKey string) error {
	if apiKey == "" || t.APIKeyHash == "" {
		return internal.ErrInvalidAPIKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(t.APIKeyHash), []byte(apiKey)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.logger.Error("failed to compare api key", "error", err, "tenant_id", t.ID)
		}
		return internal.ErrInvalidAPIKey
	}
	return nil
}

// HashAPIKey creates the bcrypt hash stored for a tenant key.
func (s *Service) HashAPIKey(apiKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// GenerateRandomToken generates a cryptographically secure random token
func GenerateRandomToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
