package service

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/announce-service/internal/auth"
	"github.com/spec-kit/announce-service/internal/config"
	"github.com/spec-kit/announce-service/internal/domain"
	"github.com/spec-kit/announce-service/internal/repository"
	apperrors "github.com/spec-kit/announce-service/pkg/util/errorutil"
)

// AuthService manages API keys and issues access tokens for them.
type AuthService struct {
	keys       repository.APIKeyRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	APIKeyRepo repository.APIKeyRepository
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		keys:       deps.APIKeyRepo,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// CreateAPIKey generates a key and secret. The plain secret is returned once
// and only its hash is stored.
func (s *AuthService) CreateAPIKey(ctx context.Context, name string, role domain.APIKeyRole) (*domain.APIKey, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", apperrors.NewInvalidArgument("name is required", nil)
	}
	if role == "" {
		role = domain.APIKeyRoleService
	}
	if !role.Valid() {
		return nil, "", apperrors.NewInvalidArgument("unknown role", map[string]any{"role": role})
	}
	key, err := auth.RandomToken(12)
	if err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}
	secret, err := auth.RandomToken(24)
	if err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}
	return s.storeKey(ctx, key, secret, name, role)
}

// ImportAPIKey stores a key with a caller-chosen secret, used for seeding.
func (s *AuthService) ImportAPIKey(ctx context.Context, key, secret, name string, role domain.APIKeyRole) (*domain.APIKey, error) {
	key = strings.TrimSpace(key)
	if key == "" || secret == "" {
		return nil, apperrors.NewInvalidArgument("key and secret are required", nil)
	}
	if !role.Valid() {
		return nil, apperrors.NewInvalidArgument("unknown role", map[string]any{"role": role})
	}
	stored, _, err := s.storeKey(ctx, key, secret, strings.TrimSpace(name), role)
	return stored, err
}

func (s *AuthService) storeKey(ctx context.Context, key, secret, name string, role domain.APIKeyRole) (*domain.APIKey, string, error) {
	hash, err := auth.HashSecret(secret, s.bcryptCost)
	if err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}
	apiKey := &domain.APIKey{
		Key:        key,
		Name:       name,
		SecretHash: hash,
		Role:       role,
		CreatedAt:  timeNow(),
	}
	if err := s.keys.Create(ctx, apiKey); err != nil {
		return nil, "", mapRepoError(err, "api key", map[string]any{"key": key})
	}
	return apiKey, secret, nil
}

// Authenticate verifies a key and secret pair.
func (s *AuthService) Authenticate(ctx context.Context, key, secret string) (*domain.APIKey, error) {
	if key == "" || secret == "" {
		return nil, apperrors.NewUnauthorized("missing api credentials")
	}
	apiKey, err := s.keys.GetByKey(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewUnauthorized("invalid api credentials")
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := auth.CompareSecret(apiKey.SecretHash, secret); err != nil {
		return nil, apperrors.NewUnauthorized("invalid api credentials")
	}
	return apiKey, nil
}

// GetAPIKey loads a key by its public identifier.
func (s *AuthService) GetAPIKey(ctx context.Context, key string) (*domain.APIKey, error) {
	apiKey, err := s.keys.GetByKey(ctx, key)
	if err != nil {
		return nil, mapRepoError(err, "api key", map[string]any{"key": key})
	}
	return apiKey, nil
}

// IssueToken exchanges API credentials for a short-lived bearer token.
func (s *AuthService) IssueToken(ctx context.Context, key, secret string) (*domain.Token, error) {
	apiKey, err := s.Authenticate(ctx, key, secret)
	if err != nil {
		return nil, err
	}
	value, exp, err := s.tokenMgr.GenerateToken(apiKey.Key, apiKey.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &domain.Token{Value: value, Key: apiKey.Key, Role: apiKey.Role, ExpiresAt: exp}, nil
}

// ListAPIKeys returns all keys.
func (s *AuthService) ListAPIKeys(ctx context.Context) ([]domain.APIKey, error) {
	keys, err := s.keys.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return keys, nil
}

// DeleteAPIKey revokes a key. Tokens issued for it stop working immediately.
func (s *AuthService) DeleteAPIKey(ctx context.Context, key string) (bool, error) {
	deleted, err := s.keys.Delete(ctx, key)
	if err != nil {
		return false, apperrors.NewInternalError(err)
	}
	return deleted, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
