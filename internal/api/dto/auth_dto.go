package dto

import (
	"time"

	"github.com/spec-kit/announce-service/internal/domain"
)

// TokenRequest exchanges API credentials for a bearer token.
type TokenRequest struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateAPIKeyRequest payload.
type CreateAPIKeyRequest struct {
	Name string            `json:"name"`
	Role domain.APIKeyRole `json:"role"`
}

// APIKeyResponse describes a key. Secret is only present right after creation.
type APIKeyResponse struct {
	APIKey    string            `json:"api_key"`
	Name      string            `json:"name"`
	Role      domain.APIKeyRole `json:"role"`
	Secret    string            `json:"api_secret,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewAPIKeyResponse maps a key without its secret.
func NewAPIKeyResponse(k *domain.APIKey) APIKeyResponse {
	return APIKeyResponse{APIKey: k.Key, Name: k.Name, Role: k.Role, CreatedAt: k.CreatedAt}
}
