package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/announce-service/internal/domain"
	apperrors "github.com/spec-kit/announce-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Header names for direct API key authentication.
const (
	HeaderAPIKey    = "X-API-KEY"
	HeaderAPISecret = "X-API-SECRET"
)

// Principal represents the authenticated caller.
type Principal struct {
	Key  *domain.APIKey
	Role domain.APIKeyRole
}

// KeyStore resolves API credentials.
type KeyStore interface {
	Authenticate(ctx context.Context, key, secret string) (*domain.APIKey, error)
	GetAPIKey(ctx context.Context, key string) (*domain.APIKey, error)
}

// AuthMiddleware validates API key headers or bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	keys   KeyStore
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, keys KeyStore) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, keys: keys}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if apiKey := c.Get(HeaderAPIKey); apiKey != "" {
		key, err := m.keys.Authenticate(c.UserContext(), apiKey, c.Get(HeaderAPISecret))
		if err != nil {
			return err
		}
		c.Locals(principalKey, &Principal{Key: key, Role: key.Role})
		return c.Next()
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing credentials")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	// the key may have been revoked since the token was issued
	key, err := m.keys.GetAPIKey(c.UserContext(), claims.Subject)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return apperrors.NewUnauthorized("api key revoked")
		}
		return err
	}

	c.Locals(principalKey, &Principal{Key: key, Role: key.Role})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
