package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/announce-service/internal/api/dto"
	"github.com/spec-kit/announce-service/internal/service"
)

// AuthHandler issues tokens and manages API keys.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// IssueToken handles POST /auth/token.
func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.APIKey == "" || req.APISecret == "" {
		return fiber.NewError(http.StatusBadRequest, "api_key and api_secret required")
	}

	token, err := h.authService.IssueToken(c.UserContext(), req.APIKey, req.APISecret)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.AuthResponse{Token: token.Value, ExpiresAt: token.ExpiresAt},
	})
}

// CreateAPIKey handles POST /api-keys. The secret is returned only once.
func (h *AuthHandler) CreateAPIKey(c *fiber.Ctx) error {
	var req dto.CreateAPIKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(req.Name) == "" {
		return fiber.NewError(http.StatusBadRequest, "name required")
	}

	key, secret, err := h.authService.CreateAPIKey(c.UserContext(), req.Name, req.Role)
	if err != nil {
		return err
	}
	resp := dto.NewAPIKeyResponse(key)
	resp.Secret = secret
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// ListAPIKeys handles GET /api-keys.
func (h *AuthHandler) ListAPIKeys(c *fiber.Ctx) error {
	keys, err := h.authService.ListAPIKeys(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.APIKeyResponse, 0, len(keys))
	for i := range keys {
		items = append(items, dto.NewAPIKeyResponse(&keys[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// DeleteAPIKey handles DELETE /api-keys/:key.
func (h *AuthHandler) DeleteAPIKey(c *fiber.Ctx) error {
	deleted, err := h.authService.DeleteAPIKey(c.UserContext(), c.Params("key"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": deleted}})
}
