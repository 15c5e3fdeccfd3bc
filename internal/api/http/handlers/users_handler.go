package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/announce-service/internal/api/dto"
	"github.com/spec-kit/announce-service/internal/domain"
	"github.com/spec-kit/announce-service/internal/repository"
	"github.com/spec-kit/announce-service/internal/service"
)

// UsersHandler manages ticket creators and approvers.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// CreateUser POST /users.
func (h *UsersHandler) CreateUser(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.users.Create(c.UserContext(), service.UserCreateInput{
		UserID:    req.UserID,
		Name:      req.Name,
		Admin:     req.Admin,
		Whitelist: req.Whitelist,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// ListUsers GET /users.
func (h *UsersHandler) ListUsers(c *fiber.Ctx) error {
	ids, err := queryInt64List(c, "user_id")
	if err != nil {
		return err
	}
	filter := repository.UserFilter{UserIDs: ids}
	if name := c.Query("name"); name != "" {
		filter.Name = &name
	}
	if filter.Admin, err = queryBool(c, "admin"); err != nil {
		return err
	}
	if filter.Whitelist, err = queryBool(c, "whitelist"); err != nil {
		return err
	}
	if filter.Limit, err = queryLimit(c); err != nil {
		return err
	}
	users, err := h.users.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponses(users)})
}

// GetUser GET /users/:id. The result is a list with zero or one entry.
func (h *UsersHandler) GetUser(c *fiber.Ctx) error {
	id, err := pathInt64(c, "id")
	if err != nil {
		return err
	}
	users, err := h.users.Find(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponses(users)})
}

// UpdateUser PATCH /users/:id.
func (h *UsersHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := pathInt64(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.users.Update(c.UserContext(), id, domain.UserPatch{
		Name:      req.Name,
		Admin:     req.Admin,
		Whitelist: req.Whitelist,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewUserResponse(user)})
}

// DeleteUser DELETE /users/:id.
func (h *UsersHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := pathInt64(c, "id")
	if err != nil {
		return err
	}
	deleted, err := h.users.Delete(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": deleted}})
}
