package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/announce-service/internal/api/dto"
	"github.com/spec-kit/announce-service/internal/domain"
	"github.com/spec-kit/announce-service/internal/repository"
	"github.com/spec-kit/announce-service/internal/service"
)

// ChatsHandler exposes the chat directory.
type ChatsHandler struct {
	chats *service.ChatService
}

// NewChatsHandler constructs handler.
func NewChatsHandler(chatService *service.ChatService) *ChatsHandler {
	return &ChatsHandler{chats: chatService}
}

// CreateChat POST /chats.
func (h *ChatsHandler) CreateChat(c *fiber.Ctx) error {
	var req dto.CreateChatRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	chat, err := h.chats.Create(c.UserContext(), service.ChatCreateInput{
		ChatID:      req.ChatID,
		Name:        req.Name,
		Type:        req.Type,
		Category:    req.Category,
		Language:    req.Language,
		Label:       req.Label,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewChatResponse(chat)})
}

// ListChats GET /chats.
func (h *ChatsHandler) ListChats(c *fiber.Ctx) error {
	ids, err := queryInt64List(c, "chat_id")
	if err != nil {
		return err
	}
	filter := repository.ChatFilter{
		ChatIDs:    ids,
		Names:      queryList(c, "name"),
		Categories: queryList(c, "category"),
		Languages:  queryList(c, "language"),
		Labels:     queryList(c, "label"),
	}
	if t := c.Query("type"); t != "" {
		chatType := domain.ChatType(t)
		filter.Type = &chatType
	}
	if filter.Active, err = queryBool(c, "active"); err != nil {
		return err
	}
	if filter.Limit, err = queryLimit(c); err != nil {
		return err
	}
	chats, err := h.chats.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewChatResponses(chats)})
}

// GetChat GET /chats/:id. The result is a list with zero or one entry.
func (h *ChatsHandler) GetChat(c *fiber.Ctx) error {
	id, err := pathInt64(c, "id")
	if err != nil {
		return err
	}
	chats, err := h.chats.Find(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewChatResponses(chats)})
}

// UpdateChat PATCH /chats/:id.
func (h *ChatsHandler) UpdateChat(c *fiber.Ctx) error {
	id, err := pathInt64(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateChatRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	chat, err := h.chats.Update(c.UserContext(), id, req.Patch())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewChatResponse(chat)})
}

// DeleteChat DELETE /chats/:id.
func (h *ChatsHandler) DeleteChat(c *fiber.Ctx) error {
	id, err := pathInt64(c, "id")
	if err != nil {
		return err
	}
	deleted, err := h.chats.Delete(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": deleted}})
}

// ResolveSelector POST /chats/resolve previews the destinations of a selector.
func (h *ChatsHandler) ResolveSelector(c *fiber.Ctx) error {
	var req dto.SelectorDTO
	if err := parseBody(c, &req); err != nil {
		return err
	}
	dests, err := h.chats.Resolve(c.UserContext(), domain.Selector{
		Category: req.Category,
		Language: req.Language,
		Labels:   req.Labels,
		Names:    req.Names,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromDestinations(dests)})
}
