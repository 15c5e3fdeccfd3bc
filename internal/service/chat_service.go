package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/announce-service/internal/domain"
	"github.com/spec-kit/announce-service/internal/events"
	"github.com/spec-kit/announce-service/internal/repository"
	apperrors "github.com/spec-kit/announce-service/pkg/util/errorutil"
)

// ChatService owns the destination directory and selector resolution.
type ChatService struct {
	chats repository.ChatRepository
	publisher
}

// ChatDependencies bundles collaborators for the chat service.
type ChatDependencies struct {
	ChatRepo   repository.ChatRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	return &ChatService{
		chats:     deps.ChatRepo,
		publisher: newPublisher(deps.Dispatcher, deps.Logger),
	}
}

// ChatCreateInput describes a directory entry created by an operator.
type ChatCreateInput struct {
	ChatID      int64
	Name        string
	Type        domain.ChatType
	Category    []string
	Language    []string
	Label       []string
	Description string
}

// Create adds a chat. An inactive chat with the same id is reactivated and
// overwritten; an active one is a conflict.
func (s *ChatService) Create(ctx context.Context, input ChatCreateInput) (*domain.Chat, error) {
	name := strings.TrimSpace(input.Name)
	if input.ChatID == 0 {
		return nil, apperrors.NewInvalidArgument("chat_id is required", nil)
	}
	if name == "" {
		return nil, apperrors.NewInvalidArgument("name is required", nil)
	}
	if !input.Type.Valid() {
		return nil, apperrors.NewInvalidArgument("unknown chat type", map[string]any{"type": input.Type})
	}
	details := map[string]any{"chat_id": input.ChatID}

	existing, err := s.chats.GetByID(ctx, input.ChatID)
	switch {
	case err == nil && existing.Active:
		return nil, apperrors.NewConflict("chat already exists", details)
	case err == nil:
		active := true
		category, language, label := normalizeTags(input.Category), normalizeTags(input.Language), normalizeTags(input.Label)
		description := input.Description
		chat, err := s.chats.Update(ctx, input.ChatID, domain.ChatPatch{
			Name: &name, Type: &input.Type,
			Category: &category, Language: &language, Label: &label,
			Active: &active, Description: &description,
		})
		if err != nil {
			return nil, mapRepoError(err, "chat", details)
		}
		s.publishChat(ctx, events.EventChatRegistered, chat, "")
		return chat, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.NewInternalError(err)
	}

	now := timeNow()
	chat := &domain.Chat{
		ChatID:      input.ChatID,
		Name:        name,
		Type:        input.Type,
		Category:    normalizeTags(input.Category),
		Language:    normalizeTags(input.Language),
		Label:       normalizeTags(input.Label),
		Active:      true,
		Description: input.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, mapRepoError(err, "chat", details)
	}
	s.publishChat(ctx, events.EventChatRegistered, chat, "")
	return chat, nil
}

// Find returns the chat as a one-element list, or an empty list.
func (s *ChatService) Find(ctx context.Context, chatID int64) ([]domain.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if errors.Is(err, repository.ErrNotFound) {
		return []domain.Chat{}, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return []domain.Chat{*chat}, nil
}

// List returns chats matching the filter.
func (s *ChatService) List(ctx context.Context, filter repository.ChatFilter) ([]domain.Chat, error) {
	filter.Limit = listLimit(filter.Limit)
	chats, err := s.chats.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return chats, nil
}

// Update applies an operator edit.
func (s *ChatService) Update(ctx context.Context, chatID int64, patch domain.ChatPatch) (*domain.Chat, error) {
	if patch.IsEmpty() {
		return nil, apperrors.NewInvalidArgument("no fields to update", nil)
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return nil, apperrors.NewInvalidArgument("unknown chat type", map[string]any{"type": *patch.Type})
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperrors.NewInvalidArgument("name must not be empty", nil)
		}
		patch.Name = &name
	}
	for _, tags := range []*[]string{patch.Category, patch.Language, patch.Label} {
		if tags != nil {
			*tags = normalizeTags(*tags)
		}
	}
	chat, err := s.chats.Update(ctx, chatID, patch)
	if err != nil {
		return nil, mapRepoError(err, "chat", map[string]any{"chat_id": chatID})
	}
	return chat, nil
}

// Delete removes the chat. It reports whether anything was removed.
func (s *ChatService) Delete(ctx context.Context, chatID int64) (bool, error) {
	deleted, err := s.chats.Delete(ctx, chatID)
	if err != nil {
		return false, apperrors.NewInternalError(err)
	}
	return deleted, nil
}

// Resolve expands a selector into active destinations.
func (s *ChatService) Resolve(ctx context.Context, selector domain.Selector) ([]domain.Destination, error) {
	active := true
	if !selector.IsFallback() {
		category := strings.TrimSpace(selector.Category)
		language := strings.TrimSpace(selector.Language)
		if category == "" || language == "" {
			return nil, apperrors.NewInvalidArgument("selector needs category and language, or labels and names", nil)
		}
		chats, err := s.chats.List(ctx, repository.ChatFilter{
			Categories: []string{category},
			Languages:  []string{language},
			Active:     &active,
		})
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		return destinationsOf(chats), nil
	}

	labels := normalizeTags(selector.Labels)
	names := normalizeTags(selector.Names)
	var matched []domain.Chat
	if len(labels) > 0 {
		chats, err := s.chats.List(ctx, repository.ChatFilter{Labels: labels, Active: &active})
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		matched = append(matched, chats...)
	}
	if len(names) > 0 {
		chats, err := s.chats.List(ctx, repository.ChatFilter{Names: names, Active: &active})
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		matched = append(matched, chats...)
	}
	return destinationsOf(matched), nil
}

// Register records that the bot was added to a chat. Known chats are
// reactivated and renamed; unknown chats are created without tags.
func (s *ChatService) Register(ctx context.Context, chatID int64, name string, chatType domain.ChatType) (*domain.Chat, error) {
	name = strings.TrimSpace(name)
	existing, err := s.chats.GetByID(ctx, chatID)
	if err == nil {
		active := true
		patch := domain.ChatPatch{Active: &active}
		if name != "" && name != existing.Name {
			patch.Name = &name
		}
		if chatType.Valid() && chatType != existing.Type {
			patch.Type = &chatType
		}
		chat, err := s.chats.Update(ctx, chatID, patch)
		if err != nil {
			return nil, mapRepoError(err, "chat", map[string]any{"chat_id": chatID})
		}
		if !existing.Active {
			s.publishChat(ctx, events.EventChatRegistered, chat, "")
		}
		return chat, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}
	return s.Create(ctx, ChatCreateInput{ChatID: chatID, Name: name, Type: chatType})
}

// Deactivate marks a chat unreachable. Chats are never deleted on this path.
func (s *ChatService) Deactivate(ctx context.Context, chatID int64) (*domain.Chat, error) {
	existing, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, mapRepoError(err, "chat", map[string]any{"chat_id": chatID})
	}
	if !existing.Active {
		return existing, nil
	}
	inactive := false
	chat, err := s.chats.Update(ctx, chatID, domain.ChatPatch{Active: &inactive})
	if err != nil {
		return nil, mapRepoError(err, "chat", map[string]any{"chat_id": chatID})
	}
	s.publishChat(ctx, events.EventChatDeactivated, chat, "")
	return chat, nil
}

// Rename follows a title change reported by the delivery channel.
func (s *ChatService) Rename(ctx context.Context, chatID int64, name string) (*domain.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewInvalidArgument("name must not be empty", nil)
	}
	existing, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, mapRepoError(err, "chat", map[string]any{"chat_id": chatID})
	}
	if existing.Name == name {
		return existing, nil
	}
	chat, err := s.chats.Update(ctx, chatID, domain.ChatPatch{Name: &name})
	if err != nil {
		return nil, mapRepoError(err, "chat", map[string]any{"chat_id": chatID})
	}
	s.publishChat(ctx, events.EventChatRenamed, chat, existing.Name)
	return chat, nil
}

func (s *ChatService) publishChat(ctx context.Context, eventType events.EventType, chat *domain.Chat, oldName string) {
	s.publishEvent(ctx, events.Event{
		Type:   eventType,
		ChatID: chat.ChatID,
		Payload: events.ChatPayload{
			Name:    chat.Name,
			Type:    chat.Type,
			OldName: oldName,
		},
	})
}

func destinationsOf(chats []domain.Chat) []domain.Destination {
	seen := make(map[int64]struct{}, len(chats))
	out := make([]domain.Destination, 0, len(chats))
	for _, chat := range chats {
		if _, dup := seen[chat.ChatID]; dup {
			continue
		}
		seen[chat.ChatID] = struct{}{}
		out = append(out, chat.Destination())
	}
	return out
}

// normalizeTags trims, drops empties and removes duplicates, keeping order.
func normalizeTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, tag := range in {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
