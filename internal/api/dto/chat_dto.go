package dto

import "github.com/spec-kit/announce-service/internal/domain"

// CreateChatRequest payload.
type CreateChatRequest struct {
	ChatID      int64           `json:"chat_id"`
	Name        string          `json:"name"`
	Type        domain.ChatType `json:"type"`
	Category    []string        `json:"category"`
	Language    []string        `json:"language"`
	Label       []string        `json:"label"`
	Description string          `json:"description"`
}

// UpdateChatRequest payload. Absent fields are left untouched.
type UpdateChatRequest struct {
	Name        *string          `json:"name"`
	Type        *domain.ChatType `json:"type"`
	Category    *[]string        `json:"category"`
	Language    *[]string        `json:"language"`
	Label       *[]string        `json:"label"`
	Active      *bool            `json:"active"`
	Description *string          `json:"description"`
}

// Patch converts the request.
func (r UpdateChatRequest) Patch() domain.ChatPatch {
	return domain.ChatPatch{
		Name:        r.Name,
		Type:        r.Type,
		Category:    r.Category,
		Language:    r.Language,
		Label:       r.Label,
		Active:      r.Active,
		Description: r.Description,
	}
}

// ChatResponse is a directory entry. Timestamps are unix milliseconds.
type ChatResponse struct {
	ChatID      int64           `json:"chat_id"`
	Name        string          `json:"name"`
	Type        domain.ChatType `json:"type"`
	Category    []string        `json:"category"`
	Language    []string        `json:"language"`
	Label       []string        `json:"label"`
	Active      bool            `json:"active"`
	Description string          `json:"description"`
	CreatedAt   int64           `json:"created_at"`
	UpdatedAt   int64           `json:"updated_at"`
}

// NewChatResponses maps chats, never returning nil.
func NewChatResponses(chats []domain.Chat) []ChatResponse {
	out := make([]ChatResponse, 0, len(chats))
	for i := range chats {
		out = append(out, NewChatResponse(&chats[i]))
	}
	return out
}

// NewChatResponse maps a chat.
func NewChatResponse(c *domain.Chat) ChatResponse {
	return ChatResponse{
		ChatID:      c.ChatID,
		Name:        c.Name,
		Type:        c.Type,
		Category:    nonNil(c.Category),
		Language:    nonNil(c.Language),
		Label:       nonNil(c.Label),
		Active:      c.Active,
		Description: c.Description,
		CreatedAt:   c.CreatedAt.UnixMilli(),
		UpdatedAt:   c.UpdatedAt.UnixMilli(),
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
