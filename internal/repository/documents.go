package repository

import (
	"fmt"
	"time"

	"github.com/spec-kit/announce-service/internal/domain"
)

// destinationDocument is the stored form of both delivered and failed destinations.
type destinationDocument struct {
	ChatID    int64  `json:"chat_id" bson:"chat_id"`
	ChatName  string `json:"chat_name" bson:"chat_name"`
	MessageID string `json:"message_id,omitempty" bson:"message_id,omitempty"`
	Error     string `json:"error,omitempty" bson:"error,omitempty"`
}

// payloadDocument flattens every ticket variant into one record. For edit
// tickets the content_* fields hold the new content.
type payloadDocument struct {
	ContentText    string                `json:"content_text,omitempty" bson:"content_text,omitempty"`
	ContentHTML    string                `json:"content_html,omitempty" bson:"content_html,omitempty"`
	ContentMD      string                `json:"content_md,omitempty" bson:"content_md,omitempty"`
	AnncType       string                `json:"annc_type,omitempty" bson:"annc_type,omitempty"`
	FilePath       string                `json:"file_path,omitempty" bson:"file_path,omitempty"`
	Category       string                `json:"category,omitempty" bson:"category,omitempty"`
	Language       string                `json:"language,omitempty" bson:"language,omitempty"`
	Labels         []string              `json:"labels,omitempty" bson:"labels,omitempty"`
	Chats          []destinationDocument `json:"chats" bson:"chats"`
	OldTicketID    string                `json:"old_ticket_id,omitempty" bson:"old_ticket_id,omitempty"`
	OldContentText string                `json:"old_content_text,omitempty" bson:"old_content_text,omitempty"`
	OldContentHTML string                `json:"old_content_html,omitempty" bson:"old_content_html,omitempty"`
	OldContentMD   string                `json:"old_content_md,omitempty" bson:"old_content_md,omitempty"`
	OldAnncType    string                `json:"old_annc_type,omitempty" bson:"old_annc_type,omitempty"`
	OldFilePath    string                `json:"old_file_path,omitempty" bson:"old_file_path,omitempty"`
}

// ticketDocument is the stored ticket. Postgres keeps the top-level fields in
// columns and the payload as JSONB; Mongo stores the whole document.
type ticketDocument struct {
	TicketID        string                `bson:"ticket_id"`
	Action          string                `bson:"action"`
	Status          string                `bson:"status"`
	CreatorID       int64                 `bson:"creator_id"`
	CreatorName     string                `bson:"creator_name"`
	ApproverID      *int64                `bson:"approver_id"`
	ApproverName    *string               `bson:"approver_name"`
	StatusChangedAt *time.Time            `bson:"status_changed_at"`
	Payload         payloadDocument       `bson:"payload"`
	SuccessChats    []destinationDocument `bson:"success_chats"`
	FailedChats     []destinationDocument `bson:"failed_chats"`
	CreatedAt       time.Time             `bson:"created_at"`
	UpdatedAt       time.Time             `bson:"updated_at"`
}

func toTicketDocument(t *domain.Ticket) (ticketDocument, error) {
	doc := ticketDocument{
		TicketID:        t.ID,
		Action:          string(t.Action),
		Status:          string(t.Status),
		CreatorID:       t.CreatorID,
		CreatorName:     t.CreatorName,
		ApproverID:      copyPtr(t.ApproverID),
		ApproverName:    copyPtr(t.ApproverName),
		StatusChangedAt: copyPtr(t.StatusChangedAt),
		SuccessChats:    destinationDocuments(t.SuccessDestinations),
		FailedChats:     failedDocuments(t.FailedDestinations),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	switch p := t.Payload.(type) {
	case domain.PostPayload:
		doc.Payload = payloadDocument{
			ContentText: p.Content.Text,
			ContentHTML: p.Content.HTML,
			ContentMD:   p.Content.Markdown,
			AnncType:    string(p.MediaType),
			FilePath:    p.MediaRef,
			Category:    p.Category,
			Language:    p.Language,
			Labels:      append([]string(nil), p.Labels...),
			Chats:       destinationDocuments(p.Destinations),
		}
	case domain.EditPayload:
		doc.Payload = payloadDocument{
			ContentText:    p.NewContent.Text,
			ContentHTML:    p.NewContent.HTML,
			ContentMD:      p.NewContent.Markdown,
			Chats:          destinationDocuments(p.Destinations),
			OldTicketID:    p.PriorTicketID,
			OldContentText: p.OldContent.Text,
			OldContentHTML: p.OldContent.HTML,
			OldContentMD:   p.OldContent.Markdown,
			OldAnncType:    string(p.OldMediaType),
		}
	case domain.DeletePayload:
		doc.Payload = payloadDocument{
			Chats:          destinationDocuments(p.Destinations),
			OldTicketID:    p.PriorTicketID,
			OldContentText: p.OldContent.Text,
			OldContentHTML: p.OldContent.HTML,
			OldContentMD:   p.OldContent.Markdown,
			OldAnncType:    string(p.OldMediaType),
			OldFilePath:    p.OldMediaRef,
		}
	default:
		return ticketDocument{}, fmt.Errorf("unsupported ticket payload %T", t.Payload)
	}
	if doc.Payload.Chats == nil {
		doc.Payload.Chats = []destinationDocument{}
	}
	return doc, nil
}

func (d ticketDocument) toDomain() (*domain.Ticket, error) {
	t := &domain.Ticket{
		ID:                  d.TicketID,
		Action:              domain.TicketAction(d.Action),
		Status:              domain.TicketStatus(d.Status),
		CreatorID:           d.CreatorID,
		CreatorName:         d.CreatorName,
		ApproverID:          copyPtr(d.ApproverID),
		ApproverName:        copyPtr(d.ApproverName),
		StatusChangedAt:     copyPtr(d.StatusChangedAt),
		SuccessDestinations: destinationsFromDocuments(d.SuccessChats),
		FailedDestinations:  failedFromDocuments(d.FailedChats),
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
	p := d.Payload
	switch t.Action {
	case domain.ActionPostAnnouncement:
		t.Payload = domain.PostPayload{
			Content:      domain.Content{Text: p.ContentText, HTML: p.ContentHTML, Markdown: p.ContentMD},
			MediaType:    domain.MediaType(p.AnncType),
			MediaRef:     p.FilePath,
			Category:     p.Category,
			Language:     p.Language,
			Labels:       append([]string(nil), p.Labels...),
			Destinations: destinationsFromDocuments(p.Chats),
		}
	case domain.ActionEditAnnouncement:
		t.Payload = domain.EditPayload{
			PriorTicketID: p.OldTicketID,
			NewContent:    domain.Content{Text: p.ContentText, HTML: p.ContentHTML, Markdown: p.ContentMD},
			OldContent:    domain.Content{Text: p.OldContentText, HTML: p.OldContentHTML, Markdown: p.OldContentMD},
			OldMediaType:  domain.MediaType(p.OldAnncType),
			Destinations:  destinationsFromDocuments(p.Chats),
		}
	case domain.ActionDeleteAnnouncement:
		t.Payload = domain.DeletePayload{
			PriorTicketID: p.OldTicketID,
			OldContent:    domain.Content{Text: p.OldContentText, HTML: p.OldContentHTML, Markdown: p.OldContentMD},
			OldMediaType:  domain.MediaType(p.OldAnncType),
			OldMediaRef:   p.OldFilePath,
			Destinations:  destinationsFromDocuments(p.Chats),
		}
	default:
		return nil, fmt.Errorf("ticket %s has unknown action %q", d.TicketID, d.Action)
	}
	if t.Status == domain.TicketStatusApproved {
		if t.SuccessDestinations == nil {
			t.SuccessDestinations = []domain.Destination{}
		}
		if t.FailedDestinations == nil {
			t.FailedDestinations = []domain.FailedDestination{}
		}
	}
	return t, nil
}

func destinationDocuments(dests []domain.Destination) []destinationDocument {
	if dests == nil {
		return nil
	}
	out := make([]destinationDocument, 0, len(dests))
	for _, d := range dests {
		out = append(out, destinationDocument{ChatID: d.ChatID, ChatName: d.ChatName, MessageID: d.MessageRef})
	}
	return out
}

func failedDocuments(failed []domain.FailedDestination) []destinationDocument {
	if failed == nil {
		return nil
	}
	out := make([]destinationDocument, 0, len(failed))
	for _, f := range failed {
		out = append(out, destinationDocument{ChatID: f.ChatID, ChatName: f.ChatName, Error: f.Error})
	}
	return out
}

func destinationsFromDocuments(docs []destinationDocument) []domain.Destination {
	if docs == nil {
		return nil
	}
	out := make([]domain.Destination, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Destination{ChatID: d.ChatID, ChatName: d.ChatName, MessageRef: d.MessageID})
	}
	return out
}

func failedFromDocuments(docs []destinationDocument) []domain.FailedDestination {
	if docs == nil {
		return nil
	}
	out := make([]domain.FailedDestination, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.FailedDestination{ChatID: d.ChatID, ChatName: d.ChatName, Error: d.Error})
	}
	return out
}

// chatDocument is the stored chat.
type chatDocument struct {
	ChatID      int64     `bson:"chat_id"`
	Name        string    `bson:"name"`
	Type        string    `bson:"type"`
	Category    []string  `bson:"category"`
	Language    []string  `bson:"language"`
	Label       []string  `bson:"label"`
	Active      bool      `bson:"active"`
	Description string    `bson:"description"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toChatDocument(c *domain.Chat) chatDocument {
	return chatDocument{
		ChatID:      c.ChatID,
		Name:        c.Name,
		Type:        string(c.Type),
		Category:    nonNil(c.Category),
		Language:    nonNil(c.Language),
		Label:       nonNil(c.Label),
		Active:      c.Active,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (d chatDocument) toDomain() domain.Chat {
	return domain.Chat{
		ChatID:      d.ChatID,
		Name:        d.Name,
		Type:        domain.ChatType(d.Type),
		Category:    nonNil(d.Category),
		Language:    nonNil(d.Language),
		Label:       nonNil(d.Label),
		Active:      d.Active,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// userDocument is the stored user.
type userDocument struct {
	UserID    int64     `bson:"user_id"`
	Name      string    `bson:"name"`
	Admin     bool      `bson:"admin"`
	Whitelist bool      `bson:"whitelist"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toUserDocument(u *domain.User) userDocument {
	return userDocument{
		UserID:    u.UserID,
		Name:      u.Name,
		Admin:     u.Admin,
		Whitelist: u.Whitelist,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (d userDocument) toDomain() domain.User {
	return domain.User{
		UserID:    d.UserID,
		Name:      d.Name,
		Admin:     d.Admin,
		Whitelist: d.Whitelist,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// apiKeyDocument is the stored API key.
type apiKeyDocument struct {
	Key        string    `bson:"api_key"`
	Name       string    `bson:"name"`
	SecretHash string    `bson:"secret_hash"`
	Role       string    `bson:"role"`
	CreatedAt  time.Time `bson:"created_at"`
}

func toAPIKeyDocument(k *domain.APIKey) apiKeyDocument {
	return apiKeyDocument{
		Key:        k.Key,
		Name:       k.Name,
		SecretHash: k.SecretHash,
		Role:       string(k.Role),
		CreatedAt:  k.CreatedAt,
	}
}

func (d apiKeyDocument) toDomain() domain.APIKey {
	return domain.APIKey{
		Key:        d.Key,
		Name:       d.Name,
		SecretHash: d.SecretHash,
		Role:       domain.APIKeyRole(d.Role),
		CreatedAt:  d.CreatedAt,
	}
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string{}, in...)
}
