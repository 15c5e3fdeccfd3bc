package dto

import (
	"strings"

	"github.com/spec-kit/announce-service/internal/domain"
	apperrors "github.com/spec-kit/announce-service/pkg/util/errorutil"
)

// ContentDTO carries the renderings of an announcement body.
type ContentDTO struct {
	Text     string `json:"text"`
	HTML     string `json:"html"`
	Markdown string `json:"markdown"`
}

// DestinationDTO is a delivery target. MessageRef is set once delivered.
type DestinationDTO struct {
	ChatID     int64  `json:"chat_id"`
	ChatName   string `json:"chat_name"`
	MessageRef string `json:"message_ref,omitempty"`
}

// FailedDestinationDTO is a destination whose delivery failed.
type FailedDestinationDTO struct {
	ChatID   int64  `json:"chat_id"`
	ChatName string `json:"chat_name"`
	Error    string `json:"error"`
}

// SelectorDTO names destinations symbolically.
type SelectorDTO struct {
	Category string   `json:"category"`
	Language string   `json:"language"`
	Labels   []string `json:"labels"`
	Names    []string `json:"names"`
}

// CreateTicketRequest payload. Content is the new content for edits and is
// ignored for deletes.
type CreateTicketRequest struct {
	Action        domain.TicketAction `json:"action"`
	CreatorID     int64               `json:"creator_id"`
	Content       ContentDTO          `json:"content"`
	MediaType     domain.MediaType    `json:"media_type"`
	MediaRef      string              `json:"media_ref"`
	Category      string              `json:"category"`
	Language      string              `json:"language"`
	Labels        []string            `json:"labels"`
	Destinations  []DestinationDTO    `json:"destinations"`
	Selector      *SelectorDTO        `json:"selector"`
	PriorTicketID string              `json:"prior_ticket_id"`
}

// Payload converts the request into the action-specific payload.
func (r CreateTicketRequest) Payload() (domain.Payload, error) {
	content := domain.Content{Text: r.Content.Text, HTML: r.Content.HTML, Markdown: r.Content.Markdown}
	switch r.Action {
	case domain.ActionPostAnnouncement:
		mediaType := r.MediaType
		if mediaType == "" {
			mediaType = domain.MediaText
		}
		return domain.PostPayload{
			Content:      content,
			MediaType:    mediaType,
			MediaRef:     strings.TrimSpace(r.MediaRef),
			Category:     r.Category,
			Language:     r.Language,
			Labels:       r.Labels,
			Destinations: ToDestinations(r.Destinations),
		}, nil
	case domain.ActionEditAnnouncement:
		return domain.EditPayload{PriorTicketID: strings.TrimSpace(r.PriorTicketID), NewContent: content}, nil
	case domain.ActionDeleteAnnouncement:
		return domain.DeletePayload{PriorTicketID: strings.TrimSpace(r.PriorTicketID)}, nil
	default:
		return nil, apperrors.NewInvalidArgument("unknown action", map[string]any{"action": r.Action})
	}
}

// ToSelector converts the optional selector.
func (r CreateTicketRequest) ToSelector() *domain.Selector {
	if r.Selector == nil {
		return nil
	}
	return &domain.Selector{
		Category: r.Selector.Category,
		Language: r.Selector.Language,
		Labels:   r.Selector.Labels,
		Names:    r.Selector.Names,
	}
}

// DecisionRequest payload for approve and reject.
type DecisionRequest struct {
	ApproverID int64 `json:"approver_id"`
}

// TicketPayloadResponse flattens every payload variant. Unused fields are omitted.
type TicketPayloadResponse struct {
	Content       *ContentDTO      `json:"content,omitempty"`
	MediaType     domain.MediaType `json:"media_type,omitempty"`
	MediaRef      string           `json:"media_ref,omitempty"`
	Category      string           `json:"category,omitempty"`
	Language      string           `json:"language,omitempty"`
	Labels        []string         `json:"labels,omitempty"`
	PriorTicketID string           `json:"prior_ticket_id,omitempty"`
	OldContent    *ContentDTO      `json:"old_content,omitempty"`
	OldMediaType  domain.MediaType `json:"old_media_type,omitempty"`
	OldMediaRef   string           `json:"old_media_ref,omitempty"`
	Destinations  []DestinationDTO `json:"destinations"`
}

// TicketResponse is the full ticket. Timestamps are unix milliseconds.
type TicketResponse struct {
	ID                  string                 `json:"ticket_id"`
	Action              domain.TicketAction    `json:"action"`
	Status              domain.TicketStatus    `json:"status"`
	CreatorID           int64                  `json:"creator_id"`
	CreatorName         string                 `json:"creator_name"`
	ApproverID          *int64                 `json:"approver_id"`
	ApproverName        *string                `json:"approver_name"`
	StatusChangedAt     *int64                 `json:"status_changed_at"`
	Payload             TicketPayloadResponse  `json:"payload"`
	SuccessDestinations []DestinationDTO       `json:"success_destinations"`
	FailedDestinations  []FailedDestinationDTO `json:"failed_destinations"`
	CreatedAt           int64                  `json:"created_at"`
	UpdatedAt           int64                  `json:"updated_at"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:                  t.ID,
		Action:              t.Action,
		Status:              t.Status,
		CreatorID:           t.CreatorID,
		CreatorName:         t.CreatorName,
		ApproverID:          t.ApproverID,
		ApproverName:        t.ApproverName,
		SuccessDestinations: FromDestinations(t.SuccessDestinations),
		FailedDestinations:  make([]FailedDestinationDTO, 0, len(t.FailedDestinations)),
		CreatedAt:           t.CreatedAt.UnixMilli(),
		UpdatedAt:           t.UpdatedAt.UnixMilli(),
	}
	if t.StatusChangedAt != nil {
		ms := t.StatusChangedAt.UnixMilli()
		resp.StatusChangedAt = &ms
	}
	for _, f := range t.FailedDestinations {
		resp.FailedDestinations = append(resp.FailedDestinations, FailedDestinationDTO{ChatID: f.ChatID, ChatName: f.ChatName, Error: f.Error})
	}
	switch p := t.Payload.(type) {
	case domain.PostPayload:
		resp.Payload = TicketPayloadResponse{
			Content:   contentDTO(p.Content),
			MediaType: p.MediaType,
			MediaRef:  p.MediaRef,
			Category:  p.Category,
			Language:  p.Language,
			Labels:    p.Labels,
		}
	case domain.EditPayload:
		resp.Payload = TicketPayloadResponse{
			Content:       contentDTO(p.NewContent),
			PriorTicketID: p.PriorTicketID,
			OldContent:    contentDTO(p.OldContent),
			OldMediaType:  p.OldMediaType,
		}
	case domain.DeletePayload:
		resp.Payload = TicketPayloadResponse{
			PriorTicketID: p.PriorTicketID,
			OldContent:    contentDTO(p.OldContent),
			OldMediaType:  p.OldMediaType,
			OldMediaRef:   p.OldMediaRef,
		}
	}
	if t.Payload != nil {
		resp.Payload.Destinations = FromDestinations(t.Payload.Targets())
	} else {
		resp.Payload.Destinations = []DestinationDTO{}
	}
	return resp
}

// NewTicketResponses maps a ticket list, never returning nil.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// ToDestinations converts request destinations.
func ToDestinations(in []DestinationDTO) []domain.Destination {
	out := make([]domain.Destination, 0, len(in))
	for _, d := range in {
		out = append(out, domain.Destination{ChatID: d.ChatID, ChatName: strings.TrimSpace(d.ChatName)})
	}
	return out
}

// FromDestinations converts destinations for responses.
func FromDestinations(in []domain.Destination) []DestinationDTO {
	out := make([]DestinationDTO, 0, len(in))
	for _, d := range in {
		out = append(out, DestinationDTO{ChatID: d.ChatID, ChatName: d.ChatName, MessageRef: d.MessageRef})
	}
	return out
}

func contentDTO(c domain.Content) *ContentDTO {
	if c.IsZero() {
		return nil
	}
	return &ContentDTO{Text: c.Text, HTML: c.HTML, Markdown: c.Markdown}
}
