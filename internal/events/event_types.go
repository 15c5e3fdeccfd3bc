package events

import (
	"time"

	"github.com/spec-kit/announce-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketApproved  EventType = "ticket_approved"
	EventTicketRejected  EventType = "ticket_rejected"
	EventTicketDeleted   EventType = "ticket_deleted"
	EventChatRegistered  EventType = "chat_registered"
	EventChatDeactivated EventType = "chat_deactivated"
	EventChatRenamed     EventType = "chat_renamed"
)

// AllEventTypes lists every type the service publishes.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketApproved,
	EventTicketRejected,
	EventTicketDeleted,
	EventChatRegistered,
	EventChatDeactivated,
	EventChatRenamed,
}

// Actor identifies who triggered an event. Zero for system actions.
type Actor struct {
	UserID int64  `json:"user_id,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticket_id,omitempty"`
	ChatID    int64     `json:"chat_id,omitempty"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Action       domain.TicketAction `json:"action"`
	Destinations int                 `json:"destinations"`
	PriorTicket  string              `json:"prior_ticket_id,omitempty"`
}

// TicketDecidedPayload is carried by approval and rejection events.
type TicketDecidedPayload struct {
	Action    domain.TicketAction        `json:"action"`
	CreatorID int64                      `json:"creator_id"`
	OldStatus domain.TicketStatus        `json:"old_status"`
	NewStatus domain.TicketStatus        `json:"new_status"`
	Succeeded int                        `json:"succeeded"`
	Failed    []domain.FailedDestination `json:"failed,omitempty"`
}

// ChatPayload is carried by chat directory events.
type ChatPayload struct {
	Name    string          `json:"name"`
	Type    domain.ChatType `json:"type,omitempty"`
	OldName string          `json:"old_name,omitempty"`
}
