package repository

import (
	"testing"
	"time"

	"github.com/spec-kit/announce-service/internal/domain"
)

func TestTicketDocumentKeepsEditAuditFields(t *testing.T) {
	t.Parallel()

	now := time.Now()
	ticket := &domain.Ticket{
		ID:     "EDIT-1",
		Action: domain.ActionEditAnnouncement,
		Status: domain.TicketStatusPending,
		Payload: domain.EditPayload{
			PriorTicketID: "POST-1",
			NewContent:    domain.Content{HTML: "<i>new</i>"},
			OldContent:    domain.Content{HTML: "<i>old</i>"},
			OldMediaType:  domain.MediaImage,
			Destinations:  []domain.Destination{{ChatID: 7, ChatName: "seven", MessageRef: "70"}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	doc, err := toTicketDocument(ticket)
	if err != nil {
		t.Fatalf("toTicketDocument: %v", err)
	}
	if doc.Payload.OldTicketID != "POST-1" || doc.Payload.OldAnncType != "image" || doc.Payload.ContentHTML != "<i>new</i>" {
		t.Fatalf("payload document = %+v", doc.Payload)
	}

	back, err := doc.toDomain()
	if err != nil {
		t.Fatalf("toDomain: %v", err)
	}
	edit, ok := back.Payload.(domain.EditPayload)
	if !ok {
		t.Fatalf("payload type = %T", back.Payload)
	}
	if edit.Destinations[0].MessageRef != "70" || edit.OldContent.HTML != "<i>old</i>" {
		t.Fatalf("edit payload = %+v", edit)
	}
	if back.SuccessDestinations != nil {
		t.Fatal("pending ticket should have no outcome")
	}
}

func TestTicketDocumentRejectsUnknownAction(t *testing.T) {
	t.Parallel()

	doc := ticketDocument{TicketID: "X-1", Action: "archive_announcement"}
	if _, err := doc.toDomain(); err == nil {
		t.Fatal("expected error for unknown action")
	}
	if _, err := toTicketDocument(&domain.Ticket{ID: "X-2"}); err == nil {
		t.Fatal("expected error for missing payload")
	}
}
