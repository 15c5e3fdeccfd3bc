package lifecycle

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/announce-service/internal/domain"
	"github.com/spec-kit/announce-service/internal/repository"
	apperrors "github.com/spec-kit/announce-service/pkg/util/errorutil"
)

func textPost(dests ...domain.Destination) domain.PostPayload {
	return domain.PostPayload{
		Content:      domain.Content{Text: "hi", HTML: "<b>hi</b>"},
		MediaType:    domain.MediaText,
		Destinations: dests,
	}
}

func TestCreatePostAssignsPrefixedID(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemoryTicketRepository()
	engine := NewEngine(repo)

	ticket, err := engine.Create(context.Background(), CreateInput{
		CreatorID:   1,
		CreatorName: " writer ",
		Payload:     textPost(domain.Destination{ChatID: 1}, domain.Destination{ChatID: 1}, domain.Destination{ChatID: 2}),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(ticket.ID, "POST-") || len(ticket.ID) != len("POST-")+32 {
		t.Fatalf("ticket id = %q", ticket.ID)
	}
	if ticket.Status != domain.TicketStatusPending || ticket.CreatorName != "writer" {
		t.Fatalf("ticket = %+v", ticket)
	}
	if got := len(ticket.Payload.Targets()); got != 2 {
		t.Fatalf("destinations not deduplicated: %d", got)
	}
	if ticket.SuccessDestinations != nil || ticket.FailedDestinations != nil {
		t.Fatal("pending ticket must not carry outcomes")
	}
	if _, err := repo.GetByID(context.Background(), ticket.ID); err != nil {
		t.Fatalf("ticket not persisted: %v", err)
	}
}

func TestCreateRejectsCollidingID(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemoryTicketRepository()
	engine := NewEngine(repo, WithSuffixGenerator(func() string { return "fixed" }))
	ctx := context.Background()

	if _, err := engine.Create(ctx, CreateInput{CreatorID: 1, Payload: textPost()}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := engine.Create(ctx, CreateInput{CreatorID: 1, Payload: textPost()})
	if !apperrors.Is(err, apperrors.CodeConflict) {
		t.Fatalf("err = %v, want Conflict", err)
	}
}

func TestCreateValidatesPost(t *testing.T) {
	t.Parallel()

	engine := NewEngine(repository.NewMemoryTicketRepository())
	tests := []struct {
		name    string
		payload domain.Payload
	}{
		{"nil payload", nil},
		{"empty text", domain.PostPayload{MediaType: domain.MediaText}},
		{"image without file", domain.PostPayload{MediaType: domain.MediaImage, Content: domain.Content{Text: "caption"}}},
		{"unknown media", domain.PostPayload{MediaType: "sticker", MediaRef: "x"}},
	}
	for _, tt := range tests {
		_, err := engine.Create(context.Background(), CreateInput{CreatorID: 1, Payload: tt.payload})
		if !apperrors.Is(err, apperrors.CodeInvalidArgument) {
			t.Fatalf("%s: err = %v, want InvalidArgument", tt.name, err)
		}
	}
}

func seedApprovedPost(t *testing.T, repo repository.TicketRepository, id string, success []domain.Destination) {
	t.Helper()
	now := time.Now()
	post := &domain.Ticket{
		ID:     id,
		Action: domain.ActionPostAnnouncement,
		Status: domain.TicketStatusApproved,
		Payload: domain.PostPayload{
			Content:   domain.Content{Text: "orig", HTML: "<i>orig</i>"},
			MediaType: domain.MediaImage,
			MediaRef:  "photo-file-id",
			Destinations: []domain.Destination{
				{ChatID: 1, ChatName: "chat-A"}, {ChatID: 2, ChatName: "chat-B"},
				{ChatID: 3, ChatName: "chat-C"}, {ChatID: 4, ChatName: "chat-D"},
			},
		},
		SuccessDestinations: success,
		FailedDestinations:  []domain.FailedDestination{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := repo.Create(context.Background(), post); err != nil {
		t.Fatalf("seed post: %v", err)
	}
}

func TestCreateDeleteCopiesPriorSuccessList(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemoryTicketRepository()
	success := []domain.Destination{
		{ChatID: 1, ChatName: "chat-A", MessageRef: "11"},
		{ChatID: 2, ChatName: "chat-B", MessageRef: "22"},
	}
	seedApprovedPost(t, repo, "POST-prior", success)

	ticket, err := NewEngine(repo).Create(context.Background(), CreateInput{
		CreatorID: 1,
		Payload:   domain.DeletePayload{PriorTicketID: "POST-prior"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	del, ok := ticket.Payload.(domain.DeletePayload)
	if !ok {
		t.Fatalf("payload = %T", ticket.Payload)
	}
	if len(del.Destinations) != 2 || del.Destinations[0] != success[0] || del.Destinations[1] != success[1] {
		t.Fatalf("destinations = %+v, want %+v", del.Destinations, success)
	}
	if del.OldMediaRef != "photo-file-id" || del.OldMediaType != domain.MediaImage || del.OldContent.Text != "orig" {
		t.Fatalf("old fields not copied: %+v", del)
	}
	if !strings.HasPrefix(ticket.ID, "DELETE-") {
		t.Fatalf("id = %s", ticket.ID)
	}
}

func TestCreateEditCopiesOldContent(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemoryTicketRepository()
	seedApprovedPost(t, repo, "POST-prior", []domain.Destination{{ChatID: 3, ChatName: "chat-C", MessageRef: "33"}})

	ticket, err := NewEngine(repo).Create(context.Background(), CreateInput{
		CreatorID: 1,
		Payload: domain.EditPayload{
			PriorTicketID: "POST-prior",
			NewContent:    domain.Content{HTML: "<i>fixed</i>"},
			// caller-supplied old fields are overwritten from the prior ticket
			OldContent: domain.Content{HTML: "forged"},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	edit := ticket.Payload.(domain.EditPayload)
	if edit.OldContent.HTML != "<i>orig</i>" || edit.OldMediaType != domain.MediaImage {
		t.Fatalf("old content = %+v / %s", edit.OldContent, edit.OldMediaType)
	}
	if len(edit.Destinations) != 1 || edit.Destinations[0].MessageRef != "33" {
		t.Fatalf("destinations = %+v", edit.Destinations)
	}
}

func TestCreateEditMissingPriorPersistsNothing(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemoryTicketRepository()
	_, err := NewEngine(repo).Create(context.Background(), CreateInput{
		CreatorID: 1,
		Payload:   domain.EditPayload{PriorTicketID: "POST-nope", NewContent: domain.Content{Text: "x"}},
	})
	if !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
	all, _ := repo.List(context.Background(), repository.TicketFilter{})
	if len(all) != 0 {
		t.Fatalf("persisted %d tickets", len(all))
	}
}

func TestCreateRejectsNonPostPrior(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemoryTicketRepository()
	seedApprovedPost(t, repo, "POST-prior", nil)
	engine := NewEngine(repo)
	ctx := context.Background()

	del, err := engine.Create(ctx, CreateInput{CreatorID: 1, Payload: domain.DeletePayload{PriorTicketID: "POST-prior"}})
	if err != nil {
		t.Fatalf("Create delete: %v", err)
	}

	for _, payload := range []domain.Payload{
		domain.DeletePayload{PriorTicketID: del.ID},
		domain.EditPayload{PriorTicketID: del.ID, NewContent: domain.Content{Text: "x"}},
	} {
		_, err := engine.Create(ctx, CreateInput{CreatorID: 1, Payload: payload})
		if !apperrors.Is(err, apperrors.CodeInvalidArgument) {
			t.Fatalf("%T: err = %v, want InvalidArgument", payload, err)
		}
	}
}

func TestDecisions(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(repository.NewMemoryTicketRepository(), WithClock(func() time.Time { return fixed }))
	admin := &domain.User{UserID: 9, Name: "boss", Admin: true}
	member := &domain.User{UserID: 8, Name: "member", Whitelist: true}
	pending := &domain.Ticket{ID: "POST-1", Status: domain.TicketStatusPending}

	patch, err := engine.Approve(pending, admin, domain.Outcome{})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if *patch.Status != domain.TicketStatusApproved || *patch.ApproverID != 9 || !patch.StatusChangedAt.Equal(fixed) {
		t.Fatalf("patch = %+v", patch)
	}
	if patch.Outcome == nil || patch.Outcome.Succeeded == nil || patch.Outcome.Failed == nil {
		t.Fatal("approve patch must carry non-nil outcome lists")
	}

	patch, err = engine.Reject(pending, admin)
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if *patch.Status != domain.TicketStatusRejected || patch.Outcome != nil {
		t.Fatalf("reject patch = %+v", patch)
	}

	if _, err := engine.Approve(pending, member, domain.Outcome{}); !apperrors.Is(err, apperrors.CodePermissionDenied) {
		t.Fatalf("non-admin err = %v", err)
	}

	for _, status := range []domain.TicketStatus{domain.TicketStatusApproved, domain.TicketStatusRejected} {
		decided := &domain.Ticket{ID: "POST-2", Status: status}
		if err := engine.CheckPending(decided); !apperrors.Is(err, apperrors.CodeInvalidState) {
			t.Fatalf("CheckPending(%s) = %v", status, err)
		}
		if _, err := engine.Reject(decided, admin); !apperrors.Is(err, apperrors.CodeInvalidState) {
			t.Fatalf("Reject(%s) = %v", status, err)
		}
		if _, err := engine.Approve(decided, admin, domain.Outcome{}); !apperrors.Is(err, apperrors.CodeInvalidState) {
			t.Fatalf("Approve(%s) = %v", status, err)
		}
	}
}
