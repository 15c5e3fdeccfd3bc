package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/announce-service/internal/domain"
)

func pendingPost(id string, creator int64, created time.Time) *domain.Ticket {
	return &domain.Ticket{
		ID:          id,
		Action:      domain.ActionPostAnnouncement,
		Status:      domain.TicketStatusPending,
		CreatorID:   creator,
		CreatorName: "creator",
		Payload: domain.PostPayload{
			Content:      domain.Content{Text: "hello", HTML: "<b>hello</b>"},
			MediaType:    domain.MediaText,
			Destinations: []domain.Destination{{ChatID: 1, ChatName: "one"}},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestMemoryTicketCreateRejectsDuplicateID(t *testing.T) {
	t.Parallel()

	repo := NewMemoryTicketRepository()
	ctx := context.Background()
	ticket := pendingPost("POST-a", 1, time.Now())
	if err := repo.Create(ctx, ticket); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, ticket); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second Create err = %v, want ErrDuplicate", err)
	}
}

func TestMemoryTicketGetReturnsCopy(t *testing.T) {
	t.Parallel()

	repo := NewMemoryTicketRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, pendingPost("POST-a", 1, time.Now())); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByID(ctx, "POST-a")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	got.Payload.Targets()[0].ChatName = "mutated"

	again, _ := repo.GetByID(ctx, "POST-a")
	if again.Payload.Targets()[0].ChatName != "one" {
		t.Fatal("stored ticket shares memory with caller")
	}
	if _, err := repo.GetByID(ctx, "POST-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing ticket err = %v", err)
	}
}

func TestMemoryTicketListFilters(t *testing.T) {
	t.Parallel()

	repo := NewMemoryTicketRepository()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, creator := range []int64{1, 1, 2} {
		ticket := pendingPost("POST-"+string(rune('a'+i)), creator, base.Add(time.Duration(i)*time.Hour))
		if err := repo.Create(ctx, ticket); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	creator := int64(1)
	from := base.Add(time.Hour)
	to := base.Add(2 * time.Hour)
	pending := domain.TicketStatusPending
	approved := domain.TicketStatusApproved

	tests := []struct {
		name   string
		filter TicketFilter
		want   []string
	}{
		{"all newest first", TicketFilter{}, []string{"POST-c", "POST-b", "POST-a"}},
		{"creator", TicketFilter{CreatorID: &creator}, []string{"POST-b", "POST-a"}},
		{"created range excludes upper bound", TicketFilter{CreatedFrom: &from, CreatedTo: &to}, []string{"POST-b"}},
		{"status", TicketFilter{Status: &pending, Limit: 1}, []string{"POST-c"}},
		{"no approved", TicketFilter{Status: &approved}, []string{}},
		{"status changed range skips undecided", TicketFilter{StatusChangedFrom: &base}, []string{}},
	}
	for _, tt := range tests {
		got, err := repo.List(ctx, tt.filter)
		if err != nil {
			t.Fatalf("%s: List: %v", tt.name, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("%s: got %d tickets, want %v", tt.name, len(got), tt.want)
		}
		for i := range got {
			if got[i].ID != tt.want[i] {
				t.Fatalf("%s: position %d = %s, want %s", tt.name, i, got[i].ID, tt.want[i])
			}
		}
	}
}

func TestMemoryTicketUpdateIfStatus(t *testing.T) {
	t.Parallel()

	repo := NewMemoryTicketRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, pendingPost("POST-a", 1, time.Now())); err != nil {
		t.Fatalf("Create: %v", err)
	}

	status := domain.TicketStatusApproved
	patch := domain.TicketPatch{Status: &status, Outcome: &domain.Outcome{}}
	updated, err := repo.UpdateIfStatus(ctx, "POST-a", domain.TicketStatusPending, patch)
	if err != nil {
		t.Fatalf("UpdateIfStatus: %v", err)
	}
	if updated.Status != domain.TicketStatusApproved {
		t.Fatalf("status = %s", updated.Status)
	}
	if updated.SuccessDestinations == nil || updated.FailedDestinations == nil {
		t.Fatal("approved ticket should carry empty, non-nil outcome lists")
	}

	if _, err := repo.UpdateIfStatus(ctx, "POST-a", domain.TicketStatusPending, patch); !errors.Is(err, ErrStatusMismatch) {
		t.Fatalf("second update err = %v, want ErrStatusMismatch", err)
	}
	if _, err := repo.UpdateIfStatus(ctx, "POST-x", domain.TicketStatusPending, patch); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing ticket err = %v, want ErrNotFound", err)
	}
}

func TestMemoryChatListMembershipFilters(t *testing.T) {
	t.Parallel()

	repo := NewMemoryChatRepository()
	ctx := context.Background()
	chats := []domain.Chat{
		{ChatID: 1, Name: "news-en", Category: []string{"news"}, Language: []string{"en"}, Active: true},
		{ChatID: 2, Name: "news-fa", Category: []string{"news"}, Language: []string{"fa"}, Active: true},
		{ChatID: 3, Name: "promo", Category: []string{"promo"}, Language: []string{"en"}, Label: []string{"vip"}, Active: false},
	}
	for i := range chats {
		if err := repo.Create(ctx, &chats[i]); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	active := true
	got, err := repo.List(ctx, ChatFilter{Categories: []string{"news", "promo"}, Languages: []string{"en"}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ChatID != 1 || got[1].ChatID != 3 {
		t.Fatalf("category+language = %+v", got)
	}

	got, _ = repo.List(ctx, ChatFilter{Languages: []string{"en"}, Active: &active})
	if len(got) != 1 || got[0].ChatID != 1 {
		t.Fatalf("active english = %+v", got)
	}

	got, _ = repo.List(ctx, ChatFilter{Labels: []string{"vip"}})
	if len(got) != 1 || got[0].ChatID != 3 {
		t.Fatalf("label = %+v", got)
	}
}

func TestMemoryChatUpdate(t *testing.T) {
	t.Parallel()

	repo := NewMemoryChatRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, &domain.Chat{ChatID: 5, Name: "old", Active: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	name := "new"
	inactive := false
	chat, err := repo.Update(ctx, 5, domain.ChatPatch{Name: &name, Active: &inactive})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if chat.Name != "new" || chat.Active {
		t.Fatalf("patch not applied: %+v", chat)
	}
	if _, err := repo.Update(ctx, 6, domain.ChatPatch{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing chat err = %v", err)
	}
	deleted, _ := repo.Delete(ctx, 5)
	if !deleted {
		t.Fatal("Delete reported nothing removed")
	}
	deleted, _ = repo.Delete(ctx, 5)
	if deleted {
		t.Fatal("second Delete reported a removal")
	}
}

func TestMemoryUserFilters(t *testing.T) {
	t.Parallel()

	repo := NewMemoryUserRepository()
	ctx := context.Background()
	for _, u := range []domain.User{
		{UserID: 1, Name: "root", Admin: true, Whitelist: true},
		{UserID: 2, Name: "writer", Whitelist: true},
		{UserID: 3, Name: "banned"},
	} {
		u := u
		if err := repo.Create(ctx, &u); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	admin := true
	got, _ := repo.List(ctx, UserFilter{Admin: &admin})
	if len(got) != 1 || got[0].UserID != 1 {
		t.Fatalf("admins = %+v", got)
	}
	whitelisted := true
	got, _ = repo.List(ctx, UserFilter{Whitelist: &whitelisted})
	if len(got) != 2 {
		t.Fatalf("whitelisted = %+v", got)
	}
}
