package service

import (
	"context"
	"testing"

	"github.com/spec-kit/announce-service/internal/domain"
	"github.com/spec-kit/announce-service/internal/events"
	"github.com/spec-kit/announce-service/internal/repository"
	apperrors "github.com/spec-kit/announce-service/pkg/util/errorutil"
)

func seedChats(t *testing.T, svc *ChatService) {
	t.Helper()
	for _, in := range []ChatCreateInput{
		{ChatID: 1, Name: "news-en", Type: domain.ChatTypeChannel, Category: []string{"news"}, Language: []string{"en"}, Label: []string{"vip"}},
		{ChatID: 2, Name: "news-fa", Type: domain.ChatTypeChannel, Category: []string{"news"}, Language: []string{"fa"}},
		{ChatID: 3, Name: "promo-en", Type: domain.ChatTypeGroup, Category: []string{"promo", "news"}, Language: []string{"en"}},
		{ChatID: 4, Name: "partners", Type: domain.ChatTypeSupergroup, Label: []string{"vip", "partner"}},
	} {
		if _, err := svc.Create(context.Background(), in); err != nil {
			t.Fatalf("create chat %d: %v", in.ChatID, err)
		}
	}
}

func destinationIDs(dests []domain.Destination) map[int64]bool {
	ids := make(map[int64]bool, len(dests))
	for _, d := range dests {
		ids[d.ChatID] = true
	}
	return ids
}

func TestResolveSelectors(t *testing.T) {
	t.Parallel()

	svc := NewChatService(ChatDependencies{ChatRepo: repository.NewMemoryChatRepository()})
	seedChats(t, svc)
	ctx := context.Background()
	if _, err := svc.Deactivate(ctx, 3); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	tests := []struct {
		name     string
		selector domain.Selector
		want     []int64
	}{
		{"category and language", domain.Selector{Category: "news", Language: "en"}, []int64{1}},
		{"labels", domain.Selector{Labels: []string{"vip"}}, []int64{1, 4}},
		{"label and name overlap counted once", domain.Selector{Labels: []string{"partner"}, Names: []string{"partners", "news-fa"}}, []int64{2, 4}},
		{"inactive excluded", domain.Selector{Names: []string{"promo-en"}}, nil},
		{"others without lists", domain.Selector{Category: "Others"}, nil},
	}
	for _, tt := range tests {
		got, err := svc.Resolve(ctx, tt.selector)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("%s: got %+v, want %v", tt.name, got, tt.want)
		}
		ids := destinationIDs(got)
		for _, id := range tt.want {
			if !ids[id] {
				t.Fatalf("%s: missing chat %d in %+v", tt.name, id, got)
			}
		}
	}

	if _, err := svc.Resolve(ctx, domain.Selector{Category: "news"}); !apperrors.Is(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("incomplete selector err = %v", err)
	}
}

func TestChatMembershipLifecycle(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewInMemoryDispatcher()
	var seen []events.EventType
	for _, et := range events.AllEventTypes {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			seen = append(seen, e.Type)
			return nil
		})
	}
	svc := NewChatService(ChatDependencies{ChatRepo: repository.NewMemoryChatRepository(), Dispatcher: dispatcher})
	ctx := context.Background()

	chat, err := svc.Register(ctx, -100, "Team", domain.ChatTypeSupergroup)
	if err != nil || !chat.Active || chat.Name != "Team" {
		t.Fatalf("Register = %+v, %v", chat, err)
	}
	if _, err := svc.Update(ctx, -100, domain.ChatPatch{Category: &[]string{"news", " news ", ""}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	chat, _ = svc.Deactivate(ctx, -100)
	if chat.Active {
		t.Fatal("chat still active")
	}
	chat, err = svc.Register(ctx, -100, "Team 2", domain.ChatTypeSupergroup)
	if err != nil || !chat.Active || chat.Name != "Team 2" {
		t.Fatalf("re-Register = %+v, %v", chat, err)
	}
	if len(chat.Category) != 1 || chat.Category[0] != "news" {
		t.Fatalf("reactivation must keep operator tags: %+v", chat.Category)
	}
	chat, err = svc.Rename(ctx, -100, "Team 3")
	if err != nil || chat.Name != "Team 3" {
		t.Fatalf("Rename = %+v, %v", chat, err)
	}

	want := []events.EventType{
		events.EventChatRegistered, events.EventChatDeactivated, events.EventChatRegistered, events.EventChatRenamed,
	}
	if len(seen) != len(want) {
		t.Fatalf("events = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("events = %v, want %v", seen, want)
		}
	}

	if _, err := svc.Deactivate(ctx, 12345); !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Fatalf("deactivate unknown err = %v", err)
	}
}

func TestChatCreateConflictAndReactivate(t *testing.T) {
	t.Parallel()

	svc := NewChatService(ChatDependencies{ChatRepo: repository.NewMemoryChatRepository()})
	ctx := context.Background()
	in := ChatCreateInput{ChatID: 9, Name: "nine", Type: domain.ChatTypeGroup}
	if _, err := svc.Create(ctx, in); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, in); !apperrors.Is(err, apperrors.CodeConflict) {
		t.Fatalf("duplicate err = %v", err)
	}
	if _, err := svc.Deactivate(ctx, 9); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	in.Language = []string{"en"}
	chat, err := svc.Create(ctx, in)
	if err != nil || !chat.Active || len(chat.Language) != 1 {
		t.Fatalf("reactivating Create = %+v, %v", chat, err)
	}
	if _, err := svc.Create(ctx, ChatCreateInput{ChatID: 10, Name: "x", Type: "dm"}); !apperrors.Is(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("bad type err = %v", err)
	}
	found, _ := svc.Find(ctx, 11)
	if found == nil || len(found) != 0 {
		t.Fatalf("Find missing = %+v", found)
	}
}
