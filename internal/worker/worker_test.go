package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/spec-kit/announce-service/internal/config"
	"github.com/spec-kit/announce-service/internal/domain"
	"github.com/spec-kit/announce-service/internal/events"
	"github.com/spec-kit/announce-service/internal/service"
)

type fakeLister struct {
	query   service.TicketQuery
	tickets []domain.Ticket
	err     error
}

func (f *fakeLister) List(_ context.Context, q service.TicketQuery) ([]domain.Ticket, error) {
	f.query = q
	return f.tickets, f.err
}

type fakeNotifier struct {
	calls   int
	tickets []domain.Ticket
}

func (f *fakeNotifier) RemindPending(_ context.Context, tickets []domain.Ticket, _ time.Time) error {
	f.calls++
	f.tickets = tickets
	return nil
}

func reminderConfig() config.ReminderConfig {
	return config.ReminderConfig{Enabled: true, Spec: "@every 10m", Timezone: "UTC", MinAge: 30 * time.Minute, MaxAge: 24 * time.Hour}
}

func TestPendingReminderWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	lister := &fakeLister{tickets: []domain.Ticket{{ID: "t1", Status: domain.TicketStatusPending}}}
	notifier := &fakeNotifier{}
	r, err := NewPendingReminder(lister, notifier, reminderConfig(), nil)
	if err != nil {
		t.Fatalf("NewPendingReminder: %v", err)
	}
	r.now = func() time.Time { return now }

	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	q := lister.query
	if q.Status == nil || *q.Status != domain.TicketStatusPending {
		t.Fatalf("status filter = %v", q.Status)
	}
	if !q.CreatedFrom.Equal(now.Add(-24*time.Hour)) || !q.CreatedTo.Equal(now.Add(-30*time.Minute)) {
		t.Fatalf("window = %v..%v", q.CreatedFrom, q.CreatedTo)
	}
	if notifier.calls != 1 || len(notifier.tickets) != 1 {
		t.Fatalf("notifier calls = %d tickets = %d", notifier.calls, len(notifier.tickets))
	}
}

func TestPendingReminderQuietWhenNothingQualifies(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}
	r, err := NewPendingReminder(&fakeLister{}, notifier, reminderConfig(), nil)
	if err != nil {
		t.Fatalf("NewPendingReminder: %v", err)
	}
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if notifier.calls != 0 {
		t.Fatalf("notifier called %d times", notifier.calls)
	}

	boom := errors.New("boom")
	r.tickets = &fakeLister{err: boom}
	if err := r.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("RunOnce err = %v", err)
	}
}

func TestPendingReminderRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cfg := reminderConfig()
	cfg.Spec = "not a schedule"
	if _, err := NewPendingReminder(&fakeLister{}, &fakeNotifier{}, cfg, nil); err == nil {
		t.Fatal("expected schedule error")
	}
	cfg = reminderConfig()
	cfg.Timezone = "Mars/Olympus"
	if _, err := NewPendingReminder(&fakeLister{}, &fakeNotifier{}, cfg, nil); err == nil {
		t.Fatal("expected timezone error")
	}
}

func TestPendingReminderStartStop(t *testing.T) {
	t.Parallel()

	r, err := NewPendingReminder(&fakeLister{}, &fakeNotifier{}, reminderConfig(), nil)
	if err != nil {
		t.Fatalf("NewPendingReminder: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
}

type directoryCall struct {
	op     string
	chatID int64
	name   string
	typ    domain.ChatType
}

type fakeDirectory struct {
	calls []directoryCall
}

func (f *fakeDirectory) Register(_ context.Context, id int64, name string, typ domain.ChatType) (*domain.Chat, error) {
	f.calls = append(f.calls, directoryCall{"register", id, name, typ})
	return &domain.Chat{ChatID: id, Name: name, Type: typ, Active: true}, nil
}

func (f *fakeDirectory) Deactivate(_ context.Context, id int64) (*domain.Chat, error) {
	f.calls = append(f.calls, directoryCall{op: "deactivate", chatID: id})
	return &domain.Chat{ChatID: id}, nil
}

func (f *fakeDirectory) Rename(_ context.Context, id int64, name string) (*domain.Chat, error) {
	f.calls = append(f.calls, directoryCall{op: "rename", chatID: id, name: name})
	return &domain.Chat{ChatID: id, Name: name}, nil
}

type adminSet map[int64]bool

func (a adminSet) IsAdmin(_ context.Context, id int64) (bool, error) {
	return a[id], nil
}

func memberUpdate(chatType tele.ChatType, sender int64, old, next tele.MemberStatus) *tele.ChatMemberUpdate {
	return &tele.ChatMemberUpdate{
		Chat:          &tele.Chat{ID: -100, Type: chatType, Title: "Team"},
		Sender:        &tele.User{ID: sender},
		OldChatMember: &tele.ChatMember{Role: old},
		NewChatMember: &tele.ChatMember{Role: next},
	}
}

func TestMembershipUpdates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		update *tele.ChatMemberUpdate
		want   []directoryCall
	}{
		{
			name:   "added by admin",
			update: memberUpdate(tele.ChatSuperGroup, 1, tele.Left, tele.Administrator),
			want:   []directoryCall{{"register", -100, "Team", domain.ChatTypeSupergroup}},
		},
		{
			name:   "added to channel",
			update: memberUpdate(tele.ChatChannel, 1, tele.Kicked, tele.Member),
			want:   []directoryCall{{"register", -100, "Team", domain.ChatTypeChannel}},
		},
		{
			name:   "added by stranger",
			update: memberUpdate(tele.ChatGroup, 2, tele.Left, tele.Member),
		},
		{
			name:   "removed",
			update: memberUpdate(tele.ChatGroup, 2, tele.Member, tele.Kicked),
			want:   []directoryCall{{op: "deactivate", chatID: -100}},
		},
		{
			name:   "promoted",
			update: memberUpdate(tele.ChatGroup, 1, tele.Member, tele.Administrator),
		},
		{
			name:   "private chat",
			update: memberUpdate(tele.ChatPrivate, 1, tele.Left, tele.Member),
		},
		{
			name:   "incomplete update",
			update: &tele.ChatMemberUpdate{Chat: &tele.Chat{ID: 1, Type: tele.ChatGroup}},
		},
	}
	for _, tt := range tests {
		dir := &fakeDirectory{}
		w := NewMembershipWorker(nil, dir, adminSet{1: true}, nil)
		if err := w.HandleMemberUpdate(context.Background(), tt.update); err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if len(dir.calls) != len(tt.want) {
			t.Fatalf("%s: calls = %+v, want %+v", tt.name, dir.calls, tt.want)
		}
		for i := range tt.want {
			if dir.calls[i] != tt.want[i] {
				t.Fatalf("%s: calls = %+v, want %+v", tt.name, dir.calls, tt.want)
			}
		}
	}
}

func TestMembershipTitleChange(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{}
	w := NewMembershipWorker(nil, dir, adminSet{}, nil)
	if err := w.HandleTitle(context.Background(), &tele.Chat{ID: 5, Title: "Renamed"}); err != nil {
		t.Fatalf("HandleTitle: %v", err)
	}
	if err := w.HandleTitle(context.Background(), &tele.Chat{ID: 5, Title: "  "}); err != nil {
		t.Fatalf("HandleTitle blank: %v", err)
	}
	if len(dir.calls) != 1 || dir.calls[0].name != "Renamed" {
		t.Fatalf("calls = %+v", dir.calls)
	}
}

type reviewChat struct {
	texts []string
}

func (r *reviewChat) Notify(_ context.Context, _ int64, text string) error {
	r.texts = append(r.texts, text)
	return nil
}

type countingForwarder struct {
	seen []events.EventType
}

func (c *countingForwarder) Attach(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketCreated, func(_ context.Context, e events.Event) error {
		c.seen = append(c.seen, e.Type)
		return nil
	})
}

func TestNotificationWorkerWiresEverySink(t *testing.T) {
	t.Parallel()

	dispatcher := events.NewInMemoryDispatcher()
	chat := &reviewChat{}
	notifications := service.NewNotificationService(dispatcher, chat, -42, nil)
	forwarder := &countingForwarder{}

	StartNotificationWorker(dispatcher, notifications, nil, forwarder, nil)

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventTicketCreated,
		TicketID: "POST-1",
		Payload:  events.TicketCreatedPayload{Action: domain.ActionPostAnnouncement, Destinations: 2},
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(chat.texts) != 1 {
		t.Fatalf("review notices = %v", chat.texts)
	}
	if len(forwarder.seen) != 1 || forwarder.seen[0] != events.EventTicketCreated {
		t.Fatalf("forwarded = %v", forwarder.seen)
	}
}

func TestNotificationWorkerWithoutDispatcher(t *testing.T) {
	t.Parallel()

	forwarder := &countingForwarder{}
	StartNotificationWorker(nil, nil, nil, forwarder)
	if len(forwarder.seen) != 0 {
		t.Fatalf("forwarded = %v", forwarder.seen)
	}
}
