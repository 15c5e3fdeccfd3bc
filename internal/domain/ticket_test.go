package domain

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	statuses := []TicketStatus{TicketStatusPending, TicketStatusApproved, TicketStatusRejected}
	allowed := map[[2]TicketStatus]bool{
		{TicketStatusPending, TicketStatusApproved}: true,
		{TicketStatusPending, TicketStatusRejected}: true,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]TicketStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestActionPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		action TicketAction
		want   string
	}{
		{ActionPostAnnouncement, "POST"},
		{ActionEditAnnouncement, "EDIT"},
		{ActionDeleteAnnouncement, "DELETE"},
		{TicketAction("archive"), ""},
	}
	for _, tt := range tests {
		if got := tt.action.Prefix(); got != tt.want {
			t.Fatalf("%s prefix = %q, want %q", tt.action, got, tt.want)
		}
	}
}

func TestPayloadVariants(t *testing.T) {
	t.Parallel()

	dests := []Destination{{ChatID: 1, ChatName: "one"}}
	payloads := []Payload{
		PostPayload{Destinations: dests},
		EditPayload{Destinations: dests},
		DeletePayload{Destinations: dests},
	}
	want := []TicketAction{ActionPostAnnouncement, ActionEditAnnouncement, ActionDeleteAnnouncement}
	for i, p := range payloads {
		if p.Action() != want[i] {
			t.Fatalf("payload %d action = %s, want %s", i, p.Action(), want[i])
		}
		if len(p.Targets()) != 1 {
			t.Fatalf("payload %d targets = %v", i, p.Targets())
		}
	}
}

func TestTicketPatchApply(t *testing.T) {
	t.Parallel()

	created := time.Unix(1000, 0)
	ticket := Ticket{ID: "POST-1", Status: TicketStatusPending, CreatedAt: created, UpdatedAt: created}

	status := TicketStatusApproved
	approver := int64(42)
	name := "alice"
	decided := created.Add(time.Minute)
	outcome := Outcome{Succeeded: []Destination{{ChatID: 1, MessageRef: "10"}}}
	TicketPatch{
		Status:          &status,
		ApproverID:      &approver,
		ApproverName:    &name,
		StatusChangedAt: &decided,
		Outcome:         &outcome,
		UpdatedAt:       decided,
	}.Apply(&ticket)

	if ticket.Status != TicketStatusApproved {
		t.Fatalf("status = %s", ticket.Status)
	}
	if ticket.ApproverID == nil || *ticket.ApproverID != 42 || *ticket.ApproverName != "alice" {
		t.Fatalf("approver not applied: %+v", ticket)
	}
	if len(ticket.SuccessDestinations) != 1 || ticket.FailedDestinations == nil {
		t.Fatalf("outcome not applied: %+v / %+v", ticket.SuccessDestinations, ticket.FailedDestinations)
	}
	if !ticket.UpdatedAt.Equal(decided) {
		t.Fatalf("updated_at = %v", ticket.UpdatedAt)
	}

	approver = 7
	if *ticket.ApproverID != 42 {
		t.Fatal("patch aliases approver id")
	}
}

func TestTicketPatchApplyKeepsUpdatedAtMonotonic(t *testing.T) {
	t.Parallel()

	now := time.Unix(2000, 0)
	ticket := Ticket{UpdatedAt: now}
	TicketPatch{UpdatedAt: now.Add(-time.Hour)}.Apply(&ticket)
	if !ticket.UpdatedAt.Equal(now) {
		t.Fatalf("updated_at moved backwards to %v", ticket.UpdatedAt)
	}
}

func TestSelectorIsFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sel  Selector
		want bool
	}{
		{"standard", Selector{Category: "news", Language: "en"}, false},
		{"others category", Selector{Category: "Others"}, true},
		{"labels", Selector{Labels: []string{"vip"}}, true},
		{"names", Selector{Names: []string{"Main"}}, true},
	}
	for _, tt := range tests {
		if got := tt.sel.IsFallback(); got != tt.want {
			t.Fatalf("%s: IsFallback = %v, want %v", tt.name, got, tt.want)
		}
	}
}
