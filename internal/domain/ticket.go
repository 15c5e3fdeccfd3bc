package domain

import "time"

// TicketAction identifies which announcement change a ticket requests.
type TicketAction string

const (
	ActionPostAnnouncement   TicketAction = "post_announcement"
	ActionEditAnnouncement   TicketAction = "edit_announcement"
	ActionDeleteAnnouncement TicketAction = "delete_announcement"
)

// Prefix returns the ticket id prefix for the action.
func (a TicketAction) Prefix() string {
	switch a {
	case ActionPostAnnouncement:
		return "POST"
	case ActionEditAnnouncement:
		return "EDIT"
	case ActionDeleteAnnouncement:
		return "DELETE"
	default:
		return ""
	}
}

// Valid reports whether the action is known.
func (a TicketAction) Valid() bool {
	return a.Prefix() != ""
}

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusApproved TicketStatus = "approved"
	TicketStatusRejected TicketStatus = "rejected"
)

// Valid reports whether the status is known.
func (s TicketStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusPending:  {TicketStatusApproved, TicketStatusRejected},
	TicketStatusApproved: {},
	TicketStatusRejected: {},
}

// CanTransition reports whether next is reachable from current in one step.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// MediaType describes the kind of announcement body.
type MediaType string

const (
	MediaText  MediaType = "text"
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaFile  MediaType = "file"
)

// Valid reports whether the media type is known.
func (m MediaType) Valid() bool {
	switch m {
	case MediaText, MediaImage, MediaVideo, MediaFile:
		return true
	}
	return false
}

// Content carries the three renderings of an announcement body.
type Content struct {
	Text     string
	HTML     string
	Markdown string
}

// IsZero reports whether every rendering is empty.
func (c Content) IsZero() bool {
	return c.Text == "" && c.HTML == "" && c.Markdown == ""
}

// Rendered returns the HTML rendering, falling back to plain text.
func (c Content) Rendered() string {
	if c.HTML != "" {
		return c.HTML
	}
	return c.Text
}

// Destination is a chat an announcement is delivered to. MessageRef is set
// once a message exists there.
type Destination struct {
	ChatID     int64
	ChatName   string
	MessageRef string
}

// FailedDestination records a destination whose delivery failed.
type FailedDestination struct {
	ChatID   int64
	ChatName string
	Error    string
}

// Outcome partitions dispatched destinations by result.
type Outcome struct {
	Succeeded []Destination
	Failed    []FailedDestination
}

// Payload is the action-specific part of a ticket. It is implemented only by
// PostPayload, EditPayload and DeletePayload.
type Payload interface {
	Action() TicketAction
	Targets() []Destination
	isPayload()
}

// PostPayload publishes new content.
type PostPayload struct {
	Content      Content
	MediaType    MediaType
	MediaRef     string
	Category     string
	Language     string
	Labels       []string
	Destinations []Destination
}

// EditPayload replaces the content of a previously posted announcement.
type EditPayload struct {
	PriorTicketID string
	NewContent    Content
	OldContent    Content
	OldMediaType  MediaType
	Destinations  []Destination
}

// DeletePayload removes a previously posted announcement.
type DeletePayload struct {
	PriorTicketID string
	OldContent    Content
	OldMediaType  MediaType
	OldMediaRef   string
	Destinations  []Destination
}

func (PostPayload) Action() TicketAction   { return ActionPostAnnouncement }
func (EditPayload) Action() TicketAction   { return ActionEditAnnouncement }
func (DeletePayload) Action() TicketAction { return ActionDeleteAnnouncement }

func (p PostPayload) Targets() []Destination   { return p.Destinations }
func (p EditPayload) Targets() []Destination   { return p.Destinations }
func (p DeletePayload) Targets() []Destination { return p.Destinations }

func (PostPayload) isPayload()   {}
func (EditPayload) isPayload()   {}
func (DeletePayload) isPayload() {}

// Ticket is the aggregate for an announcement change request.
type Ticket struct {
	ID                  string
	Action              TicketAction
	Status              TicketStatus
	CreatorID           int64
	CreatorName         string
	ApproverID          *int64
	ApproverName        *string
	StatusChangedAt     *time.Time
	Payload             Payload
	SuccessDestinations []Destination
	FailedDestinations  []FailedDestination
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TicketPatch lists the fields a status decision may change. Nil fields are
// left untouched.
type TicketPatch struct {
	Status          *TicketStatus
	ApproverID      *int64
	ApproverName    *string
	StatusChangedAt *time.Time
	Outcome         *Outcome
	UpdatedAt       time.Time
}

// Apply copies the set fields of the patch onto t.
func (p TicketPatch) Apply(t *Ticket) {
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.ApproverID != nil {
		id := *p.ApproverID
		t.ApproverID = &id
	}
	if p.ApproverName != nil {
		name := *p.ApproverName
		t.ApproverName = &name
	}
	if p.StatusChangedAt != nil {
		at := *p.StatusChangedAt
		t.StatusChangedAt = &at
	}
	if p.Outcome != nil {
		t.SuccessDestinations = append([]Destination{}, p.Outcome.Succeeded...)
		t.FailedDestinations = append([]FailedDestination{}, p.Outcome.Failed...)
	}
	if !p.UpdatedAt.IsZero() && p.UpdatedAt.After(t.UpdatedAt) {
		t.UpdatedAt = p.UpdatedAt
	}
}
