// Package lifecycle owns ticket identity, construction and status transitions.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/announce-service/internal/domain"
	"github.com/spec-kit/announce-service/internal/repository"
	apperrors "github.com/spec-kit/announce-service/pkg/util/errorutil"
)

// Engine builds tickets and decides their status transitions. It reads and
// inserts tickets but never updates them; callers persist the patches it returns.
type Engine struct {
	tickets   repository.TicketRepository
	now       func() time.Time
	newSuffix func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSuffixGenerator overrides the ticket id suffix source.
func WithSuffixGenerator(gen func() string) Option {
	return func(e *Engine) { e.newSuffix = gen }
}

// NewEngine constructs an Engine over the ticket store.
func NewEngine(tickets repository.TicketRepository, opts ...Option) *Engine {
	e := &Engine{
		tickets:   tickets,
		now:       time.Now,
		newSuffix: randomSuffix,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateInput describes a new ticket. The caller has already checked that
// the creator may create tickets.
type CreateInput struct {
	CreatorID   int64
	CreatorName string
	Payload     domain.Payload
}

// Create validates the payload, resolves the prior ticket for edits and
// deletes, assigns an id and stores the ticket as pending.
func (e *Engine) Create(ctx context.Context, input CreateInput) (*domain.Ticket, error) {
	payload, err := e.prepare(ctx, input.Payload)
	if err != nil {
		return nil, err
	}

	action := payload.Action()
	id := action.Prefix() + "-" + e.newSuffix()
	if _, err := e.tickets.GetByID(ctx, id); err == nil {
		return nil, apperrors.NewConflict("ticket id already exists", map[string]any{"ticket_id": id})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	now := e.now()
	ticket := &domain.Ticket{
		ID:          id,
		Action:      action,
		Status:      domain.TicketStatusPending,
		CreatorID:   input.CreatorID,
		CreatorName: strings.TrimSpace(input.CreatorName),
		Payload:     payload,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.tickets.Create(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("ticket id already exists", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return ticket, nil
}

func (e *Engine) prepare(ctx context.Context, payload domain.Payload) (domain.Payload, error) {
	switch p := payload.(type) {
	case domain.PostPayload:
		if p.MediaType == "" {
			p.MediaType = domain.MediaText
		}
		if err := validatePost(p); err != nil {
			return nil, err
		}
		p.Destinations = uniqueDestinations(p.Destinations)
		return p, nil
	case domain.EditPayload:
		if p.NewContent.IsZero() {
			return nil, apperrors.NewInvalidArgument("new content is required", nil)
		}
		prior, post, err := e.priorPost(ctx, p.PriorTicketID)
		if err != nil {
			return nil, err
		}
		p.OldContent = post.Content
		p.OldMediaType = post.MediaType
		p.Destinations = cloneDestinations(prior.SuccessDestinations)
		return p, nil
	case domain.DeletePayload:
		prior, post, err := e.priorPost(ctx, p.PriorTicketID)
		if err != nil {
			return nil, err
		}
		p.OldContent = post.Content
		p.OldMediaType = post.MediaType
		p.OldMediaRef = post.MediaRef
		p.Destinations = cloneDestinations(prior.SuccessDestinations)
		return p, nil
	case nil:
		return nil, apperrors.NewInvalidArgument("ticket payload is required", nil)
	default:
		return nil, apperrors.NewInvalidArgument(fmt.Sprintf("unsupported ticket payload %T", payload), nil)
	}
}

// priorPost loads the ticket an edit or delete refers to. Only post tickets
// may be referenced.
func (e *Engine) priorPost(ctx context.Context, priorID string) (*domain.Ticket, domain.PostPayload, error) {
	priorID = strings.TrimSpace(priorID)
	if priorID == "" {
		return nil, domain.PostPayload{}, apperrors.NewInvalidArgument("prior_ticket_id is required", nil)
	}
	prior, err := e.tickets.GetByID(ctx, priorID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.PostPayload{}, apperrors.NewNotFound("prior ticket", map[string]any{"ticket_id": priorID})
	}
	if err != nil {
		return nil, domain.PostPayload{}, apperrors.NewInternalError(err)
	}
	post, ok := prior.Payload.(domain.PostPayload)
	if !ok {
		return nil, domain.PostPayload{}, apperrors.NewInvalidArgument("prior ticket is not a post announcement", map[string]any{
			"ticket_id": priorID,
			"action":    prior.Action,
		})
	}
	return prior, post, nil
}

func validatePost(p domain.PostPayload) error {
	if !p.MediaType.Valid() {
		return apperrors.NewInvalidArgument("unknown media type", map[string]any{"annc_type": p.MediaType})
	}
	if p.MediaType == domain.MediaText && p.Content.IsZero() {
		return apperrors.NewInvalidArgument("text announcements need content", nil)
	}
	if p.MediaType != domain.MediaText && strings.TrimSpace(p.MediaRef) == "" {
		return apperrors.NewInvalidArgument("media announcements need a file reference", map[string]any{"annc_type": p.MediaType})
	}
	return nil
}

// CheckPending fails with InvalidState unless the ticket awaits a decision.
func (e *Engine) CheckPending(ticket *domain.Ticket) error {
	if ticket.Status != domain.TicketStatusPending {
		return apperrors.NewInvalidState("ticket is not pending", map[string]any{
			"ticket_id": ticket.ID,
			"status":    ticket.Status,
		})
	}
	return nil
}

// Authorize fails with PermissionDenied unless the user may decide tickets.
func (e *Engine) Authorize(approver *domain.User) error {
	if approver == nil || !approver.Admin {
		return apperrors.NewPermissionDenied("only admins may approve or reject tickets")
	}
	return nil
}

// Approve returns the patch that moves a pending ticket to approved with the
// given dispatch outcome.
func (e *Engine) Approve(ticket *domain.Ticket, approver *domain.User, outcome domain.Outcome) (domain.TicketPatch, error) {
	patch, err := e.decide(ticket, approver, domain.TicketStatusApproved)
	if err != nil {
		return domain.TicketPatch{}, err
	}
	if outcome.Succeeded == nil {
		outcome.Succeeded = []domain.Destination{}
	}
	if outcome.Failed == nil {
		outcome.Failed = []domain.FailedDestination{}
	}
	patch.Outcome = &outcome
	return patch, nil
}

// Reject returns the patch that moves a pending ticket to rejected.
func (e *Engine) Reject(ticket *domain.Ticket, approver *domain.User) (domain.TicketPatch, error) {
	return e.decide(ticket, approver, domain.TicketStatusRejected)
}

func (e *Engine) decide(ticket *domain.Ticket, approver *domain.User, next domain.TicketStatus) (domain.TicketPatch, error) {
	if !domain.CanTransition(ticket.Status, next) {
		return domain.TicketPatch{}, apperrors.NewInvalidState("invalid status transition", map[string]any{
			"ticket_id": ticket.ID,
			"from":      ticket.Status,
			"to":        next,
		})
	}
	if err := e.Authorize(approver); err != nil {
		return domain.TicketPatch{}, err
	}
	now := e.now()
	approverID := approver.UserID
	approverName := approver.Name
	return domain.TicketPatch{
		Status:          &next,
		ApproverID:      &approverID,
		ApproverName:    &approverName,
		StatusChangedAt: &now,
		UpdatedAt:       now,
	}, nil
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func cloneDestinations(in []domain.Destination) []domain.Destination {
	out := make([]domain.Destination, len(in))
	copy(out, in)
	return out
}

func uniqueDestinations(in []domain.Destination) []domain.Destination {
	seen := make(map[int64]struct{}, len(in))
	out := make([]domain.Destination, 0, len(in))
	for _, d := range in {
		if _, dup := seen[d.ChatID]; dup {
			continue
		}
		seen[d.ChatID] = struct{}{}
		out = append(out, d)
	}
	return out
}
