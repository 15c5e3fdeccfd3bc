package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/announce-service/internal/domain"
	"github.com/spec-kit/announce-service/internal/events"
	"github.com/spec-kit/announce-service/internal/lifecycle"
	"github.com/spec-kit/announce-service/internal/locker"
	"github.com/spec-kit/announce-service/internal/observability"
	"github.com/spec-kit/announce-service/internal/repository"
	apperrors "github.com/spec-kit/announce-service/pkg/util/errorutil"
)

// Executor performs the messaging side of an approved ticket.
type Executor interface {
	Execute(ctx context.Context, payload domain.Payload) domain.Outcome
	// MaxDuration bounds how long Execute may take for payload.
	MaxDuration(payload domain.Payload) time.Duration
}

var errNoExecutor = errors.New("no dispatch executor configured")

// TicketService coordinates ticket workflows around the lifecycle engine.
type TicketService struct {
	tickets  repository.TicketRepository
	users    repository.UserRepository
	engine   *lifecycle.Engine
	executor Executor
	chats    *ChatService
	locks    locker.Locker
	lockTTL  time.Duration
	metrics  *observability.Metrics
	logger   *zap.Logger
	publisher
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	UserRepo   repository.UserRepository
	Engine     *lifecycle.Engine
	Executor   Executor
	Chats      *ChatService
	Locker     locker.Locker
	LockTTL    time.Duration
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locks := deps.Locker
	if locks == nil {
		locks = locker.NewLocalLocker()
	}
	ttl := deps.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	engine := deps.Engine
	if engine == nil {
		engine = lifecycle.NewEngine(deps.TicketRepo)
	}
	return &TicketService{
		tickets:   deps.TicketRepo,
		users:     deps.UserRepo,
		engine:    engine,
		executor:  deps.Executor,
		chats:     deps.Chats,
		locks:     locks,
		lockTTL:   ttl,
		metrics:   deps.Metrics,
		logger:    logger,
		publisher: newPublisher(deps.Dispatcher, logger),
	}
}

// TicketCreateInput describes ticket creation. Selector, when set on a post,
// is resolved against the chat directory and merged with the explicit
// destinations of the payload.
type TicketCreateInput struct {
	CreatorID int64
	Payload   domain.Payload
	Selector  *domain.Selector
}

// TicketQuery filters ticket listings. A non-empty TicketID short-circuits
// every other filter.
type TicketQuery struct {
	TicketID string
	repository.TicketFilter
}

// Create validates the creator and stores a new pending ticket.
func (s *TicketService) Create(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	creator, err := s.loadUser(ctx, input.CreatorID)
	if err != nil {
		return nil, err
	}
	if !creator.Whitelist {
		return nil, apperrors.NewPermissionDenied("user may not create tickets")
	}

	payload := input.Payload
	if post, ok := payload.(domain.PostPayload); ok && input.Selector != nil {
		if s.chats == nil {
			return nil, apperrors.NewInvalidArgument("selectors are not supported", nil)
		}
		resolved, err := s.chats.Resolve(ctx, *input.Selector)
		if err != nil {
			return nil, err
		}
		post.Destinations = append(append([]domain.Destination{}, post.Destinations...), resolved...)
		if post.Category == "" {
			post.Category = input.Selector.Category
		}
		if post.Language == "" {
			post.Language = input.Selector.Language
		}
		if len(post.Labels) == 0 {
			post.Labels = input.Selector.Labels
		}
		payload = post
	}

	ticket, err := s.engine.Create(ctx, lifecycle.CreateInput{
		CreatorID:   creator.UserID,
		CreatorName: creator.Name,
		Payload:     payload,
	})
	if err != nil {
		return nil, err
	}

	created := events.TicketCreatedPayload{
		Action:       ticket.Action,
		Destinations: len(ticket.Payload.Targets()),
	}
	switch p := ticket.Payload.(type) {
	case domain.EditPayload:
		created.PriorTicket = p.PriorTicketID
	case domain.DeletePayload:
		created.PriorTicket = p.PriorTicketID
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    userActor(creator),
		Payload:  created,
	})
	return ticket, nil
}

// Find returns the ticket as a one-element list, or an empty list.
func (s *TicketService) Find(ctx context.Context, ticketID string) ([]domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, strings.TrimSpace(ticketID))
	if errors.Is(err, repository.ErrNotFound) {
		return []domain.Ticket{}, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return []domain.Ticket{*ticket}, nil
}

// List returns tickets newest first.
func (s *TicketService) List(ctx context.Context, query TicketQuery) ([]domain.Ticket, error) {
	if id := strings.TrimSpace(query.TicketID); id != "" {
		return s.Find(ctx, id)
	}
	if query.Status != nil && !query.Status.Valid() {
		return nil, apperrors.NewInvalidArgument("unknown status", map[string]any{"status": *query.Status})
	}
	if query.Action != nil && !query.Action.Valid() {
		return nil, apperrors.NewInvalidArgument("unknown action", map[string]any{"action": *query.Action})
	}
	filter := query.TicketFilter
	filter.Limit = listLimit(filter.Limit)
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return tickets, nil
}

// Approve dispatches a pending ticket and records the outcome. Failed
// destinations do not fail the call; only the pre-dispatch checks do.
func (s *TicketService) Approve(ctx context.Context, ticketID string, approverID int64) (*domain.Ticket, error) {
	return s.decide(ctx, ticketID, approverID, domain.TicketStatusApproved)
}

// Reject closes a pending ticket without dispatching it.
func (s *TicketService) Reject(ctx context.Context, ticketID string, approverID int64) (*domain.Ticket, error) {
	return s.decide(ctx, ticketID, approverID, domain.TicketStatusRejected)
}

func (s *TicketService) decide(ctx context.Context, ticketID string, approverID int64, next domain.TicketStatus) (*domain.Ticket, error) {
	ticketID = strings.TrimSpace(ticketID)
	ticket, err := s.pendingTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	approver, err := s.loadUser(ctx, approverID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Authorize(approver); err != nil {
		return nil, err
	}
	dispatching := next == domain.TicketStatusApproved && len(ticket.Payload.Targets()) > 0
	if dispatching && s.executor == nil {
		return nil, apperrors.NewInternalError(errNoExecutor)
	}

	// the lease must outlive the whole dispatch or a second approver could
	// take it while messages are still going out
	ttl := s.lockTTL
	if dispatching {
		ttl += s.executor.MaxDuration(ticket.Payload)
	}
	release, err := s.locks.Acquire(ctx, "ticket:"+ticketID, ttl)
	if errors.Is(err, locker.ErrNotAcquired) {
		return nil, apperrors.NewInvalidState("ticket decision already in progress", map[string]any{"ticket_id": ticketID})
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release ticket lock", zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}()

	// another decision may have finished between the first read and the lock
	if ticket, err = s.pendingTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	var patch domain.TicketPatch
	if next == domain.TicketStatusApproved {
		outcome := domain.Outcome{Succeeded: []domain.Destination{}, Failed: []domain.FailedDestination{}}
		if dispatching {
			outcome = s.executor.Execute(ctx, ticket.Payload)
		}
		patch, err = s.engine.Approve(ticket, approver, outcome)
	} else {
		patch, err = s.engine.Reject(ticket, approver)
	}
	if err != nil {
		return nil, err
	}

	// once messages went out the decision must be stored even if the caller left
	updated, err := s.tickets.UpdateIfStatus(context.WithoutCancel(ctx), ticket.ID, domain.TicketStatusPending, patch)
	if errors.Is(err, repository.ErrStatusMismatch) {
		return nil, apperrors.NewInvalidState("ticket is not pending", map[string]any{"ticket_id": ticket.ID})
	}
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticket.ID})
	}

	eventType := events.EventTicketApproved
	if next == domain.TicketStatusRejected {
		eventType = events.EventTicketRejected
	}
	s.metrics.RecordDispatch(string(updated.Action), string(updated.Status),
		len(updated.SuccessDestinations), len(updated.FailedDestinations))
	s.logger.Info("ticket decided",
		zap.String("ticket_id", updated.ID),
		zap.String("status", string(updated.Status)),
		zap.Int64("approver_id", approver.UserID),
		zap.Int("succeeded", len(updated.SuccessDestinations)),
		zap.Int("failed", len(updated.FailedDestinations)),
	)
	s.publishEvent(context.WithoutCancel(ctx), events.Event{
		Type:     eventType,
		TicketID: updated.ID,
		Actor:    userActor(approver),
		Payload: events.TicketDecidedPayload{
			Action:    updated.Action,
			CreatorID: updated.CreatorID,
			OldStatus: domain.TicketStatusPending,
			NewStatus: updated.Status,
			Succeeded: len(updated.SuccessDestinations),
			Failed:    updated.FailedDestinations,
		},
	})
	return updated, nil
}

func (s *TicketService) pendingTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	if err := s.engine.CheckPending(ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// Delete removes a ticket record. Messages already delivered are untouched;
// removing them takes a delete ticket.
func (s *TicketService) Delete(ctx context.Context, ticketID string) (bool, error) {
	ticketID = strings.TrimSpace(ticketID)
	deleted, err := s.tickets.Delete(ctx, ticketID)
	if err != nil {
		return false, apperrors.NewInternalError(err)
	}
	if deleted {
		s.publishEvent(ctx, events.Event{Type: events.EventTicketDeleted, TicketID: ticketID})
	}
	return deleted, nil
}

func (s *TicketService) loadUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user", map[string]any{"user_id": userID})
	}
	return user, nil
}
