package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/announce-service/internal/domain"
	"github.com/spec-kit/announce-service/internal/events"
)

const (
	// maxListedLines bounds per-item lines in a single notice.
	maxListedLines = 20
	// maxNoticeRunes is the Telegram message text limit.
	maxNoticeRunes = 4096
	moreTailRunes  = 32
)

// Notifier posts operator-facing notices.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// NotificationService tells the review chat about ticket activity.
type NotificationService struct {
	dispatcher   events.Dispatcher
	notifier     Notifier
	reviewChatID int64
	logger       *zap.Logger
}

// NewNotificationService creates the service. A zero review chat disables
// outgoing notices; events are still logged.
func NewNotificationService(dispatcher events.Dispatcher, notifier Notifier, reviewChatID int64, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:   dispatcher,
		notifier:     notifier,
		reviewChatID: reviewChatID,
		logger:       logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketApproved, n.handleTicketDecided)
	n.dispatcher.Subscribe(events.EventTicketRejected, n.handleTicketDecided)
	n.dispatcher.Subscribe(events.EventChatDeactivated, n.handleChatDeactivated)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	payload, _ := event.Payload.(events.TicketCreatedPayload)
	text := fmt.Sprintf("New ticket <code>%s</code> (%s) by %s for %d destination(s). Awaiting review.",
		html.EscapeString(event.TicketID),
		html.EscapeString(string(payload.Action)),
		html.EscapeString(clipRunes(event.Actor.Name, 64)),
		payload.Destinations)
	n.send(ctx, event, text)
	return nil
}

func (n *NotificationService) handleTicketDecided(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketDecided", zap.String("ticket_id", event.TicketID), zap.Any("payload", event.Payload))
	n.send(ctx, event, DecisionReport(event))
	return nil
}

func (n *NotificationService) handleChatDeactivated(ctx context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.ChatPayload)
	n.send(ctx, event, fmt.Sprintf("Lost access to chat %s (<code>%d</code>). It is no longer offered as a destination.",
		html.EscapeString(clipRunes(payload.Name, 64)), event.ChatID))
	return nil
}

// DecisionReport renders the review-chat summary of an approval or rejection.
func DecisionReport(event events.Event) string {
	payload, _ := event.Payload.(events.TicketDecidedPayload)
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket <code>%s</code> %s by %s.",
		html.EscapeString(event.TicketID),
		html.EscapeString(string(payload.NewStatus)),
		html.EscapeString(clipRunes(event.Actor.Name, 64)))
	if payload.NewStatus != domain.TicketStatusApproved {
		return b.String()
	}
	fmt.Fprintf(&b, "\nDelivered: %d, failed: %d.", payload.Succeeded, len(payload.Failed))
	lines := make([]string, len(payload.Failed))
	for i, f := range payload.Failed {
		lines[i] = fmt.Sprintf("\n- %s (<code>%d</code>): %s",
			html.EscapeString(clipRunes(f.ChatName, 64)), f.ChatID, html.EscapeString(clipRunes(f.Error, 160)))
	}
	writeCapped(&b, lines)
	return b.String()
}

// RemindPending posts a digest of tickets that have waited too long.
func (n *NotificationService) RemindPending(ctx context.Context, tickets []domain.Ticket, now time.Time) error {
	if len(tickets) == 0 || n.notifier == nil || n.reviewChatID == 0 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d ticket(s) awaiting review:", len(tickets))
	lines := make([]string, len(tickets))
	for i, t := range tickets {
		lines[i] = fmt.Sprintf("\n- <code>%s</code> by %s, waiting %s",
			html.EscapeString(clipRunes(t.ID, 64)),
			html.EscapeString(clipRunes(t.CreatorName, 64)),
			now.Sub(t.CreatedAt).Truncate(time.Minute))
	}
	writeCapped(&b, lines)
	return n.notifier.Notify(ctx, n.reviewChatID, b.String())
}

func (n *NotificationService) send(ctx context.Context, event events.Event, text string) {
	if n.notifier == nil || n.reviewChatID == 0 {
		return
	}
	if err := n.notifier.Notify(ctx, n.reviewChatID, text); err != nil {
		n.logger.Warn("review notification failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}

// writeCapped appends whole lines until maxListedLines or the message limit
// is reached, then a count of what was left out. Lines are never cut, so
// markup stays balanced.
func writeCapped(b *strings.Builder, lines []string) {
	used := utf8.RuneCountInString(b.String())
	for i, line := range lines {
		n := utf8.RuneCountInString(line)
		if i == maxListedLines || used+n > maxNoticeRunes-moreTailRunes {
			fmt.Fprintf(b, "\n...and %d more.", len(lines)-i)
			return
		}
		b.WriteString(line)
		used += n
	}
}

// clipRunes shortens raw text to at most limit runes, marking the cut with
// "...". Apply it before HTML escaping so entities are never split.
func clipRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}
