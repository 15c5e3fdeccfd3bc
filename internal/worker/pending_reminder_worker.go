package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/announce-service/internal/config"
	"github.com/spec-kit/announce-service/internal/domain"
	"github.com/spec-kit/announce-service/internal/repository"
	"github.com/spec-kit/announce-service/internal/service"
)

// TicketLister lists tickets.
type TicketLister interface {
	List(ctx context.Context, query service.TicketQuery) ([]domain.Ticket, error)
}

// PendingNotifier posts the reminder digest.
type PendingNotifier interface {
	RemindPending(ctx context.Context, tickets []domain.Ticket, now time.Time) error
}

// PendingReminder periodically reminds reviewers of tickets left pending.
type PendingReminder struct {
	tickets  TicketLister
	notifier PendingNotifier
	cfg      config.ReminderConfig
	logger   *zap.Logger
	now      func() time.Time
	parser   cron.Parser
	c        *cron.Cron
}

// NewPendingReminder validates the schedule and builds the worker.
func NewPendingReminder(tickets TicketLister, notifier PendingNotifier, cfg config.ReminderConfig, logger *zap.Logger) (*PendingReminder, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("reminder timezone: %w", err)
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(cfg.Spec); err != nil {
		return nil, fmt.Errorf("reminder schedule %q: %w", cfg.Spec, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PendingReminder{
		tickets:  tickets,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		parser:   parser,
		c:        cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
	}, nil
}

// Start schedules the job. Each run is bounded by ctx.
func (r *PendingReminder) Start(ctx context.Context) error {
	if _, err := r.c.AddFunc(r.cfg.Spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := r.RunOnce(runCtx); err != nil {
			r.logger.Warn("pending reminder failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	r.c.Start()
	r.logger.Info("pending reminder scheduled", zap.String("spec", r.cfg.Spec))
	return nil
}

// Stop waits for a running job to finish or ctx to end.
func (r *PendingReminder) Stop(ctx context.Context) {
	select {
	case <-r.c.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce reminds about tickets created between MaxAge and MinAge ago.
func (r *PendingReminder) RunOnce(ctx context.Context) error {
	now := r.now()
	from := now.Add(-r.cfg.MaxAge)
	to := now.Add(-r.cfg.MinAge)
	pending := domain.TicketStatusPending
	tickets, err := r.tickets.List(ctx, service.TicketQuery{TicketFilter: repository.TicketFilter{
		Status:      &pending,
		CreatedFrom: &from,
		CreatedTo:   &to,
		Limit:       50,
	}})
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		return nil
	}
	r.logger.Info("reminding reviewers", zap.Int("pending", len(tickets)))
	return r.notifier.RemindPending(ctx, tickets, now)
}
