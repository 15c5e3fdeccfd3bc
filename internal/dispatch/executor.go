// Package dispatch fans an approved ticket out to its destinations in paced
// batches and partitions the results.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/announce-service/internal/domain"
)

// Message is the rendered form of an announcement handed to a Channel.
type Message struct {
	Text      string
	MediaType domain.MediaType
	MediaRef  string
}

// Channel delivers messages to chats. Implementations must be safe for
// concurrent use.
type Channel interface {
	Send(ctx context.Context, chatID int64, msg Message) (string, error)
	Edit(ctx context.Context, chatID int64, ref string, msg Message) (string, error)
	Delete(ctx context.Context, chatID int64, ref string) error
}

// Config controls batching and pacing.
type Config struct {
	BatchSize   int
	BatchPause  time.Duration
	CallTimeout time.Duration
}

const (
	defaultBatchSize   = 50
	defaultCallTimeout = 15 * time.Second
)

var errNoMessageRef = errors.New("no message reference recorded for destination")

// Executor performs the messaging operation of a payload against every
// destination it targets.
type Executor struct {
	channel Channel
	cfg     Config
	logger  *zap.Logger
}

// NewExecutor builds an Executor. Non-positive sizes fall back to defaults.
func NewExecutor(channel Channel, cfg Config, logger *zap.Logger) *Executor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchPause < 0 {
		cfg.BatchPause = 0
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{channel: channel, cfg: cfg, logger: logger}
}

// MaxDuration bounds how long Execute can run for the payload: every batch
// waits at most one call timeout and batches are separated by the pause.
func (e *Executor) MaxDuration(payload domain.Payload) time.Duration {
	if payload == nil {
		return 0
	}
	n := len(uniqueByChat(payload.Targets()))
	if n == 0 {
		return 0
	}
	batches := (n + e.cfg.BatchSize - 1) / e.cfg.BatchSize
	return time.Duration(batches)*e.cfg.CallTimeout + time.Duration(batches-1)*e.cfg.BatchPause
}

type deliverFunc func(ctx context.Context, dest domain.Destination) (string, error)

// Execute dispatches the payload and returns which destinations succeeded.
// Every destination appears in exactly one of the two lists. Cancelling ctx
// stops new batches from starting; destinations that never ran are reported
// as failed. Calls already in flight finish under their own timeout.
func (e *Executor) Execute(ctx context.Context, payload domain.Payload) domain.Outcome {
	outcome := domain.Outcome{Succeeded: []domain.Destination{}, Failed: []domain.FailedDestination{}}
	if payload == nil {
		return outcome
	}
	deliver, err := deliveryFor(e.channel, payload)
	if err != nil {
		for _, dest := range uniqueByChat(payload.Targets()) {
			outcome.Failed = append(outcome.Failed, failed(dest, err))
		}
		return outcome
	}

	dests := uniqueByChat(payload.Targets())
	if len(dests) == 0 {
		return outcome
	}

	limiter := rate.NewLimiter(rate.Every(e.cfg.BatchPause), 1)
	for start := 0; start < len(dests); start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, len(dests))

		if err := limiter.Wait(ctx); err != nil {
			cause := err
			if ctxErr := ctx.Err(); ctxErr != nil {
				cause = ctxErr
			}
			for _, dest := range dests[start:] {
				outcome.Failed = append(outcome.Failed, failed(dest, fmt.Errorf("dispatch cancelled: %w", cause)))
			}
			e.logger.Warn("dispatch cancelled",
				zap.String("action", string(payload.Action())),
				zap.Int("remaining", len(dests)-start),
				zap.Error(cause),
			)
			break
		}

		e.runBatch(ctx, dests[start:end], deliver, &outcome)
	}

	e.logger.Info("dispatch finished",
		zap.String("action", string(payload.Action())),
		zap.Int("destinations", len(dests)),
		zap.Int("succeeded", len(outcome.Succeeded)),
		zap.Int("failed", len(outcome.Failed)),
	)
	return outcome
}

type result struct {
	ref string
	err error
}

func (e *Executor) runBatch(ctx context.Context, batch []domain.Destination, deliver deliverFunc, outcome *domain.Outcome) {
	results := make([]result, len(batch))
	var wg sync.WaitGroup
	wg.Add(len(batch))
	for i, dest := range batch {
		go func(i int, dest domain.Destination) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = result{err: fmt.Errorf("panic during delivery: %v", r)}
				}
			}()
			callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.CallTimeout)
			defer cancel()
			ref, err := deliver(callCtx, dest)
			results[i] = result{ref: ref, err: err}
		}(i, dest)
	}
	wg.Wait()

	for i, dest := range batch {
		res := results[i]
		if res.err != nil {
			outcome.Failed = append(outcome.Failed, failed(dest, res.err))
			e.logger.Warn("delivery failed",
				zap.Int64("chat_id", dest.ChatID),
				zap.String("chat_name", dest.ChatName),
				zap.Error(res.err),
			)
			continue
		}
		dest.MessageRef = res.ref
		outcome.Succeeded = append(outcome.Succeeded, dest)
	}
}

// deliveryFor selects the per-destination operation for the payload variant.
func deliveryFor(channel Channel, payload domain.Payload) (deliverFunc, error) {
	switch p := payload.(type) {
	case domain.PostPayload:
		msg := Message{Text: p.Content.Rendered(), MediaType: p.MediaType, MediaRef: p.MediaRef}
		return func(ctx context.Context, dest domain.Destination) (string, error) {
			return channel.Send(ctx, dest.ChatID, msg)
		}, nil
	case domain.EditPayload:
		msg := Message{Text: p.NewContent.Rendered(), MediaType: p.OldMediaType}
		return func(ctx context.Context, dest domain.Destination) (string, error) {
			if dest.MessageRef == "" {
				return "", errNoMessageRef
			}
			return channel.Edit(ctx, dest.ChatID, dest.MessageRef, msg)
		}, nil
	case domain.DeletePayload:
		return func(ctx context.Context, dest domain.Destination) (string, error) {
			if dest.MessageRef == "" {
				return "", errNoMessageRef
			}
			if err := channel.Delete(ctx, dest.ChatID, dest.MessageRef); err != nil {
				return "", err
			}
			return dest.MessageRef, nil
		}, nil
	default:
		return nil, fmt.Errorf("unsupported payload %T", payload)
	}
}

func failed(dest domain.Destination, err error) domain.FailedDestination {
	return domain.FailedDestination{ChatID: dest.ChatID, ChatName: dest.ChatName, Error: err.Error()}
}

func uniqueByChat(in []domain.Destination) []domain.Destination {
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
