// Package settlement turns external payment-provider events and lifecycle
// trigger requests into validated ledger transitions. It is the boundary that
// decides, per error kind, whether to retry, drop, or escalate: benign races
// (a late pause after resolution, a redelivered webhook) are absorbed here and
// never surface to watchers or API handlers as failures.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/powerbackus/powerback-sub000/internal/domain"
	"github.com/powerbackus/powerback-sub000/internal/ledger"
)

// ErrRetryable marks failures the caller should redeliver later, after the
// bounded internal retries were exhausted.
var ErrRetryable = errors.New("retryable")

const defaultMaxAttempts = 3

// Event is a normalized provider settlement notification.
type Event struct {
	IdempotencyKey string
	CelebrationID  string
	Outcome        domain.SettlementOutcome
	ProviderRef    string
	OccurredAt     time.Time
}

// TransitionRequest is a lifecycle trigger from a watcher, admin, or the API.
type TransitionRequest struct {
	CelebrationID   string
	Target          domain.Status
	Reason          string
	TriggeredBy     domain.Trigger
	TriggeredByID   string
	TriggeredByName string
	Metadata        domain.Metadata
}

// Result reports what applying a settlement event did.
type Result struct {
	Celebration *domain.Celebration
	EntryID     string
	// Applied: a ledger entry was written (now or by the first delivery of
	// this event).
	Applied bool
	// Duplicate: this delivery lost the idempotency claim and returned the
	// recorded result instead of re-applying.
	Duplicate bool
	// Dropped: the event was benignly discarded (unknown record or a
	// transition the current status no longer admits).
	Dropped bool
}

// LimitAdvisor answers whether a contributor's relevant cap is already
// exhausted, backing the skip-work fast path for non-essential events.
type LimitAdvisor interface {
	CapExhausted(ctx context.Context, cel *domain.Celebration) (bool, error)
}

// Coordinator validates events against the status ledger and appends entries
// exactly once per (idempotency key, outcome).
type Coordinator struct {
	repo        domain.CelebrationRepository
	keys        domain.IdempotencyStore
	advisor     LimitAdvisor
	logger      zerolog.Logger
	maxAttempts int
}

// NewCoordinator builds a Coordinator. advisor may be nil to disable the
// cap-exhausted fast path.
func NewCoordinator(repo domain.CelebrationRepository, keys domain.IdempotencyStore, advisor LimitAdvisor, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		repo:        repo,
		keys:        keys,
		advisor:     advisor,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
	}
}

// ApplySettlement applies one provider event at most once. Redeliveries
// return the recorded result of the first delivery; unknown records and
// stale transitions are dropped, not errors.
func (c *Coordinator) ApplySettlement(ctx context.Context, ev Event) (Result, error) {
	if ev.Outcome != domain.OutcomeCaptured && ev.Outcome != domain.OutcomeFailed {
		return Result{}, fmt.Errorf("unknown settlement outcome %q", ev.Outcome)
	}

	stored, won, err := c.keys.Claim(ctx, domain.IdempotencyRecord{
		Key:           ev.IdempotencyKey,
		Outcome:       ev.Outcome,
		CelebrationID: ev.CelebrationID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("claim idempotency key: %w: %w", ErrRetryable, err)
	}
	if !won {
		c.logger.Debug().
			Str("idempotency_key", ev.IdempotencyKey).
			Str("outcome", string(ev.Outcome)).
			Msg("settlement: duplicate delivery absorbed")
		return Result{
			Duplicate: true,
			Applied:   stored.Disposition == domain.SettlementApplied,
			Dropped:   stored.Disposition == domain.SettlementDropped,
			EntryID:   stored.EntryID,
		}, nil
	}

	cel, err := c.lookup(ctx, ev)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn().
				Str("celebration_id", ev.CelebrationID).
				Str("idempotency_key", ev.IdempotencyKey).
				Msg("settlement: event references unknown record, dropping")
			return c.drop(ctx, ev, Result{Dropped: true})
		}
		return Result{}, c.release(ctx, ev, fmt.Errorf("load record: %w: %w", ErrRetryable, err))
	}

	change := c.changeFor(ev, cel)
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		version := cel.Version
		entry, err := ledger.ChangeStatus(cel, change)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				// A late event racing a transition that already
				// happened. Benign; drop it.
				c.logger.Info().Err(err).
					Str("celebration_id", cel.ID).
					Str("outcome", string(ev.Outcome)).
					Msg("settlement: stale event dropped")
				return c.drop(ctx, ev, Result{Dropped: true, Celebration: cel})
			}
			return Result{}, c.release(ctx, ev, err)
		}

		err = c.repo.Append(ctx, cel, entry, version)
		if err == nil {
			if err := c.keys.Complete(ctx, ev.IdempotencyKey, ev.Outcome, entry.ID, domain.SettlementApplied); err != nil {
				c.logger.Error().Err(err).
					Str("idempotency_key", ev.IdempotencyKey).
					Msg("settlement: failed to finalize idempotency record")
			}
			return Result{Celebration: cel, EntryID: entry.ID, Applied: true}, nil
		}
		if errors.Is(err, domain.ErrConcurrentModification) {
			cel, err = c.repo.GetByID(ctx, cel.ID)
			if err != nil {
				return Result{}, c.release(ctx, ev, fmt.Errorf("reload after conflict: %w: %w", ErrRetryable, err))
			}
			continue
		}
		if errors.Is(err, domain.ErrNotFound) {
			return c.drop(ctx, ev, Result{Dropped: true})
		}
		return Result{}, c.release(ctx, ev, fmt.Errorf("append ledger entry: %w: %w", ErrRetryable, err))
	}

	return Result{}, c.release(ctx, ev, fmt.Errorf("gave up after %d attempts: %w: %w", c.maxAttempts, ErrRetryable, domain.ErrConcurrentModification))
}

// RequestTransition validates and applies a lifecycle trigger. Unlike
// settlement events, an invalid edge here is surfaced to the caller: the
// trigger API is where terminal finality is enforced.
func (c *Coordinator) RequestTransition(ctx context.Context, req TransitionRequest) (*domain.Celebration, error) {
	cel, err := c.repo.GetByID(ctx, req.CelebrationID)
	if err != nil {
		return nil, err
	}

	// Cost optimization: a pause request for a contributor with nothing
	// left under their cap changes no regulatory outcome; skip the write.
	if req.Target == domain.StatusPaused && c.advisor != nil {
		exhausted, err := c.advisor.CapExhausted(ctx, cel)
		if err != nil {
			c.logger.Warn().Err(err).Str("celebration_id", cel.ID).Msg("settlement: cap check failed, continuing without fast path")
		} else if exhausted {
			c.logger.Info().Str("celebration_id", cel.ID).Msg("settlement: cap exhausted, skipping non-essential pause")
			return cel, nil
		}
	}

	change := ledger.Change{
		NewStatus:       req.Target,
		Reason:          req.Reason,
		TriggeredBy:     req.TriggeredBy,
		TriggeredByID:   req.TriggeredByID,
		TriggeredByName: req.TriggeredByName,
		Metadata:        req.Metadata,
	}

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		version := cel.Version
		entry, err := ledger.ChangeStatus(cel, change)
		if err != nil {
			return nil, err
		}

		err = c.repo.Append(ctx, cel, entry, version)
		if err == nil {
			return cel, nil
		}
		if errors.Is(err, domain.ErrConcurrentModification) {
			cel, err = c.repo.GetByID(ctx, req.CelebrationID)
			if err != nil {
				return nil, err
			}
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("gave up after %d attempts: %w: %w", c.maxAttempts, ErrRetryable, domain.ErrConcurrentModification)
}

func (c *Coordinator) lookup(ctx context.Context, ev Event) (*domain.Celebration, error) {
	if ev.CelebrationID != "" {
		cel, err := c.repo.GetByID(ctx, ev.CelebrationID)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			return cel, err
		}
	}
	return c.repo.GetByIdempotencyKey(ctx, ev.IdempotencyKey)
}

func (c *Coordinator) changeFor(ev Event, cel *domain.Celebration) ledger.Change {
	if ev.Outcome == domain.OutcomeCaptured {
		return ledger.Change{
			NewStatus:   domain.StatusResolved,
			Reason:      "payment captured by provider",
			TriggeredBy: domain.TriggerSystem,
			Metadata: domain.ResolutionMetadata{
				BillResult:    "passed",
				VoteDate:      ev.OccurredAt,
				ProviderRef:   ev.ProviderRef,
				ReleasedCents: cel.TotalCents,
			},
			At: ev.OccurredAt,
		}
	}
	return ledger.Change{
		NewStatus:   domain.StatusDefunct,
		Reason:      "payment capture failed at provider",
		TriggeredBy: domain.TriggerSystem,
		Metadata: domain.SettlementFailureMetadata{
			ProviderRef:   ev.ProviderRef,
			FailureReason: "capture failed",
		},
		At: ev.OccurredAt,
	}
}

// drop finalizes the idempotency record for a benignly discarded event so
// redeliveries keep returning the same non-result.
func (c *Coordinator) drop(ctx context.Context, ev Event, res Result) (Result, error) {
	if err := c.keys.Complete(ctx, ev.IdempotencyKey, ev.Outcome, "", domain.SettlementDropped); err != nil {
		c.logger.Error().Err(err).
			Str("idempotency_key", ev.IdempotencyKey).
			Msg("settlement: failed to record dropped event")
	}
	return res, nil
}

// release abandons the claim so a later redelivery may retry, and passes the
// causing error through.
func (c *Coordinator) release(ctx context.Context, ev Event, cause error) error {
	if err := c.keys.Release(ctx, ev.IdempotencyKey, ev.Outcome); err != nil {
		c.logger.Error().Err(err).
			Str("idempotency_key", ev.IdempotencyKey).
			Msg("settlement: failed to release idempotency claim")
	}
	return cause
}
