package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/powerbackus/powerback-sub000/internal/adapter/repo"
	"github.com/powerbackus/powerback-sub000/internal/compliance"
	"github.com/powerbackus/powerback-sub000/internal/domain"
	"github.com/powerbackus/powerback-sub000/internal/election"
	"github.com/powerbackus/powerback-sub000/internal/infra"
	"github.com/powerbackus/powerback-sub000/internal/settlement"
)

type settlementWorker struct {
	inbox        domain.SettlementInbox
	coordinator  *settlement.Coordinator
	logger       infra.Logger
	pollInterval time.Duration
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to ensure schema")
	}

	celebrations := repo.NewCelebrationRepository(pool)
	keys := repo.NewIdempotencyStore(pool)
	inbox := repo.NewSettlementInbox(pool)

	datesClient := election.NewHTTPDatesClient(cfg.ElectionAPIBaseURL, nil)
	resolver := election.NewResolver(datesClient, logger, cfg.ElectionAPITimeout)
	caps := compliance.Caps{
		BasePerContributionCents: cfg.BasePerContributionCents,
		BaseAnnualCents:          cfg.BaseAnnualCents,
		ElevatedPerElectionCents: cfg.ElevatedPerElectionCents,
	}
	calculator := compliance.NewCalculator(caps, resolver, celebrations, election.ReferenceZone(cfg.ReferenceUTCOffsetHours))

	worker := &settlementWorker{
		inbox:        inbox,
		coordinator:  settlement.NewCoordinator(celebrations, keys, calculator, logger),
		logger:       logger,
		pollInterval: cfg.WorkerPollInterval,
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// Run drains the settlement inbox until the context is canceled. An empty
// inbox and transient failures both back off for one poll interval.
func (w *settlementWorker) Run(ctx context.Context) error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev, err := w.inbox.ClaimNext(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				w.logger.Error().Err(err).Msg("worker: failed to claim event")
			}
			w.sleep(ctx)
			continue
		}

		w.handle(ctx, ev)
	}
}

func (w *settlementWorker) handle(ctx context.Context, ev *domain.InboxEvent) {
	res, err := w.coordinator.ApplySettlement(ctx, settlement.Event{
		IdempotencyKey: ev.IdempotencyKey,
		CelebrationID:  ev.CelebrationID,
		Outcome:        ev.Outcome,
		ProviderRef:    ev.ProviderRef,
		OccurredAt:     ev.OccurredAt,
	})
	if err != nil {
		w.logger.Error().Err(err).
			Str("event_id", ev.ID).
			Str("idempotency_key", ev.IdempotencyKey).
			Msg("worker: settlement failed")
		if markErr := w.inbox.MarkFailed(ctx, ev.ID, err.Error()); markErr != nil {
			w.logger.Error().Err(markErr).Str("event_id", ev.ID).Msg("worker: mark failed errored")
		}
		w.sleep(ctx)
		return
	}

	w.logger.Info().
		Str("event_id", ev.ID).
		Str("outcome", string(ev.Outcome)).
		Bool("applied", res.Applied).
		Bool("duplicate", res.Duplicate).
		Bool("dropped", res.Dropped).
		Msg("worker: settlement processed")
	if err := w.inbox.MarkProcessed(ctx, ev.ID); err != nil {
		w.logger.Error().Err(err).Str("event_id", ev.ID).Msg("worker: mark processed errored")
	}
}

func (w *settlementWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pollInterval):
	}
}
