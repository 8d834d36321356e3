package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/powerbackus/powerback-sub000/internal/domain"
)

// SettlementInboxPG implements domain.SettlementInbox on PostgreSQL.
type SettlementInboxPG struct {
	pool *pgxpool.Pool
}

// NewSettlementInbox creates a new settlement inbox.
func NewSettlementInbox(pool *pgxpool.Pool) *SettlementInboxPG {
	return &SettlementInboxPG{pool: pool}
}

// Enqueue stores a normalized provider event for the worker.
func (s *SettlementInboxPG) Enqueue(ctx context.Context, ev *domain.InboxEvent) error {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO settlement_events (id, idempotency_key, celebration_id, outcome, provider_ref, occurred_at, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`, ev.ID, ev.IdempotencyKey, ev.CelebrationID, ev.Outcome, ev.ProviderRef, ev.OccurredAt, ev.ReceivedAt)
	return err
}

// ClaimNext returns the oldest unprocessed event. Worker runs are assumed
// non-overlapping; an accidental overlap is absorbed downstream by the
// idempotency store rather than prevented here.
func (s *SettlementInboxPG) ClaimNext(ctx context.Context) (*domain.InboxEvent, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, idempotency_key, celebration_id, outcome, provider_ref, occurred_at, received_at, attempts
FROM settlement_events
WHERE processed_at IS NULL
ORDER BY received_at ASC
LIMIT 1;
`)
	var ev domain.InboxEvent
	err := row.Scan(&ev.ID, &ev.IdempotencyKey, &ev.CelebrationID, &ev.Outcome, &ev.ProviderRef, &ev.OccurredAt, &ev.ReceivedAt, &ev.Attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &ev, nil
}

// MarkProcessed stamps the event done.
func (s *SettlementInboxPG) MarkProcessed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE settlement_events SET processed_at = now(), attempts = attempts + 1, last_error = NULL
WHERE id = $1;
`, id)
	return err
}

// MarkFailed counts the attempt and records why, leaving the event claimable.
func (s *SettlementInboxPG) MarkFailed(ctx context.Context, id string, reason string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE settlement_events SET attempts = attempts + 1, last_error = $2
WHERE id = $1;
`, id, reason)
	return err
}
