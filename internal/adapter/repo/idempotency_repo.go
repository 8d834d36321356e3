package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/powerbackus/powerback-sub000/internal/domain"
)

// IdempotencyStorePG implements domain.IdempotencyStore on PostgreSQL. The
// (idempotency_key, outcome) primary key is the race guard: of two concurrent
// deliveries exactly one INSERT lands.
type IdempotencyStorePG struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStorePG {
	return &IdempotencyStorePG{pool: pool}
}

// Claim attempts to record rec; losing the insert returns the stored record.
func (s *IdempotencyStorePG) Claim(ctx context.Context, rec domain.IdempotencyRecord) (*domain.IdempotencyRecord, bool, error) {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx, `
INSERT INTO settlement_idempotency (idempotency_key, outcome, celebration_id, entry_id, disposition, recorded_at)
VALUES ($1, $2, $3, NULL, $4, $5)
ON CONFLICT (idempotency_key, outcome) DO NOTHING;
`, rec.Key, rec.Outcome, rec.CelebrationID, domain.SettlementPending, rec.RecordedAt)
	if err != nil {
		return nil, false, err
	}
	if tag.RowsAffected() == 1 {
		rec.Disposition = domain.SettlementPending
		return &rec, true, nil
	}

	row := s.pool.QueryRow(ctx, `
SELECT idempotency_key, outcome, celebration_id, COALESCE(entry_id, ''), disposition, recorded_at
FROM settlement_idempotency
WHERE idempotency_key = $1 AND outcome = $2;
`, rec.Key, rec.Outcome)
	var stored domain.IdempotencyRecord
	if err := row.Scan(&stored.Key, &stored.Outcome, &stored.CelebrationID, &stored.EntryID, &stored.Disposition, &stored.RecordedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Claimed and released between our two statements; the
			// caller retries.
			return nil, false, domain.ErrConcurrentModification
		}
		return nil, false, err
	}
	return &stored, false, nil
}

// Complete finalizes a pending claim.
func (s *IdempotencyStorePG) Complete(ctx context.Context, key string, outcome domain.SettlementOutcome, entryID, disposition string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE settlement_idempotency SET entry_id = NULLIF($3, ''), disposition = $4
WHERE idempotency_key = $1 AND outcome = $2;
`, key, outcome, entryID, disposition)
	return err
}

// Release abandons a pending claim so a later delivery can retry.
func (s *IdempotencyStorePG) Release(ctx context.Context, key string, outcome domain.SettlementOutcome) error {
	_, err := s.pool.Exec(ctx, `
DELETE FROM settlement_idempotency
WHERE idempotency_key = $1 AND outcome = $2 AND disposition = $3;
`, key, outcome, domain.SettlementPending)
	return err
}
