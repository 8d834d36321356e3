package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/powerbackus/powerback-sub000/internal/domain"
)

// CelebrationRepositoryPG implements domain.CelebrationRepository on
// PostgreSQL. Ledger appends and the current-status projection are committed
// in one transaction, guarded by the record's version column.
type CelebrationRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCelebrationRepository creates a new celebration repo.
func NewCelebrationRepository(pool *pgxpool.Pool) *CelebrationRepositoryPG {
	return &CelebrationRepositoryPG{pool: pool}
}

// Create inserts a new record together with its first ledger entry.
func (r *CelebrationRepositoryPG) Create(ctx context.Context, cel *domain.Celebration) error {
	if len(cel.Ledger) != 1 {
		return fmt.Errorf("new record must carry exactly its first ledger entry, got %d", len(cel.Ledger))
	}
	donor, err := json.Marshal(cel.Donor)
	if err != nil {
		return fmt.Errorf("encode donor snapshot: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
INSERT INTO celebrations (id, contributor_id, recipient_id, bill_id, jurisdiction,
	amount_cents, tip_cents, fee_cents, total_cents, idempotency_key,
	current_status, donor_snapshot, version, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);
`, cel.ID, cel.ContributorID, cel.RecipientID, cel.BillID, cel.Jurisdiction,
		cel.AmountCents, cel.TipCents, cel.FeeCents, cel.TotalCents, cel.IdempotencyKey,
		cel.CurrentStatus, donor, cel.Version, cel.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("idempotency key %q already used: %w", cel.IdempotencyKey, domain.ErrDuplicateOperation)
		}
		return err
	}

	if err := insertEntry(ctx, tx, cel.ID, 1, cel.Ledger[0]); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByID loads a record with its full ledger.
func (r *CelebrationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Celebration, error) {
	return r.getByField(ctx, "id", id)
}

// GetByIdempotencyKey loads a record with its full ledger.
func (r *CelebrationRepositoryPG) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Celebration, error) {
	return r.getByField(ctx, "idempotency_key", key)
}

func (r *CelebrationRepositoryPG) getByField(ctx context.Context, field, value string) (*domain.Celebration, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, contributor_id, recipient_id, bill_id, jurisdiction,
	amount_cents, tip_cents, fee_cents, total_cents, idempotency_key,
	current_status, donor_snapshot, version, created_at
FROM celebrations
WHERE `+field+` = $1;
`, value)

	var cel domain.Celebration
	var donor []byte
	err := row.Scan(&cel.ID, &cel.ContributorID, &cel.RecipientID, &cel.BillID, &cel.Jurisdiction,
		&cel.AmountCents, &cel.TipCents, &cel.FeeCents, &cel.TotalCents, &cel.IdempotencyKey,
		&cel.CurrentStatus, &donor, &cel.Version, &cel.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(donor, &cel.Donor); err != nil {
		return nil, fmt.Errorf("decode donor snapshot: %w", err)
	}

	cel.Ledger, err = r.loadLedger(ctx, cel.ID)
	if err != nil {
		return nil, err
	}
	return &cel, nil
}

func (r *CelebrationRepositoryPG) loadLedger(ctx context.Context, celebrationID string) ([]domain.StatusEntry, error) {
	rows, err := r.pool.Query(ctx, `
SELECT status_change_id, previous_status, new_status, change_datetime, reason,
	triggered_by, COALESCE(triggered_by_id, ''), COALESCE(triggered_by_name, ''),
	metadata, compliance_tier_at_time, fec_compliant
FROM status_entries
WHERE celebration_id = $1
ORDER BY seq ASC;
`, celebrationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.StatusEntry
	for rows.Next() {
		var entry domain.StatusEntry
		var metadata []byte
		if err := rows.Scan(&entry.ID, &entry.PreviousStatus, &entry.NewStatus, &entry.ChangedAt, &entry.Reason,
			&entry.TriggeredBy, &entry.TriggeredByID, &entry.TriggeredByName,
			&metadata, &entry.TierAtTime, &entry.Compliant); err != nil {
			return nil, err
		}
		entry.Metadata, err = domain.DecodeMetadata(metadata)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Append persists entry and projects the record's new status, provided the
// stored version still matches expectedVersion.
func (r *CelebrationRepositoryPG) Append(ctx context.Context, cel *domain.Celebration, entry domain.StatusEntry, expectedVersion int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
UPDATE celebrations SET current_status = $2, version = version + 1
WHERE id = $1 AND version = $3;
`, cel.ID, entry.NewStatus, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a vanished record from a lost race.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM celebrations WHERE id = $1);`, cel.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return fmt.Errorf("record %s version %d is stale: %w", cel.ID, expectedVersion, domain.ErrConcurrentModification)
	}

	if err := insertEntry(ctx, tx, cel.ID, expectedVersion+1, entry); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	cel.Version = expectedVersion + 1
	return nil
}

// ListByContributor returns the contributor's records without ledgers; the
// fields loaded are the ones limit aggregation reads.
func (r *CelebrationRepositoryPG) ListByContributor(ctx context.Context, contributorID string) ([]domain.Celebration, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, contributor_id, recipient_id, bill_id, jurisdiction,
	amount_cents, current_status, donor_snapshot, created_at
FROM celebrations
WHERE contributor_id = $1
ORDER BY created_at ASC;
`, contributorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Celebration
	for rows.Next() {
		var cel domain.Celebration
		var donor []byte
		if err := rows.Scan(&cel.ID, &cel.ContributorID, &cel.RecipientID, &cel.BillID, &cel.Jurisdiction,
			&cel.AmountCents, &cel.CurrentStatus, &donor, &cel.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(donor, &cel.Donor); err != nil {
			return nil, fmt.Errorf("decode donor snapshot: %w", err)
		}
		items = append(items, cel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, celebrationID string, seq int64, entry domain.StatusEntry) error {
	metadata, err := domain.EncodeMetadata(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO status_entries (status_change_id, celebration_id, seq, previous_status, new_status,
	change_datetime, reason, triggered_by, triggered_by_id, triggered_by_name,
	metadata, compliance_tier_at_time, fec_compliant)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
`, entry.ID, celebrationID, seq, entry.PreviousStatus, entry.NewStatus,
		entry.ChangedAt, entry.Reason, entry.TriggeredBy, nullable(entry.TriggeredByID), nullable(entry.TriggeredByName),
		metadata, entry.TierAtTime, entry.Compliant)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
