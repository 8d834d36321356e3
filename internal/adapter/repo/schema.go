package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied at startup. The status_entries table is append-only by
// convention and by the absence of any UPDATE/DELETE statement in this
// package; the unique index on settlement_idempotency is the compare-and-swap
// guard behind IdempotencyStore.Claim.
const schema = `
CREATE TABLE IF NOT EXISTS celebrations (
	id               TEXT PRIMARY KEY,
	contributor_id   TEXT NOT NULL,
	recipient_id     TEXT NOT NULL,
	bill_id          TEXT NOT NULL,
	jurisdiction     TEXT NOT NULL DEFAULT '',
	amount_cents     BIGINT NOT NULL,
	tip_cents        BIGINT NOT NULL DEFAULT 0,
	fee_cents        BIGINT NOT NULL DEFAULT 0,
	total_cents      BIGINT NOT NULL,
	idempotency_key  TEXT NOT NULL UNIQUE,
	current_status   TEXT NOT NULL,
	donor_snapshot   JSONB NOT NULL,
	version          BIGINT NOT NULL DEFAULT 1,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_celebrations_contributor ON celebrations (contributor_id);

CREATE TABLE IF NOT EXISTS status_entries (
	status_change_id        TEXT PRIMARY KEY,
	celebration_id          TEXT NOT NULL REFERENCES celebrations (id),
	seq                     BIGINT NOT NULL,
	previous_status         TEXT NOT NULL,
	new_status              TEXT NOT NULL,
	change_datetime         TIMESTAMPTZ NOT NULL,
	reason                  TEXT NOT NULL DEFAULT '',
	triggered_by            TEXT NOT NULL,
	triggered_by_id         TEXT,
	triggered_by_name       TEXT,
	metadata                JSONB,
	compliance_tier_at_time TEXT NOT NULL,
	fec_compliant           BOOLEAN NOT NULL,
	UNIQUE (celebration_id, seq)
);

CREATE TABLE IF NOT EXISTS settlement_idempotency (
	idempotency_key TEXT NOT NULL,
	outcome         TEXT NOT NULL,
	celebration_id  TEXT NOT NULL,
	entry_id        TEXT,
	disposition     TEXT NOT NULL,
	recorded_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (idempotency_key, outcome)
);

CREATE TABLE IF NOT EXISTS settlement_events (
	id              TEXT PRIMARY KEY,
	idempotency_key TEXT NOT NULL,
	celebration_id  TEXT NOT NULL,
	outcome         TEXT NOT NULL,
	provider_ref    TEXT NOT NULL DEFAULT '',
	occurred_at     TIMESTAMPTZ NOT NULL,
	received_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at    TIMESTAMPTZ,
	attempts        INT NOT NULL DEFAULT 0,
	last_error      TEXT
);

CREATE INDEX IF NOT EXISTS idx_settlement_events_pending
	ON settlement_events (received_at) WHERE processed_at IS NULL;
`

// EnsureSchema creates the tables this package needs.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
