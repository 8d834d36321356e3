package domain

import (
	"context"
	"time"
)

// CelebrationRepository defines persistence for celebration records and their
// status ledgers.
type CelebrationRepository interface {
	// Create persists a new record with its first ledger entry. A reused
	// idempotency key fails with ErrDuplicateOperation.
	Create(ctx context.Context, cel *Celebration) error
	GetByID(ctx context.Context, id string) (*Celebration, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Celebration, error)
	// Append atomically persists one new ledger entry and the matching
	// current-status projection, guarded by the record version read by the
	// caller. A stale version fails with ErrConcurrentModification and
	// nothing is written. On success the in-memory record's version is
	// advanced.
	Append(ctx context.Context, cel *Celebration, entry StatusEntry, expectedVersion int64) error
	// ListByContributor returns the contributor's records without their
	// ledgers; enough for limit aggregation.
	ListByContributor(ctx context.Context, contributorID string) ([]Celebration, error)
}

// SettlementOutcome is the terminal result reported by the payment provider.
type SettlementOutcome string

const (
	OutcomeCaptured SettlementOutcome = "captured"
	OutcomeFailed   SettlementOutcome = "failed"
)

// Disposition of an idempotency claim once processing finished.
const (
	SettlementPending = "pending"
	SettlementApplied = "applied"
	SettlementDropped = "dropped"
)

// IdempotencyRecord is the stored outcome of one settlement delivery, keyed by
// (idempotency key, outcome).
type IdempotencyRecord struct {
	Key           string
	Outcome       SettlementOutcome
	CelebrationID string
	EntryID       string
	Disposition   string
	RecordedAt    time.Time
}

// IdempotencyStore maps (idempotency key, outcome) to the recorded result of
// the first delivery. Implementations must back Claim with a unique constraint
// or an equivalent compare-and-swap so two concurrent deliveries of the same
// event cannot both win.
type IdempotencyStore interface {
	// Claim inserts rec if no record exists for its (key, outcome). It
	// returns the stored record and whether this caller won the claim.
	Claim(ctx context.Context, rec IdempotencyRecord) (*IdempotencyRecord, bool, error)
	// Complete finalizes a claim with the ledger entry it produced (empty
	// for drops) and its disposition.
	Complete(ctx context.Context, key string, outcome SettlementOutcome, entryID, disposition string) error
	// Release abandons a still-pending claim so a later delivery may retry.
	Release(ctx context.Context, key string, outcome SettlementOutcome) error
}

// InboxEvent is a provider settlement notification queued for the worker.
type InboxEvent struct {
	ID             string
	IdempotencyKey string
	CelebrationID  string
	Outcome        SettlementOutcome
	ProviderRef    string
	OccurredAt     time.Time
	ReceivedAt     time.Time
	Attempts       int
}

// SettlementInbox buffers at-least-once provider deliveries off the request
// path until the worker applies them.
type SettlementInbox interface {
	Enqueue(ctx context.Context, ev *InboxEvent) error
	// ClaimNext returns the oldest unprocessed event, or ErrNotFound when
	// the inbox is drained.
	ClaimNext(ctx context.Context) (*InboxEvent, error)
	MarkProcessed(ctx context.Context, id string) error
	// MarkFailed records a failed attempt so the event becomes claimable
	// again.
	MarkFailed(ctx context.Context, id string, reason string) error
}
