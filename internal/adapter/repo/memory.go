package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/powerbackus/powerback-sub000/internal/domain"
)

// MemoryCelebrationRepository is an in-memory domain.CelebrationRepository
// with the same version-guard semantics as the PostgreSQL implementation.
// Used by tests and local tooling.
type MemoryCelebrationRepository struct {
	mu   sync.Mutex
	byID map[string]*domain.Celebration
}

// NewMemoryCelebrationRepository creates an empty in-memory repo.
func NewMemoryCelebrationRepository() *MemoryCelebrationRepository {
	return &MemoryCelebrationRepository{byID: make(map[string]*domain.Celebration)}
}

func copyCelebration(cel *domain.Celebration) *domain.Celebration {
	out := *cel
	out.Ledger = append([]domain.StatusEntry(nil), cel.Ledger...)
	return &out
}

// Create implements domain.CelebrationRepository.
func (r *MemoryCelebrationRepository) Create(ctx context.Context, cel *domain.Celebration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[cel.ID]; ok {
		return fmt.Errorf("id %s: %w", cel.ID, domain.ErrDuplicateOperation)
	}
	for _, existing := range r.byID {
		if existing.IdempotencyKey == cel.IdempotencyKey {
			return fmt.Errorf("idempotency key %q already used: %w", cel.IdempotencyKey, domain.ErrDuplicateOperation)
		}
	}
	r.byID[cel.ID] = copyCelebration(cel)
	return nil
}

// GetByID implements domain.CelebrationRepository.
func (r *MemoryCelebrationRepository) GetByID(ctx context.Context, id string) (*domain.Celebration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cel, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyCelebration(cel), nil
}

// GetByIdempotencyKey implements domain.CelebrationRepository.
func (r *MemoryCelebrationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Celebration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cel := range r.byID {
		if cel.IdempotencyKey == key {
			return copyCelebration(cel), nil
		}
	}
	return nil, domain.ErrNotFound
}

// Append implements domain.CelebrationRepository with a compare-and-swap on
// the stored version.
func (r *MemoryCelebrationRepository) Append(ctx context.Context, cel *domain.Celebration, entry domain.StatusEntry, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[cel.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("record %s version %d is stale: %w", cel.ID, expectedVersion, domain.ErrConcurrentModification)
	}
	stored.Ledger = append(stored.Ledger, entry)
	stored.CurrentStatus = entry.NewStatus
	stored.Version++
	cel.Version = stored.Version
	return nil
}

// ListByContributor implements domain.CelebrationRepository.
func (r *MemoryCelebrationRepository) ListByContributor(ctx context.Context, contributorID string) ([]domain.Celebration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []domain.Celebration
	for _, cel := range r.byID {
		if cel.ContributorID == contributorID {
			items = append(items, *copyCelebration(cel))
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

// MemoryIdempotencyStore is an in-memory domain.IdempotencyStore. Claim is
// atomic under the mutex, matching the unique-constraint guarantee of the
// PostgreSQL store.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	recs map[string]domain.IdempotencyRecord
}

// NewMemoryIdempotencyStore creates an empty in-memory store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{recs: make(map[string]domain.IdempotencyRecord)}
}

func idemKey(key string, outcome domain.SettlementOutcome) string {
	return key + "/" + string(outcome)
}

// Claim implements domain.IdempotencyStore.
func (s *MemoryIdempotencyStore) Claim(ctx context.Context, rec domain.IdempotencyRecord) (*domain.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idemKey(rec.Key, rec.Outcome)
	if stored, ok := s.recs[k]; ok {
		return &stored, false, nil
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	rec.Disposition = domain.SettlementPending
	s.recs[k] = rec
	return &rec, true, nil
}

// Complete implements domain.IdempotencyStore.
func (s *MemoryIdempotencyStore) Complete(ctx context.Context, key string, outcome domain.SettlementOutcome, entryID, disposition string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idemKey(key, outcome)
	rec, ok := s.recs[k]
	if !ok {
		return domain.ErrNotFound
	}
	rec.EntryID = entryID
	rec.Disposition = disposition
	s.recs[k] = rec
	return nil
}

// Release implements domain.IdempotencyStore.
func (s *MemoryIdempotencyStore) Release(ctx context.Context, key string, outcome domain.SettlementOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := idemKey(key, outcome)
	if rec, ok := s.recs[k]; ok && rec.Disposition == domain.SettlementPending {
		delete(s.recs, k)
	}
	return nil
}

// MemorySettlementInbox is an in-memory domain.SettlementInbox.
type MemorySettlementInbox struct {
	mu     sync.Mutex
	events []*domain.InboxEvent
	done   map[string]bool
}

// NewMemorySettlementInbox creates an empty in-memory inbox.
func NewMemorySettlementInbox() *MemorySettlementInbox {
	return &MemorySettlementInbox{done: make(map[string]bool)}
}

// Enqueue implements domain.SettlementInbox.
func (s *MemorySettlementInbox) Enqueue(ctx context.Context, ev *domain.InboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}
	copied := *ev
	s.events = append(s.events, &copied)
	return nil
}

// ClaimNext implements domain.SettlementInbox.
func (s *MemorySettlementInbox) ClaimNext(ctx context.Context) (*domain.InboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if !s.done[ev.ID] {
			copied := *ev
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

// MarkProcessed implements domain.SettlementInbox.
func (s *MemorySettlementInbox) MarkProcessed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done[id] = true
	return nil
}

// MarkFailed implements domain.SettlementInbox.
func (s *MemorySettlementInbox) MarkFailed(ctx context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.ID == id {
			ev.Attempts++
			return nil
		}
	}
	return domain.ErrNotFound
}

var (
	_ domain.CelebrationRepository = (*MemoryCelebrationRepository)(nil)
	_ domain.IdempotencyStore      = (*MemoryIdempotencyStore)(nil)
	_ domain.SettlementInbox       = (*MemorySettlementInbox)(nil)
	_ domain.CelebrationRepository = (*CelebrationRepositoryPG)(nil)
	_ domain.IdempotencyStore      = (*IdempotencyStorePG)(nil)
	_ domain.SettlementInbox       = (*SettlementInboxPG)(nil)
)
