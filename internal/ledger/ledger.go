// Package ledger implements the celebration status state machine: a small
// fixed transition table, an append-only history, and the current-status
// projection derived from it. It performs no I/O; persistence and concurrency
// control belong to the repository layer.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/powerbackus/powerback-sub000/internal/domain"
)

// transitions is the full set of valid edges. Terminal states have no entry.
// Transitions to self are not edges.
var transitions = map[domain.Status][]domain.Status{
	domain.StatusActive: {domain.StatusPaused, domain.StatusResolved, domain.StatusDefunct},
	domain.StatusPaused: {domain.StatusActive, domain.StatusDefunct},
}

// CanTransition reports whether the edge from → to exists.
func CanTransition(from, to domain.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Change describes one requested status transition.
type Change struct {
	NewStatus       domain.Status
	Reason          string
	TriggeredBy     domain.Trigger
	TriggeredByID   string
	TriggeredByName string
	Metadata        domain.Metadata
	// At is the entry timestamp; zero means now.
	At time.Time
}

// Initialize writes the first ledger entry on a freshly built record and
// projects it to active. It fails if the record already has history.
func Initialize(cel *domain.Celebration, reason string, trigger domain.Trigger) (domain.StatusEntry, error) {
	if len(cel.Ledger) != 0 {
		return domain.StatusEntry{}, fmt.Errorf("record %s already initialized: %w", cel.ID, domain.ErrInvalidTransition)
	}
	entry := newEntry(cel, Change{
		NewStatus:   domain.StatusActive,
		Reason:      reason,
		TriggeredBy: trigger,
	})
	// Creation has no previous state; record the initial status in both
	// positions so replaying the ledger from entry zero is well defined.
	entry.PreviousStatus = domain.StatusActive
	cel.Ledger = append(cel.Ledger, entry)
	cel.CurrentStatus = domain.StatusActive
	return entry, nil
}

// ChangeStatus validates ch against the transition table, appends the new
// entry, and updates the current-status projection. The record is mutated in
// place; callers persist the result with the version they read.
func ChangeStatus(cel *domain.Celebration, ch Change) (domain.StatusEntry, error) {
	if !ch.NewStatus.Valid() {
		return domain.StatusEntry{}, fmt.Errorf("unknown status %q: %w", ch.NewStatus, domain.ErrInvalidTransition)
	}
	if len(cel.Ledger) == 0 {
		return domain.StatusEntry{}, fmt.Errorf("record %s has no ledger: %w", cel.ID, domain.ErrInvalidTransition)
	}
	from := cel.CurrentStatus
	if !CanTransition(from, ch.NewStatus) {
		return domain.StatusEntry{}, fmt.Errorf("%s -> %s: %w", from, ch.NewStatus, domain.ErrInvalidTransition)
	}
	if ch.Metadata != nil && !ch.Metadata.AppliesTo(ch.NewStatus) {
		return domain.StatusEntry{}, fmt.Errorf("metadata %q not valid for status %s: %w", ch.Metadata.Kind(), ch.NewStatus, domain.ErrInvalidTransition)
	}
	entry := newEntry(cel, ch)
	cel.Ledger = append(cel.Ledger, entry)
	cel.CurrentStatus = ch.NewStatus
	return entry, nil
}

func newEntry(cel *domain.Celebration, ch Change) domain.StatusEntry {
	at := ch.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return domain.StatusEntry{
		ID:              uuid.NewString(),
		PreviousStatus:  cel.CurrentStatus,
		NewStatus:       ch.NewStatus,
		ChangedAt:       at,
		Reason:          ch.Reason,
		TriggeredBy:     ch.TriggeredBy,
		TriggeredByID:   ch.TriggeredByID,
		TriggeredByName: ch.TriggeredByName,
		Metadata:        ch.Metadata,
		TierAtTime:      cel.Donor.Tier,
		// Fail safe: a record whose snapshot carries no recognizable tier
		// is flagged non-compliant for audit rather than assumed fine.
		Compliant: cel.Donor.Tier.Valid(),
	}
}

// History returns up to limit entries, newest first. A non-positive limit
// returns the full history.
func History(cel *domain.Celebration, limit int) []domain.StatusEntry {
	n := len(cel.Ledger)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.StatusEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, cel.Ledger[i])
	}
	return out
}
