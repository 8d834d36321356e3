package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/powerbackus/powerback-sub000/internal/domain"
)

func newTestCelebration(t *testing.T) *domain.Celebration {
	t.Helper()
	cel := &domain.Celebration{
		ID:            "cel-1",
		ContributorID: "donor-1",
		RecipientID:   "candidate-1",
		AmountCents:   2500,
		Donor:         domain.DonorSnapshot{Name: "Pat Doe", Tier: domain.TierBase},
		Version:       1,
	}
	if _, err := Initialize(cel, "celebration created", domain.TriggerUser); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return cel
}

func TestInitializeProducesFirstActiveEntry(t *testing.T) {
	cel := newTestCelebration(t)

	if cel.CurrentStatus != domain.StatusActive {
		t.Fatalf("current status = %s, want active", cel.CurrentStatus)
	}
	if len(cel.Ledger) != 1 {
		t.Fatalf("ledger length = %d, want 1", len(cel.Ledger))
	}
	entry := cel.Ledger[0]
	if entry.NewStatus != domain.StatusActive || entry.PreviousStatus != domain.StatusActive {
		t.Fatalf("first entry statuses = %s -> %s, want active -> active", entry.PreviousStatus, entry.NewStatus)
	}
	if entry.TierAtTime != domain.TierBase || !entry.Compliant {
		t.Fatalf("first entry tier/compliance = %s/%v", entry.TierAtTime, entry.Compliant)
	}

	if _, err := Initialize(cel, "again", domain.TriggerUser); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second Initialize error = %v, want ErrInvalidTransition", err)
	}
}

func TestChangeStatusValidEdges(t *testing.T) {
	steps := []struct {
		to   domain.Status
		meta domain.Metadata
	}{
		{domain.StatusPaused, domain.PauseMetadata{Note: "bill stalled in committee"}},
		{domain.StatusActive, nil},
		{domain.StatusResolved, domain.ResolutionMetadata{BillResult: "passed", ReleasedCents: 2500}},
	}

	cel := newTestCelebration(t)
	for _, step := range steps {
		entry, err := ChangeStatus(cel, Change{NewStatus: step.to, Reason: "test", TriggeredBy: domain.TriggerSystem, Metadata: step.meta})
		if err != nil {
			t.Fatalf("ChangeStatus(%s): %v", step.to, err)
		}
		if cel.CurrentStatus != step.to {
			t.Fatalf("projection = %s, want %s", cel.CurrentStatus, step.to)
		}
		last := cel.Ledger[len(cel.Ledger)-1]
		if last.ID != entry.ID || last.NewStatus != step.to {
			t.Fatalf("last ledger entry does not match returned entry")
		}
	}
	if len(cel.Ledger) != 4 {
		t.Fatalf("ledger length = %d, want 4", len(cel.Ledger))
	}
}

func TestChangeStatusRejectsInvalidEdges(t *testing.T) {
	tests := []struct {
		name string
		prep func(t *testing.T) *domain.Celebration
		to   domain.Status
	}{
		{"active to self", newTestCelebration, domain.StatusActive},
		{"paused to resolved", func(t *testing.T) *domain.Celebration {
			cel := newTestCelebration(t)
			mustChange(t, cel, domain.StatusPaused, nil)
			return cel
		}, domain.StatusResolved},
		{"resolved is terminal", func(t *testing.T) *domain.Celebration {
			cel := newTestCelebration(t)
			mustChange(t, cel, domain.StatusResolved, domain.ResolutionMetadata{BillResult: "passed"})
			return cel
		}, domain.StatusPaused},
		{"defunct is terminal", func(t *testing.T) *domain.Celebration {
			cel := newTestCelebration(t)
			mustChange(t, cel, domain.StatusDefunct, nil)
			return cel
		}, domain.StatusActive},
		{"unknown status", newTestCelebration, domain.Status("archived")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cel := tc.prep(t)
			before := len(cel.Ledger)
			if _, err := ChangeStatus(cel, Change{NewStatus: tc.to, TriggeredBy: domain.TriggerSystem}); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Fatalf("error = %v, want ErrInvalidTransition", err)
			}
			if len(cel.Ledger) != before {
				t.Fatalf("failed transition appended an entry")
			}
		})
	}
}

func TestChangeStatusRejectsMismatchedMetadata(t *testing.T) {
	cel := newTestCelebration(t)
	_, err := ChangeStatus(cel, Change{
		NewStatus:   domain.StatusPaused,
		TriggeredBy: domain.TriggerAdmin,
		Metadata:    domain.ResolutionMetadata{BillResult: "passed"},
	})
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestLedgerIsAppendOnly(t *testing.T) {
	cel := newTestCelebration(t)
	first := cel.Ledger[0]

	mustChange(t, cel, domain.StatusPaused, nil)
	mustChange(t, cel, domain.StatusActive, nil)
	mustChange(t, cel, domain.StatusResolved, domain.ResolutionMetadata{BillResult: "passed"})

	if len(cel.Ledger) != 4 {
		t.Fatalf("ledger length = %d, want 4", len(cel.Ledger))
	}
	if cel.Ledger[0] != first {
		t.Fatalf("existing entry mutated by later appends")
	}
	if cel.CurrentStatus != cel.Ledger[len(cel.Ledger)-1].NewStatus {
		t.Fatalf("projection %s disagrees with last entry %s", cel.CurrentStatus, cel.Ledger[len(cel.Ledger)-1].NewStatus)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	cel := newTestCelebration(t)
	mustChange(t, cel, domain.StatusPaused, nil)
	mustChange(t, cel, domain.StatusActive, nil)

	got := History(cel, 2)
	if len(got) != 2 {
		t.Fatalf("history length = %d, want 2", len(got))
	}
	if got[0].NewStatus != domain.StatusActive || got[1].NewStatus != domain.StatusPaused {
		t.Fatalf("history order = %s, %s; want active, paused", got[0].NewStatus, got[1].NewStatus)
	}

	all := History(cel, 0)
	if len(all) != 3 {
		t.Fatalf("full history length = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].ChangedAt.After(all[i-1].ChangedAt) {
			t.Fatalf("history not in reverse-chronological order")
		}
	}
}

func TestChangeStatusHonorsExplicitTimestamp(t *testing.T) {
	cel := newTestCelebration(t)
	at := time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)
	entry, err := ChangeStatus(cel, Change{NewStatus: domain.StatusPaused, TriggeredBy: domain.TriggerScheduled, At: at})
	if err != nil {
		t.Fatalf("ChangeStatus: %v", err)
	}
	if !entry.ChangedAt.Equal(at) {
		t.Fatalf("ChangedAt = %v, want %v", entry.ChangedAt, at)
	}
}

func mustChange(t *testing.T, cel *domain.Celebration, to domain.Status, meta domain.Metadata) {
	t.Helper()
	if _, err := ChangeStatus(cel, Change{NewStatus: to, Reason: "test", TriggeredBy: domain.TriggerSystem, Metadata: meta}); err != nil {
		t.Fatalf("ChangeStatus(%s): %v", to, err)
	}
}
