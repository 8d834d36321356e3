package compliance

import (
	"errors"
	"testing"
	"time"

	"github.com/powerbackus/powerback-sub000/internal/domain"
	"github.com/powerbackus/powerback-sub000/internal/election"
)

var testZone = election.ReferenceZone(-5)

func contribution(recipient string, amountCents int64, createdAt time.Time, status domain.Status) domain.Celebration {
	return domain.Celebration{
		ID:            "cel-" + recipient + "-" + createdAt.Format("0102"),
		ContributorID: "donor-1",
		RecipientID:   recipient,
		AmountCents:   amountCents,
		CurrentStatus: status,
		CreatedAt:     createdAt,
	}
}

func TestBaseTierBoundByAnnualRemainder(t *testing.T) {
	// $50 per contribution, $200 annual; $150 already active this year
	// leaves $50, bounded by the annual remainder rather than the
	// per-contribution cap.
	asOf := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	history := []domain.Celebration{
		contribution("candidate-1", 50_00, asOf.AddDate(0, -3, 0), domain.StatusActive),
		contribution("candidate-2", 50_00, asOf.AddDate(0, -2, 0), domain.StatusActive),
		contribution("candidate-3", 50_00, asOf.AddDate(0, -1, 0), domain.StatusActive),
	}

	res := RemainingLimit(domain.TierBase, DefaultCaps, election.Boundary{}, history, "candidate-4", asOf, testZone)
	if got := res.RemainingCents(); got != 50_00 {
		t.Fatalf("remaining = %d, want 5000", got)
	}
	if err := res.Check(50_00); err != nil {
		t.Fatalf("Check(5000): %v", err)
	}
	if err := res.Check(60_00); err == nil {
		t.Fatalf("Check(6000) allowed an over-cap contribution")
	}
}

func TestBaseTierAnnualWindowExcludesPriorYear(t *testing.T) {
	asOf := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	history := []domain.Celebration{
		contribution("candidate-1", 200_00, time.Date(2025, time.December, 15, 0, 0, 0, 0, time.UTC), domain.StatusActive),
	}

	res := RemainingLimit(domain.TierBase, DefaultCaps, election.Boundary{}, history, "candidate-1", asOf, testZone)
	if got := res.WindowRemainingCents; got != 200_00 {
		t.Fatalf("window remaining = %d, want 20000 (prior-year record must not count)", got)
	}
	if got := res.RemainingCents(); got != 50_00 {
		t.Fatalf("remaining = %d, want 5000 (per-contribution cap binds)", got)
	}
}

func TestDefunctExcludedResolvedStillCounts(t *testing.T) {
	asOf := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	history := []domain.Celebration{
		// Never charged; stops counting.
		contribution("candidate-1", 100_00, asOf.AddDate(0, -2, 0), domain.StatusDefunct),
		// Obligation fulfilled, not voided; still counts.
		contribution("candidate-1", 150_00, asOf.AddDate(0, -1, 0), domain.StatusResolved),
	}

	res := RemainingLimit(domain.TierBase, DefaultCaps, election.Boundary{}, history, "candidate-1", asOf, testZone)
	if got := res.WindowRemainingCents; got != 50_00 {
		t.Fatalf("window remaining = %d, want 5000", got)
	}
}

func TestElevatedTierWindowsPartitionAtPrimary(t *testing.T) {
	boundary := election.Boundary{
		Jurisdiction: "NC",
		CycleYear:    2026,
		Primary:      time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
		General:      time.Date(2026, time.November, 3, 0, 0, 0, 0, time.UTC),
		Source:       election.SourceLive,
	}

	// A February 1 contribution maxes out the primary window.
	history := []domain.Celebration{
		contribution("candidate-1", 3_500_00, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), domain.StatusActive),
	}

	// Another February contribution to the same recipient has no room.
	feb := time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC)
	res := RemainingLimit(domain.TierElevated, DefaultCaps, boundary, history, "candidate-1", feb, testZone)
	if got := res.RemainingCents(); got != 0 {
		t.Fatalf("pre-primary remaining = %d, want 0", got)
	}

	// April 1 is past the primary: a different window, so the full
	// per-election cap is independently available.
	apr := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	res = RemainingLimit(domain.TierElevated, DefaultCaps, boundary, history, "candidate-1", apr, testZone)
	if got := res.RemainingCents(); got != 3_500_00 {
		t.Fatalf("post-primary remaining = %d, want 350000", got)
	}

	// A different recipient is a different cap entirely.
	res = RemainingLimit(domain.TierElevated, DefaultCaps, boundary, history, "candidate-2", feb, testZone)
	if got := res.RemainingCents(); got != 3_500_00 {
		t.Fatalf("other-recipient remaining = %d, want 350000", got)
	}
}

func TestCheckDistinguishesCapKinds(t *testing.T) {
	res := LimitResult{
		Tier:                 domain.TierBase,
		PerContributionCents: 50_00,
		WindowRemainingCents: 30_00,
	}

	err := res.Check(60_00)
	var limitErr *LimitError
	if !errors.As(err, &limitErr) || limitErr.Kind != CapPerContribution {
		t.Fatalf("Check(6000) = %v, want per_contribution_cap", err)
	}
	if !errors.Is(err, domain.ErrLimitExceeded) {
		t.Fatalf("LimitError does not unwrap to ErrLimitExceeded")
	}

	err = res.Check(40_00)
	if !errors.As(err, &limitErr) || limitErr.Kind != CapCumulative {
		t.Fatalf("Check(4000) = %v, want cumulative_cap", err)
	}

	if err := res.Check(30_00); err != nil {
		t.Fatalf("Check(3000): %v", err)
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	asOf := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	history := []domain.Celebration{
		contribution("candidate-1", 500_00, asOf.AddDate(0, -1, 0), domain.StatusActive),
	}
	res := RemainingLimit(domain.TierBase, DefaultCaps, election.Boundary{}, history, "candidate-1", asOf, testZone)
	if got := res.RemainingCents(); got != 0 {
		t.Fatalf("remaining = %d, want 0", got)
	}
}
