package compliance

import (
	"fmt"
	"time"

	"github.com/powerbackus/powerback-sub000/internal/domain"
	"github.com/powerbackus/powerback-sub000/internal/election"
)

// CapKind is the machine-readable reason a proposed amount was rejected, so
// callers can render tier-specific guidance.
type CapKind string

const (
	CapPerContribution CapKind = "per_contribution_cap"
	CapCumulative      CapKind = "cumulative_cap"
)

// Caps holds the configured limits, in cents.
type Caps struct {
	// Base tier: low per-contribution cap and low cumulative annual cap.
	BasePerContributionCents int64
	BaseAnnualCents          int64
	// Elevated tier: per-recipient-per-election cap.
	ElevatedPerElectionCents int64
}

// DefaultCaps mirrors the FEC thresholds: $50 per unitemized contribution,
// $200 aggregate per year, $3,500 per candidate per election.
var DefaultCaps = Caps{
	BasePerContributionCents: 50_00,
	BaseAnnualCents:          200_00,
	ElevatedPerElectionCents: 3_500_00,
}

// LimitResult is advisory math, not an enforcement gate: it reports how much
// room remains and which cap binds. Enforcement is the caller's job, before
// any ledger entry exists.
type LimitResult struct {
	Tier domain.Tier
	// PerContributionCents caps any single contribution.
	PerContributionCents int64
	// WindowRemainingCents is what is left of the cumulative cap in the
	// active reset window. Never negative.
	WindowRemainingCents int64
	// Source reports which fallback tier supplied election data; empty for
	// the base tier's calendar window.
	Source election.Source
}

// RemainingCents is the most a new contribution may be.
func (r LimitResult) RemainingCents() int64 {
	if r.WindowRemainingCents < r.PerContributionCents {
		return r.WindowRemainingCents
	}
	return r.PerContributionCents
}

// Check validates a proposed amount against the result. The returned
// LimitError distinguishes the single-contribution cap from the cumulative
// remainder.
func (r LimitResult) Check(amountCents int64) error {
	if amountCents > r.PerContributionCents {
		return &LimitError{Kind: CapPerContribution, RemainingCents: r.RemainingCents()}
	}
	if amountCents > r.WindowRemainingCents {
		return &LimitError{Kind: CapCumulative, RemainingCents: r.RemainingCents()}
	}
	return nil
}

// LimitError reports a rejected contribution with its machine-readable cause.
type LimitError struct {
	Kind           CapKind
	RemainingCents int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %d cents remaining", e.Kind, e.RemainingCents)
}

// Unwrap ties LimitError into the domain error taxonomy.
func (e *LimitError) Unwrap() error { return domain.ErrLimitExceeded }

// RemainingLimit computes the room left for a new contribution.
//
// Base tier sums all of the contributor's still-counting records inside the
// current calendar-year window. Elevated tier sums still-counting records to
// the same recipient inside the current election window. Escrowed (active and
// paused) and resolved amounts count; only defunct records are excluded, since
// the regulatory obligation attaches at commitment and is fulfilled, not
// voided, by resolution.
func RemainingLimit(tier domain.Tier, caps Caps, boundary election.Boundary, history []domain.Celebration, recipientID string, asOf time.Time, zone *time.Location) LimitResult {
	switch tier {
	case domain.TierElevated:
		var used int64
		for i := range history {
			cel := &history[i]
			if !cel.CountsTowardLimit() {
				continue
			}
			if cel.RecipientID != recipientID {
				continue
			}
			if election.CycleYearFor(cel.CreatedAt) != boundary.CycleYear {
				continue
			}
			if !boundary.SameWindow(cel.CreatedAt, asOf) {
				continue
			}
			used += cel.AmountCents
		}
		return LimitResult{
			Tier:                 domain.TierElevated,
			PerContributionCents: caps.ElevatedPerElectionCents,
			WindowRemainingCents: clamp(caps.ElevatedPerElectionCents - used),
			Source:               boundary.Source,
		}
	default:
		start, end := election.YearWindow(asOf, zone)
		var used int64
		for i := range history {
			cel := &history[i]
			if !cel.CountsTowardLimit() {
				continue
			}
			if cel.CreatedAt.Before(start) || !cel.CreatedAt.Before(end) {
				continue
			}
			used += cel.AmountCents
		}
		return LimitResult{
			Tier:                 domain.TierBase,
			PerContributionCents: caps.BasePerContributionCents,
			WindowRemainingCents: clamp(caps.BaseAnnualCents - used),
		}
	}
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
