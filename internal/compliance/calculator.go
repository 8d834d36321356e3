package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/powerbackus/powerback-sub000/internal/domain"
	"github.com/powerbackus/powerback-sub000/internal/election"
)

// BoundaryResolver is the slice of the election resolver the calculator needs.
type BoundaryResolver interface {
	ResolveResetBoundary(ctx context.Context, jurisdiction string, asOf time.Time) (election.Boundary, error)
}

// Calculator joins the pure tier/limit math to stored contribution history
// and resolved election boundaries.
type Calculator struct {
	caps     Caps
	resolver BoundaryResolver
	repo     domain.CelebrationRepository
	zone     *time.Location
}

// NewCalculator builds a Calculator. A nil zone uses the default reference
// offset (US Eastern standard, UTC-5).
func NewCalculator(caps Caps, resolver BoundaryResolver, repo domain.CelebrationRepository, zone *time.Location) *Calculator {
	if zone == nil {
		zone = election.ReferenceZone(-5)
	}
	return &Calculator{caps: caps, resolver: resolver, repo: repo, zone: zone}
}

// RecordedTier returns the contributor's high-water tier across all prior
// records. A contributor with no history starts at base.
func (c *Calculator) RecordedTier(ctx context.Context, contributorID string) (domain.Tier, error) {
	history, err := c.repo.ListByContributor(ctx, contributorID)
	if err != nil {
		return domain.TierBase, fmt.Errorf("load contributor history: %w", err)
	}
	tier := domain.TierBase
	for i := range history {
		tier = domain.MaxTier(tier, history[i].Donor.Tier)
	}
	return tier, nil
}

// RemainingFor computes the contributor's remaining limit for a proposed
// contribution to recipientID at asOf. Elevated-tier calculations need an
// election boundary; if none can be resolved at any fallback tier the error
// wraps domain.ErrLimitUndetermined and the contribution must be blocked.
func (c *Calculator) RemainingFor(ctx context.Context, contributorID, recipientID, jurisdiction string, tier domain.Tier, asOf time.Time) (LimitResult, error) {
	history, err := c.repo.ListByContributor(ctx, contributorID)
	if err != nil {
		return LimitResult{}, fmt.Errorf("load contributor history: %w", err)
	}
	var boundary election.Boundary
	if tier == domain.TierElevated {
		boundary, err = c.resolver.ResolveResetBoundary(ctx, jurisdiction, asOf)
		if err != nil {
			return LimitResult{}, fmt.Errorf("resolve reset boundary: %w", err)
		}
	}
	return RemainingLimit(tier, c.caps, boundary, history, recipientID, asOf, c.zone), nil
}

// CapExhausted reports whether the record's contributor has no remaining room
// under their relevant cap. It backs the settlement coordinator's fast path,
// so an undetermined limit reads as not exhausted: skipping work is an
// optimization and must never be triggered by missing data.
func (c *Calculator) CapExhausted(ctx context.Context, cel *domain.Celebration) (bool, error) {
	res, err := c.RemainingFor(ctx, cel.ContributorID, cel.RecipientID, cel.Jurisdiction, cel.Donor.Tier, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrLimitUndetermined) {
			return false, nil
		}
		return false, err
	}
	return res.RemainingCents() == 0, nil
}
