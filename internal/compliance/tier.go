// Package compliance computes contribution tiers and remaining limits. The
// tier engine and limit math are pure functions; the Calculator at the end of
// the package wires them to stored history and election boundaries.
package compliance

import (
	"strings"

	"github.com/powerbackus/powerback-sub000/internal/domain"
)

// Profile is the contributor-submitted identity used to classify a tier.
type Profile struct {
	Name             string
	Street           string
	City             string
	State            string
	PostalCode       string
	Occupation       string
	Employer         string
	EmploymentStatus string
}

// Employment classifications that satisfy the employer requirement without an
// employer name.
var recognizedNonEmployment = map[string]struct{}{
	"self-employed": {},
	"not-employed":  {},
	"unemployed":    {},
	"retired":       {},
	"student":       {},
	"homemaker":     {},
}

// AchievableTier classifies what the submitted profile qualifies for right
// now. Elevated requires name, a complete mailing address, occupation, and an
// employer or a recognized non-employment classification. Pure; no lookups.
func AchievableTier(p Profile) domain.Tier {
	if blank(p.Name) || blank(p.Street) || blank(p.City) || blank(p.State) || blank(p.PostalCode) {
		return domain.TierBase
	}
	if blank(p.Occupation) {
		return domain.TierBase
	}
	if blank(p.Employer) {
		if _, ok := recognizedNonEmployment[strings.ToLower(strings.TrimSpace(p.EmploymentStatus))]; !ok {
			return domain.TierBase
		}
	}
	return domain.TierElevated
}

// EffectiveTier is the ratchet: the max of the previously recorded tier and
// what the current profile achieves. Once a contributor has earned elevated,
// deleting profile fields never projects them back to base; demoting would let
// a user dodge stricter validation mid-cycle.
func EffectiveTier(recorded, achievable domain.Tier) domain.Tier {
	return domain.MaxTier(recorded, achievable)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
