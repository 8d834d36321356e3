package domain

// Tier enumerates regulatory compliance levels. Tiers are totally ordered:
// base < elevated.
type Tier string

const (
	TierBase     Tier = "base"
	TierElevated Tier = "elevated"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierBase || t == TierElevated
}

func (t Tier) rank() int {
	switch t {
	case TierBase:
		return 1
	case TierElevated:
		return 2
	}
	return 0
}

// MaxTier returns the higher of two tiers under the base < elevated order.
func MaxTier(a, b Tier) Tier {
	if b.rank() > a.rank() {
		return b
	}
	return a
}
