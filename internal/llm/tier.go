package llm

import "fmt"

// Tier selects between a fast/cheap and a slow/capable reasoning provider
type Tier string

const (
	TierFast    Tier = "fast"
	TierCapable Tier = "capable"
)

// ParseTier validates a tier name
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierFast, TierCapable:
		return Tier(s), nil
	default:
		return "", fmt.Errorf("unknown tier: %s (supported: fast, capable)", s)
	}
}

// Tiers holds one provider per tier. Either may be nil.
type Tiers struct {
	Fast    Provider
	Capable Provider
}

// For returns the provider for a tier, falling back to the other tier when unset.
// Returns nil when no provider is configured at all.
func (t Tiers) For(tier Tier) Provider {
	if tier == TierCapable {
		if t.Capable != nil {
			return t.Capable
		}
		return t.Fast
	}
	if t.Fast != nil {
		return t.Fast
	}
	return t.Capable
}

// Enabled reports whether any tier has a provider
func (t Tiers) Enabled() bool {
	return t.Fast != nil || t.Capable != nil
}
