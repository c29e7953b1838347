package recognition

// Tier is the coarse protection class assigned to an entity type.
type Tier string

// Tier values, from least to most protected.
const (
	TierGeneralOther Tier = "General/Other"
	TierGeneral      Tier = "General"
	TierSensitive    Tier = "Specific/Sensitive"
)

// DefaultTier is the tier assigned to entity types without an explicit
// sensitivity mapping.
const DefaultTier = TierGeneralOther

// String returns the string representation of the tier.
func (t Tier) String() string {
	return string(t)
}

// Rank returns the tier's strictness rank. Higher ranks are stricter.
func (t Tier) Rank() int {
	switch t {
	case TierSensitive:
		return 2
	case TierGeneral:
		return 1
	default:
		return 0
	}
}

// Escalate returns the stricter of the two tiers.
func (t Tier) Escalate(other Tier) Tier {
	if other.Rank() > t.Rank() {
		return other
	}
	return t
}

// IsStrictest reports whether no stricter tier exists.
func (t Tier) IsStrictest() bool {
	return t == TierSensitive
}
