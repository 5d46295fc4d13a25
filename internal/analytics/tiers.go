package analytics

// Country tiers by click volume within a window
const (
	Tier1 = "tier_1"
	Tier2 = "tier_2"
	Tier3 = "tier_3"
	Tier4 = "tier_4"
)

// Tiers lists every tier from highest to lowest volume
var Tiers = []string{Tier1, Tier2, Tier3, Tier4}

// TierFor assigns the tier of a click count
func TierFor(clicks int64) string {
	switch {
	case clicks >= 1000:
		return Tier1
	case clicks >= 500:
		return Tier2
	case clicks >= 100:
		return Tier3
	default:
		return Tier4
	}
}
