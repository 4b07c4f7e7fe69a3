package card

import "time"

const (
	// StatusActive marks a card eligible for funding.
	StatusActive = "active"
	// StatusFrozen marks a card blocked by the risk policy.
	StatusFrozen = "frozen"
)

// Card represents a prepaid card funded by this pipeline.
type Card struct {
	ID        string
	HolderID  string
	Status    string
	Limits    *Limits
	CreatedAt time.Time
}

// Limits caps spending per card. A nil Limits on a card means the system
// defaults apply. All amounts are USD cents.
type Limits struct {
	SingleCents  int64
	DailyCents   int64
	MonthlyCents int64
	MaxPerHour   int
}

// DefaultLimits are applied when a card carries no override.
var DefaultLimits = Limits{
	SingleCents:  500_000,    // $5,000
	DailyCents:   1_000_000,  // $10,000
	MonthlyCents: 10_000_000, // $100,000
	MaxPerHour:   10,
}

// EffectiveLimits resolves the card's limits, falling back to defaults.
func (c Card) EffectiveLimits() Limits {
	if c.Limits != nil {
		return *c.Limits
	}
	return DefaultLimits
}
