package rates

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is a single observed spot price. Quotes are immutable once
// recorded; newer observations supersede older ones.
type PriceQuote struct {
	Symbol     string
	USDPrice   decimal.Decimal
	RecordedAt time.Time
	Source     string
}

// Rate is the aggregator's answer for one symbol. Stale marks values served
// from cache or zero placeholders after every source failed.
type Rate struct {
	USD         decimal.Decimal `json:"usd"`
	LastUpdated time.Time       `json:"last_updated"`
	Stale       bool            `json:"stale,omitempty"`
}

// SourceStatus captures per-source bookkeeping exposed for inspection.
type SourceStatus struct {
	Name        string
	Priority    int
	LastSuccess time.Time
	LastError   time.Time
	LastErrMsg  string
}

// Degraded reports whether the source's most recent attempt failed.
func (s SourceStatus) Degraded() bool {
	return s.LastError.After(s.LastSuccess)
}
