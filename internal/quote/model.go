package quote

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// StatusActive marks a quote that may still be redeemed.
	StatusActive = "active"
	// StatusUsed marks a quote consumed by a successful funding.
	StatusUsed = "used"
	// StatusExpired marks a quote past its validity or explicitly cancelled.
	StatusExpired = "expired"
)

var (
	// ErrInvalidRequest indicates bad caller input (amount, slippage, asset).
	ErrInvalidRequest = errors.New("invalid conversion request")

	// ErrRateUnavailable indicates no usable price exists for the asset.
	ErrRateUnavailable = errors.New("rate unavailable")

	// ErrQuoteNotRedeemable indicates the quote is used, expired or unknown.
	ErrQuoteNotRedeemable = errors.New("quote not redeemable")

	// ErrNotFound indicates the quote does not exist.
	ErrNotFound = errors.New("quote not found")
)

// ConversionQuote is a time-bounded, rate-locked promise of crypto-to-USD
// conversion terms. USD legs are integer cents; crypto legs are decimals.
type ConversionQuote struct {
	ID                 string
	FromAsset          string
	ToAsset            string
	FromAmount         decimal.Decimal
	ToAmountCents      int64
	Rate               decimal.Decimal
	SlippageLimit      decimal.Decimal
	NetworkFee         decimal.Decimal
	ConversionFee      decimal.Decimal
	PlatformFee        decimal.Decimal
	TotalFee           decimal.Decimal
	GuaranteedMinCents int64
	Status             string
	ExpiresAt          time.Time
	CreatedAt          time.Time
}

// Expired reports whether the quote is past its validity window.
func (q ConversionQuote) Expired(now time.Time) bool {
	return !now.Before(q.ExpiresAt)
}

// Redeemable reports whether the quote can still be consumed.
func (q ConversionQuote) Redeemable(now time.Time) bool {
	return q.Status == StatusActive && !q.Expired(now)
}

// FeeSchedule describes per-asset conversion pricing. Percentages are
// fractions (0.005 = 0.5%); the network fee has a floor in asset units.
type FeeSchedule struct {
	NetworkFeePct    decimal.Decimal
	NetworkFeeFloor  decimal.Decimal
	ConversionFeePct decimal.Decimal
	PlatformFeePct   decimal.Decimal
}

var defaultFeeSchedule = FeeSchedule{
	NetworkFeePct:    decimal.RequireFromString("0.01"),
	NetworkFeeFloor:  decimal.Zero,
	ConversionFeePct: decimal.RequireFromString("0.005"),
	PlatformFeePct:   decimal.RequireFromString("0.0025"),
}

var feeSchedules = map[string]FeeSchedule{
	"BTC": {
		NetworkFeePct:    decimal.RequireFromString("0.005"),
		NetworkFeeFloor:  decimal.RequireFromString("0.0001"),
		ConversionFeePct: decimal.RequireFromString("0.005"),
		PlatformFeePct:   decimal.RequireFromString("0.0025"),
	},
	"ETH": {
		NetworkFeePct:    decimal.RequireFromString("0.008"),
		NetworkFeeFloor:  decimal.RequireFromString("0.001"),
		ConversionFeePct: decimal.RequireFromString("0.005"),
		PlatformFeePct:   decimal.RequireFromString("0.0025"),
	},
	"XRP": {
		NetworkFeePct:    decimal.RequireFromString("0.001"),
		NetworkFeeFloor:  decimal.RequireFromString("0.1"),
		ConversionFeePct: decimal.RequireFromString("0.005"),
		PlatformFeePct:   decimal.RequireFromString("0.0025"),
	},
	"USDC": {
		NetworkFeePct:    decimal.RequireFromString("0.002"),
		NetworkFeeFloor:  decimal.RequireFromString("1"),
		ConversionFeePct: decimal.RequireFromString("0.003"),
		PlatformFeePct:   decimal.RequireFromString("0.0025"),
	},
	"USDT": {
		NetworkFeePct:    decimal.RequireFromString("0.002"),
		NetworkFeeFloor:  decimal.RequireFromString("1"),
		ConversionFeePct: decimal.RequireFromString("0.003"),
		PlatformFeePct:   decimal.RequireFromString("0.0025"),
	},
}

// ScheduleFor returns the fee schedule for an asset, falling back to the
// default schedule for unknown assets.
func ScheduleFor(asset string) FeeSchedule {
	if schedule, ok := feeSchedules[asset]; ok {
		return schedule
	}
	return defaultFeeSchedule
}

// RateComparison ranks one asset's cost of reaching a USD target.
type RateComparison struct {
	Asset       string
	Rate        decimal.Decimal
	FromAmount  decimal.Decimal
	TotalFeeUSD decimal.Decimal
	Efficiency  decimal.Decimal
}

// ComparisonResult is the ordered outcome of a rate comparison, cheapest
// first.
type ComparisonResult struct {
	TargetCents int64
	Options     []RateComparison
	BestOption  *RateComparison
}
