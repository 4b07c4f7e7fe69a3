package fraud

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardfund/cardfund/internal/network"
)

// Address risk levels, ordered by severity.
const (
	RiskLow         = "low"
	RiskMedium      = "medium"
	RiskHigh        = "high"
	RiskBlacklisted = "blacklisted"
)

// Rule identifiers attached to validation results.
const (
	FlagBlacklistedAddress   = "BLACKLISTED_ADDRESS"
	FlagExceedsSingleLimit   = "EXCEEDS_SINGLE_LIMIT"
	FlagExceedsDailyLimit    = "EXCEEDS_DAILY_LIMIT"
	FlagExceedsMonthlyLimit  = "EXCEEDS_MONTHLY_LIMIT"
	FlagExceedsFrequency     = "EXCEEDS_FREQUENCY_LIMIT"
	FlagRapidSuccession      = "RAPID_SUCCESSION"
	FlagRoundAmountPattern   = "ROUND_AMOUNT_PATTERN"
	FlagUnusualAmount        = "UNUSUAL_AMOUNT"
	FlagHighRiskAddress      = "HIGH_RISK_ADDRESS"
	FlagMediumRiskAddress    = "MEDIUM_RISK_ADDRESS"
	FlagNewAddress           = "NEW_ADDRESS"
	FlagLargeNetworkAmount   = "LARGE_NETWORK_AMOUNT"
	FlagCorrelatedSuspicious = "CORRELATED_SUSPICIOUS_ACTIVITY"
)

// Check is one in-flight transaction to screen. AmountCents is the USD leg;
// CryptoAmount is the deposit in native units for network thresholds.
type Check struct {
	CardID       string
	Network      network.Network
	AmountCents  int64
	CryptoAmount decimal.Decimal
	FromAddress  string
	ToAddress    string
}

// ValidationResult is the engine's decision for one transaction. The score
// is the plain sum of triggered flag weights; no flag removes points.
type ValidationResult struct {
	Valid     bool
	RiskScore int
	Flags     []string
	Reasons   []string
}

// AddressRisk is the stored assessment for one deposit address, read by
// every future check on that address.
type AddressRisk struct {
	Address          string
	Level            string
	TransactionCount int
	TotalAmountCents int64
	LastSeen         time.Time
}

// SuspiciousActivity is the audit row persisted when a transaction is
// rejected. Only the hashed address is stored, never the raw one.
type SuspiciousActivity struct {
	ID          string
	AddressHash string
	CardID      string
	RiskScore   int
	Flags       []string
	Reasons     []string
	ObservedAt  time.Time
}

// Policy centralizes the decision thresholds. Flag weights stay fixed
// constants next to their checks.
type Policy struct {
	BlockThreshold  int
	FreezeThreshold int
}

// DefaultPolicy blocks at 80 and freezes the card at 95.
var DefaultPolicy = Policy{BlockThreshold: 80, FreezeThreshold: 95}

// RejectedError surfaces a blocked transaction with its score and flags.
type RejectedError struct {
	Result ValidationResult
}

// Error describes the rejection.
func (e *RejectedError) Error() string {
	return fmt.Sprintf("transaction rejected: risk score %d, flags %v", e.Result.RiskScore, e.Result.Flags)
}
