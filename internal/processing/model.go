package processing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardfund/cardfund/internal/network"
)

// Processing statuses. Terminal states are confirmed, failed and refunded.
const (
	StatusInitiated  = "initiated"
	StatusPending    = "pending"
	StatusConfirming = "confirming"
	StatusConfirmed  = "confirmed"
	StatusFailed     = "failed"
	StatusRefunded   = "refunded"
)

// Funding states, tracked separately from the processing status so a
// confirmed-but-unfunded record stays distinguishable for reconciliation.
const (
	FundingNone   = "none"
	FundingFunded = "funded"
	FundingFailed = "funded_failed"
)

var (
	// ErrNotFound indicates the processing record does not exist.
	ErrNotFound = errors.New("processing record not found")

	// ErrInvalidState indicates the operation is not allowed in the record's
	// current status.
	ErrInvalidState = errors.New("invalid processing state")

	// ErrRateUnavailable indicates the deposit could not be priced.
	ErrRateUnavailable = errors.New("rate unavailable for deposit asset")

	// ErrFundingFailed indicates the card processor declined or failed the
	// funding call after confirmation.
	ErrFundingFailed = errors.New("card funding failed")
)

// Processing tracks a single deposit from detection through confirmation to
// card funding. ConfirmationCount and Status are the only fields mutated
// after creation; RequiredConfirmations is fixed per network at creation.
type Processing struct {
	ID                    string
	TransactionID         string
	CardID                string
	QuoteID               string
	BlockchainTxHash      string
	Network               network.Network
	Asset                 string
	CryptoAmount          decimal.Decimal
	Status                string
	ConfirmationCount     int
	RequiredConfirmations int
	NetworkFeeEstimate    decimal.Decimal
	EstimatedCompletion   time.Time
	LockedRate            decimal.Decimal
	FundedUSDCents        int64
	FundingState          string
	CreatedAt             time.Time
	CompletedAt           *time.Time
}

// Terminal reports whether the record has reached a final status.
func (p Processing) Terminal() bool {
	switch p.Status {
	case StatusConfirmed, StatusFailed, StatusRefunded:
		return true
	default:
		return false
	}
}

// AccelerationOption is a higher-fee alternative offered during congestion.
type AccelerationOption struct {
	FeeBumpPct    int
	Fee           decimal.Decimal
	EstimatedTime time.Duration
}
