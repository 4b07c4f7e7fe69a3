package processing

import (
	"context"

	"github.com/google/uuid"
)

// CardFunder represents the downstream card-issuing processor. Fund is
// assumed idempotent keyed by the transaction ID this system supplies.
type CardFunder interface {
	Fund(ctx context.Context, transactionID string, usdCents int64) (FundingDecision, error)
}

// FundingDecision captures the processor's response.
type FundingDecision struct {
	Reference string
	Accepted  bool
}

// StaticFunder simulates a card processor that accepts every funding call.
type StaticFunder struct{}

// Fund approves the funding request with a synthetic reference.
func (StaticFunder) Fund(_ context.Context, _ string, _ int64) (FundingDecision, error) {
	return FundingDecision{Reference: uuid.NewString(), Accepted: true}, nil
}
