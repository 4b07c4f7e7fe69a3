package processing

import "time"

// DepositRequest captures a detected deposit submitted for processing.
type DepositRequest struct {
	TransactionID    string `json:"transaction_id"`
	CardID           string `json:"card_id"`
	Network          string `json:"network"`
	Asset            string `json:"asset"`
	Amount           string `json:"amount"`
	FromAddress      string `json:"from_address"`
	ToAddress        string `json:"to_address"`
	BlockchainTxHash string `json:"blockchain_tx_hash,omitempty"`
	ObservedFee      string `json:"observed_network_fee,omitempty"`
}

// ConfirmationRequest carries a confirmation count from the chain monitor.
type ConfirmationRequest struct {
	ConfirmationCount int `json:"confirmation_count"`
}

// ProcessingResponse represents the API shape of a processing record.
type ProcessingResponse struct {
	ID                    string     `json:"id"`
	TransactionID         string     `json:"transaction_id"`
	CardID                string     `json:"card_id"`
	QuoteID               string     `json:"quote_id"`
	BlockchainTxHash      string     `json:"blockchain_tx_hash,omitempty"`
	Network               string     `json:"network"`
	Asset                 string     `json:"asset"`
	CryptoAmount          string     `json:"crypto_amount"`
	Status                string     `json:"status"`
	ConfirmationCount     int        `json:"confirmation_count"`
	RequiredConfirmations int        `json:"required_confirmations"`
	NetworkFeeEstimate    string     `json:"network_fee_estimate"`
	EstimatedCompletion   time.Time  `json:"estimated_completion"`
	LockedRate            string     `json:"locked_rate"`
	FundedUSDCents        int64      `json:"funded_usd_cents,omitempty"`
	FundingState          string     `json:"funding_state"`
	CreatedAt             time.Time  `json:"created_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

// AccelerationResponse lists fee-bump options for an in-flight deposit.
type AccelerationResponse struct {
	ProcessingID string           `json:"processing_id"`
	Options      []OptionPayload  `json:"options"`
}

// OptionPayload is one acceleration choice.
type OptionPayload struct {
	FeeBumpPct       int    `json:"fee_bump_pct"`
	Fee              string `json:"fee"`
	EstimatedSeconds int64  `json:"estimated_seconds"`
}

func toProcessingResponse(p Processing) ProcessingResponse {
	return ProcessingResponse{
		ID:                    p.ID,
		TransactionID:         p.TransactionID,
		CardID:                p.CardID,
		QuoteID:               p.QuoteID,
		BlockchainTxHash:      p.BlockchainTxHash,
		Network:               string(p.Network),
		Asset:                 p.Asset,
		CryptoAmount:          p.CryptoAmount.String(),
		Status:                p.Status,
		ConfirmationCount:     p.ConfirmationCount,
		RequiredConfirmations: p.RequiredConfirmations,
		NetworkFeeEstimate:    p.NetworkFeeEstimate.String(),
		EstimatedCompletion:   p.EstimatedCompletion,
		LockedRate:            p.LockedRate.String(),
		FundedUSDCents:        p.FundedUSDCents,
		FundingState:          p.FundingState,
		CreatedAt:             p.CreatedAt,
		CompletedAt:           p.CompletedAt,
	}
}

func toAccelerationResponse(id string, options []AccelerationOption) AccelerationResponse {
	resp := AccelerationResponse{ProcessingID: id, Options: []OptionPayload{}}
	for _, opt := range options {
		resp.Options = append(resp.Options, OptionPayload{
			FeeBumpPct:       opt.FeeBumpPct,
			Fee:              opt.Fee.String(),
			EstimatedSeconds: int64(opt.EstimatedTime.Seconds()),
		})
	}
	return resp
}
