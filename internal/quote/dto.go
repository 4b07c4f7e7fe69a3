package quote

import "time"

// CalculateRequest captures user-provided data to price a conversion.
type CalculateRequest struct {
	FromAsset     string `json:"from_asset"`
	TargetCents   int64  `json:"target_usd_cents"`
	SlippageLimit string `json:"slippage_limit,omitempty"`
}

// QuoteResponse represents the API shape of a conversion quote.
type QuoteResponse struct {
	QuoteID            string    `json:"quote_id"`
	FromAsset          string    `json:"from_asset"`
	ToAsset            string    `json:"to_asset"`
	FromAmount         string    `json:"from_amount"`
	ToAmountCents      int64     `json:"to_amount_cents"`
	Rate               string    `json:"rate"`
	SlippageLimit      string    `json:"slippage_limit"`
	NetworkFee         string    `json:"network_fee"`
	ConversionFee      string    `json:"conversion_fee"`
	PlatformFee        string    `json:"platform_fee"`
	TotalFee           string    `json:"total_fee"`
	GuaranteedMinCents int64     `json:"guaranteed_min_cents"`
	Status             string    `json:"status"`
	ExpiresAt          time.Time `json:"expires_at"`
}

// ComparisonResponse represents the API shape of a rate comparison.
type ComparisonResponse struct {
	TargetCents int64            `json:"target_usd_cents"`
	Options     []OptionResponse `json:"options"`
	BestOption  *OptionResponse  `json:"best_option,omitempty"`
}

// OptionResponse ranks one asset within a comparison.
type OptionResponse struct {
	Asset       string `json:"asset"`
	Rate        string `json:"rate"`
	FromAmount  string `json:"from_amount"`
	TotalFeeUSD string `json:"total_fee_usd"`
	Efficiency  string `json:"efficiency"`
}

func toQuoteResponse(q ConversionQuote) QuoteResponse {
	return QuoteResponse{
		QuoteID:            q.ID,
		FromAsset:          q.FromAsset,
		ToAsset:            q.ToAsset,
		FromAmount:         q.FromAmount.String(),
		ToAmountCents:      q.ToAmountCents,
		Rate:               q.Rate.String(),
		SlippageLimit:      q.SlippageLimit.String(),
		NetworkFee:         q.NetworkFee.String(),
		ConversionFee:      q.ConversionFee.String(),
		PlatformFee:        q.PlatformFee.String(),
		TotalFee:           q.TotalFee.String(),
		GuaranteedMinCents: q.GuaranteedMinCents,
		Status:             q.Status,
		ExpiresAt:          q.ExpiresAt,
	}
}

func toComparisonResponse(result ComparisonResult) ComparisonResponse {
	resp := ComparisonResponse{TargetCents: result.TargetCents}
	for _, opt := range result.Options {
		resp.Options = append(resp.Options, OptionResponse{
			Asset:       opt.Asset,
			Rate:        opt.Rate.String(),
			FromAmount:  opt.FromAmount.String(),
			TotalFeeUSD: opt.TotalFeeUSD.String(),
			Efficiency:  opt.Efficiency.String(),
		})
	}
	if len(resp.Options) > 0 {
		resp.BestOption = &resp.Options[0]
	}
	return resp
}
