package processing

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardfund/cardfund/internal/network"
)

// Congestion multipliers applied to base fee and timing estimates.
var (
	multiplierLow    = decimal.RequireFromString("1.0")
	multiplierMedium = decimal.RequireFromString("1.5")
	multiplierHigh   = decimal.RequireFromString("2.0")
)

const congestionSampleLimit = 50

// baselineFee is the uncongested network fee estimate in native units.
func baselineFee(n network.Network) decimal.Decimal {
	switch n {
	case network.Bitcoin:
		return decimal.RequireFromString("0.0002")
	case network.Ethereum, network.ERC20:
		return decimal.RequireFromString("0.002")
	case network.XRP:
		return decimal.RequireFromString("0.00001")
	default:
		return decimal.RequireFromString("0.001")
	}
}

// CongestionTracker classifies current network load from recently observed
// fee levels. With no observations a network is treated as uncongested.
type CongestionTracker struct {
	mu      sync.RWMutex
	samples map[network.Network][]decimal.Decimal
}

// NewCongestionTracker builds an empty tracker.
func NewCongestionTracker() *CongestionTracker {
	return &CongestionTracker{samples: make(map[network.Network][]decimal.Decimal)}
}

// Observe records a fee level reported for the network, keeping a bounded
// window of recent samples.
func (t *CongestionTracker) Observe(n network.Network, fee decimal.Decimal) {
	if fee.IsNegative() || fee.IsZero() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	window := append(t.samples[n], fee)
	if len(window) > congestionSampleLimit {
		window = window[len(window)-congestionSampleLimit:]
	}
	t.samples[n] = window
}

// Multiplier returns the congestion scalar for the network: 1.0x when recent
// fees track the baseline, 1.5x above 1.2x baseline, 2.0x above 2x baseline.
func (t *CongestionTracker) Multiplier(n network.Network) decimal.Decimal {
	t.mu.RLock()
	window := t.samples[n]
	t.mu.RUnlock()

	if len(window) == 0 {
		return multiplierLow
	}

	sum := decimal.Zero
	for _, fee := range window {
		sum = sum.Add(fee)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(window))))

	base := baselineFee(n)
	switch {
	case avg.GreaterThan(base.Mul(decimal.NewFromInt(2))):
		return multiplierHigh
	case avg.GreaterThan(base.Mul(decimal.RequireFromString("1.2"))):
		return multiplierMedium
	default:
		return multiplierLow
	}
}

// EstimateFee scales the baseline network fee by current congestion.
func (t *CongestionTracker) EstimateFee(n network.Network) decimal.Decimal {
	return baselineFee(n).Mul(t.Multiplier(n))
}

// EstimateCompletion scales the base confirmation timing by current
// congestion.
func (t *CongestionTracker) EstimateCompletion(n network.Network, from time.Time) time.Time {
	scaled := decimal.NewFromInt(int64(n.BaseConfirmationTime())).Mul(t.Multiplier(n))
	return from.Add(time.Duration(scaled.IntPart()))
}
