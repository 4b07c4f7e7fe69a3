package fraud

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cardfund/cardfund/internal/card"
	"github.com/cardfund/cardfund/internal/network"
)

// Flag weights. Additive: a transaction can trip several limit flags at once.
const (
	weightBlacklist     = 100
	weightSingleLimit   = 30
	weightDailyLimit    = 40
	weightMonthlyLimit  = 50
	weightFrequency     = 25
	weightRapidBurst    = 20
	weightRoundAmount   = 15
	weightUnusualAmount = 20
	weightHighRisk      = 40
	weightMediumRisk    = 20
	weightNewAddress    = 10
	weightPerIncident   = 15
)

const (
	roundAmountUnitCents = 100_000 // $1,000
	rapidBurstCount      = 3
	unusualAmountFactor  = 5
)

// finding is one triggered rule. Checks are pure; the engine folds findings
// into the total score.
type finding struct {
	points int
	flag   string
	reason string
}

func checkBlacklist(blacklisted bool, address string) []finding {
	if !blacklisted {
		return nil
	}
	return []finding{{
		points: weightBlacklist,
		flag:   FlagBlacklistedAddress,
		reason: fmt.Sprintf("address %s is blacklisted", address),
	}}
}

// checkLimits compares the transaction against single/daily/monthly caps.
// dailyCents and monthlyCents are the sums of confirmed transactions in the
// rolling windows, excluding the transaction under review.
func checkLimits(amountCents, dailyCents, monthlyCents int64, limits card.Limits) []finding {
	var findings []finding
	if amountCents > limits.SingleCents {
		findings = append(findings, finding{
			points: weightSingleLimit,
			flag:   FlagExceedsSingleLimit,
			reason: fmt.Sprintf("amount %d exceeds single transaction limit %d", amountCents, limits.SingleCents),
		})
	}
	if dailyCents+amountCents > limits.DailyCents {
		findings = append(findings, finding{
			points: weightDailyLimit,
			flag:   FlagExceedsDailyLimit,
			reason: fmt.Sprintf("daily total %d would exceed limit %d", dailyCents+amountCents, limits.DailyCents),
		})
	}
	if monthlyCents+amountCents > limits.MonthlyCents {
		findings = append(findings, finding{
			points: weightMonthlyLimit,
			flag:   FlagExceedsMonthlyLimit,
			reason: fmt.Sprintf("monthly total %d would exceed limit %d", monthlyCents+amountCents, limits.MonthlyCents),
		})
	}
	return findings
}

// checkFrequency flags hourly throughput above the per-card cap and rapid
// bursts. Counts are of prior transactions; the one under review makes the
// count+1.
func checkFrequency(hourCount, fiveMinuteCount, maxPerHour int) []finding {
	var findings []finding
	if hourCount+1 > maxPerHour {
		findings = append(findings, finding{
			points: weightFrequency,
			flag:   FlagExceedsFrequency,
			reason: fmt.Sprintf("%d transactions in the last hour exceeds limit %d", hourCount+1, maxPerHour),
		})
	}
	if fiveMinuteCount+1 >= rapidBurstCount {
		findings = append(findings, finding{
			points: weightRapidBurst,
			flag:   FlagRapidSuccession,
			reason: fmt.Sprintf("%d transactions within five minutes", fiveMinuteCount+1),
		})
	}
	return findings
}

// checkAmountPattern flags structuring-style round USD amounts and amounts
// far above the card's 30-day average.
func checkAmountPattern(amountCents, avgCents int64) []finding {
	var findings []finding
	if amountCents >= roundAmountUnitCents && amountCents%roundAmountUnitCents == 0 {
		findings = append(findings, finding{
			points: weightRoundAmount,
			flag:   FlagRoundAmountPattern,
			reason: fmt.Sprintf("round amount of %d cents suggests structuring", amountCents),
		})
	}
	if avgCents > 0 && amountCents > unusualAmountFactor*avgCents {
		findings = append(findings, finding{
			points: weightUnusualAmount,
			flag:   FlagUnusualAmount,
			reason: fmt.Sprintf("amount %d is more than %dx the 30-day average %d", amountCents, unusualAmountFactor, avgCents),
		})
	}
	return findings
}

// checkAddressRisk scores the stored assessment of the source address. An
// unseen address carries baseline risk.
func checkAddressRisk(risk *AddressRisk, address string) []finding {
	if risk == nil {
		return []finding{{
			points: weightNewAddress,
			flag:   FlagNewAddress,
			reason: fmt.Sprintf("no prior activity for address %s", address),
		}}
	}
	switch risk.Level {
	case RiskHigh:
		return []finding{{
			points: weightHighRisk,
			flag:   FlagHighRiskAddress,
			reason: fmt.Sprintf("address %s assessed high risk", address),
		}}
	case RiskMedium:
		return []finding{{
			points: weightMediumRisk,
			flag:   FlagMediumRiskAddress,
			reason: fmt.Sprintf("address %s assessed medium risk", address),
		}}
	default:
		return nil
	}
}

// checkNetworkAmount applies the per-network large-amount thresholds in
// native units.
func checkNetworkAmount(n network.Network, amount decimal.Decimal) []finding {
	threshold, points := n.LargeAmountThreshold()
	if amount.LessThanOrEqual(threshold) {
		return nil
	}
	return []finding{{
		points: points,
		flag:   FlagLargeNetworkAmount,
		reason: fmt.Sprintf("amount %s exceeds %s threshold %s", amount, n, threshold),
	}}
}

// checkCorrelation adds linear risk per prior flagged incident for the
// hashed address within the lookback window.
func checkCorrelation(priorIncidents int) []finding {
	if priorIncidents <= 0 {
		return nil
	}
	return []finding{{
		points: priorIncidents * weightPerIncident,
		flag:   FlagCorrelatedSuspicious,
		reason: fmt.Sprintf("%d prior suspicious incidents in lookback window", priorIncidents),
	}}
}
