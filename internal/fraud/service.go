package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cardfund/cardfund/internal/card"
)

const (
	dailyWindow       = 24 * time.Hour
	monthlyWindow     = 30 * 24 * time.Hour
	hourlyWindow      = time.Hour
	burstWindow       = 5 * time.Minute
	correlationWindow = 30 * 24 * time.Hour
)

// LimitsProvider resolves effective spending limits per card; satisfied by
// card.Service.
type LimitsProvider interface {
	LimitsFor(ctx context.Context, cardID string) card.Limits
}

// Freezer is the card-freeze collaborator invoked when risk crosses the
// freeze threshold.
type Freezer interface {
	Freeze(ctx context.Context, cardID, reason string) error
}

// Engine screens in-flight transactions against blacklists, spending limits,
// velocity, amount patterns, address risk, network thresholds and prior
// suspicious activity.
type Engine struct {
	repo      Repository
	limits    LimitsProvider
	freezer   Freezer
	policy    Policy
	logger    *slog.Logger
	blacklist map[string]struct{}
	now       func() time.Time
}

// NewEngine builds a fraud engine. staticBlacklist seeds an in-memory denial
// set on top of the persisted risk table; freezer may be nil to disable the
// freeze hook.
func NewEngine(repo Repository, limits LimitsProvider, freezer Freezer, policy Policy, logger *slog.Logger, staticBlacklist ...string) *Engine {
	if policy.BlockThreshold <= 0 {
		policy = DefaultPolicy
	}
	denied := make(map[string]struct{}, len(staticBlacklist))
	for _, addr := range staticBlacklist {
		denied[addr] = struct{}{}
	}
	return &Engine{
		repo:      repo,
		limits:    limits,
		freezer:   freezer,
		policy:    policy,
		logger:    logger,
		blacklist: denied,
		now:       time.Now,
	}
}

// ValidateTransaction screens one transaction and returns the scored
// decision. The returned error reports infrastructure failure only; a
// blocked transaction comes back as a result with Valid=false.
func (e *Engine) ValidateTransaction(ctx context.Context, check Check) (ValidationResult, error) {
	if check.CardID == "" || check.FromAddress == "" {
		return ValidationResult{}, fmt.Errorf("card id and from address are required")
	}
	now := e.now().UTC()

	blacklisted, err := e.isBlacklisted(ctx, check.FromAddress, check.ToAddress)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("blacklist lookup: %w", err)
	}
	if blacklisted != "" {
		// Blacklist is the only short-circuiting check.
		result := fold(checkBlacklist(true, blacklisted))
		result.Valid = false
		return result, e.finish(ctx, check, result, now)
	}

	var findings []finding

	limits := e.limits.LimitsFor(ctx, check.CardID)
	dailyTotal, err := e.repo.ConfirmedTotalCents(ctx, check.CardID, now.Add(-dailyWindow))
	if err != nil {
		return ValidationResult{}, fmt.Errorf("daily total: %w", err)
	}
	monthlyTotal, err := e.repo.ConfirmedTotalCents(ctx, check.CardID, now.Add(-monthlyWindow))
	if err != nil {
		return ValidationResult{}, fmt.Errorf("monthly total: %w", err)
	}
	findings = append(findings, checkLimits(check.AmountCents, dailyTotal, monthlyTotal, limits)...)

	hourCount, err := e.repo.TransactionCount(ctx, check.CardID, now.Add(-hourlyWindow))
	if err != nil {
		return ValidationResult{}, fmt.Errorf("hourly count: %w", err)
	}
	burstCount, err := e.repo.TransactionCount(ctx, check.CardID, now.Add(-burstWindow))
	if err != nil {
		return ValidationResult{}, fmt.Errorf("burst count: %w", err)
	}
	findings = append(findings, checkFrequency(hourCount, burstCount, limits.MaxPerHour)...)

	avg, err := e.repo.AverageAmountCents(ctx, check.CardID, now.Add(-monthlyWindow))
	if err != nil {
		return ValidationResult{}, fmt.Errorf("average amount: %w", err)
	}
	findings = append(findings, checkAmountPattern(check.AmountCents, avg)...)

	risk, err := e.repo.GetAddressRisk(ctx, check.FromAddress)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("address risk: %w", err)
	}
	findings = append(findings, checkAddressRisk(risk, check.FromAddress)...)

	findings = append(findings, checkNetworkAmount(check.Network, check.CryptoAmount)...)

	incidents, err := e.repo.SuspiciousIncidentCount(ctx, HashAddress(check.FromAddress), now.Add(-correlationWindow))
	if err != nil {
		return ValidationResult{}, fmt.Errorf("correlation lookup: %w", err)
	}
	findings = append(findings, checkCorrelation(incidents)...)

	result := fold(findings)
	result.Valid = result.RiskScore < e.policy.BlockThreshold

	return result, e.finish(ctx, check, result, now)
}

// UpsertAddressRisk applies an administrative risk level update.
func (e *Engine) UpsertAddressRisk(ctx context.Context, address, level string) error {
	switch level {
	case RiskLow, RiskMedium, RiskHigh, RiskBlacklisted:
	default:
		return fmt.Errorf("unknown risk level %q", level)
	}
	return e.repo.UpsertAddressRisk(ctx, AddressRisk{
		Address:  address,
		Level:    level,
		LastSeen: e.now().UTC(),
	})
}

// isBlacklisted returns the first blacklisted address among the pair, or "".
func (e *Engine) isBlacklisted(ctx context.Context, addresses ...string) (string, error) {
	for _, addr := range addresses {
		if addr == "" {
			continue
		}
		if _, ok := e.blacklist[addr]; ok {
			return addr, nil
		}
		listed, err := e.repo.IsBlacklisted(ctx, addr)
		if err != nil {
			return "", err
		}
		if listed {
			return addr, nil
		}
	}
	return "", nil
}

// finish applies the post-decision side effects: address bookkeeping, audit
// persistence for rejections, and the freeze hook.
func (e *Engine) finish(ctx context.Context, check Check, result ValidationResult, now time.Time) error {
	if err := e.repo.ObserveAddress(ctx, check.FromAddress, check.AmountCents, now); err != nil {
		e.logger.Warn("address bookkeeping failed", slog.String("card_id", check.CardID), slog.Any("error", err))
	}

	if result.Valid {
		return nil
	}

	activity := SuspiciousActivity{
		ID:          uuid.NewString(),
		AddressHash: HashAddress(check.FromAddress),
		CardID:      check.CardID,
		RiskScore:   result.RiskScore,
		Flags:       result.Flags,
		Reasons:     result.Reasons,
		ObservedAt:  now,
	}
	if err := e.repo.RecordSuspiciousActivity(ctx, activity); err != nil {
		return fmt.Errorf("persist suspicious activity: %w", err)
	}

	e.logger.Warn("transaction rejected",
		slog.String("card_id", check.CardID),
		slog.Int("risk_score", result.RiskScore),
		slog.Any("flags", result.Flags))

	if e.freezer != nil && result.RiskScore >= e.policy.FreezeThreshold {
		if err := e.freezer.Freeze(ctx, check.CardID, fmt.Sprintf("risk score %d", result.RiskScore)); err != nil {
			e.logger.Error("card freeze failed", slog.String("card_id", check.CardID), slog.Any("error", err))
		}
	}
	return nil
}

func fold(findings []finding) ValidationResult {
	result := ValidationResult{Valid: true}
	for _, f := range findings {
		result.RiskScore += f.points
		result.Flags = append(result.Flags, f.flag)
		result.Reasons = append(result.Reasons, f.reason)
	}
	return result
}
