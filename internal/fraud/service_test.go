package fraud

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardfund/cardfund/internal/card"
	"github.com/cardfund/cardfund/internal/logging"
	"github.com/cardfund/cardfund/internal/network"
)

type staticLimits struct {
	limits card.Limits
}

func (s staticLimits) LimitsFor(_ context.Context, _ string) card.Limits {
	return s.limits
}

type recordingFreezer struct {
	frozen []string
}

func (f *recordingFreezer) Freeze(_ context.Context, cardID, _ string) error {
	f.frozen = append(f.frozen, cardID)
	return nil
}

func newTestEngine(repo *MemoryRepository, limits card.Limits, freezer Freezer) *Engine {
	return NewEngine(repo, staticLimits{limits: limits}, freezer, DefaultPolicy, logging.Discard())
}

func cleanCheck() Check {
	return Check{
		CardID:       "card-1",
		Network:      network.Bitcoin,
		AmountCents:  12_345, // $123.45, nothing round about it
		CryptoAmount: decimal.RequireFromString("0.002"),
		FromAddress:  "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
		ToAddress:    "bc1qrp33g0q5c5txsp9arysrx4k6zdkfs4nce4xj0gdcccefvpysxf3qccfmv3",
	}
}

func TestValidateCleanTransactionOnlyNewAddressRisk(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo, card.DefaultLimits, nil)

	result, err := engine.ValidateTransaction(context.Background(), cleanCheck())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !result.Valid {
		t.Fatalf("clean transaction should pass, score=%d flags=%v", result.RiskScore, result.Flags)
	}
	if result.RiskScore != weightNewAddress {
		t.Fatalf("expected only the new-address baseline %d, got %d (%v)", weightNewAddress, result.RiskScore, result.Flags)
	}
}

func TestBlacklistedAddressAlwaysRejected(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo, card.DefaultLimits, nil)

	check := cleanCheck()
	repo.Blacklist(check.FromAddress)

	result, err := engine.ValidateTransaction(context.Background(), check)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Valid {
		t.Fatal("blacklisted address must be rejected")
	}
	if result.RiskScore != weightBlacklist {
		t.Fatalf("blacklist short-circuits at %d, got %d", weightBlacklist, result.RiskScore)
	}
	if len(result.Flags) != 1 || result.Flags[0] != FlagBlacklistedAddress {
		t.Fatalf("expected only the blacklist flag, got %v", result.Flags)
	}
}

func TestBlacklistedToAddressRejected(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo, card.DefaultLimits, nil)

	check := cleanCheck()
	repo.Blacklist(check.ToAddress)

	result, err := engine.ValidateTransaction(context.Background(), check)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if result.Valid {
		t.Fatal("blacklisted destination must be rejected")
	}
}

func TestRoundAmountPatternFlag(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo, card.DefaultLimits, nil)

	check := cleanCheck()
	check.AmountCents = 200_000 // exactly $2,000

	result, err := engine.ValidateTransaction(context.Background(), check)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !hasFlag(result, FlagRoundAmountPattern) {
		t.Fatalf("expected %s, got %v", FlagRoundAmountPattern, result.Flags)
	}
	if result.RiskScore != weightNewAddress+weightRoundAmount {
		t.Fatalf("score should be the sum of triggered weights, got %d", result.RiskScore)
	}
}

func TestFrequencyLimitEleventhTransaction(t *testing.T) {
	repo := NewMemoryRepository()
	limits := card.DefaultLimits
	limits.MaxPerHour = 10
	engine := newTestEngine(repo, limits, nil)

	now := time.Now().UTC()
	for i := 0; i < 10; i++ {
		repo.SeedTransaction("card-1", 5_000, false, now.Add(-time.Duration(i+1)*6*time.Minute))
	}

	result, err := engine.ValidateTransaction(context.Background(), cleanCheck())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !hasFlag(result, FlagExceedsFrequency) {
		t.Fatalf("11th transaction within the hour should add %s, got %v", FlagExceedsFrequency, result.Flags)
	}
}

func TestRapidSuccessionFlag(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo, card.DefaultLimits, nil)

	now := time.Now().UTC()
	repo.SeedTransaction("card-1", 5_000, false, now.Add(-time.Minute))
	repo.SeedTransaction("card-1", 5_000, false, now.Add(-2*time.Minute))

	result, err := engine.ValidateTransaction(context.Background(), cleanCheck())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !hasFlag(result, FlagRapidSuccession) {
		t.Fatalf("third transaction within five minutes should flag, got %v", result.Flags)
	}
}

func TestLimitFlagsAreAdditive(t *testing.T) {
	repo := NewMemoryRepository()
	limits := card.Limits{SingleCents: 10_000, DailyCents: 20_000, MonthlyCents: 30_000, MaxPerHour: 100}
	engine := newTestEngine(repo, limits, nil)

	now := time.Now().UTC()
	repo.SeedTransaction("card-1", 15_000, true, now.Add(-2*time.Hour))

	check := cleanCheck()
	check.AmountCents = 16_000

	result, err := engine.ValidateTransaction(context.Background(), check)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	for _, flag := range []string{FlagExceedsSingleLimit, FlagExceedsDailyLimit, FlagExceedsMonthlyLimit} {
		if !hasFlag(result, flag) {
			t.Fatalf("expected %s among %v", flag, result.Flags)
		}
	}
	expected := weightSingleLimit + weightDailyLimit + weightMonthlyLimit + weightNewAddress
	if result.RiskScore != expected {
		t.Fatalf("expected additive score %d, got %d", expected, result.RiskScore)
	}
	if result.Valid {
		t.Fatalf("score %d should exceed the block threshold", result.RiskScore)
	}
}

func TestAddressRiskLevels(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo, card.DefaultLimits, nil)
	ctx := context.Background()
	check := cleanCheck()

	if err := engine.UpsertAddressRisk(ctx, check.FromAddress, RiskHigh); err != nil {
		t.Fatalf("upsert risk: %v", err)
	}

	result, err := engine.ValidateTransaction(ctx, check)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !hasFlag(result, FlagHighRiskAddress) {
		t.Fatalf("expected high risk flag, got %v", result.Flags)
	}
	if hasFlag(result, FlagNewAddress) {
		t.Fatal("a known address must not carry the new-address baseline")
	}
}

func TestNetworkLargeAmountThreshold(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo, card.DefaultLimits, nil)

	check := cleanCheck()
	check.CryptoAmount = decimal.RequireFromString("10.5") // > 10 BTC

	result, err := engine.ValidateTransaction(context.Background(), check)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !hasFlag(result, FlagLargeNetworkAmount) {
		t.Fatalf("expected large-amount flag for >10 BTC, got %v", result.Flags)
	}
}

func TestCorrelationAccumulatesAcrossRejections(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo, card.DefaultLimits, nil)
	ctx := context.Background()

	check := cleanCheck()
	if err := engine.UpsertAddressRisk(ctx, check.FromAddress, RiskHigh); err != nil {
		t.Fatalf("upsert risk: %v", err)
	}
	// High risk plus limit breaches pushes past the block threshold and
	// records an incident.
	check.AmountCents = 2_000_000

	first, err := engine.ValidateTransaction(ctx, check)
	if err != nil {
		t.Fatalf("first validate: %v", err)
	}
	if first.Valid {
		t.Fatalf("expected first rejection, score=%d", first.RiskScore)
	}

	second, err := engine.ValidateTransaction(ctx, check)
	if err != nil {
		t.Fatalf("second validate: %v", err)
	}
	if !hasFlag(second, FlagCorrelatedSuspicious) {
		t.Fatalf("expected correlation flag on repeat offender, got %v", second.Flags)
	}
	if second.RiskScore != first.RiskScore+weightPerIncident {
		t.Fatalf("one prior incident should add %d: first=%d second=%d", weightPerIncident, first.RiskScore, second.RiskScore)
	}
}

func TestFreezeHookFiresAboveThreshold(t *testing.T) {
	repo := NewMemoryRepository()
	freezer := &recordingFreezer{}
	engine := newTestEngine(repo, card.DefaultLimits, freezer)

	check := cleanCheck()
	repo.Blacklist(check.FromAddress)

	if _, err := engine.ValidateTransaction(context.Background(), check); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(freezer.frozen) != 1 || freezer.frozen[0] != "card-1" {
		t.Fatalf("expected freeze call for card-1, got %v", freezer.frozen)
	}
}

func hasFlag(result ValidationResult, flag string) bool {
	for _, f := range result.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
