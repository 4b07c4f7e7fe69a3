package processing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardfund/cardfund/internal/fraud"
	"github.com/cardfund/cardfund/internal/logging"
	"github.com/cardfund/cardfund/internal/network"
	"github.com/cardfund/cardfund/internal/quote"
	"github.com/cardfund/cardfund/internal/rates"
)

type staticRates struct {
	prices map[string]string
}

func (s staticRates) GetRates(_ context.Context, symbols []string, _ bool) map[string]rates.Rate {
	out := make(map[string]rates.Rate)
	for _, symbol := range symbols {
		if v, ok := s.prices[symbol]; ok {
			out[symbol] = rates.Rate{USD: decimal.RequireFromString(v), LastUpdated: time.Now().UTC()}
		}
	}
	return out
}

type stubGate struct {
	result fraud.ValidationResult
}

func (g stubGate) ValidateTransaction(_ context.Context, _ fraud.Check) (fraud.ValidationResult, error) {
	return g.result, nil
}

type recordingFunder struct {
	mu     sync.Mutex
	accept bool
	calls  []int64
}

func (f *recordingFunder) Fund(_ context.Context, _ string, usdCents int64) (FundingDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, usdCents)
	return FundingDecision{Reference: "ref-1", Accepted: f.accept}, nil
}

func (f *recordingFunder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type countingRepo struct {
	Repository
	mu      sync.Mutex
	creates int
}

func (r *countingRepo) Create(ctx context.Context, p Processing) error {
	r.mu.Lock()
	r.creates++
	r.mu.Unlock()
	return r.Repository.Create(ctx, p)
}

type fixture struct {
	svc     *Service
	repo    *countingRepo
	funder  *recordingFunder
	quotes  *quote.Service
	tracker *CongestionTracker
}

func newFixture(gate FraudGate, accept bool) *fixture {
	provider := staticRates{prices: map[string]string{"BTC": "60000", "XRP": "0.50"}}
	quotes := quote.NewService(quote.NewMemoryRepository(), quote.NewMemoryCache(), provider, logging.Discard(), 5*time.Minute)
	funder := &recordingFunder{accept: accept}
	tracker := NewCongestionTracker()
	repo := &countingRepo{Repository: NewMemoryRepository()}
	svc := NewService(repo, gate, quotes, provider, funder, tracker, nil, logging.Discard())
	return &fixture{svc: svc, repo: repo, funder: funder, quotes: quotes, tracker: tracker}
}

func approvingGate() stubGate {
	return stubGate{result: fraud.ValidationResult{Valid: true, RiskScore: 10}}
}

func btcDeposit(txID string) DepositInput {
	return DepositInput{
		TransactionID:    txID,
		CardID:           "card-1",
		Network:          network.Bitcoin,
		Asset:            "BTC",
		Amount:           decimal.RequireFromString("0.001"),
		FromAddress:      "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		ToAddress:        "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
		BlockchainTxHash: "f4184fc596403b9d638783cf57adfe4c",
	}
}

func TestProcessDepositLocksRateAndRegisters(t *testing.T) {
	fx := newFixture(approvingGate(), true)

	p, err := fx.svc.ProcessDeposit(context.Background(), btcDeposit("tx-1"))
	if err != nil {
		t.Fatalf("process deposit: %v", err)
	}

	if p.Status != StatusPending {
		t.Fatalf("expected pending after registration, got %s", p.Status)
	}
	if p.RequiredConfirmations != 3 {
		t.Fatalf("bitcoin requires 3 confirmations, got %d", p.RequiredConfirmations)
	}
	if p.QuoteID == "" {
		t.Fatal("deposit must carry a locked quote")
	}
	if !p.LockedRate.Equal(decimal.RequireFromString("60000")) {
		t.Fatalf("locked rate should be 60000, got %s", p.LockedRate)
	}
	if p.FundingState != FundingNone {
		t.Fatalf("new deposit should be unfunded, got %s", p.FundingState)
	}
	if p.NetworkFeeEstimate.IsZero() {
		t.Fatal("fee estimate must be populated")
	}
	if !p.EstimatedCompletion.After(p.CreatedAt) {
		t.Fatal("estimated completion must lie in the future")
	}

	q, err := fx.quotes.GetQuote(context.Background(), p.QuoteID)
	if err != nil {
		t.Fatalf("locked quote lookup: %v", err)
	}
	if q.Status != quote.StatusActive {
		t.Fatalf("locked quote should still be active, got %s", q.Status)
	}
}

func TestProcessDepositFraudRejectionPersistsNothing(t *testing.T) {
	gate := stubGate{result: fraud.ValidationResult{
		Valid:     false,
		RiskScore: 100,
		Flags:     []string{fraud.FlagBlacklistedAddress},
	}}
	fx := newFixture(gate, true)

	_, err := fx.svc.ProcessDeposit(context.Background(), btcDeposit("tx-blocked"))
	var rejected *fraud.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.Result.RiskScore != 100 {
		t.Fatalf("expected score 100, got %d", rejected.Result.RiskScore)
	}
	if fx.repo.creates != 0 {
		t.Fatalf("rejected deposit must not be persisted, saw %d creates", fx.repo.creates)
	}
	if fx.funder.count() != 0 {
		t.Fatal("rejected deposit must never reach the funder")
	}
}

func TestProcessDepositRateUnavailable(t *testing.T) {
	fx := newFixture(approvingGate(), true)

	input := btcDeposit("tx-unpriced")
	input.Asset = "DOGE"
	if _, err := fx.svc.ProcessDeposit(context.Background(), input); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("expected ErrRateUnavailable, got %v", err)
	}
}

func TestConfirmationsAdvanceOutOfOrder(t *testing.T) {
	fx := newFixture(approvingGate(), true)
	ctx := context.Background()

	p, err := fx.svc.ProcessDeposit(ctx, btcDeposit("tx-ooo"))
	if err != nil {
		t.Fatalf("process deposit: %v", err)
	}

	p, err = fx.svc.UpdateConfirmationCount(ctx, p.ID, 1)
	if err != nil {
		t.Fatalf("first confirmation: %v", err)
	}
	if p.Status != StatusConfirming || p.ConfirmationCount != 1 {
		t.Fatalf("expected confirming/1, got %s/%d", p.Status, p.ConfirmationCount)
	}

	p, err = fx.svc.UpdateConfirmationCount(ctx, p.ID, 3)
	if err != nil {
		t.Fatalf("threshold confirmation: %v", err)
	}
	if p.Status != StatusConfirmed {
		t.Fatalf("expected confirmed at 3/3, got %s", p.Status)
	}
	if p.CompletedAt == nil {
		t.Fatal("confirmed record must carry a completion time")
	}
	if p.FundingState != FundingFunded {
		t.Fatalf("expected funded, got %s", p.FundingState)
	}
	if p.FundedUSDCents != 6_000 {
		t.Fatalf("0.001 BTC at 60000 should fund 6000 cents, got %d", p.FundedUSDCents)
	}

	// A late, lower count arrives after confirmation.
	p, err = fx.svc.UpdateConfirmationCount(ctx, p.ID, 2)
	if err != nil {
		t.Fatalf("late confirmation: %v", err)
	}
	if p.ConfirmationCount != 3 || p.Status != StatusConfirmed {
		t.Fatalf("late count must not regress state, got %s/%d", p.Status, p.ConfirmationCount)
	}
	if fx.funder.count() != 1 {
		t.Fatalf("funding must happen exactly once, saw %d calls", fx.funder.count())
	}

	q, err := fx.quotes.GetQuote(ctx, p.QuoteID)
	if err != nil {
		t.Fatalf("quote after funding: %v", err)
	}
	if q.Status != quote.StatusUsed {
		t.Fatalf("locked quote should be redeemed on funding, got %s", q.Status)
	}
}

func TestConcurrentConfirmationsFundOnce(t *testing.T) {
	fx := newFixture(approvingGate(), true)
	ctx := context.Background()

	p, err := fx.svc.ProcessDeposit(ctx, btcDeposit("tx-race"))
	if err != nil {
		t.Fatalf("process deposit: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = fx.svc.UpdateConfirmationCount(ctx, p.ID, 3)
		}()
	}
	wg.Wait()

	final, err := fx.svc.Get(ctx, p.ID, "card-1")
	if err != nil {
		t.Fatalf("final lookup: %v", err)
	}
	if final.Status != StatusConfirmed || final.FundingState != FundingFunded {
		t.Fatalf("expected confirmed/funded, got %s/%s", final.Status, final.FundingState)
	}
	if fx.funder.count() != 1 {
		t.Fatalf("concurrent confirmations must fund exactly once, saw %d calls", fx.funder.count())
	}
}

func TestFundingFailureLeavesReconciliationState(t *testing.T) {
	fx := newFixture(approvingGate(), false)
	ctx := context.Background()

	p, err := fx.svc.ProcessDeposit(ctx, btcDeposit("tx-declined"))
	if err != nil {
		t.Fatalf("process deposit: %v", err)
	}

	_, err = fx.svc.UpdateConfirmationCount(ctx, p.ID, 3)
	if !errors.Is(err, ErrFundingFailed) {
		t.Fatalf("expected ErrFundingFailed, got %v", err)
	}

	final, err := fx.svc.Get(ctx, p.ID, "")
	if err != nil {
		t.Fatalf("final lookup: %v", err)
	}
	if final.Status != StatusConfirmed {
		t.Fatalf("declined funding must not undo confirmation, got %s", final.Status)
	}
	if final.FundingState != FundingFailed {
		t.Fatalf("expected funded_failed for reconciliation, got %s", final.FundingState)
	}
	if final.FundedUSDCents != 6_000 {
		t.Fatalf("attempted amount should be recorded, got %d", final.FundedUSDCents)
	}
}

func TestAccelerationRequiresCongestion(t *testing.T) {
	fx := newFixture(approvingGate(), true)
	ctx := context.Background()

	p, err := fx.svc.ProcessDeposit(ctx, btcDeposit("tx-slow"))
	if err != nil {
		t.Fatalf("process deposit: %v", err)
	}

	options, err := fx.svc.AccelerateTransaction(ctx, p.ID, "card-1")
	if err != nil {
		t.Fatalf("accelerate uncongested: %v", err)
	}
	if len(options) != 0 {
		t.Fatalf("uncongested network must offer no options, got %d", len(options))
	}

	// Fees running well above the bitcoin baseline push congestion to high.
	for i := 0; i < 10; i++ {
		fx.tracker.Observe(network.Bitcoin, decimal.RequireFromString("0.0005"))
	}

	options, err = fx.svc.AccelerateTransaction(ctx, p.ID, "card-1")
	if err != nil {
		t.Fatalf("accelerate congested: %v", err)
	}
	if len(options) != 2 {
		t.Fatalf("expected two fee-bump options, got %d", len(options))
	}
	if options[0].FeeBumpPct != 50 || options[1].FeeBumpPct != 100 {
		t.Fatalf("expected 50%% and 100%% bumps, got %d and %d", options[0].FeeBumpPct, options[1].FeeBumpPct)
	}
	if !options[1].Fee.Equal(p.NetworkFeeEstimate.Mul(decimal.NewFromInt(2))) {
		t.Fatalf("100%% bump should double the fee estimate, got %s", options[1].Fee)
	}
	if options[1].EstimatedTime >= options[0].EstimatedTime {
		t.Fatal("the larger bump must promise the shorter time")
	}

	if _, err := fx.svc.AccelerateTransaction(ctx, p.ID, "other-card"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign card must not see the record, got %v", err)
	}
}

func TestAccelerationRejectedAfterConfirmation(t *testing.T) {
	fx := newFixture(approvingGate(), true)
	ctx := context.Background()

	p, err := fx.svc.ProcessDeposit(ctx, btcDeposit("tx-done"))
	if err != nil {
		t.Fatalf("process deposit: %v", err)
	}
	if _, err := fx.svc.UpdateConfirmationCount(ctx, p.ID, 3); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	if _, err := fx.svc.AccelerateTransaction(ctx, p.ID, "card-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on confirmed record, got %v", err)
	}
}

func TestFailAndRefundTransitions(t *testing.T) {
	fx := newFixture(approvingGate(), true)
	ctx := context.Background()

	p, err := fx.svc.ProcessDeposit(ctx, btcDeposit("tx-fail"))
	if err != nil {
		t.Fatalf("process deposit: %v", err)
	}

	failed, err := fx.svc.FailTransaction(ctx, p.ID, "monitor timeout")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if failed.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}

	if _, err := fx.svc.RefundTransaction(ctx, p.ID, "already failed"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("terminal record must reject further transitions, got %v", err)
	}

	// Confirmations arriving after failure are ignored.
	after, err := fx.svc.UpdateConfirmationCount(ctx, p.ID, 3)
	if err != nil {
		t.Fatalf("confirmation after failure: %v", err)
	}
	if after.Status != StatusFailed || after.ConfirmationCount != 0 {
		t.Fatalf("failed record must not advance, got %s/%d", after.Status, after.ConfirmationCount)
	}
	if fx.funder.count() != 0 {
		t.Fatal("failed record must never fund")
	}
}
