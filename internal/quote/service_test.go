package quote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cardfund/cardfund/internal/logging"
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

func newTestService(prices map[string]string) *Service {
	return NewService(NewMemoryRepository(), NewMemoryCache(), staticRates{prices: prices}, logging.Discard(), 5*time.Minute)
}

func TestCalculateConversionFiftyDollarsBTC(t *testing.T) {
	svc := newTestService(map[string]string{"BTC": "60000"})

	q, err := svc.CalculateConversion(context.Background(), "btc", 5_000, decimal.RequireFromString("0.02"))
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	base := decimal.RequireFromString("50").Div(decimal.RequireFromString("60000"))
	if !q.FromAmount.Equal(base.Add(q.TotalFee)) {
		t.Fatalf("from amount %s should be base %s plus fees %s", q.FromAmount, base, q.TotalFee)
	}
	if q.FromAmount.LessThanOrEqual(base) {
		t.Fatal("fee-inclusive amount must exceed the base amount")
	}
	if q.GuaranteedMinCents != 4_900 {
		t.Fatalf("expected guaranteed min 4900 cents at 2%% slippage, got %d", q.GuaranteedMinCents)
	}
	if got := q.ExpiresAt.Sub(q.CreatedAt); got != 5*time.Minute {
		t.Fatalf("expected 5 minute validity, got %s", got)
	}
	if q.Status != StatusActive {
		t.Fatalf("new quote should be active, got %s", q.Status)
	}
	// Network fee floor for BTC applies on small amounts.
	if q.NetworkFee.LessThan(decimal.RequireFromString("0.0001")) {
		t.Fatalf("network fee %s below the BTC floor", q.NetworkFee)
	}
}

func TestCalculateConversionValidation(t *testing.T) {
	svc := newTestService(map[string]string{"BTC": "60000"})
	ctx := context.Background()

	if _, err := svc.CalculateConversion(ctx, "BTC", 0, decimal.Zero); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("zero target: expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.CalculateConversion(ctx, "BTC", 1000, decimal.RequireFromString("0.06")); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("excess slippage: expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.CalculateConversion(ctx, "DOGE", 1000, decimal.Zero); !errors.Is(err, ErrRateUnavailable) {
		t.Fatalf("unknown asset: expected ErrRateUnavailable, got %v", err)
	}

	q, err := svc.CalculateConversion(ctx, "BTC", 1000, decimal.Zero)
	if err != nil {
		t.Fatalf("default slippage: %v", err)
	}
	if !q.SlippageLimit.Equal(decimal.RequireFromString("0.02")) {
		t.Fatalf("expected default slippage 0.02, got %s", q.SlippageLimit)
	}
}

func TestUseQuoteExactlyOnce(t *testing.T) {
	svc := newTestService(map[string]string{"ETH": "2500"})
	ctx := context.Background()

	q, err := svc.CalculateConversion(ctx, "ETH", 10_000, decimal.Zero)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	if _, err := svc.UseQuote(ctx, q.ID); err != nil {
		t.Fatalf("first use: %v", err)
	}
	if _, err := svc.UseQuote(ctx, q.ID); !errors.Is(err, ErrQuoteNotRedeemable) {
		t.Fatalf("second use: expected ErrQuoteNotRedeemable, got %v", err)
	}
}

func TestUseQuoteConcurrentSingleWinner(t *testing.T) {
	svc := newTestService(map[string]string{"ETH": "2500"})
	ctx := context.Background()

	q, err := svc.CalculateConversion(ctx, "ETH", 10_000, decimal.Zero)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.UseQuote(ctx, q.ID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one successful redemption, got %d", wins)
	}
}

func TestGetQuoteExpires(t *testing.T) {
	svc := newTestService(map[string]string{"BTC": "60000"})
	ctx := context.Background()

	q, err := svc.CalculateConversion(ctx, "BTC", 5_000, decimal.Zero)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	SetClock(svc, func() time.Time { return time.Now().Add(6 * time.Minute) })

	if _, err := svc.GetQuote(ctx, q.ID); !errors.Is(err, ErrQuoteNotRedeemable) {
		t.Fatalf("expected expired quote to be unredeemable, got %v", err)
	}
	if _, err := svc.UseQuote(ctx, q.ID); !errors.Is(err, ErrQuoteNotRedeemable) {
		t.Fatalf("expected expired quote use to fail, got %v", err)
	}
}

func TestCancelQuoteIdempotent(t *testing.T) {
	svc := newTestService(map[string]string{"BTC": "60000"})
	ctx := context.Background()

	q, err := svc.CalculateConversion(ctx, "BTC", 5_000, decimal.Zero)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}

	if err := svc.CancelQuote(ctx, q.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := svc.CancelQuote(ctx, q.ID); err != nil {
		t.Fatalf("second cancel should be a no-op, got %v", err)
	}
	if _, err := svc.UseQuote(ctx, q.ID); !errors.Is(err, ErrQuoteNotRedeemable) {
		t.Fatalf("cancelled quote must not be usable, got %v", err)
	}
}

func TestCompareRatesOrderingIsStable(t *testing.T) {
	svc := newTestService(map[string]string{"BTC": "60000", "ETH": "2500", "USDC": "1"})
	ctx := context.Background()

	first, err := svc.CompareRates(ctx, 100_000, []string{"BTC", "ETH", "USDC"})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	second, err := svc.CompareRates(ctx, 100_000, []string{"BTC", "ETH", "USDC"})
	if err != nil {
		t.Fatalf("compare again: %v", err)
	}

	if len(first.Options) != 3 || len(second.Options) != 3 {
		t.Fatalf("expected 3 options, got %d and %d", len(first.Options), len(second.Options))
	}
	for i := range first.Options {
		if first.Options[i].Asset != second.Options[i].Asset {
			t.Fatalf("ordering changed between identical calls: %v vs %v", first.Options, second.Options)
		}
	}
	if first.BestOption.Asset != first.Options[0].Asset {
		t.Fatal("best option must be the first (cheapest) entry")
	}
	for i := 1; i < len(first.Options); i++ {
		if first.Options[i].Efficiency.LessThan(first.Options[i-1].Efficiency) {
			t.Fatal("options must be sorted by ascending efficiency")
		}
	}
}

func TestCompareRatesSkipsUnpricedAssets(t *testing.T) {
	svc := newTestService(map[string]string{"BTC": "60000"})

	result, err := svc.CompareRates(context.Background(), 100_000, []string{"BTC", "DOGE"})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(result.Options) != 1 || result.Options[0].Asset != "BTC" {
		t.Fatalf("expected only BTC to be priced, got %+v", result.Options)
	}
}
