package quote

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cardfund/cardfund/internal/rates"
)

var (
	maxSlippage     = decimal.RequireFromString("0.05")
	defaultSlippage = decimal.RequireFromString("0.02")
	oneHundred      = decimal.NewFromInt(100)
)

// RateProvider supplies current USD rates; satisfied by rates.Aggregator.
type RateProvider interface {
	GetRates(ctx context.Context, symbols []string, forceRefresh bool) map[string]rates.Rate
}

// Service issues, redeems and compares slippage-bounded conversion quotes.
type Service struct {
	repo     Repository
	cache    Cache
	provider RateProvider
	logger   *slog.Logger
	validity time.Duration
	now      func() time.Time
}

// NewService builds a quote service. A nil cache disables the fast-lookup
// path without changing semantics.
func NewService(repo Repository, cache Cache, provider RateProvider, logger *slog.Logger, validity time.Duration) *Service {
	if validity <= 0 {
		validity = 5 * time.Minute
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		provider: provider,
		logger:   logger,
		validity: validity,
		now:      time.Now,
	}
}

// CalculateConversion computes the crypto amount (fees included) required to
// reach the USD target, persists the quote with a fixed validity window and
// caches it for redemption. A zero slippage means "use the default".
func (s *Service) CalculateConversion(ctx context.Context, fromAsset string, toUSDCents int64, slippageLimit decimal.Decimal) (ConversionQuote, error) {
	fromAsset = strings.ToUpper(strings.TrimSpace(fromAsset))
	if fromAsset == "" {
		return ConversionQuote{}, fmt.Errorf("%w: from asset is required", ErrInvalidRequest)
	}
	if toUSDCents <= 0 {
		return ConversionQuote{}, fmt.Errorf("%w: target amount must be positive", ErrInvalidRequest)
	}
	if slippageLimit.IsZero() {
		slippageLimit = defaultSlippage
	}
	if slippageLimit.IsNegative() || slippageLimit.GreaterThan(maxSlippage) {
		return ConversionQuote{}, fmt.Errorf("%w: slippage limit must be in (0, 0.05]", ErrInvalidRequest)
	}

	terms, err := s.price(ctx, fromAsset, toUSDCents, false)
	if err != nil {
		return ConversionQuote{}, err
	}

	now := s.now().UTC()
	guaranteedMin := decimal.NewFromInt(toUSDCents).
		Mul(decimal.NewFromInt(1).Sub(slippageLimit)).
		Floor().IntPart()

	q := ConversionQuote{
		ID:                 uuid.NewString(),
		FromAsset:          fromAsset,
		ToAsset:            "USD",
		FromAmount:         terms.fromAmount,
		ToAmountCents:      toUSDCents,
		Rate:               terms.rate,
		SlippageLimit:      slippageLimit,
		NetworkFee:         terms.networkFee,
		ConversionFee:      terms.conversionFee,
		PlatformFee:        terms.platformFee,
		TotalFee:           terms.totalFee,
		GuaranteedMinCents: guaranteedMin,
		Status:             StatusActive,
		ExpiresAt:          now.Add(s.validity),
		CreatedAt:          now,
	}

	if err := s.repo.Create(ctx, q); err != nil {
		return ConversionQuote{}, fmt.Errorf("persist quote: %w", err)
	}
	s.cacheQuote(ctx, q)

	return q, nil
}

// GetQuote returns the quote only while it is active and unexpired, falling
// back from cache to the durable store and re-populating the cache with the
// remaining TTL.
func (s *Service) GetQuote(ctx context.Context, id string) (ConversionQuote, error) {
	now := s.now().UTC()

	if s.cache != nil {
		if q, ok, err := s.cache.GetQuote(ctx, id); err == nil && ok {
			if q.Redeemable(now) {
				return q, nil
			}
			return ConversionQuote{}, ErrQuoteNotRedeemable
		} else if err != nil {
			s.logger.Warn("quote cache read failed", slog.String("quote_id", id), slog.Any("error", err))
		}
	}

	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return ConversionQuote{}, err
	}
	if !q.Redeemable(now) {
		return ConversionQuote{}, ErrQuoteNotRedeemable
	}
	s.cacheQuote(ctx, q)
	return q, nil
}

// UseQuote atomically consumes an active quote. This is the exactly-once
// gate for funding: a second call for the same ID fails.
func (s *Service) UseQuote(ctx context.Context, id string) (ConversionQuote, error) {
	q, err := s.repo.MarkUsed(ctx, id, s.now().UTC())
	if err != nil {
		return ConversionQuote{}, err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, id); err != nil {
			s.logger.Warn("quote cache invalidation failed", slog.String("quote_id", id), slog.Any("error", err))
		}
	}
	return q, nil
}

// CancelQuote expires an active quote; already-terminal quotes are a no-op.
func (s *Service) CancelQuote(ctx context.Context, id string) error {
	if err := s.repo.MarkExpired(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, id); err != nil {
			s.logger.Warn("quote cache invalidation failed", slog.String("quote_id", id), slog.Any("error", err))
		}
	}
	return nil
}

// CompareRates prices the USD target across assets and orders the options by
// cost efficiency (total fee in USD over target), cheapest first. Assets with
// no usable rate are skipped.
func (s *Service) CompareRates(ctx context.Context, targetCents int64, symbols []string) (ComparisonResult, error) {
	if targetCents <= 0 {
		return ComparisonResult{}, fmt.Errorf("%w: target amount must be positive", ErrInvalidRequest)
	}
	if len(symbols) == 0 {
		symbols = []string{"BTC", "ETH", "USDC", "USDT", "XRP"}
	}

	target := centsToUSD(targetCents)
	options := make([]RateComparison, 0, len(symbols))
	for _, raw := range symbols {
		asset := strings.ToUpper(strings.TrimSpace(raw))
		terms, err := s.price(ctx, asset, targetCents, false)
		if err != nil {
			continue
		}
		feeUSD := terms.totalFee.Mul(terms.rate)
		options = append(options, RateComparison{
			Asset:       asset,
			Rate:        terms.rate,
			FromAmount:  terms.fromAmount,
			TotalFeeUSD: feeUSD,
			Efficiency:  feeUSD.Div(target),
		})
	}
	if len(options) == 0 {
		return ComparisonResult{}, ErrRateUnavailable
	}

	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Efficiency.LessThan(options[j].Efficiency)
	})

	return ComparisonResult{
		TargetCents: targetCents,
		Options:     options,
		BestOption:  &options[0],
	}, nil
}

type pricedTerms struct {
	rate          decimal.Decimal
	fromAmount    decimal.Decimal
	networkFee    decimal.Decimal
	conversionFee decimal.Decimal
	platformFee   decimal.Decimal
	totalFee      decimal.Decimal
}

// price resolves a rate and applies the per-asset fee schedule to the base
// crypto amount.
func (s *Service) price(ctx context.Context, asset string, targetCents int64, forceRefresh bool) (pricedTerms, error) {
	resolved := s.provider.GetRates(ctx, []string{asset}, forceRefresh)
	rate, ok := resolved[asset]
	if !ok || rate.USD.IsZero() {
		return pricedTerms{}, fmt.Errorf("%w: %s", ErrRateUnavailable, asset)
	}

	base := centsToUSD(targetCents).Div(rate.USD)
	schedule := ScheduleFor(asset)

	networkFee := base.Mul(schedule.NetworkFeePct)
	if networkFee.LessThan(schedule.NetworkFeeFloor) {
		networkFee = schedule.NetworkFeeFloor
	}
	conversionFee := base.Mul(schedule.ConversionFeePct)
	platformFee := base.Mul(schedule.PlatformFeePct)
	totalFee := networkFee.Add(conversionFee).Add(platformFee)

	return pricedTerms{
		rate:          rate.USD,
		fromAmount:    base.Add(totalFee),
		networkFee:    networkFee,
		conversionFee: conversionFee,
		platformFee:   platformFee,
		totalFee:      totalFee,
	}, nil
}

func (s *Service) cacheQuote(ctx context.Context, q ConversionQuote) {
	if s.cache == nil {
		return
	}
	remaining := time.Until(q.ExpiresAt)
	if err := s.cache.SetQuote(ctx, q, remaining); err != nil {
		s.logger.Warn("quote cache write failed", slog.String("quote_id", q.ID), slog.Any("error", err))
	}
}

func centsToUSD(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(oneHundred)
}
