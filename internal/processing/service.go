package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cardfund/cardfund/internal/fraud"
	"github.com/cardfund/cardfund/internal/network"
	"github.com/cardfund/cardfund/internal/notification"
	"github.com/cardfund/cardfund/internal/quote"
)

var oneHundred = decimal.NewFromInt(100)

// FraudGate screens deposits before any processing state is persisted;
// satisfied by fraud.Engine.
type FraudGate interface {
	ValidateTransaction(ctx context.Context, check fraud.Check) (fraud.ValidationResult, error)
}

// QuoteIssuer locks conversion terms for a deposit; satisfied by
// quote.Service.
type QuoteIssuer interface {
	CalculateConversion(ctx context.Context, fromAsset string, toUSDCents int64, slippageLimit decimal.Decimal) (quote.ConversionQuote, error)
	UseQuote(ctx context.Context, id string) (quote.ConversionQuote, error)
}

// Service orchestrates a deposit from detection through confirmation to card
// funding.
type Service struct {
	repo       Repository
	gate       FraudGate
	quotes     QuoteIssuer
	provider   quote.RateProvider
	funder     CardFunder
	congestion *CongestionTracker
	notifier   notification.Notifier
	logger     *slog.Logger
	locks      keyedMutex
	now        func() time.Time
}

// NewService wires the processing state machine and its collaborators.
func NewService(repo Repository, gate FraudGate, quotes QuoteIssuer, provider quote.RateProvider,
	funder CardFunder, congestion *CongestionTracker, notifier notification.Notifier, logger *slog.Logger) *Service {
	if funder == nil {
		funder = StaticFunder{}
	}
	if congestion == nil {
		congestion = NewCongestionTracker()
	}
	return &Service{
		repo:       repo,
		gate:       gate,
		quotes:     quotes,
		provider:   provider,
		funder:     funder,
		congestion: congestion,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// DepositInput is a validated deposit event from the upstream chain watcher.
type DepositInput struct {
	TransactionID    string
	CardID           string
	Network          network.Network
	Asset            string
	Amount           decimal.Decimal
	FromAddress      string
	ToAddress        string
	BlockchainTxHash string
	ObservedFee      decimal.Decimal
}

// ProcessDeposit runs the pipeline for one deposit: fraud gate, locked
// quote, fee and completion estimates, then the initial persisted state. A
// failing fraud result aborts before anything is persisted.
func (s *Service) ProcessDeposit(ctx context.Context, input DepositInput) (Processing, error) {
	if input.TransactionID == "" || input.CardID == "" {
		return Processing{}, fmt.Errorf("transaction id and card id are required")
	}
	if !input.Amount.IsPositive() {
		return Processing{}, fmt.Errorf("deposit amount must be positive")
	}

	fromAddr, err := fraud.NormalizeAddress(input.Network, input.FromAddress)
	if err != nil {
		return Processing{}, fmt.Errorf("from address: %w", err)
	}
	toAddr, err := fraud.NormalizeAddress(input.Network, input.ToAddress)
	if err != nil {
		return Processing{}, fmt.Errorf("to address: %w", err)
	}

	resolved := s.provider.GetRates(ctx, []string{input.Asset}, false)
	rate, ok := resolved[input.Asset]
	if !ok || rate.USD.IsZero() {
		return Processing{}, fmt.Errorf("%w: %s", ErrRateUnavailable, input.Asset)
	}
	usdCents := input.Amount.Mul(rate.USD).Mul(oneHundred).Floor().IntPart()
	if usdCents <= 0 {
		return Processing{}, fmt.Errorf("deposit of %s %s is below one cent", input.Amount, input.Asset)
	}

	result, err := s.gate.ValidateTransaction(ctx, fraud.Check{
		CardID:       input.CardID,
		Network:      input.Network,
		AmountCents:  usdCents,
		CryptoAmount: input.Amount,
		FromAddress:  fromAddr,
		ToAddress:    toAddr,
	})
	if err != nil {
		return Processing{}, fmt.Errorf("fraud screening: %w", err)
	}
	if !result.Valid {
		return Processing{}, &fraud.RejectedError{Result: result}
	}

	locked, err := s.quotes.CalculateConversion(ctx, input.Asset, usdCents, decimal.Zero)
	if err != nil {
		return Processing{}, fmt.Errorf("lock conversion quote: %w", err)
	}

	if input.ObservedFee.IsPositive() {
		s.congestion.Observe(input.Network, input.ObservedFee)
	}

	now := s.now().UTC()
	p := Processing{
		ID:                    uuid.NewString(),
		TransactionID:         input.TransactionID,
		CardID:                input.CardID,
		QuoteID:               locked.ID,
		BlockchainTxHash:      input.BlockchainTxHash,
		Network:               input.Network,
		Asset:                 input.Asset,
		CryptoAmount:          input.Amount,
		Status:                StatusInitiated,
		RequiredConfirmations: input.Network.RequiredConfirmations(),
		NetworkFeeEstimate:    s.congestion.EstimateFee(input.Network),
		EstimatedCompletion:   s.congestion.EstimateCompletion(input.Network, now),
		LockedRate:            locked.Rate,
		FundingState:          FundingNone,
		CreatedAt:             now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Processing{}, fmt.Errorf("persist processing record: %w", err)
	}

	// Registered for confirmation updates from here on.
	if _, err := s.repo.TransitionStatus(ctx, p.ID, StatusInitiated, StatusPending); err != nil {
		return Processing{}, err
	}
	p.Status = StatusPending

	s.notify(ctx, p)
	return p, nil
}

// UpdateConfirmationCount consumes a confirmation notification from the
// chain monitor. Counts only ever advance; duplicate and out-of-order
// notifications are no-ops. Crossing the required count confirms and funds
// exactly once.
func (s *Service) UpdateConfirmationCount(ctx context.Context, id string, count int) (Processing, error) {
	if count < 0 {
		return Processing{}, fmt.Errorf("confirmation count must not be negative")
	}

	// The lock covers only the check-and-set sequence, never the funding
	// call that may follow.
	unlock := s.locks.lock(id)

	p, err := s.repo.AdvanceConfirmations(ctx, id, count)
	if err != nil {
		unlock()
		return Processing{}, err
	}
	if p.Terminal() {
		unlock()
		return p, nil
	}

	if p.ConfirmationCount > 0 && p.Status == StatusPending {
		if _, err := s.repo.TransitionStatus(ctx, id, StatusPending, StatusConfirming); err != nil {
			unlock()
			return Processing{}, err
		}
		p.Status = StatusConfirming
		s.notify(ctx, p)
	}

	confirmed := false
	if p.ConfirmationCount >= p.RequiredConfirmations && p.Status == StatusConfirming {
		confirmed, err = s.repo.MarkConfirmed(ctx, id, s.now().UTC())
		if err != nil {
			unlock()
			return Processing{}, err
		}
	}
	unlock()

	if confirmed {
		return s.fund(ctx, id)
	}
	return s.repo.Get(ctx, id)
}

// fund performs the card funding call for the single caller that won the
// confirmed transition. The USD amount comes from the locked rate persisted
// at processing time, never from a fresh rate lookup.
func (s *Service) fund(ctx context.Context, id string) (Processing, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Processing{}, err
	}

	usdCents := p.CryptoAmount.Mul(p.LockedRate).Mul(oneHundred).Floor().IntPart()

	if _, err := s.quotes.UseQuote(ctx, p.QuoteID); err != nil {
		if errors.Is(err, quote.ErrQuoteNotRedeemable) {
			// Confirmation outlived the quote window; the locked rate on the
			// processing row still governs the funding amount.
			s.logger.Warn("quote lapsed before confirmation",
				slog.String("processing_id", p.ID), slog.String("quote_id", p.QuoteID))
		} else {
			s.logger.Error("quote redemption failed",
				slog.String("processing_id", p.ID), slog.Any("error", err))
		}
	}

	decision, err := s.funder.Fund(ctx, p.TransactionID, usdCents)
	if err != nil || !decision.Accepted {
		if stateErr := s.repo.SetFundingState(ctx, p.ID, FundingFailed, usdCents); stateErr != nil {
			s.logger.Error("funding state update failed",
				slog.String("processing_id", p.ID), slog.Any("error", stateErr))
		}
		s.logger.Error("card funding failed",
			slog.String("processing_id", p.ID),
			slog.String("transaction_id", p.TransactionID),
			slog.Any("error", err))
		p, getErr := s.repo.Get(ctx, id)
		if getErr != nil {
			return Processing{}, getErr
		}
		s.notify(ctx, p)
		if err != nil {
			return p, fmt.Errorf("%w: %v", ErrFundingFailed, err)
		}
		return p, ErrFundingFailed
	}

	if err := s.repo.SetFundingState(ctx, p.ID, FundingFunded, usdCents); err != nil {
		return Processing{}, err
	}

	p, err = s.repo.Get(ctx, id)
	if err != nil {
		return Processing{}, err
	}
	s.logger.Info("card funded",
		slog.String("processing_id", p.ID),
		slog.String("card_id", p.CardID),
		slog.Int64("usd_cents", usdCents),
		slog.String("reference", decision.Reference))
	s.notify(ctx, p)
	return p, nil
}

// Get returns the processing record scoped to its owning card.
func (s *Service) Get(ctx context.Context, id, cardID string) (Processing, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Processing{}, err
	}
	if cardID != "" && p.CardID != cardID {
		return Processing{}, ErrNotFound
	}
	return p, nil
}

// AccelerateTransaction offers higher-fee options with proportional time
// savings, but only while the transaction is in flight and the network is
// congested. Low congestion yields an empty list.
func (s *Service) AccelerateTransaction(ctx context.Context, id, cardID string) ([]AccelerationOption, error) {
	p, err := s.Get(ctx, id, cardID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPending && p.Status != StatusConfirming {
		return nil, fmt.Errorf("%w: acceleration requires pending or confirming, have %s", ErrInvalidState, p.Status)
	}

	multiplier := s.congestion.Multiplier(p.Network)
	if multiplier.LessThan(multiplierMedium) {
		return []AccelerationOption{}, nil
	}

	remaining := time.Until(p.EstimatedCompletion)
	if remaining <= 0 {
		remaining = p.Network.BaseConfirmationTime()
	}

	return []AccelerationOption{
		{
			FeeBumpPct:    50,
			Fee:           p.NetworkFeeEstimate.Mul(decimal.RequireFromString("1.5")),
			EstimatedTime: remaining * 2 / 3,
		},
		{
			FeeBumpPct:    100,
			Fee:           p.NetworkFeeEstimate.Mul(decimal.NewFromInt(2)),
			EstimatedTime: remaining / 2,
		},
	}, nil
}

// FailTransaction marks a non-terminal record failed on operator action or
// external error.
func (s *Service) FailTransaction(ctx context.Context, id, reason string) (Processing, error) {
	return s.terminate(ctx, id, StatusFailed, reason)
}

// RefundTransaction marks a non-terminal record refunded.
func (s *Service) RefundTransaction(ctx context.Context, id, reason string) (Processing, error) {
	return s.terminate(ctx, id, StatusRefunded, reason)
}

func (s *Service) terminate(ctx context.Context, id, terminal, reason string) (Processing, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	for _, from := range []string{StatusInitiated, StatusPending, StatusConfirming} {
		ok, err := s.repo.TransitionStatus(ctx, id, from, terminal)
		if err != nil {
			return Processing{}, err
		}
		if ok {
			p, err := s.repo.Get(ctx, id)
			if err != nil {
				return Processing{}, err
			}
			s.logger.Info("processing terminated",
				slog.String("processing_id", id),
				slog.String("status", terminal),
				slog.String("reason", reason))
			s.notify(ctx, p)
			return p, nil
		}
	}

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return Processing{}, err
	}
	return Processing{}, fmt.Errorf("%w: %s is already %s", ErrInvalidState, id, p.Status)
}

func (s *Service) notify(ctx context.Context, p Processing) {
	if s.notifier == nil {
		return
	}
	body := fmt.Sprintf("deposit %s is %s (%d/%d confirmations)",
		p.TransactionID, p.Status, p.ConfirmationCount, p.RequiredConfirmations)
	if p.FundingState == FundingFailed {
		body = fmt.Sprintf("deposit %s confirmed but funding failed; manual reconciliation required", p.TransactionID)
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:   notification.KindProcessingUpdate,
		CardID: p.CardID,
		Body:   body,
	})
}

// keyedMutex serializes state transitions per processing ID.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entityLock
}

type entityLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*entityLock)
	}
	l, ok := k.locks[id]
	if !ok {
		l = &entityLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
