package card

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service exposes card metadata operations consumed by the fraud engine and
// risk policy.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds a card service instance.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateInput captures data required to register a card.
type CreateInput struct {
	HolderID string
	Limits   *Limits
}

// Create registers a card, optionally with per-card limit overrides.
func (s *Service) Create(ctx context.Context, input CreateInput) (Card, error) {
	if input.HolderID == "" {
		return Card{}, fmt.Errorf("holder id is required")
	}
	if input.Limits != nil {
		l := input.Limits
		if l.SingleCents <= 0 || l.DailyCents <= 0 || l.MonthlyCents <= 0 || l.MaxPerHour <= 0 {
			return Card{}, fmt.Errorf("limit overrides must be positive")
		}
	}

	c := Card{
		ID:        uuid.NewString(),
		HolderID:  input.HolderID,
		Status:    StatusActive,
		Limits:    input.Limits,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Card{}, err
	}
	return c, nil
}

// Get retrieves card metadata.
func (s *Service) Get(ctx context.Context, id string) (Card, error) {
	return s.repo.Get(ctx, id)
}

// LimitsFor resolves the effective limits for a card. Unknown cards fall
// back to the system defaults so a missing metadata row cannot disable the
// spending checks.
func (s *Service) LimitsFor(ctx context.Context, id string) Limits {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return DefaultLimits
	}
	return c.EffectiveLimits()
}

// Freeze blocks the card. Invoked by the risk policy when the fraud score
// crosses the freeze threshold.
func (s *Service) Freeze(ctx context.Context, id, reason string) error {
	if err := s.repo.SetStatus(ctx, id, StatusFrozen); err != nil {
		return err
	}
	s.logger.Warn("card frozen", slog.String("card_id", id), slog.String("reason", reason))
	return nil
}
