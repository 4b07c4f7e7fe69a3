package card

import (
	"context"
	"testing"

	"github.com/cardfund/cardfund/internal/logging"
)

func TestCreateValidatesLimits(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{}); err == nil {
		t.Fatal("missing holder id must fail")
	}
	if _, err := svc.Create(ctx, CreateInput{HolderID: "h1", Limits: &Limits{SingleCents: -1}}); err == nil {
		t.Fatal("negative limit override must fail")
	}

	c, err := svc.Create(ctx, CreateInput{HolderID: "h1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != StatusActive {
		t.Fatalf("new card should be active, got %s", c.Status)
	}
}

func TestLimitsForFallsBackToDefaults(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	if got := svc.LimitsFor(ctx, "missing"); got != DefaultLimits {
		t.Fatalf("unknown card must use defaults, got %+v", got)
	}

	override := Limits{SingleCents: 1, DailyCents: 2, MonthlyCents: 3, MaxPerHour: 4}
	c, err := svc.Create(ctx, CreateInput{HolderID: "h1", Limits: &override})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := svc.LimitsFor(ctx, c.ID); got != override {
		t.Fatalf("override not applied, got %+v", got)
	}
}

func TestFreezeBlocksCard(t *testing.T) {
	svc := NewService(NewMemoryRepository(), logging.Discard())
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateInput{HolderID: "h1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Freeze(ctx, c.ID, "risk score 100"); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	frozen, err := svc.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if frozen.Status != StatusFrozen {
		t.Fatalf("expected frozen, got %s", frozen.Status)
	}
}
