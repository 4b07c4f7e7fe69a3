package rates

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func TestRedisCacheRoundTripAndExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisCache(client)
	ctx := context.Background()

	rate := Rate{USD: decimal.RequireFromString("60123.45"), LastUpdated: time.Now().UTC().Truncate(time.Second)}
	if err := cache.SetRate(ctx, "BTC", rate, 30*time.Second); err != nil {
		t.Fatalf("set rate: %v", err)
	}

	got, ok, err := cache.GetRate(ctx, "BTC")
	if err != nil {
		t.Fatalf("get rate: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !got.USD.Equal(rate.USD) {
		t.Fatalf("expected %s, got %s", rate.USD, got.USD)
	}

	mr.FastForward(31 * time.Second)

	if _, ok, err := cache.GetRate(ctx, "BTC"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	} else if ok {
		t.Fatal("expected cache miss after TTL")
	}
}

func TestRedisCacheMissOnUnknownSymbol(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := NewRedisCache(client)
	if _, ok, err := cache.GetRate(context.Background(), "DOGE"); err != nil {
		t.Fatalf("get rate: %v", err)
	} else if ok {
		t.Fatal("expected miss for unseen symbol")
	}
}
