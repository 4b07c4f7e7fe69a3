package rates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoHistory indicates no recorded price exists for the symbol.
var ErrNoHistory = errors.New("no price history")

// HistoryStore persists a rolling window of observed prices.
type HistoryStore interface {
	Record(ctx context.Context, quote PriceQuote) error
	Latest(ctx context.Context, symbol string) (PriceQuote, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// PostgresHistory stores price observations in PostgreSQL.
type PostgresHistory struct {
	db *pgxpool.Pool
}

// NewPostgresHistory builds a history store backed by PostgreSQL.
func NewPostgresHistory(db *pgxpool.Pool) *PostgresHistory {
	return &PostgresHistory{db: db}
}

// Record appends one observation.
func (h *PostgresHistory) Record(ctx context.Context, quote PriceQuote) error {
	_, err := h.db.Exec(ctx, `INSERT INTO price_history (id, symbol, usd_price, source, recorded_at)
        VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), quote.Symbol, quote.USDPrice, quote.Source, quote.RecordedAt.UTC())
	return err
}

// Latest returns the most recently recorded price for the symbol.
func (h *PostgresHistory) Latest(ctx context.Context, symbol string) (PriceQuote, error) {
	row := h.db.QueryRow(ctx, `SELECT symbol, usd_price, source, recorded_at
        FROM price_history WHERE symbol = $1 ORDER BY recorded_at DESC LIMIT 1`, symbol)
	var quote PriceQuote
	if err := row.Scan(&quote.Symbol, &quote.USDPrice, &quote.Source, &quote.RecordedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PriceQuote{}, ErrNoHistory
		}
		return PriceQuote{}, fmt.Errorf("latest price %s: %w", symbol, err)
	}
	return quote, nil
}

// Prune drops observations older than the cutoff and reports how many went.
func (h *PostgresHistory) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := h.db.Exec(ctx, `DELETE FROM price_history WHERE recorded_at < $1`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type memoryHistory struct {
	mu     sync.RWMutex
	quotes map[string][]PriceQuote
}

// NewMemoryHistory creates an in-memory history store for tests.
func NewMemoryHistory() HistoryStore {
	return &memoryHistory{quotes: make(map[string][]PriceQuote)}
}

func (h *memoryHistory) Record(_ context.Context, quote PriceQuote) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.quotes[quote.Symbol] = append(h.quotes[quote.Symbol], quote)
	return nil
}

func (h *memoryHistory) Latest(_ context.Context, symbol string) (PriceQuote, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	series := h.quotes[symbol]
	if len(series) == 0 {
		return PriceQuote{}, ErrNoHistory
	}
	latest := series[0]
	for _, q := range series[1:] {
		if q.RecordedAt.After(latest.RecordedAt) {
			latest = q
		}
	}
	return latest, nil
}

func (h *memoryHistory) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var pruned int64
	for symbol, series := range h.quotes {
		kept := series[:0]
		for _, q := range series {
			if q.RecordedAt.Before(olderThan) {
				pruned++
				continue
			}
			kept = append(kept, q)
		}
		h.quotes[symbol] = kept
	}
	return pruned, nil
}
