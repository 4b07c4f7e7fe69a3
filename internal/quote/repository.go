package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists conversion quotes. MarkUsed and MarkExpired are
// storage-level compare-and-swap operations: MarkUsed succeeds for at most
// one caller per quote.
type Repository interface {
	Create(ctx context.Context, q ConversionQuote) error
	Get(ctx context.Context, id string) (ConversionQuote, error)
	MarkUsed(ctx context.Context, id string, now time.Time) (ConversionQuote, error)
	MarkExpired(ctx context.Context, id string) error
}

// PostgresRepository stores quotes in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const quoteColumns = `id, from_asset, to_asset, from_amount, to_amount_cents, rate,
        slippage_limit, network_fee, conversion_fee, platform_fee, total_fee,
        guaranteed_min_cents, status, expires_at, created_at`

// Create inserts a quote record.
func (r *PostgresRepository) Create(ctx context.Context, q ConversionQuote) error {
	id, err := uuid.Parse(q.ID)
	if err != nil {
		return fmt.Errorf("parse quote id: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO conversion_quotes (`+quoteColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		id, q.FromAsset, q.ToAsset, q.FromAmount, q.ToAmountCents, q.Rate,
		q.SlippageLimit, q.NetworkFee, q.ConversionFee, q.PlatformFee, q.TotalFee,
		q.GuaranteedMinCents, q.Status, q.ExpiresAt.UTC(), q.CreatedAt.UTC())
	return err
}

// Get fetches a quote by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (ConversionQuote, error) {
	quoteID, err := uuid.Parse(id)
	if err != nil {
		return ConversionQuote{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+quoteColumns+` FROM conversion_quotes WHERE id = $1`, quoteID)
	return scanQuote(row)
}

// MarkUsed atomically transitions an active, unexpired quote to used. The
// conditional UPDATE guarantees at-most-once redemption under concurrent
// funding attempts.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id string, now time.Time) (ConversionQuote, error) {
	quoteID, err := uuid.Parse(id)
	if err != nil {
		return ConversionQuote{}, ErrQuoteNotRedeemable
	}
	row := r.db.QueryRow(ctx, `UPDATE conversion_quotes SET status = $2
        WHERE id = $1 AND status = $3 AND expires_at > $4
        RETURNING `+quoteColumns,
		quoteID, StatusUsed, StatusActive, now.UTC())
	q, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ConversionQuote{}, ErrQuoteNotRedeemable
		}
		return ConversionQuote{}, err
	}
	return q, nil
}

// MarkExpired transitions an active quote to expired; a no-op when the quote
// is already terminal or missing.
func (r *PostgresRepository) MarkExpired(ctx context.Context, id string) error {
	quoteID, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	_, err = r.db.Exec(ctx, `UPDATE conversion_quotes SET status = $2
        WHERE id = $1 AND status = $3`, quoteID, StatusExpired, StatusActive)
	return err
}

func scanQuote(row pgx.Row) (ConversionQuote, error) {
	var q ConversionQuote
	var id uuid.UUID
	var expiresAt, createdAt time.Time
	err := row.Scan(&id, &q.FromAsset, &q.ToAsset, &q.FromAmount, &q.ToAmountCents, &q.Rate,
		&q.SlippageLimit, &q.NetworkFee, &q.ConversionFee, &q.PlatformFee, &q.TotalFee,
		&q.GuaranteedMinCents, &q.Status, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConversionQuote{}, ErrNotFound
		}
		return ConversionQuote{}, err
	}
	q.ID = id.String()
	q.ExpiresAt = expiresAt.UTC()
	q.CreatedAt = createdAt.UTC()
	return q, nil
}
