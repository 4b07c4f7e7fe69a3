package fraud

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository supplies the persisted signals the engine folds into a score.
// All card-scoped reads are keyed by the owning card.
type Repository interface {
	IsBlacklisted(ctx context.Context, address string) (bool, error)
	GetAddressRisk(ctx context.Context, address string) (*AddressRisk, error)
	UpsertAddressRisk(ctx context.Context, risk AddressRisk) error
	ObserveAddress(ctx context.Context, address string, amountCents int64, at time.Time) error

	ConfirmedTotalCents(ctx context.Context, cardID string, since time.Time) (int64, error)
	TransactionCount(ctx context.Context, cardID string, since time.Time) (int, error)
	AverageAmountCents(ctx context.Context, cardID string, since time.Time) (int64, error)

	RecordSuspiciousActivity(ctx context.Context, activity SuspiciousActivity) error
	SuspiciousIncidentCount(ctx context.Context, addressHash string, since time.Time) (int, error)
}

// PostgresRepository reads fraud signals from PostgreSQL. Spending and
// frequency aggregates come from the crypto_processing table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// IsBlacklisted reports whether the address carries a blacklisted risk level.
func (r *PostgresRepository) IsBlacklisted(ctx context.Context, address string) (bool, error) {
	var level string
	err := r.db.QueryRow(ctx, `SELECT level FROM address_risk WHERE address = $1`, address).Scan(&level)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return level == RiskBlacklisted, nil
}

// GetAddressRisk fetches the stored assessment; nil when the address is
// unseen.
func (r *PostgresRepository) GetAddressRisk(ctx context.Context, address string) (*AddressRisk, error) {
	row := r.db.QueryRow(ctx, `SELECT address, level, transaction_count, total_amount_cents, last_seen
        FROM address_risk WHERE address = $1`, address)
	var risk AddressRisk
	var lastSeen time.Time
	if err := row.Scan(&risk.Address, &risk.Level, &risk.TransactionCount, &risk.TotalAmountCents, &lastSeen); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	risk.LastSeen = lastSeen.UTC()
	return &risk, nil
}

// UpsertAddressRisk applies an administrative risk update.
func (r *PostgresRepository) UpsertAddressRisk(ctx context.Context, risk AddressRisk) error {
	_, err := r.db.Exec(ctx, `INSERT INTO address_risk (address, level, transaction_count, total_amount_cents, last_seen)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (address) DO UPDATE SET level = EXCLUDED.level, last_seen = EXCLUDED.last_seen`,
		risk.Address, risk.Level, risk.TransactionCount, risk.TotalAmountCents, risk.LastSeen.UTC())
	return err
}

// ObserveAddress bumps the address's usage counters after a validation.
func (r *PostgresRepository) ObserveAddress(ctx context.Context, address string, amountCents int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `INSERT INTO address_risk (address, level, transaction_count, total_amount_cents, last_seen)
        VALUES ($1, $2, 1, $3, $4)
        ON CONFLICT (address) DO UPDATE SET
            transaction_count = address_risk.transaction_count + 1,
            total_amount_cents = address_risk.total_amount_cents + EXCLUDED.total_amount_cents,
            last_seen = EXCLUDED.last_seen`,
		address, RiskLow, amountCents, at.UTC())
	return err
}

// ConfirmedTotalCents sums confirmed transactions for the card since the
// window start.
func (r *PostgresRepository) ConfirmedTotalCents(ctx context.Context, cardID string, since time.Time) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(funded_usd_cents), 0) FROM crypto_processing
        WHERE card_id = $1 AND status = 'confirmed' AND created_at >= $2`, cardID, since.UTC()).Scan(&total)
	return total, err
}

// TransactionCount counts transactions attempted for the card since the
// window start, regardless of outcome.
func (r *PostgresRepository) TransactionCount(ctx context.Context, cardID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM crypto_processing
        WHERE card_id = $1 AND created_at >= $2`, cardID, since.UTC()).Scan(&count)
	return count, err
}

// AverageAmountCents is the card's average confirmed amount in the window.
func (r *PostgresRepository) AverageAmountCents(ctx context.Context, cardID string, since time.Time) (int64, error) {
	var avg int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(AVG(funded_usd_cents), 0)::bigint FROM crypto_processing
        WHERE card_id = $1 AND status = 'confirmed' AND created_at >= $2`, cardID, since.UTC()).Scan(&avg)
	return avg, err
}

// RecordSuspiciousActivity persists the audit row for a rejected
// transaction, keyed by the hashed address.
func (r *PostgresRepository) RecordSuspiciousActivity(ctx context.Context, activity SuspiciousActivity) error {
	id, err := uuid.Parse(activity.ID)
	if err != nil {
		id = uuid.New()
	}
	_, err = r.db.Exec(ctx, `INSERT INTO suspicious_activity (id, address_hash, card_id, risk_score, flags, reasons, observed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, activity.AddressHash, activity.CardID, activity.RiskScore, activity.Flags, activity.Reasons, activity.ObservedAt.UTC())
	return err
}

// SuspiciousIncidentCount counts prior audit rows for the hashed address in
// the lookback window.
func (r *PostgresRepository) SuspiciousIncidentCount(ctx context.Context, addressHash string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM suspicious_activity
        WHERE address_hash = $1 AND observed_at >= $2`, addressHash, since.UTC()).Scan(&count)
	return count, err
}
