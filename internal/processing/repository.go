package processing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardfund/cardfund/internal/network"
)

// Repository persists processing records. Confirmation updates only ever
// advance the stored count, and MarkConfirmed succeeds for at most one
// caller per record.
type Repository interface {
	Create(ctx context.Context, p Processing) error
	Get(ctx context.Context, id string) (Processing, error)
	AdvanceConfirmations(ctx context.Context, id string, count int) (Processing, error)
	TransitionStatus(ctx context.Context, id, from, to string) (bool, error)
	MarkConfirmed(ctx context.Context, id string, completedAt time.Time) (bool, error)
	SetFundingState(ctx context.Context, id, state string, fundedCents int64) error
}

// PostgresRepository stores processing records in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const processingColumns = `id, transaction_id, card_id, quote_id, blockchain_tx_hash, network, asset,
        crypto_amount, status, confirmation_count, required_confirmations, network_fee_estimate,
        estimated_completion, locked_rate, funded_usd_cents, funding_state, created_at, completed_at`

// Create inserts a processing record.
func (r *PostgresRepository) Create(ctx context.Context, p Processing) error {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO crypto_processing (`+processingColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		id, p.TransactionID, p.CardID, p.QuoteID, p.BlockchainTxHash, string(p.Network), p.Asset,
		p.CryptoAmount, p.Status, p.ConfirmationCount, p.RequiredConfirmations, p.NetworkFeeEstimate,
		p.EstimatedCompletion.UTC(), p.LockedRate, p.FundedUSDCents, p.FundingState, p.CreatedAt.UTC(), p.CompletedAt)
	return err
}

// Get fetches a processing record by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Processing, error) {
	procID, err := uuid.Parse(id)
	if err != nil {
		return Processing{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+processingColumns+` FROM crypto_processing WHERE id = $1`, procID)
	return scanProcessing(row)
}

// AdvanceConfirmations applies an only-advance update to the confirmation
// count and returns the current row. Smaller or duplicate counts leave the
// stored value untouched.
func (r *PostgresRepository) AdvanceConfirmations(ctx context.Context, id string, count int) (Processing, error) {
	procID, err := uuid.Parse(id)
	if err != nil {
		return Processing{}, ErrNotFound
	}
	_, err = r.db.Exec(ctx, `UPDATE crypto_processing SET confirmation_count = $2
        WHERE id = $1 AND confirmation_count < $2 AND status NOT IN ($3, $4)`,
		procID, count, StatusFailed, StatusRefunded)
	if err != nil {
		return Processing{}, err
	}
	return r.Get(ctx, id)
}

// TransitionStatus performs a compare-and-swap status change.
func (r *PostgresRepository) TransitionStatus(ctx context.Context, id, from, to string) (bool, error) {
	procID, err := uuid.Parse(id)
	if err != nil {
		return false, ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE crypto_processing SET status = $3
        WHERE id = $1 AND status = $2`, procID, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkConfirmed transitions confirming to confirmed exactly once.
func (r *PostgresRepository) MarkConfirmed(ctx context.Context, id string, completedAt time.Time) (bool, error) {
	procID, err := uuid.Parse(id)
	if err != nil {
		return false, ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE crypto_processing SET status = $2, completed_at = $3
        WHERE id = $1 AND status = $4`, procID, StatusConfirmed, completedAt.UTC(), StatusConfirming)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetFundingState records the outcome of the card funding call.
func (r *PostgresRepository) SetFundingState(ctx context.Context, id, state string, fundedCents int64) error {
	procID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	_, err = r.db.Exec(ctx, `UPDATE crypto_processing SET funding_state = $2, funded_usd_cents = $3
        WHERE id = $1`, procID, state, fundedCents)
	return err
}

func scanProcessing(row pgx.Row) (Processing, error) {
	var p Processing
	var id uuid.UUID
	var networkName string
	var estimatedCompletion, createdAt time.Time
	var completedAt *time.Time
	err := row.Scan(&id, &p.TransactionID, &p.CardID, &p.QuoteID, &p.BlockchainTxHash, &networkName, &p.Asset,
		&p.CryptoAmount, &p.Status, &p.ConfirmationCount, &p.RequiredConfirmations, &p.NetworkFeeEstimate,
		&estimatedCompletion, &p.LockedRate, &p.FundedUSDCents, &p.FundingState, &createdAt, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Processing{}, ErrNotFound
		}
		return Processing{}, err
	}
	p.ID = id.String()
	p.Network = networkFromString(networkName)
	p.EstimatedCompletion = estimatedCompletion.UTC()
	p.CreatedAt = createdAt.UTC()
	p.CompletedAt = completedAt
	return p, nil
}

func networkFromString(raw string) network.Network {
	n, err := network.Parse(raw)
	if err != nil {
		return network.Network(raw)
	}
	return n
}
