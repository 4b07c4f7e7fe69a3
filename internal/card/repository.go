package card

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the card does not exist.
var ErrNotFound = errors.New("card not found")

// Repository persists card metadata.
type Repository interface {
	Create(ctx context.Context, c Card) error
	Get(ctx context.Context, id string) (Card, error)
	SetStatus(ctx context.Context, id, status string) error
}

// PostgresRepository stores cards in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a card record.
func (r *PostgresRepository) Create(ctx context.Context, c Card) error {
	cardID, err := uuid.Parse(c.ID)
	if err != nil {
		return err
	}
	var single, daily, monthly *int64
	var perHour *int
	if c.Limits != nil {
		single, daily, monthly = &c.Limits.SingleCents, &c.Limits.DailyCents, &c.Limits.MonthlyCents
		perHour = &c.Limits.MaxPerHour
	}
	_, err = r.db.Exec(ctx, `INSERT INTO cards (id, holder_id, status, single_limit_cents,
        daily_limit_cents, monthly_limit_cents, max_tx_per_hour, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		cardID, c.HolderID, c.Status, single, daily, monthly, perHour, c.CreatedAt.UTC())
	return err
}

// Get fetches card metadata by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Card, error) {
	cardID, err := uuid.Parse(id)
	if err != nil {
		return Card{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT id, holder_id, status, single_limit_cents,
        daily_limit_cents, monthly_limit_cents, max_tx_per_hour, created_at
        FROM cards WHERE id = $1`, cardID)

	var c Card
	var idVal uuid.UUID
	var createdAt time.Time
	var single, daily, monthly *int64
	var perHour *int
	if err := row.Scan(&idVal, &c.HolderID, &c.Status, &single, &daily, &monthly, &perHour, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Card{}, ErrNotFound
		}
		return Card{}, err
	}
	c.ID = idVal.String()
	c.CreatedAt = createdAt.UTC()
	if single != nil && daily != nil && monthly != nil && perHour != nil {
		c.Limits = &Limits{SingleCents: *single, DailyCents: *daily, MonthlyCents: *monthly, MaxPerHour: *perHour}
	}
	return c, nil
}

// SetStatus updates the card's status.
func (r *PostgresRepository) SetStatus(ctx context.Context, id, status string) error {
	cardID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := r.db.Exec(ctx, `UPDATE cards SET status = $2 WHERE id = $1`, cardID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
