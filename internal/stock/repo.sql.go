package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmaflow/pharmaflow/internal/platform/db"
	"github.com/pharmaflow/pharmaflow/internal/shared"
)

// Repository persists stock movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetQuantityForUpdate(ctx context.Context, medicationID int64) (int64, error)
	SetQuantity(ctx context.Context, medicationID, quantity int64) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListRecent returns the latest movements for a medication, newest first.
func (r *Repository) ListRecent(ctx context.Context, medicationID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, medication_id, movement_type, quantity, reason, reference, created_by, created_at
FROM stock_movements
WHERE medication_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2`, medicationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.MedicationID, &m.MovementType, &m.Quantity, &m.Reason, &m.Reference, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *txRepository) GetQuantityForUpdate(ctx context.Context, medicationID int64) (int64, error) {
	var qty int64
	err := r.tx.QueryRow(ctx, `SELECT quantity FROM medications WHERE id = $1 FOR UPDATE`, medicationID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrNotFound
	}
	return qty, err
}

func (r *txRepository) SetQuantity(ctx context.Context, medicationID, quantity int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE medications SET quantity = $2, updated_at = now() WHERE id = $1`, medicationID, quantity)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (medication_id, movement_type, quantity, reason, reference, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id`,
		m.MedicationID, string(m.MovementType), m.Quantity, m.Reason, m.Reference, m.CreatedBy).Scan(&id)
	return id, err
}
