package dashboard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MedicationSnapshot is a catalog row included in stats exports.
type MedicationSnapshot struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Quantity  int64     `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// SaleSnapshot is a recent sale included in stats exports.
type SaleSnapshot struct {
	ID         int64     `json:"id"`
	SaleNumber string    `json:"sale_number"`
	Total      float64   `json:"total"`
	CreatedAt  time.Time `json:"created_at"`
}

// Repository runs the aggregate queries behind the dashboard.
type Repository interface {
	CountMedications(ctx context.Context) (int64, error)
	CountLowStock(ctx context.Context) (int64, error)
	TodaySales(ctx context.Context) (count int64, revenue float64, err error)
	CountCustomers(ctx context.Context) (int64, error)
	AllTimeSales(ctx context.Context) (count int64, revenue float64, err error)
	ListMedicationSnapshots(ctx context.Context) ([]MedicationSnapshot, error)
	ListRecentSaleSnapshots(ctx context.Context, limit int) ([]SaleSnapshot, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) CountMedications(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM medications`).Scan(&n)
	return n, err
}

func (r *repository) CountLowStock(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM medications WHERE quantity <= min_quantity`).Scan(&n)
	return n, err
}

func (r *repository) TodaySales(ctx context.Context) (int64, float64, error) {
	var count int64
	var revenue float64
	err := r.pool.QueryRow(ctx, `SELECT count(*), COALESCE(SUM(total), 0)
FROM sales WHERE status = 'completed' AND created_at::date = CURRENT_DATE`).Scan(&count, &revenue)
	return count, revenue, err
}

func (r *repository) CountCustomers(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM customers`).Scan(&n)
	return n, err
}

func (r *repository) AllTimeSales(ctx context.Context) (int64, float64, error) {
	var count int64
	var revenue float64
	err := r.pool.QueryRow(ctx, `SELECT count(*), COALESCE(SUM(total), 0)
FROM sales WHERE status = 'completed'`).Scan(&count, &revenue)
	return count, revenue, err
}

func (r *repository) ListMedicationSnapshots(ctx context.Context) ([]MedicationSnapshot, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, quantity, created_at FROM medications ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []MedicationSnapshot{}
	for rows.Next() {
		var m MedicationSnapshot
		if err := rows.Scan(&m.ID, &m.Name, &m.Quantity, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repository) ListRecentSaleSnapshots(ctx context.Context, limit int) ([]SaleSnapshot, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `SELECT id, sale_number, total, created_at
FROM sales WHERE status = 'completed' ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SaleSnapshot{}
	for rows.Next() {
		var s SaleSnapshot
		if err := rows.Scan(&s.ID, &s.SaleNumber, &s.Total, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
