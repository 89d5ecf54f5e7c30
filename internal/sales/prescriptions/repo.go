package prescriptions

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmaflow/pharmaflow/internal/shared"
)

// Repository defines persistence operations for prescriptions.
type Repository interface {
	ListByCustomer(ctx context.Context, customerID int64) ([]Prescription, error)
	Get(ctx context.Context, id int64) (Prescription, error)
	Create(ctx context.Context, p Prescription) (Prescription, error)
	AttachSale(ctx context.Context, id, saleID int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const prescriptionColumns = `id, customer_id, sale_id, prescription_number, doctor_name,
prescription_date, expiry_date, image, notes, created_at`

func scanPrescription(row pgx.Row) (Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.CustomerID, &p.SaleID, &p.PrescriptionNumber, &p.DoctorName,
		&p.PrescriptionDate, &p.ExpiryDate, &p.Image, &p.Notes, &p.CreatedAt)
	return p, err
}

func (r *repository) ListByCustomer(ctx context.Context, customerID int64) ([]Prescription, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+prescriptionColumns+`
FROM prescriptions WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Prescription{}
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Prescription, error) {
	p, err := scanPrescription(r.pool.QueryRow(ctx, `SELECT `+prescriptionColumns+`
FROM prescriptions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Prescription{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, p Prescription) (Prescription, error) {
	const q = `INSERT INTO prescriptions
(customer_id, prescription_number, doctor_name, prescription_date, expiry_date, image, notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, p.CustomerID, p.PrescriptionNumber, p.DoctorName,
		p.PrescriptionDate, p.ExpiryDate, p.Image, p.Notes).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Prescription{}, shared.ErrDuplicateName
		}
		return Prescription{}, err
	}
	return p, nil
}

// AttachSale marks the prescription as served by the given sale.
func (r *repository) AttachSale(ctx context.Context, id, saleID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE prescriptions SET sale_id = $2 WHERE id = $1 AND sale_id IS NULL`, id, saleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
