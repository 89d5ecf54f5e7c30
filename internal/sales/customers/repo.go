package customers

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmaflow/pharmaflow/internal/shared"
)

// Repository defines persistence operations for customers.
type Repository interface {
	List(ctx context.Context, search string, limit, offset int) ([]Customer, error)
	Count(ctx context.Context, search string) (int, error)
	Get(ctx context.Context, id int64) (Customer, error)
	Create(ctx context.Context, c Customer) (Customer, error)
	Update(ctx context.Context, id int64, c Customer) error
	RecentSales(ctx context.Context, customerID int64, limit int) ([]SaleSummary, error)
	TotalSpent(ctx context.Context, customerID int64) (float64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const customerColumns = `id, first_name, last_name, phone, email, address, date_of_birth,
customer_type, medical_conditions, loyalty_points, credit_limit, current_credit,
created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Email, &c.Address,
		&c.DateOfBirth, &c.CustomerType, &c.MedicalConditions, &c.LoyaltyPoints,
		&c.CreditLimit, &c.CurrentCredit, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const customerSearchClause = ` WHERE first_name ILIKE '%' || $1 || '%'
 OR last_name ILIKE '%' || $1 || '%'
 OR phone LIKE '%' || $1 || '%'`

// List returns customers ordered by name. A limit <= 0 returns the
// whole table (the POS customer dropdown needs it all).
func (r *repository) List(ctx context.Context, search string, limit, offset int) ([]Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers`
	args := []any{}
	if search != "" {
		query += customerSearchClause
		args = append(args, search)
	}
	query += ` ORDER BY last_name, first_name`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
		args = append(args, offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns how many customers match the search, for pagination.
func (r *repository) Count(ctx context.Context, search string) (int, error) {
	query := `SELECT count(*) FROM customers`
	args := []any{}
	if search != "" {
		query += customerSearchClause
		args = append(args, search)
	}
	var total int
	err := r.pool.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}

func (r *repository) Get(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.ErrNotFound
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, c Customer) (Customer, error) {
	const q = `INSERT INTO customers
(first_name, last_name, phone, email, address, date_of_birth, customer_type,
 medical_conditions, loyalty_points, credit_limit, current_credit, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, 0, now(), now())
RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, c.FirstName, c.LastName, c.Phone, c.Email, c.Address,
		c.DateOfBirth, string(c.CustomerType), c.MedicalConditions, c.CreditLimit).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (r *repository) Update(ctx context.Context, id int64, c Customer) error {
	const q = `UPDATE customers SET
first_name = $2, last_name = $3, phone = $4, email = $5, address = $6,
date_of_birth = $7, customer_type = $8, medical_conditions = $9,
credit_limit = $10, updated_at = now()
WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, c.FirstName, c.LastName, c.Phone, c.Email, c.Address,
		c.DateOfBirth, string(c.CustomerType), c.MedicalConditions, c.CreditLimit)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RecentSales lists a customer's completed sales, newest first.
func (r *repository) RecentSales(ctx context.Context, customerID int64, limit int) ([]SaleSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `SELECT id, sale_number, payment_method, total, created_at
FROM sales
WHERE customer_id = $1 AND status = 'completed'
ORDER BY created_at DESC
LIMIT $2`, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := []SaleSummary{}
	for rows.Next() {
		var s SaleSummary
		if err := rows.Scan(&s.ID, &s.SaleNumber, &s.PaymentMethod, &s.Total, &s.CreatedAt); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

// TotalSpent sums a customer's completed sales.
func (r *repository) TotalSpent(ctx context.Context, customerID int64) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0) FROM sales
WHERE customer_id = $1 AND status = 'completed'`, customerID).Scan(&total)
	return total, err
}
