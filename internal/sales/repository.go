package sales

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmaflow/pharmaflow/internal/platform/db"
	"github.com/pharmaflow/pharmaflow/internal/shared"
)

// LockedMedication is the catalog row snapshot taken under FOR UPDATE
// during sale finalization.
type LockedMedication struct {
	ID           int64
	Name         string
	SellingPrice float64
	Quantity     int64
}

// TxRepository exposes the transactional operations used during sale
// finalization.
type TxRepository interface {
	NextSaleSequence(ctx context.Context, day time.Time) (int64, error)
	InsertSale(ctx context.Context, s Sale) (int64, error)
	GetMedicationForUpdate(ctx context.Context, medicationID int64) (LockedMedication, error)
	SetMedicationQuantity(ctx context.Context, medicationID, quantity int64) error
	InsertStockMovement(ctx context.Context, medicationID, quantity int64, createdBy *int64, reference string) error
	InsertSaleItem(ctx context.Context, item SaleItem) (int64, error)
	UpdateSaleAmounts(ctx context.Context, s Sale) error
}

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
// Any error rolls back everything: header, lines, stock updates and
// movements.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// NextSaleSequence atomically increments and returns the per-day sale
// counter. The upsert keeps concurrent finalizations from ever sharing
// a sequence value.
func (r *txRepository) NextSaleSequence(ctx context.Context, day time.Time) (int64, error) {
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_counters (day, last_seq)
VALUES ($1, 1)
ON CONFLICT (day) DO UPDATE SET last_seq = sale_counters.last_seq + 1
RETURNING last_seq`, day.Format("2006-01-02")).Scan(&seq)
	return seq, err
}

func (r *txRepository) InsertSale(ctx context.Context, s Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sales
(sale_number, customer_id, subtotal, discount_percentage, discount_amount, total,
 payment_method, amount_paid, change_amount, status, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
RETURNING id`,
		s.SaleNumber, s.CustomerID, s.Subtotal, s.DiscountPercentage, s.DiscountAmount,
		s.Total, string(s.PaymentMethod), s.AmountPaid, s.ChangeAmount, string(s.Status), s.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepository) GetMedicationForUpdate(ctx context.Context, medicationID int64) (LockedMedication, error) {
	var m LockedMedication
	err := r.tx.QueryRow(ctx, `SELECT id, name, selling_price, quantity
FROM medications WHERE id = $1 FOR UPDATE`, medicationID).
		Scan(&m.ID, &m.Name, &m.SellingPrice, &m.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return LockedMedication{}, ErrUnknownMedication
	}
	return m, err
}

func (r *txRepository) SetMedicationQuantity(ctx context.Context, medicationID, quantity int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE medications SET quantity = $2, updated_at = now() WHERE id = $1`, medicationID, quantity)
	return err
}

func (r *txRepository) InsertStockMovement(ctx context.Context, medicationID, quantity int64, createdBy *int64, reference string) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_movements
(medication_id, movement_type, quantity, reason, reference, created_by, created_at)
VALUES ($1, 'out', $2, 'Vente', $3, $4, NOW())`, medicationID, quantity, reference, createdBy)
	return err
}

func (r *txRepository) InsertSaleItem(ctx context.Context, item SaleItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_items (sale_id, medication_id, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		item.SaleID, item.MedicationID, item.Quantity, item.UnitPrice, item.Subtotal).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateSaleAmounts(ctx context.Context, s Sale) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales SET
subtotal = $2, discount_amount = $3, total = $4, change_amount = $5
WHERE id = $1`, s.ID, s.Subtotal, s.DiscountAmount, s.Total, s.ChangeAmount)
	return err
}

const saleColumns = `s.id, s.sale_number, s.customer_id,
COALESCE(c.first_name || ' ' || c.last_name, ''),
s.subtotal, s.discount_percentage, s.discount_amount, s.total,
s.payment_method, s.amount_paid, s.change_amount, s.status, s.created_by, s.created_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.SaleNumber, &s.CustomerID, &s.CustomerName,
		&s.Subtotal, &s.DiscountPercentage, &s.DiscountAmount, &s.Total,
		&s.PaymentMethod, &s.AmountPaid, &s.ChangeAmount, &s.Status, &s.CreatedBy, &s.CreatedAt)
	return s, err
}

// Get fetches a single sale with its customer name.
func (r *Repository) Get(ctx context.Context, id int64) (Sale, error) {
	query := `SELECT ` + saleColumns + `
FROM sales s LEFT JOIN customers c ON c.id = s.customer_id
WHERE s.id = $1`
	s, err := scanSale(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, shared.ErrNotFound
	}
	return s, err
}

// GetItems fetches the lines of a sale with medication names.
func (r *Repository) GetItems(ctx context.Context, saleID int64) ([]SaleItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.sale_id, i.medication_id, COALESCE(m.name, ''), i.quantity, i.unit_price, i.subtotal
FROM sale_items i LEFT JOIN medications m ON m.id = i.medication_id
WHERE i.sale_id = $1
ORDER BY i.id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []SaleItem{}
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.MedicationID, &it.MedicationName, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// List returns completed sales matching the filters, newest first,
// together with the summed revenue of the matched rows.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Sale, float64, error) {
	query := `SELECT ` + saleColumns + `
FROM sales s LEFT JOIN customers c ON c.id = s.customer_id
WHERE s.status = 'completed'`
	args := []any{}
	if filters.Search != "" {
		args = append(args, filters.Search)
		query += ` AND (s.sale_number ILIKE '%' || $1 || '%'
 OR c.first_name ILIKE '%' || $1 || '%'
 OR c.last_name ILIKE '%' || $1 || '%')`
	}
	if filters.Date != nil {
		args = append(args, filters.Date.Format("2006-01-02"))
		query += ` AND s.created_at::date = $` + itoa(len(args))
	}
	query += ` ORDER BY s.created_at DESC`
	limit := filters.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit)
	query += ` LIMIT $` + itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sales := []Sale{}
	var revenue float64
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		revenue += s.Total
		sales = append(sales, s)
	}
	return sales, revenue, rows.Err()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
