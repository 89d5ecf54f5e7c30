package medications

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmaflow/pharmaflow/internal/shared"
)

// ListFilters narrows the medication list page.
type ListFilters struct {
	Search     string
	CategoryID int64
	// StockFilter is one of "", "low", "expired", "expiring".
	StockFilter string
	// Limit and Offset bound the page; Limit <= 0 returns everything.
	Limit  int
	Offset int
}

// SearchResult is the trimmed row returned to the point-of-sale search box.
type SearchResult struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	DCI      string  `json:"dci"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Image    string  `json:"image"`
}

// Repository defines persistence operations for medications.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Medication, error)
	Count(ctx context.Context, filters ListFilters) (int, error)
	Get(ctx context.Context, id int64) (Medication, error)
	Create(ctx context.Context, med Medication) (Medication, error)
	Update(ctx context.Context, id int64, med Medication) error
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, normalized string, limit int) ([]SearchResult, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const medicationColumns = `m.id, m.name, m.dci, m.barcode, m.category_id, COALESCE(c.name, ''),
m.form, m.dosage, m.purchase_price, m.selling_price, m.quantity, m.min_quantity,
m.expiry_date, m.location, m.requires_prescription, m.image, m.description,
m.created_by, m.created_at, m.updated_at`

func scanMedication(row pgx.Row) (Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.Name, &m.DCI, &m.Barcode, &m.CategoryID, &m.CategoryName,
		&m.Form, &m.Dosage, &m.PurchasePrice, &m.SellingPrice, &m.Quantity, &m.MinQuantity,
		&m.ExpiryDate, &m.Location, &m.RequiresPrescription, &m.Image, &m.Description,
		&m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// whereClause renders the filter conditions shared by List and Count.
func (f ListFilters) whereClause(args *[]any) string {
	clause := ""
	if f.Search != "" {
		*args = append(*args, NormalizeSearchTerm(f.Search))
		n := len(*args)
		clause += ` AND (m.name_search LIKE '%' || $` + itoa(n) + ` || '%'
 OR m.dci_search LIKE '%' || $` + itoa(n) + ` || '%'
 OR m.barcode LIKE '%' || $` + itoa(n) + ` || '%')`
	}
	if f.CategoryID > 0 {
		*args = append(*args, f.CategoryID)
		clause += ` AND m.category_id = $` + itoa(len(*args))
	}
	switch f.StockFilter {
	case "low":
		clause += ` AND m.quantity <= m.min_quantity`
	case "expired":
		clause += ` AND m.expiry_date < CURRENT_DATE`
	case "expiring":
		clause += ` AND m.expiry_date >= CURRENT_DATE AND m.expiry_date <= CURRENT_DATE + INTERVAL '30 days'`
	}
	return clause
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Medication, error) {
	args := []any{}
	query := `SELECT ` + medicationColumns + `
FROM medications m LEFT JOIN categories c ON c.id = m.category_id
WHERE 1=1` + filters.whereClause(&args) + ` ORDER BY m.name`
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += ` LIMIT $` + itoa(len(args))
		args = append(args, filters.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns how many medications match the filters, for the list
// page pagination.
func (r *repository) Count(ctx context.Context, filters ListFilters) (int, error) {
	args := []any{}
	query := `SELECT count(*) FROM medications m WHERE 1=1` + filters.whereClause(&args)
	var total int
	err := r.pool.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}

func (r *repository) Get(ctx context.Context, id int64) (Medication, error) {
	query := `SELECT ` + medicationColumns + `
FROM medications m LEFT JOIN categories c ON c.id = m.category_id
WHERE m.id = $1`
	m, err := scanMedication(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Medication{}, shared.ErrNotFound
	}
	return m, err
}

func (r *repository) Create(ctx context.Context, med Medication) (Medication, error) {
	const q = `INSERT INTO medications
(name, dci, barcode, category_id, form, dosage, purchase_price, selling_price,
 quantity, min_quantity, expiry_date, location, requires_prescription, image,
 description, created_by, name_search, dci_search, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, now(), now())
RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q,
		med.Name, med.DCI, med.Barcode, med.CategoryID, med.Form, med.Dosage,
		med.PurchasePrice, med.SellingPrice, med.Quantity, med.MinQuantity,
		med.ExpiryDate, med.Location, med.RequiresPrescription, med.Image,
		med.Description, med.CreatedBy,
		NormalizeSearchTerm(med.Name), NormalizeSearchTerm(med.DCI),
	).Scan(&med.ID, &med.CreatedAt, &med.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Medication{}, shared.ErrDuplicateName
		}
		return Medication{}, err
	}
	return med, nil
}

// Update rewrites editable fields. Quantity is deliberately excluded; stock
// levels only change through recorded movements and sales.
func (r *repository) Update(ctx context.Context, id int64, med Medication) error {
	const q = `UPDATE medications SET
name = $2, dci = $3, barcode = $4, category_id = $5, form = $6, dosage = $7,
purchase_price = $8, selling_price = $9, min_quantity = $10, expiry_date = $11,
location = $12, requires_prescription = $13, image = $14, description = $15,
name_search = $16, dci_search = $17, updated_at = now()
WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id,
		med.Name, med.DCI, med.Barcode, med.CategoryID, med.Form, med.Dosage,
		med.PurchasePrice, med.SellingPrice, med.MinQuantity, med.ExpiryDate,
		med.Location, med.RequiresPrescription, med.Image, med.Description,
		NormalizeSearchTerm(med.Name), NormalizeSearchTerm(med.DCI))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicateName
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM medications WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		// Restrict FK from sale_items: sold medications cannot be removed.
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return shared.ErrInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Search returns in-stock medications matching the normalized term,
// capped at limit rows for the point-of-sale autocomplete.
func (r *repository) Search(ctx context.Context, normalized string, limit int) ([]SearchResult, error) {
	const q = `SELECT id, name, dci, selling_price, quantity, image
FROM medications
WHERE quantity > 0
  AND (name_search LIKE '%' || $1 || '%'
   OR dci_search LIKE '%' || $1 || '%'
   OR barcode LIKE '%' || $1 || '%')
ORDER BY name
LIMIT $2`
	rows, err := r.pool.Query(ctx, q, normalized, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var s SearchResult
		if err := rows.Scan(&s.ID, &s.Name, &s.DCI, &s.Price, &s.Quantity, &s.Image); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
