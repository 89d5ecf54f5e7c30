package sales

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pharmaflow/pharmaflow/internal/platform/db"
	"github.com/pharmaflow/pharmaflow/internal/shared"
)

// saleNumberPrefix starts every sale number; the full format is
// V + yyyymmdd + a four digit per-day sequence, e.g. V202608290001.
const saleNumberPrefix = "V"

// maxFinalizeAttempts bounds how many times a finalization is retried
// when its repeatable-read transaction loses a serialization conflict
// on the shared per-day counter row.
const maxFinalizeAttempts = 3

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Sale, error)
	GetItems(ctx context.Context, saleID int64) ([]SaleItem, error)
	List(ctx context.Context, filters ListFilters) ([]Sale, float64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates sale finalization and history.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	validator   *validator.Validate
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		validator:   validator.New(),
		now:         time.Now,
	}
}

// CreateSale finalizes a point-of-sale transaction. The header, every
// line, every stock decrement and every stock movement are written in a
// single transaction; any failure rolls the whole sale back.
func (s *Service) CreateSale(ctx context.Context, req CreateSaleRequest, actorID *int64, idempotencyKey string) (Sale, error) {
	if len(req.Items) == 0 {
		return Sale{}, ErrEmptySale
	}
	if err := s.validator.Struct(req); err != nil {
		return Sale{}, fmt.Errorf("sales: invalid request: %w", err)
	}

	if s.idempotency != nil && idempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, "sales"); err != nil {
			return Sale{}, err
		}
	}

	sale, err := s.finalize(ctx, req, actorID)
	if err != nil {
		if s.idempotency != nil && idempotencyKey != "" {
			_ = s.idempotency.Delete(ctx, idempotencyKey)
		}
		return Sale{}, err
	}

	if s.audit != nil {
		actor := int64(0)
		if actorID != nil {
			actor = *actorID
		}
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor,
			Action:   "sales.create",
			Entity:   "sale",
			EntityID: strconv.FormatInt(sale.ID, 10),
			Meta: map[string]any{
				"sale_number": sale.SaleNumber,
				"total":       sale.Total,
				"items":       len(req.Items),
			},
		})
	}
	return sale, nil
}

// finalize runs the sale transaction. Two overlapping finalizations
// contend on the day counter row; under repeatable read the loser comes
// back with SQLSTATE 40001, so the whole transaction is retried from a
// fresh snapshot instead of surfacing a spurious POS failure.
func (s *Service) finalize(ctx context.Context, req CreateSaleRequest, actorID *int64) (Sale, error) {
	var sale Sale
	var err error
	for attempt := 0; attempt < maxFinalizeAttempts; attempt++ {
		sale, err = s.finalizeOnce(ctx, req, actorID)
		if !db.IsSerializationFailure(err) {
			break
		}
	}
	return sale, err
}

func (s *Service) finalizeOnce(ctx context.Context, req CreateSaleRequest, actorID *int64) (Sale, error) {
	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		now := s.now()
		seq, err := tx.NextSaleSequence(ctx, now)
		if err != nil {
			return err
		}
		sale = Sale{
			SaleNumber:         fmt.Sprintf("%s%s%04d", saleNumberPrefix, now.Format("20060102"), seq),
			CustomerID:         req.CustomerID,
			DiscountPercentage: req.DiscountPercentage,
			PaymentMethod:      req.PaymentMethod,
			AmountPaid:         req.AmountPaid,
			Status:             StatusCompleted,
			CreatedBy:          actorID,
			CreatedAt:          now,
		}
		saleID, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = saleID

		var subtotal float64
		for _, line := range req.Items {
			med, err := tx.GetMedicationForUpdate(ctx, line.MedicationID)
			if err != nil {
				return err
			}
			if med.Quantity < line.Quantity {
				return fmt.Errorf("%w: %s (stock %d, demandé %d)", ErrInsufficientStock, med.Name, med.Quantity, line.Quantity)
			}
			if err := tx.SetMedicationQuantity(ctx, med.ID, med.Quantity-line.Quantity); err != nil {
				return err
			}
			if err := tx.InsertStockMovement(ctx, med.ID, line.Quantity, actorID, sale.SaleNumber); err != nil {
				return err
			}
			lineSubtotal := med.SellingPrice * float64(line.Quantity)
			if _, err := tx.InsertSaleItem(ctx, SaleItem{
				SaleID:       saleID,
				MedicationID: med.ID,
				Quantity:     line.Quantity,
				UnitPrice:    med.SellingPrice,
				Subtotal:     lineSubtotal,
			}); err != nil {
				return err
			}
			subtotal += lineSubtotal
		}

		sale.Subtotal = subtotal
		sale.DiscountAmount = subtotal * req.DiscountPercentage / 100
		sale.Total = subtotal - sale.DiscountAmount
		sale.ChangeAmount = req.AmountPaid - sale.Total
		if sale.ChangeAmount < 0 {
			sale.ChangeAmount = 0
		}
		return tx.UpdateSaleAmounts(ctx, sale)
	})
	if err != nil {
		return Sale{}, err
	}
	return sale, nil
}

// Get loads a sale header.
func (s *Service) Get(ctx context.Context, id int64) (Sale, error) {
	return s.repo.Get(ctx, id)
}

// GetItems loads the lines of a sale.
func (s *Service) GetItems(ctx context.Context, saleID int64) ([]SaleItem, error) {
	return s.repo.GetItems(ctx, saleID)
}

// List returns completed sales and their summed revenue.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Sale, float64, error) {
	return s.repo.List(ctx, filters)
}
