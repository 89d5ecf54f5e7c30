package stock

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pharmaflow/pharmaflow/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListRecent(ctx context.Context, medicationID int64, limit int) ([]Movement, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock movements.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	allowNeg    bool
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, allowNeg: cfg.AllowNegativeStock}
}

// Record posts a stock movement and updates the medication quantity in the
// same transaction. The medication row is locked for the duration so that
// concurrent movements serialize instead of clobbering each other.
func (s *Service) Record(ctx context.Context, req MovementRequest) (Movement, error) {
	if req.MedicationID <= 0 {
		return Movement{}, shared.ErrNotFound
	}
	if req.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	direction, err := req.MovementType.Direction()
	if err != nil {
		return Movement{}, err
	}

	if s.idempotency != nil && req.IdempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, req.IdempotencyKey, "stock"); err != nil {
			return Movement{}, err
		}
	}

	movement := Movement{
		MedicationID: req.MedicationID,
		MovementType: req.MovementType,
		Quantity:     req.Quantity,
		Reason:       req.Reason,
		Reference:    req.Reference,
		CreatedBy:    req.CreatedBy,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetQuantityForUpdate(ctx, req.MedicationID)
		if err != nil {
			return err
		}
		newQty := current + direction*req.Quantity
		if newQty < 0 && !s.allowNeg {
			return ErrNegativeStock
		}
		if err := tx.SetQuantity(ctx, req.MedicationID, newQty); err != nil {
			return err
		}
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id
		return nil
	})
	if err != nil {
		if s.idempotency != nil && req.IdempotencyKey != "" {
			_ = s.idempotency.Delete(ctx, req.IdempotencyKey)
		}
		return Movement{}, err
	}

	if s.audit != nil {
		actor := int64(0)
		if req.CreatedBy != nil {
			actor = *req.CreatedBy
		}
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor,
			Action:   "stock." + string(req.MovementType),
			Entity:   "medication",
			EntityID: strconv.FormatInt(req.MedicationID, 10),
			Meta: map[string]any{
				"quantity":  req.Quantity,
				"reason":    req.Reason,
				"reference": req.Reference,
			},
		})
	}
	return movement, nil
}

// RecentMovements lists the latest movements for a medication.
func (s *Service) RecentMovements(ctx context.Context, medicationID int64, limit int) ([]Movement, error) {
	if medicationID <= 0 {
		return nil, fmt.Errorf("stock: invalid medication id %d", medicationID)
	}
	return s.repo.ListRecent(ctx, medicationID, limit)
}
