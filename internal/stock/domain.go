package stock

import (
	"errors"
	"time"
)

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementIn      MovementType = "in"
	MovementOut     MovementType = "out"
	MovementAdjust  MovementType = "adjust"
	MovementReturn  MovementType = "return"
	MovementLoss    MovementType = "loss"
	MovementExpired MovementType = "expired"
)

var (
	// ErrNegativeStock indicates a movement would drive stock below zero.
	ErrNegativeStock = errors.New("stock: movement would make quantity negative")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("stock: quantity must be positive")
	// ErrInvalidMovementType indicates an unknown movement type.
	ErrInvalidMovementType = errors.New("stock: unknown movement type")
)

// Direction returns +1 for types that add stock and -1 for types that
// remove it. Adjustments and customer returns add; losses and expiry
// write-offs remove.
func (t MovementType) Direction() (int64, error) {
	switch t {
	case MovementIn, MovementReturn, MovementAdjust:
		return 1, nil
	case MovementOut, MovementLoss, MovementExpired:
		return -1, nil
	default:
		return 0, ErrInvalidMovementType
	}
}

// Movement is an immutable audit record of a stock change.
type Movement struct {
	ID           int64        `json:"id"`
	MedicationID int64        `json:"medication_id"`
	MovementType MovementType `json:"movement_type"`
	Quantity     int64        `json:"quantity"`
	Reason       string       `json:"reason"`
	Reference    string       `json:"reference"`
	CreatedBy    *int64       `json:"created_by"`
	CreatedAt    time.Time    `json:"created_at"`
}

// MovementRequest is the input for recording a movement.
type MovementRequest struct {
	MedicationID   int64
	MovementType   MovementType
	Quantity       int64
	Reason         string
	Reference      string
	CreatedBy      *int64
	IdempotencyKey string
}
