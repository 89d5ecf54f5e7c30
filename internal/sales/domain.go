package sales

import (
	"errors"
	"time"
)

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentCard        PaymentMethod = "card"
	PaymentMobileMoney PaymentMethod = "mobile_money"
	PaymentCredit      PaymentMethod = "credit"
)

// SaleStatus tracks the lifecycle of a sale.
type SaleStatus string

const (
	StatusInProgress SaleStatus = "in_progress"
	StatusCompleted  SaleStatus = "completed"
	StatusCancelled  SaleStatus = "cancelled"
)

var (
	// ErrInsufficientStock indicates a line quantity exceeds the stock on hand.
	ErrInsufficientStock = errors.New("sales: insufficient stock")
	// ErrUnknownMedication indicates a line references a missing medication.
	ErrUnknownMedication = errors.New("sales: unknown medication")
	// ErrEmptySale indicates a sale without lines.
	ErrEmptySale = errors.New("sales: at least one item is required")
)

// Sale is a point-of-sale transaction header.
type Sale struct {
	ID                 int64         `json:"id"`
	SaleNumber         string        `json:"sale_number"`
	CustomerID         *int64        `json:"customer_id"`
	CustomerName       string        `json:"customer_name"`
	Subtotal           float64       `json:"subtotal"`
	DiscountPercentage float64       `json:"discount_percentage"`
	DiscountAmount     float64       `json:"discount_amount"`
	Total              float64       `json:"total"`
	PaymentMethod      PaymentMethod `json:"payment_method"`
	AmountPaid         float64       `json:"amount_paid"`
	ChangeAmount       float64       `json:"change_amount"`
	Status             SaleStatus    `json:"status"`
	CreatedBy          *int64        `json:"created_by"`
	CreatedAt          time.Time     `json:"created_at"`
}

// SaleItem is a single line of a sale. Subtotal is unit price times
// quantity at the moment of sale.
type SaleItem struct {
	ID             int64   `json:"id"`
	SaleID         int64   `json:"sale_id"`
	MedicationID   int64   `json:"medication_id"`
	MedicationName string  `json:"medication_name"`
	Quantity       int64   `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	Subtotal       float64 `json:"subtotal"`
}

// CreateSaleItem is one requested line of a new sale. Unit prices come
// from the catalog at finalization time, never from the client.
type CreateSaleItem struct {
	MedicationID int64 `json:"medication_id" validate:"required,gt=0"`
	Quantity     int64 `json:"quantity" validate:"required,gt=0"`
}

// CreateSaleRequest is the JSON body of the finalization API.
type CreateSaleRequest struct {
	CustomerID         *int64           `json:"customer_id"`
	PrescriptionID     *int64           `json:"prescription_id"`
	PaymentMethod      PaymentMethod    `json:"payment_method" validate:"required,oneof=cash card mobile_money credit"`
	DiscountPercentage float64          `json:"discount_percentage" validate:"gte=0,lte=100"`
	AmountPaid         float64          `json:"amount_paid" validate:"gte=0"`
	Items              []CreateSaleItem `json:"items" validate:"required,min=1,dive"`
}

// ListFilters narrows the sale history page. Only completed sales are
// ever listed.
type ListFilters struct {
	Search string
	Date   *time.Time
	Limit  int
}
