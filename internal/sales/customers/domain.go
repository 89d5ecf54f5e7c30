package customers

import (
	"strings"
	"time"
)

// CustomerType distinguishes billing behaviour.
type CustomerType string

const (
	TypeIndividual CustomerType = "individual"
	TypeCompany    CustomerType = "company"
	TypeInsurer    CustomerType = "insurer"
)

// Customer is a pharmacy client.
type Customer struct {
	ID                int64        `json:"id"`
	FirstName         string       `json:"first_name"`
	LastName          string       `json:"last_name"`
	Phone             string       `json:"phone"`
	Email             string       `json:"email"`
	Address           string       `json:"address"`
	DateOfBirth       *time.Time   `json:"date_of_birth"`
	CustomerType      CustomerType `json:"customer_type"`
	MedicalConditions string       `json:"medical_conditions"`
	LoyaltyPoints     int64        `json:"loyalty_points"`
	CreditLimit       float64      `json:"credit_limit"`
	CurrentCredit     float64      `json:"current_credit"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// FullName joins first and last names for display.
func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// AvailableCredit is the remaining credit a customer can use.
func (c Customer) AvailableCredit() float64 {
	return c.CreditLimit - c.CurrentCredit
}

// SaleSummary is a condensed sale row shown on customer pages.
type SaleSummary struct {
	ID            int64     `json:"id"`
	SaleNumber    string    `json:"sale_number"`
	PaymentMethod string    `json:"payment_method"`
	Total         float64   `json:"total"`
	CreatedAt     time.Time `json:"created_at"`
}
