package prescriptions

import (
	"context"
	"errors"
	"strings"
)

// Service wraps prescription business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) ListByCustomer(ctx context.Context, customerID int64) ([]Prescription, error) {
	if customerID <= 0 {
		return nil, errors.New("invalid customer ID")
	}
	return s.repo.ListByCustomer(ctx, customerID)
}

func (s *Service) Get(ctx context.Context, id int64) (Prescription, error) {
	if id <= 0 {
		return Prescription{}, errors.New("invalid prescription ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, p Prescription) (Prescription, error) {
	p.PrescriptionNumber = strings.TrimSpace(p.PrescriptionNumber)
	p.DoctorName = strings.TrimSpace(p.DoctorName)
	if p.CustomerID <= 0 {
		return Prescription{}, errors.New("invalid customer ID")
	}
	if p.PrescriptionNumber == "" {
		return Prescription{}, errors.New("prescription number is required")
	}
	if p.DoctorName == "" {
		return Prescription{}, errors.New("doctor name is required")
	}
	if p.PrescriptionDate.IsZero() {
		return Prescription{}, errors.New("prescription date is required")
	}
	if !p.ExpiryDate.IsZero() && p.ExpiryDate.Before(p.PrescriptionDate) {
		return Prescription{}, errors.New("expiry date cannot precede the prescription date")
	}
	return s.repo.Create(ctx, p)
}

// MarkServed links a completed sale to the prescription.
func (s *Service) MarkServed(ctx context.Context, id, saleID int64) error {
	if id <= 0 || saleID <= 0 {
		return errors.New("invalid prescription or sale ID")
	}
	return s.repo.AttachSale(ctx, id, saleID)
}
