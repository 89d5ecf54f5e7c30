package customers

import (
	"context"
	"errors"
	"strings"

	"github.com/pharmaflow/pharmaflow/internal/shared"
)

// listPerPage is the customer list page size.
const listPerPage = 20

// Service wraps customer business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns every matching customer; the POS uses it to fill the
// customer dropdown.
func (s *Service) List(ctx context.Context, search string) ([]Customer, error) {
	return s.repo.List(ctx, strings.TrimSpace(search), 0, 0)
}

// ListPage returns one page of customers plus the pagination metadata
// for the list view.
func (s *Service) ListPage(ctx context.Context, search string, page int) ([]Customer, shared.Pagination, error) {
	search = strings.TrimSpace(search)
	total, err := s.repo.Count(ctx, search)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, listPerPage, total)
	custs, err := s.repo.List(ctx, search, p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return custs, p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	if id <= 0 {
		return Customer{}, errors.New("invalid customer ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, c Customer) (Customer, error) {
	if err := s.validate(&c); err != nil {
		return Customer{}, err
	}
	return s.repo.Create(ctx, c)
}

func (s *Service) Update(ctx context.Context, id int64, c Customer) error {
	if id <= 0 {
		return errors.New("invalid customer ID")
	}
	if err := s.validate(&c); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, c)
}

// RecentSales returns the customer's latest completed sales.
func (s *Service) RecentSales(ctx context.Context, customerID int64, limit int) ([]SaleSummary, error) {
	return s.repo.RecentSales(ctx, customerID, limit)
}

// TotalSpent sums the customer's completed sales.
func (s *Service) TotalSpent(ctx context.Context, customerID int64) (float64, error) {
	return s.repo.TotalSpent(ctx, customerID)
}

func (s *Service) validate(c *Customer) error {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Phone = strings.TrimSpace(c.Phone)
	if c.FirstName == "" || c.LastName == "" {
		return errors.New("first and last name are required")
	}
	if c.Phone == "" {
		return errors.New("phone number is required")
	}
	switch c.CustomerType {
	case TypeIndividual, TypeCompany, TypeInsurer:
	case "":
		c.CustomerType = TypeIndividual
	default:
		return errors.New("unknown customer type")
	}
	if c.CreditLimit < 0 {
		return errors.New("credit limit cannot be negative")
	}
	return nil
}
