package medications

import (
	"context"
	"errors"
	"strings"

	"github.com/pharmaflow/pharmaflow/internal/shared"
)

// searchLimit caps autocomplete results for the point of sale.
const searchLimit = 10

// listPerPage is the medication list page size.
const listPerPage = 20

// Service wraps medication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns one page of the filtered catalog together with the
// pagination metadata driving the page links.
func (s *Service) List(ctx context.Context, filters ListFilters, page int) ([]Medication, shared.Pagination, error) {
	filters.Search = strings.TrimSpace(filters.Search)
	total, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, listPerPage, total)
	filters.Limit = p.PerPage
	filters.Offset = (p.Page - 1) * p.PerPage
	meds, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return meds, p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Medication, error) {
	if id <= 0 {
		return Medication{}, errors.New("invalid medication ID")
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, med Medication) (Medication, error) {
	if err := s.validate(&med); err != nil {
		return Medication{}, err
	}
	return s.repo.Create(ctx, med)
}

func (s *Service) Update(ctx context.Context, id int64, med Medication) error {
	if id <= 0 {
		return errors.New("invalid medication ID")
	}
	if err := s.validate(&med); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, med)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid medication ID")
	}
	return s.repo.Delete(ctx, id)
}

// Search powers the point-of-sale autocomplete. Terms shorter than two
// characters return nothing rather than the whole catalog.
func (s *Service) Search(ctx context.Context, term string) ([]SearchResult, error) {
	normalized := NormalizeSearchTerm(term)
	if len(normalized) < 2 {
		return []SearchResult{}, nil
	}
	results, err := s.repo.Search(ctx, normalized, searchLimit)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

func (s *Service) validate(med *Medication) error {
	med.Name = strings.TrimSpace(med.Name)
	med.DCI = strings.TrimSpace(med.DCI)
	med.Barcode = strings.TrimSpace(med.Barcode)
	if med.Name == "" {
		return errors.New("medication name is required")
	}
	if med.SellingPrice < 0 || med.PurchasePrice < 0 {
		return errors.New("prices cannot be negative")
	}
	if med.MinQuantity < 0 {
		return errors.New("minimum quantity cannot be negative")
	}
	if med.MinQuantity == 0 {
		med.MinQuantity = 10
	}
	return nil
}
