package dashboard

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Stats are the counters shown on the dashboard. They are computed
// fresh on every request; concurrent requests collapse into a single
// set of queries.
type Stats struct {
	TotalMedications int64   `json:"total_medications"`
	LowStockCount    int64   `json:"low_stock_count"`
	TodaySalesCount  int64   `json:"today_sales_count"`
	TodayRevenue     float64 `json:"today_revenue"`
	TotalCustomers   int64   `json:"total_customers"`
}

// Service computes dashboard statistics.
type Service struct {
	repo  Repository
	group singleflight.Group
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Stats gathers the dashboard counters.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	v, err, _ := s.group.Do("dashboard-stats", func() (any, error) {
		return s.computeStats(ctx)
	})
	if err != nil {
		return Stats{}, err
	}
	return v.(Stats), nil
}

func (s *Service) computeStats(ctx context.Context) (Stats, error) {
	var stats Stats
	var err error

	if stats.TotalMedications, err = s.repo.CountMedications(ctx); err != nil {
		return Stats{}, err
	}
	if stats.LowStockCount, err = s.repo.CountLowStock(ctx); err != nil {
		return Stats{}, err
	}
	if stats.TodaySalesCount, stats.TodayRevenue, err = s.repo.TodaySales(ctx); err != nil {
		return Stats{}, err
	}
	if stats.TotalCustomers, err = s.repo.CountCustomers(ctx); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
