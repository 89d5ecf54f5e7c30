package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Snapshot is the full statistics dump written by the export job. The
// JSON layout is stable so that successive snapshots can be diffed.
type Snapshot struct {
	Timestamp   string              `json:"timestamp"`
	Medications SnapshotMedications `json:"medications"`
	Sales       SnapshotSales       `json:"sales"`
	Customers   SnapshotCustomers   `json:"customers"`
}

type SnapshotMedications struct {
	Total    int64                `json:"total"`
	LowStock int64                `json:"low_stock"`
	List     []MedicationSnapshot `json:"list"`
}

type SnapshotSales struct {
	Total        int64          `json:"total"`
	TotalRevenue float64        `json:"total_revenue"`
	List         []SaleSnapshot `json:"list"`
}

type SnapshotCustomers struct {
	Total int64 `json:"total"`
}

// BuildSnapshot collects the full statistics dump.
func (s *Service) BuildSnapshot(ctx context.Context) (Snapshot, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	medications, err := s.repo.ListMedicationSnapshots(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	salesCount, revenue, err := s.repo.AllTimeSales(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	recentSales, err := s.repo.ListRecentSaleSnapshots(ctx, 10)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Timestamp: time.Now().Format(time.RFC3339),
		Medications: SnapshotMedications{
			Total:    stats.TotalMedications,
			LowStock: stats.LowStockCount,
			List:     medications,
		},
		Sales: SnapshotSales{
			Total:        salesCount,
			TotalRevenue: revenue,
			List:         recentSales,
		},
		Customers: SnapshotCustomers{Total: stats.TotalCustomers},
	}, nil
}

// WriteSnapshot dumps the statistics into a timestamped JSON file under
// dir and returns the file path.
func (s *Service) WriteSnapshot(ctx context.Context, dir string) (string, error) {
	snapshot, err := s.BuildSnapshot(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("stats_snapshot_%s.json", time.Now().Format("20060102_150405")))
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
