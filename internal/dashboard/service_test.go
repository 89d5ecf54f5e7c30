package dashboard

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	mu    sync.Mutex
	calls int

	medications int64
	lowStock    int64
	todayCount  int64
	todayTotal  float64
	customers   int64
}

func (s *stubRepo) CountMedications(ctx context.Context) (int64, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.medications, nil
}

func (s *stubRepo) CountLowStock(ctx context.Context) (int64, error) {
	return s.lowStock, nil
}

func (s *stubRepo) TodaySales(ctx context.Context) (int64, float64, error) {
	return s.todayCount, s.todayTotal, nil
}

func (s *stubRepo) CountCustomers(ctx context.Context) (int64, error) {
	return s.customers, nil
}

func (s *stubRepo) AllTimeSales(ctx context.Context) (int64, float64, error) {
	return 12, 450000, nil
}

func (s *stubRepo) ListMedicationSnapshots(ctx context.Context) ([]MedicationSnapshot, error) {
	return []MedicationSnapshot{{ID: 1, Name: "Paracétamol", Quantity: 40, CreatedAt: time.Now()}}, nil
}

func (s *stubRepo) ListRecentSaleSnapshots(ctx context.Context, limit int) ([]SaleSnapshot, error) {
	return []SaleSnapshot{{ID: 3, SaleNumber: "V202608290001", Total: 7200, CreatedAt: time.Now()}}, nil
}

func TestStats(t *testing.T) {
	repo := &stubRepo{medications: 120, lowStock: 4, todayCount: 9, todayTotal: 56000, customers: 31}
	svc := NewService(repo)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 120, stats.TotalMedications)
	assert.EqualValues(t, 4, stats.LowStockCount)
	assert.EqualValues(t, 9, stats.TodaySalesCount)
	assert.InDelta(t, 56000, stats.TodayRevenue, 0.001)
	assert.EqualValues(t, 31, stats.TotalCustomers)
}

func TestWriteSnapshot(t *testing.T) {
	repo := &stubRepo{medications: 1, lowStock: 0, customers: 2}
	svc := NewService(repo)

	dir := t.TempDir()
	path, err := svc.WriteSnapshot(context.Background(), dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var snapshot Snapshot
	require.NoError(t, json.Unmarshal(data, &snapshot))
	assert.EqualValues(t, 1, snapshot.Medications.Total)
	assert.EqualValues(t, 12, snapshot.Sales.Total)
	assert.InDelta(t, 450000, snapshot.Sales.TotalRevenue, 0.001)
	assert.EqualValues(t, 2, snapshot.Customers.Total)
	assert.Len(t, snapshot.Medications.List, 1)
	assert.NotEmpty(t, snapshot.Timestamp)
}
