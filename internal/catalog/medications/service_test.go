package medications

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	nextID int64
	items  map[int64]Medication
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, items: map[int64]Medication{}}
}

func (m *memoryRepo) List(ctx context.Context, filters ListFilters) ([]Medication, error) {
	var out []Medication
	for _, med := range m.items {
		out = append(out, med)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if filters.Limit > 0 {
		if filters.Offset >= len(out) {
			return nil, nil
		}
		out = out[filters.Offset:]
		if len(out) > filters.Limit {
			out = out[:filters.Limit]
		}
	}
	return out, nil
}

func (m *memoryRepo) Count(ctx context.Context, filters ListFilters) (int, error) {
	return len(m.items), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Medication, error) {
	return m.items[id], nil
}

func (m *memoryRepo) Create(ctx context.Context, med Medication) (Medication, error) {
	med.ID = m.nextID
	m.nextID++
	m.items[med.ID] = med
	return med, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, med Medication) error {
	med.ID = id
	m.items[id] = med
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	delete(m.items, id)
	return nil
}

func (m *memoryRepo) Search(ctx context.Context, normalized string, limit int) ([]SearchResult, error) {
	var out []SearchResult
	for _, med := range m.items {
		if med.Quantity <= 0 {
			continue
		}
		if NormalizeSearchTerm(med.Name) == normalized || len(normalized) > 0 && containsFold(med.Name, normalized) {
			out = append(out, SearchResult{ID: med.ID, Name: med.Name, DCI: med.DCI, Price: med.SellingPrice, Quantity: med.Quantity})
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func containsFold(name, normalized string) bool {
	folded := NormalizeSearchTerm(name)
	for i := 0; i+len(normalized) <= len(folded); i++ {
		if folded[i:i+len(normalized)] == normalized {
			return true
		}
	}
	return false
}

func day(offset int) time.Time {
	y, mo, d := time.Now().Date()
	return time.Date(y, mo, d+offset, 0, 0, 0, 0, time.Local)
}

func TestDerivedStockFlags(t *testing.T) {
	med := Medication{Quantity: 5, MinQuantity: 10, ExpiryDate: day(90)}
	assert.True(t, med.IsLowStock())
	assert.False(t, med.IsExpired())
	assert.False(t, med.IsExpiringSoon())

	med.Quantity = 11
	assert.False(t, med.IsLowStock())

	med.ExpiryDate = day(-1)
	assert.True(t, med.IsExpired())
	assert.False(t, med.IsExpiringSoon(), "expired products are not expiring soon")

	med.ExpiryDate = day(15)
	assert.False(t, med.IsExpired())
	assert.True(t, med.IsExpiringSoon())
}

func TestProfitAndStockValue(t *testing.T) {
	med := Medication{PurchasePrice: 400, SellingPrice: 600, Quantity: 20}
	assert.InDelta(t, 200, med.ProfitMargin(), 0.001)
	assert.InDelta(t, 50, med.ProfitPercentage(), 0.001)
	assert.InDelta(t, 8000, med.StockValue(), 0.001)

	free := Medication{PurchasePrice: 0, SellingPrice: 100}
	assert.Zero(t, free.ProfitPercentage())
}

func TestNormalizeSearchTerm(t *testing.T) {
	assert.Equal(t, "paracetamol", NormalizeSearchTerm("  Paracétamol "))
	assert.Equal(t, "ibuprofene", NormalizeSearchTerm("IBUPROFÈNE"))
}

func TestSearchRequiresTwoCharacters(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	_, err := repo.Create(context.Background(), Medication{Name: "Paracétamol", Quantity: 10, SellingPrice: 500})
	require.NoError(t, err)

	results, err := svc.Search(context.Background(), "p")
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = svc.Search(context.Background(), "paracet")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Paracétamol", results[0].Name)
}

func TestListPaginatesCatalog(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	for i := 0; i < 25; i++ {
		_, err := repo.Create(context.Background(), Medication{Name: fmt.Sprintf("Médicament %02d", i), SellingPrice: 100})
		require.NoError(t, err)
	}

	meds, p, err := svc.List(context.Background(), ListFilters{}, 1)
	require.NoError(t, err)
	assert.Len(t, meds, 20)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 25, p.Total)
	assert.Equal(t, 2, p.TotalPages)
	assert.Equal(t, "Médicament 00", meds[0].Name)

	meds, p, err = svc.List(context.Background(), ListFilters{}, 2)
	require.NoError(t, err)
	assert.Len(t, meds, 5)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, "Médicament 20", meds[0].Name)

	// Out-of-range and zero pages clamp instead of erroring.
	meds, p, err = svc.List(context.Background(), ListFilters{}, 0)
	require.NoError(t, err)
	assert.Len(t, meds, 20)
	assert.Equal(t, 1, p.Page)
}

func TestCreateDefaultsMinQuantity(t *testing.T) {
	svc := NewService(newMemoryRepo())
	created, err := svc.Create(context.Background(), Medication{Name: "Amoxicilline", SellingPrice: 1000})
	require.NoError(t, err)
	assert.EqualValues(t, 10, created.MinQuantity)
}
