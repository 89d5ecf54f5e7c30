package customers

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	nextID int64
	items  map[int64]Customer
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, items: map[int64]Customer{}}
}

func (m *memoryRepo) List(ctx context.Context, search string, limit, offset int) ([]Customer, error) {
	var out []Customer
	for _, c := range m.items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	if limit > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
		if len(out) > limit {
			out = out[:limit]
		}
	}
	return out, nil
}

func (m *memoryRepo) Count(ctx context.Context, search string) (int, error) {
	return len(m.items), nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Customer, error) {
	return m.items[id], nil
}

func (m *memoryRepo) Create(ctx context.Context, c Customer) (Customer, error) {
	c.ID = m.nextID
	m.nextID++
	m.items[c.ID] = c
	return c, nil
}

func (m *memoryRepo) Update(ctx context.Context, id int64, c Customer) error {
	c.ID = id
	m.items[id] = c
	return nil
}

func (m *memoryRepo) RecentSales(ctx context.Context, customerID int64, limit int) ([]SaleSummary, error) {
	return nil, nil
}

func (m *memoryRepo) TotalSpent(ctx context.Context, customerID int64) (float64, error) {
	return 0, nil
}

func TestCreateRequiresNameAndPhone(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Create(context.Background(), Customer{FirstName: "Awa", LastName: "Diop"})
	assert.Error(t, err, "phone is required")

	_, err = svc.Create(context.Background(), Customer{FirstName: "Awa", Phone: "770000000"})
	assert.Error(t, err, "last name is required")

	created, err := svc.Create(context.Background(), Customer{FirstName: " Awa ", LastName: " Diop ", Phone: " 770000000 "})
	require.NoError(t, err)
	assert.Equal(t, "Awa Diop", created.FullName())
	assert.Equal(t, TypeIndividual, created.CustomerType, "type defaults to individual")
}

func TestCreateRejectsUnknownType(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.Create(context.Background(), Customer{FirstName: "Awa", LastName: "Diop", Phone: "77", CustomerType: "alien"})
	assert.Error(t, err)
}

func TestListPageBoundsResults(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	for i := 0; i < 25; i++ {
		_, err := svc.Create(context.Background(), Customer{
			FirstName: "Client",
			LastName:  fmt.Sprintf("Numéro %02d", i),
			Phone:     fmt.Sprintf("7700000%02d", i),
		})
		require.NoError(t, err)
	}

	custs, p, err := svc.ListPage(context.Background(), "", 1)
	require.NoError(t, err)
	assert.Len(t, custs, 20)
	assert.Equal(t, 25, p.Total)
	assert.Equal(t, 2, p.TotalPages)

	custs, p, err = svc.ListPage(context.Background(), "", 2)
	require.NoError(t, err)
	assert.Len(t, custs, 5)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, "Numéro 20", custs[0].LastName)

	// The POS dropdown list stays unbounded.
	all, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 25)
}

func TestAvailableCredit(t *testing.T) {
	c := Customer{CreditLimit: 50000, CurrentCredit: 12000}
	assert.InDelta(t, 38000, c.AvailableCredit(), 0.001)
}
