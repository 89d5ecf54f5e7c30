package prescriptions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	nextID int64
	items  map[int64]Prescription
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, items: map[int64]Prescription{}}
}

func (m *memoryRepo) ListByCustomer(ctx context.Context, customerID int64) ([]Prescription, error) {
	var out []Prescription
	for _, p := range m.items {
		if p.CustomerID == customerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Prescription, error) {
	return m.items[id], nil
}

func (m *memoryRepo) Create(ctx context.Context, p Prescription) (Prescription, error) {
	p.ID = m.nextID
	m.nextID++
	m.items[p.ID] = p
	return p, nil
}

func (m *memoryRepo) AttachSale(ctx context.Context, id, saleID int64) error {
	p := m.items[id]
	p.SaleID = &saleID
	m.items[id] = p
	return nil
}

func day(offset int) time.Time {
	y, mo, d := time.Now().Date()
	return time.Date(y, mo, d+offset, 0, 0, 0, 0, time.Local)
}

func TestCreateValidatesDates(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Create(context.Background(), Prescription{
		CustomerID:         1,
		PrescriptionNumber: "ORD-1",
		DoctorName:         "Dr Ndiaye",
		PrescriptionDate:   day(0),
		ExpiryDate:         day(-5),
	})
	assert.Error(t, err, "expiry before prescription date must be rejected")

	created, err := svc.Create(context.Background(), Prescription{
		CustomerID:         1,
		PrescriptionNumber: "ORD-2",
		DoctorName:         "Dr Ndiaye",
		PrescriptionDate:   day(0),
		ExpiryDate:         day(30),
	})
	require.NoError(t, err)
	assert.False(t, created.IsExpired())
	assert.False(t, created.IsServed())
}

func TestMarkServed(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), Prescription{
		CustomerID:         1,
		PrescriptionNumber: "ORD-3",
		DoctorName:         "Dr Sow",
		PrescriptionDate:   day(0),
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkServed(context.Background(), created.ID, 42))
	stored, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsServed())
}

func TestIsExpired(t *testing.T) {
	p := Prescription{ExpiryDate: day(-1)}
	assert.True(t, p.IsExpired())
	p.ExpiryDate = day(1)
	assert.False(t, p.IsExpired())
	assert.False(t, Prescription{}.IsExpired(), "no expiry date means never expired")
}
