package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryMedication struct {
	name     string
	price    float64
	quantity int64
}

type memoryRepo struct {
	medications map[int64]*memoryMedication
	counters    map[string]int64
	sales       map[int64]Sale
	items       []SaleItem
	movements   []string
	nextSaleID  int64
	nextItemID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		medications: map[int64]*memoryMedication{},
		counters:    map[string]int64{},
		sales:       map[int64]Sale{},
		nextSaleID:  1,
		nextItemID:  1,
	}
}

type memoryTx struct {
	repo      *memoryRepo
	sales     map[int64]Sale
	items     []SaleItem
	movements []string
	qty       map[int64]int64
	counters  map[string]int64
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{
		repo:     m,
		sales:    map[int64]Sale{},
		qty:      map[int64]int64{},
		counters: map[string]int64{},
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, s := range tx.sales {
		m.sales[id] = s
	}
	m.items = append(m.items, tx.items...)
	m.movements = append(m.movements, tx.movements...)
	for id, q := range tx.qty {
		m.medications[id].quantity = q
	}
	for day, seq := range tx.counters {
		m.counters[day] = seq
	}
	return nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Sale, error) {
	return m.sales[id], nil
}

func (m *memoryRepo) GetItems(ctx context.Context, saleID int64) ([]SaleItem, error) {
	var out []SaleItem
	for _, it := range m.items {
		if it.SaleID == saleID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memoryRepo) List(ctx context.Context, filters ListFilters) ([]Sale, float64, error) {
	var out []Sale
	var revenue float64
	for _, s := range m.sales {
		out = append(out, s)
		revenue += s.Total
	}
	return out, revenue, nil
}

func (t *memoryTx) NextSaleSequence(ctx context.Context, day time.Time) (int64, error) {
	key := day.Format("2006-01-02")
	seq, ok := t.counters[key]
	if !ok {
		seq = t.repo.counters[key]
	}
	seq++
	t.counters[key] = seq
	return seq, nil
}

func (t *memoryTx) InsertSale(ctx context.Context, s Sale) (int64, error) {
	s.ID = t.repo.nextSaleID
	t.repo.nextSaleID++
	t.sales[s.ID] = s
	return s.ID, nil
}

func (t *memoryTx) GetMedicationForUpdate(ctx context.Context, medicationID int64) (LockedMedication, error) {
	med, ok := t.repo.medications[medicationID]
	if !ok {
		return LockedMedication{}, ErrUnknownMedication
	}
	qty, dirty := t.qty[medicationID]
	if !dirty {
		qty = med.quantity
	}
	return LockedMedication{ID: medicationID, Name: med.name, SellingPrice: med.price, Quantity: qty}, nil
}

func (t *memoryTx) SetMedicationQuantity(ctx context.Context, medicationID, quantity int64) error {
	t.qty[medicationID] = quantity
	return nil
}

func (t *memoryTx) InsertStockMovement(ctx context.Context, medicationID, quantity int64, createdBy *int64, reference string) error {
	t.movements = append(t.movements, reference)
	return nil
}

func (t *memoryTx) InsertSaleItem(ctx context.Context, item SaleItem) (int64, error) {
	item.ID = t.repo.nextItemID
	t.repo.nextItemID++
	t.items = append(t.items, item)
	return item.ID, nil
}

func (t *memoryTx) UpdateSaleAmounts(ctx context.Context, s Sale) error {
	stored := t.sales[s.ID]
	stored.Subtotal = s.Subtotal
	stored.DiscountAmount = s.DiscountAmount
	stored.Total = s.Total
	stored.ChangeAmount = s.ChangeAmount
	t.sales[s.ID] = stored
	return nil
}

// conflictingRepo fails the first n transactions with a serialization
// error, the way a finalization that loses the day counter row under
// repeatable read does.
type conflictingRepo struct {
	*memoryRepo
	conflicts int
	attempts  int
}

func (c *conflictingRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	c.attempts++
	if c.conflicts > 0 {
		c.conflicts--
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
	}
	return c.memoryRepo.WithTx(ctx, fn)
}

func newTestService(repo RepositoryPort) *Service {
	svc := NewService(repo, nil, nil)
	svc.now = func() time.Time {
		return time.Date(2026, 8, 29, 10, 0, 0, 0, time.Local)
	}
	return svc
}

func TestCreateSaleTwoLines(t *testing.T) {
	repo := newMemoryRepo()
	repo.medications[1] = &memoryMedication{name: "Paracétamol", price: 600, quantity: 40}
	repo.medications[2] = &memoryMedication{name: "Ibuprofène", price: 1200, quantity: 15}
	svc := newTestService(repo)

	sale, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		PaymentMethod: PaymentCash,
		AmountPaid:    10000,
		Items: []CreateSaleItem{
			{MedicationID: 1, Quantity: 2},
			{MedicationID: 2, Quantity: 5},
		},
	}, nil, "")
	require.NoError(t, err)

	assert.Equal(t, "V202608290001", sale.SaleNumber)
	assert.InDelta(t, 7200, sale.Subtotal, 0.001)
	assert.InDelta(t, 7200, sale.Total, 0.001)
	assert.InDelta(t, 2800, sale.ChangeAmount, 0.001)
	assert.Equal(t, StatusCompleted, sale.Status)

	assert.EqualValues(t, 38, repo.medications[1].quantity)
	assert.EqualValues(t, 10, repo.medications[2].quantity)
	assert.Len(t, repo.movements, 2)
	for _, ref := range repo.movements {
		assert.Equal(t, sale.SaleNumber, ref)
	}

	items, err := svc.GetItems(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.InDelta(t, 1200, items[0].Subtotal, 0.001)
	assert.InDelta(t, 6000, items[1].Subtotal, 0.001)
}

func TestCreateSaleAppliesDiscount(t *testing.T) {
	repo := newMemoryRepo()
	repo.medications[1] = &memoryMedication{name: "Paracétamol", price: 1000, quantity: 10}
	svc := newTestService(repo)

	sale, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		PaymentMethod:      PaymentCash,
		DiscountPercentage: 10,
		AmountPaid:         900,
		Items:              []CreateSaleItem{{MedicationID: 1, Quantity: 1}},
	}, nil, "")
	require.NoError(t, err)

	assert.InDelta(t, 1000, sale.Subtotal, 0.001)
	assert.InDelta(t, 100, sale.DiscountAmount, 0.001)
	assert.InDelta(t, 900, sale.Total, 0.001)
	assert.Zero(t, sale.ChangeAmount)
}

func TestCreateSaleUnknownMedicationRollsBack(t *testing.T) {
	repo := newMemoryRepo()
	repo.medications[1] = &memoryMedication{name: "Paracétamol", price: 600, quantity: 40}
	svc := newTestService(repo)

	_, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		PaymentMethod: PaymentCash,
		Items: []CreateSaleItem{
			{MedicationID: 1, Quantity: 2},
			{MedicationID: 999, Quantity: 1},
		},
	}, nil, "")
	require.ErrorIs(t, err, ErrUnknownMedication)

	assert.EqualValues(t, 40, repo.medications[1].quantity, "stock must be untouched after rollback")
	assert.Empty(t, repo.sales)
	assert.Empty(t, repo.items)
	assert.Empty(t, repo.movements)
	assert.Empty(t, repo.counters, "the day counter must roll back with the sale")
}

func TestCreateSaleInsufficientStockRollsBack(t *testing.T) {
	repo := newMemoryRepo()
	repo.medications[1] = &memoryMedication{name: "Paracétamol", price: 600, quantity: 3}
	svc := newTestService(repo)

	_, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		PaymentMethod: PaymentCash,
		Items:         []CreateSaleItem{{MedicationID: 1, Quantity: 4}},
	}, nil, "")
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.EqualValues(t, 3, repo.medications[1].quantity)
	assert.Empty(t, repo.sales)
}

func TestSaleNumbersAreSequentialPerDay(t *testing.T) {
	repo := newMemoryRepo()
	repo.medications[1] = &memoryMedication{name: "Paracétamol", price: 600, quantity: 100}
	svc := newTestService(repo)

	req := CreateSaleRequest{
		PaymentMethod: PaymentCash,
		AmountPaid:    600,
		Items:         []CreateSaleItem{{MedicationID: 1, Quantity: 1}},
	}

	first, err := svc.CreateSale(context.Background(), req, nil, "")
	require.NoError(t, err)
	second, err := svc.CreateSale(context.Background(), req, nil, "")
	require.NoError(t, err)

	assert.Equal(t, "V202608290001", first.SaleNumber)
	assert.Equal(t, "V202608290002", second.SaleNumber)
}

func TestCreateSaleRetriesAfterSerializationConflict(t *testing.T) {
	base := newMemoryRepo()
	base.medications[1] = &memoryMedication{name: "Paracétamol", price: 600, quantity: 40}
	repo := &conflictingRepo{memoryRepo: base, conflicts: 1}
	svc := newTestService(repo)

	sale, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		PaymentMethod: PaymentCash,
		AmountPaid:    600,
		Items:         []CreateSaleItem{{MedicationID: 1, Quantity: 1}},
	}, nil, "")
	require.NoError(t, err, "losing one counter conflict must not fail the sale")

	assert.Equal(t, 2, repo.attempts)
	assert.Equal(t, "V202608290001", sale.SaleNumber)
	assert.EqualValues(t, 39, base.medications[1].quantity)
	assert.Len(t, base.items, 1, "the aborted attempt must leave no lines behind")
}

func TestCreateSaleGivesUpAfterRepeatedConflicts(t *testing.T) {
	repo := &conflictingRepo{memoryRepo: newMemoryRepo(), conflicts: 10}
	repo.medications[1] = &memoryMedication{name: "Paracétamol", price: 600, quantity: 40}
	svc := newTestService(repo)

	_, err := svc.CreateSale(context.Background(), CreateSaleRequest{
		PaymentMethod: PaymentCash,
		Items:         []CreateSaleItem{{MedicationID: 1, Quantity: 1}},
	}, nil, "")
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "40001", pgErr.Code)
	assert.Equal(t, 3, repo.attempts, "retries are bounded")
	assert.Empty(t, repo.sales)
}

func TestCreateSaleRejectsBadPayload(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.CreateSale(context.Background(), CreateSaleRequest{PaymentMethod: PaymentCash}, nil, "")
	assert.ErrorIs(t, err, ErrEmptySale)

	_, err = svc.CreateSale(context.Background(), CreateSaleRequest{
		PaymentMethod: "barter",
		Items:         []CreateSaleItem{{MedicationID: 1, Quantity: 1}},
	}, nil, "")
	assert.Error(t, err)

	_, err = svc.CreateSale(context.Background(), CreateSaleRequest{
		PaymentMethod: PaymentCash,
		Items:         []CreateSaleItem{{MedicationID: 1, Quantity: 0}},
	}, nil, "")
	assert.Error(t, err)
}
