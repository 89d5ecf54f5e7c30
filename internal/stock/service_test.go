package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmaflow/pharmaflow/internal/shared"
)

type memoryRepo struct {
	quantities map[int64]int64
	movements  []Movement
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{quantities: map[int64]int64{}, nextID: 1}
}

type memoryTx struct {
	repo    *memoryRepo
	pending []Movement
	qty     map[int64]int64
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: m, qty: map[int64]int64{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, q := range tx.qty {
		m.quantities[id] = q
	}
	m.movements = append(m.movements, tx.pending...)
	return nil
}

func (m *memoryRepo) ListRecent(ctx context.Context, medicationID int64, limit int) ([]Movement, error) {
	var out []Movement
	for i := len(m.movements) - 1; i >= 0 && len(out) < limit; i-- {
		if m.movements[i].MedicationID == medicationID {
			out = append(out, m.movements[i])
		}
	}
	return out, nil
}

func (t *memoryTx) GetQuantityForUpdate(ctx context.Context, medicationID int64) (int64, error) {
	if q, ok := t.qty[medicationID]; ok {
		return q, nil
	}
	q, ok := t.repo.quantities[medicationID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return q, nil
}

func (t *memoryTx) SetQuantity(ctx context.Context, medicationID, quantity int64) error {
	t.qty[medicationID] = quantity
	return nil
}

func (t *memoryTx) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	m.ID = t.repo.nextID
	t.repo.nextID++
	t.pending = append(t.pending, m)
	return m.ID, nil
}

func TestRecordOutDecrementsStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.quantities[1] = 50
	svc := NewService(repo, nil, nil, ServiceConfig{})

	_, err := svc.Record(context.Background(), MovementRequest{MedicationID: 1, MovementType: MovementOut, Quantity: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 45, repo.quantities[1])
}

func TestRecordInIncrementsStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.quantities[1] = 10
	svc := NewService(repo, nil, nil, ServiceConfig{})

	_, err := svc.Record(context.Background(), MovementRequest{MedicationID: 1, MovementType: MovementIn, Quantity: 30})
	require.NoError(t, err)
	assert.EqualValues(t, 40, repo.quantities[1])
}

func TestMovementDirections(t *testing.T) {
	add := []MovementType{MovementIn, MovementReturn, MovementAdjust}
	remove := []MovementType{MovementOut, MovementLoss, MovementExpired}

	for _, mt := range add {
		dir, err := mt.Direction()
		require.NoError(t, err)
		assert.EqualValues(t, 1, dir, string(mt))
	}
	for _, mt := range remove {
		dir, err := mt.Direction()
		require.NoError(t, err)
		assert.EqualValues(t, -1, dir, string(mt))
	}

	_, err := MovementType("teleport").Direction()
	assert.ErrorIs(t, err, ErrInvalidMovementType)
}

func TestRecordRejectsNegativeStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.quantities[1] = 3
	svc := NewService(repo, nil, nil, ServiceConfig{})

	_, err := svc.Record(context.Background(), MovementRequest{MedicationID: 1, MovementType: MovementOut, Quantity: 4})
	assert.ErrorIs(t, err, ErrNegativeStock)
	assert.EqualValues(t, 3, repo.quantities[1], "quantity must be untouched after a rejected movement")
	assert.Empty(t, repo.movements, "no movement row may exist after a rejected movement")
}

func TestRecordAllowsNegativeWhenConfigured(t *testing.T) {
	repo := newMemoryRepo()
	repo.quantities[1] = 3
	svc := NewService(repo, nil, nil, ServiceConfig{AllowNegativeStock: true})

	_, err := svc.Record(context.Background(), MovementRequest{MedicationID: 1, MovementType: MovementLoss, Quantity: 4})
	require.NoError(t, err)
	assert.EqualValues(t, -1, repo.quantities[1])
}

func TestRecordRejectsZeroQuantity(t *testing.T) {
	repo := newMemoryRepo()
	repo.quantities[1] = 3
	svc := NewService(repo, nil, nil, ServiceConfig{})

	_, err := svc.Record(context.Background(), MovementRequest{MedicationID: 1, MovementType: MovementIn, Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestRecordUnknownMedication(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, ServiceConfig{})

	_, err := svc.Record(context.Background(), MovementRequest{MedicationID: 99, MovementType: MovementIn, Quantity: 1})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
