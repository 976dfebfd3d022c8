package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairyops/internal/core/apperror"
	"dairyops/internal/core/clock"
	"dairyops/internal/core/id"
	"dairyops/internal/core/numerator"
	"dairyops/internal/core/tx"
	"dairyops/internal/core/types"
	"dairyops/internal/domain/audit"
	"dairyops/internal/domain/inventory"
)

type memRepo struct {
	sales map[id.ID]*Sale
}

func (m *memRepo) Create(_ context.Context, s *Sale) error {
	cp := *s
	m.sales[s.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, saleID id.ID) (*Sale, error) {
	s, ok := m.sales[saleID]
	if !ok {
		return nil, apperror.NewNotFound("sale", saleID)
	}
	cp := *s
	return &cp, nil
}

func (m *memRepo) GetForUpdate(ctx context.Context, saleID id.ID) (*Sale, error) {
	return m.Get(ctx, saleID)
}

func (m *memRepo) UpdateStatus(_ context.Context, saleID id.ID, status PaymentStatus) error {
	m.sales[saleID].PaymentStatus = status
	return nil
}

func (m *memRepo) List(_ context.Context, limit int) ([]*Sale, error) {
	var out []*Sale
	for _, s := range m.sales {
		if len(out) == limit {
			break
		}
		out = append(out, s)
	}
	return out, nil
}

type fakeStock struct {
	items map[id.ID]*inventory.Item
	today time.Time
}

func (f *fakeStock) Get(_ context.Context, itemID id.ID) (*inventory.Item, error) {
	it, ok := f.items[itemID]
	if !ok {
		return nil, apperror.NewNotFound("inventory item", itemID)
	}
	return it, nil
}

func (f *fakeStock) Consume(ctx context.Context, itemID id.ID, amount types.Quantity, _ string) (*inventory.Item, error) {
	it, err := f.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := it.Consume(amount, f.today); err != nil {
		return nil, err
	}
	return it, nil
}

func (f *fakeStock) Restock(ctx context.Context, itemID id.ID, amount types.Quantity, _ string) (*inventory.Item, error) {
	it, err := f.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	it.CurrentQuantity = it.CurrentQuantity.Add(amount)
	return it, nil
}

type adjustment struct {
	sku   string
	delta string
}

type fakeStorage struct {
	adjustments []adjustment
}

func (f *fakeStorage) AdjustForInventoryItem(_ context.Context, item *inventory.Item, delta types.Quantity) (bool, error) {
	f.adjustments = append(f.adjustments, adjustment{sku: item.SKU, delta: delta.String()})
	return item.BatchID != nil, nil
}

type fixture struct {
	svc     *Service
	repo    *memRepo
	stock   *fakeStock
	storage *fakeStorage
	mala    *inventory.Item
	sugar   *inventory.Item
}

func newFixture() *fixture {
	now := time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)
	batch := id.New()
	mala := &inventory.Item{ID: id.New(), Name: "Mala", SKU: "MALA-CL-500", Unit: inventory.UnitPieces,
		CurrentQuantity: types.Must("50"), DefaultPrice: types.Must("60"), BatchID: &batch}
	sugar := &inventory.Item{ID: id.New(), Name: "Sugar", SKU: "SUGAR-1KG", Unit: inventory.UnitKilograms,
		CurrentQuantity: types.Must("10"), DefaultPrice: types.Must("150")}

	f := &fixture{
		repo:    &memRepo{sales: map[id.ID]*Sale{}},
		stock:   &fakeStock{items: map[id.ID]*inventory.Item{mala.ID: mala, sugar.ID: sugar}, today: now},
		storage: &fakeStorage{},
		mala:    mala,
		sugar:   sugar,
	}
	f.svc = NewService(f.repo, f.stock, f.storage, &numerator.Memory{}, tx.Passthrough{}, &clock.Fixed{At: now}, audit.Nop{})
	return f
}

func TestService_Record(t *testing.T) {
	f := newFixture()
	price := types.Must("55")

	sale, err := f.svc.Record(context.Background(), RecordInput{
		CustomerName: "Walk-in",
		PaymentMode:  ModeMpesa,
		Lines: []LineInput{
			{InventoryItemID: f.mala.ID, Quantity: types.Must("10"), Price: &price},
			{InventoryItemID: f.sugar.ID, Quantity: types.Must("2")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "SL-2025-00001", sale.Number)
	assert.Equal(t, PaymentPending, sale.PaymentStatus)
	assert.True(t, sale.TotalAmount.Equal(types.Must("850")), "10×55 + 2×150, got %s", sale.TotalAmount)
	assert.Equal(t, "MALA-CL-500", sale.Items[0].SKU)

	assert.True(t, f.mala.CurrentQuantity.Equal(types.Must("40")))
	assert.True(t, f.sugar.CurrentQuantity.Equal(types.Must("8")))
	assert.Equal(t, []adjustment{{"MALA-CL-500", "-10"}, {"SUGAR-1KG", "-2"}}, f.storage.adjustments)
	assert.Contains(t, f.repo.sales, sale.ID)
}

func TestService_Record_Numbers(t *testing.T) {
	f := newFixture()
	in := RecordInput{Lines: []LineInput{{InventoryItemID: f.sugar.ID, Quantity: types.Must("1")}}}

	first, err := f.svc.Record(context.Background(), in)
	require.NoError(t, err)
	second, err := f.svc.Record(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "SL-2025-00001", first.Number)
	assert.Equal(t, "SL-2025-00002", second.Number)
	assert.Equal(t, ModeCash, first.PaymentMode)
}

func TestService_Record_InsufficientStock(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Record(context.Background(), RecordInput{
		Lines: []LineInput{{InventoryItemID: f.sugar.ID, Quantity: types.Must("11")}},
	})

	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
	assert.Empty(t, f.repo.sales)
	assert.Empty(t, f.storage.adjustments)
}

func TestService_Record_Validation(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Record(context.Background(), RecordInput{})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.Record(context.Background(), RecordInput{
		Lines: []LineInput{{InventoryItemID: f.sugar.ID, Quantity: types.Must("0")}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.Record(context.Background(), RecordInput{
		PaymentMode: "cheque",
		Lines:       []LineInput{{InventoryItemID: f.sugar.ID, Quantity: types.Must("1")}},
	})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestService_Refund(t *testing.T) {
	f := newFixture()
	sale, err := f.svc.Record(context.Background(), RecordInput{
		Lines: []LineInput{{InventoryItemID: f.mala.ID, Quantity: types.Must("5")}},
	})
	require.NoError(t, err)

	refunded, err := f.svc.Refund(context.Background(), sale.ID)
	require.NoError(t, err)

	assert.Equal(t, PaymentRefunded, refunded.PaymentStatus)
	assert.True(t, f.mala.CurrentQuantity.Equal(types.Must("50")))
	assert.Equal(t, adjustment{"MALA-CL-500", "5"}, f.storage.adjustments[len(f.storage.adjustments)-1])

	_, err = f.svc.Refund(context.Background(), sale.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}

func TestSale_Recalculate(t *testing.T) {
	s := &Sale{Items: []*Item{
		{Quantity: types.Must("1.5"), PricePerUnit: types.Must("10.333")},
		{Quantity: types.Must("2"), PricePerUnit: types.Must("4")},
	}}
	s.Recalculate()
	assert.Equal(t, "23.5", s.TotalAmount.String())
}
