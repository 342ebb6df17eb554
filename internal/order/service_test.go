package order_test

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/shop-service/internal/item"
	"github.com/vasiliy-maslov/shop-service/internal/member"
	"github.com/vasiliy-maslov/shop-service/internal/order"
	"github.com/vasiliy-maslov/shop-service/internal/store"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Save(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status order.OrderStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindRoots(ctx context.Context, s order.Search, page *order.Page) ([]*order.Order, error) {
	args := m.Called(ctx, s, page)
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindJoinedRows(ctx context.Context, s order.Search) ([]order.JoinedRow, error) {
	args := m.Called(ctx, s)
	return args.Get(0).([]order.JoinedRow), args.Error(1)
}

func (m *MockOrderRepository) FindItemsByOrderID(ctx context.Context, id uuid.UUID) ([]*order.OrderItem, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]*order.OrderItem), args.Error(1)
}

func (m *MockOrderRepository) FindItemsByOrderIDs(ctx context.Context, ids []uuid.UUID) ([]*order.OrderItem, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]*order.OrderItem), args.Error(1)
}

func (m *MockOrderRepository) FindOrderDTOs(ctx context.Context, s order.Search, page *order.Page) ([]order.OrderQueryDTO, error) {
	args := m.Called(ctx, s, page)
	return args.Get(0).([]order.OrderQueryDTO), args.Error(1)
}

func (m *MockOrderRepository) FindOrderItemDTOs(ctx context.Context, id uuid.UUID) ([]order.OrderItemQueryDTO, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]order.OrderItemQueryDTO), args.Error(1)
}

func (m *MockOrderRepository) FindOrderItemDTOsByOrderIDs(ctx context.Context, ids []uuid.UUID) ([]order.OrderItemQueryDTO, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]order.OrderItemQueryDTO), args.Error(1)
}

type MockMemberFinder struct {
	mock.Mock
}

func (m *MockMemberFinder) FindByID(ctx context.Context, id uuid.UUID) (*member.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*member.Member), args.Error(1)
}

type MockItemStore struct {
	mock.Mock
}

func (m *MockItemStore) FindByID(ctx context.Context, id uuid.UUID) (*item.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*item.Item), args.Error(1)
}

func (m *MockItemStore) Update(ctx context.Context, it *item.Item) error {
	return m.Called(ctx, it).Error(0)
}

type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) LoadOrders(ctx context.Context, s order.Search, page *order.Page, opts order.LoadOptions) ([]*order.Order, error) {
	args := m.Called(ctx, s, page, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockLoader) LoadOrderDTOs(ctx context.Context, s order.Search, page *order.Page, strategy order.Strategy) ([]order.OrderQueryDTO, error) {
	args := m.Called(ctx, s, page, strategy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.OrderQueryDTO), args.Error(1)
}

// recordingTx calls fn directly and records which kind of transaction was asked for.
type recordingTx struct {
	writes, reads int
}

func (r *recordingTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.writes++
	return fn(ctx)
}

func (r *recordingTx) WithinReadOnlyTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.reads++
	return fn(ctx)
}

type serviceDeps struct {
	orders  *MockOrderRepository
	members *MockMemberFinder
	items   *MockItemStore
	loader  *MockLoader
	tx      *recordingTx
	svc     order.Service
}

func newServiceDeps() serviceDeps {
	d := serviceDeps{
		orders:  new(MockOrderRepository),
		members: new(MockMemberFinder),
		items:   new(MockItemStore),
		loader:  new(MockLoader),
		tx:      &recordingTx{},
	}
	d.svc = order.NewService(d.orders, d.members, d.items, d.loader, d.tx)
	return d
}

func (d serviceDeps) assertExpectations(t *testing.T) {
	d.orders.AssertExpectations(t)
	d.members.AssertExpectations(t)
	d.items.AssertExpectations(t)
	d.loader.AssertExpectations(t)
}

func TestOrder_Success(t *testing.T) {
	// Arrange
	d := newServiceDeps()
	m := &member.Member{ID: uuid.Must(uuid.NewV4()), Name: "kim", Address: member.Address{City: "Seoul", Street: "river", Zipcode: "123"}}
	it := &item.Item{ID: uuid.Must(uuid.NewV4()), Kind: item.KindBook, Name: "JPA", Price: 10000, StockQuantity: 10, Book: &item.Book{}}

	d.members.On("FindByID", mock.Anything, m.ID).Return(m, nil).Once()
	d.items.On("FindByID", mock.Anything, it.ID).Return(it, nil).Once()
	d.items.On("Update", mock.Anything, mock.MatchedBy(func(got *item.Item) bool {
		return got.ID == it.ID && got.StockQuantity == 8
	})).Return(nil).Once()

	var saved *order.Order
	d.orders.On("Save", mock.Anything, mock.AnythingOfType("*order.Order")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*order.Order) }).
		Return(nil).Once()

	// Act
	id, err := d.svc.Order(context.Background(), m.ID, it.ID, 2)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, saved.ID, id)
	assert.Equal(t, order.StatusOrder, saved.Status)
	assert.Equal(t, m.Address, saved.Delivery.Address)
	assert.Equal(t, order.DeliveryReady, saved.Delivery.Status)
	require.Len(t, saved.Items, 1)
	assert.Equal(t, int64(10000), saved.Items[0].OrderPrice)
	assert.Equal(t, 2, saved.Items[0].Count)
	assert.Equal(t, int64(20000), saved.TotalPrice())
	assert.Equal(t, 1, d.tx.writes)
	d.assertExpectations(t)
}

func TestOrder_InsufficientStock(t *testing.T) {
	d := newServiceDeps()
	m := &member.Member{ID: uuid.Must(uuid.NewV4()), Name: "kim"}
	it := &item.Item{ID: uuid.Must(uuid.NewV4()), Name: "JPA", Price: 10000, StockQuantity: 1}

	d.members.On("FindByID", mock.Anything, m.ID).Return(m, nil).Once()
	d.items.On("FindByID", mock.Anything, it.ID).Return(it, nil).Once()

	_, err := d.svc.Order(context.Background(), m.ID, it.ID, 2)

	require.ErrorIs(t, err, item.ErrInsufficientStock)
	assert.Equal(t, 1, it.StockQuantity)
	d.items.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	d.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	d.assertExpectations(t)
}

func TestOrder_MemberNotFound(t *testing.T) {
	d := newServiceDeps()
	memberID, itemID := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())

	d.members.On("FindByID", mock.Anything, memberID).Return(nil, member.ErrNotFound).Once()

	_, err := d.svc.Order(context.Background(), memberID, itemID, 1)

	require.ErrorIs(t, err, member.ErrNotFound)
	d.items.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestOrder_StockConflict(t *testing.T) {
	d := newServiceDeps()
	m := &member.Member{ID: uuid.Must(uuid.NewV4()), Name: "kim"}
	it := &item.Item{ID: uuid.Must(uuid.NewV4()), Name: "JPA", Price: 10000, StockQuantity: 5}
	conflict := errors.Join(store.ErrConflict, errors.New("stale version"))

	d.members.On("FindByID", mock.Anything, m.ID).Return(m, nil).Once()
	d.items.On("FindByID", mock.Anything, it.ID).Return(it, nil).Once()
	d.items.On("Update", mock.Anything, it).Return(conflict).Once()

	_, err := d.svc.Order(context.Background(), m.ID, it.ID, 1)

	require.ErrorIs(t, err, store.ErrConflict)
	d.orders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	d.assertExpectations(t)
}

func TestCancelOrder_RestoresStock(t *testing.T) {
	d := newServiceDeps()
	it := &item.Item{ID: uuid.Must(uuid.NewV4()), Name: "JPA", Price: 1000, StockQuantity: 8}
	o := &order.Order{
		ID:       uuid.Must(uuid.NewV4()),
		Delivery: &order.Delivery{Status: order.DeliveryReady},
		Status:   order.StatusOrder,
		Items: []*order.OrderItem{
			{ID: uuid.Must(uuid.NewV4()), Item: it, OrderPrice: 1000, Count: 2},
			{ID: uuid.Must(uuid.NewV4()), Item: it, OrderPrice: 1000, Count: 1},
		},
	}

	d.orders.On("FindByID", mock.Anything, o.ID).Return(o, nil).Once()
	d.items.On("Update", mock.Anything, it).Return(nil).Once()
	d.orders.On("UpdateStatus", mock.Anything, o.ID, order.StatusCancel).Return(nil).Once()

	err := d.svc.CancelOrder(context.Background(), o.ID)

	require.NoError(t, err)
	assert.Equal(t, 11, it.StockQuantity)
	d.assertExpectations(t)
}

func TestCancelOrder_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		order   *order.Order
		wantErr error
	}{
		{
			name:    "already_cancelled",
			order:   &order.Order{ID: uuid.Must(uuid.NewV4()), Delivery: &order.Delivery{Status: order.DeliveryReady}, Status: order.StatusCancel},
			wantErr: order.ErrAlreadyCancelled,
		},
		{
			name:    "delivered",
			order:   &order.Order{ID: uuid.Must(uuid.NewV4()), Delivery: &order.Delivery{Status: order.DeliveryComp}, Status: order.StatusOrder},
			wantErr: order.ErrAlreadyDelivered,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newServiceDeps()
			d.orders.On("FindByID", mock.Anything, tt.order.ID).Return(tt.order, nil).Once()

			err := d.svc.CancelOrder(context.Background(), tt.order.ID)

			require.ErrorIs(t, err, tt.wantErr)
			d.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
			d.items.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		})
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	d := newServiceDeps()
	id := uuid.Must(uuid.NewV4())
	d.orders.On("FindByID", mock.Anything, id).Return(nil, order.ErrNotFound).Once()

	o, err := d.svc.GetOrder(context.Background(), id)

	require.ErrorIs(t, err, order.ErrNotFound)
	assert.Nil(t, o)
	assert.Equal(t, 1, d.tx.reads)
}

func TestFindOrders_UsesReadOnlyTransaction(t *testing.T) {
	d := newServiceDeps()
	search := order.Search{Status: order.StatusOrder, MemberName: "kim"}
	page := &order.Page{Offset: 0, Limit: 10}
	opts := order.LoadOptions{Strategy: order.StrategyBatch, Collections: []order.Collection{order.CollectionOrderItems}}
	want := []*order.Order{{ID: uuid.Must(uuid.NewV4())}}

	d.loader.On("LoadOrders", mock.Anything, search, page, opts).Return(want, nil).Once()

	got, err := d.svc.FindOrders(context.Background(), search, page, opts)

	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, d.tx.reads)
	assert.Zero(t, d.tx.writes)
	d.assertExpectations(t)
}

func TestFindOrders_ConsistencyFaultIsWrapped(t *testing.T) {
	d := newServiceDeps()
	fault := errors.Join(order.ErrConsistencyFault, errors.New("orphan"))
	d.loader.On("LoadOrders", mock.Anything, order.Search{}, (*order.Page)(nil), order.LoadOptions{}).Return(nil, fault).Once()

	_, err := d.svc.FindOrders(context.Background(), order.Search{}, nil, order.LoadOptions{})

	require.ErrorIs(t, err, order.ErrConsistencyFault)
	assert.Contains(t, err.Error(), "service: failed to load orders")
}

func TestFindOrderDTOs_UsesReadOnlyTransaction(t *testing.T) {
	d := newServiceDeps()
	search := order.Search{Status: order.StatusOrder}
	want := []order.OrderQueryDTO{{OrderID: uuid.Must(uuid.NewV4()), Name: "kim"}}

	d.loader.On("LoadOrderDTOs", mock.Anything, search, (*order.Page)(nil), order.StrategyBatch).Return(want, nil).Once()

	got, err := d.svc.FindOrderDTOs(context.Background(), search, nil, order.StrategyBatch)

	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, d.tx.reads)
	assert.Zero(t, d.tx.writes)
	d.assertExpectations(t)
}

func TestFindOrderDTOs_UnknownStrategyIsNotWrapped(t *testing.T) {
	d := newServiceDeps()
	d.loader.On("LoadOrderDTOs", mock.Anything, order.Search{}, (*order.Page)(nil), order.StrategyJoin).
		Return(nil, order.ErrUnknownStrategy).Once()

	_, err := d.svc.FindOrderDTOs(context.Background(), order.Search{}, nil, order.StrategyJoin)

	require.ErrorIs(t, err, order.ErrUnknownStrategy)
	assert.NotContains(t, err.Error(), "service:")
}
