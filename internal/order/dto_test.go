package order_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/shop-service/internal/order"
)

func toLine(oi *order.OrderItem) order.OrderItemQueryDTO {
	return order.OrderItemQueryDTO{
		OrderItemID: oi.ID,
		OrderID:     oi.OrderID,
		ItemName:    oi.Item.Name,
		OrderPrice:  oi.OrderPrice,
		Count:       oi.Count,
	}
}

func (f *fakeStore) FindOrderDTOs(_ context.Context, _ order.Search, page *order.Page) ([]order.OrderQueryDTO, error) {
	f.dtoRootCalls++
	src := f.orders
	if page != nil {
		start := min(page.Offset, len(src))
		end := min(start+page.Limit, len(src))
		src = src[start:end]
	}
	out := make([]order.OrderQueryDTO, 0, len(src))
	for _, o := range src {
		out = append(out, order.OrderQueryDTO{
			OrderID:     o.ID,
			Name:        o.Member.Name,
			OrderDate:   o.OrderDate,
			OrderStatus: o.Status,
			Address:     order.AddressResponse{City: o.Delivery.Address.City},
		})
	}
	return out, nil
}

func (f *fakeStore) FindOrderItemDTOs(_ context.Context, orderID uuid.UUID) ([]order.OrderItemQueryDTO, error) {
	f.dtoPerOrderCalls++
	var out []order.OrderItemQueryDTO
	for _, oi := range f.items[orderID] {
		out = append(out, toLine(oi))
	}
	return out, nil
}

func (f *fakeStore) FindOrderItemDTOsByOrderIDs(_ context.Context, ids []uuid.UUID) ([]order.OrderItemQueryDTO, error) {
	f.dtoBatchCalls = append(f.dtoBatchCalls, append([]uuid.UUID(nil), ids...))
	var out []order.OrderItemQueryDTO
	for _, id := range ids {
		for _, oi := range f.items[id] {
			out = append(out, toLine(oi))
		}
	}
	for _, oi := range f.extra {
		out = append(out, toLine(oi))
	}
	return out, nil
}

func TestLoadOrderDTOs_LazyIssuesOneQueryPerOrder(t *testing.T) {
	fs := newFakeStore(5, func(int) int { return 2 })
	planner := order.NewPlanner(fs, &fakeCategories{}, order.PlannerConfig{BatchSize: 2})

	dtos, err := planner.LoadOrderDTOs(context.Background(), order.Search{}, nil, order.StrategyLazy)
	require.NoError(t, err)

	assert.Equal(t, 1, fs.dtoRootCalls)
	assert.Equal(t, 5, fs.dtoPerOrderCalls)
	assert.Empty(t, fs.dtoBatchCalls)
	require.Len(t, dtos, 5)
	for _, dto := range dtos {
		assert.Len(t, dto.OrderItems, 2)
	}
}

func TestLoadOrderDTOs_BatchGroupsByOrderID(t *testing.T) {
	fs := newFakeStore(7, func(i int) int { return i%3 + 1 })
	planner := order.NewPlanner(fs, &fakeCategories{}, order.PlannerConfig{BatchSize: 3})

	dtos, err := planner.LoadOrderDTOs(context.Background(), order.Search{}, nil, order.StrategyBatch)
	require.NoError(t, err)

	assert.Equal(t, 1, fs.dtoRootCalls)
	assert.Zero(t, fs.dtoPerOrderCalls)
	assert.Equal(t, []int{3, 3, 1}, batchSizes(fs.dtoBatchCalls))
	require.Len(t, dtos, 7)
	for i, dto := range dtos {
		assert.Equal(t, fs.orders[i].ID, dto.OrderID)
		require.Len(t, dto.OrderItems, i%3+1)
		for _, line := range dto.OrderItems {
			assert.Equal(t, dto.OrderID, line.OrderID)
		}
	}
}

func TestLoadOrderDTOs_StrategiesAgree(t *testing.T) {
	fs := newFakeStore(6, func(i int) int { return i % 3 })
	planner := order.NewPlanner(fs, &fakeCategories{}, order.PlannerConfig{BatchSize: 4})
	ctx := context.Background()

	lazy, err := planner.LoadOrderDTOs(ctx, order.Search{}, nil, order.StrategyLazy)
	require.NoError(t, err)
	batched, err := planner.LoadOrderDTOs(ctx, order.Search{}, nil, order.StrategyAuto)
	require.NoError(t, err)

	assert.Equal(t, lazy, batched)
	assert.NotNil(t, lazy[0].OrderItems, "orders without lines get an empty list")
	assert.Empty(t, lazy[0].OrderItems)
}

func TestLoadOrderDTOs_PageBoundsChildQueries(t *testing.T) {
	fs := newFakeStore(10, func(int) int { return 1 })
	planner := order.NewPlanner(fs, &fakeCategories{}, order.PlannerConfig{BatchSize: 100})

	dtos, err := planner.LoadOrderDTOs(context.Background(), order.Search{}, &order.Page{Offset: 2, Limit: 3}, order.StrategyBatch)
	require.NoError(t, err)

	require.Len(t, dtos, 3)
	assert.Equal(t, fs.orders[2].ID, dtos[0].OrderID)
	require.Len(t, fs.dtoBatchCalls, 1)
	assert.ElementsMatch(t, orderIDs(fs.orders[2:5]), fs.dtoBatchCalls[0])
}

func TestLoadOrderDTOs_EmptyResultSkipsChildQuery(t *testing.T) {
	fs := newFakeStore(0, func(int) int { return 0 })
	planner := order.NewPlanner(fs, &fakeCategories{}, order.PlannerConfig{})

	dtos, err := planner.LoadOrderDTOs(context.Background(), order.Search{}, nil, order.StrategyBatch)
	require.NoError(t, err)

	assert.Empty(t, dtos)
	assert.Empty(t, fs.dtoBatchCalls)
}

func TestLoadOrderDTOs_OrphanedLines(t *testing.T) {
	newStore := func() *fakeStore {
		fs := newFakeStore(2, func(int) int { return 1 })
		stranger := newFakeStore(1, func(int) int { return 1 })
		fs.extra = stranger.items[stranger.orders[0].ID]
		return fs
	}

	t.Run("dropped", func(t *testing.T) {
		planner := order.NewPlanner(newStore(), &fakeCategories{}, order.PlannerConfig{})
		dtos, err := planner.LoadOrderDTOs(context.Background(), order.Search{}, nil, order.StrategyBatch)
		require.NoError(t, err)
		require.Len(t, dtos, 2)
		for _, dto := range dtos {
			assert.Len(t, dto.OrderItems, 1)
		}
	})

	t.Run("strict", func(t *testing.T) {
		planner := order.NewPlanner(newStore(), &fakeCategories{}, order.PlannerConfig{Strict: true})
		_, err := planner.LoadOrderDTOs(context.Background(), order.Search{}, nil, order.StrategyBatch)
		require.ErrorIs(t, err, order.ErrConsistencyFault)
	})
}

func TestLoadOrderDTOs_Rejects(t *testing.T) {
	fs := newFakeStore(1, func(int) int { return 1 })
	planner := order.NewPlanner(fs, &fakeCategories{}, order.PlannerConfig{})
	ctx := context.Background()

	_, err := planner.LoadOrderDTOs(ctx, order.Search{}, nil, order.StrategyJoin)
	require.ErrorIs(t, err, order.ErrUnknownStrategy)

	_, err = planner.LoadOrderDTOs(ctx, order.Search{}, &order.Page{Limit: 0}, order.StrategyBatch)
	require.ErrorIs(t, err, order.ErrInvalidPage)

	assert.Zero(t, fs.dtoRootCalls)
}
