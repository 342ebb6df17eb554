package order

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OrderQueryDTO is an order selected straight into its response shape. No
// aggregate is built on the way.
type OrderQueryDTO struct {
	OrderID     uuid.UUID           `json:"orderId"`
	Name        string              `json:"name"`
	OrderDate   time.Time           `json:"orderDate"`
	OrderStatus OrderStatus         `json:"orderStatus"`
	Address     AddressResponse     `json:"address"`
	OrderItems  []OrderItemQueryDTO `json:"orderItems"`
}

// OrderItemQueryDTO is one order line. OrderID groups the lines of a batched
// read back onto their orders.
type OrderItemQueryDTO struct {
	OrderItemID uuid.UUID `json:"-" db:"order_item_id"`
	OrderID     uuid.UUID `json:"-" db:"order_id"`
	ItemName    string    `json:"itemName" db:"item_name"`
	OrderPrice  int64     `json:"orderPrice" db:"order_price"`
	Count       int       `json:"count" db:"order_count"`
}

// LoadOrderDTOs selects the orders matching s as DTOs. StrategyLazy reads the
// lines of every order with its own query. StrategyBatch, and StrategyAuto with it,
// reads them with IN queries of at most BatchSize orders and groups them by order id.
func (p *Planner) LoadOrderDTOs(ctx context.Context, s Search, page *Page, strategy Strategy) (dtos []OrderQueryDTO, err error) {
	if page != nil {
		if err := page.Validate(); err != nil {
			return nil, err
		}
	}
	switch strategy {
	case StrategyAuto:
		strategy = StrategyBatch
	case StrategyLazy, StrategyBatch:
	default:
		return nil, fmt.Errorf("%w: %s has no DTO plan", ErrUnknownStrategy, strategy)
	}

	ctx, span := p.tracer.Start(ctx, "order.LoadOrderDTOs", trace.WithAttributes(
		attribute.String("order.strategy", strategy.String()),
		attribute.Bool("order.paginated", page != nil),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("order.count", len(dtos)))
		}
		span.End()
	}()

	err = p.query(ctx, "order.FindOrderDTOs", func(ctx context.Context) (err error) {
		dtos, err = p.orders.FindOrderDTOs(ctx, s, page)
		return err
	}, attribute.Bool("order.paginated", page != nil))
	if err != nil {
		return nil, err
	}

	if strategy == StrategyLazy {
		err = p.attachLinesPerOrder(ctx, dtos)
	} else {
		dtos, err = p.attachLinesBatched(ctx, dtos)
	}
	if err != nil {
		return nil, err
	}

	for i := range dtos {
		if dtos[i].OrderItems == nil {
			dtos[i].OrderItems = []OrderItemQueryDTO{}
		}
	}
	return dtos, nil
}

func (p *Planner) attachLinesPerOrder(ctx context.Context, dtos []OrderQueryDTO) error {
	for i := range dtos {
		dto := &dtos[i]
		err := p.query(ctx, "order.FindOrderItemDTOs", func(ctx context.Context) (err error) {
			dto.OrderItems, err = p.orders.FindOrderItemDTOs(ctx, dto.OrderID)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Planner) attachLinesBatched(ctx context.Context, dtos []OrderQueryDTO) ([]OrderQueryDTO, error) {
	if len(dtos) == 0 {
		return dtos, nil
	}

	index := make(map[uuid.UUID]int, len(dtos))
	ids := make([]uuid.UUID, 0, len(dtos))
	unique := dtos[:0]
	for _, dto := range dtos {
		if _, dup := index[dto.OrderID]; dup {
			continue
		}
		index[dto.OrderID] = len(unique)
		ids = append(ids, dto.OrderID)
		unique = append(unique, dto)
	}
	dtos = unique

	lines, err := batchFetch(ctx, p, "order.FindOrderItemDTOsByOrderIDs", ids,
		p.orders.FindOrderItemDTOsByOrderIDs,
		func(l OrderItemQueryDTO) uuid.UUID { return l.OrderItemID })
	if err != nil {
		return nil, err
	}

	for _, l := range lines {
		i, ok := index[l.OrderID]
		if !ok {
			if err := p.orphan("order item", l.OrderItemID, "order", l.OrderID); err != nil {
				return nil, err
			}
			continue
		}
		dtos[i].OrderItems = append(dtos[i].OrderItems, l)
	}
	return dtos, nil
}
