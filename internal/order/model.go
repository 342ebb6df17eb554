package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/shop-service/internal/item"
	"github.com/vasiliy-maslov/shop-service/internal/member"
)

var (
	ErrNotFound         = errors.New("order not found")
	ErrAlreadyDelivered = errors.New("order has already been delivered and cannot be cancelled")
	ErrAlreadyCancelled = errors.New("order is already cancelled")
	ErrEmptyOrder       = errors.New("order must contain at least one item")
)

type OrderStatus string

const (
	StatusOrder  OrderStatus = "ORDER"
	StatusCancel OrderStatus = "CANCEL"
)

func (s OrderStatus) String() string {
	return string(s)
}

type DeliveryStatus string

const (
	DeliveryReady DeliveryStatus = "READY"
	DeliveryComp  DeliveryStatus = "COMP"
)

type Delivery struct {
	ID      uuid.UUID
	Address member.Address
	Status  DeliveryStatus
}

// Order owns its items. Member and Item are referenced, never owned.
type Order struct {
	ID        uuid.UUID
	Member    *member.Member
	Delivery  *Delivery
	Items     []*OrderItem
	OrderDate time.Time
	Status    OrderStatus
}

// OrderItem points back to its order by id only.
type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	Item       *item.Item
	OrderPrice int64
	Count      int
}

// NewOrderItem takes count units out of the item's stock. When the stock is short no
// OrderItem is created and the item is left as it was.
func NewOrderItem(it *item.Item, orderPrice int64, count int) (*OrderItem, error) {
	if err := it.RemoveStock(count); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		it.AddStock(count)
		return nil, fmt.Errorf("failed to generate order item ID: %w", err)
	}

	return &OrderItem{
		ID:         id,
		Item:       it,
		OrderPrice: orderPrice,
		Count:      count,
	}, nil
}

// Cancel returns the ordered units to stock. Calling it twice restores them twice;
// Order.Cancel is the guarded entry point.
func (oi *OrderItem) Cancel() {
	oi.Item.AddStock(oi.Count)
}

func (oi *OrderItem) TotalPrice() int64 {
	return oi.OrderPrice * int64(oi.Count)
}

func NewOrder(m *member.Member, d *Delivery, items ...*OrderItem) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate order ID: %w", err)
	}
	if d.ID == uuid.Nil {
		if d.ID, err = uuid.NewV4(); err != nil {
			return nil, fmt.Errorf("failed to generate delivery ID: %w", err)
		}
	}

	for _, oi := range items {
		oi.OrderID = id
	}

	return &Order{
		ID:        id,
		Member:    m,
		Delivery:  d,
		Items:     items,
		OrderDate: time.Now().UTC().Truncate(time.Microsecond),
		Status:    StatusOrder,
	}, nil
}

func (o *Order) Cancel() error {
	if o.Delivery != nil && o.Delivery.Status == DeliveryComp {
		return ErrAlreadyDelivered
	}
	if o.Status == StatusCancel {
		return ErrAlreadyCancelled
	}

	o.Status = StatusCancel
	for _, oi := range o.Items {
		oi.Cancel()
	}
	return nil
}

func (o *Order) TotalPrice() int64 {
	var total int64
	for _, oi := range o.Items {
		total += oi.TotalPrice()
	}
	return total
}
