package order

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/vasiliy-maslov/shop-service/internal/item"
	"github.com/vasiliy-maslov/shop-service/internal/member"
	"github.com/vasiliy-maslov/shop-service/internal/store"
)

// DefaultMaxResults caps unpaginated root queries.
const DefaultMaxResults = 1000

// JoinedRow is one row of the order/item join. Root is freshly built for every
// row, so an order with three items shows up as three distinct Root values.
type JoinedRow struct {
	Root *Order
	Item *OrderItem
}

type Repository interface {
	Save(ctx context.Context, o *Order) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status OrderStatus) error
	// FindByID returns the full aggregate, items included.
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindRoots returns orders with member and delivery resolved and no items.
	FindRoots(ctx context.Context, s Search, page *Page) ([]*Order, error)
	FindJoinedRows(ctx context.Context, s Search) ([]JoinedRow, error)
	FindItemsByOrderID(ctx context.Context, orderID uuid.UUID) ([]*OrderItem, error)
	FindItemsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]*OrderItem, error)

	// FindOrderDTOs selects orders straight into DTOs, with no lines.
	FindOrderDTOs(ctx context.Context, s Search, page *Page) ([]OrderQueryDTO, error)
	FindOrderItemDTOs(ctx context.Context, orderID uuid.UUID) ([]OrderItemQueryDTO, error)
	FindOrderItemDTOsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]OrderItemQueryDTO, error)
}

type sqlRepository struct {
	db         *sqlx.DB
	maxResults int
}

func NewRepository(db *sqlx.DB, maxResults int) Repository {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &sqlRepository{db: db, maxResults: maxResults}
}

type rootRow struct {
	OrderID         uuid.UUID      `db:"order_id"`
	OrderDate       time.Time      `db:"order_date"`
	OrderStatus     OrderStatus    `db:"order_status"`
	MemberID        uuid.UUID      `db:"member_id"`
	MemberName      string         `db:"member_name"`
	MemberCity      string         `db:"member_city"`
	MemberStreet    string         `db:"member_street"`
	MemberZipcode   string         `db:"member_zipcode"`
	DeliveryID      uuid.UUID      `db:"delivery_id"`
	DeliveryCity    string         `db:"delivery_city"`
	DeliveryStreet  string         `db:"delivery_street"`
	DeliveryZipcode string         `db:"delivery_zipcode"`
	DeliveryStatus  DeliveryStatus `db:"delivery_status"`
}

type itemRow struct {
	OrderItemID uuid.UUID `db:"order_item_id"`
	ItemOrderID uuid.UUID `db:"order_item_order_id"`
	OrderPrice  int64     `db:"order_price"`
	Count       int       `db:"order_count"`
	item.Record
}

type joinedRow struct {
	rootRow
	itemRow
}

const (
	rootColumns = `o.id AS order_id, o.order_date, o.status AS order_status,
	m.id AS member_id, m.name AS member_name, m.city AS member_city, m.street AS member_street, m.zipcode AS member_zipcode,
	d.id AS delivery_id, d.city AS delivery_city, d.street AS delivery_street, d.zipcode AS delivery_zipcode, d.status AS delivery_status`

	rootFrom = `
	FROM orders o
	JOIN members m ON m.id = o.member_id
	JOIN deliveries d ON d.id = o.delivery_id`

	itemColumns = `oi.id AS order_item_id, oi.order_id AS order_item_order_id, oi.order_price, oi.count AS order_count, ` + item.Columns
)

func (r rootRow) toOrder() *Order {
	return &Order{
		ID: r.OrderID,
		Member: &member.Member{
			ID:   r.MemberID,
			Name: r.MemberName,
			Address: member.Address{
				City:    r.MemberCity,
				Street:  r.MemberStreet,
				Zipcode: r.MemberZipcode,
			},
		},
		Delivery: &Delivery{
			ID: r.DeliveryID,
			Address: member.Address{
				City:    r.DeliveryCity,
				Street:  r.DeliveryStreet,
				Zipcode: r.DeliveryZipcode,
			},
			Status: r.DeliveryStatus,
		},
		OrderDate: r.OrderDate,
		Status:    r.OrderStatus,
	}
}

// toOrderItem reuses items already seen in the same result, so two order lines
// for one item share a single *item.Item.
func (r itemRow) toOrderItem(seen map[uuid.UUID]*item.Item) *OrderItem {
	it, ok := seen[r.Record.ID]
	if !ok {
		it = r.Record.ToItem()
		seen[it.ID] = it
	}
	return &OrderItem{
		ID:         r.OrderItemID,
		OrderID:    r.ItemOrderID,
		Item:       it,
		OrderPrice: r.OrderPrice,
		Count:      r.Count,
	}
}

func (r *sqlRepository) Save(ctx context.Context, o *Order) error {
	q := store.Ext(ctx, r.db)

	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO deliveries (id, city, street, zipcode, status) VALUES (?, ?, ?, ?, ?)`),
		o.Delivery.ID, o.Delivery.Address.City, o.Delivery.Address.Street, o.Delivery.Address.Zipcode, string(o.Delivery.Status))
	if err != nil {
		return fmt.Errorf("repository: failed to insert delivery: %w", store.Translate(err))
	}

	_, err = q.ExecContext(ctx, q.Rebind(`
		INSERT INTO orders (id, member_id, delivery_id, order_date, status) VALUES (?, ?, ?, ?, ?)`),
		o.ID, o.Member.ID, o.Delivery.ID, o.OrderDate, string(o.Status))
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", store.Translate(err))
	}

	for i, oi := range o.Items {
		oi.OrderID = o.ID
		_, err = q.ExecContext(ctx, q.Rebind(`
			INSERT INTO order_items (id, order_id, item_id, order_price, count, position) VALUES (?, ?, ?, ?, ?, ?)`),
			oi.ID, o.ID, oi.Item.ID, oi.OrderPrice, oi.Count, i)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, store.Translate(err))
		}
	}
	return nil
}

func (r *sqlRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status OrderStatus) error {
	q := store.Ext(ctx, r.db)
	res, err := q.ExecContext(ctx, q.Rebind(`UPDATE orders SET status = ? WHERE id = ?`), string(status), id)
	if err != nil {
		return fmt.Errorf("repository: failed to update order status: %w", store.Translate(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlRepository) FindByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	q := store.Ext(ctx, r.db)

	var rows []rootRow
	err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(`SELECT `+rootColumns+rootFrom+` WHERE o.id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to get order %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	o := rows[0].toOrder()
	if o.Items, err = r.FindItemsByOrderID(ctx, id); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *sqlRepository) FindRoots(ctx context.Context, s Search, page *Page) ([]*Order, error) {
	where, args := s.where()

	limit, offset := r.maxResults, 0
	if page != nil {
		limit, offset = page.Limit, page.Offset
	}
	args = append(args, limit, offset)

	q := store.Ext(ctx, r.db)
	var rows []rootRow
	query := `SELECT ` + rootColumns + rootFrom + where + ` ORDER BY o.order_date, o.id LIMIT ? OFFSET ?`
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("repository: failed to select orders: %w", err)
	}

	orders := make([]*Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, row.toOrder())
	}
	return orders, nil
}

// FindJoinedRows returns one row per order item. Orders without items are not part
// of the result. The orders are the same ones FindRoots returns without a page.
func (r *sqlRepository) FindJoinedRows(ctx context.Context, s Search) ([]JoinedRow, error) {
	where, args := s.where()
	args = append(args, r.maxResults)

	q := store.Ext(ctx, r.db)
	var rows []joinedRow
	query := `SELECT ` + rootColumns + `, ` + itemColumns + rootFrom + `
	JOIN order_items oi ON oi.order_id = o.id
	JOIN items i ON i.id = oi.item_id
	WHERE o.id IN (
		SELECT o.id` + rootFrom + where + `
		ORDER BY o.order_date, o.id LIMIT ?
	)
	ORDER BY o.order_date, o.id, oi.position`
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("repository: failed to select joined orders: %w", err)
	}

	seen := make(map[uuid.UUID]*item.Item)
	out := make([]JoinedRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, JoinedRow{Root: row.rootRow.toOrder(), Item: row.itemRow.toOrderItem(seen)})
	}
	return out, nil
}

func (r *sqlRepository) FindItemsByOrderID(ctx context.Context, orderID uuid.UUID) ([]*OrderItem, error) {
	return r.selectItems(ctx, `SELECT `+itemColumns+`
	FROM order_items oi
	JOIN items i ON i.id = oi.item_id
	WHERE oi.order_id = ?
	ORDER BY oi.position`, orderID)
}

// FindItemsByOrderIDs loads the items of many orders with a single IN predicate.
// Callers bound the size of orderIDs.
func (r *sqlRepository) FindItemsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]*OrderItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+itemColumns+`
	FROM order_items oi
	JOIN items i ON i.id = oi.item_id
	WHERE oi.order_id IN (?)
	ORDER BY oi.order_id, oi.position`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to expand order items query: %w", err)
	}
	return r.selectItems(ctx, query, args...)
}

func (r *sqlRepository) selectItems(ctx context.Context, query string, args ...any) ([]*OrderItem, error) {
	q := store.Ext(ctx, r.db)

	var rows []itemRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("repository: failed to select order items: %w", err)
	}

	seen := make(map[uuid.UUID]*item.Item)
	items := make([]*OrderItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toOrderItem(seen))
	}
	return items, nil
}

type orderDTORow struct {
	OrderID         uuid.UUID   `db:"order_id"`
	MemberName      string      `db:"member_name"`
	OrderDate       time.Time   `db:"order_date"`
	OrderStatus     OrderStatus `db:"order_status"`
	DeliveryCity    string      `db:"delivery_city"`
	DeliveryStreet  string      `db:"delivery_street"`
	DeliveryZipcode string      `db:"delivery_zipcode"`
}

const itemDTOColumns = `oi.id AS order_item_id, oi.order_id, i.name AS item_name, oi.order_price, oi.count AS order_count`

func (r *sqlRepository) FindOrderDTOs(ctx context.Context, s Search, page *Page) ([]OrderQueryDTO, error) {
	where, args := s.where()

	limit, offset := r.maxResults, 0
	if page != nil {
		limit, offset = page.Limit, page.Offset
	}
	args = append(args, limit, offset)

	q := store.Ext(ctx, r.db)
	var rows []orderDTORow
	query := `SELECT o.id AS order_id, m.name AS member_name, o.order_date, o.status AS order_status,
	d.city AS delivery_city, d.street AS delivery_street, d.zipcode AS delivery_zipcode` + rootFrom + where + `
	ORDER BY o.order_date, o.id LIMIT ? OFFSET ?`
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("repository: failed to select order dtos: %w", err)
	}

	dtos := make([]OrderQueryDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, OrderQueryDTO{
			OrderID:     row.OrderID,
			Name:        row.MemberName,
			OrderDate:   row.OrderDate,
			OrderStatus: row.OrderStatus,
			Address: AddressResponse{
				City:    row.DeliveryCity,
				Street:  row.DeliveryStreet,
				Zipcode: row.DeliveryZipcode,
			},
		})
	}
	return dtos, nil
}

func (r *sqlRepository) FindOrderItemDTOs(ctx context.Context, orderID uuid.UUID) ([]OrderItemQueryDTO, error) {
	return r.selectItemDTOs(ctx, `SELECT `+itemDTOColumns+`
	FROM order_items oi
	JOIN items i ON i.id = oi.item_id
	WHERE oi.order_id = ?
	ORDER BY oi.position`, orderID)
}

// FindOrderItemDTOsByOrderIDs reads the lines of many orders with one IN predicate.
func (r *sqlRepository) FindOrderItemDTOsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]OrderItemQueryDTO, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+itemDTOColumns+`
	FROM order_items oi
	JOIN items i ON i.id = oi.item_id
	WHERE oi.order_id IN (?)
	ORDER BY oi.order_id, oi.position`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to expand order item dtos query: %w", err)
	}
	return r.selectItemDTOs(ctx, query, args...)
}

func (r *sqlRepository) selectItemDTOs(ctx context.Context, query string, args ...any) ([]OrderItemQueryDTO, error) {
	q := store.Ext(ctx, r.db)

	var lines []OrderItemQueryDTO
	if err := sqlx.SelectContext(ctx, q, &lines, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("repository: failed to select order item dtos: %w", err)
	}
	return lines, nil
}
