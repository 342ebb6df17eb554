package order

import (
	"context"
	"fmt"
	"slices"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/shop-service/internal/item"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBatchSize = 100
	tracerName       = "github.com/vasiliy-maslov/shop-service/internal/order"
)

// RecordStore is the read side the planner needs from order storage.
type RecordStore interface {
	FindRoots(ctx context.Context, s Search, page *Page) ([]*Order, error)
	FindJoinedRows(ctx context.Context, s Search) ([]JoinedRow, error)
	FindItemsByOrderID(ctx context.Context, orderID uuid.UUID) ([]*OrderItem, error)
	FindItemsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]*OrderItem, error)

	FindOrderDTOs(ctx context.Context, s Search, page *Page) ([]OrderQueryDTO, error)
	FindOrderItemDTOs(ctx context.Context, orderID uuid.UUID) ([]OrderItemQueryDTO, error)
	FindOrderItemDTOsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]OrderItemQueryDTO, error)
}

type CategoryStore interface {
	FindCategoriesByItemIDs(ctx context.Context, itemIDs []uuid.UUID) ([]item.CategoryLink, error)
}

type PlannerConfig struct {
	// BatchSize bounds the number of ids in one IN predicate.
	BatchSize int
	// Strict turns orphaned children into ErrConsistencyFault instead of a logged drop.
	Strict         bool
	TracerProvider trace.TracerProvider
}

// Planner materializes order aggregates while keeping the number of queries and
// the size of every result set under control.
type Planner struct {
	orders     RecordStore
	categories CategoryStore
	batchSize  int
	strict     bool
	tracer     trace.Tracer
}

func NewPlanner(orders RecordStore, categories CategoryStore, cfg PlannerConfig) *Planner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	return &Planner{
		orders:     orders,
		categories: categories,
		batchSize:  cfg.BatchSize,
		strict:     cfg.Strict,
		tracer:     cfg.TracerProvider.Tracer(tracerName),
	}
}

// LoadOrders returns the orders matching s, with the collections in opts resolved.
// Member and delivery are always resolved.
func (p *Planner) LoadOrders(ctx context.Context, s Search, page *Page, opts LoadOptions) (orders []*Order, err error) {
	collections := opts.collections()
	strategy, err := p.resolve(page, opts.Strategy, collections)
	if err != nil {
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "order.LoadOrders", trace.WithAttributes(
		attribute.String("order.strategy", strategy.String()),
		attribute.Int("order.collections", len(collections)),
		attribute.Bool("order.paginated", page != nil),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("order.count", len(orders)))
		}
		span.End()
	}()

	withCategories := slices.Contains(collections, CollectionItemCategories)

	switch {
	case len(collections) == 0:
		return p.loadRoots(ctx, s, page)
	case strategy == StrategyLazy:
		return p.loadLazy(ctx, s, page, withCategories)
	case strategy == StrategyJoin:
		return p.loadJoined(ctx, s)
	case strategy == StrategyBatch:
		return p.loadBatched(ctx, s, page, withCategories)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
	}
}

// resolve picks the strategy for Auto and rejects plans that would multiply rows
// or break pagination.
func (p *Planner) resolve(page *Page, requested Strategy, collections []Collection) (Strategy, error) {
	if page != nil {
		if err := page.Validate(); err != nil {
			return requested, err
		}
	}

	switch requested {
	case StrategyAuto:
		if page != nil || len(collections) > 1 {
			return StrategyBatch, nil
		}
		return StrategyJoin, nil
	case StrategyJoin:
		if len(collections) > 1 {
			return requested, fmt.Errorf("%w: requested %v", ErrMultipleCollectionFetch, collections)
		}
		if page != nil && len(collections) > 0 {
			return requested, ErrPaginatedCollectionJoin
		}
		return requested, nil
	case StrategyLazy, StrategyBatch:
		return requested, nil
	default:
		return requested, fmt.Errorf("%w: %s", ErrUnknownStrategy, requested)
	}
}

func (p *Planner) loadRoots(ctx context.Context, s Search, page *Page) (roots []*Order, err error) {
	err = p.query(ctx, "order.FindRoots", func(ctx context.Context) error {
		roots, err = p.orders.FindRoots(ctx, s, page)
		return err
	}, attribute.Bool("order.paginated", page != nil))
	return roots, err
}

// loadLazy issues one item query per order, plus one category query per item.
// It exists to compare against the other strategies.
func (p *Planner) loadLazy(ctx context.Context, s Search, page *Page, withCategories bool) ([]*Order, error) {
	roots, err := p.loadRoots(ctx, s, page)
	if err != nil {
		return nil, err
	}

	for _, o := range roots {
		orderID := o.ID
		err := p.query(ctx, "order.FindItemsByOrderID", func(ctx context.Context) error {
			items, err := p.orders.FindItemsByOrderID(ctx, orderID)
			o.Items = items
			return err
		})
		if err != nil {
			return nil, err
		}

		if !withCategories {
			continue
		}
		for _, oi := range o.Items {
			links, err := p.findCategories(ctx, []uuid.UUID{oi.Item.ID})
			if err != nil {
				return nil, err
			}
			oi.Item.Categories = categoriesOf(links)
		}
	}
	return roots, nil
}

// loadJoined runs a single query over orders and their items. The join repeats the
// order once per item, so orders are collapsed by id in first-seen order.
func (p *Planner) loadJoined(ctx context.Context, s Search) ([]*Order, error) {
	var rows []JoinedRow
	err := p.query(ctx, "order.FindJoinedRows", func(ctx context.Context) (err error) {
		rows, err = p.orders.FindJoinedRows(ctx, s)
		return err
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*Order, len(rows))
	orders := make([]*Order, 0)
	seenItems := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		o, ok := byID[row.Root.ID]
		if !ok {
			o = row.Root
			o.Items = nil
			byID[o.ID] = o
			orders = append(orders, o)
		}
		if row.Item == nil {
			continue
		}
		if _, dup := seenItems[row.Item.ID]; dup {
			continue
		}
		seenItems[row.Item.ID] = struct{}{}
		o.Items = append(o.Items, row.Item)
	}

	log.Debug().Int("rows", len(rows)).Int("orders", len(orders)).Msg("Collapsed joined order rows")
	return orders, nil
}

// loadBatched loads one page of roots and then their items with IN queries of at
// most batchSize ids each.
func (p *Planner) loadBatched(ctx context.Context, s Search, page *Page, withCategories bool) ([]*Order, error) {
	roots, err := p.loadRoots(ctx, s, page)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return roots, nil
	}

	byID := make(map[uuid.UUID]*Order, len(roots))
	ids := make([]uuid.UUID, 0, len(roots))
	unique := roots[:0]
	for _, o := range roots {
		if _, dup := byID[o.ID]; dup {
			continue
		}
		byID[o.ID] = o
		ids = append(ids, o.ID)
		unique = append(unique, o)
	}
	roots = unique

	children, err := batchFetch(ctx, p, "order.FindItemsByOrderIDs", ids,
		p.orders.FindItemsByOrderIDs,
		func(oi *OrderItem) uuid.UUID { return oi.ID })
	if err != nil {
		return nil, err
	}

	for _, oi := range children {
		o, ok := byID[oi.OrderID]
		if !ok {
			if err := p.orphan("order item", oi.ID, "order", oi.OrderID); err != nil {
				return nil, err
			}
			continue
		}
		o.Items = append(o.Items, oi)
	}

	if withCategories {
		if err := p.attachCategories(ctx, roots); err != nil {
			return nil, err
		}
	}
	return roots, nil
}

func (p *Planner) attachCategories(ctx context.Context, orders []*Order) error {
	itemsByID := make(map[uuid.UUID][]*item.Item)
	ids := make([]uuid.UUID, 0)
	for _, o := range orders {
		for _, oi := range o.Items {
			if _, ok := itemsByID[oi.Item.ID]; !ok {
				ids = append(ids, oi.Item.ID)
			}
			itemsByID[oi.Item.ID] = append(itemsByID[oi.Item.ID], oi.Item)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	type linkKey struct{ item, category uuid.UUID }
	links, err := batchFetch(ctx, p, "item.FindCategoriesByItemIDs", ids,
		p.categories.FindCategoriesByItemIDs,
		func(l item.CategoryLink) linkKey { return linkKey{l.ItemID, l.ID} })
	if err != nil {
		return err
	}

	grouped := make(map[uuid.UUID][]item.CategoryLink, len(ids))
	for _, l := range links {
		if _, ok := itemsByID[l.ItemID]; !ok {
			if err := p.orphan("category", l.ID, "item", l.ItemID); err != nil {
				return err
			}
			continue
		}
		grouped[l.ItemID] = append(grouped[l.ItemID], l)
	}

	for itemID, its := range itemsByID {
		categories := categoriesOf(grouped[itemID])
		for _, it := range its {
			it.Categories = categories
		}
	}
	return nil
}

func (p *Planner) findCategories(ctx context.Context, itemIDs []uuid.UUID) (links []item.CategoryLink, err error) {
	err = p.query(ctx, "item.FindCategoriesByItemIDs", func(ctx context.Context) error {
		links, err = p.categories.FindCategoriesByItemIDs(ctx, itemIDs)
		return err
	}, attribute.Int("db.batch_size", len(itemIDs)))
	return links, err
}

// orphan handles a child whose parent is not part of the loaded set.
func (p *Planner) orphan(child string, childID uuid.UUID, parent string, parentID uuid.UUID) error {
	if p.strict {
		return fmt.Errorf("%w: %s %s references %s %s outside the result set",
			ErrConsistencyFault, child, childID, parent, parentID)
	}
	log.Warn().
		Stringer("child_id", childID).
		Stringer("parent_id", parentID).
		Str("child", child).
		Msg("Dropping orphaned row from batch fetch")
	return nil
}

func (p *Planner) query(ctx context.Context, name string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// batchFetch runs fetch over ids in sequential chunks and merges the results,
// dropping rows whose key was already returned by an earlier chunk.
func batchFetch[T any, K comparable](
	ctx context.Context,
	p *Planner,
	name string,
	ids []uuid.UUID,
	fetch func(ctx context.Context, ids []uuid.UUID) ([]T, error),
	key func(T) K,
) ([]T, error) {
	var (
		merged []T
		seen   = make(map[K]struct{})
	)
	for i, part := range chunk(ids, p.batchSize) {
		var rows []T
		err := p.query(ctx, name, func(ctx context.Context) (err error) {
			rows, err = fetch(ctx, part)
			return err
		}, attribute.Int("db.batch_size", len(part)), attribute.Int("db.batch_index", i))
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			k := key(row)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, row)
		}
	}
	return merged, nil
}

func chunk[T any](s []T, size int) [][]T {
	if size <= 0 || len(s) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(s)+size-1)/size)
	for size < len(s) {
		s, out = s[size:], append(out, s[:size:size])
	}
	return append(out, s)
}

func categoriesOf(links []item.CategoryLink) []item.Category {
	if len(links) == 0 {
		return nil
	}
	out := make([]item.Category, 0, len(links))
	for _, l := range links {
		out = append(out, l.Category)
	}
	return out
}
