package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/shop-service/internal/item"
	"github.com/vasiliy-maslov/shop-service/internal/member"
	"github.com/vasiliy-maslov/shop-service/internal/store"
)

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	WithinReadOnlyTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type MemberFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*member.Member, error)
}

type ItemStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*item.Item, error)
	Update(ctx context.Context, it *item.Item) error
}

type Loader interface {
	LoadOrders(ctx context.Context, s Search, page *Page, opts LoadOptions) ([]*Order, error)
	LoadOrderDTOs(ctx context.Context, s Search, page *Page, strategy Strategy) ([]OrderQueryDTO, error)
}

type Service interface {
	// Order places an order for count units of one item and returns the order id.
	Order(ctx context.Context, memberID, itemID uuid.UUID, count int) (uuid.UUID, error)
	CancelOrder(ctx context.Context, id uuid.UUID) error
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	FindOrders(ctx context.Context, s Search, page *Page, opts LoadOptions) ([]*Order, error)
	FindOrderDTOs(ctx context.Context, s Search, page *Page, strategy Strategy) ([]OrderQueryDTO, error)
}

type service struct {
	orderRepo Repository
	members   MemberFinder
	items     ItemStore
	loader    Loader
	tx        Transactor
}

func NewService(orderRepo Repository, members MemberFinder, items ItemStore, loader Loader, tx Transactor) Service {
	return &service{
		orderRepo: orderRepo,
		members:   members,
		items:     items,
		loader:    loader,
		tx:        tx,
	}
}

func (s *service) Order(ctx context.Context, memberID, itemID uuid.UUID, count int) (uuid.UUID, error) {
	var orderID uuid.UUID
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		m, err := s.members.FindByID(ctx, memberID)
		if err != nil {
			return err
		}
		it, err := s.items.FindByID(ctx, itemID)
		if err != nil {
			return err
		}

		oi, err := NewOrderItem(it, it.Price, count)
		if err != nil {
			return err
		}
		o, err := NewOrder(m, &Delivery{Address: m.Address, Status: DeliveryReady}, oi)
		if err != nil {
			return err
		}

		if err := s.items.Update(ctx, it); err != nil {
			return err
		}
		if err := s.orderRepo.Save(ctx, o); err != nil {
			return err
		}
		orderID = o.ID
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			log.Warn().Err(err).Stringer("member_id", memberID).Stringer("item_id", itemID).Int("count", count).Msg("service: order rejected")
			return uuid.Nil, err
		}
		log.Error().Err(err).Stringer("member_id", memberID).Stringer("item_id", itemID).Msg("service: failed to place order")
		return uuid.Nil, fmt.Errorf("service: failed to place order: %w", err)
	}

	log.Info().Stringer("order_id", orderID).Stringer("member_id", memberID).Msg("service: order placed successfully")
	return orderID, nil
}

func (s *service) CancelOrder(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orderRepo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := o.Cancel(); err != nil {
			return err
		}

		// Several lines may share one item.
		updated := make(map[uuid.UUID]struct{}, len(o.Items))
		for _, oi := range o.Items {
			if _, ok := updated[oi.Item.ID]; ok {
				continue
			}
			if err := s.items.Update(ctx, oi.Item); err != nil {
				return err
			}
			updated[oi.Item.ID] = struct{}{}
		}

		return s.orderRepo.UpdateStatus(ctx, o.ID, o.Status)
	})
	if err != nil {
		if isDomainError(err) {
			log.Warn().Err(err).Stringer("order_id", id).Msg("service: order cancellation rejected")
			return err
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to cancel order")
		return fmt.Errorf("service: failed to cancel order: %w", err)
	}

	log.Info().Stringer("order_id", id).Msg("service: order cancelled")
	return nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o *Order
	err := s.tx.WithinReadOnlyTx(ctx, func(ctx context.Context) (err error) {
		o, err = s.orderRepo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return o, nil
}

// FindOrders runs every query of the chosen plan inside one read-only transaction,
// so the aggregates reflect a single snapshot.
func (s *service) FindOrders(ctx context.Context, search Search, page *Page, opts LoadOptions) ([]*Order, error) {
	var orders []*Order
	err := s.tx.WithinReadOnlyTx(ctx, func(ctx context.Context) (err error) {
		orders, err = s.loader.LoadOrders(ctx, search, page, opts)
		return err
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		log.Error().Err(err).Str("strategy", opts.Strategy.String()).Msg("service: failed to load orders")
		return nil, fmt.Errorf("service: failed to load orders: %w", err)
	}
	return orders, nil
}

func (s *service) FindOrderDTOs(ctx context.Context, search Search, page *Page, strategy Strategy) ([]OrderQueryDTO, error) {
	var dtos []OrderQueryDTO
	err := s.tx.WithinReadOnlyTx(ctx, func(ctx context.Context) (err error) {
		dtos, err = s.loader.LoadOrderDTOs(ctx, search, page, strategy)
		return err
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		log.Error().Err(err).Str("strategy", strategy.String()).Msg("service: failed to load order dtos")
		return nil, fmt.Errorf("service: failed to load order dtos: %w", err)
	}
	return dtos, nil
}

// isDomainError reports errors the caller caused or can retry. They are returned
// as is and logged at warn level.
func isDomainError(err error) bool {
	for _, target := range []error{
		ErrNotFound,
		ErrAlreadyCancelled,
		ErrAlreadyDelivered,
		ErrEmptyOrder,
		ErrInvalidPage,
		ErrMultipleCollectionFetch,
		ErrPaginatedCollectionJoin,
		ErrUnknownStrategy,
		member.ErrNotFound,
		item.ErrNotFound,
		item.ErrInsufficientStock,
		item.ErrInvalidQuantity,
		store.ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
