package item

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UpdateParams carries the mutable fields of an item. Kind and details are fixed
// at registration.
type UpdateParams struct {
	Name          string
	Price         int64
	StockQuantity int
}

type Service interface {
	SaveItem(ctx context.Context, it *Item) (uuid.UUID, error)
	UpdateItem(ctx context.Context, id uuid.UUID, params UpdateParams) (*Item, error)
	FindItems(ctx context.Context) ([]*Item, error)
	FindOne(ctx context.Context, id uuid.UUID) (*Item, error)
	CreateCategory(ctx context.Context, name string) (*Category, error)
	AddCategory(ctx context.Context, itemID, categoryID uuid.UUID) error
}

type service struct {
	repo Repository
	tx   Transactor
}

func NewService(repo Repository, tx Transactor) Service {
	return &service{repo: repo, tx: tx}
}

func (s *service) SaveItem(ctx context.Context, it *Item) (uuid.UUID, error) {
	if err := it.Validate(); err != nil {
		return uuid.Nil, err
	}

	if err := s.repo.Save(ctx, it); err != nil {
		log.Error().Err(err).Str("name", it.Name).Msg("Failed to save item")
		return uuid.Nil, fmt.Errorf("failed to save item: %w", err)
	}
	return it.ID, nil
}

func (s *service) UpdateItem(ctx context.Context, id uuid.UUID, params UpdateParams) (*Item, error) {
	var updated *Item
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		it, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return err
		}

		it.Name = params.Name
		it.Price = params.Price
		it.StockQuantity = params.StockQuantity
		if err := it.Validate(); err != nil {
			return err
		}

		if err := s.repo.Update(ctx, it); err != nil {
			return err
		}
		updated = it
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidItem) {
			return nil, err
		}
		log.Error().Err(err).Stringer("item_id", id).Msg("Failed to update item")
		return nil, fmt.Errorf("failed to update item by id '%s': %w", id, err)
	}
	return updated, nil
}

func (s *service) FindItems(ctx context.Context) ([]*Item, error) {
	items, err := s.repo.FindAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list items")
		return nil, fmt.Errorf("failed to find items: %w", err)
	}
	return items, nil
}

func (s *service) FindOne(ctx context.Context, id uuid.UUID) (*Item, error) {
	it, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("item_id", id).Msg("Failed to get item")
		return nil, fmt.Errorf("failed to get item by id '%s': %w", id, err)
	}
	return it, nil
}

func (s *service) CreateCategory(ctx context.Context, name string) (*Category, error) {
	c := &Category{Name: name}
	if err := s.repo.SaveCategory(ctx, c); err != nil {
		log.Error().Err(err).Str("name", name).Msg("Failed to save category")
		return nil, fmt.Errorf("failed to save category: %w", err)
	}
	return c, nil
}

func (s *service) AddCategory(ctx context.Context, itemID, categoryID uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.FindByID(ctx, itemID); err != nil {
			return err
		}
		if _, err := s.repo.FindCategoryByID(ctx, categoryID); err != nil {
			return err
		}
		return s.repo.LinkCategory(ctx, itemID, categoryID)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCategoryNotFound) {
			return err
		}
		log.Error().Err(err).Stringer("item_id", itemID).Stringer("category_id", categoryID).Msg("Failed to link category")
		return fmt.Errorf("failed to add category: %w", err)
	}
	return nil
}
