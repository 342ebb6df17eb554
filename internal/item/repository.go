package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/vasiliy-maslov/shop-service/internal/store"
)

var ErrCategoryNotFound = errors.New("category not found")

type Repository interface {
	Save(ctx context.Context, it *Item) error
	// Update writes name, price and stock guarded by the item's version. A stale
	// version yields store.ErrConflict.
	Update(ctx context.Context, it *Item) error
	FindByID(ctx context.Context, id uuid.UUID) (*Item, error)
	FindAll(ctx context.Context) ([]*Item, error)

	SaveCategory(ctx context.Context, c *Category) error
	FindCategoryByID(ctx context.Context, id uuid.UUID) (*Category, error)
	LinkCategory(ctx context.Context, itemID, categoryID uuid.UUID) error
	FindCategoriesByItemIDs(ctx context.Context, itemIDs []uuid.UUID) ([]CategoryLink, error)
}

type sqlRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &sqlRepository{db: db}
}

func (r *sqlRepository) Save(ctx context.Context, it *Item) error {
	if it.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate item ID: %w", err)
		}
		it.ID = id
	}

	q := store.Ext(ctx, r.db)
	_, err := sqlx.NamedExecContext(ctx, q, `
		INSERT INTO items (id, dtype, name, price, stock_quantity, version, author, isbn, artist, etc, director, actor)
		VALUES (:item_id, :item_dtype, :item_name, :item_price, :item_stock_quantity, :item_version,
			:item_author, :item_isbn, :item_artist, :item_etc, :item_director, :item_actor)`, toRecord(it))
	if err != nil {
		return fmt.Errorf("repository: failed to insert item: %w", store.Translate(err))
	}
	return nil
}

func (r *sqlRepository) Update(ctx context.Context, it *Item) error {
	q := store.Ext(ctx, r.db)
	res, err := q.ExecContext(ctx, q.Rebind(`
		UPDATE items SET name = ?, price = ?, stock_quantity = ?, version = version + 1
		WHERE id = ? AND version = ?`),
		it.Name, it.Price, it.StockQuantity, it.ID, it.Version)
	if err != nil {
		return fmt.Errorf("repository: failed to update item %s: %w", it.ID, store.Translate(err))
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows: %w", err)
	}
	if rows == 0 {
		// A missing row is not found, a present one has moved past our version.
		if _, findErr := r.FindByID(ctx, it.ID); errors.Is(findErr, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("repository: item %s version %d is stale: %w", it.ID, it.Version, store.ErrConflict)
	}

	it.Version++
	return nil
}

func (r *sqlRepository) FindByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	q := store.Ext(ctx, r.db)

	var rec Record
	err := sqlx.GetContext(ctx, q, &rec, q.Rebind(`SELECT `+Columns+` FROM items i WHERE i.id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to get item %s: %w", id, err)
	}
	return rec.ToItem(), nil
}

func (r *sqlRepository) FindAll(ctx context.Context) ([]*Item, error) {
	q := store.Ext(ctx, r.db)

	var recs []Record
	if err := sqlx.SelectContext(ctx, q, &recs, `SELECT `+Columns+` FROM items i ORDER BY i.name, i.id`); err != nil {
		return nil, fmt.Errorf("repository: failed to select items: %w", err)
	}

	items := make([]*Item, 0, len(recs))
	for _, rec := range recs {
		items = append(items, rec.ToItem())
	}
	return items, nil
}

func (r *sqlRepository) SaveCategory(ctx context.Context, c *Category) error {
	if c.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate category ID: %w", err)
		}
		c.ID = id
	}

	q := store.Ext(ctx, r.db)
	_, err := sqlx.NamedExecContext(ctx, q,
		`INSERT INTO categories (id, name) VALUES (:category_id, :category_name)`, c)
	if err != nil {
		return fmt.Errorf("repository: failed to insert category: %w", store.Translate(err))
	}
	return nil
}

func (r *sqlRepository) FindCategoryByID(ctx context.Context, id uuid.UUID) (*Category, error) {
	q := store.Ext(ctx, r.db)

	var c Category
	err := sqlx.GetContext(ctx, q, &c,
		q.Rebind(`SELECT id AS category_id, name AS category_name FROM categories WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("repository: failed to get category %s: %w", id, err)
	}
	return &c, nil
}

func (r *sqlRepository) LinkCategory(ctx context.Context, itemID, categoryID uuid.UUID) error {
	q := store.Ext(ctx, r.db)
	// Linking twice is a no-op.
	_, err := q.ExecContext(ctx, q.Rebind(`
		INSERT INTO category_items (category_id, item_id) VALUES (?, ?)
		ON CONFLICT (category_id, item_id) DO NOTHING`), categoryID, itemID)
	if err != nil {
		return fmt.Errorf("repository: failed to link item %s to category %s: %w", itemID, categoryID, store.Translate(err))
	}
	return nil
}

// FindCategoriesByItemIDs resolves categories for many items with one IN query.
func (r *sqlRepository) FindCategoriesByItemIDs(ctx context.Context, itemIDs []uuid.UUID) ([]CategoryLink, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT ci.item_id, c.id AS category_id, c.name AS category_name
		FROM category_items ci
		JOIN categories c ON c.id = ci.category_id
		WHERE ci.item_id IN (?)
		ORDER BY ci.item_id, c.name`, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to expand category query: %w", err)
	}

	q := store.Ext(ctx, r.db)
	var links []CategoryLink
	if err := sqlx.SelectContext(ctx, q, &links, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("repository: failed to select categories: %w", err)
	}
	return links, nil
}
