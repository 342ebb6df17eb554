package item_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/shop-service/internal/db/dbtest"
	"github.com/vasiliy-maslov/shop-service/internal/item"
	"github.com/vasiliy-maslov/shop-service/internal/store"
)

func addCategoryTwice(t *testing.T, conn *sqlx.DB) {
	t.Helper()
	repo := item.NewRepository(conn)
	svc := item.NewService(repo, store.NewTransactor(conn))
	ctx := context.Background()

	id, err := svc.SaveItem(ctx, newBook(1))
	require.NoError(t, err)
	tech, err := svc.CreateCategory(ctx, "tech")
	require.NoError(t, err)

	// Act
	require.NoError(t, svc.AddCategory(ctx, id, tech.ID))
	require.NoError(t, svc.AddCategory(ctx, id, tech.ID))

	// Assert
	links, err := repo.FindCategoriesByItemIDs(ctx, []uuid.UUID{id})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "tech", links[0].Name)
}

func TestService_AddCategoryTwice(t *testing.T) {
	addCategoryTwice(t, openTestDB(t))
}

func TestService_AddCategoryTwiceOnPostgres(t *testing.T) {
	addCategoryTwice(t, dbtest.Postgres(t))
}

func TestRepository_UpdateOnPostgres(t *testing.T) {
	conn := dbtest.Postgres(t)
	repo := item.NewRepository(conn)
	ctx := context.Background()

	it := newBook(10)
	require.NoError(t, repo.Save(ctx, it))

	stale := *it
	require.NoError(t, it.RemoveStock(3))
	require.NoError(t, repo.Update(ctx, it))

	require.ErrorIs(t, repo.Update(ctx, &stale), store.ErrConflict)

	stored, err := repo.FindByID(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, stored.StockQuantity)
	assert.Equal(t, "kim", stored.Book.Author)
}
