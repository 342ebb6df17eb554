package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/vasiliy-maslov/shop-service/internal/store"
)

type Repository interface {
	Save(ctx context.Context, m *Member) error
	Update(ctx context.Context, m *Member) error
	FindByID(ctx context.Context, id uuid.UUID) (*Member, error)
	FindAll(ctx context.Context) ([]*Member, error)
	FindByName(ctx context.Context, name string) ([]*Member, error)
}

type sqlRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &sqlRepository{db: db}
}

const selectMembers = `SELECT id, name, city, street, zipcode FROM members`

func (r *sqlRepository) Save(ctx context.Context, m *Member) error {
	if m.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate member ID: %w", err)
		}
		m.ID = id
	}

	q := store.Ext(ctx, r.db)
	_, err := sqlx.NamedExecContext(ctx, q, `
		INSERT INTO members (id, name, city, street, zipcode)
		VALUES (:id, :name, :city, :street, :zipcode)`, toRecord(m))
	if err != nil {
		err = store.Translate(err)
		if errors.Is(err, store.ErrUniqueViolation) {
			return ErrDuplicateName
		}
		return fmt.Errorf("repository: failed to insert member: %w", err)
	}
	return nil
}

func (r *sqlRepository) Update(ctx context.Context, m *Member) error {
	q := store.Ext(ctx, r.db)
	res, err := sqlx.NamedExecContext(ctx, q, `
		UPDATE members SET name = :name, city = :city, street = :street, zipcode = :zipcode
		WHERE id = :id`, toRecord(m))
	if err != nil {
		err = store.Translate(err)
		if errors.Is(err, store.ErrUniqueViolation) {
			return ErrDuplicateName
		}
		return fmt.Errorf("repository: failed to update member %s: %w", m.ID, err)
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

func (r *sqlRepository) FindByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	q := store.Ext(ctx, r.db)

	var rec Record
	err := sqlx.GetContext(ctx, q, &rec, q.Rebind(selectMembers+` WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to get member %s: %w", id, err)
	}
	return rec.ToMember(), nil
}

func (r *sqlRepository) FindAll(ctx context.Context) ([]*Member, error) {
	return r.selectMembers(ctx, selectMembers+` ORDER BY name`)
}

func (r *sqlRepository) FindByName(ctx context.Context, name string) ([]*Member, error) {
	return r.selectMembers(ctx, selectMembers+` WHERE name = ?`, name)
}

func (r *sqlRepository) selectMembers(ctx context.Context, query string, args ...any) ([]*Member, error) {
	q := store.Ext(ctx, r.db)

	var recs []Record
	if err := sqlx.SelectContext(ctx, q, &recs, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("repository: failed to select members: %w", err)
	}

	members := make([]*Member, 0, len(recs))
	for _, rec := range recs {
		members = append(members, rec.ToMember())
	}
	return members, nil
}
