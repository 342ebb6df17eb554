package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/vasiliy-maslov/shop-service/internal/config"
)

// Database is the handle shared by every repository regardless of backend.
type Database struct {
	DB    *sqlx.DB
	close func()
}

func Open(ctx context.Context, cfg config.Config) (*Database, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return &Database{DB: pg.DB, close: pg.Close}, nil
	case config.DriverSQLite:
		db, err := OpenSQLite(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Database{DB: db, close: func() { db.Close() }}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (d *Database) Close() {
	d.close()
}
