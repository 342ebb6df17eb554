package item

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
)

var (
	ErrNotFound          = errors.New("item not found")
	ErrInsufficientStock = errors.New("need more stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidItem       = errors.New("invalid item")
)

type Kind string

const (
	KindBook  Kind = "BOOK"
	KindAlbum Kind = "ALBUM"
	KindMovie Kind = "MOVIE"
)

type Book struct {
	Author string
	ISBN   string
}

type Album struct {
	Artist string
	Etc    string
}

type Movie struct {
	Director string
	Actor    string
}

// Item is a tagged union: Kind selects which one of Book, Album or Movie is set.
type Item struct {
	ID            uuid.UUID
	Kind          Kind
	Name          string
	Price         int64
	StockQuantity int
	Version       int64

	Book  *Book
	Album *Album
	Movie *Movie

	Categories []Category
}

type Category struct {
	ID   uuid.UUID `db:"category_id"`
	Name string    `db:"category_name"`
}

// CategoryLink is one row of the item/category association.
type CategoryLink struct {
	ItemID uuid.UUID `db:"item_id"`
	Category
}

func (i *Item) AddStock(quantity int) {
	i.StockQuantity += quantity
}

// RemoveStock leaves the stock untouched when it would drop below zero.
func (i *Item) RemoveStock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	rest := i.StockQuantity - quantity
	if rest < 0 {
		return ErrInsufficientStock
	}
	i.StockQuantity = rest
	return nil
}

func (i *Item) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	if i.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidItem)
	}
	if i.StockQuantity < 0 {
		return fmt.Errorf("%w: stock quantity must not be negative", ErrInvalidItem)
	}

	var payload bool
	switch i.Kind {
	case KindBook:
		payload = i.Book != nil && i.Album == nil && i.Movie == nil
	case KindAlbum:
		payload = i.Album != nil && i.Book == nil && i.Movie == nil
	case KindMovie:
		payload = i.Movie != nil && i.Book == nil && i.Album == nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidItem, i.Kind)
	}
	if !payload {
		return fmt.Errorf("%w: %s requires exactly its own details", ErrInvalidItem, i.Kind)
	}
	return nil
}

// Record is the flat row shape of the items table. Column names carry the item_
// prefix so the struct can be embedded into joined rows.
type Record struct {
	ID            uuid.UUID      `db:"item_id"`
	Kind          string         `db:"item_dtype"`
	Name          string         `db:"item_name"`
	Price         int64          `db:"item_price"`
	StockQuantity int            `db:"item_stock_quantity"`
	Version       int64          `db:"item_version"`
	Author        sql.NullString `db:"item_author"`
	ISBN          sql.NullString `db:"item_isbn"`
	Artist        sql.NullString `db:"item_artist"`
	Etc           sql.NullString `db:"item_etc"`
	Director      sql.NullString `db:"item_director"`
	Actor         sql.NullString `db:"item_actor"`
}

// Columns selects every column of Record from the items table aliased as i.
const Columns = `i.id AS item_id, i.dtype AS item_dtype, i.name AS item_name, i.price AS item_price,
	i.stock_quantity AS item_stock_quantity, i.version AS item_version,
	i.author AS item_author, i.isbn AS item_isbn, i.artist AS item_artist, i.etc AS item_etc,
	i.director AS item_director, i.actor AS item_actor`

func (r Record) ToItem() *Item {
	it := &Item{
		ID:            r.ID,
		Kind:          Kind(r.Kind),
		Name:          r.Name,
		Price:         r.Price,
		StockQuantity: r.StockQuantity,
		Version:       r.Version,
	}
	switch it.Kind {
	case KindBook:
		it.Book = &Book{Author: r.Author.String, ISBN: r.ISBN.String}
	case KindAlbum:
		it.Album = &Album{Artist: r.Artist.String, Etc: r.Etc.String}
	case KindMovie:
		it.Movie = &Movie{Director: r.Director.String, Actor: r.Actor.String}
	}
	return it
}

func toRecord(it *Item) Record {
	rec := Record{
		ID:            it.ID,
		Kind:          string(it.Kind),
		Name:          it.Name,
		Price:         it.Price,
		StockQuantity: it.StockQuantity,
		Version:       it.Version,
	}
	switch it.Kind {
	case KindBook:
		rec.Author = nullString(it.Book.Author)
		rec.ISBN = nullString(it.Book.ISBN)
	case KindAlbum:
		rec.Artist = nullString(it.Album.Artist)
		rec.Etc = nullString(it.Album.Etc)
	case KindMovie:
		rec.Director = nullString(it.Movie.Director)
		rec.Actor = nullString(it.Movie.Actor)
	}
	return rec
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}
