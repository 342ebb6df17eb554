package order

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrConsistencyFault        = errors.New("consistency fault")
	ErrMultipleCollectionFetch = errors.New("cannot join-fetch more than one collection")
	ErrPaginatedCollectionJoin = errors.New("cannot paginate a join-fetched collection")
	ErrInvalidPage             = errors.New("invalid page")
	ErrUnknownStrategy         = errors.New("unknown fetch strategy")
)

// Search filters orders. Zero fields match everything. MemberName matches any
// member whose name contains it, ignoring case.
type Search struct {
	Status     OrderStatus
	MemberName string
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// where renders the predicate for orders aliased as o and members as m.
func (s Search) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if s.Status != "" {
		conds = append(conds, "o.status = ?")
		args = append(args, string(s.Status))
	}
	if s.MemberName != "" {
		conds = append(conds, `LOWER(m.name) LIKE LOWER(?) ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(s.MemberName)+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type Page struct {
	Offset int
	Limit  int
}

func (p Page) Validate() error {
	if p.Offset < 0 {
		return fmt.Errorf("%w: offset must not be negative, got %d", ErrInvalidPage, p.Offset)
	}
	if p.Limit < 1 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidPage, p.Limit)
	}
	return nil
}

type Strategy int

const (
	StrategyAuto Strategy = iota
	// StrategyLazy loads each order's collection with its own query (1+N).
	StrategyLazy
	// StrategyJoin loads everything with one joined query and de-duplicates orders.
	StrategyJoin
	// StrategyBatch loads a page of orders, then children with chunked IN queries.
	StrategyBatch
)

func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategyLazy:
		return "lazy"
	case StrategyJoin:
		return "join"
	case StrategyBatch:
		return "batch"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

type Collection string

const (
	CollectionOrderItems     Collection = "orderItems"
	CollectionItemCategories Collection = "itemCategories"
)

type LoadOptions struct {
	Strategy    Strategy
	Collections []Collection
}

// collections returns the requested collections with their prerequisites added.
// Item categories hang off order items, so asking for them implies order items.
func (o LoadOptions) collections() []Collection {
	out := make([]Collection, 0, 2)
	if slices.Contains(o.Collections, CollectionOrderItems) || slices.Contains(o.Collections, CollectionItemCategories) {
		out = append(out, CollectionOrderItems)
	}
	if slices.Contains(o.Collections, CollectionItemCategories) {
		out = append(out, CollectionItemCategories)
	}
	return out
}
