package member

import (
	"errors"

	"github.com/gofrs/uuid"
)

var (
	ErrNotFound      = errors.New("member not found")
	ErrDuplicateName = errors.New("member with this name already exists")
)

// Address is a value type; it is copied, never shared between owners.
type Address struct {
	City    string `json:"city" db:"city"`
	Street  string `json:"street" db:"street"`
	Zipcode string `json:"zipcode" db:"zipcode"`
}

// Member does not hold its orders. Orders reference the member by id.
type Member struct {
	ID      uuid.UUID
	Name    string
	Address Address
}

// Record is the flat row shape of the members table.
type Record struct {
	ID      uuid.UUID `db:"id"`
	Name    string    `db:"name"`
	City    string    `db:"city"`
	Street  string    `db:"street"`
	Zipcode string    `db:"zipcode"`
}

func (r Record) ToMember() *Member {
	return &Member{
		ID:   r.ID,
		Name: r.Name,
		Address: Address{
			City:    r.City,
			Street:  r.Street,
			Zipcode: r.Zipcode,
		},
	}
}

func toRecord(m *Member) Record {
	return Record{
		ID:      m.ID,
		Name:    m.Name,
		City:    m.Address.City,
		Street:  m.Address.Street,
		Zipcode: m.Address.Zipcode,
	}
}
