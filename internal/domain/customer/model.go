package customer

import (
	"github.com/billcycle/billcycle/internal/types"
)

// Address is a postal billing address. It is embedded on the customer and
// snapshotted onto invoices so historic invoices keep the address they were
// sent to.
type Address struct {
	Street     string `db:"street" json:"street"`
	City       string `db:"city" json:"city"`
	PostalCode string `db:"postal_code" json:"postal_code"`
	Country    string `db:"country" json:"country"`
}

// Customer represents the customer domain model. Customer master data is
// owned by an external system; the billing engine only reads it.
type Customer struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
	Address
	types.BaseModel
}
