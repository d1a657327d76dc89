package product

import (
	"github.com/billcycle/billcycle/internal/types"
	"github.com/shopspring/decimal"
)

// Product represents the product domain model. Its price is the fallback
// used at invoicing time when the subscription carries no price of its own.
type Product struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description,omitempty"`
	Price       decimal.Decimal `db:"price" json:"price"`
	types.BaseModel
}

// HasUsablePrice reports whether the product price can settle a pricing lookup.
func (p *Product) HasUsablePrice() bool {
	return p.Price.IsPositive()
}
