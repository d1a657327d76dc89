package contract

import (
	"time"

	"github.com/billcycle/billcycle/internal/types"
)

// Contract represents the owning agreement a subscription belongs to.
// Contract master data is owned by an external system.
type Contract struct {
	ID             string     `db:"id" json:"id"`
	ContractNumber string     `db:"contract_number" json:"contract_number"`
	CustomerID     string     `db:"customer_id" json:"customer_id"`
	StartDate      time.Time  `db:"start_date" json:"start_date"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
	types.BaseModel
}
