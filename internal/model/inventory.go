package model

import "time"

// MovementType is the direction of an inventory movement. ADJUST is a
// positive correction; negative corrections are expressed as OUT.
type MovementType string

const (
	MovementIn     MovementType = "IN"
	MovementOut    MovementType = "OUT"
	MovementAdjust MovementType = "ADJUST"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjust:
		return true
	}
	return false
}

// SignedDelta converts a positive amount into the signed quantity change
// recorded in the movement ledger.
func (t MovementType) SignedDelta(amount int) int {
	if t == MovementOut {
		return -amount
	}
	return amount
}

// Inventory is the current-quantity projection for one product (1:1).
// Quantity is mutated only through the adjustment usecase and never goes
// negative. Rows are soft-deleted via IsActive and restorable.
type Inventory struct {
	ID          string    `db:"id" json:"id"`
	ProductID   string    `db:"product_id" json:"product_id"`
	Quantity    int       `db:"quantity" json:"quantity"`
	MinStock    int       `db:"min_stock" json:"min_stock"`
	MaxStock    *int      `db:"max_stock" json:"max_stock"`
	Location    *string   `db:"location" json:"location"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`

	Product *Product `db:"-" json:"product,omitempty"` // joined data
}

// InventoryMovement is one append-only ledger entry. The sum of Amount over
// all movements of an inventory record always equals its current quantity.
type InventoryMovement struct {
	ID          string       `db:"id" json:"id"`
	InventoryID string       `db:"inventory_id" json:"inventory_id"`
	Amount      int          `db:"amount" json:"amount"` // signed: positive IN, negative OUT
	Type        MovementType `db:"type" json:"type"`
	Reason      *string      `db:"reason" json:"reason"`
	CreatedBy   *string      `db:"created_by" json:"created_by"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}
