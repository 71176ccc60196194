package model

import "github.com/shopspring/decimal"

// Product is the read model of the product catalog, which is owned by the
// product CRUD service. Quantity is the current stock projection; it mutates
// only through inventory adjustments.
type Product struct {
	BaseModel
	SKU         string          `db:"sku" json:"sku"`
	Name        string          `db:"name" json:"name"`
	Description *string         `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Quantity    int             `db:"quantity" json:"quantity"`
	IsActive    bool            `db:"is_active" json:"is_active"`
}
