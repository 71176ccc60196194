package product

import (
	"context"

	"github.com/ncastellanos/inventory-service/internal/model"
)

// Repository is the read-only view of the product catalog owned by the
// product CRUD service. Quantity comes from the inventory projection; this
// service never writes products.
type Repository interface {
	FindByID(ctx context.Context, id string) (*model.Product, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]model.Product, error)
}
