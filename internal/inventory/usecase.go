package inventory

import (
	"context"

	"github.com/ncastellanos/inventory-service/internal/inventory/dto"
	"github.com/ncastellanos/inventory-service/internal/model"
)

type UseCase interface {
	CreateInventory(ctx context.Context, input *dto.CreateInventoryInput) (*model.Inventory, error)
	GetInventory(ctx context.Context, id string) (*model.Inventory, error)
	GetByProduct(ctx context.Context, productID string) (*model.Inventory, error)
	ListInventory(ctx context.Context, filters *dto.InventoryFilters) ([]model.Inventory, int, error)
	ListLowStock(ctx context.Context) ([]model.Inventory, error)
	UpdateInventory(ctx context.Context, id string, input *dto.UpdateInventoryInput) (*model.Inventory, error)
	SoftDelete(ctx context.Context, id string, userID string) (*model.Inventory, error)
	Restore(ctx context.Context, id string, userID string) (*model.Inventory, error)

	// Adjust applies one quantity delta, appending a movement to the ledger.
	Adjust(ctx context.Context, id string, input *dto.AdjustInventoryInput) (*model.Inventory, error)
	GetHistory(ctx context.Context, id string) ([]model.InventoryMovement, error)

	// ApplyInvoiceStock decrements stock for every item of a paid invoice,
	// exactly once per invoice. Used by the payment coordinator.
	ApplyInvoiceStock(ctx context.Context, invoice *model.Invoice) error
}
