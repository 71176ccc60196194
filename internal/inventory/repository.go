package inventory

import (
	"context"

	"github.com/ncastellanos/inventory-service/internal/inventory/dto"
	"github.com/ncastellanos/inventory-service/internal/model"
)

type Repository interface {
	FindByID(ctx context.Context, id string) (*model.Inventory, error)
	FindByProduct(ctx context.Context, productID string) (*model.Inventory, error)
	FindAll(ctx context.Context, filters *dto.InventoryFilters) ([]model.Inventory, int, error)
	FindLowStock(ctx context.Context) ([]model.Inventory, error)

	// Create inserts the record together with its CREATE audit entry in one
	// transaction.
	Create(ctx context.Context, inv *model.Inventory, userID *string) error
	Update(ctx context.Context, inv *model.Inventory) error
	SetActive(ctx context.Context, inv *model.Inventory, active bool, userID *string) error

	// ApplyAdjustment updates the quantity and appends the movement plus its
	// audit entries atomically, serializing concurrent writers on the
	// inventory row. delta is the signed quantity change.
	ApplyAdjustment(ctx context.Context, inventoryID string, delta int, movement *model.InventoryMovement) (*model.Inventory, error)

	// DecrementForInvoice applies one OUT movement per invoice item and flips
	// invoices.stock_applied, all in a single transaction. Either every item
	// decrements or none do.
	DecrementForInvoice(ctx context.Context, invoice *model.Invoice) error

	// Movement ledger
	ListMovements(ctx context.Context, inventoryID string) ([]model.InventoryMovement, error)
	LedgerSum(ctx context.Context, inventoryID string) (int, error)
}
