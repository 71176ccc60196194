package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ncastellanos/inventory-service/internal/apperr"
	"github.com/ncastellanos/inventory-service/internal/audit"
	"github.com/ncastellanos/inventory-service/internal/inventory"
	"github.com/ncastellanos/inventory-service/internal/inventory/dto"
	"github.com/ncastellanos/inventory-service/internal/model"
	"github.com/ncastellanos/inventory-service/internal/product"
	"github.com/ncastellanos/inventory-service/pkg/cache"
	"github.com/ncastellanos/inventory-service/pkg/logger"
	"go.uber.org/zap"
)

const (
	lockTTL        = 5 * time.Second
	lockRetries    = 3
	lockRetryDelay = 100 * time.Millisecond
)

type inventoryUseCase struct {
	repo     inventory.Repository
	products product.Repository
	cache    cache.Locker
	audit    audit.Recorder
	logger   logger.ZapLogger
}

func NewInventoryUseCase(
	repo inventory.Repository,
	products product.Repository,
	cache cache.Locker,
	recorder audit.Recorder,
	log logger.ZapLogger,
) inventory.UseCase {
	return &inventoryUseCase{
		repo:     repo,
		products: products,
		cache:    cache,
		audit:    recorder,
		logger:   log,
	}
}

func (uc *inventoryUseCase) CreateInventory(ctx context.Context, input *dto.CreateInventoryInput) (*model.Inventory, error) {
	if input.Quantity < 0 {
		return nil, apperr.Validationf("initial quantity must not be negative")
	}
	if input.MinStock < 0 {
		return nil, apperr.Validationf("min_stock must not be negative")
	}

	p, err := uc.products.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFoundf("product %s", input.ProductID)
	}

	existing, err := uc.repo.FindByProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Duplicatef("inventory for product %s", input.ProductID)
	}

	now := time.Now()
	inv := &model.Inventory{
		ID:          uuid.New().String(),
		ProductID:   input.ProductID,
		Quantity:    input.Quantity,
		MinStock:    input.MinStock,
		MaxStock:    input.MaxStock,
		Location:    input.Location,
		IsActive:    true,
		CreatedAt:   now,
		LastUpdated: now,
	}

	if err := uc.repo.Create(ctx, inv, actorID(input.UserID)); err != nil {
		return nil, err
	}

	return inv, nil
}

func (uc *inventoryUseCase) GetInventory(ctx context.Context, id string) (*model.Inventory, error) {
	inv, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperr.NotFoundf("inventory %s", id)
	}
	return inv, nil
}

func (uc *inventoryUseCase) GetByProduct(ctx context.Context, productID string) (*model.Inventory, error) {
	inv, err := uc.repo.FindByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperr.NotFoundf("inventory for product %s", productID)
	}
	return inv, nil
}

func (uc *inventoryUseCase) ListInventory(ctx context.Context, filters *dto.InventoryFilters) ([]model.Inventory, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

func (uc *inventoryUseCase) ListLowStock(ctx context.Context) ([]model.Inventory, error) {
	return uc.repo.FindLowStock(ctx)
}

func (uc *inventoryUseCase) UpdateInventory(ctx context.Context, id string, input *dto.UpdateInventoryInput) (*model.Inventory, error) {
	inv, err := uc.GetInventory(ctx, id)
	if err != nil {
		return nil, err
	}

	oldValues := *inv
	if input.MinStock != nil {
		if *input.MinStock < 0 {
			return nil, apperr.Validationf("min_stock must not be negative")
		}
		inv.MinStock = *input.MinStock
	}
	if input.MaxStock != nil {
		inv.MaxStock = input.MaxStock
	}
	if input.Location != nil {
		inv.Location = input.Location
	}
	inv.LastUpdated = time.Now()

	if err := uc.repo.Update(ctx, inv); err != nil {
		return nil, err
	}

	uc.audit.Record(ctx, audit.Entry{
		TableName: "inventory",
		RecordID:  inv.ID,
		Action:    model.AuditActionUpdate,
		OldValues: oldValues,
		NewValues: inv,
		UserID:    actorID(input.UserID),
	})

	return inv, nil
}

func (uc *inventoryUseCase) SoftDelete(ctx context.Context, id string, userID string) (*model.Inventory, error) {
	inv, err := uc.GetInventory(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := uc.repo.SetActive(ctx, inv, false, actorID(userID)); err != nil {
		return nil, err
	}
	return inv, nil
}

func (uc *inventoryUseCase) Restore(ctx context.Context, id string, userID string) (*model.Inventory, error) {
	inv, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperr.NotFoundf("inventory %s", id)
	}
	if inv.IsActive {
		return nil, fmt.Errorf("inventory %s: %w", id, apperr.ErrAlreadyActive)
	}

	if err := uc.repo.SetActive(ctx, inv, true, actorID(userID)); err != nil {
		return nil, err
	}
	return inv, nil
}

func (uc *inventoryUseCase) Adjust(ctx context.Context, id string, input *dto.AdjustInventoryInput) (*model.Inventory, error) {
	if input.Amount <= 0 {
		return nil, apperr.Validationf("amount must be positive, direction comes from the movement type")
	}
	if !input.Type.Valid() {
		return nil, apperr.Validationf("unknown movement type %q", input.Type)
	}

	inv, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil || !inv.IsActive {
		return nil, apperr.NotFoundf("active inventory %s", id)
	}

	unlock, err := uc.acquireLock(ctx, "lock:inventory:"+id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var reason *string
	if input.Reason != "" {
		reason = &input.Reason
	}
	movement := &model.InventoryMovement{
		Type:      input.Type,
		Reason:    reason,
		CreatedBy: actorID(input.UserID),
	}

	delta := input.Type.SignedDelta(input.Amount)
	updated, err := uc.repo.ApplyAdjustment(ctx, id, delta, movement)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("inventory adjusted",
		zap.String("inventory_id", id),
		zap.String("type", string(input.Type)),
		zap.Int("delta", delta),
		zap.Int("quantity", updated.Quantity),
	)

	return updated, nil
}

func (uc *inventoryUseCase) GetHistory(ctx context.Context, id string) ([]model.InventoryMovement, error) {
	if _, err := uc.GetInventory(ctx, id); err != nil {
		return nil, err
	}
	return uc.repo.ListMovements(ctx, id)
}

func (uc *inventoryUseCase) ApplyInvoiceStock(ctx context.Context, invoice *model.Invoice) error {
	if err := uc.repo.DecrementForInvoice(ctx, invoice); err != nil {
		return err
	}

	uc.logger.Info("stock applied for paid invoice",
		zap.String("invoice_id", invoice.ID),
		zap.String("number", invoice.Number),
		zap.Int("items", len(invoice.Items)),
	)
	return nil
}

// acquireLock takes the Redis lock with a short retry loop. The database
// row lock remains the correctness guarantee; this only keeps hot records
// from hammering the row lock.
func (uc *inventoryUseCase) acquireLock(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()

	for i := 0; i < lockRetries; i++ {
		ok, err := uc.cache.AcquireLock(ctx, key, token, lockTTL)
		if err != nil {
			uc.logger.Error("failed to acquire lock, redis error", zap.Error(err))
		}
		if ok {
			return func() { uc.cache.ReleaseLock(ctx, key, token) }, nil
		}
		time.Sleep(lockRetryDelay)
	}

	return nil, fmt.Errorf("system busy, please try again later (lock %s)", key)
}

func actorID(userID string) *string {
	if userID == "" {
		return nil
	}
	return &userID
}
