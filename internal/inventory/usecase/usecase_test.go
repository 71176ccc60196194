package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/ncastellanos/inventory-service/internal/apperr"
	"github.com/ncastellanos/inventory-service/internal/audit"
	"github.com/ncastellanos/inventory-service/internal/inventory"
	"github.com/ncastellanos/inventory-service/internal/inventory/dto"
	"github.com/ncastellanos/inventory-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeInventoryRepo keeps inventories and their movement ledger in memory,
// mirroring the transactional behavior of the Postgres repository: a failed
// adjustment changes nothing, a successful one updates the quantity, appends
// the movement and writes the audit entries atomically.
type fakeInventoryRepo struct {
	mu        sync.Mutex
	byID      map[string]*model.Inventory
	movements map[string][]model.InventoryMovement
	applied   map[string]bool
	audit     audit.Recorder
}

func newFakeInventoryRepo(recorder audit.Recorder) *fakeInventoryRepo {
	return &fakeInventoryRepo{
		byID:      make(map[string]*model.Inventory),
		movements: make(map[string][]model.InventoryMovement),
		applied:   make(map[string]bool),
		audit:     recorder,
	}
}

func (f *fakeInventoryRepo) FindByID(_ context.Context, id string) (*model.Inventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeInventoryRepo) FindByProduct(_ context.Context, productID string) (*model.Inventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.byID {
		if inv.ProductID == productID {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeInventoryRepo) FindAll(_ context.Context, _ *dto.InventoryFilters) ([]model.Inventory, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Inventory
	for _, inv := range f.byID {
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (f *fakeInventoryRepo) FindLowStock(_ context.Context) ([]model.Inventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Inventory
	for _, inv := range f.byID {
		if inv.IsActive && inv.Quantity <= inv.MinStock {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeInventoryRepo) Create(ctx context.Context, inv *model.Inventory, userID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *inv
	f.byID[inv.ID] = &cp
	if inv.Quantity > 0 {
		reason := "initial stock"
		f.movements[inv.ID] = append(f.movements[inv.ID], model.InventoryMovement{
			ID:          uuid.New().String(),
			InventoryID: inv.ID,
			Amount:      inv.Quantity,
			Type:        model.MovementIn,
			Reason:      &reason,
			CreatedBy:   userID,
			CreatedAt:   time.Now(),
		})
	}
	return f.audit.RecordTx(ctx, nil, audit.Entry{
		TableName: "inventory",
		RecordID:  inv.ID,
		Action:    model.AuditActionCreate,
		NewValues: cp,
		UserID:    userID,
	})
}

func (f *fakeInventoryRepo) Update(_ context.Context, inv *model.Inventory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *inv
	f.byID[inv.ID] = &cp
	return nil
}

func (f *fakeInventoryRepo) SetActive(ctx context.Context, inv *model.Inventory, active bool, userID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.byID[inv.ID]
	if !ok {
		return apperr.NotFoundf("inventory %s", inv.ID)
	}
	oldValues := *stored
	stored.IsActive = active
	stored.LastUpdated = time.Now()

	action := model.AuditActionUpdate
	if !active {
		action = model.AuditActionDelete
	}
	return f.audit.RecordTx(ctx, nil, audit.Entry{
		TableName: "inventory",
		RecordID:  inv.ID,
		Action:    action,
		OldValues: oldValues,
		NewValues: *stored,
		UserID:    userID,
	})
}

func (f *fakeInventoryRepo) ApplyAdjustment(ctx context.Context, inventoryID string, delta int, movement *model.InventoryMovement) (*model.Inventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	inv, ok := f.byID[inventoryID]
	if !ok || !inv.IsActive {
		return nil, apperr.NotFoundf("active inventory %s", inventoryID)
	}

	oldQuantity := inv.Quantity
	newQuantity := oldQuantity + delta
	if newQuantity < 0 {
		return nil, apperr.InsufficientStockf(
			"inventory %s has %d units, adjustment of %d rejected", inventoryID, oldQuantity, delta)
	}

	inv.Quantity = newQuantity
	inv.LastUpdated = time.Now()
	stored := model.InventoryMovement{
		ID:          uuid.New().String(),
		InventoryID: inventoryID,
		Amount:      delta,
		Type:        movement.Type,
		Reason:      movement.Reason,
		CreatedBy:   movement.CreatedBy,
		CreatedAt:   time.Now(),
	}
	f.movements[inventoryID] = append(f.movements[inventoryID], stored)

	if err := f.audit.RecordTx(ctx, nil, audit.Entry{
		TableName: "inventory",
		RecordID:  inventoryID,
		Action:    model.AuditActionUpdate,
		OldValues: map[string]interface{}{"quantity": oldQuantity},
		NewValues: map[string]interface{}{"quantity": newQuantity},
		UserID:    movement.CreatedBy,
	}); err != nil {
		return nil, err
	}
	if err := f.audit.RecordTx(ctx, nil, audit.Entry{
		TableName: "inventory_movements",
		RecordID:  stored.ID,
		Action:    model.AuditActionCreate,
		NewValues: stored,
		UserID:    movement.CreatedBy,
	}); err != nil {
		return nil, err
	}

	cp := *inv
	return &cp, nil
}

func (f *fakeInventoryRepo) DecrementForInvoice(ctx context.Context, invoice *model.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.applied[invoice.ID] {
		return apperr.Duplicatef("stock for invoice %s already applied", invoice.Number)
	}

	// All-or-nothing: validate every item before touching anything.
	targets := make([]*model.Inventory, len(invoice.Items))
	for i, item := range invoice.Items {
		var target *model.Inventory
		for _, inv := range f.byID {
			if inv.ProductID == item.ProductID {
				target = inv
				break
			}
		}
		if target == nil {
			return apperr.NotFoundf("inventory for product %s", item.ProductID)
		}
		if target.Quantity < item.Quantity {
			return apperr.InsufficientStockf(
				"product %s has %d units, invoice needs %d", item.ProductID, target.Quantity, item.Quantity)
		}
		targets[i] = target
	}

	for i, item := range invoice.Items {
		oldQuantity := targets[i].Quantity
		targets[i].Quantity -= item.Quantity
		reason := "invoice " + invoice.Number + " paid"
		f.movements[targets[i].ID] = append(f.movements[targets[i].ID], model.InventoryMovement{
			ID:          uuid.New().String(),
			InventoryID: targets[i].ID,
			Amount:      -item.Quantity,
			Type:        model.MovementOut,
			Reason:      &reason,
			CreatedAt:   time.Now(),
		})
		if err := f.audit.RecordTx(ctx, nil, audit.Entry{
			TableName: "inventory",
			RecordID:  targets[i].ID,
			Action:    model.AuditActionUpdate,
			OldValues: map[string]interface{}{"quantity": oldQuantity},
			NewValues: map[string]interface{}{"quantity": targets[i].Quantity},
		}); err != nil {
			return err
		}
	}
	f.applied[invoice.ID] = true
	return nil
}

func (f *fakeInventoryRepo) ListMovements(_ context.Context, inventoryID string) ([]model.InventoryMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.InventoryMovement(nil), f.movements[inventoryID]...), nil
}

func (f *fakeInventoryRepo) LedgerSum(_ context.Context, inventoryID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := 0
	for _, m := range f.movements[inventoryID] {
		sum += m.Amount
	}
	return sum, nil
}

type fakeProductRepo struct {
	products map[string]model.Product
}

func (f *fakeProductRepo) FindByID(_ context.Context, id string) (*model.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeProductRepo) FindByIDs(_ context.Context, ids []string) (map[string]model.Product, error) {
	out := make(map[string]model.Product)
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (f *fakeRecorder) Record(_ context.Context, entry audit.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
}

func (f *fakeRecorder) RecordTx(_ context.Context, _ *sqlx.Tx, entry audit.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeRecorder) FindByRecord(_ context.Context, _, _ string) ([]model.AuditLog, error) {
	return nil, nil
}

func (f *fakeRecorder) all() []audit.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audit.Entry(nil), f.entries...)
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (f *fakeLocker) AcquireLock(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, taken := f.held[key]; taken {
		return false, nil
	}
	f.held[key] = value
	return true, nil
}

func (f *fakeLocker) ReleaseLock(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] == value {
		delete(f.held, key)
	}
	return nil
}

func newTestEnv(products *fakeProductRepo) (inventory.UseCase, *fakeInventoryRepo, *fakeRecorder) {
	rec := &fakeRecorder{}
	repo := newFakeInventoryRepo(rec)
	uc := NewInventoryUseCase(repo, products, newFakeLocker(), rec, zap.NewNop())
	return uc, repo, rec
}

func seedProducts(ids ...string) *fakeProductRepo {
	products := make(map[string]model.Product, len(ids))
	for _, id := range ids {
		products[id] = model.Product{
			BaseModel: model.BaseModel{ID: id},
			SKU:       "SKU-" + id,
			Name:      "Product " + id,
			IsActive:  true,
		}
	}
	return &fakeProductRepo{products: products}
}

func TestCreateInventory(t *testing.T) {
	ctx := context.Background()
	uc, repo, rec := newTestEnv(seedProducts("p1"))

	inv, err := uc.CreateInventory(ctx, &dto.CreateInventoryInput{
		ProductID: "p1",
		Quantity:  10,
		MinStock:  2,
		UserID:    "u1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, 10, inv.Quantity)
	assert.True(t, inv.IsActive)

	// The initial quantity is backed by a seeded IN movement, so the ledger
	// reconciles from day one.
	sum, err := repo.LedgerSum(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, sum)

	entries := rec.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "inventory", entries[0].TableName)
	assert.Equal(t, inv.ID, entries[0].RecordID)
	assert.Equal(t, model.AuditActionCreate, entries[0].Action)
	require.NotNil(t, entries[0].UserID)
	assert.Equal(t, "u1", *entries[0].UserID)
	snapshot, ok := entries[0].NewValues.(model.Inventory)
	require.True(t, ok)
	assert.Equal(t, 10, snapshot.Quantity)
}

func TestCreateInventoryRejectsDuplicateProduct(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestEnv(seedProducts("p1"))

	_, err := uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p1", Quantity: 1, UserID: "u1"})
	require.NoError(t, err)

	_, err = uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p1", Quantity: 5, UserID: "u1"})
	assert.ErrorIs(t, err, apperr.ErrDuplicate)
}

func TestCreateInventoryValidation(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestEnv(seedProducts("p1"))

	_, err := uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p1", Quantity: -1, UserID: "u1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p1", Quantity: 1, MinStock: -3, UserID: "u1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "missing", Quantity: 1, UserID: "u1"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAdjust(t *testing.T) {
	ctx := context.Background()
	uc, _, rec := newTestEnv(seedProducts("p1"))

	inv, err := uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p1", Quantity: 10, UserID: "u1"})
	require.NoError(t, err)

	updated, err := uc.Adjust(ctx, inv.ID, &dto.AdjustInventoryInput{Amount: 5, Type: model.MovementIn, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 15, updated.Quantity)

	updated, err = uc.Adjust(ctx, inv.ID, &dto.AdjustInventoryInput{Amount: 8, Type: model.MovementOut, Reason: "damaged", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Quantity)

	updated, err = uc.Adjust(ctx, inv.ID, &dto.AdjustInventoryInput{Amount: 2, Type: model.MovementAdjust, Reason: "recount", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Quantity)

	history, err := uc.GetHistory(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, history, 4) // initial IN plus three adjustments
	assert.Equal(t, -8, history[2].Amount)

	// Each adjustment writes two audit entries: the quantity change and the
	// movement creation. One CREATE entry precedes them.
	entries := rec.all()
	require.Len(t, entries, 7)
	first := entries[1]
	assert.Equal(t, "inventory", first.TableName)
	assert.Equal(t, model.AuditActionUpdate, first.Action)
	assert.Equal(t, map[string]interface{}{"quantity": 10}, first.OldValues)
	assert.Equal(t, map[string]interface{}{"quantity": 15}, first.NewValues)
	second := entries[2]
	assert.Equal(t, "inventory_movements", second.TableName)
	assert.Equal(t, model.AuditActionCreate, second.Action)
}

func TestAdjustRejectsOversell(t *testing.T) {
	ctx := context.Background()
	uc, _, rec := newTestEnv(seedProducts("p1"))

	inv, err := uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p1", Quantity: 3, UserID: "u1"})
	require.NoError(t, err)

	_, err = uc.Adjust(ctx, inv.ID, &dto.AdjustInventoryInput{Amount: 4, Type: model.MovementOut, UserID: "u1"})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	// A rejected adjustment leaves quantity, ledger and audit trail untouched.
	after, err := uc.GetInventory(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Quantity)

	history, err := uc.GetHistory(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Len(t, rec.all(), 1)

	// Draining to exactly zero is allowed.
	updated, err := uc.Adjust(ctx, inv.ID, &dto.AdjustInventoryInput{Amount: 3, Type: model.MovementOut, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Quantity)
}

func TestAdjustValidation(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestEnv(seedProducts("p1"))

	inv, err := uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p1", Quantity: 3, UserID: "u1"})
	require.NoError(t, err)

	_, err = uc.Adjust(ctx, inv.ID, &dto.AdjustInventoryInput{Amount: 0, Type: model.MovementIn, UserID: "u1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = uc.Adjust(ctx, inv.ID, &dto.AdjustInventoryInput{Amount: -2, Type: model.MovementIn, UserID: "u1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = uc.Adjust(ctx, inv.ID, &dto.AdjustInventoryInput{Amount: 1, Type: model.MovementType("RETURN"), UserID: "u1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = uc.Adjust(ctx, "missing", &dto.AdjustInventoryInput{Amount: 1, Type: model.MovementIn, UserID: "u1"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAdjustRejectsInactiveInventory(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestEnv(seedProducts("p1"))

	inv, err := uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p1", Quantity: 3, UserID: "u1"})
	require.NoError(t, err)

	_, err = uc.SoftDelete(ctx, inv.ID, "u1")
	require.NoError(t, err)

	_, err = uc.Adjust(ctx, inv.ID, &dto.AdjustInventoryInput{Amount: 1, Type: model.MovementIn, UserID: "u1"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	uc, _, rec := newTestEnv(seedProducts("p1"))

	inv, err := uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p1", Quantity: 3, UserID: "u1"})
	require.NoError(t, err)

	_, err = uc.Restore(ctx, inv.ID, "u1")
	assert.ErrorIs(t, err, apperr.ErrAlreadyActive)

	_, err = uc.SoftDelete(ctx, inv.ID, "u1")
	require.NoError(t, err)

	after, err := uc.GetInventory(ctx, inv.ID)
	require.NoError(t, err)
	assert.False(t, after.IsActive)
	assert.Equal(t, 3, after.Quantity, "soft delete keeps the quantity")

	_, err = uc.Restore(ctx, inv.ID, "u1")
	require.NoError(t, err)

	after, err = uc.GetInventory(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, after.IsActive)

	// CREATE, then the DELETE and UPDATE lifecycle entries with old/new
	// active snapshots. The rejected restore wrote nothing.
	entries := rec.all()
	require.Len(t, entries, 3)

	deleted := entries[1]
	assert.Equal(t, model.AuditActionDelete, deleted.Action)
	require.NotNil(t, deleted.UserID)
	assert.Equal(t, "u1", *deleted.UserID)
	assert.True(t, deleted.OldValues.(model.Inventory).IsActive)
	assert.False(t, deleted.NewValues.(model.Inventory).IsActive)

	restored := entries[2]
	assert.Equal(t, model.AuditActionUpdate, restored.Action)
	assert.False(t, restored.OldValues.(model.Inventory).IsActive)
	assert.True(t, restored.NewValues.(model.Inventory).IsActive)
}

func TestUpdateInventory(t *testing.T) {
	ctx := context.Background()
	uc, _, rec := newTestEnv(seedProducts("p1"))

	inv, err := uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p1", Quantity: 3, UserID: "u1"})
	require.NoError(t, err)

	minStock := 5
	location := "warehouse-b"
	updated, err := uc.UpdateInventory(ctx, inv.ID, &dto.UpdateInventoryInput{
		MinStock: &minStock,
		Location: &location,
		UserID:   "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.MinStock)
	require.NotNil(t, updated.Location)
	assert.Equal(t, "warehouse-b", *updated.Location)
	assert.Equal(t, 3, updated.Quantity, "quantity only changes through adjustments")

	entries := rec.all()
	require.Len(t, entries, 2)
	change := entries[1]
	assert.Equal(t, "inventory", change.TableName)
	assert.Equal(t, model.AuditActionUpdate, change.Action)
	assert.Equal(t, 0, change.OldValues.(model.Inventory).MinStock)
	assert.Equal(t, 5, change.NewValues.(*model.Inventory).MinStock)

	negative := -1
	_, err = uc.UpdateInventory(ctx, inv.ID, &dto.UpdateInventoryInput{MinStock: &negative, UserID: "u1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListLowStock(t *testing.T) {
	ctx := context.Background()
	uc, _, _ := newTestEnv(seedProducts("p1", "p2", "p3"))

	// At the boundary: quantity == min_stock counts as low.
	atBoundary, err := uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p1", Quantity: 5, MinStock: 5, UserID: "u1"})
	require.NoError(t, err)

	_, err = uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p2", Quantity: 6, MinStock: 5, UserID: "u1"})
	require.NoError(t, err)

	inactive, err := uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p3", Quantity: 5, MinStock: 5, UserID: "u1"})
	require.NoError(t, err)
	_, err = uc.SoftDelete(ctx, inactive.ID, "u1")
	require.NoError(t, err)

	low, err := uc.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, atBoundary.ID, low[0].ID)
}

// The ledger invariant: after any sequence of accepted adjustments, the sum
// of movement amounts equals the current quantity.
func TestLedgerReconciles(t *testing.T) {
	ctx := context.Background()
	uc, repo, _ := newTestEnv(seedProducts("p1"))

	inv, err := uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p1", Quantity: 20, UserID: "u1"})
	require.NoError(t, err)

	steps := []dto.AdjustInventoryInput{
		{Amount: 7, Type: model.MovementIn, UserID: "u1"},
		{Amount: 12, Type: model.MovementOut, UserID: "u1"},
		{Amount: 3, Type: model.MovementAdjust, UserID: "u1"},
		{Amount: 40, Type: model.MovementOut, UserID: "u1"}, // rejected, does not move the ledger
		{Amount: 18, Type: model.MovementOut, UserID: "u1"},
	}
	for i := range steps {
		_, _ = uc.Adjust(ctx, inv.ID, &steps[i])
	}

	after, err := uc.GetInventory(ctx, inv.ID)
	require.NoError(t, err)
	sum, err := repo.LedgerSum(ctx, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, after.Quantity)
	assert.Equal(t, after.Quantity, sum)
}

func TestConcurrentAdjustmentsNeverOversell(t *testing.T) {
	ctx := context.Background()
	uc, repo, _ := newTestEnv(seedProducts("p1"))

	inv, err := uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p1", Quantity: 10, UserID: "u1"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = uc.Adjust(ctx, inv.ID, &dto.AdjustInventoryInput{Amount: 1, Type: model.MovementOut, UserID: "u1"})
		}()
	}
	wg.Wait()

	after, err := uc.GetInventory(ctx, inv.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after.Quantity, 0)

	sum, err := repo.LedgerSum(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, after.Quantity, sum)
}

func TestApplyInvoiceStock(t *testing.T) {
	ctx := context.Background()
	uc, _, rec := newTestEnv(seedProducts("p1"))

	created, err := uc.CreateInventory(ctx, &dto.CreateInventoryInput{ProductID: "p1", Quantity: 10, UserID: "u1"})
	require.NoError(t, err)

	inv := &model.Invoice{
		ID:     "inv-1",
		Number: "INV-0001",
		Status: model.InvoiceStatusPaid,
		Items:  []model.InvoiceItem{{ProductID: "p1", Quantity: 3}},
	}
	require.NoError(t, uc.ApplyInvoiceStock(ctx, inv))

	after, err := uc.GetInventory(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, after.Quantity)

	history, err := uc.GetHistory(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.MovementOut, history[1].Type)
	assert.Equal(t, -3, history[1].Amount)

	entries := rec.all()
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]interface{}{"quantity": 10}, entries[1].OldValues)
	assert.Equal(t, map[string]interface{}{"quantity": 7}, entries[1].NewValues)

	// The second application is refused at the repository guard.
	err = uc.ApplyInvoiceStock(ctx, inv)
	assert.ErrorIs(t, err, apperr.ErrDuplicate)

	after, err = uc.GetInventory(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, after.Quantity)
}
