package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/ncastellanos/inventory-service/internal/apperr"
	"github.com/ncastellanos/inventory-service/internal/audit"
	"github.com/ncastellanos/inventory-service/internal/inventory/dto"
	"github.com/ncastellanos/inventory-service/internal/model"
)

const (
	insertInventoryQuery = `
        INSERT INTO inventory (
            id, product_id, quantity, min_stock, max_stock, location,
            is_active, created_at, last_updated
        )
        VALUES (
            :id, :product_id, :quantity, :min_stock, :max_stock, :location,
            :is_active, :created_at, :last_updated
        )
    `

	insertMovementQuery = `
        INSERT INTO inventory_movements (
            id, inventory_id, amount, type, reason, created_by, created_at
        )
        VALUES (
            :id, :inventory_id, :amount, :type, :reason, :created_by, :created_at
        )
    `
)

type PGRepository struct {
	DB    *sqlx.DB
	audit audit.Recorder
}

func NewPGRepository(db *sqlx.DB, recorder audit.Recorder) *PGRepository {
	return &PGRepository{DB: db, audit: recorder}
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Inventory, error) {
	var inv model.Inventory
	err := r.DB.GetContext(ctx, &inv, `SELECT * FROM inventory WHERE id = $1 LIMIT 1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

func (r *PGRepository) FindByProduct(ctx context.Context, productID string) (*model.Inventory, error) {
	var inv model.Inventory
	err := r.DB.GetContext(ctx, &inv, `SELECT * FROM inventory WHERE product_id = $1 LIMIT 1`, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.InventoryFilters) ([]model.Inventory, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if !f.IncludeInactive {
		conditions = append(conditions, "i.is_active = true")
	}
	if f.Search != "" {
		conditions = append(conditions, "(p.name ILIKE :search OR p.sku ILIKE :search)")
		args["search"] = "%" + f.Search + "%"
	}

	whereClause := ""
	for idx, c := range conditions {
		if idx == 0 {
			whereClause = " WHERE " + c
		} else {
			whereClause += " AND " + c
		}
	}

	base := ` FROM inventory i LEFT JOIN products p ON p.id = i.product_id` + whereClause

	var count int
	rows, err := r.DB.NamedQueryContext(ctx, "SELECT count(*)"+base, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	orderBy := "i.created_at"
	switch f.OrderBy {
	case "quantity":
		orderBy = "i.quantity"
	case "last_updated":
		orderBy = "i.last_updated"
	}
	direction := "ASC"
	if f.OrderDesc {
		direction = "DESC"
	}

	query := "SELECT i.*" + base + fmt.Sprintf(" ORDER BY %s %s", orderBy, direction)
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	var items []model.Inventory
	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}

func (r *PGRepository) FindLowStock(ctx context.Context) ([]model.Inventory, error) {
	var items []model.Inventory
	query := `
        SELECT * FROM inventory
        WHERE is_active = true AND quantity <= min_stock
        ORDER BY quantity ASC
    `
	err := r.DB.SelectContext(ctx, &items, query)
	return items, err
}

func (r *PGRepository) Create(ctx context.Context, inv *model.Inventory, userID *string) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertInventoryQuery, inv); err != nil {
		return fmt.Errorf("insert inventory: %w", err)
	}

	// Seed the ledger so movement amounts always sum to the current quantity.
	if inv.Quantity > 0 {
		reason := "initial stock"
		movement := &model.InventoryMovement{
			ID:          uuid.New().String(),
			InventoryID: inv.ID,
			Amount:      inv.Quantity,
			Type:        model.MovementIn,
			Reason:      &reason,
			CreatedBy:   userID,
			CreatedAt:   inv.CreatedAt,
		}
		if _, err := tx.NamedExecContext(ctx, insertMovementQuery, movement); err != nil {
			return fmt.Errorf("insert initial movement: %w", err)
		}
	}

	err = r.audit.RecordTx(ctx, tx, audit.Entry{
		TableName: "inventory",
		RecordID:  inv.ID,
		Action:    model.AuditActionCreate,
		NewValues: inv,
		UserID:    userID,
	})
	if err != nil {
		return fmt.Errorf("audit inventory create: %w", err)
	}

	return tx.Commit()
}

func (r *PGRepository) Update(ctx context.Context, inv *model.Inventory) error {
	query := `
        UPDATE inventory
        SET min_stock = :min_stock, max_stock = :max_stock, location = :location,
            last_updated = :last_updated
        WHERE id = :id
    `
	_, err := r.DB.NamedExecContext(ctx, query, inv)
	return err
}

func (r *PGRepository) SetActive(ctx context.Context, inv *model.Inventory, active bool, userID *string) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	oldValues := *inv
	now := time.Now()

	_, err = tx.ExecContext(ctx,
		`UPDATE inventory SET is_active = $1, last_updated = $2 WHERE id = $3`,
		active, now, inv.ID,
	)
	if err != nil {
		return fmt.Errorf("update inventory active flag: %w", err)
	}

	inv.IsActive = active
	inv.LastUpdated = now

	action := model.AuditActionUpdate
	if !active {
		action = model.AuditActionDelete
	}
	err = r.audit.RecordTx(ctx, tx, audit.Entry{
		TableName: "inventory",
		RecordID:  inv.ID,
		Action:    action,
		OldValues: oldValues,
		NewValues: inv,
		UserID:    userID,
	})
	if err != nil {
		return fmt.Errorf("audit inventory lifecycle change: %w", err)
	}

	return tx.Commit()
}

func (r *PGRepository) ApplyAdjustment(ctx context.Context, inventoryID string, delta int, movement *model.InventoryMovement) (*model.Inventory, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Row lock serializes concurrent adjustments on the same record.
	var inv model.Inventory
	err = tx.GetContext(ctx, &inv,
		`SELECT * FROM inventory WHERE id = $1 AND is_active = true FOR UPDATE`, inventoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundf("inventory %s", inventoryID)
		}
		return nil, err
	}

	oldQuantity := inv.Quantity
	newQuantity := oldQuantity + delta
	if newQuantity < 0 {
		return nil, apperr.InsufficientStockf(
			"resulting stock cannot be negative: current %d, delta %d", oldQuantity, delta)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE inventory SET quantity = $1, last_updated = $2 WHERE id = $3`,
		newQuantity, now, inv.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update inventory quantity: %w", err)
	}
	inv.Quantity = newQuantity
	inv.LastUpdated = now

	movement.ID = uuid.New().String()
	movement.InventoryID = inv.ID
	movement.Amount = delta
	movement.CreatedAt = now
	if _, err := tx.NamedExecContext(ctx, insertMovementQuery, movement); err != nil {
		return nil, fmt.Errorf("insert movement: %w", err)
	}

	err = r.audit.RecordTx(ctx, tx, audit.Entry{
		TableName: "inventory",
		RecordID:  inv.ID,
		Action:    model.AuditActionUpdate,
		OldValues: map[string]interface{}{"quantity": oldQuantity},
		NewValues: map[string]interface{}{"quantity": newQuantity},
		UserID:    movement.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("audit quantity change: %w", err)
	}

	err = r.audit.RecordTx(ctx, tx, audit.Entry{
		TableName: "inventory_movements",
		RecordID:  movement.ID,
		Action:    model.AuditActionCreate,
		NewValues: movement,
		UserID:    movement.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("audit movement create: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *PGRepository) DecrementForInvoice(ctx context.Context, invoice *model.Invoice) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	reason := fmt.Sprintf("invoice %s paid", invoice.Number)

	for _, item := range invoice.Items {
		var inv model.Inventory
		err = tx.GetContext(ctx, &inv,
			`SELECT * FROM inventory WHERE product_id = $1 AND is_active = true FOR UPDATE`,
			item.ProductID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFoundf("inventory for product %s", item.ProductID)
			}
			return err
		}

		// Re-validate at decrement time: the pre-check at invoice creation
		// is advisory only and other demand may have consumed the stock.
		if inv.Quantity < item.Quantity {
			return apperr.InsufficientStockf(
				"oversell on product %s: current %d, required %d",
				item.ProductID, inv.Quantity, item.Quantity)
		}

		oldQuantity := inv.Quantity
		newQuantity := oldQuantity - item.Quantity
		_, err = tx.ExecContext(ctx,
			`UPDATE inventory SET quantity = $1, last_updated = $2 WHERE id = $3`,
			newQuantity, now, inv.ID,
		)
		if err != nil {
			return fmt.Errorf("decrement inventory %s: %w", inv.ID, err)
		}

		movement := &model.InventoryMovement{
			ID:          uuid.New().String(),
			InventoryID: inv.ID,
			Amount:      -item.Quantity,
			Type:        model.MovementOut,
			Reason:      &reason,
			CreatedAt:   now,
		}
		if _, err := tx.NamedExecContext(ctx, insertMovementQuery, movement); err != nil {
			return fmt.Errorf("insert movement: %w", err)
		}

		err = r.audit.RecordTx(ctx, tx, audit.Entry{
			TableName: "inventory",
			RecordID:  inv.ID,
			Action:    model.AuditActionUpdate,
			OldValues: map[string]interface{}{"quantity": oldQuantity},
			NewValues: map[string]interface{}{"quantity": newQuantity},
		})
		if err != nil {
			return fmt.Errorf("audit quantity change: %w", err)
		}
	}

	// Exactly-once guard: only one transaction may flip stock_applied.
	res, err := tx.ExecContext(ctx,
		`UPDATE invoices SET stock_applied = true, updated_at = $1
         WHERE id = $2 AND stock_applied = false`,
		now, invoice.ID,
	)
	if err != nil {
		return fmt.Errorf("mark stock applied: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.Duplicatef("stock for invoice %s already applied", invoice.Number)
	}

	return tx.Commit()
}

func (r *PGRepository) ListMovements(ctx context.Context, inventoryID string) ([]model.InventoryMovement, error) {
	var movements []model.InventoryMovement
	query := `
        SELECT * FROM inventory_movements
        WHERE inventory_id = $1
        ORDER BY created_at DESC
    `
	err := r.DB.SelectContext(ctx, &movements, query, inventoryID)
	return movements, err
}

func (r *PGRepository) LedgerSum(ctx context.Context, inventoryID string) (int, error) {
	var sum int
	err := r.DB.GetContext(ctx, &sum,
		`SELECT COALESCE(SUM(amount), 0) FROM inventory_movements WHERE inventory_id = $1`,
		inventoryID)
	return sum, err
}
