package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/ncastellanos/inventory-service/internal/apperr"
	"github.com/ncastellanos/inventory-service/internal/invoice"
	"github.com/ncastellanos/inventory-service/internal/invoice/dto"
	"github.com/ncastellanos/inventory-service/internal/model"
	"github.com/shopspring/decimal"
)

// invoiceNumberLockKey scopes pg_advisory_xact_lock to the invoice numbering
// sequence so concurrent creations never read the same last number.
const invoiceNumberLockKey int64 = 7001

const insertInvoiceQuery = `
    INSERT INTO invoices (
        id, number, total, item_count, status, payment_method, payment_id,
        qr_code, qr_expiration, stock_applied, created_by, created_at, updated_at
    )
    VALUES (
        :id, :number, :total, :item_count, :status, :payment_method, :payment_id,
        :qr_code, :qr_expiration, :stock_applied, :created_by, :created_at, :updated_at
    )
`

const insertItemQuery = `
    INSERT INTO invoice_items (
        id, invoice_id, product_id, quantity, unit_price, subtotal
    )
    VALUES (
        :id, :invoice_id, :product_id, :quantity, :unit_price, :subtotal
    )
`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

type stockCheckRow struct {
	Name     string `db:"name"`
	Quantity int    `db:"quantity"`
}

func (r *PGRepository) CreateWithItems(ctx context.Context, inv *model.Invoice) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Serialize number generation across concurrent creations. The lock is
	// released automatically at transaction end.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, invoiceNumberLockKey); err != nil {
		return fmt.Errorf("acquire numbering lock: %w", err)
	}

	// created_at is stamped before the lock is taken, so timestamp order can
	// diverge from commit order. The next number keys on the numeric maximum,
	// never on recency.
	var maxSeq int
	err = tx.GetContext(ctx, &maxSeq,
		`SELECT COALESCE(MAX(NULLIF(substring(number FROM 5), '')::int), 0) FROM invoices`)
	if err != nil {
		return fmt.Errorf("read max invoice number: %w", err)
	}
	inv.Number = invoice.FormatNumber(maxSeq + 1)

	// Advisory stock pre-check inside the same transaction. Stock is not
	// reserved; the decrement at settlement time re-validates.
	for _, item := range inv.Items {
		var row stockCheckRow
		err = tx.GetContext(ctx, &row, `
            SELECT p.name AS name, COALESCE(i.quantity, 0) AS quantity
            FROM products p
            LEFT JOIN inventory i ON i.product_id = p.id AND i.is_active = true
            WHERE p.id = $1
        `, item.ProductID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFoundf("product %s", item.ProductID)
			}
			return err
		}
		if row.Quantity < item.Quantity {
			return apperr.InsufficientStockf(
				"insufficient stock for product %s: available %d, requested %d",
				row.Name, row.Quantity, item.Quantity)
		}
	}

	if _, err := tx.NamedExecContext(ctx, insertInvoiceQuery, inv); err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	for i := range inv.Items {
		inv.Items[i].InvoiceID = inv.ID
		if _, err := tx.NamedExecContext(ctx, insertItemQuery, inv.Items[i]); err != nil {
			return fmt.Errorf("insert invoice item: %w", err)
		}
	}

	return tx.Commit()
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Invoice, error) {
	var inv model.Invoice
	err := r.DB.GetContext(ctx, &inv, `SELECT * FROM invoices WHERE id = $1 LIMIT 1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	items, err := r.loadItems(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	inv.Items = items[id]
	return &inv, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.InvoiceFilters) ([]model.Invoice, int, error) {
	whereClause := ""
	args := []interface{}{}
	if f.Status != nil {
		whereClause = ` WHERE status = $1`
		args = append(args, *f.Status)
	}

	var count int
	if err := r.DB.GetContext(ctx, &count, `SELECT count(*) FROM invoices`+whereClause, args...); err != nil {
		return nil, 0, err
	}

	query := `SELECT * FROM invoices` + whereClause + ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, (page-1)*f.Limit)
	}

	var invoices []model.Invoice
	if err := r.DB.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, err
	}
	if len(invoices) == 0 {
		return invoices, count, nil
	}

	ids := make([]string, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range invoices {
		invoices[i].Items = items[invoices[i].ID]
	}

	return invoices, count, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, id string, status model.InvoiceStatus, paymentID *string) (*model.Invoice, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE invoices
        SET status = $1, payment_id = COALESCE($2, payment_id), updated_at = $3
        WHERE id = $4 AND status = 'pending'
    `, status, paymentID, time.Now(), id)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// Either missing or already transitioned by a concurrent caller.
		current, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, apperr.NotFoundf("invoice %s", id)
		}
		return nil, apperr.InvalidTransitionf(
			"invoice %s is %s, cannot transition to %s", current.Number, current.Status, status)
	}

	return r.FindByID(ctx, id)
}

func (r *PGRepository) UpdateQR(ctx context.Context, id string, qrCode string, expiration time.Time) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE invoices
        SET qr_code = $1, qr_expiration = $2, updated_at = $3
        WHERE id = $4
    `, qrCode, expiration, time.Now(), id)
	return err
}

func (r *PGRepository) FindExpiredQRs(ctx context.Context, now time.Time) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.DB.SelectContext(ctx, &invoices, `
        SELECT * FROM invoices
        WHERE status = 'pending' AND qr_expiration IS NOT NULL AND qr_expiration <= $1
        ORDER BY created_at ASC
    `, now)
	if err != nil {
		return nil, err
	}
	return r.attachItems(ctx, invoices)
}

func (r *PGRepository) FindPaidUnapplied(ctx context.Context) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.DB.SelectContext(ctx, &invoices, `
        SELECT * FROM invoices
        WHERE status = 'paid' AND stock_applied = false
        ORDER BY created_at ASC
    `)
	if err != nil {
		return nil, err
	}
	return r.attachItems(ctx, invoices)
}

type itemRow struct {
	model.InvoiceItem
	ProductSKU   string          `db:"product_sku"`
	ProductName  string          `db:"product_name"`
	ProductPrice decimal.Decimal `db:"product_price"`
}

func (r *PGRepository) loadItems(ctx context.Context, invoiceIDs []string) (map[string][]model.InvoiceItem, error) {
	query, args, err := sqlx.In(`
        SELECT it.id, it.invoice_id, it.product_id, it.quantity, it.unit_price, it.subtotal,
               p.sku AS product_sku, p.name AS product_name, p.price AS product_price
        FROM invoice_items it
        JOIN products p ON p.id = it.product_id
        WHERE it.invoice_id IN (?)
    `, invoiceIDs)
	if err != nil {
		return nil, err
	}
	query = r.DB.Rebind(query)

	var rows []itemRow
	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	result := make(map[string][]model.InvoiceItem, len(invoiceIDs))
	for _, row := range rows {
		item := row.InvoiceItem
		item.Product = &model.Product{
			BaseModel: model.BaseModel{ID: item.ProductID},
			SKU:       row.ProductSKU,
			Name:      row.ProductName,
			Price:     row.ProductPrice,
		}
		result[item.InvoiceID] = append(result[item.InvoiceID], item)
	}
	return result, nil
}

func (r *PGRepository) attachItems(ctx context.Context, invoices []model.Invoice) ([]model.Invoice, error) {
	if len(invoices) == 0 {
		return invoices, nil
	}
	ids := make([]string, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		invoices[i].Items = items[invoices[i].ID]
	}
	return invoices, nil
}
