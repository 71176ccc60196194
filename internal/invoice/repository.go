package invoice

import (
	"context"
	"time"

	"github.com/ncastellanos/inventory-service/internal/invoice/dto"
	"github.com/ncastellanos/inventory-service/internal/model"
)

type Repository interface {
	// CreateWithItems assigns the next sequential invoice number, re-checks
	// stock availability and inserts the header plus all items in one
	// transaction. Any failure leaves nothing persisted.
	CreateWithItems(ctx context.Context, inv *model.Invoice) error

	FindByID(ctx context.Context, id string) (*model.Invoice, error)
	FindAll(ctx context.Context, filters *dto.InvoiceFilters) ([]model.Invoice, int, error)

	// UpdateStatus transitions a pending invoice; the update is guarded so a
	// concurrent transition wins at most once.
	UpdateStatus(ctx context.Context, id string, status model.InvoiceStatus, paymentID *string) (*model.Invoice, error)
	UpdateQR(ctx context.Context, id string, qrCode string, expiration time.Time) error

	FindExpiredQRs(ctx context.Context, now time.Time) ([]model.Invoice, error)
	// FindPaidUnapplied returns paid invoices whose stock decrement never
	// committed; consumed by the reconciliation job.
	FindPaidUnapplied(ctx context.Context) ([]model.Invoice, error)
}
