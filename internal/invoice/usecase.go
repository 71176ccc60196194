package invoice

import (
	"context"
	"time"

	"github.com/ncastellanos/inventory-service/internal/invoice/dto"
	"github.com/ncastellanos/inventory-service/internal/model"
)

type UseCase interface {
	CreateInvoice(ctx context.Context, input *dto.CreateInvoiceInput) (*model.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	ListInvoices(ctx context.Context, filters *dto.InvoiceFilters) ([]model.Invoice, int, error)

	UpdatePaymentStatus(ctx context.Context, id string, status model.InvoiceStatus, paymentID *string) (*model.Invoice, error)
	UpdateInvoiceQR(ctx context.Context, id string, qrCode string, expiration time.Time) (*model.Invoice, error)

	GetExpiredQRs(ctx context.Context) ([]model.Invoice, error)
	GetPaidUnapplied(ctx context.Context) ([]model.Invoice, error)
}
