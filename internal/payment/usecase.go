package payment

import (
	"context"

	"github.com/ncastellanos/inventory-service/internal/payment/dto"
)

type UseCase interface {
	// ProcessPayment creates a gateway QR order for a pending invoice and
	// stores the QR payload on the invoice.
	ProcessPayment(ctx context.Context, invoiceID string) (*dto.PaymentQRResult, error)

	// HandleWebhook reconciles one gateway notification. Duplicate
	// deliveries for an already-settled invoice are a no-op.
	HandleWebhook(ctx context.Context, notification *Notification) error

	// Background jobs.
	RefreshExpiredQRs(ctx context.Context) (*dto.RefreshResult, error)
	ReconcileUnappliedStock(ctx context.Context) (int, error)
}
