package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ncastellanos/inventory-service/internal/apperr"
	"github.com/ncastellanos/inventory-service/internal/audit"
	"github.com/ncastellanos/inventory-service/internal/invoice"
	"github.com/ncastellanos/inventory-service/internal/invoice/dto"
	"github.com/ncastellanos/inventory-service/internal/model"
	"github.com/ncastellanos/inventory-service/pkg/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type invoiceUseCase struct {
	repo   invoice.Repository
	audit  audit.Recorder
	logger logger.ZapLogger
}

func NewInvoiceUseCase(repo invoice.Repository, recorder audit.Recorder, log logger.ZapLogger) invoice.UseCase {
	return &invoiceUseCase{
		repo:   repo,
		audit:  recorder,
		logger: log,
	}
}

func (uc *invoiceUseCase) CreateInvoice(ctx context.Context, input *dto.CreateInvoiceInput) (*model.Invoice, error) {
	if len(input.Items) == 0 {
		return nil, apperr.Validationf("invoice must have at least one item")
	}
	if input.UserID == "" {
		return nil, apperr.Validationf("invoice creator is required")
	}

	now := time.Now()
	inv := &model.Invoice{
		ID:            uuid.New().String(),
		Status:        model.InvoiceStatusPending,
		PaymentMethod: input.PaymentMethod,
		ItemCount:     len(input.Items),
		Total:         decimal.Zero,
		CreatedBy:     input.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, item := range input.Items {
		if item.Quantity <= 0 {
			return nil, apperr.Validationf("item quantity must be positive (product %s)", item.ProductID)
		}
		if item.UnitPrice.IsNegative() || item.UnitPrice.IsZero() {
			return nil, apperr.Validationf("item unit price must be positive (product %s)", item.ProductID)
		}

		subtotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		inv.Total = inv.Total.Add(subtotal)
		inv.Items = append(inv.Items, model.InvoiceItem{
			ID:        uuid.New().String(),
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  subtotal,
		})
	}

	// Stock re-check, number assignment and persistence happen inside one
	// transaction in the repository.
	if err := uc.repo.CreateWithItems(ctx, inv); err != nil {
		return nil, err
	}

	uc.audit.Record(ctx, audit.Entry{
		TableName: "invoices",
		RecordID:  inv.ID,
		Action:    model.AuditActionCreate,
		NewValues: inv,
		UserID:    &input.UserID,
	})

	uc.logger.Info("invoice created",
		zap.String("invoice_id", inv.ID),
		zap.String("number", inv.Number),
		zap.String("total", inv.Total.String()),
		zap.Int("items", inv.ItemCount),
	)

	return uc.GetInvoice(ctx, inv.ID)
}

func (uc *invoiceUseCase) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	inv, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperr.NotFoundf("invoice %s", id)
	}
	return inv, nil
}

func (uc *invoiceUseCase) ListInvoices(ctx context.Context, filters *dto.InvoiceFilters) ([]model.Invoice, int, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit < 1 {
		filters.Limit = 10
	}
	return uc.repo.FindAll(ctx, filters)
}

func (uc *invoiceUseCase) UpdatePaymentStatus(ctx context.Context, id string, status model.InvoiceStatus, paymentID *string) (*model.Invoice, error) {
	if !status.Valid() {
		return nil, apperr.Validationf("unknown invoice status %q", status)
	}

	inv, err := uc.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inv.Status.CanTransitionTo(status) {
		return nil, apperr.InvalidTransitionf(
			"invoice %s is %s, cannot transition to %s", inv.Number, inv.Status, status)
	}

	updated, err := uc.repo.UpdateStatus(ctx, id, status, paymentID)
	if err != nil {
		return nil, err
	}

	uc.audit.Record(ctx, audit.Entry{
		TableName: "invoices",
		RecordID:  id,
		Action:    model.AuditActionUpdate,
		OldValues: map[string]interface{}{"status": inv.Status, "payment_id": inv.PaymentID},
		NewValues: map[string]interface{}{"status": updated.Status, "payment_id": updated.PaymentID},
	})

	uc.logger.Info("invoice status updated",
		zap.String("invoice_id", id),
		zap.String("number", updated.Number),
		zap.String("from", string(inv.Status)),
		zap.String("to", string(updated.Status)),
	)

	return updated, nil
}

func (uc *invoiceUseCase) UpdateInvoiceQR(ctx context.Context, id string, qrCode string, expiration time.Time) (*model.Invoice, error) {
	if _, err := uc.GetInvoice(ctx, id); err != nil {
		return nil, err
	}
	if err := uc.repo.UpdateQR(ctx, id, qrCode, expiration); err != nil {
		return nil, err
	}
	return uc.GetInvoice(ctx, id)
}

func (uc *invoiceUseCase) GetExpiredQRs(ctx context.Context) ([]model.Invoice, error) {
	return uc.repo.FindExpiredQRs(ctx, time.Now())
}

func (uc *invoiceUseCase) GetPaidUnapplied(ctx context.Context) ([]model.Invoice, error) {
	return uc.repo.FindPaidUnapplied(ctx)
}
