package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ncastellanos/inventory-service/internal/apperr"
	"github.com/ncastellanos/inventory-service/internal/inventory"
	"github.com/ncastellanos/inventory-service/internal/invoice"
	"github.com/ncastellanos/inventory-service/internal/model"
	"github.com/ncastellanos/inventory-service/internal/payment"
	"github.com/ncastellanos/inventory-service/internal/payment/dto"
	"github.com/ncastellanos/inventory-service/pkg/cache"
	"github.com/ncastellanos/inventory-service/pkg/logger"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	settlementLockTTL     = 10 * time.Second
	settlementLockRetries = 3
	lockRetryDelay        = 100 * time.Millisecond
)

type paymentUseCase struct {
	gateway   payment.Gateway
	invoices  invoice.UseCase
	inventory inventory.UseCase
	cache     cache.Locker
	cfg       payment.Config
	logger    logger.ZapLogger
}

func NewPaymentUseCase(
	gw payment.Gateway,
	invoices invoice.UseCase,
	inv inventory.UseCase,
	cache cache.Locker,
	cfg payment.Config,
	log logger.ZapLogger,
) payment.UseCase {
	return &paymentUseCase{
		gateway:   gw,
		invoices:  invoices,
		inventory: inv,
		cache:     cache,
		cfg:       cfg,
		logger:    log,
	}
}

func (uc *paymentUseCase) ProcessPayment(ctx context.Context, invoiceID string) (*dto.PaymentQRResult, error) {
	inv, err := uc.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	if inv.Status != model.InvoiceStatusPending {
		return nil, apperr.InvalidTransitionf(
			"invoice %s must be pending to process payment, current status %s", inv.Number, inv.Status)
	}

	now := time.Now()
	if inv.HasActiveQR(now) {
		return nil, apperr.Validationf("invoice %s already has an active QR code", inv.Number)
	}

	order := buildOrder(inv)
	qrOrder, err := uc.gateway.CreateQROrder(ctx, order)
	if err != nil {
		return nil, err
	}
	if qrOrder.QRData == "" {
		return nil, fmt.Errorf("gateway returned no QR data for invoice %s", inv.Number)
	}

	qrURL, err := renderQRDataURL(qrOrder.QRData)
	if err != nil {
		return nil, fmt.Errorf("render QR for invoice %s: %w", inv.Number, err)
	}

	expiresAt := now.Add(time.Duration(uc.cfg.QRExpirationHours) * time.Hour)
	if _, err := uc.invoices.UpdateInvoiceQR(ctx, invoiceID, qrURL, expiresAt); err != nil {
		return nil, err
	}

	uc.logger.Info("QR order created",
		zap.String("invoice_id", invoiceID),
		zap.String("number", inv.Number),
		zap.Time("expires_at", expiresAt),
	)

	return &dto.PaymentQRResult{
		QRURL:     qrURL,
		QRData:    qrOrder.QRData,
		ExpiresAt: expiresAt,
	}, nil
}

func (uc *paymentUseCase) HandleWebhook(ctx context.Context, notification *payment.Notification) error {
	if notification.Type != "payment" {
		return nil
	}

	details, err := uc.gateway.GetPayment(ctx, notification.Data.ID)
	if err != nil {
		// Propagated so the transport retries the delivery.
		return err
	}
	if details.Status != payment.PaymentStatusApproved {
		uc.logger.Debug("ignoring non-approved payment notification",
			zap.String("payment_id", details.ID.String()),
			zap.String("status", details.Status),
		)
		return nil
	}
	if details.ExternalReference == "" {
		return apperr.Validationf("payment %s has no external reference", details.ID.String())
	}

	return uc.settle(ctx, details.ExternalReference, details.ID.String())
}

// settle marks the invoice paid and applies its stock effects. The status
// transition and the decrement are two transactions; the stock_applied flag
// makes the decrement retryable without ever running twice.
func (uc *paymentUseCase) settle(ctx context.Context, invoiceID, paymentID string) error {
	unlock, err := uc.acquireLock(ctx, "lock:settlement:"+invoiceID)
	if err != nil {
		return err
	}
	defer unlock()

	inv, err := uc.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}

	switch {
	case inv.Status == model.InvoiceStatusPaid && inv.StockApplied:
		// Duplicate webhook delivery.
		uc.logger.Info("payment already settled, ignoring duplicate notification",
			zap.String("invoice_id", invoiceID),
			zap.String("number", inv.Number),
		)
		return nil

	case inv.Status == model.InvoiceStatusPaid:
		// A previous decrement failed after the status commit; retry it.
		uc.logger.Warn("retrying stock application for paid invoice",
			zap.String("invoice_id", invoiceID),
			zap.String("number", inv.Number),
		)

	case inv.Status.Terminal():
		return apperr.InvalidTransitionf(
			"invoice %s is %s, payment confirmation rejected", inv.Number, inv.Status)

	default:
		inv, err = uc.invoices.UpdatePaymentStatus(ctx, invoiceID, model.InvoiceStatusPaid, &paymentID)
		if err != nil {
			return err
		}
	}

	if err := uc.inventory.ApplyInvoiceStock(ctx, inv); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			// Lost the race against another settlement; stock is applied.
			return nil
		}
		// The invoice stays paid; the reconciliation job or a webhook
		// redelivery will retry the decrement.
		uc.logger.Error("stock application failed for paid invoice",
			zap.String("invoice_id", invoiceID),
			zap.String("number", inv.Number),
			zap.Error(err),
		)
		return err
	}

	return nil
}

func (uc *paymentUseCase) RefreshExpiredQRs(ctx context.Context) (*dto.RefreshResult, error) {
	expired, err := uc.invoices.GetExpiredQRs(ctx)
	if err != nil {
		return nil, err
	}

	result := &dto.RefreshResult{}
	for _, inv := range expired {
		if _, err := uc.ProcessPayment(ctx, inv.ID); err != nil {
			uc.logger.Error("failed to refresh QR",
				zap.String("invoice_id", inv.ID),
				zap.String("number", inv.Number),
				zap.Error(err),
			)
			result.Failed++
			continue
		}
		result.Refreshed++
	}

	return result, nil
}

func (uc *paymentUseCase) ReconcileUnappliedStock(ctx context.Context) (int, error) {
	pending, err := uc.invoices.GetPaidUnapplied(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for i := range pending {
		inv := &pending[i]
		err := uc.inventory.ApplyInvoiceStock(ctx, inv)
		switch {
		case err == nil:
			applied++
		case errors.Is(err, apperr.ErrDuplicate):
			// Applied by a concurrent settlement between the scan and now.
		default:
			uc.logger.Error("reconciliation could not apply stock",
				zap.String("invoice_id", inv.ID),
				zap.String("number", inv.Number),
				zap.Error(err),
			)
		}
	}

	if applied > 0 {
		uc.logger.Info("reconciled unapplied stock", zap.Int("invoices", applied))
	}
	return applied, nil
}

func (uc *paymentUseCase) acquireLock(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()

	for i := 0; i < settlementLockRetries; i++ {
		ok, err := uc.cache.AcquireLock(ctx, key, token, settlementLockTTL)
		if err != nil {
			uc.logger.Error("failed to acquire lock, redis error", zap.Error(err))
		}
		if ok {
			return func() { uc.cache.ReleaseLock(ctx, key, token) }, nil
		}
		time.Sleep(lockRetryDelay)
	}

	return nil, fmt.Errorf("settlement busy, retry later (lock %s)", key)
}

func buildOrder(inv *model.Invoice) *payment.Order {
	order := &payment.Order{
		ExternalReference: inv.ID,
		Title:             fmt.Sprintf("Invoice %s", inv.Number),
		Description:       fmt.Sprintf("Payment for invoice %s with %d items", inv.Number, inv.ItemCount),
		TotalAmount:       inv.Total,
	}

	for _, item := range inv.Items {
		sku := item.ProductID
		title := item.ProductID
		if item.Product != nil {
			sku = item.Product.SKU
			title = item.Product.Name
		}
		order.Items = append(order.Items, payment.OrderItem{
			SKUNumber:   sku,
			Category:    "product",
			Title:       title,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			UnitMeasure: "unit",
			TotalAmount: item.Subtotal,
		})
	}

	return order
}

func renderQRDataURL(qrData string) (string, error) {
	png, err := qrcode.Encode(qrData, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
