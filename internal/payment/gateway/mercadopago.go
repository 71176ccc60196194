package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ncastellanos/inventory-service/internal/payment"
)

// MercadoPago talks to the Mercado Pago in-store QR API. Responses are
// passed through without interpreting the QR payload.
type MercadoPago struct {
	client      *resty.Client
	collectorID string
	posID       string
}

func NewMercadoPago(cfg payment.Config) (*MercadoPago, error) {
	if cfg.AccessToken == "" || cfg.CollectorID == "" || cfg.PosID == "" {
		return nil, fmt.Errorf("mercado pago configuration is incomplete")
	}

	client := resty.New().
		SetBaseURL(cfg.APIURL).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)

	return &MercadoPago{
		client:      client,
		collectorID: cfg.CollectorID,
		posID:       cfg.PosID,
	}, nil
}

func (g *MercadoPago) CreateQROrder(ctx context.Context, order *payment.Order) (*payment.QROrder, error) {
	var result payment.QROrder

	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(order).
		SetResult(&result).
		Post(fmt.Sprintf("/instore/orders/qr/seller/collectors/%s/pos/%s/qrs", g.collectorID, g.posID))
	if err != nil {
		return nil, fmt.Errorf("create qr order: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("create qr order: gateway returned %s: %s", resp.Status(), resp.String())
	}

	return &result, nil
}

func (g *MercadoPago) GetPayment(ctx context.Context, paymentID string) (*payment.Payment, error) {
	var result payment.Payment

	resp, err := g.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/v1/payments/%s", paymentID))
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", paymentID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get payment %s: gateway returned %s", paymentID, resp.Status())
	}

	return &result, nil
}
