package payment

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Config carries the gateway credentials. It is built once at startup from
// the process environment and injected; nothing in this package reads
// ambient state.
type Config struct {
	APIURL            string
	AccessToken       string
	CollectorID       string
	PosID             string
	QRExpirationHours int
}

// Notification is the webhook envelope delivered by the gateway.
type Notification struct {
	Type string `json:"type"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Order is the outbound order-creation request. The QR payload that comes
// back is opaque; we store it verbatim.
type Order struct {
	ExternalReference string          `json:"external_reference"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Items             []OrderItem     `json:"items"`
}

type OrderItem struct {
	SKUNumber   string          `json:"sku_number"`
	Category    string          `json:"category"`
	Title       string          `json:"title"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	UnitMeasure string          `json:"unit_measure"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type QROrder struct {
	QRData string `json:"qr_data"`
}

type Payment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
}

const PaymentStatusApproved = "approved"

type Gateway interface {
	CreateQROrder(ctx context.Context, order *Order) (*QROrder, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}
