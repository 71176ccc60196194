package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusFailed    InvoiceStatus = "failed"
	InvoiceStatusExpired   InvoiceStatus = "expired"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusFailed,
		InvoiceStatusExpired, InvoiceStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further status transition is permitted.
// Every state except pending is terminal.
func (s InvoiceStatus) Terminal() bool {
	return s != InvoiceStatusPending
}

// CanTransitionTo encodes the one-way state machine: pending may move to any
// terminal state, terminal states never move again.
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	return s == InvoiceStatusPending && next.Valid() && next != InvoiceStatusPending
}

type PaymentMethod string

const (
	PaymentMethodMercadoPago PaymentMethod = "mercado_pago"
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodTransfer    PaymentMethod = "transfer"
)

// Invoice is one sale transaction. Number is unique and sequential
// (INV-0001, INV-0002, ...). StockApplied flips exactly once, inside the
// same transaction as the stock decrement for a paid invoice.
type Invoice struct {
	ID            string          `db:"id" json:"id"`
	Number        string          `db:"number" json:"number"`
	Total         decimal.Decimal `db:"total" json:"total"`
	ItemCount     int             `db:"item_count" json:"item_count"`
	Status        InvoiceStatus   `db:"status" json:"status"`
	PaymentMethod *PaymentMethod  `db:"payment_method" json:"payment_method"`
	PaymentID     *string         `db:"payment_id" json:"payment_id"`
	QRCode        *string         `db:"qr_code" json:"qr_code"`
	QRExpiration  *time.Time      `db:"qr_expiration" json:"qr_expiration"`
	StockApplied  bool            `db:"stock_applied" json:"stock_applied"`
	CreatedBy     string          `db:"created_by" json:"created_by"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`

	Items []InvoiceItem `db:"-" json:"items"` // always loaded with the invoice
}

// HasActiveQR reports whether a QR code exists and has not expired yet.
func (i *Invoice) HasActiveQR(now time.Time) bool {
	return i.QRCode != nil && i.QRExpiration != nil && i.QRExpiration.After(now)
}

type InvoiceItem struct {
	ID        string          `db:"id" json:"id"`
	InvoiceID string          `db:"invoice_id" json:"invoice_id"`
	ProductID string          `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Subtotal  decimal.Decimal `db:"subtotal" json:"subtotal"`

	Product *Product `db:"-" json:"product,omitempty"` // joined data
}
