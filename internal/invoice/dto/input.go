package dto

import (
	"github.com/ncastellanos/inventory-service/internal/model"
	"github.com/shopspring/decimal"
)

type CreateInvoiceInput struct {
	Items         []CreateInvoiceItemInput
	PaymentMethod *model.PaymentMethod
	UserID        string
}

type CreateInvoiceItemInput struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}
