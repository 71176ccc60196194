package dto

import "github.com/ncastellanos/inventory-service/internal/model"

type InvoiceFilters struct {
	Status *model.InvoiceStatus
	Page   int
	Limit  int
}
