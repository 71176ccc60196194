package dto

import "github.com/ncastellanos/inventory-service/internal/model"

type CreateInventoryInput struct {
	ProductID string
	Quantity  int
	MinStock  int
	MaxStock  *int
	Location  *string
	UserID    string
}

// AdjustInventoryInput carries one adjustment request. Amount is always
// positive; direction comes from Type.
type AdjustInventoryInput struct {
	Amount int
	Type   model.MovementType
	Reason string
	UserID string
}

type UpdateInventoryInput struct {
	MinStock *int
	MaxStock *int
	Location *string
	UserID   string
}
