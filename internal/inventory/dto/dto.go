package dto

type InventoryFilters struct {
	IncludeInactive bool
	Search          string // matches product name or SKU
	OrderBy         string
	OrderDesc       bool
	Page            int
	PageSize        int
}
