package products

import "time"

// SellabilityStatus drives whether a product may appear on orders.
type SellabilityStatus string

const (
	StatusActive       SellabilityStatus = "ACTIVE"
	StatusPlanning     SellabilityStatus = "PLANNING"
	StatusDiscontinued SellabilityStatus = "DISCONTINUED"
	StatusArchived     SellabilityStatus = "ARCHIVED"
	StatusRestricted   SellabilityStatus = "RESTRICTED"
)

// Product represents a catalog entry. Orders reference it by id and
// snapshot the price at order time.
type Product struct {
	ID        int64             `json:"id"`
	SKU       string            `json:"sku"`
	Name      string            `json:"name"`
	Category  string            `json:"category"`
	Price     float64           `json:"price"`
	Status    SellabilityStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Sellable reports whether customers may order the product.
func (p Product) Sellable() bool {
	return p.Status == StatusActive
}

// Replenishable reports whether supplier orders may be placed for the
// product. Planned products can be stocked ahead of launch.
func (p Product) Replenishable() bool {
	switch p.Status {
	case StatusActive, StatusPlanning:
		return true
	default:
		return false
	}
}
