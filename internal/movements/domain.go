package movements

import "time"

// Direction of a physical stock change.
type Direction string

const (
	// DirectionIn marks stock received from a supplier.
	DirectionIn Direction = "IN"
	// DirectionOut marks stock shipped to a customer.
	DirectionOut Direction = "OUT"
)

// ReferenceType names the order kind that caused a movement.
type ReferenceType string

const (
	// RefSalesOrder tags movements caused by sales orders.
	RefSalesOrder ReferenceType = "SALES_ORDER"
	// RefPurchaseOrder tags movements caused by purchase orders.
	RefPurchaseOrder ReferenceType = "PURCHASE_ORDER"
)

// Movement is one append-only audit entry. Rows are never updated or
// deleted; analytics and reporting depend on the trail being complete.
type Movement struct {
	ID            int64
	ProductID     int64
	SKU           string
	Quantity      int
	Direction     Direction
	ReferenceID   int64
	ReferenceType ReferenceType
	CreatedBy     string
	CreatedAt     time.Time
}
