package sales

import "time"

// OrderStatus of a sales order. The approval-phase statuses (PENDING,
// PARTIALLY_APPROVED, APPROVED) are derived from the items and never set
// directly by callers; the delivery-phase statuses advance through
// explicit operations.
type OrderStatus string

const (
	OrderPending           OrderStatus = "PENDING"
	OrderPartiallyApproved OrderStatus = "PARTIALLY_APPROVED"
	OrderApproved          OrderStatus = "APPROVED"
	OrderDeliveryInProcess OrderStatus = "DELIVERY_IN_PROCESS"
	OrderDelivered         OrderStatus = "DELIVERED"
	OrderCompleted         OrderStatus = "COMPLETED"
	OrderCancelled         OrderStatus = "CANCELLED"
)

// FinalizedForEdit reports whether item edits are locked. Approval locks
// the item set even though the order itself can still be cancelled.
func (s OrderStatus) FinalizedForEdit() bool {
	switch s {
	case OrderPending, OrderPartiallyApproved:
		return false
	default:
		return true
	}
}

// Cancellable reports whether the order may still be cancelled. An
// approved or in-delivery order remains cancellable; a delivered one
// does not.
func (s OrderStatus) Cancellable() bool {
	switch s {
	case OrderDelivered, OrderCompleted, OrderCancelled:
		return false
	default:
		return true
	}
}

// ItemStatus of one order line.
type ItemStatus string

const (
	ItemPending           ItemStatus = "PENDING"
	ItemPartiallyApproved ItemStatus = "PARTIALLY_APPROVED"
	ItemApproved          ItemStatus = "APPROVED"
	ItemCancelled         ItemStatus = "CANCELLED"
)

// ItemStatusFor derives a line status from its quantities.
func ItemStatusFor(quantity, approvedQty int) ItemStatus {
	switch {
	case quantity > 0 && approvedQty == quantity:
		return ItemApproved
	case approvedQty > 0:
		return ItemPartiallyApproved
	default:
		return ItemPending
	}
}

// OrderItem is one line of a sales order. The order owns its items
// exclusively; UnitPrice is snapshotted at order time and immutable.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	SKU         string
	Quantity    int
	ApprovedQty int
	ShippedQty  int
	UnitPrice   float64
	Status      ItemStatus
}

// UnshippedApproved is the reserved quantity still held by this line.
func (i OrderItem) UnshippedApproved() int {
	n := i.ApprovedQty - i.ShippedQty
	if n < 0 {
		return 0
	}
	return n
}

// QRCode is the delivery-scan code owned 1:1 by its order. Created with
// the order, deleted with it.
type QRCode struct {
	ID        int64
	OrderID   int64
	Payload   string
	CreatedAt time.Time
}

// SalesOrder is a customer fulfillment order.
type SalesOrder struct {
	ID                    int64
	OrderReference        string
	Destination           string
	CustomerName          string
	Items                 []OrderItem
	Status                OrderStatus
	EstimatedDeliveryDate *time.Time
	DeliveryDate          *time.Time
	CreatedBy             string
	UpdatedBy             string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DeriveApprovalStatus computes the approval-phase order status from the
// items. Recomputed after every item mutation instead of stored, so it
// can never drift from the lines it summarizes.
func DeriveApprovalStatus(items []OrderItem) OrderStatus {
	if len(items) == 0 {
		return OrderPending
	}
	allApproved := true
	anyApproved := false
	for _, item := range items {
		if item.Status == ItemCancelled {
			continue
		}
		if item.ApprovedQty > 0 {
			anyApproved = true
		}
		if item.ApprovedQty != item.Quantity {
			allApproved = false
		}
	}
	switch {
	case allApproved && anyApproved:
		return OrderApproved
	case anyApproved:
		return OrderPartiallyApproved
	default:
		return OrderPending
	}
}

// ItemByID finds a line by id.
func (o *SalesOrder) ItemByID(itemID int64) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i], true
		}
	}
	return nil, false
}
