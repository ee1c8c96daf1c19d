package procurement

import "time"

// Purchase order lifecycle statuses.
type Status string

const (
	StatusAwaitingApproval  Status = "AWAITING_APPROVAL"
	StatusDeliveryInProcess Status = "DELIVERY_IN_PROCESS"
	StatusPartiallyReceived Status = "PARTIALLY_RECEIVED"
	StatusReceived          Status = "RECEIVED"
	StatusCancelled         Status = "CANCELLED"
	StatusFailed            Status = "FAILED"
)

// Finalized reports whether the status is terminal. A finalized purchase
// order rejects every further edit.
func (s Status) Finalized() bool {
	switch s {
	case StatusReceived, StatusCancelled, StatusFailed:
		return true
	default:
		return false
	}
}

// PurchaseOrder is a replenishment order placed to a supplier. One product
// per order; partial receipts accumulate in ReceivedQty.
type PurchaseOrder struct {
	ID              int64
	PONumber        string
	ProductID       int64
	SKU             string
	SupplierID      int64
	OrderedQty      int
	ReceivedQty     int
	Status          Status
	OrderDate       time.Time
	ExpectedArrival *time.Time
	ActualArrival   *time.Time
	Notes           string
	OrderedBy       string
	UpdatedBy       string
	LastUpdated     time.Time
	// Version is the optimistic concurrency token; every successful write
	// bumps it and stale writers get a Conflict.
	Version int64
}

// Token lifecycle statuses.
type TokenStatus string

const (
	TokenPending   TokenStatus = "PENDING"
	TokenConfirmed TokenStatus = "CONFIRMED"
	TokenCancelled TokenStatus = "CANCELLED"
	TokenExpired   TokenStatus = "EXPIRED"
)

// ConfirmationToken is the single-use token mailed to the supplier when a
// purchase order awaits approval.
type ConfirmationToken struct {
	ID        int64
	Token     string
	OrderID   int64
	Status    TokenStatus
	ExpiresAt time.Time
	ClickedAt *time.Time
	CreatedAt time.Time
}

// Usable reports whether the token can still confirm or cancel its order.
func (t ConfirmationToken) Usable(now time.Time) bool {
	return t.Status == TokenPending && now.Before(t.ExpiresAt)
}
