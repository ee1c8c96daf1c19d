package inventory

import (
	"fmt"
	"time"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/shared"
)

// Status enumerates derived inventory record states.
type Status string

const (
	// StatusIncoming marks a record created ahead of its first receipt.
	StatusIncoming Status = "INCOMING"
	// StatusInStock marks current stock above the minimum level.
	StatusInStock Status = "IN_STOCK"
	// StatusLowStock marks current stock at or below the minimum level.
	StatusLowStock Status = "LOW_STOCK"
	// StatusInvalid marks a record whose product is not sellable; it is
	// never reported as low stock.
	StatusInvalid Status = "INVALID"
)

// Record is the single source of truth for one SKU's stock counts. It is
// mutated only inside workflow transactions, never directly by callers.
type Record struct {
	SKU           string
	ProductID     int64
	CurrentStock  int
	ReservedStock int
	MinLevel      int
	Status        Status
	Location      string
	UpdatedAt     time.Time
}

// AvailableStock is the quantity that can still be promised to customers.
func (r *Record) AvailableStock() int {
	available := r.CurrentStock - r.ReservedStock
	if available < 0 {
		return 0
	}
	return available
}

// IsLowStock reports whether the record should trigger replenishment.
// An INVALID record is never low stock regardless of its counts.
func (r *Record) IsLowStock() bool {
	return r.Status != StatusInvalid && r.CurrentStock <= r.MinLevel
}

// Reserve earmarks qty for an approved sales order line.
func (r *Record) Reserve(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("inventory: reserve quantity must be positive: %w", shared.ErrValidation)
	}
	if r.AvailableStock() < qty {
		return fmt.Errorf("inventory: reserve %d of %s, %d available: %w", qty, r.SKU, r.AvailableStock(), shared.ErrInsufficientStock)
	}
	r.ReservedStock += qty
	return nil
}

// Release returns earmarked stock when an approval is reverted or the
// order is cancelled. Floored at zero.
func (r *Record) Release(qty int) {
	r.ReservedStock -= qty
	if r.ReservedStock < 0 {
		r.ReservedStock = 0
	}
}

// Receive adds physically arrived stock and recomputes the status.
func (r *Record) Receive(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("inventory: receive quantity must be positive: %w", shared.ErrValidation)
	}
	r.CurrentStock += qty
	r.recomputeStatus()
	return nil
}

// Ship removes both current and reserved stock for a shipped quantity.
func (r *Record) Ship(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("inventory: ship quantity must be positive: %w", shared.ErrValidation)
	}
	if r.CurrentStock < qty || r.ReservedStock < qty {
		return fmt.Errorf("inventory: ship %d of %s, current %d reserved %d: %w", qty, r.SKU, r.CurrentStock, r.ReservedStock, shared.ErrInsufficientStock)
	}
	r.CurrentStock -= qty
	r.ReservedStock -= qty
	r.recomputeStatus()
	return nil
}

// Invalidate marks the record INVALID; a restricted product keeps its
// counts but drops out of low-stock reporting.
func (r *Record) Invalidate() {
	r.Status = StatusInvalid
}

func (r *Record) recomputeStatus() {
	if r.Status == StatusInvalid {
		return
	}
	if r.CurrentStock <= r.MinLevel {
		r.Status = StatusLowStock
		return
	}
	r.Status = StatusInStock
}
