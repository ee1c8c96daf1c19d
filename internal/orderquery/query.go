// Package orderquery serves the read side: paged search and filtering
// over both order types. It never mutates anything.
package orderquery

import (
	"fmt"
	"time"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/shared"
)

// OrderType selects which aggregate to search.
type OrderType string

const (
	TypeSales    OrderType = "SALES"
	TypePurchase OrderType = "PURCHASE"
)

// Scope selects the behavioral context: the operational view restricts
// to non-finalized orders, the management view sees everything.
type Scope string

const (
	ScopePendingOnly Scope = "PENDING_ONLY"
	ScopeAll         Scope = "ALL"
)

// Date fields a range filter may target, per order type.
var salesDateFields = map[string]string{
	"created_at":              "created_at",
	"estimated_delivery_date": "estimated_delivery_date",
	"delivery_date":           "delivery_date",
}

var purchaseDateFields = map[string]string{
	"order_date":       "order_date",
	"expected_arrival": "expected_arrival",
	"actual_arrival":   "actual_arrival",
	"last_updated":     "last_updated",
}

// Sortable columns per order type. Anything else is rejected instead of
// interpolated into SQL.
var salesSortFields = map[string]string{
	"created_at":      "created_at",
	"order_reference": "order_reference",
	"customer_name":   "customer_name",
	"status":          "status",
}

var purchaseSortFields = map[string]string{
	"order_date":   "order_date",
	"po_number":    "po_number",
	"status":       "status",
	"last_updated": "last_updated",
}

// Query is one validated search request.
type Query struct {
	Type      OrderType
	Scope     Scope
	Search    string
	Status    string
	Category  string
	DateField string
	From      time.Time
	To        time.Time
	SortBy    string
	SortDir   string
	Page      int
	Size      int
}

// Validate normalizes defaults and rejects anything that would build an
// unsafe or unbounded query.
func (q *Query) Validate() error {
	switch q.Type {
	case TypeSales, TypePurchase:
	default:
		return fmt.Errorf("orderquery: unknown order type %q: %w", q.Type, shared.ErrValidation)
	}
	if q.Scope == "" {
		q.Scope = ScopeAll
	}
	switch q.Scope {
	case ScopePendingOnly, ScopeAll:
	default:
		return fmt.Errorf("orderquery: unknown scope %q: %w", q.Scope, shared.ErrValidation)
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.Size == 0 {
		q.Size = 20
	}
	if q.Size < 1 || q.Size > shared.MaxPerPage {
		return fmt.Errorf("orderquery: page size %d out of bounds: %w", q.Size, shared.ErrValidation)
	}

	sortFields := salesSortFields
	dateFields := salesDateFields
	defaultSort := "created_at"
	if q.Type == TypePurchase {
		sortFields = purchaseSortFields
		dateFields = purchaseDateFields
		defaultSort = "order_date"
	}

	if q.SortBy == "" {
		q.SortBy = defaultSort
	}
	column, ok := sortFields[q.SortBy]
	if !ok {
		return fmt.Errorf("orderquery: unknown sort field %q: %w", q.SortBy, shared.ErrValidation)
	}
	q.SortBy = column

	switch q.SortDir {
	case "":
		q.SortDir = "DESC"
	case "asc", "ASC":
		q.SortDir = "ASC"
	case "desc", "DESC":
		q.SortDir = "DESC"
	default:
		return fmt.Errorf("orderquery: sort direction %q: %w", q.SortDir, shared.ErrValidation)
	}

	if q.DateField != "" {
		column, ok := dateFields[q.DateField]
		if !ok {
			return fmt.Errorf("orderquery: unknown date field %q: %w", q.DateField, shared.ErrValidation)
		}
		q.DateField = column
	}
	if (!q.From.IsZero() || !q.To.IsZero()) && q.DateField == "" {
		return fmt.Errorf("orderquery: date range requires a date field: %w", shared.ErrValidation)
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return fmt.Errorf("orderquery: date range end before start: %w", shared.ErrValidation)
	}
	return nil
}

// Offset into the result set.
func (q Query) Offset() int {
	return (q.Page - 1) * q.Size
}
