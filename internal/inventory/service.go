package inventory

import (
	"context"
	"fmt"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/shared"
)

// Sortable fields accepted by ListLowStock. Anything else is rejected
// before a query is built.
var lowStockSortFields = map[string]string{
	"sku":           "sku",
	"current_stock": "current_stock",
	"min_level":     "min_level",
	"updated_at":    "updated_at",
}

// RepositoryPort abstracts repository usage for the read-side service.
type RepositoryPort interface {
	GetBySKU(ctx context.Context, sku string) (Record, error)
	ListLowStock(ctx context.Context, sortBy, direction string) ([]Record, error)
	InvalidateUnsellable(ctx context.Context) (int64, error)
}

// Service exposes the ledger's read paths. All mutations go through the
// order workflows, which own the transactions.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns the record for one SKU.
func (s *Service) Get(ctx context.Context, sku string) (Record, error) {
	if sku == "" {
		return Record{}, fmt.Errorf("inventory: sku required: %w", shared.ErrValidation)
	}
	return s.repo.GetBySKU(ctx, sku)
}

// ListLowStock returns records at or below their minimum level, excluding
// INVALID records. Used by the low-stock alert job and its read endpoint.
func (s *Service) ListLowStock(ctx context.Context, sortBy, direction string) ([]Record, error) {
	if sortBy == "" {
		sortBy = "current_stock"
	}
	column, ok := lowStockSortFields[sortBy]
	if !ok {
		return nil, fmt.Errorf("inventory: unknown sort field %q: %w", sortBy, shared.ErrValidation)
	}
	switch direction {
	case "", "asc", "desc":
	default:
		return nil, fmt.Errorf("inventory: unknown sort direction %q: %w", direction, shared.ErrValidation)
	}
	if direction == "" {
		direction = "asc"
	}
	return s.repo.ListLowStock(ctx, column, direction)
}

// InvalidateUnsellable flags records whose product left the sellable
// lifecycle, dropping them out of low-stock reporting. Run by the alert
// job before every scan.
func (s *Service) InvalidateUnsellable(ctx context.Context) (int64, error) {
	return s.repo.InvalidateUnsellable(ctx)
}
