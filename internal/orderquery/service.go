package orderquery

import (
	"context"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/procurement"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/sales"
)

// RepositoryPort describes the search backends. Queries handed to it are
// already validated.
type RepositoryPort interface {
	SearchSales(ctx context.Context, q Query) ([]sales.SalesOrder, int, error)
	SearchPurchase(ctx context.Context, q Query) ([]procurement.PurchaseOrder, int, error)
}

// Result is one page of matches. Exactly one of the two slices is set,
// matching the queried type.
type Result struct {
	SalesOrders    []sales.SalesOrder
	PurchaseOrders []procurement.PurchaseOrder
	Total          int
	Page           int
	Size           int
}

// Service validates and dispatches search requests.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the query service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Search runs one paged query.
func (s *Service) Search(ctx context.Context, q Query) (Result, error) {
	if err := q.Validate(); err != nil {
		return Result{}, err
	}
	result := Result{Page: q.Page, Size: q.Size}
	var err error
	switch q.Type {
	case TypePurchase:
		result.PurchaseOrders, result.Total, err = s.repo.SearchPurchase(ctx, q)
	default:
		result.SalesOrders, result.Total, err = s.repo.SearchSales(ctx, q)
	}
	if err != nil {
		return Result{}, err
	}
	return result, nil
}
