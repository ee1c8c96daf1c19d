package orderquery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/procurement"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/sales"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/shared"
)

type stubRepo struct {
	lastQuery Query
}

func (s *stubRepo) SearchSales(_ context.Context, q Query) ([]sales.SalesOrder, int, error) {
	s.lastQuery = q
	return []sales.SalesOrder{{ID: 1}}, 1, nil
}

func (s *stubRepo) SearchPurchase(_ context.Context, q Query) ([]procurement.PurchaseOrder, int, error) {
	s.lastQuery = q
	return []procurement.PurchaseOrder{{ID: 2}}, 1, nil
}

func TestQueryValidateDefaults(t *testing.T) {
	q := Query{Type: TypeSales}
	require.NoError(t, q.Validate())
	require.Equal(t, ScopeAll, q.Scope)
	require.Equal(t, 1, q.Page)
	require.Equal(t, 20, q.Size)
	require.Equal(t, "created_at", q.SortBy)
	require.Equal(t, "DESC", q.SortDir)

	p := Query{Type: TypePurchase}
	require.NoError(t, p.Validate())
	require.Equal(t, "order_date", p.SortBy)
}

func TestQueryValidateRejectsUnknownSortField(t *testing.T) {
	q := Query{Type: TypeSales, SortBy: "customer_name; DROP TABLE sales_orders"}
	require.ErrorIs(t, q.Validate(), shared.ErrValidation)

	// Purchase sort fields are not valid for sales and vice versa.
	q = Query{Type: TypeSales, SortBy: "po_number"}
	require.ErrorIs(t, q.Validate(), shared.ErrValidation)
	q = Query{Type: TypePurchase, SortBy: "customer_name"}
	require.ErrorIs(t, q.Validate(), shared.ErrValidation)
}

func TestQueryValidateBounds(t *testing.T) {
	q := Query{Type: TypeSales, Size: shared.MaxPerPage + 1}
	require.ErrorIs(t, q.Validate(), shared.ErrValidation)

	q = Query{Type: TypeSales, Size: -5}
	require.ErrorIs(t, q.Validate(), shared.ErrValidation)

	q = Query{Type: TypeSales, Page: -1}
	require.NoError(t, q.Validate())
	require.Equal(t, 1, q.Page)
	require.Zero(t, q.Offset())
}

func TestQueryValidateDateRange(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	q := Query{Type: TypeSales, From: from, To: to}
	require.ErrorIs(t, q.Validate(), shared.ErrValidation, "range without a field")

	q = Query{Type: TypeSales, DateField: "delivery_date", From: from, To: to}
	require.NoError(t, q.Validate())

	q = Query{Type: TypeSales, DateField: "order_date", From: from}
	require.ErrorIs(t, q.Validate(), shared.ErrValidation, "purchase date field on sales query")

	q = Query{Type: TypePurchase, DateField: "expected_arrival", From: to, To: from}
	require.ErrorIs(t, q.Validate(), shared.ErrValidation, "end before start")
}

func TestQueryValidateTypeAndScope(t *testing.T) {
	q := Query{Type: "INVOICE"}
	require.ErrorIs(t, q.Validate(), shared.ErrValidation)

	q = Query{Type: TypeSales, Scope: "SOMETIMES"}
	require.ErrorIs(t, q.Validate(), shared.ErrValidation)
}

func TestServiceSearchDispatchesByType(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo)
	ctx := context.Background()

	result, err := svc.Search(ctx, Query{Type: TypeSales, Scope: ScopePendingOnly})
	require.NoError(t, err)
	require.Len(t, result.SalesOrders, 1)
	require.Nil(t, result.PurchaseOrders)
	require.Equal(t, ScopePendingOnly, repo.lastQuery.Scope)

	result, err = svc.Search(ctx, Query{Type: TypePurchase})
	require.NoError(t, err)
	require.Len(t, result.PurchaseOrders, 1)
	require.Nil(t, result.SalesOrders)

	_, err = svc.Search(ctx, Query{Type: TypeSales, SortBy: "nope"})
	require.ErrorIs(t, err, shared.ErrValidation)
}
