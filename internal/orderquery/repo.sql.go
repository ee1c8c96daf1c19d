package orderquery

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/procurement"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/sales"
)

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// builder accumulates WHERE clauses with positional args.
type builder struct {
	clauses []string
	args    []any
}

func (b *builder) add(clause string, values ...any) {
	for _, v := range values {
		b.args = append(b.args, v)
		clause = strings.Replace(clause, "?", "$"+strconv.Itoa(len(b.args)), 1)
	}
	b.clauses = append(b.clauses, clause)
}

func (b *builder) where() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

// SearchSales pages through sales orders. Items are loaded per row; result
// pages are small enough that the N+1 stays cheap.
func (r *Repository) SearchSales(ctx context.Context, q Query) ([]sales.SalesOrder, int, error) {
	b := &builder{}
	if q.Scope == ScopePendingOnly {
		b.add(`status NOT IN ('DELIVERED','COMPLETED','CANCELLED')`)
	}
	if q.Status != "" {
		b.add(`status = ?`, q.Status)
	}
	if q.Search != "" {
		b.add(`(customer_name ILIKE ? OR order_reference ILIKE ?)`, "%"+q.Search+"%", "%"+q.Search+"%")
	}
	if q.Category != "" {
		b.add(`EXISTS (SELECT 1 FROM sales_order_items i JOIN products p ON p.id = i.product_id
WHERE i.order_id = sales_orders.id AND p.category = ?)`, q.Category)
	}
	if q.DateField != "" {
		if !q.From.IsZero() {
			b.add(q.DateField+` >= ?`, q.From)
		}
		if !q.To.IsZero() {
			b.add(q.DateField+` <= ?`, q.To)
		}
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales_orders`+b.where(), b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("orderquery: count sales orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, order_reference, destination, customer_name, status,
estimated_delivery_date, delivery_date, created_by, updated_by, created_at, updated_at
FROM sales_orders%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		b.where(), q.SortBy, q.SortDir, len(b.args)+1, len(b.args)+2)
	args := append(b.args, q.Size, q.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("orderquery: search sales orders: %w", err)
	}
	defer rows.Close()

	var out []sales.SalesOrder
	for rows.Next() {
		var o sales.SalesOrder
		if err := rows.Scan(&o.ID, &o.OrderReference, &o.Destination, &o.CustomerName, &o.Status,
			&o.EstimatedDeliveryDate, &o.DeliveryDate, &o.CreatedBy, &o.UpdatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		items, err := r.loadItems(ctx, out[i].ID)
		if err != nil {
			return nil, 0, err
		}
		out[i].Items = items
	}
	return out, total, nil
}

func (r *Repository) loadItems(ctx context.Context, orderID int64) ([]sales.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, product_id, sku, quantity, approved_qty, shipped_qty, unit_price, status
FROM sales_order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("orderquery: load items for order %d: %w", orderID, err)
	}
	defer rows.Close()
	var items []sales.OrderItem
	for rows.Next() {
		var item sales.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.SKU, &item.Quantity,
			&item.ApprovedQty, &item.ShippedQty, &item.UnitPrice, &item.Status); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SearchPurchase pages through purchase orders.
func (r *Repository) SearchPurchase(ctx context.Context, q Query) ([]procurement.PurchaseOrder, int, error) {
	b := &builder{}
	if q.Scope == ScopePendingOnly {
		b.add(`status NOT IN ('RECEIVED','CANCELLED','FAILED')`)
	}
	if q.Status != "" {
		b.add(`status = ?`, q.Status)
	}
	if q.Search != "" {
		b.add(`(po_number ILIKE ? OR EXISTS (SELECT 1 FROM suppliers s
WHERE s.id = purchase_orders.supplier_id AND s.name ILIKE ?))`, "%"+q.Search+"%", "%"+q.Search+"%")
	}
	if q.Category != "" {
		b.add(`EXISTS (SELECT 1 FROM products p
WHERE p.id = purchase_orders.product_id AND p.category = ?)`, q.Category)
	}
	if q.DateField != "" {
		if !q.From.IsZero() {
			b.add(q.DateField+` >= ?`, q.From)
		}
		if !q.To.IsZero() {
			b.add(q.DateField+` <= ?`, q.To)
		}
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders`+b.where(), b.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("orderquery: count purchase orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, po_number, product_id, sku, supplier_id, ordered_qty, received_qty, status,
order_date, expected_arrival, actual_arrival, notes, ordered_by, updated_by, last_updated, version
FROM purchase_orders%s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		b.where(), q.SortBy, q.SortDir, len(b.args)+1, len(b.args)+2)
	args := append(b.args, q.Size, q.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("orderquery: search purchase orders: %w", err)
	}
	defer rows.Close()

	var out []procurement.PurchaseOrder
	for rows.Next() {
		var po procurement.PurchaseOrder
		if err := rows.Scan(&po.ID, &po.PONumber, &po.ProductID, &po.SKU, &po.SupplierID, &po.OrderedQty, &po.ReceivedQty, &po.Status,
			&po.OrderDate, &po.ExpectedArrival, &po.ActualArrival, &po.Notes, &po.OrderedBy, &po.UpdatedBy, &po.LastUpdated, &po.Version); err != nil {
			return nil, 0, err
		}
		out = append(out, po)
	}
	return out, total, rows.Err()
}
