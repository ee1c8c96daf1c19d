package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/inventory"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/movements"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/platform/db"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/shared"
)

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside one ReadCommitted transaction. Reference
// allocation waits on the day-prefix advisory lock and must then see rows
// the previous lock holder committed; a snapshot fixed before the lock
// wait would hand out an already-used sequence number. Order and ledger
// reads take explicit row locks, so nothing here needs snapshot isolation.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxIsolation(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const orderColumns = `id, order_reference, destination, customer_name, status,
estimated_delivery_date, delivery_date, created_by, updated_by, created_at, updated_at`

const itemColumns = `id, order_id, product_id, sku, quantity, approved_qty, shipped_qty, unit_price, status`

func scanOrder(row pgx.Row) (SalesOrder, error) {
	var o SalesOrder
	err := row.Scan(&o.ID, &o.OrderReference, &o.Destination, &o.CustomerName, &o.Status,
		&o.EstimatedDeliveryDate, &o.DeliveryDate, &o.CreatedBy, &o.UpdatedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// GetOrder returns one order with its items, newest lines last.
func (r *Repository) GetOrder(ctx context.Context, id int64) (SalesOrder, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM sales_orders WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SalesOrder{}, fmt.Errorf("sales: order %d: %w", id, shared.ErrNotFound)
		}
		return SalesOrder{}, fmt.Errorf("sales: get order %d: %w", id, err)
	}
	order.Items, err = loadItems(ctx, r.pool, id)
	if err != nil {
		return SalesOrder{}, err
	}
	return order, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, orderID int64) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `SELECT `+itemColumns+` FROM sales_order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("sales: load items for order %d: %w", orderID, err)
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.SKU, &item.Quantity,
			&item.ApprovedQty, &item.ShippedQty, &item.UnitPrice, &item.Status); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

// NextOrderReference serializes same-day creates with a transaction-scoped
// advisory lock on the day prefix, then computes last+1 from the highest
// existing reference. The lock is released at commit, which is also when
// the new order row becomes visible.
func (t *txRepository) NextOrderReference(ctx context.Context, day time.Time) (string, error) {
	prefix := "SO-" + day.UTC().Format("2006-01-02")
	if _, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, prefix); err != nil {
		return "", fmt.Errorf("sales: lock reference prefix %s: %w", prefix, err)
	}
	var last int
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(MAX(split_part(order_reference, '-', 5)::int), 0)
FROM sales_orders WHERE order_reference LIKE $1 || '-%'`, prefix).Scan(&last)
	if err != nil {
		return "", fmt.Errorf("sales: read last reference for %s: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%03d", prefix, last+1), nil
}

func (t *txRepository) InsertOrder(ctx context.Context, o SalesOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO sales_orders
(order_reference, destination, customer_name, status, estimated_delivery_date, delivery_date, created_by, updated_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW()) RETURNING id`,
		o.OrderReference, o.Destination, o.CustomerName, o.Status, o.EstimatedDeliveryDate, o.DeliveryDate,
		o.CreatedBy, o.UpdatedBy, o.CreatedAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("sales: reference %s taken: %w", o.OrderReference, shared.ErrConflict)
		}
		return 0, fmt.Errorf("sales: insert order %s: %w", o.OrderReference, err)
	}
	return id, nil
}

func (t *txRepository) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO sales_order_items
(order_id, product_id, sku, quantity, approved_qty, shipped_qty, unit_price, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		item.OrderID, item.ProductID, item.SKU, item.Quantity, item.ApprovedQty, item.ShippedQty, item.UnitPrice, item.Status).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sales: insert item: %w", err)
	}
	return id, nil
}

func (t *txRepository) UpdateItem(ctx context.Context, item OrderItem) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sales_order_items
SET approved_qty=$3, shipped_qty=$4, status=$5 WHERE id=$1 AND order_id=$2`,
		item.ID, item.OrderID, item.ApprovedQty, item.ShippedQty, item.Status)
	if err != nil {
		return fmt.Errorf("sales: update item %d: %w", item.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sales: item %d: %w", item.ID, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepository) DeleteItem(ctx context.Context, orderID, itemID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM sales_order_items WHERE id=$1 AND order_id=$2`, itemID, orderID)
	if err != nil {
		return fmt.Errorf("sales: delete item %d: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sales: item %d: %w", itemID, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepository) UpdateOrder(ctx context.Context, o SalesOrder) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sales_orders
SET status=$2, destination=$3, customer_name=$4, estimated_delivery_date=$5, delivery_date=$6, updated_by=$7, updated_at=NOW()
WHERE id=$1`, o.ID, o.Status, o.Destination, o.CustomerName, o.EstimatedDeliveryDate, o.DeliveryDate, o.UpdatedBy)
	if err != nil {
		return fmt.Errorf("sales: update order %d: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sales: order %d: %w", o.ID, shared.ErrNotFound)
	}
	return nil
}

func (t *txRepository) InsertQRCode(ctx context.Context, qr QRCode) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO sales_order_qr_codes (order_id, payload, created_at)
VALUES ($1,$2,$3) RETURNING id`, qr.OrderID, qr.Payload, qr.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("sales: insert qr code: %w", err)
	}
	return id, nil
}

func (t *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (SalesOrder, error) {
	order, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM sales_orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SalesOrder{}, fmt.Errorf("sales: order %d: %w", id, shared.ErrNotFound)
		}
		return SalesOrder{}, fmt.Errorf("sales: lock order %d: %w", id, err)
	}
	order.Items, err = loadItems(ctx, t.tx, id)
	if err != nil {
		return SalesOrder{}, err
	}
	return order, nil
}

func (t *txRepository) GetInventoryForUpdate(ctx context.Context, sku string) (inventory.Record, error) {
	return inventory.GetForUpdateTx(ctx, t.tx, sku)
}

func (t *txRepository) SaveInventory(ctx context.Context, rec inventory.Record) error {
	return inventory.SaveTx(ctx, t.tx, rec)
}

func (t *txRepository) InsertMovement(ctx context.Context, m movements.Movement) error {
	return movements.InsertTx(ctx, t.tx, m)
}
