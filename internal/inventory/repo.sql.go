package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/shared"
)

// Repository persists inventory records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `sku, product_id, current_stock, reserved_stock, min_level, status, location, updated_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.SKU, &rec.ProductID, &rec.CurrentStock, &rec.ReservedStock, &rec.MinLevel, &rec.Status, &rec.Location, &rec.UpdatedAt)
	return rec, err
}

// GetBySKU returns one record.
func (r *Repository) GetBySKU(ctx context.Context, sku string) (Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory_records WHERE sku=$1`, sku))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("inventory: sku %s: %w", sku, shared.ErrNotFound)
		}
		return Record{}, fmt.Errorf("inventory: get %s: %w", sku, err)
	}
	return rec, nil
}

// ListLowStock returns non-INVALID records at or below their minimum level.
// sortBy must already be a whitelisted column name.
func (r *Repository) ListLowStock(ctx context.Context, sortBy, direction string) ([]Record, error) {
	query := fmt.Sprintf(`SELECT `+recordColumns+` FROM inventory_records
WHERE status <> 'INVALID' AND current_stock <= min_level ORDER BY %s %s`, sortBy, direction)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("inventory: list low stock: %w", err)
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// InvalidateUnsellable flips records to INVALID when the owning product
// is no longer sellable or planned. Stock counts are kept; the record
// only drops out of low-stock reporting.
func (r *Repository) InvalidateUnsellable(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE inventory_records ir
SET status='INVALID', updated_at=NOW()
FROM products p
WHERE p.id = ir.product_id AND p.status NOT IN ('ACTIVE','PLANNING') AND ir.status <> 'INVALID'`)
	if err != nil {
		return 0, fmt.Errorf("inventory: invalidate unsellable: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetForUpdateTx locks one record inside a workflow transaction. The row
// lock serializes concurrent reservations and shipments against the SKU.
func GetForUpdateTx(ctx context.Context, tx pgx.Tx, sku string) (Record, error) {
	rec, err := scanRecord(tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM inventory_records WHERE sku=$1 FOR UPDATE`, sku))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("inventory: sku %s: %w", sku, shared.ErrNotFound)
		}
		return Record{}, fmt.Errorf("inventory: lock %s: %w", sku, err)
	}
	return rec, nil
}

// EnsureForUpdateTx locks a record, creating an INCOMING row first when the
// SKU has never been stocked.
func EnsureForUpdateTx(ctx context.Context, tx pgx.Tx, sku string, productID int64) (Record, error) {
	_, err := tx.Exec(ctx, `INSERT INTO inventory_records (sku, product_id, current_stock, reserved_stock, min_level, status, location, updated_at)
VALUES ($1, $2, 0, 0, 0, $3, '', NOW()) ON CONFLICT (sku) DO NOTHING`, sku, productID, StatusIncoming)
	if err != nil {
		return Record{}, fmt.Errorf("inventory: ensure %s: %w", sku, err)
	}
	return GetForUpdateTx(ctx, tx, sku)
}

// SaveTx writes back a mutated record inside the same transaction that
// changed the owning order. Never call it outside a workflow transaction.
func SaveTx(ctx context.Context, tx pgx.Tx, rec Record) error {
	tag, err := tx.Exec(ctx, `UPDATE inventory_records
SET current_stock=$2, reserved_stock=$3, min_level=$4, status=$5, location=$6, updated_at=NOW()
WHERE sku=$1`, rec.SKU, rec.CurrentStock, rec.ReservedStock, rec.MinLevel, rec.Status, rec.Location)
	if err != nil {
		return fmt.Errorf("inventory: save %s: %w", rec.SKU, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inventory: sku %s: %w", rec.SKU, shared.ErrNotFound)
	}
	return nil
}
