package movements

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the movement trail. There is deliberately no update or
// delete path here.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertTx appends one movement inside the transaction that mutated the
// ledger. Every physical stock change must pair with exactly one call.
func InsertTx(ctx context.Context, tx pgx.Tx, m Movement) error {
	if m.Quantity <= 0 {
		return fmt.Errorf("movements: quantity must be positive, got %d", m.Quantity)
	}
	_, err := tx.Exec(ctx, `INSERT INTO stock_movements (product_id, sku, quantity, direction, reference_id, reference_type, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`, m.ProductID, m.SKU, m.Quantity, m.Direction, m.ReferenceID, m.ReferenceType, m.CreatedBy)
	if err != nil {
		return fmt.Errorf("movements: insert: %w", err)
	}
	return nil
}

// ListFilter narrows the movement listing.
type ListFilter struct {
	SKU           string
	Direction     Direction
	ReferenceType ReferenceType
	ReferenceID   int64
	From          time.Time
	To            time.Time
	Limit         int
}

// List returns movements newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Movement, error) {
	query := `SELECT id, product_id, sku, quantity, direction, reference_id, reference_type, created_by, created_at
FROM stock_movements WHERE 1=1`
	args := []any{}
	idx := 0

	add := func(clause string, value any) {
		idx++
		query += fmt.Sprintf(" AND %s$%d", clause, idx)
		args = append(args, value)
	}

	if filter.SKU != "" {
		add("sku=", filter.SKU)
	}
	if filter.Direction != "" {
		add("direction=", filter.Direction)
	}
	if filter.ReferenceType != "" {
		add("reference_type=", filter.ReferenceType)
	}
	if filter.ReferenceID != 0 {
		add("reference_id=", filter.ReferenceID)
	}
	if !filter.From.IsZero() {
		add("created_at >= ", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= ", filter.To)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	idx++
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("movements: list: %w", err)
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.SKU, &m.Quantity, &m.Direction, &m.ReferenceID, &m.ReferenceType, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
