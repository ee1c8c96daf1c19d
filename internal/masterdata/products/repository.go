package products

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/shared"
)

// Repository resolves catalog entries. The workflows only need Get; List
// backs the read-only catalog endpoint.
type Repository interface {
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, category, search string, limit, offset int) ([]Product, int, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, sku, name, category, price, status, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Price, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("products: id %d: %w", id, shared.ErrNotFound)
		}
		return Product{}, fmt.Errorf("products: get %d: %w", id, err)
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, category, search string, limit, offset int) ([]Product, int, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []any{}
	idx := 0

	if category != "" {
		idx++
		clause := ` AND category = $` + strconv.Itoa(idx)
		query += clause
		countQuery += clause
		args = append(args, category)
	}
	if search != "" {
		idx++
		clause := ` AND (name ILIKE $` + strconv.Itoa(idx) + ` OR sku ILIKE $` + strconv.Itoa(idx) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("products: count: %w", err)
	}

	if limit <= 0 {
		limit = 20
	}
	query += fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, idx+1, idx+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("products: list: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Price, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}
