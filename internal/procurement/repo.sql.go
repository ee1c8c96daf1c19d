package procurement

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

// WithTx runs fn inside one RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const orderColumns = `id, po_number, product_id, sku, supplier_id, ordered_qty, received_qty, status,
order_date, expected_arrival, actual_arrival, notes, ordered_by, updated_by, last_updated, version`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.PONumber, &po.ProductID, &po.SKU, &po.SupplierID, &po.OrderedQty, &po.ReceivedQty, &po.Status,
		&po.OrderDate, &po.ExpectedArrival, &po.ActualArrival, &po.Notes, &po.OrderedBy, &po.UpdatedBy, &po.LastUpdated, &po.Version)
	return po, err
}

// GetOrder returns one purchase order.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, fmt.Errorf("procurement: order %d: %w", id, shared.ErrNotFound)
		}
		return PurchaseOrder{}, fmt.Errorf("procurement: get order %d: %w", id, err)
	}
	return po, nil
}

const tokenColumns = `id, token, order_id, status, expires_at, clicked_at, created_at`

func scanToken(row pgx.Row) (ConfirmationToken, error) {
	var t ConfirmationToken
	err := row.Scan(&t.ID, &t.Token, &t.OrderID, &t.Status, &t.ExpiresAt, &t.ClickedAt, &t.CreatedAt)
	return t, err
}

// GetToken looks up a token by its value.
func (r *Repository) GetToken(ctx context.Context, token string) (ConfirmationToken, error) {
	t, err := scanToken(r.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM confirmation_tokens WHERE token=$1`, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConfirmationToken{}, fmt.Errorf("procurement: token: %w", shared.ErrNotFound)
		}
		return ConfirmationToken{}, fmt.Errorf("procurement: get token: %w", err)
	}
	return t, nil
}

// GetPendingTokenForOrder returns the order's PENDING token, if any.
func (r *Repository) GetPendingTokenForOrder(ctx context.Context, orderID int64) (ConfirmationToken, error) {
	t, err := scanToken(r.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM confirmation_tokens
WHERE order_id=$1 AND status=$2 ORDER BY created_at DESC LIMIT 1`, orderID, TokenPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ConfirmationToken{}, fmt.Errorf("procurement: pending token for order %d: %w", orderID, shared.ErrNotFound)
		}
		return ConfirmationToken{}, fmt.Errorf("procurement: pending token for order %d: %w", orderID, err)
	}
	return t, nil
}

// ExpireStaleTokens flips PENDING tokens past their expiry to EXPIRED.
func (r *Repository) ExpireStaleTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE confirmation_tokens SET status=$1
WHERE status=$2 AND expires_at < $3`, TokenExpired, TokenPending, now)
	if err != nil {
		return 0, fmt.Errorf("procurement: expire tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) InsertOrder(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders
(po_number, product_id, sku, supplier_id, ordered_qty, received_qty, status, order_date, expected_arrival, notes, ordered_by, updated_by, last_updated, version)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),$13)
RETURNING id`, po.PONumber, po.ProductID, po.SKU, po.SupplierID, po.OrderedQty, po.ReceivedQty, po.Status, po.OrderDate,
		po.ExpectedArrival, po.Notes, po.OrderedBy, po.UpdatedBy, po.Version).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("procurement: po number %s taken: %w", po.PONumber, shared.ErrConflict)
		}
		return 0, fmt.Errorf("procurement: insert order: %w", err)
	}
	return id, nil
}

func (t *txRepository) InsertToken(ctx context.Context, token ConfirmationToken) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO confirmation_tokens (token, order_id, status, expires_at, created_at)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, token.Token, token.OrderID, token.Status, token.ExpiresAt, token.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("procurement: insert token: %w", err)
	}
	return id, nil
}

// UpdateOrder writes every mutable column and bumps the version. The WHERE
// clause carries the version the caller read; zero rows means a concurrent
// writer won.
func (t *txRepository) UpdateOrder(ctx context.Context, po PurchaseOrder) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders
SET received_qty=$3, status=$4, expected_arrival=$5, actual_arrival=$6, notes=$7, updated_by=$8, last_updated=NOW(), version=version+1
WHERE id=$1 AND version=$2`,
		po.ID, po.Version, po.ReceivedQty, po.Status, po.ExpectedArrival, po.ActualArrival, po.Notes, po.UpdatedBy)
	if err != nil {
		return fmt.Errorf("procurement: update order %d: %w", po.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("procurement: order %d version %d is stale: %w", po.ID, po.Version, shared.ErrConflict)
	}
	return nil
}

func (t *txRepository) ConsumeToken(ctx context.Context, tokenID int64, status TokenStatus, clickedAt time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE confirmation_tokens SET status=$2, clicked_at=$3
WHERE id=$1 AND status=$4`, tokenID, status, clickedAt, TokenPending)
	if err != nil {
		return fmt.Errorf("procurement: consume token %d: %w", tokenID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("procurement: token %d no longer pending: %w", tokenID, shared.ErrInvalidToken)
	}
	return nil
}

func (t *txRepository) EnsureInventoryForUpdate(ctx context.Context, sku string, productID int64) (inventory.Record, error) {
	return inventory.EnsureForUpdateTx(ctx, t.tx, sku, productID)
}

func (t *txRepository) SaveInventory(ctx context.Context, rec inventory.Record) error {
	return inventory.SaveTx(ctx, t.tx, rec)
}

func (t *txRepository) InsertMovement(ctx context.Context, m movements.Movement) error {
	return movements.InsertTx(ctx, t.tx, m)
}
