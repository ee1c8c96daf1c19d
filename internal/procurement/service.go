package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/inventory"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/masterdata/products"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/masterdata/suppliers"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/movements"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	GetToken(ctx context.Context, token string) (ConfirmationToken, error)
	GetPendingTokenForOrder(ctx context.Context, orderID int64) (ConfirmationToken, error)
	ExpireStaleTokens(ctx context.Context, now time.Time) (int64, error)
}

// TxRepository exposes the operations that must share one transaction:
// order writes, the ledger mutation and the movement append commit or roll
// back together.
type TxRepository interface {
	InsertOrder(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertToken(ctx context.Context, token ConfirmationToken) (int64, error)
	// UpdateOrder compares-and-swaps on po.Version and fails with Conflict
	// when a concurrent writer got there first.
	UpdateOrder(ctx context.Context, po PurchaseOrder) error
	ConsumeToken(ctx context.Context, tokenID int64, status TokenStatus, clickedAt time.Time) error
	EnsureInventoryForUpdate(ctx context.Context, sku string, productID int64) (inventory.Record, error)
	SaveInventory(ctx context.Context, rec inventory.Record) error
	InsertMovement(ctx context.Context, m movements.Movement) error
}

// CatalogPort resolves products.
type CatalogPort interface {
	Get(ctx context.Context, id int64) (products.Product, error)
}

// DirectoryPort resolves suppliers.
type DirectoryPort interface {
	Get(ctx context.Context, id int64) (suppliers.Supplier, error)
}

// ConfirmationEmail carries what the mailer needs to reach the supplier.
type ConfirmationEmail struct {
	To       string
	PONumber string
	Token    string
}

// MailerPort enqueues the confirmation email. Fire and forget: a mailer
// failure never fails the order.
type MailerPort interface {
	EnqueueConfirmation(ctx context.Context, email ConfirmationEmail) error
}

// MetricsPort records domain counters.
type MetricsPort interface {
	OrderCreated(orderType string)
	MovementRecorded(direction string)
	ConflictRejected()
}

// Service orchestrates the purchase order workflow.
type Service struct {
	repo      RepositoryPort
	catalog   CatalogPort
	directory DirectoryPort
	mailer    MailerPort
	metrics   MetricsPort
	logger    *slog.Logger
	tokenTTL  time.Duration
}

// NewService constructs the procurement service.
func NewService(repo RepositoryPort, catalog CatalogPort, directory DirectoryPort, mailer MailerPort, metrics MetricsPort, logger *slog.Logger, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 72 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, catalog: catalog, directory: directory, mailer: mailer, metrics: metrics, logger: logger, tokenTTL: tokenTTL}
}

// CreateInput describes the creation payload.
type CreateInput struct {
	ProductID       int64
	SupplierID      int64
	OrderedQty      int
	ExpectedArrival *time.Time
	Notes           string
	Actor           string
}

// Create places a replenishment order and issues its confirmation token.
// Stock is not touched until goods physically arrive.
func (s *Service) Create(ctx context.Context, input CreateInput) (PurchaseOrder, error) {
	if input.OrderedQty < 1 {
		return PurchaseOrder{}, fmt.Errorf("procurement: ordered quantity must be at least 1: %w", shared.ErrValidation)
	}
	product, err := s.catalog.Get(ctx, input.ProductID)
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("procurement: verify product: %w", err)
	}
	if !product.Replenishable() {
		return PurchaseOrder{}, fmt.Errorf("procurement: product %s is %s and cannot be replenished: %w", product.SKU, product.Status, shared.ErrValidation)
	}
	supplier, err := s.directory.Get(ctx, input.SupplierID)
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("procurement: verify supplier: %w", err)
	}

	now := time.Now().UTC()
	po := PurchaseOrder{
		PONumber:        fmt.Sprintf("PO-%d-%s", input.SupplierID, uuid.NewString()),
		ProductID:       product.ID,
		SKU:             product.SKU,
		SupplierID:      supplier.ID,
		OrderedQty:      input.OrderedQty,
		Status:          StatusAwaitingApproval,
		OrderDate:       now,
		ExpectedArrival: input.ExpectedArrival,
		Notes:           input.Notes,
		OrderedBy:       input.Actor,
		UpdatedBy:       input.Actor,
		LastUpdated:     now,
		Version:         1,
	}
	token := ConfirmationToken{
		Token:     uuid.NewString(),
		Status:    TokenPending,
		ExpiresAt: now.Add(s.tokenTTL),
		CreatedAt: now,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertOrder(ctx, po)
		if err != nil {
			return err
		}
		po.ID = id
		token.OrderID = id
		if _, err := tx.InsertToken(ctx, token); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}

	if s.metrics != nil {
		s.metrics.OrderCreated("PURCHASE")
	}
	if s.mailer != nil {
		email := ConfirmationEmail{To: supplier.Email, PONumber: po.PONumber, Token: token.Token}
		if err := s.mailer.EnqueueConfirmation(ctx, email); err != nil {
			s.logger.Warn("enqueue confirmation email", slog.String("po", po.PONumber), slog.Any("error", err))
		}
	}
	return po, nil
}

// Confirm consumes a pending token and moves the order into delivery.
// A second attempt on the same token fails with InvalidToken.
func (s *Service) Confirm(ctx context.Context, tokenValue string, expectedArrival *time.Time) (PurchaseOrder, error) {
	token, po, err := s.usableToken(ctx, tokenValue)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status != StatusAwaitingApproval {
		return PurchaseOrder{}, fmt.Errorf("procurement: order %s is %s, not awaiting approval: %w", po.PONumber, po.Status, shared.ErrValidation)
	}

	now := time.Now().UTC()
	po.Status = StatusDeliveryInProcess
	if expectedArrival != nil {
		po.ExpectedArrival = expectedArrival
	}
	po.UpdatedBy = "supplier-confirmation"

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ConsumeToken(ctx, token.ID, TokenConfirmed, now); err != nil {
			return err
		}
		return tx.UpdateOrder(ctx, po)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return s.repo.GetOrder(ctx, po.ID)
}

// CancelByToken lets the supplier decline via the emailed link.
func (s *Service) CancelByToken(ctx context.Context, tokenValue string) (PurchaseOrder, error) {
	token, po, err := s.usableToken(ctx, tokenValue)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return s.cancel(ctx, po, &token, "supplier-confirmation")
}

// Cancel terminates a non-finalized order on behalf of an operator.
func (s *Service) Cancel(ctx context.Context, orderID int64, actor string) (PurchaseOrder, error) {
	po, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	var token *ConfirmationToken
	if pending, err := s.repo.GetPendingTokenForOrder(ctx, orderID); err == nil {
		token = &pending
	} else if !errors.Is(err, shared.ErrNotFound) {
		return PurchaseOrder{}, err
	}
	return s.cancel(ctx, po, token, actor)
}

// Fail marks a non-finalized order FAILED (supplier default, lost
// shipment). Terminal like Cancel.
func (s *Service) Fail(ctx context.Context, orderID int64, actor string) (PurchaseOrder, error) {
	po, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status.Finalized() {
		return PurchaseOrder{}, fmt.Errorf("procurement: order %s already finalized: %w", po.PONumber, shared.ErrValidation)
	}
	po.Status = StatusFailed
	po.UpdatedBy = actor
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateOrder(ctx, po)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return s.repo.GetOrder(ctx, po.ID)
}

func (s *Service) cancel(ctx context.Context, po PurchaseOrder, token *ConfirmationToken, actor string) (PurchaseOrder, error) {
	if po.Status.Finalized() {
		return PurchaseOrder{}, fmt.Errorf("procurement: order %s already finalized: %w", po.PONumber, shared.ErrValidation)
	}
	now := time.Now().UTC()
	po.Status = StatusCancelled
	po.UpdatedBy = actor
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if token != nil && token.Status == TokenPending {
			if err := tx.ConsumeToken(ctx, token.ID, TokenCancelled, now); err != nil {
				return err
			}
		}
		return tx.UpdateOrder(ctx, po)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return s.repo.GetOrder(ctx, po.ID)
}

// UpdateInput carries the fields an operator may edit on an open order.
type UpdateInput struct {
	OrderID         int64
	ExpectedArrival *time.Time
	Notes           *string
	// Version is the version the caller read; a stale value fails with
	// Conflict instead of overwriting a concurrent edit.
	Version int64
	Actor   string
}

// Update edits notes and the expected arrival of a non-finalized order.
func (s *Service) Update(ctx context.Context, input UpdateInput) (PurchaseOrder, error) {
	po, err := s.repo.GetOrder(ctx, input.OrderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status.Finalized() {
		return PurchaseOrder{}, fmt.Errorf("procurement: order %s already finalized: %w", po.PONumber, shared.ErrValidation)
	}
	if input.Version != 0 && input.Version != po.Version {
		return PurchaseOrder{}, fmt.Errorf("procurement: order %s version %d is stale: %w", po.PONumber, input.Version, shared.ErrConflict)
	}
	if input.ExpectedArrival != nil {
		po.ExpectedArrival = input.ExpectedArrival
	}
	if input.Notes != nil {
		po.Notes = *input.Notes
	}
	po.UpdatedBy = input.Actor
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateOrder(ctx, po)
	})
	if err != nil {
		if errors.Is(err, shared.ErrConflict) && s.metrics != nil {
			s.metrics.ConflictRejected()
		}
		return PurchaseOrder{}, err
	}
	return s.repo.GetOrder(ctx, po.ID)
}

// ReceiveInput describes a goods receipt against an order.
type ReceiveInput struct {
	OrderID       int64
	Qty           int
	ActualArrival time.Time
	Actor         string
}

// ReceiveStock books physically arrived goods: the ledger increment, the
// IN movement and the order update commit atomically. Receipts beyond the
// ordered quantity are clamped. Concurrent receipts on the same order are
// serialized by the order's version; the stale writer gets a Conflict
// instead of double-applying stock.
func (s *Service) ReceiveStock(ctx context.Context, input ReceiveInput) (PurchaseOrder, error) {
	if input.Qty < 1 {
		return PurchaseOrder{}, fmt.Errorf("procurement: received quantity must be at least 1: %w", shared.ErrValidation)
	}
	po, err := s.repo.GetOrder(ctx, input.OrderID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status.Finalized() {
		return PurchaseOrder{}, fmt.Errorf("procurement: order %s already finalized: %w", po.PONumber, shared.ErrValidation)
	}

	newTotal := po.ReceivedQty + input.Qty
	if newTotal > po.OrderedQty {
		newTotal = po.OrderedQty
	}
	delta := newTotal - po.ReceivedQty
	if delta <= 0 {
		return PurchaseOrder{}, fmt.Errorf("procurement: order %s already fully received: %w", po.PONumber, shared.ErrValidation)
	}

	now := time.Now().UTC()
	po.ReceivedQty = newTotal
	if newTotal == po.OrderedQty {
		po.Status = StatusReceived
	} else {
		po.Status = StatusPartiallyReceived
	}
	arrival := input.ActualArrival
	if arrival.IsZero() {
		arrival = now
	}
	po.ActualArrival = &arrival
	po.UpdatedBy = input.Actor

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.EnsureInventoryForUpdate(ctx, po.SKU, po.ProductID)
		if err != nil {
			return err
		}
		if err := rec.Receive(delta); err != nil {
			return err
		}
		if err := tx.SaveInventory(ctx, rec); err != nil {
			return err
		}
		movement := movements.Movement{
			ProductID:     po.ProductID,
			SKU:           po.SKU,
			Quantity:      delta,
			Direction:     movements.DirectionIn,
			ReferenceID:   po.ID,
			ReferenceType: movements.RefPurchaseOrder,
			CreatedBy:     input.Actor,
		}
		if err := tx.InsertMovement(ctx, movement); err != nil {
			return err
		}
		return tx.UpdateOrder(ctx, po)
	})
	if err != nil {
		if errors.Is(err, shared.ErrConflict) && s.metrics != nil {
			s.metrics.ConflictRejected()
		}
		return PurchaseOrder{}, err
	}
	if s.metrics != nil {
		s.metrics.MovementRecorded(string(movements.DirectionIn))
	}
	return s.repo.GetOrder(ctx, po.ID)
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

// ExpireStaleTokens sweeps PENDING tokens past their expiry. Idempotent:
// consumed tokens are never touched and repeated runs are safe.
func (s *Service) ExpireStaleTokens(ctx context.Context) (int64, error) {
	return s.repo.ExpireStaleTokens(ctx, time.Now().UTC())
}

func (s *Service) usableToken(ctx context.Context, tokenValue string) (ConfirmationToken, PurchaseOrder, error) {
	if tokenValue == "" {
		return ConfirmationToken{}, PurchaseOrder{}, fmt.Errorf("procurement: token required: %w", shared.ErrInvalidToken)
	}
	token, err := s.repo.GetToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ConfirmationToken{}, PurchaseOrder{}, fmt.Errorf("procurement: unknown token: %w", shared.ErrInvalidToken)
		}
		return ConfirmationToken{}, PurchaseOrder{}, err
	}
	if !token.Usable(time.Now().UTC()) {
		return ConfirmationToken{}, PurchaseOrder{}, fmt.Errorf("procurement: token is %s: %w", token.Status, shared.ErrInvalidToken)
	}
	po, err := s.repo.GetOrder(ctx, token.OrderID)
	if err != nil {
		return ConfirmationToken{}, PurchaseOrder{}, err
	}
	return token, po, nil
}
