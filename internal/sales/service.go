package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/inventory"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/masterdata/products"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/movements"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (SalesOrder, error)
}

// TxRepository exposes the operations that must share one transaction.
// Reference allocation, order writes, ledger mutations and movement
// appends commit or roll back together.
type TxRepository interface {
	// NextOrderReference allocates the day's next sequential reference.
	// It serializes concurrent creates on the same day prefix so two
	// simultaneous orders never draw the same number.
	NextOrderReference(ctx context.Context, day time.Time) (string, error)
	InsertOrder(ctx context.Context, o SalesOrder) (int64, error)
	InsertItem(ctx context.Context, item OrderItem) (int64, error)
	UpdateItem(ctx context.Context, item OrderItem) error
	DeleteItem(ctx context.Context, orderID, itemID int64) error
	UpdateOrder(ctx context.Context, o SalesOrder) error
	InsertQRCode(ctx context.Context, qr QRCode) (int64, error)
	// GetOrderForUpdate locks the order row so concurrent mutations of
	// the same order run one at a time.
	GetOrderForUpdate(ctx context.Context, id int64) (SalesOrder, error)
	GetInventoryForUpdate(ctx context.Context, sku string) (inventory.Record, error)
	SaveInventory(ctx context.Context, rec inventory.Record) error
	InsertMovement(ctx context.Context, m movements.Movement) error
}

// CatalogPort resolves products.
type CatalogPort interface {
	Get(ctx context.Context, id int64) (products.Product, error)
}

// MetricsPort records domain counters.
type MetricsPort interface {
	OrderCreated(orderType string)
	MovementRecorded(direction string)
}

// Extra attempts when an order create loses a reference race.
const referenceRetries = 2

// Service orchestrates the sales order workflow.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	metrics MetricsPort
	logger  *slog.Logger
}

// NewService constructs the sales service.
func NewService(repo RepositoryPort, catalog CatalogPort, metrics MetricsPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, catalog: catalog, metrics: metrics, logger: logger}
}

// ItemInput is one requested line.
type ItemInput struct {
	ProductID int64
	Quantity  int
}

// CreateInput describes the creation payload.
type CreateInput struct {
	Destination           string
	CustomerName          string
	Items                 []ItemInput
	EstimatedDeliveryDate *time.Time
	Actor                 string
}

// Create places a sales order. Prices are snapshotted at creation; stock
// is not reserved until lines are approved.
func (s *Service) Create(ctx context.Context, input CreateInput) (SalesOrder, error) {
	if input.CustomerName == "" {
		return SalesOrder{}, fmt.Errorf("sales: customer name required: %w", shared.ErrValidation)
	}
	if len(input.Items) == 0 {
		return SalesOrder{}, fmt.Errorf("sales: order needs at least one item: %w", shared.ErrValidation)
	}
	if err := validateItemInputs(input.Items, nil); err != nil {
		return SalesOrder{}, err
	}

	items := make([]OrderItem, 0, len(input.Items))
	for _, in := range input.Items {
		item, err := s.buildItem(ctx, in)
		if err != nil {
			return SalesOrder{}, err
		}
		items = append(items, item)
	}

	now := time.Now().UTC()
	order := SalesOrder{
		Destination:           input.Destination,
		CustomerName:          input.CustomerName,
		Status:                OrderPending,
		EstimatedDeliveryDate: input.EstimatedDeliveryDate,
		CreatedBy:             input.Actor,
		UpdatedBy:             input.Actor,
		CreatedAt:             now,
	}

	create := func(ctx context.Context, tx TxRepository) error {
		ref, err := tx.NextOrderReference(ctx, now)
		if err != nil {
			return err
		}
		order.OrderReference = ref
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		for i := range items {
			items[i].OrderID = id
			itemID, err := tx.InsertItem(ctx, items[i])
			if err != nil {
				return err
			}
			items[i].ID = itemID
		}
		_, err = tx.InsertQRCode(ctx, QRCode{OrderID: id, Payload: uuid.NewString(), CreatedAt: now})
		return err
	}

	// A reference collision means another create committed the same number
	// concurrently; rerun the allocation against the fresh state.
	var err error
	for attempt := 0; attempt <= referenceRetries; attempt++ {
		if err = s.repo.WithTx(ctx, create); err == nil || !errors.Is(err, shared.ErrConflict) {
			break
		}
	}
	if err != nil {
		return SalesOrder{}, err
	}
	order.Items = items
	if s.metrics != nil {
		s.metrics.OrderCreated("SALES")
	}
	return order, nil
}

// UpdateInput carries the header fields an operator may edit.
type UpdateInput struct {
	OrderID               int64
	Destination           *string
	CustomerName          *string
	EstimatedDeliveryDate *time.Time
	Actor                 string
}

// Update edits order header fields while the item set is still open.
func (s *Service) Update(ctx context.Context, input UpdateInput) (SalesOrder, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status.FinalizedForEdit() {
			return editLocked(order)
		}
		if input.Destination != nil {
			order.Destination = *input.Destination
		}
		if input.CustomerName != nil {
			if *input.CustomerName == "" {
				return fmt.Errorf("sales: customer name required: %w", shared.ErrValidation)
			}
			order.CustomerName = *input.CustomerName
		}
		if input.EstimatedDeliveryDate != nil {
			order.EstimatedDeliveryDate = input.EstimatedDeliveryDate
		}
		order.UpdatedBy = input.Actor
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return SalesOrder{}, err
	}
	return s.repo.GetOrder(ctx, input.OrderID)
}

// AddItems appends lines to a non-finalized order. Duplicates are checked
// against the full resulting item set.
func (s *Service) AddItems(ctx context.Context, orderID int64, items []ItemInput, actor string) (SalesOrder, error) {
	if len(items) == 0 {
		return SalesOrder{}, fmt.Errorf("sales: no items to add: %w", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status.FinalizedForEdit() {
			return editLocked(order)
		}
		existing := make(map[int64]struct{}, len(order.Items))
		for _, item := range order.Items {
			existing[item.ProductID] = struct{}{}
		}
		if err := validateItemInputs(items, existing); err != nil {
			return err
		}
		for _, in := range items {
			item, err := s.buildItem(ctx, in)
			if err != nil {
				return err
			}
			item.OrderID = orderID
			if _, err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
			order.Items = append(order.Items, item)
		}
		return s.saveDerivedStatus(ctx, tx, order, actor)
	})
	if err != nil {
		return SalesOrder{}, err
	}
	return s.repo.GetOrder(ctx, orderID)
}

// RemoveItem deletes a line from a non-finalized order, releasing any
// stock the line had reserved.
func (s *Service) RemoveItem(ctx context.Context, orderID, itemID int64, actor string) (SalesOrder, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status.FinalizedForEdit() {
			return editLocked(order)
		}
		item, ok := order.ItemByID(itemID)
		if !ok {
			return fmt.Errorf("sales: item %d on order %s: %w", itemID, order.OrderReference, shared.ErrNotFound)
		}
		if reserved := item.UnshippedApproved(); reserved > 0 {
			if err := s.releaseReserved(ctx, tx, item.SKU, reserved); err != nil {
				return err
			}
		}
		if err := tx.DeleteItem(ctx, orderID, itemID); err != nil {
			return err
		}
		kept := order.Items[:0]
		for _, it := range order.Items {
			if it.ID != itemID {
				kept = append(kept, it)
			}
		}
		order.Items = kept
		return s.saveDerivedStatus(ctx, tx, order, actor)
	})
	if err != nil {
		return SalesOrder{}, err
	}
	return s.repo.GetOrder(ctx, orderID)
}

// ApproveItem sets a line's approved quantity, reserving or releasing
// the delta against the ledger. Re-approving the same quantity is a
// no-op.
func (s *Service) ApproveItem(ctx context.Context, orderID, itemID int64, approvedQty int, actor string) (SalesOrder, error) {
	if approvedQty < 0 {
		return SalesOrder{}, fmt.Errorf("sales: approved quantity must not be negative: %w", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status.FinalizedForEdit() {
			return editLocked(order)
		}
		item, ok := order.ItemByID(itemID)
		if !ok {
			return fmt.Errorf("sales: item %d on order %s: %w", itemID, order.OrderReference, shared.ErrNotFound)
		}
		if approvedQty > item.Quantity {
			return fmt.Errorf("sales: approve %d exceeds requested %d: %w", approvedQty, item.Quantity, shared.ErrValidation)
		}
		delta := approvedQty - item.ApprovedQty
		if delta != 0 {
			rec, err := tx.GetInventoryForUpdate(ctx, item.SKU)
			if err != nil {
				return err
			}
			if delta > 0 {
				if err := rec.Reserve(delta); err != nil {
					return err
				}
			} else {
				rec.Release(-delta)
			}
			if err := tx.SaveInventory(ctx, rec); err != nil {
				return err
			}
		}
		item.ApprovedQty = approvedQty
		item.Status = ItemStatusFor(item.Quantity, approvedQty)
		if err := tx.UpdateItem(ctx, *item); err != nil {
			return err
		}
		return s.saveDerivedStatus(ctx, tx, order, actor)
	})
	if err != nil {
		return SalesOrder{}, err
	}
	return s.repo.GetOrder(ctx, orderID)
}

// Ship books the physical outbound for every approved, unshipped line:
// ledger decrement plus one OUT movement per line, all in one
// transaction. The order moves into delivery.
func (s *Service) Ship(ctx context.Context, orderID int64, actor string) (SalesOrder, error) {
	var shipped int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case OrderApproved, OrderPartiallyApproved:
		default:
			return fmt.Errorf("sales: order %s is %s, nothing to ship: %w", order.OrderReference, order.Status, shared.ErrValidation)
		}
		for i := range order.Items {
			item := &order.Items[i]
			qty := item.UnshippedApproved()
			if qty == 0 {
				continue
			}
			rec, err := tx.GetInventoryForUpdate(ctx, item.SKU)
			if err != nil {
				return err
			}
			if err := rec.Ship(qty); err != nil {
				return err
			}
			if err := tx.SaveInventory(ctx, rec); err != nil {
				return err
			}
			movement := movements.Movement{
				ProductID:     item.ProductID,
				SKU:           item.SKU,
				Quantity:      qty,
				Direction:     movements.DirectionOut,
				ReferenceID:   order.ID,
				ReferenceType: movements.RefSalesOrder,
				CreatedBy:     actor,
			}
			if err := tx.InsertMovement(ctx, movement); err != nil {
				return err
			}
			item.ShippedQty = item.ApprovedQty
			if err := tx.UpdateItem(ctx, *item); err != nil {
				return err
			}
			shipped++
		}
		if shipped == 0 {
			return fmt.Errorf("sales: order %s has no approved quantities: %w", order.OrderReference, shared.ErrValidation)
		}
		order.Status = OrderDeliveryInProcess
		order.UpdatedBy = actor
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return SalesOrder{}, err
	}
	if s.metrics != nil {
		for i := 0; i < shipped; i++ {
			s.metrics.MovementRecorded(string(movements.DirectionOut))
		}
	}
	return s.repo.GetOrder(ctx, orderID)
}

// MarkDelivered records arrival at the destination.
func (s *Service) MarkDelivered(ctx context.Context, orderID int64, actor string) (SalesOrder, error) {
	return s.transition(ctx, orderID, actor, OrderDeliveryInProcess, OrderDelivered, true)
}

// Complete closes out a delivered order.
func (s *Service) Complete(ctx context.Context, orderID int64, actor string) (SalesOrder, error) {
	return s.transition(ctx, orderID, actor, OrderDelivered, OrderCompleted, false)
}

// Cancel terminates the order and releases every reservation still held
// by unshipped approved lines. Approved orders stay cancellable;
// delivered ones do not.
func (s *Service) Cancel(ctx context.Context, orderID int64, actor string) (SalesOrder, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.Cancellable() {
			return fmt.Errorf("sales: order %s is %s and cannot be cancelled: %w", order.OrderReference, order.Status, shared.ErrValidation)
		}
		for i := range order.Items {
			item := &order.Items[i]
			if reserved := item.UnshippedApproved(); reserved > 0 {
				if err := s.releaseReserved(ctx, tx, item.SKU, reserved); err != nil {
					return err
				}
			}
			item.Status = ItemCancelled
			if err := tx.UpdateItem(ctx, *item); err != nil {
				return err
			}
		}
		order.Status = OrderCancelled
		order.UpdatedBy = actor
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return SalesOrder{}, err
	}
	return s.repo.GetOrder(ctx, orderID)
}

// Get returns one order with its items.
func (s *Service) Get(ctx context.Context, id int64) (SalesOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

func (s *Service) transition(ctx context.Context, orderID int64, actor string, from, to OrderStatus, setDeliveryDate bool) (SalesOrder, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != from {
			return fmt.Errorf("sales: order %s is %s, expected %s: %w", order.OrderReference, order.Status, from, shared.ErrValidation)
		}
		order.Status = to
		order.UpdatedBy = actor
		if setDeliveryDate {
			now := time.Now().UTC()
			order.DeliveryDate = &now
		}
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return SalesOrder{}, err
	}
	return s.repo.GetOrder(ctx, orderID)
}

func (s *Service) buildItem(ctx context.Context, in ItemInput) (OrderItem, error) {
	product, err := s.catalog.Get(ctx, in.ProductID)
	if err != nil {
		return OrderItem{}, fmt.Errorf("sales: verify product %d: %w", in.ProductID, err)
	}
	if !product.Sellable() {
		return OrderItem{}, fmt.Errorf("sales: product %s is %s and cannot be sold: %w", product.SKU, product.Status, shared.ErrValidation)
	}
	return OrderItem{
		ProductID: product.ID,
		SKU:       product.SKU,
		Quantity:  in.Quantity,
		UnitPrice: product.Price,
		Status:    ItemPending,
	}, nil
}

func (s *Service) saveDerivedStatus(ctx context.Context, tx TxRepository, order SalesOrder, actor string) error {
	order.Status = DeriveApprovalStatus(order.Items)
	order.UpdatedBy = actor
	return tx.UpdateOrder(ctx, order)
}

func (s *Service) releaseReserved(ctx context.Context, tx TxRepository, sku string, qty int) error {
	rec, err := tx.GetInventoryForUpdate(ctx, sku)
	if err != nil {
		return err
	}
	rec.Release(qty)
	return tx.SaveInventory(ctx, rec)
}

func validateItemInputs(items []ItemInput, existing map[int64]struct{}) error {
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return fmt.Errorf("sales: quantity for product %d must be positive: %w", item.ProductID, shared.ErrValidation)
		}
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("sales: duplicate product %d in request: %w", item.ProductID, shared.ErrValidation)
		}
		if _, dup := existing[item.ProductID]; dup {
			return fmt.Errorf("sales: product %d already on the order: %w", item.ProductID, shared.ErrValidation)
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}

func editLocked(order SalesOrder) error {
	return fmt.Errorf("sales: order %s is %s and locked for item edits: %w", order.OrderReference, order.Status, shared.ErrValidation)
}
