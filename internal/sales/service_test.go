package sales

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/inventory"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/masterdata/products"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/movements"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	orders    map[int64]SalesOrder
	items     map[int64]OrderItem
	qrCodes   map[int64]QRCode
	records   map[string]inventory.Record
	movements []movements.Movement
	seqByDay  map[string]int
	nextID    int64

	// One-shot failure for the next order insert, standing in for the
	// unique index rejecting a reference another transaction committed.
	insertOrderErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders:   map[int64]SalesOrder{},
		items:    map[int64]OrderItem{},
		qrCodes:  map[int64]QRCode{},
		records:  map[string]inventory.Record{},
		seqByDay: map[string]int{},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// The mutex stands in for the row and advisory locks: one mutating
	// transaction at a time.
	m.mu.Lock()
	defer m.mu.Unlock()
	before := m.snapshot()
	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		m.restore(before)
		return err
	}
	return nil
}

func (m *memoryRepo) snapshot() *memoryRepo {
	cp := newMemoryRepo()
	cp.nextID = m.nextID
	for k, v := range m.orders {
		cp.orders[k] = v
	}
	for k, v := range m.items {
		cp.items[k] = v
	}
	for k, v := range m.qrCodes {
		cp.qrCodes[k] = v
	}
	for k, v := range m.records {
		cp.records[k] = v
	}
	for k, v := range m.seqByDay {
		cp.seqByDay[k] = v
	}
	cp.movements = append(cp.movements, m.movements...)
	return cp
}

func (m *memoryRepo) restore(from *memoryRepo) {
	m.orders = from.orders
	m.items = from.items
	m.qrCodes = from.qrCodes
	m.records = from.records
	m.seqByDay = from.seqByDay
	m.movements = from.movements
	m.nextID = from.nextID
}

func (m *memoryRepo) GetOrder(_ context.Context, id int64) (SalesOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadOrder(id)
}

func (m *memoryRepo) loadOrder(id int64) (SalesOrder, error) {
	order, ok := m.orders[id]
	if !ok {
		return SalesOrder{}, shared.ErrNotFound
	}
	order.Items = nil
	for itemID := int64(1); itemID <= m.nextID; itemID++ {
		if item, ok := m.items[itemID]; ok && item.OrderID == id {
			order.Items = append(order.Items, item)
		}
	}
	return order, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) NextOrderReference(_ context.Context, day time.Time) (string, error) {
	prefix := "SO-" + day.UTC().Format("2006-01-02")
	t.repo.seqByDay[prefix]++
	return fmt.Sprintf("%s-%03d", prefix, t.repo.seqByDay[prefix]), nil
}

func (t *memoryTx) InsertOrder(_ context.Context, o SalesOrder) (int64, error) {
	if err := t.repo.insertOrderErr; err != nil {
		t.repo.insertOrderErr = nil
		return 0, err
	}
	t.repo.nextID++
	o.ID = t.repo.nextID
	o.Items = nil
	t.repo.orders[o.ID] = o
	return o.ID, nil
}

func (t *memoryTx) InsertItem(_ context.Context, item OrderItem) (int64, error) {
	t.repo.nextID++
	item.ID = t.repo.nextID
	t.repo.items[item.ID] = item
	return item.ID, nil
}

func (t *memoryTx) UpdateItem(_ context.Context, item OrderItem) error {
	if _, ok := t.repo.items[item.ID]; !ok {
		return shared.ErrNotFound
	}
	t.repo.items[item.ID] = item
	return nil
}

func (t *memoryTx) DeleteItem(_ context.Context, orderID, itemID int64) error {
	item, ok := t.repo.items[itemID]
	if !ok || item.OrderID != orderID {
		return shared.ErrNotFound
	}
	delete(t.repo.items, itemID)
	return nil
}

func (t *memoryTx) UpdateOrder(_ context.Context, o SalesOrder) error {
	stored, ok := t.repo.orders[o.ID]
	if !ok {
		return shared.ErrNotFound
	}
	stored.Status = o.Status
	stored.Destination = o.Destination
	stored.CustomerName = o.CustomerName
	stored.EstimatedDeliveryDate = o.EstimatedDeliveryDate
	stored.DeliveryDate = o.DeliveryDate
	stored.UpdatedBy = o.UpdatedBy
	stored.UpdatedAt = time.Now()
	t.repo.orders[o.ID] = stored
	return nil
}

func (t *memoryTx) InsertQRCode(_ context.Context, qr QRCode) (int64, error) {
	t.repo.nextID++
	qr.ID = t.repo.nextID
	t.repo.qrCodes[qr.ID] = qr
	return qr.ID, nil
}

func (t *memoryTx) GetOrderForUpdate(_ context.Context, id int64) (SalesOrder, error) {
	return t.repo.loadOrder(id)
}

func (t *memoryTx) GetInventoryForUpdate(_ context.Context, sku string) (inventory.Record, error) {
	rec, ok := t.repo.records[sku]
	if !ok {
		return inventory.Record{}, shared.ErrNotFound
	}
	return rec, nil
}

func (t *memoryTx) SaveInventory(_ context.Context, rec inventory.Record) error {
	t.repo.records[rec.SKU] = rec
	return nil
}

func (t *memoryTx) InsertMovement(_ context.Context, m movements.Movement) error {
	t.repo.movements = append(t.repo.movements, m)
	return nil
}

type stubCatalog struct {
	byID map[int64]products.Product
}

func (s stubCatalog) Get(_ context.Context, id int64) (products.Product, error) {
	p, ok := s.byID[id]
	if !ok {
		return products.Product{}, shared.ErrNotFound
	}
	return p, nil
}

func newTestService(repo *memoryRepo) *Service {
	catalog := stubCatalog{byID: map[int64]products.Product{
		1: {ID: 1, SKU: "SKU-1", Name: "Widget", Price: 9.50, Status: products.StatusActive},
		2: {ID: 2, SKU: "SKU-2", Name: "Gadget", Price: 24.00, Status: products.StatusActive},
		3: {ID: 3, SKU: "SKU-3", Name: "Relic", Price: 5.00, Status: products.StatusArchived},
	}}
	repo.records["SKU-1"] = inventory.Record{SKU: "SKU-1", ProductID: 1, CurrentStock: 50, MinLevel: 5, Status: inventory.StatusInStock}
	repo.records["SKU-2"] = inventory.Record{SKU: "SKU-2", ProductID: 2, CurrentStock: 10, MinLevel: 2, Status: inventory.StatusInStock}
	return NewService(repo, catalog, nil, nil)
}

func createTwoLineOrder(t *testing.T, svc *Service) SalesOrder {
	t.Helper()
	order, err := svc.Create(context.Background(), CreateInput{
		CustomerName: "Nordic Retail",
		Destination:  "Oslo",
		Items:        []ItemInput{{ProductID: 1, Quantity: 10}, {ProductID: 2, Quantity: 4}},
		Actor:        "clerk",
	})
	require.NoError(t, err)
	return order
}

func TestServiceCreate(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	order := createTwoLineOrder(t, svc)

	prefix := "SO-" + time.Now().UTC().Format("2006-01-02") + "-"
	require.Equal(t, prefix+"001", order.OrderReference)
	require.Equal(t, OrderPending, order.Status)
	require.Len(t, order.Items, 2)
	require.Equal(t, 9.50, order.Items[0].UnitPrice)
	require.Equal(t, ItemPending, order.Items[0].Status)

	// No reservations at creation.
	require.Zero(t, repo.records["SKU-1"].ReservedStock)
	require.Len(t, repo.qrCodes, 1)
	for _, qr := range repo.qrCodes {
		_, err := uuid.Parse(qr.Payload)
		require.NoError(t, err, "qr payload is a uuid")
	}
}

func TestServiceCreateRetriesAfterReferenceCollision(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	repo.insertOrderErr = fmt.Errorf("sales: reference taken: %w", shared.ErrConflict)

	order := createTwoLineOrder(t, svc)

	// The losing attempt rolled back; the rerun reallocated the number.
	prefix := "SO-" + time.Now().UTC().Format("2006-01-02") + "-"
	require.Equal(t, prefix+"001", order.OrderReference)
	require.Len(t, repo.orders, 1)
	require.Len(t, repo.qrCodes, 1)
}

func TestServiceCreateValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{CustomerName: "X", Items: []ItemInput{{ProductID: 1, Quantity: 2}, {ProductID: 1, Quantity: 3}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{CustomerName: "X", Items: []ItemInput{{ProductID: 1, Quantity: 0}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{CustomerName: "X", Items: []ItemInput{{ProductID: 3, Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{CustomerName: "X", Items: nil})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestServiceUpdateHeaderFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	order := createTwoLineOrder(t, svc)
	ctx := context.Background()

	dest := "Dock 7, Tallinn"
	name := "Baltic Retail"
	eta := time.Now().UTC().Add(96 * time.Hour)
	updated, err := svc.Update(ctx, UpdateInput{
		OrderID:               order.ID,
		Destination:           &dest,
		CustomerName:          &name,
		EstimatedDeliveryDate: &eta,
		Actor:                 "clerk",
	})
	require.NoError(t, err)
	require.Equal(t, dest, updated.Destination)
	require.Equal(t, name, updated.CustomerName)
	require.NotNil(t, updated.EstimatedDeliveryDate)
	require.Equal(t, "clerk", updated.UpdatedBy)

	empty := ""
	_, err = svc.Update(ctx, UpdateInput{OrderID: order.ID, CustomerName: &empty, Actor: "clerk"})
	require.ErrorIs(t, err, shared.ErrValidation)

	// Header edits close once the order leaves the approval phase.
	for _, item := range updated.Items {
		_, err = svc.ApproveItem(ctx, order.ID, item.ID, item.Quantity, "manager")
		require.NoError(t, err)
	}
	_, err = svc.Update(ctx, UpdateInput{OrderID: order.ID, Destination: &dest, Actor: "clerk"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestServiceConcurrentCreatesGetDistinctReferences(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	const n = 25
	refs := make(chan string, n)
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := svc.Create(context.Background(), CreateInput{
				CustomerName: "Concurrent",
				Items:        []ItemInput{{ProductID: 1, Quantity: 1}},
				Actor:        "clerk",
			})
			if err != nil {
				errs <- err
				return
			}
			refs <- order.OrderReference
		}()
	}
	wg.Wait()
	close(refs)
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for ref := range refs {
		require.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
	require.Len(t, seen, n)
}

func TestServiceApproveItemDerivesStatus(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	order := createTwoLineOrder(t, svc)
	ctx := context.Background()

	partial, err := svc.ApproveItem(ctx, order.ID, order.Items[0].ID, 10, "manager")
	require.NoError(t, err)
	require.Equal(t, OrderPartiallyApproved, partial.Status)
	require.Equal(t, 10, repo.records["SKU-1"].ReservedStock)

	full, err := svc.ApproveItem(ctx, order.ID, order.Items[1].ID, 4, "manager")
	require.NoError(t, err)
	require.Equal(t, OrderApproved, full.Status)
	require.Equal(t, 4, repo.records["SKU-2"].ReservedStock)
}

func TestServiceApproveItemReservesOnlyTheDelta(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	order := createTwoLineOrder(t, svc)
	ctx := context.Background()
	itemID := order.Items[0].ID

	_, err := svc.ApproveItem(ctx, order.ID, itemID, 6, "manager")
	require.NoError(t, err)
	require.Equal(t, 6, repo.records["SKU-1"].ReservedStock)

	// Same quantity again: no-op.
	_, err = svc.ApproveItem(ctx, order.ID, itemID, 6, "manager")
	require.NoError(t, err)
	require.Equal(t, 6, repo.records["SKU-1"].ReservedStock)

	// Lowering releases the difference.
	updated, err := svc.ApproveItem(ctx, order.ID, itemID, 2, "manager")
	require.NoError(t, err)
	require.Equal(t, 2, repo.records["SKU-1"].ReservedStock)
	require.Equal(t, ItemPartiallyApproved, updated.Items[0].Status)
}

func TestServiceApproveItemInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateInput{
		CustomerName: "Big Buyer",
		Items:        []ItemInput{{ProductID: 2, Quantity: 99}},
		Actor:        "clerk",
	})
	require.NoError(t, err)

	_, err = svc.ApproveItem(ctx, order.ID, order.Items[0].ID, 99, "manager")
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Zero(t, repo.records["SKU-2"].ReservedStock)
}

func TestServiceEditLockedAfterApproval(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	order := createTwoLineOrder(t, svc)
	ctx := context.Background()

	_, err := svc.ApproveItem(ctx, order.ID, order.Items[0].ID, 10, "manager")
	require.NoError(t, err)
	_, err = svc.ApproveItem(ctx, order.ID, order.Items[1].ID, 4, "manager")
	require.NoError(t, err)

	_, err = svc.AddItems(ctx, order.ID, []ItemInput{{ProductID: 2, Quantity: 1}}, "clerk")
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.RemoveItem(ctx, order.ID, order.Items[0].ID, "clerk")
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.ApproveItem(ctx, order.ID, order.Items[0].ID, 5, "manager")
	require.ErrorIs(t, err, shared.ErrValidation)

	// Approved orders stay cancellable.
	cancelled, err := svc.Cancel(ctx, order.ID, "manager")
	require.NoError(t, err)
	require.Equal(t, OrderCancelled, cancelled.Status)
	require.Zero(t, repo.records["SKU-1"].ReservedStock)
	require.Zero(t, repo.records["SKU-2"].ReservedStock)
}

func TestServiceAddAndRemoveItems(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateInput{
		CustomerName: "Nordic Retail",
		Items:        []ItemInput{{ProductID: 1, Quantity: 3}},
		Actor:        "clerk",
	})
	require.NoError(t, err)

	_, err = svc.AddItems(ctx, order.ID, []ItemInput{{ProductID: 1, Quantity: 2}}, "clerk")
	require.ErrorIs(t, err, shared.ErrValidation, "duplicate against existing items")

	grown, err := svc.AddItems(ctx, order.ID, []ItemInput{{ProductID: 2, Quantity: 2}}, "clerk")
	require.NoError(t, err)
	require.Len(t, grown.Items, 2)

	// Approve the new line, then remove it: the reservation is released.
	_, err = svc.ApproveItem(ctx, order.ID, grown.Items[1].ID, 2, "manager")
	require.NoError(t, err)
	require.Equal(t, 2, repo.records["SKU-2"].ReservedStock)

	shrunk, err := svc.RemoveItem(ctx, order.ID, grown.Items[1].ID, "clerk")
	require.NoError(t, err)
	require.Len(t, shrunk.Items, 1)
	require.Zero(t, repo.records["SKU-2"].ReservedStock)
	require.Equal(t, OrderPending, shrunk.Status)
}

func TestServiceShipDeliverComplete(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	order := createTwoLineOrder(t, svc)
	ctx := context.Background()

	_, err := svc.Ship(ctx, order.ID, "wh")
	require.ErrorIs(t, err, shared.ErrValidation, "nothing approved yet")

	_, err = svc.ApproveItem(ctx, order.ID, order.Items[0].ID, 10, "manager")
	require.NoError(t, err)
	_, err = svc.ApproveItem(ctx, order.ID, order.Items[1].ID, 4, "manager")
	require.NoError(t, err)

	shipped, err := svc.Ship(ctx, order.ID, "wh")
	require.NoError(t, err)
	require.Equal(t, OrderDeliveryInProcess, shipped.Status)
	require.Equal(t, 40, repo.records["SKU-1"].CurrentStock)
	require.Zero(t, repo.records["SKU-1"].ReservedStock)
	require.Equal(t, 6, repo.records["SKU-2"].CurrentStock)
	require.Len(t, repo.movements, 2)
	require.Equal(t, movements.DirectionOut, repo.movements[0].Direction)

	delivered, err := svc.MarkDelivered(ctx, order.ID, "courier")
	require.NoError(t, err)
	require.Equal(t, OrderDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveryDate)

	_, err = svc.Cancel(ctx, order.ID, "manager")
	require.ErrorIs(t, err, shared.ErrValidation, "delivered orders cannot be cancelled")

	completed, err := svc.Complete(ctx, order.ID, "manager")
	require.NoError(t, err)
	require.Equal(t, OrderCompleted, completed.Status)
}

func TestServicePartialApprovalShipsApprovedOnly(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	order := createTwoLineOrder(t, svc)
	ctx := context.Background()

	_, err := svc.ApproveItem(ctx, order.ID, order.Items[0].ID, 7, "manager")
	require.NoError(t, err)

	shipped, err := svc.Ship(ctx, order.ID, "wh")
	require.NoError(t, err)
	require.Equal(t, OrderDeliveryInProcess, shipped.Status)
	require.Equal(t, 43, repo.records["SKU-1"].CurrentStock)
	require.Equal(t, 10, repo.records["SKU-2"].CurrentStock, "unapproved line untouched")
	require.Len(t, repo.movements, 1)
	require.Equal(t, 7, repo.movements[0].Quantity)
}

func TestServiceDeriveApprovalStatus(t *testing.T) {
	require.Equal(t, OrderPending, DeriveApprovalStatus(nil))
	require.Equal(t, OrderPending, DeriveApprovalStatus([]OrderItem{{Quantity: 5}}))
	require.Equal(t, OrderPartiallyApproved, DeriveApprovalStatus([]OrderItem{{Quantity: 5, ApprovedQty: 2}}))
	require.Equal(t, OrderApproved, DeriveApprovalStatus([]OrderItem{{Quantity: 5, ApprovedQty: 5}}))
	require.Equal(t, OrderPartiallyApproved, DeriveApprovalStatus([]OrderItem{
		{Quantity: 5, ApprovedQty: 5},
		{Quantity: 3, ApprovedQty: 0},
	}))
}
