package procurement

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/inventory"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/masterdata/products"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/masterdata/suppliers"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/movements"
	"github.com/LastCoderBoy/SIMS-Microservice-sub001/internal/shared"
)

type memoryRepo struct {
	orders    map[int64]PurchaseOrder
	tokens    map[int64]ConfirmationToken
	records   map[string]inventory.Record
	movements []movements.Movement
	nextID    int64

	// Runs once immediately before the next order write, standing in for a
	// concurrent writer that commits between a read and this transaction.
	beforeOrderWrite func(*memoryRepo)
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders:  map[int64]PurchaseOrder{},
		tokens:  map[int64]ConfirmationToken{},
		records: map[string]inventory.Record{},
	}
}

func (m *memoryRepo) snapshot() *memoryRepo {
	cp := newMemoryRepo()
	cp.nextID = m.nextID
	for k, v := range m.orders {
		cp.orders[k] = v
	}
	for k, v := range m.tokens {
		cp.tokens[k] = v
	}
	for k, v := range m.records {
		cp.records[k] = v
	}
	cp.movements = append(cp.movements, m.movements...)
	return cp
}

func (m *memoryRepo) restore(from *memoryRepo) {
	m.orders = from.orders
	m.tokens = from.tokens
	m.records = from.records
	m.movements = from.movements
	m.nextID = from.nextID
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	before := m.snapshot()
	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		m.restore(before)
		return err
	}
	return nil
}

func (m *memoryRepo) GetOrder(_ context.Context, id int64) (PurchaseOrder, error) {
	po, ok := m.orders[id]
	if !ok {
		return PurchaseOrder{}, shared.ErrNotFound
	}
	return po, nil
}

func (m *memoryRepo) GetToken(_ context.Context, token string) (ConfirmationToken, error) {
	for _, t := range m.tokens {
		if t.Token == token {
			return t, nil
		}
	}
	return ConfirmationToken{}, shared.ErrNotFound
}

func (m *memoryRepo) GetPendingTokenForOrder(_ context.Context, orderID int64) (ConfirmationToken, error) {
	for _, t := range m.tokens {
		if t.OrderID == orderID && t.Status == TokenPending {
			return t, nil
		}
	}
	return ConfirmationToken{}, shared.ErrNotFound
}

func (m *memoryRepo) ExpireStaleTokens(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, t := range m.tokens {
		if t.Status == TokenPending && !now.Before(t.ExpiresAt) {
			t.Status = TokenExpired
			m.tokens[id] = t
			n++
		}
	}
	return n, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) InsertOrder(_ context.Context, po PurchaseOrder) (int64, error) {
	t.repo.nextID++
	po.ID = t.repo.nextID
	t.repo.orders[po.ID] = po
	return po.ID, nil
}

func (t *memoryTx) InsertToken(_ context.Context, token ConfirmationToken) (int64, error) {
	t.repo.nextID++
	token.ID = t.repo.nextID
	t.repo.tokens[token.ID] = token
	return token.ID, nil
}

func (t *memoryTx) UpdateOrder(_ context.Context, po PurchaseOrder) error {
	if hook := t.repo.beforeOrderWrite; hook != nil {
		t.repo.beforeOrderWrite = nil
		hook(t.repo)
	}
	current, ok := t.repo.orders[po.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if current.Version != po.Version {
		return shared.ErrConflict
	}
	po.Version++
	po.LastUpdated = time.Now()
	t.repo.orders[po.ID] = po
	return nil
}

func (t *memoryTx) ConsumeToken(_ context.Context, tokenID int64, status TokenStatus, clickedAt time.Time) error {
	token, ok := t.repo.tokens[tokenID]
	if !ok || token.Status != TokenPending {
		return shared.ErrInvalidToken
	}
	token.Status = status
	token.ClickedAt = &clickedAt
	t.repo.tokens[tokenID] = token
	return nil
}

func (t *memoryTx) EnsureInventoryForUpdate(_ context.Context, sku string, productID int64) (inventory.Record, error) {
	rec, ok := t.repo.records[sku]
	if !ok {
		rec = inventory.Record{SKU: sku, ProductID: productID, Status: inventory.StatusIncoming}
		t.repo.records[sku] = rec
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
	product products.Product
}

func (s stubCatalog) Get(context.Context, int64) (products.Product, error) {
	return s.product, nil
}

type stubDirectory struct {
	supplier suppliers.Supplier
}

func (s stubDirectory) Get(context.Context, int64) (suppliers.Supplier, error) {
	return s.supplier, nil
}

type recordingMailer struct {
	sent []ConfirmationEmail
}

func (m *recordingMailer) EnqueueConfirmation(_ context.Context, email ConfirmationEmail) error {
	m.sent = append(m.sent, email)
	return nil
}

func newTestService(repo *memoryRepo, status products.SellabilityStatus) (*Service, *recordingMailer) {
	mailer := &recordingMailer{}
	catalog := stubCatalog{product: products.Product{ID: 11, SKU: "SKU-11", Name: "Widget", Status: status}}
	directory := stubDirectory{supplier: suppliers.Supplier{ID: 7, Name: "Acme", Email: "orders@acme.test"}}
	return NewService(repo, catalog, directory, mailer, nil, nil, time.Hour), mailer
}

func createOrder(t *testing.T, svc *Service, qty int) PurchaseOrder {
	t.Helper()
	po, err := svc.Create(context.Background(), CreateInput{ProductID: 11, SupplierID: 7, OrderedQty: qty, Actor: "buyer"})
	require.NoError(t, err)
	return po
}

func TestServiceCreate(t *testing.T) {
	repo := newMemoryRepo()
	svc, mailer := newTestService(repo, products.StatusActive)

	po := createOrder(t, svc, 20)

	require.True(t, strings.HasPrefix(po.PONumber, "PO-7-"))
	require.Equal(t, StatusAwaitingApproval, po.Status)
	require.Equal(t, "SKU-11", po.SKU)
	require.Equal(t, int64(1), po.Version)

	token, err := repo.GetPendingTokenForOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	require.Equal(t, token.Token, mailer.sent[0].Token)
	require.Equal(t, "orders@acme.test", mailer.sent[0].To)
}

func TestServiceCreateRejectsNonReplenishable(t *testing.T) {
	svc, _ := newTestService(newMemoryRepo(), products.StatusDiscontinued)

	_, err := svc.Create(context.Background(), CreateInput{ProductID: 11, SupplierID: 7, OrderedQty: 5, Actor: "buyer"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestServiceConfirmIsSingleUse(t *testing.T) {
	repo := newMemoryRepo()
	svc, mailer := newTestService(repo, products.StatusActive)
	po := createOrder(t, svc, 10)

	confirmed, err := svc.Confirm(context.Background(), mailer.sent[0].Token, nil)
	require.NoError(t, err)
	require.Equal(t, StatusDeliveryInProcess, confirmed.Status)
	require.Equal(t, int64(2), confirmed.Version)

	_, err = svc.Confirm(context.Background(), mailer.sent[0].Token, nil)
	require.ErrorIs(t, err, shared.ErrInvalidToken)

	_, err = svc.Confirm(context.Background(), "no-such-token", nil)
	require.ErrorIs(t, err, shared.ErrInvalidToken)

	require.Equal(t, po.ID, confirmed.ID)
}

func TestServiceConfirmExpiredToken(t *testing.T) {
	repo := newMemoryRepo()
	svc, mailer := newTestService(repo, products.StatusActive)
	createOrder(t, svc, 10)

	for id, tok := range repo.tokens {
		tok.ExpiresAt = time.Now().Add(-time.Minute)
		repo.tokens[id] = tok
	}

	_, err := svc.Confirm(context.Background(), mailer.sent[0].Token, nil)
	require.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestServiceDeclineByToken(t *testing.T) {
	repo := newMemoryRepo()
	svc, mailer := newTestService(repo, products.StatusActive)
	po := createOrder(t, svc, 10)

	cancelled, err := svc.CancelByToken(context.Background(), mailer.sent[0].Token)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.ReceiveStock(context.Background(), ReceiveInput{OrderID: po.ID, Qty: 1, Actor: "wh"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestServiceReceiveStockPartialThenFull(t *testing.T) {
	repo := newMemoryRepo()
	svc, mailer := newTestService(repo, products.StatusActive)
	po := createOrder(t, svc, 20)
	_, err := svc.Confirm(context.Background(), mailer.sent[0].Token, nil)
	require.NoError(t, err)

	partial, err := svc.ReceiveStock(context.Background(), ReceiveInput{OrderID: po.ID, Qty: 12, Actor: "wh"})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyReceived, partial.Status)
	require.Equal(t, 12, partial.ReceivedQty)
	require.Equal(t, 12, repo.records["SKU-11"].CurrentStock)

	full, err := svc.ReceiveStock(context.Background(), ReceiveInput{OrderID: po.ID, Qty: 8, Actor: "wh"})
	require.NoError(t, err)
	require.Equal(t, StatusReceived, full.Status)
	require.Equal(t, 20, full.ReceivedQty)
	require.Equal(t, 20, repo.records["SKU-11"].CurrentStock)

	require.Len(t, repo.movements, 2)
	require.Equal(t, movements.DirectionIn, repo.movements[0].Direction)
	require.Equal(t, 12, repo.movements[0].Quantity)
	require.Equal(t, 8, repo.movements[1].Quantity)

	_, err = svc.ReceiveStock(context.Background(), ReceiveInput{OrderID: po.ID, Qty: 1, Actor: "wh"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestServiceReceiveStockClampsOverDelivery(t *testing.T) {
	repo := newMemoryRepo()
	svc, mailer := newTestService(repo, products.StatusActive)
	po := createOrder(t, svc, 10)
	_, err := svc.Confirm(context.Background(), mailer.sent[0].Token, nil)
	require.NoError(t, err)

	full, err := svc.ReceiveStock(context.Background(), ReceiveInput{OrderID: po.ID, Qty: 15, Actor: "wh"})
	require.NoError(t, err)
	require.Equal(t, StatusReceived, full.Status)
	require.Equal(t, 10, full.ReceivedQty)
	require.Equal(t, 10, repo.records["SKU-11"].CurrentStock)
	require.Equal(t, 10, repo.movements[0].Quantity)
}

func TestServiceReceiveStockVersionConflictRollsBack(t *testing.T) {
	repo := newMemoryRepo()
	svc, mailer := newTestService(repo, products.StatusActive)
	po := createOrder(t, svc, 10)
	_, err := svc.Confirm(context.Background(), mailer.sent[0].Token, nil)
	require.NoError(t, err)

	// A concurrent writer bumps the version between the service's read
	// and its transactional write, so the compare-and-swap must miss.
	repo.beforeOrderWrite = func(m *memoryRepo) {
		winner := m.orders[po.ID]
		winner.Version++
		m.orders[po.ID] = winner
	}

	_, err = svc.ReceiveStock(context.Background(), ReceiveInput{OrderID: po.ID, Qty: 5, Actor: "wh"})
	require.ErrorIs(t, err, shared.ErrConflict)

	require.Empty(t, repo.movements)
	require.Zero(t, repo.records["SKU-11"].CurrentStock)
	require.Equal(t, 0, repo.orders[po.ID].ReceivedQty)
}

func TestServiceUpdateChecksVersion(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, products.StatusActive)
	po := createOrder(t, svc, 10)

	notes := "dock 4"
	updated, err := svc.Update(context.Background(), UpdateInput{OrderID: po.ID, Notes: &notes, Version: po.Version, Actor: "buyer"})
	require.NoError(t, err)
	require.Equal(t, "dock 4", updated.Notes)
	require.Equal(t, po.Version+1, updated.Version)

	_, err = svc.Update(context.Background(), UpdateInput{OrderID: po.ID, Notes: &notes, Version: po.Version, Actor: "buyer"})
	require.ErrorIs(t, err, shared.ErrConflict, "stale version rejected")
}

func TestServiceCancelConsumesPendingToken(t *testing.T) {
	repo := newMemoryRepo()
	svc, mailer := newTestService(repo, products.StatusActive)
	po := createOrder(t, svc, 10)

	cancelled, err := svc.Cancel(context.Background(), po.ID, "manager")
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Confirm(context.Background(), mailer.sent[0].Token, nil)
	require.ErrorIs(t, err, shared.ErrInvalidToken)

	_, err = svc.Cancel(context.Background(), po.ID, "manager")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestServiceFail(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, products.StatusActive)
	po := createOrder(t, svc, 10)

	failed, err := svc.Fail(context.Background(), po.ID, "manager")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, failed.Status)

	_, err = svc.Fail(context.Background(), po.ID, "manager")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestServiceExpireStaleTokensIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc, _ := newTestService(repo, products.StatusActive)
	createOrder(t, svc, 10)
	createOrder(t, svc, 5)

	for id, tok := range repo.tokens {
		tok.ExpiresAt = time.Now().Add(-time.Hour)
		repo.tokens[id] = tok
		break
	}

	n, err := svc.ExpireStaleTokens(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = svc.ExpireStaleTokens(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}
