package checkout

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stockyardhq/stockyard-backend/internal/modules/ledger"
	"github.com/stockyardhq/stockyard-backend/internal/modules/settings"
)

// memRepo is an in-memory Repository with the postgres implementation's
// semantics: checkout commits atomically against live stock or not at all.
type memRepo struct {
	mu     sync.Mutex
	items  map[uuid.UUID]ItemSnapshot
	orders []*Order
	seq    int
}

func newMemRepo() *memRepo { return &memRepo{items: make(map[uuid.UUID]ItemSnapshot)} }

func (m *memRepo) addItem(name string, priceCents int64, stock int) uuid.UUID {
	id := uuid.New()
	m.items[id] = ItemSnapshot{ID: id, Name: name, PriceCents: priceCents, Stock: stock}
	return id
}

func (m *memRepo) Snapshot(_ context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]ItemSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]ItemSnapshot)
	for _, id := range itemIDs {
		if snap, ok := m.items[id]; ok {
			out[id] = snap
		}
	}
	return out, nil
}

func (m *memRepo) CreateOrder(_ context.Context, o *Order, entries []*ledger.Entry) (map[uuid.UUID]ledger.StockResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	net := make(map[uuid.UUID]int)
	for _, e := range entries {
		net[e.ItemID] += e.Delta
	}
	var shortages []ledger.Shortage
	for id, delta := range net {
		item, ok := m.items[id]
		if !ok {
			return nil, ledger.ErrUnknownItem
		}
		if item.Stock+delta < 0 {
			shortages = append(shortages, ledger.Shortage{
				ItemID: id, Name: item.Name, Requested: -delta, Available: item.Stock,
			})
		}
	}
	if len(shortages) > 0 {
		return nil, &ledger.InsufficientStockError{Shortages: shortages}
	}

	m.seq++
	o.OrderNo = fmt.Sprintf("ORD-%04d", m.seq)
	o.CreatedAt = time.Now().UTC()
	m.orders = append(m.orders, o)

	result := make(map[uuid.UUID]ledger.StockResult, len(net))
	for id, delta := range net {
		item := m.items[id]
		item.Stock += delta
		m.items[id] = item
		result[id] = ledger.StockResult{Name: item.Name, Stock: item.Stock}
	}
	return result, nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID.String() == id {
			return o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) List(_ context.Context, status string, limit int) ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for i := len(m.orders) - 1; i >= 0 && len(out) < limit; i-- {
		if status == "" || string(m.orders[i].Status) == status {
			out = append(out, m.orders[i])
		}
	}
	return out, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id string, from, to OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID.String() == id {
			if o.Status != from {
				return ErrConflict
			}
			o.Status = to
			return nil
		}
	}
	return ErrNotFound
}

func (m *memRepo) SalesTotalSince(_ context.Context, t time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, o := range m.orders {
		if !o.CreatedAt.Before(t) && o.Status != StatusCancelled {
			total += o.Total
		}
	}
	return total, nil
}

type fixedSettings struct{ cfg settings.Engine }

func (f fixedSettings) Engine(context.Context) (settings.Engine, error) { return f.cfg, nil }

// recordingSink captures dispatched events.
type recordingSink struct {
	mu         sync.Mutex
	orders     []*Order
	statuses   []string
	stocks     []string
	salesCalls []int64
}

func (r *recordingSink) OrderCommitted(o *Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, o)
}

func (r *recordingSink) StatusChanged(o *Order, previous OrderStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, fmt.Sprintf("%s:%s->%s", o.OrderNo, previous, o.Status))
}

func (r *recordingSink) StockChanged(itemID uuid.UUID, name string, previous, current int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stocks = append(r.stocks, fmt.Sprintf("%s:%d->%d", name, previous, current))
}

func (r *recordingSink) SalesUpdated(todayTotal int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.salesCalls = append(r.salesCalls, todayTotal)
}

func newTestService(repo *memRepo, cfg settings.Engine, sink EventSink) Service {
	return NewService(repo, fixedSettings{cfg: cfg}, sink, zap.NewNop())
}

func TestCheckoutPricingLaw(t *testing.T) {
	repo := newMemRepo()
	a := repo.addItem("sheep", 10000, 10) // 100.00
	b := repo.addItem("rope", 5000, 10)   // 50.00
	sink := &recordingSink{}
	svc := newTestService(repo, settings.Defaults(), sink)

	o, err := svc.Checkout(context.Background(), CheckoutRequest{
		Items: []CartLine{
			{ItemID: a.String(), Quantity: 2},
			{ItemID: b.String(), Quantity: 1},
		},
		PaymentMethod:     "cash",
		Discount:          10,
		DiscountIsPercent: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25000), o.Subtotal)
	assert.Equal(t, int64(2500), o.Discount)
	assert.Equal(t, int64(0), o.Tax)
	assert.Equal(t, int64(22500), o.Total)
	assert.Equal(t, StatusPaid, o.Status)
	require.Len(t, o.Lines, 2)

	require.Len(t, sink.orders, 1, "new_order must be dispatched after commit")
	assert.Len(t, sink.stocks, 2)
	require.Len(t, sink.salesCalls, 1)
	assert.Equal(t, int64(22500), sink.salesCalls[0])
}

func TestCheckoutDiscountClampsToSubtotal(t *testing.T) {
	repo := newMemRepo()
	a := repo.addItem("bridle", 25000, 5) // subtotal 250.00
	svc := newTestService(repo, settings.Defaults(), nil)

	o, err := svc.Checkout(context.Background(), CheckoutRequest{
		Items:         []CartLine{{ItemID: a.String(), Quantity: 1}},
		PaymentMethod: "card",
		Discount:      300, // 300.00 against a 250.00 subtotal
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25000), o.Subtotal)
	assert.Equal(t, int64(25000), o.Discount)
	assert.Equal(t, int64(0), o.Total, "total must clamp to zero, never negative")
}

func TestCheckoutTaxOnDiscountedBase(t *testing.T) {
	repo := newMemRepo()
	a := repo.addItem("goat", 20000, 5)
	cfg := settings.Defaults()
	cfg.TaxEnabled = true
	cfg.TaxRatePercent = 10
	svc := newTestService(repo, cfg, nil)

	o, err := svc.Checkout(context.Background(), CheckoutRequest{
		Items:         []CartLine{{ItemID: a.String(), Quantity: 1}},
		PaymentMethod: "transfer",
		Discount:      100, // 100.00
	})
	require.NoError(t, err)
	// base 100.00, tax 10.00, total 110.00
	assert.Equal(t, int64(10000), o.Total-o.Tax)
	assert.Equal(t, int64(1000), o.Tax)
	assert.Equal(t, int64(11000), o.Total)
	// Inclusive identity: tax == total * rate / (100 + rate).
	assert.Equal(t, o.Tax, roundHalfUp(float64(o.Total)*10/110))
}

func TestCheckoutValidation(t *testing.T) {
	repo := newMemRepo()
	a := repo.addItem("pig", 8000, 5)
	svc := newTestService(repo, settings.Defaults(), nil)
	ctx := context.Background()

	cases := []struct {
		name string
		req  CheckoutRequest
	}{
		{"empty cart", CheckoutRequest{PaymentMethod: "cash"}},
		{"zero quantity", CheckoutRequest{
			Items:         []CartLine{{ItemID: a.String(), Quantity: 0}},
			PaymentMethod: "cash",
		}},
		{"unknown item", CheckoutRequest{
			Items:         []CartLine{{ItemID: uuid.New().String(), Quantity: 1}},
			PaymentMethod: "cash",
		}},
		{"bad payment method", CheckoutRequest{
			Items:         []CartLine{{ItemID: a.String(), Quantity: 1}},
			PaymentMethod: "cheque",
		}},
		{"negative discount", CheckoutRequest{
			Items:         []CartLine{{ItemID: a.String(), Quantity: 1}},
			PaymentMethod: "cash",
			Discount:      -5,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Checkout(ctx, tc.req)
			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
		})
	}
	assert.Empty(t, repo.orders, "validation failures must not write")
}

func TestCheckoutInsufficientStockWritesNothing(t *testing.T) {
	repo := newMemRepo()
	plenty := repo.addItem("straw", 1000, 100)
	scarce := repo.addItem("calf", 150000, 1)
	sink := &recordingSink{}
	svc := newTestService(repo, settings.Defaults(), sink)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		Items: []CartLine{
			{ItemID: plenty.String(), Quantity: 10},
			{ItemID: scarce.String(), Quantity: 2},
		},
		PaymentMethod: "cash",
	})
	var insufficient *ledger.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Len(t, insufficient.Shortages, 1)
	assert.Equal(t, "calf", insufficient.Shortages[0].Name)

	assert.Empty(t, repo.orders, "no order row on a failed checkout")
	assert.Equal(t, 100, repo.items[plenty].Stock, "first line's stock untouched")
	assert.Empty(t, sink.orders, "no events for an aborted checkout")
	assert.Empty(t, sink.stocks)
}

func TestCheckoutMergesDuplicateLines(t *testing.T) {
	repo := newMemRepo()
	a := repo.addItem("fence post", 1200, 10)
	svc := newTestService(repo, settings.Defaults(), nil)

	o, err := svc.Checkout(context.Background(), CheckoutRequest{
		Items: []CartLine{
			{ItemID: a.String(), Quantity: 2},
			{ItemID: a.String(), Quantity: 3},
		},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	require.Len(t, o.Lines, 1)
	assert.Equal(t, 5, o.Lines[0].Quantity)
	assert.Equal(t, int64(6000), o.Subtotal)
	assert.Equal(t, 5, repo.items[a].Stock)
}

func TestUnitPriceIsSnapshottedAtSale(t *testing.T) {
	repo := newMemRepo()
	a := repo.addItem("heifer", 90000, 5)
	svc := newTestService(repo, settings.Defaults(), nil)

	o, err := svc.Checkout(context.Background(), CheckoutRequest{
		Items:         []CartLine{{ItemID: a.String(), Quantity: 1}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)

	// Reprice the catalog item; the committed line must not move.
	item := repo.items[a]
	item.PriceCents = 120000
	repo.items[a] = item

	got, err := svc.GetOrder(context.Background(), o.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(90000), got.Lines[0].UnitPrice)
}

func TestUpdateStatusStateMachine(t *testing.T) {
	repo := newMemRepo()
	a := repo.addItem("duckling", 1500, 10)
	sink := &recordingSink{}
	svc := newTestService(repo, settings.Defaults(), sink)
	ctx := context.Background()

	o, err := svc.Checkout(ctx, CheckoutRequest{
		Items:         []CartLine{{ItemID: a.String(), Quantity: 1}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, o.ID.String(), UpdateStatusRequest{Status: "fulfilled"})
	require.NoError(t, err)
	assert.Equal(t, StatusFulfilled, updated.Status)
	require.Len(t, sink.statuses, 1)
	assert.Contains(t, sink.statuses[0], "PAID->FULFILLED")

	_, err = svc.UpdateStatus(ctx, o.ID.String(), UpdateStatusRequest{Status: "paid"})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation, "FULFILLED is terminal")
	assert.Len(t, sink.statuses, 1, "rejected transition must not dispatch")

	stock := repo.items[a].Stock
	_, err = svc.UpdateStatus(ctx, o.ID.String(), UpdateStatusRequest{Status: "cancelled"})
	require.Error(t, err)
	assert.Equal(t, stock, repo.items[a].Stock, "status changes never touch stock")
}

// staleReadRepo serves a fixed pre-write snapshot from GetByID, modelling a
// second request that read the order before the first one's write landed.
type staleReadRepo struct {
	*memRepo
	snapshot Order
}

func (s *staleReadRepo) GetByID(context.Context, string) (*Order, error) {
	stale := s.snapshot
	return &stale, nil
}

func TestUpdateStatusRejectsStaleWrite(t *testing.T) {
	repo := newMemRepo()
	a := repo.addItem("ewe", 40000, 3)
	sink := &recordingSink{}
	svc := newTestService(repo, settings.Defaults(), sink)
	ctx := context.Background()

	o, err := svc.Checkout(ctx, CheckoutRequest{
		Items:         []CartLine{{ItemID: a.String(), Quantity: 1}},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)

	// Both requests read the order while it was still PAID.
	stale := &staleReadRepo{memRepo: repo, snapshot: *o}
	raceSvc := NewService(stale, fixedSettings{cfg: settings.Defaults()}, sink, zap.NewNop())

	_, err = svc.UpdateStatus(ctx, o.ID.String(), UpdateStatusRequest{Status: "fulfilled"})
	require.NoError(t, err)

	// The loser validated PAID -> CANCELLED against its stale snapshot; the
	// store-level compare-and-swap must reject the blind write.
	_, err = raceSvc.UpdateStatus(ctx, o.ID.String(), UpdateStatusRequest{Status: "cancelled"})
	require.ErrorIs(t, err, ErrConflict)

	got, err := svc.GetOrder(ctx, o.ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusFulfilled, got.Status, "terminal status must not be overwritten")
	assert.Len(t, sink.statuses, 1, "only the winning transition dispatches")
}

func TestDiscountRounding(t *testing.T) {
	// 15% of 10.05 = 1.5075 -> 1.51 with round-half-up.
	assert.Equal(t, int64(151), discountCents(1005, 15, true))
	// Exactly half a cent rounds up: 2.5% of 1.00 = 0.025 -> 0.03.
	assert.Equal(t, int64(3), discountCents(100, 2.5, true))
	// Absolute discounts convert to cents and clamp.
	assert.Equal(t, int64(500), discountCents(10000, 5, false))
	assert.Equal(t, int64(10000), discountCents(10000, 250, false))
}
