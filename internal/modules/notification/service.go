package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stockyardhq/stockyard-backend/internal/modules/checkout"
	"github.com/stockyardhq/stockyard-backend/internal/modules/settings"
	"go.uber.org/zap"
)

// Broadcaster delivers a committed event to live clients. Implemented by the
// broadcast hub; failures there are its own problem, never ours.
type Broadcaster interface {
	Publish(eventType string, payload interface{})
}

type eventKind int

const (
	evOrderCommitted eventKind = iota
	evStatusChanged
	evStockChanged
	evSalesUpdated
)

type event struct {
	kind       eventKind
	order      *checkout.Order
	previous   checkout.OrderStatus
	itemID     uuid.UUID
	itemName   string
	prevStock  int
	curStock   int
	todayTotal int64
}

// queueSize bounds the handoff from the coordinator. Enqueueing never blocks
// a committed checkout; overflow is logged and dropped (the durable rows for
// orders and stock are already committed, only the alert is lost).
const queueSize = 256

// Authority decides which domain events become persisted notifications and
// broadcasts them. It is the only writer of notification rows. Trigger rules
// are edge-sensitive: an alert fires on the crossing, not on the level.
type Authority struct {
	repo     Repository
	settings settings.Provider
	hub      Broadcaster
	log      *zap.Logger

	mu     sync.Mutex
	closed bool
	events chan event
	done   chan struct{}
}

// NewAuthority creates the authority. Call Start before use and Close on
// shutdown.
func NewAuthority(repo Repository, provider settings.Provider, hub Broadcaster, log *zap.Logger) *Authority {
	return &Authority{
		repo:     repo,
		settings: provider,
		hub:      hub,
		log:      log,
		events:   make(chan event, queueSize),
		done:     make(chan struct{}),
	}
}

// Start launches the queue worker.
func (a *Authority) Start() {
	go func() {
		defer close(a.done)
		for ev := range a.events {
			a.handle(ev)
		}
	}()
}

// Close drains the queue and stops the worker. Safe to call more than once;
// events arriving after Close are dropped, not a panic, since handlers may
// still be in flight when shutdown starts.
func (a *Authority) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.events)
	a.mu.Unlock()
	<-a.done
}

// ── checkout.EventSink / ledger.StockObserver ────────────────────────────────

// OrderCommitted always yields a new_order notification.
func (a *Authority) OrderCommitted(o *checkout.Order) {
	a.enqueue(event{kind: evOrderCommitted, order: o})
}

// StatusChanged yields order_status_changed when the statuses differ.
func (a *Authority) StatusChanged(o *checkout.Order, previous checkout.OrderStatus) {
	a.enqueue(event{kind: evStatusChanged, order: o, previous: previous})
}

// StockChanged yields low_stock_alert only on a downward threshold crossing.
func (a *Authority) StockChanged(itemID uuid.UUID, name string, previous, current int) {
	a.enqueue(event{kind: evStockChanged, itemID: itemID, itemName: name, prevStock: previous, curStock: current})
}

// SalesUpdated yields sales_target_reached the first time the running total
// crosses the target within the current sales day.
func (a *Authority) SalesUpdated(todayTotalCents int64) {
	a.enqueue(event{kind: evSalesUpdated, todayTotal: todayTotalCents})
}

func (a *Authority) enqueue(ev event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		a.log.Warn("authority closed, dropping event", zap.Int("kind", int(ev.kind)))
		return
	}
	select {
	case a.events <- ev:
	default:
		a.log.Warn("notification queue full, dropping event", zap.Int("kind", int(ev.kind)))
	}
}

// ── trigger evaluation ───────────────────────────────────────────────────────

func (a *Authority) handle(ev event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch ev.kind {
	case evOrderCommitted:
		payload := NewOrderPayload{
			OrderID:       ev.order.ID,
			OrderNo:       ev.order.OrderNo,
			Total:         ev.order.Total,
			PaymentMethod: string(ev.order.PaymentMethod),
		}
		a.emit(ctx, TypeNewOrder, "New order",
			fmt.Sprintf("Order %s committed for %s", ev.order.OrderNo, formatCents(ev.order.Total)),
			payload)

	case evStatusChanged:
		if ev.previous == ev.order.Status {
			return
		}
		payload := StatusChangedPayload{
			OrderID:        ev.order.ID,
			OrderNo:        ev.order.OrderNo,
			PreviousStatus: string(ev.previous),
			Status:         string(ev.order.Status),
		}
		a.emit(ctx, TypeOrderStatusChanged, "Order status changed",
			fmt.Sprintf("Order %s moved from %s to %s", ev.order.OrderNo, ev.previous, ev.order.Status),
			payload)

	case evStockChanged:
		cfg, err := a.settings.Engine(ctx)
		if err != nil {
			a.log.Error("settings unavailable, skipping low-stock check", zap.Error(err))
			return
		}
		threshold := cfg.LowStockThreshold
		// Edge trigger: fire only when stock falls from above the threshold
		// to at-or-below it. An item that stays low does not re-alert.
		if !(ev.prevStock > threshold && ev.curStock <= threshold) {
			return
		}
		payload := LowStockPayload{ItemID: ev.itemID, Name: ev.itemName, Stock: ev.curStock}
		a.emit(ctx, TypeLowStockAlert, "Low stock",
			fmt.Sprintf("%s is down to %d in stock", ev.itemName, ev.curStock),
			payload)

	case evSalesUpdated:
		cfg, err := a.settings.Engine(ctx)
		if err != nil {
			a.log.Error("settings unavailable, skipping sales-target check", zap.Error(err))
			return
		}
		target := cfg.DailySalesTargetCents
		if target <= 0 || ev.todayTotal < target {
			return
		}
		// Single fire per sales day, derived from persisted rows so a
		// restart cannot re-announce the same crossing.
		fired, err := a.repo.ExistsSince(ctx, TypeSalesTargetReached, cfg.SalesDayStart(time.Now()))
		if err != nil {
			a.log.Error("sales-target lookup failed", zap.Error(err))
			return
		}
		if fired {
			return
		}
		payload := SalesTargetPayload{Target: target, Total: ev.todayTotal}
		a.emit(ctx, TypeSalesTargetReached, "Sales target reached",
			fmt.Sprintf("Today's sales of %s passed the %s target", formatCents(ev.todayTotal), formatCents(target)),
			payload)
	}
}

// emit persists the notification, then broadcasts it. Broadcast problems are
// the hub's to log; persistence problems are logged here and swallowed, since
// the originating transaction is already committed.
func (a *Authority) emit(ctx context.Context, typ Type, title, message string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		a.log.Error("marshal notification payload", zap.Error(err))
		return
	}
	n := &Notification{
		ID:      uuid.New(),
		Type:    typ,
		Title:   title,
		Message: message,
		Payload: raw,
	}
	if err := a.repo.Create(ctx, n); err != nil {
		a.log.Error("persist notification", zap.String("type", string(typ)), zap.Error(err))
		return
	}
	a.log.Info("notification emitted", zap.String("type", string(typ)), zap.String("message", message))
	a.hub.Publish(string(typ), payload)
}

// ── read-state operations ────────────────────────────────────────────────────

// List returns the newest notifications.
func (a *Authority) List(ctx context.Context, limit int) ([]*Notification, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return a.repo.List(ctx, limit)
}

// MarkRead marks one notification read. Idempotent.
func (a *Authority) MarkRead(ctx context.Context, id string) error {
	return a.repo.MarkRead(ctx, id)
}

// MarkAllRead marks every notification read. Idempotent.
func (a *Authority) MarkAllRead(ctx context.Context) error {
	return a.repo.MarkAllRead(ctx)
}

// Clear deletes all notifications.
func (a *Authority) Clear(ctx context.Context) error {
	return a.repo.Clear(ctx)
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
