package checkout

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stockyardhq/stockyard-backend/internal/modules/ledger"
	"github.com/stockyardhq/stockyard-backend/internal/modules/settings"
	"go.uber.org/zap"
)

// EventSink receives domain events after a transaction commits. Delivery is
// fire-and-forget from the coordinator's point of view; a sink failure never
// affects the committed order. Implemented by the notification authority.
type EventSink interface {
	OrderCommitted(o *Order)
	StatusChanged(o *Order, previous OrderStatus)
	StockChanged(itemID uuid.UUID, name string, previous, current int)
	SalesUpdated(todayTotalCents int64)
}

// Service defines the order transaction coordinator.
type Service interface {
	// Checkout validates the cart, prices it, and commits order + lines +
	// ledger decrements atomically. Nothing is written on any failure.
	Checkout(ctx context.Context, req CheckoutRequest) (*Order, error)

	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, status string, limit int) ([]*Order, error)
	UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest) (*Order, error)
}

type service struct {
	repo     Repository
	settings settings.Provider
	sink     EventSink
	log      *zap.Logger
}

// NewService creates the coordinator. sink may be nil.
func NewService(repo Repository, provider settings.Provider, sink EventSink, log *zap.Logger) Service {
	return &service{repo: repo, settings: provider, sink: sink, log: log}
}

// validTransitions defines the allowed status state machine.
var validTransitions = map[OrderStatus][]OrderStatus{
	StatusPaid:      {StatusFulfilled, StatusCancelled},
	StatusFulfilled: {},
	StatusCancelled: {},
}

func (s *service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, &ValidationError{Reason: "order must contain at least one item"}
	}

	method := PaymentMethod(strings.ToLower(req.PaymentMethod))
	switch method {
	case PaymentCash, PaymentTransfer, PaymentCard:
	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("invalid payment_method: %q (allowed: cash, transfer, card)", req.PaymentMethod)}
	}
	if req.Discount < 0 {
		return nil, &ValidationError{Reason: "discount must not be negative"}
	}

	itemIDs := make([]uuid.UUID, 0, len(req.Items))
	qtyByItem := make(map[uuid.UUID]int, len(req.Items))
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, &ValidationError{Reason: fmt.Sprintf("quantity must be > 0 for item %s", line.ItemID)}
		}
		id, err := uuid.Parse(line.ItemID)
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("invalid item_id: %s", line.ItemID)}
		}
		if _, seen := qtyByItem[id]; !seen {
			itemIDs = append(itemIDs, id)
		}
		qtyByItem[id] += line.Quantity
	}

	snapshots, err := s.repo.Snapshot(ctx, itemIDs)
	if err != nil {
		return nil, err
	}

	// ── Price the cart from the snapshot ──────────────────────────────────
	var subtotal int64
	lines := make([]*OrderLine, 0, len(itemIDs))
	entries := make([]*ledger.Entry, 0, len(itemIDs))
	orderID := uuid.New()

	for _, id := range itemIDs {
		snap, ok := snapshots[id]
		if !ok {
			return nil, &ValidationError{Reason: fmt.Sprintf("unknown item: %s", id)}
		}
		qty := qtyByItem[id]
		lineTotal := snap.PriceCents * int64(qty)
		subtotal += lineTotal

		lines = append(lines, &OrderLine{
			ID:        uuid.New(),
			OrderID:   orderID,
			ItemID:    id,
			Name:      snap.Name,
			UnitPrice: snap.PriceCents,
			Quantity:  qty,
			LineTotal: lineTotal,
		})
		oid := orderID
		entries = append(entries, &ledger.Entry{
			ID:      uuid.New(),
			ItemID:  id,
			Delta:   -qty,
			Reason:  ledger.ReasonSale,
			OrderID: &oid,
		})
	}

	cfg, err := s.settings.Engine(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	discount := discountCents(subtotal, req.Discount, req.DiscountIsPercent)
	base := subtotal - discount
	if base < 0 {
		base = 0
	}
	var tax int64
	if cfg.TaxEnabled && cfg.TaxRatePercent > 0 {
		tax = roundHalfUp(float64(base) * cfg.TaxRatePercent / 100)
	}
	total := base + tax

	o := &Order{
		ID:            orderID,
		Status:        StatusPaid,
		Subtotal:      subtotal,
		Discount:      discount,
		Tax:           tax,
		Total:         total,
		PaymentMethod: method,
		Lines:         lines,
	}
	if req.CustomerID != "" {
		cid, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("invalid customer_id: %s", req.CustomerID)}
		}
		o.CustomerID = &cid
	}
	if req.UserID != "" {
		uid, err := uuid.Parse(req.UserID)
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("invalid user_id: %s", req.UserID)}
		}
		o.UserID = &uid
	}

	stocks, err := s.repo.CreateOrder(ctx, o, entries)
	if err != nil {
		return nil, err
	}

	s.log.Info("order committed",
		zap.String("order_no", o.OrderNo),
		zap.Int64("total", o.Total),
		zap.String("payment_method", string(o.PaymentMethod)),
		zap.Int("lines", len(o.Lines)))

	// Post-commit, best-effort: hand events to the notification authority.
	// A failure here never unwinds the committed order.
	if s.sink != nil {
		s.sink.OrderCommitted(o)
		for _, line := range o.Lines {
			current := stocks[line.ItemID].Stock
			s.sink.StockChanged(line.ItemID, line.Name, current+line.Quantity, current)
		}
		if todayTotal, err := s.repo.SalesTotalSince(ctx, cfg.SalesDayStart(time.Now())); err == nil {
			s.sink.SalesUpdated(todayTotal)
		} else {
			s.log.Warn("daily sales total unavailable", zap.Error(err))
		}
	}
	return o, nil
}

func (s *service) GetOrder(ctx context.Context, id string) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListOrders(ctx context.Context, status string, limit int) ([]*Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.List(ctx, strings.ToUpper(status), limit)
}

func (s *service) UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	newStatus := OrderStatus(strings.ToUpper(req.Status))
	valid := false
	for _, allowed := range validTransitions[o.Status] {
		if allowed == newStatus {
			valid = true
			break
		}
	}
	if !valid {
		return nil, &ValidationError{Reason: fmt.Sprintf("cannot transition order from %s to %s", o.Status, newStatus)}
	}

	if err := s.repo.UpdateStatus(ctx, id, o.Status, newStatus); err != nil {
		return nil, err
	}
	previous := o.Status
	o.Status = newStatus

	s.log.Info("order status changed",
		zap.String("order_no", o.OrderNo),
		zap.String("from", string(previous)),
		zap.String("to", string(newStatus)))

	if s.sink != nil {
		s.sink.StatusChanged(o, previous)
	}
	return o, nil
}

// ── pricing helpers ──────────────────────────────────────────────────────────

// discountCents converts the requested discount to cents, clamped to
// [0, subtotal]. Percentage discounts use round-half-up.
func discountCents(subtotal int64, discount float64, isPercent bool) int64 {
	var cents int64
	if isPercent {
		cents = roundHalfUp(float64(subtotal) * discount / 100)
	} else {
		cents = roundHalfUp(discount * 100)
	}
	if cents < 0 {
		cents = 0
	}
	if cents > subtotal {
		cents = subtotal
	}
	return cents
}

func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}
