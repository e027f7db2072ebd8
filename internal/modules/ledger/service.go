package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockObserver is told about every committed stock change so alerting can
// react to threshold crossings. Implemented by the notification authority.
type StockObserver interface {
	StockChanged(itemID uuid.UUID, name string, previous, current int)
}

// Service defines the ledger business logic. Manual adjustments from the UI
// (+/- stock buttons, goods received, customer returns) and checkout
// decrements all converge on the same batch-validation path; nothing else in
// the system is allowed to change stock.
type Service interface {
	// Adjust records a single manual stock movement. The sale reason is
	// reserved for the checkout coordinator and rejected here.
	Adjust(ctx context.Context, req AdjustRequest) (*Entry, error)

	// CurrentStock folds the ledger for one item.
	CurrentStock(ctx context.Context, itemID string) (int, error)

	// History lists recent entries, optionally scoped to one item.
	History(ctx context.Context, itemID string, limit int) ([]*Entry, error)
}

// AdjustRequest is the payload for a manual stock movement.
type AdjustRequest struct {
	ItemID string `json:"item_id"`
	Change int    `json:"change"`
	Reason Reason `json:"reason"`
	Note   string `json:"note,omitempty"`
}

type service struct {
	repo     Repository
	observer StockObserver
	log      *zap.Logger
}

// NewService creates a new ledger service. observer may be nil.
func NewService(repo Repository, observer StockObserver, log *zap.Logger) Service {
	return &service{repo: repo, observer: observer, log: log}
}

func (s *service) Adjust(ctx context.Context, req AdjustRequest) (*Entry, error) {
	if req.Change == 0 {
		return nil, &ValidationError{Reason: "change must not be zero"}
	}
	if req.Reason == ReasonSale {
		return nil, &ValidationError{Reason: fmt.Sprintf("reason %q is reserved for checkout", ReasonSale)}
	}
	if !ValidReason(req.Reason) {
		return nil, &ValidationError{Reason: fmt.Sprintf("invalid reason: %q", req.Reason)}
	}
	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("invalid item_id: %s", req.ItemID)}
	}

	entry := &Entry{
		ID:     uuid.New(),
		ItemID: itemID,
		Delta:  req.Change,
		Reason: req.Reason,
		Note:   req.Note,
	}
	stocks, err := s.repo.Append(ctx, []*Entry{entry})
	if err != nil {
		return nil, err
	}

	result := stocks[itemID]
	s.log.Info("stock adjusted",
		zap.String("item_id", itemID.String()),
		zap.Int("delta", req.Change),
		zap.String("reason", string(req.Reason)),
		zap.Int("stock", result.Stock))

	if s.observer != nil {
		s.observer.StockChanged(itemID, result.Name, result.Stock-req.Change, result.Stock)
	}
	return entry, nil
}

func (s *service) CurrentStock(ctx context.Context, itemID string) (int, error) {
	id, err := uuid.Parse(itemID)
	if err != nil {
		return 0, &ValidationError{Reason: fmt.Sprintf("invalid item_id: %s", itemID)}
	}
	return s.repo.CurrentStock(ctx, id)
}

func (s *service) History(ctx context.Context, itemID string, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if itemID == "" {
		return s.repo.List(ctx, limit)
	}
	id, err := uuid.Parse(itemID)
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("invalid item_id: %s", itemID)}
	}
	return s.repo.ListByItem(ctx, id, limit)
}
