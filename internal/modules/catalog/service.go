package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service defines catalog business logic.
type Service interface {
	CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error)
	GetItem(ctx context.Context, id string) (*Item, error)
	// ListItems returns active items; lowStockBelow < 0 disables the filter.
	ListItems(ctx context.Context, lowStockBelow int) ([]*Item, error)
	UpdateItem(ctx context.Context, id string, req UpdateItemRequest) (*Item, error)
	DeactivateItem(ctx context.Context, id string) error
}

type service struct{ repo Repository }

// NewService creates a new catalog service.
func NewService(repo Repository) Service { return &service{repo: repo} }

func (s *service) CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error) {
	if req.Name == "" {
		return nil, &ValidationError{Reason: "name is required"}
	}
	if req.PriceCents < 0 || req.CostCents < 0 {
		return nil, &ValidationError{Reason: "price and cost must not be negative"}
	}
	item := &Item{
		ID:         uuid.New(),
		Name:       req.Name,
		Category:   req.Category,
		PriceCents: req.PriceCents,
		CostCents:  req.CostCents,
		IsActive:   true,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) GetItem(ctx context.Context, id string) (*Item, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListItems(ctx context.Context, lowStockBelow int) ([]*Item, error) {
	return s.repo.List(ctx, lowStockBelow)
}

func (s *service) UpdateItem(ctx context.Context, id string, req UpdateItemRequest) (*Item, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if req.Name != "" {
		item.Name = req.Name
	}
	if req.Category != "" {
		item.Category = req.Category
	}
	if req.PriceCents > 0 {
		item.PriceCents = req.PriceCents
	}
	if req.CostCents > 0 {
		item.CostCents = req.CostCents
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) DeactivateItem(ctx context.Context, id string) error {
	return s.repo.Deactivate(ctx, id)
}
