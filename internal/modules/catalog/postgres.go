package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) Create(ctx context.Context, item *Item) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items (id, name, category, price_cents, cost_cents, stock, is_active)
		VALUES ($1,$2,$3,$4,$5,0,true)`,
		item.ID, item.Name, item.Category, item.PriceCents, item.CostCents)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*Item, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	item := &Item{}
	err = r.db.QueryRowContext(ctx, `
		SELECT id, name, category, price_cents, cost_cents, stock, is_active, created_at, updated_at
		FROM items WHERE id=$1`, uid).Scan(
		&item.ID, &item.Name, &item.Category, &item.PriceCents, &item.CostCents,
		&item.Stock, &item.IsActive, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *postgresRepo) List(ctx context.Context, lowStockBelow int) ([]*Item, error) {
	query := `SELECT id, name, category, price_cents, cost_cents, stock, is_active, created_at, updated_at
	          FROM items WHERE is_active=true`
	args := []interface{}{}
	if lowStockBelow >= 0 {
		query += ` AND stock <= $1`
		args = append(args, lowStockBelow)
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item := &Item{}
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, &item.PriceCents,
			&item.CostCents, &item.Stock, &item.IsActive, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *postgresRepo) Update(ctx context.Context, item *Item) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE items SET name=$1, category=$2, price_cents=$3, cost_cents=$4, is_active=$5, updated_at=$6
		WHERE id=$7`,
		item.Name, item.Category, item.PriceCents, item.CostCents, item.IsActive, time.Now(), item.ID)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

func (r *postgresRepo) Deactivate(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE items SET is_active=false, updated_at=$1 WHERE id=$2`, time.Now(), uid)
	return err
}
