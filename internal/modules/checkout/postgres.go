package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stockyardhq/stockyard-backend/internal/modules/ledger"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) Snapshot(ctx context.Context, itemIDs []uuid.UUID) (map[uuid.UUID]ItemSnapshot, error) {
	ids := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		ids[i] = id.String()
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price_cents, stock FROM items
		WHERE is_active=true AND id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer rows.Close()

	snapshots := make(map[uuid.UUID]ItemSnapshot, len(itemIDs))
	for rows.Next() {
		var s ItemSnapshot
		if err := rows.Scan(&s.ID, &s.Name, &s.PriceCents, &s.Stock); err != nil {
			return nil, mapStoreError(err)
		}
		snapshots[s.ID] = s
	}
	return snapshots, rows.Err()
}

// CreateOrder runs the whole commit as one transaction: order number
// assignment, order row, order lines, and the sale ledger batch. The ledger
// step holds row locks on the items, so the first of two racing checkouts
// wins and the loser revalidates against fresh stock.
func (r *postgresRepo) CreateOrder(ctx context.Context, o *Order, entries []*ledger.Entry) (map[uuid.UUID]ledger.StockResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer tx.Rollback()

	o.OrderNo, err = nextOrderNumber(ctx, tx)
	if err != nil {
		return nil, mapStoreError(err)
	}

	// RETURNING keeps the order we hand back on the database clock.
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders
		  (id, order_no, status, subtotal, discount, tax, total, payment_method, customer_id, user_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		o.ID, o.OrderNo, o.Status, o.Subtotal, o.Discount, o.Tax, o.Total,
		o.PaymentMethod, o.CustomerID, o.UserID).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, mapStoreError(fmt.Errorf("insert order: %w", err))
	}

	for _, line := range o.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (id, order_id, item_id, name, unit_price, quantity, line_total)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			line.ID, o.ID, line.ItemID, line.Name, line.UnitPrice, line.Quantity, line.LineTotal)
		if err != nil {
			return nil, mapStoreError(fmt.Errorf("insert order line: %w", err))
		}
	}

	stocks, err := ledger.ApplyEntries(ctx, tx, entries)
	if err != nil {
		var insufficient *ledger.InsufficientStockError
		if errors.As(err, &insufficient) || errors.Is(err, ledger.ErrUnknownItem) {
			return nil, err
		}
		return nil, mapStoreError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapStoreError(err)
	}
	return stocks, nil
}

// nextOrderNumber bumps the per-day counter row and formats the monotonic
// order number. Runs inside the checkout transaction so two commits can
// never share a number.
func nextOrderNumber(ctx context.Context, tx *sql.Tx) (string, error) {
	day := time.Now().UTC().Format("20060102")
	var seq int
	err := tx.QueryRowContext(ctx, `
		INSERT INTO order_counters (day, value) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET value = order_counters.value + 1
		RETURNING value`, day).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("next order number: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%04d", day, seq), nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*Order, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	o, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT id, order_no, status, subtotal, discount, tax, total, payment_method,
		       customer_id, user_id, created_at, updated_at
		FROM orders WHERE id=$1`, uid))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, mapStoreError(err)
	}
	o.Lines, err = r.listLines(ctx, o.ID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return o, nil
}

func (r *postgresRepo) List(ctx context.Context, status string, limit int) ([]*Order, error) {
	query := `SELECT id, order_no, status, subtotal, discount, tax, total, payment_method,
	                 customer_id, user_id, created_at, updated_at
	          FROM orders`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status=$1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, mapStoreError(err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateStatus is a compare-and-swap on the status column. Zero rows affected
// means the order moved since the caller's read (the row itself was verified
// by that read; the engine never deletes orders), so the write is a lost race.
func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, from, to OrderStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`, to, id, from)
	if err != nil {
		return mapStoreError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func (r *postgresRepo) SalesTotalSince(ctx context.Context, t time.Time) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total), 0) FROM orders
		WHERE created_at >= $1 AND status <> $2`, t, StatusCancelled).Scan(&total)
	if err != nil {
		return 0, mapStoreError(err)
	}
	return total, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

type rowScanner interface{ Scan(dest ...interface{}) error }

func scanOrder(row rowScanner) (*Order, error) {
	o := &Order{}
	var customerID, userID sql.NullString
	err := row.Scan(&o.ID, &o.OrderNo, &o.Status, &o.Subtotal, &o.Discount, &o.Tax,
		&o.Total, &o.PaymentMethod, &customerID, &userID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		cid, _ := uuid.Parse(customerID.String)
		o.CustomerID = &cid
	}
	if userID.Valid {
		uid, _ := uuid.Parse(userID.String)
		o.UserID = &uid
	}
	return o, nil
}

func (r *postgresRepo) listLines(ctx context.Context, orderID uuid.UUID) ([]*OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, item_id, name, unit_price, quantity, line_total
		FROM order_lines WHERE order_id=$1 ORDER BY name ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []*OrderLine
	for rows.Next() {
		line := &OrderLine{}
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ItemID, &line.Name,
			&line.UnitPrice, &line.Quantity, &line.LineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// mapStoreError sorts storage failures into the retryable conflict bucket
// (serialization failure, deadlock) or the generic persistence bucket.
func mapStoreError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
