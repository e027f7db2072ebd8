package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// ApplyEntries takes it so the checkout coordinator can run the ledger step
// inside its own order transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// ApplyEntries validates and writes a batch of ledger entries using q, which
// must already be inside a transaction when atomicity across other writes is
// required. Item rows are locked in a stable order to keep concurrent batches
// deadlock-free; the lock is what serializes two checkouts racing for the
// same item. Returns the resulting cached stock per item.
func ApplyEntries(ctx context.Context, q Querier, entries []*Entry) (map[uuid.UUID]StockResult, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("ledger: empty batch")
	}

	// Net effect per item; a batch may touch the same item more than once.
	netDelta := make(map[uuid.UUID]int)
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		if _, seen := netDelta[e.ItemID]; !seen {
			ids = append(ids, e.ItemID)
		}
		netDelta[e.ItemID] += e.Delta
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, name, stock FROM items
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, pq.Array(idStrings))
	if err != nil {
		return nil, fmt.Errorf("lock items: %w", err)
	}

	type itemRow struct {
		name  string
		stock int
	}
	locked := make(map[uuid.UUID]itemRow, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var row itemRow
		if err := rows.Scan(&id, &row.name, &row.stock); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan item: %w", err)
		}
		locked[id] = row
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var shortages []Shortage
	for _, id := range ids {
		row, ok := locked[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}
		if row.stock+netDelta[id] < 0 {
			shortages = append(shortages, Shortage{
				ItemID:    id,
				Name:      row.name,
				Requested: -netDelta[id],
				Available: row.stock,
			})
		}
	}
	if len(shortages) > 0 {
		return nil, &InsufficientStockError{Shortages: shortages}
	}

	for _, e := range entries {
		_, err := q.ExecContext(ctx, `
			INSERT INTO stock_entries (id, item_id, delta, reason, order_id, note)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			e.ID, e.ItemID, e.Delta, e.Reason, e.OrderID, e.Note)
		if err != nil {
			return nil, fmt.Errorf("insert stock entry: %w", err)
		}
	}

	result := make(map[uuid.UUID]StockResult, len(ids))
	for _, id := range ids {
		newStock := locked[id].stock + netDelta[id]
		_, err := q.ExecContext(ctx,
			`UPDATE items SET stock=$1, updated_at=now() WHERE id=$2`, newStock, id)
		if err != nil {
			return nil, fmt.Errorf("update cached stock: %w", err)
		}
		result[id] = StockResult{Name: locked[id].name, Stock: newStock}
	}
	return result, nil
}

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) Append(ctx context.Context, entries []*Entry) (map[uuid.UUID]StockResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stocks, err := ApplyEntries(ctx, tx, entries)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stocks, nil
}

func (r *postgresRepo) CurrentStock(ctx context.Context, itemID uuid.UUID) (int, error) {
	var stock int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(delta), 0) FROM stock_entries WHERE item_id=$1`, itemID).Scan(&stock)
	return stock, err
}

func (r *postgresRepo) CachedStock(ctx context.Context, itemID uuid.UUID) (int, error) {
	var stock int
	err := r.db.QueryRowContext(ctx,
		`SELECT stock FROM items WHERE id=$1`, itemID).Scan(&stock)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	return stock, err
}

func (r *postgresRepo) ListByItem(ctx context.Context, itemID uuid.UUID, limit int) ([]*Entry, error) {
	return r.queryEntries(ctx, `
		SELECT id, item_id, delta, reason, order_id, note, created_at
		FROM stock_entries WHERE item_id=$1
		ORDER BY created_at DESC LIMIT $2`, itemID, limit)
}

func (r *postgresRepo) List(ctx context.Context, limit int) ([]*Entry, error) {
	return r.queryEntries(ctx, `
		SELECT id, item_id, delta, reason, order_id, note, created_at
		FROM stock_entries
		ORDER BY created_at DESC LIMIT $1`, limit)
}

func (r *postgresRepo) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		var orderID sql.NullString
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Delta, &e.Reason, &orderID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		if orderID.Valid {
			oid, _ := uuid.Parse(orderID.String)
			e.OrderID = &oid
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
