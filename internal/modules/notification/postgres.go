package notification

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

func (r *postgresRepo) Create(ctx context.Context, n *Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, type, title, message, payload, read)
		VALUES ($1,$2,$3,$4,$5,false)`,
		n.ID, n.Type, n.Title, n.Message, nullableJSON(n.Payload))
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *postgresRepo) List(ctx context.Context, limit int) ([]*Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, title, message, payload, read, created_at
		FROM notifications ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n := &Notification{}
		var payload []byte
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &payload, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Payload = payload
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r *postgresRepo) MarkRead(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return sql.ErrNoRows
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read=true WHERE id=$1`, uid)
	if err != nil {
		return err
	}
	// Re-reading an already-read notification is fine; only a missing row
	// is an error, and the update matches read rows too.
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *postgresRepo) MarkAllRead(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE notifications SET read=true WHERE read=false`)
	return err
}

func (r *postgresRepo) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM notifications`)
	return err
}

func (r *postgresRepo) ExistsSince(ctx context.Context, typ Type, t time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM notifications WHERE type=$1 AND created_at >= $2)`,
		typ, t).Scan(&exists)
	return exists, err
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
