package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/veridia/plot-reservation/internal/outbox"
)

// OutboxRepo persists outbox events in MySQL.  It implements
// outbox.Store.
type OutboxRepo struct {
	db *sql.DB
}

// NewOutboxRepo returns a new OutboxRepo bound to the given database.
func NewOutboxRepo(db *sql.DB) *OutboxRepo { return &OutboxRepo{db: db} }

// InsertTx appends events within an existing transaction, so the
// business write and its side effects commit or roll back together.
func (r *OutboxRepo) InsertTx(ctx context.Context, tx *sql.Tx, events ...outbox.Event) error {
	for _, e := range events {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO outbox_events (aggregate_type, aggregate_id, type, payload, status)
             VALUES (?, ?, ?, ?, 'pending')`,
			e.AggregateType, e.AggregateID, e.Type, e.Payload,
		); err != nil {
			return err
		}
	}
	return nil
}

// LockBatch claims up to batchSize pending events whose lease is free
// or lapsed.  The claim token is unique per call so the follow-up
// SELECT sees exactly the rows this claim took.
func (r *OutboxRepo) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	now := time.Now().UTC()
	token := fmt.Sprintf("%s-%d", relayID, now.UnixNano())

	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET claimed_by = ?, claimed_at = ?
         WHERE status = 'pending' AND (claimed_at IS NULL OR claimed_at <= ?)
         ORDER BY id LIMIT ?`,
		token, now, now.Add(-lease), batchSize,
	)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_type, aggregate_id, type, payload, status, retry_count, last_error, created_at
         FROM outbox_events WHERE claimed_by = ? ORDER BY id`, token)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var (
			e       outbox.Event
			lastErr sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.Type, &e.Payload,
			&e.Status, &e.RetryCount, &lastErr, &e.CreatedAt); err != nil {
			return nil, err
		}
		if lastErr.Valid {
			v := lastErr.String
			e.LastError = &v
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkSent finalizes dispatched events.
func (r *OutboxRepo) MarkSent(ctx context.Context, ids []uint64) error {
	for _, id := range ids {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE outbox_events SET status = 'sent', claimed_by = NULL WHERE id = ?`, id,
		); err != nil {
			return err
		}
	}
	return nil
}

// Release returns an event to the pending pool after a failure.  The
// claim timestamp is left in place so the event only becomes eligible
// again once the lease lapses, spacing out retries.
func (r *OutboxRepo) Release(ctx context.Context, id uint64, errMsg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET claimed_by = NULL, retry_count = retry_count + 1, last_error = ?
         WHERE id = ?`, errMsg, id)
	return err
}

// Fail dead-letters an event.
func (r *OutboxRepo) Fail(ctx context.Context, id uint64, errMsg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET status = 'failed', claimed_by = NULL,
            retry_count = retry_count + 1, last_error = ?
         WHERE id = ?`, errMsg, id)
	return err
}
