// Package outbox implements the transactional outbox that anchors the
// booking saga.  Side effects that must eventually happen (the remote
// plot status update after payment verification, email and SMS
// notifications) are recorded as rows in the same database transaction
// as the ledger write, then driven to completion by the relay.  A
// crash or network failure after the ledger commit loses nothing: the
// pending row is retried until it succeeds.
package outbox

import (
	"context"
	"time"
)

// Status of an outbox event row.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Event types dispatched by the relay.
const (
	TypeEmail    = "notification.email"
	TypeSMS      = "notification.sms"
	TypeMarkSold = "plot.mark_sold"
)

// Event is one durable side effect awaiting dispatch.
type Event struct {
	ID            uint64
	AggregateType string // e.g. "transaction"
	AggregateID   string
	Type          string
	Payload       []byte
	Status        Status
	RetryCount    int
	LastError     *string
	CreatedAt     time.Time
}

// Store persists and claims outbox events.  Claimed rows carry a
// lease; a row whose lease lapsed is eligible for claiming again, so
// events are never stranded by a crashed relay.
type Store interface {
	// LockBatch claims up to batchSize dispatchable events for the
	// given relay and lease duration.
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	// MarkSent finalizes successfully dispatched events.
	MarkSent(ctx context.Context, ids []uint64) error
	// Release returns an event to pending after a dispatch failure,
	// recording the error.  The lease timestamp is kept so the retry
	// waits out the lease, which doubles as the backoff interval.
	Release(ctx context.Context, id uint64, errMsg string) error
	// Fail dead-letters an event permanently.
	Fail(ctx context.Context, id uint64, errMsg string) error
}

// Dispatcher routes one claimed event to its destination.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Event) error
}

// PermanentError marks a dispatch failure that retrying cannot fix.
// The relay dead-letters the event immediately instead of releasing it
// for another attempt.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string { return "permanent dispatch failure: " + e.Err.Error() }

func (e PermanentError) Unwrap() error { return e.Err }
