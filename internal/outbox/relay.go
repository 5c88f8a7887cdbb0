package outbox

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Number of attempts granted to best-effort notification events
// before they are dead-lettered.  Events that the saga depends on
// (plot.mark_sold) are retried without limit as long as the failure is
// retryable: the completed ledger row is the durability anchor and the
// plot must eventually follow it.  A PermanentError dead-letters any
// event at once.
const notificationMaxAttempts = 10

// Relay polls the outbox store and drives pending events to
// completion.
type Relay struct {
	log       *slog.Logger
	store     Store
	dispatch  Dispatcher
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
}

// NewRelay builds a relay with poll and lease defaults suited to a
// single-instance deployment.
func NewRelay(log *slog.Logger, store Store, dispatch Dispatcher, relayID string) *Relay {
	return &Relay{
		log:       log,
		store:     store,
		dispatch:  dispatch,
		relayID:   relayID,
		batchSize: 50,
		interval:  time.Second,
		lease:     15 * time.Second,
	}
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopping", "relay_id", r.relayID)
			return
		case <-t.C:
			r.drain(ctx)
		}
	}
}

// drain claims and dispatches one batch.
func (r *Relay) drain(ctx context.Context) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		r.log.Error("outbox lock batch", "err", err)
		return
	}

	var sent []uint64
	for _, e := range events {
		if err := r.dispatch.Dispatch(ctx, e); err != nil {
			r.handleFailure(ctx, e, err)
			continue
		}
		sent = append(sent, e.ID)
	}
	if len(sent) > 0 {
		if err := r.store.MarkSent(ctx, sent); err != nil {
			r.log.Error("outbox mark sent", "err", err)
		}
	}
}

func (r *Relay) handleFailure(ctx context.Context, e Event, err error) {
	attempts := e.RetryCount + 1
	var perm PermanentError
	if errors.As(err, &perm) {
		r.log.Error("outbox event dead-lettered, failure is permanent",
			"event_id", e.ID, "type", e.Type, "attempts", attempts, "err", err)
		if ferr := r.store.Fail(ctx, e.ID, err.Error()); ferr != nil {
			r.log.Error("outbox fail", "event_id", e.ID, "err", ferr)
		}
		return
	}
	if strings.HasPrefix(e.Type, "notification.") && attempts >= notificationMaxAttempts {
		r.log.Error("outbox event dead-lettered", "event_id", e.ID, "type", e.Type, "attempts", attempts, "err", err)
		if ferr := r.store.Fail(ctx, e.ID, err.Error()); ferr != nil {
			r.log.Error("outbox fail", "event_id", e.ID, "err", ferr)
		}
		return
	}
	r.log.Warn("outbox dispatch failed, will retry", "event_id", e.ID, "type", e.Type, "attempts", attempts, "err", err)
	if rerr := r.store.Release(ctx, e.ID, err.Error()); rerr != nil {
		r.log.Error("outbox release", "event_id", e.ID, "err", rerr)
	}
}
