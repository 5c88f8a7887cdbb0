package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/veridia/plot-reservation/internal/inventory"
	"github.com/veridia/plot-reservation/internal/model"
	"github.com/veridia/plot-reservation/internal/notify"
	"github.com/veridia/plot-reservation/internal/outbox"
	"github.com/veridia/plot-reservation/internal/repository"
)

// NotificationPublisher pushes a notification event onto the dispatch
// queue.
type NotificationPublisher interface {
	Publish(ctx context.Context, event notify.Event) error
}

// Dispatcher routes outbox events to their destinations: notification
// events to the queue and mark-sold events to the plot inventory
// store.  It implements outbox.Dispatcher.
type Dispatcher struct {
	log       *slog.Logger
	publisher NotificationPublisher
	updater   inventory.StatusUpdater
}

// NewDispatcher wires the outbox event router.
func NewDispatcher(log *slog.Logger, publisher NotificationPublisher, updater inventory.StatusUpdater) *Dispatcher {
	return &Dispatcher{log: log, publisher: publisher, updater: updater}
}

// Dispatch handles one claimed outbox event.
func (d *Dispatcher) Dispatch(ctx context.Context, e outbox.Event) error {
	switch e.Type {
	case outbox.TypeEmail, outbox.TypeSMS:
		var ev notify.Event
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			return fmt.Errorf("decode notification payload: %w", err)
		}
		return d.publisher.Publish(ctx, ev)
	case outbox.TypeMarkSold:
		var p MarkSoldPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return fmt.Errorf("decode mark-sold payload: %w", err)
		}
		_, err := d.updater.UpdateStatus(ctx, inventory.UpdateStatusInput{
			PlotID:          p.PlotID,
			Location:        p.Location,
			Status:          model.PlotSold,
			ExpectedStatus:  p.From,
			TransactionID:   p.TransactionID,
			OwnerNationalID: p.OwnerNationalID,
			ClaimedAt:       p.ClaimedAt,
		})
		// A conflict means the claim behind the completed entry no
		// longer owns the plot; no number of retries changes that.
		if errors.Is(err, repository.ErrStatusConflict) ||
			errors.Is(err, repository.ErrPlotNotFound) ||
			errors.Is(err, inventory.ErrInvalidTransition) {
			return outbox.PermanentError{Err: err}
		}
		return err
	default:
		return fmt.Errorf("unknown outbox event type %q", e.Type)
	}
}
