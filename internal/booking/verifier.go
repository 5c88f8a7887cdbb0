package booking

import (
	"context"
	"errors"

	"github.com/veridia/plot-reservation/internal/inventory"
	"github.com/veridia/plot-reservation/internal/model"
	"github.com/veridia/plot-reservation/internal/outbox"
	"github.com/veridia/plot-reservation/internal/repository"
)

// VerifyResult is the payload returned by payment verification.
type VerifyResult struct {
	Transaction model.Transaction `json:"transaction"`
	Plot        model.PlotSummary `json:"plot"`
	// AlreadyCompleted marks replays of an earlier verification that
	// were answered as a no-op.
	AlreadyCompleted bool `json:"already_completed,omitempty"`
}

// VerifyPayment closes the loop on a booking: the ledger entry moves
// to completed and the plot to sold.
//
// Completion requires the plot claim behind the entry to still stand.
// A reservation whose hold lapsed (and may have been reclaimed by a
// newer booking) verifies to ErrStatusConflict; the entry stays
// pending and the plot stays with its current claimant.
//
// The completion and a durable mark-sold outbox event commit in one
// ledger transaction; the plot transition is then attempted
// synchronously and, if it fails, retried to completion by the outbox
// relay.  Verifying an already-completed transaction is a no-op and
// never double-counts a payment.  ownerID, when non-empty, restricts
// the lookup to the caller's own transactions.
func (s *Service) VerifyPayment(ctx context.Context, transactionID uint64, paymentRef string, ownerID string) (VerifyResult, error) {
	t, err := s.ledger.Get(ctx, transactionID, ownerID)
	if err != nil {
		return VerifyResult{}, err
	}
	if t.Status == model.TransactionCompleted {
		return s.verifyReplay(ctx, t)
	}
	if err := s.checkClaim(ctx, t); err != nil {
		return VerifyResult{}, err
	}

	completed, err := s.ledger.Complete(ctx, transactionID, paymentRef, func(t model.Transaction) ([]outbox.Event, error) {
		return s.verificationEvents(t), nil
	})
	if err != nil {
		// A concurrent verification beat this one to the guard.
		if errors.Is(err, repository.ErrTransactionCompleted) {
			return s.verifyReplay(ctx, t)
		}
		return VerifyResult{}, err
	}

	plotSummary := s.markSoldNow(ctx, completed)
	return VerifyResult{Transaction: completed, Plot: plotSummary}, nil
}

// checkClaim verifies the plot is still claimed by this transaction's
// booking.  The store presents an expired reservation as available and
// a reclaimed plot carries the new claimant's stamps, so both cases
// surface as ErrStatusConflict here, before any money is recorded.
func (s *Service) checkClaim(ctx context.Context, t model.Transaction) error {
	plot, err := s.plots.GetPlot(ctx, t.Location, t.PlotID)
	if err != nil {
		return err
	}
	if plot.Status != pendingFor(t.Type) ||
		plot.Customer == nil || plot.Customer.NationalID != t.Customer.NationalID ||
		plot.ReservedAt == nil || t.ClaimedAt == nil || !plot.ReservedAt.Equal(*t.ClaimedAt) {
		return repository.ErrStatusConflict
	}
	return nil
}

// pendingFor maps a transaction type to the plot status its claim
// parked the plot in.
func pendingFor(tt model.TransactionType) model.PlotStatus {
	if tt == model.TransactionPurchase {
		return model.PlotHold
	}
	return model.PlotReserved
}

// verifyReplay answers an idempotent retry of a finished verification.
func (s *Service) verifyReplay(ctx context.Context, t model.Transaction) (VerifyResult, error) {
	current, err := s.ledger.Get(ctx, t.ID, "")
	if err != nil {
		return VerifyResult{}, err
	}
	res := VerifyResult{Transaction: current, AlreadyCompleted: true}
	if plot, err := s.plots.GetPlot(ctx, t.Location, t.PlotID); err == nil {
		res.Plot = plot.Summary()
	}
	return res, nil
}

// markSoldNow attempts the plot transition synchronously so the caller
// usually sees the sold plot immediately.  On failure the durable
// outbox event already written by Complete carries the transition to
// eventual success, so the error is only logged here.
func (s *Service) markSoldNow(ctx context.Context, t model.Transaction) model.PlotSummary {
	plot, err := s.updater.UpdateStatus(ctx, inventory.UpdateStatusInput{
		PlotID:          t.PlotID,
		Location:        t.Location,
		Status:          model.PlotSold,
		ExpectedStatus:  pendingFor(t.Type),
		TransactionID:   t.ID,
		OwnerNationalID: t.Customer.NationalID,
		ClaimedAt:       t.ClaimedAt,
	})
	if err != nil {
		s.log.Warn("mark sold deferred to outbox relay",
			"plot_id", t.PlotID, "transaction_id", t.ID, "err", err)
		if p, gerr := s.plots.GetPlot(ctx, t.Location, t.PlotID); gerr == nil {
			return p.Summary()
		}
		return model.PlotSummary{ID: t.PlotID, Location: t.Location}
	}
	return plot.Summary()
}
