// Package booking orchestrates the reservation and purchase sagas
// across the plot inventory store, the transaction ledger, the invoice
// renderer and the notification dispatcher.  The two stores commit
// independently, so the orchestrator sequences guarded steps and
// compensates instead of assuming a shared transaction.
package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/veridia/plot-reservation/internal/inventory"
	"github.com/veridia/plot-reservation/internal/ledger"
	"github.com/veridia/plot-reservation/internal/model"
	"github.com/veridia/plot-reservation/internal/outbox"
	"github.com/veridia/plot-reservation/internal/repository"
)

// PlotReader serves plot lookups for precondition checks.
type PlotReader interface {
	GetPlot(ctx context.Context, location string, id uint64) (model.Plot, error)
}

// TransactionLedger is the ledger surface the orchestrator drives.
type TransactionLedger interface {
	CreateReservation(ctx context.Context, in ledger.CreateReservationInput, events ledger.EventsFunc) (model.Transaction, error)
	CreatePurchase(ctx context.Context, in ledger.CreatePurchaseInput, events ledger.EventsFunc) (model.Transaction, error)
	Complete(ctx context.Context, id uint64, paymentRef string, events ledger.EventsFunc) (model.Transaction, error)
	Get(ctx context.Context, id uint64, ownerID string) (model.Transaction, error)
}

// Service is the reservation/purchase orchestrator and payment
// verifier.
type Service struct {
	plots             PlotReader
	updater           inventory.StatusUpdater
	ledger            TransactionLedger
	log               *slog.Logger
	minDepositPercent int64
	bankAccounts      []string
}

// NewService wires the orchestrator.  The status updater may be the
// in-process inventory service or the RPC client for a remote store.
func NewService(plots PlotReader, updater inventory.StatusUpdater, txLedger TransactionLedger, log *slog.Logger, minDepositPercent int64, bankAccounts []string) *Service {
	return &Service{
		plots:             plots,
		updater:           updater,
		ledger:            txLedger,
		log:               log,
		minDepositPercent: minDepositPercent,
		bankAccounts:      bankAccounts,
	}
}

// ReserveInput starts a deposit-backed reservation.
type ReserveInput struct {
	PlotID        uint64
	Location      string
	DepositAmount int64
	PaymentMethod string
	Customer      model.Customer
	UserID        string
}

// PurchaseInput starts a full-price purchase.
type PurchaseInput struct {
	PlotID        uint64
	Location      string
	Amount        int64
	PaymentMethod string
	Customer      model.Customer
	UserID        string
}

// Result is the complete success payload of a booking operation.
// Callers always receive either this or a typed error, never a
// partial-success response.
type Result struct {
	Transaction         model.Transaction `json:"transaction"`
	Plot                model.PlotSummary `json:"plot"`
	PaymentInstructions []string          `json:"payment_instructions"`
	Invoice             []byte            `json:"invoice,omitempty"`
}

// Reserve places a deposit-backed hold on an available plot.
//
// The plot is claimed by compare-and-swap before the ledger write, so
// of two concurrent reservations exactly one succeeds and the other
// sees a conflict.  If the ledger write then fails, the claim is
// compensated by releasing the plot; nothing persists.  Invoice and
// notification problems after the ledger commit are logged and
// swallowed, the reservation stands.
func (s *Service) Reserve(ctx context.Context, in ReserveInput) (Result, error) {
	plot, err := s.plots.GetPlot(ctx, in.Location, in.PlotID)
	if err != nil {
		return Result{}, err
	}
	if plot.Status != model.PlotAvailable {
		return Result{}, repository.ErrStatusConflict
	}

	minDeposit := plot.Price * s.minDepositPercent / 100
	if in.DepositAmount < minDeposit {
		return Result{}, ledger.Errorf("Minimum deposit is %d", minDeposit)
	}
	if in.DepositAmount > plot.Price {
		return Result{}, ledger.Errorf("Deposit exceeds total amount")
	}

	claimed, err := s.updater.UpdateStatus(ctx, inventory.UpdateStatusInput{
		PlotID:         in.PlotID,
		Location:       in.Location,
		Status:         model.PlotReserved,
		ExpectedStatus: model.PlotAvailable,
		Customer:       &in.Customer,
		PaidAmount:     in.DepositAmount,
	})
	if err != nil {
		return Result{}, err
	}

	var invoiceBytes []byte
	t, err := s.ledger.CreateReservation(ctx, ledger.CreateReservationInput{
		PlotID:        in.PlotID,
		Location:      in.Location,
		TotalAmount:   plot.Price,
		DepositAmount: in.DepositAmount,
		PaymentMethod: in.PaymentMethod,
		Customer:      in.Customer,
		UserID:        in.UserID,
		ClaimedAt:     claimTime(claimed),
	}, func(t model.Transaction) ([]outbox.Event, error) {
		invoiceBytes = s.renderInvoice(t, claimed)
		return s.bookingEvents(t, claimed, invoiceBytes), nil
	})
	if err != nil {
		s.compensateClaim(ctx, in.PlotID, in.Location, model.PlotReserved)
		return Result{}, err
	}

	return Result{
		Transaction:         t,
		Plot:                claimed.Summary(),
		PaymentInstructions: s.bankAccounts,
		Invoice:             invoiceBytes,
	}, nil
}

// Purchase places a full-payment hold on an available plot.  Same
// shape as Reserve with an exact-amount precondition and the plot
// parked in hold instead of reserved.
func (s *Service) Purchase(ctx context.Context, in PurchaseInput) (Result, error) {
	plot, err := s.plots.GetPlot(ctx, in.Location, in.PlotID)
	if err != nil {
		return Result{}, err
	}
	if plot.Status != model.PlotAvailable {
		return Result{}, repository.ErrStatusConflict
	}
	if in.Amount != plot.Price {
		return Result{}, ledger.Errorf("Invalid payment amount")
	}

	claimed, err := s.updater.UpdateStatus(ctx, inventory.UpdateStatusInput{
		PlotID:         in.PlotID,
		Location:       in.Location,
		Status:         model.PlotHold,
		ExpectedStatus: model.PlotAvailable,
		Customer:       &in.Customer,
		PaidAmount:     in.Amount,
	})
	if err != nil {
		return Result{}, err
	}

	var invoiceBytes []byte
	t, err := s.ledger.CreatePurchase(ctx, ledger.CreatePurchaseInput{
		PlotID:        in.PlotID,
		Location:      in.Location,
		Amount:        in.Amount,
		PlotPrice:     plot.Price,
		PaymentMethod: in.PaymentMethod,
		Customer:      in.Customer,
		UserID:        in.UserID,
		ClaimedAt:     claimTime(claimed),
	}, func(t model.Transaction) ([]outbox.Event, error) {
		invoiceBytes = s.renderInvoice(t, claimed)
		return s.bookingEvents(t, claimed, invoiceBytes), nil
	})
	if err != nil {
		s.compensateClaim(ctx, in.PlotID, in.Location, model.PlotHold)
		return Result{}, err
	}

	return Result{
		Transaction:         t,
		Plot:                claimed.Summary(),
		PaymentInstructions: s.bankAccounts,
		Invoice:             invoiceBytes,
	}, nil
}

// claimTime extracts the claim stamp a successful claim wrote onto the
// plot.  The ledger entry records it as the proof of claim ownership.
func claimTime(p model.Plot) time.Time {
	if p.ReservedAt == nil {
		return time.Time{}
	}
	return *p.ReservedAt
}

// compensateClaim releases a plot claimed by a booking whose ledger
// write failed.  If the release itself fails the plot stays parked
// until its hold lapses; the error is logged for reconciliation.
func (s *Service) compensateClaim(ctx context.Context, plotID uint64, location string, from model.PlotStatus) {
	_, err := s.updater.UpdateStatus(ctx, inventory.UpdateStatusInput{
		PlotID:         plotID,
		Location:       location,
		Status:         model.PlotAvailable,
		ExpectedStatus: from,
	})
	if err != nil {
		s.log.Error("compensating release failed; plot stays parked until hold expiry",
			"plot_id", plotID, "location", location, "err", err)
	}
}
