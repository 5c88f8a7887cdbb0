// Package ledger owns the transaction records for reservations and
// purchases.  Every write couples the ledger row with its outbox
// events in one database transaction, making the committed row the
// durability anchor of the booking saga.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/veridia/plot-reservation/internal/clock"
	"github.com/veridia/plot-reservation/internal/model"
	"github.com/veridia/plot-reservation/internal/outbox"
	"github.com/veridia/plot-reservation/internal/repository"
)

// ValidationError reports a business-rule violation with user-facing
// text.  Handlers translate it into an HTTP 400 response.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

// Errorf builds a ValidationError from a format string.
func Errorf(format string, args ...any) ValidationError {
	return ValidationError{Message: fmt.Sprintf(format, args...)}
}

// EventsFunc builds the outbox events that must commit atomically with
// a ledger write.  It receives the written entry so payloads can
// reference its id.
type EventsFunc func(t model.Transaction) ([]outbox.Event, error)

// TransactionRepository is the data access the ledger needs.
type TransactionRepository interface {
	DB() *sql.DB
	CreateTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error
	CompleteTx(ctx context.Context, tx *sql.Tx, id uint64, paymentRef string, completedAt time.Time) error
	GetByID(ctx context.Context, id uint64, ownerID string) (model.Transaction, error)
	ListByUser(ctx context.Context, userID string, f repository.ListFilter, page, limit int) ([]model.Transaction, int, error)
}

// OutboxRepository appends events inside the ledger's transaction.
type OutboxRepository interface {
	InsertTx(ctx context.Context, tx *sql.Tx, events ...outbox.Event) error
}

// Service implements the transaction ledger.
type Service struct {
	repo              TransactionRepository
	outbox            OutboxRepository
	clock             clock.Clock
	log               *slog.Logger
	minDepositPercent int64
}

// NewService constructs the ledger.  minDepositPercent is the floor a
// reservation deposit must clear, as a percentage of the total.
func NewService(repo TransactionRepository, outboxRepo OutboxRepository, clk clock.Clock, log *slog.Logger, minDepositPercent int64) *Service {
	return &Service{repo: repo, outbox: outboxRepo, clock: clk, log: log, minDepositPercent: minDepositPercent}
}

// CreateReservationInput carries a deposit-backed reservation entry.
// ClaimedAt is the claim stamp the inventory store wrote when the plot
// was taken; the entry records it so payment verification can prove
// the claim it is converting still stands.
type CreateReservationInput struct {
	PlotID        uint64
	Location      string
	TotalAmount   int64
	DepositAmount int64
	PaymentMethod string
	Customer      model.Customer
	UserID        string
	ClaimedAt     time.Time
}

// CreateReservation appends a pending reservation entry.  The deposit
// must be at least minDepositPercent of the total; the check is
// repeated here even though the orchestrator validates first, so the
// ledger can never record an undersized deposit.
func (s *Service) CreateReservation(ctx context.Context, in CreateReservationInput, events EventsFunc) (model.Transaction, error) {
	t, err := buildReservation(in, s.clock.Now(), s.minDepositPercent)
	if err != nil {
		return model.Transaction{}, err
	}
	return s.create(ctx, t, events)
}

// buildReservation validates and assembles a reservation entry.
func buildReservation(in CreateReservationInput, now time.Time, minDepositPercent int64) (model.Transaction, error) {
	minDeposit := in.TotalAmount * minDepositPercent / 100
	if in.DepositAmount < minDeposit {
		return model.Transaction{}, Errorf("Minimum deposit is %d", minDeposit)
	}
	if in.DepositAmount > in.TotalAmount {
		return model.Transaction{}, Errorf("Deposit exceeds total amount")
	}

	deposit := in.DepositAmount
	return model.Transaction{
		PlotID:          in.PlotID,
		Location:        in.Location,
		Type:            model.TransactionReservation,
		Status:          model.TransactionPending,
		TotalAmount:     in.TotalAmount,
		DepositAmount:   &deposit,
		PaidAmount:      in.DepositAmount,
		RemainingAmount: in.TotalAmount - in.DepositAmount,
		PaymentMethod:   in.PaymentMethod,
		Customer:        in.Customer,
		UserID:          in.UserID,
		ClaimedAt:       claimStamp(in.ClaimedAt),
		CreatedAt:       now,
	}, nil
}

func claimStamp(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// CreatePurchaseInput carries a full-price purchase entry.  ClaimedAt
// is the claim stamp, as on CreateReservationInput.
type CreatePurchaseInput struct {
	PlotID        uint64
	Location      string
	Amount        int64
	PlotPrice     int64
	PaymentMethod string
	Customer      model.Customer
	UserID        string
	ClaimedAt     time.Time
}

// CreatePurchase appends a pending purchase entry.  The amount must
// equal the plot price observed at creation time, exactly.
func (s *Service) CreatePurchase(ctx context.Context, in CreatePurchaseInput, events EventsFunc) (model.Transaction, error) {
	t, err := buildPurchase(in, s.clock.Now())
	if err != nil {
		return model.Transaction{}, err
	}
	return s.create(ctx, t, events)
}

// buildPurchase validates and assembles a purchase entry.
func buildPurchase(in CreatePurchaseInput, now time.Time) (model.Transaction, error) {
	if in.Amount != in.PlotPrice {
		return model.Transaction{}, Errorf("Invalid payment amount")
	}
	return model.Transaction{
		PlotID:          in.PlotID,
		Location:        in.Location,
		Type:            model.TransactionPurchase,
		Status:          model.TransactionPending,
		TotalAmount:     in.Amount,
		PaidAmount:      in.Amount,
		RemainingAmount: 0,
		PaymentMethod:   in.PaymentMethod,
		Customer:        in.Customer,
		UserID:          in.UserID,
		ClaimedAt:       claimStamp(in.ClaimedAt),
		CreatedAt:       now,
	}, nil
}

func (s *Service) create(ctx context.Context, t model.Transaction, events EventsFunc) (model.Transaction, error) {
	tx, err := s.repo.DB().BeginTx(ctx, nil)
	if err != nil {
		return model.Transaction{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.repo.CreateTx(ctx, tx, &t); err != nil {
		return model.Transaction{}, err
	}
	if events != nil {
		evs, err := events(t)
		if err != nil {
			return model.Transaction{}, err
		}
		if err := s.outbox.InsertTx(ctx, tx, evs...); err != nil {
			return model.Transaction{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Transaction{}, err
	}
	committed = true

	s.log.Info("ledger entry created",
		"transaction_id", t.ID, "type", t.Type, "plot_id", t.PlotID, "total", t.TotalAmount)
	return t, nil
}

// Complete marks a pending entry completed and appends the events that
// must follow from it, atomically.  Completing an already-completed
// entry returns repository.ErrTransactionCompleted without touching
// the row, so a replayed verification never double-counts a payment.
func (s *Service) Complete(ctx context.Context, id uint64, paymentRef string, events EventsFunc) (model.Transaction, error) {
	tx, err := s.repo.DB().BeginTx(ctx, nil)
	if err != nil {
		return model.Transaction{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := s.repo.CompleteTx(ctx, tx, id, paymentRef, s.clock.Now()); err != nil {
		return model.Transaction{}, err
	}
	t, err := s.repo.GetByID(ctx, id, "")
	if err != nil {
		return model.Transaction{}, err
	}
	// GetByID reads outside tx; overlay what CompleteTx just wrote so
	// event payloads see the completed entry regardless of isolation.
	t.Status = model.TransactionCompleted
	t.PaidAmount = t.TotalAmount
	t.RemainingAmount = 0
	now := s.clock.Now()
	t.CompletedAt = &now
	t.PaymentRef = &paymentRef

	if events != nil {
		evs, err := events(t)
		if err != nil {
			return model.Transaction{}, err
		}
		if err := s.outbox.InsertTx(ctx, tx, evs...); err != nil {
			return model.Transaction{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Transaction{}, err
	}
	committed = true

	s.log.Info("ledger entry completed", "transaction_id", id, "payment_ref", paymentRef)
	return t, nil
}

// Get fetches one entry.  With a non-empty ownerID, entries belonging
// to other users are reported as not found.
func (s *Service) Get(ctx context.Context, id uint64, ownerID string) (model.Transaction, error) {
	return s.repo.GetByID(ctx, id, ownerID)
}

// ListForUser returns one page of a user's entries plus pagination
// metadata.  Page and limit are clamped to sane bounds.
func (s *Service) ListForUser(ctx context.Context, userID string, f repository.ListFilter, page, limit int) ([]model.Transaction, model.Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	list, total, err := s.repo.ListByUser(ctx, userID, f, page, limit)
	if err != nil {
		return nil, model.Page{}, err
	}
	totalPages := (total + limit - 1) / limit
	meta := model.Page{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
	return list, meta, nil
}
