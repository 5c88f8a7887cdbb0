package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/veridia/plot-reservation/internal/inventory"
	"github.com/veridia/plot-reservation/internal/ledger"
	"github.com/veridia/plot-reservation/internal/logging"
	"github.com/veridia/plot-reservation/internal/model"
	"github.com/veridia/plot-reservation/internal/outbox"
	"github.com/veridia/plot-reservation/internal/repository"
)

// memStore is an in-memory plot store with the same guarded
// transition semantics as the real inventory service, including lazy
// hold expiry driven by a simulated clock.  The mutex makes the status
// check and write one atomic step, which the concurrency tests depend
// on.
type memStore struct {
	mu      sync.Mutex
	now     time.Time
	holdTTL time.Duration
	plots   map[uint64]model.Plot
}

func newMemStore(plots ...model.Plot) *memStore {
	m := &memStore{
		now:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		holdTTL: 24 * time.Hour,
		plots:   make(map[uint64]model.Plot),
	}
	for _, p := range plots {
		m.plots[p.ID] = p
	}
	return m
}

func (m *memStore) advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func (m *memStore) GetPlot(ctx context.Context, location string, id uint64) (model.Plot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plots[id]
	if !ok || p.Location != location {
		return model.Plot{}, repository.ErrPlotNotFound
	}
	return m.present(p), nil
}

// present mirrors the inventory store's lazy expiry: an expired
// reservation reads as available with its booking stamps cleared.
func (m *memStore) present(p model.Plot) model.Plot {
	if !p.ReservationExpired(m.now) {
		return p
	}
	p.Status = model.PlotAvailable
	p.HoldExpiresAt = nil
	p.ReservedAt = nil
	p.Customer = nil
	p.PaidAmount = 0
	p.RemainingAmount = p.Price
	p.TransactionID = nil
	return p
}

func (m *memStore) UpdateStatus(ctx context.Context, in inventory.UpdateStatusInput) (model.Plot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plots[in.PlotID]
	if !ok || p.Location != in.Location {
		return model.Plot{}, repository.ErrPlotNotFound
	}

	switch in.Status {
	case model.PlotReserved, model.PlotHold:
		if p.Status != model.PlotAvailable && !p.ReservationExpired(m.now) {
			return model.Plot{}, repository.ErrStatusConflict
		}
		p.Status = in.Status
		p.Customer = in.Customer
		p.PaidAmount = in.PaidAmount
		p.RemainingAmount = p.Price - in.PaidAmount
		reserved := m.now
		p.ReservedAt = &reserved
		p.HoldExpiresAt = nil
		if in.Status == model.PlotReserved {
			exp := m.now.Add(m.holdTTL)
			p.HoldExpiresAt = &exp
		}
		p.TransactionID = nil
	case model.PlotSold:
		if p.Status != in.ExpectedStatus ||
			p.Customer == nil || p.Customer.NationalID != in.OwnerNationalID ||
			p.ReservedAt == nil || in.ClaimedAt == nil || !p.ReservedAt.Equal(*in.ClaimedAt) {
			return model.Plot{}, repository.ErrStatusConflict
		}
		p.Status = model.PlotSold
		p.PaidAmount = p.Price
		p.RemainingAmount = 0
		p.HoldExpiresAt = nil
		txID := in.TransactionID
		p.TransactionID = &txID
	case model.PlotAvailable:
		if p.Status != in.ExpectedStatus {
			return model.Plot{}, repository.ErrStatusConflict
		}
		p.Status = model.PlotAvailable
		p.Customer = nil
		p.PaidAmount = 0
		p.RemainingAmount = p.Price
		p.ReservedAt = nil
		p.HoldExpiresAt = nil
		p.TransactionID = nil
	default:
		return model.Plot{}, inventory.ErrInvalidTransition
	}

	m.plots[in.PlotID] = p
	return p, nil
}

func (m *memStore) plot(id uint64) model.Plot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plots[id]
}

// memLedger is an in-memory stand-in for the transaction ledger.  It
// records created entries and the outbox events each write produced.
type memLedger struct {
	mu        sync.Mutex
	nextID    uint64
	entries   map[uint64]model.Transaction
	events    []outbox.Event
	createErr error // forced failure for compensation tests
}

func newMemLedger() *memLedger {
	return &memLedger{entries: make(map[uint64]model.Transaction)}
}

func (l *memLedger) CreateReservation(ctx context.Context, in ledger.CreateReservationInput, events ledger.EventsFunc) (model.Transaction, error) {
	deposit := in.DepositAmount
	return l.create(model.Transaction{
		PlotID:          in.PlotID,
		Location:        in.Location,
		Type:            model.TransactionReservation,
		Status:          model.TransactionPending,
		TotalAmount:     in.TotalAmount,
		DepositAmount:   &deposit,
		PaidAmount:      in.DepositAmount,
		RemainingAmount: in.TotalAmount - in.DepositAmount,
		Customer:        in.Customer,
		UserID:          in.UserID,
		ClaimedAt:       stamp(in.ClaimedAt),
	}, events)
}

func (l *memLedger) CreatePurchase(ctx context.Context, in ledger.CreatePurchaseInput, events ledger.EventsFunc) (model.Transaction, error) {
	return l.create(model.Transaction{
		PlotID:          in.PlotID,
		Location:        in.Location,
		Type:            model.TransactionPurchase,
		Status:          model.TransactionPending,
		TotalAmount:     in.Amount,
		PaidAmount:      in.Amount,
		RemainingAmount: 0,
		Customer:        in.Customer,
		UserID:          in.UserID,
		ClaimedAt:       stamp(in.ClaimedAt),
	}, events)
}

func stamp(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (l *memLedger) create(t model.Transaction, events ledger.EventsFunc) (model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.createErr != nil {
		return model.Transaction{}, l.createErr
	}
	l.nextID++
	t.ID = l.nextID
	t.CreatedAt = time.Now()
	if events != nil {
		evs, err := events(t)
		if err != nil {
			return model.Transaction{}, err
		}
		l.events = append(l.events, evs...)
	}
	l.entries[t.ID] = t
	return t, nil
}

func (l *memLedger) Complete(ctx context.Context, id uint64, paymentRef string, events ledger.EventsFunc) (model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.entries[id]
	if !ok {
		return model.Transaction{}, repository.ErrTransactionNotFound
	}
	if t.Status == model.TransactionCompleted {
		return model.Transaction{}, repository.ErrTransactionCompleted
	}
	now := time.Now()
	t.Status = model.TransactionCompleted
	t.PaidAmount = t.TotalAmount
	t.RemainingAmount = 0
	t.PaymentRef = &paymentRef
	t.CompletedAt = &now
	if events != nil {
		evs, err := events(t)
		if err != nil {
			return model.Transaction{}, err
		}
		l.events = append(l.events, evs...)
	}
	l.entries[id] = t
	return t, nil
}

func (l *memLedger) Get(ctx context.Context, id uint64, ownerID string) (model.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.entries[id]
	if !ok || (ownerID != "" && t.UserID != ownerID) {
		return model.Transaction{}, repository.ErrTransactionNotFound
	}
	return t, nil
}

func (l *memLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *memLedger) eventTypes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

func availablePlot() model.Plot {
	return model.Plot{
		ID:              1,
		PlotNo:          "A-12",
		Location:        "riverside",
		StreetName:      "Elm Street",
		Price:           100000,
		AreaSqm:         450,
		Status:          model.PlotAvailable,
		RemainingAmount: 100000,
	}
}

func testCustomer() model.Customer {
	return model.Customer{Name: "Ana Silva", Email: "ana@example.com", Phone: "+351910000000", NationalID: "PT-11111111"}
}

func otherCustomer() model.Customer {
	return model.Customer{Name: "Bruno Costa", Email: "bruno@example.com", Phone: "+351920000000", NationalID: "PT-22222222"}
}

func newTestService(store *memStore, l *memLedger) *Service {
	return NewService(store, store, l, logging.New(), 30, []string{"IBAN PT50 0000 0000 0000 1", "IBAN PT50 0000 0000 0000 2"})
}

func TestReserve(t *testing.T) {
	t.Parallel()

	t.Run("claims the plot and records the entry", func(t *testing.T) {
		store := newMemStore(availablePlot())
		led := newMemLedger()
		svc := newTestService(store, led)

		res, err := svc.Reserve(context.Background(), ReserveInput{
			PlotID:        1,
			Location:      "riverside",
			DepositAmount: 30000,
			PaymentMethod: "bank_transfer",
			Customer:      testCustomer(),
			UserID:        "user-1",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if res.Transaction.Type != model.TransactionReservation || res.Transaction.Status != model.TransactionPending {
			t.Fatalf("unexpected transaction: %+v", res.Transaction)
		}
		if res.Transaction.PaidAmount != 30000 || res.Transaction.RemainingAmount != 70000 {
			t.Fatalf("expected paid 30000 remaining 70000, got %d/%d", res.Transaction.PaidAmount, res.Transaction.RemainingAmount)
		}
		if store.plot(1).Status != model.PlotReserved {
			t.Fatalf("expected plot reserved, got %s", store.plot(1).Status)
		}
		if res.Plot.Status != model.PlotReserved {
			t.Fatalf("response plot should carry the claimed status, got %s", res.Plot.Status)
		}
		if len(res.PaymentInstructions) != 2 {
			t.Fatalf("expected bank accounts in response, got %v", res.PaymentInstructions)
		}
		if len(res.Invoice) == 0 {
			t.Fatalf("expected rendered invoice in response")
		}

		types := led.eventTypes()
		if len(types) != 2 || types[0] != outbox.TypeEmail || types[1] != outbox.TypeSMS {
			t.Fatalf("expected email and sms events, got %v", types)
		}
	})

	t.Run("rejects an undersized deposit without touching state", func(t *testing.T) {
		store := newMemStore(availablePlot())
		led := newMemLedger()
		svc := newTestService(store, led)

		_, err := svc.Reserve(context.Background(), ReserveInput{
			PlotID:        1,
			Location:      "riverside",
			DepositAmount: 29999,
			Customer:      testCustomer(),
			UserID:        "user-1",
		})
		var verr ledger.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if verr.Message != "Minimum deposit is 30000" {
			t.Fatalf("unexpected message: %q", verr.Message)
		}
		if store.plot(1).Status != model.PlotAvailable {
			t.Fatalf("plot must stay available, got %s", store.plot(1).Status)
		}
		if led.count() != 0 {
			t.Fatalf("no ledger entry expected, got %d", led.count())
		}
	})

	t.Run("conflicts on a non-available plot without a ledger entry", func(t *testing.T) {
		p := availablePlot()
		p.Status = model.PlotReserved
		store := newMemStore(p)
		led := newMemLedger()
		svc := newTestService(store, led)

		_, err := svc.Reserve(context.Background(), ReserveInput{
			PlotID:        1,
			Location:      "riverside",
			DepositAmount: 30000,
			Customer:      testCustomer(),
			UserID:        "user-1",
		})
		if !errors.Is(err, repository.ErrStatusConflict) {
			t.Fatalf("expected ErrStatusConflict, got %v", err)
		}
		if led.count() != 0 {
			t.Fatalf("no ledger entry expected, got %d", led.count())
		}
	})

	t.Run("releases the claim when the ledger write fails", func(t *testing.T) {
		store := newMemStore(availablePlot())
		led := newMemLedger()
		led.createErr = errors.New("ledger down")
		svc := newTestService(store, led)

		_, err := svc.Reserve(context.Background(), ReserveInput{
			PlotID:        1,
			Location:      "riverside",
			DepositAmount: 30000,
			Customer:      testCustomer(),
			UserID:        "user-1",
		})
		if err == nil || !strings.Contains(err.Error(), "ledger down") {
			t.Fatalf("expected ledger failure, got %v", err)
		}
		if store.plot(1).Status != model.PlotAvailable {
			t.Fatalf("expected compensating release, plot is %s", store.plot(1).Status)
		}
		if led.count() != 0 {
			t.Fatalf("no ledger entry expected, got %d", led.count())
		}
	})

	t.Run("unknown plot", func(t *testing.T) {
		store := newMemStore()
		svc := newTestService(store, newMemLedger())

		_, err := svc.Reserve(context.Background(), ReserveInput{
			PlotID:        99,
			Location:      "riverside",
			DepositAmount: 30000,
			Customer:      testCustomer(),
		})
		if !errors.Is(err, repository.ErrPlotNotFound) {
			t.Fatalf("expected ErrPlotNotFound, got %v", err)
		}
	})
}

func TestPurchase(t *testing.T) {
	t.Parallel()

	t.Run("holds the plot at the exact price", func(t *testing.T) {
		store := newMemStore(availablePlot())
		led := newMemLedger()
		svc := newTestService(store, led)

		res, err := svc.Purchase(context.Background(), PurchaseInput{
			PlotID:        1,
			Location:      "riverside",
			Amount:        100000,
			PaymentMethod: "bank_transfer",
			Customer:      testCustomer(),
			UserID:        "user-1",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Transaction.Type != model.TransactionPurchase {
			t.Fatalf("expected purchase, got %s", res.Transaction.Type)
		}
		if res.Transaction.RemainingAmount != 0 {
			t.Fatalf("expected remaining 0, got %d", res.Transaction.RemainingAmount)
		}
		if store.plot(1).Status != model.PlotHold {
			t.Fatalf("expected plot on hold, got %s", store.plot(1).Status)
		}
	})

	t.Run("rejects any amount other than the price", func(t *testing.T) {
		store := newMemStore(availablePlot())
		led := newMemLedger()
		svc := newTestService(store, led)

		_, err := svc.Purchase(context.Background(), PurchaseInput{
			PlotID:   1,
			Location: "riverside",
			Amount:   99999,
			Customer: testCustomer(),
		})
		var verr ledger.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if verr.Message != "Invalid payment amount" {
			t.Fatalf("unexpected message: %q", verr.Message)
		}
		if store.plot(1).Status != model.PlotAvailable {
			t.Fatalf("plot must stay available, got %s", store.plot(1).Status)
		}
		if led.count() != 0 {
			t.Fatalf("no ledger entry expected, got %d", led.count())
		}
	})
}

func TestConcurrentBookings(t *testing.T) {
	t.Parallel()

	t.Run("two reservations race for one plot", func(t *testing.T) {
		store := newMemStore(availablePlot())
		led := newMemLedger()
		svc := newTestService(store, led)

		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(user string) {
				defer wg.Done()
				_, err := svc.Reserve(context.Background(), ReserveInput{
					PlotID:        1,
					Location:      "riverside",
					DepositAmount: 30000,
					Customer:      testCustomer(),
					UserID:        user,
				})
				errs <- err
			}("user-" + string(rune('a'+i)))
		}
		wg.Wait()
		close(errs)

		var ok, conflict int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, repository.ErrStatusConflict):
				conflict++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if ok != 1 || conflict != 1 {
			t.Fatalf("expected exactly one winner and one conflict, got %d/%d", ok, conflict)
		}
		if led.count() != 1 {
			t.Fatalf("expected exactly one ledger entry, got %d", led.count())
		}
		if store.plot(1).Status != model.PlotReserved {
			t.Fatalf("expected plot reserved, got %s", store.plot(1).Status)
		}
	})

	t.Run("reservation races a purchase", func(t *testing.T) {
		store := newMemStore(availablePlot())
		led := newMemLedger()
		svc := newTestService(store, led)

		errs := make(chan error, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), ReserveInput{
				PlotID: 1, Location: "riverside", DepositAmount: 30000,
				Customer: testCustomer(), UserID: "user-a",
			})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Purchase(context.Background(), PurchaseInput{
				PlotID: 1, Location: "riverside", Amount: 100000,
				Customer: testCustomer(), UserID: "user-b",
			})
			errs <- err
		}()
		wg.Wait()
		close(errs)

		var ok, conflict int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, repository.ErrStatusConflict):
				conflict++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if ok != 1 || conflict != 1 {
			t.Fatalf("expected exactly one winner and one conflict, got %d/%d", ok, conflict)
		}
		if led.count() != 1 {
			t.Fatalf("expected exactly one ledger entry, got %d", led.count())
		}
	})
}
