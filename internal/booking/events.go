package booking

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/veridia/plot-reservation/internal/invoice"
	"github.com/veridia/plot-reservation/internal/model"
	"github.com/veridia/plot-reservation/internal/notify"
	"github.com/veridia/plot-reservation/internal/outbox"
)

// MarkSoldPayload is the outbox payload that drives a plot to sold
// after payment verification.  The relay retries it until the
// inventory store confirms; the transition is idempotent so replays
// are harmless.  The claimant stamps travel with the payload so a
// retried transition can never sell a plot whose claim has changed
// hands in the meantime.
type MarkSoldPayload struct {
	PlotID          uint64           `json:"plot_id"`
	Location        string           `json:"location"`
	From            model.PlotStatus `json:"from"`
	TransactionID   uint64           `json:"transaction_id"`
	OwnerNationalID string           `json:"owner_national_id"`
	ClaimedAt       *time.Time       `json:"claimed_at,omitempty"`
}

// renderInvoice builds the invoice document for a booking.  A render
// failure is logged and yields nil: invoices never fail a booking that
// the ledger already accepted.
func (s *Service) renderInvoice(t model.Transaction, plot model.Plot) []byte {
	amounts := invoice.Amounts{Total: t.TotalAmount}
	if t.Type == model.TransactionReservation && t.DepositAmount != nil {
		deposit := *t.DepositAmount
		remaining := t.RemainingAmount
		amounts.Deposit = &deposit
		amounts.Remaining = &remaining
	}
	doc, err := invoice.Render(invoice.Data{
		TransactionID: t.ID,
		Type:          t.Type,
		Property: invoice.Property{
			PlotNo:     plot.PlotNo,
			StreetName: plot.StreetName,
			Location:   plot.Location,
			AreaSqm:    plot.AreaSqm,
		},
		Customer:     t.Customer,
		Amounts:      amounts,
		BankAccounts: s.bankAccounts,
	})
	if err != nil {
		s.log.Error("invoice render failed", "transaction_id", t.ID, "err", err)
		return nil
	}
	return doc
}

// bookingEvents builds the email and SMS outbox events announcing a
// new booking.  The invoice, when rendered, rides along as an email
// attachment.
func (s *Service) bookingEvents(t model.Transaction, plot model.Plot, invoiceDoc []byte) []outbox.Event {
	action := "reserved"
	if t.Type == model.TransactionPurchase {
		action = "purchased"
	}

	email := notify.EmailMessage{
		To:      t.Customer.Email,
		Subject: fmt.Sprintf("Plot %s %s: invoice #%d", plot.PlotNo, action, t.ID),
		HTML: fmt.Sprintf("<p>Dear %s,</p><p>You have %s plot %s in %s. Amount due: %d.</p>",
			t.Customer.Name, action, plot.PlotNo, plot.Location, t.RemainingAmount),
	}
	if invoiceDoc != nil {
		email.Attachments = []notify.Attachment{{
			Filename:    fmt.Sprintf("invoice-%d.html", t.ID),
			ContentType: "text/html",
			Data:        invoiceDoc,
		}}
	}
	sms := notify.SMSMessage{
		To: t.Customer.Phone,
		Message: fmt.Sprintf("Plot %s %s. Transaction #%d, total %d.",
			plot.PlotNo, action, t.ID, t.TotalAmount),
	}

	return []outbox.Event{
		emailEvent(t, email),
		smsEvent(t, sms),
	}
}

// verificationEvents builds the events that follow a verified payment:
// the mark-sold transition plus confirmation notifications.
func (s *Service) verificationEvents(t model.Transaction) []outbox.Event {
	markSold, _ := json.Marshal(MarkSoldPayload{
		PlotID:          t.PlotID,
		Location:        t.Location,
		From:            pendingFor(t.Type),
		TransactionID:   t.ID,
		OwnerNationalID: t.Customer.NationalID,
		ClaimedAt:       t.ClaimedAt,
	})

	email := notify.EmailMessage{
		To:      t.Customer.Email,
		Subject: fmt.Sprintf("Payment confirmed: transaction #%d", t.ID),
		HTML: fmt.Sprintf("<p>Dear %s,</p><p>Your payment of %d has been confirmed. The plot is now yours.</p>",
			t.Customer.Name, t.TotalAmount),
	}
	sms := notify.SMSMessage{
		To:      t.Customer.Phone,
		Message: fmt.Sprintf("Payment confirmed for transaction #%d.", t.ID),
	}

	return []outbox.Event{
		{
			AggregateType: "transaction",
			AggregateID:   fmt.Sprint(t.ID),
			Type:          outbox.TypeMarkSold,
			Payload:       markSold,
		},
		emailEvent(t, email),
		smsEvent(t, sms),
	}
}

func emailEvent(t model.Transaction, msg notify.EmailMessage) outbox.Event {
	payload, _ := json.Marshal(notify.Event{
		Kind:       notify.KindEmail,
		Email:      &msg,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
	})
	return outbox.Event{
		AggregateType: "transaction",
		AggregateID:   fmt.Sprint(t.ID),
		Type:          outbox.TypeEmail,
		Payload:       payload,
	}
}

func smsEvent(t model.Transaction, msg notify.SMSMessage) outbox.Event {
	payload, _ := json.Marshal(notify.Event{
		Kind:       notify.KindSMS,
		SMS:        &msg,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
	})
	return outbox.Event{
		AggregateType: "transaction",
		AggregateID:   fmt.Sprint(t.ID),
		Type:          outbox.TypeSMS,
		Payload:       payload,
	}
}
