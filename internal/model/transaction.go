package model

import "time"

// TransactionType distinguishes the two ways a plot can be taken off
// the market: a deposit-backed reservation or a full-price purchase.
type TransactionType string

const (
	TransactionReservation TransactionType = "reservation"
	TransactionPurchase    TransactionType = "purchase"
)

// TransactionStatus enumerates ledger entry states.  Entries are
// append/update only; nothing is hard-deleted in the normal flow.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
)

// Transaction is a ledger entry recording a reservation or purchase.
//
// Fields:
//  ID              – primary key identifier.
//  PlotID          – plot the entry is about.
//  Location        – location collection key of the plot.
//  Type            – reservation or purchase.
//  Status          – pending until payment is verified.
//  TotalAmount     – full plot price at creation time, minor units.
//  DepositAmount   – deposit paid up front; set only for reservations.
//  PaidAmount      – amount confirmed paid so far.
//  RemainingAmount – TotalAmount − PaidAmount.
//  PaymentMethod   – free-form method label (e.g. "bank_transfer").
//  PaymentRef      – external payment reference recorded at verification.
//  Customer        – snapshot of the buyer's details at creation.
//  UserID          – account that initiated the booking.
//  ClaimedAt       – when the plot claim backing this entry was taken.
//                    Together with the customer's national id it
//                    identifies the claim, so a verification can only
//                    sell the plot to the booking that still owns it.
//  CreatedAt       – creation timestamp.
//  CompletedAt     – when payment was verified.
type Transaction struct {
	ID              uint64            `json:"id"`
	PlotID          uint64            `json:"plot_id"`
	Location        string            `json:"location"`
	Type            TransactionType   `json:"type"`
	Status          TransactionStatus `json:"status"`
	TotalAmount     int64             `json:"total_amount"`
	DepositAmount   *int64            `json:"deposit_amount,omitempty"`
	PaidAmount      int64             `json:"paid_amount"`
	RemainingAmount int64             `json:"remaining_amount"`
	PaymentMethod   string            `json:"payment_method"`
	PaymentRef      *string           `json:"payment_ref,omitempty"`
	Customer        Customer          `json:"customer"`
	UserID          string            `json:"user_id"`
	ClaimedAt       *time.Time        `json:"claimed_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
}

// Page describes one page of a paginated listing.
type Page struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}
