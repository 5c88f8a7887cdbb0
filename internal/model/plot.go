package model

import "time"

// PlotStatus enumerates the lifecycle states of a plot.  "sold" is
// terminal; "reserved" and "hold" both mean the plot is unavailable
// pending payment, differing only in how the hold was taken.
type PlotStatus string

const (
	// PlotAvailable means the plot can be reserved or bought.
	PlotAvailable PlotStatus = "available"
	// PlotReserved means a deposit-backed reservation exists.  A
	// reserved plot carries an expiry and falls back to available
	// when the expiry passes without payment confirmation.
	PlotReserved PlotStatus = "reserved"
	// PlotHold means a full-price purchase awaits payment
	// verification.  Holds do not expire.
	PlotHold PlotStatus = "hold"
	// PlotSold is the terminal state after payment verification.
	PlotSold PlotStatus = "sold"
)

// Plot is a unit of land inventory for sale.
//
// Fields:
//  ID              – primary key identifier.
//  PlotNo          – human-facing plot number within its location.
//  Location        – location collection key the plot belongs to.
//  StreetName      – street the plot fronts.
//  Price           – asking price in minor currency units.
//  AreaSqm         – surface area in square metres.
//  Status          – lifecycle state, see PlotStatus.
//  HoldExpiresAt   – expiry of a deposit reservation; set iff
//                    Status is reserved.
//  ReservedAt      – when the plot was last reserved or held.
//  SoldAt          – when the plot was sold (terminal).
//  Customer        – denormalized snapshot of the buyer.
//  PaidAmount      – amount paid so far, minor units.
//  RemainingAmount – Price − PaidAmount, never negative.
//  TransactionID   – ledger row that owns the current state.
type Plot struct {
	ID              uint64     `json:"id"`
	PlotNo          string     `json:"plot_no"`
	Location        string     `json:"location"`
	StreetName      string     `json:"street_name"`
	Price           int64      `json:"price"`
	AreaSqm         int64      `json:"area_sqm"`
	Status          PlotStatus `json:"status"`
	HoldExpiresAt   *time.Time `json:"hold_expires_at,omitempty"`
	ReservedAt      *time.Time `json:"reserved_at,omitempty"`
	SoldAt          *time.Time `json:"sold_at,omitempty"`
	Customer        *Customer  `json:"customer,omitempty"`
	PaidAmount      int64      `json:"paid_amount"`
	RemainingAmount int64      `json:"remaining_amount"`
	TransactionID   *uint64    `json:"transaction_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ReservationExpired reports whether a reserved plot's hold has lapsed
// at the given instant.  It is false for every other status.
func (p Plot) ReservationExpired(now time.Time) bool {
	return p.Status == PlotReserved && p.HoldExpiresAt != nil && !p.HoldExpiresAt.After(now)
}

// EffectiveStatus returns the status a reader should act on: an
// expired reservation is reported as available again.  Expired holds
// are reaped lazily on read rather than by a background job.
func (p Plot) EffectiveStatus(now time.Time) PlotStatus {
	if p.ReservationExpired(now) {
		return PlotAvailable
	}
	return p.Status
}

// PublicPlot is the plot as shown to unauthenticated browsers.  It
// carries everything a prospective buyer needs to pick a plot and
// nothing about the current claimant: no customer snapshot, no paid
// amounts, no transaction linkage.
type PublicPlot struct {
	ID            uint64     `json:"id"`
	PlotNo        string     `json:"plot_no"`
	Location      string     `json:"location"`
	StreetName    string     `json:"street_name"`
	Price         int64      `json:"price"`
	AreaSqm       int64      `json:"area_sqm"`
	Status        PlotStatus `json:"status"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Public builds the guest-facing projection of the plot.
func (p Plot) Public() PublicPlot {
	return PublicPlot{
		ID:            p.ID,
		PlotNo:        p.PlotNo,
		Location:      p.Location,
		StreetName:    p.StreetName,
		Price:         p.Price,
		AreaSqm:       p.AreaSqm,
		Status:        p.Status,
		HoldExpiresAt: p.HoldExpiresAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// PublicPlots maps a listing onto its guest-facing projections.
func PublicPlots(plots []Plot) []PublicPlot {
	out := make([]PublicPlot, len(plots))
	for i, p := range plots {
		out[i] = p.Public()
	}
	return out
}

// PlotSummary is the trimmed plot projection embedded in booking
// responses and notification payloads.
type PlotSummary struct {
	ID         uint64     `json:"id"`
	PlotNo     string     `json:"plot_no"`
	Location   string     `json:"location"`
	StreetName string     `json:"street_name"`
	Price      int64      `json:"price"`
	AreaSqm    int64      `json:"area_sqm"`
	Status     PlotStatus `json:"status"`
}

// Summary builds the trimmed projection of the plot.
func (p Plot) Summary() PlotSummary {
	return PlotSummary{
		ID:         p.ID,
		PlotNo:     p.PlotNo,
		Location:   p.Location,
		StreetName: p.StreetName,
		Price:      p.Price,
		AreaSqm:    p.AreaSqm,
		Status:     p.Status,
	}
}
