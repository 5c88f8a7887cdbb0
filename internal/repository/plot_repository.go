package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/veridia/plot-reservation/internal/model"
)

// PlotRepo provides data access to the plots and locations tables.
// Status transitions are modelled as guarded compare-and-swap updates:
// each UPDATE carries the expected prior state in its WHERE clause and
// reports a conflict when no row matches, so two concurrent bookings
// for the same plot can never both succeed.
type PlotRepo struct {
	db *sql.DB
}

// NewPlotRepo returns a new PlotRepo bound to the given database.
func NewPlotRepo(db *sql.DB) *PlotRepo { return &PlotRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// spanning several repositories.
func (r *PlotRepo) DB() *sql.DB { return r.db }

const plotColumns = `id, plot_no, location, street_name, price, area_sqm, status,
    hold_expires_at, reserved_at, sold_at,
    customer_name, customer_email, customer_phone, customer_national_id,
    paid_amount, remaining_amount, transaction_id, created_at, updated_at`

// LocationExists reports whether the given location key is registered.
func (r *PlotRepo) LocationExists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM locations WHERE location_key = ?)`, key,
	).Scan(&ok)
	return ok, err
}

// GetByID fetches a single plot by location and id.  Returns
// ErrPlotNotFound when no row matches.
func (r *PlotRepo) GetByID(ctx context.Context, location string, id uint64) (model.Plot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+plotColumns+` FROM plots WHERE location = ? AND id = ?`, location, id)
	p, err := scanPlot(row)
	if err == sql.ErrNoRows {
		return model.Plot{}, ErrPlotNotFound
	}
	return p, err
}

// ListByLocation fetches all plots in a location ordered by plot number.
func (r *PlotRepo) ListByLocation(ctx context.Context, location string) ([]model.Plot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+plotColumns+` FROM plots WHERE location = ? ORDER BY plot_no`, location)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plots []model.Plot
	for rows.Next() {
		p, err := scanPlot(rows)
		if err != nil {
			return nil, err
		}
		plots = append(plots, p)
	}
	return plots, rows.Err()
}

// Stats aggregates plot counts and value totals for a location, or
// globally when location is empty.
func (r *PlotRepo) Stats(ctx context.Context, location string) (model.LocationStats, error) {
	const q = `SELECT
        COUNT(*),
        COALESCE(SUM(CASE WHEN status = 'available' THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN status = 'reserved'  THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN status = 'hold'      THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN status = 'sold'      THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(price), 0),
        COALESCE(SUM(CASE WHEN status = 'sold' THEN price ELSE 0 END), 0),
        COALESCE(SUM(paid_amount), 0)
    FROM plots WHERE (? = '' OR location = ?)`

	s := model.LocationStats{Location: location}
	err := r.db.QueryRowContext(ctx, q, location, location).Scan(
		&s.TotalPlots, &s.Available, &s.Reserved, &s.Held, &s.Sold,
		&s.TotalValue, &s.SoldValue, &s.CollectedValue,
	)
	return s, err
}

// ClaimParams carries the values stamped onto a plot when it is taken
// off the market pending payment.
type ClaimParams struct {
	PlotID        uint64
	Location      string
	Status        model.PlotStatus // reserved or hold
	Customer      model.Customer
	PaidAmount    int64 // deposit for reservations, full price for purchases
	ReservedAt    time.Time
	HoldExpiresAt *time.Time // set iff Status is reserved
}

// Claim transitions a plot from available to reserved or hold.  A
// reserved plot whose previous hold has expired counts as available,
// so lapsed reservations are reclaimed lazily here rather than by a
// background job.  Returns ErrStatusConflict when the plot is taken
// and ErrPlotNotFound when it does not exist.
func (r *PlotRepo) Claim(ctx context.Context, p ClaimParams) (model.Plot, error) {
	const q = `UPDATE plots SET
        status = ?, reserved_at = ?, hold_expires_at = ?,
        customer_name = ?, customer_email = ?, customer_phone = ?, customer_national_id = ?,
        paid_amount = ?, remaining_amount = price - ?, transaction_id = NULL, sold_at = NULL
    WHERE id = ? AND location = ?
      AND (status = 'available'
           OR (status = 'reserved' AND hold_expires_at IS NOT NULL AND hold_expires_at <= ?))`

	res, err := r.db.ExecContext(ctx, q,
		p.Status, p.ReservedAt, nullTime(p.HoldExpiresAt),
		p.Customer.Name, p.Customer.Email, p.Customer.Phone, p.Customer.NationalID,
		p.PaidAmount, p.PaidAmount,
		p.PlotID, p.Location, p.ReservedAt,
	)
	if err != nil {
		return model.Plot{}, err
	}
	return r.afterTransition(ctx, res, p.Location, p.PlotID, p.Status, 0)
}

// MarkSoldParams identifies both the plot to sell and the claim that
// earned the sale.  OwnerNationalID and ClaimedAt are the stamps the
// winning Claim left on the row; a transition whose stamps do not
// match the current claim affects no rows.
type MarkSoldParams struct {
	PlotID          uint64
	Location        string
	From            model.PlotStatus // reserved or hold
	TransactionID   uint64
	OwnerNationalID string
	ClaimedAt       time.Time
	SoldAt          time.Time
}

// MarkSold transitions a plot from a pending state to sold, the
// terminal state.  The WHERE clause requires the claimant stamps to
// match, so a verification whose reservation lapsed and was reclaimed
// by someone else conflicts instead of selling the plot out from under
// the new claimant.  Retrying after a prior success is a no-op: a plot
// already sold under the same transaction id reports success.
func (r *PlotRepo) MarkSold(ctx context.Context, p MarkSoldParams) (model.Plot, error) {
	const q = `UPDATE plots SET
        status = 'sold', sold_at = ?, hold_expires_at = NULL,
        paid_amount = price, remaining_amount = 0, transaction_id = ?
    WHERE id = ? AND location = ? AND status = ?
      AND customer_national_id = ? AND reserved_at = ?`

	res, err := r.db.ExecContext(ctx, q, p.SoldAt, p.TransactionID,
		p.PlotID, p.Location, p.From, p.OwnerNationalID, p.ClaimedAt)
	if err != nil {
		return model.Plot{}, err
	}
	return r.afterTransition(ctx, res, p.Location, p.PlotID, model.PlotSold, p.TransactionID)
}

// Release returns a plot to available, clearing every booking stamp.
// Used as the compensating action when a ledger write fails after the
// plot was claimed.
func (r *PlotRepo) Release(ctx context.Context, location string, plotID uint64, from model.PlotStatus) (model.Plot, error) {
	const q = `UPDATE plots SET
        status = 'available', reserved_at = NULL, hold_expires_at = NULL, sold_at = NULL,
        customer_name = NULL, customer_email = NULL, customer_phone = NULL, customer_national_id = NULL,
        paid_amount = 0, remaining_amount = price, transaction_id = NULL
    WHERE id = ? AND location = ? AND status = ?`

	res, err := r.db.ExecContext(ctx, q, plotID, location, from)
	if err != nil {
		return model.Plot{}, err
	}
	return r.afterTransition(ctx, res, location, plotID, model.PlotAvailable, 0)
}

// afterTransition resolves the outcome of a guarded UPDATE.  Zero
// rows affected means the plot is missing, the transition already
// happened, or a genuine conflict.  A sale retried under the same
// transaction id and a release of an already-free plot count as
// success so saga retries stay idempotent; a claim that affected no
// rows is always a conflict, because claims are never retried and the
// matching state belongs to a competing booking.
func (r *PlotRepo) afterTransition(ctx context.Context, res sql.Result, location string, plotID uint64, want model.PlotStatus, transactionID uint64) (model.Plot, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return model.Plot{}, err
	}
	current, err := r.GetByID(ctx, location, plotID)
	if err != nil {
		return model.Plot{}, err
	}
	if n > 0 {
		return current, nil
	}
	if current.Status != want {
		return model.Plot{}, ErrStatusConflict
	}
	soldRetry := want == model.PlotSold && transactionID != 0 &&
		current.TransactionID != nil && *current.TransactionID == transactionID
	releaseRetry := want == model.PlotAvailable && current.TransactionID == nil
	if soldRetry || releaseRetry {
		return current, nil
	}
	return model.Plot{}, ErrStatusConflict
}

// Create inserts a new available plot.  Inventory import is owned by
// an external collaborator; this exists for seeding and tests.
func (r *PlotRepo) Create(ctx context.Context, p *model.Plot) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO plots (plot_no, location, street_name, price, area_sqm, status, remaining_amount)
         VALUES (?, ?, ?, ?, ?, 'available', ?)`,
		p.PlotNo, p.Location, p.StreetName, p.Price, p.AreaSqm, p.Price,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.Status = model.PlotAvailable
	p.RemainingAmount = p.Price
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlot(row rowScanner) (model.Plot, error) {
	var (
		p          model.Plot
		name       sql.NullString
		email      sql.NullString
		phone      sql.NullString
		nationalID sql.NullString
		holdExp    sql.NullTime
		reservedAt sql.NullTime
		soldAt     sql.NullTime
		txID       sql.NullInt64
	)
	err := row.Scan(
		&p.ID, &p.PlotNo, &p.Location, &p.StreetName, &p.Price, &p.AreaSqm, &p.Status,
		&holdExp, &reservedAt, &soldAt,
		&name, &email, &phone, &nationalID,
		&p.PaidAmount, &p.RemainingAmount, &txID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return model.Plot{}, err
	}
	if holdExp.Valid {
		t := holdExp.Time
		p.HoldExpiresAt = &t
	}
	if reservedAt.Valid {
		t := reservedAt.Time
		p.ReservedAt = &t
	}
	if soldAt.Valid {
		t := soldAt.Time
		p.SoldAt = &t
	}
	if name.Valid || email.Valid || phone.Valid {
		p.Customer = &model.Customer{
			Name:       name.String,
			Email:      email.String,
			Phone:      phone.String,
			NationalID: nationalID.String,
		}
	}
	if txID.Valid {
		id := uint64(txID.Int64)
		p.TransactionID = &id
	}
	return p, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
