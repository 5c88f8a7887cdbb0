package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/veridia/plot-reservation/internal/model"
)

// TransactionRepo provides data access to the transactions table, the
// financial ledger for reservations and purchases.  Rows are append or
// update only; nothing is hard-deleted in the normal flow.
type TransactionRepo struct {
	db *sql.DB
}

// NewTransactionRepo returns a new TransactionRepo bound to the given database.
func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// DB exposes the underlying handle so the ledger can run the entry
// insert and its outbox events in one transaction.
func (r *TransactionRepo) DB() *sql.DB { return r.db }

const transactionColumns = `id, plot_id, location, type, status, total_amount, deposit_amount,
    paid_amount, remaining_amount, payment_method, payment_ref,
    customer_name, customer_email, customer_phone, customer_national_id,
    user_id, claimed_at, created_at, completed_at`

// CreateTx inserts a new ledger entry within an existing transaction
// and populates the generated ID.  The caller commits or rolls back.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions
            (plot_id, location, type, status, total_amount, deposit_amount,
             paid_amount, remaining_amount, payment_method,
             customer_name, customer_email, customer_phone, customer_national_id,
             user_id, claimed_at, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.PlotID, t.Location, t.Type, t.Status, t.TotalAmount, t.DepositAmount,
		t.PaidAmount, t.RemainingAmount, t.PaymentMethod,
		t.Customer.Name, t.Customer.Email, t.Customer.Phone, t.Customer.NationalID,
		t.UserID, t.ClaimedAt, t.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// CompleteTx marks a pending entry completed: paid amount becomes the
// total, remaining drops to zero and the completion time and payment
// reference are recorded.  The status guard makes completion
// single-shot; a second attempt reports ErrTransactionCompleted so a
// replayed verification can never double-count a payment.
func (r *TransactionRepo) CompleteTx(ctx context.Context, tx *sql.Tx, id uint64, paymentRef string, completedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET
            status = 'completed', paid_amount = total_amount, remaining_amount = 0,
            payment_ref = ?, completed_at = ?
         WHERE id = ? AND status = 'pending'`,
		paymentRef, completedAt, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var status model.TransactionStatus
		err := tx.QueryRowContext(ctx, `SELECT status FROM transactions WHERE id = ?`, id).Scan(&status)
		if err == sql.ErrNoRows {
			return ErrTransactionNotFound
		}
		if err != nil {
			return err
		}
		return ErrTransactionCompleted
	}
	return nil
}

// GetByID fetches a ledger entry.  When ownerID is non-empty, an
// entry belonging to another user is reported as not found rather
// than forbidden, so callers cannot probe for foreign transactions.
func (r *TransactionRepo) GetByID(ctx context.Context, id uint64, ownerID string) (model.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND (? = '' OR user_id = ?)`,
		id, ownerID, ownerID)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return model.Transaction{}, ErrTransactionNotFound
	}
	return t, err
}

// ListFilter narrows a user's transaction listing.
type ListFilter struct {
	Status model.TransactionStatus // optional
	Type   model.TransactionType   // optional
}

// ListByUser returns one page of a user's ledger entries, newest
// first, together with the total row count for pagination metadata.
func (r *TransactionRepo) ListByUser(ctx context.Context, userID string, f ListFilter, page, limit int) ([]model.Transaction, int, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE `+cond+
			` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, t)
	}
	return list, total, rows.Err()
}

func scanTransaction(row rowScanner) (model.Transaction, error) {
	var (
		t           model.Transaction
		deposit     sql.NullInt64
		paymentRef  sql.NullString
		claimedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.PlotID, &t.Location, &t.Type, &t.Status, &t.TotalAmount, &deposit,
		&t.PaidAmount, &t.RemainingAmount, &t.PaymentMethod, &paymentRef,
		&t.Customer.Name, &t.Customer.Email, &t.Customer.Phone, &t.Customer.NationalID,
		&t.UserID, &claimedAt, &t.CreatedAt, &completedAt,
	)
	if err != nil {
		return model.Transaction{}, err
	}
	if deposit.Valid {
		v := deposit.Int64
		t.DepositAmount = &v
	}
	if claimedAt.Valid {
		v := claimedAt.Time
		t.ClaimedAt = &v
	}
	if paymentRef.Valid {
		v := paymentRef.String
		t.PaymentRef = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}
	return t, nil
}
