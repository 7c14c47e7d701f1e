package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"propbooks-backend/internal/domain"
	"propbooks-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == uniqueViolation
	}
	return false
}

func (r *transactionRepository) PostTransaction(ctx context.Context, header *domain.TransactionHeader, lines []domain.PostingLine, idempotencyKey string, validateBalance bool) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := r.PostTransactionTx(ctx, tx, header, lines, idempotencyKey, validateBalance)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

// PostTransactionTx inserts the header and its lines inside the caller's
// database transaction. When validateBalance is set, an unbalanced line
// set is rejected before any insert.
func (r *transactionRepository) PostTransactionTx(ctx context.Context, tx *sql.Tx, header *domain.TransactionHeader, lines []domain.PostingLine, idempotencyKey string, validateBalance bool) (string, error) {
	if validateBalance {
		debits, credits := decimal.Zero, decimal.Zero
		for _, l := range lines {
			if l.PostingType == domain.PostingDebit {
				debits = debits.Add(l.Amount)
			} else {
				credits = credits.Add(l.Amount)
			}
		}
		if !debits.Equal(credits) {
			return "", fmt.Errorf("%w: debits %s, credits %s", domain.ErrUnbalanced, debits, credits)
		}
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	createdAt := header.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	var key any
	if idempotencyKey != "" {
		key = idempotencyKey
	}

	query := `INSERT INTO transactions (id, org_id, transaction_type, date, memo, total_amount, lease_id, property_id, unit_id, reversal_of_transaction_id, idempotency_key, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := tx.ExecContext(ctx, query,
		id, header.OrgID, header.TransactionType, header.Date.Format("2006-01-02"),
		nullString(header.Memo), header.TotalAmount, header.LeaseID, header.PropertyID,
		header.UnitID, header.ReversalOfTransactionID, key, createdAt, createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s", domain.ErrDuplicateIdempotencyKey, idempotencyKey)
		}
		return "", fmt.Errorf("failed to insert transaction: %w", err)
	}

	lineQuery := `INSERT INTO transaction_lines (transaction_id, gl_account_id, amount, posting_type, memo, property_id, unit_id, lease_id)
	              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	for _, l := range lines {
		_, err := tx.ExecContext(ctx, lineQuery,
			id, l.GLAccountID, l.Amount, l.PostingType, nullString(l.Memo), l.PropertyID, l.UnitID, l.LeaseID)
		if err != nil {
			return "", fmt.Errorf("failed to insert transaction line: %w", err)
		}
	}
	return id, nil
}

const transactionColumns = `id, org_id, transaction_type, date, memo, total_amount, lease_id, property_id, unit_id, reversal_of_transaction_id, COALESCE(idempotency_key, ''), locked_at, created_at, updated_at`

func (r *transactionRepository) scanTransaction(row *sql.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var memo sql.NullString
	err := row.Scan(&t.ID, &t.OrgID, &t.TransactionType, &t.Date, &memo, &t.TotalAmount,
		&t.LeaseID, &t.PropertyID, &t.UnitID, &t.ReversalOfTransactionID, &t.IdempotencyKey,
		&t.LockedAt, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Memo = memo.String
	return &t, nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.scanTransaction(r.db.QueryRowContext(ctx, query, id))
}

func (r *transactionRepository) FindByIdempotencyKey(ctx context.Context, orgID, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE org_id = $1 AND idempotency_key = $2`
	return r.scanTransaction(r.db.QueryRowContext(ctx, query, orgID, key))
}

func (r *transactionRepository) FindReversalOf(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reversal_of_transaction_id = $1 LIMIT 1`
	return r.scanTransaction(r.db.QueryRowContext(ctx, query, transactionID))
}

func (r *transactionRepository) GetLines(ctx context.Context, transactionID string) ([]domain.TransactionLine, error) {
	query := `SELECT transaction_id, gl_account_id, amount, posting_type, COALESCE(memo, ''), property_id, unit_id, lease_id
	          FROM transaction_lines WHERE transaction_id = $1`
	rows, err := r.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.TransactionLine
	for rows.Next() {
		var l domain.TransactionLine
		if err := rows.Scan(&l.TransactionID, &l.GLAccountID, &l.Amount, &l.PostingType, &l.Memo, &l.PropertyID, &l.UnitID, &l.LeaseID); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *transactionRepository) SetReversalOf(ctx context.Context, transactionID, originalTransactionID string) error {
	query := `UPDATE transactions SET reversal_of_transaction_id = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, originalTransactionID, transactionID)
	return err
}

// Lock marks a transaction immutable. Idempotent: an already-locked
// transaction keeps its original lock timestamp.
func (r *transactionRepository) Lock(ctx context.Context, transactionID, reason string, userID *string) error {
	query := `UPDATE transactions SET locked_at = NOW(), locked_reason = $1, locked_by = $2, updated_at = NOW()
	          WHERE id = $3 AND locked_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, reason, userID, transactionID)
	return err
}

func (r *transactionRepository) HasChargeOnDate(ctx context.Context, leaseID int64, date time.Time) (bool, error) {
	query := `SELECT EXISTS (
	            SELECT 1 FROM transactions
	            WHERE lease_id = $1 AND transaction_type = 'Charge' AND date = $2
	          )`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, leaseID, date.Format("2006-01-02")).Scan(&exists)
	return exists, err
}

// ListOverdueRentCharges returns, per lease, the most recent rent-income
// credit dated on or before the cutoff.
func (r *transactionRepository) ListOverdueRentCharges(ctx context.Context, orgID, rentIncomeAccountID string, olderThan time.Time) ([]domain.OverdueRent, error) {
	query := `SELECT DISTINCT ON (tl.lease_id) tl.lease_id, tl.amount, t.date
	          FROM transaction_lines tl
	          JOIN transactions t ON t.id = tl.transaction_id
	          WHERE t.org_id = $1 AND tl.gl_account_id = $2 AND tl.posting_type = 'Credit'
	            AND tl.lease_id IS NOT NULL AND t.date <= $3
	          ORDER BY tl.lease_id, t.date DESC`
	rows, err := r.db.QueryContext(ctx, query, orgID, rentIncomeAccountID, olderThan.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.OverdueRent
	for rows.Next() {
		var o domain.OverdueRent
		var date time.Time
		if err := rows.Scan(&o.LeaseID, &o.Amount, &date); err != nil {
			return nil, err
		}
		o.PeriodKey = date.Format("2006-01")
		results = append(results, o)
	}
	return results, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
