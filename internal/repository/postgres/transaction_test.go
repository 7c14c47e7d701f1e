package postgres

import (
	"context"
	"testing"
	"time"

	"propbooks-backend/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransactionRepository_PostTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewTransactionRepository(db)
	ctx := context.Background()

	header := &domain.TransactionHeader{
		OrgID:           "org-1",
		TransactionType: domain.TransactionCharge,
		Date:            time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Memo:            "January rent",
		TotalAmount:     decimal.NewFromInt(1500),
	}

	t.Run("Success", func(t *testing.T) {
		lines := []domain.PostingLine{
			{GLAccountID: "gl-ar", Amount: decimal.NewFromInt(1500), PostingType: domain.PostingDebit},
			{GLAccountID: "gl-rent", Amount: decimal.NewFromInt(1500), PostingType: domain.PostingCredit},
		}

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transaction_lines").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transaction_lines").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		id, err := repo.PostTransaction(ctx, header, lines, "charge:org-1:jan", true)
		assert.NoError(t, err)
		assert.NotEmpty(t, id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnbalancedRejected", func(t *testing.T) {
		lines := []domain.PostingLine{
			{GLAccountID: "gl-ar", Amount: decimal.NewFromInt(1500), PostingType: domain.PostingDebit},
			{GLAccountID: "gl-rent", Amount: decimal.NewFromInt(1000), PostingType: domain.PostingCredit},
		}

		mock.ExpectBegin()
		mock.ExpectRollback()

		_, err := repo.PostTransaction(ctx, header, lines, "", true)
		assert.ErrorIs(t, err, domain.ErrUnbalanced)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateIdempotencyKey", func(t *testing.T) {
		lines := []domain.PostingLine{
			{GLAccountID: "gl-ar", Amount: decimal.NewFromInt(100), PostingType: domain.PostingDebit},
			{GLAccountID: "gl-rent", Amount: decimal.NewFromInt(100), PostingType: domain.PostingCredit},
		}

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		_, err := repo.PostTransaction(ctx, header, lines, "charge:org-1:jan", true)
		assert.ErrorIs(t, err, domain.ErrDuplicateIdempotencyKey)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UnbalancedAllowedWhenValidationDisabled", func(t *testing.T) {
		lines := []domain.PostingLine{
			{GLAccountID: "gl-ar", Amount: decimal.NewFromInt(100), PostingType: domain.PostingDebit},
		}

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO transaction_lines").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, err := repo.PostTransaction(ctx, header, lines, "", false)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransactionRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewTransactionRepository(db)
	ctx := context.Background()

	columns := []string{"id", "org_id", "transaction_type", "date", "memo", "total_amount",
		"lease_id", "property_id", "unit_id", "reversal_of_transaction_id", "idempotency_key",
		"locked_at", "created_at", "updated_at"}

	t.Run("Success", func(t *testing.T) {
		now := time.Now().UTC()
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id").
			WithArgs("tx-1").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("tx-1", "org-1", "Charge", now, "January rent", "1500",
					int64(42), nil, nil, nil, "charge:org-1:jan", nil, now, now))

		tx, err := repo.GetByID(ctx, "tx-1")
		assert.NoError(t, err)
		assert.Equal(t, "tx-1", tx.ID)
		assert.Equal(t, domain.TransactionCharge, tx.TransactionType)
		assert.True(t, tx.TotalAmount.Equal(decimal.NewFromInt(1500)))
		assert.Equal(t, int64(42), *tx.LeaseID)
		assert.Nil(t, tx.LockedAt)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM transactions WHERE id").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(columns))

		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestTransactionRepository_Lock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewTransactionRepository(db)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("UPDATE transactions SET locked_at").
			WithArgs("reversal", nil, "tx-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Lock(ctx, "tx-1", "reversal", nil)
		assert.NoError(t, err)
	})

	t.Run("AlreadyLockedIsNoOp", func(t *testing.T) {
		mock.ExpectExec("UPDATE transactions SET locked_at").
			WithArgs("reversal", nil, "tx-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Lock(ctx, "tx-1", "reversal", nil)
		assert.NoError(t, err)
	})
}

func TestTransactionRepository_HasChargeOnDate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewTransactionRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(42), "2026-01-01").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.HasChargeOnDate(ctx, 42, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestTransactionRepository_ListOverdueRentCharges(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer db.Close()

	repo := NewTransactionRepository(db)
	ctx := context.Background()

	cutoff := time.Date(2026, 1, 27, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT DISTINCT ON").
		WithArgs("org-1", "gl-rent", "2026-01-27").
		WillReturnRows(sqlmock.NewRows([]string{"lease_id", "amount", "date"}).
			AddRow(int64(42), "1500", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)).
			AddRow(int64(7), "900", time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)))

	overdue, err := repo.ListOverdueRentCharges(ctx, "org-1", "gl-rent", cutoff)
	assert.NoError(t, err)
	assert.Len(t, overdue, 2)
	assert.Equal(t, "2026-01", overdue[0].PeriodKey)
	assert.Equal(t, "2025-12", overdue[1].PeriodKey)
	assert.True(t, overdue[0].Amount.Equal(decimal.NewFromInt(1500)))
}
