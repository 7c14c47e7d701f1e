package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"propbooks-backend/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestReversalService_CreateReversal(t *testing.T) {
	ctx := context.Background()
	lockedAt := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	reversalDate := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		txRepo := new(MockTransactionRepo)
		engine := new(MockPostingService)
		svc := NewReversalService(nil, txRepo, new(MockGLSettingsRepo), new(MockPolicyRepo), engine)

		txRepo.On("GetByID", ctx, "tx-1").Return(&domain.Transaction{
			ID: "tx-1", OrgID: "org-1", LockedAt: &lockedAt,
		}, nil)
		txRepo.On("FindReversalOf", ctx, "tx-1").Return(nil, domain.ErrNotFound)

		var event *domain.PostingEvent
		engine.On("PostEvent", ctx, mock.Anything).
			Run(func(args mock.Arguments) { event = args.Get(1).(*domain.PostingEvent) }).
			Return("rev-1", nil)
		txRepo.On("SetReversalOf", ctx, "rev-1", "tx-1").Return(nil)
		txRepo.On("Lock", ctx, "rev-1", "voided by accountant", (*string)(nil)).Return(nil)

		id, err := svc.CreateReversal(ctx, CreateReversalParams{
			OriginalTransactionID: "tx-1",
			ReversalDate:          reversalDate,
			Memo:                  "voided by accountant",
			OrgID:                 "org-1",
		})

		assert.NoError(t, err)
		assert.Equal(t, "rev-1", id)
		assert.Equal(t, domain.EventReversal, event.EventType)
		data := event.EventData.(*domain.ReversalEventData)
		assert.Equal(t, "tx-1", data.OriginalTransactionID)
	})

	t.Run("UnlockedRejected", func(t *testing.T) {
		txRepo := new(MockTransactionRepo)
		engine := new(MockPostingService)
		svc := NewReversalService(nil, txRepo, new(MockGLSettingsRepo), new(MockPolicyRepo), engine)

		txRepo.On("GetByID", ctx, "tx-1").Return(&domain.Transaction{
			ID: "tx-1", OrgID: "org-1",
		}, nil)

		_, err := svc.CreateReversal(ctx, CreateReversalParams{
			OriginalTransactionID: "tx-1",
			ReversalDate:          reversalDate,
			OrgID:                 "org-1",
		})

		assert.ErrorIs(t, err, domain.ErrNotLocked)
		engine.AssertNotCalled(t, "PostEvent", mock.Anything, mock.Anything)
	})

	t.Run("OrgMismatch", func(t *testing.T) {
		txRepo := new(MockTransactionRepo)
		svc := NewReversalService(nil, txRepo, new(MockGLSettingsRepo), new(MockPolicyRepo), new(MockPostingService))

		txRepo.On("GetByID", ctx, "tx-1").Return(&domain.Transaction{
			ID: "tx-1", OrgID: "org-other", LockedAt: &lockedAt,
		}, nil)

		_, err := svc.CreateReversal(ctx, CreateReversalParams{
			OriginalTransactionID: "tx-1",
			ReversalDate:          reversalDate,
			OrgID:                 "org-1",
		})

		assert.ErrorIs(t, err, domain.ErrOrgMismatch)
	})

	t.Run("AlreadyReversed", func(t *testing.T) {
		txRepo := new(MockTransactionRepo)
		engine := new(MockPostingService)
		svc := NewReversalService(nil, txRepo, new(MockGLSettingsRepo), new(MockPolicyRepo), engine)

		txRepo.On("GetByID", ctx, "tx-1").Return(&domain.Transaction{
			ID: "tx-1", OrgID: "org-1", LockedAt: &lockedAt,
		}, nil)
		txRepo.On("FindReversalOf", ctx, "tx-1").Return(&domain.Transaction{ID: "rev-old"}, nil)

		_, err := svc.CreateReversal(ctx, CreateReversalParams{
			OriginalTransactionID: "tx-1",
			ReversalDate:          reversalDate,
			OrgID:                 "org-1",
		})

		assert.ErrorIs(t, err, domain.ErrAlreadyReversed)
		engine.AssertNotCalled(t, "PostEvent", mock.Anything, mock.Anything)
	})
}

func TestReversalService_ReversePaymentWithNSF(t *testing.T) {
	ctx := context.Background()
	reversalDate := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	leaseID := int64(42)

	t.Run("FullWorkflow", func(t *testing.T) {
		db, dbmock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("error opening mock database: %v", err)
		}
		defer db.Close()

		txRepo := new(MockTransactionRepo)
		glRepo := new(MockGLSettingsRepo)
		policyRepo := new(MockPolicyRepo)
		svc := NewReversalService(db, txRepo, glRepo, policyRepo, new(MockPostingService))

		dbmock.ExpectBegin()
		dbmock.ExpectQuery("SELECT id, org_id, lease_id, property_id, unit_id, transaction_type").
			WithArgs("pay-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "lease_id", "property_id", "unit_id", "transaction_type"}).
				AddRow("pay-1", "org-1", leaseID, "prop-1", "unit-1", "Payment"))
		dbmock.ExpectQuery("SELECT id FROM transactions WHERE reversal_of_transaction_id").
			WithArgs("pay-1").
			WillReturnError(sql.ErrNoRows)

		// One allocation of $500 against a $1500 charge with $1000 open
		dbmock.ExpectQuery("SELECT pa.allocated_amount").
			WithArgs("pay-1").
			WillReturnRows(sqlmock.NewRows([]string{"allocated_amount", "id", "amount", "amount_open"}).
				AddRow("500", "charge-1", "1500", "1000"))
		dbmock.ExpectExec("UPDATE charges SET amount_open").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "charge-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbmock.ExpectExec("DELETE FROM payment_allocations").
			WithArgs("pay-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		dbmock.ExpectQuery("SELECT gl_account_id, amount, posting_type").
			WithArgs("pay-1").
			WillReturnRows(sqlmock.NewRows([]string{"gl_account_id", "amount", "posting_type", "memo", "property_id", "unit_id", "lease_id"}).
				AddRow("gl-cash", "500", "Debit", "", nil, nil, leaseID).
				AddRow("gl-ar", "500", "Credit", "", nil, nil, leaseID))

		var reversalHeader *domain.TransactionHeader
		var reversalLines []domain.PostingLine
		txRepo.On("PostTransactionTx", ctx, mock.Anything, mock.Anything, mock.Anything, "reverse:ext-1", true).
			Run(func(args mock.Arguments) {
				reversalHeader = args.Get(2).(*domain.TransactionHeader)
				reversalLines = args.Get(3).([]domain.PostingLine)
			}).
			Return("rev-1", nil).Once()

		// Org policy auto-creates a $35 NSF fee
		feeAmount := decimal.NewFromInt(35)
		policyRepo.On("GetReturnedPaymentPolicy", ctx, "org-1").Return(&domain.ReturnedPaymentPolicy{
			OrgID:            "org-1",
			AutoCreateNSFFee: true,
			NSFFeeAmount:     &feeAmount,
		}, nil)
		glRepo.On("Get", ctx, "org-1").Return(testGLSettings(), nil)
		dbmock.ExpectQuery("SELECT id FROM charges WHERE org_id").
			WithArgs("org-1", "nsf:ext-1").
			WillReturnError(sql.ErrNoRows)

		var feeHeader *domain.TransactionHeader
		var feeLines []domain.PostingLine
		txRepo.On("PostTransactionTx", ctx, mock.Anything, mock.Anything, mock.Anything, "nsf:ext-1", true).
			Run(func(args mock.Arguments) {
				feeHeader = args.Get(2).(*domain.TransactionHeader)
				feeLines = args.Get(3).([]domain.PostingLine)
			}).
			Return("fee-1", nil).Once()

		dbmock.ExpectQuery("INSERT INTO charges").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("nsf-charge-1"))
		dbmock.ExpectExec("INSERT INTO receivables").
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbmock.ExpectCommit()

		res, err := svc.ReversePaymentWithNSF(ctx, ReversePaymentParams{
			PaymentTransactionID: "pay-1",
			OrgID:                "org-1",
			ReversalDate:         reversalDate,
			ExternalID:           "ext-1",
		})

		assert.NoError(t, err)
		assert.Equal(t, "rev-1", res.ReversalTransactionID)
		assert.Equal(t, "nsf-charge-1", res.NSFChargeID)

		// Allocation unwind restored the charge's full open amount
		assert.Len(t, res.UpdatedCharges, 1)
		assert.True(t, res.UpdatedCharges[0].AmountOpen.Equal(decimal.NewFromInt(1500)))
		assert.Equal(t, domain.ChargeStatusOpen, res.UpdatedCharges[0].Status)

		// The reversal mirrors the payment's lines
		assert.Equal(t, "pay-1", *reversalHeader.ReversalOfTransactionID)
		assert.Equal(t, domain.TransactionGeneralJournalEntry, reversalHeader.TransactionType)
		assert.Equal(t, domain.PostingCredit, reversalLines[0].PostingType)
		assert.Equal(t, "gl-cash", reversalLines[0].GLAccountID)
		assert.Equal(t, domain.PostingDebit, reversalLines[1].PostingType)

		// NSF fee debits AR and credits late fee income
		assert.Equal(t, domain.TransactionCharge, feeHeader.TransactionType)
		assert.Equal(t, "gl-ar", feeLines[0].GLAccountID)
		assert.Equal(t, "gl-latefee", feeLines[1].GLAccountID)
		assert.True(t, feeLines[0].Amount.Equal(decimal.NewFromInt(35)))

		assert.NoError(t, dbmock.ExpectationsWereMet())
	})

	t.Run("RepeatReturnsExistingReversal", func(t *testing.T) {
		db, dbmock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("error opening mock database: %v", err)
		}
		defer db.Close()

		txRepo := new(MockTransactionRepo)
		policyRepo := new(MockPolicyRepo)
		svc := NewReversalService(db, txRepo, new(MockGLSettingsRepo), policyRepo, new(MockPostingService))

		dbmock.ExpectBegin()
		dbmock.ExpectQuery("SELECT id, org_id, lease_id, property_id, unit_id, transaction_type").
			WithArgs("pay-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "lease_id", "property_id", "unit_id", "transaction_type"}).
				AddRow("pay-1", "org-1", leaseID, nil, nil, "Payment"))
		dbmock.ExpectQuery("SELECT id FROM transactions WHERE reversal_of_transaction_id").
			WithArgs("pay-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rev-old"))

		// Allocations already unwound by the first run
		dbmock.ExpectQuery("SELECT pa.allocated_amount").
			WithArgs("pay-1").
			WillReturnRows(sqlmock.NewRows([]string{"allocated_amount", "id", "amount", "amount_open"}))

		// No policy configured and no explicit fee requested
		policyRepo.On("GetReturnedPaymentPolicy", ctx, "org-1").Return(nil, nil)
		dbmock.ExpectCommit()

		res, err := svc.ReversePaymentWithNSF(ctx, ReversePaymentParams{
			PaymentTransactionID: "pay-1",
			OrgID:                "org-1",
			ReversalDate:         reversalDate,
			ExternalID:           "ext-1",
		})

		assert.NoError(t, err)
		assert.Equal(t, "rev-old", res.ReversalTransactionID)
		assert.Empty(t, res.NSFChargeID)
		assert.Empty(t, res.UpdatedCharges)
		txRepo.AssertNotCalled(t, "PostTransactionTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.NoError(t, dbmock.ExpectationsWereMet())
	})

	t.Run("NonPaymentRejected", func(t *testing.T) {
		db, dbmock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("error opening mock database: %v", err)
		}
		defer db.Close()

		svc := NewReversalService(db, new(MockTransactionRepo), new(MockGLSettingsRepo), new(MockPolicyRepo), new(MockPostingService))

		dbmock.ExpectBegin()
		dbmock.ExpectQuery("SELECT id, org_id, lease_id, property_id, unit_id, transaction_type").
			WithArgs("tx-charge").
			WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "lease_id", "property_id", "unit_id", "transaction_type"}).
				AddRow("tx-charge", "org-1", leaseID, nil, nil, "Charge"))
		dbmock.ExpectRollback()

		_, err = svc.ReversePaymentWithNSF(ctx, ReversePaymentParams{
			PaymentTransactionID: "tx-charge",
			OrgID:                "org-1",
			ReversalDate:         reversalDate,
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "only payment transactions")
	})

	t.Run("PartialAllocationUnwind", func(t *testing.T) {
		db, dbmock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("error opening mock database: %v", err)
		}
		defer db.Close()

		txRepo := new(MockTransactionRepo)
		policyRepo := new(MockPolicyRepo)
		svc := NewReversalService(db, txRepo, new(MockGLSettingsRepo), policyRepo, new(MockPostingService))

		createFee := false
		dbmock.ExpectBegin()
		dbmock.ExpectQuery("SELECT id, org_id, lease_id, property_id, unit_id, transaction_type").
			WithArgs("pay-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "lease_id", "property_id", "unit_id", "transaction_type"}).
				AddRow("pay-1", "org-1", leaseID, nil, nil, "Payment"))
		dbmock.ExpectQuery("SELECT id FROM transactions WHERE reversal_of_transaction_id").
			WithArgs("pay-1").
			WillReturnError(sql.ErrNoRows)

		// $200 of a $1500 charge was allocated; $1100 was open
		dbmock.ExpectQuery("SELECT pa.allocated_amount").
			WithArgs("pay-1").
			WillReturnRows(sqlmock.NewRows([]string{"allocated_amount", "id", "amount", "amount_open"}).
				AddRow("200", "charge-1", "1500", "1100"))
		dbmock.ExpectExec("UPDATE charges SET amount_open").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "charge-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbmock.ExpectExec("DELETE FROM payment_allocations").
			WithArgs("pay-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		dbmock.ExpectQuery("SELECT gl_account_id, amount, posting_type").
			WithArgs("pay-1").
			WillReturnRows(sqlmock.NewRows([]string{"gl_account_id", "amount", "posting_type", "memo", "property_id", "unit_id", "lease_id"}).
				AddRow("gl-cash", "200", "Debit", "", nil, nil, leaseID).
				AddRow("gl-ar", "200", "Credit", "", nil, nil, leaseID))
		txRepo.On("PostTransactionTx", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, true).
			Return("rev-1", nil).Once()

		policyRepo.On("GetReturnedPaymentPolicy", ctx, "org-1").Return(nil, nil)
		dbmock.ExpectCommit()

		res, err := svc.ReversePaymentWithNSF(ctx, ReversePaymentParams{
			PaymentTransactionID: "pay-1",
			OrgID:                "org-1",
			ReversalDate:         reversalDate,
			CreateNSFFee:         &createFee,
		})

		assert.NoError(t, err)
		assert.Len(t, res.UpdatedCharges, 1)
		// 1100 + 200 = 1300, still below 1500, so partial
		assert.True(t, res.UpdatedCharges[0].AmountOpen.Equal(decimal.NewFromInt(1300)))
		assert.Equal(t, domain.ChargeStatusPartial, res.UpdatedCharges[0].Status)
		assert.NoError(t, dbmock.ExpectationsWereMet())
	})
}
