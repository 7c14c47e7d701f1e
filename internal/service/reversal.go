package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"propbooks-backend/internal/domain"
	"propbooks-backend/internal/logger"
	"propbooks-backend/internal/repository"

	"github.com/shopspring/decimal"
)

// paidTolerance: a charge whose open amount is within a cent of zero is
// considered paid.
var paidTolerance = decimal.NewFromFloat(0.01)

// reversalService needs its own transaction scope spanning several store
// calls (row locks, allocation unwind, conditional NSF creation), which
// the posting engine's single-call path does not offer. It therefore
// holds the raw database handle and shares only the atomic insert with
// the engine via PostTransactionTx.
type reversalService struct {
	db         *sql.DB
	txRepo     repository.TransactionRepository
	glRepo     repository.GLSettingsRepository
	policyRepo repository.PolicyRepository
	engine     PostingService
}

func NewReversalService(
	db *sql.DB,
	txRepo repository.TransactionRepository,
	glRepo repository.GLSettingsRepository,
	policyRepo repository.PolicyRepository,
	engine PostingService,
) ReversalService {
	return &reversalService{
		db:         db,
		txRepo:     txRepo,
		glRepo:     glRepo,
		policyRepo: policyRepo,
		engine:     engine,
	}
}

// CreateReversal reverses a locked transaction through the posting
// engine, then stamps and locks the mirror. Unlocked transactions cannot
// be reversed; they can simply be edited or deleted.
func (s *reversalService) CreateReversal(ctx context.Context, params CreateReversalParams) (string, error) {
	original, err := s.txRepo.GetByID(ctx, params.OriginalTransactionID)
	if err != nil {
		return "", fmt.Errorf("failed to load transaction %s: %w", params.OriginalTransactionID, err)
	}
	if original.OrgID != params.OrgID {
		return "", domain.ErrOrgMismatch
	}
	if original.LockedAt == nil {
		return "", domain.ErrNotLocked
	}

	existing, err := s.txRepo.FindReversalOf(ctx, params.OriginalTransactionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	if existing != nil {
		return "", domain.ErrAlreadyReversed
	}

	reversalID, err := s.engine.PostEvent(ctx, &domain.PostingEvent{
		EventType:   domain.EventReversal,
		OrgID:       params.OrgID,
		PropertyID:  original.PropertyID,
		UnitID:      original.UnitID,
		PostingDate: params.ReversalDate,
		EventData: &domain.ReversalEventData{
			OriginalTransactionID: params.OriginalTransactionID,
			Memo:                  params.Memo,
		},
	})
	if err != nil {
		return "", err
	}

	if err := s.txRepo.SetReversalOf(ctx, reversalID, params.OriginalTransactionID); err != nil {
		return "", err
	}
	reason := params.Memo
	if reason == "" {
		reason = "reversal"
	}
	if err := s.txRepo.Lock(ctx, reversalID, reason, nil); err != nil {
		return "", err
	}
	return reversalID, nil
}

// ReversePaymentWithNSF unwinds a payment's allocations, mirrors the
// payment into a reversal transaction and optionally raises an NSF fee
// charge, all inside one database transaction. Re-invoking it for the
// same payment is a no-op returning the previously created ids.
func (s *reversalService) ReversePaymentWithNSF(ctx context.Context, params ReversePaymentParams) (*ReversePaymentResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	payment, err := s.lockPayment(ctx, tx, params.PaymentTransactionID)
	if err != nil {
		return nil, err
	}
	if payment.OrgID != params.OrgID {
		return nil, domain.ErrOrgMismatch
	}
	if payment.TransactionType != domain.TransactionPayment {
		return nil, fmt.Errorf("only payment transactions can be reversed via this path")
	}

	var existingReversalID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM transactions WHERE reversal_of_transaction_id = $1 LIMIT 1`,
		params.PaymentTransactionID).Scan(&existingReversalID)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	// Allocations are unwound before the reversal transaction exists so
	// that a racing second reversal finds nothing left to unwind.
	updatedCharges, err := s.unwindAllocations(ctx, tx, params.PaymentTransactionID)
	if err != nil {
		return nil, err
	}

	reversalID := existingReversalID
	if reversalID == "" {
		reversalID, err = s.createReversalTransaction(ctx, tx, payment, params)
		if err != nil {
			return nil, err
		}
	}

	nsfChargeID, err := s.maybeCreateNSFFee(ctx, tx, payment, params)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reversal: %w", err)
	}

	logger.Info("Reversed payment",
		"payment_transaction_id", params.PaymentTransactionID,
		"reversal_transaction_id", reversalID,
		"nsf_charge_id", nsfChargeID,
		"charges_unwound", len(updatedCharges))
	return &ReversePaymentResult{
		ReversalTransactionID: reversalID,
		NSFChargeID:           nsfChargeID,
		UpdatedCharges:        updatedCharges,
	}, nil
}

type lockedPayment struct {
	ID              string
	OrgID           string
	LeaseID         *int64
	PropertyID      *string
	UnitID          *string
	TransactionType domain.TransactionType
}

func (s *reversalService) lockPayment(ctx context.Context, tx *sql.Tx, paymentID string) (*lockedPayment, error) {
	var p lockedPayment
	err := tx.QueryRowContext(ctx,
		`SELECT id, org_id, lease_id, property_id, unit_id, transaction_type
		 FROM transactions WHERE id = $1 FOR UPDATE`,
		paymentID).Scan(&p.ID, &p.OrgID, &p.LeaseID, &p.PropertyID, &p.UnitID, &p.TransactionType)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payment %s: %w", paymentID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// unwindAllocations restores each allocated charge's open amount and
// status under row locks, then deletes the allocation rows.
func (s *reversalService) unwindAllocations(ctx context.Context, tx *sql.Tx, paymentID string) ([]domain.Charge, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT pa.allocated_amount, c.id, c.amount, c.amount_open
		 FROM payment_allocations pa
		 INNER JOIN charges c ON c.id = pa.charge_id
		 WHERE pa.payment_transaction_id = $1
		 FOR UPDATE OF c`,
		paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type allocation struct {
		amount     decimal.Decimal
		chargeID   string
		chargeAmt  decimal.Decimal
		chargeOpen decimal.Decimal
	}
	var allocations []allocation
	for rows.Next() {
		var a allocation
		if err := rows.Scan(&a.amount, &a.chargeID, &a.chargeAmt, &a.chargeOpen); err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(allocations) == 0 {
		return nil, nil
	}

	var updated []domain.Charge
	for _, a := range allocations {
		newOpen := a.chargeOpen.Add(a.amount)
		if newOpen.GreaterThan(a.chargeAmt) {
			newOpen = a.chargeAmt
		}
		status := domain.ChargeStatusOpen
		switch {
		case newOpen.LessThanOrEqual(paidTolerance):
			status = domain.ChargeStatusPaid
		case newOpen.LessThan(a.chargeAmt):
			status = domain.ChargeStatusPartial
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE charges SET amount_open = $1, status = $2, updated_at = NOW() WHERE id = $3`,
			newOpen.Round(2), status, a.chargeID)
		if err != nil {
			return nil, err
		}
		updated = append(updated, domain.Charge{
			ID:         a.chargeID,
			Amount:     a.chargeAmt,
			AmountOpen: newOpen.Round(2),
			Status:     status,
		})
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM payment_allocations WHERE payment_transaction_id = $1`, paymentID); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *reversalService) createReversalTransaction(ctx context.Context, tx *sql.Tx, payment *lockedPayment, params ReversePaymentParams) (string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT gl_account_id, amount, posting_type, COALESCE(memo, ''), property_id, unit_id, lease_id
		 FROM transaction_lines WHERE transaction_id = $1`,
		payment.ID)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var reversed []domain.PostingLine
	for rows.Next() {
		var l domain.PostingLine
		if err := rows.Scan(&l.GLAccountID, &l.Amount, &l.PostingType, &l.Memo, &l.PropertyID, &l.UnitID, &l.LeaseID); err != nil {
			return "", err
		}
		l.PostingType = l.PostingType.Flip()
		if params.Memo != "" {
			l.Memo = params.Memo
		} else if l.Memo == "" {
			l.Memo = "Reversal"
		}
		if l.PropertyID == nil {
			l.PropertyID = payment.PropertyID
		}
		if l.UnitID == nil {
			l.UnitID = payment.UnitID
		}
		if l.LeaseID == nil {
			l.LeaseID = payment.LeaseID
		}
		reversed = append(reversed, l)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(reversed) == 0 {
		return "", fmt.Errorf("no lines found for transaction %s", payment.ID)
	}

	memo := params.Memo
	if memo == "" {
		memo = "Payment reversal"
	}
	idempotencyKey := ""
	if params.ExternalID != "" {
		idempotencyKey = fmt.Sprintf("reverse:%s", params.ExternalID)
	}
	paymentID := payment.ID
	header := &domain.TransactionHeader{
		OrgID:                   payment.OrgID,
		TransactionType:         domain.TransactionGeneralJournalEntry,
		Date:                    params.ReversalDate,
		Memo:                    memo,
		TotalAmount:             computeNetAmount(reversed),
		LeaseID:                 payment.LeaseID,
		PropertyID:              payment.PropertyID,
		UnitID:                  payment.UnitID,
		ReversalOfTransactionID: &paymentID,
		IdempotencyKey:          idempotencyKey,
	}
	return s.txRepo.PostTransactionTx(ctx, tx, header, reversed, idempotencyKey, true)
}

// maybeCreateNSFFee resolves whether an NSF fee is wanted (explicit flag,
// org policy, or a supplied fee amount), resolves the amount, and creates
// the fee transaction plus its charge/receivable pair unless an NSF
// charge with the same idempotency lineage already exists. Policy and GL
// settings are org configuration and safe to read outside the row locks.
func (s *reversalService) maybeCreateNSFFee(ctx context.Context, tx *sql.Tx, payment *lockedPayment, params ReversePaymentParams) (string, error) {
	policy, err := s.policyRepo.GetReturnedPaymentPolicy(ctx, params.OrgID)
	if err != nil {
		return "", err
	}

	shouldCreate := false
	if params.CreateNSFFee != nil {
		shouldCreate = *params.CreateNSFFee
	} else if policy != nil && policy.AutoCreateNSFFee {
		shouldCreate = true
	} else if params.NSFFeeAmount != nil && params.NSFFeeAmount.IsPositive() {
		shouldCreate = true
	}

	amount := decimal.Zero
	if params.NSFFeeAmount != nil {
		amount = *params.NSFFeeAmount
	} else if policy != nil && policy.NSFFeeAmount != nil {
		amount = *policy.NSFFeeAmount
	}
	if !shouldCreate || !amount.IsPositive() {
		return "", nil
	}

	gl, err := s.glRepo.Get(ctx, params.OrgID)
	if err != nil {
		return "", fmt.Errorf("failed to load gl settings for org %s: %w", params.OrgID, err)
	}
	if gl.ARLease == "" {
		return "", fmt.Errorf("gl settings for org %s missing required role ar_lease", params.OrgID)
	}

	nsfKey := fmt.Sprintf("nsf:%s", payment.ID)
	if params.ExternalID != "" {
		nsfKey = fmt.Sprintf("nsf:%s", params.ExternalID)
	}

	var existingChargeID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM charges WHERE org_id = $1 AND external_id = $2 LIMIT 1`,
		params.OrgID, nsfKey).Scan(&existingChargeID)
	if err != nil && err != sql.ErrNoRows {
		return "", err
	}
	if existingChargeID != "" {
		return existingChargeID, nil
	}

	creditAccount := params.NSFFeeGLAccountID
	if creditAccount == "" && policy != nil {
		creditAccount = policy.NSFFeeGLAccountID
	}
	if creditAccount == "" {
		creditAccount = gl.LateFeeIncome
	}
	if creditAccount == "" {
		creditAccount = gl.RentIncome
	}

	memo := params.Memo
	if memo == "" {
		memo = "NSF fee"
	}
	lines := []domain.PostingLine{
		{GLAccountID: gl.ARLease, Amount: amount, PostingType: domain.PostingDebit, Memo: memo, PropertyID: payment.PropertyID, UnitID: payment.UnitID, LeaseID: payment.LeaseID},
		{GLAccountID: creditAccount, Amount: amount, PostingType: domain.PostingCredit, Memo: memo, PropertyID: payment.PropertyID, UnitID: payment.UnitID, LeaseID: payment.LeaseID},
	}
	header := &domain.TransactionHeader{
		OrgID:           params.OrgID,
		TransactionType: domain.TransactionCharge,
		Date:            params.ReversalDate,
		Memo:            memo,
		TotalAmount:     computeNetAmount(lines),
		LeaseID:         payment.LeaseID,
		PropertyID:      payment.PropertyID,
		UnitID:          payment.UnitID,
		IdempotencyKey:  nsfKey,
	}
	feeTransactionID, err := s.txRepo.PostTransactionTx(ctx, tx, header, lines, nsfKey, true)
	if err != nil {
		return "", err
	}

	return s.insertNSFChargeRecords(ctx, tx, payment, params, amount, feeTransactionID, nsfKey, memo)
}

func (s *reversalService) insertNSFChargeRecords(ctx context.Context, tx *sql.Tx, payment *lockedPayment, params ReversePaymentParams, amount decimal.Decimal, transactionID, externalID, memo string) (string, error) {
	var chargeID string
	err := tx.QueryRowContext(ctx,
		`INSERT INTO charges (id, org_id, lease_id, transaction_id, charge_type, amount, amount_open, due_date, description, status, source, external_id, created_at, updated_at)
		 VALUES (gen_random_uuid(), $1, $2, $3, 'late_fee', $4, $4, $5, $6, 'open', 'nsf', $7, NOW(), NOW())
		 RETURNING id`,
		params.OrgID, payment.LeaseID, transactionID, amount,
		params.ReversalDate.Format("2006-01-02"), memo, externalID).Scan(&chargeID)
	if err != nil {
		return "", fmt.Errorf("failed to insert nsf charge: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO receivables (id, org_id, lease_id, receivable_type, total_amount, paid_amount, due_date, description, status, external_id, source, created_at, updated_at)
		 VALUES (gen_random_uuid(), $1, $2, 'fee', $3, 0, $4, $5, 'open', $6, 'nsf', NOW(), NOW())`,
		params.OrgID, payment.LeaseID, amount,
		params.ReversalDate.Format("2006-01-02"), memo, externalID)
	if err != nil {
		return "", fmt.Errorf("failed to insert nsf receivable: %w", err)
	}
	return chargeID, nil
}

