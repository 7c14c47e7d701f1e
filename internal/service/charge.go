package service

import (
	"context"
	"errors"
	"fmt"

	"propbooks-backend/internal/domain"
	"propbooks-backend/internal/logger"
	"propbooks-backend/internal/repository"

	"github.com/shopspring/decimal"
)

// allocationTolerance is how far an allocation sum may drift from the
// charge amount before the request is rejected.
var allocationTolerance = decimal.NewFromFloat(0.01)

type chargeService struct {
	chargeRepo repository.ChargeRepository
	txRepo     repository.TransactionRepository
	leaseRepo  repository.LeaseRepository
	glRepo     repository.GLSettingsRepository
	engine     PostingService
}

func NewChargeService(
	chargeRepo repository.ChargeRepository,
	txRepo repository.TransactionRepository,
	leaseRepo repository.LeaseRepository,
	glRepo repository.GLSettingsRepository,
	engine PostingService,
) ChargeService {
	return &chargeService{
		chargeRepo: chargeRepo,
		txRepo:     txRepo,
		leaseRepo:  leaseRepo,
		glRepo:     glRepo,
		engine:     engine,
	}
}

// CreateChargeWithReceivable creates a charge + receivable pair and posts
// the matching ledger transaction. A repeated call with the same external
// id replays the original result without new writes. There is no database
// transaction spanning the inserts and the posting, so a posting failure
// triggers explicit compensating deletion of both rows.
func (s *chargeService) CreateChargeWithReceivable(ctx context.Context, params CreateChargeParams) (*CreateChargeResult, error) {
	lease, err := s.leaseRepo.GetByID(ctx, params.LeaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lease %d: %w", params.LeaseID, err)
	}
	if lease.OrgID == "" {
		return nil, fmt.Errorf("lease %d has no organization", params.LeaseID)
	}
	orgID := lease.OrgID

	if params.ExternalID != "" {
		existing, err := s.chargeRepo.FindByExternalID(ctx, orgID, params.ExternalID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if existing != nil {
			return s.replayExisting(ctx, orgID, params, existing)
		}
	}

	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("charge amount must be greater than zero")
	}
	if len(params.Allocations) > 0 {
		total := decimal.Zero
		for _, a := range params.Allocations {
			if a.AccountID == "" {
				return nil, fmt.Errorf("charge allocation requires a gl account id")
			}
			total = total.Add(a.Amount)
		}
		if total.Sub(params.Amount).Abs().GreaterThan(allocationTolerance) {
			return nil, fmt.Errorf("allocated amounts (%s) must equal the charge amount (%s)", total, params.Amount)
		}
	}

	gl, err := s.glRepo.Get(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load gl settings for org %s: %w", orgID, err)
	}

	allocations := params.Allocations
	if len(allocations) == 0 {
		allocations = []ChargeAllocation{{
			AccountID: s.defaultIncomeAccount(params.ChargeType, gl),
			Amount:    params.Amount,
			Memo:      params.Memo,
		}}
	}

	memo := params.Memo
	if memo == "" {
		memo = params.Description
	}

	// The charge and receivable are inserted before posting so the
	// obligation exists even when posting fails; the failure path below
	// removes them again.
	charge := &domain.Charge{
		OrgID:            orgID,
		LeaseID:          lease.ID,
		ChargeScheduleID: params.ChargeScheduleID,
		ParentChargeID:   params.ParentChargeID,
		ChargeType:       params.ChargeType,
		Amount:           params.Amount,
		AmountOpen:       params.Amount,
		DueDate:          params.DueDate,
		Description:      firstNonEmpty(params.Description, memo),
		Status:           domain.ChargeStatusOpen,
		ExternalID:       params.ExternalID,
		Source:           params.Source,
	}
	if err := s.chargeRepo.Create(ctx, charge); err != nil {
		return nil, err
	}

	receivable := &domain.Receivable{
		OrgID:          orgID,
		LeaseID:        lease.ID,
		ReceivableType: domain.ReceivableTypeFor(params.ChargeType),
		TotalAmount:    params.Amount,
		PaidAmount:     decimal.Zero,
		DueDate:        params.DueDate,
		Description:    charge.Description,
		Status:         domain.ChargeStatusOpen,
		ExternalID:     params.ExternalID,
		Source:         params.Source,
	}
	if err := s.chargeRepo.CreateReceivable(ctx, receivable); err != nil {
		s.rollback(ctx, charge.ID, "")
		return nil, err
	}

	transactionID, err := s.postCharge(ctx, lease, gl, params, allocations, memo)
	if err != nil {
		s.rollback(ctx, charge.ID, receivable.ID)
		return nil, err
	}

	if err := s.chargeRepo.SetTransactionID(ctx, charge.ID, transactionID); err != nil {
		return nil, err
	}
	charge.TransactionID = &transactionID

	transaction, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return &CreateChargeResult{
		Charge:      charge,
		Receivable:  receivable,
		Transaction: transaction,
		Allocations: allocations,
	}, nil
}

// replayExisting serves the idempotent path: the charge already exists
// for this external id, so return it with its linked rows.
func (s *chargeService) replayExisting(ctx context.Context, orgID string, params CreateChargeParams, charge *domain.Charge) (*CreateChargeResult, error) {
	result := &CreateChargeResult{Charge: charge}
	if charge.TransactionID != nil {
		tx, err := s.txRepo.GetByID(ctx, *charge.TransactionID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		result.Transaction = tx
	}
	recv, err := s.chargeRepo.FindReceivableByExternalID(ctx, orgID, params.ExternalID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	result.Receivable = recv
	return result, nil
}

func (s *chargeService) postCharge(ctx context.Context, lease *domain.Lease, gl *domain.OrgGLSettings, params CreateChargeParams, allocations []ChargeAllocation, memo string) (string, error) {
	postingDate := params.DueDate
	if params.TransactionDate != nil {
		postingDate = *params.TransactionDate
	}
	idempotencyKey := ""
	if params.ExternalID != "" {
		idempotencyKey = fmt.Sprintf("charge:%s:%s", lease.OrgID, params.ExternalID)
	}
	leaseID := lease.ID

	if len(allocations) == 1 {
		eventType := domain.EventRentCharge
		if params.ChargeType == domain.ChargeTypeLateFee {
			eventType = domain.EventLateFee
		}
		return s.engine.PostEvent(ctx, &domain.PostingEvent{
			EventType:      eventType,
			OrgID:          lease.OrgID,
			PropertyID:     lease.PropertyID,
			UnitID:         lease.UnitID,
			PostingDate:    postingDate,
			ExternalID:     params.ExternalID,
			IdempotencyKey: idempotencyKey,
			BusinessAmount: params.Amount,
			EventData: &domain.ChargeEventData{
				Amount:            params.Amount,
				Memo:              memo,
				LeaseID:           &leaseID,
				PropertyID:        lease.PropertyID,
				UnitID:            lease.UnitID,
				DebitGLAccountID:  gl.ARLease,
				CreditGLAccountID: allocations[0].AccountID,
			},
		})
	}

	// Multi-allocation: one AR debit for the full amount, one credit per
	// allocation account.
	lines := make([]domain.PostingLine, 0, len(allocations)+1)
	lines = append(lines, domain.PostingLine{
		GLAccountID: gl.ARLease,
		Amount:      params.Amount,
		PostingType: domain.PostingDebit,
		Memo:        memo,
		PropertyID:  lease.PropertyID,
		UnitID:      lease.UnitID,
		LeaseID:     &leaseID,
	})
	for _, a := range allocations {
		lineMemo := a.Memo
		if lineMemo == "" {
			lineMemo = memo
		}
		lines = append(lines, domain.PostingLine{
			GLAccountID: a.AccountID,
			Amount:      a.Amount,
			PostingType: domain.PostingCredit,
			Memo:        lineMemo,
			PropertyID:  lease.PropertyID,
			UnitID:      lease.UnitID,
			LeaseID:     &leaseID,
		})
	}
	return s.engine.PostEvent(ctx, &domain.PostingEvent{
		EventType:      domain.EventOtherTransaction,
		OrgID:          lease.OrgID,
		PropertyID:     lease.PropertyID,
		UnitID:         lease.UnitID,
		PostingDate:    postingDate,
		ExternalID:     params.ExternalID,
		IdempotencyKey: idempotencyKey,
		BusinessAmount: params.Amount,
		EventData: &domain.CustomLinesEventData{
			Memo:            memo,
			TransactionType: domain.TransactionCharge,
			Lines:           lines,
		},
	})
}

func (s *chargeService) defaultIncomeAccount(chargeType domain.ChargeType, gl *domain.OrgGLSettings) string {
	if chargeType == domain.ChargeTypeLateFee {
		if gl.LateFeeIncome != "" {
			return gl.LateFeeIncome
		}
		logger.Warn("Late fee income account not configured, falling back to rent income", "org_id", gl.OrgID)
	}
	return gl.RentIncome
}

// rollback removes the charge/receivable pair after a posting failure.
// Cleanup failures are logged, not returned; the posting error is the one
// the caller needs.
func (s *chargeService) rollback(ctx context.Context, chargeID, receivableID string) {
	if chargeID != "" {
		if err := s.chargeRepo.Delete(ctx, chargeID); err != nil {
			logger.Error("Failed to roll back charge after posting failure", "charge_id", chargeID, "error", err)
		}
	}
	if receivableID != "" {
		if err := s.chargeRepo.DeleteReceivable(ctx, receivableID); err != nil {
			logger.Error("Failed to roll back receivable after posting failure", "receivable_id", receivableID, "error", err)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
