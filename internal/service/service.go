package service

import (
	"context"
	"time"

	"propbooks-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// PostingService is the single write path for ledger transactions.
type PostingService interface {
	PostEvent(ctx context.Context, event *domain.PostingEvent) (string, error)
}

type CreateReversalParams struct {
	OriginalTransactionID string
	ReversalDate          time.Time
	Memo                  string
	OrgID                 string
}

type ReversePaymentParams struct {
	PaymentTransactionID string
	OrgID                string
	ReversalDate         time.Time
	Memo                 string
	NSFFeeAmount         *decimal.Decimal
	NSFFeeGLAccountID    string
	CreateNSFFee         *bool
	ExternalID           string
}

type ReversePaymentResult struct {
	ReversalTransactionID string
	NSFChargeID           string
	UpdatedCharges        []domain.Charge
}

type ReversalService interface {
	CreateReversal(ctx context.Context, params CreateReversalParams) (string, error)
	ReversePaymentWithNSF(ctx context.Context, params ReversePaymentParams) (*ReversePaymentResult, error)
}

type GenerateOptions struct {
	LeaseID *int64
}

type RecurringService interface {
	// GenerateRecurringCharges creates charges for all schedule and
	// legacy-template occurrences due within the horizon. Returns the
	// number of charges created.
	GenerateRecurringCharges(ctx context.Context, horizonDays int, opts *GenerateOptions) (int, error)
	PostLateFees(ctx context.Context) (int, error)
}

type ChargeAllocation struct {
	AccountID string
	Amount    decimal.Decimal
	Memo      string
}

type CreateChargeParams struct {
	LeaseID          int64
	ChargeType       domain.ChargeType
	Amount           decimal.Decimal
	DueDate          time.Time
	Description      string
	Memo             string
	ChargeScheduleID *string
	ParentChargeID   *string
	Allocations      []ChargeAllocation
	Source           string
	ExternalID       string
	TransactionDate  *time.Time
}

type CreateChargeResult struct {
	Charge      *domain.Charge
	Receivable  *domain.Receivable
	Transaction *domain.Transaction
	Allocations []ChargeAllocation
}

type ChargeService interface {
	CreateChargeWithReceivable(ctx context.Context, params CreateChargeParams) (*CreateChargeResult, error)
}
