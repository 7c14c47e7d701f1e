package repository

import (
	"context"
	"database/sql"
	"time"

	"propbooks-backend/internal/domain"
)

// TransactionRepository is the single write path into the ledger. The
// PostTransaction primitive inserts a header plus its lines atomically,
// enforcing the balance invariant and idempotency-key uniqueness. The Tx
// variant runs inside a caller-owned transaction so multi-statement
// workflows (reversal/NSF) share the same insert code path.
type TransactionRepository interface {
	PostTransaction(ctx context.Context, header *domain.TransactionHeader, lines []domain.PostingLine, idempotencyKey string, validateBalance bool) (string, error)
	PostTransactionTx(ctx context.Context, tx *sql.Tx, header *domain.TransactionHeader, lines []domain.PostingLine, idempotencyKey string, validateBalance bool) (string, error)
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetLines(ctx context.Context, transactionID string) ([]domain.TransactionLine, error)
	FindByIdempotencyKey(ctx context.Context, orgID, key string) (*domain.Transaction, error)
	FindReversalOf(ctx context.Context, transactionID string) (*domain.Transaction, error)
	SetReversalOf(ctx context.Context, transactionID, originalTransactionID string) error
	Lock(ctx context.Context, transactionID, reason string, userID *string) error
	HasChargeOnDate(ctx context.Context, leaseID int64, date time.Time) (bool, error)
	ListOverdueRentCharges(ctx context.Context, orgID, rentIncomeAccountID string, olderThan time.Time) ([]domain.OverdueRent, error)
}

type ChargeRepository interface {
	Create(ctx context.Context, charge *domain.Charge) error
	Delete(ctx context.Context, id string) error
	FindByExternalID(ctx context.Context, orgID, externalID string) (*domain.Charge, error)
	SetTransactionID(ctx context.Context, chargeID, transactionID string) error
	ExistsForScheduleDate(ctx context.Context, scheduleID string, dueDate time.Time) (bool, error)
	CountBySchedule(ctx context.Context, scheduleID string) (int, error)

	CreateReceivable(ctx context.Context, recv *domain.Receivable) error
	DeleteReceivable(ctx context.Context, id string) error
	FindReceivableByExternalID(ctx context.Context, orgID, externalID string) (*domain.Receivable, error)
}

type ChargeScheduleRepository interface {
	// ListDue returns active schedules whose window overlaps
	// [today, horizon], optionally filtered to one lease.
	ListDue(ctx context.Context, today, horizon time.Time, leaseID *int64) ([]domain.ChargeSchedule, error)
	HasActiveForLease(ctx context.Context, leaseID int64) (bool, error)
	ListTemplates(ctx context.Context, leaseID *int64) ([]domain.RecurringTemplate, error)
}

type GLSettingsRepository interface {
	Get(ctx context.Context, orgID string) (*domain.OrgGLSettings, error)
	ListOrgIDs(ctx context.Context) ([]string, error)
}

type LeaseRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Lease, error)
}

type PolicyRepository interface {
	// GetReturnedPaymentPolicy returns (nil, nil) when the org has no
	// policy configured.
	GetReturnedPaymentPolicy(ctx context.Context, orgID string) (*domain.ReturnedPaymentPolicy, error)
}
