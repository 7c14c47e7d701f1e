package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionCharge              TransactionType = "Charge"
	TransactionPayment             TransactionType = "Payment"
	TransactionDeposit             TransactionType = "Deposit"
	TransactionBill                TransactionType = "Bill"
	TransactionOther               TransactionType = "Other"
	TransactionGeneralJournalEntry TransactionType = "GeneralJournalEntry"
	TransactionEFT                 TransactionType = "ElectronicFundsTransfer"
)

// TransactionHeader is the insert payload for a ledger transaction.
type TransactionHeader struct {
	OrgID                   string          `json:"org_id"`
	TransactionType         TransactionType `json:"transaction_type"`
	Date                    time.Time       `json:"date"`
	Memo                    string          `json:"memo,omitempty"`
	TotalAmount             decimal.Decimal `json:"total_amount"`
	LeaseID                 *int64          `json:"lease_id,omitempty"`
	PropertyID              *string         `json:"property_id,omitempty"`
	UnitID                  *string         `json:"unit_id,omitempty"`
	ReversalOfTransactionID *string         `json:"reversal_of_transaction_id,omitempty"`
	IdempotencyKey          string          `json:"idempotency_key,omitempty"`
	CreatedAt               time.Time       `json:"created_at"`
}

// Transaction is a persisted ledger transaction. Immutable once LockedAt
// is set; at most one reversal may reference it.
type Transaction struct {
	ID                      string
	OrgID                   string
	TransactionType         TransactionType
	Date                    time.Time
	Memo                    string
	TotalAmount             decimal.Decimal
	LeaseID                 *int64
	PropertyID              *string
	UnitID                  *string
	ReversalOfTransactionID *string
	IdempotencyKey          string
	LockedAt                *time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// TransactionLine is a persisted posting line.
type TransactionLine struct {
	TransactionID string
	GLAccountID   string
	Amount        decimal.Decimal
	PostingType   PostingType
	Memo          string
	PropertyID    *string
	UnitID        *string
	LeaseID       *int64
}

// OverdueRent identifies the most recent rent credit on a lease that is
// past the late-fee grace window. PeriodKey is the YYYY-MM of the rent
// posting and anchors late-fee idempotency.
type OverdueRent struct {
	LeaseID   int64
	Amount    decimal.Decimal
	PeriodKey string
}
