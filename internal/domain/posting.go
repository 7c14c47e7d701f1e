package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PostingType string

const (
	PostingDebit  PostingType = "Debit"
	PostingCredit PostingType = "Credit"
)

// Flip returns the opposite posting type. Used when mirroring a
// transaction into its reversal.
func (p PostingType) Flip() PostingType {
	if p == PostingDebit {
		return PostingCredit
	}
	return PostingDebit
}

type EventType string

const (
	EventRentCharge          EventType = "rent_charge"
	EventRecurringCharge     EventType = "recurring_charge"
	EventLateFee             EventType = "late_fee"
	EventTenantPayment       EventType = "tenant_payment"
	EventVendorBill          EventType = "vendor_bill"
	EventDeposit             EventType = "deposit"
	EventOwnerDistribution   EventType = "owner_distribution"
	EventReversal            EventType = "reversal"
	EventGeneralJournalEntry EventType = "general_journal_entry"
	EventBankTransfer        EventType = "bank_transfer"
	EventOtherTransaction    EventType = "other_transaction"
	EventNSFFee              EventType = "nsf_fee"
)

// PostingLine is one leg of a balanced transaction. Amount is always a
// non-negative magnitude; the direction is carried by PostingType.
type PostingLine struct {
	GLAccountID string          `json:"gl_account_id"`
	Amount      decimal.Decimal `json:"amount"`
	PostingType PostingType     `json:"posting_type"`
	Memo        string          `json:"memo,omitempty"`
	PropertyID  *string         `json:"property_id,omitempty"`
	UnitID      *string         `json:"unit_id,omitempty"`
	LeaseID     *int64          `json:"lease_id,omitempty"`
}

// EventData is the per-event-type payload of a PostingEvent. Exactly one
// concrete type exists per event type; the posting rule table switches on
// the event type and expects the matching payload.
type EventData interface {
	isEventData()
}

// ChargeEventData backs rent_charge, recurring_charge, late_fee and
// nsf_fee events.
type ChargeEventData struct {
	Amount            decimal.Decimal
	Memo              string
	LeaseID           *int64
	PropertyID        *string
	UnitID            *string
	DebitGLAccountID  string
	CreditGLAccountID string
}

type TenantPaymentEventData struct {
	Amount              decimal.Decimal
	Memo                string
	LeaseID             *int64
	BankGLAccountID     string
	UseUndepositedFunds bool
}

type DepositEventData struct {
	Amount          decimal.Decimal
	Memo            string
	LeaseID         *int64
	BankGLAccountID string
}

type VendorBillEventData struct {
	Amount             decimal.Decimal
	Memo               string
	ExpenseGLAccountID string
	APGLAccountID      string
	BankGLAccountID    string
}

type OwnerDistributionEventData struct {
	Amount            decimal.Decimal
	Memo              string
	EquityGLAccountID string
	BankGLAccountID   string
}

type ReversalEventData struct {
	OriginalTransactionID string
	Memo                  string
}

type BankTransferEventData struct {
	Amount              decimal.Decimal
	Memo                string
	FromBankGLAccountID string
	ToBankGLAccountID   string
}

// CustomLinesEventData backs general_journal_entry and other_transaction
// events where the caller supplies the full line set.
type CustomLinesEventData struct {
	Memo            string
	TransactionType TransactionType
	Lines           []PostingLine
}

func (ChargeEventData) isEventData()            {}
func (TenantPaymentEventData) isEventData()     {}
func (DepositEventData) isEventData()           {}
func (VendorBillEventData) isEventData()        {}
func (OwnerDistributionEventData) isEventData() {}
func (ReversalEventData) isEventData()          {}
func (BankTransferEventData) isEventData()      {}
func (CustomLinesEventData) isEventData()       {}

// PostingEvent is the transient instruction handed to the posting engine.
// It is never persisted as-is.
type PostingEvent struct {
	EventType      EventType
	EventData      EventData
	OrgID          string
	PropertyID     *string
	UnitID         *string
	PostingDate    time.Time
	CreatedAt      *time.Time
	ExternalID     string
	IdempotencyKey string
	BusinessAmount decimal.Decimal
}

// LeaseID extracts the lease reference from the event payload, if the
// payload type carries one.
func (e *PostingEvent) LeaseID() *int64 {
	switch d := e.EventData.(type) {
	case *ChargeEventData:
		return d.LeaseID
	case *TenantPaymentEventData:
		return d.LeaseID
	case *DepositEventData:
		return d.LeaseID
	}
	return nil
}
