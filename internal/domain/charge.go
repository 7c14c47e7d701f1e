package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ChargeType string

const (
	ChargeTypeRent    ChargeType = "rent"
	ChargeTypeLateFee ChargeType = "late_fee"
	ChargeTypeUtility ChargeType = "utility"
	ChargeTypeDeposit ChargeType = "deposit"
	ChargeTypeOther   ChargeType = "other"
)

type ChargeStatus string

const (
	ChargeStatusOpen    ChargeStatus = "open"
	ChargeStatusPartial ChargeStatus = "partial"
	ChargeStatusPaid    ChargeStatus = "paid"
)

// Charge is an open receivable obligation on a lease. AmountOpen starts
// equal to Amount and only shrinks as payments apply.
type Charge struct {
	ID               string
	OrgID            string
	LeaseID          int64
	TransactionID    *string
	ChargeScheduleID *string
	ParentChargeID   *string
	ChargeType       ChargeType
	Amount           decimal.Decimal
	AmountOpen       decimal.Decimal
	DueDate          time.Time
	Description      string
	Status           ChargeStatus
	ExternalID       string
	Source           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type ReceivableType string

const (
	ReceivableTypeRent    ReceivableType = "rent"
	ReceivableTypeFee     ReceivableType = "fee"
	ReceivableTypeUtility ReceivableType = "utility"
	ReceivableTypeOther   ReceivableType = "other"
)

// Receivable mirrors a Charge for reporting. It is not authoritative for
// ledger balance.
type Receivable struct {
	ID             string
	OrgID          string
	LeaseID        int64
	ReceivableType ReceivableType
	TotalAmount    decimal.Decimal
	PaidAmount     decimal.Decimal
	DueDate        time.Time
	Description    string
	Status         ChargeStatus
	ExternalID     string
	Source         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ReceivableTypeFor maps a charge type to its receivable classification.
func ReceivableTypeFor(ct ChargeType) ReceivableType {
	switch ct {
	case ChargeTypeLateFee:
		return ReceivableTypeFee
	case ChargeTypeRent:
		return ReceivableTypeRent
	case ChargeTypeUtility:
		return ReceivableTypeUtility
	default:
		return ReceivableTypeOther
	}
}

type Frequency string

const (
	FrequencyDaily        Frequency = "Daily"
	FrequencyWeekly       Frequency = "Weekly"
	FrequencyEvery2Weeks  Frequency = "Every2Weeks"
	FrequencyMonthly      Frequency = "Monthly"
	FrequencyEvery2Months Frequency = "Every2Months"
	FrequencyQuarterly    Frequency = "Quarterly"
	FrequencyEvery6Months Frequency = "Every6Months"
	FrequencyYearly       Frequency = "Yearly"
	FrequencyOneTime      Frequency = "OneTime"
)

// ChargeSchedule is a recurring-charge definition. Read-only to the
// accounting core except for occurrence counting.
type ChargeSchedule struct {
	ID             string
	OrgID          string
	LeaseID        int64
	GLAccountID    string
	ChargeType     ChargeType
	Amount         decimal.Decimal
	Frequency      Frequency
	StartDate      time.Time
	EndDate        *time.Time
	MaxOccurrences *int
	IsActive       bool
}

// RecurringTemplate is the legacy recurring-transaction model, consumed
// only when a lease has no active charge schedules.
type RecurringTemplate struct {
	ID        string
	OrgID     string
	LeaseID   int64
	Frequency Frequency
	Amount    decimal.Decimal
	Memo      string
	StartDate *time.Time
	EndDate   *time.Time
}

// PaymentAllocation links a payment transaction to a charge it pays down.
type PaymentAllocation struct {
	PaymentTransactionID string
	ChargeID             string
	AllocatedAmount      decimal.Decimal
}
