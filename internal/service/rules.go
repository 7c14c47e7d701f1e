package service

import (
	"context"
	"fmt"

	"propbooks-backend/internal/domain"

	"github.com/shopspring/decimal"
)

// lineReader loads a prior transaction's lines. Only the reversal rule
// reads existing ledger state.
type lineReader interface {
	GetLines(ctx context.Context, transactionID string) ([]domain.TransactionLine, error)
}

type ruleScope struct {
	PropertyID *string
	UnitID     *string
}

type ruleContext struct {
	event *domain.PostingEvent
	gl    *domain.OrgGLSettings
	lease *domain.Lease
	scope ruleScope
	lines lineReader
}

// headerOverrides carries per-rule transaction-header fields. Zero values
// mean "no override".
type headerOverrides struct {
	transactionType domain.TransactionType
	memo            string
	leaseID         *int64
	propertyID      *string
	unitID          *string
	totalAmount     *decimal.Decimal
	reversalOf      string
}

type ruleResult struct {
	lines  []domain.PostingLine
	header headerOverrides
}

type postingRule struct {
	generate func(ctx context.Context, rc ruleContext) (ruleResult, error)
	validate func(event *domain.PostingEvent, gl *domain.OrgGLSettings) error
}

// ensureAmount normalizes a rule amount: the payload amount wins, falling
// back to the event's business amount; zero fails before any line is
// built. The returned value is always a positive magnitude.
func ensureAmount(raw, fallback decimal.Decimal, eventType domain.EventType) (decimal.Decimal, error) {
	amt := raw
	if amt.IsZero() {
		amt = fallback
	}
	if amt.IsZero() {
		return decimal.Zero, fmt.Errorf("posting rule %s requires a non-zero amount", eventType)
	}
	return amt.Abs(), nil
}

// computeHeaderAmount derives the header total for caller-supplied line
// sets: sum of debits, else sum of credits, else the fallback magnitude.
func computeHeaderAmount(lines []domain.PostingLine, fallback decimal.Decimal) decimal.Decimal {
	debits, credits := decimal.Zero, decimal.Zero
	for _, l := range lines {
		if l.PostingType == domain.PostingDebit {
			debits = debits.Add(l.Amount)
		} else {
			credits = credits.Add(l.Amount)
		}
	}
	if debits.IsPositive() {
		return debits
	}
	if credits.IsPositive() {
		return credits
	}
	return fallback.Abs()
}

// computeNetAmount is the signed debit-minus-credit sum across lines.
func computeNetAmount(lines []domain.PostingLine) decimal.Decimal {
	net := decimal.Zero
	for _, l := range lines {
		if l.PostingType == domain.PostingDebit {
			net = net.Add(l.Amount)
		} else {
			net = net.Sub(l.Amount)
		}
	}
	return net
}

func chargeData(rc ruleContext) (*domain.ChargeEventData, error) {
	d, ok := rc.event.EventData.(*domain.ChargeEventData)
	if !ok || d == nil {
		return nil, fmt.Errorf("posting rule %s requires charge event data", rc.event.EventType)
	}
	return d, nil
}

func ruleLeaseID(d *domain.ChargeEventData, rc ruleContext) *int64 {
	if d.LeaseID != nil {
		return d.LeaseID
	}
	if rc.lease != nil {
		id := rc.lease.ID
		return &id
	}
	return nil
}

// generateChargeLines is the shared shape for rent_charge,
// recurring_charge, late_fee and nsf_fee: debit a receivable account,
// credit an income account, equal amounts.
func generateChargeLines(rc ruleContext, debitAccount, creditAccount, memo string, amount decimal.Decimal, leaseID *int64, propertyID, unitID *string) ruleResult {
	lines := []domain.PostingLine{
		{GLAccountID: debitAccount, Amount: amount, PostingType: domain.PostingDebit, Memo: memo, PropertyID: propertyID, UnitID: unitID, LeaseID: leaseID},
		{GLAccountID: creditAccount, Amount: amount, PostingType: domain.PostingCredit, Memo: memo, PropertyID: propertyID, UnitID: unitID, LeaseID: leaseID},
	}
	return ruleResult{
		lines: lines,
		header: headerOverrides{
			transactionType: domain.TransactionCharge,
			memo:            memo,
			leaseID:         leaseID,
			propertyID:      propertyID,
			unitID:          unitID,
			totalAmount:     &amount,
		},
	}
}

func rentChargeRule() postingRule {
	return postingRule{
		generate: func(_ context.Context, rc ruleContext) (ruleResult, error) {
			d, err := chargeData(rc)
			if err != nil {
				return ruleResult{}, err
			}
			amount, err := ensureAmount(d.Amount, rc.event.BusinessAmount, rc.event.EventType)
			if err != nil {
				return ruleResult{}, err
			}
			debit := d.DebitGLAccountID
			if debit == "" {
				debit = rc.gl.ARLease
			}
			credit := d.CreditGLAccountID
			if credit == "" {
				credit = rc.gl.RentIncome
			}
			propertyID := coalescePtr(d.PropertyID, rc.scope.PropertyID)
			unitID := coalescePtr(d.UnitID, rc.scope.UnitID)
			return generateChargeLines(rc, debit, credit, d.Memo, amount, ruleLeaseID(d, rc), propertyID, unitID), nil
		},
	}
}

func feeRule(defaultMemo string) postingRule {
	return postingRule{
		generate: func(_ context.Context, rc ruleContext) (ruleResult, error) {
			d, err := chargeData(rc)
			if err != nil {
				return ruleResult{}, err
			}
			amount, err := ensureAmount(d.Amount, rc.event.BusinessAmount, rc.event.EventType)
			if err != nil {
				return ruleResult{}, err
			}
			memo := d.Memo
			if memo == "" {
				memo = defaultMemo
			}
			credit := d.CreditGLAccountID
			if credit == "" {
				credit = rc.gl.LateFeeIncome
			}
			if credit == "" {
				credit = rc.gl.RentIncome
			}
			propertyID := coalescePtr(d.PropertyID, rc.scope.PropertyID)
			unitID := coalescePtr(d.UnitID, rc.scope.UnitID)
			return generateChargeLines(rc, rc.gl.ARLease, credit, memo, amount, ruleLeaseID(d, rc), propertyID, unitID), nil
		},
	}
}

func tenantPaymentRule() postingRule {
	return postingRule{
		generate: func(_ context.Context, rc ruleContext) (ruleResult, error) {
			d, ok := rc.event.EventData.(*domain.TenantPaymentEventData)
			if !ok || d == nil {
				return ruleResult{}, fmt.Errorf("posting rule tenant_payment requires payment event data")
			}
			amount, err := ensureAmount(d.Amount, rc.event.BusinessAmount, rc.event.EventType)
			if err != nil {
				return ruleResult{}, err
			}
			bankAccount := d.BankGLAccountID
			if d.UseUndepositedFunds {
				bankAccount = rc.gl.UndepositedFunds
			} else if bankAccount == "" {
				bankAccount = rc.gl.CashOperating
			}
			if bankAccount == "" {
				return ruleResult{}, fmt.Errorf("tenant_payment requires a bank gl account or undeposited funds account")
			}
			leaseID := d.LeaseID
			if leaseID == nil && rc.lease != nil {
				id := rc.lease.ID
				leaseID = &id
			}
			lines := []domain.PostingLine{
				{GLAccountID: bankAccount, Amount: amount, PostingType: domain.PostingDebit, Memo: d.Memo, PropertyID: rc.scope.PropertyID, UnitID: rc.scope.UnitID, LeaseID: leaseID},
				{GLAccountID: rc.gl.ARLease, Amount: amount, PostingType: domain.PostingCredit, Memo: d.Memo, PropertyID: rc.scope.PropertyID, UnitID: rc.scope.UnitID, LeaseID: leaseID},
			}
			return ruleResult{
				lines: lines,
				header: headerOverrides{
					transactionType: domain.TransactionPayment,
					memo:            d.Memo,
					leaseID:         leaseID,
					propertyID:      rc.scope.PropertyID,
					unitID:          rc.scope.UnitID,
					totalAmount:     &amount,
				},
			}, nil
		},
	}
}

func depositRule() postingRule {
	return postingRule{
		generate: func(_ context.Context, rc ruleContext) (ruleResult, error) {
			d, ok := rc.event.EventData.(*domain.DepositEventData)
			if !ok || d == nil {
				return ruleResult{}, fmt.Errorf("posting rule deposit requires deposit event data")
			}
			amount, err := ensureAmount(d.Amount, rc.event.BusinessAmount, rc.event.EventType)
			if err != nil {
				return ruleResult{}, err
			}
			if d.BankGLAccountID == "" {
				return ruleResult{}, fmt.Errorf("deposit requires a bank gl account")
			}
			memo := d.Memo
			if memo == "" {
				memo = "Security deposit"
			}
			leaseID := d.LeaseID
			if leaseID == nil && rc.lease != nil {
				id := rc.lease.ID
				leaseID = &id
			}
			lines := []domain.PostingLine{
				{GLAccountID: d.BankGLAccountID, Amount: amount, PostingType: domain.PostingDebit, Memo: memo, PropertyID: rc.scope.PropertyID, UnitID: rc.scope.UnitID, LeaseID: leaseID},
				{GLAccountID: rc.gl.TenantDepositLiability, Amount: amount, PostingType: domain.PostingCredit, Memo: memo, PropertyID: rc.scope.PropertyID, UnitID: rc.scope.UnitID, LeaseID: leaseID},
			}
			return ruleResult{
				lines: lines,
				header: headerOverrides{
					transactionType: domain.TransactionDeposit,
					memo:            memo,
					leaseID:         leaseID,
					propertyID:      rc.scope.PropertyID,
					unitID:          rc.scope.UnitID,
					totalAmount:     &amount,
				},
			}, nil
		},
	}
}

func vendorBillRule() postingRule {
	return postingRule{
		generate: func(_ context.Context, rc ruleContext) (ruleResult, error) {
			d, ok := rc.event.EventData.(*domain.VendorBillEventData)
			if !ok || d == nil {
				return ruleResult{}, fmt.Errorf("posting rule vendor_bill requires bill event data")
			}
			amount, err := ensureAmount(d.Amount, rc.event.BusinessAmount, rc.event.EventType)
			if err != nil {
				return ruleResult{}, err
			}
			if d.ExpenseGLAccountID == "" {
				return ruleResult{}, fmt.Errorf("vendor_bill requires an expense gl account")
			}
			credit := d.APGLAccountID
			if credit == "" {
				credit = d.BankGLAccountID
			}
			if credit == "" {
				return ruleResult{}, fmt.Errorf("vendor_bill requires an ap or bank gl account")
			}
			memo := d.Memo
			if memo == "" {
				memo = "Vendor bill"
			}
			lines := []domain.PostingLine{
				{GLAccountID: d.ExpenseGLAccountID, Amount: amount, PostingType: domain.PostingDebit, Memo: memo, PropertyID: rc.scope.PropertyID, UnitID: rc.scope.UnitID},
				{GLAccountID: credit, Amount: amount, PostingType: domain.PostingCredit, Memo: memo, PropertyID: rc.scope.PropertyID, UnitID: rc.scope.UnitID},
			}
			return ruleResult{
				lines: lines,
				header: headerOverrides{
					transactionType: domain.TransactionBill,
					memo:            memo,
					propertyID:      rc.scope.PropertyID,
					unitID:          rc.scope.UnitID,
					totalAmount:     &amount,
				},
			}, nil
		},
	}
}

func ownerDistributionRule() postingRule {
	return postingRule{
		generate: func(_ context.Context, rc ruleContext) (ruleResult, error) {
			d, ok := rc.event.EventData.(*domain.OwnerDistributionEventData)
			if !ok || d == nil {
				return ruleResult{}, fmt.Errorf("posting rule owner_distribution requires distribution event data")
			}
			amount, err := ensureAmount(d.Amount, rc.event.BusinessAmount, rc.event.EventType)
			if err != nil {
				return ruleResult{}, err
			}
			if d.EquityGLAccountID == "" || d.BankGLAccountID == "" {
				return ruleResult{}, fmt.Errorf("owner_distribution requires equity and bank gl accounts")
			}
			memo := d.Memo
			if memo == "" {
				memo = "Owner distribution"
			}
			lines := []domain.PostingLine{
				{GLAccountID: d.EquityGLAccountID, Amount: amount, PostingType: domain.PostingDebit, Memo: memo, PropertyID: rc.scope.PropertyID, UnitID: rc.scope.UnitID},
				{GLAccountID: d.BankGLAccountID, Amount: amount, PostingType: domain.PostingCredit, Memo: memo, PropertyID: rc.scope.PropertyID, UnitID: rc.scope.UnitID},
			}
			return ruleResult{
				lines: lines,
				header: headerOverrides{
					transactionType: domain.TransactionOther,
					memo:            memo,
					propertyID:      rc.scope.PropertyID,
					unitID:          rc.scope.UnitID,
					totalAmount:     &amount,
				},
			}, nil
		},
	}
}

func reversalRule() postingRule {
	return postingRule{
		generate: func(ctx context.Context, rc ruleContext) (ruleResult, error) {
			d, ok := rc.event.EventData.(*domain.ReversalEventData)
			if !ok || d == nil || d.OriginalTransactionID == "" {
				return ruleResult{}, fmt.Errorf("reversal requires an original transaction id")
			}
			original, err := rc.lines.GetLines(ctx, d.OriginalTransactionID)
			if err != nil {
				return ruleResult{}, err
			}
			if len(original) == 0 {
				return ruleResult{}, fmt.Errorf("no lines found for transaction %s", d.OriginalTransactionID)
			}
			reversed := make([]domain.PostingLine, 0, len(original))
			for _, l := range original {
				memo := d.Memo
				if memo == "" {
					memo = l.Memo
				}
				if memo == "" {
					memo = "Reversal"
				}
				reversed = append(reversed, domain.PostingLine{
					GLAccountID: l.GLAccountID,
					Amount:      l.Amount,
					PostingType: l.PostingType.Flip(),
					Memo:        memo,
					PropertyID:  l.PropertyID,
					UnitID:      l.UnitID,
					LeaseID:     l.LeaseID,
				})
			}
			memo := d.Memo
			if memo == "" {
				memo = "Reversal"
			}
			return ruleResult{
				lines: reversed,
				header: headerOverrides{
					transactionType: domain.TransactionGeneralJournalEntry,
					memo:            memo,
					reversalOf:      d.OriginalTransactionID,
				},
			}, nil
		},
	}
}

func generalJournalRule() postingRule {
	return postingRule{
		generate: func(_ context.Context, rc ruleContext) (ruleResult, error) {
			d, ok := rc.event.EventData.(*domain.CustomLinesEventData)
			if !ok || d == nil || len(d.Lines) == 0 {
				return ruleResult{}, fmt.Errorf("general_journal_entry requires lines")
			}
			txType := d.TransactionType
			if txType == "" {
				txType = domain.TransactionGeneralJournalEntry
			}
			return ruleResult{
				lines:  d.Lines,
				header: headerOverrides{transactionType: txType, memo: d.Memo},
			}, nil
		},
	}
}

func otherTransactionRule() postingRule {
	return postingRule{
		generate: func(_ context.Context, rc ruleContext) (ruleResult, error) {
			d, ok := rc.event.EventData.(*domain.CustomLinesEventData)
			if !ok || d == nil || len(d.Lines) == 0 {
				return ruleResult{}, fmt.Errorf("other_transaction requires lines")
			}
			txType := d.TransactionType
			if txType == "" {
				txType = domain.TransactionOther
			}
			total := computeHeaderAmount(d.Lines, rc.event.BusinessAmount)
			return ruleResult{
				lines:  d.Lines,
				header: headerOverrides{transactionType: txType, memo: d.Memo, totalAmount: &total},
			}, nil
		},
	}
}

func bankTransferRule() postingRule {
	return postingRule{
		generate: func(_ context.Context, rc ruleContext) (ruleResult, error) {
			d, ok := rc.event.EventData.(*domain.BankTransferEventData)
			if !ok || d == nil {
				return ruleResult{}, fmt.Errorf("posting rule bank_transfer requires transfer event data")
			}
			amount, err := ensureAmount(d.Amount, rc.event.BusinessAmount, rc.event.EventType)
			if err != nil {
				return ruleResult{}, err
			}
			if d.FromBankGLAccountID == "" || d.ToBankGLAccountID == "" {
				return ruleResult{}, fmt.Errorf("bank_transfer requires source and destination bank gl accounts")
			}
			if d.FromBankGLAccountID == d.ToBankGLAccountID {
				return ruleResult{}, fmt.Errorf("bank_transfer requires two distinct bank gl accounts")
			}
			memo := d.Memo
			if memo == "" {
				memo = "Bank transfer"
			}
			lines := []domain.PostingLine{
				{GLAccountID: d.ToBankGLAccountID, Amount: amount, PostingType: domain.PostingDebit, Memo: memo, PropertyID: rc.scope.PropertyID, UnitID: rc.scope.UnitID},
				{GLAccountID: d.FromBankGLAccountID, Amount: amount, PostingType: domain.PostingCredit, Memo: memo, PropertyID: rc.scope.PropertyID, UnitID: rc.scope.UnitID},
			}
			return ruleResult{
				lines: lines,
				header: headerOverrides{
					transactionType: domain.TransactionEFT,
					memo:            memo,
					propertyID:      rc.scope.PropertyID,
					unitID:          rc.scope.UnitID,
					totalAmount:     &amount,
				},
			}, nil
		},
	}
}

// postingRules builds the per-event-type rule table. Every EventType has
// exactly one rule.
func postingRules() map[domain.EventType]postingRule {
	rent := rentChargeRule()
	return map[domain.EventType]postingRule{
		domain.EventRentCharge:          rent,
		domain.EventRecurringCharge:     rent,
		domain.EventLateFee:             feeRule("Late fee"),
		domain.EventNSFFee:              feeRule("NSF fee"),
		domain.EventTenantPayment:       tenantPaymentRule(),
		domain.EventDeposit:             depositRule(),
		domain.EventVendorBill:          vendorBillRule(),
		domain.EventOwnerDistribution:   ownerDistributionRule(),
		domain.EventReversal:            reversalRule(),
		domain.EventGeneralJournalEntry: generalJournalRule(),
		domain.EventOtherTransaction:    otherTransactionRule(),
		domain.EventBankTransfer:        bankTransferRule(),
	}
}

func coalescePtr(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}
