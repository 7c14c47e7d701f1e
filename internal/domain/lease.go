package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lease is the context record the posting engine resolves for
// lease-scoped events. External linkage ids are carried through to
// transaction headers but never interpreted here.
type Lease struct {
	ID                 int64
	OrgID              string
	PropertyID         *string
	UnitID             *string
	BuildiumPropertyID *int64
	BuildiumUnitID     *int64
	BuildiumLeaseID    *int64
	PaymentDueDay      *int
	FromDate           *time.Time
}

// ReturnedPaymentPolicy is an org-level policy consulted by the NSF
// reversal path.
type ReturnedPaymentPolicy struct {
	OrgID             string
	AutoCreateNSFFee  bool
	NSFFeeAmount      *decimal.Decimal
	NSFFeeGLAccountID string
}
