package domain

import "fmt"

// OrgGLSettings maps an organization's semantic account roles to GL
// account ids. Loaded once per posting; read-only here.
type OrgGLSettings struct {
	OrgID                  string
	ARLease                string
	RentIncome             string
	CashOperating          string
	CashTrust              string
	TenantDepositLiability string
	LateFeeIncome          string
	WriteOff               string
	UndepositedFunds       string
}

// Validate fails fast when a required role is unmapped. Posting with an
// incomplete chart of accounts must never happen.
func (g *OrgGLSettings) Validate() error {
	required := map[string]string{
		"ar_lease":                 g.ARLease,
		"rent_income":              g.RentIncome,
		"cash_operating":           g.CashOperating,
		"tenant_deposit_liability": g.TenantDepositLiability,
	}
	for role, account := range required {
		if account == "" {
			return fmt.Errorf("gl settings for org %s missing required role %s", g.OrgID, role)
		}
	}
	return nil
}
