package postgres

import (
	"context"
	"database/sql"

	"propbooks-backend/internal/domain"
	"propbooks-backend/internal/repository"
)

type glSettingsRepository struct {
	db *sql.DB
}

func NewGLSettingsRepository(db *sql.DB) repository.GLSettingsRepository {
	return &glSettingsRepository{db: db}
}

func (r *glSettingsRepository) Get(ctx context.Context, orgID string) (*domain.OrgGLSettings, error) {
	query := `SELECT org_id, COALESCE(ar_lease, ''), COALESCE(rent_income, ''), COALESCE(cash_operating, ''), COALESCE(cash_trust, ''),
	                 COALESCE(tenant_deposit_liability, ''), COALESCE(late_fee_income, ''), COALESCE(write_off, ''), COALESCE(undeposited_funds, '')
	          FROM settings_gl_accounts WHERE org_id = $1`
	var g domain.OrgGLSettings
	err := r.db.QueryRowContext(ctx, query, orgID).Scan(
		&g.OrgID, &g.ARLease, &g.RentIncome, &g.CashOperating, &g.CashTrust,
		&g.TenantDepositLiability, &g.LateFeeIncome, &g.WriteOff, &g.UndepositedFunds)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *glSettingsRepository) ListOrgIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT org_id FROM settings_gl_accounts ORDER BY org_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
