package postgres

import (
	"context"
	"database/sql"

	"propbooks-backend/internal/domain"
	"propbooks-backend/internal/repository"

	"github.com/shopspring/decimal"
)

type policyRepository struct {
	db *sql.DB
}

func NewPolicyRepository(db *sql.DB) repository.PolicyRepository {
	return &policyRepository{db: db}
}

func (r *policyRepository) GetReturnedPaymentPolicy(ctx context.Context, orgID string) (*domain.ReturnedPaymentPolicy, error) {
	query := `SELECT org_id, auto_create_nsf_fee, nsf_fee_amount, COALESCE(nsf_fee_gl_account_id, '')
	          FROM returned_payment_policies WHERE org_id = $1`
	var p domain.ReturnedPaymentPolicy
	var amount decimal.NullDecimal
	err := r.db.QueryRowContext(ctx, query, orgID).Scan(&p.OrgID, &p.AutoCreateNSFFee, &amount, &p.NSFFeeGLAccountID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if amount.Valid {
		p.NSFFeeAmount = &amount.Decimal
	}
	return &p, nil
}
