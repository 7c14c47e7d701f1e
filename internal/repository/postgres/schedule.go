package postgres

import (
	"context"
	"database/sql"
	"time"

	"propbooks-backend/internal/domain"
	"propbooks-backend/internal/repository"
)

type chargeScheduleRepository struct {
	db *sql.DB
}

func NewChargeScheduleRepository(db *sql.DB) repository.ChargeScheduleRepository {
	return &chargeScheduleRepository{db: db}
}

func (r *chargeScheduleRepository) ListDue(ctx context.Context, today, horizon time.Time, leaseID *int64) ([]domain.ChargeSchedule, error) {
	query := `SELECT id, org_id, lease_id, gl_account_id, charge_type, amount, frequency, start_date, end_date, max_occurrences, is_active
	          FROM charge_schedules
	          WHERE is_active = true AND start_date <= $1 AND (end_date IS NULL OR end_date >= $2)`
	args := []any{horizon.Format("2006-01-02"), today.Format("2006-01-02")}
	if leaseID != nil {
		query += ` AND lease_id = $3`
		args = append(args, *leaseID)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []domain.ChargeSchedule
	for rows.Next() {
		var s domain.ChargeSchedule
		if err := rows.Scan(&s.ID, &s.OrgID, &s.LeaseID, &s.GLAccountID, &s.ChargeType, &s.Amount,
			&s.Frequency, &s.StartDate, &s.EndDate, &s.MaxOccurrences, &s.IsActive); err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func (r *chargeScheduleRepository) HasActiveForLease(ctx context.Context, leaseID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM charge_schedules WHERE lease_id = $1 AND is_active = true)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, leaseID).Scan(&exists)
	return exists, err
}

func (r *chargeScheduleRepository) ListTemplates(ctx context.Context, leaseID *int64) ([]domain.RecurringTemplate, error) {
	query := `SELECT id, org_id, lease_id, frequency, amount, COALESCE(memo, ''), start_date, end_date
	          FROM recurring_transactions WHERE is_active = true`
	args := []any{}
	if leaseID != nil {
		query += ` AND lease_id = $1`
		args = append(args, *leaseID)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []domain.RecurringTemplate
	for rows.Next() {
		var t domain.RecurringTemplate
		if err := rows.Scan(&t.ID, &t.OrgID, &t.LeaseID, &t.Frequency, &t.Amount, &t.Memo, &t.StartDate, &t.EndDate); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}
