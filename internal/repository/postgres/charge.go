package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"propbooks-backend/internal/domain"
	"propbooks-backend/internal/repository"

	"github.com/google/uuid"
)

type chargeRepository struct {
	db *sql.DB
}

func NewChargeRepository(db *sql.DB) repository.ChargeRepository {
	return &chargeRepository{db: db}
}

const chargeColumns = `id, org_id, lease_id, transaction_id, charge_schedule_id, parent_charge_id, charge_type, amount, amount_open, due_date, COALESCE(description, ''), status, COALESCE(external_id, ''), COALESCE(source, ''), created_at, updated_at`

func (r *chargeRepository) Create(ctx context.Context, charge *domain.Charge) error {
	if charge.ID == "" {
		charge.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	charge.CreatedAt = now
	charge.UpdatedAt = now
	query := `INSERT INTO charges (id, org_id, lease_id, transaction_id, charge_schedule_id, parent_charge_id, charge_type, amount, amount_open, due_date, description, status, external_id, source, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.db.ExecContext(ctx, query,
		charge.ID, charge.OrgID, charge.LeaseID, charge.TransactionID, charge.ChargeScheduleID,
		charge.ParentChargeID, charge.ChargeType, charge.Amount, charge.AmountOpen,
		charge.DueDate.Format("2006-01-02"), nullString(charge.Description), charge.Status,
		nullString(charge.ExternalID), nullString(charge.Source), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert charge: %w", err)
	}
	return nil
}

func (r *chargeRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM charges WHERE id = $1`, id)
	return err
}

func (r *chargeRepository) FindByExternalID(ctx context.Context, orgID, externalID string) (*domain.Charge, error) {
	query := `SELECT ` + chargeColumns + ` FROM charges WHERE org_id = $1 AND external_id = $2`
	var c domain.Charge
	err := r.db.QueryRowContext(ctx, query, orgID, externalID).Scan(
		&c.ID, &c.OrgID, &c.LeaseID, &c.TransactionID, &c.ChargeScheduleID, &c.ParentChargeID,
		&c.ChargeType, &c.Amount, &c.AmountOpen, &c.DueDate, &c.Description, &c.Status,
		&c.ExternalID, &c.Source, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *chargeRepository) SetTransactionID(ctx context.Context, chargeID, transactionID string) error {
	query := `UPDATE charges SET transaction_id = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, transactionID, chargeID)
	return err
}

func (r *chargeRepository) ExistsForScheduleDate(ctx context.Context, scheduleID string, dueDate time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM charges WHERE charge_schedule_id = $1 AND due_date = $2)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, scheduleID, dueDate.Format("2006-01-02")).Scan(&exists)
	return exists, err
}

func (r *chargeRepository) CountBySchedule(ctx context.Context, scheduleID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM charges WHERE charge_schedule_id = $1`, scheduleID).Scan(&count)
	return count, err
}

func (r *chargeRepository) CreateReceivable(ctx context.Context, recv *domain.Receivable) error {
	if recv.ID == "" {
		recv.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	recv.CreatedAt = now
	recv.UpdatedAt = now
	query := `INSERT INTO receivables (id, org_id, lease_id, receivable_type, total_amount, paid_amount, due_date, description, status, external_id, source, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.db.ExecContext(ctx, query,
		recv.ID, recv.OrgID, recv.LeaseID, recv.ReceivableType, recv.TotalAmount, recv.PaidAmount,
		recv.DueDate.Format("2006-01-02"), nullString(recv.Description), recv.Status,
		nullString(recv.ExternalID), nullString(recv.Source), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert receivable: %w", err)
	}
	return nil
}

func (r *chargeRepository) DeleteReceivable(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM receivables WHERE id = $1`, id)
	return err
}

func (r *chargeRepository) FindReceivableByExternalID(ctx context.Context, orgID, externalID string) (*domain.Receivable, error) {
	query := `SELECT id, org_id, lease_id, receivable_type, total_amount, paid_amount, due_date, COALESCE(description, ''), status, COALESCE(external_id, ''), COALESCE(source, ''), created_at, updated_at
	          FROM receivables WHERE org_id = $1 AND external_id = $2`
	var v domain.Receivable
	err := r.db.QueryRowContext(ctx, query, orgID, externalID).Scan(
		&v.ID, &v.OrgID, &v.LeaseID, &v.ReceivableType, &v.TotalAmount, &v.PaidAmount,
		&v.DueDate, &v.Description, &v.Status, &v.ExternalID, &v.Source, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
