package postgres

import (
	"context"
	"database/sql"

	"propbooks-backend/internal/domain"
	"propbooks-backend/internal/repository"
)

type leaseRepository struct {
	db *sql.DB
}

func NewLeaseRepository(db *sql.DB) repository.LeaseRepository {
	return &leaseRepository{db: db}
}

func (r *leaseRepository) GetByID(ctx context.Context, id int64) (*domain.Lease, error) {
	query := `SELECT id, org_id, property_id, unit_id, buildium_property_id, buildium_unit_id, buildium_lease_id, payment_due_day, lease_from_date
	          FROM lease WHERE id = $1`
	var l domain.Lease
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.OrgID, &l.PropertyID, &l.UnitID,
		&l.BuildiumPropertyID, &l.BuildiumUnitID, &l.BuildiumLeaseID,
		&l.PaymentDueDay, &l.FromDate)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}
