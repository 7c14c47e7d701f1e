package postgres

import (
	"database/sql"

	"propbooks-backend/internal/repository"

	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.TransactionRepository
	repository.ChargeRepository
	repository.ChargeScheduleRepository
	repository.GLSettingsRepository
	repository.LeaseRepository
	repository.PolicyRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                       db,
		TransactionRepository:    NewTransactionRepository(db),
		ChargeRepository:         NewChargeRepository(db),
		ChargeScheduleRepository: NewChargeScheduleRepository(db),
		GLSettingsRepository:     NewGLSettingsRepository(db),
		LeaseRepository:          NewLeaseRepository(db),
		PolicyRepository:         NewPolicyRepository(db),
	}
}
