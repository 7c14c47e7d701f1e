package service

import (
	"context"
	"database/sql"
	"time"

	"propbooks-backend/internal/domain"

	"github.com/stretchr/testify/mock"
)

// MockTransactionRepo
type MockTransactionRepo struct {
	mock.Mock
}

func (m *MockTransactionRepo) PostTransaction(ctx context.Context, header *domain.TransactionHeader, lines []domain.PostingLine, idempotencyKey string, validateBalance bool) (string, error) {
	args := m.Called(ctx, header, lines, idempotencyKey, validateBalance)
	return args.String(0), args.Error(1)
}
func (m *MockTransactionRepo) PostTransactionTx(ctx context.Context, tx *sql.Tx, header *domain.TransactionHeader, lines []domain.PostingLine, idempotencyKey string, validateBalance bool) (string, error) {
	args := m.Called(ctx, tx, header, lines, idempotencyKey, validateBalance)
	return args.String(0), args.Error(1)
}
func (m *MockTransactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockTransactionRepo) GetLines(ctx context.Context, transactionID string) ([]domain.TransactionLine, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TransactionLine), args.Error(1)
}
func (m *MockTransactionRepo) FindByIdempotencyKey(ctx context.Context, orgID, key string) (*domain.Transaction, error) {
	args := m.Called(ctx, orgID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockTransactionRepo) FindReversalOf(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}
func (m *MockTransactionRepo) SetReversalOf(ctx context.Context, transactionID, originalTransactionID string) error {
	args := m.Called(ctx, transactionID, originalTransactionID)
	return args.Error(0)
}
func (m *MockTransactionRepo) Lock(ctx context.Context, transactionID, reason string, userID *string) error {
	args := m.Called(ctx, transactionID, reason, userID)
	return args.Error(0)
}
func (m *MockTransactionRepo) HasChargeOnDate(ctx context.Context, leaseID int64, date time.Time) (bool, error) {
	args := m.Called(ctx, leaseID, date)
	return args.Bool(0), args.Error(1)
}
func (m *MockTransactionRepo) ListOverdueRentCharges(ctx context.Context, orgID, rentIncomeAccountID string, olderThan time.Time) ([]domain.OverdueRent, error) {
	args := m.Called(ctx, orgID, rentIncomeAccountID, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.OverdueRent), args.Error(1)
}

// MockChargeRepo
type MockChargeRepo struct {
	mock.Mock
}

func (m *MockChargeRepo) Create(ctx context.Context, charge *domain.Charge) error {
	args := m.Called(ctx, charge)
	return args.Error(0)
}
func (m *MockChargeRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockChargeRepo) FindByExternalID(ctx context.Context, orgID, externalID string) (*domain.Charge, error) {
	args := m.Called(ctx, orgID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Charge), args.Error(1)
}
func (m *MockChargeRepo) SetTransactionID(ctx context.Context, chargeID, transactionID string) error {
	args := m.Called(ctx, chargeID, transactionID)
	return args.Error(0)
}
func (m *MockChargeRepo) ExistsForScheduleDate(ctx context.Context, scheduleID string, dueDate time.Time) (bool, error) {
	args := m.Called(ctx, scheduleID, dueDate)
	return args.Bool(0), args.Error(1)
}
func (m *MockChargeRepo) CountBySchedule(ctx context.Context, scheduleID string) (int, error) {
	args := m.Called(ctx, scheduleID)
	return args.Int(0), args.Error(1)
}
func (m *MockChargeRepo) CreateReceivable(ctx context.Context, recv *domain.Receivable) error {
	args := m.Called(ctx, recv)
	return args.Error(0)
}
func (m *MockChargeRepo) DeleteReceivable(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockChargeRepo) FindReceivableByExternalID(ctx context.Context, orgID, externalID string) (*domain.Receivable, error) {
	args := m.Called(ctx, orgID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Receivable), args.Error(1)
}

// MockScheduleRepo
type MockScheduleRepo struct {
	mock.Mock
}

func (m *MockScheduleRepo) ListDue(ctx context.Context, today, horizon time.Time, leaseID *int64) ([]domain.ChargeSchedule, error) {
	args := m.Called(ctx, today, horizon, leaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChargeSchedule), args.Error(1)
}
func (m *MockScheduleRepo) HasActiveForLease(ctx context.Context, leaseID int64) (bool, error) {
	args := m.Called(ctx, leaseID)
	return args.Bool(0), args.Error(1)
}
func (m *MockScheduleRepo) ListTemplates(ctx context.Context, leaseID *int64) ([]domain.RecurringTemplate, error) {
	args := m.Called(ctx, leaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RecurringTemplate), args.Error(1)
}

// MockGLSettingsRepo
type MockGLSettingsRepo struct {
	mock.Mock
}

func (m *MockGLSettingsRepo) Get(ctx context.Context, orgID string) (*domain.OrgGLSettings, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrgGLSettings), args.Error(1)
}
func (m *MockGLSettingsRepo) ListOrgIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockLeaseRepo
type MockLeaseRepo struct {
	mock.Mock
}

func (m *MockLeaseRepo) GetByID(ctx context.Context, id int64) (*domain.Lease, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Lease), args.Error(1)
}

// MockPolicyRepo
type MockPolicyRepo struct {
	mock.Mock
}

func (m *MockPolicyRepo) GetReturnedPaymentPolicy(ctx context.Context, orgID string) (*domain.ReturnedPaymentPolicy, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReturnedPaymentPolicy), args.Error(1)
}

// MockPostingService
type MockPostingService struct {
	mock.Mock
}

func (m *MockPostingService) PostEvent(ctx context.Context, event *domain.PostingEvent) (string, error) {
	args := m.Called(ctx, event)
	return args.String(0), args.Error(1)
}

// MockChargeService
type MockChargeService struct {
	mock.Mock
}

func (m *MockChargeService) CreateChargeWithReceivable(ctx context.Context, params CreateChargeParams) (*CreateChargeResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CreateChargeResult), args.Error(1)
}
