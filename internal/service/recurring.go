package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"propbooks-backend/internal/domain"
	"propbooks-backend/internal/logger"
	"propbooks-backend/internal/repository"

	"github.com/shopspring/decimal"
)

const defaultHorizonDays = 60

// LateFeeConfig tunes the late-fee scan. Zero values fall back to the
// standard policy: five percent of the overdue rent, capped at fifty
// dollars, after a five day grace window.
type LateFeeConfig struct {
	Percent   decimal.Decimal
	Cap       decimal.Decimal
	GraceDays int
}

func (c LateFeeConfig) withDefaults() LateFeeConfig {
	if c.Percent.IsZero() {
		c.Percent = decimal.NewFromInt(5)
	}
	if c.Cap.IsZero() {
		c.Cap = decimal.NewFromInt(50)
	}
	if c.GraceDays <= 0 {
		c.GraceDays = 5
	}
	return c
}

type recurringService struct {
	scheduleRepo repository.ChargeScheduleRepository
	chargeRepo   repository.ChargeRepository
	txRepo       repository.TransactionRepository
	glRepo       repository.GLSettingsRepository
	leaseRepo    repository.LeaseRepository
	charges      ChargeService
	engine       PostingService
	lateFees     LateFeeConfig
}

func NewRecurringService(
	scheduleRepo repository.ChargeScheduleRepository,
	chargeRepo repository.ChargeRepository,
	txRepo repository.TransactionRepository,
	glRepo repository.GLSettingsRepository,
	leaseRepo repository.LeaseRepository,
	charges ChargeService,
	engine PostingService,
	lateFees LateFeeConfig,
) RecurringService {
	return &recurringService{
		scheduleRepo: scheduleRepo,
		chargeRepo:   chargeRepo,
		txRepo:       txRepo,
		glRepo:       glRepo,
		leaseRepo:    leaseRepo,
		charges:      charges,
		engine:       engine,
		lateFees:     lateFees.withDefaults(),
	}
}

// GenerateRecurringCharges materializes every schedule occurrence due
// within the horizon, then runs the legacy recurring-template fallback
// for leases without an active schedule. Per-item failures are logged
// and do not abort the batch.
func (s *recurringService) GenerateRecurringCharges(ctx context.Context, horizonDays int, opts *GenerateOptions) (int, error) {
	if horizonDays <= 0 {
		horizonDays = defaultHorizonDays
	}
	if opts == nil {
		opts = &GenerateOptions{}
	}
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	horizon := today.AddDate(0, 0, horizonDays)

	created, err := s.generateFromSchedules(ctx, today, horizon, opts.LeaseID)
	if err != nil {
		return created, err
	}

	legacyCreated, err := s.generateFromTemplates(ctx, today, horizon, opts.LeaseID)
	created += legacyCreated
	if err != nil {
		return created, err
	}

	logger.Info("Recurring charge generation finished",
		"created", created, "horizon_days", horizonDays)
	return created, nil
}

func (s *recurringService) generateFromSchedules(ctx context.Context, today, horizon time.Time, leaseID *int64) (int, error) {
	schedules, err := s.scheduleRepo.ListDue(ctx, today, horizon, leaseID)
	if err != nil {
		return 0, fmt.Errorf("failed to list charge schedules: %w", err)
	}

	created := 0
	for i := range schedules {
		sched := schedules[i]
		existing, err := s.chargeRepo.CountBySchedule(ctx, sched.ID)
		if err != nil {
			logger.Error("Failed to count existing charges for schedule",
				"schedule_id", sched.ID, "error", err)
			continue
		}
		for _, due := range scheduleOccurrences(&sched, today, horizon, existing) {
			exists, err := s.chargeRepo.ExistsForScheduleDate(ctx, sched.ID, due)
			if err != nil {
				logger.Error("Failed to check existing charge for schedule date",
					"schedule_id", sched.ID, "due_date", due.Format("2006-01-02"), "error", err)
				continue
			}
			if exists {
				continue
			}

			scheduleID := sched.ID
			_, err = s.charges.CreateChargeWithReceivable(ctx, CreateChargeParams{
				LeaseID:          sched.LeaseID,
				ChargeType:       sched.ChargeType,
				Amount:           sched.Amount,
				DueDate:          due,
				Description:      fmt.Sprintf("%s charge due %s", sched.ChargeType, due.Format("2006-01-02")),
				ChargeScheduleID: &scheduleID,
				Allocations: []ChargeAllocation{{
					AccountID: sched.GLAccountID,
					Amount:    sched.Amount,
				}},
				Source:     "charge_schedule",
				ExternalID: fmt.Sprintf("charge_schedule:%s:%s", sched.ID, due.Format("2006-01-02")),
			})
			if err != nil {
				logger.Error("Failed to create scheduled charge",
					"schedule_id", sched.ID, "lease_id", sched.LeaseID,
					"due_date", due.Format("2006-01-02"), "error", err)
				continue
			}
			created++
		}
	}
	return created, nil
}

// generateFromTemplates handles the older recurring_transactions model.
// A lease carrying any active charge schedule is skipped entirely here,
// the schedule path owns it.
func (s *recurringService) generateFromTemplates(ctx context.Context, today, horizon time.Time, leaseID *int64) (int, error) {
	templates, err := s.scheduleRepo.ListTemplates(ctx, leaseID)
	if err != nil {
		return 0, fmt.Errorf("failed to list recurring templates: %w", err)
	}
	if len(templates) == 0 {
		return 0, nil
	}

	hasSchedule := make(map[int64]bool)
	created := 0
	for i := range templates {
		tpl := templates[i]
		active, seen := hasSchedule[tpl.LeaseID]
		if !seen {
			active, err = s.scheduleRepo.HasActiveForLease(ctx, tpl.LeaseID)
			if err != nil {
				logger.Error("Failed to check active schedules for lease",
					"lease_id", tpl.LeaseID, "error", err)
				continue
			}
			hasSchedule[tpl.LeaseID] = active
		}
		if active {
			logger.Warn("Skipping legacy recurring template, lease has an active charge schedule",
				"lease_id", tpl.LeaseID, "template_id", tpl.ID)
			continue
		}

		n, err := s.postTemplate(ctx, &tpl, today, horizon)
		if err != nil {
			logger.Error("Failed to process recurring template",
				"template_id", tpl.ID, "lease_id", tpl.LeaseID, "error", err)
			continue
		}
		created += n
	}
	return created, nil
}

func (s *recurringService) postTemplate(ctx context.Context, tpl *domain.RecurringTemplate, today, horizon time.Time) (int, error) {
	lease, err := s.leaseRepo.GetByID(ctx, tpl.LeaseID)
	if err != nil {
		return 0, err
	}
	gl, err := s.glRepo.Get(ctx, tpl.OrgID)
	if err != nil {
		return 0, err
	}

	anchor := templateAnchor(tpl, lease, today)
	if anchor.IsZero() {
		logger.Warn("Recurring template has no usable anchor date",
			"template_id", tpl.ID, "lease_id", tpl.LeaseID)
		return 0, nil
	}
	hash := templateHash(tpl)

	if tpl.Frequency == domain.FrequencyOneTime {
		return s.postOneTimeTemplate(ctx, tpl, lease, gl, anchor, today, horizon, hash)
	}

	end := horizon
	if tpl.EndDate != nil && tpl.EndDate.Before(horizon) {
		end = *tpl.EndDate
	}
	created := 0
	for date := anchor; !date.After(end); date = stepDate(date, tpl.Frequency, anchor.Day()) {
		if date.Before(today) {
			continue
		}
		leaseID := tpl.LeaseID
		_, err := s.engine.PostEvent(ctx, &domain.PostingEvent{
			EventType:      domain.EventRecurringCharge,
			OrgID:          tpl.OrgID,
			PostingDate:    date,
			IdempotencyKey: fmt.Sprintf("recur:%d:%s:%s", tpl.LeaseID, date.Format("2006-01-02"), hash),
			BusinessAmount: tpl.Amount,
			EventData: &domain.ChargeEventData{
				Amount:  tpl.Amount,
				Memo:    tpl.Memo,
				LeaseID: &leaseID,
			},
		})
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// postOneTimeTemplate posts a single transaction for a OneTime template.
// A deposit memo routes the credit to the deposit liability account, and
// an existing charge on the same lease and date suppresses the post.
func (s *recurringService) postOneTimeTemplate(ctx context.Context, tpl *domain.RecurringTemplate, lease *domain.Lease, gl *domain.OrgGLSettings, anchor, today, horizon time.Time, hash string) (int, error) {
	if anchor.Before(today) || anchor.After(horizon) {
		return 0, nil
	}
	exists, err := s.txRepo.HasChargeOnDate(ctx, tpl.LeaseID, anchor)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, nil
	}

	creditAccount := gl.RentIncome
	eventType := domain.EventRecurringCharge
	if strings.Contains(strings.ToLower(tpl.Memo), "deposit") {
		creditAccount = gl.TenantDepositLiability
	}

	leaseID := tpl.LeaseID
	_, err = s.engine.PostEvent(ctx, &domain.PostingEvent{
		EventType:      eventType,
		OrgID:          tpl.OrgID,
		PostingDate:    anchor,
		IdempotencyKey: fmt.Sprintf("recur:%d:%s:%s", tpl.LeaseID, anchor.Format("2006-01-02"), hash),
		BusinessAmount: tpl.Amount,
		EventData: &domain.ChargeEventData{
			Amount:            tpl.Amount,
			Memo:              tpl.Memo,
			LeaseID:           &leaseID,
			PropertyID:        lease.PropertyID,
			UnitID:            lease.UnitID,
			CreditGLAccountID: creditAccount,
		},
	})
	if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// PostLateFees scans each org for overdue rent and posts one late fee per
// lease per period. Orgs without a late-fee income account are skipped.
func (s *recurringService) PostLateFees(ctx context.Context) (int, error) {
	orgIDs, err := s.glRepo.ListOrgIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list orgs: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -s.lateFees.GraceDays)
	created := 0
	for _, orgID := range orgIDs {
		gl, err := s.glRepo.Get(ctx, orgID)
		if err != nil {
			logger.Error("Failed to load gl settings", "org_id", orgID, "error", err)
			continue
		}
		if gl.LateFeeIncome == "" {
			logger.Debug("Skipping late fees, no late fee income account", "org_id", orgID)
			continue
		}

		overdue, err := s.txRepo.ListOverdueRentCharges(ctx, orgID, gl.RentIncome, cutoff)
		if err != nil {
			logger.Error("Failed to list overdue rent", "org_id", orgID, "error", err)
			continue
		}
		for _, od := range overdue {
			fee := od.Amount.Mul(s.lateFees.Percent).Div(decimal.NewFromInt(100)).Round(2)
			if fee.GreaterThan(s.lateFees.Cap) {
				fee = s.lateFees.Cap
			}
			if !fee.IsPositive() {
				continue
			}

			leaseID := od.LeaseID
			_, err := s.engine.PostEvent(ctx, &domain.PostingEvent{
				EventType:      domain.EventLateFee,
				OrgID:          orgID,
				PostingDate:    time.Now().UTC(),
				IdempotencyKey: fmt.Sprintf("latefee:%d:%s", od.LeaseID, od.PeriodKey),
				BusinessAmount: fee,
				EventData: &domain.ChargeEventData{
					Amount:  fee,
					Memo:    fmt.Sprintf("Late fee for %s", od.PeriodKey),
					LeaseID: &leaseID,
				},
			})
			if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
				continue
			}
			if err != nil {
				logger.Error("Failed to post late fee",
					"lease_id", od.LeaseID, "period", od.PeriodKey, "error", err)
				continue
			}
			created++
		}
	}

	logger.Info("Late fee scan finished", "created", created)
	return created, nil
}

// scheduleOccurrences returns the schedule's due dates within
// [today, horizon], honoring endDate and maxOccurrences. Dates stepped
// past before today still count toward maxOccurrences via existingCount.
func scheduleOccurrences(s *domain.ChargeSchedule, today, horizon time.Time, existingCount int) []time.Time {
	end := horizon
	if s.EndDate != nil && s.EndDate.Before(horizon) {
		end = *s.EndDate
	}

	var due []time.Time
	anchorDay := s.StartDate.Day()
	for date := s.StartDate; !date.After(end); date = stepDate(date, s.Frequency, anchorDay) {
		if s.MaxOccurrences != nil && existingCount+len(due) >= *s.MaxOccurrences {
			break
		}
		if date.Before(today) {
			continue
		}
		due = append(due, date)
		if s.Frequency == domain.FrequencyOneTime {
			break
		}
	}
	return due
}

// stepDate advances a due date by one frequency interval. Month-based
// frequencies use calendar month arithmetic clamped to the target
// month's last day, re-anchoring to the original day of month where the
// target month allows it.
func stepDate(date time.Time, freq domain.Frequency, anchorDay int) time.Time {
	switch freq {
	case domain.FrequencyDaily:
		return date.AddDate(0, 0, 1)
	case domain.FrequencyWeekly:
		return date.AddDate(0, 0, 7)
	case domain.FrequencyEvery2Weeks:
		return date.AddDate(0, 0, 14)
	case domain.FrequencyEvery2Months:
		return addMonthsClamp(date, 2, anchorDay)
	case domain.FrequencyQuarterly:
		return addMonthsClamp(date, 3, anchorDay)
	case domain.FrequencyEvery6Months:
		return addMonthsClamp(date, 6, anchorDay)
	case domain.FrequencyYearly:
		return addMonthsClamp(date, 12, anchorDay)
	default:
		return addMonthsClamp(date, 1, anchorDay)
	}
}

// addMonthsClamp adds whole months without the normalization overflow of
// AddDate, so Jan 31 plus one month lands on Feb 28 or 29 rather than
// Mar 2-3.
func addMonthsClamp(date time.Time, months, anchorDay int) time.Time {
	year, month, _ := date.Date()
	first := time.Date(year, month, 1, 0, 0, 0, 0, date.Location()).AddDate(0, months, 0)
	day := anchorDay
	if last := lastDayOfMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, date.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// templateAnchor picks the first occurrence date for a legacy template:
// the template's own start date when present, otherwise the lease's
// payment due day in the current month, otherwise the lease start date.
func templateAnchor(tpl *domain.RecurringTemplate, lease *domain.Lease, today time.Time) time.Time {
	if tpl.StartDate != nil {
		return *tpl.StartDate
	}
	if lease != nil && lease.PaymentDueDay != nil {
		day := *lease.PaymentDueDay
		if last := lastDayOfMonth(today.Year(), today.Month()); day > last {
			day = last
		}
		return time.Date(today.Year(), today.Month(), day, 0, 0, 0, 0, time.UTC)
	}
	if lease != nil && lease.FromDate != nil {
		return *lease.FromDate
	}
	return time.Time{}
}

// templateHash fingerprints a template's business fields so an edited
// template produces a fresh idempotency lineage.
func templateHash(tpl *domain.RecurringTemplate) string {
	start, end := "", ""
	if tpl.StartDate != nil {
		start = tpl.StartDate.Format("2006-01-02")
	}
	if tpl.EndDate != nil {
		end = tpl.EndDate.Format("2006-01-02")
	}
	h := fnv.New32a()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s", tpl.Frequency, tpl.Amount.String(), tpl.Memo, start, end)
	return fmt.Sprintf("%08x", h.Sum32())
}
