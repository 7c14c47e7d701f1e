package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"propbooks-backend/internal/domain"
	"propbooks-backend/internal/logger"
	"propbooks-backend/internal/repository"
)

type postingService struct {
	rules     map[domain.EventType]postingRule
	txRepo    repository.TransactionRepository
	glRepo    repository.GLSettingsRepository
	leaseRepo repository.LeaseRepository
}

func NewPostingService(
	txRepo repository.TransactionRepository,
	glRepo repository.GLSettingsRepository,
	leaseRepo repository.LeaseRepository,
) PostingService {
	return &postingService{
		rules:     postingRules(),
		txRepo:    txRepo,
		glRepo:    glRepo,
		leaseRepo: leaseRepo,
	}
}

// PostEvent turns a business event into a balanced ledger transaction and
// commits it through the store's atomic primitive. Every failure before
// the store call aborts with no partial state; a store failure (duplicate
// idempotency key, unbalanced insert) propagates verbatim.
func (s *postingService) PostEvent(ctx context.Context, event *domain.PostingEvent) (string, error) {
	rule, ok := s.rules[event.EventType]
	if !ok {
		return "", fmt.Errorf("no posting rule registered for event type %q", event.EventType)
	}

	// A dangling lease reference is tolerated as "no context" so
	// non-lease events (vendor bills, transfers) post without one.
	var lease *domain.Lease
	if leaseID := event.LeaseID(); leaseID != nil {
		l, err := s.leaseRepo.GetByID(ctx, *leaseID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("failed to load lease %d: %w", *leaseID, err)
		}
		lease = l
	}

	gl, err := s.glRepo.Get(ctx, event.OrgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("gl settings missing for org %s: %w", event.OrgID, err)
		}
		return "", fmt.Errorf("failed to load gl settings for org %s: %w", event.OrgID, err)
	}
	if err := gl.Validate(); err != nil {
		return "", err
	}

	if rule.validate != nil {
		if err := rule.validate(event, gl); err != nil {
			return "", err
		}
	}

	scope := ruleScope{PropertyID: event.PropertyID, UnitID: event.UnitID}
	if lease != nil {
		if scope.PropertyID == nil {
			scope.PropertyID = lease.PropertyID
		}
		if scope.UnitID == nil {
			scope.UnitID = lease.UnitID
		}
	}

	result, err := rule.generate(ctx, ruleContext{
		event: event,
		gl:    gl,
		lease: lease,
		scope: scope,
		lines: s.txRepo,
	})
	if err != nil {
		return "", err
	}
	if len(result.lines) == 0 {
		return "", fmt.Errorf("posting rule %q produced no lines", event.EventType)
	}

	createdAt := time.Now().UTC()
	if event.CreatedAt != nil {
		createdAt = *event.CreatedAt
	}
	postingDate := event.PostingDate
	if postingDate.IsZero() {
		postingDate = createdAt.Truncate(24 * time.Hour)
	}
	idempotencyKey := event.IdempotencyKey
	if idempotencyKey == "" && event.ExternalID != "" {
		idempotencyKey = fmt.Sprintf("%s_%s", event.ExternalID, event.EventType)
	}

	header := s.assembleHeader(event, result, postingDate, createdAt, idempotencyKey)
	lines := assembleLines(result.lines, header)

	transactionID, err := s.txRepo.PostTransaction(ctx, header, lines, idempotencyKey, true)
	if err != nil {
		return "", err
	}

	logger.Info("Posted ledger transaction",
		"event_type", event.EventType,
		"org_id", event.OrgID,
		"transaction_id", transactionID)
	return transactionID, nil
}

func (s *postingService) assembleHeader(event *domain.PostingEvent, result ruleResult, postingDate, createdAt time.Time, idempotencyKey string) *domain.TransactionHeader {
	h := &domain.TransactionHeader{
		OrgID:           event.OrgID,
		TransactionType: result.header.transactionType,
		Date:            postingDate,
		Memo:            result.header.memo,
		LeaseID:         result.header.leaseID,
		PropertyID:      result.header.propertyID,
		UnitID:          result.header.unitID,
		IdempotencyKey:  idempotencyKey,
		CreatedAt:       createdAt,
	}
	if h.TransactionType == "" {
		h.TransactionType = domain.TransactionOther
	}
	if h.PropertyID == nil {
		h.PropertyID = event.PropertyID
	}
	if h.UnitID == nil {
		h.UnitID = event.UnitID
	}
	if result.header.reversalOf != "" {
		rev := result.header.reversalOf
		h.ReversalOfTransactionID = &rev
	}
	if result.header.totalAmount != nil {
		h.TotalAmount = *result.header.totalAmount
	} else {
		h.TotalAmount = computeNetAmount(result.lines)
	}
	return h
}

// assembleLines fills each line's memo and entity scope from the header
// where the rule left them unset.
func assembleLines(lines []domain.PostingLine, header *domain.TransactionHeader) []domain.PostingLine {
	out := make([]domain.PostingLine, len(lines))
	for i, l := range lines {
		if l.Memo == "" {
			l.Memo = header.Memo
		}
		if l.PropertyID == nil {
			l.PropertyID = header.PropertyID
		}
		if l.UnitID == nil {
			l.UnitID = header.UnitID
		}
		if l.LeaseID == nil {
			l.LeaseID = header.LeaseID
		}
		out[i] = l
	}
	return out
}
