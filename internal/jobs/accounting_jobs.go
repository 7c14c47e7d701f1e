package jobs

import (
	"context"

	"propbooks-backend/internal/logger"
)

// GenerateRecurringCharges materializes due charge-schedule occurrences
// and legacy recurring templates into charges and ledger transactions
func (jr *JobRunner) GenerateRecurringCharges() {
	jr.runWithRecovery("GenerateRecurringCharges", func() {
		ctx := context.Background()
		log := logger.WithJob("GenerateRecurringCharges")

		created, err := jr.services.Recurring.GenerateRecurringCharges(
			ctx, jr.config.Billing.HorizonDays, nil)
		if err != nil {
			log.Error("Failed to generate recurring charges",
				"created_before_failure", created, "error", err)
			return
		}

		log.Info("Generated recurring charges", "created", created)
	})
}

// PostLateFees posts late fees for rent charges past the grace window
func (jr *JobRunner) PostLateFees() {
	jr.runWithRecovery("PostLateFees", func() {
		ctx := context.Background()
		log := logger.WithJob("PostLateFees")

		created, err := jr.services.Recurring.PostLateFees(ctx)
		if err != nil {
			log.Error("Failed to post late fees",
				"created_before_failure", created, "error", err)
			return
		}

		log.Info("Posted late fees", "created", created)
	})
}
