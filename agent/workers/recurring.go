package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	contractx "github.com/pocketsage/pocketsage/agent/contract"
	ledgerx "github.com/pocketsage/pocketsage/agent/ledger"
	"github.com/robfig/cron/v3"
)

const actionRecurringCreate = "recurring.create"

// RecurringScheduler turns repeating payments into cron-scheduled
// rules. A schedule the model produced that does not parse as a
// standard cron expression becomes a follow-up question instead of a
// stored rule, so the lock is retained until the schedule is usable.
type RecurringScheduler struct {
	core   *modelCore
	ledger ledgerx.Store
	now    func() time.Time
}

type recurringRecord struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Schedule    string  `json:"schedule"`
}

func (w *RecurringScheduler) Name() contractx.WorkerName {
	return contractx.WorkerRecurringScheduler
}

func (w *RecurringScheduler) Invoke(ctx context.Context, req contractx.WorkerRequest) (contractx.WorkerResult, error) {
	// Existing rules are shared with the model so duplicates ("netflix
	// again") can be caught conversationally.
	existing, err := w.ledger.ListRecurringRules(ctx, req.UserID)
	if err != nil {
		return contractx.WorkerResult{}, fmt.Errorf("%w: load recurring rules: %v", contractx.ErrWorkerInvocation, err)
	}
	if len(existing) > 0 {
		current := make([]map[string]any, 0, len(existing))
		for _, rule := range existing {
			current = append(current, map[string]any{
				"description": rule.Description,
				"amount":      rule.Amount,
				"schedule":    rule.Schedule,
			})
		}
		req.Arguments = withArgument(req.Arguments, "existing_rules", current)
	}

	out, err := w.core.run(ctx, req)
	if err != nil {
		return contractx.WorkerResult{}, err
	}

	result := resultFromOutput(out)
	if result.RequiresFollowUp || len(out.Record) == 0 {
		return result, nil
	}

	var record recurringRecord
	if err := json.Unmarshal(out.Record, &record); err != nil {
		return contractx.WorkerResult{}, fmt.Errorf("%w: invalid recurring record: %v", contractx.ErrSchemaViolation, err)
	}
	if record.Amount == 0 || strings.TrimSpace(record.Description) == "" {
		return contractx.WorkerResult{}, fmt.Errorf("%w: recurring record is incomplete", contractx.ErrSchemaViolation)
	}

	schedule, err := cron.ParseStandard(strings.TrimSpace(record.Schedule))
	if err != nil {
		result.ResponseText = "I couldn't pin down the schedule. How often should this repeat, for example \"every month on the 1st\"?"
		result.RequiresFollowUp = true
		result.ActionsInvoked = nil
		return result, nil
	}

	now := w.now().UTC()
	rule := &ledgerx.RecurringRule{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Description: strings.TrimSpace(record.Description),
		Amount:      record.Amount,
		Schedule:    strings.TrimSpace(record.Schedule),
		NextRunAt:   schedule.Next(now),
		CreatedAt:   now,
	}
	if err := w.ledger.CreateRecurringRule(ctx, rule); err != nil {
		return contractx.WorkerResult{}, fmt.Errorf("%w: store recurring rule: %v", contractx.ErrWorkerInvocation, err)
	}

	appendAction(&result, actionRecurringCreate)
	return result, nil
}
