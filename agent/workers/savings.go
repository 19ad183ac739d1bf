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
)

const actionSavingsCreatePlan = "savings.create_plan"

// SavingsPlanner sets up savings goals. Like the budget planner it may
// run a math tool round first, e.g. for contribution projections.
type SavingsPlanner struct {
	core   *modelCore
	ledger ledgerx.Store
	now    func() time.Time
}

type savingsRecord struct {
	Name                string  `json:"name"`
	TargetAmount        float64 `json:"target_amount"`
	MonthlyContribution float64 `json:"monthly_contribution"`
}

func (w *SavingsPlanner) Name() contractx.WorkerName {
	return contractx.WorkerSavingsPlanner
}

func (w *SavingsPlanner) Invoke(ctx context.Context, req contractx.WorkerRequest) (contractx.WorkerResult, error) {
	existing, err := w.ledger.ListSavingsPlans(ctx, req.UserID)
	if err != nil {
		return contractx.WorkerResult{}, fmt.Errorf("%w: load savings plans: %v", contractx.ErrWorkerInvocation, err)
	}
	if len(existing) > 0 {
		current := make([]map[string]any, 0, len(existing))
		for _, plan := range existing {
			current = append(current, map[string]any{
				"name":                 plan.Name,
				"target_amount":        plan.TargetAmount,
				"monthly_contribution": plan.MonthlyContribution,
				"saved_amount":         plan.SavedAmount,
			})
		}
		req.Arguments = withArgument(req.Arguments, "existing_plans", current)
	}

	out, err := w.core.run(ctx, req)
	if err != nil {
		return contractx.WorkerResult{}, err
	}

	result := resultFromOutput(out)
	if result.RequiresFollowUp || len(out.Record) == 0 {
		return result, nil
	}

	var record savingsRecord
	if err := json.Unmarshal(out.Record, &record); err != nil {
		return contractx.WorkerResult{}, fmt.Errorf("%w: invalid savings record: %v", contractx.ErrSchemaViolation, err)
	}
	if strings.TrimSpace(record.Name) == "" || record.TargetAmount <= 0 {
		return contractx.WorkerResult{}, fmt.Errorf("%w: savings record is incomplete", contractx.ErrSchemaViolation)
	}

	now := w.now().UTC()
	plan := &ledgerx.SavingsPlan{
		ID:                  uuid.NewString(),
		UserID:              req.UserID,
		Name:                strings.TrimSpace(record.Name),
		TargetAmount:        record.TargetAmount,
		MonthlyContribution: record.MonthlyContribution,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := w.ledger.CreateSavingsPlan(ctx, plan); err != nil {
		return contractx.WorkerResult{}, fmt.Errorf("%w: store savings plan: %v", contractx.ErrWorkerInvocation, err)
	}

	appendAction(&result, actionSavingsCreatePlan)
	return result, nil
}
