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

const actionBudgetUpsertCategory = "budget.upsert_category"

// BudgetPlanner creates and adjusts budget categories with percentage
// allocations. It may run a math tool round for derived amounts before
// finalizing.
type BudgetPlanner struct {
	core   *modelCore
	ledger ledgerx.Store
	now    func() time.Time
}

type budgetRecord struct {
	Categories []budgetCategory `json:"categories"`
}

type budgetCategory struct {
	Name          string  `json:"name"`
	AllocationPct float64 `json:"allocation_pct"`
}

func (w *BudgetPlanner) Name() contractx.WorkerName {
	return contractx.WorkerBudgetPlanner
}

func (w *BudgetPlanner) Invoke(ctx context.Context, req contractx.WorkerRequest) (contractx.WorkerResult, error) {
	// The model sees the current allocations so adjustments are
	// relative to what is already budgeted.
	existing, err := w.ledger.ListCategories(ctx, req.UserID)
	if err != nil {
		return contractx.WorkerResult{}, fmt.Errorf("%w: load categories: %v", contractx.ErrWorkerInvocation, err)
	}
	if len(existing) > 0 {
		current := make([]map[string]any, 0, len(existing))
		for _, cat := range existing {
			current = append(current, map[string]any{
				"name":           cat.Name,
				"allocation_pct": cat.AllocationPct,
			})
		}
		req.Arguments = withArgument(req.Arguments, "existing_categories", current)
	}

	out, err := w.core.run(ctx, req)
	if err != nil {
		return contractx.WorkerResult{}, err
	}

	result := resultFromOutput(out)
	if result.RequiresFollowUp || len(out.Record) == 0 {
		return result, nil
	}

	var record budgetRecord
	if err := json.Unmarshal(out.Record, &record); err != nil {
		return contractx.WorkerResult{}, fmt.Errorf("%w: invalid budget record: %v", contractx.ErrSchemaViolation, err)
	}

	now := w.now().UTC()
	for _, entry := range record.Categories {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return contractx.WorkerResult{}, fmt.Errorf("%w: budget category name is empty", contractx.ErrSchemaViolation)
		}
		if entry.AllocationPct < 0 || entry.AllocationPct > 100 {
			return contractx.WorkerResult{}, fmt.Errorf("%w: allocation_pct=%v out of range", contractx.ErrSchemaViolation, entry.AllocationPct)
		}

		category := &ledgerx.Category{
			ID:            uuid.NewString(),
			UserID:        req.UserID,
			Name:          name,
			AllocationPct: entry.AllocationPct,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := w.ledger.UpsertCategory(ctx, category); err != nil {
			return contractx.WorkerResult{}, fmt.Errorf("%w: store category: %v", contractx.ErrWorkerInvocation, err)
		}
		appendAction(&result, actionBudgetUpsertCategory)
	}

	return result, nil
}
