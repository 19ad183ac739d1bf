package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	contractx "github.com/pocketsage/pocketsage/agent/contract"
	ledgerx "github.com/pocketsage/pocketsage/agent/ledger"
)

const actionTransactionCreate = "transaction.create"

// TransactionClassifier records spending and income events. It holds
// the conversation lock while the transaction record is incomplete
// (typically waiting for an amount).
type TransactionClassifier struct {
	core   *modelCore
	ledger ledgerx.Store
	now    func() time.Time
}

type transactionRecord struct {
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Merchant string  `json:"merchant"`
	Note     string  `json:"note"`
}

func (w *TransactionClassifier) Name() contractx.WorkerName {
	return contractx.WorkerTransactionClassifier
}

func (w *TransactionClassifier) Invoke(ctx context.Context, req contractx.WorkerRequest) (contractx.WorkerResult, error) {
	out, err := w.core.run(ctx, req)
	if err != nil {
		return contractx.WorkerResult{}, err
	}

	result := resultFromOutput(out)
	if result.RequiresFollowUp || len(out.Record) == 0 {
		return result, nil
	}

	var record transactionRecord
	if err := json.Unmarshal(out.Record, &record); err != nil {
		return contractx.WorkerResult{}, fmt.Errorf("%w: invalid transaction record: %v", contractx.ErrSchemaViolation, err)
	}
	if record.Amount == 0 {
		return contractx.WorkerResult{}, fmt.Errorf("%w: transaction record has no amount", contractx.ErrSchemaViolation)
	}

	now := w.now().UTC()
	tx := &ledgerx.Transaction{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		Category:   record.Category,
		Merchant:   record.Merchant,
		Amount:     record.Amount,
		Note:       record.Note,
		OccurredAt: now,
		CreatedAt:  now,
	}
	if err := w.ledger.CreateTransaction(ctx, tx); err != nil {
		return contractx.WorkerResult{}, fmt.Errorf("%w: store transaction: %v", contractx.ErrWorkerInvocation, err)
	}

	appendAction(&result, actionTransactionCreate)
	return result, nil
}
