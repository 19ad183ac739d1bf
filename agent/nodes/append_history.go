package dispatchnode

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	contractx "github.com/pocketsage/pocketsage/agent/contract"
	statex "github.com/pocketsage/pocketsage/agent/state"
)

// AppendHistory records one turn per outcome, preserving invocation
// order. Failed outcomes are recorded too so the conversation stays
// coherent across errors.
func AppendHistory(ctx context.Context, in *GraphState, history statex.HistoryStore) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if len(in.Outcomes) == 0 {
		return nil, fmt.Errorf("%w: no outcomes to record", contractx.ErrValidation)
	}

	for _, outcome := range in.Outcomes {
		turn := &contractx.Turn{
			ID:             uuid.NewString(),
			SessionID:      in.SessionID,
			UserInput:      in.Text,
			ProducedBy:     []string{outcome.Producer()},
			ActionsInvoked: outcome.Result.ActionsInvoked,
			AgentOutput:    outcome.Result.ResponseText,
			CreatedAt:      in.Now,
		}
		if err := history.Append(ctx, turn); err != nil {
			return nil, err
		}
	}
	return in, nil
}
