package dispatchnode

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/pocketsage/pocketsage/agent/contract"
	statex "github.com/pocketsage/pocketsage/agent/state"
)

// UpdateLock applies the single lock rule: when exactly one worker was
// invoked, it succeeded, and it asked for the next turn, the lock is
// set or refreshed. Every other case clears any existing lock: direct
// answers, multi-worker fan-out (no single worker owns the
// continuation), completion signals, and failures.
func UpdateLock(ctx context.Context, in *GraphState, locks statex.LockStore, ttl time.Duration) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	if shouldHoldLock(in.Outcomes) {
		outcome := in.Outcomes[0]
		if _, err := locks.Set(ctx, in.SessionID, string(outcome.Worker), ttl); err != nil {
			return nil, err
		}
		return in, nil
	}

	if err := locks.Clear(ctx, in.SessionID); err != nil {
		return nil, err
	}
	return in, nil
}

func shouldHoldLock(outcomes []Outcome) bool {
	if len(outcomes) != 1 {
		return false
	}
	outcome := outcomes[0]
	return outcome.Worker != "" && outcome.Err == nil && outcome.Result.RequiresFollowUp
}
