package dispatchnode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/pocketsage/pocketsage/agent/contract"
	statex "github.com/pocketsage/pocketsage/agent/state"
)

// LoadLock reads the session's lock. An absent or expired lock leaves
// the state unlocked; only store failures propagate.
func LoadLock(ctx context.Context, in *GraphState, locks statex.LockStore) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	lock, err := locks.Get(ctx, in.SessionID)
	if err != nil {
		if errors.Is(err, statex.ErrLockNotFound) {
			in.Lock = nil
			return in, nil
		}
		return nil, err
	}

	in.Lock = lock
	return in, nil
}
