package dispatchnode

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/pocketsage/pocketsage/agent/contract"
	statex "github.com/pocketsage/pocketsage/agent/state"
	"github.com/rs/zerolog/log"
)

// WorkerFailureReply is the user-visible apology for a failed worker
// invocation. The failure is recorded as an outcome, never a crash.
const WorkerFailureReply = "Sorry, something went wrong while handling that. Mind trying again?"

// InvokeWorkers fans the turn out to every selected worker in route
// order, or produces the single direct-answer outcome. A failure of one
// worker does not abort the others; each failure becomes an apology
// outcome so the dispatcher can still compose a response.
func InvokeWorkers(
	ctx context.Context,
	in *GraphState,
	registry contractx.Registry,
	history statex.HistoryStore,
	historyWindow int,
	workerTimeout time.Duration,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	if in.DirectAnswer != "" {
		in.Outcomes = []Outcome{{
			Result: contractx.WorkerResult{ResponseText: in.DirectAnswer},
		}}
		return in, nil
	}

	if len(in.Routes) == 0 {
		return nil, fmt.Errorf("%w: no routes resolved", contractx.ErrValidation)
	}

	for _, route := range in.Routes {
		worker, ok := registry.Lookup(route.WorkerName)
		if !ok {
			// Unreachable for classified routes (checked in ResolveRoute)
			// but a stale lock may name a worker no longer deployed.
			in.Outcomes = append(in.Outcomes, Outcome{
				Worker: route.WorkerName,
				Result: contractx.WorkerResult{ResponseText: WorkerFailureReply},
				Err:    fmt.Errorf("%w: %s", contractx.ErrWorkerUnknown, route.WorkerName),
			})
			continue
		}

		scoped := in.History
		if !in.LockedRoute {
			var err error
			scoped, err = history.ForWorker(ctx, in.SessionID, string(route.WorkerName), historyWindow)
			if err != nil {
				return nil, err
			}
		}

		result, err := invokeWorker(ctx, worker, contractx.WorkerRequest{
			SessionID: in.SessionID,
			UserID:    in.UserID,
			UserInput: in.Text,
			Arguments: route.Arguments,
			History:   scoped,
		}, workerTimeout)
		if err != nil {
			log.Error().Err(err).Str("worker", string(route.WorkerName)).Str("session_id", in.SessionID).Msg("worker invocation failed")
			in.Outcomes = append(in.Outcomes, Outcome{
				Worker: route.WorkerName,
				Result: contractx.WorkerResult{ResponseText: WorkerFailureReply},
				Err:    fmt.Errorf("%w: %v", contractx.ErrWorkerInvocation, err),
			})
			continue
		}

		in.Outcomes = append(in.Outcomes, Outcome{
			Worker: route.WorkerName,
			Result: result,
		})
	}

	return in, nil
}

func invokeWorker(
	ctx context.Context,
	worker contractx.Worker,
	req contractx.WorkerRequest,
	timeout time.Duration,
) (contractx.WorkerResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return worker.Invoke(ctx, req)
}
