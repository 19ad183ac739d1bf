package dispatchnode

import (
	"context"
	"fmt"

	contractx "github.com/pocketsage/pocketsage/agent/contract"
	statex "github.com/pocketsage/pocketsage/agent/state"
	"github.com/rs/zerolog/log"
)

// FallbackClarification is the deterministic reply used whenever the
// classifier is unreachable or returns something unusable. The turn is
// never silently dropped.
const FallbackClarification = "I couldn't work out what you'd like me to do. Could you rephrase that?"

// ResolveRoute decides who handles the turn. A locked session bypasses
// classification entirely and routes to the locking worker with history
// scoped to that worker; an unlocked session is classified against the
// worker catalog using a bounded window of full history.
func ResolveRoute(
	ctx context.Context,
	in *GraphState,
	classifier contractx.Classifier,
	registry contractx.Registry,
	history statex.HistoryStore,
	historyWindow int,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	if in.Lock != nil {
		scoped, err := history.ForWorker(ctx, in.SessionID, in.Lock.WorkerName, historyWindow)
		if err != nil {
			return nil, err
		}
		in.LockedRoute = true
		in.History = scoped
		in.Routes = []contractx.Route{
			{WorkerName: contractx.WorkerName(in.Lock.WorkerName)},
		}
		return in, nil
	}

	recent, err := history.Recent(ctx, in.SessionID, historyWindow)
	if err != nil {
		return nil, err
	}
	in.History = recent

	classification, err := classifier.Classify(ctx, in.Text, recent, registry.Catalog())
	if err != nil {
		log.Warn().Err(err).Str("session_id", in.SessionID).Msg("classification failed, falling back to direct answer")
		in.DirectAnswer = FallbackClarification
		return in, nil
	}

	switch classification.Kind {
	case contractx.RouteDirect:
		answer := classification.Answer
		if answer == "" {
			answer = FallbackClarification
		}
		in.DirectAnswer = answer
	case contractx.RouteSingle, contractx.RouteMulti:
		if len(classification.Routes) == 0 {
			in.DirectAnswer = FallbackClarification
			return in, nil
		}
		for _, route := range classification.Routes {
			if _, ok := registry.Lookup(route.WorkerName); !ok {
				log.Warn().Str("worker", string(route.WorkerName)).Str("session_id", in.SessionID).Msg("classifier selected unknown worker, falling back")
				in.DirectAnswer = FallbackClarification
				in.Routes = nil
				return in, nil
			}
		}
		in.Routes = classification.Routes
	default:
		in.DirectAnswer = FallbackClarification
	}

	return in, nil
}
