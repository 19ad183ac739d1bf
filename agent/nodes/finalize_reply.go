package dispatchnode

import (
	"fmt"
	"strings"

	contractx "github.com/pocketsage/pocketsage/agent/contract"
)

// FinalizeReply joins the outcome texts in invocation order. The user
// always receives some response text, even when every worker failed.
func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	parts := make([]string, 0, len(in.Outcomes))
	for _, outcome := range in.Outcomes {
		if text := strings.TrimSpace(outcome.Result.ResponseText); text != "" {
			parts = append(parts, text)
		}
	}

	reply := strings.Join(parts, "\n\n")
	if reply == "" {
		reply = WorkerFailureReply
	}
	return GraphOutput{Reply: reply}, nil
}
