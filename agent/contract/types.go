package contract

import "time"

// WorkerName identifies a specialized task handler in the static registry.
type WorkerName string

const (
	WorkerTransactionClassifier WorkerName = "transaction_classifier"
	WorkerBudgetPlanner         WorkerName = "budget_planner"
	WorkerRecurringScheduler    WorkerName = "recurring_scheduler"
	WorkerSavingsPlanner        WorkerName = "savings_planner"

	// DirectAnswerProducer is recorded as the producer of turns the
	// dispatcher answered without delegating to a worker.
	DirectAnswerProducer = "dispatcher"
)

// Turn is one user input and the resulting output within a session.
// Immutable once appended to the history store.
type Turn struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	SequenceNo     int       `json:"sequence_no"`
	UserInput      string    `json:"user_input"`
	ProducedBy     []string  `json:"produced_by"`
	ActionsInvoked []string  `json:"actions_invoked,omitempty"`
	AgentOutput    string    `json:"agent_output"`
	CreatedAt      time.Time `json:"created_at"`
}

// Lock is a single worker's claim on handling the session's next turn
// without re-classification. At most one lock exists per session.
type Lock struct {
	SessionID  string    `json:"session_id"`
	WorkerName string    `json:"worker_name"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lock's claim has lapsed at the given instant.
func (l *Lock) Expired(now time.Time) bool {
	return l == nil || !now.Before(l.ExpiresAt)
}

// WorkerResult is the normalized shape every worker adapter must produce.
// RequiresFollowUp=true is the only signal that creates or refreshes a
// lock; false is the only signal that clears it.
type WorkerResult struct {
	ResponseText     string   `json:"response_text"`
	RequiresFollowUp bool     `json:"requires_follow_up"`
	ActionsInvoked   []string `json:"actions_invoked,omitempty"`
}

// WorkerDescriptor is the static capability card used to build the
// classifier's action catalog. Never mutated at runtime.
type WorkerDescriptor struct {
	Name        WorkerName `json:"name"`
	Description string     `json:"description"`
}

// Route is one classifier-selected worker with extracted arguments.
type Route struct {
	WorkerName WorkerName     `json:"worker_name"`
	Arguments  map[string]any `json:"arguments,omitempty"`
}

// RouteKind discriminates the classifier outcome.
type RouteKind string

const (
	RouteDirect RouteKind = "direct"
	RouteSingle RouteKind = "single"
	RouteMulti  RouteKind = "multi"
)

// Classification is the classifier capability's outcome for one turn.
// Kind=RouteDirect carries Answer; single/multi carry Routes in the
// order the classifier selected them.
type Classification struct {
	Kind   RouteKind `json:"kind"`
	Answer string    `json:"answer,omitempty"`
	Routes []Route   `json:"routes,omitempty"`
}

// WorkerRequest is the dispatcher's generic invocation handed to a
// worker adapter, carrying history already scoped for that worker.
type WorkerRequest struct {
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id"`
	UserInput string         `json:"user_input"`
	Arguments map[string]any `json:"arguments,omitempty"`
	History   []Turn         `json:"history,omitempty"`
}

// ToolRequest is a worker-internal request to run a local tool before
// finalizing its reply.
type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
