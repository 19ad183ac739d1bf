package dispatchnode

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/pocketsage/pocketsage/agent/contract"
	statex "github.com/pocketsage/pocketsage/agent/state"
)

func lockedState(outcomes ...Outcome) *GraphState {
	return &GraphState{
		SessionID: "s1",
		UserID:    "u1",
		Text:      "hello",
		Now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Outcomes:  outcomes,
	}
}

func TestUpdateLockSingleFollowUpAcquires(t *testing.T) {
	t.Parallel()

	locks := statex.NewMemoryLockStore()
	state := lockedState(Outcome{
		Worker: contractx.WorkerBudgetPlanner,
		Result: contractx.WorkerResult{ResponseText: "and your income?", RequiresFollowUp: true},
	})

	if _, err := UpdateLock(context.Background(), state, locks, time.Minute); err != nil {
		t.Fatalf("UpdateLock() error = %v", err)
	}

	lock, err := locks.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("expected lock, got %v", err)
	}
	if lock.WorkerName != string(contractx.WorkerBudgetPlanner) {
		t.Fatalf("lock held by %q", lock.WorkerName)
	}
}

func TestUpdateLockClearsOnCompletion(t *testing.T) {
	t.Parallel()

	locks := statex.NewMemoryLockStore()
	if _, err := locks.Set(context.Background(), "s1", string(contractx.WorkerBudgetPlanner), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	state := lockedState(Outcome{
		Worker: contractx.WorkerBudgetPlanner,
		Result: contractx.WorkerResult{ResponseText: "done", RequiresFollowUp: false},
	})
	if _, err := UpdateLock(context.Background(), state, locks, time.Minute); err != nil {
		t.Fatalf("UpdateLock() error = %v", err)
	}

	if _, err := locks.Get(context.Background(), "s1"); !errors.Is(err, statex.ErrLockNotFound) {
		t.Fatalf("expected lock cleared, got %v", err)
	}
}

func TestUpdateLockNeverHoldsForMultiOrFailure(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		outcomes []Outcome
	}{
		{
			name: "multi worker fan-out",
			outcomes: []Outcome{
				{Worker: contractx.WorkerBudgetPlanner, Result: contractx.WorkerResult{RequiresFollowUp: true}},
				{Worker: contractx.WorkerSavingsPlanner, Result: contractx.WorkerResult{RequiresFollowUp: true}},
			},
		},
		{
			name: "direct answer",
			outcomes: []Outcome{
				{Result: contractx.WorkerResult{ResponseText: "hi there"}},
			},
		},
		{
			name: "failed worker",
			outcomes: []Outcome{
				{
					Worker: contractx.WorkerBudgetPlanner,
					Result: contractx.WorkerResult{ResponseText: WorkerFailureReply, RequiresFollowUp: true},
					Err:    errors.New("model timeout"),
				},
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			locks := statex.NewMemoryLockStore()
			if _, err := locks.Set(context.Background(), "s1", string(contractx.WorkerBudgetPlanner), time.Minute); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			if _, err := UpdateLock(context.Background(), lockedState(tc.outcomes...), locks, time.Minute); err != nil {
				t.Fatalf("UpdateLock() error = %v", err)
			}
			if _, err := locks.Get(context.Background(), "s1"); !errors.Is(err, statex.ErrLockNotFound) {
				t.Fatalf("expected lock cleared, got %v", err)
			}
		})
	}
}

func TestFinalizeReplyJoinsInOrder(t *testing.T) {
	t.Parallel()

	out, err := FinalizeReply(lockedState(
		Outcome{Worker: contractx.WorkerTransactionClassifier, Result: contractx.WorkerResult{ResponseText: "Logged."}},
		Outcome{Worker: contractx.WorkerBudgetPlanner, Result: contractx.WorkerResult{ResponseText: "Budget is on track."}},
	))
	if err != nil {
		t.Fatalf("FinalizeReply() error = %v", err)
	}
	if out.Reply != "Logged.\n\nBudget is on track." {
		t.Fatalf("unexpected reply: %q", out.Reply)
	}
}

func TestFinalizeReplyNeverEmpty(t *testing.T) {
	t.Parallel()

	out, err := FinalizeReply(lockedState(
		Outcome{Worker: contractx.WorkerBudgetPlanner, Result: contractx.WorkerResult{ResponseText: "   "}},
	))
	if err != nil {
		t.Fatalf("FinalizeReply() error = %v", err)
	}
	if out.Reply != WorkerFailureReply {
		t.Fatalf("unexpected reply: %q", out.Reply)
	}
}

func TestValidateRequestTrimsAndRejects(t *testing.T) {
	t.Parallel()

	nowFn := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	state, err := ValidateRequest(GraphInput{SessionID: " s1 ", UserID: " u1 ", Text: " hi "}, nowFn)
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	if state.SessionID != "s1" || state.UserID != "u1" || state.Text != "hi" {
		t.Fatalf("fields not trimmed: %+v", state)
	}

	if _, err := ValidateRequest(GraphInput{SessionID: "", UserID: "u1", Text: "hi"}, nowFn); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if _, err := ValidateRequest(GraphInput{SessionID: "s1", UserID: " ", Text: "hi"}, nowFn); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
	if _, err := ValidateRequest(GraphInput{SessionID: "s1", UserID: "u1", Text: ""}, nowFn); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}
