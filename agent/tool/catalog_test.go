package tool

import (
	"context"
	"testing"

	contractx "github.com/pocketsage/pocketsage/agent/contract"
)

func TestBuildForWorkerBudgetPlanner(t *testing.T) {
	t.Parallel()

	params, executor := BuildForWorker(contractx.WorkerBudgetPlanner)
	if len(params) != 1 {
		t.Fatalf("expected 1 tool param, got %d", len(params))
	}
	if params[0].Function.Name != ToolMathEvaluate {
		t.Fatalf("unexpected tool: %s", params[0].Function.Name)
	}
	if executor == nil {
		t.Fatal("executor must not be nil")
	}
}

func TestBuildForWorkerTransactionClassifierHasNoTools(t *testing.T) {
	t.Parallel()

	params, executor := BuildForWorker(contractx.WorkerTransactionClassifier)
	if len(params) != 0 {
		t.Fatalf("expected no tool params, got %d", len(params))
	}
	if executor == nil {
		t.Fatal("executor must not be nil")
	}
}

func TestDefaultExecutorUnavailableMessage(t *testing.T) {
	t.Parallel()

	executor := DefaultExecutor(contractx.WorkerTransactionClassifier)
	out, err := executor(context.Background(), "ledger.lookup", map[string]any{"query": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Tool != "ledger.lookup" {
		t.Fatalf("unexpected tool: %s", out.Tool)
	}
	if out.Error == "" {
		t.Fatal("expected non-empty error message")
	}
}

func TestNewExecutorMathEvaluate(t *testing.T) {
	t.Parallel()

	executor := NewExecutor(contractx.WorkerBudgetPlanner)
	out, err := executor(context.Background(), ToolMathEvaluate, map[string]any{
		"expression": "2 + 3 * (4 - 1)",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Error != "" {
		t.Fatalf("unexpected tool error: %s", out.Error)
	}
	result, ok := out.Result.(MathEvaluateOutput)
	if !ok {
		t.Fatalf("unexpected result type: %T", out.Result)
	}
	if result.Result != 11 {
		t.Fatalf("unexpected result: %v", result.Result)
	}
}

func TestNewExecutorMathEvaluateInvalidExpression(t *testing.T) {
	t.Parallel()

	executor := NewExecutor(contractx.WorkerBudgetPlanner)
	out, err := executor(context.Background(), ToolMathEvaluate, map[string]any{
		"expression": "2 + abc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Error == "" {
		t.Fatal("expected validation error")
	}
}
