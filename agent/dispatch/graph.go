package dispatch

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	nodex "github.com/pocketsage/pocketsage/agent/nodes"
)

func (d *Dispatcher) compileHandleTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, d.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_lock",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadLock(ctx, in, d.locks)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_lock: %w", err)
	}

	if err := graph.AddLambdaNode("resolve_route",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ResolveRoute(ctx, in, d.classifier, d.registry, d.history, d.historyWindow)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node resolve_route: %w", err)
	}

	if err := graph.AddLambdaNode("invoke_workers",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.InvokeWorkers(ctx, in, d.registry, d.history, d.historyWindow, d.workerTimeout)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node invoke_workers: %w", err)
	}

	if err := graph.AddLambdaNode("update_lock",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.UpdateLock(ctx, in, d.locks, d.lockTTL)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node update_lock: %w", err)
	}

	if err := graph.AddLambdaNode("append_history",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.AppendHistory(ctx, in, d.history)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node append_history: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_lock"},
		{"load_lock", "resolve_route"},
		{"resolve_route", "invoke_workers"},
		{"invoke_workers", "update_lock"},
		{"update_lock", "append_history"},
		{"append_history", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("dispatch.handle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile dispatch graph: %w", err)
	}
	return runner, nil
}
