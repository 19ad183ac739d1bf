package tool

import (
	"context"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	contractx "github.com/pocketsage/pocketsage/agent/contract"
)

type Executor func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error)

// BuildForWorker returns the tool declarations a worker may offer the
// model and the executor that runs them locally. Workers without tools
// get an empty catalog and the fallback executor.
func BuildForWorker(name contractx.WorkerName) ([]openaisdk.ChatCompletionToolParam, Executor) {
	return paramsForWorker(name), NewExecutor(name)
}

func NewExecutor(name contractx.WorkerName) Executor {
	fallback := DefaultExecutor(name)
	return func(ctx context.Context, tool string, args map[string]any) (contractx.ToolResult, error) {
		switch tool {
		case ToolMathEvaluate:
			return executeMathTool(tool, args)
		default:
			return fallback(ctx, tool, args)
		}
	}
}

func DefaultExecutor(name contractx.WorkerName) Executor {
	return func(ctx context.Context, tool string, _ map[string]any) (contractx.ToolResult, error) {
		return contractx.ToolResult{
			Tool:  tool,
			Error: fmt.Sprintf("tool=%s is unavailable for worker=%s", tool, name),
		}, nil
	}
}

func paramsForWorker(name contractx.WorkerName) []openaisdk.ChatCompletionToolParam {
	switch name {
	case contractx.WorkerBudgetPlanner, contractx.WorkerSavingsPlanner:
		return []openaisdk.ChatCompletionToolParam{mathEvaluateParam()}
	default:
		return nil
	}
}

func mathEvaluateParam() openaisdk.ChatCompletionToolParam {
	return openaisdk.ChatCompletionToolParam{
		Type: "function",
		Function: openaisdk.FunctionDefinitionParam{
			Name:        ToolMathEvaluate,
			Description: openaisdk.String("Evaluate a mathematical expression."),
			Parameters: openaisdk.FunctionParameters(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"expression": map[string]any{
						"type":        "string",
						"description": "Expression to evaluate",
					},
				},
				"required": []string{"expression"},
			}),
		},
	}
}
