package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	contractx "github.com/pocketsage/pocketsage/agent/contract"
	llmx "github.com/pocketsage/pocketsage/agent/llm"
	toolx "github.com/pocketsage/pocketsage/agent/tool"
)

// llmOutput is the strict JSON shape every worker prompt demands from
// the model. Record is worker-specific and decoded by each adapter.
type llmOutput struct {
	Message          string          `json:"message"`
	RequiresFollowUp bool            `json:"requires_follow_up"`
	Actions          []string        `json:"actions,omitempty"`
	Record           json.RawMessage `json:"record,omitempty"`
}

// modelCore runs a worker's conversation with the model: an optional
// tool round (act) followed by a structured-JSON completion (finalize).
type modelCore struct {
	client       *openaisdk.Client
	settings     llmx.Settings
	systemPrompt string
	tools        []openaisdk.ChatCompletionToolParam
	executor     toolx.Executor
}

func newModelCore(
	client *openaisdk.Client,
	settings llmx.Settings,
	systemPrompt string,
	workerName contractx.WorkerName,
) (*modelCore, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: openai client is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(settings.Model) == "" {
		return nil, fmt.Errorf("%w: model is required for worker=%s", contractx.ErrValidation, workerName)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: system prompt is required for worker=%s", contractx.ErrValidation, workerName)
	}

	tools, executor := toolx.BuildForWorker(workerName)
	return &modelCore{
		client:       client,
		settings:     settings,
		systemPrompt: strings.TrimSpace(systemPrompt),
		tools:        tools,
		executor:     executor,
	}, nil
}

func (m *modelCore) run(ctx context.Context, req contractx.WorkerRequest) (llmOutput, error) {
	if m.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.settings.Timeout)
		defer cancel()
	}

	messages, err := m.baseMessages(req)
	if err != nil {
		return llmOutput{}, err
	}

	if len(m.tools) > 0 {
		messages, err = m.toolRound(ctx, messages)
		if err != nil {
			return llmOutput{}, err
		}
	}

	return m.finalize(ctx, messages)
}

func (m *modelCore) baseMessages(req contractx.WorkerRequest) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(req.History)*2+2)
	messages = append(messages, openaisdk.SystemMessage(m.systemPrompt))

	for _, turn := range req.History {
		messages = append(messages, openaisdk.UserMessage(turn.UserInput))
		if strings.TrimSpace(turn.AgentOutput) != "" {
			messages = append(messages, openaisdk.AssistantMessage(turn.AgentOutput))
		}
	}

	payload := map[string]any{
		"user_input": req.UserInput,
	}
	if len(req.Arguments) > 0 {
		payload["routing_arguments"] = req.Arguments
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal worker payload: %v", contractx.ErrValidation, err)
	}
	messages = append(messages, openaisdk.UserMessage(string(encoded)))
	return messages, nil
}

// toolRound offers the worker's tools to the model once; any requested
// calls are executed locally and their results appended for finalize.
func (m *modelCore) toolRound(
	ctx context.Context,
	messages []openaisdk.ChatCompletionMessageParamUnion,
) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	params := m.params(messages)
	params.Tools = m.tools

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: tool round: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: tool round returned no choices", contractx.ErrModelInvoke)
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return messages, nil
	}

	messages = append(messages, msg.ToParam())
	for _, call := range msg.ToolCalls {
		args := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("%w: invalid tool args for tool=%s: %v", contractx.ErrSchemaViolation, call.Function.Name, err)
			}
		}

		result, err := m.executor(ctx, call.Function.Name, args)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal tool result: %v", contractx.ErrValidation, err)
		}
		messages = append(messages, openaisdk.ToolMessage(call.ID, string(encoded)))
	}
	return messages, nil
}

func (m *modelCore) finalize(
	ctx context.Context,
	messages []openaisdk.ChatCompletionMessageParamUnion,
) (llmOutput, error) {
	resp, err := m.client.Chat.Completions.New(ctx, m.params(messages))
	if err != nil {
		return llmOutput{}, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return llmOutput{}, fmt.Errorf("%w: no choices returned", contractx.ErrModelInvoke)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return llmOutput{}, fmt.Errorf("%w: empty worker response", contractx.ErrSchemaViolation)
	}

	var out llmOutput
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return llmOutput{}, fmt.Errorf("%w: worker response is not valid JSON: %v", contractx.ErrSchemaViolation, err)
	}
	if strings.TrimSpace(out.Message) == "" {
		return llmOutput{}, fmt.Errorf("%w: worker message is empty", contractx.ErrSchemaViolation)
	}
	return out, nil
}

func (m *modelCore) params(messages []openaisdk.ChatCompletionMessageParamUnion) openaisdk.ChatCompletionNewParams {
	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(m.settings.Model),
		Messages: messages,
	}
	if m.settings.Temperature >= 0 {
		params.Temperature = openaisdk.Float(m.settings.Temperature)
	}
	if m.settings.MaxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(m.settings.MaxTokens))
	}
	return params
}

// resultFromOutput maps the model's structured output onto the
// normalized worker result contract.
func resultFromOutput(out llmOutput) contractx.WorkerResult {
	return contractx.WorkerResult{
		ResponseText:     strings.TrimSpace(out.Message),
		RequiresFollowUp: out.RequiresFollowUp,
		ActionsInvoked:   out.Actions,
	}
}

// withArgument copies the routing arguments and adds one entry, leaving
// the caller's map untouched.
func withArgument(args map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	out[key] = value
	return out
}

func appendAction(result *contractx.WorkerResult, action string) {
	for _, existing := range result.ActionsInvoked {
		if existing == action {
			return
		}
	}
	result.ActionsInvoked = append(result.ActionsInvoked, action)
}
