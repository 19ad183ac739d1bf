package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	contractx "github.com/pocketsage/pocketsage/agent/contract"
	llmx "github.com/pocketsage/pocketsage/agent/llm"
)

// Classifier maps a turn to zero or more workers through chat-completion
// tool calling: every worker descriptor is offered to the model as a
// callable tool, and the returned tool calls become routes. No tool call
// plus assistant content is a direct answer.
type Classifier struct {
	client       *openaisdk.Client
	settings     llmx.Settings
	systemPrompt string
}

func New(client *openaisdk.Client, settings llmx.Settings, systemPrompt string) (*Classifier, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: openai client is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(settings.Model) == "" {
		return nil, fmt.Errorf("%w: classifier model is required", contractx.ErrValidation)
	}
	return &Classifier{
		client:       client,
		settings:     settings,
		systemPrompt: strings.TrimSpace(systemPrompt),
	}, nil
}

func (c *Classifier) Classify(
	ctx context.Context,
	userInput string,
	history []contractx.Turn,
	catalog []contractx.WorkerDescriptor,
) (contractx.Classification, error) {
	userInput = strings.TrimSpace(userInput)
	if userInput == "" {
		return contractx.Classification{}, fmt.Errorf("%w: user input is required", contractx.ErrValidation)
	}
	if len(catalog) == 0 {
		return contractx.Classification{}, fmt.Errorf("%w: worker catalog is empty", contractx.ErrValidation)
	}

	if c.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.settings.Timeout)
		defer cancel()
	}

	known := make(map[contractx.WorkerName]struct{}, len(catalog))
	for _, desc := range catalog {
		known[desc.Name] = struct{}{}
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if c.systemPrompt != "" {
		messages = append(messages, openaisdk.SystemMessage(c.systemPrompt))
	}
	for _, turn := range history {
		messages = append(messages, openaisdk.UserMessage(turn.UserInput))
		if strings.TrimSpace(turn.AgentOutput) != "" {
			messages = append(messages, openaisdk.AssistantMessage(turn.AgentOutput))
		}
	}
	messages = append(messages, openaisdk.UserMessage(userInput))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.settings.Model),
		Messages: messages,
		Tools:    toolsFromCatalog(catalog),
	}
	if c.settings.Temperature >= 0 {
		params.Temperature = openaisdk.Float(c.settings.Temperature)
	}
	if c.settings.MaxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(c.settings.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return contractx.Classification{}, fmt.Errorf("%w: %v", contractx.ErrClassification, err)
	}
	if len(resp.Choices) == 0 {
		return contractx.Classification{}, fmt.Errorf("%w: no choices returned", contractx.ErrClassification)
	}

	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) == 0 {
		answer := strings.TrimSpace(choice.Message.Content)
		if answer == "" {
			return contractx.Classification{}, fmt.Errorf("%w: empty classification result", contractx.ErrClassification)
		}
		return contractx.Classification{
			Kind:   contractx.RouteDirect,
			Answer: answer,
		}, nil
	}

	routes := make([]contractx.Route, 0, len(choice.Message.ToolCalls))
	for _, call := range choice.Message.ToolCalls {
		name := contractx.WorkerName(strings.TrimSpace(call.Function.Name))
		if _, ok := known[name]; !ok {
			return contractx.Classification{}, fmt.Errorf("%w: unknown worker %q selected", contractx.ErrClassification, name)
		}

		args := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return contractx.Classification{}, fmt.Errorf("%w: invalid arguments for worker %q: %v", contractx.ErrClassification, name, err)
			}
		}
		routes = append(routes, contractx.Route{
			WorkerName: name,
			Arguments:  args,
		})
	}

	kind := contractx.RouteSingle
	if len(routes) > 1 {
		kind = contractx.RouteMulti
	}
	return contractx.Classification{
		Kind:   kind,
		Routes: routes,
	}, nil
}

func toolsFromCatalog(catalog []contractx.WorkerDescriptor) []openaisdk.ChatCompletionToolParam {
	tools := make([]openaisdk.ChatCompletionToolParam, 0, len(catalog))
	for _, desc := range catalog {
		tools = append(tools, openaisdk.ChatCompletionToolParam{
			Type: "function",
			Function: openaisdk.FunctionDefinitionParam{
				Name:        string(desc.Name),
				Description: openaisdk.String(desc.Description),
				Parameters: openaisdk.FunctionParameters(map[string]any{
					"type":                 "object",
					"properties":           map[string]any{},
					"additionalProperties": true,
				}),
			},
		})
	}
	return tools
}
