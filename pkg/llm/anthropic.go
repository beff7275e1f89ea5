package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient adapts the official anthropic-sdk-go client.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient builds an Anthropic adapter for the given model and
// credential. baseURL is optional.
func NewAnthropicClient(apiKey, model, baseURL string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: credential is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{client: &client, model: model}, nil
}

// Generate implements Client. Tool calls are executed inline: the assistant
// turn and the tool results are appended to the native conversation until the
// model answers in text.
func (c *AnthropicClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens(req)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Tools != nil {
		params.Tools = buildAnthropicTools(req.Tools.Definitions())
	}

	resp := &Response{}
	for iter := 0; iter <= maxToolIterations(req); iter++ {
		message, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return nil, classify("anthropic", err)
		}
		resp.InputTokens += int(message.Usage.InputTokens)
		resp.OutputTokens += int(message.Usage.OutputTokens)

		var toolUses []anthropic.ToolUseBlock
		for _, block := range message.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				resp.Text += variant.Text
			case anthropic.ToolUseBlock:
				toolUses = append(toolUses, variant)
			}
		}

		if len(toolUses) == 0 || req.Tools == nil {
			return resp, nil
		}

		params.Messages = append(params.Messages, message.ToParam())
		for _, tu := range toolUses {
			outcome := req.Tools.Run(ctx, ToolCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: tu.JSON.Input.Raw(),
			})
			params.Messages = append(params.Messages,
				anthropic.NewUserMessage(
					anthropic.NewToolResultBlock(tu.ID, outcome.Content, outcome.IsError)))
		}
	}
	// Loop budget exhausted: return whatever text accumulated.
	return resp, nil
}

// Close implements Client. The SDK client holds no connection state.
func (c *AnthropicClient) Close() error { return nil }

func buildAnthropicTools(defs []ToolDefinition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		props := def.Parameters
		if props == nil {
			props = map[string]any{}
		}
		tool := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(describeWithRequired(def)),
			InputSchema: anthropic.ToolInputSchemaParam{Properties: props},
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return tools
}

// describeWithRequired folds the required-parameter list into the tool
// description so the schema stays a plain properties object.
func describeWithRequired(def ToolDefinition) string {
	if len(def.Required) == 0 {
		return def.Description
	}
	required, _ := json.Marshal(def.Required)
	return fmt.Sprintf("%s Required parameters: %s.", def.Description, required)
}
