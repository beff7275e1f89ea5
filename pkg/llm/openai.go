package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient adapts the official openai-go client.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds an OpenAI adapter for the given model and
// credential. baseURL is optional (Azure fronts, proxies).
func NewOpenAIClient(apiKey, model, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: credential is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClient{client: &client, model: model}, nil
}

// Generate implements Client.
func (c *OpenAIClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(maxTokens(req))),
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: openai.Ptr(shared.NewResponseFormatJSONObjectParam()),
		}
	}
	if req.Tools != nil {
		params.Tools = buildOpenAITools(req.Tools.Definitions())
	}

	resp := &Response{}
	for iter := 0; iter <= maxToolIterations(req); iter++ {
		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, classify("openai", err)
		}
		resp.InputTokens += int(completion.Usage.PromptTokens)
		resp.OutputTokens += int(completion.Usage.CompletionTokens)

		if len(completion.Choices) == 0 {
			return resp, nil
		}
		message := completion.Choices[0].Message
		resp.Text += message.Content

		if len(message.ToolCalls) == 0 || req.Tools == nil {
			return resp, nil
		}

		params.Messages = append(params.Messages, message.ToParam())
		for _, tc := range message.ToolCalls {
			outcome := req.Tools.Run(ctx, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
			params.Messages = append(params.Messages, openai.ToolMessage(outcome.Content, tc.ID))
		}
	}
	return resp, nil
}

// Close implements Client.
func (c *OpenAIClient) Close() error { return nil }

func buildOpenAITools(defs []ToolDefinition) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		parameters := shared.FunctionParameters{
			"type":       "object",
			"properties": def.Parameters,
		}
		if len(def.Required) > 0 {
			parameters["required"] = def.Required
		}
		tools = append(tools, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  parameters,
			},
		})
	}
	return tools
}
