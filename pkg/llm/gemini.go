package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient adapts the google.golang.org/genai client.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient builds a Gemini adapter for the given model and credential.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: credential is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Generate implements Client. Function calls are executed inline: the model
// turn and the function responses are appended to the conversation until the
// model answers in text.
func (c *GeminiClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if n := maxTokens(req); n > 0 {
		cfg.MaxOutputTokens = int32(n)
	}
	// The API rejects a JSON response MIME type combined with function
	// declarations; with tools the driver parses JSON out of plain text.
	if req.JSONMode && req.Tools == nil {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.Tools != nil {
		cfg.Tools = buildGeminiTools(req.Tools.Definitions())
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	resp := &Response{}
	for iter := 0; iter <= maxToolIterations(req); iter++ {
		result, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
		if err != nil {
			return nil, classify("gemini", err)
		}
		if result.UsageMetadata != nil {
			resp.InputTokens += int(result.UsageMetadata.PromptTokenCount)
			resp.OutputTokens += int(result.UsageMetadata.CandidatesTokenCount)
		}
		resp.Text += result.Text()

		calls := result.FunctionCalls()
		if len(calls) == 0 || req.Tools == nil {
			return resp, nil
		}

		if len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
			contents = append(contents, result.Candidates[0].Content)
		}
		var parts []*genai.Part
		for _, fc := range calls {
			args, _ := json.Marshal(fc.Args)
			outcome := req.Tools.Run(ctx, ToolCall{
				ID:        fc.ID,
				Name:      fc.Name,
				Arguments: string(args),
			})
			response := map[string]any{"output": outcome.Content}
			if outcome.IsError {
				response = map[string]any{"error": outcome.Content}
			}
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       fc.ID,
				Name:     fc.Name,
				Response: response,
			}})
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	}
	// Loop budget exhausted: return whatever text accumulated.
	return resp, nil
}

// Close implements Client. The genai client holds no closable state.
func (c *GeminiClient) Close() error { return nil }

func buildGeminiTools(defs []ToolDefinition) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  geminiParameterSchema(def),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// geminiParameterSchema converts a tool's plain-map parameter properties into
// the typed schema the genai SDK expects.
func geminiParameterSchema(def ToolDefinition) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{},
		Required:   def.Required,
	}
	for name, raw := range def.Parameters {
		prop := &genai.Schema{Type: genai.TypeString}
		if m, ok := raw.(map[string]any); ok {
			if t, ok := m["type"].(string); ok {
				prop.Type = geminiType(t)
			}
			if d, ok := m["description"].(string); ok {
				prop.Description = d
			}
		}
		schema.Properties[name] = prop
	}
	return schema
}

func geminiType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
