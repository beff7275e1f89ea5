// Package llm abstracts the LLM providers behind a single-call interface.
// Each adapter owns its SDK's native message types, including the tool-call
// loop, so callers only ever see prompt in, text out.
package llm

import "context"

// Client is the narrow interface every stage talks to. Implementations are
// safe for concurrent use.
type Client interface {
	// Generate runs one prompt to completion. When the request carries a
	// ToolRunner the adapter drives the provider's native tool-call loop,
	// executing calls through the runner until the model stops calling tools
	// or MaxToolIterations is reached.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Close releases provider resources.
	Close() error
}

// Request is one prompt. System and Prompt are separate because Anthropic
// and Gemini take the system text out-of-band.
type Request struct {
	System string
	Prompt string

	// JSONMode asks the provider for a JSON-object response where the SDK
	// supports it. Ignored by providers without native JSON mode; the
	// structured-output driver handles their fenced output instead.
	JSONMode bool

	// MaxTokens caps the completion; 0 uses the adapter default.
	MaxTokens int

	// Tools, when non-nil, exposes tool calling to the model.
	Tools ToolRunner
	// MaxToolIterations bounds the tool loop (default 5).
	MaxToolIterations int
}

// Response is the completed generation.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// ToolRunner executes tool calls on behalf of an adapter's tool loop.
// Failures are returned as textual outcomes, never as errors, so the model
// can keep reasoning.
type ToolRunner interface {
	// Definitions lists the tools visible to the model.
	Definitions() []ToolDefinition

	// Run executes one call.
	Run(ctx context.Context, call ToolCall) ToolOutcome
}

// ToolDefinition describes one callable tool.
type ToolDefinition struct {
	Name        string
	Description string
	// Parameters is the JSON-schema "properties" object.
	Parameters map[string]any
	Required   []string
}

// ToolCall is the model's request to invoke a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// ToolOutcome is the textual result handed back to the model.
type ToolOutcome struct {
	Content string
	IsError bool
}

// defaultMaxToolIterations bounds adapters' tool loops when the request
// doesn't set one.
const defaultMaxToolIterations = 5

func maxToolIterations(req *Request) int {
	if req.MaxToolIterations > 0 {
		return req.MaxToolIterations
	}
	return defaultMaxToolIterations
}

// defaultMaxTokens is the completion cap used when neither the request nor
// the provider config sets one.
const defaultMaxTokens = 8192

func maxTokens(req *Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}
