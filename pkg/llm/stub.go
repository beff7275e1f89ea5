package llm

import (
	"context"
	"fmt"
	"sync"
)

// StubClient returns scripted responses for testing, in call order. When a
// Respond function is set it takes precedence over the scripted list.
// The real adapters live in anthropic.go, openai.go, and gemini.go.
type StubClient struct {
	mu        sync.Mutex
	Responses []string
	// Respond, when set, computes the response from the request.
	Respond func(req *Request) (string, error)
	// Err, when set, is returned by every call.
	Err error

	calls []*Request
}

// Generate implements Client.
func (s *StubClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)

	if s.Err != nil {
		return nil, s.Err
	}
	if s.Respond != nil {
		text, err := s.Respond(req)
		if err != nil {
			return nil, err
		}
		return &Response{Text: text}, nil
	}
	if len(s.Responses) == 0 {
		return nil, fmt.Errorf("stub: no scripted response for call %d", len(s.calls))
	}
	text := s.Responses[0]
	s.Responses = s.Responses[1:]
	return &Response{Text: text}, nil
}

// Close implements Client.
func (s *StubClient) Close() error { return nil }

// Calls returns a snapshot of every request seen so far.
func (s *StubClient) Calls() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Request, len(s.calls))
	copy(out, s.calls)
	return out
}
