package llm

import (
	"context"
	"time"
)

// WithTimeout bounds every Generate call on client to d. A non-positive d
// returns the client unwrapped.
func WithTimeout(client Client, d time.Duration) Client {
	if d <= 0 {
		return client
	}
	return &timeoutClient{inner: client, timeout: d}
}

type timeoutClient struct {
	inner   Client
	timeout time.Duration
}

func (t *timeoutClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Generate(ctx, req)
}

func (t *timeoutClient) Close() error { return t.inner.Close() }
