package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string

	// Responses, when set, answers request N (1-based) with Responses[N-1].
	// Requests beyond the slice fall back to ResponseText.
	Responses []string

	// FailOn lists request numbers (1-based) that fail with FailErr.
	FailOn  map[int]bool
	FailErr error

	// State
	requestCount atomic.Int64
	mu           sync.Mutex
	requests     []*ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		Latency:      10 * time.Millisecond,
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// RequestCount returns the number of requests received.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns the requests received, in order.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}

	fail := func(err error) (*ChatResult, error) {
		result.Success = false
		result.ErrorType = ErrorType(err)
		if result.ErrorType == "api_error" {
			result.ErrorType = "mock_failure"
		}
		result.ErrorMessage = err.Error()
		result.TotalTime = time.Since(start)
		return result, err
	}

	if c.ShouldFail {
		return fail(fmt.Errorf("mock client configured to fail"))
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return fail(fmt.Errorf("mock client failed after %d requests", c.FailAfter))
	}
	if c.FailOn[int(count)] {
		err := c.FailErr
		if err == nil {
			err = fmt.Errorf("mock failure on request %d", count)
		}
		return fail(err)
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return fail(ctx.Err())
		}
	}

	result.Success = true
	result.Content = c.ResponseText
	if i := int(count) - 1; i < len(c.Responses) {
		result.Content = c.Responses[i]
	}
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4 // Rough estimate
		promptTokens += 258 * len(m.Images)
	}
	result.PromptTokens = promptTokens
	result.CompletionTokens = len(result.Content) / 4
	result.TotalTokens = result.PromptTokens + result.CompletionTokens

	return result, nil
}

var _ LLMClient = (*MockClient)(nil)
