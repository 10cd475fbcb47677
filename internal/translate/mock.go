package translate

import (
	"context"
	"sync"
)

// MockClient is a Model for tests. Handler, when set, answers each request;
// otherwise Response and Error are returned.
type MockClient struct {
	Handler  func(Request) (*Response, error)
	Response *Response
	Error    error

	mu                    sync.Mutex
	calls                 int
	LastSystemInstruction string
}

func (m *MockClient) Translate(ctx context.Context, request Request) (*Response, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Handler != nil {
		return m.Handler(request)
	}
	return m.Response, m.Error
}

func (m *MockClient) SetSystemInstruction(prompt string) {
	m.mu.Lock()
	m.LastSystemInstruction = prompt
	m.mu.Unlock()
}

// Calls returns how many Translate calls were made.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
