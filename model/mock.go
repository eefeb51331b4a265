package model

import (
	"context"
	"sync"

	"github.com/hupe1980/dialogmesh/core"
)

// MockStep is one scripted MockModel reply: either Content or Err.
type MockStep struct {
	Content core.Content
	Err     error
}

// MockText scripts a plain assistant text reply.
func MockText(text string) MockStep {
	return MockStep{Content: core.NewTextContent(core.RoleAssistant, text)}
}

// MockToolCall scripts an assistant reply requesting one tool call.
func MockToolCall(id, name, arguments string) MockStep {
	return MockStep{Content: core.Content{Role: core.RoleAssistant, Parts: []core.Part{
		core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: arguments}},
	}}}
}

// MockError scripts a failed call.
func MockError(err error) MockStep {
	return MockStep{Err: err}
}

// MockModel is a scripted in-memory Model for tests & examples. Each
// Generate call consumes the next step; once the script is exhausted it
// answers with an empty assistant message.
type MockModel struct {
	info Info

	mu       sync.Mutex
	steps    []MockStep
	requests []Request
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(steps ...MockStep) *MockModel {
	return &MockModel{
		info:  Info{Name: "mock", Provider: "mock", SupportsTools: true},
		steps: steps,
	}
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	step := MockStep{Content: core.Content{Role: core.RoleAssistant}}
	if len(m.steps) > 0 {
		step, m.steps = m.steps[0], m.steps[1:]
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}
		if step.Err != nil {
			errCh <- step.Err
			return
		}
		respCh <- Response{Content: step.Content, FinishReason: "stop"}
	}()
	return respCh, errCh
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Calls returns the number of Generate calls.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
