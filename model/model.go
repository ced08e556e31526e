package model

import (
	"context"
	"fmt"
	"sync"
)

// Request captures a single completion request issued by an agent while
// making a decision. System carries the agent's role prompt; Prompt is the
// user-turn content built from COP context and the question at hand.
type Request struct {
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int64   `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the completed model output for a Request.
type Response struct {
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface agents use to drive generation. Generate
// blocks until the completion is available or ctx is cancelled.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Canned responses are matched on the exact prompt; unmatched prompts fall
// back to scripted responses (consumed in order) and finally to a generic
// echo. Safe for concurrent use.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	script    []string
	calls     []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Script appends responses returned in order for prompts without a canned match.
func (m *MockModel) Script(responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, responses...)
}

// Calls returns the requests observed so far.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)

	if text, ok := m.responses[req.Prompt]; ok {
		return &Response{Text: text, FinishReason: "stop"}, nil
	}
	if len(m.script) > 0 {
		text := m.script[0]
		m.script = m.script[1:]
		return &Response{Text: text, FinishReason: "stop"}, nil
	}
	return &Response{Text: fmt.Sprintf("Mock response to: %s", req.Prompt), FinishReason: "stop"}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
