package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/tickerflow/tickerflow/pkg/artifact"
)

// MockAdapter returns deterministic responses for offline runs and tests.
// Responses can be keyed by exact prompt or by substring match, so pipeline
// tests can script per-stage outputs without reproducing full prompts.
type MockAdapter struct {
	responses       map[string]string
	substrings      map[string]string
	defaultResponse string
	err             error
	calls           []string
}

// MockOption configures a MockAdapter.
type MockOption func(*MockAdapter)

// WithResponse maps an exact prompt to a canned response.
func WithResponse(prompt, response string) MockOption {
	return func(m *MockAdapter) {
		m.responses[prompt] = response
	}
}

// WithSubstringResponse maps any prompt containing the marker to a response.
func WithSubstringResponse(marker, response string) MockOption {
	return func(m *MockAdapter) {
		m.substrings[marker] = response
	}
}

// WithDefaultResponse overrides the fallback response.
func WithDefaultResponse(response string) MockOption {
	return func(m *MockAdapter) {
		m.defaultResponse = response
	}
}

// WithError makes every Generate call fail with err.
func WithError(err error) MockOption {
	return func(m *MockAdapter) {
		m.err = err
	}
}

// NewMockAdapter creates a mock adapter.
func NewMockAdapter(opts ...MockOption) *MockAdapter {
	m := &MockAdapter{
		responses:       make(map[string]string),
		substrings:      make(map[string]string),
		defaultResponse: "mock response:",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the adapter identifier.
func (m *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (m *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Prompts returns every prompt Generate has seen, in call order.
func (m *MockAdapter) Prompts() []string {
	return m.calls
}

// Generate returns a deterministic artifact for the prompt.
func (m *MockAdapter) Generate(_ context.Context, model string, prompt string) (*artifact.Artifact, error) {
	m.calls = append(m.calls, prompt)
	if m.err != nil {
		return nil, m.err
	}
	if model == "" {
		model = "mock-1"
	}
	if response, ok := m.responses[prompt]; ok {
		return artifact.New(response, m.Name(), model, prompt), nil
	}
	for marker, response := range m.substrings {
		if strings.Contains(prompt, marker) {
			return artifact.New(response, m.Name(), model, prompt), nil
		}
	}
	content := fmt.Sprintf("%s\n%s", m.defaultResponse, prompt)
	return artifact.New(content, m.Name(), model, prompt), nil
}
