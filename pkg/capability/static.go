package capability

import (
	"context"
	"time"
)

// Static is a capability backed by canned results, used for offline runs
// and tests. Results can be keyed by input; unknown inputs either fall back
// to the default results or fail, depending on configuration.
type Static struct {
	name     string
	byInput  map[string][]Result
	fallback []Result
	err      error
	calls    []string
}

// StaticOption configures a Static capability.
type StaticOption func(*Static)

// StaticFor maps an input to canned results.
func StaticFor(input string, results ...Result) StaticOption {
	return func(s *Static) {
		s.byInput[input] = results
	}
}

// StaticFallback sets results returned for unmapped inputs.
func StaticFallback(results ...Result) StaticOption {
	return func(s *Static) {
		s.fallback = results
	}
}

// StaticError makes every Invoke fail with err.
func StaticError(err error) StaticOption {
	return func(s *Static) {
		s.err = err
	}
}

// NewStatic creates a static capability with the given name.
func NewStatic(name string, opts ...StaticOption) *Static {
	s := &Static{
		name:    name,
		byInput: make(map[string][]Result),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the capability identifier.
func (s *Static) Name() string {
	return s.name
}

// Available always returns true.
func (s *Static) Available() bool {
	return true
}

// Inputs returns every input Invoke has seen, in call order.
func (s *Static) Inputs() []string {
	return s.calls
}

// Invoke returns the canned results for the input.
func (s *Static) Invoke(_ context.Context, input string) ([]Result, error) {
	s.calls = append(s.calls, input)
	if s.err != nil {
		return nil, s.err
	}
	if results, ok := s.byInput[input]; ok {
		return results, nil
	}
	if s.fallback != nil {
		return s.fallback, nil
	}
	return []Result{{
		Content:   "static result for " + input,
		Reference: input,
		Timestamp: time.Unix(0, 0).UTC(),
	}}, nil
}
