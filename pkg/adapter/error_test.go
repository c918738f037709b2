package adapter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"rate limited", &Error{Adapter: "deepseek", Status: 429}, true},
		{"server error", &Error{Adapter: "deepseek", Status: 502}, true},
		{"auth error", &Error{Adapter: "deepseek", Status: 401}, false},
		{"temporary flag", &Error{Adapter: "deepseek", Temporary: true}, true},
		{"wrapped", fmt.Errorf("call failed: %w", &Error{Status: 500}), true},
		{"plain", errors.New("mystery"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Adapter: "openai", Err: errors.New("no choices returned")}
	assert.Equal(t, "openai: no choices returned", err.Error())

	bare := &Error{Adapter: "openai", Status: 500}
	assert.Contains(t, bare.Error(), "status=500")
}
