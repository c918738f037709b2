// Package adapter provides pluggable LLM provider backends for pipeline
// stages. A stage synthesizes its output through exactly one adapter call;
// the adapter is an opaque external collaborator and owns no pipeline state.
package adapter

import (
	"context"

	"github.com/tickerflow/tickerflow/pkg/artifact"
)

// Adapter defines the interface for LLM provider backends.
type Adapter interface {
	// Generate sends a prompt to the model and returns an artifact.
	Generate(ctx context.Context, model string, prompt string) (*artifact.Artifact, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// maxCompletionTokens bounds stage outputs across all providers.
// Analysis summaries and recommendations fit comfortably under this.
const maxCompletionTokens = 4096
