package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validManifest = `name: custom-analysis
description: two stage analysis
default_adapter: anthropic
stages:
  - name: market_analyst
    role: Financial Market Analyst
    goal: Summarize the stock's performance.
    capabilities: [market_data, web_search]
    queries:
      web_search: "{{ .Request }} earnings news"
    output_contract: summary
  - name: trader
    role: Strategic Stock Trader
    goal: Give a Buy/Sell/Hold recommendation.
    output_contract: recommendation
    model: claude-opus-4-20250514
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadManifest(t *testing.T) {
	p, err := LoadManifest(writeManifest(t, validManifest))
	require.NoError(t, err)

	assert.Equal(t, "custom-analysis", p.Name)
	assert.Equal(t, "anthropic", p.DefaultAdapter)
	require.Len(t, p.Stages, 2)

	analyst := p.Stages[0]
	assert.Equal(t, []string{"market_data", "web_search"}, analyst.Capabilities)
	assert.Equal(t, "{{ .Request }} earnings news", analyst.Queries["web_search"])
	assert.Equal(t, "summary", analyst.OutputContract)

	trader := p.Stages[1]
	assert.Equal(t, "claude-opus-4-20250514", trader.Model)
	assert.Empty(t, trader.Capabilities)
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadManifestRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no name":        "stages:\n  - name: s\n    role: r\n    goal: g\n",
		"no stages":      "name: p\n",
		"duplicate name": "name: p\nstages:\n  - name: s\n    role: r\n    goal: g\n  - name: s\n    role: r\n    goal: g\n",
		"missing role":   "name: p\nstages:\n  - name: s\n    goal: g\n",
		"orphan query":   "name: p\nstages:\n  - name: s\n    role: r\n    goal: g\n    queries:\n      web_search: q\n",
	}

	for label, manifest := range cases {
		t.Run(label, func(t *testing.T) {
			_, err := LoadManifest(writeManifest(t, manifest))
			assert.Error(t, err)
		})
	}
}
