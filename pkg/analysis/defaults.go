package analysis

import "github.com/tickerflow/tickerflow/pkg/pipeline"

// DefaultPipeline returns the built-in two-stage analysis pipeline: a
// market analyst gathers live data and news, and a trader turns the
// analysis into a Buy/Sell/Hold recommendation.
func DefaultPipeline() *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Name:        "stock-analysis",
		Description: "Sequential market analysis and trading recommendation",
		Stages: []*pipeline.Stage{
			{
				Name: "market_analyst",
				Role: "Financial Market Analyst",
				Goal: "Analyze the stock's current performance using the live quote, " +
					"recent trend, and news. Produce a bullet point summary covering " +
					"today's price action, volume, and notable developments.",
				Capabilities:   []string{"market_data", "web_search"},
				Queries:        map[string]string{"web_search": "{{ .Request }} stock news today"},
				OutputContract: "summary",
			},
			{
				Name: "trader",
				Role: "Strategic Stock Trader",
				Goal: "Based on the market analyst's summary, give a Buy/Sell/Hold " +
					"recommendation. State the verdict on its own line as " +
					"\"Recommendation: <verdict>\" followed by your reasons.",
				OutputContract: "recommendation",
			},
		},
	}
}
