package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tickerflow/tickerflow/pkg/adapter"
	"github.com/tickerflow/tickerflow/pkg/analysis"
	"github.com/tickerflow/tickerflow/pkg/capability"
	"github.com/tickerflow/tickerflow/pkg/capability/marketdata"
	"github.com/tickerflow/tickerflow/pkg/capability/websearch"
	"github.com/tickerflow/tickerflow/pkg/config"
	"github.com/tickerflow/tickerflow/pkg/evidence"
	"github.com/tickerflow/tickerflow/pkg/pipeline"
)

var (
	adapterFlag string
	modelFlag   string
	marketFlag  string
	verboseFlag bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tickerflow",
		Short: "Sequential multi-stage stock analysis pipeline",
		Long: `Tickerflow runs an ordered, role-based analysis pipeline for a stock
	ticker: a market analyst stage gathers live quote data and news, and a
	trader stage turns the analysis into a Buy/Sell/Hold recommendation.
	Each run leaves a JSON evidence trail.`,
	}

	rootCmd.PersistentFlags().StringVar(&adapterFlag, "adapter", "", "LLM adapter to use")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "model to use")
	rootCmd.PersistentFlags().StringVar(&marketFlag, "market", "", "market for bare ticker symbols (us, nse, bse, sse, sehk, jpx)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable structured debug logging")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(quoteCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(capabilitiesCmd())
	rootCmd.AddCommand(marketsCmd())
	rootCmd.AddCommand(runsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func analyzeCmd() *cobra.Command {
	var pipelinePath string
	var evidenceDir string
	var mockFlag bool
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "analyze [ticker]",
		Short: "Run the analysis pipeline for a ticker",
		Long: `Runs the stage sequence for one ticker symbol and prints the final
	recommendation. Stages execute strictly in order; if any stage fails the
	run aborts and no partial recommendation is printed.

	Use --pipeline to run a custom manifest instead of the built-in
	analyst/trader pipeline, and --mock for an offline run against canned
	data.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticker := args[0]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := newLogger()
			defer logger.Sync()

			p := analysis.DefaultPipeline()
			if pipelinePath != "" {
				p, err = pipeline.LoadManifest(pipelinePath)
				if err != nil {
					return err
				}
			}

			adapters, err := buildAdapters(cfg, mockFlag)
			if err != nil {
				return err
			}
			registry := buildCapabilities(cfg, mockFlag)

			if evidenceDir == "" {
				evidenceDir = defaultEvidenceDir()
			}

			runner := pipeline.NewRunner(adapters, registry,
				pipeline.WithLogger(logger),
				pipeline.WithRetryPolicy(cfg.Retry),
				pipeline.WithContracts(analysis.Contracts()),
			)

			if mockFlag {
				p.DefaultAdapter = "mock"
				p.DefaultModel = ""
			} else {
				applyOverrides(p, cfg)
			}

			result, err := runner.Run(context.Background(), p, pipeline.RunOptions{
				Request:      ticker,
				EvidenceDir:  evidenceDir,
				PipelinePath: pipelinePath,
			})
			if err != nil {
				return err
			}

			if jsonFlag {
				return printJSON(cmd, map[string]any{
					"run_id":       result.RunID,
					"state":        result.State,
					"output":       result.Final.Content,
					"evidence_dir": result.EvidenceDir,
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Final.Content)
			if verdict, ok := analysis.ExtractVerdict(result.Final.Content); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "\nVerdict: %s\n", verdict)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Evidence: %s\n", result.EvidenceDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipelinePath, "pipeline", "", "path to a pipeline manifest")
	cmd.Flags().StringVar(&evidenceDir, "evidence-dir", "", "directory for the run evidence trail")
	cmd.Flags().BoolVar(&mockFlag, "mock", false, "run offline with canned data and a mock model")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "print the result as JSON")
	return cmd
}

func quoteCmd() *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "quote [ticker]",
		Short: "Fetch the live quote for a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			source := marketdata.NewSource(marketdata.WithMarket(market(cfg)))
			quote, err := source.Lookup(context.Background(), args[0])
			if err != nil {
				return err
			}

			if jsonFlag {
				return printJSON(cmd, quote)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Symbol:\t%s\n", quote.Symbol)
			fmt.Fprintf(w, "Price:\t%.2f %s\n", quote.Price, quote.Currency)
			fmt.Fprintf(w, "Change:\t%+.2f (%+.2f%%)\n", quote.Change, quote.ChangePercent)
			fmt.Fprintf(w, "Volume:\t%d\n", quote.Volume)
			fmt.Fprintf(w, "As of:\t%s\n", quote.Timestamp.Format(time.RFC3339))
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "print the quote as JSON")
	return cmd
}

func searchCmd() *cobra.Command {
	var maxResults int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a raw web search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			source := websearch.NewTavilySource(
				websearch.WithAPIKey(cfg.TavilyAPIKey),
				websearch.WithMaxResults(maxResults),
			)
			results, err := source.Invoke(context.Background(), args[0])
			if err != nil {
				return err
			}

			for i, res := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n   %s\n", i+1, res.Metadata["title"], res.Reference)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxResults, "max-results", 5, "maximum search results")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [pipeline.yaml]",
		Short: "Validate a pipeline manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pipeline.LoadManifest(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pipeline %q is valid (%d stages)\n", p.Name, len(p.Stages))
			return nil
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List configured adapters and their models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			adapters, err := buildAdapters(cfg, false)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(adapters))
			for name := range adapters {
				names = append(names, name)
			}
			sort.Strings(names)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ADAPTER\tMODEL")
			for _, name := range names {
				for _, model := range adapters[name].Models() {
					fmt.Fprintf(w, "%s\t%s\n", name, model)
				}
			}
			return w.Flush()
		},
	}
}

func capabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "List registered data capabilities and their availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			registry := buildCapabilities(cfg, false)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CAPABILITY\tAVAILABLE")
			for _, name := range registry.Names() {
				c, _ := registry.Get(name)
				fmt.Fprintf(w, "%s\t%t\n", name, c.Available())
			}
			return w.Flush()
		},
	}
}

func marketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "markets",
		Short: "List market suffix configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tMARKET\tSUFFIX\tEXAMPLE")
			for _, m := range marketdata.Markets() {
				suffix := m.Suffix
				if suffix == "" {
					suffix = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Key, m.Label, suffix, m.Example)
			}
			return w.Flush()
		},
	}
}

func runsCmd() *cobra.Command {
	var evidenceDir string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List past pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if evidenceDir == "" {
				evidenceDir = defaultEvidenceDir()
			}
			runs, err := evidence.ListRuns(evidenceDir)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tREQUEST\tSTATE\tRUN")
			for _, run := range runs {
				state := run.State
				if run.FailedStage != "" {
					state = fmt.Sprintf("%s (%s)", run.State, run.FailedStage)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					run.Timestamp.Local().Format("2006-01-02 15:04"), run.Request, state, run.ID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&evidenceDir, "evidence-dir", "", "evidence directory to list")
	return cmd
}

// buildAdapters creates all adapters with configured API keys.
func buildAdapters(cfg *config.Config, mock bool) (map[string]adapter.Adapter, error) {
	adapters := make(map[string]adapter.Adapter)

	if mock {
		adapters["mock"] = adapter.NewMockAdapter(
			adapter.WithSubstringResponse("Financial Market Analyst",
				"- Mock summary: price action is flat on average volume.\n- No notable news found in offline mode."),
			adapter.WithSubstringResponse("Strategic Stock Trader",
				"Recommendation: HOLD\nOffline mock run; real market data was not consulted, so no position change is justified."),
		)
		return adapters, nil
	}

	if cfg.HasAdapter("anthropic") {
		a, err := adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, err
		}
		adapters["anthropic"] = a
	}
	if cfg.HasAdapter("openai") {
		a, err := adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, err
		}
		adapters["openai"] = a
	}
	if cfg.HasAdapter("google") {
		a, err := adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
		adapters["google"] = a
	}
	if cfg.HasAdapter("deepseek") {
		a, err := adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey)
		if err != nil {
			return nil, err
		}
		adapters["deepseek"] = a
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters configured: set at least one provider API key")
	}
	return adapters, nil
}

// buildCapabilities registers the external data capabilities.
func buildCapabilities(cfg *config.Config, mock bool) *capability.Registry {
	registry := capability.NewRegistry()

	if mock {
		registry.Register(capability.NewStatic("market_data", capability.StaticFallback(capability.Result{
			Content:   "Symbol: MOCK\nPrice: 100.00 USD\nChange: +0.00 (+0.00%)\nVolume: 1.00M",
			Reference: "MOCK",
			Score:     1.0,
		})))
		registry.Register(capability.NewStatic("web_search", capability.StaticFallback(capability.Result{
			Content:   "Offline mode: no live news available.",
			Reference: "mock://news",
			Score:     1.0,
		})))
		return registry
	}

	registry.Register(marketdata.NewSource(marketdata.WithMarket(market(cfg))))
	registry.Register(websearch.NewTavilySource(websearch.WithAPIKey(cfg.TavilyAPIKey)))
	return registry
}

// applyOverrides pushes CLI adapter/model flags into the pipeline defaults.
func applyOverrides(p *pipeline.Pipeline, cfg *config.Config) {
	if p.DefaultAdapter == "" {
		p.DefaultAdapter = cfg.DefaultAdapter
	}
	if p.DefaultModel == "" {
		p.DefaultModel = cfg.DefaultModel
	}
	if adapterFlag != "" {
		p.DefaultAdapter = adapterFlag
	}
	if modelFlag != "" {
		p.DefaultModel = modelFlag
	}
}

func market(cfg *config.Config) string {
	if marketFlag != "" {
		return marketFlag
	}
	return cfg.DefaultMarket
}

func defaultEvidenceDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tickerflow", "runs")
	}
	return filepath.Join(home, ".tickerflow", "runs")
}

func newLogger() *zap.Logger {
	if verboseFlag {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}
	return zap.NewNop()
}

func printJSON(cmd *cobra.Command, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
