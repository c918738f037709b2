package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tickerflow/tickerflow/pkg/adapter"
	"github.com/tickerflow/tickerflow/pkg/artifact"
	"github.com/tickerflow/tickerflow/pkg/capability"
	"github.com/tickerflow/tickerflow/pkg/evidence"
)

// State tracks a run through its lifecycle.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// StageError identifies the stage whose failure aborted a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ContractFunc checks a stage output against its declared contract.
type ContractFunc func(content string) error

// CallRecord captures one capability call made by a stage.
type CallRecord struct {
	Capability string
	Input      string
	Results    int
	Retries    int
	Duration   time.Duration
	Err        error
}

// StageResult captures execution results for a stage.
type StageResult struct {
	Name     string
	Artifact *artifact.Artifact
	Calls    []CallRecord
	Duration time.Duration
}

// RunResult captures one pipeline run. On failure it still carries the
// results of the stages that completed, but no final output.
type RunResult struct {
	RunID       string
	State       State
	FailedStage string
	Context     *Context
	Stages      map[string]*StageResult
	Final       *artifact.Artifact
	EvidenceDir string
}

// Runner executes pipelines against a fixed set of adapters, capabilities,
// and output contracts. A Runner is safe for concurrent runs: all per-run
// state lives in the RunResult and its Context.
type Runner struct {
	adapters  map[string]adapter.Adapter
	caps      *capability.Registry
	contracts map[string]ContractFunc
	retry     capability.RetryPolicy
	logger    *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRetryPolicy overrides the capability retry policy.
func WithRetryPolicy(policy capability.RetryPolicy) RunnerOption {
	return func(r *Runner) {
		r.retry = policy
	}
}

// WithContracts registers output contract checks by name.
func WithContracts(contracts map[string]ContractFunc) RunnerOption {
	return func(r *Runner) {
		for name, fn := range contracts {
			r.contracts[name] = fn
		}
	}
}

// NewRunner creates a pipeline runner.
func NewRunner(adapters map[string]adapter.Adapter, caps *capability.Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		adapters:  adapters,
		caps:      caps,
		contracts: make(map[string]ContractFunc),
		retry:     capability.DefaultRetryPolicy(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOptions configures one pipeline run.
type RunOptions struct {
	Request      string // the request parameter, e.g. a ticker symbol
	EvidenceDir  string // empty disables the evidence trail
	PipelinePath string // manifest path recorded in evidence, if any
}

// Run executes the pipeline's stages in declared order, passing the full
// accumulated Context to each. It terminates successfully only if every
// stage succeeds; on failure it returns the partial RunResult alongside a
// *StageError naming the failed stage. No stage after the failure point
// executes, and no final output is produced.
func (r *Runner) Run(ctx context.Context, p *Pipeline, opts RunOptions) (*RunResult, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := p.ResolveBindings(r.caps); err != nil {
		return nil, err
	}
	if err := r.resolveContracts(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.Request) == "" {
		return nil, capability.InvalidInput("empty request")
	}

	result := &RunResult{
		RunID:   uuid.NewString(),
		State:   StatePending,
		Context: NewContext(),
		Stages:  make(map[string]*StageResult),
	}

	var writer *evidence.Writer
	if opts.EvidenceDir != "" {
		w, err := evidence.NewWriter(opts.EvidenceDir, result.RunID)
		if err != nil {
			return nil, err
		}
		writer = w
		result.EvidenceDir = w.RunDir()
		record := evidence.RunRecord{
			ID:           result.RunID,
			Timestamp:    time.Now().UTC(),
			Pipeline:     p.Name,
			PipelineFile: opts.PipelinePath,
			Request:      opts.Request,
			RequestHash:  hashString(opts.Request),
			State:        string(StateRunning),
		}
		if err := writer.WriteRun(record); err != nil {
			return nil, err
		}
	}

	logger := r.logger.With(
		zap.String("run_id", result.RunID),
		zap.String("pipeline", p.Name),
		zap.String("request", opts.Request),
	)
	logger.Info("run started", zap.Int("stages", len(p.Stages)))

	for _, stage := range p.Stages {
		// Cancellation is honored at stage boundaries only; capability
		// calls in flight are atomic from the runner's perspective.
		if err := ctx.Err(); err != nil {
			return r.fail(result, writer, p, opts, stage.Name, err, logger)
		}

		result.State = StateRunning
		stageResult, stageRecord, err := r.runStage(ctx, p, stage, opts.Request, result.Context, logger)
		if writer != nil && stageRecord != nil {
			stageRecord.Name = stage.Name
			if writeErr := writer.WriteStage(*stageRecord); writeErr != nil {
				return nil, writeErr
			}
		}
		if err != nil {
			return r.fail(result, writer, p, opts, stage.Name, err, logger)
		}

		result.Stages[stage.Name] = stageResult
		result.Final = stageResult.Artifact
		if err := result.Context.Add(stage.Name, stageResult.Artifact.Content); err != nil {
			return r.fail(result, writer, p, opts, stage.Name, err, logger)
		}
	}

	result.State = StateCompleted
	logger.Info("run completed", zap.Int("stages", result.Context.Len()))

	if writer != nil {
		if err := writer.WriteFinal(result.Final.Content); err != nil {
			return nil, err
		}
		record := evidence.RunRecord{
			ID:           result.RunID,
			Timestamp:    time.Now().UTC(),
			Pipeline:     p.Name,
			PipelineFile: opts.PipelinePath,
			Request:      opts.Request,
			RequestHash:  hashString(opts.Request),
			State:        string(StateCompleted),
		}
		if err := writer.WriteRun(record); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *Runner) fail(result *RunResult, writer *evidence.Writer, p *Pipeline, opts RunOptions, stage string, err error, logger *zap.Logger) (*RunResult, error) {
	result.State = StateFailed
	result.FailedStage = stage
	result.Final = nil
	stageErr := &StageError{Stage: stage, Err: err}
	logger.Error("run failed",
		zap.String("stage", stage),
		zap.String("kind", string(capability.KindOf(err))),
		zap.Error(err),
	)
	if writer != nil {
		record := evidence.RunRecord{
			ID:           result.RunID,
			Timestamp:    time.Now().UTC(),
			Pipeline:     p.Name,
			PipelineFile: opts.PipelinePath,
			Request:      opts.Request,
			RequestHash:  hashString(opts.Request),
			State:        string(StateFailed),
			FailedStage:  stage,
			Error:        stageErr.Error(),
		}
		if writeErr := writer.WriteRun(record); writeErr != nil {
			return nil, writeErr
		}
	}
	return result, stageErr
}

func (r *Runner) runStage(
	ctx context.Context,
	p *Pipeline,
	stage *Stage,
	request string,
	runCtx *Context,
	logger *zap.Logger,
) (*StageResult, *evidence.StageRecord, error) {
	start := time.Now()
	stageLogger := logger.With(zap.String("stage", stage.Name), zap.String("role", stage.Role))
	stageLogger.Info("stage started", zap.Strings("capabilities", stage.Capabilities))

	stageRecord := &evidence.StageRecord{Role: stage.Role}

	gathered := make(map[string]string, len(stage.Capabilities))
	var calls []CallRecord
	for _, capName := range stage.Capabilities {
		capImpl, _ := r.caps.Get(capName) // presence checked by ResolveBindings
		input, err := renderQuery(stage.Queries[capName], request)
		if err != nil {
			return nil, stageRecord, err
		}

		callStart := time.Now()
		results, retries, err := r.retry.Invoke(ctx, capImpl, input)
		call := CallRecord{
			Capability: capName,
			Input:      input,
			Results:    len(results),
			Retries:    retries,
			Duration:   time.Since(callStart),
			Err:        err,
		}
		calls = append(calls, call)
		stageRecord.Calls = append(stageRecord.Calls, callRecordToEvidence(call))

		if err != nil {
			stageLogger.Warn("capability call failed",
				zap.String("capability", capName),
				zap.Int("retries", retries),
				zap.Error(err),
			)
			if capability.IsKind(err, capability.KindInvalidInput) {
				return nil, stageRecord, err
			}
			return nil, stageRecord, capability.Unavailable(capName, err)
		}
		gathered[capName] = formatResults(results)
	}

	prompt, err := renderPrompt(stage, request, gathered, runCtx)
	if err != nil {
		return nil, stageRecord, fmt.Errorf("render prompt for stage %s: %w", stage.Name, err)
	}
	stageRecord.PromptHash = hashString(prompt)

	art, retries, err := r.generate(ctx, p, stage, prompt)
	stageRecord.ModelRetries = retries
	if err != nil {
		return nil, stageRecord, err
	}
	art = art.ForStage(stage.Name)
	stageRecord.Adapter = art.Adapter
	stageRecord.Model = art.Model
	stageRecord.Output = art.Content
	stageRecord.OutputHash = art.Hash

	stageRecord.Contract = stage.OutputContract
	if stage.OutputContract != "" {
		check := r.contracts[stage.OutputContract] // presence checked upfront
		if err := check(art.Content); err != nil {
			stageRecord.ContractViolated = true
			return nil, stageRecord, capability.ContractViolation(
				"stage %s output does not satisfy contract %q: %v", stage.Name, stage.OutputContract, err)
		}
	}
	stageRecord.DurationMillis = time.Since(start).Milliseconds()

	stageLogger.Info("stage completed",
		zap.Duration("duration", time.Since(start)),
		zap.String("adapter", art.Adapter),
		zap.String("model", art.Model),
	)

	return &StageResult{
		Name:     stage.Name,
		Artifact: art,
		Calls:    calls,
		Duration: time.Since(start),
	}, stageRecord, nil
}

// generate performs the LLM call with the same retry discipline as
// capability calls. The language model is itself an external capability;
// its failure surfaces as CapabilityUnavailable.
func (r *Runner) generate(ctx context.Context, p *Pipeline, stage *Stage, prompt string) (*artifact.Artifact, int, error) {
	adapterName := stage.Adapter
	if adapterName == "" {
		adapterName = p.DefaultAdapter
	}
	if adapterName == "" && len(r.adapters) == 1 {
		for name := range r.adapters {
			adapterName = name
		}
	}
	adapterImpl, ok := r.adapters[adapterName]
	if !ok {
		return nil, 0, fmt.Errorf("adapter %q not found", adapterName)
	}

	model := stage.Model
	if model == "" {
		model = p.DefaultModel
	}
	if model == "" {
		if models := adapterImpl.Models(); len(models) > 0 {
			model = models[0]
		}
	}
	if model == "" {
		return nil, 0, fmt.Errorf("model not specified for stage %s", stage.Name)
	}

	var art *artifact.Artifact
	retries, err := r.retry.Do(ctx, adapter.IsTransient, func() error {
		var genErr error
		art, genErr = adapterImpl.Generate(ctx, model, prompt)
		return genErr
	})
	if err != nil {
		return nil, retries, capability.Unavailable("language_model", err)
	}
	return art, retries, nil
}

func (r *Runner) resolveContracts(p *Pipeline) error {
	for _, stage := range p.Stages {
		if stage.OutputContract == "" {
			continue
		}
		if _, ok := r.contracts[stage.OutputContract]; !ok {
			return fmt.Errorf("stage %s declares unknown output contract %q", stage.Name, stage.OutputContract)
		}
	}
	return nil
}

func formatResults(results []capability.Result) string {
	var sb strings.Builder
	for i, res := range results {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		sb.WriteString(res.Content)
		if res.Reference != "" {
			sb.WriteString("\n(source: ")
			sb.WriteString(res.Reference)
			sb.WriteString(")")
		}
	}
	return sb.String()
}

func callRecordToEvidence(call CallRecord) evidence.CallRecord {
	record := evidence.CallRecord{
		Capability:     call.Capability,
		Input:          call.Input,
		Results:        call.Results,
		Retries:        call.Retries,
		DurationMillis: call.Duration.Milliseconds(),
	}
	if call.Err != nil {
		record.Error = call.Err.Error()
	}
	return record
}

func hashString(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])
}
