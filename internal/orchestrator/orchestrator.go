// Package orchestrator fans a single input out to every configured
// extractor, tolerating partial failure, and merges the successes into one
// deduplicated token set. Partial results are the success case, not a
// corner case: no extractor can block the pipeline, and an orchestration
// where every extractor failed is still a well-formed (empty) result.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tokens-cli/internal/merge"
	"github.com/sells-group/tokens-cli/internal/pool"
	"github.com/sells-group/tokens-cli/internal/resilience"
	"github.com/sells-group/tokens-cli/internal/token"
)

// Extractor is the collaborator boundary: anything with a name and an
// extract operation, whether AI-vision-backed, classical-CV-backed, or a
// test double, is interchangeable.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, input []byte) (*token.ExtractionResult, error)
}

// Config controls orchestration concurrency and fault isolation.
type Config struct {
	// MaxConcurrent caps simultaneously in-flight extractor calls.
	// Default: 4.
	MaxConcurrent int

	// CallTimeout bounds each extractor call. Zero means no per-call
	// timeout. A timed-out call is an ordinary failure, not a special
	// case.
	CallTimeout time.Duration

	// CircuitBreaker configures the per-extractor breakers.
	CircuitBreaker resilience.CircuitBreakerConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:  4,
		CircuitBreaker: resilience.DefaultCircuitBreakerConfig(),
	}
}

// Orchestrator coordinates extractor fan-out for one token engine instance.
type Orchestrator struct {
	cfg        Config
	extractors []Extractor
	pool       *pool.Pool
	breakers   *resilience.ExtractorBreakers
	merger     *merge.Set
}

// New creates an orchestrator over the given extractors. The extractor
// list is an explicit argument; there is no global registry to populate.
func New(cfg Config, merger *merge.Set, extractors ...Extractor) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if merger == nil {
		merger = merge.DefaultSet()
	}
	return &Orchestrator{
		cfg:        cfg,
		extractors: extractors,
		pool:       pool.New(cfg.MaxConcurrent),
		breakers:   resilience.NewExtractorBreakers(cfg.CircuitBreaker),
		merger:     merger,
	}
}

// outcome is the typed result of one scheduled extractor call. Failures
// travel as values, never as propagated panics or aborted groups.
type outcome struct {
	result *token.ExtractionResult
	err    error
}

// ExtractAll fans input out to every configured extractor through the pool
// and the per-extractor circuit breakers, waits for all calls to settle,
// and merges the successes. One extractor's failure neither cancels nor
// delays the others. Zero configured extractors yield an empty result.
//
// The only error ExtractAll itself returns is the caller's context being
// done; every collaborator-level condition is absorbed into Failures.
func (o *Orchestrator) ExtractAll(ctx context.Context, input []byte) (*token.OrchestrationResult, error) {
	start := time.Now()
	res := &token.OrchestrationResult{RunID: uuid.NewString()}

	if len(o.extractors) == 0 {
		res.TotalDurationMs = time.Since(start).Milliseconds()
		return res, nil
	}

	outcomes := make([]outcome, len(o.extractors))
	var wg sync.WaitGroup
	for i, ex := range o.extractors {
		wg.Add(1)
		go func(i int, ex Extractor) {
			defer wg.Done()
			runErr := o.pool.Run(ctx, func(ctx context.Context) {
				outcomes[i] = o.callExtractor(ctx, ex, input)
			})
			if runErr != nil {
				// Never got a slot (cancelled or pool closed).
				outcomes[i] = outcome{err: runErr}
			}
		}(i, ex)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Partition in configuration order so results are deterministic
	// regardless of completion order.
	var confidenceSum float64
	for i, ex := range o.extractors {
		oc := outcomes[i]
		if oc.err != nil {
			zap.L().Warn("orchestrator: extractor failed",
				zap.String("extractor", ex.Name()),
				zap.Error(oc.err),
			)
			res.Failures = append(res.Failures, token.ExtractionFailure{
				ExtractorName: ex.Name(),
				ErrorMessage:  oc.err.Error(),
			})
			continue
		}
		res.PerExtractorResults = append(res.PerExtractorResults, *oc.result)
		confidenceSum += oc.result.ConfidenceRange.Max
	}

	if n := len(res.PerExtractorResults); n > 0 {
		res.OverallConfidence = confidenceSum / float64(n)

		groups := make([]merge.Group, 0, n)
		for _, er := range res.PerExtractorResults {
			groups = append(groups, merge.Group{Source: er.ExtractorName, Tokens: er.Tokens})
		}
		for _, m := range o.merger.Merge(groups) {
			t := m.Token
			t.ID = uuid.NewString()
			res.AggregatedTokens = append(res.AggregatedTokens, t)
		}
	}

	res.TotalDurationMs = time.Since(start).Milliseconds()
	return res, nil
}

// ExtractAllSafe never returns an error: any orchestration-level failure
// degrades to an empty result with every extractor listed in Failures.
func (o *Orchestrator) ExtractAllSafe(ctx context.Context, input []byte) *token.OrchestrationResult {
	res, err := o.ExtractAll(ctx, input)
	if err == nil {
		return res
	}

	zap.L().Warn("orchestrator: degrading to empty result", zap.Error(err))
	degraded := &token.OrchestrationResult{RunID: uuid.NewString()}
	for _, ex := range o.extractors {
		degraded.Failures = append(degraded.Failures, token.ExtractionFailure{
			ExtractorName: ex.Name(),
			ErrorMessage:  err.Error(),
		})
	}
	return degraded
}

// callExtractor runs one extractor call through its circuit breaker with
// the per-call timeout applied at the collaborator boundary. A panicking
// collaborator is converted to an ordinary failure: extractor faults are
// contained at the call site.
func (o *Orchestrator) callExtractor(ctx context.Context, ex Extractor, input []byte) (oc outcome) {
	defer func() {
		if r := recover(); r != nil {
			oc = outcome{err: eris.Errorf("extractor panicked: %v", r)}
		}
	}()

	if o.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := resilience.ExecuteVal(ctx, o.breakers.Get(ex.Name()), func(ctx context.Context) (*token.ExtractionResult, error) {
		return ex.Extract(ctx, input)
	})
	if err != nil {
		return outcome{err: err}
	}
	if result == nil {
		return outcome{err: eris.Errorf("extractor %q returned no result", ex.Name())}
	}

	sanitized := *result
	sanitized.ExtractorName = ex.Name()
	if sanitized.DurationMs == 0 {
		sanitized.DurationMs = time.Since(start).Milliseconds()
	}
	if len(sanitized.Tokens) > 0 {
		toks := make([]token.Token, len(sanitized.Tokens))
		for i, t := range sanitized.Tokens {
			t.Confidence = token.ClampConfidence(t.Confidence)
			toks[i] = t
		}
		sanitized.Tokens = toks
		sanitized.ConfidenceRange = token.RangeOf(toks)
	}
	return outcome{result: &sanitized}
}

// BreakerStates snapshots the per-extractor circuit breaker states.
func (o *Orchestrator) BreakerStates() map[string]resilience.CircuitState {
	return o.breakers.States()
}

// PoolCounters reports the worker pool's running/completed counters.
func (o *Orchestrator) PoolCounters() (running, completed int64) {
	return o.pool.Counters()
}

// Close drains the worker pool.
func (o *Orchestrator) Close(ctx context.Context) error {
	return o.pool.Close(ctx)
}
