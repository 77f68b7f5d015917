package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/tokens-cli/internal/config"
	"github.com/sells-group/tokens-cli/internal/extractor"
	"github.com/sells-group/tokens-cli/internal/merge"
	"github.com/sells-group/tokens-cli/internal/orchestrator"
	"github.com/sells-group/tokens-cli/internal/resilience"
	"github.com/sells-group/tokens-cli/pkg/vision"
)

// buildExtractors assembles the configured extractors. The palette
// extractor is local and free; the vision extractor only joins when a key
// is configured.
func buildExtractors(cfg *config.Config) []orchestrator.Extractor {
	var exts []orchestrator.Extractor
	if cfg.Palette.Enabled {
		exts = append(exts, &extractor.Palette{MaxColors: cfg.Palette.MaxColors})
	}
	if cfg.Vision.Key != "" {
		exts = append(exts, vision.New(vision.Config{
			APIKey:            cfg.Vision.Key,
			Model:             cfg.Vision.Model,
			MaxTokens:         cfg.Vision.MaxTokens,
			RequestsPerMinute: cfg.Vision.RequestsPerMinute,
		}))
	} else {
		zap.L().Debug("vision extractor disabled, no API key configured")
	}
	return exts
}

// buildMergeSet wires the configured thresholds into one engine per domain.
func buildMergeSet(cfg *config.Config) *merge.Set {
	return merge.NewSet(
		merge.NewEngine(merge.NewColorStrategy(cfg.Merge.ColorDeltaE), cfg.Merge.Weight),
		merge.NewEngine(merge.NewSpacingStrategy(cfg.Merge.SpacingTolerance), cfg.Merge.Weight),
		merge.NewEngine(merge.NewShadowStrategy(cfg.Merge.ShadowDistance, cfg.Merge.ShadowOpacityGate), cfg.Merge.Weight),
		merge.NewEngine(merge.NewTypographyStrategy(cfg.Merge.FontSizeTolerance), cfg.Merge.Weight),
	)
}

// buildOrchestrator builds the fan-out orchestrator from config.
func buildOrchestrator(cfg *config.Config) *orchestrator.Orchestrator {
	ocfg := orchestrator.Config{
		MaxConcurrent: cfg.Orchestrator.MaxConcurrent,
		CallTimeout:   time.Duration(cfg.Orchestrator.CallTimeoutSecs) * time.Second,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.Orchestrator.CircuitBreaker.FailureThreshold,
			RecoveryTimeout:  time.Duration(cfg.Orchestrator.CircuitBreaker.RecoveryTimeoutMs) * time.Millisecond,
		},
	}
	return orchestrator.New(ocfg, buildMergeSet(cfg), buildExtractors(cfg)...)
}
