package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/tokens-cli/internal/library"
	"github.com/sells-group/tokens-cli/internal/token"
)

var (
	aggregateFormat string
	aggregateJobs   int
)

// libraryOutput is the aggregate command's serialized result.
type libraryOutput struct {
	Tokens []token.Token `json:"tokens" yaml:"tokens"`
	Stats  library.Stats `json:"stats" yaml:"stats"`
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate <image>...",
	Short: "Build a token library from multiple screenshots",
	Long:  "Runs extraction on each screenshot, merges near-duplicate tokens across all of them, and emits one deduplicated token library with per-token provenance.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("aggregate"); err != nil {
			return err
		}

		o := buildOrchestrator(cfg)
		defer o.Close(ctx)

		// One extraction run per screenshot; images are independent, so
		// they proceed concurrently on top of the orchestrator's own
		// per-image fan-out.
		inputs := make([]library.Input, len(args))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(aggregateJobs)
		for i, path := range args {
			g.Go(func() error {
				data, err := os.ReadFile(path)
				if err != nil {
					return eris.Wrap(err, "read image")
				}
				res := o.ExtractAllSafe(gctx, data)
				if len(res.Failures) > 0 {
					for _, f := range res.Failures {
						zap.L().Warn("extractor failed for image",
							zap.String("image", path),
							zap.String("extractor", f.ExtractorName),
							zap.String("error", f.ErrorMessage),
						)
					}
				}
				inputs[i] = library.Input{
					SourceID: filepath.Base(path),
					Tokens:   res.AggregatedTokens,
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		agg := library.NewAggregator(buildMergeSet(cfg))
		tokens := agg.Aggregate(inputs)
		sort.SliceStable(tokens, func(i, j int) bool {
			return tokens[i].Confidence > tokens[j].Confidence
		})
		stats := agg.Summarize(tokens)

		zap.L().Info("aggregation complete",
			zap.Int("images", len(args)),
			zap.Int("tokens", stats.TokenCount),
			zap.Int("sources", stats.SourceCount),
			zap.Float64("mean_confidence", stats.MeanConfidence),
		)

		out := libraryOutput{Tokens: tokens, Stats: stats}
		switch aggregateFormat {
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			defer enc.Close()
			return enc.Encode(out)
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		default:
			return eris.Errorf("unknown output format %q", aggregateFormat)
		}
	},
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateFormat, "format", "json", "output format: json or yaml")
	aggregateCmd.Flags().IntVar(&aggregateJobs, "jobs", 4, "concurrent image extractions")
	rootCmd.AddCommand(aggregateCmd)
}
