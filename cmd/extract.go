package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var extractImage string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract design tokens from a single screenshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("extract"); err != nil {
			return err
		}

		input, err := os.ReadFile(extractImage)
		if err != nil {
			return eris.Wrap(err, "read image")
		}

		o := buildOrchestrator(cfg)
		defer o.Close(ctx)

		result, err := o.ExtractAll(ctx, input)
		if err != nil {
			return eris.Wrap(err, "extraction run")
		}

		zap.L().Info("extraction complete",
			zap.String("run_id", result.RunID),
			zap.Int("tokens", len(result.AggregatedTokens)),
			zap.Int("extractors_succeeded", len(result.PerExtractorResults)),
			zap.Int("extractors_failed", len(result.Failures)),
			zap.Float64("overall_confidence", result.OverallConfidence),
			zap.Int64("duration_ms", result.TotalDurationMs),
		)

		// Print result JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractImage, "image", "", "screenshot file (required)")
	_ = extractCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(extractCmd)
}
