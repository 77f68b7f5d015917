// Package extractor provides the built-in extractors: a frequency-based
// palette extractor that works on raw image bytes, and a static extractor
// for fixtures and dry runs. Anything else (vision models, CSS scrapers)
// plugs into the orchestrator through the same interface without living
// here.
package extractor

import (
	"context"

	"github.com/sells-group/tokens-cli/internal/token"
)

// Static returns a fixed result on every call. Useful as a fixture source
// and for exercising the pipeline without touching a real input.
type Static struct {
	ExtractorName string
	Tokens        []token.Token
	Err           error
}

func (s *Static) Name() string {
	return s.ExtractorName
}

func (s *Static) Extract(_ context.Context, _ []byte) (*token.ExtractionResult, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return &token.ExtractionResult{
		ExtractorName: s.ExtractorName,
		Tokens:        s.Tokens,
	}, nil
}
