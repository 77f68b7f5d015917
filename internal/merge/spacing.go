package merge

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tokens-cli/internal/token"
)

// DefaultSpacingThreshold is the relative difference under which two
// spacing values read as the same step of a scale: 10%.
const DefaultSpacingThreshold = 0.10

// SpacingStrategy merges spacing values whose difference relative to the
// smaller value is within the threshold, inclusive. The comparison is
// scale-relative, not absolute-pixel: 16 vs 17 merges at 10% (6.25% apart)
// while 160 vs 176 does too, even though the absolute gap is 16px.
type SpacingStrategy struct {
	threshold float64
}

// NewSpacingStrategy builds a spacing strategy; non-positive thresholds
// fall back to DefaultSpacingThreshold.
func NewSpacingStrategy(percentage float64) *SpacingStrategy {
	if percentage <= 0 {
		percentage = DefaultSpacingThreshold
	}
	return &SpacingStrategy{threshold: percentage}
}

func (s *SpacingStrategy) Domain() token.Domain { return token.DomainSpacing }

func (s *SpacingStrategy) Parse(t token.Token) (any, error) {
	v, ok := numericValue(t.Value)
	if !ok {
		return nil, eris.Errorf("spacing value %v is not numeric", t.Value)
	}
	return v, nil
}

func (s *SpacingStrategy) Similar(a, b any) bool {
	va, vb := a.(float64), b.(float64)
	if va == vb {
		return true
	}
	lo := math.Min(va, vb)
	if lo <= 0 {
		// Relative comparison is undefined at or below zero; only exact
		// matches merge.
		return false
	}
	return math.Abs(va-vb)/lo <= s.threshold
}

// Less orders spacing tokens by ascending numeric value.
func (s *SpacingStrategy) Less(a, b any) bool {
	return a.(float64) < b.(float64)
}
