package merge

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tokens-cli/internal/token"
)

// DefaultFontSizeThreshold is the maximum font-size difference two
// typography tokens may have and still merge.
const DefaultFontSizeThreshold = 3.0

// typographyValue is a font spec normalized for comparison.
type typographyValue struct {
	family string // lowercase
	weight int
	size   float64
	role   string // lowercase semantic role, "" when unspecified
}

// TypographyStrategy merges font specs with an identical family
// (case-insensitive) and weight, a font-size difference within the
// threshold (inclusive), and, when both sides specify a semantic role, a
// matching role. A token without a role merges with any role.
type TypographyStrategy struct {
	sizeThreshold float64
}

// NewTypographyStrategy builds a typography strategy; non-positive
// thresholds fall back to DefaultFontSizeThreshold.
func NewTypographyStrategy(sizeThreshold float64) *TypographyStrategy {
	if sizeThreshold <= 0 {
		sizeThreshold = DefaultFontSizeThreshold
	}
	return &TypographyStrategy{sizeThreshold: sizeThreshold}
}

func (s *TypographyStrategy) Domain() token.Domain { return token.DomainTypography }

// Parse reads the font spec from a structured value map or, failing that,
// the token's metadata: "family" (string), "size" (number), optional
// "weight" (number or CSS keyword, default 400) and "role" (string).
func (s *TypographyStrategy) Parse(t token.Token) (any, error) {
	valueMap, _ := t.Value.(map[string]any)
	if valueMap == nil && t.Metadata == nil {
		return nil, eris.Errorf("typography value is %T and token has no metadata", t.Value)
	}

	rawFamily, ok := metaLookup(valueMap, t.Metadata, "family")
	if !ok {
		return nil, eris.New("typography has no font family")
	}
	family, ok := stringValue(rawFamily)
	if !ok || family == "" {
		return nil, eris.Errorf("typography family %v is not a string", rawFamily)
	}

	rawSize, ok := metaLookup(valueMap, t.Metadata, "size")
	if !ok {
		return nil, eris.New("typography has no font size")
	}
	size, ok := numericValue(rawSize)
	if !ok {
		return nil, eris.Errorf("typography size %v is not numeric", rawSize)
	}

	tv := typographyValue{
		family: strings.ToLower(family),
		weight: 400,
		size:   size,
	}

	if raw, ok := metaLookup(valueMap, t.Metadata, "weight"); ok {
		w, err := fontWeight(raw)
		if err != nil {
			return nil, err
		}
		tv.weight = w
	}
	if raw, ok := metaLookup(valueMap, t.Metadata, "role"); ok {
		if role, ok := stringValue(raw); ok {
			tv.role = strings.ToLower(role)
		}
	}
	return tv, nil
}

func (s *TypographyStrategy) Similar(a, b any) bool {
	ta, tb := a.(typographyValue), b.(typographyValue)
	if ta.family != tb.family || ta.weight != tb.weight {
		return false
	}
	if math.Abs(ta.size-tb.size) > s.sizeThreshold {
		return false
	}
	if ta.role != "" && tb.role != "" && ta.role != tb.role {
		return false
	}
	return true
}

// fontWeight normalizes numeric weights and the common CSS keywords.
func fontWeight(v any) (int, error) {
	if n, ok := numericValue(v); ok {
		return int(n), nil
	}
	s, ok := stringValue(v)
	if !ok {
		return 0, eris.Errorf("font weight %v is not numeric or a keyword", v)
	}
	switch strings.ToLower(s) {
	case "thin":
		return 100, nil
	case "light":
		return 300, nil
	case "normal", "regular":
		return 400, nil
	case "medium":
		return 500, nil
	case "semibold", "semi-bold":
		return 600, nil
	case "bold":
		return 700, nil
	case "black", "heavy":
		return 900, nil
	default:
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
		return 0, eris.Errorf("unrecognized font weight %q", s)
	}
}
