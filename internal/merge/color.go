package merge

import (
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tokens-cli/internal/token"
)

// DefaultDeltaEThreshold is the CIEDE2000 just-noticeable-difference bound:
// two colors closer than this read as the same color to most observers.
const DefaultDeltaEThreshold = 2.0

// colorValue is a color normalized into a common space for comparison.
type colorValue struct {
	c     colorful.Color
	alpha float64
	hex   string // lowercase #rrggbb of the opaque part
}

// ColorStrategy merges colors whose perceptual difference (CIE Lab ΔE2000)
// is within the threshold, inclusive.
type ColorStrategy struct {
	threshold float64
}

// NewColorStrategy builds a color strategy; non-positive thresholds fall
// back to DefaultDeltaEThreshold.
func NewColorStrategy(deltaE float64) *ColorStrategy {
	if deltaE <= 0 {
		deltaE = DefaultDeltaEThreshold
	}
	return &ColorStrategy{threshold: deltaE}
}

func (s *ColorStrategy) Domain() token.Domain { return token.DomainColor }

func (s *ColorStrategy) Parse(t token.Token) (any, error) {
	raw, ok := stringValue(t.Value)
	if !ok {
		return nil, eris.Errorf("color value is %T, want string", t.Value)
	}
	c, alpha, err := ParseCSSColor(raw)
	if err != nil {
		return nil, err
	}
	return colorValue{c: c, alpha: alpha, hex: strings.ToLower(c.Hex())}, nil
}

func (s *ColorStrategy) Similar(a, b any) bool {
	ca, cb := a.(colorValue), b.(colorValue)
	return ca.c.DistanceCIEDE2000(cb.c) <= s.threshold
}

// ParseCSSColor normalizes a CSS color notation (hex #rgb, #rgba,
// #rrggbb, #rrggbbaa, rgb()/rgba(), hsl()/hsla()) into a colorful.Color
// plus its alpha channel (1.0 when unspecified).
func ParseCSSColor(raw string) (colorful.Color, float64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(s, "#"):
		return parseHexColor(s)
	case strings.HasPrefix(s, "rgb(") || strings.HasPrefix(s, "rgba("):
		return parseRGBColor(s)
	case strings.HasPrefix(s, "hsl(") || strings.HasPrefix(s, "hsla("):
		return parseHSLColor(s)
	default:
		return colorful.Color{}, 0, eris.Errorf("unrecognized color notation %q", raw)
	}
}

func parseHexColor(s string) (colorful.Color, float64, error) {
	digits := s[1:]
	// Expand short forms (#abc → #aabbcc, #abcd → #aabbccdd).
	if len(digits) == 3 || len(digits) == 4 {
		var b strings.Builder
		for _, r := range digits {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		digits = b.String()
	}
	if len(digits) != 6 && len(digits) != 8 {
		return colorful.Color{}, 0, eris.Errorf("invalid hex color %q", s)
	}

	channel := func(i int) (float64, error) {
		n, err := strconv.ParseUint(digits[i:i+2], 16, 8)
		if err != nil {
			return 0, eris.Wrapf(err, "invalid hex color %q", s)
		}
		return float64(n) / 255.0, nil
	}

	r, err := channel(0)
	if err != nil {
		return colorful.Color{}, 0, err
	}
	g, err := channel(2)
	if err != nil {
		return colorful.Color{}, 0, err
	}
	b, err := channel(4)
	if err != nil {
		return colorful.Color{}, 0, err
	}
	alpha := 1.0
	if len(digits) == 8 {
		a, err := channel(6)
		if err != nil {
			return colorful.Color{}, 0, err
		}
		alpha = a
	}
	return colorful.Color{R: r, G: g, B: b}, alpha, nil
}

func parseRGBColor(s string) (colorful.Color, float64, error) {
	parts, err := functionArgs(s)
	if err != nil {
		return colorful.Color{}, 0, err
	}
	if len(parts) != 3 && len(parts) != 4 {
		return colorful.Color{}, 0, eris.Errorf("rgb() wants 3 or 4 components, got %d", len(parts))
	}

	channel := func(p string) (float64, error) {
		if strings.HasSuffix(p, "%") {
			pct, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
			if err != nil {
				return 0, eris.Wrapf(err, "invalid rgb component %q", p)
			}
			return clamp01(pct / 100.0), nil
		}
		n, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, eris.Wrapf(err, "invalid rgb component %q", p)
		}
		return clamp01(n / 255.0), nil
	}

	r, err := channel(parts[0])
	if err != nil {
		return colorful.Color{}, 0, err
	}
	g, err := channel(parts[1])
	if err != nil {
		return colorful.Color{}, 0, err
	}
	b, err := channel(parts[2])
	if err != nil {
		return colorful.Color{}, 0, err
	}
	alpha := 1.0
	if len(parts) == 4 {
		alpha, err = parseAlpha(parts[3])
		if err != nil {
			return colorful.Color{}, 0, err
		}
	}
	return colorful.Color{R: r, G: g, B: b}, alpha, nil
}

func parseHSLColor(s string) (colorful.Color, float64, error) {
	parts, err := functionArgs(s)
	if err != nil {
		return colorful.Color{}, 0, err
	}
	if len(parts) != 3 && len(parts) != 4 {
		return colorful.Color{}, 0, eris.Errorf("hsl() wants 3 or 4 components, got %d", len(parts))
	}

	h, err := strconv.ParseFloat(strings.TrimSuffix(parts[0], "deg"), 64)
	if err != nil {
		return colorful.Color{}, 0, eris.Wrapf(err, "invalid hue %q", parts[0])
	}
	sat, err := percentage(parts[1])
	if err != nil {
		return colorful.Color{}, 0, err
	}
	lum, err := percentage(parts[2])
	if err != nil {
		return colorful.Color{}, 0, err
	}
	alpha := 1.0
	if len(parts) == 4 {
		alpha, err = parseAlpha(parts[3])
		if err != nil {
			return colorful.Color{}, 0, err
		}
	}
	return colorful.Hsl(h, sat, lum), alpha, nil
}

// functionArgs strips "name(...)" and splits the arguments on commas,
// slashes, or whitespace, whichever the notation used.
func functionArgs(s string) ([]string, error) {
	open := strings.IndexByte(s, '(')
	end := strings.LastIndexByte(s, ')')
	if open < 0 || end < open {
		return nil, eris.Errorf("malformed color function %q", s)
	}
	inner := s[open+1 : end]
	inner = strings.ReplaceAll(inner, ",", " ")
	inner = strings.ReplaceAll(inner, "/", " ")
	parts := strings.Fields(inner)
	if len(parts) == 0 {
		return nil, eris.Errorf("empty color function %q", s)
	}
	return parts, nil
}

func percentage(p string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid percentage %q", p)
	}
	return clamp01(v / 100.0), nil
}

func parseAlpha(p string) (float64, error) {
	if strings.HasSuffix(p, "%") {
		return percentage(p)
	}
	v, err := strconv.ParseFloat(p, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid alpha %q", p)
	}
	return clamp01(v), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
