package merge

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tokens-cli/internal/token"
)

// Shadow strategy defaults: spatial distance bound over (offsetX, offsetY,
// blur, spread), and the maximum opacity difference two shadows may have
// and still merge.
const (
	DefaultShadowDistanceThreshold = 5.0
	DefaultShadowOpacityGate       = 0.05
)

// shadowValue is a shadow style normalized for comparison.
type shadowValue struct {
	offsetX, offsetY float64
	blur, spread     float64
	color            string // normalized lowercase #rrggbb, or raw lowercase if unparseable
	opacity          float64
}

// ShadowStrategy merges shadow styles only when the colors match exactly
// (case-insensitive), the opacities differ by at most the opacity gate, and
// the Euclidean distance over (offsetX, offsetY, blur, spread) is within
// the distance threshold, inclusive. Two shadows differing only in color,
// or only by opacity beyond the gate, never merge regardless of spatial
// distance.
type ShadowStrategy struct {
	distance    float64
	opacityGate float64
}

// NewShadowStrategy builds a shadow strategy; non-positive parameters fall
// back to the defaults.
func NewShadowStrategy(distanceThreshold, opacityGate float64) *ShadowStrategy {
	if distanceThreshold <= 0 {
		distanceThreshold = DefaultShadowDistanceThreshold
	}
	if opacityGate <= 0 {
		opacityGate = DefaultShadowOpacityGate
	}
	return &ShadowStrategy{distance: distanceThreshold, opacityGate: opacityGate}
}

func (s *ShadowStrategy) Domain() token.Domain { return token.DomainShadow }

// Parse accepts either a structured value map ({"offset_x": 0, "offset_y":
// 4, "blur_radius": 8, "spread_radius": 0, "color": "#000", "opacity":
// 0.25}) or a CSS box-shadow style string ("0px 4px 8px 0px
// rgba(0,0,0,0.25)"). Missing geometry components default to 0; a missing
// color is malformed.
func (s *ShadowStrategy) Parse(t token.Token) (any, error) {
	switch v := t.Value.(type) {
	case map[string]any:
		return parseShadowMap(v, t.Metadata)
	case string:
		return parseShadowCSS(v)
	default:
		return nil, eris.Errorf("shadow value is %T, want map or string", t.Value)
	}
}

func (s *ShadowStrategy) Similar(a, b any) bool {
	sa, sb := a.(shadowValue), b.(shadowValue)
	if sa.color != sb.color {
		return false
	}
	if math.Abs(sa.opacity-sb.opacity) > s.opacityGate {
		return false
	}
	dx := sa.offsetX - sb.offsetX
	dy := sa.offsetY - sb.offsetY
	db := sa.blur - sb.blur
	ds := sa.spread - sb.spread
	return math.Sqrt(dx*dx+dy*dy+db*db+ds*ds) <= s.distance
}

func parseShadowMap(value, meta map[string]any) (shadowValue, error) {
	sv := shadowValue{opacity: 1}

	geom := []struct {
		key string
		dst *float64
	}{
		{"offset_x", &sv.offsetX},
		{"offset_y", &sv.offsetY},
		{"blur_radius", &sv.blur},
		{"spread_radius", &sv.spread},
	}
	for _, g := range geom {
		if raw, ok := metaLookup(value, meta, g.key); ok {
			n, ok := numericValue(raw)
			if !ok {
				return shadowValue{}, eris.Errorf("shadow %s %v is not numeric", g.key, raw)
			}
			*g.dst = n
		}
	}

	raw, ok := metaLookup(value, meta, "color")
	if !ok {
		return shadowValue{}, eris.New("shadow has no color")
	}
	colorStr, ok := stringValue(raw)
	if !ok {
		return shadowValue{}, eris.Errorf("shadow color is %T, want string", raw)
	}
	sv.color, sv.opacity = normalizeShadowColor(colorStr)

	// An explicit opacity overrides the color's alpha channel.
	if raw, ok := metaLookup(value, meta, "opacity"); ok {
		n, ok := numericValue(raw)
		if !ok {
			return shadowValue{}, eris.Errorf("shadow opacity %v is not numeric", raw)
		}
		sv.opacity = clamp01(n)
	}
	return sv, nil
}

// parseShadowCSS parses "offsetX offsetY [blur [spread]] color" with px
// suffixes optional, the CSS box-shadow component order.
func parseShadowCSS(raw string) (shadowValue, error) {
	fields := splitShadowFields(raw)
	if len(fields) < 3 {
		return shadowValue{}, eris.Errorf("shadow %q wants at least offsets and a color", raw)
	}

	colorStr := fields[len(fields)-1]
	lengths := fields[:len(fields)-1]
	if len(lengths) > 4 {
		return shadowValue{}, eris.Errorf("shadow %q has too many length components", raw)
	}

	sv := shadowValue{}
	dst := []*float64{&sv.offsetX, &sv.offsetY, &sv.blur, &sv.spread}
	for i, f := range lengths {
		n, ok := numericValue(f)
		if !ok {
			return shadowValue{}, eris.Errorf("shadow length %q is not numeric", f)
		}
		*dst[i] = n
	}

	sv.color, sv.opacity = normalizeShadowColor(colorStr)
	return sv, nil
}

// splitShadowFields splits on whitespace while keeping function notations
// like rgba(0, 0, 0, 0.25) intact.
func splitShadowFields(raw string) []string {
	var fields []string
	var b strings.Builder
	depth := 0
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r == '(':
			depth++
			b.WriteRune(r)
		case r == ')':
			depth--
			b.WriteRune(r)
		case depth == 0 && (r == ' ' || r == '\t'):
			if b.Len() > 0 {
				fields = append(fields, b.String())
				b.Reset()
			}
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		fields = append(fields, b.String())
	}
	return fields
}

// normalizeShadowColor splits a color notation into its opaque part (as a
// lowercase hex string for exact comparison) and its alpha channel. Colors
// the CSS parser cannot read compare by their lowercased raw text with
// opacity 1.
func normalizeShadowColor(raw string) (string, float64) {
	c, alpha, err := ParseCSSColor(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw)), 1
	}
	return strings.ToLower(c.Hex()), alpha
}
