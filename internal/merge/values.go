package merge

import (
	"strconv"
	"strings"
)

// numericValue coerces the loosely typed values extractors emit (JSON
// numbers arrive as float64, classical extractors emit ints, some sources
// emit "16px" strings) into a float64.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(strings.ToLower(n))
		for _, suffix := range []string{"px", "pt", "rem", "em"} {
			if strings.HasSuffix(s, suffix) {
				s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
				break
			}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// stringValue returns v as a trimmed string when it is one.
func stringValue(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// metaLookup reads a key from a token value map or metadata map, value map
// taking precedence.
func metaLookup(valueMap, meta map[string]any, key string) (any, bool) {
	if valueMap != nil {
		if v, ok := valueMap[key]; ok {
			return v, true
		}
	}
	if meta != nil {
		if v, ok := meta[key]; ok {
			return v, true
		}
	}
	return nil, false
}
