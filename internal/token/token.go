// Package token defines the shared value types produced and consumed by the
// extraction engine. Tokens, extraction results, and orchestration results
// are value objects: they are built once and never mutated, so they can be
// passed between goroutines without synchronization.
package token

import "time"

// Domain identifies the token family an extractor produces.
type Domain string

const (
	DomainColor      Domain = "color"
	DomainSpacing    Domain = "spacing"
	DomainShadow     Domain = "shadow"
	DomainTypography Domain = "typography"
)

// Domains lists every supported domain in canonical output order.
func Domains() []Domain {
	return []Domain{DomainColor, DomainSpacing, DomainShadow, DomainTypography}
}

// Token is one extracted design value. Confidence is always clamped to
// [0, 1] at construction; Metadata is a shallow snapshot owned by the token.
type Token struct {
	ID         string         `json:"id,omitempty" yaml:"id,omitempty"`
	Domain     Domain         `json:"domain" yaml:"domain"`
	Name       string         `json:"name" yaml:"name"`
	Value      any            `json:"value" yaml:"value"`
	Confidence float64        `json:"confidence" yaml:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// New builds a Token with clamped confidence and a defensive copy of meta.
func New(domain Domain, name string, value any, confidence float64, meta map[string]any) Token {
	return Token{
		Domain:     domain,
		Name:       name,
		Value:      value,
		Confidence: ClampConfidence(confidence),
		Metadata:   CopyMetadata(meta),
	}
}

// WithMetadata returns a copy of t with key set in a fresh metadata map.
// The receiver is left untouched.
func (t Token) WithMetadata(key string, value any) Token {
	meta := CopyMetadata(t.Metadata)
	if meta == nil {
		meta = make(map[string]any, 1)
	}
	meta[key] = value
	t.Metadata = meta
	return t
}

// ClampConfidence bounds c to [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// CopyMetadata returns a shallow copy of meta, or nil for empty input.
func CopyMetadata(meta map[string]any) map[string]any {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// ConfidenceRange is the min/max confidence observed across one extractor's
// tokens.
type ConfidenceRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// RangeOf computes the confidence range over tokens. An empty slice yields
// the zero range.
func RangeOf(tokens []Token) ConfidenceRange {
	if len(tokens) == 0 {
		return ConfidenceRange{}
	}
	r := ConfidenceRange{Min: tokens[0].Confidence, Max: tokens[0].Confidence}
	for _, t := range tokens[1:] {
		if t.Confidence < r.Min {
			r.Min = t.Confidence
		}
		if t.Confidence > r.Max {
			r.Max = t.Confidence
		}
	}
	return r
}

// ExtractionResult is the output of a single extractor call.
type ExtractionResult struct {
	Tokens          []Token         `json:"tokens" yaml:"tokens"`
	ExtractorName   string          `json:"extractor_name" yaml:"extractor_name"`
	DurationMs      int64           `json:"duration_ms" yaml:"duration_ms"`
	ConfidenceRange ConfidenceRange `json:"confidence_range" yaml:"confidence_range"`
}

// ExtractionFailure records one extractor that did not produce a result.
type ExtractionFailure struct {
	ExtractorName string `json:"extractor_name" yaml:"extractor_name"`
	ErrorMessage  string `json:"error_message" yaml:"error_message"`
}

// OrchestrationResult is the outcome of fanning one input out to every
// configured extractor. It owns its slices exclusively; callers may read
// them freely but the engine keeps no reference.
type OrchestrationResult struct {
	RunID               string              `json:"run_id" yaml:"run_id"`
	AggregatedTokens    []Token             `json:"aggregated_tokens" yaml:"aggregated_tokens"`
	PerExtractorResults []ExtractionResult  `json:"per_extractor_results" yaml:"per_extractor_results"`
	Failures            []ExtractionFailure `json:"failures" yaml:"failures"`
	TotalDurationMs     int64               `json:"total_duration_ms" yaml:"total_duration_ms"`
	OverallConfidence   float64             `json:"overall_confidence" yaml:"overall_confidence"`
}

// ProvenanceRecord maps one contributing source to a surviving token.
// Records are append-only; they are never mutated after creation.
type ProvenanceRecord struct {
	SourceID   string         `json:"source_id" yaml:"source_id"`
	Confidence float64        `json:"confidence" yaml:"confidence"`
	Timestamp  time.Time      `json:"timestamp" yaml:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}
