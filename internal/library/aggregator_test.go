package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tokens-cli/internal/provenance"
	"github.com/sells-group/tokens-cli/internal/token"
)

func spacing(name string, px float64, conf float64) token.Token {
	return token.New(token.DomainSpacing, name, px, conf, nil)
}

func TestAggregateMultiSourceSpacing(t *testing.T) {
	a := NewAggregator(nil)
	out := a.Aggregate([]Input{
		{SourceID: "home.png", Tokens: []token.Token{spacing("sm", 8, 0.9), spacing("md", 16, 0.9)}},
		{SourceID: "pricing.png", Tokens: []token.Token{spacing("gap", 16, 0.8), spacing("lg", 24, 0.8)}},
		{SourceID: "about.png", Tokens: []token.Token{spacing("pad", 17, 0.7), spacing("xl", 32, 0.7)}},
	})

	// 16, 16 and 17 collapse into one cluster; 8, 24 and 32 stand alone.
	require.Len(t, out, 4)

	vals := make([]float64, len(out))
	for i, tok := range out {
		require.NotEmpty(t, tok.ID)
		assert.Equal(t, token.DomainSpacing, tok.Domain)
		vals[i] = tok.Value.(float64)
	}
	assert.Equal(t, []float64{8, 16, 24, 32}, vals)

	var merged token.Token
	for _, tok := range out {
		if tok.Value.(float64) == 16 {
			merged = tok
		}
	}
	srcs := a.SourcesFor(merged.ID)
	assert.Equal(t, []string{"about.png", "home.png", "pricing.png"}, srcs)

	// Three corroborating sources: 1 - 0.1*0.2*0.3.
	assert.InDelta(t, 0.994, a.Tracker().WeightedConfidence(merged.ID), 1e-9)
}

func TestAggregateSingleSourceDuplicatesRecordOnce(t *testing.T) {
	a := NewAggregator(nil)
	// 16 and 17 fold into one cluster, both contributed by the same image.
	out := a.Aggregate([]Input{
		{SourceID: "home.png", Tokens: []token.Token{spacing("md", 16, 0.8), spacing("pad", 17, 0.6)}},
	})
	require.Len(t, out, 1)

	assert.Equal(t, []string{"home.png"}, a.SourcesFor(out[0].ID))
	// A lone source combines to exactly its best confidence; it never
	// corroborates itself through its own duplicates.
	assert.InDelta(t, 0.8, a.Tracker().WeightedConfidence(out[0].ID), 1e-9)
}

func TestAggregateKeepsBestConfidencePerSource(t *testing.T) {
	a := NewAggregator(nil)
	out := a.Aggregate([]Input{
		{SourceID: "home.png", Tokens: []token.Token{spacing("md", 16, 0.5), spacing("pad", 17, 0.9)}},
		{SourceID: "pricing.png", Tokens: []token.Token{spacing("gap", 16, 0.7)}},
	})
	require.Len(t, out, 1)

	assert.ElementsMatch(t, []string{"home.png", "pricing.png"}, a.SourcesFor(out[0].ID))
	// home.png counts once at 0.9, pricing.png at 0.7: 1 - 0.1*0.3.
	assert.InDelta(t, 0.97, a.Tracker().WeightedConfidence(out[0].ID), 1e-9)
}

func TestAggregateEmbedsProvenanceMetadata(t *testing.T) {
	a := NewAggregator(nil)
	out := a.Aggregate([]Input{
		{SourceID: "one.png", Tokens: []token.Token{spacing("s", 8, 0.75)}},
	})
	require.Len(t, out, 1)

	raw, ok := out[0].Metadata[provenance.MetadataKey]
	require.True(t, ok, "aggregated tokens carry embedded provenance")

	summary, ok := raw.(provenance.Summary)
	require.True(t, ok)
	assert.Equal(t, []string{"one.png"}, summary.Sources)
	assert.InDelta(t, 0.75, summary.WeightedConfidence, 1e-9)
}

func TestAggregateSkipsInputWithoutSourceID(t *testing.T) {
	a := NewAggregator(nil)
	out := a.Aggregate([]Input{
		{SourceID: "", Tokens: []token.Token{spacing("orphan", 8, 0.9)}},
		{SourceID: "kept.png", Tokens: []token.Token{spacing("s", 24, 0.8)}},
	})

	require.Len(t, out, 1)
	assert.Equal(t, 24.0, out[0].Value)
	assert.Equal(t, []string{"kept.png"}, a.SourcesFor(out[0].ID))
}

func TestAggregateEmpty(t *testing.T) {
	a := NewAggregator(nil)
	out := a.Aggregate(nil)
	assert.Empty(t, out)

	st := a.Summarize(out)
	assert.Zero(t, st.TokenCount)
	assert.Zero(t, st.SourceCount)
	assert.Zero(t, st.MeanConfidence)
	assert.Empty(t, st.ByDomain)
}

func TestSummarize(t *testing.T) {
	a := NewAggregator(nil)
	out := a.Aggregate([]Input{
		{SourceID: "a.png", Tokens: []token.Token{
			spacing("s", 8, 0.9),
			token.New(token.DomainColor, "brand", "#ff0000", 0.8, nil),
		}},
		{SourceID: "b.png", Tokens: []token.Token{
			token.New(token.DomainColor, "accent", "#0000ff", 0.6, nil),
		}},
	})
	require.Len(t, out, 3)

	st := a.Summarize(out)
	assert.Equal(t, 3, st.TokenCount)
	assert.Equal(t, 2, st.SourceCount)
	assert.Equal(t, 1, st.ByDomain[string(token.DomainSpacing)])
	assert.Equal(t, 2, st.ByDomain[string(token.DomainColor)])
	assert.InDelta(t, (0.9+0.8+0.6)/3, st.MeanConfidence, 1e-9)
}
