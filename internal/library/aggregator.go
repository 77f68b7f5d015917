// Package library assembles per-source token extractions into a single
// design token library with provenance attached to every surviving token.
// It sits one level above the merge engines: merging answers "which tokens
// are the same", the library answers "where did each final token come from
// and how sure are we about it".
package library

import (
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/tokens-cli/internal/merge"
	"github.com/sells-group/tokens-cli/internal/provenance"
	"github.com/sells-group/tokens-cli/internal/token"
)

// Input is one source's contribution to the library, typically one
// screenshot or page.
type Input struct {
	SourceID string
	Tokens   []token.Token
}

// Aggregator merges multi-source extractions and records provenance for
// every contribution that survives merging.
type Aggregator struct {
	merger  *merge.Set
	tracker *provenance.Tracker
}

// NewAggregator builds an aggregator. A nil merger uses the default
// strategy set.
func NewAggregator(merger *merge.Set) *Aggregator {
	if merger == nil {
		merger = merge.DefaultSet()
	}
	return &Aggregator{
		merger:  merger,
		tracker: provenance.NewTracker(),
	}
}

// Tracker exposes the provenance ledger backing this aggregator.
func (a *Aggregator) Tracker() *provenance.Tracker {
	return a.tracker
}

// Aggregate merges the inputs' tokens across sources and returns the
// deduplicated library. Every returned token carries a fresh id, and its
// provenance records one entry per contributing source, embedded in the
// token's metadata as well as held in the tracker's ledger.
func (a *Aggregator) Aggregate(inputs []Input) []token.Token {
	groups := make([]merge.Group, 0, len(inputs))
	for _, in := range inputs {
		if in.SourceID == "" {
			zap.L().Warn("library: skipping input without a source id",
				zap.Int("tokens", len(in.Tokens)))
			continue
		}
		groups = append(groups, merge.Group{Source: in.SourceID, Tokens: in.Tokens})
	}

	merged := a.merger.Merge(groups)
	out := make([]token.Token, 0, len(merged))
	for _, m := range merged {
		t := m.Token
		t.ID = uuid.NewString()
		// One ledger entry per contributing source. A source whose own
		// near-duplicates folded into the cluster keeps its highest
		// confidence; it must not corroborate itself.
		best := make(map[string]float64, len(m.Contributions))
		for _, c := range m.Contributions {
			if cur, ok := best[c.Source]; !ok || c.Confidence > cur {
				best[c.Source] = c.Confidence
			}
		}
		recorded := make(map[string]bool, len(best))
		for _, c := range m.Contributions {
			if recorded[c.Source] {
				continue
			}
			recorded[c.Source] = true
			a.tracker.AddProvenance(t.ID, token.ProvenanceRecord{
				SourceID:   c.Source,
				Confidence: best[c.Source],
			})
		}
		out = append(out, a.tracker.ApplyToToken(t.ID, t))
	}
	return out
}

// Stats summarizes an aggregated library.
type Stats struct {
	TokenCount     int            `json:"token_count"`
	SourceCount    int            `json:"source_count"`
	ByDomain       map[string]int `json:"by_domain"`
	MeanConfidence float64        `json:"mean_confidence"`
}

// Summarize computes library-level statistics over an aggregated token
// set. An empty library yields zero counts, not NaNs.
func (a *Aggregator) Summarize(tokens []token.Token) Stats {
	st := Stats{
		TokenCount: len(tokens),
		ByDomain:   make(map[string]int),
	}
	if len(tokens) == 0 {
		return st
	}

	sources := make(map[string]struct{})
	var sum float64
	for _, t := range tokens {
		st.ByDomain[string(t.Domain)]++
		sum += t.Confidence
		for _, img := range a.tracker.SourceImages(t.ID) {
			sources[img] = struct{}{}
		}
	}
	st.SourceCount = len(sources)
	st.MeanConfidence = sum / float64(len(tokens))
	return st
}

// SourcesFor lists the unique source ids that contributed to a token,
// sorted for stable output.
func (a *Aggregator) SourcesFor(tokenID string) []string {
	imgs := a.tracker.SourceImages(tokenID)
	sort.Strings(imgs)
	return imgs
}
