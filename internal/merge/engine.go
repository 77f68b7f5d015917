// Package merge clusters near-duplicate tokens collected from multiple
// extractors or multiple source images and folds each cluster into a single
// confidence-boosted representative. The clustering rule is pluggable per
// domain: the engine owns ordering, representative selection, and the
// confidence arithmetic; a Strategy owns parsing and the similarity
// predicate.
package merge

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/tokens-cli/internal/token"
)

// DefaultMergeWeight is the fraction of a duplicate's confidence added to
// the representative. Each corroborating source nudges confidence upward
// without letting it run past 1.0.
const DefaultMergeWeight = 0.1

// Strategy supplies the domain-specific half of the merge: how to normalize
// a token's value for comparison, and when two normalized values count as
// duplicates. Thresholds live inside the strategy; construct one per domain
// from config.
type Strategy interface {
	Domain() token.Domain
	// Parse normalizes a token's value into the strategy's comparison
	// form. A non-nil error marks the token malformed; the engine skips
	// it and continues.
	Parse(t token.Token) (any, error)
	// Similar reports whether two parsed values are near-duplicates.
	Similar(a, b any) bool
}

// Orderer is implemented by strategies whose domain defines a natural
// output order (e.g. ascending numeric value for spacing). Domains without
// one emit clusters in descending-confidence order.
type Orderer interface {
	Less(a, b any) bool
}

// Group is one source's token contribution, keyed by the source id: an
// extractor name for single-input orchestration, an image id for library
// aggregation. Group order is the batch's first-seen order and breaks
// confidence ties.
type Group struct {
	Source string
	Tokens []token.Token
}

// Contribution records one token that folded into a cluster.
type Contribution struct {
	Source     string
	Confidence float64
}

// MergedToken is a surviving cluster representative plus its contributors.
type MergedToken struct {
	Token         token.Token
	Contributions []Contribution
}

// Sources returns the unique contributing source ids in first-seen order.
func (m MergedToken) Sources() []string {
	seen := make(map[string]bool, len(m.Contributions))
	out := make([]string, 0, len(m.Contributions))
	for _, c := range m.Contributions {
		if seen[c.Source] {
			continue
		}
		seen[c.Source] = true
		out = append(out, c.Source)
	}
	return out
}

// Engine merges tokens for a single domain.
type Engine struct {
	strategy Strategy
	weight   float64
}

// NewEngine creates a merge engine. A non-positive mergeWeight falls back
// to DefaultMergeWeight.
func NewEngine(strategy Strategy, mergeWeight float64) *Engine {
	if mergeWeight <= 0 {
		mergeWeight = DefaultMergeWeight
	}
	return &Engine{strategy: strategy, weight: mergeWeight}
}

// Domain returns the domain this engine merges.
func (e *Engine) Domain() token.Domain {
	return e.strategy.Domain()
}

type entry struct {
	tok    token.Token
	parsed any
	source string
}

type cluster struct {
	rep           token.Token
	parsed        any
	contributions []Contribution
}

// Merge flattens the groups, sorts by descending confidence (ties keep the
// batch's first-seen order), and greedily clusters each token against the
// already-accepted representatives. Cluster membership does not depend on
// input order for a fixed threshold, but which token becomes the
// representative does: the highest-confidence contributor wins, first-seen
// breaking ties, and its name and metadata carry over to the output.
//
// Malformed values are skipped with a warning; an empty batch merges to an
// empty result.
func (e *Engine) Merge(groups []Group) []MergedToken {
	var entries []entry
	for _, g := range groups {
		for _, t := range g.Tokens {
			parsed, err := e.strategy.Parse(t)
			if err != nil {
				zap.L().Warn("merge: skipping malformed token",
					zap.String("domain", string(e.strategy.Domain())),
					zap.String("name", t.Name),
					zap.Any("value", t.Value),
					zap.String("source", g.Source),
					zap.Error(err),
				)
				continue
			}
			entries = append(entries, entry{tok: t, parsed: parsed, source: g.Source})
		}
	}
	if len(entries) == 0 {
		return nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].tok.Confidence > entries[j].tok.Confidence
	})

	var clusters []*cluster
	for _, en := range entries {
		matched := false
		for _, c := range clusters {
			if e.strategy.Similar(c.parsed, en.parsed) {
				c.rep.Confidence = boost(c.rep.Confidence, en.tok.Confidence, e.weight)
				c.contributions = append(c.contributions, Contribution{
					Source:     en.source,
					Confidence: en.tok.Confidence,
				})
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		rep := en.tok
		rep.Metadata = token.CopyMetadata(en.tok.Metadata)
		clusters = append(clusters, &cluster{
			rep:    rep,
			parsed: en.parsed,
			contributions: []Contribution{{
				Source:     en.source,
				Confidence: en.tok.Confidence,
			}},
		})
	}

	if ord, ok := e.strategy.(Orderer); ok {
		sort.SliceStable(clusters, func(i, j int) bool {
			return ord.Less(clusters[i].parsed, clusters[j].parsed)
		})
	}

	out := make([]MergedToken, len(clusters))
	for i, c := range clusters {
		out[i] = MergedToken{Token: c.rep, Contributions: c.contributions}
	}
	return out
}

// boost is the intra-merge confidence combinator: each corroborating
// duplicate adds a weighted fraction of its own confidence, capped at 1.0.
// This is deliberately not the provenance tracker's noisy-OR formula; the
// two models are kept distinct (merge decides clusters, provenance reports
// cross-batch trust) and must not be reconciled silently.
func boost(existing, incoming, weight float64) float64 {
	v := existing + incoming*weight
	if v > 1 {
		return 1
	}
	return v
}
