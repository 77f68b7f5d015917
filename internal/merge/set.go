package merge

import (
	"go.uber.org/zap"

	"github.com/sells-group/tokens-cli/internal/token"
)

// Set dispatches a mixed-domain batch to the engine registered for each
// token's domain. Tokens in a domain with no registered engine pass
// through as their own single-contribution clusters; the set never drops
// a well-formed token just because nobody configured a merge rule for it.
type Set struct {
	engines map[token.Domain]*Engine
}

// NewSet builds a set from the given engines, last one winning per domain.
func NewSet(engines ...*Engine) *Set {
	m := make(map[token.Domain]*Engine, len(engines))
	for _, e := range engines {
		m[e.Domain()] = e
	}
	return &Set{engines: m}
}

// DefaultSet returns a set with every domain strategy at its default
// threshold and merge weight.
func DefaultSet() *Set {
	return NewSet(
		NewEngine(NewColorStrategy(0), 0),
		NewEngine(NewSpacingStrategy(0), 0),
		NewEngine(NewShadowStrategy(0, 0), 0),
		NewEngine(NewTypographyStrategy(0), 0),
	)
}

// Engine returns the engine for a domain, or nil.
func (s *Set) Engine(d token.Domain) *Engine {
	return s.engines[d]
}

// Merge partitions the groups by token domain, merges each domain with its
// engine, and concatenates the results in canonical domain order. Domains
// that appear in the input but not in token.Domains() are appended after,
// in first-seen order.
func (s *Set) Merge(groups []Group) []MergedToken {
	byDomain := make(map[token.Domain][]Group)
	var domainOrder []token.Domain
	seen := make(map[token.Domain]bool)

	for _, g := range groups {
		split := make(map[token.Domain][]token.Token)
		for _, t := range g.Tokens {
			split[t.Domain] = append(split[t.Domain], t)
			if !seen[t.Domain] {
				seen[t.Domain] = true
				domainOrder = append(domainOrder, t.Domain)
			}
		}
		for d, toks := range split {
			byDomain[d] = append(byDomain[d], Group{Source: g.Source, Tokens: toks})
		}
	}

	var ordered []token.Domain
	for _, d := range token.Domains() {
		if seen[d] {
			ordered = append(ordered, d)
			seen[d] = false
		}
	}
	for _, d := range domainOrder {
		if seen[d] {
			ordered = append(ordered, d)
		}
	}

	var out []MergedToken
	for _, d := range ordered {
		engine := s.engines[d]
		if engine == nil {
			zap.L().Warn("merge: no engine for domain, passing tokens through",
				zap.String("domain", string(d)),
			)
			for _, g := range byDomain[d] {
				for _, t := range g.Tokens {
					out = append(out, MergedToken{
						Token: t,
						Contributions: []Contribution{{
							Source:     g.Source,
							Confidence: t.Confidence,
						}},
					})
				}
			}
			continue
		}
		out = append(out, engine.Merge(byDomain[d])...)
	}
	return out
}
