// Package provenance keeps the append-only ledger mapping a merged token's
// identity to every source that contributed to it. The ledger is the one
// long-lived, mutable object in the engine: it is guarded by a lock so that
// concurrent orchestration runs in a batch pass can record contributions
// safely. Tokens never hold a live reference into the ledger; readers get
// a derived summary copied into token metadata.
package provenance

import (
	"sync"
	"time"

	"github.com/sells-group/tokens-cli/internal/token"
)

// MetadataKey is the reserved token metadata key the provenance summary is
// embedded under. Pre-existing metadata under other keys is never touched.
const MetadataKey = "provenance"

// Summary is the derived view embedded into a token at read time.
type Summary struct {
	Sources            []string `json:"sources" yaml:"sources"`
	WeightedConfidence float64  `json:"weighted_confidence" yaml:"weighted_confidence"`
}

// Tracker owns the provenance ledger for one batch or session.
type Tracker struct {
	mu     sync.RWMutex
	ledger map[string][]token.ProvenanceRecord

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		ledger:  make(map[string][]token.ProvenanceRecord),
		nowFunc: time.Now,
	}
}

// AddProvenance appends a record to the token's ledger entry. Confidence is
// clamped to [0,1], metadata is snapshotted, and a zero timestamp is filled
// with the current time. Safe for concurrent use.
func (tr *Tracker) AddProvenance(tokenID string, rec token.ProvenanceRecord) {
	rec.Confidence = token.ClampConfidence(rec.Confidence)
	rec.Metadata = token.CopyMetadata(rec.Metadata)
	if rec.Timestamp.IsZero() {
		rec.Timestamp = tr.nowFunc()
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.ledger[tokenID] = append(tr.ledger[tokenID], rec)
}

// MergeProvenance copies the from token's records into the into token's
// ledger entry. The from entry is left intact; callers that retire the
// source token clear it explicitly.
func (tr *Tracker) MergeProvenance(intoTokenID, fromTokenID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.ledger[intoTokenID] = append(tr.ledger[intoTokenID], tr.ledger[fromTokenID]...)
}

// SourceImages returns the unique source ids recorded for the token, in
// first-recorded order. Order is not part of the contract.
func (tr *Tracker) SourceImages(tokenID string) []string {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	records := tr.ledger[tokenID]
	seen := make(map[string]bool, len(records))
	out := make([]string, 0, len(records))
	for _, r := range records {
		if seen[r.SourceID] {
			continue
		}
		seen[r.SourceID] = true
		out = append(out, r.SourceID)
	}
	return out
}

// WeightedConfidence combines all recorded confidences with a noisy-OR
// combinator: 1 − Π(1 − cᵢ), clamped to [0,1]. Additional corroborating
// sources can only raise the result and it never exceeds 1.0. A token with
// no recorded sources combines to 0.0.
//
// This is deliberately a different formula from the merge engine's additive
// nudge: the tracker reports cross-batch trust, the engine decides
// intra-merge clusters. The two are kept distinct on purpose.
func (tr *Tracker) WeightedConfidence(tokenID string) float64 {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	records := tr.ledger[tokenID]
	if len(records) == 0 {
		return 0.0
	}
	miss := 1.0
	for _, r := range records {
		miss *= 1.0 - r.Confidence
	}
	return token.ClampConfidence(1.0 - miss)
}

// ApplyToToken returns a copy of t with the token's provenance summary
// embedded under MetadataKey. Pre-existing metadata keys are preserved; the
// input token is not modified.
func (tr *Tracker) ApplyToToken(tokenID string, t token.Token) token.Token {
	return t.WithMetadata(MetadataKey, Summary{
		Sources:            tr.SourceImages(tokenID),
		WeightedConfidence: tr.WeightedConfidence(tokenID),
	})
}

// ClearProvenance removes the token's ledger entry.
func (tr *Tracker) ClearProvenance(tokenID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.ledger, tokenID)
}

// Len reports how many tokens have ledger entries.
func (tr *Tracker) Len() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.ledger)
}
