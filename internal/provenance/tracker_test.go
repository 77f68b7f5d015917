package provenance

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sells-group/tokens-cli/internal/token"
)

func TestWeightedConfidence_NoisyOR(t *testing.T) {
	tr := NewTracker()
	tr.AddProvenance("t1", token.ProvenanceRecord{SourceID: "img-a", Confidence: 0.9})
	tr.AddProvenance("t1", token.ProvenanceRecord{SourceID: "img-b", Confidence: 0.8})

	// 1 − (1−0.9)(1−0.8) = 0.98
	got := tr.WeightedConfidence("t1")
	if diff := got - 0.98; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected 0.98, got %v", got)
	}
}

func TestWeightedConfidence_SingleSourceIsIdentity(t *testing.T) {
	tr := NewTracker()
	tr.AddProvenance("t1", token.ProvenanceRecord{SourceID: "img-a", Confidence: 0.7})

	if got := tr.WeightedConfidence("t1"); got != 0.7 {
		t.Errorf("single source at 0.7 should combine to exactly 0.7, got %v", got)
	}
}

func TestWeightedConfidence_UntrackedTokenIsZero(t *testing.T) {
	tr := NewTracker()
	if got := tr.WeightedConfidence("never-seen"); got != 0.0 {
		t.Errorf("untracked token should combine to 0.0, got %v", got)
	}
}

func TestWeightedConfidence_MoreSourcesOnlyRaise(t *testing.T) {
	tr := NewTracker()
	tr.AddProvenance("t1", token.ProvenanceRecord{SourceID: "a", Confidence: 0.5})
	one := tr.WeightedConfidence("t1")

	tr.AddProvenance("t1", token.ProvenanceRecord{SourceID: "b", Confidence: 0.5})
	two := tr.WeightedConfidence("t1")

	if two <= one {
		t.Errorf("corroboration must raise confidence: %v -> %v", one, two)
	}
	if two > 1.0 {
		t.Errorf("combined confidence exceeded 1.0: %v", two)
	}
}

func TestMergeProvenance_CopiesWithoutDeleting(t *testing.T) {
	tr := NewTracker()
	tr.AddProvenance("into", token.ProvenanceRecord{SourceID: "img-a", Confidence: 0.9})
	tr.AddProvenance("from", token.ProvenanceRecord{SourceID: "img-b", Confidence: 0.8})

	tr.MergeProvenance("into", "from")

	intoSources := tr.SourceImages("into")
	if len(intoSources) != 2 {
		t.Errorf("expected 2 sources on into, got %v", intoSources)
	}
	fromSources := tr.SourceImages("from")
	if len(fromSources) != 1 {
		t.Errorf("from entry must survive the merge, got %v", fromSources)
	}
}

func TestSourceImages_Unique(t *testing.T) {
	tr := NewTracker()
	tr.AddProvenance("t1", token.ProvenanceRecord{SourceID: "img-a", Confidence: 0.9})
	tr.AddProvenance("t1", token.ProvenanceRecord{SourceID: "img-a", Confidence: 0.7})
	tr.AddProvenance("t1", token.ProvenanceRecord{SourceID: "img-b", Confidence: 0.8})

	sources := tr.SourceImages("t1")
	if len(sources) != 2 {
		t.Errorf("expected 2 unique sources, got %v", sources)
	}
}

func TestApplyToToken_EmbedsSummaryPreservingMetadata(t *testing.T) {
	tr := NewTracker()
	tr.AddProvenance("t1", token.ProvenanceRecord{SourceID: "img-a", Confidence: 0.9})

	orig := token.New(token.DomainColor, "primary", "#336699", 0.9, map[string]any{"swatch": "hero"})
	applied := tr.ApplyToToken("t1", orig)

	if _, ok := orig.Metadata[MetadataKey]; ok {
		t.Error("ApplyToToken mutated the input token")
	}
	if applied.Metadata["swatch"] != "hero" {
		t.Error("pre-existing metadata key was not preserved")
	}
	summary, ok := applied.Metadata[MetadataKey].(Summary)
	if !ok {
		t.Fatalf("expected Summary under %q, got %T", MetadataKey, applied.Metadata[MetadataKey])
	}
	if len(summary.Sources) != 1 || summary.Sources[0] != "img-a" {
		t.Errorf("unexpected summary sources: %v", summary.Sources)
	}
	if summary.WeightedConfidence != 0.9 {
		t.Errorf("unexpected summary confidence: %v", summary.WeightedConfidence)
	}
}

func TestClearProvenance(t *testing.T) {
	tr := NewTracker()
	tr.AddProvenance("t1", token.ProvenanceRecord{SourceID: "img-a", Confidence: 0.9})
	tr.ClearProvenance("t1")

	if got := tr.WeightedConfidence("t1"); got != 0.0 {
		t.Errorf("cleared token should combine to 0.0, got %v", got)
	}
	if tr.Len() != 0 {
		t.Errorf("expected empty ledger, got %d entries", tr.Len())
	}
}

func TestAddProvenance_ClampsAndStamps(t *testing.T) {
	tr := NewTracker()
	tr.AddProvenance("t1", token.ProvenanceRecord{SourceID: "img-a", Confidence: 1.7})

	if got := tr.WeightedConfidence("t1"); got != 1.0 {
		t.Errorf("confidence should clamp to 1.0, got %v", got)
	}
}

func TestAddProvenance_ConcurrentWriters(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.AddProvenance("t1", token.ProvenanceRecord{
				SourceID:   fmt.Sprintf("img-%d", i),
				Confidence: 0.5,
			})
		}(i)
	}
	wg.Wait()

	if got := len(tr.SourceImages("t1")); got != 50 {
		t.Errorf("expected 50 sources after concurrent writes, got %d", got)
	}
}
