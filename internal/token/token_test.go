package token

import "testing"

func TestNew_ClampsConfidence(t *testing.T) {
	low := New(DomainColor, "bg", "#ffffff", -0.5, nil)
	if low.Confidence != 0 {
		t.Errorf("expected clamped confidence 0, got %v", low.Confidence)
	}

	high := New(DomainColor, "bg", "#ffffff", 1.7, nil)
	if high.Confidence != 1 {
		t.Errorf("expected clamped confidence 1, got %v", high.Confidence)
	}
}

func TestNew_CopiesMetadata(t *testing.T) {
	meta := map[string]any{"page": 1}
	tok := New(DomainSpacing, "gap-sm", 8.0, 0.9, meta)

	meta["page"] = 2
	if tok.Metadata["page"] != 1 {
		t.Errorf("token metadata aliased caller map: got %v", tok.Metadata["page"])
	}
}

func TestWithMetadata_DoesNotMutateReceiver(t *testing.T) {
	orig := New(DomainColor, "primary", "#336699", 0.8, map[string]any{"swatch": "a"})
	updated := orig.WithMetadata("provenance", "x")

	if _, ok := orig.Metadata["provenance"]; ok {
		t.Error("WithMetadata mutated the original token")
	}
	if updated.Metadata["provenance"] != "x" {
		t.Error("WithMetadata did not set key on the copy")
	}
	if updated.Metadata["swatch"] != "a" {
		t.Error("WithMetadata dropped pre-existing metadata")
	}
}

func TestRangeOf(t *testing.T) {
	if r := RangeOf(nil); r.Min != 0 || r.Max != 0 {
		t.Errorf("empty range should be zero, got %+v", r)
	}

	toks := []Token{
		{Confidence: 0.6},
		{Confidence: 0.9},
		{Confidence: 0.3},
	}
	r := RangeOf(toks)
	if r.Min != 0.3 || r.Max != 0.9 {
		t.Errorf("expected range [0.3, 0.9], got %+v", r)
	}
}
