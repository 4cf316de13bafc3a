package load

import "testing"

func TestRunParsesEnvelopeIterationsTimes(t *testing.T) {
	w := Workload{
		Name:       "get_by_id",
		Envelope:   []byte(`[1, [16, [[15, [[14, ["test"]], "authors"]], "author-1"]]]`),
		TermCount:  6,
		MaxDepth:   4,
		Iterations: 50,
	}

	result, err := Run(w)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Iterations != 50 {
		t.Fatalf("Iterations = %d, want 50", result.Iterations)
	}
	if result.TermsParsedPerSec <= 0 {
		t.Fatalf("TermsParsedPerSec = %f, want > 0", result.TermsParsedPerSec)
	}
}

func TestRunRejectsMalformedEnvelope(t *testing.T) {
	w := Workload{Name: "broken", Envelope: []byte(`not json`), Iterations: 1}
	if _, err := Run(w); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestRunRejectsEnvelopeWithoutRoot(t *testing.T) {
	w := Workload{Name: "no-root", Envelope: []byte(`[4]`), Iterations: 1}
	if _, err := Run(w); err == nil {
		t.Fatal("expected an error for an envelope with no root term")
	}
}
