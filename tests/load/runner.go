package load

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kartikbazzad/queryterm/internal/backtrace"
	"github.com/kartikbazzad/queryterm/internal/term"
)

// Workload describes one synthetic query shape to repeatedly parse.
type Workload struct {
	Name       string
	Envelope   []byte // a full [QueryType, RootTerm, GlobalOptArgs?] JSON array
	TermCount  int    // informational: nodes the envelope's root term produces
	MaxDepth   int
	Iterations int
}

// Run parses w.Envelope's root term w.Iterations times and reports
// aggregate throughput. It never touches the network or catalog: it
// exercises internal/term's parser directly, the same layer
// tests/benchmarks in the original harness measured for the storage
// engine's document validator.
func Run(w Workload) (*TermParseResult, error) {
	var raw []interface{}
	if err := json.Unmarshal(w.Envelope, &raw); err != nil {
		return nil, fmt.Errorf("workload %s: %w", w.Name, err)
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("workload %s: envelope has no root term", w.Name)
	}
	rootRaw := raw[1]

	terms := 0
	start := time.Now()
	for i := 0; i < w.Iterations; i++ {
		bt := backtrace.New()
		s := term.New(w.Envelope, bt)
		if _, err := s.AddRoot(rootRaw, backtrace.Empty); err != nil {
			return nil, fmt.Errorf("workload %s: iteration %d: %w", w.Name, i, err)
		}
		terms += s.Len()
	}
	elapsed := time.Since(start)

	throughput := float64(terms) / elapsed.Seconds()

	return &TermParseResult{
		BenchmarkName:     w.Name,
		TermCount:         w.TermCount,
		MaxDepth:          w.MaxDepth,
		Iterations:        w.Iterations,
		Duration:          elapsed,
		TermsParsedPerSec: throughput,
	}, nil
}
