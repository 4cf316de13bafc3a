// Command loadtest runs the term-parse throughput workloads and records
// results in a SQLite results database under -out.
package main

import (
	"flag"
	"fmt"
	"os"

	load "github.com/kartikbazzad/queryterm/tests/load"
)

func defaultWorkloads() []load.Workload {
	return []load.Workload{
		{
			Name:       "table_get",
			Envelope:   []byte(`[1, [16, [[15, [[14, ["test"]], "authors"]], "author-1"]]]`),
			TermCount:  6,
			MaxDepth:   4,
			Iterations: 20000,
		},
		{
			Name:       "filter_over_table",
			Envelope:   []byte(`[1, [39, [[15, [[14, ["test"]], "authors"]], [69, [[17, [[10, [1]], "active"]]]]]]]`),
			TermCount:  10,
			MaxDepth:   5,
			Iterations: 10000,
		},
		{
			Name:       "make_obj_literal",
			Envelope:   []byte(`[1, {"name": "a", "age": 30, "tags": [2, [1,2,3]]}]`),
			TermCount:  7,
			MaxDepth:   3,
			Iterations: 15000,
		},
	}
}

func main() {
	outDir := flag.String("out", "./load-results", "output directory for the SQLite results database")
	flag.Parse()

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create output dir: %v\n", err)
		os.Exit(1)
	}

	db, err := load.OpenMatrixDB(load.MatrixDBPath(*outDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open results db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	runID, err := load.InsertRun(db, *outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to insert run: %v\n", err)
		os.Exit(1)
	}

	workloads := defaultWorkloads()
	completed := 0
	for _, w := range workloads {
		result, err := load.Run(w)
		if err != nil {
			fmt.Fprintf(os.Stderr, "workload %s failed: %v\n", w.Name, err)
			continue
		}
		if err := load.InsertTermParseResult(db, runID, result); err != nil {
			fmt.Fprintf(os.Stderr, "failed to record result for %s: %v\n", w.Name, err)
			continue
		}
		fmt.Printf("%-20s %10.0f terms/sec (%d iterations in %s)\n",
			w.Name, result.TermsParsedPerSec, w.Iterations, result.Duration)
		completed++
	}

	if err := load.FinishRun(db, runID, completed); err != nil {
		fmt.Fprintf(os.Stderr, "failed to finish run: %v\n", err)
		os.Exit(1)
	}
}
