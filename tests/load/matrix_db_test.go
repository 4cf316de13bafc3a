package load

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpenMatrixDBCreatesSchema(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenMatrixDB(MatrixDBPath(dir))
	if err != nil {
		t.Fatalf("OpenMatrixDB: %v", err)
	}
	defer db.Close()

	runID, err := InsertRun(db, dir)
	if err != nil {
		t.Fatalf("InsertRun: %v", err)
	}
	if runID == 0 {
		t.Fatal("InsertRun returned id 0")
	}

	result := &TermParseResult{
		BenchmarkName:     "table_get",
		TermCount:         4,
		MaxDepth:          4,
		Iterations:        1000,
		Duration:          10 * time.Millisecond,
		TermsParsedPerSec: 100000,
	}
	if err := InsertTermParseResult(db, runID, result); err != nil {
		t.Fatalf("InsertTermParseResult: %v", err)
	}

	if err := FinishRun(db, runID, 1); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	latest, err := QueryLatestRunID(db)
	if err != nil {
		t.Fatalf("QueryLatestRunID: %v", err)
	}
	if latest != runID {
		t.Fatalf("QueryLatestRunID = %d, want %d", latest, runID)
	}
}

func TestMatrixDBPathJoinsResultsDir(t *testing.T) {
	got := MatrixDBPath("/tmp/results")
	want := filepath.Join("/tmp/results", matrixDBFilename)
	if got != want {
		t.Fatalf("MatrixDBPath = %s, want %s", got, want)
	}
}
