package store

import (
	"strings"
	"testing"
	"time"
)

func TestResultsWriterRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewResultsWriter(dir)
	if err != nil {
		t.Fatalf("NewResultsWriter: %v", err)
	}

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	res := sampleEvalResult("proto/task:1", "schema", ts)

	path, err := w.WriteEvalResult(res)
	if err != nil {
		t.Fatalf("WriteEvalResult: %v", err)
	}
	if strings.Contains(path, "/proto/task:1/") {
		t.Fatalf("task id not sanitized in path: %s", path)
	}

	got, err := ReadEvalResult(path)
	if err != nil {
		t.Fatalf("ReadEvalResult: %v", err)
	}
	if got.PassAtK != res.PassAtK || got.PassPowerK != res.PassPowerK {
		t.Fatalf("metrics changed: %+v", got)
	}
	if got.TotalTrials != res.TotalTrials || got.PassedTrials != res.PassedTrials {
		t.Fatalf("counts changed: %+v", got)
	}
	if len(got.TrialResults) != 2 || got.TrialResults[0].Transcript.Len() != 1 {
		t.Fatalf("trials changed: %+v", got.TrialResults)
	}

	files, err := FindResultFiles(dir)
	if err != nil {
		t.Fatalf("FindResultFiles: %v", err)
	}
	if len(files) != 1 || files[0] != path {
		t.Fatalf("files: %v", files)
	}
}

func TestResultsWriterMatrix(t *testing.T) {
	t.Parallel()

	w, err := NewResultsWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewResultsWriter: %v", err)
	}

	summary := sampleMatrix(time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC))
	path, err := w.WriteMatrixSummary(summary)
	if err != nil {
		t.Fatalf("WriteMatrixSummary: %v", err)
	}

	got, err := ReadMatrixSummary(path)
	if err != nil {
		t.Fatalf("ReadMatrixSummary: %v", err)
	}
	if got.ByTask["t1"]["full"] != 0.8 {
		t.Fatalf("by task changed: %v", got.ByTask)
	}
	if len(got.Improvements) != 1 || got.Improvements[0].AbsoluteImprovement != 0.6 {
		t.Fatalf("improvements changed: %v", got.Improvements)
	}
}

func TestResultsWriterRejectsEmptyDir(t *testing.T) {
	t.Parallel()

	if _, err := NewResultsWriter("  "); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
