package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stellarlinkco/agent-eval/internal/cohort"
	"github.com/stellarlinkco/agent-eval/internal/config"
	"github.com/stellarlinkco/agent-eval/internal/grader"
	"github.com/stellarlinkco/agent-eval/internal/harness"
	"github.com/stellarlinkco/agent-eval/internal/transcript"
)

func sampleEvalResult(taskID, cohortName string, ts time.Time) *harness.EvalResult {
	return &harness.EvalResult{
		TaskID:    taskID,
		TaskQuery: "Which gene encodes ex:P53?",
		Cohort:    cohortName,
		TrialResults: []harness.TrialResult{
			{
				TrialNumber:    1,
				Passed:         true,
				Answer:         "ex:TP53",
				IterationCount: 2,
				Converged:      true,
				GraderResults: map[string]*grader.Result{
					"contains": {Passed: true, Score: 1.0, Reason: "matched 1/1"},
				},
				Transcript: &transcript.Transcript{Iterations: []transcript.Iteration{
					{Number: 1, Executions: []transcript.Execution{{Query: "SELECT ?g", Output: "ex:TP53"}}},
				}},
			},
			{TrialNumber: 2, Passed: false, Error: "task t trial 2: backend panic: boom"},
		},
		TotalTrials:     2,
		PassedTrials:    1,
		PassRate:        0.5,
		PassAtK:         1.0,
		PassPowerK:      0.0,
		AvgIterations:   1.0,
		AvgGroundedness: 0.9,
		Timestamp:       ts,
	}
}

func sampleMatrix(ts time.Time) *cohort.MatrixSummary {
	return &cohort.MatrixSummary{
		Cohorts: []string{"baseline", "full"},
		ByCohort: map[string]cohort.Aggregate{
			"baseline": {Tasks: 1, MeanPassRate: 0.2},
			"full":     {Tasks: 1, MeanPassRate: 0.8},
		},
		ByTask: map[string]map[string]float64{
			"t1": {"baseline": 0.2, "full": 0.8},
		},
		Improvements: []cohort.Improvement{{
			Comparison: "baseline->full", BaselineRate: 0.2, FullRate: 0.8,
			AbsoluteImprovement: 0.6, RelativeImprovement: 3.0,
		}},
		Timestamp: ts,
	}
}

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTaskRunRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	rec := NewTaskRunRecord(sampleEvalResult("t1", "full", ts))
	if err := s.SaveTaskRun(ctx, rec); err != nil {
		t.Fatalf("SaveTaskRun: %v", err)
	}

	got, err := s.GetTaskRun(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetTaskRun: %v", err)
	}
	if got.TaskID != "t1" || got.Cohort != "full" {
		t.Fatalf("record: %+v", got)
	}
	if got.PassAtK != 1.0 || got.PassPowerK != 0.0 || got.PassRate != 0.5 {
		t.Fatalf("metrics changed in round trip: %+v", got)
	}
	if got.Result.TotalTrials != 2 || got.Result.PassedTrials != 1 {
		t.Fatalf("blob counts: %+v", got.Result)
	}
	if len(got.Result.TrialResults) != 2 {
		t.Fatalf("trials: %d", len(got.Result.TrialResults))
	}
	trial := got.Result.TrialResults[0]
	if !trial.Passed || trial.GraderResults["contains"] == nil || trial.Transcript.Len() != 1 {
		t.Fatalf("trial blob: %+v", trial)
	}
	if got.Result.TrialResults[1].Error == "" {
		t.Fatalf("failed trial error lost in round trip")
	}
	if !got.CreatedAt.Equal(ts) {
		t.Fatalf("created_at: %v", got.CreatedAt)
	}
}

func TestListTaskRunsFilter(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i, spec := range []struct{ task, cohort string }{
		{"t1", "baseline"}, {"t1", "full"}, {"t2", "full"},
	} {
		rec := NewTaskRunRecord(sampleEvalResult(spec.task, spec.cohort, base.Add(time.Duration(i)*time.Minute)))
		if err := s.SaveTaskRun(ctx, rec); err != nil {
			t.Fatalf("SaveTaskRun: %v", err)
		}
	}

	all, err := s.ListTaskRuns(ctx, RunFilter{})
	if err != nil {
		t.Fatalf("ListTaskRuns: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all: %d", len(all))
	}
	if all[0].TaskID != "t2" {
		t.Fatalf("newest first: %v", all[0].TaskID)
	}

	t1Full, err := s.ListTaskRuns(ctx, RunFilter{TaskID: "t1", Cohort: "full"})
	if err != nil {
		t.Fatalf("ListTaskRuns(filter): %v", err)
	}
	if len(t1Full) != 1 || t1Full[0].Cohort != "full" {
		t.Fatalf("filtered: %+v", t1Full)
	}

	limited, err := s.ListTaskRuns(ctx, RunFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListTaskRuns(limit): %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited: %d", len(limited))
	}
}

func TestMatrixRunRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	older := NewMatrixRunRecord(sampleMatrix(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)))
	newer := NewMatrixRunRecord(sampleMatrix(time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)))
	for _, rec := range []*MatrixRunRecord{older, newer} {
		if err := s.SaveMatrixRun(ctx, rec); err != nil {
			t.Fatalf("SaveMatrixRun: %v", err)
		}
	}

	got, err := s.GetMatrixRun(ctx, older.ID)
	if err != nil {
		t.Fatalf("GetMatrixRun: %v", err)
	}
	if got.Summary.ByCohort["full"].MeanPassRate != 0.8 {
		t.Fatalf("summary blob: %+v", got.Summary)
	}
	if len(got.Cohorts) != 2 || got.Cohorts[0] != "baseline" {
		t.Fatalf("cohorts: %v", got.Cohorts)
	}

	latest, err := s.LatestMatrixRun(ctx)
	if err != nil {
		t.Fatalf("LatestMatrixRun: %v", err)
	}
	if latest.ID != newer.ID {
		t.Fatalf("latest: %s, want %s", latest.ID, newer.ID)
	}

	list, err := s.ListMatrixRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListMatrixRuns: %v", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID {
		t.Fatalf("list: %v", list)
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetTaskRun(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetTaskRun: %v", err)
	}
	if _, err := s.GetMatrixRun(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMatrixRun: %v", err)
	}
	if _, err := s.LatestMatrixRun(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LatestMatrixRun: %v", err)
	}
}

func TestOpenFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Storage.Type = "memory"
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	s.Close()

	cfg.Storage.Type = "sqlite"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "nested", "db.sqlite")
	s, err = Open(cfg)
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	s.Close()

	cfg.Storage.Type = "redis"
	if _, err := Open(cfg); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
	if _, err := Open(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
