// Package store persists evaluation results: task runs and ablation matrix
// runs in SQLite, plus JSON files under the results directory.
package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/stellarlinkco/agent-eval/internal/cohort"
	"github.com/stellarlinkco/agent-eval/internal/harness"
)

// RunWriter persists finished evaluations.
type RunWriter interface {
	SaveTaskRun(ctx context.Context, rec *TaskRunRecord) error
	SaveMatrixRun(ctx context.Context, rec *MatrixRunRecord) error
}

// RunReader reads persisted evaluations back.
type RunReader interface {
	GetTaskRun(ctx context.Context, id string) (*TaskRunRecord, error)
	ListTaskRuns(ctx context.Context, filter RunFilter) ([]*TaskRunRecord, error)
	GetMatrixRun(ctx context.Context, id string) (*MatrixRunRecord, error)
	ListMatrixRuns(ctx context.Context, limit int) ([]*MatrixRunRecord, error)
	LatestMatrixRun(ctx context.Context) (*MatrixRunRecord, error)
}

// Store persists task runs and matrix runs.
type Store interface {
	RunWriter
	RunReader
	Close() error
}

// TaskRunRecord stores one task evaluation: summary columns for querying,
// the full EvalResult as a JSON blob.
type TaskRunRecord struct {
	ID              string
	TaskID          string
	Cohort          string
	TotalTrials     int
	PassedTrials    int
	PassRate        float64
	PassAtK         float64
	PassPowerK      float64
	AvgIterations   float64
	AvgGroundedness float64
	CreatedAt       time.Time
	Result          *harness.EvalResult
}

// NewTaskRunRecord builds the record for a finished evaluation.
func NewTaskRunRecord(res *harness.EvalResult) *TaskRunRecord {
	return &TaskRunRecord{
		ID:              newID(),
		TaskID:          res.TaskID,
		Cohort:          res.Cohort,
		TotalTrials:     res.TotalTrials,
		PassedTrials:    res.PassedTrials,
		PassRate:        res.PassRate,
		PassAtK:         res.PassAtK,
		PassPowerK:      res.PassPowerK,
		AvgIterations:   res.AvgIterations,
		AvgGroundedness: res.AvgGroundedness,
		CreatedAt:       res.Timestamp,
		Result:          res,
	}
}

// MatrixRunRecord stores one ablation matrix run.
type MatrixRunRecord struct {
	ID        string
	Cohorts   []string
	Tasks     int
	CreatedAt time.Time
	Summary   *cohort.MatrixSummary
}

// NewMatrixRunRecord builds the record for a finished matrix run.
func NewMatrixRunRecord(summary *cohort.MatrixSummary) *MatrixRunRecord {
	return &MatrixRunRecord{
		ID:        newID(),
		Cohorts:   summary.Cohorts,
		Tasks:     len(summary.ByTask),
		CreatedAt: summary.Timestamp,
		Summary:   summary,
	}
}

// RunFilter narrows task-run listings.
type RunFilter struct {
	TaskID string
	Cohort string
	Limit  int
}

func newID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return time.Now().UTC().Format("20060102150405.000000000")
	}
	return time.Now().UTC().Format("20060102-150405") + "-" + hex.EncodeToString(buf)
}
