package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stellarlinkco/agent-eval/internal/cohort"
	"github.com/stellarlinkco/agent-eval/internal/harness"
)

// ResultsWriter dumps evaluation results as JSON files under a results
// directory, one file per task run plus a transcript file per trial. The
// files round-trip through ReadEvalResult / ReadMatrixSummary.
type ResultsWriter struct {
	dir string
}

func NewResultsWriter(dir string) (*ResultsWriter, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("store: empty results dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create results dir: %w", err)
	}
	return &ResultsWriter{dir: dir}, nil
}

// WriteEvalResult writes one task run and its per-trial transcripts. Returns
// the path of the result file.
func (w *ResultsWriter) WriteEvalResult(res *harness.EvalResult) (string, error) {
	if res == nil {
		return "", fmt.Errorf("store: nil eval result")
	}

	runDir := filepath.Join(w.dir, sanitize(res.TaskID), res.Timestamp.UTC().Format("20060102-150405")+cohortSuffix(res.Cohort))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("store: create run dir: %w", err)
	}

	path := filepath.Join(runDir, "result.json")
	if err := writeJSON(path, res); err != nil {
		return "", err
	}

	for _, trial := range res.TrialResults {
		if trial.Transcript == nil {
			continue
		}
		trialPath := filepath.Join(runDir, fmt.Sprintf("trial-%d.transcript.json", trial.TrialNumber))
		if err := writeJSON(trialPath, trial.Transcript); err != nil {
			return "", err
		}
	}
	return path, nil
}

// WriteMatrixSummary writes one ablation matrix summary. Returns the path of
// the summary file.
func (w *ResultsWriter) WriteMatrixSummary(summary *cohort.MatrixSummary) (string, error) {
	if summary == nil {
		return "", fmt.Errorf("store: nil matrix summary")
	}
	path := filepath.Join(w.dir, "matrix-"+summary.Timestamp.UTC().Format("20060102-150405")+".json")
	if err := writeJSON(path, summary); err != nil {
		return "", err
	}
	return path, nil
}

// ReadEvalResult loads a task-run result file.
func ReadEvalResult(path string) (*harness.EvalResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	var res harness.EvalResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return &res, nil
}

// ReadMatrixSummary loads a matrix summary file.
func ReadMatrixSummary(path string) (*cohort.MatrixSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	var summary cohort.MatrixSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return &summary, nil
}

// FindResultFiles lists every result.json under dir, newest directory last.
func FindResultFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == "result.json" {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: scan %s: %w", dir, err)
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	return nil
}

func cohortSuffix(cohortName string) string {
	if cohortName == "" {
		return ""
	}
	return "-" + sanitize(cohortName)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
