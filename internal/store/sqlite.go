package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stellarlinkco/agent-eval/internal/cohort"
	"github.com/stellarlinkco/agent-eval/internal/harness"
)

const defaultListLimit = 50

// ErrNotFound marks a lookup for a run id the store has never seen.
var ErrNotFound = errors.New("store: not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	insertTaskRunStmt   *sql.Stmt
	getTaskRunStmt      *sql.Stmt
	insertMatrixRunStmt *sql.Stmt
	getMatrixRunStmt    *sql.Stmt
	latestMatrixRunStmt *sql.Stmt
}

// NewSQLiteStore opens or creates a SQLite store at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("store: empty sqlite path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	st := &SQLiteStore{db: db}
	if err := st.prepareStatements(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS task_runs (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			cohort TEXT NOT NULL DEFAULT '',
			total_trials INTEGER NOT NULL,
			passed_trials INTEGER NOT NULL,
			pass_rate REAL NOT NULL,
			pass_at_k REAL NOT NULL,
			pass_power_k REAL NOT NULL,
			avg_iterations REAL NOT NULL,
			avg_groundedness REAL NOT NULL,
			created_at INTEGER NOT NULL,
			result BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_task_runs_task_id ON task_runs(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_task_runs_created_at ON task_runs(created_at)`,
		`CREATE TABLE IF NOT EXISTS matrix_runs (
			id TEXT PRIMARY KEY,
			cohorts TEXT NOT NULL,
			tasks INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			summary BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_matrix_runs_created_at ON matrix_runs(created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	ctx := context.Background()
	type stmtSpec struct {
		dst    **sql.Stmt
		query  string
		errFmt string
	}

	specs := []stmtSpec{
		{
			dst: &s.insertTaskRunStmt,
			query: `
				INSERT INTO task_runs (
					id, task_id, cohort, total_trials, passed_trials, pass_rate,
					pass_at_k, pass_power_k, avg_iterations, avg_groundedness, created_at, result
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert task run: %w",
		},
		{
			dst: &s.getTaskRunStmt,
			query: `
				SELECT id, task_id, cohort, total_trials, passed_trials, pass_rate,
					pass_at_k, pass_power_k, avg_iterations, avg_groundedness, created_at, result
				FROM task_runs WHERE id = ?
			`,
			errFmt: "store: prepare get task run: %w",
		},
		{
			dst: &s.insertMatrixRunStmt,
			query: `
				INSERT INTO matrix_runs (id, cohorts, tasks, created_at, summary)
				VALUES (?, ?, ?, ?, ?)
			`,
			errFmt: "store: prepare insert matrix run: %w",
		},
		{
			dst: &s.getMatrixRunStmt,
			query: `
				SELECT id, cohorts, tasks, created_at, summary
				FROM matrix_runs WHERE id = ?
			`,
			errFmt: "store: prepare get matrix run: %w",
		},
		{
			dst: &s.latestMatrixRunStmt,
			query: `
				SELECT id, cohorts, tasks, created_at, summary
				FROM matrix_runs ORDER BY created_at DESC, id DESC LIMIT 1
			`,
			errFmt: "store: prepare latest matrix run: %w",
		},
	}

	for _, spec := range specs {
		stmt, err := s.db.PrepareContext(ctx, spec.query)
		if err != nil {
			return fmt.Errorf(spec.errFmt, err)
		}
		*spec.dst = stmt
	}
	return nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	if s == nil {
		return nil
	}
	for _, stmt := range []*sql.Stmt{
		s.insertTaskRunStmt,
		s.getTaskRunStmt,
		s.insertMatrixRunStmt,
		s.getMatrixRunStmt,
		s.latestMatrixRunStmt,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) SaveTaskRun(ctx context.Context, rec *TaskRunRecord) error {
	if rec == nil || rec.Result == nil {
		return errors.New("store: nil task run")
	}
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	blob, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("store: encode task run %s: %w", rec.ID, err)
	}
	_, err = s.insertTaskRunStmt.ExecContext(ctx,
		rec.ID, rec.TaskID, rec.Cohort, rec.TotalTrials, rec.PassedTrials, rec.PassRate,
		rec.PassAtK, rec.PassPowerK, rec.AvgIterations, rec.AvgGroundedness,
		rec.CreatedAt.UnixNano(), blob,
	)
	if err != nil {
		return fmt.Errorf("store: insert task run %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetTaskRun(ctx context.Context, id string) (*TaskRunRecord, error) {
	rec, err := scanTaskRun(s.getTaskRunStmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: task run %q", ErrNotFound, id)
	}
	return rec, err
}

func (s *SQLiteStore) ListTaskRuns(ctx context.Context, filter RunFilter) ([]*TaskRunRecord, error) {
	query := `
		SELECT id, task_id, cohort, total_trials, passed_trials, pass_rate,
			pass_at_k, pass_power_k, avg_iterations, avg_groundedness, created_at, result
		FROM task_runs`
	var conds []string
	var args []any
	if filter.TaskID != "" {
		conds = append(conds, "task_id = ?")
		args = append(args, filter.TaskID)
	}
	if filter.Cohort != "" {
		conds = append(conds, "cohort = ?")
		args = append(args, filter.Cohort)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list task runs: %w", err)
	}
	defer rows.Close()

	var out []*TaskRunRecord
	for rows.Next() {
		rec, err := scanTaskRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list task runs: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SaveMatrixRun(ctx context.Context, rec *MatrixRunRecord) error {
	if rec == nil || rec.Summary == nil {
		return errors.New("store: nil matrix run")
	}
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	blob, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("store: encode matrix run %s: %w", rec.ID, err)
	}
	_, err = s.insertMatrixRunStmt.ExecContext(ctx,
		rec.ID, strings.Join(rec.Cohorts, ","), rec.Tasks, rec.CreatedAt.UnixNano(), blob,
	)
	if err != nil {
		return fmt.Errorf("store: insert matrix run %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetMatrixRun(ctx context.Context, id string) (*MatrixRunRecord, error) {
	rec, err := scanMatrixRun(s.getMatrixRunStmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: matrix run %q", ErrNotFound, id)
	}
	return rec, err
}

func (s *SQLiteStore) LatestMatrixRun(ctx context.Context) (*MatrixRunRecord, error) {
	rec, err := scanMatrixRun(s.latestMatrixRunStmt.QueryRowContext(ctx))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no matrix runs", ErrNotFound)
	}
	return rec, err
}

func (s *SQLiteStore) ListMatrixRuns(ctx context.Context, limit int) ([]*MatrixRunRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cohorts, tasks, created_at, summary
		FROM matrix_runs ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list matrix runs: %w", err)
	}
	defer rows.Close()

	var out []*MatrixRunRecord
	for rows.Next() {
		rec, err := scanMatrixRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list matrix runs: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dst ...any) error
}

func scanTaskRun(row rowScanner) (*TaskRunRecord, error) {
	var rec TaskRunRecord
	var createdAt int64
	var blob []byte
	err := row.Scan(
		&rec.ID, &rec.TaskID, &rec.Cohort, &rec.TotalTrials, &rec.PassedTrials, &rec.PassRate,
		&rec.PassAtK, &rec.PassPowerK, &rec.AvgIterations, &rec.AvgGroundedness, &createdAt, &blob,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan task run: %w", err)
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()

	var result harness.EvalResult
	if err := json.Unmarshal(blob, &result); err != nil {
		return nil, fmt.Errorf("store: decode task run %s: %w", rec.ID, err)
	}
	rec.Result = &result
	return &rec, nil
}

func scanMatrixRun(row rowScanner) (*MatrixRunRecord, error) {
	var rec MatrixRunRecord
	var cohorts string
	var createdAt int64
	var blob []byte
	err := row.Scan(&rec.ID, &cohorts, &rec.Tasks, &createdAt, &blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan matrix run: %w", err)
	}
	if cohorts != "" {
		rec.Cohorts = strings.Split(cohorts, ",")
	}
	rec.CreatedAt = time.Unix(0, createdAt).UTC()

	var summary cohort.MatrixSummary
	if err := json.Unmarshal(blob, &summary); err != nil {
		return nil, fmt.Errorf("store: decode matrix run %s: %w", rec.ID, err)
	}
	rec.Summary = &summary
	return &rec, nil
}
