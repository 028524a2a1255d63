// Package store persists benchmark results in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"imbalcv/evaluation"
	"imbalcv/report"
)

// Store 结果存储
type Store struct {
	db *sql.DB

	preparedStmts map[string]*sql.Stmt
	stmtLock      sync.RWMutex
}

// RunInfo 运行记录
type RunInfo struct {
	RunID     string
	Started   time.Time
	Duration  time.Duration
	Scheme    string
	Seed      int64
	Placement string
	Positive  string
	Primary   string
	Trainer   string
}

const (
	insertRun = `INSERT INTO runs
        (run_id, started, duration_ms, scheme, seed, placement, positive, primary_metric, trainer)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertFold = `INSERT INTO fold_results
        (run_id, strategy, repeat_idx, fold_idx, candidate, status, class, error,
         train_size, sampled_size, holdout_size, sampled_counts, metrics)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertSummary = `INSERT INTO summaries
        (run_id, strategy, position, candidate, best, metric, mean, sd, included, excluded,
         completed, failed, scheduled)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	insertTest = `INSERT INTO test_estimates
        (run_id, strategy, candidate, metric, value, lower, upper, has_interval, error)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// Open 打开数据库, 启用 WAL
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir failed: %w", err)
		}
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, preparedStmts: make(map[string]*sql.Stmt)}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return s, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	s.stmtLock.Lock()
	for _, stmt := range s.preparedStmts {
		_ = stmt.Close()
	}
	s.preparedStmts = map[string]*sql.Stmt{}
	s.stmtLock.Unlock()
	return s.db.Close()
}

// createTables 创建表
func (s *Store) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            run_id TEXT PRIMARY KEY,
            started INTEGER NOT NULL,
            duration_ms INTEGER NOT NULL,
            scheme TEXT NOT NULL,
            seed INTEGER NOT NULL,
            placement TEXT NOT NULL,
            positive TEXT NOT NULL,
            primary_metric TEXT NOT NULL,
            trainer TEXT NOT NULL,
            created_at INTEGER DEFAULT (strftime('%s', 'now'))
        )`,
		`CREATE TABLE IF NOT EXISTS fold_results (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
            strategy TEXT NOT NULL,
            repeat_idx INTEGER NOT NULL,
            fold_idx INTEGER NOT NULL,
            candidate TEXT NOT NULL,
            status TEXT NOT NULL,
            class TEXT,
            error TEXT,
            train_size INTEGER NOT NULL,
            sampled_size INTEGER NOT NULL,
            holdout_size INTEGER NOT NULL,
            sampled_counts TEXT,
            metrics TEXT
        )`,
		`CREATE TABLE IF NOT EXISTS summaries (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
            strategy TEXT NOT NULL,
            position INTEGER NOT NULL,
            candidate TEXT NOT NULL,
            best INTEGER NOT NULL,
            metric TEXT NOT NULL,
            mean REAL,
            sd REAL,
            included INTEGER NOT NULL,
            excluded INTEGER NOT NULL,
            completed INTEGER NOT NULL,
            failed INTEGER NOT NULL,
            scheduled INTEGER NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS test_estimates (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
            strategy TEXT NOT NULL,
            candidate TEXT NOT NULL,
            metric TEXT NOT NULL,
            value REAL,
            lower REAL,
            upper REAL,
            has_interval INTEGER NOT NULL,
            error TEXT
        )`,
		`CREATE INDEX IF NOT EXISTS idx_fold_run ON fold_results(run_id, strategy)`,
		`CREATE INDEX IF NOT EXISTS idx_summary_run ON summaries(run_id, metric)`,
		`CREATE INDEX IF NOT EXISTS idx_test_run ON test_estimates(run_id, metric)`,
	}
	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("exec query failed: %w", err)
		}
	}
	return nil
}

// getPreparedStmt 获取预编译语句
func (s *Store) getPreparedStmt(query string) (*sql.Stmt, error) {
	s.stmtLock.RLock()
	stmt, ok := s.preparedStmts[query]
	s.stmtLock.RUnlock()
	if ok {
		return stmt, nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	s.stmtLock.Lock()
	s.preparedStmts[query] = stmt
	s.stmtLock.Unlock()
	return stmt, nil
}

// SaveBenchmark 在一个事务中保存运行、折结果、汇总与测试估计
func (s *Store) SaveBenchmark(ctx context.Context, b *evaluation.Benchmark) error {
	if b == nil || b.RunID == "" {
		return errors.New("benchmark has no run id")
	}
	stmts := make(map[string]*sql.Stmt, 4)
	for _, q := range []string{insertRun, insertFold, insertSummary, insertTest} {
		stmt, err := s.getPreparedStmt(q)
		if err != nil {
			return err
		}
		stmts[q] = stmt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	exec := func(query string, args ...any) error {
		_, err := tx.StmtContext(ctx, stmts[query]).ExecContext(ctx, args...)
		return err
	}

	if err := exec(insertRun, b.RunID, b.Started.UnixMilli(), b.Duration.Milliseconds(), b.Scheme, b.Seed,
		b.Placement.String(), b.Positive, b.Primary, b.Trainer); err != nil {
		return fmt.Errorf("insert run failed: %w", err)
	}

	for pos, sum := range b.Summaries {
		for _, f := range sum.Folds {
			if err := saveFold(exec, b.RunID, f); err != nil {
				return err
			}
		}
		best := sum.Best
		if best < 0 {
			best = 0
		}
		for ci, c := range sum.Candidates {
			for _, m := range c.Metrics {
				if err := exec(insertSummary, b.RunID, sum.Strategy, pos, c.Params.String(), boolInt(ci == best),
					m.Name, m.Mean, m.SD, m.Included, m.Excluded, sum.Completed(), sum.Failed, sum.Scheduled); err != nil {
					return fmt.Errorf("insert summary failed: %w", err)
				}
			}
		}
	}

	for _, t := range b.Tests {
		if t.Err != nil {
			if err := exec(insertTest, b.RunID, t.Strategy, t.Params.String(), b.Primary, nil, nil, nil, 0, t.Err.Error()); err != nil {
				return fmt.Errorf("insert test estimate failed: %w", err)
			}
			continue
		}
		for _, e := range t.Estimates {
			var msg any
			if e.Err != nil {
				msg = e.Err.Error()
			}
			if err := exec(insertTest, b.RunID, t.Strategy, t.Params.String(), e.Metric,
				e.Estimate.Value, e.Estimate.Lower, e.Estimate.Upper, boolInt(e.Estimate.HasInterval), msg); err != nil {
				return fmt.Errorf("insert test estimate failed: %w", err)
			}
		}
	}
	return tx.Commit()
}

func saveFold(exec func(string, ...any) error, runID string, f evaluation.FoldResult) error {
	counts, err := json.Marshal(f.Sampled)
	if err != nil {
		return err
	}
	if len(f.Candidates) == 0 {
		return exec(insertFold, runID, f.Strategy, f.Repeat, f.Fold, "", string(f.Status), string(f.Class),
			errString(f.Err), f.TrainSize, f.SampledSize, f.HoldoutSize, string(counts), nil)
	}
	for _, c := range f.Candidates {
		status := evaluation.StatusCompleted
		if c.Failed() {
			status = evaluation.StatusFailed
		}
		values, err := json.Marshal(c.Values)
		if err != nil {
			return err
		}
		if err := exec(insertFold, runID, f.Strategy, f.Repeat, f.Fold, c.Params.String(), string(status), string(c.Class),
			errString(c.Err), f.TrainSize, f.SampledSize, f.HoldoutSize, string(counts), string(values)); err != nil {
			return fmt.Errorf("insert fold result failed: %w", err)
		}
	}
	return nil
}

// Runs 查询所有运行, 最新的在前
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT run_id, started, duration_ms, scheme, seed, placement, positive, primary_metric, trainer
        FROM runs
        ORDER BY started DESC, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		var started, duration int64
		if err := rows.Scan(&r.RunID, &started, &duration, &r.Scheme, &r.Seed, &r.Placement, &r.Positive, &r.Primary, &r.Trainer); err != nil {
			return nil, err
		}
		r.Started = time.UnixMilli(started).UTC()
		r.Duration = time.Duration(duration) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadComparison 重建某次运行某指标的对比表
func (s *Store) LoadComparison(ctx context.Context, runID, metricName string) ([]report.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT strategy, mean, sd, included, excluded, failed, scheduled
        FROM summaries
        WHERE run_id = ? AND metric = ? AND best = 1
        ORDER BY position`, runID, metricName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resampled []report.Resampled
	for rows.Next() {
		var r report.Resampled
		var mean, sd sql.NullFloat64
		if err := rows.Scan(&r.Strategy, &mean, &sd, &r.Included, &r.Excluded, &r.Failed, &r.Scheduled); err != nil {
			return nil, err
		}
		r.Mean, r.SD = mean.Float64, sd.Float64
		resampled = append(resampled, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(resampled) == 0 {
		return nil, fmt.Errorf("no summaries for run %s metric %s", runID, metricName)
	}

	tests, err := s.db.QueryContext(ctx, `
        SELECT strategy, value, lower, upper, has_interval
        FROM test_estimates
        WHERE run_id = ? AND metric = ? AND error IS NULL`, runID, metricName)
	if err != nil {
		return nil, err
	}
	defer tests.Close()

	var tested []report.Tested
	for tests.Next() {
		var t report.Tested
		var hasInterval int
		if err := tests.Scan(&t.Strategy, &t.Estimate.Value, &t.Estimate.Lower, &t.Estimate.Upper, &hasInterval); err != nil {
			return nil, err
		}
		t.Estimate.HasInterval = hasInterval == 1
		tested = append(tested, t)
	}
	if err := tests.Err(); err != nil {
		return nil, err
	}
	return report.Compare(resampled, tested), nil
}

// FoldCount 返回某次运行保存的折结果行数
func (s *Store) FoldCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fold_results WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}
