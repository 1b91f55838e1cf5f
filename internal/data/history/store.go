// Package history persists a summary of every analysis run, plus the issues
// it reported, in a local sqlite database.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	domainerrors "importcheck/internal/core/errors"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

type Run struct {
	ID             string
	Root           string
	Timestamp      time.Time
	Provider       string
	FilesIndexed   int
	FilesSkipped   int
	UndefinedCount int
	ExternalCount  int
	Duration       time.Duration
}

func (r Run) IssueCount() int { return r.UndefinedCount + r.ExternalCount }

type IssueRecord struct {
	File       string
	ImportPath string
	Kind       string
	Message    string
}

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, domainerrors.New(domainerrors.CodeValidationError, "history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, domainerrors.AddContext(
			domainerrors.New(domainerrors.CodeValidationError, "history path is a directory, expected file"),
			domainerrors.CtxPath, cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}
	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// SaveRun records run and its issues in one transaction.
func (s *Store) SaveRun(run Run, issues []IssueRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(run.ID) == "" {
		return domainerrors.New(domainerrors.CodeValidationError, "run id must not be empty")
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}

	return s.withRetry("save run", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
INSERT INTO runs (
  run_id, root, ts_utc, provider, files_indexed, files_skipped,
  undefined_count, external_count, duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.Root,
			run.Timestamp.UTC().Format(time.RFC3339Nano),
			run.Provider,
			run.FilesIndexed,
			run.FilesSkipped,
			run.UndefinedCount,
			run.ExternalCount,
			run.Duration.Milliseconds(),
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		for i, issue := range issues {
			if _, err := tx.Exec(
				`INSERT INTO run_issues (run_id, seq, file, import_path, kind, message) VALUES (?, ?, ?, ?, ?, ?)`,
				run.ID, i, issue.File, issue.ImportPath, issue.Kind, issue.Message,
			); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

// ListRuns returns the newest runs first. An empty root lists every root;
// limit <= 0 means no limit.
func (s *Store) ListRuns(root string, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT run_id, root, ts_utc, provider, files_indexed, files_skipped,
  undefined_count, external_count, duration_ms
FROM runs`
	args := make([]any, 0, 2)
	if root = strings.TrimSpace(root); root != "" {
		query += " WHERE root = ?"
		args = append(args, root)
	}
	query += " ORDER BY ts_utc DESC, run_id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("list runs", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			run        Run
			tsRaw      string
			durationMS int64
		)
		if err := rows.Scan(
			&run.ID, &run.Root, &tsRaw, &run.Provider, &run.FilesIndexed, &run.FilesSkipped,
			&run.UndefinedCount, &run.ExternalCount, &durationMS,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
		}
		run.Timestamp = ts.UTC()
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// RunIssues returns the issues of one run in their reported order.
func (s *Store) RunIssues(runID string) ([]IssueRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("load run issues", func() error {
		var qErr error
		rows, qErr = s.db.Query(
			`SELECT file, import_path, kind, message FROM run_issues WHERE run_id = ? ORDER BY seq ASC`, runID)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issues := make([]IssueRecord, 0)
	for rows.Next() {
		var issue IssueRecord
		if err := rows.Scan(&issue.File, &issue.ImportPath, &issue.Kind, &issue.Message); err != nil {
			return nil, fmt.Errorf("scan issue row: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issue rows: %w", err)
	}
	return issues, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
