package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5

	// Fixed width so ts_utc sorts lexically in time order.
	tsLayout = "2006-01-02T15:04:05.000000000Z"
)

// Store persists cache statistics snapshots in a local sqlite file.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// The watcher flushes the index from its own goroutine while the CLI may
	// read history, so wait on locks instead of failing.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", cleanPath)
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

// SaveSnapshot inserts snapshot, replacing a row with the same workspace,
// session and timestamp.
func (s *Store) SaveSnapshot(snapshot Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot.Workspace = strings.TrimSpace(snapshot.Workspace)
	if snapshot.Workspace == "" {
		return fmt.Errorf("snapshot workspace must not be empty")
	}
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now().UTC()
	}

	query := `
INSERT INTO cache_stats_snapshots (
  workspace, session_id, ts_utc, hits, misses, size_bytes, entry_count, hit_rate
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(workspace, session_id, ts_utc) DO UPDATE SET
  hits=excluded.hits,
  misses=excluded.misses,
  size_bytes=excluded.size_bytes,
  entry_count=excluded.entry_count,
  hit_rate=excluded.hit_rate
`
	return s.withRetry("save snapshot", func() error {
		_, err := s.db.Exec(
			query,
			snapshot.Workspace,
			snapshot.SessionID,
			snapshot.Timestamp.UTC().Format(tsLayout),
			int64(snapshot.Hits),
			int64(snapshot.Misses),
			int64(snapshot.SizeBytes),
			int64(snapshot.EntryCount),
			snapshot.HitRate,
		)
		return err
	})
}

// LoadSnapshots returns the workspace's snapshots at or after since, oldest
// first. A zero since returns everything.
func (s *Store) LoadSnapshots(workspace string, since time.Time) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT workspace, session_id, ts_utc, hits, misses, size_bytes, entry_count, hit_rate
FROM cache_stats_snapshots
WHERE workspace = ?`
	args := []any{strings.TrimSpace(workspace)}
	if !since.IsZero() {
		query += " AND ts_utc >= ?"
		args = append(args, since.UTC().Format(tsLayout))
	}
	query += " ORDER BY ts_utc ASC, session_id ASC"

	var rows *sql.Rows
	err := s.withRetry("load snapshots", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		var (
			tsRaw                               string
			hits, misses, sizeBytes, entryCount int64
			snapshot                            Snapshot
		)
		if err := rows.Scan(
			&snapshot.Workspace,
			&snapshot.SessionID,
			&tsRaw,
			&hits,
			&misses,
			&sizeBytes,
			&entryCount,
			&snapshot.HitRate,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		ts, err := time.Parse(tsLayout, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot timestamp %q: %w", tsRaw, err)
		}
		snapshot.Timestamp = ts.UTC()
		snapshot.Hits = uint64(hits)
		snapshot.Misses = uint64(misses)
		snapshot.SizeBytes = uint64(sizeBytes)
		snapshot.EntryCount = uint64(entryCount)
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snapshots, nil
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

// IsCorruptError reports whether err means the history file is not a usable
// sqlite database.
func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
