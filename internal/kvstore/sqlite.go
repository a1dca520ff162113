package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-artwork/internal/logging"
	"media-artwork/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// SQLite is a persistent Store in a single SQLite table.
type SQLite struct {
	db     *sql.DB
	dbPath string
	quota  int64
	mu     sync.Mutex // serializes quota-checked writes
}

// OpenSQLite opens or creates the store at dbPath. The parent directory must
// exist and be writable. A quota of zero disables the limit.
func OpenSQLite(ctx context.Context, dbPath string, quota int64) (*SQLite, error) {
	logging.Info("Cache database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Cache database permission diagnostics: %v", err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLite{db: db, dbPath: dbPath, quota: quota}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Cache database initialized at %s (quota: %d bytes)", dbPath, quota)
	return s, nil
}

func (s *SQLite) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		size INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		recordQuery("get", start, nil)
		return "", false, nil
	}
	recordQuery("get", start, err)
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *SQLite) Set(ctx context.Context, key, value string) (err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, ErrQuotaExceeded) {
			recordQuery("set", start, nil)
			return
		}
		recordQuery("set", start, err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
			}
		}
	}()

	size := entrySize(key, value)
	if s.quota > 0 {
		var used int64
		if err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(size), 0) FROM kv WHERE key <> ?`, key).Scan(&used); err != nil {
			return err
		}
		if used+size > s.quota {
			metrics.CacheStoreQuotaErrors.WithLabelValues("persistent").Inc()
			return ErrQuotaExceeded
		}
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO kv (key, value, size) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, size = excluded.size`,
		key, value, size); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) Remove(ctx context.Context, key string) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	recordQuery("remove", start, err)
	return err
}

// prefixClause matches keys by their leading characters; LIKE would treat
// '%' and '_' in URLs as wildcards.
const prefixClause = `substr(key, 1, ?) = ?`

func (s *SQLite) Keys(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE `+prefixClause+` ORDER BY key`,
		utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		recordQuery("keys", start, err)
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			recordQuery("keys", start, err)
			return nil, err
		}
		keys = append(keys, k)
	}
	recordQuery("keys", start, rows.Err())
	return keys, rows.Err()
}

func (s *SQLite) FindSuffix(ctx context.Context, suffix string) (string, string, bool, error) {
	start := time.Now()
	n := utf8.RuneCountInString(suffix)
	var k, v string
	err := s.db.QueryRowContext(ctx,
		`SELECT key, value FROM kv WHERE length(key) >= ? AND substr(key, -?) = ? ORDER BY key LIMIT 1`,
		n, n, suffix).Scan(&k, &v)
	if errors.Is(err, sql.ErrNoRows) {
		recordQuery("find_suffix", start, nil)
		return "", "", false, nil
	}
	recordQuery("find_suffix", start, err)
	if err != nil {
		return "", "", false, err
	}
	return k, v, true, nil
}

func (s *SQLite) ValueBytes(ctx context.Context, prefix string) (int64, error) {
	start := time.Now()
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(length(CAST(value AS BLOB))), 0) FROM kv WHERE `+prefixClause,
		utf8.RuneCountInString(prefix), prefix).Scan(&n)
	recordQuery("value_bytes", start, err)
	return n, err
}

func (s *SQLite) Clear(ctx context.Context, prefix string) (int, error) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE `+prefixClause,
		utf8.RuneCountInString(prefix), prefix)
	recordQuery("clear", start, err)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Quota: s.quota}
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size), 0) FROM kv`).Scan(&st.Entries, &st.Bytes)
	return st, err
}

// UpdateDBMetrics updates database connection metrics
func (s *SQLite) UpdateDBMetrics() {
	metrics.DBConnectionsOpen.Set(float64(s.db.Stats().OpenConnections))
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// diagnoseDatabasePermissions checks the database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Cache database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only (mode: %v), attempting to fix", p, info.Mode())
			if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
				logging.Error("Failed to fix permissions on %s: %v", p, chmodErr)
			}
		}
	}
	return nil
}
