package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// fixed width so stored timestamps sort lexically
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
	memoryPath = ":memory:"
)

var migrations = []string{
	`CREATE TABLE forwarding_properties (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE deliveries (
		id          TEXT PRIMARY KEY,
		task_id     TEXT NOT NULL,
		server      TEXT NOT NULL,
		topic       TEXT NOT NULL DEFAULT '',
		device_uri  TEXT NOT NULL DEFAULT '',
		message     TEXT NOT NULL DEFAULT '',
		status_code INTEGER NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX idx_deliveries_server ON deliveries(server);
	CREATE INDEX idx_deliveries_created_at ON deliveries(created_at)`,
}

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, zero CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
// The database file is created with 0600 permissions and its parent directory with 0700.
// The special path ":memory:" opens a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != memoryPath {
		if err := prepareFile(path); err != nil {
			return nil, err
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time; also keeps :memory: alive
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func prepareFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	// Pre-create the file with restrictive permissions if it doesn't exist
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("creating database file: %w", err)
		}
		_ = f.Close()
	}
	return nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		slog.Info("applying migration", "version", i+1)
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Forwarding properties ---

// SaveForwarding replaces the stored forwarding properties with props.
func (s *SQLiteStore) SaveForwarding(props map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM forwarding_properties"); err != nil {
		return fmt.Errorf("clearing forwarding properties: %w", err)
	}

	now := formatTime(time.Now())
	for k, v := range props {
		if _, err := tx.Exec("INSERT INTO forwarding_properties (key, value, updated_at) VALUES (?, ?, ?)", k, v, now); err != nil {
			return fmt.Errorf("storing forwarding property %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing forwarding properties: %w", err)
	}
	return nil
}

// LoadForwarding returns the stored forwarding properties, or an empty map
// when none were ever saved.
func (s *SQLiteStore) LoadForwarding() (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM forwarding_properties")
	if err != nil {
		return nil, fmt.Errorf("loading forwarding properties: %w", err)
	}
	defer func() { _ = rows.Close() }()

	props := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning forwarding property: %w", err)
		}
		props[k] = v
	}
	return props, rows.Err()
}

// --- Delivery journal ---

func (s *SQLiteStore) AddDelivery(d *DeliveryRecord) error {
	_, err := s.db.Exec(`INSERT INTO deliveries (id, task_id, server, topic, device_uri, message,
		status_code, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.TaskID, d.Server, d.Topic, d.DeviceURI, d.Message,
		d.StatusCode, d.Error, d.DurationMs, formatTime(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting delivery: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListDeliveries(f DeliveryFilter) ([]DeliveryRecord, error) {
	query := `SELECT id, task_id, server, topic, device_uri, message, status_code, error,
		duration_ms, created_at FROM deliveries WHERE 1=1`
	var args []interface{}

	if f.Server != "" {
		query += " AND server = ?"
		args = append(args, f.Server)
	}
	if f.TaskID != "" {
		query += " AND task_id = ?"
		args = append(args, f.TaskID)
	}
	if !f.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, formatTime(f.Since))
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []DeliveryRecord
	for rows.Next() {
		var d DeliveryRecord
		var createdAt string
		if err := rows.Scan(&d.ID, &d.TaskID, &d.Server, &d.Topic, &d.DeviceURI, &d.Message,
			&d.StatusCode, &d.Error, &d.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		d.CreatedAt = parseTime(createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- Maintenance ---

// Cleanup deletes journal entries created before olderThan and returns how many were removed.
func (s *SQLiteStore) Cleanup(olderThan time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM deliveries WHERE created_at < ?", formatTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("cleaning deliveries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// StartCleanupLoop prunes journal entries older than retention once an hour
// until done is closed.
func (s *SQLiteStore) StartCleanupLoop(done <-chan struct{}, retention time.Duration) {
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		n, err := s.Cleanup(time.Now().Add(-retention))
		if err != nil {
			slog.Warn("delivery journal cleanup failed", "error", err)
		} else if n > 0 {
			slog.Info("delivery journal pruned", "removed", n)
		}

		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

// --- Helpers ---

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeFormat, s)
	return t
}
