// Package resourcestore is a partitioned key-value store for job processor
// resources, backed by SQLite/libsql through database/sql.
//
// Records live under a composite (partition, resource_id) key with a sortable
// creation-time column. A second status partition column supports the
// status-filtered index that job queries use. The store also hosts the lease
// table the distributed mutex is built on.
package resourcestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	schemaVersion = 1

	// driverName is shared by both build flavors; see open_sqlite.go and
	// open_libsql.go for the registration.
	driverName = "libsql"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("resource not found")

// Config locates the backing database for the resource store.
type Config struct {
	// Path is a local SQLite file. Parent directories are created on open.
	Path string

	// URL is a remote libsql/Turso database, e.g. libsql://jobs.turso.io.
	// Requires a cgo build.
	URL string

	// AuthToken authenticates against a remote database.
	AuthToken string

	// BusyTimeout is how long a statement waits on the database lock.
	// The mutex runs its own retry loop above this, so it stays short.
	// Defaults to 2 seconds.
	BusyTimeout time.Duration
}

// dsn resolves the configured location into a driver DSN. local reports
// whether the database lives on this machine, which decides whether the
// SQLite tuning pragmas apply.
func (c Config) dsn() (dsn string, local bool, err error) {
	if u := strings.TrimSpace(c.URL); u != "" {
		parsed, err := url.Parse(u)
		if err != nil {
			return "", false, fmt.Errorf("invalid store url: %w", err)
		}
		if c.AuthToken != "" && parsed.Query().Get("authToken") == "" {
			q := parsed.Query()
			q.Set("authToken", c.AuthToken)
			parsed.RawQuery = q.Encode()
		}
		return parsed.String(), false, nil
	}

	path := strings.TrimSpace(c.Path)
	switch {
	case path == "":
		return "", false, errors.New("resource store needs a path or url")
	case path == ":memory:":
		return path, true, nil
	case strings.HasPrefix(path, "libsql:"):
		return path, false, nil
	case strings.HasPrefix(path, "file:"):
		// Already DSN-shaped; still make sure the directory exists.
		parsed, err := url.Parse(path)
		if err != nil {
			return "", false, fmt.Errorf("invalid store path: %w", err)
		}
		target := parsed.Path
		if target == "" {
			target = parsed.Opaque
		}
		if err := ensureDir(strings.TrimPrefix(target, "//")); err != nil {
			return "", false, err
		}
		return path, true, nil
	default:
		if err := ensureDir(path); err != nil {
			return "", false, err
		}
		return "file:" + filepath.Clean(path), true, nil
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}

// Record is one stored resource document.
type Record struct {
	// Partition groups records of one resource type (e.g. "Job",
	// "JobExecution-{jobId}").
	Partition string

	// ID is the resource's URI-like identifier, unique within the partition.
	ID string

	// StatusPartition is the status-filtered partition key (e.g.
	// "Job-Running"). Optional.
	StatusPartition string

	// Created is the record's creation instant. It is stored as an epoch-ms
	// sort key; the RFC 3339 form lives inside Body.
	Created time.Time

	// Body is the resource document as JSON.
	Body json.RawMessage
}

// Store is the resource store handle. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens the backing database, applies local tuning and ensures the
// schema exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dsn, local, err := cfg.dsn()
	if err != nil {
		return nil, err
	}
	if !local && !remoteCapable {
		return nil, errors.New("remote libsql databases require a cgo build")
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open resource store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping resource store: %w", err)
	}

	s := &Store{db: db}
	if local {
		if err := s.tune(ctx, cfg.BusyTimeout); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// tune configures a local SQLite database: a single connection (every
// write is a full-row upsert; fan-out buys nothing under SQLite's single
// writer) with WAL so lease polling does not block job reads.
func (s *Store) tune(ctx context.Context, busyTimeout time.Duration) error {
	s.db.SetMaxOpenConns(1)
	s.db.SetMaxIdleConns(1)

	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS store_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`INSERT OR IGNORE INTO store_meta (id, schema_version, created_at) VALUES (1, ?, ?);`,
		`CREATE TABLE IF NOT EXISTS resources (
			partition TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			status_partition TEXT,
			created_ms INTEGER NOT NULL,
			body TEXT NOT NULL,
			PRIMARY KEY (partition, resource_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_resources_created ON resources(partition, created_ms);`,
		`CREATE INDEX IF NOT EXISTS idx_resources_status ON resources(status_partition, created_ms);`,
		`CREATE TABLE IF NOT EXISTS mutex_leases (
			resource_id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			expires_ms INTEGER NOT NULL
		);`,
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, stmt := range stmts {
		if i == 1 {
			if _, err := s.db.ExecContext(ctx, stmt, schemaVersion, now); err != nil {
				return fmt.Errorf("init schema meta: %w", err)
			}
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Put inserts or replaces a record.
//
// A zero Created timestamp is dropped rather than stored as a bogus epoch
// value; such records sort first and carry no date in the body either.
func (s *Store) Put(ctx context.Context, rec Record) error {
	if rec.Partition == "" || rec.ID == "" {
		return fmt.Errorf("partition and resource id are required")
	}

	var createdMs int64
	if !rec.Created.IsZero() {
		createdMs = rec.Created.UTC().UnixMilli()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (partition, resource_id, status_partition, created_ms, body)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(partition, resource_id) DO UPDATE SET
			status_partition=excluded.status_partition,
			created_ms=excluded.created_ms,
			body=excluded.body
	`, rec.Partition, rec.ID, nullable(rec.StatusPartition), createdMs, string(rec.Body))
	if err != nil {
		return fmt.Errorf("put resource %s/%s: %w", rec.Partition, rec.ID, err)
	}
	return nil
}

// Get returns a record by partition and id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, partition, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT status_partition, created_ms, body
		FROM resources
		WHERE partition = ? AND resource_id = ?
	`, partition, id)

	var (
		statusPartition sql.NullString
		createdMs       int64
		body            string
	)
	if err := row.Scan(&statusPartition, &createdMs, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, partition, id)
		}
		return nil, fmt.Errorf("get resource %s/%s: %w", partition, id, err)
	}

	rec := &Record{
		Partition: partition,
		ID:        id,
		Body:      json.RawMessage(body),
	}
	if statusPartition.Valid {
		rec.StatusPartition = statusPartition.String
	}
	if createdMs > 0 {
		rec.Created = time.UnixMilli(createdMs).UTC()
	}
	return rec, nil
}

// Delete removes a record. Deleting an absent record is a no-op.
func (s *Store) Delete(ctx context.Context, partition, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM resources WHERE partition = ? AND resource_id = ?
	`, partition, id)
	if err != nil {
		return fmt.Errorf("delete resource %s/%s: %w", partition, id, err)
	}
	return nil
}

// Count returns the number of records in a partition.
func (s *Store) Count(ctx context.Context, partition string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM resources WHERE partition = ?
	`, partition).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count partition %s: %w", partition, err)
	}
	return n, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
