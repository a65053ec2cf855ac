// Package sqlite provides a SQLite-backed persistent store. Every unit of work
// takes the database write lock, reloads the committed snapshot, runs on the
// in-memory engine and writes the result back before the lock is released.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"labcore/internal/infra/persistence/memory"
	"labcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// DefaultPath is used when no database path is configured.
const DefaultPath = "labcore.db"

// Applied to every pooled connection.
const connPragmas = "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"

// Store persists the in-memory state to a single SQLite table as JSON blobs.
// Several stores may share one database file.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path and hydrates the store from
// any snapshot it already holds.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path+connPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	snapshot, err := readSnapshot(context.Background(), db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db, path: path}, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readSnapshot(ctx context.Context, q queryer) (memory.Snapshot, error) {
	rows, err := q.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var snapshot memory.Snapshot
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan: %w", err)
		}
		if err := snapshot.DecodeBucket(bucket, payload); err != nil {
			return memory.Snapshot{}, err
		}
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate state: %w", err)
	}
	return snapshot, nil
}

// unit is one write transaction held open on a dedicated connection.
type unit struct {
	conn      *sql.Conn
	committed bool
}

func (u *unit) Load(ctx context.Context) (memory.Snapshot, error) {
	return readSnapshot(ctx, u.conn)
}

func (u *unit) Save(ctx context.Context, next memory.Snapshot) error {
	buckets, err := next.EncodeBuckets()
	if err != nil {
		return err
	}
	for _, bucket := range memory.BucketNames {
		if _, err := u.conn.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, buckets[bucket]); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if _, err := u.conn.ExecContext(ctx, `COMMIT`); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	u.committed = true
	return nil
}

// RunInTransaction runs fn under the database write lock against the latest
// committed snapshot. The in-memory state follows only a successful commit.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return domain.Result{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return domain.Result{}, fmt.Errorf("begin: %w", err)
	}
	u := &unit{conn: conn}
	defer func() {
		if !u.committed {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), `ROLLBACK`)
		}
	}()
	return s.RunDurable(ctx, u, fn)
}

// View runs fn against the latest committed snapshot in the database.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	snapshot, err := readSnapshot(ctx, s.db)
	if err != nil {
		return err
	}
	return memory.ViewSnapshot(snapshot, fn)
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
