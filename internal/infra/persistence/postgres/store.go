// Package postgres provides a Postgres-backed persistent store that mirrors the
// in-memory semantics. Units of work serialise on an advisory lock, reload the
// committed bucket table and write it back in the same database transaction.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"labcore/internal/infra/persistence/memory"
	"labcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/labcore?sslmode=disable"
	// stateLockKey identifies the advisory lock guarding the state table.
	stateLockKey int64 = 0x6c6162636f7265
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation for transactions.
type Store struct {
	*memory.Store
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to DefaultDSN),
// ensures the snapshot table exists, and hydrates the in-memory store from it.
func NewStore(ctx context.Context, dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
}

// RunInTransaction runs fn inside one database transaction holding the state
// advisory lock, against the snapshot committed by any process. The in-memory
// state follows only a successful commit.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Result{}, fmt.Errorf("begin tx: %w", err)
	}
	u := &unit{tx: tx}
	defer func() {
		if !u.committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, stateLockKey); err != nil {
		return domain.Result{}, fmt.Errorf("lock state: %w", err)
	}
	return s.RunDurable(ctx, u, fn)
}

// View runs fn against the latest committed snapshot in the database.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	snapshot, err := loadSnapshot(ctx, s.db)
	if err != nil {
		return err
	}
	return memory.ViewSnapshot(snapshot, fn)
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadSnapshot(ctx context.Context, q queryer) (memory.Snapshot, error) {
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
			return memory.Snapshot{}, fmt.Errorf("scan state: %w", err)
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

// unit adapts an open database transaction to memory.Durable.
type unit struct {
	tx        *sql.Tx
	committed bool
}

func (u *unit) Load(ctx context.Context) (memory.Snapshot, error) {
	return loadSnapshot(ctx, u.tx)
}

func (u *unit) Save(ctx context.Context, next memory.Snapshot) error {
	buckets, err := next.EncodeBuckets()
	if err != nil {
		return err
	}
	for _, bucket := range memory.BucketNames {
		if _, err := u.tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, bucket, buckets[bucket]); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	u.committed = true
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
