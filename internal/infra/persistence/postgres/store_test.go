package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"

	"labcore/internal/infra/persistence/memory"
	"labcore/internal/infra/persistence/postgres/testutil"
	"labcore/pkg/domain"
	fixtures "labcore/testutil"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func TestNewStoreCreatesTableAndPersistsSnapshot(t *testing.T) {
	store, conn := openStub(t)
	if len(conn.Execs) == 0 || !strings.Contains(strings.ToUpper(conn.Execs[0]), "CREATE TABLE IF NOT EXISTS STATE") {
		t.Fatalf("expected state table ddl, got %v", conn.Execs)
	}
	fixtures.SeedReference(t, store)
	if _, ok := conn.Rows["users"]; !ok {
		t.Fatalf("expected users bucket persisted, got %v", conn.Rows)
	}

	db2, conn2 := testutil.NewStubDB()
	conn2.Rows = conn.Rows
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db2, nil })
	defer restore()
	reopened, err := NewStore(context.Background(), "postgres://ignored", nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = reopened.View(context.Background(), func(v domain.TransactionView) error {
		if _, ok := v.FindUser(fixtures.Username); !ok {
			t.Fatalf("expected user hydrated from snapshot")
		}
		return nil
	})
}

func TestNewStoreErrors(t *testing.T) {
	cases := map[string]func(*testutil.StubConn){
		"ping":  func(c *testutil.StubConn) { c.FailPing = true },
		"query": func(c *testutil.StubConn) { c.FailQuery = true },
		"decode": func(c *testutil.StubConn) {
			c.Rows["labware"] = []byte("{broken")
		},
	}
	for name, mutate := range cases {
		db, conn := testutil.NewStubDB()
		mutate(conn)
		restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
		if _, err := NewStore(context.Background(), "", nil); err == nil {
			t.Fatalf("%s: expected error", name)
		}
		restore()
	}
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("open fail") })
	defer restore()
	if _, err := NewStore(context.Background(), "", nil); err == nil {
		t.Fatalf("expected open error")
	}
}

func TestPersistFailuresLeaveSnapshotUntouched(t *testing.T) {
	store, conn := openStub(t)
	conn.FailUpsert = "users"
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateUser(domain.User{Username: "u"})
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "upsert users") {
		t.Fatalf("expected upsert failure, got %v", err)
	}
	if len(conn.Rows) != 0 {
		t.Fatalf("rolled back snapshot must not be visible, got %v", conn.Rows)
	}
	if users := store.ExportState().Users; len(users) != 0 {
		t.Fatalf("failed write must not reach the in-memory state, got %v", users)
	}
	conn.FailUpsert = ""
	conn.FailCommit = true
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateUser(domain.User{Username: "u"})
		return err
	}); err == nil {
		t.Fatalf("expected commit failure")
	}
	if users := store.ExportState().Users; len(users) != 0 {
		t.Fatalf("uncommitted write must not reach the in-memory state, got %v", users)
	}
}

func TestTransactionTakesAdvisoryLockAndReloadsCommittedState(t *testing.T) {
	store, conn := openStub(t)
	fixtures.SeedReference(t, store)

	var locked bool
	for _, q := range conn.Execs {
		if strings.Contains(q, "pg_advisory_xact_lock") {
			locked = true
		}
	}
	if !locked {
		t.Fatalf("expected advisory lock inside the unit of work, got %v", conn.Execs)
	}

	other := memory.NewStore(nil)
	fixtures.SeedReference(t, other)
	if _, err := other.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateUser(domain.User{Username: "elsewhere"})
		return err
	}); err != nil {
		t.Fatalf("other writer: %v", err)
	}
	buckets, err := other.ExportState().EncodeBuckets()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for name, payload := range buckets {
		conn.Rows[name] = payload
	}

	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		if _, ok := v.FindUser("elsewhere"); !ok {
			t.Fatalf("expected view to read the committed table")
		}
		return nil
	})
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, ok := tx.FindUser("elsewhere"); !ok {
			t.Fatalf("expected unit of work to start from the committed table")
		}
		_, err := tx.CreateUser(domain.User{Username: "here"})
		return err
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
	var saved memory.Snapshot
	if err := saved.DecodeBucket("users", conn.Rows["users"]); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(saved.Users) != 3 {
		t.Fatalf("expected both writers' users persisted, got %v", saved.Users)
	}
}

func TestStoreAgainstRealPostgres(t *testing.T) {
	dsn := os.Getenv("LABCORE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LABCORE_TEST_POSTGRES_DSN not set")
	}
	store, err := NewStore(context.Background(), dsn, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()
	if _, err := store.DB().Exec(`DELETE FROM state`); err != nil {
		t.Fatalf("reset state: %v", err)
	}
	store.ImportState(memory.Snapshot{})
	fixtures.SeedReference(t, store)
	reopened, err := NewStore(context.Background(), dsn, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if len(reopened.ExportState().OperationTypes) != len(domain.DefaultOperationTypes()) {
		t.Fatalf("expected operation types to round-trip")
	}
}
