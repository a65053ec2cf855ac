// Package testutil provides a stub database/sql driver that emulates the
// postgres snapshot table for store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync/atomic"
)

var stubSeq atomic.Int64

// StubConn keeps the state table rows in memory and records executed statements.
type StubConn struct {
	Execs      []string
	Rows       map[string][]byte
	FailPing   bool
	FailBegin  bool
	FailCommit bool
	FailQuery  bool
	FailUpsert string
	pending    map[string][]byte
}

// NewStubDB registers a fresh driver and returns a sql.DB backed by its connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Rows: make(map[string][]byte)}
	name := fmt.Sprintf("labcore-stubpg-%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx. Upserts are staged until commit.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("begin fail")
	}
	c.pending = make(map[string][]byte)
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO STATE") {
		return driver.RowsAffected(0), nil
	}
	if len(args) != 2 {
		return nil, fmt.Errorf("expected bucket and payload, got %d args", len(args))
	}
	bucket, _ := args[0].Value.(string)
	if bucket == c.FailUpsert {
		return nil, fmt.Errorf("upsert fail for %s", bucket)
	}
	payload, _ := args[1].Value.([]byte)
	target := c.Rows
	if c.pending != nil {
		target = c.pending
	}
	target[bucket] = slices.Clone(payload)
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext for SELECT bucket, payload FROM state.
func (c *StubConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	if c.FailQuery {
		return nil, errors.New("query fail")
	}
	rows := &stubRows{}
	for bucket, payload := range c.Rows {
		rows.values = append(rows.values, []driver.Value{bucket, payload})
	}
	return rows, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	defer func() { t.conn.pending = nil }()
	if t.conn.FailCommit {
		return errors.New("commit fail")
	}
	for k, v := range t.conn.pending {
		t.conn.Rows[k] = v
	}
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.pending = nil
	return nil
}

type stubRows struct {
	values [][]driver.Value
	idx    int
}

func (r *stubRows) Columns() []string { return []string{"bucket", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}
