package snowflake

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sync"
)

// fakeSession scripts driver behavior for one logical Snowflake session.
// Queries resolve against the results map by exact SQL text; "SELECT 1"
// answers according to the healthy flag so liveness-probe paths can be
// driven from tests.
type fakeSession struct {
	mu      sync.Mutex
	healthy bool
	blockOn chan struct{}
	results map[string]fakeResult
	queries []string
	closed  bool
}

type fakeResult struct {
	cols  []string
	types []string
	rows  [][]driver.Value
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		healthy: true,
		results: map[string]fakeResult{},
	}
}

func (s *fakeSession) script(query string, res fakeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[query] = res
}

func (s *fakeSession) setBlockOn(ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockOn = ch
}

func (s *fakeSession) setHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) seenQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// openFake wraps the session in a real database/sql handle.
func openFake(s *fakeSession) *sql.DB {
	return sql.OpenDB(fakeConnector{session: s})
}

type fakeConnector struct{ session *fakeSession }

func (c fakeConnector) Connect(context.Context) (driver.Conn, error) {
	return &fakeConn{session: c.session}, nil
}

func (c fakeConnector) Driver() driver.Driver { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("use the connector")
}

type fakeConn struct{ session *fakeSession }

func (c *fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}

func (c *fakeConn) Close() error {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	c.session.closed = true
	return nil
}

func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

func (c *fakeConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.session.mu.Lock()
	c.session.queries = append(c.session.queries, query)
	healthy := c.session.healthy
	res, scripted := c.session.results[query]
	blockOn := c.session.blockOn
	c.session.mu.Unlock()

	if blockOn != nil {
		select {
		case <-blockOn:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if query == "SELECT 1" {
		if !healthy {
			return nil, errors.New("terminated connection")
		}
		return &fakeRows{
			cols:  []string{"1"},
			types: []string{"FIXED"},
			rows:  [][]driver.Value{{int64(1)}},
		}, nil
	}

	if !scripted {
		return nil, fmt.Errorf("unscripted query: %s", query)
	}
	return &fakeRows{cols: res.cols, types: res.types, rows: res.rows}, nil
}

type fakeRows struct {
	cols  []string
	types []string
	rows  [][]driver.Value
	pos   int
}

func (r *fakeRows) Columns() []string { return r.cols }

func (r *fakeRows) ColumnTypeDatabaseTypeName(index int) string {
	if index < len(r.types) {
		return r.types[index]
	}
	return ""
}

func (r *fakeRows) Close() error { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}
