// Package backendtest provides a scriptable in-memory backend.Driver.
//
// Responses are scripted per SQL text. Every driver call is counted, and
// connection loss can be injected for a number of upcoming calls.
package backendtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tianxinzizhen/asyncdb/backend"
	"github.com/tianxinzizhen/asyncdb/param"
)

// Call names a driver call.
type Call int

const (
	CallConnect Call = iota
	CallQuery
	CallStoreResult
	CallPrepare
	CallExecute
	CallFetch
	CallFetchColumn
	CallClose
	callCount
)

// Script is the scripted response to one SQL text.
type Script struct {
	Columns  []backend.Column
	Rows     [][]any
	Affected uint64
	InsertID uint64

	// Params is the placeholder count reported when the text is prepared.
	Params int

	// Err fails Query and Execute; PrepareErr fails Prepare; CloseErr fails
	// closing a prepared statement.
	Err        error
	PrepareErr error
	CloseErr   error

	// LateColumns hides the columns from a prepared statement until it executed.
	LateColumns bool

	// MissingRows makes the driver report more rows than it delivers.
	MissingRows int

	// Next is the following result set of multi-statement text.
	Next *Script
}

// Executed is one recorded statement execution.
type Executed struct {
	Query  string
	Params []any
}

type Driver struct {
	mu         sync.Mutex
	scripts    map[string]*Script
	calls      [callCount]int
	lose       [callCount]int
	conns      []*Conn
	executed   []Executed
	queries    []string
	ConnectErr error
}

func New() *Driver {
	return &Driver{scripts: make(map[string]*Script)}
}

// Script sets the response to query.
func (d *Driver) Script(query string, s *Script) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts[query] = s
}

// Lose makes the next times calls of c fail with a lost connection. The
// driver reconnects transparently each time.
func (d *Driver) Lose(c Call, times int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lose[c] = times
}

// Reconnect raises the reconnect flag of every open connection without failing a call.
func (d *Driver) Reconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.conns {
		c.reconnected = true
	}
}

// Calls returns how often c was called.
func (d *Driver) Calls(c Call) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[c]
}

// Queries returns the text of every Query call.
func (d *Driver) Queries() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.queries...)
}

// Executions returns every statement execution with its decoded parameters.
func (d *Driver) Executions() []Executed {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Executed(nil), d.executed...)
}

// OpenConns counts the connections not closed yet.
func (d *Driver) OpenConns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.conns {
		if !c.closed {
			n++
		}
	}
	return n
}

func (d *Driver) Escape(text string) string {
	return param.EscapeBackslash(text)
}

func (d *Driver) Connect(ctx context.Context, cfg backend.Config) (backend.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[CallConnect]++
	if d.ConnectErr != nil {
		return nil, d.ConnectErr
	}
	c := &Conn{d: d}
	d.conns = append(d.conns, c)
	return c, nil
}

// call counts c and reports an injected connection loss. d.mu is held.
func (d *Driver) call(conn *Conn, c Call) error {
	d.calls[c]++
	if d.lose[c] > 0 {
		d.lose[c]--
		conn.reconnected = true
		return backend.Lost(errors.New("MySQL server has gone away"))
	}
	return nil
}

func (d *Driver) script(query string) (*Script, error) {
	s, ok := d.scripts[query]
	if !ok {
		return nil, fmt.Errorf("You have an error in your SQL syntax near '%s'", query)
	}
	return s, nil
}

// Conn is a connection of Driver.
type Conn struct {
	d           *Driver
	current     *Script
	reconnected bool
	closed      bool
}

var errClosed = errors.New("backendtest: connection closed")

func (c *Conn) Query(ctx context.Context, text string) (bool, error) {
	d := c.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.closed {
		return false, errClosed
	}
	d.queries = append(d.queries, text)
	if err := d.call(c, CallQuery); err != nil {
		return false, err
	}
	s, err := d.script(text)
	if err != nil {
		return false, err
	}
	if s.Err != nil {
		return false, s.Err
	}
	c.current = s
	return len(s.Columns) > 0, nil
}

func (c *Conn) StoreResult(ctx context.Context) (backend.Rows, error) {
	d := c.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call(c, CallStoreResult); err != nil {
		return nil, err
	}
	if c.current == nil || len(c.current.Columns) == 0 {
		return nil, nil
	}
	return &Rows{script: c.current}, nil
}

func (c *Conn) NextResult(ctx context.Context) (bool, error) {
	d := c.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.current == nil || c.current.Next == nil {
		c.current = nil
		return false, nil
	}
	c.current = c.current.Next
	return true, nil
}

func (c *Conn) AffectedRows() uint64 {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if c.current == nil {
		return 0
	}
	return c.current.Affected
}

func (c *Conn) InsertID() uint64 {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	if c.current == nil {
		return 0
	}
	return c.current.InsertID
}

func (c *Conn) Prepare(ctx context.Context, text string) (backend.Stmt, error) {
	d := c.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.closed {
		return nil, errClosed
	}
	if err := d.call(c, CallPrepare); err != nil {
		return nil, err
	}
	s, err := d.script(text)
	if err != nil {
		return nil, err
	}
	if s.PrepareErr != nil {
		return nil, s.PrepareErr
	}
	return &Stmt{conn: c, query: text, script: s}, nil
}

func (c *Conn) Reconnected() bool {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	r := c.reconnected
	c.reconnected = false
	return r
}

func (c *Conn) Close() error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.calls[CallClose]++
	c.closed = true
	return nil
}

// Rows is a stored text result.
type Rows struct {
	script *Script
	cursor int
}

func (r *Rows) Columns() []backend.Column {
	return r.script.Columns
}

func (r *Rows) NumRows() int {
	return len(r.script.Rows) + r.script.MissingRows
}

func (r *Rows) FetchRow() ([][]byte, error) {
	if r.cursor >= len(r.script.Rows) {
		return nil, backend.ErrNoData
	}
	row := r.script.Rows[r.cursor]
	r.cursor++
	cells := make([][]byte, len(row))
	for i, v := range row {
		cells[i] = backend.TextValue(v)
	}
	return cells, nil
}

func (r *Rows) Close() error {
	return nil
}

// Stmt is a prepared statement of Conn.
type Stmt struct {
	conn     *Conn
	query    string
	script   *Script
	executed bool
	rows     [][]any
	cursor   int
}

func (s *Stmt) ParamCount() int {
	return s.script.Params
}

func (s *Stmt) Columns() []backend.Column {
	if s.script.LateColumns && !s.executed {
		return nil
	}
	return s.script.Columns
}

func (s *Stmt) Execute(ctx context.Context, params []backend.Bind) error {
	d := s.conn.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call(s.conn, CallExecute); err != nil {
		return err
	}
	if len(params) != s.script.Params {
		return fmt.Errorf("Incorrect arguments to mysqld_stmt_execute: %d for %d", len(params), s.script.Params)
	}
	values := make([]any, len(params))
	for i, b := range params {
		v, err := backend.DecodeBind(b)
		if err != nil {
			return err
		}
		values[i] = v
	}
	d.executed = append(d.executed, Executed{Query: s.query, Params: values})
	if s.script.Err != nil {
		return s.script.Err
	}
	s.executed = true
	s.rows = nil
	s.cursor = 0
	return nil
}

func (s *Stmt) AffectedRows() uint64 {
	return s.script.Affected
}

func (s *Stmt) InsertID() uint64 {
	return s.script.InsertID
}

func (s *Stmt) StoreResult(ctx context.Context) error {
	d := s.conn.d
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call(s.conn, CallStoreResult); err != nil {
		return err
	}
	s.rows = s.script.Rows
	s.cursor = 0
	return nil
}

func (s *Stmt) NumRows() int {
	return len(s.rows) + s.script.MissingRows
}

func (s *Stmt) Fetch(binds []backend.OutBind) (backend.FetchStatus, error) {
	d := s.conn.d
	d.mu.Lock()
	d.calls[CallFetch]++
	d.mu.Unlock()
	if s.cursor >= len(s.rows) {
		return backend.FetchNoData, nil
	}
	row := s.rows[s.cursor]
	s.cursor++
	return backend.FetchValues(row, binds)
}

func (s *Stmt) FetchColumn(bind *backend.OutBind, column int, offset int) error {
	d := s.conn.d
	d.mu.Lock()
	d.calls[CallFetchColumn]++
	d.mu.Unlock()
	if s.cursor == 0 || column < 0 || column >= len(s.rows[s.cursor-1]) {
		return fmt.Errorf("Invalid column %d", column)
	}
	return backend.FetchValue(s.rows[s.cursor-1][column], bind, offset)
}

func (s *Stmt) Close() error {
	return s.script.CloseErr
}
