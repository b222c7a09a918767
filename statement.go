package asyncdb

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/tianxinzizhen/asyncdb/backend"
	"github.com/tianxinzizhen/asyncdb/param"
	"go.uber.org/zap"
)

// StatementState is the lifecycle state of a prepared statement.
type StatementState int32

const (
	StateUninitialized StatementState = iota
	StatePreparing
	StateReady
	StateExecuting
	StateInvalid
)

func (s StatementState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePreparing:
		return "preparing"
	case StateReady:
		return "ready"
	case StateExecuting:
		return "executing"
	case StateInvalid:
		return "invalid"
	}
	return "unknown"
}

// Statement is a prepared statement of one Connection.
//
// When the connection is re-established underneath a statement, the next
// execution prepares it again and retries once. A statement the server
// refuses to prepare becomes invalid and refuses to execute.
type Statement struct {
	id    string
	conn  *Connection
	query string
	log   *zap.Logger

	state      atomic.Int32
	paramCount atomic.Int32

	mu         sync.Mutex
	prepared   bool
	prepareErr error
	onPrepared func(error)

	// owned by the worker
	handle     backend.Stmt
	info       *resultInfo
	generation uint64
}

func (c *Connection) newStatement(query string) *Statement {
	s := &Statement{
		id:    uuid.NewString(),
		conn:  c,
		query: query,
	}
	s.log = c.log.With(zap.String("stmt", s.id))
	s.paramCount.Store(-1)

	op := operation{
		release: c.reactor.Hold(),
		run: func(bool) (*Result, error) {
			c.statements[s] = struct{}{}
			err := c.ready()
			if err == nil {
				c.checkReconnect()
				err = s.ensurePrepared(false)
			} else {
				s.state.Store(int32(StateInvalid))
			}
			s.notifyPrepared(err)
			return nil, nil
		},
	}
	if err := c.submit(op); err != nil {
		c.deliver(op, true, nil, err)
		s.state.Store(int32(StateInvalid))
		s.notifyPrepared(err)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Statement) State() StatementState {
	return StatementState(s.state.Load())
}

// Query returns the statement text.
func (s *Statement) Query() string {
	return s.query
}

// OnPrepared registers a callback run on the reactor once the first
// preparation finished, with nil on success. Registered afterwards, it is
// scheduled right away.
func (s *Statement) OnPrepared(callback func(err error)) *Statement {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.prepared {
		s.onPrepared = callback
		return s
	}
	err := s.prepareErr
	s.conn.reactor.Post(func() { callback(err) })
	return s
}

func (s *Statement) notifyPrepared(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prepared {
		return
	}
	s.prepared = true
	s.prepareErr = err
	if callback := s.onPrepared; callback != nil {
		s.onPrepared = nil
		s.conn.reactor.Post(func() { callback(err) })
	}
}

// Execute binds params and runs the statement. A statement without result
// columns succeeds with the affected row count and last insert id.
func (s *Statement) Execute(params ...any) *Deferred {
	c := s.conn
	set, err := param.NewSet(params...)
	if err != nil {
		return c.failed(err)
	}
	if err := s.precheck(set.Len()); err != nil {
		set.Release()
		return c.failed(err)
	}
	op := operation{
		d:       newDeferred(),
		release: c.reactor.Hold(),
		run: func(observed bool) (*Result, error) {
			defer set.Release()
			return s.run(set, params, observed)
		},
	}
	if err := c.submit(op); err != nil {
		set.Release()
		c.deliver(op, true, nil, err)
	}
	return op.d
}

// precheck fails what can be decided without the worker.
func (s *Statement) precheck(n int) error {
	switch s.State() {
	case StateInvalid:
		return ErrInvalidStatement
	case StateReady, StateExecuting:
		if want := int(s.paramCount.Load()); want >= 0 && want != n {
			return paramCountErr(want, n)
		}
	}
	return nil
}

func paramCountErr(want, got int) error {
	return fmt.Errorf("%w: statement takes %d, got %d", ErrParamCount, want, got)
}

// Close releases the statement handle. Executions submitted before it still run.
func (s *Statement) Close() error {
	c := s.conn
	op := operation{
		release: c.reactor.Hold(),
		run: func(bool) (*Result, error) {
			delete(c.statements, s)
			s.invalidate()
			return nil, nil
		},
	}
	if err := c.submit(op); err != nil {
		c.deliver(op, true, nil, err)
		return err
	}
	return nil
}

// ensurePrepared brings the statement to Ready, preparing it again when the
// connection was re-established since. A lost connection is retried once
// unless retried says the operation already used its retry. A statement that
// lost its connection stays re-preparable. Worker only.
func (s *Statement) ensurePrepared(retried bool) error {
	c := s.conn
	switch s.State() {
	case StateInvalid:
		return ErrInvalidStatement
	case StateReady:
		if s.generation == c.generation {
			return nil
		}
	}
	err := s.prepare()
	if c.lost(err) {
		if retried {
			s.state.Store(int32(StateUninitialized))
			return reconnectErr{driverErr(PrepareAction, err)}
		}
		s.log.Warn("connection lost while preparing, retrying")
		if err = s.prepare(); c.lost(err) {
			s.state.Store(int32(StateUninitialized))
			return reconnectErr{driverErr(PrepareAction, err)}
		}
	}
	if err != nil {
		s.state.Store(int32(StateInvalid))
		s.log.Debug("prepare failed", zap.String("query", s.query), zap.Error(err))
		return driverErr(PrepareAction, err)
	}
	return nil
}

func (s *Statement) prepare() error {
	c := s.conn
	s.reset()
	s.state.Store(int32(StatePreparing))
	handle, err := c.handle.Prepare(c.ctx, s.query)
	if err != nil {
		return err
	}
	s.handle = handle
	s.generation = c.generation
	s.paramCount.Store(int32(handle.ParamCount()))
	if columns := handle.Columns(); columns != nil {
		s.info = newResultInfo(columns)
	}
	s.state.Store(int32(StateReady))
	return nil
}

// reset drops the handle; the next execution prepares again. Worker only.
func (s *Statement) reset() {
	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			s.log.Debug("closing statement handle failed", zap.Error(err))
		}
		s.handle = nil
	}
	s.info = nil
	s.paramCount.Store(-1)
	s.state.CompareAndSwap(int32(StateReady), int32(StateUninitialized))
}

func (s *Statement) invalidate() {
	s.reset()
	s.state.Store(int32(StateInvalid))
}

// run executes the statement with set, retrying once on a re-established
// connection. Worker only.
func (s *Statement) run(set *param.Set, args []any, observed bool) (*Result, error) {
	c := s.conn
	if err := c.ready(); err != nil {
		return nil, err
	}
	c.checkReconnect()
	if err := s.ensurePrepared(false); err != nil {
		return nil, err
	}
	if want := int(s.paramCount.Load()); want >= 0 && want != set.Len() {
		return nil, paramCountErr(want, set.Len())
	}
	recordSql(c.ctx, s.query, args)
	err := s.execute(set)
	if c.lost(err) {
		s.log.Warn("connection lost during execute, retrying")
		if err = s.ensurePrepared(true); err != nil {
			return nil, err
		}
		if err = s.execute(set); c.lost(err) {
			return nil, reconnectErr{driverErr(ExecuteAction, err)}
		}
	}
	if err != nil {
		return nil, driverErr(ExecuteAction, err)
	}
	if !observed {
		return nil, nil
	}
	return s.result()
}

func (s *Statement) execute(set *param.Set) error {
	s.state.Store(int32(StateExecuting))
	defer s.state.CompareAndSwap(int32(StateExecuting), int32(StateReady))
	return s.handle.Execute(s.conn.ctx, set.Binds())
}

func (s *Statement) result() (*Result, error) {
	if s.info == nil {
		// some drivers describe the columns only once executed
		if columns := s.handle.Columns(); columns != nil {
			s.info = newResultInfo(columns)
		}
	}
	if s.info == nil {
		return statusResult(s.handle.AffectedRows(), s.handle.InsertID()), nil
	}
	set, err := s.info.rows(s.conn.ctx, s.handle)
	if err != nil {
		return nil, err
	}
	return rowsResult(set), nil
}
