// Package asyncdb runs queries and prepared statements of a blocking SQL
// driver without blocking the caller's event loop.
//
// Every driver call of a Connection runs on a worker goroutine owned by the
// connection, one at a time and in submission order. Outcomes are delivered
// through a Deferred on the caller's reactor, typically an executor.Loop.
//
// Operations are handed to the worker when the reactor next runs, so
// callbacks registered right after the call, in the same reactor turn, are
// always seen. When no success or failure callback is registered the
// connection does not build the result at all.
package asyncdb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/tianxinzizhen/asyncdb/backend"
	"github.com/tianxinzizhen/asyncdb/executor"
	"github.com/tianxinzizhen/asyncdb/param"
	"go.uber.org/zap"
)

// Connection owns one driver connection and the worker that drives it.
type Connection struct {
	id      string
	driver  backend.Driver
	cfg     backend.Config
	reactor executor.Reactor
	worker  *executor.Worker
	ctx     context.Context
	log     *zap.Logger

	mu      sync.Mutex
	pending []operation
	closed  bool

	cacheMu sync.Mutex
	cache   map[string]*Statement

	// owned by the worker
	handle     backend.Conn
	connErr    error
	generation uint64
	statements map[*Statement]struct{}
}

// operation is a unit of driver work. run executes on the worker; observed
// tells it whether anyone waits for the result.
type operation struct {
	d       *Deferred
	release func()
	run     func(observed bool) (*Result, error)
}

// Connect starts connecting to the database described by cfg and returns
// at once. Outcomes are delivered on reactor.
func Connect(reactor executor.Reactor, driver backend.Driver, cfg backend.Config, opts ...Option) *Connection {
	o := newOptions(opts)
	c := &Connection{
		id:         uuid.NewString(),
		driver:     driver,
		cfg:        cfg,
		reactor:    reactor,
		ctx:        o.ctx,
		cache:      make(map[string]*Statement),
		statements: make(map[*Statement]struct{}),
	}
	c.log = o.log.With(zap.String("conn", c.id))
	c.worker = executor.NewWorker(c.log)

	release := c.reactor.Hold()
	onConnect := o.onConnect
	c.worker.Execute(func() {
		err := executor.Try(c.connect)
		if err == nil {
			err = c.connErr
		}
		c.reactor.Post(func() {
			defer release()
			if onConnect != nil {
				onConnect(err)
			}
		})
	})
	return c
}

// ID identifies the connection in logs.
func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) connect() {
	handle, err := c.driver.Connect(c.ctx, c.cfg)
	if err != nil {
		c.connErr = driverErr(ConnectAction, err)
		c.log.Error("connect failed", zap.String("host", c.cfg.Host), zap.String("database", c.cfg.Database), zap.Error(err))
		return
	}
	c.handle = handle
	c.log.Info("connected", zap.String("host", c.cfg.Host), zap.String("database", c.cfg.Database))
}

// Query runs raw SQL text. The success callback receives the first result
// set; further sets of multi-statement text follow through Result.Next.
func (c *Connection) Query(query string) *Deferred {
	return c.do(func(observed bool) (*Result, error) {
		return c.query(query, observed)
	})
}

// Execute substitutes params into the placeholders of query and runs the
// text like Query. A "?" placeholder takes a quoted, escaped value and a "!"
// placeholder an escaped value without quotes; numbers and NULL are never
// quoted. A placeholder count different from len(params) fails without
// reaching the driver.
func (c *Connection) Execute(query string, params ...any) *Deferred {
	if len(params) == 0 {
		return c.Query(query)
	}
	text, err := param.Interpolate(query, c.driver.Escape, params...)
	if err != nil {
		if errors.Is(err, param.ErrPlaceholderCount) {
			err = fmt.Errorf("%w: %w", ErrParamCount, err)
		}
		return c.failed(err)
	}
	return c.Query(text)
}

// Prepare creates a statement owned by the caller and starts preparing it.
func (c *Connection) Prepare(query string) *Statement {
	return c.newStatement(query)
}

// Statement returns the connection-owned statement for query, preparing it
// on first use. Statements are cached by query text; a reconnect empties
// the cache.
func (c *Connection) Statement(query string) *CachedStatement {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	s, ok := c.cache[query]
	if !ok {
		s = c.newStatement(query)
		c.cache[query] = s
	}
	return &CachedStatement{s: s}
}

// Close waits for every operation submitted before it, then closes all
// statements and the driver connection. Operations submitted afterwards
// fail with ErrClosed.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.dispatch()
	var err error
	c.worker.Execute(func() {
		err = c.teardown()
	})
	c.mu.Unlock()

	c.worker.Close()
	c.log.Debug("connection closed")
	return err
}

func (c *Connection) teardown() error {
	for s := range c.statements {
		s.invalidate()
	}
	clear(c.statements)
	c.cacheMu.Lock()
	clear(c.cache)
	c.cacheMu.Unlock()
	if c.handle == nil {
		return nil
	}
	err := c.handle.Close()
	c.handle = nil
	if err != nil {
		return driverErr(CloseAction, err)
	}
	return nil
}

func (c *Connection) do(run func(observed bool) (*Result, error)) *Deferred {
	op := operation{d: newDeferred(), release: c.reactor.Hold(), run: run}
	if err := c.submit(op); err != nil {
		c.deliver(op, true, nil, err)
	}
	return op.d
}

// failed returns a Deferred that fails with err without touching the worker.
func (c *Connection) failed(err error) *Deferred {
	op := operation{d: newDeferred(), release: c.reactor.Hold()}
	c.deliver(op, true, nil, err)
	return op.d
}

func (c *Connection) submit(op operation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.pending = append(c.pending, op)
	if len(c.pending) == 1 {
		c.reactor.Post(c.flush)
	}
	return nil
}

func (c *Connection) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatch()
}

// dispatch hands the pending operations to the worker in order. c.mu is held.
func (c *Connection) dispatch() {
	for _, op := range c.pending {
		observed := op.d == nil || op.d.requireStatus()
		c.worker.Execute(func() {
			var (
				r   *Result
				err error
			)
			if perr := executor.Try(func() { r, err = op.run(observed) }); perr != nil {
				c.log.Error("operation panicked", zap.Error(perr))
				err = perr
			}
			c.deliver(op, observed, r, err)
		})
	}
	c.pending = nil
}

func (c *Connection) deliver(op operation, observed bool, r *Result, err error) {
	c.reactor.Post(func() {
		defer op.release()
		switch {
		case op.d == nil:
		case err != nil:
			op.d.failure(err)
		case !observed:
			op.d.complete()
		default:
			op.d.success(r)
		}
	})
}

// ready reports whether the driver connection is usable. Worker only.
func (c *Connection) ready() error {
	if c.handle != nil {
		return nil
	}
	if c.connErr != nil {
		return fmt.Errorf("%w: %w", ErrNotConnected, c.connErr)
	}
	return ErrNotConnected
}

// checkReconnect consumes the driver's reconnect flag. Worker only.
func (c *Connection) checkReconnect() {
	if c.handle.Reconnected() {
		c.reconnected()
	}
}

// lost reports whether err, or the driver's flag, says the connection was
// re-established during the call. Worker only.
func (c *Connection) lost(err error) bool {
	if err == nil {
		return false
	}
	flagged := c.handle.Reconnected()
	if flagged || errors.Is(err, backend.ErrConnectionLost) {
		c.reconnected()
		return true
	}
	return false
}

// reconnected drops every prepared handle: they died with the old connection.
func (c *Connection) reconnected() {
	c.generation++
	c.cacheMu.Lock()
	cached := len(c.cache)
	c.cache = make(map[string]*Statement)
	c.cacheMu.Unlock()
	for s := range c.statements {
		s.reset()
	}
	c.log.Warn("connection re-established, statement cache invalidated",
		zap.Uint64("generation", c.generation), zap.Int("cached", cached))
}

func (c *Connection) query(query string, observed bool) (*Result, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	c.checkReconnect()
	recordSql(c.ctx, query, nil)
	hasResult, err := c.handle.Query(c.ctx, query)
	if err != nil {
		c.lost(err)
		return nil, driverErr(QueryAction, err)
	}
	if !observed {
		return nil, nil
	}
	var first, last *Result
	for {
		r, err := c.storeResult(hasResult)
		if err != nil {
			return nil, err
		}
		if first == nil {
			first = r
		} else {
			last.next = r
		}
		last = r
		more, err := c.handle.NextResult(c.ctx)
		if err != nil {
			return nil, driverErr(QueryAction, err)
		}
		if !more {
			return first, nil
		}
		// StoreResult tells whether a following set has rows
		hasResult = true
	}
}

func (c *Connection) storeResult(hasResult bool) (*Result, error) {
	if hasResult {
		rows, err := c.handle.StoreResult(c.ctx)
		if err != nil {
			return nil, driverErr(FetchAction, err)
		}
		if rows != nil {
			set, err := storeRows(rows)
			if err != nil {
				return nil, err
			}
			return rowsResult(set), nil
		}
	}
	return statusResult(c.handle.AffectedRows(), c.handle.InsertID()), nil
}
