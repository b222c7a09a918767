// Package sqldriver implements backend.Driver over database/sql for MySQL,
// SQLite and PostgreSQL.
//
// Each backend.Conn pins a single connection of a one-connection pool.
// When that connection breaks the call fails with backend.ErrConnectionLost,
// a fresh connection is taken from the pool and Reconnected reports it once.
package sqldriver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/tianxinzizhen/asyncdb/backend"
)

var (
	_ backend.Driver = (*Driver)(nil)
	_ backend.Conn   = (*Conn)(nil)
	_ backend.Rows   = (*Rows)(nil)
	_ backend.Stmt   = (*Stmt)(nil)
)

// Driver is a backend.Driver for one kind of server.
type Driver struct {
	d *dialect
}

func MySQL() *Driver {
	return &Driver{d: mysqlDialect}
}

func SQLite() *Driver {
	return &Driver{d: sqliteDialect}
}

func Postgres() *Driver {
	return &Driver{d: postgresDialect}
}

// ByName returns the driver registered with database/sql as name.
func ByName(name string) (*Driver, error) {
	switch name {
	case "mysql":
		return MySQL(), nil
	case "sqlite3", "sqlite":
		return SQLite(), nil
	case "postgres", "postgresql":
		return Postgres(), nil
	}
	return nil, fmt.Errorf("sqldriver: unknown driver %q", name)
}

func (d *Driver) Name() string {
	return d.d.name
}

func (d *Driver) Escape(text string) string {
	return d.d.escape(text)
}

func (d *Driver) Connect(ctx context.Context, cfg backend.Config) (backend.Conn, error) {
	db, err := d.d.open(cfg)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	conn, err := db.Connx(ctx)
	if err != nil {
		db.Close()
		return nil, &serverError{message: d.d.message(err), err: err}
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, &serverError{message: d.d.message(err), err: err}
	}
	return &Conn{db: db, conn: conn, d: d.d}, nil
}

// serverError carries the server's message without driver decoration.
type serverError struct {
	message string
	err     error
}

func (e *serverError) Error() string {
	return e.message
}

func (e *serverError) Unwrap() error {
	return e.err
}

// Conn is one pinned connection.
type Conn struct {
	db          *sqlx.DB
	conn        *sqlx.Conn
	d           *dialect
	reconnected bool

	// current result of Query
	rows     *sql.Rows
	set      *resultSet
	statuses []status
}

type status struct {
	affected uint64
	insertID uint64
}

// fail converts err into the error returned to the engine, replacing the
// connection when err broke it.
func (c *Conn) fail(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	wrapped := &serverError{message: c.d.message(err), err: err}
	if !c.d.lost(err) {
		return wrapped
	}
	c.reset()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connect(ctx)
	return backend.Lost(wrapped)
}

// connect takes a new connection from the pool. Worker only.
func (c *Conn) connect(ctx context.Context) error {
	conn, err := c.db.Connx(ctx)
	if err != nil {
		return err
	}
	c.conn = conn
	c.reconnected = true
	return nil
}

func (c *Conn) ensure(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	if err := c.connect(ctx); err != nil {
		return backend.Lost(&serverError{message: c.d.message(err), err: err})
	}
	return nil
}

func (c *Conn) reset() {
	if c.rows != nil {
		c.rows.Close()
		c.rows = nil
	}
	c.set = nil
	c.statuses = nil
}

func (c *Conn) Query(ctx context.Context, text string) (bool, error) {
	c.reset()
	if err := c.ensure(ctx); err != nil {
		return false, err
	}
	if returnsRows(text) {
		rows, err := c.conn.QueryContext(ctx, text)
		if err != nil {
			return false, c.fail(ctx, err)
		}
		c.rows = rows
		return c.readSet(ctx)
	}
	statuses, err := c.exec(ctx, text)
	if err != nil {
		return false, c.fail(ctx, err)
	}
	c.statuses = statuses
	return false, nil
}

// exec runs text through the driver connection so every statement of
// multi-statement text reports its own counts.
func (c *Conn) exec(ctx context.Context, text string) ([]status, error) {
	var statuses []status
	err := c.conn.Raw(func(dc any) error {
		execer, ok := dc.(driver.ExecerContext)
		if !ok {
			return driver.ErrSkip
		}
		res, err := execer.ExecContext(ctx, text, nil)
		if err != nil {
			return err
		}
		statuses = results(res)
		return nil
	})
	if errors.Is(err, driver.ErrSkip) {
		res, err := c.conn.ExecContext(ctx, text)
		if err != nil {
			return nil, err
		}
		return results(res), nil
	}
	return statuses, err
}

func results(res driver.Result) []status {
	if mr, ok := res.(mysql.Result); ok {
		affected, ids := mr.AllRowsAffected(), mr.AllLastInsertIds()
		statuses := make([]status, len(affected))
		for i := range affected {
			statuses[i].affected = uint64(affected[i])
			if i < len(ids) {
				statuses[i].insertID = uint64(ids[i])
			}
		}
		if len(statuses) > 0 {
			return statuses
		}
	}
	var s status
	if n, err := res.RowsAffected(); err == nil {
		s.affected = uint64(n)
	}
	if id, err := res.LastInsertId(); err == nil {
		s.insertID = uint64(id)
	}
	return []status{s}
}

// readSet buffers the current row set of c.rows.
func (c *Conn) readSet(ctx context.Context) (bool, error) {
	set, err := readRows(c.rows, c.d)
	if err != nil {
		c.reset()
		return false, c.fail(ctx, err)
	}
	if len(set.columns) == 0 {
		c.set = nil
		return false, nil
	}
	c.set = set
	return true, nil
}

func (c *Conn) StoreResult(ctx context.Context) (backend.Rows, error) {
	if c.set == nil {
		return nil, nil
	}
	return &Rows{set: c.set}, nil
}

func (c *Conn) NextResult(ctx context.Context) (bool, error) {
	if c.rows != nil {
		if !c.rows.NextResultSet() {
			err := c.rows.Err()
			c.reset()
			return false, c.fail(ctx, err)
		}
		if _, err := c.readSet(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	if len(c.statuses) > 1 {
		c.statuses = c.statuses[1:]
		return true, nil
	}
	c.statuses = nil
	return false, nil
}

func (c *Conn) AffectedRows() uint64 {
	if len(c.statuses) == 0 {
		return 0
	}
	return c.statuses[0].affected
}

func (c *Conn) InsertID() uint64 {
	if len(c.statuses) == 0 {
		return 0
	}
	return c.statuses[0].insertID
}

func (c *Conn) Prepare(ctx context.Context, text string) (backend.Stmt, error) {
	c.reset()
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	query := sqlx.Rebind(sqlx.BindType(c.db.DriverName()), text)
	n, err := c.numInput(ctx, query)
	if err != nil {
		return nil, c.fail(ctx, err)
	}
	stmt, err := c.conn.PreparexContext(ctx, query)
	if err != nil {
		return nil, c.fail(ctx, err)
	}
	return &Stmt{conn: c, stmt: stmt, query: query, params: n}, nil
}

// numInput asks the driver for the placeholder count of query.
func (c *Conn) numInput(ctx context.Context, query string) (int, error) {
	n := -1
	err := c.conn.Raw(func(dc any) error {
		var (
			ds  driver.Stmt
			err error
		)
		if p, ok := dc.(driver.ConnPrepareContext); ok {
			ds, err = p.PrepareContext(ctx, query)
		} else {
			ds, err = dc.(driver.Conn).Prepare(query)
		}
		if err != nil {
			return err
		}
		n = ds.NumInput()
		return ds.Close()
	})
	return n, err
}

func (c *Conn) Reconnected() bool {
	r := c.reconnected
	c.reconnected = false
	return r
}

func (c *Conn) Close() error {
	c.reset()
	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	return errors.Join(err, c.db.Close())
}
