// Package backend defines the blocking database driver consumed by asyncdb.
//
// Implementations are not safe for concurrent use: a Conn, and every Stmt
// and Rows created from it, is driven by one goroutine at a time.
package backend

import (
	"context"
	"errors"
)

var (
	// ErrConnectionLost is returned (wrapped, see Lost) by Conn and Stmt
	// methods when the connection dropped during the call. The driver
	// reconnects before it returns this error and reports it through
	// Conn.Reconnected.
	ErrConnectionLost = errors.New("connection lost")

	// ErrNoData is returned by FetchRow when the cursor is exhausted.
	ErrNoData = errors.New("no data")
)

// Lost marks err as a connection loss. The error text stays err's own.
func Lost(err error) error {
	return lostError{err: err}
}

type lostError struct {
	err error
}

func (e lostError) Error() string {
	return e.err.Error()
}

func (e lostError) Unwrap() []error {
	return []error{ErrConnectionLost, e.err}
}

// Flags tune how a connection is established.
type Flags uint32

const (
	// FlagMultiStatements allows several statements in one Query text.
	FlagMultiStatements Flags = 1 << iota
	// FlagFoundRows reports matched instead of changed rows for UPDATE.
	FlagFoundRows
	// FlagCompress enables protocol compression where supported.
	FlagCompress
)

// Config holds what connect needs: host, user, pass, db and flags.
// DSN, when set, is passed to the driver as is and takes precedence.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Flags    Flags
	DSN      string
}

// Driver establishes connections and knows the escaping rules of its server.
type Driver interface {
	Connect(ctx context.Context, cfg Config) (Conn, error)

	// Escape escapes text for inclusion inside a quoted SQL literal. It does
	// not add the quotes.
	Escape(text string) string
}

// Conn is one exclusive connection handle.
type Conn interface {
	// Query runs raw SQL text and discards what is left of the previous
	// Query. It reports whether the first result set carries rows.
	Query(ctx context.Context, text string) (hasResult bool, err error)

	// StoreResult fetches the rows of the current result set, nil when the
	// current result set has no columns.
	StoreResult(ctx context.Context) (Rows, error)

	// NextResult advances to the next result set of multi-statement text.
	NextResult(ctx context.Context) (more bool, err error)

	// AffectedRows and InsertID describe the current result set.
	AffectedRows() uint64
	InsertID() uint64

	Prepare(ctx context.Context, text string) (Stmt, error)

	// Reconnected reports, and clears, whether the driver transparently
	// re-established the connection since the previous call.
	Reconnected() bool

	Close() error
}

// Rows is a stored text result set.
type Rows interface {
	Columns() []Column
	NumRows() int

	// FetchRow returns the text cells of the next row; a nil cell is NULL.
	// It returns ErrNoData past the last row.
	FetchRow() ([][]byte, error)

	Close() error
}

// Stmt is a prepared statement handle.
type Stmt interface {
	// ParamCount is the number of placeholders, -1 when the driver cannot tell.
	ParamCount() int

	// Columns describes the result set, nil when the statement yields none.
	// Drivers that learn the layout only on execution return nil until then.
	Columns() []Column

	Execute(ctx context.Context, params []Bind) error

	AffectedRows() uint64
	InsertID() uint64

	// StoreResult buffers the result rows of the last execution.
	StoreResult(ctx context.Context) error
	NumRows() int

	// Fetch decodes the next row into binds. Values that do not fit their
	// buffer are withheld and flagged Truncated, and the status is
	// FetchTruncated.
	Fetch(binds []OutBind) (FetchStatus, error)

	// FetchColumn copies column of the current row, starting at offset, into bind.Buffer.
	FetchColumn(bind *OutBind, column int, offset int) error

	Close() error
}
