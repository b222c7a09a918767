package sqldriver

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/tianxinzizhen/asyncdb/backend"
)

// resultSet is one buffered row set.
type resultSet struct {
	columns []backend.Column
	rows    [][]any
}

// readRows buffers the current row set of rows. Columns whose type the
// dialect cannot name are typed after their first non-NULL value.
func readRows(rows *sql.Rows, d *dialect) (*resultSet, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	set := &resultSet{columns: make([]backend.Column, len(types))}
	unknown := make([]bool, len(types))
	for i, ct := range types {
		t, unsigned, ok := d.columnType(strings.ToUpper(ct.DatabaseTypeName()))
		set.columns[i] = backend.Column{Name: ct.Name(), Type: t, Unsigned: unsigned}
		unknown[i] = !ok
	}
	for rows.Next() {
		values := make([]any, len(types))
		dest := make([]any, len(types))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		set.rows = append(set.rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range set.columns {
		if unknown[i] {
			set.columns[i].Type = inferColumn(set.rows, i)
		}
	}
	return set, nil
}

func inferColumn(rows [][]any, column int) backend.FieldType {
	for _, row := range rows {
		if row[column] != nil {
			return backend.InferType(row[column])
		}
	}
	return backend.TypeVarString
}

// Rows is a stored text result set.
type Rows struct {
	set    *resultSet
	cursor int
}

func (r *Rows) Columns() []backend.Column {
	return r.set.columns
}

func (r *Rows) NumRows() int {
	return len(r.set.rows)
}

func (r *Rows) FetchRow() ([][]byte, error) {
	if r.cursor >= len(r.set.rows) {
		return nil, backend.ErrNoData
	}
	row := r.set.rows[r.cursor]
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

// Stmt is a prepared statement pinned to its Conn.
type Stmt struct {
	conn   *Conn
	stmt   *sqlx.Stmt
	query  string
	params int

	set    *resultSet
	cursor int
	status status
}

func (s *Stmt) ParamCount() int {
	return s.params
}

// Columns is nil until the statement executed: database/sql describes
// result columns only with the rows.
func (s *Stmt) Columns() []backend.Column {
	if s.set == nil {
		return nil
	}
	return s.set.columns
}

func (s *Stmt) Execute(ctx context.Context, params []backend.Bind) error {
	args := make([]any, len(params))
	for i, b := range params {
		v, err := backend.DecodeBind(b)
		if err != nil {
			return err
		}
		args[i] = v
	}
	s.set = nil
	s.cursor = 0
	s.status = status{}
	if returnsRows(s.query) {
		rows, err := s.stmt.QueryContext(ctx, args...)
		if err != nil {
			return s.conn.fail(ctx, err)
		}
		defer rows.Close()
		set, err := readRows(rows, s.conn.d)
		if err != nil {
			return s.conn.fail(ctx, err)
		}
		if len(set.columns) > 0 {
			s.set = set
		}
		return nil
	}
	res, err := s.stmt.ExecContext(ctx, args...)
	if err != nil {
		return s.conn.fail(ctx, err)
	}
	s.status = results(res)[0]
	return nil
}

func (s *Stmt) AffectedRows() uint64 {
	return s.status.affected
}

func (s *Stmt) InsertID() uint64 {
	return s.status.insertID
}

// StoreResult rewinds the rows buffered by Execute.
func (s *Stmt) StoreResult(ctx context.Context) error {
	s.cursor = 0
	return nil
}

func (s *Stmt) NumRows() int {
	if s.set == nil {
		return 0
	}
	return len(s.set.rows)
}

func (s *Stmt) Fetch(binds []backend.OutBind) (backend.FetchStatus, error) {
	if s.set == nil || s.cursor >= len(s.set.rows) {
		return backend.FetchNoData, nil
	}
	s.cursor++
	return backend.FetchValues(s.set.rows[s.cursor-1], binds)
}

func (s *Stmt) FetchColumn(bind *backend.OutBind, column int, offset int) error {
	if s.set == nil || s.cursor == 0 {
		return backend.ErrNoData
	}
	return backend.FetchValue(s.set.rows[s.cursor-1][column], bind, offset)
}

func (s *Stmt) Close() error {
	return s.stmt.Close()
}
