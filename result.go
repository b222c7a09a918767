package asyncdb

import (
	"fmt"
	"iter"

	"github.com/tianxinzizhen/asyncdb/backend"
)

// resultSet is the immutable storage of one fetched row set, shared by every
// Result, Row and Field derived from it.
type resultSet struct {
	columns []backend.Column
	names   map[string]int
	rows    [][]Field
}

func newResultSet(columns []backend.Column, rows int) *resultSet {
	set := &resultSet{
		columns: columns,
		names:   make(map[string]int, len(columns)),
		rows:    make([][]Field, 0, rows),
	}
	for i, c := range columns {
		set.names[c.Name] = i
	}
	return set
}

// Result is the outcome of a query or statement execution: either a row
// set, or the affected-row count and last insert id of a statement without
// result columns. The zero value, and a nil *Result, is invalid and empty.
type Result struct {
	set      *resultSet
	affected uint64
	insertID uint64
	valid    bool
	next     *Result
}

func rowsResult(set *resultSet) *Result {
	return &Result{set: set, valid: true}
}

func statusResult(affected, insertID uint64) *Result {
	return &Result{affected: affected, insertID: insertID, valid: true}
}

func (r *Result) Valid() bool {
	return r != nil && r.valid
}

func (r *Result) AffectedRows() uint64 {
	if r == nil {
		return 0
	}
	return r.affected
}

func (r *Result) InsertID() uint64 {
	if r == nil {
		return 0
	}
	return r.insertID
}

// Len is the number of rows.
func (r *Result) Len() int {
	if r == nil || r.set == nil {
		return 0
	}
	return len(r.set.rows)
}

// Columns lists the column names in order; nil without a row set.
func (r *Result) Columns() []string {
	if r == nil || r.set == nil {
		return nil
	}
	names := make([]string, len(r.set.columns))
	for i, c := range r.set.columns {
		names[i] = c.Name
	}
	return names
}

// Row returns row index.
func (r *Result) Row(index int) (Row, error) {
	if r == nil || r.set == nil {
		return Row{}, ErrInvalidResult
	}
	if index < 0 || index >= len(r.set.rows) {
		return Row{}, fmt.Errorf("%w: row %d of %d", ErrInvalidResult, index, len(r.set.rows))
	}
	return Row{set: r.set, fields: r.set.rows[index]}, nil
}

// Rows iterates the rows in order.
func (r *Result) Rows() iter.Seq2[int, Row] {
	return func(yield func(int, Row) bool) {
		if r == nil || r.set == nil {
			return
		}
		for i, fields := range r.set.rows {
			if !yield(i, Row{set: r.set, fields: fields}) {
				return
			}
		}
	}
}

// Next returns the following result set of multi-statement query text, nil after the last.
func (r *Result) Next() *Result {
	if r == nil {
		return nil
	}
	return r.next
}

// Row is one row of a Result, addressable by position and by column name.
type Row struct {
	set    *resultSet
	fields []Field
}

func (r Row) Len() int {
	return len(r.fields)
}

// At returns the field at position index.
func (r Row) At(index int) (Field, error) {
	if index < 0 || index >= len(r.fields) {
		return Field{}, fmt.Errorf("%w: index %d of %d", ErrNoSuchField, index, len(r.fields))
	}
	return r.fields[index], nil
}

// Get returns the field of column name.
func (r Row) Get(name string) (Field, error) {
	if r.set == nil {
		return Field{}, fmt.Errorf("%w: %s", ErrNoSuchField, name)
	}
	index, ok := r.set.names[name]
	if !ok {
		return Field{}, fmt.Errorf("%w: %s", ErrNoSuchField, name)
	}
	return r.fields[index], nil
}

// Fields iterates column name and field pairs in column order.
func (r Row) Fields() iter.Seq2[string, Field] {
	return func(yield func(string, Field) bool) {
		for i, f := range r.fields {
			if !yield(r.set.columns[i].Name, f) {
				return
			}
		}
	}
}
