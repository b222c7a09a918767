package asyncdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/tianxinzizhen/asyncdb/backend"
)

// resultInfo describes how the rows of a prepared statement are bound.
type resultInfo struct {
	columns []backend.Column
	binds   []backend.OutBind
}

// newResultInfo maps every column onto the buffer type it is fetched as.
func newResultInfo(columns []backend.Column) *resultInfo {
	info := &resultInfo{
		columns: columns,
		binds:   make([]backend.OutBind, len(columns)),
	}
	for i, c := range columns {
		bind := backend.OutBind{Type: bufferType(c.Type)}
		if c.Type.IsNumeric() {
			bind.Unsigned = c.Unsigned
		}
		info.binds[i] = bind
	}
	return info
}

func bufferType(t backend.FieldType) backend.FieldType {
	switch t {
	case backend.TypeInt24:
		// no 24-bit buffer, fetch into a 32-bit one
		return backend.TypeLong
	case backend.TypeDecimal, backend.TypeNewDecimal, backend.TypeEnum, backend.TypeSet:
		// sent as their string representation
		return backend.TypeString
	case backend.TypeGeometry, backend.TypeBit:
		// width depends on the subtype, fetch as variable-length binary
		return backend.TypeBlob
	}
	return t
}

// rowBinds prepares the output binds for one row: fixed-width values get a
// buffer of their own, variable-length values get none so the first fetch
// only reports their length.
func (info *resultInfo) rowBinds() []backend.OutBind {
	binds := make([]backend.OutBind, len(info.binds))
	copy(binds, info.binds)
	for i := range binds {
		if size := binds[i].Type.Size(); size > 0 {
			binds[i].Buffer = make([]byte, size)
		}
	}
	return binds
}

// rows stores and decodes the result of the last execution of stmt.
func (info *resultInfo) rows(ctx context.Context, stmt backend.Stmt) (*resultSet, error) {
	if err := stmt.StoreResult(ctx); err != nil {
		return nil, driverErr(FetchAction, err)
	}
	count := stmt.NumRows()
	set := newResultSet(info.columns, count)
	for i := 0; i < count; i++ {
		binds := info.rowBinds()
		status, err := stmt.Fetch(binds)
		if err != nil {
			return nil, driverErr(FetchAction, err)
		}
		switch status {
		case backend.FetchNoData:
			return nil, fmt.Errorf("%w: row %d of %d missing", ErrResultCorrupted, i, count)
		case backend.FetchTruncated:
			if err := fetchTruncated(stmt, binds); err != nil {
				return nil, err
			}
		}
		fields := make([]Field, len(binds))
		for j := range binds {
			f, err := decodeField(info.columns[j].Name, &binds[j])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			fields[j] = f
		}
		set.rows = append(set.rows, fields)
	}
	return set, nil
}

// fetchTruncated is the second fetch phase: every variable-length value the
// first phase withheld is read into a buffer of its reported length. NULL
// and empty values need no second read.
func fetchTruncated(stmt backend.Stmt, binds []backend.OutBind) error {
	for i := range binds {
		b := &binds[i]
		if b.Type.Size() > 0 || b.IsNull || !b.Truncated || b.Length == 0 {
			continue
		}
		b.Buffer = make([]byte, b.Length)
		if err := stmt.FetchColumn(b, i, 0); err != nil {
			return driverErr(FetchAction, err)
		}
	}
	return nil
}

// decodeField turns one fetched bind into a field. A buffer that does not
// fit its type fails with ErrResultCorrupted.
func decodeField(column string, b *backend.OutBind) (Field, error) {
	if b.IsNull || b.Type == backend.TypeNull {
		return nullField(column), nil
	}
	if size := b.Type.Size(); size > 0 && len(b.Buffer) != size {
		return Field{}, fmt.Errorf("%w: column %s holds %d bytes for %s", ErrResultCorrupted, column, len(b.Buffer), b.Type)
	}
	switch b.Type {
	case backend.TypeTiny, backend.TypeShort, backend.TypeLong, backend.TypeLongLong, backend.TypeYear:
		return Field{
			kind:     KindInteger,
			width:    uint8(len(b.Buffer)),
			unsigned: b.Unsigned,
			bits:     backend.Int(b.Buffer, b.Unsigned),
			column:   column,
		}, nil
	case backend.TypeFloat:
		return Field{kind: KindFloat, bits: uint64(binary.LittleEndian.Uint32(b.Buffer)), column: column}, nil
	case backend.TypeDouble:
		return Field{kind: KindDouble, bits: binary.LittleEndian.Uint64(b.Buffer), column: column}, nil
	case backend.TypeTime, backend.TypeDate, backend.TypeNewDate, backend.TypeDatetime, backend.TypeTimestamp:
		t, err := backend.DecodeTime(b.Buffer)
		if err != nil {
			return Field{}, fmt.Errorf("%w: column %s: %w", ErrResultCorrupted, column, err)
		}
		return Field{kind: KindTemporal, tm: t, column: column}, nil
	}
	if b.Length == 0 {
		return textField(column, []byte{}), nil
	}
	if b.Length > len(b.Buffer) {
		return Field{}, fmt.Errorf("%w: column %s reports %d bytes, %d fetched", ErrResultCorrupted, column, b.Length, len(b.Buffer))
	}
	return textField(column, b.Buffer[:b.Length:b.Length]), nil
}
