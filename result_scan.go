package asyncdb

import (
	"errors"
	"fmt"

	"github.com/tianxinzizhen/asyncdb/backend"
)

// storeRows materializes a text result set. Cells are copied into one
// arena owned by the result set so nothing refers to driver memory.
func storeRows(rows backend.Rows) (*resultSet, error) {
	defer rows.Close()
	columns := rows.Columns()
	count := rows.NumRows()
	set := newResultSet(columns, count)
	for i := 0; i < count; i++ {
		cells, err := rows.FetchRow()
		if errors.Is(err, backend.ErrNoData) {
			return nil, fmt.Errorf("%w: row %d of %d missing", ErrResultCorrupted, i, count)
		}
		if err != nil {
			return nil, driverErr(FetchAction, err)
		}
		if len(cells) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d cells for %d columns", ErrResultCorrupted, i, len(cells), len(columns))
		}
		size := 0
		for _, c := range cells {
			size += len(c)
		}
		arena := make([]byte, 0, size)
		fields := make([]Field, len(columns))
		for j, c := range cells {
			if c == nil {
				fields[j] = nullField(columns[j].Name)
				continue
			}
			start := len(arena)
			arena = append(arena, c...)
			fields[j] = textField(columns[j].Name, arena[start:len(arena):len(arena)])
		}
		set.rows = append(set.rows, fields)
	}
	return set, nil
}
