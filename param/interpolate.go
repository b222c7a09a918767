package param

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPlaceholderCount is returned when the placeholders of a query and the
// supplied parameters differ in number.
var ErrPlaceholderCount = errors.New("param: placeholder count mismatch")

// Writer accumulates interpolated query text.
type Writer struct {
	sql    strings.Builder
	params int
}

func (w *Writer) Grow(n int) {
	w.sql.Grow(n)
}

func (w *Writer) WriteString(s string) (int, error) {
	return w.sql.WriteString(s)
}

// WriteParam appends p quoted, or only escaped when quote is false.
func (w *Writer) WriteParam(p Local, quote bool, escape func(string) string) {
	w.params++
	if quote {
		w.sql.WriteString(p.Quote(escape))
		return
	}
	w.sql.WriteString(p.Escape(escape))
}

func (w *Writer) Sql() string {
	return w.sql.String()
}

// Params is the number of parameters written.
func (w *Writer) Params() int {
	return w.params
}

// Interpolate substitutes params into the placeholders of query, left to
// right. A '?' placeholder takes the value escaped and quoted, a '!'
// placeholder escaped only; numbers and NULL are never quoted. The number of
// placeholders must equal len(params).
func Interpolate(query string, escape func(string) string, params ...any) (string, error) {
	items := scan(query)
	placeholders := 0
	for _, it := range items {
		if it.typ == itemQuote || it.typ == itemBang {
			placeholders++
		}
	}
	if placeholders != len(params) {
		return "", fmt.Errorf("%w: query has %d placeholders, got %d parameters", ErrPlaceholderCount, placeholders, len(params))
	}

	locals := make([]Local, len(params))
	size := len(query)
	for i, v := range params {
		p, err := NewLocal(v)
		if err != nil {
			return "", fmt.Errorf("param %d: %w", i+1, err)
		}
		locals[i] = p
		size += p.Size()
	}

	w := &Writer{}
	w.Grow(size)
	for _, it := range items {
		switch it.typ {
		case itemText:
			w.WriteString(it.val)
		case itemQuote:
			w.WriteParam(locals[w.Params()], true, escape)
		case itemBang:
			w.WriteParam(locals[w.Params()], false, escape)
		}
	}
	return w.Sql(), nil
}
