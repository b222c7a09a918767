package param

import (
	"strconv"
	"time"

	"github.com/tianxinzizhen/asyncdb/backend"
)

// Local is a parameter rendered for inclusion in query text, for queries
// run without a prepared statement.
type Local struct {
	value    string
	integral bool
}

// NewLocal renders v: numbers in decimal, nil as NULL, everything else as
// text that still has to be escaped.
func NewLocal(v any) (Local, error) {
	v, err := Convert(v)
	if err != nil {
		return Local{}, err
	}
	switch x := v.(type) {
	case nil:
		return Local{value: "NULL", integral: true}, nil
	case bool:
		if x {
			return Local{value: "1", integral: true}, nil
		}
		return Local{value: "0", integral: true}, nil
	case int8:
		return integral(strconv.FormatInt(int64(x), 10)), nil
	case int16:
		return integral(strconv.FormatInt(int64(x), 10)), nil
	case int32:
		return integral(strconv.FormatInt(int64(x), 10)), nil
	case int64:
		return integral(strconv.FormatInt(x, 10)), nil
	case uint8:
		return integral(strconv.FormatUint(uint64(x), 10)), nil
	case uint16:
		return integral(strconv.FormatUint(uint64(x), 10)), nil
	case uint32:
		return integral(strconv.FormatUint(uint64(x), 10)), nil
	case uint64:
		return integral(strconv.FormatUint(x, 10)), nil
	case float32:
		return integral(strconv.FormatFloat(float64(x), 'g', -1, 32)), nil
	case float64:
		return integral(strconv.FormatFloat(x, 'g', -1, 64)), nil
	case string:
		return Local{value: x}, nil
	case []byte:
		return Local{value: string(x)}, nil
	case time.Time:
		return Local{value: backend.TimeOf(x).String()}, nil
	}
	return Local{}, ErrUnsupportedType
}

func integral(s string) Local {
	return Local{value: s, integral: true}
}

// Size is the most bytes the parameter can take in query text: text may
// double when escaped and gains two quotes.
func (p Local) Size() int {
	if p.integral {
		return len(p.value)
	}
	return len(p.value)*2 + 2
}

// Escape renders the parameter escaped but unquoted.
func (p Local) Escape(escape func(string) string) string {
	if p.integral {
		return p.value
	}
	return escape(p.value)
}

// Quote renders the parameter escaped and, for text, quoted.
func (p Local) Quote(escape func(string) string) string {
	if p.integral {
		return p.value
	}
	buf := make([]byte, 0, p.Size())
	buf = append(buf, '\'')
	buf = append(buf, escape(p.value)...)
	buf = append(buf, '\'')
	return string(buf)
}
