package param

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/tianxinzizhen/asyncdb/backend"
)

// Set owns the bind descriptors of one statement execution. Every buffer is
// sized exactly to its value and belongs to the set until Release.
type Set struct {
	binds    []backend.Bind
	n        int
	released atomic.Bool
}

// NewSet converts values into binary binds.
func NewSet(values ...any) (*Set, error) {
	s := &Set{binds: make([]backend.Bind, 0, len(values)), n: len(values)}
	for i, v := range values {
		b, err := Bind(v)
		if err != nil {
			s.Release()
			return nil, fmt.Errorf("param %d: %w", i+1, err)
		}
		s.binds = append(s.binds, b)
	}
	return s, nil
}

// Len is the number of parameters, also after release.
func (s *Set) Len() int {
	return s.n
}

// Binds returns the descriptors, nil once released.
func (s *Set) Binds() []backend.Bind {
	if s.released.Load() {
		return nil
	}
	return s.binds
}

// Release frees the buffers. Only the first call has an effect and reports true.
func (s *Set) Release() bool {
	if !s.released.CompareAndSwap(false, true) {
		return false
	}
	for i := range s.binds {
		clear(s.binds[i].Buffer)
		s.binds[i].Buffer = nil
	}
	s.binds = s.binds[:0]
	return true
}

func (s *Set) Released() bool {
	return s.released.Load()
}

// Bind maps one value onto its driver binary type.
//
//	Go type            driver type
//	-------            -----------
//	int8, uint8, bool  TINY
//	int16, uint16      SHORT
//	int32, uint32      LONG
//	int, int64, uint64 LONGLONG
//	float32            FLOAT
//	float64            DOUBLE
//	string             STRING
//	[]byte             BLOB
//	time.Time          DATETIME
//	nil                NULL
func Bind(v any) (backend.Bind, error) {
	v, err := Convert(v)
	if err != nil {
		return backend.Bind{}, err
	}
	switch x := v.(type) {
	case nil:
		return backend.Bind{Type: backend.TypeNull}, nil
	case bool:
		var n uint64
		if x {
			n = 1
		}
		return integer(backend.TypeTiny, false, n), nil
	case int8:
		return integer(backend.TypeTiny, false, uint64(x)), nil
	case uint8:
		return integer(backend.TypeTiny, true, uint64(x)), nil
	case int16:
		return integer(backend.TypeShort, false, uint64(x)), nil
	case uint16:
		return integer(backend.TypeShort, true, uint64(x)), nil
	case int32:
		return integer(backend.TypeLong, false, uint64(x)), nil
	case uint32:
		return integer(backend.TypeLong, true, uint64(x)), nil
	case int64:
		return integer(backend.TypeLongLong, false, uint64(x)), nil
	case uint64:
		return integer(backend.TypeLongLong, true, x), nil
	case float32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(x))
		return backend.Bind{Type: backend.TypeFloat, Buffer: buf}, nil
	case float64:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(x))
		return backend.Bind{Type: backend.TypeDouble, Buffer: buf}, nil
	case string:
		return backend.Bind{Type: backend.TypeString, Buffer: []byte(x)}, nil
	case []byte:
		buf := make([]byte, len(x))
		copy(buf, x)
		return backend.Bind{Type: backend.TypeBlob, Buffer: buf}, nil
	case time.Time:
		buf := make([]byte, backend.TimeSize)
		backend.EncodeTime(buf, backend.TimeOf(x))
		return backend.Bind{Type: backend.TypeDatetime, Buffer: buf}, nil
	}
	return backend.Bind{}, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

func integer(typ backend.FieldType, unsigned bool, n uint64) backend.Bind {
	buf := make([]byte, typ.Size())
	backend.PutInt(buf, n)
	return backend.Bind{Type: typ, Unsigned: unsigned, Buffer: buf}
}
