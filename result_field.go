package asyncdb

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tianxinzizhen/asyncdb/backend"
)

// Kind is the logical kind of a field value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindDouble
	KindText
	KindTemporal
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindText:
		return "text"
	case KindTemporal:
		return "temporal"
	}
	return "unknown"
}

// Tm is a broken-down calendar time. Mon counts from 0 and Year from 1900;
// WDay and YDay are not computed and IsDST is -1.
type Tm struct {
	Sec   int
	Min   int
	Hour  int
	MDay  int
	Mon   int
	Year  int
	WDay  int
	YDay  int
	IsDST int
}

// Field is one typed, NULL-able cell of a row.
//
// Converting a NULL field yields the zero value of the target type without
// error. Text is parsed on every conversion; the underlying bytes are shared
// with the rest of the result and never modified.
type Field struct {
	kind     Kind
	width    uint8
	unsigned bool
	bits     uint64
	data     []byte
	tm       backend.Time
	column   string
}

func nullField(column string) Field {
	return Field{kind: KindNull, column: column}
}

func textField(column string, data []byte) Field {
	if data == nil {
		return nullField(column)
	}
	return Field{kind: KindText, data: data, column: column}
}

func (f Field) IsNull() bool {
	return f.kind == KindNull
}

func (f Field) Kind() Kind {
	return f.kind
}

// Column is the name of the column the field belongs to.
func (f Field) Column() string {
	return f.column
}

func (f Field) Int64() (int64, error) {
	return f.signed(64)
}

func (f Field) Int32() (int32, error) {
	n, err := f.signed(32)
	return int32(n), err
}

func (f Field) Int16() (int16, error) {
	n, err := f.signed(16)
	return int16(n), err
}

func (f Field) Int8() (int8, error) {
	n, err := f.signed(8)
	return int8(n), err
}

func (f Field) Int() (int, error) {
	n, err := f.signed(strconv.IntSize)
	return int(n), err
}

func (f Field) Uint64() (uint64, error) {
	return f.unsignedValue(64)
}

func (f Field) Uint32() (uint32, error) {
	n, err := f.unsignedValue(32)
	return uint32(n), err
}

func (f Field) Uint16() (uint16, error) {
	n, err := f.unsignedValue(16)
	return uint16(n), err
}

func (f Field) Uint8() (uint8, error) {
	n, err := f.unsignedValue(8)
	return uint8(n), err
}

func (f Field) signed(bitSize int) (int64, error) {
	want := "int" + strconv.Itoa(bitSize)
	var n int64
	switch f.kind {
	case KindNull:
		return 0, nil
	case KindInteger:
		if f.unsigned && f.bits > math.MaxInt64 {
			return 0, fieldErr(f.column, want, ErrOutOfRange)
		}
		n = int64(f.bits)
	case KindFloat, KindDouble:
		v := f.float()
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fieldErr(f.column, want, ErrOutOfRange)
		}
		n = int64(v)
	case KindText:
		v, err := strconv.ParseInt(strings.TrimSpace(string(f.data)), 10, 64)
		if err != nil {
			return 0, fieldErr(f.column, want, numErr(err))
		}
		n = v
	default:
		return 0, fieldErr(f.column, want, ErrTypeMismatch)
	}
	if bitSize < 64 {
		limit := int64(1) << (bitSize - 1)
		if n < -limit || n >= limit {
			return 0, fieldErr(f.column, want, ErrOutOfRange)
		}
	}
	return n, nil
}

func (f Field) unsignedValue(bitSize int) (uint64, error) {
	want := "uint" + strconv.Itoa(bitSize)
	var n uint64
	switch f.kind {
	case KindNull:
		return 0, nil
	case KindInteger:
		if !f.unsigned && int64(f.bits) < 0 {
			return 0, fieldErr(f.column, want, ErrOutOfRange)
		}
		n = f.bits
	case KindFloat, KindDouble:
		v := f.float()
		if v != math.Trunc(v) || v < 0 || v >= math.MaxUint64 {
			return 0, fieldErr(f.column, want, ErrOutOfRange)
		}
		n = uint64(v)
	case KindText:
		v, err := strconv.ParseUint(strings.TrimSpace(string(f.data)), 10, 64)
		if err != nil {
			return 0, fieldErr(f.column, want, numErr(err))
		}
		n = v
	default:
		return 0, fieldErr(f.column, want, ErrTypeMismatch)
	}
	if bitSize < 64 && n >= uint64(1)<<bitSize {
		return 0, fieldErr(f.column, want, ErrOutOfRange)
	}
	return n, nil
}

func numErr(err error) error {
	if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		return ErrOutOfRange
	}
	return ErrTypeMismatch
}

func (f Field) float() float64 {
	if f.kind == KindFloat {
		return float64(math.Float32frombits(uint32(f.bits)))
	}
	return math.Float64frombits(f.bits)
}

func (f Field) Float64() (float64, error) {
	switch f.kind {
	case KindNull:
		return 0, nil
	case KindInteger:
		if f.unsigned {
			return float64(f.bits), nil
		}
		return float64(int64(f.bits)), nil
	case KindFloat, KindDouble:
		return f.float(), nil
	case KindText:
		v, err := strconv.ParseFloat(strings.TrimSpace(string(f.data)), 64)
		if err != nil {
			return 0, fieldErr(f.column, "float64", numErr(err))
		}
		return v, nil
	}
	return 0, fieldErr(f.column, "float64", ErrTypeMismatch)
}

func (f Field) Float32() (float32, error) {
	v, err := f.Float64()
	if err != nil {
		return 0, err
	}
	if math.Abs(v) > math.MaxFloat32 && !math.IsInf(v, 0) {
		return 0, fieldErr(f.column, "float32", ErrOutOfRange)
	}
	return float32(v), nil
}

// String renders the field as text; NULL renders empty.
func (f Field) String() string {
	switch f.kind {
	case KindInteger:
		if f.unsigned {
			return strconv.FormatUint(f.bits, 10)
		}
		return strconv.FormatInt(int64(f.bits), 10)
	case KindFloat:
		return strconv.FormatFloat(f.float(), 'g', -1, 32)
	case KindDouble:
		return strconv.FormatFloat(f.float(), 'g', -1, 64)
	case KindText:
		return string(f.data)
	case KindTemporal:
		return f.tm.String()
	}
	return ""
}

// Bytes returns a copy of the raw text or binary value; nil for NULL.
func (f Field) Bytes() []byte {
	switch f.kind {
	case KindNull:
		return nil
	case KindText:
		return append([]byte{}, f.data...)
	}
	return []byte(f.String())
}

// Tm decodes a temporal field, or text holding a date/time, into calendar
// fields. A negative TIME value has negative Hour, Min and Sec.
func (f Field) Tm() (Tm, error) {
	t, null, err := f.temporal()
	if err != nil {
		return Tm{}, err
	}
	if null {
		return Tm{IsDST: -1}, nil
	}
	sign := 1
	if t.Neg {
		sign = -1
	}
	return Tm{
		Sec:   sign * t.Second,
		Min:   sign * t.Minute,
		Hour:  sign * t.Hour,
		MDay:  t.Day,
		Mon:   t.Month - 1,
		Year:  t.Year - 1900,
		IsDST: -1,
	}, nil
}

// Duration decodes a TIME field, sign included; NULL gives 0.
func (f Field) Duration() (time.Duration, error) {
	t, null, err := f.temporal()
	if err != nil || null {
		return 0, err
	}
	return t.Duration(), nil
}

func (f Field) temporal() (t backend.Time, null bool, err error) {
	switch f.kind {
	case KindNull:
		return t, true, nil
	case KindTemporal:
		return f.tm, false, nil
	case KindText:
		v, err := backend.ParseTime(string(f.data))
		if err != nil {
			return t, false, fieldErr(f.column, "time", ErrTypeMismatch)
		}
		return v, false, nil
	}
	return t, false, fieldErr(f.column, "time", ErrTypeMismatch)
}

// Time decodes a temporal field in UTC; NULL and zero dates give the zero time.
func (f Field) Time() (time.Time, error) {
	t, null, err := f.temporal()
	if err != nil || null {
		return time.Time{}, err
	}
	return t.GoTime(time.UTC), nil
}
