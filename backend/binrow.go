package backend

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"
)

// The helpers below implement the driver side of the binary row protocol
// for drivers that buffer rows as database/sql driver values.

// FetchValues decodes one buffered row into binds, the first phase of a
// binary fetch. A bind whose buffer is too small for its value is left
// unfilled with Length set to the full width and Truncated raised.
func FetchValues(values []any, binds []OutBind) (FetchStatus, error) {
	if len(values) != len(binds) {
		return FetchOK, fmt.Errorf("backend: row has %d values for %d binds", len(values), len(binds))
	}
	status := FetchOK
	for i := range binds {
		b := &binds[i]
		b.Truncated = false
		if values[i] == nil {
			b.IsNull = true
			b.Length = 0
			continue
		}
		b.IsNull = false
		data, err := encodeValue(b.Type, b.Unsigned, values[i])
		if err != nil {
			return FetchOK, fmt.Errorf("backend: column %d: %w", i, err)
		}
		b.Length = len(data)
		if len(b.Buffer) < len(data) {
			b.Truncated = true
			status = FetchTruncated
			continue
		}
		copy(b.Buffer, data)
	}
	return status, nil
}

// FetchValue copies value, starting at offset, into bind.Buffer: the
// second phase of a binary fetch.
func FetchValue(value any, bind *OutBind, offset int) error {
	if value == nil {
		bind.IsNull = true
		bind.Length = 0
		bind.Truncated = false
		return nil
	}
	data, err := encodeValue(bind.Type, bind.Unsigned, value)
	if err != nil {
		return err
	}
	if offset > len(data) {
		return fmt.Errorf("backend: offset %d past value of %d bytes", offset, len(data))
	}
	n := copy(bind.Buffer, data[offset:])
	bind.IsNull = false
	bind.Length = len(data)
	bind.Truncated = n < len(data)-offset
	return nil
}

func encodeValue(typ FieldType, unsigned bool, v any) ([]byte, error) {
	size := typ.Size()
	if size == 0 {
		return TextValue(v), nil
	}
	buf := make([]byte, size)
	switch typ {
	case TypeFloat:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(f)))
	case TypeDouble:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
	case TypeTime, TypeDate, TypeNewDate, TypeDatetime, TypeTimestamp:
		t, err := toTime(v)
		if err != nil {
			return nil, err
		}
		EncodeTime(buf, t)
	default:
		n, err := toBits(v, unsigned)
		if err != nil {
			return nil, err
		}
		PutInt(buf, n)
	}
	return buf, nil
}

// PutInt stores the low len(buf) bytes of n little-endian.
func PutInt(buf []byte, n uint64) {
	for i := range buf {
		buf[i] = byte(n >> (8 * i))
	}
}

// Int reads a little-endian integer of len(buf) bytes, sign-extending unless unsigned.
func Int(buf []byte, unsigned bool) uint64 {
	var n uint64
	for i := len(buf) - 1; i >= 0; i-- {
		n = n<<8 | uint64(buf[i])
	}
	if !unsigned && len(buf) > 0 && len(buf) < 8 && buf[len(buf)-1]&0x80 != 0 {
		n |= math.MaxUint64 << (8 * len(buf))
	}
	return n
}

func toBits(v any, unsigned bool) (uint64, error) {
	switch x := v.(type) {
	case int64:
		return uint64(x), nil
	case int:
		return uint64(x), nil
	case uint64:
		return x, nil
	case float64:
		return uint64(int64(x)), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return parseBits(string(x), unsigned)
	case string:
		return parseBits(x, unsigned)
	case time.Time:
		return uint64(x.Year()), nil
	}
	return 0, fmt.Errorf("backend: cannot encode %T as an integer", v)
}

func parseBits(s string, unsigned bool) (uint64, error) {
	if unsigned {
		return strconv.ParseUint(s, 10, 64)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return uint64(n), err
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	case string:
		return strconv.ParseFloat(x, 64)
	}
	return 0, fmt.Errorf("backend: cannot encode %T as a float", v)
}

func toTime(v any) (Time, error) {
	switch x := v.(type) {
	case time.Time:
		return TimeOf(x), nil
	case []byte:
		return ParseTime(string(x))
	case string:
		return ParseTime(x)
	}
	return Time{}, fmt.Errorf("backend: cannot encode %T as a time value", v)
}

// TextValue renders a driver value in the text protocol form; nil stays nil.
func TextValue(v any) []byte {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return append([]byte{}, x...)
	case string:
		return []byte(x)
	case int64:
		return strconv.AppendInt(nil, x, 10)
	case int:
		return strconv.AppendInt(nil, int64(x), 10)
	case uint64:
		return strconv.AppendUint(nil, x, 10)
	case float64:
		return strconv.AppendFloat(nil, x, 'g', -1, 64)
	case float32:
		return strconv.AppendFloat(nil, float64(x), 'g', -1, 32)
	case bool:
		if x {
			return []byte("1")
		}
		return []byte("0")
	case time.Time:
		return []byte(TimeOf(x).String())
	}
	return []byte(fmt.Sprint(v))
}

// InferType picks a column type for drivers that cannot name one, from a sample value.
func InferType(v any) FieldType {
	switch v.(type) {
	case nil:
		return TypeNull
	case int64, int, uint64:
		return TypeLongLong
	case float64:
		return TypeDouble
	case float32:
		return TypeFloat
	case bool:
		return TypeTiny
	case time.Time:
		return TypeDatetime
	case []byte:
		return TypeBlob
	}
	return TypeVarString
}

// DecodeBind turns an input bind back into a database/sql driver value.
func DecodeBind(b Bind) (any, error) {
	if size := b.Type.Size(); size > 0 && len(b.Buffer) != size {
		return nil, fmt.Errorf("backend: %s bind holds %d bytes, want %d", b.Type, len(b.Buffer), size)
	}
	switch b.Type {
	case TypeNull:
		return nil, nil
	case TypeTiny, TypeShort, TypeInt24, TypeLong, TypeLongLong, TypeYear:
		n := Int(b.Buffer, b.Unsigned)
		if b.Unsigned {
			return n, nil
		}
		return int64(n), nil
	case TypeFloat:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b.Buffer))), nil
	case TypeDouble:
		return math.Float64frombits(binary.LittleEndian.Uint64(b.Buffer)), nil
	case TypeTime, TypeDate, TypeNewDate, TypeDatetime, TypeTimestamp:
		t, err := DecodeTime(b.Buffer)
		if err != nil {
			return nil, err
		}
		return t.GoTime(time.UTC), nil
	case TypeTinyBlob, TypeMediumBlob, TypeLongBlob, TypeBlob, TypeGeometry, TypeBit:
		return append([]byte{}, b.Buffer...), nil
	}
	return string(b.Buffer), nil
}
