package asyncdb

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Value returns the field as the Go value database/sql would scan:
// nil, int64 or uint64, float64, []byte or time.Time.
func (f Field) Value() any {
	switch f.kind {
	case KindInteger:
		if f.unsigned {
			return f.bits
		}
		return int64(f.bits)
	case KindFloat, KindDouble:
		return f.float()
	case KindText:
		return f.Bytes()
	case KindTemporal:
		t, _ := f.Time()
		return t
	}
	return nil
}

// Scan assigns the fields of the row, in order, to dest. NULL leaves the
// zero value of the destination.
func (r Row) Scan(dest ...any) error {
	if len(dest) != len(r.fields) {
		return fmt.Errorf("asyncdb: scan expected %d destinations, got %d", len(r.fields), len(dest))
	}
	for i, d := range dest {
		if err := r.fields[i].Scan(d); err != nil {
			return err
		}
	}
	return nil
}

// ScanStruct assigns fields to the exported struct fields of dest whose
// `db` tag, or name, matches the column case-insensitively. Columns without
// a matching struct field are skipped.
func (r Row) ScanStruct(dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("asyncdb: scan struct needs a non-nil struct pointer, got %T", dest)
	}
	rv = rv.Elem()
	index := structIndex(rv.Type())
	for name, f := range r.Fields() {
		path, ok := index[strings.ToLower(name)]
		if !ok {
			continue
		}
		if err := f.Scan(rv.FieldByIndex(path).Addr().Interface()); err != nil {
			return err
		}
	}
	return nil
}

func structIndex(t reflect.Type) map[string][]int {
	index := make(map[string][]int, t.NumField())
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("db"); ok {
			if tag == "-" {
				continue
			}
			name = tag
		}
		index[strings.ToLower(name)] = sf.Index
	}
	return index
}

// ScanMap returns the row as column name to Value.
func (r Row) ScanMap() map[string]any {
	m := make(map[string]any, len(r.fields))
	for name, f := range r.Fields() {
		m[name] = f.Value()
	}
	return m
}

// Scan assigns the field to dest, a pointer to a basic Go type,
// time.Time, Tm, or a sql.Scanner.
func (f Field) Scan(dest any) error {
	var err error
	switch d := dest.(type) {
	case sql.Scanner:
		return d.Scan(f.Value())
	case *any:
		*d = f.Value()
	case *string:
		*d = f.String()
	case *[]byte:
		*d = f.Bytes()
	case *int:
		*d, err = f.Int()
	case *int8:
		*d, err = f.Int8()
	case *int16:
		*d, err = f.Int16()
	case *int32:
		*d, err = f.Int32()
	case *int64:
		*d, err = f.Int64()
	case *uint8:
		*d, err = f.Uint8()
	case *uint16:
		*d, err = f.Uint16()
	case *uint32:
		*d, err = f.Uint32()
	case *uint64:
		*d, err = f.Uint64()
	case *uint:
		var n uint64
		n, err = f.Uint64()
		*d = uint(n)
	case *float32:
		*d, err = f.Float32()
	case *float64:
		*d, err = f.Float64()
	case *bool:
		var n int64
		n, err = f.Int64()
		*d = n != 0
	case *time.Time:
		*d, err = f.Time()
	case *Tm:
		*d, err = f.Tm()
	default:
		return f.scanReflect(dest)
	}
	return err
}

// scanReflect handles pointers to named basic types and pointer fields.
func (f Field) scanReflect(dest any) error {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("asyncdb: scan destination not a non-nil pointer: %T", dest)
	}
	ev := rv.Elem()
	switch ev.Kind() {
	case reflect.Pointer:
		if f.IsNull() {
			ev.SetZero()
			return nil
		}
		v := reflect.New(ev.Type().Elem())
		if err := f.Scan(v.Interface()); err != nil {
			return err
		}
		ev.Set(v)
		return nil
	case reflect.String:
		ev.SetString(f.String())
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := f.signed(ev.Type().Bits())
		if err != nil {
			return err
		}
		ev.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := f.unsignedValue(ev.Type().Bits())
		if err != nil {
			return err
		}
		ev.SetUint(n)
		return nil
	case reflect.Float32, reflect.Float64:
		v, err := f.Float64()
		if err != nil {
			return err
		}
		ev.SetFloat(v)
		return nil
	case reflect.Bool:
		n, err := f.Int64()
		if err != nil {
			return err
		}
		ev.SetBool(n != 0)
		return nil
	}
	return fieldErr(f.column, ev.Type().String(), ErrTypeMismatch)
}
