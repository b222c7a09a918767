package param

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrUnsupportedType is returned for values that have no parameter form.
var ErrUnsupportedType = errors.New("param: unsupported parameter type")

var (
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	timeType   = reflect.TypeOf(time.Time{})
)

// Convert reduces v to one of the basic types the codec understands:
// nil, the sized integers, float32, float64, bool, string, []byte and
// time.Time. driver.Valuer values are resolved, pointers are followed, named
// types are reduced to their underlying kind, and structs, maps, slices and
// arrays are JSON-encoded to a string.
func Convert(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().Implements(valuerType) {
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		dv, err := v.(driver.Valuer).Value()
		if err != nil {
			return nil, err
		}
		if dv == nil {
			return nil, nil
		}
		rv = reflect.ValueOf(dv)
	}
	rv = indirect(rv)
	if !rv.IsValid() {
		return nil, nil
	}
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int8:
		return int8(rv.Int()), nil
	case reflect.Int16:
		return int16(rv.Int()), nil
	case reflect.Int32:
		return int32(rv.Int()), nil
	case reflect.Int, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint8:
		return uint8(rv.Uint()), nil
	case reflect.Uint16:
		return uint16(rv.Uint()), nil
	case reflect.Uint32:
		return uint32(rv.Uint()), nil
	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Float32:
		return float32(rv.Float()), nil
	case reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			if rv.IsNil() {
				return nil, nil
			}
			return rv.Bytes(), nil
		}
		return marshal(rv)
	case reflect.Struct:
		if rv.Type().ConvertibleTo(timeType) {
			return rv.Convert(timeType).Interface(), nil
		}
		return marshal(rv)
	case reflect.Map, reflect.Array:
		return marshal(rv)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

func marshal(rv reflect.Value) (any, error) {
	if (rv.Kind() == reflect.Map || rv.Kind() == reflect.Slice) && rv.IsNil() {
		return nil, nil
	}
	b, err := json.Marshal(rv.Interface())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
