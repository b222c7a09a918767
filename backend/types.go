package backend

import "fmt"

// FieldType is the driver-native type tag of a bound parameter or a result column.
type FieldType uint8

const (
	TypeNull FieldType = iota
	TypeTiny
	TypeShort
	TypeInt24
	TypeLong
	TypeLongLong
	TypeFloat
	TypeDouble
	TypeDecimal
	TypeNewDecimal
	TypeEnum
	TypeSet
	TypeGeometry
	TypeBit
	TypeVarchar
	TypeVarString
	TypeString
	TypeTinyBlob
	TypeMediumBlob
	TypeLongBlob
	TypeBlob
	TypeJSON
	TypeYear
	TypeTime
	TypeDate
	TypeNewDate
	TypeDatetime
	TypeTimestamp
)

var typeNames = map[FieldType]string{
	TypeNull:       "NULL",
	TypeTiny:       "TINY",
	TypeShort:      "SHORT",
	TypeInt24:      "INT24",
	TypeLong:       "LONG",
	TypeLongLong:   "LONGLONG",
	TypeFloat:      "FLOAT",
	TypeDouble:     "DOUBLE",
	TypeDecimal:    "DECIMAL",
	TypeNewDecimal: "NEWDECIMAL",
	TypeEnum:       "ENUM",
	TypeSet:        "SET",
	TypeGeometry:   "GEOMETRY",
	TypeBit:        "BIT",
	TypeVarchar:    "VARCHAR",
	TypeVarString:  "VAR_STRING",
	TypeString:     "STRING",
	TypeTinyBlob:   "TINY_BLOB",
	TypeMediumBlob: "MEDIUM_BLOB",
	TypeLongBlob:   "LONG_BLOB",
	TypeBlob:       "BLOB",
	TypeJSON:       "JSON",
	TypeYear:       "YEAR",
	TypeTime:       "TIME",
	TypeDate:       "DATE",
	TypeNewDate:    "NEWDATE",
	TypeDatetime:   "DATETIME",
	TypeTimestamp:  "TIMESTAMP",
}

func (t FieldType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FieldType(%d)", uint8(t))
}

// Size is the byte width of a fixed-width type, 0 for variable-length ones.
func (t FieldType) Size() int {
	switch t {
	case TypeTiny:
		return 1
	case TypeShort, TypeYear:
		return 2
	case TypeLong, TypeInt24, TypeFloat:
		return 4
	case TypeLongLong, TypeDouble:
		return 8
	case TypeTime, TypeDate, TypeNewDate, TypeDatetime, TypeTimestamp:
		return TimeSize
	}
	return 0
}

// IsNumeric reports whether the unsigned flag of a column of this type is meaningful.
func (t FieldType) IsNumeric() bool {
	switch t {
	case TypeTiny, TypeShort, TypeInt24, TypeLong, TypeLongLong, TypeFloat, TypeDouble, TypeDecimal, TypeNewDecimal, TypeYear:
		return true
	}
	return false
}

// IsTemporal reports whether the type belongs to the date/time family.
func (t FieldType) IsTemporal() bool {
	switch t {
	case TypeTime, TypeDate, TypeNewDate, TypeDatetime, TypeTimestamp:
		return true
	}
	return false
}

// Column describes one column of a result set.
type Column struct {
	Name     string
	Type     FieldType
	Unsigned bool
}

// Bind is an input parameter descriptor for a prepared statement execution.
// Buffer holds the value in driver-native binary form and is owned by the bind.
type Bind struct {
	Type     FieldType
	Unsigned bool
	Buffer   []byte
}

// OutBind is an output descriptor for one column of a binary row fetch.
//
// A nil Buffer withholds the value: the fetch only reports Length, and
// Truncated is set when the value did not fit.
type OutBind struct {
	Type      FieldType
	Unsigned  bool
	Buffer    []byte
	Length    int
	IsNull    bool
	Truncated bool
}

// FetchStatus is the outcome of a binary row fetch.
type FetchStatus int

const (
	FetchOK FetchStatus = iota
	FetchNoData
	FetchTruncated
)

func (s FetchStatus) String() string {
	switch s {
	case FetchOK:
		return "ok"
	case FetchNoData:
		return "no data"
	case FetchTruncated:
		return "data truncated"
	}
	return fmt.Sprintf("FetchStatus(%d)", int(s))
}
