package backend

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeSize is the width of an encoded Time.
const TimeSize = 13

// Time is the driver-native calendar value of the date/time family.
// Hour may exceed 23 for TIME values.
type Time struct {
	Year        int
	Month       int
	Day         int
	Hour        int
	Minute      int
	Second      int
	Microsecond int
	Neg         bool
}

// TimeOf splits t into calendar fields in its own location.
func TimeOf(t time.Time) Time {
	return Time{
		Year:        t.Year(),
		Month:       int(t.Month()),
		Day:         t.Day(),
		Hour:        t.Hour(),
		Minute:      t.Minute(),
		Second:      t.Second(),
		Microsecond: t.Nanosecond() / 1000,
	}
}

// GoTime converts to time.Time in loc; the zero date maps to the zero time.Time.
// A negative TIME counts back from its date.
func (t Time) GoTime(loc *time.Location) time.Time {
	if t.Year == 0 && t.Month == 0 && t.Day == 0 && t.Hour == 0 && t.Minute == 0 && t.Second == 0 && t.Microsecond == 0 {
		return time.Time{}
	}
	month := t.Month
	if month == 0 {
		month = 1
	}
	day := t.Day
	if day == 0 {
		day = 1
	}
	sign := 1
	if t.Neg {
		sign = -1
	}
	return time.Date(t.Year, time.Month(month), day, sign*t.Hour, sign*t.Minute, sign*t.Second, sign*t.Microsecond*1000, loc)
}

// Duration is the signed clock part, the value of a TIME column.
func (t Time) Duration() time.Duration {
	d := time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute +
		time.Duration(t.Second)*time.Second + time.Duration(t.Microsecond)*time.Microsecond
	if t.Neg {
		return -d
	}
	return d
}

func (t Time) String() string {
	sign := ""
	if t.Neg {
		sign = "-"
	}
	var s string
	if t.Year == 0 && t.Month == 0 && t.Day == 0 && (t.Hour != 0 || t.Minute != 0 || t.Second != 0 || t.Microsecond != 0) {
		// TIME value
		s = fmt.Sprintf("%s%02d:%02d:%02d", sign, t.Hour, t.Minute, t.Second)
	} else {
		s = fmt.Sprintf("%s%04d-%02d-%02d %02d:%02d:%02d", sign, t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
	}
	if t.Microsecond != 0 {
		s += fmt.Sprintf(".%06d", t.Microsecond)
	}
	return s
}

// EncodeTime writes t into buf, which must be at least TimeSize long.
func EncodeTime(buf []byte, t Time) {
	binary.LittleEndian.PutUint16(buf[0:], uint16(t.Year))
	buf[2] = byte(t.Month)
	buf[3] = byte(t.Day)
	binary.LittleEndian.PutUint16(buf[4:], uint16(t.Hour))
	buf[6] = byte(t.Minute)
	buf[7] = byte(t.Second)
	binary.LittleEndian.PutUint32(buf[8:], uint32(t.Microsecond))
	buf[12] = 0
	if t.Neg {
		buf[12] = 1
	}
}

// DecodeTime reads a Time written by EncodeTime.
func DecodeTime(buf []byte) (Time, error) {
	if len(buf) < TimeSize {
		return Time{}, fmt.Errorf("backend: time buffer of %d bytes, need %d", len(buf), TimeSize)
	}
	return Time{
		Year:        int(binary.LittleEndian.Uint16(buf[0:])),
		Month:       int(buf[2]),
		Day:         int(buf[3]),
		Hour:        int(binary.LittleEndian.Uint16(buf[4:])),
		Minute:      int(buf[6]),
		Second:      int(buf[7]),
		Microsecond: int(binary.LittleEndian.Uint32(buf[8:])),
		Neg:         buf[12] == 1,
	}, nil
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02",
}

// ParseTime parses the text forms servers use for the date/time family,
// including bare TIME values such as "-838:59:59".
func ParseTime(s string) (Time, error) {
	if strings.HasPrefix(s, "0000-00-00") {
		return Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOf(t), nil
		}
	}
	var (
		t    Time
		rest = s
	)
	if len(rest) > 0 && rest[0] == '-' {
		t.Neg = true
		rest = rest[1:]
	}
	clock, fraction, _ := strings.Cut(rest, ".")
	if n, _ := fmt.Sscanf(clock, "%d:%d:%d", &t.Hour, &t.Minute, &t.Second); n < 3 {
		return Time{}, fmt.Errorf("backend: cannot parse %q as a time value", s)
	}
	if fraction != "" {
		fraction = (fraction + "000000")[:6]
		micro, err := strconv.Atoi(fraction)
		if err != nil {
			return Time{}, fmt.Errorf("backend: cannot parse %q as a time value", s)
		}
		t.Microsecond = micro
	}
	return t, nil
}
