package param

import (
	"database/sql"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tianxinzizhen/asyncdb/backend"
)

func TestInterpolate(t *testing.T) {
	got, err := Interpolate("INSERT INTO t VALUES (?, !)", EscapeQuotes, 42, "O'Brien")
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO t VALUES (42, O''Brien)", got)

	got, err = Interpolate("INSERT INTO t VALUES (?, !)", EscapeBackslash, "O'Brien", 42)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO t VALUES ('O\'Brien', 42)`, got)
}

func TestInterpolateRendersTypes(t *testing.T) {
	ts := time.Date(2024, 2, 29, 13, 4, 5, 0, time.UTC)
	got, err := Interpolate("? ? ? ? ? ?", EscapeQuotes, nil, true, 1.5, uint8(7), []byte("x"), ts)
	require.NoError(t, err)
	assert.Equal(t, "NULL 1 1.5 7 'x' '2024-02-29 13:04:05'", got)
}

func TestInterpolatePlaceholderCount(t *testing.T) {
	_, err := Interpolate("SELECT ? , ?", EscapeQuotes, 1)
	assert.ErrorIs(t, err, ErrPlaceholderCount)

	_, err = Interpolate("SELECT 1", EscapeQuotes, 1)
	assert.ErrorIs(t, err, ErrPlaceholderCount)
}

func TestInterpolateLiteralPlaceholders(t *testing.T) {
	got, err := Interpolate(`SELECT 'why?', "wow!", `+"`a?b`"+`, a != ?, b \? 'it''s ?'`, EscapeQuotes, 3)
	require.NoError(t, err)
	assert.Equal(t, `SELECT 'why?', "wow!", `+"`a?b`"+`, a != 3, b ? 'it''s ?'`, got)

	got, err = Interpolate(`SELECT 'a\'?' , ?`, EscapeQuotes, "z")
	require.NoError(t, err)
	assert.Equal(t, `SELECT 'a\'?' , 'z'`, got)
}

func TestLocalSize(t *testing.T) {
	p, err := NewLocal("abc")
	require.NoError(t, err)
	assert.Equal(t, 8, p.Size())
	assert.Equal(t, "'abc'", p.Quote(EscapeBackslash))
	assert.LessOrEqual(t, len(p.Quote(EscapeBackslash)), p.Size())

	worst, err := NewLocal(`''\\`)
	require.NoError(t, err)
	assert.Equal(t, worst.Size(), len(worst.Quote(EscapeBackslash)))

	n, err := NewLocal(int16(-12))
	require.NoError(t, err)
	assert.Equal(t, 3, n.Size())
	assert.Equal(t, "-12", n.Quote(EscapeBackslash))
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `a\0b\n\r\Z\'\"\\`, EscapeBackslash("a\x00b\n\r\x1a'\"\\"))
	assert.Equal(t, `it''s`, EscapeQuotes("it's"))
}

type celsius float32

type valuer struct{ v string }

func (v valuer) Value() (any, error) { return v.v, nil }

type failing struct{}

func (failing) Value() (any, error) { return nil, errors.New("no value") }

func TestConvert(t *testing.T) {
	i := 5
	ip := &i
	var nilp *int
	cases := []struct {
		in   any
		want any
	}{
		{nil, nil},
		{ip, int64(5)},
		{nilp, nil},
		{celsius(1.5), float32(1.5)},
		{valuer{"v"}, "v"},
		{sql.NullInt64{Int64: 3, Valid: true}, int64(3)},
		{sql.NullString{}, nil},
		{map[string]int{"a": 1}, `{"a":1}`},
		{[]int{1, 2}, `[1,2]`},
		{struct{ A int }{A: 1}, `{"A":1}`},
		{[]byte("raw"), []byte("raw")},
	}
	for _, c := range cases {
		got, err := Convert(c.in)
		require.NoError(t, err, "%#v", c.in)
		assert.Equal(t, c.want, got, "%#v", c.in)
	}

	_, err := Convert(failing{})
	assert.EqualError(t, err, "no value")

	_, err = Convert(make(chan int))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestBindTypes(t *testing.T) {
	cases := []struct {
		in       any
		typ      backend.FieldType
		unsigned bool
		size     int
	}{
		{int8(-1), backend.TypeTiny, false, 1},
		{uint8(1), backend.TypeTiny, true, 1},
		{int16(-1), backend.TypeShort, false, 2},
		{uint16(1), backend.TypeShort, true, 2},
		{int32(-1), backend.TypeLong, false, 4},
		{uint32(1), backend.TypeLong, true, 4},
		{int64(-1), backend.TypeLongLong, false, 8},
		{42, backend.TypeLongLong, false, 8},
		{uint64(math.MaxUint64), backend.TypeLongLong, true, 8},
		{float32(1), backend.TypeFloat, false, 4},
		{2.5, backend.TypeDouble, false, 8},
		{"hello", backend.TypeString, false, 5},
		{[]byte{1, 2, 3}, backend.TypeBlob, false, 3},
		{nil, backend.TypeNull, false, 0},
		{time.Now(), backend.TypeDatetime, false, backend.TimeSize},
	}
	for _, c := range cases {
		b, err := Bind(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.typ, b.Type, "%#v", c.in)
		assert.Equal(t, c.unsigned, b.Unsigned, "%#v", c.in)
		assert.Len(t, b.Buffer, c.size, "%#v", c.in)
	}
}

func TestBindRoundTrip(t *testing.T) {
	ts := time.Date(2001, 9, 9, 1, 46, 40, 123456000, time.UTC)
	for in, want := range map[any]any{
		int8(-7):             int64(-7),
		int16(-300):          int64(-300),
		int32(-70000):        int64(-70000),
		uint32(math.MaxUint32): uint64(math.MaxUint32),
		uint64(math.MaxUint64): uint64(math.MaxUint64),
		float32(0.5):         float64(0.5),
		"text":               "text",
		ts:                   ts,
	} {
		b, err := Bind(in)
		require.NoError(t, err)
		got, err := backend.DecodeBind(b)
		require.NoError(t, err)
		assert.Equal(t, want, got, "%#v", in)
	}
}

func TestSetRelease(t *testing.T) {
	s, err := NewSet(1, "two", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	require.Len(t, s.Binds(), 3)
	buf := s.Binds()[1].Buffer

	assert.True(t, s.Release())
	assert.False(t, s.Release())
	assert.True(t, s.Released())
	assert.Nil(t, s.Binds())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []byte{0, 0, 0}, buf)

	_, err = NewSet(1, make(chan int))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
