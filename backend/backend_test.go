package backend

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeEncoding(t *testing.T) {
	want := Time{Year: 2024, Month: 2, Day: 29, Hour: 23, Minute: 59, Second: 58, Microsecond: 123456}
	buf := make([]byte, TimeSize)
	EncodeTime(buf, want)
	got, err := DecodeTime(buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "2024-02-29 23:59:58.123456", got.String())

	_, err = DecodeTime(buf[:4])
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	cases := []struct {
		in   string
		want Time
	}{
		{"2024-03-05 10:20:30", Time{Year: 2024, Month: 3, Day: 5, Hour: 10, Minute: 20, Second: 30}},
		{"2024-03-05", Time{Year: 2024, Month: 3, Day: 5}},
		{"2024-03-05T10:20:30.5Z", Time{Year: 2024, Month: 3, Day: 5, Hour: 10, Minute: 20, Second: 30, Microsecond: 500000}},
		{"-838:59:59", Time{Hour: 838, Minute: 59, Second: 59, Neg: true}},
		{"12:00:01.25", Time{Hour: 12, Second: 1, Microsecond: 250000}},
		{"0000-00-00 00:00:00", Time{}},
	}
	for _, c := range cases {
		got, err := ParseTime(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
	_, err := ParseTime("noon")
	assert.Error(t, err)

	assert.Equal(t, "-838:59:59", Time{Hour: 838, Minute: 59, Second: 59, Neg: true}.String())
	assert.True(t, Time{}.GoTime(time.UTC).IsZero())
}

func TestInt(t *testing.T) {
	buf := make([]byte, 2)
	PutInt(buf, uint64(0xfffe))
	assert.Equal(t, uint64(0xfffe), Int(buf, true))
	assert.Equal(t, int64(-2), int64(Int(buf, false)))

	buf = make([]byte, 8)
	PutInt(buf, math.MaxUint64)
	assert.Equal(t, uint64(math.MaxUint64), Int(buf, true))
	assert.Equal(t, int64(-1), int64(Int(buf, false)))
}

func TestFetchValuesTwoPhase(t *testing.T) {
	binds := []OutBind{
		{Type: TypeLongLong, Buffer: make([]byte, 8)},
		{Type: TypeBlob},
		{Type: TypeString},
		{Type: TypeString},
		{Type: TypeDouble, Buffer: make([]byte, 8)},
	}
	values := []any{int64(-5), []byte("payload"), nil, "", 0.25}

	status, err := FetchValues(values, binds)
	require.NoError(t, err)
	assert.Equal(t, FetchTruncated, status)

	assert.Equal(t, int64(-5), int64(Int(binds[0].Buffer, false)))
	assert.False(t, binds[0].Truncated)

	assert.True(t, binds[1].Truncated)
	assert.Equal(t, 7, binds[1].Length)
	assert.Nil(t, binds[1].Buffer)

	assert.True(t, binds[2].IsNull)
	assert.False(t, binds[2].Truncated)

	assert.False(t, binds[3].IsNull)
	assert.False(t, binds[3].Truncated)
	assert.Zero(t, binds[3].Length)

	binds[1].Buffer = make([]byte, binds[1].Length)
	require.NoError(t, FetchValue(values[1], &binds[1], 0))
	assert.Equal(t, []byte("payload"), binds[1].Buffer)
	assert.False(t, binds[1].Truncated)

	part := OutBind{Type: TypeBlob, Buffer: make([]byte, 3)}
	require.NoError(t, FetchValue([]byte("payload"), &part, 4))
	assert.Equal(t, []byte("oad"), part.Buffer)

	_, err = FetchValues(values[:2], binds)
	assert.Error(t, err)
}

func TestDecodeBind(t *testing.T) {
	b := Bind{Type: TypeShort, Buffer: make([]byte, 2)}
	PutInt(b.Buffer, uint64(0xffff))
	v, err := DecodeBind(b)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)

	b.Unsigned = true
	v, err = DecodeBind(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xffff), v)

	_, err = DecodeBind(Bind{Type: TypeLong, Buffer: make([]byte, 2)})
	assert.Error(t, err)

	v, err = DecodeBind(Bind{Type: TypeString, Buffer: []byte("text")})
	require.NoError(t, err)
	assert.Equal(t, "text", v)
}

func TestTextValueAndInferType(t *testing.T) {
	assert.Nil(t, TextValue(nil))
	assert.Equal(t, []byte("42"), TextValue(int64(42)))
	assert.Equal(t, []byte("1"), TextValue(true))
	assert.Equal(t, []byte("2024-01-02 03:04:05"), TextValue(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))

	assert.Equal(t, TypeLongLong, InferType(int64(1)))
	assert.Equal(t, TypeDouble, InferType(1.0))
	assert.Equal(t, TypeBlob, InferType([]byte{}))
	assert.Equal(t, TypeVarString, InferType("x"))
	assert.Equal(t, TypeNull, InferType(nil))
}

func TestFieldTypeSize(t *testing.T) {
	assert.Equal(t, 1, TypeTiny.Size())
	assert.Equal(t, 4, TypeInt24.Size())
	assert.Equal(t, 8, TypeLongLong.Size())
	assert.Equal(t, TimeSize, TypeDatetime.Size())
	assert.Zero(t, TypeBlob.Size())
	assert.Zero(t, TypeNewDecimal.Size())
	assert.True(t, TypeDate.IsTemporal())
	assert.False(t, TypeString.IsNumeric())
}
