package asyncdb

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tianxinzizhen/asyncdb/backend"
)

func TestDeferredFiresOnce(t *testing.T) {
	d := newDeferred()
	var calls []string
	d.OnSuccess(func(*Result) { calls = append(calls, "first") })
	d.OnSuccess(func(*Result) { calls = append(calls, "success") })
	d.OnFailure(func(error) { calls = append(calls, "failure") })
	d.OnComplete(func() { calls = append(calls, "complete") })
	assert.True(t, d.requireStatus())

	d.success(statusResult(1, 0))
	assert.Equal(t, []string{"success", "complete"}, calls)

	d.OnComplete(func() { calls = append(calls, "late") })
	assert.Panics(t, func() { d.failure(errors.New("again")) })
	assert.Equal(t, []string{"success", "complete"}, calls)
}

func TestDeferredFailure(t *testing.T) {
	d := newDeferred()
	var got error
	completed := 0
	d.OnFailure(func(err error) { got = err }).OnComplete(func() { completed++ })
	d.failure(ErrParamCount)
	assert.ErrorIs(t, got, ErrParamCount)
	assert.Equal(t, 1, completed)
}

func TestDeferredWithoutObservers(t *testing.T) {
	d := newDeferred()
	assert.False(t, d.requireStatus())
	completed := 0
	d.OnComplete(func() { completed++ })
	assert.False(t, d.requireStatus())
	d.complete()
	assert.Equal(t, 1, completed)
}

func TestInvalidResult(t *testing.T) {
	var r *Result
	assert.False(t, r.Valid())
	assert.Zero(t, r.Len())
	assert.Zero(t, r.AffectedRows())
	assert.Nil(t, r.Next())
	_, err := r.Row(0)
	assert.ErrorIs(t, err, ErrInvalidResult)
	for range r.Rows() {
		t.Fatal("invalid result has no rows")
	}
}

func TestTextFieldConversions(t *testing.T) {
	f := textField("n", []byte("300"))
	n, err := f.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(300), n)
	_, err = f.Int8()
	assert.ErrorIs(t, err, ErrOutOfRange)
	u, err := f.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(300), u)

	_, err = textField("n", []byte("-1")).Uint32()
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = textField("n", []byte("99999999999999999999")).Int64()
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = textField("name", []byte("abc")).Int32()
	assert.ErrorIs(t, err, ErrTypeMismatch)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "name", fe.Column)
	assert.Equal(t, "int32", fe.Want)

	v, err := textField("f", []byte("2.5")).Float64()
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	tm, err := textField("d", []byte("2023-12-31 23:59:58")).Tm()
	require.NoError(t, err)
	assert.Equal(t, Tm{Sec: 58, Min: 59, Hour: 23, MDay: 31, Mon: 11, Year: 123, IsDST: -1}, tm)
	_, err = textField("d", []byte("yesterday")).Time()
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestNullFieldConversions(t *testing.T) {
	f := nullField("x")
	assert.True(t, f.IsNull())
	assert.Equal(t, KindNull, f.Kind())
	assert.Equal(t, "", f.String())
	assert.Nil(t, f.Bytes())
	assert.Nil(t, f.Value())
	n, err := f.Int64()
	require.NoError(t, err)
	assert.Zero(t, n)
	u, err := f.Uint8()
	require.NoError(t, err)
	assert.Zero(t, u)
	v, err := f.Float32()
	require.NoError(t, err)
	assert.Zero(t, v)
	tm, err := f.Tm()
	require.NoError(t, err)
	assert.Equal(t, Tm{IsDST: -1}, tm)
	ts, err := f.Time()
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	assert.True(t, textField("x", nil).IsNull())
	assert.False(t, textField("x", []byte{}).IsNull())
}

func TestNumericFieldConversions(t *testing.T) {
	f := Field{kind: KindInteger, bits: uint64(math.MaxUint64), column: "n"}
	n, err := f.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), n)
	_, err = f.Uint64()
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, "-1", f.String())

	d := Field{kind: KindDouble, bits: math.Float64bits(42), column: "d"}
	i, err := d.Int16()
	require.NoError(t, err)
	assert.Equal(t, int16(42), i)
	_, err = Field{kind: KindDouble, bits: math.Float64bits(1.25)}.Int64()
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, "42", d.String())
}

func TestRowScan(t *testing.T) {
	set := newResultSet([]backend.Column{
		{Name: "id", Type: backend.TypeLongLong},
		{Name: "name", Type: backend.TypeVarString},
		{Name: "nick", Type: backend.TypeVarString},
		{Name: "created", Type: backend.TypeDatetime},
	}, 1)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	set.rows = append(set.rows, []Field{
		{kind: KindInteger, bits: 7, column: "id"},
		textField("name", []byte("alice")),
		nullField("nick"),
		{kind: KindTemporal, tm: backend.TimeOf(created), column: "created"},
	})
	r := rowsResult(set)
	row, err := r.Row(0)
	require.NoError(t, err)

	var (
		id      int
		name    string
		nick    *string
		when    time.Time
		another any
	)
	require.NoError(t, row.Scan(&id, &name, &nick, &when))
	assert.Equal(t, 7, id)
	assert.Equal(t, "alice", name)
	assert.Nil(t, nick)
	assert.Equal(t, created, when)
	assert.Error(t, row.Scan(&id))

	f, _ := row.Get("id")
	require.NoError(t, f.Scan(&another))
	assert.Equal(t, int64(7), another)

	type user struct {
		ID      int64  `db:"id"`
		Name    string
		Nick    string
		Created time.Time
		Ignored string `db:"-"`
	}
	var u user
	require.NoError(t, row.ScanStruct(&u))
	assert.Equal(t, user{ID: 7, Name: "alice", Created: created}, u)
	assert.Error(t, row.ScanStruct(u))

	assert.Equal(t, map[string]any{
		"id":      int64(7),
		"name":    []byte("alice"),
		"nick":    nil,
		"created": created,
	}, row.ScanMap())

	type label string
	var l label
	require.NoError(t, row.fields[1].Scan(&l))
	assert.Equal(t, label("alice"), l)
	var ch chan int
	assert.ErrorIs(t, row.fields[0].Scan(&ch), ErrTypeMismatch)
}

func TestNegativeTimeKeepsSign(t *testing.T) {
	f := Field{kind: KindTemporal, tm: backend.Time{Hour: 10, Minute: 30, Second: 5, Neg: true}, column: "delay"}
	tm, err := f.Tm()
	require.NoError(t, err)
	assert.Equal(t, Tm{Sec: -5, Min: -30, Hour: -10, Mon: -1, Year: -1900, IsDST: -1}, tm)

	d, err := f.Duration()
	require.NoError(t, err)
	assert.Equal(t, -(10*time.Hour + 30*time.Minute + 5*time.Second), d)

	ts, err := f.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC).Add(d), ts)

	d, err = textField("delay", []byte("-838:59:59")).Duration()
	require.NoError(t, err)
	assert.Equal(t, -(838*time.Hour + 59*time.Minute + 59*time.Second), d)
}

func TestDecodeFieldRejectsMalformedBuffers(t *testing.T) {
	_, err := decodeField("created", &backend.OutBind{Type: backend.TypeDatetime, Buffer: make([]byte, 3)})
	assert.ErrorIs(t, err, ErrResultCorrupted)

	_, err = decodeField("id", &backend.OutBind{Type: backend.TypeLongLong, Buffer: make([]byte, 4)})
	assert.ErrorIs(t, err, ErrResultCorrupted)

	_, err = decodeField("label", &backend.OutBind{Type: backend.TypeBlob, Buffer: make([]byte, 2), Length: 5})
	assert.ErrorIs(t, err, ErrResultCorrupted)

	f, err := decodeField("label", &backend.OutBind{Type: backend.TypeBlob, Buffer: []byte("abc"), Length: 3})
	require.NoError(t, err)
	assert.Equal(t, "abc", f.String())

	f, err = decodeField("created", &backend.OutBind{Type: backend.TypeDatetime, IsNull: true})
	require.NoError(t, err)
	assert.True(t, f.IsNull())
}
