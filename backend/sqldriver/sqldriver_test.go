package sqldriver_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tianxinzizhen/asyncdb"
	"github.com/tianxinzizhen/asyncdb/backend"
	"github.com/tianxinzizhen/asyncdb/backend/sqldriver"
	"github.com/tianxinzizhen/asyncdb/executor"
)

type outcome struct {
	result *asyncdb.Result
	err    error
}

func observe(d *asyncdb.Deferred) *outcome {
	o := &outcome{}
	d.OnSuccess(func(r *asyncdb.Result) { o.result = r }).
		OnFailure(func(err error) { o.err = err })
	return o
}

func run(t *testing.T, loop *executor.Loop) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, loop.Run(ctx))
}

func TestSQLiteThroughConnection(t *testing.T) {
	loop := executor.NewLoop()
	c := asyncdb.Connect(loop, sqldriver.SQLite(), backend.Config{})
	defer c.Close()

	created := observe(c.Query("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, score REAL)"))
	inserted := observe(c.Execute("INSERT INTO users (name, score) VALUES (?, ?)", "O'Brien", 1.5))
	stmt := c.Prepare("INSERT INTO users (name, score) VALUES (?, ?)")
	second := observe(stmt.Execute("alice", nil))
	rows := observe(c.Query("SELECT id, name, score FROM users ORDER BY id"))
	missing := observe(c.Query("SELECT * FROM missing"))
	run(t, loop)

	require.NoError(t, created.err)
	require.NoError(t, inserted.err)
	assert.Equal(t, uint64(1), inserted.result.AffectedRows())
	assert.Equal(t, uint64(1), inserted.result.InsertID())

	require.NoError(t, second.err)
	assert.Equal(t, uint64(2), second.result.InsertID())

	require.NoError(t, rows.err)
	require.Equal(t, 2, rows.result.Len())
	assert.Equal(t, []string{"id", "name", "score"}, rows.result.Columns())
	row, err := rows.result.Row(0)
	require.NoError(t, err)
	name, err := row.Get("name")
	require.NoError(t, err)
	assert.Equal(t, "O'Brien", name.String())
	row, err = rows.result.Row(1)
	require.NoError(t, err)
	score, err := row.Get("score")
	require.NoError(t, err)
	assert.True(t, score.IsNull())

	var de *asyncdb.DriverError
	require.ErrorAs(t, missing.err, &de)
	assert.Equal(t, "no such table: missing", missing.err.Error())
}

func TestSQLitePreparedSelect(t *testing.T) {
	loop := executor.NewLoop()
	c := asyncdb.Connect(loop, sqldriver.SQLite(), backend.Config{Database: ":memory:"})
	defer c.Close()

	c.Query("CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT, price REAL)")
	c.Query("INSERT INTO items (label, price) VALUES ('pen', 1.25), ('notebook', 3.5)")
	stmt := c.Prepare("SELECT id, label, price FROM items WHERE price > ? ORDER BY id")
	var prepared error
	stmt.OnPrepared(func(err error) { prepared = err })
	first := observe(stmt.Execute(1.0))
	count := observe(stmt.Execute(1.0, 2))
	run(t, loop)

	require.NoError(t, prepared)
	assert.Equal(t, asyncdb.StateReady, stmt.State())

	require.NoError(t, first.err)
	require.Equal(t, 2, first.result.Len())
	row, err := first.result.Row(1)
	require.NoError(t, err)
	label, err := row.Get("label")
	require.NoError(t, err)
	assert.Equal(t, "notebook", label.String())
	price, err := row.Get("price")
	require.NoError(t, err)
	p, err := price.Float64()
	require.NoError(t, err)
	assert.InDelta(t, 3.5, p, 1e-9)
	id, err := row.At(0)
	require.NoError(t, err)
	n, err := id.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.ErrorIs(t, count.err, asyncdb.ErrParamCount)
}

func TestSQLiteDirect(t *testing.T) {
	ctx := context.Background()
	conn, err := sqldriver.SQLite().Connect(ctx, backend.Config{})
	require.NoError(t, err)
	defer conn.Close()

	has, err := conn.Query(ctx, "CREATE TABLE kv (k TEXT, v BLOB)")
	require.NoError(t, err)
	assert.False(t, has)

	stmt, err := conn.Prepare(ctx, "INSERT INTO kv VALUES (?, ?)")
	require.NoError(t, err)
	assert.Equal(t, 2, stmt.ParamCount())
	require.NoError(t, stmt.Execute(ctx, []backend.Bind{
		{Type: backend.TypeString, Buffer: []byte("a")},
		{Type: backend.TypeBlob, Buffer: []byte{0, 1, 2}},
	}))
	assert.Equal(t, uint64(1), stmt.AffectedRows())
	require.NoError(t, stmt.Close())

	has, err = conn.Query(ctx, "SELECT k, v FROM kv")
	require.NoError(t, err)
	require.True(t, has)
	rows, err := conn.StoreResult(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rows.NumRows())
	cells, err := rows.FetchRow()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), {0, 1, 2}}, cells)
	_, err = rows.FetchRow()
	assert.ErrorIs(t, err, backend.ErrNoData)

	more, err := conn.NextResult(ctx)
	require.NoError(t, err)
	assert.False(t, more)
	assert.False(t, conn.Reconnected())
}

func TestMySQL(t *testing.T) {
	dsn := os.Getenv("ASYNCDB_MYSQL_DSN")
	if dsn == "" {
		t.Skip("ASYNCDB_MYSQL_DSN not set")
	}
	loop := executor.NewLoop()
	c := asyncdb.Connect(loop, sqldriver.MySQL(), backend.Config{DSN: dsn, Flags: backend.FlagMultiStatements})
	defer c.Close()

	multi := observe(c.Query("SELECT 1 AS a; SELECT 'x' AS b, CAST(18446744073709551615 AS UNSIGNED) AS c"))
	stmt := c.Prepare("SELECT ? + 1 AS n")
	plus := observe(stmt.Execute(41))
	run(t, loop)

	require.NoError(t, multi.err)
	require.Equal(t, 1, multi.result.Len())
	next := multi.result.Next()
	require.NotNil(t, next)
	row, err := next.Row(0)
	require.NoError(t, err)
	f, err := row.Get("c")
	require.NoError(t, err)
	u, err := f.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), u)

	require.NoError(t, plus.err)
	row, err = plus.result.Row(0)
	require.NoError(t, err)
	f, err = row.At(0)
	require.NoError(t, err)
	n, err := f.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}
