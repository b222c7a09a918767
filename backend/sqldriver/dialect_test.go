package sqldriver

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tianxinzizhen/asyncdb/backend"
)

func TestReturnsRows(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"SELECT 1", true},
		{"  select * from t", true},
		{"(SELECT 1) UNION (SELECT 2)", true},
		{"/* hint */ SELECT 1", true},
		{"-- note\nSHOW TABLES", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"INSERT INTO t VALUES (1)", false},
		{"INSERT INTO t VALUES (1) RETURNING id", true},
		{"UPDATE t SET a = 1", false},
		{"CREATE TABLE t (a INT)", false},
		{"", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, returnsRows(c.text), c.text)
	}
}

func TestColumnTypes(t *testing.T) {
	typ, unsigned, ok := mysqlDialect.columnType("UNSIGNED BIGINT")
	require.True(t, ok)
	assert.True(t, unsigned)
	assert.Equal(t, backend.TypeLongLong, typ)

	typ, _, ok = sqliteDialect.columnType("VARCHAR(255)")
	require.True(t, ok)
	assert.Equal(t, backend.TypeVarString, typ)

	_, _, ok = postgresDialect.columnType("INTERVAL")
	assert.False(t, ok)
}

func TestMySQLErrors(t *testing.T) {
	gone := &mysql.MySQLError{Number: 2006, Message: "MySQL server has gone away"}
	assert.True(t, mysqlDialect.lost(gone))
	assert.True(t, mysqlDialect.lost(mysql.ErrInvalidConn))
	assert.Equal(t, "MySQL server has gone away", mysqlDialect.message(gone))

	syntax := &mysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"}
	assert.False(t, mysqlDialect.lost(syntax))
}

func TestMySQLConfig(t *testing.T) {
	mc, err := mysqlConfig(backend.Config{Host: "db", User: "root", Database: "app", Flags: backend.FlagMultiStatements})
	require.NoError(t, err)
	assert.Equal(t, "db:3306", mc.Addr)
	assert.Equal(t, "app", mc.DBName)
	assert.True(t, mc.MultiStatements)
	assert.True(t, mc.ParseTime)

	mc, err = mysqlConfig(backend.Config{DSN: "u:p@tcp(10.0.0.1:3307)/shop", Host: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:3307", mc.Addr)
	assert.Equal(t, "shop", mc.DBName)
}

func TestInferColumn(t *testing.T) {
	rows := [][]any{{nil}, {int64(4)}}
	assert.Equal(t, backend.TypeLongLong, inferColumn(rows, 0))
	assert.Equal(t, backend.TypeVarString, inferColumn([][]any{{nil}}, 0))
}
