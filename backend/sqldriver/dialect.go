package sqldriver

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/tianxinzizhen/asyncdb/backend"
	"github.com/tianxinzizhen/asyncdb/param"
)

// dialect holds what differs between the servers behind database/sql.
type dialect struct {
	name string

	// open builds the pool for cfg.
	open func(cfg backend.Config) (*sqlx.DB, error)

	escape func(text string) string

	// columnType maps a database type name; ok is false for names the
	// dialect does not know.
	columnType func(name string) (t backend.FieldType, unsigned bool, ok bool)

	// message extracts the server's own error text.
	message func(err error) string

	// lost reports errors after which the connection is unusable.
	lost func(err error) bool
}

func isBadConn(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone)
}

var mysqlDialect = &dialect{
	name: "mysql",
	open: func(cfg backend.Config) (*sqlx.DB, error) {
		mc, err := mysqlConfig(cfg)
		if err != nil {
			return nil, err
		}
		connector, err := mysql.NewConnector(mc)
		if err != nil {
			return nil, err
		}
		return sqlx.NewDb(sql.OpenDB(connector), "mysql"), nil
	},
	escape: param.EscapeBackslash,
	columnType: func(name string) (backend.FieldType, bool, bool) {
		unsigned := false
		if rest, ok := strings.CutPrefix(name, "UNSIGNED "); ok {
			unsigned = true
			name = rest
		}
		t, ok := mysqlTypes[name]
		return t, unsigned, ok
	},
	message: func(err error) string {
		var me *mysql.MySQLError
		if errors.As(err, &me) {
			return me.Message
		}
		return err.Error()
	},
	lost: func(err error) bool {
		if isBadConn(err) || errors.Is(err, mysql.ErrInvalidConn) {
			return true
		}
		var me *mysql.MySQLError
		// 2006 server has gone away, 2013 lost connection during query
		return errors.As(err, &me) && (me.Number == 2006 || me.Number == 2013)
	},
}

func mysqlConfig(cfg backend.Config) (*mysql.Config, error) {
	var mc *mysql.Config
	if cfg.DSN != "" {
		parsed, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
		mc = parsed
	} else {
		mc = mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.DBName = cfg.Database
		mc.Net = "tcp"
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		host := cfg.Host
		if host == "" {
			host = "127.0.0.1"
		}
		mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	}
	mc.ParseTime = true
	if cfg.Flags&backend.FlagMultiStatements != 0 {
		mc.MultiStatements = true
	}
	if cfg.Flags&backend.FlagFoundRows != 0 {
		mc.ClientFoundRows = true
	}
	return mc, nil
}

var mysqlTypes = map[string]backend.FieldType{
	"TINYINT":    backend.TypeTiny,
	"SMALLINT":   backend.TypeShort,
	"MEDIUMINT":  backend.TypeInt24,
	"INT":        backend.TypeLong,
	"BIGINT":     backend.TypeLongLong,
	"YEAR":       backend.TypeYear,
	"FLOAT":      backend.TypeFloat,
	"DOUBLE":     backend.TypeDouble,
	"DECIMAL":    backend.TypeNewDecimal,
	"ENUM":       backend.TypeEnum,
	"SET":        backend.TypeSet,
	"BIT":        backend.TypeBit,
	"GEOMETRY":   backend.TypeGeometry,
	"JSON":       backend.TypeJSON,
	"CHAR":       backend.TypeString,
	"BINARY":     backend.TypeString,
	"VARCHAR":    backend.TypeVarString,
	"VARBINARY":  backend.TypeVarString,
	"TEXT":       backend.TypeBlob,
	"BLOB":       backend.TypeBlob,
	"TINYTEXT":   backend.TypeTinyBlob,
	"TINYBLOB":   backend.TypeTinyBlob,
	"MEDIUMTEXT": backend.TypeMediumBlob,
	"MEDIUMBLOB": backend.TypeMediumBlob,
	"LONGTEXT":   backend.TypeLongBlob,
	"LONGBLOB":   backend.TypeLongBlob,
	"DATE":       backend.TypeDate,
	"TIME":       backend.TypeTime,
	"DATETIME":   backend.TypeDatetime,
	"TIMESTAMP":  backend.TypeTimestamp,
	"NULL":       backend.TypeNull,
}

var sqliteDialect = &dialect{
	name: "sqlite3",
	open: func(cfg backend.Config) (*sqlx.DB, error) {
		dsn := cfg.DSN
		if dsn == "" {
			dsn = cfg.Database
		}
		if dsn == "" {
			dsn = ":memory:"
		}
		return sqlx.Open("sqlite3", dsn)
	},
	escape: param.EscapeQuotes,
	columnType: func(name string) (backend.FieldType, bool, bool) {
		// declared types carry their length, e.g. VARCHAR(255)
		name, _, _ = strings.Cut(name, "(")
		t, ok := sqliteTypes[strings.TrimSpace(name)]
		return t, false, ok
	},
	message: func(err error) string {
		var se sqlite3.Error
		if errors.As(err, &se) {
			return se.Error()
		}
		return err.Error()
	},
	lost: isBadConn,
}

var sqliteTypes = map[string]backend.FieldType{
	"INTEGER":   backend.TypeLongLong,
	"INT":       backend.TypeLongLong,
	"BIGINT":    backend.TypeLongLong,
	"SMALLINT":  backend.TypeLongLong,
	"TINYINT":   backend.TypeLongLong,
	"BOOLEAN":   backend.TypeTiny,
	"BOOL":      backend.TypeTiny,
	"REAL":      backend.TypeDouble,
	"DOUBLE":    backend.TypeDouble,
	"FLOAT":     backend.TypeDouble,
	"NUMERIC":   backend.TypeNewDecimal,
	"DECIMAL":   backend.TypeNewDecimal,
	"TEXT":      backend.TypeBlob,
	"CHAR":      backend.TypeString,
	"VARCHAR":   backend.TypeVarString,
	"BLOB":      backend.TypeBlob,
	"DATE":      backend.TypeDate,
	"DATETIME":  backend.TypeDatetime,
	"TIMESTAMP": backend.TypeTimestamp,
}

var postgresDialect = &dialect{
	name: "postgres",
	open: func(cfg backend.Config) (*sqlx.DB, error) {
		dsn := cfg.DSN
		if dsn == "" {
			port := cfg.Port
			if port == 0 {
				port = 5432
			}
			dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
				cfg.Host, port, cfg.User, cfg.Password, cfg.Database)
		}
		connector, err := pq.NewConnector(dsn)
		if err != nil {
			return nil, err
		}
		return sqlx.NewDb(sql.OpenDB(connector), "postgres"), nil
	},
	escape: param.EscapeQuotes,
	columnType: func(name string) (backend.FieldType, bool, bool) {
		t, ok := postgresTypes[name]
		return t, false, ok
	},
	message: func(err error) string {
		var pe *pq.Error
		if errors.As(err, &pe) {
			return pe.Message
		}
		return err.Error()
	},
	lost: func(err error) bool {
		if isBadConn(err) {
			return true
		}
		var pe *pq.Error
		// class 08: connection exception
		return errors.As(err, &pe) && pe.Code.Class() == "08"
	},
}

var postgresTypes = map[string]backend.FieldType{
	"BOOL":        backend.TypeTiny,
	"INT2":        backend.TypeShort,
	"INT4":        backend.TypeLong,
	"INT8":        backend.TypeLongLong,
	"FLOAT4":      backend.TypeFloat,
	"FLOAT8":      backend.TypeDouble,
	"NUMERIC":     backend.TypeNewDecimal,
	"TEXT":        backend.TypeBlob,
	"VARCHAR":     backend.TypeVarString,
	"BPCHAR":      backend.TypeString,
	"NAME":        backend.TypeVarString,
	"UUID":        backend.TypeString,
	"BYTEA":       backend.TypeBlob,
	"JSON":        backend.TypeJSON,
	"JSONB":       backend.TypeJSON,
	"DATE":        backend.TypeDate,
	"TIME":        backend.TypeTime,
	"TIMESTAMP":   backend.TypeDatetime,
	"TIMESTAMPTZ": backend.TypeTimestamp,
}

// returnsRows guesses from its leading keyword whether text yields rows.
func returnsRows(text string) bool {
	word := strings.ToUpper(leadingKeyword(text))
	switch word {
	case "SELECT", "WITH", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "PRAGMA", "VALUES", "TABLE", "CALL":
		return true
	}
	return strings.Contains(strings.ToUpper(text), "RETURNING")
}

func leadingKeyword(text string) string {
	for {
		text = strings.TrimLeft(text, " \t\r\n(")
		switch {
		case strings.HasPrefix(text, "--"), strings.HasPrefix(text, "#"):
			_, rest, ok := strings.Cut(text, "\n")
			if !ok {
				return ""
			}
			text = rest
		case strings.HasPrefix(text, "/*"):
			_, rest, ok := strings.Cut(text, "*/")
			if !ok {
				return ""
			}
			text = rest
		default:
			end := strings.IndexFunc(text, func(r rune) bool {
				return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
			})
			if end < 0 {
				return text
			}
			return text[:end]
		}
	}
}
