package asyncdb

import (
	"context"
	"sync"
)

type recordSqlKey struct{}

type RecordSqlItem struct {
	Sql  string
	Args []any
}

// RecordSql collects the SQL text sent to the driver by connections whose
// context carries it. Args is set for prepared statement executions.
type RecordSql struct {
	mu   sync.Mutex
	List []RecordSqlItem
}

func (r *RecordSql) add(sql string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.List = append(r.List, RecordSqlItem{Sql: sql, Args: args})
}

// Items returns a copy of the recorded statements.
func (r *RecordSql) Items() []RecordSqlItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordSqlItem(nil), r.List...)
}

func FromRecordSql(ctx context.Context) (*RecordSql, bool) {
	if ctx == nil {
		return nil, false
	}
	recordSql, ok := ctx.Value(recordSqlKey{}).(*RecordSql)
	return recordSql, ok
}

func NewRecordSql(ctx context.Context) context.Context {
	if _, ok := FromRecordSql(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, recordSqlKey{}, &RecordSql{})
}

func recordSql(ctx context.Context, sql string, args []any) {
	if r, ok := FromRecordSql(ctx); ok {
		r.add(sql, args)
	}
}
