package asyncdb

import (
	"context"

	"go.uber.org/zap"
)

type options struct {
	ctx       context.Context
	log       *zap.Logger
	onConnect func(err error)
}

// Option configures a Connection.
type Option func(*options)

// WithLogger sets the logger; connections are silent by default.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithContext sets the context passed to every driver call. A context made
// with NewRecordSql records the SQL text the connection sends.
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithConnectCallback registers a callback run on the reactor once the
// connection attempt finished, with nil on success.
func WithConnectCallback(callback func(err error)) Option {
	return func(o *options) {
		o.onConnect = callback
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		ctx: context.Background(),
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
