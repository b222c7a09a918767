package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/tianxinzizhen/asyncdb"
	"github.com/tianxinzizhen/asyncdb/backend/sqldriver"
	"github.com/tianxinzizhen/asyncdb/config"
	"github.com/tianxinzizhen/asyncdb/executor"
	"github.com/tianxinzizhen/asyncdb/internal/logger"
	"go.uber.org/zap"
)

type flags struct {
	configDir string
	driver    string
	dsn       string
	timeout   time.Duration
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "asyncdb",
		Short:         "Run SQL through the asyncdb engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.configDir, "config-dir", "", "directory searched first for asyncdb.yaml")
	root.PersistentFlags().StringVar(&f.driver, "driver", "", "mysql, sqlite3 or postgres (overrides config)")
	root.PersistentFlags().StringVar(&f.dsn, "dsn", "", "data source name (overrides config)")
	root.PersistentFlags().DurationVar(&f.timeout, "timeout", 30*time.Second, "give up after this long")

	root.AddCommand(
		&cobra.Command{
			Use:   "query <sql>",
			Short: "Run raw SQL text",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return f.run(cmd, func(c *asyncdb.Connection) *asyncdb.Deferred {
					return c.Query(args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "exec <sql> [params...]",
			Short: "Substitute params into the placeholders of sql and run it",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return f.run(cmd, func(c *asyncdb.Connection) *asyncdb.Deferred {
					return c.Execute(args[0], params(args[1:])...)
				})
			},
		},
		&cobra.Command{
			Use:   "prepare <sql> [params...]",
			Short: "Prepare sql and execute it once with params",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return f.run(cmd, func(c *asyncdb.Connection) *asyncdb.Deferred {
					stmt := c.Prepare(args[0])
					d := stmt.Execute(params(args[1:])...)
					stmt.Close()
					return d
				})
			},
		},
	)
	return root
}

func params(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

// run connects, submits the operation built by op and renders its outcome.
func (f *flags) run(cmd *cobra.Command, op func(*asyncdb.Connection) *asyncdb.Deferred) error {
	dirs := []string{}
	if f.configDir != "" {
		dirs = append(dirs, f.configDir)
	}
	cfg, err := config.Load(dirs...)
	if err != nil {
		return err
	}
	if f.driver != "" {
		cfg.Driver = f.driver
	}
	if f.dsn != "" {
		cfg.DSN = f.dsn
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	driver, err := sqldriver.ByName(cfg.Driver)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	loop := executor.NewLoop()
	var connectErr error
	conn := asyncdb.Connect(loop, driver, cfg.Backend(),
		asyncdb.WithLogger(log),
		asyncdb.WithContext(ctx),
		asyncdb.WithConnectCallback(func(err error) { connectErr = err }),
	)
	var (
		result *asyncdb.Result
		failed error
	)
	op(conn).
		OnSuccess(func(r *asyncdb.Result) { result = r }).
		OnFailure(func(err error) { failed = err })
	conn.Close()

	if err := loop.Run(ctx); err != nil {
		return err
	}
	if connectErr != nil {
		return connectErr
	}
	if failed != nil {
		return failed
	}
	log.Debug("done", zap.String("conn", conn.ID()))
	return render(cmd.OutOrStdout(), result)
}

func render(w io.Writer, result *asyncdb.Result) error {
	for r := result; r != nil; r = r.Next() {
		if r.Columns() == nil {
			fmt.Fprintf(w, "affected rows: %d, insert id: %d\n", r.AffectedRows(), r.InsertID())
			continue
		}
		if err := printTable(w, r); err != nil {
			return err
		}
	}
	return nil
}
