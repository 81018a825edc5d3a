package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/jackc/pgx/v4"
	"github.com/jschaf/pgquery"
	"github.com/jschaf/pgquery/internal/errs"
	"github.com/jschaf/pgquery/internal/flags"
	"github.com/jschaf/pgquery/internal/pgcheck"
	"github.com/jschaf/pgquery/internal/pgdocker"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"io"
	"os"
	"strings"
	"time"
)

func newCheckCmd(rc *rootConfig) *ffcli.Command {
	fset := flag.NewFlagSet("check", flag.ExitOnError)
	qff := &queryFileFlags{}
	qff.registerFlags(fset)
	connString := fset.String("postgres-connection", "",
		"connection string to an existing Postgres database; if empty, starts Postgres in Docker")
	schemaFiles := flags.Strings(fset, "schema-file", nil,
		"SQL file to run when starting Postgres in Docker, like a schema; may be repeated")
	image := fset.String("docker-image", pgdocker.DefaultImage, "Postgres Docker image to start")
	minify := fset.Bool("minify", false, "minify each query file before checking it")
	return &ffcli.Command{
		Name:       "check",
		ShortUsage: "pgquery check --query-file=<file> [--postgres-connection=<dsn>] [options...]",
		ShortHelp:  "prepares each query file on Postgres and reports its parameters and columns",
		FlagSet:    fset,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Exec: func(ctx context.Context, args []string) (mErr error) {
			paths, err := qff.paths()
			if err != nil {
				return fmt.Errorf("pgquery check: %w", err)
			}
			dsn := *connString
			if dsn == "" {
				client, err := pgdocker.Start(ctx, pgdocker.Options{
					Image:       *image,
					InitScripts: *schemaFiles,
					Logger:      rc.log,
				})
				if err != nil {
					return fmt.Errorf("start postgres in docker: %w", err)
				}
				defer errs.Capture(&mErr, func() error { return stopDocker(client) }, "stop postgres docker")
				if dsn, err = client.ConnString(); err != nil {
					return err
				}
			} else if len(*schemaFiles) > 0 {
				rc.log.Warn("ignoring --schema-file with --postgres-connection")
			}

			conn, err := pgx.Connect(ctx, dsn)
			if err != nil {
				return fmt.Errorf("connect to postgres: %w", err)
			}
			defer errs.Capture(&mErr, func() error { return conn.Close(context.Background()) }, "close postgres conn")

			reg := prometheus.NewRegistry()
			metrics, err := pgquery.NewMetrics(reg)
			if err != nil {
				return err
			}
			checker := pgcheck.NewChecker(conn, rc.log)
			err = checkFiles(ctx, os.Stdout, checker, paths, rc.queryFileOptions(*minify, metrics), metrics)
			logMetrics(rc.log, reg)
			return err
		},
	}
}

func stopDocker(client *pgdocker.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.Stop(ctx)
}

// statementChecker checks a single SQL statement.
type statementChecker interface {
	Check(ctx context.Context, sql string) (pgcheck.Statement, error)
}

// checkFiles loads and checks each query file, writing one summary line per
// valid file to w. Errors from every file are returned together.
func checkFiles(ctx context.Context, w io.Writer, checker statementChecker, paths []string, opts pgquery.QueryFileOptions, metrics *pgquery.Metrics) error {
	var mErr error
	for _, path := range paths {
		pq := pgquery.NewParameterizedQuery(pgquery.NewQueryFile(path, opts), nil)
		pq.SetMetrics(metrics)
		q, err := pq.Parse()
		if err != nil {
			mErr = multierr.Append(mErr, fmt.Errorf("%s: %w", path, err))
			continue
		}
		stmt, err := checker.Check(ctx, q.SQL())
		if err != nil {
			mErr = multierr.Append(mErr, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if _, err := fmt.Fprintln(w, formatStatement(path, stmt)); err != nil {
			return fmt.Errorf("write check result: %w", err)
		}
	}
	return mErr
}

// formatStatement renders a one-line summary of a checked statement.
func formatStatement(path string, stmt pgcheck.Statement) string {
	params := make([]string, len(stmt.Params))
	for i, p := range stmt.Params {
		params[i] = fmt.Sprintf("$%d %s", i+1, p.PgType)
	}
	cols := make([]string, len(stmt.Columns))
	for i, c := range stmt.Columns {
		cols[i] = c.Name + " " + c.PgType
	}
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "%s: result=%s params=[%s] columns=[%s]",
		path, stmt.Result, strings.Join(params, ", "), strings.Join(cols, ", "))
	if stmt.Plan != "" {
		fmt.Fprintf(sb, " plan=%s", stmt.Plan)
	}
	return sb.String()
}

// logMetrics logs the value of every counter in reg at debug level.
func logMetrics(log *zap.Logger, reg prometheus.Gatherer) {
	families, err := reg.Gather()
	if err != nil {
		log.Debug("gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fields := []zap.Field{zap.Float64("value", m.GetCounter().GetValue())}
			for _, lp := range m.GetLabel() {
				fields = append(fields, zap.String(lp.GetName(), lp.GetValue()))
			}
			log.Debug(mf.GetName(), fields...)
		}
	}
}
