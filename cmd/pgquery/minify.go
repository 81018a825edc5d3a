package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/jschaf/pgquery"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"go.uber.org/multierr"
	"io"
	"os"
)

func newMinifyCmd(rc *rootConfig) *ffcli.Command {
	fset := flag.NewFlagSet("minify", flag.ExitOnError)
	qff := &queryFileFlags{}
	qff.registerFlags(fset)
	return &ffcli.Command{
		Name:       "minify",
		ShortUsage: "pgquery minify --query-file=<file> [--query-glob=<glob>...]",
		ShortHelp:  "prints the minified SQL of each query file",
		FlagSet:    fset,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Exec: func(ctx context.Context, args []string) error {
			paths, err := qff.paths()
			if err != nil {
				return fmt.Errorf("pgquery minify: %w", err)
			}
			return minifyFiles(os.Stdout, paths, rc.queryFileOptions(true, nil))
		},
	}
}

// minifyFiles writes the minified SQL of each file to w, preceded by a comment
// with the file path. Files that fail to load are skipped and their errors
// returned together.
func minifyFiles(w io.Writer, paths []string, opts pgquery.QueryFileOptions) error {
	var mErr error
	for _, path := range paths {
		qf := pgquery.NewQueryFile(path, opts)
		if err := qf.Err(); err != nil {
			mErr = multierr.Append(mErr, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if _, err := fmt.Fprintf(w, "-- %s\n%s\n", path, qf.SQL()); err != nil {
			return fmt.Errorf("write minified sql: %w", err)
		}
	}
	return mErr
}
