package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/bmatcuk/doublestar"
	"github.com/jschaf/pgquery"
	"github.com/jschaf/pgquery/internal/flags"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"os"
	"sort"
)

const flagHelp = `
pgquery loads Postgres query files, minifies them, and checks them against a
database. Every flag may also be set with an environment variable prefixed by
PGQUERY_, like PGQUERY_LOG_LEVEL=debug.
`

// envPrefix is the environment variable prefix for flags.
const envPrefix = "PGQUERY"

// rootConfig holds flags shared by all subcommands.
type rootConfig struct {
	logLevel *zapcore.Level
	log      *zap.Logger
}

func (rc *rootConfig) registerFlags(fset *flag.FlagSet) {
	rc.logLevel = flags.Level(fset, "log-level", zapcore.InfoLevel, "log level: debug, info, warn, or error")
}

// buildLogger creates the development logger at the configured level.
func (rc *rootConfig) buildLogger() error {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(*rc.logLevel)
	cfg.DisableStacktrace = true
	log, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	rc.log = log
	return nil
}

// queryFileFlags are the flags that select query files.
type queryFileFlags struct {
	files *[]string
	globs *[]string
}

func (qf *queryFileFlags) registerFlags(fset *flag.FlagSet) {
	qf.files = flags.Strings(fset, "query-file", nil, "query file path; may be repeated")
	qf.globs = flags.Strings(fset, "query-glob", nil, "query file glob like 'sql/**/*.sql'; may be repeated")
}

// paths returns the sorted, unique query file paths from the flags.
func (qf *queryFileFlags) paths() ([]string, error) {
	seen := make(map[string]struct{})
	paths := make([]string, 0, len(*qf.files))
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}
	for _, f := range *qf.files {
		add(f)
	}
	for _, glob := range *qf.globs {
		matches, err := doublestar.Glob(glob)
		if err != nil {
			return nil, fmt.Errorf("expand query glob %q: %w", glob, err)
		}
		for _, m := range matches {
			add(m)
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one --query-file or matching --query-glob must be specified")
	}
	sort.Strings(paths)
	return paths, nil
}

// queryFileOptions returns the options for each loaded query file.
func (rc *rootConfig) queryFileOptions(minify bool, metrics *pgquery.Metrics) pgquery.QueryFileOptions {
	return pgquery.QueryFileOptions{
		Debug:   pgquery.DebugFromEnv(os.Getenv),
		Minify:  minify,
		Logger:  rc.log,
		Metrics: metrics,
	}
}

func run() error {
	rc := &rootConfig{}
	rootFlagSet := flag.NewFlagSet("pgquery", flag.ExitOnError)
	rc.registerFlags(rootFlagSet)
	rootCmd := &ffcli.Command{
		ShortUsage: "pgquery [--log-level=info] <subcommand> [options...]",
		LongHelp:   flagHelp[1 : len(flagHelp)-1], // remove lead/trail newlines
		FlagSet:    rootFlagSet,
		Options:    []ff.Option{ff.WithEnvVarPrefix(envPrefix)},
		Subcommands: []*ffcli.Command{
			newMinifyCmd(rc),
			newCheckCmd(rc),
		},
	}
	rootCmd.Exec = func(ctx context.Context, args []string) error {
		fmt.Fprintln(os.Stderr, ffcli.DefaultUsageFunc(rootCmd))
		return flag.ErrHelp
	}
	if err := rootCmd.Parse(os.Args[1:]); err != nil {
		return err
	}
	if err := rc.buildLogger(); err != nil {
		return err
	}
	defer func() { _ = rc.log.Sync() }()
	return rootCmd.Run(context.Background())
}

func main() {
	if err := run(); err != nil {
		if err == flag.ErrHelp {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}
