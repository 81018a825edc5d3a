package pgquery

import (
	"encoding/json"
	"github.com/jschaf/pgquery/internal/minify"
	"github.com/jschaf/pgquery/internal/texts"
	"go.uber.org/zap"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvVar is the environment variable read by DebugFromEnv.
const EnvVar = "PGQUERY_ENV"

// DebugFromEnv reports whether the environment marks the process as running in
// development, meaning EnvVar is "development". Read it once at startup and
// pass the result as QueryFileOptions.Debug.
func DebugFromEnv(getenv func(string) string) bool {
	return getenv(EnvVar) == "development"
}

// QueryFileOptions configures a QueryFile. The options are fixed once the
// QueryFile is created.
type QueryFileOptions struct {
	// Debug checks the file modification time on every Prepare and rereads the
	// file if it changed.
	Debug bool `json:"debug"`
	// Minify removes comments and flattens the SQL into a single line. Failure
	// to parse the SQL results in a *SQLParseError.
	Minify bool `json:"minify"`
	// Logger logs loads and reloads at debug level. Defaults to a no-op logger.
	Logger *zap.Logger `json:"-"`
	// Metrics, if set, counts file loads and reloads.
	Metrics *Metrics `json:"-"`
}

// fileResult is the outcome of the last Prepare: either the loaded SQL and the
// modification time it was read at, or the error that prevented loading.
type fileResult struct {
	sql     string
	modTime time.Time
	err     error
}

// QueryFile provides the SQL query stored in a file. The file may contain
// comments but only a single query.
//
// Problems reading the file are never returned from the constructor; they're
// available from Err and reported when the query is used.
//
// A QueryFile is not safe for concurrent use. It may be shared by multiple
// ParameterizedQuery values, which then all observe the same reloads.
type QueryFile struct {
	path  string
	opts  QueryFileOptions
	log   *zap.Logger
	state *fileResult // nil only before the first Prepare
}

// NewQueryFile creates a QueryFile for the SQL file at path and prepares it.
func NewQueryFile(path string, opts QueryFileOptions) *QueryFile {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	qf := &QueryFile{
		path: path,
		opts: opts,
		log:  log.With(zap.String("query_file", path)),
	}
	qf.Prepare()
	return qf
}

func (qf *QueryFile) isText() {}

func (qf *QueryFile) ready() bool {
	return qf.state != nil && qf.state.err == nil
}

// Prepare loads the file if it hasn't been loaded yet. In debug mode, Prepare
// also rereads the file if its modification time changed since the last load.
// Otherwise, once the file is loaded, Prepare does no I/O.
func (qf *QueryFile) Prepare() {
	var modTime time.Time
	hasModTime := false
	reload := false
	if qf.opts.Debug && qf.ready() {
		info, err := os.Stat(qf.path)
		if err != nil {
			qf.fail(&QueryFileError{Path: qf.path, Op: "stat", Err: err})
			return
		}
		modTime, hasModTime = info.ModTime(), true
		if !modTime.Equal(qf.state.modTime) {
			qf.log.Debug("query file changed on disk",
				zap.Time("old_mod_time", qf.state.modTime),
				zap.Time("new_mod_time", modTime))
			qf.opts.Metrics.fileReloaded()
			reload = true
		}
	}
	if qf.ready() && !reload {
		return
	}

	bs, err := os.ReadFile(qf.path)
	if err != nil {
		qf.fail(&QueryFileError{Path: qf.path, Op: "read", Err: err})
		return
	}
	if !hasModTime {
		info, err := os.Stat(qf.path)
		if err != nil {
			qf.fail(&QueryFileError{Path: qf.path, Op: "stat", Err: err})
			return
		}
		modTime = info.ModTime()
	}
	sql := string(bs)
	if qf.opts.Minify {
		sql, err = minify.Minify(sql, qf.path)
		if err != nil {
			qf.fail(err)
			return
		}
	}
	qf.state = &fileResult{sql: sql, modTime: modTime}
	qf.opts.Metrics.fileLoaded(nil)
	qf.log.Debug("loaded query file", zap.Int("size", len(sql)), zap.Time("mod_time", modTime))
}

func (qf *QueryFile) fail(err error) {
	qf.state = &fileResult{err: err}
	qf.opts.Metrics.fileLoaded(err)
	qf.log.Debug("load query file", zap.Error(err))
}

// SQL returns the prepared query text, or an empty string if Err is set.
func (qf *QueryFile) SQL() string {
	if qf.state == nil {
		return ""
	}
	return qf.state.sql
}

// Err returns the error from the last Prepare, if any.
func (qf *QueryFile) Err() error {
	if qf.state == nil {
		return nil
	}
	return qf.state.err
}

// Path returns the file path given to NewQueryFile.
func (qf *QueryFile) Path() string { return qf.path }

// Options returns a copy of the options given to NewQueryFile.
func (qf *QueryFile) Options() QueryFileOptions { return qf.opts }

// String returns the error message if the file failed to load, otherwise the
// SQL.
func (qf *QueryFile) String() string {
	if err := qf.Err(); err != nil {
		return err.Error()
	}
	return qf.SQL()
}

// Inspect renders the query file as a nested diagnostic at the given level.
func (qf *QueryFile) Inspect(level int) string {
	if level < 0 {
		level = 0
	}
	gap0, gap1 := texts.Gap(level), texts.Gap(level+1)
	opts, _ := json.Marshal(qf.opts)
	lines := []string{
		"QueryFile {",
		gap1 + "file: " + strconv.Quote(qf.path),
		gap1 + "options: " + string(opts),
	}
	if err := qf.Err(); err != nil {
		lines = append(lines, gap1+"error: "+inspectErr(err, level+1))
	} else {
		lines = append(lines, gap1+"query: "+strconv.Quote(qf.SQL()))
	}
	lines = append(lines, gap0+"}")
	return strings.Join(lines, "\n")
}
