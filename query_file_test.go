package pgquery

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jschaf/pgquery/internal/texts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// writeQueryFile writes sql to path and sets its modification time.
func writeQueryFile(t *testing.T, path, sql string, modTime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(sql), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatal(err)
	}
}

var baseModTime = time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)

func TestQueryFile_Prepare_NoDebugNeverReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.sql")
	writeQueryFile(t, path, "SELECT 1", baseModTime)

	qf := NewQueryFile(path, QueryFileOptions{})
	require.NoError(t, qf.Err())
	assert.Equal(t, "SELECT 1", qf.SQL())

	writeQueryFile(t, path, "SELECT 2", baseModTime.Add(time.Hour))
	qf.Prepare()
	assert.NoError(t, qf.Err())
	assert.Equal(t, "SELECT 1", qf.SQL(), "not in debug mode so file should not reload")
}

func TestQueryFile_Prepare_DebugReloadsChangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.sql")
	writeQueryFile(t, path, "SELECT 1", baseModTime)
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	qf := NewQueryFile(path, QueryFileOptions{Debug: true, Logger: zaptest.NewLogger(t), Metrics: metrics})
	require.NoError(t, qf.Err())
	assert.Equal(t, "SELECT 1", qf.SQL())

	writeQueryFile(t, path, "SELECT 2", baseModTime.Add(time.Hour))
	qf.Prepare()
	require.NoError(t, qf.Err())
	assert.Equal(t, "SELECT 2", qf.SQL())

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.fileLoads.WithLabelValues("ok")), "loads")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.fileReloads), "reloads")
}

func TestQueryFile_Prepare_DebugSkipsUnchangedModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.sql")
	writeQueryFile(t, path, "SELECT 1", baseModTime)
	qf := NewQueryFile(path, QueryFileOptions{Debug: true})
	require.NoError(t, qf.Err())

	// Same mod time means the content isn't reread.
	writeQueryFile(t, path, "SELECT 2", baseModTime)
	qf.Prepare()
	assert.Equal(t, "SELECT 1", qf.SQL())
}

func TestQueryFile_Prepare_MissingFile(t *testing.T) {
	for _, debug := range []bool{false, true} {
		name := "no debug"
		if debug {
			name = "debug"
		}
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing.sql")
			qf := NewQueryFile(path, QueryFileOptions{Debug: debug})
			for i := 0; i < 3; i++ {
				assert.Equal(t, "", qf.SQL())
				err := qf.Err()
				require.Error(t, err)
				assert.True(t, errors.Is(err, fs.ErrNotExist), "want fs.ErrNotExist; got %v", err)
				var fileErr *QueryFileError
				require.True(t, errors.As(err, &fileErr))
				assert.Equal(t, "read", fileErr.Op)
				assert.Equal(t, path, fileErr.Path)
				qf.Prepare()
			}
		})
	}
}

func TestQueryFile_Prepare_DebugFileRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.sql")
	writeQueryFile(t, path, "SELECT 1", baseModTime)
	qf := NewQueryFile(path, QueryFileOptions{Debug: true})
	require.NoError(t, qf.Err())

	require.NoError(t, os.Remove(path))
	qf.Prepare()
	assert.Equal(t, "", qf.SQL())
	var fileErr *QueryFileError
	require.True(t, errors.As(qf.Err(), &fileErr), "want *QueryFileError; got %v", qf.Err())
	assert.Equal(t, "stat", fileErr.Op)

	// Not ready anymore, so the next Prepare reads the file.
	qf.Prepare()
	require.True(t, errors.As(qf.Err(), &fileErr))
	assert.Equal(t, "read", fileErr.Op)

	writeQueryFile(t, path, "SELECT 3", baseModTime)
	qf.Prepare()
	require.NoError(t, qf.Err())
	assert.Equal(t, "SELECT 3", qf.SQL())
}

func TestQueryFile_Prepare_Minify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "query.sql")
	writeQueryFile(t, path, texts.Dedent(`
		-- Find a user by ID.
		SELECT *
		FROM users /* all columns */
		WHERE id = $1;
	`), baseModTime)
	qf := NewQueryFile(path, QueryFileOptions{Minify: true})
	require.NoError(t, qf.Err())
	assert.Equal(t, "SELECT * FROM users WHERE id = $1;", qf.SQL())

	badPath := filepath.Join(dir, "bad.sql")
	writeQueryFile(t, badPath, "SELECT 'oops", baseModTime)
	bad := NewQueryFile(badPath, QueryFileOptions{Minify: true})
	assert.Equal(t, "", bad.SQL())
	var parseErr *SQLParseError
	require.True(t, errors.As(bad.Err(), &parseErr), "want *SQLParseError; got %v", bad.Err())
	assert.Equal(t, badPath, parseErr.File)
	assert.Equal(t, 1, parseErr.Pos.Line)
	assert.Equal(t, 8, parseErr.Pos.Column)
}

func TestQueryFile_Accessors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.sql")
	writeQueryFile(t, path, "SELECT 1", baseModTime)
	opts := QueryFileOptions{Debug: true, Minify: true}
	qf := NewQueryFile(path, opts)

	assert.Equal(t, path, qf.Path())
	assert.Equal(t, opts, qf.Options())
	assert.Equal(t, "SELECT 1", qf.String())

	want := "QueryFile {\n" +
		"    file: \"" + path + "\"\n" +
		"    options: {\"debug\":true,\"minify\":true}\n" +
		"    query: \"SELECT 1\"\n" +
		"}"
	assert.Equal(t, want, qf.Inspect(0))
}

func TestQueryFile_Inspect_Error(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sql")
	qf := NewQueryFile(path, QueryFileOptions{})
	assert.Equal(t, qf.Err().Error(), qf.String())

	got := qf.Inspect(0)
	assert.Contains(t, got, "    error: QueryFileError {\n")
	assert.Contains(t, got, "        op: \"read\"\n")
	assert.Contains(t, got, "        file: \""+path+"\"\n")
	assert.Contains(t, got, "    }\n}")
}

func TestDebugFromEnv(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want bool
	}{
		{map[string]string{}, false},
		{map[string]string{EnvVar: "production"}, false},
		{map[string]string{EnvVar: "development"}, true},
	}
	for _, tt := range tests {
		got := DebugFromEnv(func(key string) string { return tt.env[key] })
		assert.Equal(t, tt.want, got, "env %v", tt.env)
	}
}
