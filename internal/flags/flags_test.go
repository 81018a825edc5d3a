package flags

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestStrings(t *testing.T) {
	fset := flag.NewFlagSet("test", flag.ContinueOnError)
	files := Strings(fset, "query-file", nil, "query file")
	require.NoError(t, fset.Parse([]string{"--query-file", "a.sql", "--query-file=b.sql"}))
	assert.Equal(t, []string{"a.sql", "b.sql"}, *files)
	assert.Equal(t, "a.sql,b.sql", fset.Lookup("query-file").Value.String())
}

func TestLevel(t *testing.T) {
	fset := flag.NewFlagSet("test", flag.ContinueOnError)
	lvl := Level(fset, "log-level", zapcore.InfoLevel, "log level")
	assert.Equal(t, zapcore.InfoLevel, *lvl)
	require.NoError(t, fset.Parse([]string{"--log-level", "debug"}))
	assert.Equal(t, zapcore.DebugLevel, *lvl)

	err := fset.Parse([]string{"--log-level", "loud"})
	assert.Error(t, err)
}
