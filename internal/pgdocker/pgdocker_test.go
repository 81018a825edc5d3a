package pgdocker

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jschaf/pgquery/internal/texts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDockerfile(t *testing.T) {
	got, err := renderDockerfile("postgres:13", initTarNames([]string{"sql/schema.sql", "/tmp/seed.sql"}))
	require.NoError(t, err)
	want := texts.Dedent(`
		FROM postgres:13

		COPY 000_schema.sql /docker-entrypoint-initdb.d/
		COPY 001_seed.sql /docker-entrypoint-initdb.d/
	`)
	assert.Equal(t, want+"\n", string(got))
}

func TestParseImageID(t *testing.T) {
	id, err := parseImageID([]byte(`{"stream":"Step 1/1 : FROM postgres:13"}` + "\n" +
		`{"stream":"Successfully built 4a1f0e3c9d2b\n"}`))
	require.NoError(t, err)
	assert.Equal(t, "4a1f0e3c9d2b", id)

	_, err = parseImageID([]byte(`{"error":"pull access denied"}`))
	assert.Error(t, err)
}

func TestTarInitScript(t *testing.T) {
	script := filepath.Join(t.TempDir(), "schema.sql")
	require.NoError(t, os.WriteFile(script, []byte("CREATE TABLE t (id int);"), 0644))

	buf := &bytes.Buffer{}
	tarW := tar.NewWriter(buf)
	require.NoError(t, tarInitScript(tarW, script, "000_schema.sql"))
	require.NoError(t, tarW.Close())

	tarR := tar.NewReader(buf)
	hdr, err := tarR.Next()
	require.NoError(t, err)
	assert.Equal(t, "000_schema.sql", hdr.Name)
	bs, err := io.ReadAll(tarR)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE t (id int);", string(bs))
}
