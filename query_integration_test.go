//go:build integration

package pgquery

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jschaf/pgquery/internal/pgtest"
	"github.com/jschaf/pgquery/internal/texts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_Postgres(t *testing.T) {
	conn := pgtest.NewPostgresSchemaString(t, texts.Dedent(`
		CREATE TABLE author (
			author_id  int PRIMARY KEY,
			first_name text NOT NULL
		);
		INSERT INTO author VALUES (1, 'alice'), (2, 'bob');
	`))
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "find_author.sql")
	writeQueryFile(t, path, texts.Dedent(`
		-- Find an author by ID.
		SELECT author_id, first_name
		FROM author
		WHERE author_id = $1;
	`), baseModTime)
	qf := NewQueryFile(path, QueryFileOptions{Minify: true})
	require.NoError(t, qf.Err())

	pq := NewParameterizedQuery(qf, []interface{}{1})
	res, err := Query(ctx, conn, pq, One)
	require.NoError(t, err)
	assert.Equal(t, []string{"author_id", "first_name"}, res.Columns)
	assert.Equal(t, []map[string]interface{}{{"author_id": int32(1), "first_name": "alice"}}, res.Maps())

	pq.SetValues([]interface{}{3})
	_, err = Query(ctx, conn, pq, One)
	var resErr *QueryResultError
	require.True(t, errors.As(err, &resErr), "want *QueryResultError; got %v", err)
	assert.Equal(t, CodeNoData, resErr.Code)

	all := NewParameterizedQueryFromConfig(ParameterizedQueryConfig{
		Text:    SQL("SELECT first_name FROM author ORDER BY author_id"),
		Binary:  boolPtr(true),
		RowMode: RowModeArray,
	})
	res, err = Query(ctx, conn, all, Many)
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"alice"}, {"bob"}}, res.Rows)
	assert.Equal(t, "SELECT 2", res.CommandTag.String())

	del := NewParameterizedQuery(SQL("DELETE FROM author WHERE author_id = $1"), []int{2})
	res, err = Query(ctx, conn, del, None)
	require.NoError(t, err)
	assert.Equal(t, "DELETE 1", res.CommandTag.String())
}
