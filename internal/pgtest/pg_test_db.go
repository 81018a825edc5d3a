// Package pgtest creates isolated Postgres schemas for database tests.
package pgtest

import (
	"context"
	"github.com/jackc/pgx/v4"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

// ConnStringEnvVar overrides DefaultConnString for database tests.
const ConnStringEnvVar = "PGQUERY_TEST_POSTGRES"

// DefaultConnString points at the Postgres started for local development.
const DefaultConnString = "user=postgres password=hunter2 host=localhost port=5555 dbname=pgquery"

// ConnString returns the connection string for database tests.
func ConnString() string {
	if s := os.Getenv(ConnStringEnvVar); s != "" {
		return s
	}
	return DefaultConnString
}

// NewPostgresSchemaString opens a connection with search_path set to a
// randomly named, new schema and runs sql in it. The schema is dropped when
// the test finishes.
func NewPostgresSchemaString(t *testing.T, sql string) *pgx.Conn {
	t.Helper()
	connStr := ConnString()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		t.Fatalf("connect to postgres: %s", err)
	}
	schema := "pgquery_test_" + strconv.Itoa(int(rand.Int31()))
	if _, err = conn.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("create new schema: %s", err)
	}
	t.Logf("created schema: %s", schema)

	schemaConn, err := pgx.Connect(ctx, connStr+" search_path="+schema)
	if err != nil {
		t.Fatalf("connect to postgres with search path: %s", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := schemaConn.Close(ctx); err != nil {
			t.Errorf("close schema conn: %s", err)
		}
		if _, err := conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE"); err != nil {
			t.Errorf("drop schema %s: %s", schema, err)
		}
		if err := conn.Close(ctx); err != nil {
			t.Errorf("close conn: %s", err)
		}
	})

	if strings.TrimSpace(sql) != "" {
		if _, err := schemaConn.Exec(ctx, sql); err != nil {
			t.Fatalf("run schema sql: %s", err)
		}
	}
	return schemaConn
}

// NewPostgresSchema is NewPostgresSchemaString with the concatenated
// contents of sqlFiles.
func NewPostgresSchema(t *testing.T, sqlFiles []string) *pgx.Conn {
	t.Helper()
	sb := &strings.Builder{}
	for _, file := range sqlFiles {
		bs, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("read schema file: %s", err)
		}
		sb.WriteString("-- FILE: ")
		sb.WriteString(file)
		sb.WriteString("\n")
		sb.Write(bs)
		sb.WriteString(";\n\n")
	}
	return NewPostgresSchemaString(t, sb.String())
}
