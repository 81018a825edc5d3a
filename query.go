package pgquery

import (
	"context"
	"fmt"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

// Conn is a connection to a Postgres database. This is usually backed by
// *pgx.Conn, pgx.Tx, or *pgxpool.Pool.
type Conn interface {
	// Query executes sql with args. If there is an error the returned Rows will
	// be returned in an error state. So it is allowed to ignore the error
	// returned from Query and handle it in Rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)

	// QueryRow is a convenience wrapper over Query. Any error that occurs while
	// querying is deferred until calling Scan on the returned Row. That Row will
	// error with pgx.ErrNoRows if no rows are returned.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row

	// Exec executes sql. sql can be either a prepared statement name or an SQL
	// string. arguments should be referenced positionally from the sql string
	// as $1, $2, etc.
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// Result is the single result set of a query.
type Result struct {
	// Columns are the result column names in order.
	Columns []string
	// Rows holds the values of each row in column order.
	Rows [][]interface{}
	// RowMode is the row mode of the query that produced the result.
	RowMode RowMode
	// CommandTag is the command tag reported by Postgres, like "SELECT 2".
	CommandTag pgconn.CommandTag
}

// Maps returns each row as a map from column name to value. If a column name
// repeats, the last column wins.
func (r *Result) Maps() []map[string]interface{} {
	maps := make([]map[string]interface{}, len(r.Rows))
	for i, row := range r.Rows {
		m := make(map[string]interface{}, len(r.Columns))
		for j, col := range r.Columns {
			if j < len(row) {
				m[col] = row[j]
			}
		}
		maps[i] = m
	}
	return maps
}

// Query parses pq, runs it on conn, and checks that the number of returned
// rows matches mask. Parse errors are returned as *ParameterizedQueryError and
// row count mismatches as *QueryResultError. Multi is not supported since
// Query reads a single result set.
func Query(ctx context.Context, conn Conn, pq *ParameterizedQuery, mask QueryResult) (*Result, error) {
	if err := mask.Validate(); err != nil {
		return nil, err
	}
	if mask == Multi {
		return nil, fmt.Errorf("query result mask %s: multiple result sets are not supported", mask)
	}
	trace := ContextClientTrace(ctx)
	q, err := pq.Parse()
	trace.parseQuery(q, err)
	if err != nil {
		return nil, err
	}

	sql := q.SQL()
	args := q.Values
	if q.Binary != nil && *q.Binary {
		args = append([]interface{}{pgx.QueryResultFormats{pgx.BinaryFormatCode}}, args...)
	}
	trace.sendQuery(sql, args)
	rows, err := conn.Query(ctx, sql, args...)
	trace.gotResponse(err)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	res := &Result{RowMode: q.RowMode}
	for _, fd := range rows.FieldDescriptions() {
		res.Columns = append(res.Columns, string(fd.Name))
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			trace.scanResponse(len(res.Rows), err)
			return nil, fmt.Errorf("read query row values: %w", err)
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		trace.scanResponse(len(res.Rows), err)
		return nil, fmt.Errorf("close query rows: %w", err)
	}
	res.CommandTag = rows.CommandTag()
	trace.scanResponse(len(res.Rows), nil)
	if err := mask.Check(len(res.Rows)); err != nil {
		return nil, err
	}
	return res, nil
}
