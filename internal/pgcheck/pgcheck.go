// Package pgcheck verifies SQL against a live Postgres database by preparing
// it and describing its parameters and result columns.
package pgcheck

import (
	"context"
	"fmt"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jschaf/pgquery"
	"go.uber.org/zap"
	"time"
)

const defaultTimeout = 3 * time.Second

// PlanType is the top-level node type Postgres plans for executing a query.
// https://www.postgresql.org/docs/13/executor.html
type PlanType string

const (
	PlanResult      PlanType = "Result"      // select statement without a table
	PlanLimit       PlanType = "Limit"       // select statement with a limit
	PlanModifyTable PlanType = "ModifyTable" // update, insert, or delete statement
)

// Param is an input parameter of a prepared statement, like $1.
type Param struct {
	OID    uint32
	PgType string // like "int4" or "text"
}

// Column is an output column of a prepared statement.
type Column struct {
	Name   string
	OID    uint32
	PgType string
}

// Statement describes a statement prepared by Postgres.
type Statement struct {
	SQL     string
	Params  []Param
	Columns []Column
	// Plan is the top-level plan node type, or empty if the statement can't be
	// explained, like DDL.
	Plan PlanType
	// Result is the loosest result mask that fits the statement: None if the
	// statement returns no columns, Any otherwise.
	Result pgquery.QueryResult
}

// Checker prepares statements on a single connection. Not safe for concurrent
// use.
type Checker struct {
	conn  *pgx.Conn
	log   *zap.Logger
	types map[uint32]string // cache of OID to type name
}

// NewChecker creates a checker using conn. A nil log disables logging.
func NewChecker(conn *pgx.Conn, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{conn: conn, log: log.Named("pgcheck"), types: make(map[uint32]string)}
}

// Check prepares sql as an unnamed statement and describes it.
func (c *Checker) Check(ctx context.Context, sql string) (Statement, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	desc, err := c.conn.PgConn().Prepare(ctx, "", sql, nil)
	if err != nil {
		return Statement{}, fmt.Errorf("prepare statement: %w", err)
	}

	oids := make([]uint32, 0, len(desc.ParamOIDs)+len(desc.Fields))
	oids = append(oids, desc.ParamOIDs...)
	for _, f := range desc.Fields {
		oids = append(oids, f.DataTypeOID)
	}
	if err := c.resolveTypes(ctx, oids); err != nil {
		return Statement{}, err
	}

	stmt := Statement{SQL: sql, Result: pgquery.Any}
	for _, oid := range desc.ParamOIDs {
		stmt.Params = append(stmt.Params, Param{OID: oid, PgType: c.types[oid]})
	}
	for _, f := range desc.Fields {
		stmt.Columns = append(stmt.Columns, Column{
			Name:   string(f.Name),
			OID:    f.DataTypeOID,
			PgType: c.types[f.DataTypeOID],
		})
	}
	if len(stmt.Columns) == 0 {
		stmt.Result = pgquery.None
	}

	plan, err := c.explain(ctx, sql, len(desc.ParamOIDs))
	if err != nil {
		c.log.Debug("skip explain", zap.String("sql", sql), zap.Error(err))
	}
	stmt.Plan = plan
	return stmt, nil
}

// knownTypeName returns the name of a type registered in ci, like the
// built-in types pgx registers for every connection.
func knownTypeName(ci *pgtype.ConnInfo, oid uint32) (string, bool) {
	dt, ok := ci.DataTypeForOID(oid)
	if !ok {
		return "", false
	}
	return dt.Name, true
}

// resolveTypes looks up the type name of each OID not already cached. Types
// known to the connection are resolved without a query; the rest, like enums
// and composites, are read from pg_type.
func (c *Checker) resolveTypes(ctx context.Context, oids []uint32) error {
	missing := make([]int64, 0, len(oids))
	for _, oid := range oids {
		if _, ok := c.types[oid]; ok {
			continue
		}
		if name, ok := knownTypeName(c.conn.ConnInfo(), oid); ok {
			c.types[oid] = name
			continue
		}
		missing = append(missing, int64(oid))
	}
	if len(missing) == 0 {
		return nil
	}
	rows, err := c.conn.Query(ctx,
		`SELECT oid::bigint, typname FROM pg_type WHERE oid::bigint = ANY($1::bigint[])`,
		missing)
	if err != nil {
		return fmt.Errorf("query type names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var oid int64
		var name string
		if err := rows.Scan(&oid, &name); err != nil {
			return fmt.Errorf("scan type name: %w", err)
		}
		c.types[uint32(oid)] = name
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read type names: %w", err)
	}
	return nil
}

type explainRow struct {
	Plan map[string]interface{} `json:"Plan,omitempty"`
}

// explain runs EXPLAIN with null params to find the top-level plan node.
func (c *Checker) explain(ctx context.Context, sql string, nparams int) (PlanType, error) {
	args := make([]interface{}, nparams)
	var explain []explainRow
	if err := c.conn.QueryRow(ctx, "EXPLAIN (FORMAT JSON) "+sql, args...).Scan(&explain); err != nil {
		return "", fmt.Errorf("explain statement: %w", err)
	}
	if len(explain) == 0 || len(explain[0].Plan) == 0 {
		return "", fmt.Errorf("explain output had no 'Plan' node")
	}
	node, ok := explain[0].Plan["Node Type"].(string)
	if !ok {
		return "", fmt.Errorf("explain output 'Plan[Node Type]' is not a string; got %T", explain[0].Plan["Node Type"])
	}
	return PlanType(node), nil
}
