package pgquery

import (
	"fmt"
	"github.com/jschaf/pgquery/internal/minify"
	"github.com/jschaf/pgquery/internal/texts"
	"strconv"
	"strings"
)

// SQLParseError is reported by a QueryFile with the Minify option when the
// file contains SQL that can't be tokenized, like an unterminated string.
type SQLParseError = minify.Error

// inspector is implemented by errors with a nested diagnostic rendering.
type inspector interface {
	Inspect(level int) string
}

// inspectErr renders err at level, using its own rendering if it has one.
func inspectErr(err error, level int) string {
	if in, ok := err.(inspector); ok {
		return in.Inspect(level)
	}
	return strconv.Quote(err.Error())
}

// QueryFileError is a failure to stat or read a query file.
type QueryFileError struct {
	Path string
	Op   string // "stat" or "read"
	Err  error
}

func (e *QueryFileError) Error() string {
	return fmt.Sprintf("%s query file: %s", e.Op, e.Err)
}

func (e *QueryFileError) Unwrap() error { return e.Err }

// Inspect renders the error as a nested diagnostic at the given level.
func (e *QueryFileError) Inspect(level int) string {
	gap0, gap1 := texts.Gap(level), texts.Gap(level+1)
	lines := []string{
		"QueryFileError {",
		gap1 + "message: " + strconv.Quote(e.Err.Error()),
		gap1 + "op: " + strconv.Quote(e.Op),
		gap1 + "file: " + strconv.Quote(e.Path),
		gap0 + "}",
	}
	return strings.Join(lines, "\n")
}

// ParameterizedQueryError is returned by ParameterizedQuery.Parse when the
// query is invalid. Only the first problem found is reported.
type ParameterizedQueryError struct {
	// Message describes the first problem found.
	Message string
	// Result is the partially built snapshot, useful for diagnostics. When the
	// text refers to a QueryFile that failed to load, Result.Text is the
	// *QueryFile.
	Result *PreparedQuery
	// Err is the QueryFile error that caused the failure, if any.
	Err error
}

func (e *ParameterizedQueryError) Error() string {
	return "parameterized query: " + e.Message
}

func (e *ParameterizedQueryError) Unwrap() error { return e.Err }

// Inspect renders the error as a nested diagnostic at the given level.
func (e *ParameterizedQueryError) Inspect(level int) string {
	gap0, gap1, gap2 := texts.Gap(level), texts.Gap(level+1), texts.Gap(level+2)
	lines := []string{
		"ParameterizedQueryError {",
		gap1 + "message: " + strconv.Quote(e.Message),
	}
	if e.Result != nil {
		lines = append(lines,
			gap1+"result: {",
			gap2+"text: "+inspectText(e.Result.Text),
			gap2+"values: "+inspectValues(e.Result.Values),
			gap1+"}",
		)
	}
	if e.Err != nil {
		lines = append(lines, gap1+"error: "+inspectErr(e.Err, level+1))
	}
	lines = append(lines, gap0+"}")
	return strings.Join(lines, "\n")
}

// QueryResultErrorCode identifies why a result didn't match a QueryResult
// mask.
type QueryResultErrorCode int

const (
	// CodeNoData means no rows were returned but the mask requires some.
	CodeNoData QueryResultErrorCode = iota
	// CodeMultiple means more than one row was returned for a mask that
	// allows at most one.
	CodeMultiple
	// CodeNotEmpty means rows were returned for a mask that expects none.
	CodeNotEmpty
)

func (c QueryResultErrorCode) String() string {
	switch c {
	case CodeNoData:
		return "noData"
	case CodeMultiple:
		return "multiple"
	case CodeNotEmpty:
		return "notEmpty"
	default:
		return "QueryResultErrorCode(" + strconv.Itoa(int(c)) + ")"
	}
}

// QueryResultError is returned when the number of rows doesn't satisfy the
// expected QueryResult mask.
type QueryResultError struct {
	Code QueryResultErrorCode
	Mask QueryResult
	Rows int
}

func (e *QueryResultError) Error() string {
	switch e.Code {
	case CodeNoData:
		return "No data returned from the query."
	case CodeMultiple:
		return "Multiple rows were not expected."
	case CodeNotEmpty:
		return "No return data was expected."
	default:
		return fmt.Sprintf("query result %s doesn't match %d rows", e.Mask, e.Rows)
	}
}
