package pgquery

import (
	"fmt"
	"strings"
)

// QueryResult is a bit mask of the result shape expected from a query. Any
// combination of flags is valid except that Multi cannot be combined with
// another flag.
type QueryResult int

const (
	// One expects a single result set with a single row.
	One QueryResult = 1
	// Many expects a single result set with one or more rows.
	Many QueryResult = 2
	// None expects a single result set with no rows.
	None QueryResult = 4
	// Any is Many|None: a single result set with any number of rows.
	Any = Many | None
	// Multi expects multiple result sets.
	Multi QueryResult = 8
)

const allResults = One | Many | None | Multi

func (r QueryResult) String() string {
	if r == 0 {
		return "QueryResult(0)"
	}
	names := make([]string, 0, 4)
	for _, f := range []struct {
		flag QueryResult
		name string
	}{{One, "one"}, {Many, "many"}, {None, "none"}, {Multi, "multi"}} {
		if r&f.flag != 0 {
			names = append(names, f.name)
		}
	}
	if rest := r &^ allResults; rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", int(rest)))
	}
	return strings.Join(names, "|")
}

// Has reports whether all flags in f are set in r.
func (r QueryResult) Has(f QueryResult) bool {
	return r&f == f
}

// Validate returns an error if r is empty, carries unknown bits, or combines
// Multi with another flag.
func (r QueryResult) Validate() error {
	switch {
	case r == 0:
		return fmt.Errorf("invalid query result mask: no flags set")
	case r&^allResults != 0:
		return fmt.Errorf("invalid query result mask %s: unknown flags", r)
	case r&Multi != 0 && r != Multi:
		return fmt.Errorf("invalid query result mask %s: multi cannot be combined with other flags", r)
	}
	return nil
}

// Check returns a *QueryResultError if a single result set with rows rows
// doesn't satisfy r. Multi accepts any number of rows.
func (r QueryResult) Check(rows int) error {
	if r == Multi {
		return nil
	}
	switch {
	case rows == 0 && r&None == 0:
		return &QueryResultError{Code: CodeNoData, Mask: r, Rows: rows}
	case rows == 1 && r&(One|Many) == 0:
		return &QueryResultError{Code: CodeNotEmpty, Mask: r, Rows: rows}
	case rows > 1 && r&Many == 0:
		if r&One != 0 {
			return &QueryResultError{Code: CodeMultiple, Mask: r, Rows: rows}
		}
		return &QueryResultError{Code: CodeNotEmpty, Mask: r, Rows: rows}
	}
	return nil
}
