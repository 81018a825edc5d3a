package pgquery

import (
	"context"
)

// Unique type to prevent assignment.
type clientTraceContextKey struct{}

// ContextClientTrace returns the ClientTrace associated with the
// provided context. If none, it returns nil.
func ContextClientTrace(ctx context.Context) *ClientTrace {
	trace, _ := ctx.Value(clientTraceContextKey{}).(*ClientTrace)
	return trace
}

// WithClientTrace returns a new context based on the provided parent ctx.
// Queries run by Query with the returned context will use the provided trace
// hooks, in addition to any previous hooks registered with ctx. Any hooks
// defined in the provided trace will be called first.
func WithClientTrace(ctx context.Context, trace *ClientTrace) context.Context {
	if trace == nil {
		panic("nil trace")
	}
	old := ContextClientTrace(ctx)
	trace.compose(old)

	return context.WithValue(ctx, clientTraceContextKey{}, trace)
}

// ClientTrace is a set of hooks to run at various stages of a query run by
// Query. Any particular hook may be nil.
//
// Inspired by httptrace.ClientTrace.
type ClientTrace struct {
	// ParseQuery is called after the ParameterizedQuery is parsed, with the
	// parse error if any.
	ParseQuery func(q *PreparedQuery, err error)
	// SendQuery is called before the query is sent with Conn.Query.
	SendQuery func(sql string, args []interface{})
	// GotResponse is called after Conn.Query returns.
	GotResponse func(err error)
	// ScanResponse is called after all rows have been read or if an error
	// occurs while reading them.
	ScanResponse func(rows int, err error)
}

func (t *ClientTrace) parseQuery(q *PreparedQuery, err error) {
	if t != nil && t.ParseQuery != nil {
		t.ParseQuery(q, err)
	}
}

func (t *ClientTrace) sendQuery(sql string, args []interface{}) {
	if t != nil && t.SendQuery != nil {
		t.SendQuery(sql, args)
	}
}

func (t *ClientTrace) gotResponse(err error) {
	if t != nil && t.GotResponse != nil {
		t.GotResponse(err)
	}
}

func (t *ClientTrace) scanResponse(rows int, err error) {
	if t != nil && t.ScanResponse != nil {
		t.ScanResponse(rows, err)
	}
}

// compose modifies t such that it respects the previously-registered hooks in
// old.
func (t *ClientTrace) compose(old *ClientTrace) {
	if old == nil {
		return
	}

	if old.ParseQuery != nil {
		if t.ParseQuery == nil {
			t.ParseQuery = old.ParseQuery
		} else {
			cur := t.ParseQuery
			t.ParseQuery = func(q *PreparedQuery, err error) { cur(q, err); old.ParseQuery(q, err) }
		}
	}

	if old.SendQuery != nil {
		if t.SendQuery == nil {
			t.SendQuery = old.SendQuery
		} else {
			cur := t.SendQuery
			t.SendQuery = func(sql string, args []interface{}) { cur(sql, args); old.SendQuery(sql, args) }
		}
	}

	if old.GotResponse != nil {
		if t.GotResponse == nil {
			t.GotResponse = old.GotResponse
		} else {
			cur := t.GotResponse
			t.GotResponse = func(err error) { cur(err); old.GotResponse(err) }
		}
	}

	if old.ScanResponse != nil {
		if t.ScanResponse == nil {
			t.ScanResponse = old.ScanResponse
		} else {
			cur := t.ScanResponse
			t.ScanResponse = func(rows int, err error) { cur(rows, err); old.ScanResponse(rows, err) }
		}
	}
}
