package pgquery

import (
	"encoding/json"
	"fmt"
	"github.com/jschaf/pgquery/internal/texts"
	"reflect"
	"strconv"
	"strings"
)

const (
	errMsgText   = "Property 'text' must be a non-empty text string."
	errMsgValues = "Property 'values' must be an array or null/undefined."
)

// Text is the text of a ParameterizedQuery: either literal SQL or a
// *QueryFile.
type Text interface {
	isText()
}

// SQL is literal query text.
type SQL string

func (SQL) isText() {}

// RowMode controls the shape of returned rows. The empty RowMode returns rows
// as column-name maps.
type RowMode string

// RowModeArray returns each row as a slice of values in column order.
const RowModeArray RowMode = "array"

// PreparedQuery is a validated snapshot of a ParameterizedQuery ready for
// execution.
type PreparedQuery struct {
	// Text is the resolved SQL after a successful Parse. In the Result of a
	// ParameterizedQueryError, Text may be the *QueryFile that failed to load.
	Text Text
	// Values are the positional parameters for $1, $2, etc. Nil when there are
	// none.
	Values []interface{}
	// Binary requests binary result format. Nil if unset.
	Binary *bool
	// RowMode is empty if unset.
	RowMode RowMode
}

// SQL returns the query text if Text is literal SQL, otherwise an empty
// string.
func (p *PreparedQuery) SQL() string {
	s, _ := p.Text.(SQL)
	return string(s)
}

// ParameterizedQueryConfig holds all properties of a ParameterizedQuery for
// NewParameterizedQueryFromConfig.
type ParameterizedQueryConfig struct {
	Text    Text
	Values  interface{}
	Binary  *bool
	RowMode RowMode
}

// ParameterizedQuery is a reusable query with positional parameters. Its
// properties can be changed after creation; Parse validates the query and
// caches the result until a property changes.
//
// Parse never panics on invalid properties. Problems are returned as a
// *ParameterizedQueryError so the caller can decide to fail a pending
// operation.
//
// A ParameterizedQuery is not safe for concurrent use.
type ParameterizedQuery struct {
	text    Text
	values  interface{}
	binary  *bool
	rowMode RowMode

	changed bool                     // a property changed since the last successful Parse
	result  *PreparedQuery           // last snapshot; partial after a failed Parse
	err     *ParameterizedQueryError // last Parse error
	metrics *Metrics
}

// NewParameterizedQuery creates a query from text and values. Values must be
// nil or a slice or array; other types are reported by Parse.
func NewParameterizedQuery(text Text, values interface{}) *ParameterizedQuery {
	return &ParameterizedQuery{
		text:    text,
		values:  values,
		changed: true,
		result:  &PreparedQuery{},
	}
}

// NewParameterizedQueryFromConfig creates a query from every property in cfg.
func NewParameterizedQueryFromConfig(cfg ParameterizedQueryConfig) *ParameterizedQuery {
	pq := NewParameterizedQuery(cfg.Text, cfg.Values)
	pq.binary = cfg.Binary
	pq.rowMode = cfg.RowMode
	return pq
}

// SetMetrics sets the metrics that count full validations. Nil disables them.
func (pq *ParameterizedQuery) SetMetrics(m *Metrics) { pq.metrics = m }

// Text returns the query text.
func (pq *ParameterizedQuery) Text() Text { return pq.text }

// SetText sets the query text.
func (pq *ParameterizedQuery) SetText(text Text) {
	if text != pq.text {
		pq.text = text
		pq.changed = true
	}
}

// Values returns the query values as set.
func (pq *ParameterizedQuery) Values() interface{} { return pq.values }

// SetValues sets the query values. Nil or a slice is copied straight into the
// cached snapshot without forcing a new validation, so reassign values after
// mutating them in place. Any other type forces the next Parse to validate,
// and fail.
func (pq *ParameterizedQuery) SetValues(values interface{}) {
	same := sameValues(values, pq.values)
	pq.values = values
	if vs, ok := toSlice(values); ok {
		if len(vs) == 0 {
			vs = nil
		}
		pq.result.Values = vs
	} else if !same {
		pq.changed = true
	}
}

// Binary returns the binary result flag, or nil if unset.
func (pq *ParameterizedQuery) Binary() *bool { return pq.binary }

// SetBinary sets the binary result flag. Nil unsets it.
func (pq *ParameterizedQuery) SetBinary(binary *bool) {
	if !sameBool(binary, pq.binary) {
		pq.binary = binary
		pq.changed = true
	}
}

// RowMode returns the row mode, or an empty RowMode if unset.
func (pq *ParameterizedQuery) RowMode() RowMode { return pq.rowMode }

// SetRowMode sets the row mode. The empty RowMode unsets it.
func (pq *ParameterizedQuery) SetRowMode(mode RowMode) {
	if mode != pq.rowMode {
		pq.rowMode = mode
		pq.changed = true
	}
}

// Err returns the error from the last Parse, if any.
func (pq *ParameterizedQuery) Err() error {
	if pq.err == nil {
		return nil
	}
	return pq.err
}

// Parse validates the query and returns its snapshot. If nothing changed since
// the last successful Parse and the text is not a *QueryFile, Parse returns
// the same *PreparedQuery as before. A *QueryFile text is always prepared
// again since the file may have changed on disk.
//
// The returned error is always a *ParameterizedQueryError.
func (pq *ParameterizedQuery) Parse() (*PreparedQuery, error) {
	qf, isFile := pq.text.(*QueryFile)
	isFile = isFile && qf != nil
	if !pq.changed && !isFile {
		return pq.result, nil
	}

	pq.changed = true
	res := &PreparedQuery{}
	pq.result = res
	pq.err = nil
	var msgs []string
	var cause error

	if isFile {
		qf.Prepare()
		if err := qf.Err(); err != nil {
			res.Text = qf
			msgs = append(msgs, err.Error())
			cause = err
		} else {
			res.Text = SQL(qf.SQL())
		}
	} else {
		res.Text = pq.text
	}
	if !isNonEmptySQL(res.Text) {
		msgs = append(msgs, errMsgText)
	}
	if pq.values != nil {
		if vs, ok := toSlice(pq.values); !ok {
			msgs = append(msgs, errMsgValues)
		} else if len(vs) > 0 {
			res.Values = vs
		}
	}
	if pq.binary != nil {
		b := *pq.binary
		res.Binary = &b
	}
	if pq.rowMode != "" {
		res.RowMode = pq.rowMode
	}

	if len(msgs) > 0 {
		pq.err = &ParameterizedQueryError{Message: msgs[0], Result: res, Err: cause}
		pq.metrics.validated(pq.err)
		return nil, pq.err
	}
	pq.changed = false
	pq.metrics.validated(nil)
	return res, nil
}

// String returns the multi-line diagnostic rendering of the query.
func (pq *ParameterizedQuery) String() string {
	return pq.Inspect(0)
}

// Inspect renders the current state of the query as a nested diagnostic at
// the given level. Inspect calls Parse.
func (pq *ParameterizedQuery) Inspect(level int) string {
	if level < 0 {
		level = 0
	}
	gap := texts.Gap(level + 1)
	_, _ = pq.Parse()
	lines := []string{"ParameterizedQuery {"}
	if isNonEmptySQL(pq.result.Text) {
		lines = append(lines, gap+"text: "+strconv.Quote(pq.result.SQL()))
	}
	if pq.values != nil {
		lines = append(lines, gap+"values: "+inspectValues(pq.values))
	}
	if pq.binary != nil {
		lines = append(lines, gap+"binary: "+strconv.FormatBool(*pq.binary))
	}
	if pq.rowMode != "" {
		lines = append(lines, gap+"rowMode: "+strconv.Quote(string(pq.rowMode)))
	}
	if pq.err != nil {
		lines = append(lines, gap+"error: "+pq.err.Inspect(level+1))
	}
	lines = append(lines, texts.Gap(level)+"}")
	return strings.Join(lines, "\n")
}

func isNonEmptySQL(t Text) bool {
	s, ok := t.(SQL)
	return ok && strings.TrimSpace(string(s)) != ""
}

// toSlice copies a nil, slice, or array value into a new []interface{}. The
// bool reports whether v was one of those kinds.
func toSlice(v interface{}) ([]interface{}, bool) {
	if v == nil {
		return nil, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return nil, true
		}
	case reflect.Array:
	default:
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// sameValues reports whether a and b are equal comparable values. Values of
// uncomparable types, like maps, are never the same.
func sameValues(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

func sameBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// inspectText renders the text of a snapshot. A *QueryFile shows only its
// path since its load error is rendered separately.
func inspectText(t Text) string {
	switch t := t.(type) {
	case nil:
		return "null"
	case SQL:
		return strconv.Quote(string(t))
	case *QueryFile:
		if t == nil {
			return "null"
		}
		return "QueryFile(" + strconv.Quote(t.Path()) + ")"
	default:
		return fmt.Sprintf("%v", t)
	}
}

func inspectValues(v interface{}) string {
	if v == nil {
		return "null"
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(bs)
}
