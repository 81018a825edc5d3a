// Package errs has helpers for errors returned from deferred cleanup.
package errs

import (
	"fmt"
	"go.uber.org/multierr"
	"testing"
)

// Capture runs errF and merges its error, if any, into *err. If msg is not
// empty, the errF error is wrapped with msg.
//
//   - If errF returns nil, *err is unchanged.
//   - If *err is nil, *err becomes the errF error.
//   - Otherwise *err becomes a multierr error holding both.
//
// Typical use is a deferred Close with a named error return:
//
//	defer errs.Capture(&err, f.Close, "close query file")
func Capture(err *error, errF func() error, msg string) {
	fErr := errF()
	if fErr == nil {
		return
	}
	if msg != "" {
		fErr = fmt.Errorf("%s: %w", msg, fErr)
	}
	multierr.AppendInto(err, fErr)
}

// CaptureT reports the error from errF with t.Error, prefixed by msg if set.
func CaptureT(t testing.TB, errF func() error, msg string) {
	t.Helper()
	err := errF()
	switch {
	case err == nil:
	case msg == "":
		t.Error(err)
	default:
		t.Errorf("%s: %s", msg, err)
	}
}
