package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"
)

func TestCapture(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	nilF := func() error { return nil }
	failB := func() error { return errB }

	t.Run("nil func error", func(t *testing.T) {
		err := errA
		Capture(&err, nilF, "close")
		assert.Same(t, errA, err)
	})
	t.Run("replaces nil", func(t *testing.T) {
		var err error
		Capture(&err, failB, "close")
		assert.EqualError(t, err, "close: b")
		assert.True(t, errors.Is(err, errB))
	})
	t.Run("no message", func(t *testing.T) {
		var err error
		Capture(&err, failB, "")
		assert.Same(t, errB, err)
	})
	t.Run("combines", func(t *testing.T) {
		err := errA
		Capture(&err, failB, "close")
		assert.Len(t, multierr.Errors(err), 2)
		assert.True(t, errors.Is(err, errA))
		assert.True(t, errors.Is(err, errB))
	})
}
