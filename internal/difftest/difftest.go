// Package difftest compares values in tests with go-cmp.
package difftest

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"testing"
)

// AssertSame reports a test error with a diff if want and got differ. Nil and
// empty slices and maps compare equal.
func AssertSame(t testing.TB, want, got interface{}, opts ...cmp.Option) {
	t.Helper()
	allOpts := append([]cmp.Option{cmpopts.EquateEmpty()}, opts...)
	if diff := cmp.Diff(want, got, allOpts...); diff != "" {
		t.Errorf("mismatch (-want +got)\n%s", diff)
	}
}

// RequireSame is AssertSame but stops the test on a mismatch.
func RequireSame(t testing.TB, want, got interface{}, opts ...cmp.Option) {
	t.Helper()
	allOpts := append([]cmp.Option{cmpopts.EquateEmpty()}, opts...)
	if diff := cmp.Diff(want, got, allOpts...); diff != "" {
		t.Fatalf("mismatch (-want +got)\n%s", diff)
	}
}
