// Package flags has flag.Value types missing from the standard flag package.
package flags

import (
	"flag"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Strings defines a repeated string flag. Each use of the flag appends to the
// returned slice, starting from value.
func Strings(fset *flag.FlagSet, name string, value []string, usage string) *[]string {
	sv := &stringsValue{strings: &value}
	fset.Var(sv, name, usage)
	return sv.strings
}

type stringsValue struct {
	strings *[]string
}

// String implements flag.Value and fmt.Stringer.
func (sv *stringsValue) String() string {
	if sv.strings == nil {
		return ""
	}
	return strings.Join(*sv.strings, ",")
}

// Get implements flag.Getter.
func (sv *stringsValue) Get() interface{} {
	return *sv.strings
}

// Set implements flag.Value.
func (sv *stringsValue) Set(value string) error {
	*sv.strings = append(*sv.strings, value)
	return nil
}

// Level defines a zap log level flag, like "debug" or "warn".
func Level(fset *flag.FlagSet, name string, value zapcore.Level, usage string) *zapcore.Level {
	lvl := value
	fset.Var(&lvl, name, usage)
	return &lvl
}
