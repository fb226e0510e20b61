// Package monitoring holds the process-wide diagnostic logger used by the
// model, raytrace and pick database packages.
package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced with SetLogger so tests can capture or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

var verbosity atomic.Int32

func init() {
	verbosity.Store(DefaultVerbosity)
}

// DefaultVerbosity prints start/finish progress but not per-receiver detail.
const DefaultVerbosity = 2

// Verbosity levels understood by Vlogf.
const (
	Quiet    = 0
	Warnings = 1
	Progress = 2
	Detail   = 3
	Debug    = 4
)

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetVerbosity sets the level Vlogf compares against. Negative values clamp to Quiet.
func SetVerbosity(level int) {
	if level < Quiet {
		level = Quiet
	}
	verbosity.Store(int32(level))
}

// Verbosity returns the current level.
func Verbosity() int {
	return int(verbosity.Load())
}

// Enabled reports whether messages at level would be emitted.
func Enabled(level int) bool {
	return level > Quiet && level <= Verbosity()
}

// Vlogf logs through Logf when level is enabled.
func Vlogf(level int, format string, v ...interface{}) {
	if !Enabled(level) {
		return
	}
	Logf(format, v...)
}
