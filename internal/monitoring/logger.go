// Package monitoring holds the process-wide diagnostic logger.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger; tests usually mute it.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}

// Prefixed returns a logger that tags each line with "[name] ". Logf is
// looked up on every call, so SetLogger also affects loggers created
// before it.
func Prefixed(name string) func(format string, v ...any) {
	tag := "[" + name + "] "
	return func(format string, v ...any) {
		Logf(tag+format, v...)
	}
}
