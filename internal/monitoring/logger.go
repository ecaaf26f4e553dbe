// Package monitoring holds the diagnostic logger shared by the store and
// query packages.
package monitoring

import (
	"log"

	"go.uber.org/zap"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger or UseZap. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// UseZap routes Logf into l at info level. Passing nil restores log.Printf.
func UseZap(l *zap.Logger) {
	if l == nil {
		Logf = log.Printf
		return
	}
	Logf = l.WithOptions(zap.AddCallerSkip(1)).Sugar().Infof
}
