// Package logging provides level-named Printf-style logging methods on
// a swappable package-level default, so a host application can route
// this module's output through its own logging infrastructure.
package logging

import (
	"log"
	"os"
)

// Logger is the narrow logging collaborator the engine depends on. A
// host application supplies its own implementation; Current is used when
// none is injected.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// stdLogger adapts the standard library logger to Logger, with a level
// floor below which Debugf is a no-op.
type stdLogger struct {
	l       *log.Logger
	verbose bool
}

func (s *stdLogger) Debugf(format string, args ...interface{}) {
	if !s.verbose {
		return
	}
	s.l.Printf("[DEBUG] "+format, args...)
}

func (s *stdLogger) Infof(format string, args ...interface{}) {
	s.l.Printf("[INFO] "+format, args...)
}

func (s *stdLogger) Warnf(format string, args ...interface{}) {
	s.l.Printf("[WARN] "+format, args...)
}

func (s *stdLogger) Errorf(format string, args ...interface{}) {
	s.l.Printf("[ERROR] "+format, args...)
}

func (s *stdLogger) Fatalf(format string, args ...interface{}) {
	s.l.Fatalf("[FATAL] "+format, args...)
}

// Current is the package-level default logger, overridable by a host
// application at startup.
var Current Logger = &stdLogger{l: log.New(os.Stderr, "", log.LstdFlags)}

// SetCurrent overrides the package-level default.
func SetCurrent(l Logger) {
	if l == nil {
		return
	}
	Current = l
}

// NoOp is a Logger that discards everything; useful in tests.
var NoOp Logger = noOpLogger{}

type noOpLogger struct{}

func (noOpLogger) Debugf(string, ...interface{}) {}
func (noOpLogger) Infof(string, ...interface{})  {}
func (noOpLogger) Warnf(string, ...interface{})  {}
func (noOpLogger) Errorf(string, ...interface{}) {}
func (noOpLogger) Fatalf(string, ...interface{}) {}
